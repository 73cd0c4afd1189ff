package transfer

import (
	"os"
	"strings"
	"testing"

	"eldersvr-cli/internal/config"
)

func TestBuildFileSetWithoutManifest(t *testing.T) {
	paths := config.Paths{
		LocalDownloads: t.TempDir(),
		JSONFilename:   "new_data.json",
	}
	_, err := BuildFileSet(paths, RoleMaster, ScopeFlags{})
	if err == nil || !strings.Contains(err.Error(), "fetch-data") {
		t.Fatalf("err = %v, want a hint to run fetch-data", err)
	}

	// Videos-only does not need the manifest at all.
	if _, err := BuildFileSet(paths, RoleMaster, ScopeFlags{VideosOnly: true}); err != nil {
		t.Fatalf("videos-only failed without manifest: %v", err)
	}
}

func TestJSONNamesManifestFirst(t *testing.T) {
	fs := &FileSet{JSON: map[string]string{
		"credential.json": "/tmp/credential.json",
		"new_data.json":   "/tmp/new_data.json",
	}}
	names := fs.JSONNames()
	if len(names) != 2 || names[0] != "new_data.json" || names[1] != "credential.json" {
		t.Fatalf("order = %v, want manifest before credential", names)
	}
}

func TestBuildFileSetSkipsForeignFiles(t *testing.T) {
	paths := localContent(t)
	if err := os.WriteFile(paths.VideosDir()+"/notes.txt", []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(paths.ImagesDir()+"/listing.csv", []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	fs, err := BuildFileSet(paths, RoleSlave, ScopeFlags{})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := fs.Videos["notes.txt"]; ok {
		t.Error("non-mp4 file included in videos")
	}
	if _, ok := fs.Images["listing.csv"]; ok {
		t.Error("non-image file included in images")
	}
	if fs.Count() != 5 {
		t.Errorf("count = %d, want manifest + 2 videos + 2 images", fs.Count())
	}
}
