package transfer

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"eldersvr-cli/internal/config"
)

// Video filename prefixes decide which device role a file belongs to.
const (
	HighResPrefix = "highres_"
	LowResPrefix  = "lowres_"
)

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
}

// FileSet is the per-device local file selection: filename to absolute local
// path, split by asset class. Built fresh per device per transfer since the
// video subset depends on the role.
type FileSet struct {
	JSON   map[string]string
	Videos map[string]string
	Images map[string]string
}

// BuildFileSet collects the files a device of the given role should receive.
// Master devices get lowres_* videos plus the credential file; slaves get
// highres_* videos; both get the full image set and the manifest file.
func BuildFileSet(paths config.Paths, role Role, flags ScopeFlags) (*FileSet, error) {
	fs := &FileSet{
		JSON:   map[string]string{},
		Videos: map[string]string{},
		Images: map[string]string{},
	}

	if !flags.VideosOnly {
		manifestPath := paths.ManifestPath()
		if _, err := os.Stat(manifestPath); err != nil {
			return nil, fmt.Errorf("manifest file not found at %s, run 'eldersvr fetch-data' first", manifestPath)
		}
		fs.JSON[filepath.Base(manifestPath)] = manifestPath

		if role == RoleMaster {
			credPath := paths.CredentialPath()
			if _, err := os.Stat(credPath); err == nil {
				fs.JSON[filepath.Base(credPath)] = credPath
			}
		}
	}

	if flags.JSONOnly {
		return fs, nil
	}

	prefix := HighResPrefix
	if role == RoleMaster {
		prefix = LowResPrefix
	}

	videoEntries, err := os.ReadDir(paths.VideosDir())
	if err == nil {
		for _, entry := range videoEntries {
			name := entry.Name()
			if entry.IsDir() || !strings.HasSuffix(name, ".mp4") {
				continue
			}
			if !strings.HasPrefix(name, prefix) {
				continue
			}
			fs.Videos[name] = filepath.Join(paths.VideosDir(), name)
		}
	}

	if !flags.VideosOnly {
		imageEntries, err := os.ReadDir(paths.ImagesDir())
		if err == nil {
			for _, entry := range imageEntries {
				name := entry.Name()
				if entry.IsDir() || !imageExtensions[strings.ToLower(filepath.Ext(name))] {
					continue
				}
				fs.Images[name] = filepath.Join(paths.ImagesDir(), name)
			}
		}
	}

	return fs, nil
}

// sortedNames returns map keys in stable order so push loops and conflict
// reports are deterministic.
func sortedNames(m map[string]string) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// JSONNames returns the json-class filenames with the manifest file first,
// matching the push order (manifest, then credential).
func (fs *FileSet) JSONNames() []string {
	names := sortedNames(fs.JSON)
	sort.SliceStable(names, func(i, j int) bool {
		return !strings.HasPrefix(names[i], "credential") && strings.HasPrefix(names[j], "credential")
	})
	return names
}

func (fs *FileSet) VideoNames() []string { return sortedNames(fs.Videos) }

func (fs *FileSet) ImageNames() []string { return sortedNames(fs.Images) }

// Count returns the total number of files in the set.
func (fs *FileSet) Count() int {
	return len(fs.JSON) + len(fs.Videos) + len(fs.Images)
}
