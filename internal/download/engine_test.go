package download

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"eldersvr-cli/internal/config"
	"eldersvr-cli/internal/manifest"
	"eldersvr-cli/internal/progress"
)

// assetServer serves fake asset bodies and lets tests inject failures per
// path: a positive count fails that many requests with 500 before
// succeeding, -1 fails forever, -2 answers 404.
type assetServer struct {
	*httptest.Server
	mu       sync.Mutex
	failures map[string]int
	requests map[string]int
}

func newAssetServer(t *testing.T) *assetServer {
	t.Helper()
	s := &assetServer{
		failures: map[string]int{},
		requests: map[string]int{},
	}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests[r.URL.Path]++
		remaining := s.failures[r.URL.Path]
		if remaining > 0 {
			s.failures[r.URL.Path] = remaining - 1
		}
		s.mu.Unlock()

		switch {
		case remaining == -2:
			http.NotFound(w, r)
		case remaining == -1 || remaining > 0:
			http.Error(w, "boom", http.StatusInternalServerError)
		default:
			fmt.Fprintf(w, "content-of-%s", r.URL.Path)
		}
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *assetServer) failPath(path string, times int) {
	s.mu.Lock()
	s.failures[path] = times
	s.mu.Unlock()
}

func (s *assetServer) requestCount(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[path]
}

// testManifest builds n videos plus one tag with an image and one without,
// all pointing at the asset server.
func testManifest(base string, n int) *manifest.Manifest {
	m := &manifest.Manifest{LastModified: time.Now().Format(manifest.TimeFormat)}
	for i := 1; i <= n; i++ {
		m.Videos = append(m.Videos, manifest.VideoAsset{
			ID:           fmt.Sprintf("%d", i),
			Title:        fmt.Sprintf("Video %d", i),
			ThumbnailKey: fmt.Sprintf("thumb_%d.jpg", i),
			ThumbnailURL: fmt.Sprintf("%s/thumb_%d.jpg", base, i),
			FileKeyLow:   fmt.Sprintf("lowres_%d.mp4", i),
			FileKey:      fmt.Sprintf("highres_%d.mp4", i),
			FileURLLow:   fmt.Sprintf("%s/lowres_%d.mp4", base, i),
			FileURL:      fmt.Sprintf("%s/highres_%d.mp4", base, i),
			IsActive:     true,
		})
	}
	m.Tags = []manifest.TagAsset{
		{ID: 1, Name: "Nature", ImageURL: base + "/tag_nature.png"},
		{ID: 2, Name: "Plain"},
	}
	return m
}

func testEngine(concurrency int) *Engine {
	return NewEngine(Options{
		Concurrency: concurrency,
		Attempts:    3,
		RetryDelay:  time.Millisecond,
	})
}

func TestBuildTasksQualityScopes(t *testing.T) {
	m := testManifest("http://cdn.example.com", 2)
	paths := config.Paths{LocalDownloads: "dl"}

	cases := []struct {
		name  string
		scope Scope
		want  int
		cats  map[progress.Category]int
	}{
		{
			name:  "both expands to 3N plus tag images",
			scope: Scope{Quality: "both"},
			want:  7,
			cats: map[progress.Category]int{
				progress.CategoryVideoHigh: 2,
				progress.CategoryVideoLow:  2,
				progress.CategoryThumbnail: 2,
				progress.CategoryTagImage:  1,
			},
		},
		{
			name:  "high only",
			scope: Scope{Quality: "high"},
			want:  5,
			cats: map[progress.Category]int{
				progress.CategoryVideoHigh: 2,
				progress.CategoryThumbnail: 2,
				progress.CategoryTagImage:  1,
			},
		},
		{
			name:  "images only drops videos entirely",
			scope: Scope{Quality: "both", ImagesOnly: true},
			want:  3,
			cats: map[progress.Category]int{
				progress.CategoryThumbnail: 2,
				progress.CategoryTagImage:  1,
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tasks := BuildTasks(m, paths, tc.scope)
			if len(tasks) != tc.want {
				t.Fatalf("got %d tasks, want %d", len(tasks), tc.want)
			}
			got := map[progress.Category]int{}
			for _, task := range tasks {
				got[task.Category]++
				if task.Filename == "" || task.URL == "" || task.LocalPath == "" {
					t.Errorf("incomplete task: %+v", task)
				}
			}
			for cat, want := range tc.cats {
				if got[cat] != want {
					t.Errorf("category %s = %d, want %d", cat, got[cat], want)
				}
			}
		})
	}
}

func TestBuildTasksRoutesVideosAndImages(t *testing.T) {
	m := testManifest("http://cdn.example.com", 1)
	paths := config.Paths{LocalDownloads: "dl"}

	for _, task := range BuildTasks(m, paths, Scope{Quality: "both"}) {
		dir := filepath.Dir(task.LocalPath)
		switch task.Category {
		case progress.CategoryVideoHigh, progress.CategoryVideoLow:
			if !strings.HasSuffix(dir, "videos") {
				t.Errorf("%s should land in videos dir, got %s", task.Filename, dir)
			}
		default:
			if !strings.HasSuffix(dir, "images") {
				t.Errorf("%s should land in images dir, got %s", task.Filename, dir)
			}
		}
	}
}

func TestPartitionExistingSkipsPresentFiles(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "highres_1.mp4")
	if err := os.WriteFile(existing, []byte("already here"), 0644); err != nil {
		t.Fatal(err)
	}

	tasks := []Task{
		{Filename: "highres_1.mp4", LocalPath: existing},
		{Filename: "highres_2.mp4", LocalPath: filepath.Join(dir, "highres_2.mp4")},
	}

	pending, skipped := PartitionExisting(tasks)
	if len(skipped) != 1 || skipped[0].Filename != "highres_1.mp4" {
		t.Errorf("skipped = %+v", skipped)
	}
	if len(pending) != 1 || pending[0].Filename != "highres_2.mp4" {
		t.Errorf("pending = %+v", pending)
	}
}

func TestDownloadAllHappyPath(t *testing.T) {
	srv := newAssetServer(t)
	m := testManifest(srv.URL, 2)
	paths := config.Paths{LocalDownloads: t.TempDir()}

	stats, err := testEngine(4).DownloadAll(context.Background(), m, paths, Scope{Quality: "both"})
	if err != nil {
		t.Fatalf("DownloadAll failed: %v", err)
	}

	snap := stats.Snapshot()
	if snap.VideosHigh != 2 || snap.VideosLow != 2 || snap.Thumbnails != 2 || snap.TagImages != 1 {
		t.Errorf("unexpected category counts: %+v", snap)
	}
	if snap.Failed != 0 || snap.Total != 7 || snap.Completed != 7 {
		t.Errorf("unexpected totals: %+v", snap)
	}

	data, err := os.ReadFile(filepath.Join(paths.VideosDir(), "highres_1.mp4"))
	if err != nil {
		t.Fatalf("downloaded file missing: %v", err)
	}
	if string(data) != "content-of-/highres_1.mp4" {
		t.Errorf("unexpected content: %s", data)
	}
	if _, err := os.Stat(filepath.Join(paths.ImagesDir(), "tag_nature.png")); err != nil {
		t.Errorf("tag image missing: %v", err)
	}

	// no .part leftovers
	entries, _ := os.ReadDir(paths.VideosDir())
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".part") {
			t.Errorf("leftover partial file: %s", e.Name())
		}
	}
}

func TestDownloadAllSkipsExistingUpFront(t *testing.T) {
	srv := newAssetServer(t)
	m := testManifest(srv.URL, 1)
	paths := config.Paths{LocalDownloads: t.TempDir()}

	pre := filepath.Join(paths.VideosDir(), "highres_1.mp4")
	if err := os.MkdirAll(filepath.Dir(pre), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(pre, []byte("local copy"), 0644); err != nil {
		t.Fatal(err)
	}

	stats, err := testEngine(2).DownloadAll(context.Background(), m, paths, Scope{Quality: "both"})
	if err != nil {
		t.Fatalf("DownloadAll failed: %v", err)
	}

	snap := stats.Snapshot()
	if snap.Skipped != 1 {
		t.Errorf("Skipped = %d, want 1", snap.Skipped)
	}
	if snap.Total != 3 {
		t.Errorf("Total is post-filter, got %d want 3", snap.Total)
	}
	if got := srv.requestCount("/highres_1.mp4"); got != 0 {
		t.Errorf("skipped file was fetched %d times", got)
	}
	// the pre-existing file is untouched
	data, _ := os.ReadFile(pre)
	if string(data) != "local copy" {
		t.Errorf("pre-existing file overwritten: %s", data)
	}
}

func TestDownloadAllRetriesTransientFailure(t *testing.T) {
	srv := newAssetServer(t)
	srv.failPath("/lowres_1.mp4", 2) // two 500s, then success

	m := testManifest(srv.URL, 1)
	paths := config.Paths{LocalDownloads: t.TempDir()}

	stats, err := testEngine(1).DownloadAll(context.Background(), m, paths, Scope{Quality: "both"})
	if err != nil {
		t.Fatalf("DownloadAll failed: %v", err)
	}

	snap := stats.Snapshot()
	if snap.Failed != 0 || snap.VideosLow != 1 {
		t.Errorf("expected retry to recover: %+v", snap)
	}
	if got := srv.requestCount("/lowres_1.mp4"); got != 3 {
		t.Errorf("expected 3 attempts, got %d", got)
	}
}

func TestDownloadAllExhaustedRetriesDoNotAbortSiblings(t *testing.T) {
	srv := newAssetServer(t)
	srv.failPath("/highres_1.mp4", -1) // permanent network-side failure

	m := testManifest(srv.URL, 1)
	paths := config.Paths{LocalDownloads: t.TempDir()}

	stats, err := testEngine(2).DownloadAll(context.Background(), m, paths, Scope{Quality: "both"})
	if err != nil {
		t.Fatalf("DownloadAll failed: %v", err)
	}

	snap := stats.Snapshot()
	if snap.Failed != 1 {
		t.Errorf("Failed = %d, want 1", snap.Failed)
	}
	if snap.VideosLow != 1 || snap.Thumbnails != 1 || snap.TagImages != 1 {
		t.Errorf("siblings should finish: %+v", snap)
	}
	if got := srv.requestCount("/highres_1.mp4"); got != 3 {
		t.Errorf("expected all 3 attempts, got %d", got)
	}
	if _, err := os.Stat(filepath.Join(paths.VideosDir(), "highres_1.mp4")); !os.IsNotExist(err) {
		t.Error("failed download should leave no file behind")
	}
}

func TestDownloadAllNotFoundFailsFast(t *testing.T) {
	srv := newAssetServer(t)
	srv.failPath("/thumb_1.jpg", -2) // 404

	m := testManifest(srv.URL, 1)
	paths := config.Paths{LocalDownloads: t.TempDir()}

	stats, err := testEngine(1).DownloadAll(context.Background(), m, paths, Scope{Quality: "both"})
	if err != nil {
		t.Fatalf("DownloadAll failed: %v", err)
	}

	if snap := stats.Snapshot(); snap.Failed != 1 {
		t.Errorf("Failed = %d, want 1", snap.Failed)
	}
	if got := srv.requestCount("/thumb_1.jpg"); got != 1 {
		t.Errorf("404 should not be retried, got %d attempts", got)
	}
}

func TestSequentialAndParallelProduceSameStats(t *testing.T) {
	srv := newAssetServer(t)
	srv.failPath("/highres_2.mp4", -1)

	m := testManifest(srv.URL, 3)

	run := func(concurrency int) progress.DownloadSnapshot {
		paths := config.Paths{LocalDownloads: t.TempDir()}
		stats, err := testEngine(concurrency).DownloadAll(context.Background(), m, paths, Scope{Quality: "both"})
		if err != nil {
			t.Fatalf("DownloadAll failed: %v", err)
		}
		// reset the permanent failure for the next run
		srv.failPath("/highres_2.mp4", -1)
		return stats.Snapshot()
	}

	seq := run(1)
	par := run(4)

	if seq.VideosHigh != par.VideosHigh || seq.VideosLow != par.VideosLow ||
		seq.Thumbnails != par.Thumbnails || seq.TagImages != par.TagImages ||
		seq.Failed != par.Failed || seq.Total != par.Total ||
		seq.Completed != par.Completed || seq.Bytes != par.Bytes {
		t.Errorf("sequential and parallel runs disagree:\nseq: %+v\npar: %+v", seq, par)
	}
}

func TestDownloadAllRejectsInvalidManifest(t *testing.T) {
	srv := newAssetServer(t)
	m := testManifest(srv.URL, 1)
	m.Videos[0].FileURL = "" // breaks validation

	_, err := testEngine(1).DownloadAll(context.Background(), m, config.Paths{LocalDownloads: t.TempDir()}, Scope{Quality: "both"})
	if !errors.Is(err, manifest.ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got: %v", err)
	}
	for path, n := range srv.requests {
		if n > 0 {
			t.Errorf("no request should fire before validation, saw %s", path)
		}
	}
}

func TestDownloadAllHonorsCancellation(t *testing.T) {
	srv := newAssetServer(t)
	m := testManifest(srv.URL, 2)
	paths := config.Paths{LocalDownloads: t.TempDir()}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := testEngine(2).DownloadAll(ctx, m, paths, Scope{Quality: "both"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got: %v", err)
	}
}

func TestWithRetryStopsOnPermanentError(t *testing.T) {
	calls := 0
	err := withRetry(context.Background(), "asset", 5, time.Millisecond, func() error {
		calls++
		return permanent(errors.New("404"))
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("permanent error retried %d times", calls)
	}
}
