// Package download is the concurrent asset download engine: it expands a
// manifest into download tasks, filters already-present files, and executes
// the rest with a bounded worker pool, per-task retry, and shared progress
// counters.
package download

import (
	"os"
	"path/filepath"

	"eldersvr-cli/internal/config"
	"eldersvr-cli/internal/manifest"
	"eldersvr-cli/internal/progress"
)

// Scope selects which task classes a run downloads.
type Scope struct {
	Quality    string // high, low, both
	ImagesOnly bool
}

// Task is one remote file to fetch.
type Task struct {
	URL       string
	LocalPath string
	Filename  string
	Category  progress.Category
}

// BuildTasks expands the manifest into the flat task list for a scope.
// For quality "both" every video yields three tasks (high, low, thumbnail);
// each tag with an image yields one more.
func BuildTasks(m *manifest.Manifest, paths config.Paths, scope Scope) []Task {
	videosDir := paths.VideosDir()
	imagesDir := paths.ImagesDir()

	var tasks []Task
	for _, v := range m.Videos {
		if !scope.ImagesOnly {
			if scope.Quality == "high" || scope.Quality == "both" {
				tasks = append(tasks, Task{
					URL:       v.FileURL,
					LocalPath: filepath.Join(videosDir, v.HighResName()),
					Filename:  v.HighResName(),
					Category:  progress.CategoryVideoHigh,
				})
			}
			if scope.Quality == "low" || scope.Quality == "both" {
				tasks = append(tasks, Task{
					URL:       v.FileURLLow,
					LocalPath: filepath.Join(videosDir, v.LowResName()),
					Filename:  v.LowResName(),
					Category:  progress.CategoryVideoLow,
				})
			}
		}
		tasks = append(tasks, Task{
			URL:       v.ThumbnailURL,
			LocalPath: filepath.Join(imagesDir, v.ThumbnailName()),
			Filename:  v.ThumbnailName(),
			Category:  progress.CategoryThumbnail,
		})
	}

	for _, tag := range m.Tags {
		if tag.ImageURL == "" {
			continue
		}
		name := tag.ImageName()
		tasks = append(tasks, Task{
			URL:       tag.ImageURL,
			LocalPath: filepath.Join(imagesDir, name),
			Filename:  name,
			Category:  progress.CategoryTagImage,
		})
	}

	return tasks
}

// PartitionExisting splits tasks into the execution list and the tasks whose
// local file already exists. The check runs once, up front; a skipped task is
// never attempted later even if its file disappears mid-run.
func PartitionExisting(tasks []Task) (pending, skipped []Task) {
	for _, t := range tasks {
		if _, err := os.Stat(t.LocalPath); err == nil {
			skipped = append(skipped, t)
			continue
		}
		pending = append(pending, t)
	}
	return pending, skipped
}
