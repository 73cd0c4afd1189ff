// Package manifest defines the deployment manifest (new_data.json) consumed
// by the EldersVR mobile app, plus loading, saving, and validation.
package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// TimeFormat is the lastModified timestamp layout the mobile app expects.
const TimeFormat = "01/02/2006 15:04:05"

// ErrInvalid marks a manifest that fails structural validation. Engines treat
// it as fatal before any download or transfer starts.
var ErrInvalid = errors.New("invalid manifest")

// Manifest is the new_data.json structure in mobile app format.
type Manifest struct {
	LastModified string       `json:"lastModified"`
	Videos       []VideoAsset `json:"videos"`
	Tags         []TagAsset   `json:"tags"`
}

type VideoAsset struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	ThumbnailKey string   `json:"thumbnailKey"`
	ThumbnailURL string   `json:"thumbnailUrl"`
	FileKeyLow   string   `json:"fileKeyLow"`
	FileKey      string   `json:"fileKey"`
	FileURLLow   string   `json:"fileUrlLow"`
	FileURL      string   `json:"fileUrl"`
	IsActive     bool     `json:"isActive"`
	Tags         []string `json:"tags"`
}

type TagAsset struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	ImageURL string `json:"imageUrl,omitempty"`
}

// HighResName returns the local and on-device filename of the high quality
// video file.
func (v VideoAsset) HighResName() string { return path.Base(v.FileKey) }

// LowResName returns the filename of the low quality video file.
func (v VideoAsset) LowResName() string { return path.Base(v.FileKeyLow) }

// ThumbnailName returns the filename of the video thumbnail.
func (v VideoAsset) ThumbnailName() string { return path.Base(v.ThumbnailKey) }

// ImageName returns the tag image filename derived from its URL, or "" when
// the tag has no image.
func (t TagAsset) ImageName() string {
	if t.ImageURL == "" {
		return ""
	}
	if u, err := url.Parse(t.ImageURL); err == nil && u.Path != "" {
		return path.Base(u.Path)
	}
	return path.Base(t.ImageURL)
}

// Summary counts the files a full download of the manifest would fetch.
type Summary struct {
	TotalVideos     int // high + low quality
	TotalThumbnails int
	TotalTagImages  int
	EstimatedFiles  int
}

func (m *Manifest) Summarize() Summary {
	s := Summary{
		TotalVideos:     len(m.Videos) * 2,
		TotalThumbnails: len(m.Videos),
	}
	for _, tag := range m.Tags {
		if tag.ImageURL != "" {
			s.TotalTagImages++
		}
	}
	s.EstimatedFiles = s.TotalVideos + s.TotalThumbnails + s.TotalTagImages
	return s
}

// Validate checks the manifest structure and returns every issue found,
// wrapped in ErrInvalid, or nil when the manifest is usable.
func (m *Manifest) Validate() error {
	var issues []string

	if m.LastModified == "" {
		issues = append(issues, "missing lastModified")
	} else if _, err := time.Parse(TimeFormat, m.LastModified); err != nil {
		issues = append(issues, fmt.Sprintf("lastModified not in %s format: %s", "MM/DD/YYYY HH:MM:SS", m.LastModified))
	}

	seen := map[string]string{}
	claim := func(name, owner string) {
		if name == "" {
			return
		}
		if prev, ok := seen[name]; ok && prev != owner {
			issues = append(issues, fmt.Sprintf("filename collision: %s claimed by %s and %s", name, prev, owner))
			return
		}
		seen[name] = owner
	}

	for i, v := range m.Videos {
		label := fmt.Sprintf("video[%d]", i)
		if v.ID != "" {
			label = fmt.Sprintf("video %s", v.ID)
		}
		if v.ID == "" {
			issues = append(issues, fmt.Sprintf("%s: missing id", label))
		}
		if v.Title == "" {
			issues = append(issues, fmt.Sprintf("%s: missing title", label))
		}
		for _, f := range []struct{ field, value string }{
			{"fileKey", v.FileKey},
			{"fileUrl", v.FileURL},
			{"fileKeyLow", v.FileKeyLow},
			{"fileUrlLow", v.FileURLLow},
			{"thumbnailKey", v.ThumbnailKey},
			{"thumbnailUrl", v.ThumbnailURL},
		} {
			if f.value == "" {
				issues = append(issues, fmt.Sprintf("%s: missing %s", label, f.field))
			}
		}
		claim(v.HighResName(), label)
		claim(v.LowResName(), label)
		claim(v.ThumbnailName(), label)
	}

	for i, t := range m.Tags {
		if t.Name == "" {
			issues = append(issues, fmt.Sprintf("tag[%d]: missing name", i))
		}
		claim(t.ImageName(), fmt.Sprintf("tag %s", t.Name))
	}

	if len(issues) > 0 {
		return fmt.Errorf("%w:\n%s", ErrInvalid, strings.Join(issues, "\n"))
	}
	return nil
}

// Load reads and validates a manifest file.
func Load(filePath string) (*Manifest, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %v", err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Save writes the manifest as indented JSON, creating parent directories as
// needed.
func Save(m *Manifest, filePath string) error {
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return fmt.Errorf("failed to create manifest directory: %v", err)
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %v", err)
	}
	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %v", err)
	}
	return nil
}

// Stamp sets lastModified to now in the mobile app's timestamp format.
func (m *Manifest) Stamp() {
	m.LastModified = time.Now().Format(TimeFormat)
}
