// Package progress holds the shared counters both engines update while
// downloads and device transfers run. Renderers consume snapshots; nothing
// here prints.
package progress

import (
	"sort"
	"sync"
	"time"
)

// Category classifies a download task.
type Category string

const (
	CategoryVideoHigh Category = "video_high"
	CategoryVideoLow  Category = "video_low"
	CategoryThumbnail Category = "thumbnail"
	CategoryTagImage  Category = "tag_image"
)

// Status of one asset class on one device.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// DownloadStats aggregates download outcomes across the worker pool.
type DownloadStats struct {
	mu sync.Mutex

	counts    map[Category]int
	failed    int
	skipped   int
	total     int // post-filter task count
	completed int // terminal outcomes observed, success or failure

	bytes     int64
	rate      float64 // EWMA, bytes/sec
	lastTick  time.Time
	startTime time.Time
}

func NewDownloadStats(total int) *DownloadStats {
	return &DownloadStats{
		counts:    make(map[Category]int),
		total:     total,
		startTime: time.Now(),
	}
}

// MarkSkipped counts tasks removed up front because the local file already
// exists.
func (s *DownloadStats) MarkSkipped(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.skipped += n
}

// RecordSuccess tallies one finished download.
func (s *DownloadStats) RecordSuccess(cat Category) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts[cat]++
	s.completed++
}

// RecordFailure tallies one task that exhausted its retries.
func (s *DownloadStats) RecordFailure(cat Category) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failed++
	s.completed++
}

// AddBytes feeds the byte meter as chunks land on disk.
func (s *DownloadStats) AddBytes(n int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if !s.lastTick.IsZero() {
		dt := now.Sub(s.lastTick).Seconds()
		if dt > 0 {
			inst := float64(n) / dt
			if s.rate == 0 {
				s.rate = inst
			} else {
				s.rate = 0.3*inst + 0.7*s.rate
			}
		}
	}
	s.lastTick = now
	s.bytes += n
}

// DownloadSnapshot is a point-in-time copy safe to hand to renderers.
type DownloadSnapshot struct {
	VideosHigh int
	VideosLow  int
	Thumbnails int
	TagImages  int
	Failed     int
	Skipped    int
	Total      int
	Completed  int
	Bytes      int64
	Rate       float64
	Elapsed    time.Duration
}

func (s *DownloadStats) Snapshot() DownloadSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return DownloadSnapshot{
		VideosHigh: s.counts[CategoryVideoHigh],
		VideosLow:  s.counts[CategoryVideoLow],
		Thumbnails: s.counts[CategoryThumbnail],
		TagImages:  s.counts[CategoryTagImage],
		Failed:     s.failed,
		Skipped:    s.skipped,
		Total:      s.total,
		Completed:  s.completed,
		Bytes:      s.bytes,
		Rate:       s.rate,
		Elapsed:    time.Since(s.startTime),
	}
}

// Done reports whether every task in the execution list has a terminal
// outcome.
func (s *DownloadStats) Done() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.completed >= s.total
}

// ClassProgress tracks one asset class (json, videos, images) on one device.
type ClassProgress struct {
	Status    Status
	Current   int
	Total     int
	StartedAt time.Time
}

// DeviceSnapshot is one row of the transfer table.
type DeviceSnapshot struct {
	Serial string
	Name   string
	JSON   ClassProgress
	Videos ClassProgress
	Images ClassProgress
}

// TransferProgress is the per-device, per-class transfer table. All methods
// are safe for concurrent use.
type TransferProgress struct {
	mu      sync.Mutex
	devices map[string]*DeviceSnapshot
	order   []string

	onChange func()
}

func NewTransferProgress() *TransferProgress {
	return &TransferProgress{devices: make(map[string]*DeviceSnapshot)}
}

// OnChange registers a callback fired after every update. Used by live
// renderers; may be nil.
func (p *TransferProgress) OnChange(fn func()) {
	p.mu.Lock()
	p.onChange = fn
	p.mu.Unlock()
}

func (p *TransferProgress) AddDevice(serial, name string) {
	p.mu.Lock()
	defer p.unlockNotify()
	if _, ok := p.devices[serial]; ok {
		return
	}
	if name == "" {
		name = serial
	}
	p.devices[serial] = &DeviceSnapshot{
		Serial: serial,
		Name:   name,
		JSON:   ClassProgress{Status: StatusPending},
		Videos: ClassProgress{Status: StatusPending},
		Images: ClassProgress{Status: StatusPending},
	}
	p.order = append(p.order, serial)
}

func (p *TransferProgress) class(serial, class string) *ClassProgress {
	d, ok := p.devices[serial]
	if !ok {
		return nil
	}
	switch class {
	case "json":
		return &d.JSON
	case "videos":
		return &d.Videos
	case "images":
		return &d.Images
	}
	return nil
}

// SetStatus moves one class to a new status, stamping the start time on the
// first transition to in_progress.
func (p *TransferProgress) SetStatus(serial, class string, status Status) {
	p.mu.Lock()
	defer p.unlockNotify()
	c := p.class(serial, class)
	if c == nil {
		return
	}
	c.Status = status
	if status == StatusInProgress && c.StartedAt.IsZero() {
		c.StartedAt = time.Now()
	}
}

// SetProgress updates the (current, total) counter of one class. Called after
// every pushed file.
func (p *TransferProgress) SetProgress(serial, class string, current, total int) {
	p.mu.Lock()
	defer p.unlockNotify()
	c := p.class(serial, class)
	if c == nil {
		return
	}
	c.Current = current
	c.Total = total
	if c.Status == StatusPending {
		c.Status = StatusInProgress
	}
	if c.Status == StatusInProgress && c.StartedAt.IsZero() {
		c.StartedAt = time.Now()
	}
}

// unlockNotify releases the lock, then fires the change callback outside it.
func (p *TransferProgress) unlockNotify() {
	fn := p.onChange
	p.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// Snapshot returns the table rows in device-added order.
func (p *TransferProgress) Snapshot() []DeviceSnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	rows := make([]DeviceSnapshot, 0, len(p.order))
	for _, serial := range p.order {
		rows = append(rows, *p.devices[serial])
	}
	return rows
}

// Failed lists serials with any failed class, sorted for stable output.
func (p *TransferProgress) Failed() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for serial, d := range p.devices {
		if d.JSON.Status == StatusFailed || d.Videos.Status == StatusFailed || d.Images.Status == StatusFailed {
			out = append(out, serial)
		}
	}
	sort.Strings(out)
	return out
}
