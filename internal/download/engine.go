package download

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"eldersvr-cli/internal/config"
	"eldersvr-cli/internal/events"
	"eldersvr-cli/internal/manifest"
	"eldersvr-cli/internal/progress"
	"eldersvr-cli/internal/util"
)

// Asset bodies are streamed to disk in fixed-size chunks so progress ticks
// even on large video files.
const chunkSize = 8192

const (
	DefaultConcurrency = 4
	DefaultAttempts    = 3
	DefaultRetryDelay  = 2 * time.Second
)

type Options struct {
	Concurrency int
	Attempts    int
	RetryDelay  time.Duration
	Ledger      *Ledger
	Client      *http.Client
}

// OptionsFromConfig translates the download config block into engine options.
func OptionsFromConfig(cfg config.Download, ledger *Ledger) Options {
	return Options{
		Concurrency: cfg.MaxConcurrency,
		Attempts:    cfg.RetryAttempts,
		RetryDelay:  time.Duration(cfg.RetryDelaySeconds) * time.Second,
		Ledger:      ledger,
	}
}

type Engine struct {
	client      *http.Client
	concurrency int
	attempts    int
	retryDelay  time.Duration
	ledger      *Ledger
}

func NewEngine(opts Options) *Engine {
	e := &Engine{
		client:      opts.Client,
		concurrency: opts.Concurrency,
		attempts:    opts.Attempts,
		retryDelay:  opts.RetryDelay,
		ledger:      opts.Ledger,
	}
	if e.concurrency < 1 {
		e.concurrency = DefaultConcurrency
	}
	if e.attempts < 1 {
		e.attempts = DefaultAttempts
	}
	if e.retryDelay <= 0 {
		e.retryDelay = DefaultRetryDelay
	}
	if e.client == nil {
		// No overall timeout: large videos stream for minutes. The header
		// timeout bounds a dead server instead.
		e.client = &http.Client{
			Transport: &http.Transport{
				DialContext:           (&net.Dialer{Timeout: 30 * time.Second}).DialContext,
				ResponseHeaderTimeout: 60 * time.Second,
			},
		}
	}
	return e
}

// DownloadAll validates the manifest, expands it into tasks for the scope,
// skips files already on disk, and runs the rest through the worker pool.
// Per-file failures land in the returned stats, never as an error; the error
// return is reserved for an invalid manifest or a cancelled context.
func (e *Engine) DownloadAll(ctx context.Context, m *manifest.Manifest, paths config.Paths, scope Scope) (*progress.DownloadStats, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}

	tasks := BuildTasks(m, paths, scope)
	pending, skipped := PartitionExisting(tasks)

	stats := progress.NewDownloadStats(len(pending))
	stats.MarkSkipped(len(skipped))
	for _, t := range skipped {
		util.Default.Printf("⏭️  Skipping %s (already downloaded)\n", t.Filename)
	}

	for _, dir := range []string{paths.VideosDir(), paths.ImagesDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create download directory %s: %v", dir, err)
		}
	}

	events.GlobalBus.Publish(events.EventDownloadStarted, stats, len(pending), len(skipped))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for _, task := range pending {
		if gCtx.Err() != nil {
			break
		}
		task := task
		g.Go(func() error {
			e.runTask(gCtx, task, stats)
			return gCtx.Err()
		})
	}
	err := g.Wait()

	snap := stats.Snapshot()
	events.GlobalBus.Publish(events.EventDownloadFinished, snap.Completed, snap.Failed, snap.Skipped)

	if err != nil {
		return stats, err
	}
	if ctx.Err() != nil {
		return stats, ctx.Err()
	}
	return stats, nil
}

// runTask drives one task to a terminal outcome and records it. Errors stay
// inside the stats so sibling tasks keep running.
func (e *Engine) runTask(ctx context.Context, task Task, stats *progress.DownloadStats) {
	err := withRetry(ctx, task.Filename, e.attempts, e.retryDelay, func() error {
		return e.fetch(ctx, task, stats)
	})
	if err != nil {
		stats.RecordFailure(task.Category)
		util.Default.Printf("❌ Failed to download %s: %v\n", task.Filename, err)
		events.GlobalBus.Publish(events.EventDownloadFileDone, task.Filename, false)
		return
	}

	stats.RecordSuccess(task.Category)
	if e.ledger != nil {
		if lerr := e.ledger.RecordDownload(task); lerr != nil {
			util.Default.Printf("⚠️  Ledger update failed for %s: %v\n", task.Filename, lerr)
		}
	}
	events.GlobalBus.Publish(events.EventDownloadFileDone, task.Filename, true)
}

// fetch streams one asset to <localPath>.part and renames it into place on
// success, so an interrupted download never masquerades as a finished file.
func (e *Engine) fetch(ctx context.Context, task Task, stats *progress.DownloadStats) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, task.URL, nil)
	if err != nil {
		return permanent(fmt.Errorf("bad url %s: %v", task.URL, err))
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		err := fmt.Errorf("server returned %s", resp.Status)
		if resp.StatusCode < 500 {
			return permanent(err)
		}
		return err
	}

	tmpPath := task.LocalPath + ".part"
	if err := os.MkdirAll(filepath.Dir(task.LocalPath), 0755); err != nil {
		return permanent(fmt.Errorf("failed to create directory: %v", err))
	}
	out, err := os.Create(tmpPath)
	if err != nil {
		return permanent(fmt.Errorf("failed to create %s: %v", tmpPath, err))
	}

	buf := make([]byte, chunkSize)
	for {
		if ctx.Err() != nil {
			out.Close()
			os.Remove(tmpPath)
			return ctx.Err()
		}
		n, rerr := resp.Body.Read(buf)
		if n > 0 {
			if _, werr := out.Write(buf[:n]); werr != nil {
				out.Close()
				os.Remove(tmpPath)
				return fmt.Errorf("write failed: %v", werr)
			}
			stats.AddBytes(int64(n))
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			out.Close()
			os.Remove(tmpPath)
			return fmt.Errorf("read failed: %v", rerr)
		}
	}

	if err := out.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close failed: %v", err)
	}
	if err := os.Rename(tmpPath, task.LocalPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename failed: %v", err)
	}
	return nil
}
