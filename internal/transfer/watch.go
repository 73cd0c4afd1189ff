package transfer

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/rjeczalik/notify"
	"github.com/romdo/go-debounce"

	"eldersvr-cli/internal/events"
	"eldersvr-cli/internal/util"
)

const defaultWatchWait = 2 * time.Second

// Watcher hands batches of changed paths to onChange whenever the local
// downloads tree settles. Filesystem events are debounced so one download
// burst triggers one run, and runs are serialized on the watch loop.
type Watcher struct {
	dir      string
	wait     time.Duration
	onChange func(context.Context, []string)
}

func NewWatcher(dir string, wait time.Duration, onChange func(context.Context, []string)) *Watcher {
	if wait <= 0 {
		wait = defaultWatchWait
	}
	return &Watcher{dir: dir, wait: wait, onChange: onChange}
}

func (w *Watcher) Run(ctx context.Context) error {
	fsEvents := make(chan notify.EventInfo, 100)
	if err := notify.Watch(filepath.Join(w.dir, "..."), fsEvents, notify.All); err != nil {
		return fmt.Errorf("cannot watch %s: %v", w.dir, err)
	}
	defer notify.Stop(fsEvents)

	runCh := make(chan struct{}, 1)
	trigger, cancelDebounce := debounce.New(w.wait, func() {
		select {
		case runCh <- struct{}{}:
		default:
		}
	})
	defer cancelDebounce()

	events.GlobalBus.Publish(events.EventWatcherStarted, w.dir)
	defer events.GlobalBus.Publish(events.EventWatcherStopped, w.dir)
	util.Default.Printf("👀 Watching %s for changes (Ctrl+C to stop)...\n", w.dir)

	// Changed paths accumulate between runs; the batch is snapshot and
	// cleared when the debounce fires. Single goroutine, no locking.
	var pending []string
	seen := map[string]bool{}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-fsEvents:
			if relevantChange(ev.Path()) {
				if !seen[ev.Path()] {
					seen[ev.Path()] = true
					pending = append(pending, ev.Path())
				}
				trigger()
			}
		case <-runCh:
			batch := pending
			pending = nil
			seen = map[string]bool{}
			w.onChange(ctx, batch)
			if ctx.Err() == nil {
				util.Default.Printf("👀 Watching %s for changes (Ctrl+C to stop)...\n", w.dir)
			}
		}
	}
}

// relevantChange filters out partial downloads and dotfiles so a transfer
// never fires off half-written content.
func relevantChange(p string) bool {
	base := filepath.Base(p)
	if strings.HasPrefix(base, ".") || strings.HasSuffix(base, ".part") {
		return false
	}
	return true
}
