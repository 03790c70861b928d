// Package watch turns newly written video files in the input directories
// into batches. A file is handed over once no create or write event has
// been seen for it during the settle delay, so copies in progress are not
// picked up half-written.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/hashicorp/go-hclog"
)

// DefaultSettle is the quiet period used when Options.Settle is zero.
const DefaultSettle = 2 * time.Second

// Options configures a Watcher.
type Options struct {
	Dirs      []string
	Recursive bool
	Match     func(path string) bool // nil accepts every file
	Settle    time.Duration
	Logger    hclog.Logger
}

// Watcher watches directories for settled files.
type Watcher struct {
	fw     *fsnotify.Watcher
	opts   Options
	log    hclog.Logger
	settle time.Duration
}

// New starts watching opts.Dirs (and, with Recursive, every subdirectory).
func New(opts Options) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	w := &Watcher{fw: fw, opts: opts, log: opts.Logger, settle: opts.Settle}
	if w.log == nil {
		w.log = hclog.NewNullLogger()
	}
	if w.settle <= 0 {
		w.settle = DefaultSettle
	}
	for _, d := range opts.Dirs {
		if err := w.addDir(d); err != nil {
			fw.Close()
			return nil, err
		}
	}
	return w, nil
}

func (w *Watcher) addDir(dir string) error {
	if !w.opts.Recursive {
		return w.fw.Add(dir)
	}
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.fw.Add(path)
		}
		return nil
	})
}

// Run delivers settled files to handle, sorted, until ctx is cancelled. handle
// runs on Run's goroutine; events arriving meanwhile are processed after
// it returns. The watcher is closed when Run returns.
func (w *Watcher) Run(ctx context.Context, handle func(ctx context.Context, files []string)) error {
	defer w.fw.Close()

	tick := w.settle / 4
	if tick < 20*time.Millisecond {
		tick = 20 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	pending := make(map[string]time.Time) // path -> last event
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.fw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(ev, pending, time.Now())
		case err, ok := <-w.fw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("file watcher error", "error", err)
		case now := <-ticker.C:
			if ready := settled(pending, now, w.settle); len(ready) > 0 {
				w.log.Debug("files settled", "count", len(ready))
				handle(ctx, ready)
			}
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event, pending map[string]time.Time, now time.Time) {
	switch {
	case ev.Op&fsnotify.Create == fsnotify.Create:
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if w.opts.Recursive {
				if err := w.addDir(ev.Name); err != nil {
					w.log.Error("failed to watch new directory", "path", ev.Name, "error", err)
				}
			}
			return
		}
		fallthrough
	case ev.Op&fsnotify.Write == fsnotify.Write:
		if w.opts.Match == nil || w.opts.Match(ev.Name) {
			pending[ev.Name] = now
		}
	case ev.Op&fsnotify.Remove == fsnotify.Remove, ev.Op&fsnotify.Rename == fsnotify.Rename:
		delete(pending, ev.Name)
	}
}

// settled removes and returns the pending paths quiet for at least settle.
func settled(pending map[string]time.Time, now time.Time, settle time.Duration) []string {
	var ready []string
	for p, last := range pending {
		if now.Sub(last) >= settle {
			ready = append(ready, p)
			delete(pending, p)
		}
	}
	sort.Strings(ready)
	return ready
}
