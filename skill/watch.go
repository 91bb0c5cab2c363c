package skill

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads the registry when the bundle directory changes. Bursts of
// filesystem events (editors write several times per save) collapse into one
// reload via a debounce timer.
type Watcher struct {
	registry *Registry
	watcher  *fsnotify.Watcher
	debounce time.Duration
	stop     chan struct{}
}

// Watch starts watching the registry's bundle directory and its immediate
// subdirectories. Call Stop to release the watcher.
func (r *Registry) Watch(ctx context.Context) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create skill watcher: %w", err)
	}

	if err := fsw.Add(r.dir); err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("watch %s: %w", r.dir, err)
	}
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("read %s: %w", r.dir, err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			// Best effort; a vanished subdirectory is picked up on reload.
			_ = fsw.Add(filepath.Join(r.dir, entry.Name()))
		}
	}

	w := &Watcher{
		registry: r,
		watcher:  fsw,
		debounce: 250 * time.Millisecond,
		stop:     make(chan struct{}),
	}
	go w.run(ctx)
	return w, nil
}

// Stop stops the watcher and releases its resources.
func (w *Watcher) Stop() {
	select {
	case <-w.stop:
	default:
		close(w.stop)
		_ = w.watcher.Close()
	}
}

func (w *Watcher) run(ctx context.Context) {
	var timer *time.Timer
	var timerCh <-chan time.Time

	for {
		select {
		case <-w.stop:
			return
		case <-ctx.Done():
			w.Stop()
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = w.watcher.Add(event.Name)
				}
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			timerCh = timer.C
		case <-timerCh:
			timerCh = nil
			if err := w.registry.Reload(); err != nil {
				w.registry.logger.Warn("skill.reload_failed", "dir", w.registry.dir, "error", err)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.registry.logger.Warn("skill.watch_error", "dir", w.registry.dir, "error", err)
		}
	}
}
