// Package watch transcribes recordings as they appear in a directory.
package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/sync/errgroup"

	"github.com/houzhh15/wxscribe/cmd/wxscribe/internal/catalog"
)

// DefaultSettleInterval is the pause between the two size checks that
// decide a new file is complete.
const DefaultSettleInterval = 2 * time.Second

const queueSize = 100

// RunFunc transcribes one file and returns the process exit code of the run.
type RunFunc func(ctx context.Context, path string) int

// Watcher queues new supported files and runs them one at a time.
type Watcher struct {
	dir      string
	run      RunFunc
	logger   *slog.Logger
	interval time.Duration
	stat     func(string) (os.FileInfo, error)

	mu      sync.Mutex
	pending map[string]bool
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithSettleInterval overrides DefaultSettleInterval.
func WithSettleInterval(d time.Duration) Option {
	return func(w *Watcher) { w.interval = d }
}

// New returns a watcher for dir.
func New(dir string, run RunFunc, log *slog.Logger, opts ...Option) *Watcher {
	if log == nil {
		log = slog.Default()
	}
	w := &Watcher{
		dir:      dir,
		run:      run,
		logger:   log,
		interval: DefaultSettleInterval,
		stat:     os.Stat,
		pending:  make(map[string]bool),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Watch blocks until ctx is cancelled. Files already in the directory are
// ignored; only files created after the call are transcribed.
func (w *Watcher) Watch(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer fw.Close()
	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.dir, err)
	}
	w.logger.Info("watching for recordings", "path", w.dir)

	queue := make(chan string, queueSize)
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		for path := range queue {
			w.process(ctx, path)
		}
		return nil
	})

	g.Go(func() error {
		defer close(queue)
		for {
			select {
			case <-ctx.Done():
				return nil
			case event, ok := <-fw.Events:
				if !ok {
					return nil
				}
				w.handleEvent(event, queue)
			case err, ok := <-fw.Errors:
				if !ok {
					return nil
				}
				w.logger.Error("file watcher error", "error", err)
			}
		}
	})

	return g.Wait()
}

func (w *Watcher) handleEvent(event fsnotify.Event, queue chan<- string) {
	if !event.Has(fsnotify.Create) {
		return
	}
	name := filepath.Base(event.Name)
	if strings.HasPrefix(name, ".") || !catalog.IsSupported(name) {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.pending[event.Name] {
		return
	}
	select {
	case queue <- event.Name:
		w.pending[event.Name] = true
		w.logger.Info("queued new recording", "file", name)
	default:
		w.logger.Error("recording queue is full, skipping", "file", name)
	}
}

func (w *Watcher) process(ctx context.Context, path string) {
	defer func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()
	}()
	if ctx.Err() != nil {
		return
	}
	if err := w.waitStable(ctx, path); err != nil {
		if !errors.Is(err, context.Canceled) {
			w.logger.Warn("recording disappeared before it settled", "file", path, "error", err)
		}
		return
	}
	code := w.run(ctx, path)
	w.logger.Info("recording processed", "file", path, "exit_code", code)
}

// waitStable returns once two consecutive checks one interval apart see the
// same non-zero size.
func (w *Watcher) waitStable(ctx context.Context, path string) error {
	prev := int64(-1)
	for {
		info, err := w.stat(path)
		if err != nil {
			return err
		}
		if info.Size() > 0 && info.Size() == prev {
			return nil
		}
		prev = info.Size()

		t := time.NewTimer(w.interval)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}
