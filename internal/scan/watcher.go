package scan

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/dusk-indust/mindgraph/internal/graph"
)

const defaultDebounce = 250 * time.Millisecond

// WatcherOptions configures a Watcher.
type WatcherOptions struct {
	// Debounce is how long to wait after the last event before applying a
	// batch of changes. Zero uses the default.
	Debounce time.Duration

	// OnApply, when non-nil, is called after each batch of changes has been
	// applied to the store. Typically used to persist the graph.
	OnApply func()
}

// Watcher keeps the graph in sync with the working tree. File events are
// debounced into batches; each batch is applied from a single goroutine so
// the store sees one writer. Directories excluded from scanning are not
// watched.
type Watcher struct {
	scanner  *Scanner
	store    *graph.Store
	logger   *zap.Logger
	fsw      *fsnotify.Watcher
	debounce time.Duration
	onApply  func()

	done     chan struct{}
	stopOnce sync.Once
}

// NewWatcher creates a Watcher driving the given scanner. Call Start to
// begin watching and Stop to shut down.
func NewWatcher(scanner *Scanner, store *graph.Store, logger *zap.Logger, opts WatcherOptions) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = defaultDebounce
	}

	return &Watcher{
		scanner:  scanner,
		store:    store,
		logger:   logger,
		fsw:      fsw,
		debounce: debounce,
		onApply:  opts.OnApply,
		done:     make(chan struct{}),
	}, nil
}

// Start registers the project tree with fsnotify and launches the event
// loop. It returns once watching is active.
func (w *Watcher) Start(ctx context.Context) error {
	root := w.store.ProjectRoot()
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if w.scanner.excludes[d.Name()] {
			return filepath.SkipDir
		}
		return w.fsw.Add(path)
	})
	if err != nil {
		return err
	}

	go w.loop(ctx)
	w.logger.Info("watching for changes", zap.String("root", root))
	return nil
}

// Stop shuts down the event loop. Safe to call more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.fsw.Close()
	})
}

func (w *Watcher) loop(ctx context.Context) {
	pending := make(map[string]fsnotify.Op)
	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if w.ignore(ev.Name) {
				continue
			}
			pending[ev.Name] |= ev.Op
			timer.Reset(w.debounce)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", zap.Error(err))

		case <-timer.C:
			w.applyBatch(ctx, pending)
			pending = make(map[string]fsnotify.Op)
		}
	}
}

// ignore filters events under excluded directories and for files no parser
// handles.
func (w *Watcher) ignore(path string) bool {
	rel, err := filepath.Rel(w.store.ProjectRoot(), path)
	if err != nil {
		return true
	}
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		if w.scanner.excludes[part] {
			return true
		}
	}

	info, err := os.Stat(path)
	if err == nil && info.IsDir() {
		return false // keep directory events for watch registration
	}
	_, ok := ExtToLanguage[filepath.Ext(path)]
	return !ok
}

// applyBatch replays one debounced batch of events against the store.
func (w *Watcher) applyBatch(ctx context.Context, pending map[string]fsnotify.Op) {
	if len(pending) == 0 {
		return
	}
	root := w.store.ProjectRoot()
	changed := 0

	for path, op := range pending {
		rel, err := filepath.Rel(root, path)
		if err != nil {
			continue
		}
		rel = filepath.ToSlash(rel)

		if op&(fsnotify.Remove|fsnotify.Rename) != 0 {
			w.scanner.RemoveFile(rel)
			changed++
			continue
		}

		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		if info.IsDir() {
			if op&fsnotify.Create != 0 {
				if err := w.fsw.Add(path); err != nil {
					w.logger.Warn("cannot watch new directory", zap.String("path", rel), zap.Error(err))
				}
			}
			continue
		}

		if err := w.scanner.ScanFile(ctx, rel); err != nil {
			w.logger.Warn("incremental scan failed", zap.String("path", rel), zap.Error(err))
			continue
		}
		changed++
	}

	if changed == 0 {
		return
	}
	w.store.SetLastScan(time.Now())
	w.logger.Info("applied file changes", zap.Int("files", changed))
	if w.onApply != nil {
		w.onApply()
	}
}
