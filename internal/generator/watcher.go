package generator

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
	"github.com/yourorg/testgen/pkg/types"
)

// inputFiles are the per-surface files whose changes trigger a rerun.
// scenarios.txt is excluded since the generator writes it.
var inputFiles = map[string]bool{
	"requirements.txt": true,
	"swagger.yaml":     true,
}

// Watcher reports surfaces whose input files changed, debounced.
type Watcher struct {
	apisDir  string
	include  string
	debounce time.Duration
	logger   *slog.Logger
	fsw      *fsnotify.Watcher

	pendingMu sync.Mutex
	pending   map[string]struct{}

	changes chan string
}

// NewWatcher creates a watcher over apisDir. Only surfaces matching include
// are reported.
func NewWatcher(apisDir, include string, debounce time.Duration, logger *slog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = discardLogger
	}
	if include == "" {
		include = "*"
	}
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}
	return &Watcher{
		apisDir:  apisDir,
		include:  include,
		debounce: debounce,
		logger:   logger,
		fsw:      fsw,
		pending:  make(map[string]struct{}),
		changes:  make(chan string, 64),
	}, nil
}

// Changes delivers surface names. It is closed when the watcher stops.
func (w *Watcher) Changes() <-chan string {
	return w.changes
}

// Start watches apisDir and every surface directory below it.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.fsw.Add(w.apisDir); err != nil {
		return err
	}
	entries, err := os.ReadDir(w.apisDir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() {
			w.addSurfaceDir(filepath.Join(w.apisDir, e.Name()))
		}
	}
	go w.loop(ctx)
	w.logger.Info("watching surfaces", "apis_dir", w.apisDir, "include", w.include, "debounce", w.debounce)
	return nil
}

// Stop closes the underlying fsnotify watcher.
func (w *Watcher) Stop() error {
	return w.fsw.Close()
}

func (w *Watcher) addSurfaceDir(dir string) {
	if err := w.fsw.Add(dir); err != nil {
		w.logger.Warn("watch surface dir", "path", dir, "err", err)
		return
	}
	w.logger.Debug("watching surface dir", "path", dir)
}

func (w *Watcher) loop(ctx context.Context) {
	defer close(w.changes)
	ticker := time.NewTicker(w.debounce)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Error("watcher error", "err", err)
		case <-ticker.C:
			w.flush(ctx)
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	if filepath.Dir(ev.Name) == filepath.Clean(w.apisDir) {
		if ev.Has(fsnotify.Create) {
			if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
				w.addSurfaceDir(ev.Name)
			}
		}
		return
	}
	name, ok := w.surfaceOf(ev.Name)
	if !ok || (ev.Has(fsnotify.Chmod) && !ev.Has(fsnotify.Write)) {
		return
	}
	w.pendingMu.Lock()
	w.pending[name] = struct{}{}
	w.pendingMu.Unlock()
}

// surfaceOf maps an input file path to its surface name.
func (w *Watcher) surfaceOf(path string) (string, bool) {
	if !inputFiles[filepath.Base(path)] {
		return "", false
	}
	dir := filepath.Dir(path)
	if filepath.Dir(dir) != filepath.Clean(w.apisDir) {
		return "", false
	}
	name := filepath.Base(dir)
	ok, err := doublestar.Match(w.include, name)
	return name, err == nil && ok
}

func (w *Watcher) flush(ctx context.Context) {
	w.pendingMu.Lock()
	if len(w.pending) == 0 {
		w.pendingMu.Unlock()
		return
	}
	names := make([]string, 0, len(w.pending))
	for n := range w.pending {
		names = append(names, n)
	}
	w.pending = make(map[string]struct{})
	w.pendingMu.Unlock()

	sort.Strings(names)
	for _, n := range names {
		select {
		case w.changes <- n:
		case <-ctx.Done():
			return
		}
	}
}

// Watch reruns the generate stage for every surface w reports until ctx is
// done or the watcher stops.
func (g *Generator) Watch(ctx context.Context, w *Watcher, opts Options) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case name, ok := <-w.Changes():
			if !ok {
				return nil
			}
			s, err := Lookup(g.Config.Paths.APIsDir, name)
			if err != nil {
				g.logger().Warn("lookup surface", "surface", name, "err", err)
				continue
			}
			g.logger().Info("inputs changed", "surface", name)
			g.RunSurface(ctx, s, types.StageGenerate, opts)
		}
	}
}
