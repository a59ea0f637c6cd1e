package capture

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"

	"github.com/fridgekeep/fridgekeep/agent/internal/config"
	"github.com/fridgekeep/fridgekeep/pkg/types"
)

// Watcher emits a types.RegisterRequest for every capture file in its spool dirs.
type Watcher struct {
	dirs     []string
	exts     map[string]struct{}
	strategy string
	newUUID  func() string // injectable for tests

	mu    sync.Mutex
	owner string
	seen  map[string]struct{}
}

// New builds a Watcher from the agent config.
func New(cfg config.AgentConfig) *Watcher {
	exts := make(map[string]struct{}, len(cfg.Extensions))
	for _, e := range cfg.Extensions {
		exts[strings.ToLower(e)] = struct{}{}
	}
	return &Watcher{
		dirs:     cfg.SpoolDirs,
		exts:     exts,
		strategy: cfg.IDStrategy,
		newUUID:  uuid.NewString,
		owner:    cfg.OwnerID,
		seen:     make(map[string]struct{}),
	}
}

// SetOwner changes the owner recorded on requests emitted from now on.
func (w *Watcher) SetOwner(owner string) {
	w.mu.Lock()
	w.owner = owner
	w.mu.Unlock()
}

// Run emits requests for existing files, then watches for new ones until ctx
// is cancelled. emit is called from the Run goroutine only.
func (w *Watcher) Run(ctx context.Context, emit func(types.RegisterRequest)) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("capture: new watcher: %w", err)
	}
	defer fw.Close()

	// Subscribe before the initial scan so nothing written in between is missed.
	for _, dir := range w.dirs {
		if err := fw.Add(dir); err != nil {
			return fmt.Errorf("capture: watch %q: %w", dir, err)
		}
	}
	for _, dir := range w.dirs {
		w.scan(dir, emit)
	}
	slog.Info("capture: watching spool dirs", "dirs", w.dirs)

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			switch {
			case ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename):
				w.forget(ev.Name)
			case ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write):
				w.consider(ev.Name, emit)
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			slog.Error("capture: watcher error", "err", err)
		}
	}
}

func (w *Watcher) scan(dir string, emit func(types.RegisterRequest)) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		slog.Error("capture: initial scan failed", "dir", dir, "err", err)
		return
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		w.consider(filepath.Join(dir, e.Name()), emit)
	}
}

// consider emits a request for path if it is a matching regular file not yet seen.
func (w *Watcher) consider(path string, emit func(types.RegisterRequest)) {
	if !w.matches(path) {
		return
	}
	fi, err := os.Stat(path)
	if err != nil || !fi.Mode().IsRegular() {
		return
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}

	w.mu.Lock()
	if _, dup := w.seen[abs]; dup {
		w.mu.Unlock()
		return
	}
	w.seen[abs] = struct{}{}
	owner := w.owner
	w.mu.Unlock()

	req := types.RegisterRequest{ID: w.idFor(abs), OwnerID: owner, Location: abs}
	slog.Debug("capture: new file", "id", req.ID, "location", abs)
	emit(req)
}

func (w *Watcher) forget(path string) {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	w.mu.Lock()
	delete(w.seen, abs)
	w.mu.Unlock()
}

func (w *Watcher) matches(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return false
	}
	_, ok := w.exts[strings.ToLower(filepath.Ext(base))]
	return ok
}

func (w *Watcher) idFor(path string) string {
	if w.strategy == "uuid" {
		return w.newUUID()
	}
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
