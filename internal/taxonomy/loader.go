package taxonomy

import (
	"context"
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
	"go.uber.org/zap"
)

// ParseYAML parses and compiles a table. Without an explicit version the
// table is versioned by a hash of its content so cached prototype vectors
// are invalidated on any edit.
func ParseYAML(content []byte) (*Table, error) {
	k := koanf.New(".")
	if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTable, err)
	}

	var t Table
	if err := k.Unmarshal("", &t); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTable, err)
	}
	if len(t.Rules) == 0 {
		t.Rules = DefaultTable().Rules
	}
	if t.Version == "" {
		h := fnv.New64a()
		_, _ = h.Write(content)
		t.Version = fmt.Sprintf("file-%x", h.Sum64())
	}
	if err := t.Compile(); err != nil {
		return nil, err
	}
	return &t, nil
}

// LoadFile reads a table from path.
func LoadFile(path string) (*Table, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading taxonomy file: %w", err)
	}
	return ParseYAML(content)
}

// Watcher holds the current table and reloads it when the file changes.
// Invalid edits are logged and the previous table stays in effect.
type Watcher struct {
	path    string
	current atomic.Pointer[Table]
	watcher *fsnotify.Watcher
	logger  *zap.Logger
	reloads atomic.Int64
}

// NewWatcher loads path and starts watching its directory. Editors often
// replace files rather than write in place, so the directory is watched.
func NewWatcher(path string, logger *zap.Logger) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving taxonomy path: %w", err)
	}
	t, err := LoadFile(abs)
	if err != nil {
		return nil, err
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("watching %s: %w", filepath.Dir(abs), err)
	}

	w := &Watcher{path: abs, watcher: fw, logger: logger}
	w.current.Store(t)
	return w, nil
}

// Current returns the table in effect.
func (w *Watcher) Current() *Table {
	return w.current.Load()
}

// Reloads returns the number of successful reloads.
func (w *Watcher) Reloads() int64 {
	return w.reloads.Load()
}

// Run processes file events until ctx is done or the watcher is closed.
func (w *Watcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) {
				w.reload()
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("taxonomy watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) reload() {
	t, err := LoadFile(w.path)
	if err != nil {
		w.logger.Warn("taxonomy reload rejected", zap.String("path", w.path), zap.Error(err))
		return
	}
	prev := w.current.Swap(t)
	w.reloads.Add(1)
	w.logger.Info("taxonomy reloaded",
		zap.String("path", w.path),
		zap.String("previous_version", prev.Version),
		zap.String("version", t.Version),
		zap.Int("categories", len(t.Categories)),
		zap.Int("rules", len(t.Rules)))
}

// Close stops watching.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
