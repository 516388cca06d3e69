package catalog

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

const reloadDebounce = 200 * time.Millisecond

// Provider holds the current catalog and swaps it when the backing file
// changes.
type Provider struct {
	path string
	log  *slog.Logger
	cur  atomic.Pointer[Catalog]

	mu       sync.Mutex
	debounce *time.Timer
}

// NewProvider loads the catalog at path (built-in when empty).
func NewProvider(path string, log *slog.Logger) (*Provider, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}
	p := &Provider{path: path, log: log}
	p.cur.Store(c)
	return p, nil
}

// Static wraps a fixed catalog.
func Static(c *Catalog) *Provider {
	p := &Provider{log: slog.Default()}
	p.cur.Store(c)
	return p
}

// Current returns the active catalog.
func (p *Provider) Current() *Catalog {
	return p.cur.Load()
}

// Reload re-reads the catalog file. On error the previous catalog stays.
func (p *Provider) Reload() error {
	c, err := Load(p.path)
	if err != nil {
		return err
	}
	p.cur.Store(c)
	return nil
}

// Watch reloads the catalog whenever its file is written, until ctx is done.
// It returns immediately for the built-in catalog.
func (p *Provider) Watch(ctx context.Context) {
	if p.path == "" {
		return
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		p.log.Error("create catalog watcher", "error", err)
		return
	}
	defer func() { _ = watcher.Close() }()

	// Editors replace files on save, so watch the directory.
	if err := watcher.Add(filepath.Dir(p.path)); err != nil {
		p.log.Error("watch catalog directory", "path", p.path, "error", err)
		return
	}
	name := filepath.Base(p.path)

	for {
		select {
		case <-ctx.Done():
			p.stopDebounce()
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != name {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			p.scheduleReload()
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			p.log.Warn("catalog watcher", "error", err)
		}
	}
}

func (p *Provider) scheduleReload() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.debounce != nil {
		p.debounce.Stop()
	}
	p.debounce = time.AfterFunc(reloadDebounce, func() {
		if err := p.Reload(); err != nil {
			p.log.Warn("reload catalog, keeping previous", "path", p.path, "error", err)
			return
		}
		p.log.Info("catalog reloaded", "path", p.path, "categories", p.Current().Names())
	})
}

func (p *Provider) stopDebounce() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.debounce != nil {
		p.debounce.Stop()
	}
}
