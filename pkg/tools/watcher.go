// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package tools

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultReloadDebounce is how long the file must be quiet before a reload.
const DefaultReloadDebounce = 250 * time.Millisecond

// WatchConfig configures a catalog file watcher.
type WatchConfig struct {
	Debounce time.Duration // Default: 250ms
	Logger   *zap.Logger

	// OnReload is called after every reload attempt with the new tool count
	// or the error that kept the previous catalog in place (optional).
	OnReload func(tools int, err error)
}

// Watcher reloads a catalog when its YAML file changes. A file that fails to
// read or parse leaves the current catalog untouched.
type Watcher struct {
	catalog  *Catalog
	path     string
	watcher  *fsnotify.Watcher
	debounce time.Duration
	logger   *zap.Logger
	onReload func(int, error)

	mu    sync.Mutex
	timer *time.Timer
}

// NewWatcher starts watching path for changes to feed into catalog. The
// parent directory is watched so editors that replace the file by rename
// are still seen. Call Run to process events.
func NewWatcher(catalog *Catalog, path string, cfg WatchConfig) (*Watcher, error) {
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultReloadDebounce
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve tool catalog path %s: %w", path, err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("failed to watch tool catalog directory: %w", err)
	}

	return &Watcher{
		catalog:  catalog,
		path:     abs,
		watcher:  fw,
		debounce: cfg.Debounce,
		logger:   cfg.Logger.With(zap.String("path", abs)),
		onReload: cfg.OnReload,
	}, nil
}

// Run processes file events until ctx is cancelled, then releases the watcher.
func (w *Watcher) Run(ctx context.Context) {
	defer func() {
		w.mu.Lock()
		if w.timer != nil {
			w.timer.Stop()
		}
		w.mu.Unlock()
		_ = w.watcher.Close()
	}()

	w.logger.Info("watching tool catalog")
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("tool catalog watcher error", zap.Error(err))

		case <-ctx.Done():
			return
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if filepath.Clean(event.Name) != w.path {
		return
	}
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
		return
	}

	// Editors write in bursts; reload once the file settles.
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.reload)
}

func (w *Watcher) reload() {
	n := 0
	loaded, err := LoadCatalog(w.path)
	if err != nil {
		w.logger.Warn("tool catalog reload failed, keeping previous tools", zap.Error(err))
	} else {
		w.catalog.Replace(loaded)
		n = loaded.Len()
		w.logger.Info("reloaded tool catalog", zap.Int("tools", n))
	}

	if w.onReload != nil {
		w.onReload(n, err)
	}
}
