// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package provider

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Timings for the file watcher. Editors often save in several writes, so
// change signals are held for settleDelay before they fire.
const (
	settleDelay     = 100 * time.Millisecond
	reattachEvery   = 500 * time.Millisecond
	reattachRetries = 10
)

// FileProvider reads parentpal.yaml (or any YAML/JSON file) from disk and
// reports edits through Watch.
type FileProvider struct {
	path string

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	closed  bool
}

// NewFileProvider resolves path to an absolute location.
func NewFileProvider(path string) (*FileProvider, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path: %w", err)
	}
	return &FileProvider{path: abs}, nil
}

// Type returns TypeFile.
func (p *FileProvider) Type() Type {
	return TypeFile
}

// Path returns the absolute file path.
func (p *FileProvider) Path() string {
	return p.path
}

// Load reads the file.
func (p *FileProvider) Load(ctx context.Context) ([]byte, error) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", p.path, err)
	}
	return data, nil
}

// Watch signals on the returned channel whenever the file is written,
// recreated or restored after deletion. The channel closes when ctx ends.
func (p *FileProvider) Watch(ctx context.Context) (<-chan struct{}, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, fmt.Errorf("provider is closed")
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	// The directory is watched rather than the file so that atomic
	// rename-on-save keeps producing events.
	dir := filepath.Dir(p.path)
	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, fmt.Errorf("failed to watch directory %s: %w", dir, err)
	}
	p.watcher = w

	changes := make(chan struct{}, 1)
	go p.run(ctx, w, changes)

	slog.Info("Watching config file", "path", p.path)
	return changes, nil
}

func (p *FileProvider) run(ctx context.Context, w *fsnotify.Watcher, changes chan struct{}) {
	defer close(changes)
	defer w.Close()

	name := filepath.Base(p.path)
	var pending *time.Timer
	defer func() {
		if pending != nil {
			pending.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != name {
				continue
			}
			switch {
			case ev.Has(fsnotify.Write), ev.Has(fsnotify.Create):
				if pending != nil {
					pending.Stop()
				}
				pending = time.AfterFunc(settleDelay, func() { notify(changes) })
			case ev.Has(fsnotify.Remove):
				slog.Warn("Config file was deleted", "path", p.path)
				go p.reattach(ctx, w, changes)
			}

		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			slog.Error("File watcher error", "path", p.path, "error", err)
		}
	}
}

// reattach polls until the file reappears and then reports a change.
func (p *FileProvider) reattach(ctx context.Context, w *fsnotify.Watcher, changes chan struct{}) {
	ticker := time.NewTicker(reattachEvery)
	defer ticker.Stop()

	for range reattachRetries {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if _, err := os.Stat(p.path); err != nil {
			continue
		}
		if err := w.Add(filepath.Dir(p.path)); err != nil {
			continue
		}
		slog.Info("Config file restored", "path", p.path)
		notify(changes)
		return
	}
	slog.Warn("Config file did not reappear", "path", p.path)
}

// notify never blocks; one buffered signal is enough to trigger a reload.
func notify(changes chan struct{}) {
	defer func() { _ = recover() }() // channel may already be closed
	select {
	case changes <- struct{}{}:
	default:
	}
}

// Close stops the watcher.
func (p *FileProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closed = true
	if p.watcher == nil {
		return nil
	}
	err := p.watcher.Close()
	p.watcher = nil
	return err
}

var _ Provider = (*FileProvider)(nil)
