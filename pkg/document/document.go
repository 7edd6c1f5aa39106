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

// Package document converts uploaded files to plain text for event
// extraction.
package document

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jbuican14/parentPal-06-16/pkg/config"
)

var (
	// ErrUnsupportedFormat is returned for file extensions without a parser.
	ErrUnsupportedFormat = errors.New("unsupported document format")

	// ErrTooLarge is returned when a document exceeds the size limit.
	ErrTooLarge = errors.New("document too large")
)

// Document is the text content of a parsed file.
type Document struct {
	Name     string            `json:"name"`
	Format   string            `json:"format"`
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// WordCount returns the number of whitespace separated words in the content.
func (d *Document) WordCount() int {
	return len(strings.Fields(d.Content))
}

// Parser extracts text from one family of formats.
type Parser interface {
	// Extensions lists the lower-case extensions handled, with the dot.
	Extensions() []string
	Parse(ctx context.Context, data []byte) (*Document, error)
}

// Registry picks a parser by file extension.
type Registry struct {
	mu      sync.RWMutex
	parsers map[string]Parser
	maxSize int64
}

// Option configures a Registry.
type Option func(*Registry)

// WithMaxSize sets the largest accepted document in bytes. Zero disables
// the limit.
func WithMaxSize(n int64) Option {
	return func(r *Registry) {
		r.maxSize = n
	}
}

// NewRegistry returns a registry with the built-in parsers.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		parsers: make(map[string]Parser),
		maxSize: config.DefaultMaxDocumentSize,
	}
	for _, opt := range opts {
		opt(r)
	}

	r.Register(&pdfParser{})
	r.Register(&wordParser{})
	r.Register(&excelParser{})
	r.Register(&htmlParser{})
	r.Register(&textParser{})
	return r
}

// NewFromConfig returns a registry limited to cfg.MaxSize.
func NewFromConfig(cfg *config.DocumentConfig) *Registry {
	if cfg == nil {
		return NewRegistry()
	}
	return NewRegistry(WithMaxSize(cfg.MaxSize))
}

// Register adds p, replacing any parser already bound to its extensions.
func (r *Registry) Register(p Parser) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ext := range p.Extensions() {
		r.parsers[strings.ToLower(ext)] = p
	}
}

// SupportedExtensions returns the registered extensions in sorted order.
func (r *Registry) SupportedExtensions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	exts := make([]string, 0, len(r.parsers))
	for ext := range r.parsers {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// Supports reports whether name has a registered extension.
func (r *Registry) Supports(name string) bool {
	_, ok := r.parser(name)
	return ok
}

func (r *Registry) parser(name string) (Parser, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.parsers[strings.ToLower(filepath.Ext(name))]
	return p, ok
}

// Parse extracts the text of data, choosing the parser from name's extension.
func (r *Registry) Parse(ctx context.Context, name string, data []byte) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ext := strings.ToLower(filepath.Ext(name))
	p, ok := r.parser(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	if r.maxSize > 0 && int64(len(data)) > r.maxSize {
		return nil, fmt.Errorf("%w: %d bytes exceeds limit of %d", ErrTooLarge, len(data), r.maxSize)
	}

	start := time.Now()
	doc, err := p.Parse(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(name), err)
	}

	doc.Name = filepath.Base(name)
	if doc.Metadata == nil {
		doc.Metadata = make(map[string]string)
	}
	doc.Metadata["size"] = fmt.Sprintf("%d", len(data))
	doc.Metadata["word_count"] = fmt.Sprintf("%d", doc.WordCount())

	slog.Debug("Parsed document", "name", doc.Name, "format", doc.Format,
		"bytes", len(data), "duration", time.Since(start))
	return doc, nil
}

var defaultRegistry = sync.OnceValue(func() *Registry { return NewRegistry() })

// Parse parses data with the default registry.
func Parse(ctx context.Context, name string, data []byte) (*Document, error) {
	return defaultRegistry().Parse(ctx, name, data)
}
