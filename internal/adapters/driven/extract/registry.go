// Package extract selects a page extractor for a document by file extension.
//
// Extractors are registered with the Registry at startup. Each one turns raw
// bytes into ordered pages of text for the chunking stage.
package extract

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/custodia-labs/pagewise/internal/adapters/driven/extract/docx"
	"github.com/custodia-labs/pagewise/internal/adapters/driven/extract/html"
	"github.com/custodia-labs/pagewise/internal/adapters/driven/extract/markdown"
	"github.com/custodia-labs/pagewise/internal/adapters/driven/extract/pdf"
	"github.com/custodia-labs/pagewise/internal/adapters/driven/extract/plaintext"
	"github.com/custodia-labs/pagewise/internal/core/domain"
	"github.com/custodia-labs/pagewise/internal/core/ports/driven"
)

// Verify interface compliance.
var _ driven.ExtractorRegistry = (*Registry)(nil)

// Registry maps file extensions to extractors.
type Registry struct {
	mu         sync.RWMutex
	extractors map[string]driven.Extractor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{extractors: make(map[string]driven.Extractor)}
}

// NewDefaultRegistry creates a registry with every built-in extractor.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(pdf.New())
	r.Register(plaintext.New())
	r.Register(markdown.New())
	r.Register(html.New())
	r.Register(docx.New())
	return r
}

// Register adds an extractor for each of its extensions, replacing any
// extractor previously registered for the same extension.
func (r *Registry) Register(e driven.Extractor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ext := range e.Extensions() {
		r.extractors[strings.ToLower(ext)] = e
	}
}

// Get returns the extractor for the filename's extension.
func (r *Registry) Get(filename string) (driven.Extractor, error) {
	ext := strings.ToLower(filepath.Ext(filename))

	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.extractors[ext]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnsupportedFormat, filename)
	}
	return e, nil
}

// Extensions returns the registered extensions, sorted.
func (r *Registry) Extensions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	exts := make([]string, 0, len(r.extractors))
	for ext := range r.extractors {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// Supports returns true if an extractor is registered for the filename.
func (r *Registry) Supports(filename string) bool {
	_, err := r.Get(filename)
	return err == nil
}
