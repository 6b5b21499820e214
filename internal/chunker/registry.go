package chunker

import (
	"path/filepath"
	"strings"
	"sync"
)

// DocSpec binds a document chunker to the filename patterns that select it.
type DocSpec struct {
	Chunker Chunker
	// Patterns are case-insensitive substrings matched against the base
	// name of a file (e.g. "workflow", "dictionnaire").
	Patterns []string
}

// Registry maps document types to their chunkers and routes files to them by
// name. It mirrors how the indexing pipeline decides what to do with each
// discovered markdown file.
type Registry struct {
	mu    sync.RWMutex
	specs map[DocType]*DocSpec
	order []DocType
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{specs: make(map[DocType]*DocSpec)}
}

// Register adds a chunker under the given document type. Registration order
// is lookup priority when patterns overlap.
func (r *Registry) Register(dt DocType, spec *DocSpec) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.specs[dt]; !ok {
		r.order = append(r.order, dt)
	}
	r.specs[dt] = spec
}

// Lookup returns the chunker for a file path based on its base name, or nil
// when no registered pattern matches (the caller skips the file).
func (r *Registry) Lookup(path string) (Chunker, DocType) {
	name := strings.ToLower(filepath.Base(path))
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, dt := range r.order {
		for _, p := range r.specs[dt].Patterns {
			if strings.Contains(name, p) {
				return r.specs[dt].Chunker, dt
			}
		}
	}
	return nil, ""
}

// DocTypeFor returns the document type for a file path, or "".
func (r *Registry) DocTypeFor(path string) DocType {
	_, dt := r.Lookup(path)
	return dt
}

// RegisterDefaults wires the two built-in grammars under their conventional
// file naming: data-dictionary exports and workflow exports.
func RegisterDefaults(r *Registry) {
	r.Register(DocSchema, &DocSpec{
		Chunker:  NewSchemaChunker(),
		Patterns: []string{"dictionnaire", "schema"},
	})
	r.Register(DocWorkflow, &DocSpec{
		Chunker:  NewWorkflowChunker(),
		Patterns: []string{"workflow"},
	})
}
