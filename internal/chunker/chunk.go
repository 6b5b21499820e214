package chunker

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// idNamespace is the fixed namespace for chunk UUIDs. It must never change:
// chunk IDs are pure functions of (source file, section key, index) under this
// namespace, and the vector index is keyed by them. Changing it would silently
// orphan every previously indexed chunk.
var idNamespace = uuid.MustParse("a1b2c3d4-e5f6-7890-abcd-ef1234567890")

// DocType identifies the document grammar a chunk came from.
type DocType string

const (
	DocSchema   DocType = "schema"
	DocWorkflow DocType = "workflow"
)

// Section is the structural role of a chunk within its parent document unit.
type Section string

const (
	SectionSummary     Section = "summary"
	SectionFields      Section = "fields"
	SectionLinks       Section = "links"
	SectionIndexes     Section = "indexes"
	SectionEnumeration Section = "enumeration"
	SectionMethod      Section = "method"
	SectionActivities  Section = "activities"
	SectionScript      Section = "script"
)

// Chunk is a retrieval-indexable document fragment. Chunks are terminal
// values: once emitted they carry no reference back to any parsing state.
type Chunk struct {
	ID         string
	Content    string
	DocType    DocType
	SourceFile string
	Section    Section
	// Metadata holds string/int/bool values; it always includes "chunk_type"
	// plus grammar-specific keys (internal_name, has_js, part, ...).
	Metadata map[string]any
}

// DeriveID returns the deterministic UUID for a chunk. Same inputs always
// produce the same ID, so re-indexing the same document upserts in place
// instead of duplicating vectors.
func DeriveID(sourceFile, sectionKey string, index int) string {
	name := fmt.Sprintf("%s:%s:%d", sourceFile, sectionKey, index)
	return uuid.NewSHA1(idNamespace, []byte(name)).String()
}

// ToMap flattens the chunk into a single mapping for index upserts.
// Metadata keys are merged at the top level; if one collides with a reserved
// field name the metadata value wins.
func (c Chunk) ToMap() map[string]any {
	m := map[string]any{
		"id":          c.ID,
		"content":     c.Content,
		"doc_type":    string(c.DocType),
		"source_file": c.SourceFile,
		"section":     string(c.Section),
	}
	for k, v := range c.Metadata {
		m[k] = v
	}
	return m
}

// Chunker turns one document into an ordered chunk list. Implementations are
// pure functions of their input: no shared mutable state, safe to call
// concurrently across documents.
type Chunker interface {
	// ChunkFile reads the file and chunks its content, using the base name
	// as the source identifier.
	ChunkFile(path string) ([]Chunk, error)
	// ChunkContent chunks raw markdown. Input with no recognizable units
	// yields an empty list, not an error.
	ChunkContent(content, sourceFile string) []Chunk
}

// readAndChunk is the shared ChunkFile implementation: file access is the
// only I/O in this package, and the chunk source name is the base name, not
// the path.
func readAndChunk(c Chunker, path string) ([]Chunk, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return c.ChunkContent(string(data), filepath.Base(path)), nil
}
