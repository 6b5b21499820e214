package store

import "time"

// DocumentRecord represents an indexed markdown document.
type DocumentRecord struct {
	ID        int64
	Source    string
	Hash      string
	DocType   string
	IndexedAt time.Time
	SizeBytes int64
	Summary   string
}

// Chunk is a persisted document fragment. UUID is the deterministic chunk
// identity; Metadata is the chunk's metadata map serialized as JSON.
type Chunk struct {
	ID         int64
	DocumentID int64
	UUID       string
	Section    string
	ChunkType  string
	Content    string
	Metadata   string
}

// DocumentSummary is a lightweight document record for listings and overview
// generation.
type DocumentSummary struct {
	Source  string
	DocType string
	Chunks  int
	Summary string
}

// SectionSummary is a lightweight chunk record for overview generation.
type SectionSummary struct {
	Section   string
	ChunkType string
	Source    string
}

// SearchResult is a chunk with its similarity score and originating document.
type SearchResult struct {
	Chunk    Chunk
	Source   string
	DocType  string
	Distance float64
}
