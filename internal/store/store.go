package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"

	"tessera/internal/chunker"
)

func init() {
	sqlite_vec.Auto()
}

// Store provides persistence for indexed documents, chunks, and embeddings.
type Store interface {
	// GetDocumentHash returns the stored hash for a source, or "" if not indexed.
	GetDocumentHash(source string) (string, error)
	// UpsertDocument inserts or updates a document record and returns its ID.
	// It also deletes any existing chunks, embeddings, and FTS rows for the
	// document, so re-indexing never leaves stale fragments behind.
	UpsertDocument(d DocumentRecord) (int64, error)
	// InsertChunks persists chunks for a document and returns their row IDs.
	InsertChunks(documentID int64, chunks []chunker.Chunk) ([]int64, error)
	// InsertEmbeddings stores embeddings keyed by chunk row ID.
	InsertEmbeddings(chunkIDs []int64, embeddings [][]float32) error
	// Search finds the top-k chunks closest to the query embedding.
	Search(queryEmbedding []float32, k int) ([]SearchResult, error)
	// FTSSearch finds the top-k chunks by BM25 keyword relevance.
	FTSSearch(query string, k int) ([]SearchResult, error)
	// ListDocuments returns all indexed documents with chunk counts.
	ListDocuments() ([]DocumentSummary, error)
	// SetDocumentSummary stores a generated summary for a document.
	SetDocumentSummary(source, summary string) error
	// DocumentContent returns a document's chunk contents concatenated in
	// insertion order.
	DocumentContent(source string) (string, error)
	// ListSections returns section/chunk-type pairs for overview generation.
	ListSections() ([]SectionSummary, error)
	// GetMeta returns a metadata value by key, or "" if not set.
	GetMeta(key string) (string, error)
	// SetMeta sets a metadata key-value pair.
	SetMeta(key, value string) error
	// DeleteAll removes all documents, chunks, and embeddings.
	DeleteAll() error
	// Close closes the underlying database.
	Close() error
}

// SQLiteStore implements Store backed by SQLite with sqlite-vec and FTS5.
type SQLiteStore struct {
	db *sql.DB
}

// Open creates or opens a SQLite database at the given path and initializes the schema.
func Open(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := Init(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) GetDocumentHash(source string) (string, error) {
	var hash string
	err := s.db.QueryRow("SELECT hash FROM documents WHERE source = ?", source).Scan(&hash)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return hash, err
}

func (s *SQLiteStore) UpsertDocument(d DocumentRecord) (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var existingID int64
	err = tx.QueryRow("SELECT id FROM documents WHERE source = ?", d.Source).Scan(&existingID)
	if err == nil {
		if err := deleteDocumentChunks(tx, existingID); err != nil {
			return 0, err
		}
		_, err = tx.Exec(
			"UPDATE documents SET hash = ?, doc_type = ?, indexed_at = CURRENT_TIMESTAMP, size_bytes = ? WHERE id = ?",
			d.Hash, d.DocType, d.SizeBytes, existingID,
		)
		if err != nil {
			return 0, err
		}
		if err := tx.Commit(); err != nil {
			return 0, err
		}
		return existingID, nil
	}
	if err != sql.ErrNoRows {
		return 0, err
	}

	res, err := tx.Exec(
		"INSERT INTO documents (source, hash, doc_type, size_bytes) VALUES (?, ?, ?, ?)",
		d.Source, d.Hash, d.DocType, d.SizeBytes,
	)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return id, nil
}

// deleteDocumentChunks removes a document's chunks and their vector and FTS
// rows. The virtual tables have no foreign keys, so the cleanup is explicit.
func deleteDocumentChunks(tx *sql.Tx, documentID int64) error {
	rows, err := tx.Query("SELECT id FROM chunks WHERE document_id = ?", documentID)
	if err != nil {
		return err
	}
	var chunkIDs []int64
	for rows.Next() {
		var cid int64
		if err := rows.Scan(&cid); err != nil {
			rows.Close()
			return err
		}
		chunkIDs = append(chunkIDs, cid)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, cid := range chunkIDs {
		if _, err := tx.Exec("DELETE FROM vec_chunks WHERE chunk_id = ?", cid); err != nil {
			return err
		}
		if _, err := tx.Exec("DELETE FROM chunks_fts WHERE rowid = ?", cid); err != nil {
			return err
		}
	}
	_, err = tx.Exec("DELETE FROM chunks WHERE document_id = ?", documentID)
	return err
}

func (s *SQLiteStore) InsertChunks(documentID int64, chunks []chunker.Chunk) ([]int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		"INSERT INTO chunks (document_id, uuid, section, chunk_type, content, metadata) VALUES (?, ?, ?, ?, ?, ?)",
	)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	ftsStmt, err := tx.Prepare("INSERT INTO chunks_fts (rowid, content) VALUES (?, ?)")
	if err != nil {
		return nil, err
	}
	defer ftsStmt.Close()

	ids := make([]int64, 0, len(chunks))
	for _, c := range chunks {
		metaJSON, err := json.Marshal(c.Metadata)
		if err != nil {
			return nil, fmt.Errorf("marshal metadata for chunk %s: %w", c.ID, err)
		}
		chunkType, _ := c.Metadata["chunk_type"].(string)

		res, err := stmt.Exec(documentID, c.ID, string(c.Section), chunkType, c.Content, string(metaJSON))
		if err != nil {
			return nil, err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, err
		}
		if _, err := ftsStmt.Exec(id, c.Content); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *SQLiteStore) InsertEmbeddings(chunkIDs []int64, embeddings [][]float32) error {
	if len(chunkIDs) != len(embeddings) {
		return fmt.Errorf("mismatched chunk IDs (%d) and embeddings (%d)", len(chunkIDs), len(embeddings))
	}
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare("INSERT INTO vec_chunks (chunk_id, embedding) VALUES (?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, cid := range chunkIDs {
		blob, err := sqlite_vec.SerializeFloat32(embeddings[i])
		if err != nil {
			return fmt.Errorf("serialize embedding for chunk %d: %w", cid, err)
		}
		if _, err := stmt.Exec(cid, blob); err != nil {
			return fmt.Errorf("insert embedding for chunk %d: %w", cid, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) Search(queryEmbedding []float32, k int) ([]SearchResult, error) {
	blob, err := sqlite_vec.SerializeFloat32(queryEmbedding)
	if err != nil {
		return nil, fmt.Errorf("serialize query embedding: %w", err)
	}
	rows, err := s.db.Query(`
		SELECT v.chunk_id, v.distance, c.uuid, c.section, c.chunk_type, c.content, c.metadata,
		       d.source, d.doc_type
		FROM vec_chunks v
		JOIN chunks c ON c.id = v.chunk_id
		JOIN documents d ON d.id = c.document_id
		WHERE v.embedding MATCH ? AND v.k = ?
		ORDER BY v.distance
	`, blob, k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanResults(rows)
}

func (s *SQLiteStore) FTSSearch(query string, k int) ([]SearchResult, error) {
	rows, err := s.db.Query(`
		SELECT c.id, bm25(chunks_fts), c.uuid, c.section, c.chunk_type, c.content, c.metadata,
		       d.source, d.doc_type
		FROM chunks_fts
		JOIN chunks c ON c.id = chunks_fts.rowid
		JOIN documents d ON d.id = c.document_id
		WHERE chunks_fts MATCH ?
		ORDER BY bm25(chunks_fts)
		LIMIT ?
	`, query, k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanResults(rows)
}

func scanResults(rows *sql.Rows) ([]SearchResult, error) {
	var results []SearchResult
	for rows.Next() {
		var r SearchResult
		err := rows.Scan(
			&r.Chunk.ID, &r.Distance,
			&r.Chunk.UUID, &r.Chunk.Section, &r.Chunk.ChunkType,
			&r.Chunk.Content, &r.Chunk.Metadata,
			&r.Source, &r.DocType,
		)
		if err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

func (s *SQLiteStore) ListDocuments() ([]DocumentSummary, error) {
	rows, err := s.db.Query(`
		SELECT d.source, d.doc_type, d.summary, COUNT(c.id)
		FROM documents d
		LEFT JOIN chunks c ON c.document_id = d.id
		GROUP BY d.id
		ORDER BY d.source
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []DocumentSummary
	for rows.Next() {
		var d DocumentSummary
		if err := rows.Scan(&d.Source, &d.DocType, &d.Summary, &d.Chunks); err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

func (s *SQLiteStore) SetDocumentSummary(source, summary string) error {
	_, err := s.db.Exec("UPDATE documents SET summary = ? WHERE source = ?", summary, source)
	return err
}

func (s *SQLiteStore) DocumentContent(source string) (string, error) {
	rows, err := s.db.Query(`
		SELECT c.content
		FROM chunks c
		JOIN documents d ON d.id = c.document_id
		WHERE d.source = ?
		ORDER BY c.id
	`, source)
	if err != nil {
		return "", err
	}
	defer rows.Close()

	var content string
	for rows.Next() {
		var chunk string
		if err := rows.Scan(&chunk); err != nil {
			return "", err
		}
		if content != "" {
			content += "\n\n"
		}
		content += chunk
	}
	return content, rows.Err()
}

func (s *SQLiteStore) ListSections() ([]SectionSummary, error) {
	rows, err := s.db.Query(`
		SELECT c.section, c.chunk_type, d.source
		FROM chunks c
		JOIN documents d ON d.id = c.document_id
		ORDER BY d.source, c.id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sections []SectionSummary
	for rows.Next() {
		var sec SectionSummary
		if err := rows.Scan(&sec.Section, &sec.ChunkType, &sec.Source); err != nil {
			return nil, err
		}
		sections = append(sections, sec)
	}
	return sections, rows.Err()
}

func (s *SQLiteStore) GetMeta(key string) (string, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM meta WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

func (s *SQLiteStore) SetMeta(key, value string) error {
	_, err := s.db.Exec(
		"INSERT INTO meta (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value,
	)
	return err
}

func (s *SQLiteStore) DeleteAll() error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, table := range []string{"vec_chunks", "chunks_fts", "chunks", "documents"} {
		if _, err := tx.Exec("DELETE FROM " + table); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
