package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tessera/internal/chunker"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	st, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func testChunks(source string) []chunker.Chunk {
	return []chunker.Chunk{
		{
			ID:         chunker.DeriveID(source, "recipient_summary", 0),
			Content:    "# Schema: Destinataires\n\n**Nom interne**: `nms:recipient`",
			DocType:    chunker.DocSchema,
			SourceFile: source,
			Section:    chunker.SectionSummary,
			Metadata:   map[string]any{"chunk_type": "summary", "internal_name": "recipient"},
		},
		{
			ID:         chunker.DeriveID(source, "recipient_fields", 0),
			Content:    "### Champs du schema `nms:recipient`\n\n| `email` | string | 255 |",
			DocType:    chunker.DocSchema,
			SourceFile: source,
			Section:    chunker.SectionFields,
			Metadata:   map[string]any{"chunk_type": "fields", "internal_name": "recipient"},
		},
	}
}

func makeVec(hot int) []float32 {
	v := make([]float32, 768)
	v[hot] = 1.0
	return v
}

func TestMetaRoundTrip(t *testing.T) {
	st := openTestStore(t)

	val, err := st.GetMeta("embedding_model")
	require.NoError(t, err)
	assert.Equal(t, "", val)

	require.NoError(t, st.SetMeta("embedding_model", "nomic-embed-text"))
	val, err = st.GetMeta("embedding_model")
	require.NoError(t, err)
	assert.Equal(t, "nomic-embed-text", val)

	// Upsert semantics.
	require.NoError(t, st.SetMeta("embedding_model", "other-model"))
	val, err = st.GetMeta("embedding_model")
	require.NoError(t, err)
	assert.Equal(t, "other-model", val)
}

func TestUpsertDocument(t *testing.T) {
	st := openTestStore(t)

	hash, err := st.GetDocumentHash("dict.md")
	require.NoError(t, err)
	assert.Equal(t, "", hash)

	id, err := st.UpsertDocument(DocumentRecord{
		Source: "dict.md", Hash: "aaa", DocType: "schema", SizeBytes: 1024,
	})
	require.NoError(t, err)

	hash, err = st.GetDocumentHash("dict.md")
	require.NoError(t, err)
	assert.Equal(t, "aaa", hash)

	// Re-upserting the same source keeps the row ID and updates the hash.
	id2, err := st.UpsertDocument(DocumentRecord{
		Source: "dict.md", Hash: "bbb", DocType: "schema", SizeBytes: 2048,
	})
	require.NoError(t, err)
	assert.Equal(t, id, id2)

	hash, err = st.GetDocumentHash("dict.md")
	require.NoError(t, err)
	assert.Equal(t, "bbb", hash)
}

func TestReindexClearsOldChunks(t *testing.T) {
	st := openTestStore(t)

	docID, err := st.UpsertDocument(DocumentRecord{Source: "dict.md", Hash: "v1", DocType: "schema"})
	require.NoError(t, err)
	_, err = st.InsertChunks(docID, testChunks("dict.md"))
	require.NoError(t, err)

	docs, err := st.ListDocuments()
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, 2, docs[0].Chunks)

	// Re-upsert drops the previous chunks before new ones arrive.
	docID2, err := st.UpsertDocument(DocumentRecord{Source: "dict.md", Hash: "v2", DocType: "schema"})
	require.NoError(t, err)
	assert.Equal(t, docID, docID2)

	docs, err = st.ListDocuments()
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, 0, docs[0].Chunks)
}

func TestFTSSearch(t *testing.T) {
	st := openTestStore(t)

	docID, err := st.UpsertDocument(DocumentRecord{Source: "dict.md", Hash: "h", DocType: "schema"})
	require.NoError(t, err)
	_, err = st.InsertChunks(docID, testChunks("dict.md"))
	require.NoError(t, err)

	results, err := st.FTSSearch("Champs", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "fields", results[0].Chunk.ChunkType)
	assert.Equal(t, "dict.md", results[0].Source)
	assert.Equal(t, "schema", results[0].DocType)
	assert.Contains(t, results[0].Chunk.Metadata, "internal_name")

	results, err = st.FTSSearch("Destinataires", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "summary", results[0].Chunk.ChunkType)

	results, err = st.FTSSearch("absent", 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestVectorSearch(t *testing.T) {
	st := openTestStore(t)

	docID, err := st.UpsertDocument(DocumentRecord{Source: "dict.md", Hash: "h", DocType: "schema"})
	require.NoError(t, err)
	chunkIDs, err := st.InsertChunks(docID, testChunks("dict.md"))
	require.NoError(t, err)
	require.Len(t, chunkIDs, 2)

	err = st.InsertEmbeddings(chunkIDs, [][]float32{makeVec(0), makeVec(1)})
	require.NoError(t, err)

	// A query on the first basis direction must rank the first chunk closest.
	results, err := st.Search(makeVec(0), 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "summary", results[0].Chunk.ChunkType)
	assert.Less(t, results[0].Distance, results[1].Distance)
}

func TestInsertEmbeddingsMismatch(t *testing.T) {
	st := openTestStore(t)
	err := st.InsertEmbeddings([]int64{1, 2}, [][]float32{makeVec(0)})
	assert.Error(t, err)
}

func TestDocumentContentAndSections(t *testing.T) {
	st := openTestStore(t)

	docID, err := st.UpsertDocument(DocumentRecord{Source: "dict.md", Hash: "h", DocType: "schema"})
	require.NoError(t, err)
	_, err = st.InsertChunks(docID, testChunks("dict.md"))
	require.NoError(t, err)

	content, err := st.DocumentContent("dict.md")
	require.NoError(t, err)
	assert.Contains(t, content, "# Schema: Destinataires")
	assert.Contains(t, content, "### Champs du schema")

	sections, err := st.ListSections()
	require.NoError(t, err)
	require.Len(t, sections, 2)
	assert.Equal(t, "summary", sections[0].Section)
	assert.Equal(t, "fields", sections[1].Section)
	assert.Equal(t, "dict.md", sections[0].Source)
}

func TestDocumentSummary(t *testing.T) {
	st := openTestStore(t)

	_, err := st.UpsertDocument(DocumentRecord{Source: "dict.md", Hash: "h", DocType: "schema"})
	require.NoError(t, err)

	require.NoError(t, st.SetDocumentSummary("dict.md", "Dictionary of recipient schemas."))

	docs, err := st.ListDocuments()
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "Dictionary of recipient schemas.", docs[0].Summary)
}

func TestDeleteAll(t *testing.T) {
	st := openTestStore(t)

	docID, err := st.UpsertDocument(DocumentRecord{Source: "dict.md", Hash: "h", DocType: "schema"})
	require.NoError(t, err)
	chunkIDs, err := st.InsertChunks(docID, testChunks("dict.md"))
	require.NoError(t, err)
	require.NoError(t, st.InsertEmbeddings(chunkIDs, [][]float32{makeVec(0), makeVec(1)}))

	require.NoError(t, st.DeleteAll())

	docs, err := st.ListDocuments()
	require.NoError(t, err)
	assert.Empty(t, docs)

	results, err := st.FTSSearch("Champs", 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}
