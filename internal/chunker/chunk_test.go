package chunker

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveIDDeterministic(t *testing.T) {
	a := DeriveID("dict.md", "recipient_summary", 0)
	b := DeriveID("dict.md", "recipient_summary", 0)
	assert.Equal(t, a, b)

	// Any input change produces a different ID.
	assert.NotEqual(t, a, DeriveID("dict.md", "recipient_summary", 1))
	assert.NotEqual(t, a, DeriveID("dict.md", "recipient_fields", 0))
	assert.NotEqual(t, a, DeriveID("other.md", "recipient_summary", 0))
}

func TestDeriveIDIsValidUUID(t *testing.T) {
	id := DeriveID("dict.md", "recipient_summary", 0)
	parsed, err := uuid.Parse(id)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(5), parsed.Version())
}

func TestChunkToMap(t *testing.T) {
	c := Chunk{
		ID:         "id-1",
		Content:    "body",
		DocType:    DocSchema,
		SourceFile: "dict.md",
		Section:    SectionFields,
		Metadata: map[string]any{
			"chunk_type": "fields",
			"part":       2,
		},
	}

	m := c.ToMap()
	assert.Equal(t, "id-1", m["id"])
	assert.Equal(t, "body", m["content"])
	assert.Equal(t, "schema", m["doc_type"])
	assert.Equal(t, "dict.md", m["source_file"])
	assert.Equal(t, "fields", m["section"])
	assert.Equal(t, 2, m["part"])
}

func TestChunkToMapMetadataWins(t *testing.T) {
	c := Chunk{
		ID:       "real-id",
		Section:  SectionSummary,
		Metadata: map[string]any{"section": "overridden"},
	}
	m := c.ToMap()
	assert.Equal(t, "overridden", m["section"])
	assert.Equal(t, "real-id", m["id"])
}
