package chunker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryLookup(t *testing.T) {
	r := NewRegistry()
	RegisterDefaults(r)

	tests := []struct {
		path string
		want DocType
	}{
		{"/export/dictionnaire_donnees.md", DocSchema},
		{"/export/Schema_Export.MD", DocSchema},
		{"/export/workflows_techniques.md", DocWorkflow},
		{"/export/WORKFLOW-campagnes.md", DocWorkflow},
		{"/export/readme.md", ""},
		{"/export/notes.txt", ""},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			ck, dt := r.Lookup(tt.path)
			assert.Equal(t, tt.want, dt)
			if tt.want == "" {
				assert.Nil(t, ck)
			} else {
				assert.NotNil(t, ck)
			}
			assert.Equal(t, tt.want, r.DocTypeFor(tt.path))
		})
	}
}

func TestRegistryOrderIsPriority(t *testing.T) {
	r := NewRegistry()
	first := NewSchemaChunker()
	second := NewWorkflowChunker()
	r.Register(DocSchema, &DocSpec{Chunker: first, Patterns: []string{"export"}})
	r.Register(DocWorkflow, &DocSpec{Chunker: second, Patterns: []string{"export"}})

	ck, dt := r.Lookup("export.md")
	require.Equal(t, DocSchema, dt)
	assert.Same(t, first, ck)
}
