package chunker

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const workflowDoc = "### Envoi Email de Bienvenue\n\n" +
	"| **Propriété** | **Valeur** |\n" +
	"|---------------|------------|\n" +
	"| **Nom interne** | `WKF42` |\n" +
	"| **Dossier** | Workflows techniques |\n\n" +
	"**Caractéristiques:** exécution quotidienne planifiée à 06h00\n\n" +
	"**Description:** Ce workflow envoie un email de bienvenue aux nouveaux inscrits de la semaine.\n\n" +
	"**Activités:**\n\n" +
	"| Activité | JS | SQL | Description |\n" +
	"|----------|----|-----|-------------|\n" +
	"| {urn:query} | N | O | Sélection des nouveaux profils via requête SQL |\n" +
	"| {urn:jsCode} | O | N | Validation JavaScript des adresses |\n" +
	"| {urn:delivery} | N | N | Envoi de la diffusion |\n\n" +
	"**Scripts:**\n\n" +
	"*Script: validateInput*\n\n" +
	"```javascript\nfunction validateInput(rcp) {\n  return rcp.email != \"\";\n}\n```\n"

func TestWorkflowChunkContent(t *testing.T) {
	c := NewWorkflowChunker()
	chunks := c.ChunkContent(workflowDoc, "workflows_export.md")
	require.Len(t, chunks, 3)

	sections := []Section{chunks[0].Section, chunks[1].Section, chunks[2].Section}
	assert.Equal(t, []Section{SectionSummary, SectionActivities, SectionScript}, sections)

	for _, ch := range chunks {
		assert.Equal(t, DocWorkflow, ch.DocType)
		assert.Equal(t, "workflows_export.md", ch.SourceFile)
		assert.NotEmpty(t, ch.Content)
		assert.Equal(t, "WKF42", ch.Metadata["workflow_name"])
		assert.Equal(t, "Envoi Email de Bienvenue", ch.Metadata["workflow_label"])
		assert.Equal(t, true, ch.Metadata["has_js"])
		assert.Equal(t, true, ch.Metadata["has_sql"])
		assert.Equal(t, true, ch.Metadata["has_delivery"])
		assert.Equal(t, 3, ch.Metadata["activities_count"])
	}
}

func TestWorkflowSummaryAssembly(t *testing.T) {
	c := NewWorkflowChunker()
	chunks := c.ChunkContent(workflowDoc, "workflows_export.md")
	require.NotEmpty(t, chunks)

	summary := chunks[0].Content
	assert.True(t, strings.HasPrefix(summary, "### Envoi Email de Bienvenue"))
	assert.Contains(t, summary, "| **Nom interne** | `WKF42` |")
	assert.Contains(t, summary, "**Caractéristiques:**")
	assert.Contains(t, summary, "**Description:** Ce workflow envoie un email")
	// The activity table belongs to the activities chunk, not the summary.
	assert.NotContains(t, summary, "{urn:query}")
}

func TestWorkflowActivitiesAndScript(t *testing.T) {
	c := NewWorkflowChunker()
	chunks := c.ChunkContent(workflowDoc, "workflows_export.md")
	require.Len(t, chunks, 3)

	activities := chunks[1]
	assert.Contains(t, activities.Content, "Activites du workflow `WKF42`")
	assert.Contains(t, activities.Content, "| {urn:jsCode} | O | N |")
	assert.NotContains(t, activities.Content, "```javascript")

	script := chunks[2]
	assert.Equal(t, "validateInput", script.Metadata["script_name"])
	assert.Contains(t, script.Content, "### Script JavaScript: validateInput")
	assert.Contains(t, script.Content, "**Workflow**: `WKF42`")
	assert.Contains(t, script.Content, "function validateInput(rcp)")
	assert.Equal(t, DeriveID("workflows_export.md", "WKF42_script", 0), script.ID)
}

func TestWorkflowUnitFloor(t *testing.T) {
	c := NewWorkflowChunker()
	assert.Empty(t, c.ChunkContent("### Vide\ncourt", "workflows.md"))

	// The floor counts characters, not bytes: an accent-heavy unit under 100
	// characters is still noise even though its UTF-8 encoding is longer.
	accents := "### Tâche planifiée\n" + strings.Repeat("é", 78)
	require.Greater(t, len(accents), 100)
	assert.Empty(t, c.ChunkContent(accents, "workflows.md"))
}

func TestWorkflowDescriptionCapped(t *testing.T) {
	longDesc := "Suivi des opérations: " + strings.Repeat("éèàçù", 120)
	doc := "### Tracking quotidien\n\n" +
		"**Nom interne**: `trackingDaily`\n\n" +
		"**Description:** " + longDesc + "\n"

	c := NewWorkflowChunker()
	chunks := c.ChunkContent(doc, "workflows.md")
	require.Len(t, chunks, 1)

	summary := chunks[0].Content
	assert.True(t, utf8.ValidString(summary))
	assert.True(t, strings.HasSuffix(summary, "..."))

	idx := strings.Index(summary, "**Description:** ")
	require.GreaterOrEqual(t, idx, 0)
	desc := summary[idx+len("**Description:** "):]
	// Capped at maxSummaryDescChars characters plus the ellipsis, never cut
	// inside a multi-byte character.
	assert.Equal(t, maxSummaryDescChars+3, utf8.RuneCountInString(desc))
}

func TestWorkflowScriptSubdivisionWithOverlap(t *testing.T) {
	var code strings.Builder
	for i := 0; i < 200; i++ {
		fmt.Fprintf(&code, "var resultat%03d = calculerQuelqueChose(%d);\n", i, i)
	}
	doc := "### Gros Traitement\n\n" +
		"| **Nom interne** | `bigJob` |\n\n" +
		"*Script: traitementPrincipal*\n\n" +
		"```javascript\n" + code.String() + "```\n"

	c := NewWorkflowChunker()
	chunks := c.ChunkContent(doc, "workflows.md")

	var scripts []Chunk
	for _, ch := range chunks {
		if ch.Section == SectionScript {
			scripts = append(scripts, ch)
		}
	}
	require.Greater(t, len(scripts), 1, "oversized script should subdivide")

	for i, ch := range scripts {
		assert.Equal(t, i+1, ch.Metadata["part"])
		assert.Equal(t, "traitementPrincipal", ch.Metadata["script_name"])
		assert.Equal(t, DeriveID("workflows.md", "traitementPrincipal_part", i), ch.ID)

		if i > 0 {
			// Each later part opens with the tail lines of the previous one.
			prevLines := strings.Split(scripts[i-1].Content, "\n")
			tail := strings.Join(prevLines[len(prevLines)-scriptOverlapLines:], "\n")
			assert.True(t, strings.HasPrefix(ch.Content, tail),
				"part %d should start with the last %d lines of part %d", i+1, scriptOverlapLines, i)
		}
	}

	// Only the first part carries the wrapper heading; the whole script body
	// is preserved across parts.
	assert.Contains(t, scripts[0].Content, "### Script JavaScript: traitementPrincipal")
	assert.Contains(t, scripts[len(scripts)-1].Content, "var resultat199")
}

func TestWorkflowChunkingIsIdempotent(t *testing.T) {
	c := NewWorkflowChunker()
	first := c.ChunkContent(workflowDoc, "workflows_export.md")
	second := c.ChunkContent(workflowDoc, "workflows_export.md")
	assert.Equal(t, first, second)

	ids := make(map[string]bool)
	for _, ch := range first {
		assert.False(t, ids[ch.ID], "duplicate chunk ID %s", ch.ID)
		ids[ch.ID] = true
	}
}
