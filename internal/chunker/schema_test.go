package chunker

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const schemaDoc = "# Dictionnaire de données Campaign\n\n" +
	"Ce document décrit l'ensemble des schémas de données de la plateforme marketing.\n" +
	"Il est généré automatiquement depuis l'instance et couvre les tables principales,\n" +
	"leurs champs, leurs liens, leurs index et leurs énumérations associées.\n" +
	"Chaque schéma est présenté avec son nom interne et son libellé.\n\n" +
	"# Destinataires (nms:recipient)\n\n" +
	"## Informations générales\n\n" +
	"Nom interne : `nms:recipient`\n\n" +
	"Libellé : **Destinataires**\n\n" +
	"Description : **Table des profils destinataires des campagnes marketing**\n\n" +
	"Ce schéma étend `xtk:common`.\n\n" +
	"### Champs\n\n" +
	"| Nom | Type | Longueur | Libellé |\n" +
	"|-----|------|----------|---------|\n" +
	"| `email` | string | 255 | Adresse electronique |\n" +
	"| `firstName` | string | 64 | Prenom |\n" +
	"| `age` | long | 4 | Age |\n\n" +
	"### Liens\n\n" +
	"| Lien | Cardinalite | Description |\n" +
	"|------|-------------|-------------|\n" +
	"| `folder` -> `xtk:folder` | 1-1 | Dossier parent |\n\n" +
	"### Index\n\n" +
	"| Nom | Champs |\n" +
	"|-----|--------|\n" +
	"| idx_email | email |\n\n" +
	"### Clés\n" +
	"La cle primaire porte sur le champ id.\n\n" +
	"## Énumérations\n\n" +
	"### gender\n\n" +
	"| Valeur | Libellé |\n" +
	"|--------|---------|\n" +
	"| 0 | Inconnu |\n" +
	"| 1 | Homme |\n\n" +
	"## Méthodes\n\n" +
	"### Subscribe\n\n" +
	"Abonne un destinataire a un service d'information.\n\n" +
	"# Notes\nCourt.\n"

func TestSchemaChunkContent(t *testing.T) {
	c := NewSchemaChunker()
	chunks := c.ChunkContent(schemaDoc, "dictionnaire_donnees.md")

	// The intro unit is stoplisted and the trailing unit is under the size
	// floor; only the recipient schema produces chunks.
	require.Len(t, chunks, 6)

	sections := make([]Section, len(chunks))
	for i, ch := range chunks {
		sections[i] = ch.Section
	}
	assert.Equal(t, []Section{
		SectionSummary, SectionFields, SectionLinks,
		SectionIndexes, SectionEnumeration, SectionMethod,
	}, sections)

	for _, ch := range chunks {
		assert.Equal(t, DocSchema, ch.DocType)
		assert.Equal(t, "dictionnaire_donnees.md", ch.SourceFile)
		assert.NotEmpty(t, ch.Content)
		assert.Equal(t, "recipient", ch.Metadata["internal_name"])
		assert.Equal(t, "nms", ch.Metadata["namespace"])
		assert.Equal(t, "Destinataires", ch.Metadata["label"])
		assert.Equal(t, 3, ch.Metadata["fields_count"])
		assert.Equal(t, 1, ch.Metadata["links_count"])
		assert.Equal(t, true, ch.Metadata["has_enumerations"])
		assert.Equal(t, true, ch.Metadata["has_methods"])
		assert.Equal(t, "Destinataires (nms:recipient)", ch.Metadata["schema_label"])
	}
}

func TestSchemaSummaryContent(t *testing.T) {
	c := NewSchemaChunker()
	chunks := c.ChunkContent(schemaDoc, "dictionnaire_donnees.md")
	require.NotEmpty(t, chunks)

	summary := chunks[0]
	assert.Equal(t, "summary", summary.Metadata["chunk_type"])
	assert.Contains(t, summary.Content, "# Schema: Destinataires (nms:recipient)")
	assert.Contains(t, summary.Content, "**Nom interne**: `nms:recipient`")
	assert.Contains(t, summary.Content, "3 champs")
	assert.Contains(t, summary.Content, "1 liens")
	assert.Contains(t, summary.Content, "**Etend**: `xtk:common`")
}

func TestSchemaEnumAndMethodChunks(t *testing.T) {
	c := NewSchemaChunker()
	chunks := c.ChunkContent(schemaDoc, "dictionnaire_donnees.md")
	require.Len(t, chunks, 6)

	enum := chunks[4]
	assert.Equal(t, "gender", enum.Metadata["enumeration_name"])
	assert.Contains(t, enum.Content, "Enumeration `gender` du schema `recipient`")
	assert.Contains(t, enum.Content, "| 1 | Homme |")

	method := chunks[5]
	assert.Equal(t, "Subscribe", method.Metadata["method_name"])
	assert.Contains(t, method.Content, "Methode SOAP `Subscribe` du schema `recipient`")
	assert.Contains(t, method.Content, "Abonne un destinataire")
}

func TestSchemaUnitFloorAndStoplist(t *testing.T) {
	c := NewSchemaChunker()

	// Stoplisted front matter alone produces nothing, even when long.
	intro := "# Table des matières\n\n" + strings.Repeat("Sommaire du document. ", 20)
	assert.Empty(t, c.ChunkContent(intro, "dict.md"))

	// A unit under the size floor is noise.
	assert.Empty(t, c.ChunkContent("# Minuscule\nRien.", "dict.md"))

	// The floor counts characters, not bytes: accented text under 200
	// characters stays below the floor despite its longer UTF-8 encoding.
	accents := "# Résumé des états\n" + strings.Repeat("à", 178)
	require.Greater(t, len(accents), 200)
	assert.Empty(t, c.ChunkContent(accents, "dict.md"))
}

func TestSchemaHeaderFallbackWhenNoInternalName(t *testing.T) {
	doc := "# Table de travail\n\n" +
		"Description : **Une table temporaire utilisee par les operations de ciblage " +
		"pour stocker les resultats intermediaires des requetes de segmentation.**\n\n" +
		"### Champs\n\n" +
		"| Nom | Type |\n" +
		"|-----|------|\n" +
		"| `id` | long |\n"

	c := NewSchemaChunker()
	chunks := c.ChunkContent(doc, "dictionnaire.md")
	require.NotEmpty(t, chunks)

	assert.Equal(t, "", chunks[0].Metadata["internal_name"])
	// IDs are keyed off the header, so two header-only schemas never collide.
	assert.Equal(t, DeriveID("dictionnaire.md", "Table de travail_summary", 0), chunks[0].ID)
}

func TestSchemaFieldsSubdivision(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("# Grande Table\n\nNom interne : `nms:bigTable`\n\n### Champs\n\n")
	sb.WriteString("| Nom | Type | Description |\n")
	sb.WriteString("|-----|------|-------------|\n")
	for i := 0; i < 120; i++ {
		fmt.Fprintf(&sb, "| `field%03d` | string | une description suffisamment longue pour le champ numero %03d |\n", i, i)
	}

	c := NewSchemaChunker()
	chunks := c.ChunkContent(sb.String(), "dictionnaire.md")
	require.NotEmpty(t, chunks)

	var fields []Chunk
	for _, ch := range chunks {
		if ch.Section == SectionFields {
			fields = append(fields, ch)
		}
	}
	require.Greater(t, len(fields), 1, "oversized table should subdivide")

	seen := make(map[string]bool)
	rowCount := 0
	for i, ch := range fields {
		assert.Equal(t, i+1, ch.Metadata["part"])
		assert.LessOrEqual(t, EstimateTokens(ch.Content), maxFieldsTokens+100)

		// Each part opens with the generated heading followed by the table
		// preamble, so every part renders as a standalone markdown table.
		lines := strings.Split(ch.Content, "\n")
		require.Greater(t, len(lines), 4)
		assert.Equal(t, "### Champs du schema `nms:bigTable`", lines[0])
		assert.Equal(t, "| Nom | Type | Description |", lines[2])
		assert.Equal(t, "|-----|------|-------------|", lines[3])

		for _, line := range strings.Split(ch.Content, "\n") {
			if strings.HasPrefix(line, "| `field") {
				assert.False(t, seen[line], "row duplicated across parts: %s", line)
				seen[line] = true
				rowCount++
			}
		}
	}
	// Every data row lands in exactly one part.
	assert.Equal(t, 120, rowCount)
}

func TestSchemaTableClosingUnitKeepsLastRow(t *testing.T) {
	// Unit bodies are trimmed, so a table that ends the unit has no trailing
	// newline after its last row. That row must still be captured.
	doc := "# Abonnements (nms:subscription)\n\n" +
		"Nom interne : `nms:subscription`\n\n" +
		"Description : **Abonnements des destinataires aux services d'information " +
		"avec la date de souscription et le canal utilise.**\n\n" +
		"### Champs\n\n" +
		"| Nom | Type |\n" +
		"|-----|------|\n" +
		"| `created` | datetime |\n" +
		"| `expirationDate` | datetime |"

	c := NewSchemaChunker()
	chunks := c.ChunkContent(doc, "dictionnaire.md")
	require.Len(t, chunks, 2)

	fields := chunks[1]
	assert.Equal(t, SectionFields, fields.Section)
	assert.Contains(t, fields.Content, "| `created` | datetime |")
	assert.Contains(t, fields.Content, "| `expirationDate` | datetime |")
	assert.Equal(t, 2, fields.Metadata["fields_count"])

	// Same shape for a links table ending its unit.
	doc = "# Livraisons (nms:delivery)\n\n" +
		"Nom interne : `nms:delivery`\n\n" +
		"Description : **Table des livraisons avec leur operateur, leur dossier " +
		"de rattachement et le mapping de ciblage applique a chaque envoi.**\n\n" +
		"### Liens\n\n" +
		"| Lien | Cardinalite |\n" +
		"|------|-------------|\n" +
		"| `folder` -> `xtk:folder` | 1-1 |\n" +
		"| `operator` -> `xtk:operator` | 1-1 |"

	chunks = c.ChunkContent(doc, "dictionnaire.md")
	require.Len(t, chunks, 2)
	assert.Equal(t, SectionLinks, chunks[1].Section)
	assert.Contains(t, chunks[1].Content, "| `operator` -> `xtk:operator` | 1-1 |")
}

func TestSchemaMultiWordSubEntries(t *testing.T) {
	doc := "# Statuts (nms:status)\n\n" +
		"Nom interne : `nms:status`\n\n" +
		"Description : **Table de reference des statuts de livraison et de " +
		"traitement utilises par les workflows de la plateforme marketing.**\n\n" +
		"## Énumérations\n\n" +
		"### gender\n\n" +
		"| Valeur | Libellé |\n" +
		"|--------|---------|\n" +
		"| 0 | Inconnu |\n\n" +
		"### statut de livraison\n\n" +
		"| Valeur | Libellé |\n" +
		"|--------|---------|\n" +
		"| 1 | Envoyé |\n"

	c := NewSchemaChunker()
	chunks := c.ChunkContent(doc, "dictionnaire.md")

	var enums []Chunk
	for _, ch := range chunks {
		if ch.Section == SectionEnumeration {
			enums = append(enums, ch)
		}
	}
	require.Len(t, enums, 2)

	// A multi-word sub-header starts its own entry and terminates the
	// previous one.
	assert.Equal(t, "gender", enums[0].Metadata["enumeration_name"])
	assert.NotContains(t, enums[0].Content, "Envoyé")
	assert.Equal(t, "statut de livraison", enums[1].Metadata["enumeration_name"])
	assert.Contains(t, enums[1].Content, "| 1 | Envoyé |")
}

func TestSchemaChunkingIsIdempotent(t *testing.T) {
	c := NewSchemaChunker()
	first := c.ChunkContent(schemaDoc, "dictionnaire_donnees.md")
	second := c.ChunkContent(schemaDoc, "dictionnaire_donnees.md")
	assert.Equal(t, first, second)

	ids := make(map[string]bool)
	for _, ch := range first {
		assert.False(t, ids[ch.ID], "duplicate chunk ID %s", ch.ID)
		ids[ch.ID] = true
	}
}
