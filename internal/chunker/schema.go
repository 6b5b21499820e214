package chunker

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// SchemaChunker segments a data-dictionary markdown export into hierarchical
// chunks, one group per schema unit:
//
//	summary     identity + description + stats
//	fields      field table, subdivided when oversized
//	links       relation table
//	indexes     index table + keys
//	enumeration one chunk per enumeration
//	method      one chunk per SOAP method
type SchemaChunker struct{}

// NewSchemaChunker creates a schema-dictionary chunker.
func NewSchemaChunker() *SchemaChunker {
	return &SchemaChunker{}
}

// maxFieldsTokens is the estimated-token ceiling for a single fields chunk.
const maxFieldsTokens = 600

// introStoplist marks top-level units that are dictionary front matter, not
// schema bodies.
var introStoplist = []string{
	"dictionnaire", "documentation", "table des", "introduction",
	"statistiques", "explications", "campaign crm",
}

var (
	schemaHeaderRe  = regexp.MustCompile(`(?m)^# ([^\n]+)$`)
	internalNameRe  = regexp.MustCompile("Nom interne\\s*:\\s*`([^`]+)`")
	schemaLabelRe   = regexp.MustCompile(`Libellé\s*:\s*\*\*([^*]+)\*\*`)
	schemaDescRe    = regexp.MustCompile(`Description\s*:\s*\*\*([^*]+)\*\*`)
	enumsHeadingRe  = regexp.MustCompile(`(?m)^## Énumérations[ \t]*\n`)
	methodHeadingRe = regexp.MustCompile(`(?m)^## Méthodes[ \t]*\n`)
	fieldRowRe      = regexp.MustCompile("(?m)^\\|\\s*`[^`]+`\\s*\\|")
	linkRowRe       = regexp.MustCompile("(?m)^\\|\\s*`[^`]+`\\s*->\\s*`[^`]+`")
	extendsRe       = regexp.MustCompile("étend\\s+`([^`]+)`")

	// Row newlines are optional so a table that closes its schema unit (the
	// unit body is trimmed, stripping the final newline) keeps its last row.
	fieldsTableRe = regexp.MustCompile("(### Champs\\s*\\n\\|[^\\n]+\\n\\|[-:| ]+\\n(?:\\|[^\\n]+\\n?)*)")
	linksTableRe  = regexp.MustCompile("(### Liens\\s*\\n\\|[^\\n]+\\n\\|[-:| ]+\\n(?:\\|[^\\n]+\\n?)*)")
	indexTableRe  = regexp.MustCompile("(### Index\\s*\\n\\|[^\\n]+\\n\\|[-:| ]+\\n(?:\\|[^\\n]+\\n?)*)")
	keysLineRe    = regexp.MustCompile(`### Clés\s*\n([^\n#]+)`)

	subHeaderRe = regexp.MustCompile(`(?m)^### (.+)$`)
)

// ChunkFile chunks the dictionary file at path.
func (c *SchemaChunker) ChunkFile(path string) ([]Chunk, error) {
	return readAndChunk(c, path)
}

// ChunkContent splits the dictionary into per-schema chunk groups. Front
// matter and sub-200-char units are dropped; a document with no schema units
// yields an empty list.
func (c *SchemaChunker) ChunkContent(content, sourceFile string) []Chunk {
	var chunks []Chunk
	for _, unit := range c.splitBySchema(content) {
		if isIntroSection(unit.header) {
			continue
		}
		chunks = append(chunks, c.chunkSingleSchema(unit.header, unit.body, sourceFile)...)
	}
	return chunks
}

type schemaUnit struct {
	header string
	body   string
}

// splitBySchema cuts the document at single-# headers. Units under 200
// characters are noise (section titles, page breaks) and are dropped.
func (c *SchemaChunker) splitBySchema(content string) []schemaUnit {
	matches := schemaHeaderRe.FindAllStringSubmatchIndex(content, -1)
	var units []schemaUnit
	for i, m := range matches {
		end := len(content)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		body := strings.TrimSpace(content[m[0]:end])
		if utf8.RuneCountInString(body) > 200 {
			units = append(units, schemaUnit{
				header: strings.TrimSpace(content[m[2]:m[3]]),
				body:   body,
			})
		}
	}
	return units
}

func isIntroSection(header string) bool {
	lower := strings.ToLower(header)
	for _, p := range introStoplist {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

func (c *SchemaChunker) chunkSingleSchema(header, content, sourceFile string) []Chunk {
	meta := extractSchemaMetadata(content)
	meta["schema_label"] = header

	schemaName, _ := meta["internal_name"].(string)
	if schemaName == "" {
		// Without an internal name the header is the only stable unit key.
		schemaName = header
	}

	var chunks []Chunk

	if summary := c.buildSummary(header, content, meta); summary != "" {
		chunks = append(chunks, Chunk{
			ID:         DeriveID(sourceFile, schemaName+"_summary", 0),
			Content:    summary,
			DocType:    DocSchema,
			SourceFile: sourceFile,
			Section:    SectionSummary,
			Metadata:   withMeta(meta, "chunk_type", "summary"),
		})
	}

	chunks = append(chunks, c.extractFields(content, schemaName, sourceFile, meta)...)

	if links := c.extractLinks(content, schemaName); links != "" {
		chunks = append(chunks, Chunk{
			ID:         DeriveID(sourceFile, schemaName+"_links", 0),
			Content:    links,
			DocType:    DocSchema,
			SourceFile: sourceFile,
			Section:    SectionLinks,
			Metadata:   withMeta(meta, "chunk_type", "links"),
		})
	}

	if indexes := c.extractIndexes(content, schemaName); indexes != "" {
		chunks = append(chunks, Chunk{
			ID:         DeriveID(sourceFile, schemaName+"_indexes", 0),
			Content:    indexes,
			DocType:    DocSchema,
			SourceFile: sourceFile,
			Section:    SectionIndexes,
			Metadata:   withMeta(meta, "chunk_type", "indexes"),
		})
	}

	chunks = append(chunks, c.extractEnumerations(content, schemaName, sourceFile, meta)...)
	chunks = append(chunks, c.extractMethods(content, schemaName, sourceFile, meta)...)

	return chunks
}

// extractSchemaMetadata pattern-matches the fixed dictionary conventions:
// a backtick-quoted internal name (namespace-qualified, defaulting to "pre"),
// bold label and description, presence flags for the enumeration and method
// sections, and field/link table row counts.
func extractSchemaMetadata(content string) map[string]any {
	meta := map[string]any{
		"internal_name":    "",
		"namespace":        "pre",
		"label":            "",
		"description":      "",
		"has_enumerations": false,
		"has_methods":      false,
		"fields_count":     0,
		"links_count":      0,
	}

	if m := internalNameRe.FindStringSubmatch(content); m != nil {
		full := m[1]
		if ns, name, ok := strings.Cut(full, ":"); ok {
			meta["namespace"] = ns
			meta["internal_name"] = name
		} else {
			meta["internal_name"] = full
		}
	}
	if m := schemaLabelRe.FindStringSubmatch(content); m != nil {
		meta["label"] = strings.TrimSpace(m[1])
	}
	if m := schemaDescRe.FindStringSubmatch(content); m != nil {
		meta["description"] = strings.TrimSpace(m[1])
	}
	if enumsHeadingRe.MatchString(content) {
		meta["has_enumerations"] = true
	}
	if methodHeadingRe.MatchString(content) {
		meta["has_methods"] = true
	}
	meta["fields_count"] = len(fieldRowRe.FindAllString(content, -1))
	meta["links_count"] = len(linkRowRe.FindAllString(content, -1))

	return meta
}

// buildSummary synthesizes the identity chunk: header, qualified internal
// name, label, description, a stats line, and the extended schema when one
// is referenced.
func (c *SchemaChunker) buildSummary(header, content string, meta map[string]any) string {
	parts := []string{fmt.Sprintf("# Schema: %s", header)}

	if name, _ := meta["internal_name"].(string); name != "" {
		ns, _ := meta["namespace"].(string)
		parts = append(parts, fmt.Sprintf("**Nom interne**: `%s:%s`", ns, name))
	}
	if label, _ := meta["label"].(string); label != "" {
		parts = append(parts, fmt.Sprintf("**Libelle**: %s", label))
	}
	if desc, _ := meta["description"].(string); desc != "" {
		parts = append(parts, fmt.Sprintf("**Description**: %s", desc))
	}

	var stats []string
	if n, _ := meta["fields_count"].(int); n > 0 {
		stats = append(stats, fmt.Sprintf("%d champs", n))
	}
	if n, _ := meta["links_count"].(int); n > 0 {
		stats = append(stats, fmt.Sprintf("%d liens", n))
	}
	if has, _ := meta["has_enumerations"].(bool); has {
		stats = append(stats, "enumerations")
	}
	if has, _ := meta["has_methods"].(bool); has {
		stats = append(stats, "methodes SOAP")
	}
	if len(stats) > 0 {
		parts = append(parts, fmt.Sprintf("**Contient**: %s", strings.Join(stats, ", ")))
	}

	if m := extendsRe.FindStringSubmatch(content); m != nil {
		parts = append(parts, fmt.Sprintf("**Etend**: `%s`", m[1]))
	}

	return CleanContent(strings.Join(parts, "\n\n"))
}

// extractFields locates the field table and re-chunks its data rows greedily
// when the table's estimated size exceeds maxFieldsTokens. Each part repeats
// the header + separator preamble and carries a 1-based "part" index.
func (c *SchemaChunker) extractFields(content, schemaName, sourceFile string, meta map[string]any) []Chunk {
	m := fieldsTableRe.FindStringSubmatch(content)
	if m == nil {
		return nil
	}
	table := m[1]

	ns, _ := meta["namespace"].(string)
	heading := fmt.Sprintf("### Champs du schema `%s:%s`\n\n", ns, schemaName)

	if EstimateTokens(table) <= maxFieldsTokens {
		return []Chunk{{
			ID:         DeriveID(sourceFile, schemaName+"_fields", 0),
			Content:    CleanContent(heading + table),
			DocType:    DocSchema,
			SourceFile: sourceFile,
			Section:    SectionFields,
			Metadata:   withMeta(meta, "chunk_type", "fields"),
		}}
	}

	// The capture starts at the "### Champs" line; the preamble repeated in
	// every part is the header row + separator row, the first pipe lines.
	lines := strings.Split(table, "\n")
	first := 0
	for first < len(lines) && !strings.HasPrefix(lines[first], "|") {
		first++
	}
	preamble := lines[first : first+2]
	dataLines := lines[first+2:]

	var chunks []Chunk
	idx := 0
	current := append([]string(nil), preamble...)

	emit := func(body []string) {
		chunks = append(chunks, Chunk{
			ID:         DeriveID(sourceFile, schemaName+"_fields", idx),
			Content:    CleanContent(heading + strings.Join(body, "\n")),
			DocType:    DocSchema,
			SourceFile: sourceFile,
			Section:    SectionFields,
			Metadata:   withMeta(meta, "chunk_type", "fields", "part", idx+1),
		})
		idx++
	}

	for _, line := range dataLines {
		if !strings.HasPrefix(line, "|") {
			continue
		}
		current = append(current, line)
		if EstimateTokens(strings.Join(current, "\n")) > maxFieldsTokens {
			emit(current[:len(current)-1])
			current = append(append([]string(nil), preamble...), line)
		}
	}
	if len(current) > 2 {
		emit(current)
	}
	return chunks
}

func (c *SchemaChunker) extractLinks(content, schemaName string) string {
	m := linksTableRe.FindStringSubmatch(content)
	if m == nil {
		return ""
	}
	heading := fmt.Sprintf("### Relations du schema `%s`\n\n", schemaName)
	return CleanContent(heading + m[1])
}

// extractIndexes concatenates the optional index table and the optional keys
// line; absent entirely, no chunk is emitted.
func (c *SchemaChunker) extractIndexes(content, schemaName string) string {
	var parts []string
	if m := indexTableRe.FindStringSubmatch(content); m != nil {
		parts = append(parts, m[1])
	}
	if m := keysLineRe.FindStringSubmatch(content); m != nil {
		parts = append(parts, "### Cles\n"+m[1])
	}
	if len(parts) == 0 {
		return ""
	}
	heading := fmt.Sprintf("### Index et cles du schema `%s`\n\n", schemaName)
	return CleanContent(heading + strings.Join(parts, "\n\n"))
}

// extractEnumerations emits one chunk per ### sub-header inside the
// enumeration section. The section ends at the next ## heading that is not
// another enumeration heading, the next schema-level # heading, or end of
// text.
func (c *SchemaChunker) extractEnumerations(content, schemaName, sourceFile string, meta map[string]any) []Chunk {
	section := sectionBody(content, enumsHeadingRe, func(line string) bool {
		if strings.HasPrefix(line, "## ") && !strings.HasPrefix(line, "## É") {
			return true
		}
		return strings.HasPrefix(line, "# ")
	})
	if section == "" {
		return nil
	}

	var chunks []Chunk
	for idx, entry := range splitSubEntries(section) {
		body := fmt.Sprintf("### Enumeration `%s` du schema `%s`\n\n%s", entry.name, schemaName, entry.body)
		chunks = append(chunks, Chunk{
			ID:         DeriveID(sourceFile, fmt.Sprintf("%s_enum_%s", schemaName, entry.name), idx),
			Content:    CleanContent(body),
			DocType:    DocSchema,
			SourceFile: sourceFile,
			Section:    SectionEnumeration,
			Metadata:   withMeta(meta, "chunk_type", "enumeration", "enumeration_name", entry.name),
		})
	}
	return chunks
}

// extractMethods is symmetric to extractEnumerations, scoped to the method
// section, which ends at any following ## or # heading.
func (c *SchemaChunker) extractMethods(content, schemaName, sourceFile string, meta map[string]any) []Chunk {
	section := sectionBody(content, methodHeadingRe, func(line string) bool {
		return strings.HasPrefix(line, "## ") || strings.HasPrefix(line, "# ")
	})
	if section == "" {
		return nil
	}

	var chunks []Chunk
	for idx, entry := range splitSubEntries(section) {
		body := fmt.Sprintf("### Methode SOAP `%s` du schema `%s`\n\n%s", entry.name, schemaName, entry.body)
		chunks = append(chunks, Chunk{
			ID:         DeriveID(sourceFile, fmt.Sprintf("%s_method_%s", schemaName, entry.name), idx),
			Content:    CleanContent(body),
			DocType:    DocSchema,
			SourceFile: sourceFile,
			Section:    SectionMethod,
			Metadata:   withMeta(meta, "chunk_type", "method", "method_name", entry.name),
		})
	}
	return chunks
}

type subEntry struct {
	name string
	body string
}

// splitSubEntries cuts a section body at ### name sub-headers; each entry's
// body runs to the next sub-header or end of section.
func splitSubEntries(section string) []subEntry {
	matches := subHeaderRe.FindAllStringSubmatchIndex(section, -1)
	var entries []subEntry
	for i, m := range matches {
		end := len(section)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		entries = append(entries, subEntry{
			name: strings.TrimSpace(section[m[2]:m[3]]),
			body: strings.TrimSpace(section[m[1]:end]),
		})
	}
	return entries
}

// withMeta copies base and applies chunk-specific key/value pairs, so sibling
// chunks never share a metadata map.
func withMeta(base map[string]any, kv ...any) map[string]any {
	m := make(map[string]any, len(base)+len(kv)/2)
	for k, v := range base {
		m[k] = v
	}
	for i := 0; i+1 < len(kv); i += 2 {
		m[kv[i].(string)] = kv[i+1]
	}
	return m
}
