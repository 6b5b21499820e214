package chunker

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// WorkflowChunker segments an automation-workflow markdown export into
// hierarchical chunks, one group per workflow unit:
//
//	summary    properties table + characteristics + capped description
//	activities activity table
//	script     one chunk per embedded JavaScript block, subdivided with
//	           line overlap when oversized
type WorkflowChunker struct{}

// NewWorkflowChunker creates a workflow-document chunker.
func NewWorkflowChunker() *WorkflowChunker {
	return &WorkflowChunker{}
}

const (
	// maxScriptTokens is the estimated-token ceiling for one script chunk.
	maxScriptTokens = 800
	// scriptOverlapLines seed the next sub-chunk when a script is subdivided.
	scriptOverlapLines = 3
	// maxSummaryDescChars caps the description carried into a summary chunk.
	maxSummaryDescChars = 500
)

var (
	workflowHeaderRe = regexp.MustCompile(`(?m)^### (.+)$`)
	workflowNameRe   = regexp.MustCompile("\\*\\*Nom interne\\*\\*[:\\s|]*`([^`]+)`")
	sqlActivityRe    = regexp.MustCompile(`(?i)\|\s*O\s*\|.*SQL`)
	activityRowRe    = regexp.MustCompile(`(?m)^\|\s*\{urn:`)
	scriptBlockRe    = regexp.MustCompile("(?s)\\*Script:\\s*([^*]+)\\*\\s*```javascript(.*?)```")
)

// ChunkFile chunks the workflow file at path.
func (c *WorkflowChunker) ChunkFile(path string) ([]Chunk, error) {
	return readAndChunk(c, path)
}

// ChunkContent splits the document at ### workflow headers and chunks each
// unit. Units under 100 characters are dropped as noise; a document with no
// units yields an empty list.
func (c *WorkflowChunker) ChunkContent(content, sourceFile string) []Chunk {
	var chunks []Chunk
	matches := workflowHeaderRe.FindAllStringSubmatchIndex(content, -1)
	for i, m := range matches {
		end := len(content)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		body := strings.TrimSpace(content[m[0]:end])
		if utf8.RuneCountInString(body) <= 100 {
			continue
		}
		header := strings.TrimSpace(content[m[2]:m[3]])
		chunks = append(chunks, c.chunkSingleWorkflow(header, body, sourceFile)...)
	}
	return chunks
}

func (c *WorkflowChunker) chunkSingleWorkflow(header, content, sourceFile string) []Chunk {
	meta := extractWorkflowMetadata(content)
	meta["workflow_label"] = header

	workflowName, _ := meta["workflow_name"].(string)
	if workflowName == "" {
		workflowName = header
	}

	var chunks []Chunk

	if summary := c.buildSummary(content); summary != "" {
		chunks = append(chunks, Chunk{
			ID:         DeriveID(sourceFile, workflowName+"_summary", 0),
			Content:    summary,
			DocType:    DocWorkflow,
			SourceFile: sourceFile,
			Section:    SectionSummary,
			Metadata:   withMeta(meta, "chunk_type", "summary"),
		})
	}

	if activities := c.extractActivities(content, workflowName); activities != "" {
		chunks = append(chunks, Chunk{
			ID:         DeriveID(sourceFile, workflowName+"_activities", 0),
			Content:    activities,
			DocType:    DocWorkflow,
			SourceFile: sourceFile,
			Section:    SectionActivities,
			Metadata:   withMeta(meta, "chunk_type", "activities"),
		})
	}

	for idx, script := range c.extractScripts(content, workflowName) {
		scriptMeta := withMeta(meta, "chunk_type", "script", "script_name", script.name)
		if EstimateTokens(script.content) > maxScriptTokens {
			chunks = append(chunks, c.subdivideScript(script, sourceFile, scriptMeta, idx)...)
		} else {
			chunks = append(chunks, Chunk{
				ID:         DeriveID(sourceFile, workflowName+"_script", idx),
				Content:    CleanContent(script.content),
				DocType:    DocWorkflow,
				SourceFile: sourceFile,
				Section:    SectionScript,
				Metadata:   scriptMeta,
			})
		}
	}

	return chunks
}

// extractWorkflowMetadata pattern-matches the export conventions: the
// backtick-quoted internal name, JavaScript/SQL/delivery presence flags, and
// the count of URN-keyed activity rows.
func extractWorkflowMetadata(content string) map[string]any {
	meta := map[string]any{
		"workflow_name": "",
		"has_js":        false,
		"has_sql":       false,
		"has_delivery":  false,
	}

	if m := workflowNameRe.FindStringSubmatch(content); m != nil {
		meta["workflow_name"] = m[1]
	}
	if strings.Contains(content, "```javascript") ||
		(strings.Contains(content, "| O |") && strings.Contains(content, "JavaScript")) {
		meta["has_js"] = true
	}
	if sqlActivityRe.MatchString(content) {
		meta["has_sql"] = true
	}
	lower := strings.ToLower(content)
	if strings.Contains(lower, "delivery") || strings.Contains(lower, "diffusion") {
		meta["has_delivery"] = true
	}
	meta["activities_count"] = len(activityRowRe.FindAllString(content, -1))

	return meta
}

// buildSummary assembles the unit header, the properties table up to the next
// labeled section, the characteristics block when present, and the
// description capped at maxSummaryDescChars with an ellipsis marker.
func (c *WorkflowChunker) buildSummary(content string) string {
	var parts []string

	// The unit always begins at its ### header by construction.
	if i := strings.Index(content, "\n"); i >= 0 {
		parts = append(parts, content[:i])
	} else {
		parts = append(parts, content)
	}

	if start := strings.Index(content, "| **Propri"); start >= 0 {
		rest := content[start:]
		props := rest[:earliestMarker(rest, "**Caract", "**Activit", "**Scripts")]
		if p := strings.TrimSpace(props); p != "" {
			parts = append(parts, p)
		}
	}

	if start := strings.Index(content, "**Caract"); start >= 0 {
		rest := content[start:]
		carac := rest[:earliestMarker(rest, "**Description", "**Activit")]
		if p := strings.TrimSpace(carac); p != "" {
			parts = append(parts, p)
		}
	}

	if start := strings.Index(content, "**Description:**"); start >= 0 {
		rest := content[start+len("**Description:**"):]
		desc := strings.TrimSpace(rest[:earliestMarker(rest, "**Activit", "**Scripts")])
		// Cap in runes, not bytes: a byte cut could land inside an accent.
		if r := []rune(desc); len(r) > maxSummaryDescChars {
			desc = string(r[:maxSummaryDescChars]) + "..."
		}
		parts = append(parts, "**Description:** "+desc)
	}

	return CleanContent(strings.Join(parts, "\n\n"))
}

// extractActivities returns the activity table bounded by the next labeled
// section or the next header, prefixed with a heading naming the workflow.
func (c *WorkflowChunker) extractActivities(content, workflowName string) string {
	start := strings.Index(content, "**Activit")
	if start < 0 {
		return ""
	}
	rest := content[start:]
	table := rest[:earliestMarker(rest, "**Scripts", "\n## ", "\n### ")]
	// A labeled block with no table rows is not an activities section.
	if !strings.Contains(table, "|") {
		return ""
	}
	heading := fmt.Sprintf("### Activites du workflow `%s`\n\n", workflowName)
	return CleanContent(heading + strings.TrimSpace(table))
}

type workflowScript struct {
	name    string
	content string
}

// extractScripts collects every fenced JavaScript block preceded by a
// *Script: name* marker, wrapped with a heading naming the script and its
// parent workflow.
func (c *WorkflowChunker) extractScripts(content, workflowName string) []workflowScript {
	var scripts []workflowScript
	for _, m := range scriptBlockRe.FindAllStringSubmatch(content, -1) {
		name := strings.TrimSpace(m[1])
		code := strings.TrimSpace(m[2])
		scripts = append(scripts, workflowScript{
			name: name,
			content: fmt.Sprintf("### Script JavaScript: %s\n**Workflow**: `%s`\n\n```javascript\n%s\n```",
				name, workflowName, code),
		})
	}
	return scripts
}

// scriptPartIndex spaces subdivided-script ID indices so sub-parts of
// different scripts in the same workflow cannot collide. The scheme caps out
// at 100 sub-parts per script and 100 scripts per workflow before indices
// would collide; realistic documents stay far below both.
func scriptPartIndex(scriptIdx, subIdx int) int {
	return scriptIdx*100 + subIdx
}

// subdivideScript splits an oversized script at line boundaries. When a
// sub-chunk closes, the next one is seeded with its last three lines so the
// cut never lands mid-context without lead-in.
func (c *WorkflowChunker) subdivideScript(script workflowScript, sourceFile string, meta map[string]any, scriptIdx int) []Chunk {
	var chunks []Chunk
	var current []string
	tokens := 0
	subIdx := 0

	emit := func() {
		chunks = append(chunks, Chunk{
			ID:         DeriveID(sourceFile, script.name+"_part", scriptPartIndex(scriptIdx, subIdx)),
			Content:    CleanContent(strings.Join(current, "\n")),
			DocType:    DocWorkflow,
			SourceFile: sourceFile,
			Section:    SectionScript,
			Metadata:   withMeta(meta, "part", subIdx+1),
		})
	}

	for _, line := range strings.Split(script.content, "\n") {
		lineTokens := EstimateTokens(line)

		if tokens+lineTokens > maxScriptTokens && len(current) > 0 {
			emit()

			var overlap []string
			if len(current) > scriptOverlapLines {
				overlap = append(overlap, current[len(current)-scriptOverlapLines:]...)
			}
			current = overlap
			tokens = 0
			for _, l := range current {
				tokens += EstimateTokens(l)
			}
			subIdx++
		}

		current = append(current, line)
		tokens += lineTokens
	}

	if len(current) > 0 {
		emit()
	}
	return chunks
}
