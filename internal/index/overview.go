package index

import (
	"fmt"
	"strings"

	"tessera/internal/llm"
	"tessera/internal/store"
)

const docSummaryPrompt = `Summarize this reference document in 2-3 sentences. It comes from a marketing automation platform and describes either a data schema (tables, fields, links) or a technical workflow (activities, scripts). Be specific about what it defines: the schema or workflow name, its purpose, and its notable fields or activities. Do not speculate about things not shown in the document.

Document: %s
Type: %s

` + "```\n%s\n```"

const overviewPrompt = `You are a technical writer analyzing a documentation corpus for a marketing automation platform. Based ONLY on the document summaries and section names provided below, write a concise corpus overview in Markdown.

Rules:
- ONLY describe what you can directly observe in the provided summaries
- Do NOT guess or infer features that aren't shown
- Do NOT describe external tools or services — describe THIS corpus

Cover:
1. What the corpus documents (one paragraph, based on the summaries you see)
2. The main schemas and workflows covered (bullet points)
3. How the pieces relate (which workflows touch which data)

Keep it under 300 words. Do not include code snippets.
`

// maxSummaryContentChars caps how much of a document is sent to the LLM
// for summarization. Dictionary exports can run to hundreds of KB.
const maxSummaryContentChars = 24000

// summarizeDocuments generates per-document summaries for any indexed
// documents that don't have one yet.
func summarizeDocuments(s *store.SQLiteStore, chat *llm.OllamaChat) error {
	docs, err := s.ListDocuments()
	if err != nil {
		return fmt.Errorf("list documents: %w", err)
	}

	for _, d := range docs {
		if d.Summary != "" {
			continue
		}

		fmt.Printf("  Summarizing %s...\n", d.Source)

		content, err := s.DocumentContent(d.Source)
		if err != nil {
			return fmt.Errorf("get content for %s: %w", d.Source, err)
		}
		if content == "" {
			continue
		}
		if len(content) > maxSummaryContentChars {
			content = content[:maxSummaryContentChars]
		}

		prompt := fmt.Sprintf(docSummaryPrompt, d.Source, d.DocType, content)
		msgs := []llm.Message{
			{Role: "user", Content: prompt},
		}

		summary, err := chat.Generate(msgs)
		if err != nil {
			return fmt.Errorf("summarize %s: %w", d.Source, err)
		}

		if err := s.SetDocumentSummary(d.Source, strings.TrimSpace(summary)); err != nil {
			return fmt.Errorf("save summary for %s: %w", d.Source, err)
		}
	}

	return nil
}

// synthesizeOverview combines all document summaries into a corpus-level overview.
func synthesizeOverview(s *store.SQLiteStore, chat *llm.OllamaChat) (string, error) {
	docs, err := s.ListDocuments()
	if err != nil {
		return "", fmt.Errorf("list documents: %w", err)
	}
	if len(docs) == 0 {
		return "", fmt.Errorf("no documents indexed")
	}

	sections, err := s.ListSections()
	if err != nil {
		return "", fmt.Errorf("list sections: %w", err)
	}

	// Group sections by source document.
	sectionsByDoc := make(map[string][]store.SectionSummary)
	for _, sec := range sections {
		sectionsByDoc[sec.Source] = append(sectionsByDoc[sec.Source], sec)
	}

	var b strings.Builder
	b.WriteString(overviewPrompt)
	b.WriteString("\n## Corpus Structure\n\n")

	for _, d := range docs {
		fmt.Fprintf(&b, "### %s  (%s, %d chunks)\n", d.Source, d.DocType, d.Chunks)

		if d.Summary != "" {
			fmt.Fprintf(&b, "Summary: %s\n", d.Summary)
		}

		if docSections, ok := sectionsByDoc[d.Source]; ok {
			for _, sec := range docSections {
				fmt.Fprintf(&b, "  - [%s] %s\n", sec.ChunkType, sec.Section)
			}
		}
		b.WriteString("\n")
	}

	msgs := []llm.Message{
		{Role: "user", Content: b.String()},
	}

	return chat.Generate(msgs)
}
