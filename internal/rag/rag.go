package rag

import (
	"fmt"
	"strings"

	"tessera/internal/embedder"
	"tessera/internal/llm"
	"tessera/internal/store"
)

const systemPrompt = `You are a documentation assistant for a marketing automation platform. You answer questions about its data schemas and technical workflows using the retrieved documentation context provided below.

The corpus contains two kinds of documents: data dictionary pages (schemas with fields, links, keys and enumerations) and workflow pages (activities and JavaScript scripts). Reference specific schema names, field names and workflow names when relevant.

Keep answers concise and grounded in the provided context. If the context doesn't contain enough information to answer, say so.`

// HybridRetrieve runs both FTS5 keyword search and vector similarity search,
// then merges and deduplicates results with BM25 matches first.
func HybridRetrieve(query string, st store.Store, emb *embedder.OllamaEmbedder, k int) ([]store.SearchResult, error) {
	// Run both searches.
	ftsResults, ftsErr := st.FTSSearch(query, k)
	// FTS errors (e.g. syntax issues in query) are non-fatal — fall back to vector only.
	if ftsErr != nil {
		ftsResults = nil
	}

	vec, err := emb.EmbedSingle(query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	vecResults, err := st.Search(vec, k)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	// Merge: BM25 results first, then vector results, deduplicated by chunk UUID.
	seen := make(map[string]bool)
	var merged []store.SearchResult

	for _, r := range ftsResults {
		if !seen[r.Chunk.UUID] {
			seen[r.Chunk.UUID] = true
			merged = append(merged, r)
		}
	}
	for _, r := range vecResults {
		if !seen[r.Chunk.UUID] {
			seen[r.Chunk.UUID] = true
			merged = append(merged, r)
		}
	}

	if len(merged) > k {
		merged = merged[:k]
	}
	return merged, nil
}

// BuildMessages constructs the message list for the LLM from retrieved chunks,
// conversation history, and the current question.
func BuildMessages(chunks []store.SearchResult, history []llm.Message, question string, overview string) []llm.Message {
	var msgs []llm.Message

	// System message with optional overview.
	sys := systemPrompt
	if overview != "" {
		sys += "\n\n## Corpus Overview\n\n" + overview
	}
	msgs = append(msgs, llm.Message{Role: "system", Content: sys})

	// Context message with retrieved chunks.
	if len(chunks) > 0 {
		var ctx strings.Builder
		ctx.WriteString("Here is the relevant documentation context:\n\n")
		for i, c := range chunks {
			fmt.Fprintf(&ctx, "--- Chunk %d: %s [%s %s] (%s) ---\n",
				i+1, c.Source, c.Chunk.ChunkType, c.Chunk.Section, c.DocType)
			ctx.WriteString(c.Chunk.Content)
			ctx.WriteString("\n\n")
		}
		msgs = append(msgs, llm.Message{Role: "user", Content: ctx.String()})
		msgs = append(msgs, llm.Message{Role: "assistant", Content: "I've reviewed the documentation context. What would you like to know?"})
	}

	// Conversation history.
	msgs = append(msgs, history...)

	// Current question.
	msgs = append(msgs, llm.Message{Role: "user", Content: question})

	return msgs
}
