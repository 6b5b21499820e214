package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"tessera/internal/embedder"
	"tessera/internal/rag"
	"tessera/internal/store"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start an MCP server exposing documentation search tools",
	RunE:  runMCP,
}

func runMCP(cmd *cobra.Command, args []string) error {
	// Resolve DB path — same pattern as chat.go.
	dbPath := flagDB
	if dbPath == "" {
		wd, err := os.Getwd()
		if err != nil {
			return err
		}
		dbPath = filepath.Join(wd, ".tessera", "index.db")
	}
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return fmt.Errorf("index not found at %s\nRun 'tessera index <path>' first to build the index", dbPath)
	}

	st, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open index: %w", err)
	}
	defer st.Close()

	emb := embedder.NewOllamaEmbedder(flagOllama, flagModel)
	overviewPath := filepath.Join(filepath.Dir(dbPath), "overview.md")

	s := mcpserver.NewMCPServer("tessera", "1.0.0", mcpserver.WithToolCapabilities(false))

	s.AddTool(searchDocsTool(), makeSearchHandler(st, emb))
	s.AddTool(getDocumentSummaryTool(), makeDocumentSummaryHandler(st))
	s.AddTool(getCorpusOverviewTool(), makeOverviewHandler(overviewPath))
	s.AddTool(listIndexedDocumentsTool(), makeListDocumentsHandler(st))

	return mcpserver.ServeStdio(s)
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

// --- Tool schema builders ---

var readOnlyAnnotation = mcp.ToolAnnotation{
	ReadOnlyHint:    mcp.ToBoolPtr(true),
	DestructiveHint: mcp.ToBoolPtr(false),
	IdempotentHint:  mcp.ToBoolPtr(true),
	OpenWorldHint:   mcp.ToBoolPtr(false),
}

func searchDocsTool() mcp.Tool {
	return mcp.NewTool("search_docs",
		mcp.WithDescription("Semantically search the indexed schema and workflow documentation using hybrid BM25 + vector similarity. Returns relevant documentation chunks with their source document and section."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Natural language or keyword query, e.g. a schema name, field name or workflow activity"),
		),
		mcp.WithNumber("k",
			mcp.Description("Maximum number of chunks to return (default 10)"),
		),
	)
}

func getDocumentSummaryTool() mcp.Tool {
	return mcp.NewTool("get_document_summary",
		mcp.WithDescription("Get the LLM-generated summary and metadata for a specific indexed document."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
		mcp.WithString("source",
			mcp.Required(),
			mcp.Description("Document file name as indexed (e.g. 'dictionnaire_donnees.md')"),
		),
	)
}

func getCorpusOverviewTool() mcp.Tool {
	return mcp.NewTool("get_corpus_overview",
		mcp.WithDescription("Get the high-level corpus overview synthesized from all document summaries during indexing."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
	)
}

func listIndexedDocumentsTool() mcp.Tool {
	return mcp.NewTool("list_indexed_documents",
		mcp.WithDescription("List all documents in the index with their type, chunk count, and summary snippet."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
		mcp.WithString("doc_type",
			mcp.Description("Optional type filter: 'schema' or 'workflow'. Case-insensitive."),
		),
	)
}

// --- Handler factories ---

func makeSearchHandler(st store.Store, emb *embedder.OllamaEmbedder) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query := req.GetString("query", "")
		if query == "" {
			return mcp.NewToolResultError("query is required"), nil
		}
		k := req.GetInt("k", 10)
		if k <= 0 {
			k = 10
		}

		chunks, err := rag.HybridRetrieve(query, st, emb, k)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
		}

		return mcp.NewToolResultText(formatSearchResults(query, chunks)), nil
	}
}

func makeDocumentSummaryHandler(st store.Store) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		source := req.GetString("source", "")
		if source == "" {
			return mcp.NewToolResultError("source is required"), nil
		}

		docs, err := st.ListDocuments()
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("list documents failed: %v", err)), nil
		}

		for _, d := range docs {
			if d.Source == source {
				summary := d.Summary
				if summary == "" {
					summary = "(No summary generated yet)"
				}
				return mcp.NewToolResultText(fmt.Sprintf("## %s\n\n**Type:** %s  \n**Chunks:** %d\n\n%s",
					d.Source, d.DocType, d.Chunks, summary)), nil
			}
		}

		return mcp.NewToolResultError(fmt.Sprintf("document %q not found in index — call list_indexed_documents to see available sources", source)), nil
	}
}

func makeOverviewHandler(overviewPath string) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		data, err := os.ReadFile(overviewPath)
		if err != nil {
			if os.IsNotExist(err) {
				return mcp.NewToolResultText("No overview available yet. Run 'tessera index <path>' to generate one."), nil
			}
			return mcp.NewToolResultError(fmt.Sprintf("read overview failed: %v", err)), nil
		}
		if len(data) == 0 {
			return mcp.NewToolResultText("Overview file exists but is empty."), nil
		}
		return mcp.NewToolResultText(string(data)), nil
	}
}

func makeListDocumentsHandler(st store.Store) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		typeFilter := strings.ToLower(req.GetString("doc_type", ""))

		docs, err := st.ListDocuments()
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("list documents failed: %v", err)), nil
		}

		var filtered []store.DocumentSummary
		for _, d := range docs {
			if typeFilter == "" || strings.ToLower(d.DocType) == typeFilter {
				filtered = append(filtered, d)
			}
		}

		var sb strings.Builder
		if typeFilter != "" {
			fmt.Fprintf(&sb, "## Indexed documents (%d, type: %s)\n\n", len(filtered), typeFilter)
		} else {
			fmt.Fprintf(&sb, "## Indexed documents (%d)\n\n", len(filtered))
		}

		for _, d := range filtered {
			snippet := d.Summary
			if idx := strings.Index(snippet, "\n"); idx >= 0 {
				snippet = snippet[:idx]
			}
			if len(snippet) > 120 {
				snippet = snippet[:120] + "..."
			}
			if snippet == "" {
				snippet = "(no summary)"
			}
			fmt.Fprintf(&sb, "- **%s** (%s, %d chunks) — %s\n", d.Source, d.DocType, d.Chunks, snippet)
		}

		return mcp.NewToolResultText(sb.String()), nil
	}
}

// --- Formatting helpers ---

func formatSearchResults(query string, chunks []store.SearchResult) string {
	if len(chunks) == 0 {
		return fmt.Sprintf("No results found for query: %q", query)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "## Search results for %q (%d chunks)\n\n", query, len(chunks))

	for i, c := range chunks {
		fmt.Fprintf(&sb, "### Result %d: `%s`\n\n", i+1, c.Source)
		fmt.Fprintf(&sb, "**Type:** %s  \n**Section:** %s  \n**Chunk:** %s\n\n",
			c.DocType, c.Chunk.Section, c.Chunk.ChunkType)
		fmt.Fprintf(&sb, "%s\n\n", c.Chunk.Content)
	}

	return sb.String()
}
