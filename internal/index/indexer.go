package index

import (
	"fmt"
	"os"
	"path/filepath"

	"tessera/internal/chunker"
	"tessera/internal/embedder"
	"tessera/internal/llm"
	"tessera/internal/store"
)

// ProgressFunc reports pipeline progress to the caller (used by the TUI).
type ProgressFunc func(phase string, processed, total int)

// Config holds the indexer configuration.
type Config struct {
	DBPath        string
	OllamaURL     string
	Model         string
	Workers       int
	OverviewModel string
	OnProgress    ProgressFunc
}

// Indexer is the public API for indexing and searching documentation corpora.
type Indexer struct {
	store    *store.SQLiteStore
	embedder *embedder.OllamaEmbedder
	registry *chunker.Registry
	config   Config
}

// New creates a new Indexer with the given configuration.
func New(cfg Config) (*Indexer, error) {
	s, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	reg := chunker.NewRegistry()
	chunker.RegisterDefaults(reg)

	return &Indexer{
		store:    s,
		embedder: embedder.NewOllamaEmbedder(cfg.OllamaURL, cfg.Model),
		registry: reg,
		config:   cfg,
	}, nil
}

// Index indexes the documentation corpus at the given root path.
func (idx *Indexer) Index(root string) (*Stats, error) {
	// Check if the embedding model changed since last indexing.
	lastModel, err := idx.store.GetMeta("embedding_model")
	if err != nil {
		return nil, fmt.Errorf("get meta: %w", err)
	}
	if lastModel != "" && lastModel != idx.config.Model {
		fmt.Printf("Embedding model changed from %q to %q — re-indexing all documents\n", lastModel, idx.config.Model)
		if err := idx.store.DeleteAll(); err != nil {
			return nil, fmt.Errorf("delete all chunks: %w", err)
		}
	}

	stats, err := runPipeline(root, idx.store, idx.registry, idx.embedder, idx.config.Workers, idx.config.OnProgress)
	if err != nil {
		return nil, err
	}

	if err := idx.store.SetMeta("embedding_model", idx.config.Model); err != nil {
		return nil, fmt.Errorf("set meta: %w", err)
	}

	// Generate the corpus overview if documents were indexed.
	if stats.DocsIndexed > 0 {
		overviewModel := idx.config.OverviewModel
		if overviewModel == "" {
			overviewModel = "qwen3:8b"
		}
		chat := llm.NewOllamaChat(idx.config.OllamaURL, overviewModel)

		fmt.Println("Generating document summaries...")
		if err := summarizeDocuments(idx.store, chat); err != nil {
			fmt.Fprintf(os.Stderr, "warning: document summarization failed: %v\n", err)
		}

		fmt.Println("Generating corpus overview...")
		overview, err := synthesizeOverview(idx.store, chat)
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: overview generation failed: %v\n", err)
		} else {
			overviewPath := filepath.Join(filepath.Dir(idx.config.DBPath), "overview.md")
			if err := os.WriteFile(overviewPath, []byte(overview), 0o644); err != nil {
				fmt.Fprintf(os.Stderr, "warning: failed to write overview: %v\n", err)
			}
		}
	}

	return stats, nil
}

// Search finds the top-k chunks closest to the query.
func (idx *Indexer) Search(query string, k int) ([]store.SearchResult, error) {
	embedding, err := idx.embedder.EmbedSingle(query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return idx.store.Search(embedding, k)
}

// Close releases resources.
func (idx *Indexer) Close() error {
	return idx.store.Close()
}
