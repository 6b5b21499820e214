package index

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"

	"tessera/internal/chunker"
	"tessera/internal/embedder"
	"tessera/internal/store"
	"tessera/internal/walker"
)

const embedBatchSize = 32

// Stats reports indexing results.
type Stats struct {
	DocsTotal   int
	DocsIndexed int
	DocsSkipped int
	ChunksTotal int
}

// docWork is a document that needs to be (re-)indexed.
type docWork struct {
	info    walker.FileInfo
	hash    string
	docType chunker.DocType
	src     []byte
}

// chunkBatch is the chunks extracted from a single document.
type chunkBatch struct {
	work   docWork
	chunks []chunker.Chunk
}

// embeddedBatch has chunks with their embeddings ready to store.
type embeddedBatch struct {
	work       docWork
	chunks     []chunker.Chunk
	embeddings [][]float32
}

func runPipeline(
	root string,
	s *store.SQLiteStore,
	registry *chunker.Registry,
	emb *embedder.OllamaEmbedder,
	numWorkers int,
	onProgress ProgressFunc,
) (*Stats, error) {
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}

	var stats Stats
	var docsTotal atomic.Int64

	// Stage 1: Walk (only documents a registered chunker claims)
	fileCh, walkErrCh := walker.Walk(root, func(path string) bool {
		return registry.DocTypeFor(path) != ""
	})

	// Stage 2: Hash + check (N workers)
	workCh := make(chan docWork, numWorkers)
	var hashWg sync.WaitGroup
	for range numWorkers {
		hashWg.Add(1)
		go func() {
			defer hashWg.Done()
			for fi := range fileCh {
				docsTotal.Add(1)
				src, err := os.ReadFile(fi.Path)
				if err != nil {
					continue
				}
				h := sha256.Sum256(src)
				hash := hex.EncodeToString(h[:])

				source := filepath.Base(fi.Path)
				existing, err := s.GetDocumentHash(source)
				if err == nil && existing == hash {
					continue // unchanged
				}

				workCh <- docWork{
					info:    fi,
					hash:    hash,
					docType: registry.DocTypeFor(fi.Path),
					src:     src,
				}
			}
		}()
	}
	go func() {
		hashWg.Wait()
		close(workCh)
	}()

	// Stage 3: Chunk (N workers). Chunking is pure, so workers share nothing
	// but the registry's read-only chunkers.
	chunkCh := make(chan chunkBatch, numWorkers)
	var chunkWg sync.WaitGroup
	for range numWorkers {
		chunkWg.Add(1)
		go func() {
			defer chunkWg.Done()
			for w := range workCh {
				docChunker, _ := registry.Lookup(w.info.Path)
				if docChunker == nil {
					continue
				}
				chunks := docChunker.ChunkContent(string(w.src), filepath.Base(w.info.Path))
				if len(chunks) > 0 {
					chunkCh <- chunkBatch{work: w, chunks: chunks}
				}
			}
		}()
	}
	go func() {
		chunkWg.Wait()
		close(chunkCh)
	}()

	// Stage 4: Embed (1 worker, batches of embedBatchSize)
	embeddedCh := make(chan embeddedBatch, 4)
	var embedErr error
	var embedWg sync.WaitGroup
	embedWg.Add(1)
	go func() {
		defer embedWg.Done()
		defer close(embeddedCh)

		for batch := range chunkCh {
			texts := make([]string, len(batch.chunks))
			for i, c := range batch.chunks {
				texts[i] = c.Content
			}

			embeddings, err := emb.EmbedAll(texts, embedBatchSize)
			if err != nil {
				fmt.Fprintf(os.Stderr, "embed error %s: %v\n", batch.work.info.RelPath, err)
				embedErr = err
				// Drain so the chunk workers can finish.
				for range chunkCh {
				}
				return
			}

			embeddedCh <- embeddedBatch{
				work:       batch.work,
				chunks:     batch.chunks,
				embeddings: embeddings,
			}
		}
	}()

	// Stage 5: Store (1 worker)
	var storeErr error
	var storeWg sync.WaitGroup
	storeWg.Add(1)
	go func() {
		defer storeWg.Done()

		for eb := range embeddedCh {
			docID, err := s.UpsertDocument(store.DocumentRecord{
				Source:    filepath.Base(eb.work.info.Path),
				Hash:      eb.work.hash,
				DocType:   string(eb.work.docType),
				SizeBytes: eb.work.info.Size,
			})
			if err != nil {
				fmt.Fprintf(os.Stderr, "store upsert error %s: %v\n", eb.work.info.RelPath, err)
				storeErr = err
				continue
			}

			chunkIDs, err := s.InsertChunks(docID, eb.chunks)
			if err != nil {
				fmt.Fprintf(os.Stderr, "store chunks error %s: %v\n", eb.work.info.RelPath, err)
				storeErr = err
				continue
			}

			if err := s.InsertEmbeddings(chunkIDs, eb.embeddings); err != nil {
				fmt.Fprintf(os.Stderr, "store embeddings error %s: %v\n", eb.work.info.RelPath, err)
				storeErr = err
				continue
			}

			stats.DocsIndexed++
			stats.ChunksTotal += len(eb.chunks)
			if onProgress != nil {
				onProgress("Indexing documents...", stats.DocsIndexed, int(docsTotal.Load()))
			}
		}
	}()

	// Wait for all stages to complete.
	storeWg.Wait()
	embedWg.Wait()

	// Check walk errors.
	if err := <-walkErrCh; err != nil {
		return nil, fmt.Errorf("walk error: %w", err)
	}

	stats.DocsTotal = int(docsTotal.Load())
	stats.DocsSkipped = stats.DocsTotal - stats.DocsIndexed

	if embedErr != nil {
		return &stats, fmt.Errorf("embedding failed: %w", embedErr)
	}
	if storeErr != nil {
		return &stats, fmt.Errorf("storage failed: %w", storeErr)
	}

	return &stats, nil
}
