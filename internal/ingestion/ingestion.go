// Package ingestion loads pre-extracted report chunks, embeds them, and
// populates the per-document Qdrant collections. The PDF extraction pipeline
// runs elsewhere; its output contract is one JSON file per document holding
// an array of chunk objects.
package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sort"

	"github.com/ralmansi/pifchat/internal/embedder"
	"github.com/ralmansi/pifchat/internal/vectorstore"
)

// MinChunkChars is the minimum chunk length kept for indexing. Shorter
// fragments are page furniture (headers, footers, stray numbers) that only
// pollute retrieval.
const MinChunkChars = 100

// EmbedBatchSize is the batch size used when embedding chunk text.
const EmbedBatchSize = embedder.DefaultBatchSize

// chunkRecord is the on-disk shape of one extracted chunk.
type chunkRecord struct {
	ChunkID string `json:"chunk_id"`
	Index   int    `json:"index"`
	Text    string `json:"text"`
}

// Stats summarizes one document's ingestion.
type Stats struct {
	// Total is the chunk count read from the file.
	Total int
	// Skipped is the count dropped for being under MinChunkChars.
	Skipped int
	// Failed is the count whose embedding failed and were not uploaded.
	Failed int
	// Uploaded is the count stored in the collection.
	Uploaded int
}

// Embedder batch-embeds chunk text. *embedder.Client satisfies it.
type Embedder interface {
	Embed(ctx context.Context, texts []string, batchSize int) []embedder.Result
	Dimensions() int
}

// Store receives the embedded chunks. *vectorstore.Store satisfies it.
type Store interface {
	RecreateCollection(ctx context.Context, name string, vectorSize uint64) error
	Upload(ctx context.Context, name string, vectors [][]float32, chunks []vectorstore.Chunk, batchSize int, progress func(done, total int)) error
	Verify(ctx context.Context, name string) error
}

// Pipeline ingests one document at a time into its own collection.
type Pipeline struct {
	embedder Embedder
	store    Store
	log      *slog.Logger
}

// New builds an ingestion pipeline from its stages.
func New(emb Embedder, store Store, log *slog.Logger) *Pipeline {
	return &Pipeline{
		embedder: emb,
		store:    store,
		log:      log.With("component", "ingestion"),
	}
}

// ReadChunkFile loads and filters the chunk file at path: chunks under
// MinChunkChars are dropped, the rest are returned in ascending index order.
func ReadChunkFile(path string) (chunks []vectorstore.Chunk, skipped int, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, fmt.Errorf("ingestion: read chunk file: %w", err)
	}

	var records []chunkRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, 0, fmt.Errorf("ingestion: parse chunk file %s: %w", path, err)
	}

	for _, rec := range records {
		if len([]rune(rec.Text)) < MinChunkChars {
			skipped++
			continue
		}
		chunks = append(chunks, vectorstore.Chunk{
			ID:    rec.ChunkID,
			Index: rec.Index,
			Text:  rec.Text,
		})
	}
	sort.Slice(chunks, func(i, j int) bool { return chunks[i].Index < chunks[j].Index })
	return chunks, skipped, nil
}

// Ingest embeds chunks and replaces the contents of collection with them.
// Chunks whose embedding failed are dropped rather than stored as zero
// vectors. The collection is verified after upload. progress (optional)
// reports upload advancement.
func (p *Pipeline) Ingest(ctx context.Context, collection string, chunks []vectorstore.Chunk, progress func(done, total int)) (Stats, error) {
	stats := Stats{Total: len(chunks)}
	if len(chunks) == 0 {
		return stats, fmt.Errorf("ingestion: no chunks to ingest into %s", collection)
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	p.log.Info("embedding chunks", "collection", collection, "chunks", len(chunks))
	results := p.embedder.Embed(ctx, texts, EmbedBatchSize)

	vectors := make([][]float32, 0, len(results))
	kept := make([]vectorstore.Chunk, 0, len(results))
	for i, res := range results {
		if res.Failed {
			stats.Failed++
			p.log.Warn("dropping chunk with failed embedding", "chunk_id", chunks[i].ID)
			continue
		}
		vectors = append(vectors, res.Vector)
		kept = append(kept, chunks[i])
	}
	if len(kept) == 0 {
		return stats, fmt.Errorf("ingestion: every embedding failed for %s", collection)
	}

	if err := p.store.RecreateCollection(ctx, collection, uint64(p.embedder.Dimensions())); err != nil {
		return stats, fmt.Errorf("ingestion: %w", err)
	}
	if err := p.store.Upload(ctx, collection, vectors, kept, vectorstore.DefaultBatchSize, progress); err != nil {
		return stats, fmt.Errorf("ingestion: %w", err)
	}
	if err := p.store.Verify(ctx, collection); err != nil {
		return stats, fmt.Errorf("ingestion: %w", err)
	}

	stats.Uploaded = len(kept)
	p.log.Info("collection populated",
		"collection", collection,
		"uploaded", stats.Uploaded,
		"failed_embeddings", stats.Failed,
	)
	return stats, nil
}
