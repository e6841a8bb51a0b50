// Package vectorstore manages the per-report Qdrant collections: connection
// with retry, destructive collection rebuild, batched upload, post-upload
// verification, and thresholded similarity search.
//
// Collections are rebuilt wholesale during ingestion — there is no point-level
// update or delete path. Search never requires a prior Verify.
package vectorstore

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/qdrant/go-client/qdrant"
)

const (
	// DefaultBatchSize is the number of points upserted per batch. Each batch
	// is waited on synchronously so failures surface immediately and memory
	// stays bounded.
	DefaultBatchSize = 64

	// DefaultMaxRetries bounds the connection probe attempts in Connect.
	DefaultMaxRetries = 5

	// connectBaseDelay is the first retry delay; it doubles on each attempt.
	connectBaseDelay = 500 * time.Millisecond

	// recreatePause gives the backend a moment to finish dropping a
	// collection before the replacement is created.
	recreatePause = 500 * time.Millisecond

	// verifySampleSize is the number of points read back by Verify.
	verifySampleSize = 5
)

// Config holds connection parameters for a Qdrant instance.
type Config struct {
	// Host is the Qdrant server hostname (default: localhost).
	Host string

	// Port is the Qdrant gRPC port (default: 6334).
	Port int

	// APIKey is the optional Qdrant API key for authenticated clusters.
	APIKey string

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool

	// MaxRetries bounds the connection probe attempts (default: 5).
	MaxRetries int
}

// Chunk is the unit of stored report text. Produced by the extraction
// pipeline, immutable once uploaded.
type Chunk struct {
	// ID is the stable chunk identifier, unique per source document.
	ID string
	// Index is the 1-based ordinal of the chunk within its document.
	Index int
	// Text is the contextualized chunk text.
	Text string
}

// Hit is one similarity-search result.
type Hit struct {
	// Text is the stored chunk text.
	Text string
	// Score is the cosine similarity to the query (higher is better).
	Score float32
}

// Store wraps a Qdrant gRPC client. It holds only connection state and is
// safe for concurrent use.
type Store struct {
	client *qdrant.Client
	log    *slog.Logger
}

// Connect creates the gRPC client and probes the server with exponentially
// backed-off retries. A server that stays unreachable after all attempts is a
// deployment problem: the returned error carries remediation guidance and the
// caller should fail fast rather than limp along.
func Connect(ctx context.Context, cfg *Config, log *slog.Logger) (*Store, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if log == nil {
		log = slog.Default()
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("vectorstore: failed to create qdrant client: %w", err)
	}

	delay := connectBaseDelay
	var lastErr error
	for attempt := 1; attempt <= cfg.MaxRetries; attempt++ {
		if _, lastErr = client.HealthCheck(ctx); lastErr == nil {
			return &Store{client: client, log: log}, nil
		}

		log.Warn("vectorstore: qdrant not reachable, retrying",
			slog.Int("attempt", attempt),
			slog.Int("max_retries", cfg.MaxRetries),
			slog.Duration("next_delay", delay),
			slog.Any("error", lastErr),
		)

		select {
		case <-ctx.Done():
			_ = client.Close()
			return nil, fmt.Errorf("vectorstore: connect cancelled: %w", ctx.Err())
		case <-time.After(delay):
		}
		delay *= 2
	}

	_ = client.Close()
	return nil, fmt.Errorf(
		"vectorstore: qdrant unreachable at %s:%d after %d attempts: %w "+
			"(start it with `docker run -d -p 6333:6333 -p 6334:6334 qdrant/qdrant`)",
		cfg.Host, cfg.Port, cfg.MaxRetries, lastErr,
	)
}

// RecreateCollection drops the named collection if it exists and creates it
// fresh with cosine distance and the given dimensionality. Destructive by
// design: ingestion is idempotent via full rebuild, not incremental merge.
func (s *Store) RecreateCollection(ctx context.Context, name string, vectorSize uint64) error {
	exists, err := s.client.CollectionExists(ctx, name)
	if err != nil {
		return fmt.Errorf("vectorstore: failed to check collection existence: %w", err)
	}
	if exists {
		if err := s.client.DeleteCollection(ctx, name); err != nil {
			return fmt.Errorf("vectorstore: failed to delete collection %q: %w", name, err)
		}
		// Let the backend finish dropping before the replacement is created.
		select {
		case <-ctx.Done():
			return fmt.Errorf("vectorstore: recreate cancelled: %w", ctx.Err())
		case <-time.After(recreatePause):
		}
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: name,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     vectorSize,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("vectorstore: failed to create collection %q: %w", name, err)
	}

	s.log.Info("vectorstore: collection recreated",
		slog.String("collection", name),
		slog.Uint64("vector_size", vectorSize),
	)
	return nil
}

// Upload stores vectors and their chunks in fixed-size batches. The slices
// must be parallel — vectors[i] is the embedding of chunks[i] — and every
// vector must match the collection's configured dimensionality; a mismatch is
// an error before anything is written. Each batch upsert is waited on so
// per-batch failures surface immediately. The optional progress callback
// receives (uploaded, total) after every batch.
func (s *Store) Upload(ctx context.Context, name string, vectors [][]float32, chunks []Chunk, batchSize int, progress func(done, total int)) error {
	if len(vectors) != len(chunks) {
		return fmt.Errorf("vectorstore: %d vectors for %d chunks", len(vectors), len(chunks))
	}
	if len(chunks) == 0 {
		return fmt.Errorf("vectorstore: nothing to upload to %q", name)
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	dim := len(vectors[0])
	for i, vec := range vectors {
		if len(vec) != dim {
			return fmt.Errorf("vectorstore: vector %d has dimension %d, expected %d", i, len(vec), dim)
		}
	}

	total := len(chunks)
	for start := 0; start < total; start += batchSize {
		end := min(start+batchSize, total)

		points := make([]*qdrant.PointStruct, 0, end-start)
		for i := start; i < end; i++ {
			points = append(points, &qdrant.PointStruct{
				Id:      qdrant.NewIDNum(uint64(i)),
				Vectors: qdrant.NewVectors(vectors[i]...),
				Payload: qdrant.NewValueMap(map[string]any{
					"text":     chunks[i].Text,
					"chunk_id": chunks[i].ID,
				}),
			})
		}

		_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: name,
			Points:         points,
			Wait:           qdrant.PtrOf(true),
		})
		if err != nil {
			return fmt.Errorf("vectorstore: upsert batch %d-%d into %q failed: %w", start, end, name, err)
		}

		s.log.Info("vectorstore: batch uploaded",
			slog.String("collection", name),
			slog.Int("uploaded", end),
			slog.Int("total", total),
		)
		if progress != nil {
			progress(end, total)
		}
	}

	return nil
}

// Verify reads back the collection's point count and a small sample of points
// and reports an error when the count is zero, a sampled point has an empty
// vector, or its text payload is missing. It is a post-upload integrity gate,
// not a search precondition.
func (s *Store) Verify(ctx context.Context, name string) error {
	count, err := s.client.Count(ctx, &qdrant.CountPoints{CollectionName: name})
	if err != nil {
		return fmt.Errorf("vectorstore: count of %q failed: %w", name, err)
	}
	if count == 0 {
		return fmt.Errorf("vectorstore: collection %q is empty", name)
	}

	sample, err := s.client.Scroll(ctx, &qdrant.ScrollPoints{
		CollectionName: name,
		Limit:          qdrant.PtrOf(uint32(verifySampleSize)),
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(true),
	})
	if err != nil {
		return fmt.Errorf("vectorstore: sample read of %q failed: %w", name, err)
	}

	for _, point := range sample {
		if len(point.GetVectors().GetVector().GetData()) == 0 {
			return fmt.Errorf("vectorstore: collection %q has a point with an empty vector", name)
		}
		text, ok := point.GetPayload()["text"]
		if !ok || text.GetStringValue() == "" {
			return fmt.Errorf("vectorstore: collection %q has a point with missing text payload", name)
		}
	}

	s.log.Info("vectorstore: collection verified",
		slog.String("collection", name),
		slog.Uint64("points", count),
	)
	return nil
}

// Search runs a nearest-neighbor query against one collection and returns
// hits at or above scoreThreshold, best first. Thin pass-through to the
// backend; the caller owns the threshold policy.
func (s *Store) Search(ctx context.Context, name string, queryVector []float32, limit uint64, scoreThreshold float32) ([]Hit, error) {
	results, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: name,
		Query:          qdrant.NewQuery(queryVector...),
		Limit:          &limit,
		ScoreThreshold: &scoreThreshold,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("vectorstore: search in %q failed: %w", name, err)
	}

	hits := make([]Hit, 0, len(results))
	for _, r := range results {
		hit := Hit{Score: r.GetScore()}
		if p := r.GetPayload(); p != nil {
			if v, ok := p["text"]; ok {
				hit.Text = v.GetStringValue()
			}
		}
		hits = append(hits, hit)
	}

	return hits, nil
}

// Ping calls the Qdrant HealthCheck RPC.
// Returns nil if Qdrant is reachable, or a descriptive error otherwise.
func (s *Store) Ping(ctx context.Context) error {
	if _, err := s.client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	return nil
}

// Name returns the dependency label used in readiness responses.
func (s *Store) Name() string { return "qdrant" }

// Close closes the underlying Qdrant gRPC connection.
func (s *Store) Close() error {
	return s.client.Close()
}
