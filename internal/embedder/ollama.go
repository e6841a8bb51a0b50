// Package embedder converts report text into dense vector embeddings using a
// local Ollama instance. Embedding failures never abort a batch: a failed item
// is tagged and carries an all-zero vector so ingestion can continue with
// degraded recall rather than losing the whole document.
package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"time"
)

// Default embedding backend settings. The qwen3-embedding model produces
// 1024-dimensional vectors; override with EMBEDDING_MODEL / EMBEDDING_DIMENSIONS.
const (
	DefaultModel      = "qwen3-embedding"
	DefaultDimensions = 1024
	DefaultHost       = "http://localhost:11434"

	// DefaultBatchSize is the number of texts grouped per embedding batch.
	DefaultBatchSize = 8

	// requestTimeout bounds each individual embedding HTTP round-trip.
	requestTimeout = 60 * time.Second

	// probeTimeout bounds the construction-time reachability probe.
	probeTimeout = 5 * time.Second
)

// Result is the outcome of embedding one text. Failed embeddings are explicit
// rather than silently substituted so callers and tests can observe them; the
// vector of a failed result is all zeros ("no embedding available") and is
// deliberately not unit-normalized.
type Result struct {
	// Vector is the embedding, L2-normalized to unit length unless Failed.
	Vector []float32
	// Failed reports that the embedding backend returned no usable vector.
	Failed bool
}

// Config holds the settings for constructing a Client.
type Config struct {
	// Host is the Ollama server base URL (e.g. "http://localhost:11434").
	Host string
	// Model is the embedding model name.
	Model string
	// Dimensions is the vector size produced by Model; zero-fallback vectors
	// are created with this length.
	Dimensions int
}

// Client calls the Ollama /api/embeddings endpoint. It is safe for concurrent
// use. No API key is required — Ollama runs locally.
type Client struct {
	host  string
	model string
	dims  int
	// client is the shared HTTP client with a sensible timeout.
	client *http.Client
	log    *slog.Logger
}

// New constructs a Client and verifies the Ollama server is reachable.
// Construction fails fast when the backend is entirely unreachable; per-item
// failures at embed time degrade instead (see Embed).
func New(ctx context.Context, cfg *Config, log *slog.Logger) (*Client, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = DefaultDimensions
	}
	if log == nil {
		log = slog.Default()
	}

	c := &Client{
		host:   cfg.Host,
		model:  cfg.Model,
		dims:   cfg.Dimensions,
		client: &http.Client{Timeout: requestTimeout},
		log:    log,
	}

	if err := c.Ping(ctx); err != nil {
		return nil, fmt.Errorf("embedder: ollama unreachable at %s: %w (start it with `ollama serve`)", cfg.Host, err)
	}

	return c, nil
}

// Dimensions returns the configured embedding vector size.
func (c *Client) Dimensions() int { return c.dims }

// Name returns the dependency label used in readiness responses.
func (c *Client) Name() string { return "ollama" }

// Ping probes the Ollama version endpoint.
// Returns nil when the server is reachable, a descriptive error otherwise.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.host+"/api/version", nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("version probe: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("version probe: HTTP %d", resp.StatusCode)
	}
	return nil
}

// embedRequest is the JSON body sent to the Ollama /api/embeddings endpoint.
type embedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

// embedResponse is the JSON body returned from the Ollama /api/embeddings endpoint.
type embedResponse struct {
	Embedding []float32 `json:"embedding"`
	Error     string    `json:"error,omitempty"`
}

// Embed converts a batch of texts into embeddings. The returned slice is
// parallel to the input. A missing or malformed response for one item yields a
// zero-vector Result with Failed set and the batch continues; a request-level
// failure fails every remaining item of that batch the same way. Successful
// vectors are normalized to unit L2 norm.
func (c *Client) Embed(ctx context.Context, texts []string, batchSize int) []Result {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	results := make([]Result, 0, len(texts))
	for start := 0; start < len(texts); start += batchSize {
		end := min(start+batchSize, len(texts))

		for i := start; i < end; i++ {
			vec, err := c.embedOne(ctx, texts[i])
			if err != nil {
				c.log.Warn("embedder: item failed, substituting zero vector",
					slog.Int("index", i),
					slog.Any("error", err),
				)
				results = append(results, Result{Vector: make([]float32, c.dims), Failed: true})
				continue
			}
			results = append(results, Result{Vector: vec})
		}

		c.log.Debug("embedder: batch complete",
			slog.Int("batch", start/batchSize+1),
			slog.Int("done", end),
			slog.Int("total", len(texts)),
		)
	}

	for i := range results {
		Normalize(results[i].Vector)
	}

	return results
}

// EmbedQuery embeds a single query string and returns the unit-normalized
// vector. It never fails: on any backend error it logs a warning and returns
// the all-zero fallback vector, which downstream search treats as "no match".
func (c *Client) EmbedQuery(ctx context.Context, text string) []float32 {
	vec, err := c.embedOne(ctx, text)
	if err != nil {
		c.log.Warn("embedder: query embedding failed, substituting zero vector",
			slog.Any("error", err),
		)
		return make([]float32, c.dims)
	}
	Normalize(vec)
	return vec
}

// embedOne issues one embedding request for a single text.
func (c *Client) embedOne(ctx context.Context, text string) ([]float32, error) {
	payload, err := json.Marshal(embedRequest{Model: c.model, Prompt: text})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := c.host + "/api/embeddings"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	var result embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := fmt.Sprintf("HTTP %d", resp.StatusCode)
		if result.Error != "" {
			msg = result.Error
		}
		return nil, fmt.Errorf("%s", msg)
	}

	if len(result.Embedding) == 0 {
		return nil, fmt.Errorf("no embedding in response")
	}
	if len(result.Embedding) != c.dims {
		return nil, fmt.Errorf("expected %d dimensions, got %d", c.dims, len(result.Embedding))
	}

	return result.Embedding, nil
}

// Normalize scales vec to unit L2 norm in place. A vector whose norm is
// exactly zero is left untouched — the all-zero fallback vector must stay
// all-zero rather than divide by zero.
func Normalize(vec []float32) {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return
	}
	norm := float32(math.Sqrt(sum))
	for i := range vec {
		vec[i] /= norm
	}
}
