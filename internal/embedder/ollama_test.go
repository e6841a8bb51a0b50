package embedder

import (
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// newTestClient builds a Client against an httptest server implementing the
// Ollama /api/version and /api/embeddings endpoints. embedFn handles each
// embedding request; returning nil, false simulates a missing embedding.
func newTestClient(t *testing.T, dims int, embedFn func(prompt string) ([]float32, bool)) *Client {
	t.Helper()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/version":
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]string{"version": "0.11.0"})
		case "/api/embeddings":
			var req embedRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, "bad body", http.StatusBadRequest)
				return
			}
			vec, ok := embedFn(req.Prompt)
			if !ok {
				// Valid JSON, no embedding field — the malformed-response case.
				json.NewEncoder(w).Encode(map[string]any{})
				return
			}
			json.NewEncoder(w).Encode(embedResponse{Embedding: vec})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(ts.Close)

	c, err := New(context.Background(), &Config{Host: ts.URL, Dimensions: dims}, slog.Default())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

// l2norm returns the Euclidean norm of vec.
func l2norm(vec []float32) float64 {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum)
}

func TestNew_UnreachableFailsFast(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), &Config{Host: "http://127.0.0.1:1"}, slog.Default())
	if err == nil {
		t.Fatal("expected construction to fail when ollama is unreachable")
	}
	if !strings.Contains(err.Error(), "unreachable") {
		t.Errorf("error should mention unreachability: %v", err)
	}
}

func TestEmbed_AllVectorsUnitNorm(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, 4, func(prompt string) ([]float32, bool) {
		return []float32{3, 4, 0, 0}, true
	})

	results := c.Embed(context.Background(), []string{"a", "b", "c"}, 2)
	if len(results) != 3 {
		t.Fatalf("want 3 results, got %d", len(results))
	}
	for i, r := range results {
		if r.Failed {
			t.Errorf("result %d unexpectedly failed", i)
		}
		if n := l2norm(r.Vector); math.Abs(n-1.0) > 1e-6 {
			t.Errorf("result %d: norm = %f, want 1.0", i, n)
		}
	}
}

func TestEmbed_MissingEmbeddingSubstitutesZeroVector(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, 4, func(prompt string) ([]float32, bool) {
		if prompt == "bad" {
			return nil, false
		}
		return []float32{1, 0, 0, 0}, true
	})

	results := c.Embed(context.Background(), []string{"good", "bad", "good"}, 8)
	if len(results) != 3 {
		t.Fatalf("want 3 results, got %d", len(results))
	}

	if results[1].Failed != true {
		t.Error("bad item should be tagged Failed")
	}
	if n := l2norm(results[1].Vector); n != 0 {
		t.Errorf("failed item must keep the zero vector, norm = %f", n)
	}
	if len(results[1].Vector) != 4 {
		t.Errorf("zero vector must have configured dimensionality, got %d", len(results[1].Vector))
	}

	// A single bad item must not abort the batch.
	if results[0].Failed || results[2].Failed {
		t.Error("good items around a failure must still succeed")
	}
}

func TestEmbed_DimensionMismatchIsFailure(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, 4, func(prompt string) ([]float32, bool) {
		return []float32{1, 2}, true // wrong size
	})

	results := c.Embed(context.Background(), []string{"x"}, 1)
	if !results[0].Failed {
		t.Error("dimension mismatch must be tagged Failed, not silently padded")
	}
}

func TestEmbedQuery_NeverFails(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, 4, func(prompt string) ([]float32, bool) {
		return nil, false
	})

	vec := c.EmbedQuery(context.Background(), "anything")
	if len(vec) != 4 {
		t.Fatalf("want zero vector of dim 4, got len %d", len(vec))
	}
	if n := l2norm(vec); n != 0 {
		t.Errorf("fallback query vector must be all zeros, norm = %f", n)
	}
}

func TestEmbedQuery_Normalized(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, 3, func(prompt string) ([]float32, bool) {
		return []float32{0, 5, 0}, true
	})

	vec := c.EmbedQuery(context.Background(), "question")
	if n := l2norm(vec); math.Abs(n-1.0) > 1e-6 {
		t.Errorf("norm = %f, want 1.0", n)
	}
}

func TestNormalize_ZeroVectorUntouched(t *testing.T) {
	t.Parallel()

	vec := []float32{0, 0, 0}
	Normalize(vec)
	for i, v := range vec {
		if v != 0 {
			t.Errorf("vec[%d] = %f, want 0", i, v)
		}
	}
}
