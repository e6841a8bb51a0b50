package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ralmansi/pifchat/internal/rag"
)

// fakePinger implements Pinger with a fixed result.
type fakePinger struct {
	name string
	err  error
}

func (f *fakePinger) Ping(context.Context) error { return f.err }
func (f *fakePinger) Name() string               { return f.name }

func newHealthTestServer(t *testing.T, pingers ...Pinger) *Server {
	t.Helper()
	svc := &fakeAnswerer{answer: rag.SourcedAnswer{Answer: "ok"}}
	s, err := New(svc, nil, &Config{Pingers: pingers, Registry: prometheus.NewRegistry()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(s.stopRL)
	return s
}

func get(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(w, req)
	return w
}

// ---------------------------------------------------------------------------
// GET /api/health
// ---------------------------------------------------------------------------

func TestHandleHealth(t *testing.T) {
	t.Parallel()

	s := newHealthTestServer(t)
	w := get(t, s, "/api/health")

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status = %q, want ok", body["status"])
	}
}

// ---------------------------------------------------------------------------
// GET /api/ready
// ---------------------------------------------------------------------------

func TestHandleReady_AllHealthy(t *testing.T) {
	t.Parallel()

	s := newHealthTestServer(t,
		&fakePinger{name: "ollama"},
		&fakePinger{name: "qdrant"},
		&fakePinger{name: "llm-proxy"},
	)
	w := get(t, s, "/api/ready")

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp readyResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Ready {
		t.Error("ready = false with all probes healthy")
	}
	if len(resp.Checks) != 3 {
		t.Fatalf("checks = %d, want 3", len(resp.Checks))
	}
	for _, c := range resp.Checks {
		if !c.OK || c.Error != "" {
			t.Errorf("check %s: %+v", c.Name, c)
		}
	}
}

func TestHandleReady_OneDown(t *testing.T) {
	t.Parallel()

	s := newHealthTestServer(t,
		&fakePinger{name: "ollama"},
		&fakePinger{name: "qdrant", err: errors.New("connection refused")},
	)
	w := get(t, s, "/api/ready")

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
	var resp readyResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Ready {
		t.Error("ready = true with a failing probe")
	}
	var qdrant *readyCheck
	for i := range resp.Checks {
		if resp.Checks[i].Name == "qdrant" {
			qdrant = &resp.Checks[i]
		}
	}
	if qdrant == nil || qdrant.OK || qdrant.Error == "" {
		t.Errorf("qdrant check = %+v, want failure with reason", qdrant)
	}
}

func TestHandleReady_NoPingers(t *testing.T) {
	t.Parallel()

	s := newHealthTestServer(t)
	if w := get(t, s, "/api/ready"); w.Code != http.StatusOK {
		t.Errorf("expected 200 in liveness-only mode, got %d", w.Code)
	}
}

// ---------------------------------------------------------------------------
// MultiPinger
// ---------------------------------------------------------------------------

func TestMultiPinger_FirstErrorWins(t *testing.T) {
	t.Parallel()

	mp := NewMultiPinger(
		&fakePinger{name: "a"},
		&fakePinger{name: "b", err: errors.New("down")},
		&fakePinger{name: "c", err: errors.New("also down")},
	)

	err := mp.Ping(context.Background())
	if err == nil {
		t.Fatal("expected error from failing pinger")
	}
	if got := err.Error(); got != "b: down" {
		t.Errorf("error = %q, want the first failure labeled by name", got)
	}
}

func TestMultiPinger_AllHealthy(t *testing.T) {
	t.Parallel()

	mp := NewMultiPinger(&fakePinger{name: "a"}, &fakePinger{name: "b"})
	if err := mp.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}
