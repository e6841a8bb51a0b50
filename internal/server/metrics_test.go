package server

import (
	"net/http"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ralmansi/pifchat/internal/rag"
)

func Test_Metrics_EndpointReturns200(t *testing.T) {
	t.Parallel()

	s := newChatTestServer(t, &fakeAnswerer{}, nil)
	w := get(t, s, "/metrics")

	if w.Code != http.StatusOK {
		t.Errorf("want 200, got %d", w.Code)
	}
	ct := w.Header().Get("Content-Type")
	if !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("want text/plain content-type, got %q", ct)
	}
}

func Test_Metrics_ChatCounterByOutcome(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	svc := &fakeAnswerer{answer: rag.SourcedAnswer{
		Answer:  "grounded",
		Sources: []rag.Source{{Year: "2023", Score: 0.7}},
	}}
	s, err := New(svc, nil, &Config{Registry: reg})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(s.stopRL)

	postChat(t, s, `{"question":"a real question"}`)
	postChat(t, s, `{"question":"x"}`) // rejected: too short

	if got := counterValue(t, reg, "pifchat_chat_requests_total", "outcome", "answered"); got != 1 {
		t.Errorf("answered counter = %v, want 1", got)
	}
	if got := counterValue(t, reg, "pifchat_chat_requests_total", "outcome", "invalid"); got != 1 {
		t.Errorf("invalid counter = %v, want 1", got)
	}
}

func Test_Metrics_NoContextOutcome(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	svc := &fakeAnswerer{answer: rag.SourcedAnswer{Answer: "no info"}}
	s, err := New(svc, nil, &Config{Registry: reg})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(s.stopRL)

	postChat(t, s, `{"question":"an unanswerable question"}`)

	if got := counterValue(t, reg, "pifchat_chat_requests_total", "outcome", "no_context"); got != 1 {
		t.Errorf("no_context counter = %v, want 1", got)
	}
}

// counterValue gathers reg and returns the value of the named counter with
// the given label pair, or -1 when absent.
func counterValue(t *testing.T, reg *prometheus.Registry, name, label, value string) float64 {
	t.Helper()

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if lp.GetName() == label && lp.GetValue() == value {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return -1
}
