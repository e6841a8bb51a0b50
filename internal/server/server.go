// Package server implements the HTTP server that exposes the question
// answering pipeline as a small JSON API: POST /api/chat plus liveness,
// readiness, and metrics endpoints.
// The server is started by the `pifchat serve` CLI command.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ralmansi/pifchat/internal/generator"
	"github.com/ralmansi/pifchat/internal/logging"
	"github.com/ralmansi/pifchat/internal/store"
)

// Question length bounds, in runes. Mirrored by the CLI front ends.
const (
	MinQuestionRunes = 3
	MaxQuestionRunes = 500
)

// historyWindow is how many persisted messages are replayed into each
// answer's conversation transcript.
const historyWindow = 8

// defaultSessionID is the thread used when the client does not name one.
const defaultSessionID = "default"

// New constructs a Server around the answering service. history may be nil,
// which disables conversation persistence.
func New(svc answerer, history store.HistoryStore, cfg *Config) (*Server, error) {
	if svc == nil {
		return nil, fmt.Errorf("server: answering service must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		// Must cover embedding, multi-collection search, and generation.
		cfg.WriteTimeout = 90 * time.Second
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.New()
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = defaultRateLimit
	}
	if cfg.RateBurst == 0 {
		cfg.RateBurst = defaultRateBurst
	}
	if cfg.Registry == nil {
		cfg.Registry = prometheus.NewRegistry()
	}

	s := &Server{
		svc:     svc,
		history: history,
		cfg:     cfg,
		log:     cfg.Logger.With(slog.String("component", "server")),
		pingers: cfg.Pingers,
		metrics: newServerMetrics(cfg.Registry),
	}

	rl, stopRL := newRateLimiter(cfg.RateLimit, cfg.RateBurst, s.log)
	s.stopRL = stopRL

	if cfg.APIKey == "" {
		s.log.Warn("API key not configured, authentication disabled")
	}

	protect := func(name string, h http.HandlerFunc) http.Handler {
		return s.instrument(name, authMiddleware(cfg.APIKey, rl.middleware(h)))
	}

	mux := http.NewServeMux()
	mux.Handle("POST /api/chat", protect("chat", s.handleChat))
	mux.Handle("DELETE /api/chat", protect("chat_clear", s.handleClearSession))
	mux.Handle("GET /api/health", s.instrument("health", http.HandlerFunc(s.handleHealth)))
	mux.Handle("GET /api/ready", s.instrument("ready", http.HandlerFunc(s.handleReady)))
	mux.Handle("GET /metrics", promhttp.HandlerFor(cfg.Registry, promhttp.HandlerOpts{}))

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      requestLogger(cfg.Logger, mux),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s, nil
}

// Start begins listening and serving HTTP requests. It blocks until the
// context is cancelled, then performs a graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	defer s.stopRL()

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("listening", slog.String("addr", "http://"+s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: listen error: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: graceful shutdown failed: %w", err)
		}
		return nil
	}
}

// handleChat handles POST /api/chat: validate the question, replay the
// session's recent history, answer, persist the exchange, respond with the
// sourced answer.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())
	start := time.Now()

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.reject(w, "invalid request body")
		return
	}
	req.Question = strings.TrimSpace(req.Question)

	if n := len([]rune(req.Question)); n < MinQuestionRunes {
		s.reject(w, fmt.Sprintf("question too short, need at least %d characters", MinQuestionRunes))
		return
	} else if n > MaxQuestionRunes {
		s.reject(w, fmt.Sprintf("question too long, keep it under %d characters", MaxQuestionRunes))
		return
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = defaultSessionID
	}

	history := s.loadHistory(r.Context(), sessionID)
	answer := s.svc.AnswerWithSources(r.Context(), req.Question, history)
	s.saveExchange(r.Context(), sessionID, req.Question, answer.Answer)

	outcome := "answered"
	if len(answer.Sources) == 0 {
		outcome = "no_context"
	}
	s.metrics.chatRequestsTotal.WithLabelValues(outcome).Inc()
	s.metrics.chatDurationSeconds.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
	s.metrics.chatSourcesReturned.Observe(float64(len(answer.Sources)))

	log.Info("chat answered",
		slog.String("session_id", sessionID),
		slog.String("outcome", outcome),
		slog.Bool("arabic", answer.Arabic),
		slog.Int("sources", len(answer.Sources)),
	)

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(chatResponse{SourcedAnswer: answer, SessionID: sessionID}); err != nil {
		log.Error("chat encode error", slog.Any("error", err))
	}
}

// handleClearSession handles DELETE /api/chat: drop the session's persisted
// thread so the next question starts a fresh conversation. The session is
// selected with the session_id query parameter, defaulting like POST.
func (s *Server) handleClearSession(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		sessionID = defaultSessionID
	}

	if s.history != nil {
		if err := s.history.Clear(r.Context(), sessionID); err != nil {
			log.Error("history clear failed", slog.String("session_id", sessionID), slog.Any("error", err))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			_ = json.NewEncoder(w).Encode(errorResponse{Error: "failed to clear session"})
			return
		}
	}

	log.Info("session cleared", slog.String("session_id", sessionID))
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "cleared", "session_id": sessionID})
}

// reject sends a 400 with a JSON error body and counts it.
func (s *Server) reject(w http.ResponseWriter, msg string) {
	s.metrics.chatRequestsTotal.WithLabelValues("invalid").Inc()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	_ = json.NewEncoder(w).Encode(errorResponse{Error: msg})
}

// loadHistory replays the session's recent messages as generator turns.
// Persistence failures degrade to an empty history, never to a failed answer.
func (s *Server) loadHistory(ctx context.Context, sessionID string) []generator.Turn {
	if s.history == nil {
		return nil
	}
	msgs, err := s.history.Recent(ctx, sessionID, historyWindow)
	if err != nil {
		s.log.Warn("history load failed", slog.String("session_id", sessionID), slog.Any("error", err))
		return nil
	}
	turns := make([]generator.Turn, 0, len(msgs))
	for _, m := range msgs {
		turns = append(turns, generator.Turn{Role: string(m.Role), Content: m.Content})
	}
	return turns
}

// saveExchange persists both sides of the exchange, best effort.
func (s *Server) saveExchange(ctx context.Context, sessionID, question, answer string) {
	if s.history == nil {
		return
	}
	if err := s.history.Append(ctx, sessionID, store.RoleUser, question); err != nil {
		s.log.Warn("history append failed", slog.Any("error", err))
		return
	}
	if err := s.history.Append(ctx, sessionID, store.RoleAssistant, answer); err != nil {
		s.log.Warn("history append failed", slog.Any("error", err))
	}
}

// handleHealth handles GET /api/health for liveness checks.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
