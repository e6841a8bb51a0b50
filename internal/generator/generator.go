// Package generator produces the final answer for a question: it talks to an
// OpenAI-compatible LLM proxy, and falls back to a deterministic extract of
// the retrieved context whenever the proxy is unreachable or misbehaves. The
// generation path never returns an error to the caller; degraded answers are
// logged, not surfaced.
package generator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/ralmansi/pifchat/internal/config"
)

// Defaults for proxy access.
const (
	DefaultBaseURL     = "http://localhost:4000"
	DefaultModel       = "rag-llm"
	DefaultMaxTokens   = 500
	DefaultTemperature = 0.3

	requestTimeout = 20 * time.Second

	healthAttempts = 2
	healthTimeout  = 2 * time.Second
	healthSpacing  = 500 * time.Millisecond
)

// Generator is the gateway to the LLM proxy. Safe for concurrent use.
type Generator struct {
	baseURL string
	model   string
	client  openai.Client
	httpc   *http.Client
	proc    *ProxyProcess
	log     *slog.Logger
}

// New builds a Generator for the proxy described by cfg. Construction is
// lazy: no connection is made until the first health probe or generation.
func New(cfg config.ProxyConfig, log *slog.Logger) *Generator {
	baseURL := cfg.URL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}

	return &Generator{
		baseURL: baseURL,
		model:   model,
		// The proxy ignores authentication but the client requires a key.
		client: openai.NewClient(
			option.WithBaseURL(baseURL+"/v1"),
			option.WithAPIKey("dummy"),
		),
		httpc: &http.Client{Timeout: healthTimeout},
		log:   log.With("component", "generator"),
	}
}

// BaseURL returns the proxy base URL the generator targets.
func (g *Generator) BaseURL() string { return g.baseURL }

// AttachProcess registers a proxy process the generator owns. An attached
// process gates health: a dead process short-circuits probing.
func (g *Generator) AttachProcess(p *ProxyProcess) { g.proc = p }

// Healthy reports whether the proxy can serve requests. When a managed
// process is attached and has exited, the endpoint is not probed at all.
func (g *Generator) Healthy(ctx context.Context) bool {
	if g.proc != nil && !g.proc.Alive() {
		g.log.Warn("managed proxy process is not running")
		return false
	}
	return g.probeHealth(ctx)
}

// probeHealth polls GET {base}/health, tolerating one transient miss.
func (g *Generator) probeHealth(ctx context.Context) bool {
	for attempt := 1; attempt <= healthAttempts; attempt++ {
		if g.healthOnce(ctx) {
			return true
		}
		if attempt < healthAttempts {
			select {
			case <-ctx.Done():
				return false
			case <-time.After(healthSpacing):
			}
		}
	}
	return false
}

func (g *Generator) healthOnce(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := g.httpc.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// Ping implements the readiness probe interface.
func (g *Generator) Ping(ctx context.Context) error {
	if !g.Healthy(ctx) {
		return fmt.Errorf("generator: proxy at %s is not healthy", g.baseURL)
	}
	return nil
}

// Name identifies the dependency in readiness reports.
func (g *Generator) Name() string { return "llm-proxy" }

// GenerateAnswer produces an answer to question grounded in contextText. It
// never fails: when the proxy is down, times out, or returns garbage, the
// deterministic fallback extract is returned instead. History, when present,
// is folded into the prompt so follow-up questions resolve correctly.
func (g *Generator) GenerateAnswer(ctx context.Context, question, contextText string, arabic bool, history []Turn) string {
	if !g.Healthy(ctx) {
		g.log.Warn("proxy unavailable, using extractive fallback", "base_url", g.baseURL)
		return Fallback(contextText, arabic)
	}

	answer, err := g.complete(ctx, question, contextText, arabic, history)
	if err != nil {
		g.log.Warn("generation failed, using extractive fallback",
			"reason", classifyFailure(err),
			"error", err,
		)
		return Fallback(contextText, arabic)
	}
	return answer
}

// complete performs the single chat-completion attempt against the proxy.
func (g *Generator) complete(ctx context.Context, question, contextText string, arabic bool, history []Turn) (string, error) {
	completion, err := g.client.Chat.Completions.New(ctx,
		openai.ChatCompletionNewParams{
			Model: shared.ChatModel(g.model),
			Messages: []openai.ChatCompletionMessageParamUnion{
				openai.SystemMessage(systemPrompt(arabic)),
				openai.UserMessage(userPrompt(question, contextText, history, arabic)),
			},
			Temperature: openai.Float(DefaultTemperature),
			MaxTokens:   openai.Int(DefaultMaxTokens),
		},
		option.WithRequestTimeout(requestTimeout),
	)
	if err != nil {
		return "", fmt.Errorf("generator: chat completion: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", errors.New("generator: completion returned no choices")
	}

	answer := strings.TrimSpace(completion.Choices[0].Message.Content)
	if answer == "" {
		return "", errors.New("generator: completion returned empty content")
	}

	g.log.Debug("answer generated",
		"serving_model", completion.Model,
		"answer_runes", len([]rune(answer)),
	)
	return answer, nil
}

// classifyFailure buckets a generation error for logging.
func classifyFailure(err error) string {
	var apiErr *openai.Error
	var netErr net.Error

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.As(err, &netErr) && netErr.Timeout():
		return "timeout"
	case errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusBadRequest:
		return "bad_request"
	case errors.As(err, &apiErr):
		return fmt.Sprintf("api_status_%d", apiErr.StatusCode)
	default:
		return "connection"
	}
}
