package commands

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ralmansi/pifchat/internal/embedder"
	"github.com/ralmansi/pifchat/internal/generator"
	"github.com/ralmansi/pifchat/internal/rag"
	"github.com/ralmansi/pifchat/internal/retrieval"
	"github.com/ralmansi/pifchat/internal/server"
	"github.com/ralmansi/pifchat/internal/vectorstore"
)

// services bundles the wired question-answering pipeline for the front-end
// commands. Everything is constructed once per process.
type services struct {
	embedder  *embedder.Client
	store     *vectorstore.Store
	retriever *retrieval.Retriever
	generator *generator.Generator
	rag       *rag.Service
}

// buildServices wires embedder → vector store → retriever → generator →
// orchestrator from the loaded config. The returned cleanup must be called
// when the command finishes.
func buildServices(ctx context.Context, log *slog.Logger) (*services, func(), error) {
	emb, err := embedder.New(ctx, &embedder.Config{
		Host:       cfg.Embedding.Host,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
	}, log)
	if err != nil {
		return nil, nil, fmt.Errorf("embedding backend: %w", err)
	}

	vs, err := vectorstore.Connect(ctx, &vectorstore.Config{
		Host:   cfg.Qdrant.Host,
		Port:   cfg.Qdrant.Port,
		APIKey: cfg.Qdrant.APIKey,
		UseTLS: cfg.Qdrant.TLS,
	}, log)
	if err != nil {
		return nil, nil, fmt.Errorf("vector store: %w", err)
	}

	gen := generator.New(cfg.Proxy, log)
	ret := retrieval.New(emb, vs, cfg.Reports, log)

	svc := &services{
		embedder:  emb,
		store:     vs,
		retriever: ret,
		generator: gen,
		rag:       rag.NewService(ret, gen, log),
	}
	cleanup := func() { _ = vs.Close() }
	return svc, cleanup, nil
}

// validateQuestion applies the shared question length bounds, returning a
// user-facing error for the CLI front ends.
func validateQuestion(question string) (string, error) {
	question = strings.TrimSpace(question)
	n := len([]rune(question))
	if n < server.MinQuestionRunes {
		return "", fmt.Errorf("question too short: need at least %d characters", server.MinQuestionRunes)
	}
	if n > server.MaxQuestionRunes {
		return "", fmt.Errorf("question too long: keep it under %d characters", server.MaxQuestionRunes)
	}
	return question, nil
}

// printSourcedAnswer renders an answer with its provenance and suggested
// follow-ups to stdout.
func printSourcedAnswer(ans rag.SourcedAnswer, showSources bool) {
	fmt.Println(ans.Answer)

	if showSources && len(ans.Sources) > 0 {
		fmt.Println()
		for _, src := range ans.Sources {
			fmt.Printf("  [%s] score %.2f\n", src.Year, src.Score)
		}
		fmt.Printf("  confidence %.2f\n", ans.Confidence)
	}

	if len(ans.FollowUps) > 0 {
		fmt.Println()
		for _, q := range ans.FollowUps {
			fmt.Printf("  - %s\n", q)
		}
	}
}
