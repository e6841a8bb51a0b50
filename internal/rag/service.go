// Package rag wires retrieval and generation into the question-answering
// pipeline. The Service is the last line of defense: whatever goes wrong
// underneath, the caller always gets a language-appropriate answer string,
// never an error and never a panic.
package rag

import (
	"context"
	"log/slog"

	"github.com/ralmansi/pifchat/internal/generator"
	"github.com/ralmansi/pifchat/internal/retrieval"
)

// Fixed user-facing messages. Language follows the question, not the answer.
const (
	noInfoAR = "عذراً، لم أجد معلومات ذات صلة بسؤالك في التقارير السنوية المتاحة. حاول إعادة صياغة السؤال."
	noInfoEN = "Sorry, I couldn't find relevant information for your question in the available annual reports. Please try rephrasing it."

	errorAR = "عذراً، حدث خطأ أثناء معالجة سؤالك. يرجى المحاولة مرة أخرى."
	errorEN = "Sorry, something went wrong while processing your question. Please try again."
)

// Source is the provenance of one passage that grounded an answer.
type Source struct {
	// Year is the report year the passage came from.
	Year string `json:"year"`
	// Score is its similarity to the question.
	Score float32 `json:"score"`
}

// SourcedAnswer is a full answer with provenance and conversation aids.
type SourcedAnswer struct {
	// Answer is the generated (or fallback) answer text.
	Answer string `json:"answer"`
	// Sources lists the passages the answer is grounded in, best first.
	// Empty when no relevant context was found.
	Sources []Source `json:"sources,omitempty"`
	// Confidence is the top retrieval score, 0 when nothing was retrieved.
	Confidence float32 `json:"confidence"`
	// FollowUps are suggested next questions in the question's language.
	FollowUps []string `json:"follow_ups,omitempty"`
	// Arabic reports the detected question language.
	Arabic bool `json:"arabic"`
}

// Retriever fetches relevant passages for a question. *retrieval.Retriever
// satisfies it.
type Retriever interface {
	Search(ctx context.Context, question string, limitPerCollection int) []retrieval.Result
}

// Generator produces the final answer from question plus retrieved context.
// *generator.Generator satisfies it.
type Generator interface {
	GenerateAnswer(ctx context.Context, question, contextText string, arabic bool, history []generator.Turn) string
}

// Service runs the full answer pipeline. Dependencies are injected once at
// construction; the service itself is stateless and safe for concurrent use.
type Service struct {
	retriever Retriever
	generator Generator
	log       *slog.Logger
}

// NewService builds the pipeline from its two stages.
func NewService(retriever Retriever, gen Generator, log *slog.Logger) *Service {
	return &Service{
		retriever: retriever,
		generator: gen,
		log:       log.With("component", "rag"),
	}
}

// Answer returns just the answer text for question. See AnswerWithSources.
func (s *Service) Answer(ctx context.Context, question string, history []generator.Turn) string {
	return s.AnswerWithSources(ctx, question, history).Answer
}

// AnswerWithSources answers question using the retrieved report passages and
// the recent conversation history. Zero retrieved passages yield a fixed
// no-information message. A panic anywhere in the pipeline is recovered and
// converted to a fixed apology; this method never panics and never returns an
// empty answer.
func (s *Service) AnswerWithSources(ctx context.Context, question string, history []generator.Turn) (sa SourcedAnswer) {
	arabic := retrieval.IsArabic(question)

	defer func() {
		if r := recover(); r != nil {
			s.log.Error("answer pipeline panicked", "panic", r, "question_runes", len([]rune(question)))
			sa = SourcedAnswer{
				Answer: apology(arabic),
				Arabic: arabic,
			}
		}
	}()

	results := s.retriever.Search(ctx, question, retrieval.DefaultLimitPerCollection)
	if len(results) == 0 {
		s.log.Info("no relevant passages found", "arabic", arabic)
		return SourcedAnswer{
			Answer:    noInfo(arabic),
			FollowUps: FollowUps(question),
			Arabic:    arabic,
		}
	}

	answer := s.generator.GenerateAnswer(ctx, question, retrieval.JoinContext(results), arabic, history)

	sources := make([]Source, 0, len(results))
	for _, res := range results {
		sources = append(sources, Source{Year: res.Year, Score: res.Score})
	}

	return SourcedAnswer{
		Answer:     answer,
		Sources:    sources,
		Confidence: results[0].Score,
		FollowUps:  FollowUps(question),
		Arabic:     arabic,
	}
}

func noInfo(arabic bool) string {
	if arabic {
		return noInfoAR
	}
	return noInfoEN
}

func apology(arabic bool) string {
	if arabic {
		return errorAR
	}
	return errorEN
}
