// Package retrieval answers "which report passages are relevant to this
// question". It detects the question's language, embeds it once, fans the
// query out over every year's collection for that language, and returns a
// merged, de-duplicated, score-ranked top slice.
package retrieval

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/ralmansi/pifchat/internal/config"
	"github.com/ralmansi/pifchat/internal/vectorstore"
)

const (
	// ScoreThreshold is the relevance floor applied to every collection
	// search. Hits below it are noise for this corpus.
	ScoreThreshold = 0.3

	// DefaultLimitPerCollection is the result count requested from each
	// year's collection before merging.
	DefaultLimitPerCollection = 3

	// MaxResults caps the merged result list.
	MaxResults = 5

	// dedupPrefixLen is the number of leading runes compared to detect
	// near-duplicate chunks. Annual reports repeat the same boilerplate
	// across years; exact duplicates dominate, so a fixed prefix is a cheap
	// and adequate key.
	dedupPrefixLen = 100
)

// Result is one retrieved passage with its provenance.
type Result struct {
	// Text is the chunk text.
	Text string
	// Score is the cosine similarity to the question (higher is better).
	Score float32
	// Year is the report year the chunk came from.
	Year string
	// Source is the source document base name.
	Source string
}

// QueryEmbedder converts a query into a unit vector. A zero vector means the
// embedding backend failed; the retriever skips searching in that case.
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, text string) []float32
}

// Searcher runs a thresholded similarity search against one collection.
// *vectorstore.Store satisfies it; tests inject a fake.
type Searcher interface {
	Search(ctx context.Context, collection string, queryVector []float32, limit uint64, scoreThreshold float32) ([]vectorstore.Hit, error)
}

// Retriever searches every year-partitioned collection of the question's
// language. Safe for concurrent use: it holds only injected dependencies.
type Retriever struct {
	embedder QueryEmbedder
	store    Searcher
	reports  config.ReportsConfig
	log      *slog.Logger
}

// New constructs a Retriever over the given embedder, store, and report
// catalogue.
func New(embedder QueryEmbedder, store Searcher, reports config.ReportsConfig, log *slog.Logger) *Retriever {
	if log == nil {
		log = slog.Default()
	}
	return &Retriever{
		embedder: embedder,
		store:    store,
		reports:  reports,
		log:      log,
	}
}

// Search retrieves the most relevant passages for question across all years
// of the detected language. limitPerCollection defaults to 3 when zero or
// negative. Collections are searched sequentially; a failing collection is
// logged and skipped so partial coverage still produces an answer. The result
// is sorted by score descending, de-duplicated on a fixed text prefix, and
// capped at MaxResults. An empty or unembeddable question yields an empty
// slice — never an error.
func (r *Retriever) Search(ctx context.Context, question string, limitPerCollection int) []Result {
	if strings.TrimSpace(question) == "" {
		return nil
	}
	if limitPerCollection <= 0 {
		limitPerCollection = DefaultLimitPerCollection
	}

	arabic := IsArabic(question)
	mapping := r.reports.Mapping(arabic)

	queryVector := r.embedder.EmbedQuery(ctx, question)
	if isZero(queryVector) {
		r.log.Warn("retrieval: query embedding unavailable, returning no results")
		return nil
	}

	var results []Result
	for year, baseName := range mapping {
		collection := config.CollectionName(baseName)

		hits, err := r.store.Search(ctx, collection, queryVector, uint64(limitPerCollection), ScoreThreshold)
		if err != nil {
			r.log.Warn("retrieval: collection search failed, skipping",
				slog.String("collection", collection),
				slog.Any("error", err),
			)
			continue
		}

		for _, hit := range hits {
			results = append(results, Result{
				Text:   hit.Text,
				Score:  hit.Score,
				Year:   year,
				Source: baseName,
			})
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	results = dedupe(results)

	if len(results) > MaxResults {
		results = results[:MaxResults]
	}
	return results
}

// dedupe keeps only the first occurrence of each text prefix. The input must
// already be sorted best-first so the survivor is the highest-scoring copy.
func dedupe(results []Result) []Result {
	seen := make(map[string]struct{}, len(results))
	unique := results[:0]
	for _, res := range results {
		key := prefixKey(res.Text)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		unique = append(unique, res)
	}
	return unique
}

// prefixKey returns the first dedupPrefixLen runes of text.
func prefixKey(text string) string {
	runes := []rune(text)
	if len(runes) > dedupPrefixLen {
		runes = runes[:dedupPrefixLen]
	}
	return string(runes)
}

// isZero reports whether every component of vec is zero.
func isZero(vec []float32) bool {
	for _, v := range vec {
		if v != 0 {
			return false
		}
	}
	return true
}

// JoinContext returns the newline-joined text of results, the form consumed
// by the answer generator's prompt.
func JoinContext(results []Result) string {
	texts := make([]string, len(results))
	for i, res := range results {
		texts[i] = res.Text
	}
	return strings.Join(texts, "\n\n")
}
