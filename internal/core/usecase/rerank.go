package usecase

import (
	"context"
	"strings"
	"unicode"

	"github.com/tenderops/bidding-qa/internal/core/domain"
)

// LexicalReranker is the in-process default for the reranker port:
// token overlap between query and chunk text, blended with the
// normalized vector similarity. A cross-encoder service can replace it
// behind the same port without touching the engine.
type LexicalReranker struct{}

func NewLexicalReranker() *LexicalReranker {
	return &LexicalReranker{}
}

func (r *LexicalReranker) Score(_ context.Context, query string, chunks []domain.RetrievedChunk) ([]float64, error) {
	if len(chunks) == 0 {
		return nil, nil
	}

	queryTokens := toTokenSet(query)

	minSim := chunks[0].SimilarityScore
	maxSim := chunks[0].SimilarityScore
	for _, chunk := range chunks[1:] {
		if chunk.SimilarityScore < minSim {
			minSim = chunk.SimilarityScore
		}
		if chunk.SimilarityScore > maxSim {
			maxSim = chunk.SimilarityScore
		}
	}
	simRange := maxSim - minSim
	normalize := func(v float64) float64 {
		if simRange <= 0 {
			if v > 0 {
				return 1
			}
			return 0
		}
		return (v - minSim) / simRange
	}

	scores := make([]float64, len(chunks))
	for i, chunk := range chunks {
		overlap := tokenOverlap(queryTokens, toTokenSet(chunk.Text))
		titleBoost := 0.0
		if titleTokenHit(queryTokens, chunk.Metadata.Title) {
			titleBoost = 1.0
		}
		scores[i] = 0.60*normalize(chunk.SimilarityScore) + 0.30*overlap + 0.10*titleBoost
	}
	return scores, nil
}

func tokenOverlap(query, chunk map[string]struct{}) float64 {
	if len(query) == 0 || len(chunk) == 0 {
		return 0
	}
	matches := 0
	for token := range query {
		if _, ok := chunk[token]; ok {
			matches++
		}
	}
	return float64(matches) / float64(len(query))
}

func titleTokenHit(query map[string]struct{}, title string) bool {
	if len(query) == 0 || title == "" {
		return false
	}
	title = strings.ToLower(title)
	for token := range query {
		if token != "" && strings.Contains(title, token) {
			return true
		}
	}
	return false
}

func toTokenSet(s string) map[string]struct{} {
	tokens := tokenize(s)
	out := make(map[string]struct{}, len(tokens))
	for _, token := range tokens {
		out[token] = struct{}{}
	}
	return out
}

// tokenize lowercases and splits on non-alphanumerics; Han characters
// become single-rune tokens so Chinese text still overlaps usefully.
func tokenize(s string) []string {
	if s == "" {
		return nil
	}

	tokens := make([]string, 0, 16)
	var b strings.Builder
	flush := func() {
		if b.Len() > 0 {
			tokens = append(tokens, b.String())
			b.Reset()
		}
	}
	for _, r := range s {
		r = unicode.ToLower(r)
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
		case unicode.Is(unicode.Han, r):
			flush()
			tokens = append(tokens, string(r))
		default:
			flush()
		}
	}
	flush()
	return tokens
}
