package usecase

import (
	"context"
	"reflect"
	"testing"

	"github.com/tenderops/bidding-qa/internal/core/domain"
)

func TestLexicalRerankerFavorsTokenOverlap(t *testing.T) {
	r := NewLexicalReranker()
	chunks := []domain.RetrievedChunk{
		{ChunkID: "off-topic", Text: "设备采购流程说明", SimilarityScore: 0.5},
		{ChunkID: "on-topic", Text: "新能源扶持政策实施细则", SimilarityScore: 0.5},
	}
	scores, err := r.Score(context.Background(), "新能源扶持政策", chunks)
	if err != nil {
		t.Fatalf("Score() error = %v", err)
	}
	if len(scores) != 2 {
		t.Fatalf("expected 2 scores, got %v", scores)
	}
	if scores[1] <= scores[0] {
		t.Fatalf("overlapping chunk should score higher: %v", scores)
	}
}

func TestLexicalRerankerTitleBoost(t *testing.T) {
	r := NewLexicalReranker()
	chunks := []domain.RetrievedChunk{
		{ChunkID: "plain", Text: "补贴标准", SimilarityScore: 0.5},
		{ChunkID: "titled", Text: "补贴标准", SimilarityScore: 0.5,
			Metadata: domain.ChunkMetadata{Title: "扶持政策汇编"}},
	}
	scores, err := r.Score(context.Background(), "扶持政策", chunks)
	if err != nil {
		t.Fatalf("Score() error = %v", err)
	}
	if scores[1] <= scores[0] {
		t.Fatalf("title hit should add a boost: %v", scores)
	}
}

func TestLexicalRerankerEmptyInput(t *testing.T) {
	r := NewLexicalReranker()
	scores, err := r.Score(context.Background(), "q", nil)
	if err != nil || scores != nil {
		t.Fatalf("expected nil scores for empty input, got %v, %v", scores, err)
	}
}

func TestTokenizeMixedScripts(t *testing.T) {
	got := tokenize("Qdrant检索Top10")
	want := []string{"qdrant", "检", "索", "top10"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("tokenize = %v, want %v", got, want)
	}
}
