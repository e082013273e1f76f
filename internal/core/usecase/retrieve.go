package usecase

import (
	"context"
	"fmt"
	"sort"

	"github.com/tenderops/bidding-qa/internal/core/domain"
	"github.com/tenderops/bidding-qa/internal/core/ports"
)

// RetrievalEngine owns the query side of semantic search: embed the
// question, fetch topK nearest chunks per selected collection, rerank,
// truncate to topN. Index construction is someone else's job.
type RetrievalEngine struct {
	embedder ports.Embedder
	index    ports.VectorIndex
	reranker ports.Reranker
	topK     int
	topN     int
}

func NewRetrievalEngine(embedder ports.Embedder, index ports.VectorIndex, reranker ports.Reranker, topK, topN int) *RetrievalEngine {
	if topK <= 0 {
		topK = 20
	}
	if topN <= 0 || topN > topK {
		topN = min(3, topK)
	}
	return &RetrievalEngine{embedder: embedder, index: index, reranker: reranker, topK: topK, topN: topN}
}

// CollectionsFor picks the collections a given intent should search.
func CollectionsFor(ir *domain.IR) []string {
	switch ir.IntentType {
	case domain.IntentPolicyLookup:
		return []string{domain.CollectionPolicyChunks}
	case domain.IntentOpinionLookup:
		return []string{domain.CollectionOpinionChunks}
	case domain.IntentHybrid:
		return []string{domain.CollectionPolicyChunks, domain.CollectionOpinionChunks}
	default:
		return nil
	}
}

func (e *RetrievalEngine) Retrieve(ctx context.Context, queryText string, ir *domain.IR) ([]domain.RetrievedChunk, error) {
	collections := CollectionsFor(ir)
	if len(collections) == 0 {
		return nil, nil
	}

	queryVector, err := e.embedder.EmbedQuery(ctx, queryText)
	if err != nil {
		return nil, domain.WrapError(domain.ErrRetrieval, "embed query", err)
	}

	var candidates []domain.RetrievedChunk
	for _, collection := range collections {
		chunks, err := e.index.Search(ctx, collection, queryVector, e.topK)
		if err != nil {
			return nil, domain.WrapError(domain.ErrRetrieval, "search "+collection, err)
		}
		for _, chunk := range chunks {
			chunk.Rank = len(candidates)
			candidates = append(candidates, chunk)
		}
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	reranked, err := e.rerank(ctx, queryText, candidates)
	if err != nil {
		return nil, err
	}
	if len(reranked) > e.topN {
		reranked = reranked[:e.topN]
	}
	return reranked, nil
}

// rerank reorders strictly by reranker score; ties fall back to the
// original retrieval rank so the ordering is stable and reproducible.
func (e *RetrievalEngine) rerank(ctx context.Context, queryText string, candidates []domain.RetrievedChunk) ([]domain.RetrievedChunk, error) {
	scores, err := e.reranker.Score(ctx, queryText, candidates)
	if err != nil {
		return nil, domain.WrapError(domain.ErrRetrieval, "rerank", err)
	}
	if len(scores) != len(candidates) {
		return nil, domain.WrapError(domain.ErrRetrieval, "rerank",
			fmt.Errorf("scored %d of %d candidates", len(scores), len(candidates)))
	}

	out := make([]domain.RetrievedChunk, len(candidates))
	copy(out, candidates)
	for i := range out {
		out[i].RerankScore = scores[i]
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].RerankScore != out[j].RerankScore {
			return out[i].RerankScore > out[j].RerankScore
		}
		return out[i].Rank < out[j].Rank
	})
	return out, nil
}
