package ports

import (
	"context"

	"github.com/tenderops/bidding-qa/internal/core/domain"
)

// Embedder builds the query vector.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// VectorIndex performs nearest-neighbor search over one collection and
// returns chunks with payload metadata already attached.
type VectorIndex interface {
	Search(ctx context.Context, collection string, queryVector []float32, topK int) ([]domain.RetrievedChunk, error)
}

// Reranker scores (query, chunk) pairs. Scores align by index with the
// input chunks.
type Reranker interface {
	Score(ctx context.Context, query string, chunks []domain.RetrievedChunk) ([]float64, error)
}

// CompletionClient is the stateless language-model collaborator. It is
// fallible and possibly slow; callers never assume deterministic
// output.
type CompletionClient interface {
	Complete(ctx context.Context, prompt string) (string, error)
	CompleteJSON(ctx context.Context, prompt string) (string, error)
}

// ReadOnlyDB executes one parameterized SELECT against the relational
// store. Implementations must reject anything that is not a SELECT.
type ReadOnlyDB interface {
	Query(ctx context.Context, stmt domain.SQLStatement) (*domain.SQLResult, error)
}

// AuditPublisher records completed requests on the event bus.
type AuditPublisher interface {
	PublishQueryAnswered(ctx context.Context, event domain.QueryAuditEvent) error
}
