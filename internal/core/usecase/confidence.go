package usecase

import (
	"github.com/tenderops/bidding-qa/internal/core/domain"
)

type ConfidenceConfig struct {
	Threshold       float64
	HybridRAGWeight float64
	HybridSQLWeight float64
	RoutePenalty    float64
	SemanticPenalty float64
}

func DefaultConfidenceConfig() ConfidenceConfig {
	return ConfidenceConfig{
		Threshold:       0.55,
		HybridRAGWeight: 0.5,
		HybridSQLWeight: 0.5,
		RoutePenalty:    0.15,
		SemanticPenalty: 0.1,
	}
}

func (c ConfidenceConfig) normalize() ConfidenceConfig {
	def := DefaultConfidenceConfig()
	out := c
	if out.Threshold <= 0 || out.Threshold > 1 {
		out.Threshold = def.Threshold
	}
	if out.HybridRAGWeight <= 0 {
		out.HybridRAGWeight = def.HybridRAGWeight
	}
	if out.HybridSQLWeight <= 0 {
		out.HybridSQLWeight = def.HybridSQLWeight
	}
	if out.RoutePenalty < 0 {
		out.RoutePenalty = def.RoutePenalty
	}
	if out.SemanticPenalty < 0 {
		out.SemanticPenalty = def.SemanticPenalty
	}
	return out
}

// ConfidenceInput carries the per-branch outcome signals. A nil slice
// or nil result means that branch produced no evidence (absent, not
// zero); SQLErr is the branch's terminal error, if any.
type ConfidenceInput struct {
	Route            domain.Route
	Intent           domain.IntentType
	RerankScores     []float64
	SQLResult        *domain.SQLResult
	SQLErr           error
	RoutePenalized   bool
	SemanticMismatch bool
}

// ConfidenceChecker folds retrieval scores and SQL result signals into
// one scalar and the binary sufficient-evidence decision. It is the
// single place where "not enough evidence" is decided.
type ConfidenceChecker struct {
	cfg ConfidenceConfig
}

func NewConfidenceChecker(cfg ConfidenceConfig) *ConfidenceChecker {
	return &ConfidenceChecker{cfg: cfg.normalize()}
}

func (c *ConfidenceChecker) Assess(in ConfidenceInput) domain.ConfidenceAssessment {
	signals := make(map[string]float64)

	ragScore, ragPresent := ragSignal(in.RerankScores)
	if ragPresent {
		signals[domain.SignalRerankTop] = ragScore
	}

	sqlScore, sqlPresent := sqlSignal(in.Intent, in.SQLResult)
	if in.SQLErr != nil {
		signals[domain.SignalSQLError] = 1
		sqlPresent = false
	}
	if sqlPresent {
		signals[domain.SignalSQLRows] = sqlScore
	}

	var score float64
	switch in.Route {
	case domain.RouteRAG:
		score = ragScore
	case domain.RouteSQL:
		score = sqlScore
	default:
		// HYBRID: weight the branches that actually returned; a branch
		// that failed or timed out is absent evidence, not a veto.
		switch {
		case ragPresent && sqlPresent:
			total := c.cfg.HybridRAGWeight + c.cfg.HybridSQLWeight
			score = (c.cfg.HybridRAGWeight*ragScore + c.cfg.HybridSQLWeight*sqlScore) / total
		case ragPresent:
			score = ragScore
		case sqlPresent:
			score = sqlScore
		}
	}

	if in.RoutePenalized {
		signals[domain.SignalRoutePenalty] = c.cfg.RoutePenalty
		score -= c.cfg.RoutePenalty
	}
	if in.SemanticMismatch {
		signals[domain.SignalSemanticPenalty] = c.cfg.SemanticPenalty
		score -= c.cfg.SemanticPenalty
	}
	score = clamp01(score)

	sufficient := score >= c.cfg.Threshold
	// On a pure SQL route a failed branch leaves nothing to answer
	// from, whatever the score says.
	if in.Route == domain.RouteSQL && in.SQLErr != nil {
		sufficient = false
	}

	return domain.ConfidenceAssessment{
		Score:      score,
		Sufficient: sufficient,
		Signals:    signals,
	}
}

func ragSignal(rerankScores []float64) (float64, bool) {
	if len(rerankScores) == 0 {
		return 0, false
	}
	top := rerankScores[0]
	for _, s := range rerankScores[1:] {
		if s > top {
			top = s
		}
	}
	return clamp01(top), true
}

// sqlSignal maps row count to confidence. Zero rows is hard evidence of
// nothing; a point lookup hitting one row is the strongest possible
// match; broad result sets for aggregates are neutral.
func sqlSignal(intent domain.IntentType, result *domain.SQLResult) (float64, bool) {
	if result == nil {
		return 0, false
	}
	rows := result.RowCount
	if rows <= 0 {
		return 0, true
	}

	if intent == domain.IntentSQLAggregate {
		return 0.6, true
	}

	switch {
	case rows == 1:
		return 1.0, true
	case rows <= 10:
		return 0.85, true
	default:
		return 0.7, true
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
