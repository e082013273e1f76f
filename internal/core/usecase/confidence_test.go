package usecase

import (
	"errors"
	"testing"
	"time"

	"github.com/tenderops/bidding-qa/internal/core/domain"
)

func sqlRows(n int) *domain.SQLResult {
	rows := make([][]any, n)
	for i := range rows {
		rows[i] = []any{i}
	}
	return &domain.SQLResult{Columns: []string{"x"}, Rows: rows, RowCount: n, Duration: time.Millisecond}
}

func TestConfidenceZeroRowsInsufficient(t *testing.T) {
	c := NewConfidenceChecker(DefaultConfidenceConfig())
	a := c.Assess(ConfidenceInput{
		Route:     domain.RouteSQL,
		Intent:    domain.IntentSQLAggregate,
		SQLResult: sqlRows(0),
	})
	if a.Sufficient {
		t.Fatalf("zero rows must be insufficient, got %+v", a)
	}
	if a.Signals[domain.SignalSQLRows] != 0 {
		t.Fatalf("expected zero row signal, got %v", a.Signals)
	}
}

func TestConfidenceRowSignalMonotonicFromZero(t *testing.T) {
	c := NewConfidenceChecker(DefaultConfidenceConfig())
	zero := c.Assess(ConfidenceInput{Route: domain.RouteSQL, Intent: domain.IntentSQLFilter, SQLResult: sqlRows(0)})
	one := c.Assess(ConfidenceInput{Route: domain.RouteSQL, Intent: domain.IntentSQLFilter, SQLResult: sqlRows(1)})
	if one.Score <= zero.Score {
		t.Fatalf("one row must raise confidence above zero rows: %f vs %f", one.Score, zero.Score)
	}
	if !one.Sufficient {
		t.Fatalf("single point-lookup hit should be sufficient, got %+v", one)
	}
}

func TestConfidenceAggregateRowsNeutral(t *testing.T) {
	c := NewConfidenceChecker(DefaultConfidenceConfig())
	a := c.Assess(ConfidenceInput{Route: domain.RouteSQL, Intent: domain.IntentSQLAggregate, SQLResult: sqlRows(40)})
	if a.Score != 0.6 {
		t.Fatalf("aggregate result should be neutral, got %f", a.Score)
	}
}

func TestConfidenceRAGUsesTopRerankScore(t *testing.T) {
	c := NewConfidenceChecker(DefaultConfidenceConfig())
	a := c.Assess(ConfidenceInput{
		Route:        domain.RouteRAG,
		Intent:       domain.IntentPolicyLookup,
		RerankScores: []float64{0.82, 0.4, 0.1},
	})
	if a.Score != 0.82 {
		t.Fatalf("expected top score, got %f", a.Score)
	}
	if !a.Sufficient {
		t.Fatalf("expected sufficient, got %+v", a)
	}
}

func TestConfidenceHybridWeighsBothBranches(t *testing.T) {
	c := NewConfidenceChecker(DefaultConfidenceConfig())
	a := c.Assess(ConfidenceInput{
		Route:        domain.RouteHybrid,
		Intent:       domain.IntentHybrid,
		RerankScores: []float64{0.9},
		SQLResult:    sqlRows(1),
	})
	want := (0.5*0.9 + 0.5*1.0) / 1.0
	if a.Score != want {
		t.Fatalf("expected weighted %f, got %f", want, a.Score)
	}
}

func TestConfidenceHybridSQLFailureUsesRAGAlone(t *testing.T) {
	c := NewConfidenceChecker(DefaultConfidenceConfig())
	a := c.Assess(ConfidenceInput{
		Route:        domain.RouteHybrid,
		Intent:       domain.IntentHybrid,
		RerankScores: []float64{0.8},
		SQLErr:       domain.WrapError(domain.ErrSQLTimeout, "query", errors.New("deadline")),
	})
	if a.Score != 0.8 {
		t.Fatalf("failed branch is absent evidence, expected rag-only score, got %f", a.Score)
	}
	if !a.Sufficient {
		t.Fatalf("expected sufficient despite sql failure, got %+v", a)
	}
	if _, ok := a.Signals[domain.SignalSQLError]; !ok {
		t.Fatalf("sql failure should be visible in signals")
	}
}

func TestConfidenceSQLRouteFailureInsufficient(t *testing.T) {
	c := NewConfidenceChecker(DefaultConfidenceConfig())
	a := c.Assess(ConfidenceInput{
		Route:  domain.RouteSQL,
		Intent: domain.IntentSQLFilter,
		SQLErr: domain.WrapError(domain.ErrSQLTranslation, "translate", errors.New("bad ir")),
	})
	if a.Sufficient {
		t.Fatalf("sole failed branch must be insufficient, got %+v", a)
	}
}

func TestConfidenceRoutePenalty(t *testing.T) {
	c := NewConfidenceChecker(DefaultConfidenceConfig())
	clean := c.Assess(ConfidenceInput{Route: domain.RouteRAG, RerankScores: []float64{0.7}})
	penalized := c.Assess(ConfidenceInput{Route: domain.RouteRAG, RerankScores: []float64{0.7}, RoutePenalized: true})
	if penalized.Score >= clean.Score {
		t.Fatalf("penalty must lower the score: %f vs %f", penalized.Score, clean.Score)
	}
}

func TestConfidencePenaltiesReportedAsSignals(t *testing.T) {
	c := NewConfidenceChecker(DefaultConfidenceConfig())
	a := c.Assess(ConfidenceInput{
		Route:            domain.RouteRAG,
		RerankScores:     []float64{0.7},
		RoutePenalized:   true,
		SemanticMismatch: true,
	})
	if got := a.Signals[domain.SignalRoutePenalty]; got != 0.15 {
		t.Fatalf("route penalty signal = %f, want 0.15", got)
	}
	if got := a.Signals[domain.SignalSemanticPenalty]; got != 0.1 {
		t.Fatalf("semantic penalty signal = %f, want 0.1", got)
	}
}

func TestConfidenceScoreClamped(t *testing.T) {
	c := NewConfidenceChecker(DefaultConfidenceConfig())
	a := c.Assess(ConfidenceInput{Route: domain.RouteRAG, RerankScores: []float64{1.7}})
	if a.Score > 1 {
		t.Fatalf("score must be clamped to 1, got %f", a.Score)
	}
}
