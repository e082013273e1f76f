package domain

// Signal names reported by the confidence checker.
const (
	SignalRerankTop       = "rerank_top"
	SignalSQLRows         = "sql_rows"
	SignalRoutePenalty    = "route_penalty"
	SignalSemanticPenalty = "semantic_penalty"
	SignalSQLError        = "sql_error"
)

type ConfidenceAssessment struct {
	Score      float64            `json:"score"`
	Sufficient bool               `json:"sufficient"`
	Signals    map[string]float64 `json:"contributing_signals"`
}
