package domain

import "time"

type DebugInfo struct {
	TraceID          string   `json:"trace_id"`
	IR               *IR      `json:"ir,omitempty"`
	ConfidenceScore  float64  `json:"conf_score"`
	Sufficient       bool     `json:"sufficient"`
	EvidenceCount    int      `json:"evidence_count"`
	Regenerated      bool     `json:"regenerated,omitempty"`
	SQLStatement     string   `json:"sql_statement,omitempty"`
	Violations       []string `json:"violations,omitempty"`
	UnknownCitations []int    `json:"unknown_citations,omitempty"`
	BranchErrors     []string `json:"branch_errors,omitempty"`
}

type Answer struct {
	Text      string     `json:"answer"`
	Route     Route      `json:"route"`
	Citations []Citation `json:"citations"`
	Debug     *DebugInfo `json:"debug,omitempty"`
}

// QueryAuditEvent is published after every completed request, answered
// or not, for the audit trail.
type QueryAuditEvent struct {
	TraceID    string        `json:"trace_id"`
	Query      string        `json:"query"`
	Route      Route         `json:"route"`
	Confidence float64       `json:"confidence"`
	Sufficient bool          `json:"sufficient"`
	Duration   time.Duration `json:"duration"`
	AnsweredAt time.Time     `json:"answered_at"`
}
