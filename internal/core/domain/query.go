package domain

type Query struct {
	Text     string `json:"text"`
	UserRole string `json:"user_role,omitempty"`
	Debug    bool   `json:"debug,omitempty"`
}

type Route string

const (
	RouteRAG    Route = "rag"
	RouteSQL    Route = "sql"
	RouteHybrid Route = "hybrid"
)

// RouteDecision is the router's verdict for one query. When neither
// the rule stage nor the model stage produces a usable label the
// router returns an error and the orchestrator degrades to HYBRID
// with a confidence penalty.
type RouteDecision struct {
	Route      Route   `json:"route"`
	Intent     string  `json:"intent"`
	EntityType string  `json:"entity_type,omitempty"`
	Rationale  string  `json:"rationale,omitempty"`
	Confidence float64 `json:"confidence"`
}
