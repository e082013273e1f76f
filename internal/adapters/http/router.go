package httpadapter

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/tenderops/bidding-qa/internal/config"
	"github.com/tenderops/bidding-qa/internal/core/domain"
	"github.com/tenderops/bidding-qa/internal/core/ports"
	"github.com/tenderops/bidding-qa/internal/observability/metrics"
)

const serviceName = "bidding-qa"

type Router struct {
	cfg     config.Config
	metrics *metrics.HTTPServerMetrics
	query   ports.QueryService
}

func NewRouter(cfg config.Config, m *metrics.HTTPServerMetrics, query ports.QueryService) *Router {
	return &Router{
		cfg:     cfg,
		metrics: m,
		query:   query,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/query", rt.handleQuery)
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
	}

	var handler http.Handler = mux
	if rt.cfg.APIMaxInFlight > 0 {
		wait := time.Duration(rt.cfg.APIBackpressureWait) * time.Millisecond
		handler = backpressureMiddleware(handler, rt.cfg.APIMaxInFlight, wait)
	}
	if rt.cfg.APIRateLimitRPS > 0 {
		handler = rateLimitMiddleware(handler, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst)
	}
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(serviceName, handler)
	}
	handler = accessLogMiddleware(handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type queryRequest struct {
	Query    string `json:"query"`
	Text     string `json:"text"`
	UserRole string `json:"user_role"`
	Debug    bool   `json:"debug"`
}

func (rt *Router) handleQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	text := strings.TrimSpace(req.Query)
	if text == "" {
		text = strings.TrimSpace(req.Text)
	}
	if text == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "query is required"})
		return
	}

	started := time.Now()
	answer, err := rt.query.Ask(r.Context(), domain.Query{
		Text:     text,
		UserRole: req.UserRole,
		Debug:    req.Debug,
	})
	if err != nil {
		status := mapErrorToHTTPStatus(err)
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}

	rt.recordQueryMetrics(answer, time.Since(started))
	if !req.Debug {
		answer.Debug = nil
	}
	writeJSON(w, http.StatusOK, answer)
}

// The pipeline always fills Debug so observations survive even when the
// caller never asked for the debug block.
func (rt *Router) recordQueryMetrics(answer *domain.Answer, duration time.Duration) {
	if rt.metrics == nil || answer == nil || answer.Debug == nil {
		return
	}
	debug := answer.Debug
	rt.metrics.RecordQueryObservation(
		serviceName,
		string(answer.Route),
		debug.ConfidenceScore,
		debug.EvidenceCount,
		debug.Sufficient,
		duration,
	)
	for _, branchErr := range debug.BranchErrors {
		branch, _, _ := strings.Cut(branchErr, ":")
		rt.metrics.RecordBranchFailure(serviceName, branch)
	}
	if debug.Regenerated {
		rt.metrics.RecordIRRegeneration(serviceName)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
