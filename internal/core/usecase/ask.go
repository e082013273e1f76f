package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/tenderops/bidding-qa/internal/core/domain"
	"github.com/tenderops/bidding-qa/internal/core/ports"
)

const (
	defaultBranchTimeout  = 8 * time.Second
	defaultRequestTimeout = 30 * time.Second
)

type OrchestratorConfig struct {
	BranchTimeout  time.Duration
	RequestTimeout time.Duration
}

// Orchestrator runs one question through the full pipeline: route, IR,
// validation with a single regeneration retry, parallel evidence
// branches, confidence gating, and answer generation. A failed branch
// contributes no evidence; it never fails the request by itself.
type Orchestrator struct {
	router      *Router
	irGen       *IRGenerator
	schemaVal   *SchemaValidator
	businessVal *BusinessValidator
	semanticVal *SemanticValidator
	translator  *SQLTranslator
	db          ports.ReadOnlyDB
	retrieval   *RetrievalEngine
	confidence  *ConfidenceChecker
	builder     *ContextBuilder
	answers     *AnswerGenerator
	audit       ports.AuditPublisher

	branchTimeout  time.Duration
	requestTimeout time.Duration
}

func NewOrchestrator(
	router *Router,
	irGen *IRGenerator,
	schemaVal *SchemaValidator,
	businessVal *BusinessValidator,
	semanticVal *SemanticValidator,
	translator *SQLTranslator,
	db ports.ReadOnlyDB,
	retrieval *RetrievalEngine,
	confidence *ConfidenceChecker,
	builder *ContextBuilder,
	answers *AnswerGenerator,
	audit ports.AuditPublisher,
	cfg OrchestratorConfig,
) *Orchestrator {
	if cfg.BranchTimeout <= 0 {
		cfg.BranchTimeout = defaultBranchTimeout
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	return &Orchestrator{
		router:      router,
		irGen:       irGen,
		schemaVal:   schemaVal,
		businessVal: businessVal,
		semanticVal: semanticVal,
		translator:  translator,
		db:          db,
		retrieval:   retrieval,
		confidence:  confidence,
		builder:     builder,
		answers:     answers,
		audit:       audit,

		branchTimeout:  cfg.BranchTimeout,
		requestTimeout: cfg.RequestTimeout,
	}
}

var _ ports.QueryService = (*Orchestrator)(nil)

type branchOutcome struct {
	statement domain.SQLStatement
	sqlResult *domain.SQLResult
	sqlErr    error
	chunks    []domain.RetrievedChunk
	ragErr    error
}

func (o *Orchestrator) Ask(ctx context.Context, query domain.Query) (*domain.Answer, error) {
	if strings.TrimSpace(query.Text) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "ask", fmt.Errorf("query text is empty"))
	}

	started := time.Now()
	traceID := uuid.NewString()
	log := slog.With("trace_id", traceID)

	ctx, cancel := context.WithTimeout(ctx, o.requestTimeout)
	defer cancel()

	debug := &domain.DebugInfo{TraceID: traceID}

	// Routing failure degrades to HYBRID with a confidence penalty
	// instead of rejecting the query.
	routePenalized := false
	decision, err := o.router.Route(ctx, query)
	switch {
	case err == nil:
	case domain.IsKind(err, domain.ErrInvalidInput):
		return nil, err
	default:
		log.Warn("routing_degraded", "error", err)
		decision = domain.RouteDecision{
			Route:     domain.RouteHybrid,
			Intent:    "hybrid_query",
			Rationale: "routing failed, degraded to hybrid",
		}
		routePenalized = true
	}
	log.Info("query_routed", "route", decision.Route, "intent", decision.Intent, "rationale", decision.Rationale)

	ir, violations, regenerated := o.buildValidatedIR(ctx, log, query, decision)
	debug.IR = ir
	debug.Violations = violations
	debug.Regenerated = regenerated
	if ir == nil {
		// Two validation passes failed; answer with uncertainty rather
		// than executing an IR the validators rejected.
		return o.finishInsufficient(ctx, log, query, decision, debug, started), nil
	}

	semanticMismatch := false
	if o.semanticVal != nil {
		if check := o.semanticVal.Validate(ctx, query.Text, ir); !check.OK {
			log.Warn("semantic_check_mismatch", "reason", check.Reason)
			semanticMismatch = true
		}
	}

	outcome := o.runBranches(ctx, log, query, decision.Route, ir)
	debug.SQLStatement = outcome.statement.Text
	debug.BranchErrors = branchErrors(outcome)

	assessment := o.confidence.Assess(ConfidenceInput{
		Route:            decision.Route,
		Intent:           ir.IntentType,
		RerankScores:     rerankScores(outcome.chunks),
		SQLResult:        outcome.sqlResult,
		SQLErr:           outcome.sqlErr,
		RoutePenalized:   routePenalized,
		SemanticMismatch: semanticMismatch,
	})
	debug.ConfidenceScore = assessment.Score
	debug.Sufficient = assessment.Sufficient
	log.Info("confidence_assessed", "score", assessment.Score, "sufficient", assessment.Sufficient, "signals", assessment.Signals)

	if !assessment.Sufficient {
		return o.finishInsufficient(ctx, log, query, decision, debug, started), nil
	}

	evidence := o.builder.Build(ir, outcome.sqlResult, outcome.chunks)
	debug.EvidenceCount = len(evidence.Items)

	text, unknown, err := o.answers.Generate(ctx, query, evidence)
	if err != nil {
		// Evidence was sufficient but the model is down; uncertainty is
		// still a correct, honest response.
		log.Warn("answer_generation_failed", "error", err)
		debug.Sufficient = false
		return o.finishInsufficient(ctx, log, query, decision, debug, started), nil
	}
	debug.UnknownCitations = unknown
	if len(unknown) > 0 {
		log.Warn("answer_cited_unknown_evidence", "indices", unknown)
	}

	answer := &domain.Answer{
		Text:      text,
		Route:     decision.Route,
		Citations: evidence.Citations(),
		Debug:     debug,
	}
	o.publishAudit(ctx, log, traceID, query, decision.Route, assessment.Score, true, time.Since(started))
	return answer, nil
}

// buildValidatedIR generates the IR and validates it, regenerating
// exactly once with the violation list fed back. Returns nil when the
// retry is still invalid, along with every message from the last pass.
func (o *Orchestrator) buildValidatedIR(ctx context.Context, log *slog.Logger, query domain.Query, decision domain.RouteDecision) (*domain.IR, []string, bool) {
	ir, err := o.irGen.Generate(ctx, query, decision)
	if err != nil {
		log.Warn("ir_generation_failed", "error", err)
		return nil, []string{err.Error()}, false
	}

	violations := o.validateIR(ir)
	if len(violations) == 0 {
		return ir, nil, false
	}
	log.Warn("ir_validation_failed", "violations", violations)

	retried, err := o.irGen.Regenerate(ctx, query, decision, violations)
	if err != nil {
		log.Warn("ir_regeneration_failed", "error", err)
		return nil, violations, true
	}
	if retryViolations := o.validateIR(retried); len(retryViolations) > 0 {
		log.Warn("ir_retry_validation_failed", "violations", retryViolations)
		return nil, retryViolations, true
	}
	return retried, nil, true
}

func (o *Orchestrator) validateIR(ir *domain.IR) []string {
	var messages []string
	for _, err := range []error{o.schemaVal.Validate(ir), o.businessVal.Validate(ir)} {
		if err == nil {
			continue
		}
		var vErr *domain.ValidationError
		if errors.As(err, &vErr) {
			messages = append(messages, vErr.Messages()...)
			continue
		}
		messages = append(messages, err.Error())
	}
	return messages
}

// runBranches executes SQL and retrieval in parallel for HYBRID, or the
// single relevant branch otherwise. Each branch gets its own timeout
// and swallows its own error into the outcome.
func (o *Orchestrator) runBranches(ctx context.Context, log *slog.Logger, query domain.Query, route domain.Route, ir *domain.IR) branchOutcome {
	var outcome branchOutcome
	var g errgroup.Group

	if route == domain.RouteSQL || route == domain.RouteHybrid {
		g.Go(func() error {
			branchCtx, cancel := context.WithTimeout(ctx, o.branchTimeout)
			defer cancel()

			stmt, err := o.translator.Translate(ir)
			if err != nil {
				log.Warn("sql_branch_failed", "stage", "translate", "error", err)
				outcome.sqlErr = err
				return nil
			}
			outcome.statement = stmt

			result, err := o.db.Query(branchCtx, stmt)
			if err != nil {
				log.Warn("sql_branch_failed", "stage", "execute", "error", err)
				outcome.sqlErr = err
				return nil
			}
			outcome.sqlResult = result
			return nil
		})
	}

	if route == domain.RouteRAG || route == domain.RouteHybrid {
		g.Go(func() error {
			branchCtx, cancel := context.WithTimeout(ctx, o.branchTimeout)
			defer cancel()

			chunks, err := o.retrieval.Retrieve(branchCtx, query.Text, ir)
			if err != nil {
				log.Warn("rag_branch_failed", "error", err)
				outcome.ragErr = err
				return nil
			}
			outcome.chunks = chunks
			return nil
		})
	}

	_ = g.Wait()
	return outcome
}

func (o *Orchestrator) finishInsufficient(ctx context.Context, log *slog.Logger, query domain.Query, decision domain.RouteDecision, debug *domain.DebugInfo, started time.Time) *domain.Answer {
	answer := &domain.Answer{
		Text:  o.answers.Uncertainty(),
		Route: decision.Route,
		Debug: debug,
	}
	o.publishAudit(ctx, log, debug.TraceID, query, decision.Route, debug.ConfidenceScore, false, time.Since(started))
	return answer
}

func (o *Orchestrator) publishAudit(ctx context.Context, log *slog.Logger, traceID string, query domain.Query, route domain.Route, confidence float64, sufficient bool, duration time.Duration) {
	if o.audit == nil {
		return
	}
	event := domain.QueryAuditEvent{
		TraceID:    traceID,
		Query:      query.Text,
		Route:      route,
		Confidence: confidence,
		Sufficient: sufficient,
		Duration:   duration,
		AnsweredAt: time.Now().UTC(),
	}
	if err := o.audit.PublishQueryAnswered(ctx, event); err != nil {
		log.Warn("audit_publish_failed", "error", err)
	}
}

func rerankScores(chunks []domain.RetrievedChunk) []float64 {
	if len(chunks) == 0 {
		return nil
	}
	scores := make([]float64, len(chunks))
	for i, c := range chunks {
		scores[i] = c.RerankScore
	}
	return scores
}

func branchErrors(outcome branchOutcome) []string {
	var out []string
	if outcome.sqlErr != nil {
		out = append(out, "sql: "+outcome.sqlErr.Error())
	}
	if outcome.ragErr != nil {
		out = append(out, "rag: "+outcome.ragErr.Error())
	}
	return out
}
