package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tenderops/bidding-qa/internal/core/domain"
	"github.com/tenderops/bidding-qa/internal/core/ports"
)

// Router classifies a query into RAG / SQL / HYBRID. The ordered rule
// stage decides alone whenever its keyword vocabulary matches; the
// model stage is consulted only when the rules are indecisive, and a
// low model confidence degrades to HYBRID rather than guessing.
type Router struct {
	llm            ports.CompletionClient
	modelThreshold float64
}

func NewRouter(llm ports.CompletionClient, modelThreshold float64) *Router {
	if modelThreshold <= 0 || modelThreshold > 1 {
		modelThreshold = 0.6
	}
	return &Router{llm: llm, modelThreshold: modelThreshold}
}

type routeRule struct {
	intent   string
	entity   string
	route    domain.Route
	keywords []string
}

// Ordered intent vocabulary. Policy and opinion cues mark the RAG
// side; tender, company and price cues mark the SQL side.
var routeRules = []routeRule{
	{intent: "policy_query", entity: "policy", route: domain.RouteRAG,
		keywords: []string{"政策", "扶持", "规范", "办法", "通知", "条例"}},
	{intent: "opinion_query", entity: "opinion", route: domain.RouteRAG,
		keywords: []string{"舆情", "口碑", "负面", "投诉", "舆论", "评价"}},
	{intent: "tender_query", entity: "tender", route: domain.RouteSQL,
		keywords: []string{"招标", "中标", "投标", "标段"}},
	{intent: "company_query", entity: "company", route: domain.RouteSQL,
		keywords: []string{"公司", "企业", "供应商", "厂商"}},
	{intent: "items_query", entity: "price", route: domain.RouteSQL,
		keywords: []string{"价格", "报价", "行情", "单价", "成本"}},
}

// Aggregation and comparison phrasing counts as a SQL indicator even
// without an entity keyword.
var aggregateHints = []string{"多少", "几个", "数量", "合计", "总额", "总金额", "平均", "统计", "最高", "最低", "排名"}

func (r *Router) Route(ctx context.Context, query domain.Query) (domain.RouteDecision, error) {
	text := strings.TrimSpace(query.Text)
	if text == "" {
		return domain.RouteDecision{}, domain.WrapError(domain.ErrInvalidInput, "route", fmt.Errorf("query text is empty"))
	}

	if decision, ok := ruleBasedRoute(text); ok {
		slog.Debug("query_routed", "stage", "rules", "route", decision.Route, "intent", decision.Intent)
		return decision, nil
	}

	decision, err := r.modelRoute(ctx, text)
	if err != nil {
		return domain.RouteDecision{}, domain.WrapError(domain.ErrRouting, "route", err)
	}
	slog.Debug("query_routed", "stage", "model", "route", decision.Route, "confidence", decision.Confidence)
	return decision, nil
}

// ruleBasedRoute evaluates the RAG and SQL vocabularies independently.
// A hit on both sides means both a semantic and a structured
// sub-intent were detected, which is exactly the HYBRID contract.
func ruleBasedRoute(text string) (domain.RouteDecision, bool) {
	var ragRule, sqlRule *routeRule
	for i := range routeRules {
		rule := &routeRules[i]
		if !containsAny(text, rule.keywords) {
			continue
		}
		if rule.route == domain.RouteRAG && ragRule == nil {
			ragRule = rule
		}
		if rule.route == domain.RouteSQL && sqlRule == nil {
			sqlRule = rule
		}
	}

	sqlHinted := sqlRule != nil || containsAny(text, aggregateHints)

	switch {
	case ragRule != nil && sqlHinted:
		entity := "tender"
		if sqlRule != nil {
			entity = sqlRule.entity
		}
		return domain.RouteDecision{
			Route:      domain.RouteHybrid,
			Intent:     "hybrid_query",
			EntityType: entity,
			Rationale:  "rule: both semantic and structured cues matched",
			Confidence: 0.8,
		}, true
	case ragRule != nil:
		return domain.RouteDecision{
			Route:      domain.RouteRAG,
			Intent:     ragRule.intent,
			EntityType: ragRule.entity,
			Rationale:  "rule: " + ragRule.keywords[0] + " vocabulary",
			Confidence: 0.9,
		}, true
	case sqlRule != nil:
		return domain.RouteDecision{
			Route:      domain.RouteSQL,
			Intent:     sqlRule.intent,
			EntityType: sqlRule.entity,
			Rationale:  "rule: " + sqlRule.keywords[0] + " vocabulary",
			Confidence: 0.9,
		}, true
	}
	return domain.RouteDecision{}, false
}

const routePromptTemplate = `你是招投标问答系统的查询路由器。判断下面的问题应该走哪条检索路径：
- rag：需要政策原文或舆情文本等非结构化内容
- sql：需要招标项目、公司、供应商、价格等结构化数据
- hybrid：两者都需要

只输出 JSON，格式：{"route": "rag|sql|hybrid", "confidence": 0到1之间的数值}

用户问题：%s`

func (r *Router) modelRoute(ctx context.Context, text string) (domain.RouteDecision, error) {
	if r.llm == nil {
		return domain.RouteDecision{}, fmt.Errorf("rules indecisive and no model classifier configured")
	}

	raw, err := r.llm.CompleteJSON(ctx, fmt.Sprintf(routePromptTemplate, text))
	if err != nil {
		return domain.RouteDecision{}, fmt.Errorf("model classification: %w", err)
	}

	var parsed struct {
		Route      string  `json:"route"`
		Confidence float64 `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(extractJSONObject(raw)), &parsed); err != nil {
		return domain.RouteDecision{}, fmt.Errorf("parse classification json: %w", err)
	}

	route := domain.Route(strings.ToLower(strings.TrimSpace(parsed.Route)))
	switch route {
	case domain.RouteRAG, domain.RouteSQL, domain.RouteHybrid:
	default:
		return domain.RouteDecision{}, fmt.Errorf("model emitted unknown route %q", parsed.Route)
	}

	if parsed.Confidence < r.modelThreshold {
		return domain.RouteDecision{
			Route:      domain.RouteHybrid,
			Intent:     "hybrid_query",
			Rationale:  fmt.Sprintf("model confidence %.2f below threshold, degraded to hybrid", parsed.Confidence),
			Confidence: parsed.Confidence,
		}, nil
	}

	return domain.RouteDecision{
		Route:      route,
		Intent:     string(route) + "_query",
		Rationale:  "model classification",
		Confidence: parsed.Confidence,
	}, nil
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}
