package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/tenderops/bidding-qa/internal/core/domain"
	"github.com/tenderops/bidding-qa/internal/core/ports"
)

// irJSONSchema constrains what the model may emit. Anything outside
// this shape is discarded before it can reach the merge step.
const irJSONSchema = `{
  "type": "object",
  "properties": {
    "intent_type": {
      "type": "string",
      "enum": ["policy_lookup", "opinion_lookup", "sql_aggregate", "sql_filter", "hybrid"]
    },
    "entities": {
      "type": "object",
      "additionalProperties": {"type": "string"}
    },
    "filters": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "field": {"type": "string"},
          "op": {"type": "string", "enum": ["=", "!=", "<", "<=", ">", ">=", "in", "between", "like"]},
          "value": {"type": "string"},
          "values": {"type": "array", "items": {"type": "string"}}
        },
        "required": ["field", "op"],
        "additionalProperties": false
      }
    },
    "target_fields": {"type": "array", "items": {"type": "string"}},
    "table": {"type": "string"},
    "limit": {"type": "integer"}
  },
  "required": ["intent_type"],
  "additionalProperties": false
}`

// IRGenerator turns a routed query into the intermediate
// representation. Stage one is deterministic regex extraction; stage
// two is an optional model completion constrained by irJSONSchema.
// Rule-extracted values always win slot conflicts. The generator never
// rejects its own output; the validators do that.
type IRGenerator struct {
	llm       ports.CompletionClient
	extractor *Extractor
	schema    domain.SharedSchema
}

func NewIRGenerator(llm ports.CompletionClient, extractor *Extractor, schema domain.SharedSchema) *IRGenerator {
	if extractor == nil {
		extractor = NewExtractor()
	}
	return &IRGenerator{llm: llm, extractor: extractor, schema: schema}
}

func (g *IRGenerator) Generate(ctx context.Context, query domain.Query, route domain.RouteDecision) (*domain.IR, error) {
	return g.generate(ctx, query, route, nil)
}

// Regenerate is the single retry path: validator violations are
// injected into the completion prompt so the model can correct them.
func (g *IRGenerator) Regenerate(ctx context.Context, query domain.Query, route domain.RouteDecision, violations []string) (*domain.IR, error) {
	return g.generate(ctx, query, route, violations)
}

func (g *IRGenerator) generate(ctx context.Context, query domain.Query, route domain.RouteDecision, violations []string) (*domain.IR, error) {
	ruleIR := g.ruleBasedIR(query.Text, route)

	if g.llm == nil {
		return ruleIR, nil
	}

	modelIR, err := g.modelIR(ctx, query.Text, route, ruleIR, violations)
	if err != nil {
		// Model completion is best-effort; the rule IR stands alone.
		slog.Warn("ir_model_completion_failed", "error", err)
		return ruleIR, nil
	}
	return mergeIR(ruleIR, modelIR), nil
}

func (g *IRGenerator) ruleBasedIR(text string, route domain.RouteDecision) *domain.IR {
	extraction := g.extractor.Extract(text)

	ir := &domain.IR{
		IntentType: intentForRoute(text, route),
		Entities:   map[string]string{},
		RawQuery:   text,
	}

	if len(extraction.CompanyNames) > 0 {
		ir.Entities["company_name"] = extraction.CompanyNames[0]
	}
	if len(extraction.Phones) > 0 {
		ir.Entities["phone"] = extraction.Phones[0]
	}

	if ir.IntentType.NeedsSQL() {
		ir.Table = tableForEntity(route.EntityType)
	}

	ir.Filters = append(ir.Filters, dateFilters(ir, extraction)...)
	ir.Filters = append(ir.Filters, amountFilters(text, ir.Table, extraction)...)

	if ir.IntentType == domain.IntentSQLAggregate || (ir.IntentType == domain.IntentHybrid && containsAny(text, aggregateHints)) {
		ir.TargetFields = aggregateTargets(text, ir.Table, g.schema)
	}
	return ir
}

func intentForRoute(text string, route domain.RouteDecision) domain.IntentType {
	switch route.Route {
	case domain.RouteRAG:
		if route.EntityType == "opinion" {
			return domain.IntentOpinionLookup
		}
		return domain.IntentPolicyLookup
	case domain.RouteSQL:
		if containsAny(text, aggregateHints) {
			return domain.IntentSQLAggregate
		}
		return domain.IntentSQLFilter
	default:
		return domain.IntentHybrid
	}
}

func tableForEntity(entity string) string {
	switch entity {
	case "company":
		return "company_master"
	case "price":
		return "supplier_item_price"
	default:
		return "tender_project"
	}
}

// dateColumnFor picks the table's date column on the SQL path and the
// shared `date` facet on the RAG path.
func dateColumnFor(ir *domain.IR) string {
	if !ir.IntentType.NeedsSQL() {
		return "date"
	}
	switch ir.Table {
	case "supplier_item_price":
		return "quote_date"
	case "company_master":
		return ""
	default:
		return "publish_date"
	}
}

func dateFilters(ir *domain.IR, extraction Extraction) []domain.Filter {
	column := dateColumnFor(ir)
	if column == "" {
		return nil
	}

	if extraction.DateRange != nil {
		if ir.IntentType.NeedsSQL() {
			return []domain.Filter{{
				Field:  column,
				Op:     domain.OpBetween,
				Values: []string{extraction.DateRange.From, extraction.DateRange.To},
			}}
		}
		return []domain.Filter{{Field: column, Op: domain.OpGte, Value: extraction.DateRange.From}}
	}

	if len(extraction.Dates) == 1 {
		return []domain.Filter{{Field: column, Op: domain.OpGte, Value: extraction.Dates[0]}}
	}
	if len(extraction.Dates) >= 2 {
		return []domain.Filter{{
			Field:  column,
			Op:     domain.OpBetween,
			Values: []string{extraction.Dates[0], extraction.Dates[1]},
		}}
	}
	return nil
}

func amountFilters(text, table string, extraction Extraction) []domain.Filter {
	column := "amount"
	switch table {
	case "supplier_item_price":
		column = "unit_price"
	case "company_master":
		column = "registered_capital"
	case "":
		return nil
	}
	if len(extraction.Amounts) == 0 {
		return nil
	}

	format := func(v float64) string { return strings.TrimSuffix(strings.TrimSuffix(fmt.Sprintf("%.2f", v), "0"), "0") }

	if len(extraction.Amounts) >= 2 {
		low, high := extraction.Amounts[0], extraction.Amounts[1]
		if low > high {
			low, high = high, low
		}
		return []domain.Filter{{
			Field:  column,
			Op:     domain.OpBetween,
			Values: []string{format(low), format(high)},
		}}
	}

	op := domain.OpGte
	if containsAny(text, []string{"以下", "以内", "不超过", "低于", "小于"}) {
		op = domain.OpLte
	}
	return []domain.Filter{{Field: column, Op: op, Value: format(extraction.Amounts[0])}}
}

func aggregateTargets(text, table string, schema domain.SharedSchema) []string {
	tableSchema, ok := schema.Table(table)
	if !ok {
		return nil
	}

	switch {
	case containsAny(text, []string{"平均", "均价"}):
		if tableSchema.HasColumn("unit_price") {
			return []string{"AVG(unit_price)"}
		}
		return []string{"AVG(amount)"}
	case containsAny(text, []string{"总额", "总金额", "合计"}):
		if tableSchema.HasColumn("amount") {
			return []string{"SUM(amount)"}
		}
	case containsAny(text, []string{"最高"}):
		if tableSchema.HasColumn("unit_price") {
			return []string{"MAX(unit_price)"}
		}
		if tableSchema.HasColumn("amount") {
			return []string{"MAX(amount)"}
		}
	case containsAny(text, []string{"最低"}):
		if tableSchema.HasColumn("unit_price") {
			return []string{"MIN(unit_price)"}
		}
		if tableSchema.HasColumn("amount") {
			return []string{"MIN(amount)"}
		}
	}
	return []string{fmt.Sprintf("COUNT(%s)", tableSchema.PrimaryKey)}
}

const irPromptTemplate = `你是招投标问答系统的解析模块。将用户问题补全为 JSON IR。
字段：
- intent_type: policy_lookup | opinion_lookup | sql_aggregate | sql_filter | hybrid
- entities: 槽位到值的映射，键只能用数据模式中声明的列名或元数据字段
- filters: {field, op, value|values} 列表，op 只允许 =, !=, <, <=, >, >=, in, between, like
- target_fields: SQL 查询需要返回的字段或聚合，聚合只允许 COUNT/SUM/AVG/MIN/MAX
- table: 目标主表
- limit: 可选行数上限

数据模式：
%s

路由预判：route=%s entity=%s
规则阶段已抽取的 IR（这些值优先，不要改动已填槽位）：
%s
%s
用户问题：%s
只输出 JSON，不要额外说明。`

func (g *IRGenerator) modelIR(ctx context.Context, text string, route domain.RouteDecision, ruleIR *domain.IR, violations []string) (*domain.IR, error) {
	ruleJSON, err := json.Marshal(ruleIR)
	if err != nil {
		return nil, fmt.Errorf("marshal rule ir: %w", err)
	}

	violationNote := ""
	if len(violations) > 0 {
		violationNote = "上一次生成未通过校验，必须修正以下问题：\n- " + strings.Join(violations, "\n- ") + "\n"
	}

	prompt := fmt.Sprintf(irPromptTemplate,
		describeSchema(g.schema), route.Route, route.EntityType, ruleJSON, violationNote, text)

	raw, err := g.llm.CompleteJSON(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("ir completion: %w", err)
	}
	raw = extractJSONObject(raw)

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(irJSONSchema),
		gojsonschema.NewStringLoader(raw),
	)
	if err != nil {
		return nil, fmt.Errorf("validate ir json: %w", err)
	}
	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			details = append(details, desc.String())
		}
		return nil, fmt.Errorf("model ir rejected by json schema: %s", strings.Join(details, "; "))
	}

	var ir domain.IR
	if err := json.Unmarshal([]byte(raw), &ir); err != nil {
		return nil, fmt.Errorf("decode model ir: %w", err)
	}
	return &ir, nil
}

// mergeIR overlays the model completion onto the rule IR. Rules are
// higher precision, so a slot or filter field the rules populated is
// never overwritten.
func mergeIR(rule, model *domain.IR) *domain.IR {
	out := rule.Clone()

	if out.Table == "" {
		out.Table = model.Table
	}
	if out.Limit == 0 && model.Limit > 0 {
		out.Limit = model.Limit
	}

	for slot, value := range model.Entities {
		if _, taken := out.Entities[slot]; !taken && value != "" {
			out.Entities[slot] = value
		}
	}

	ruleFields := make(map[string]struct{}, len(out.Filters))
	for _, f := range out.Filters {
		ruleFields[f.Field] = struct{}{}
	}
	for _, f := range model.Filters {
		if _, taken := ruleFields[f.Field]; !taken {
			out.Filters = append(out.Filters, f)
		}
	}

	if len(out.TargetFields) == 0 {
		out.TargetFields = append([]string(nil), model.TargetFields...)
	}
	return out
}

func describeSchema(schema domain.SharedSchema) string {
	var b strings.Builder
	for _, name := range []string{"tender_project", "company_master", "supplier_item_price"} {
		table, ok := schema.Table(name)
		if !ok {
			continue
		}
		b.WriteString(name)
		b.WriteString(": ")
		b.WriteString(strings.Join(sortedKeys(table.Columns), ", "))
		b.WriteString("\n")
	}
	for _, name := range []string{domain.CollectionPolicyChunks, domain.CollectionOpinionChunks} {
		collection, ok := schema.Collection(name)
		if !ok {
			continue
		}
		b.WriteString(name)
		b.WriteString(" (facets): ")
		b.WriteString(strings.Join(sortedKeys(collection.Facets), ", "))
		b.WriteString("\n")
	}
	return b.String()
}
