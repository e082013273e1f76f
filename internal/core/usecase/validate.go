package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/tenderops/bidding-qa/internal/core/domain"
	"github.com/tenderops/bidding-qa/internal/core/ports"
)

// SchemaValidator checks an IR against the shared schema. It is a pure
// function of (IR, schema) and collects every violation in one pass so
// the caller can report all of them at once.
type SchemaValidator struct {
	schema     domain.SharedSchema
	maxFilters int
}

func NewSchemaValidator(schema domain.SharedSchema, maxFilters int) *SchemaValidator {
	if maxFilters <= 0 {
		maxFilters = 5
	}
	return &SchemaValidator{schema: schema, maxFilters: maxFilters}
}

var aggregateTargetPattern = regexp.MustCompile(`^(COUNT|SUM|AVG|MIN|MAX)\(([A-Za-z0-9_]+)\)$`)

func (v *SchemaValidator) Validate(ir *domain.IR) error {
	var violations []domain.SchemaViolation
	add := func(field, reason string) {
		violations = append(violations, domain.SchemaViolation{Field: field, Reason: reason})
	}

	if ir == nil {
		return domain.NewSchemaValidationError([]domain.SchemaViolation{{Field: "ir", Reason: "missing"}})
	}
	if !ir.IntentType.Valid() {
		add("intent_type", fmt.Sprintf("unknown intent %q", ir.IntentType))
	}
	if strings.TrimSpace(ir.RawQuery) == "" {
		add("raw_query", "must retain the original query text")
	}

	table := ir.Table
	if ir.IntentType.NeedsSQL() {
		if table == "" {
			add("table", "sql intent requires a target table")
		} else if _, ok := v.schema.Table(table); !ok {
			add("table", fmt.Sprintf("unknown table %q", table))
		}
	}

	for _, slot := range sortedKeys(ir.Entities) {
		if !v.schema.KnownField(table, slot) {
			add(slot, "unknown field: not a declared column or metadata facet")
			continue
		}
		if err := v.checkValue(table, slot, ir.Entities[slot]); err != nil {
			add(slot, err.Error())
		}
	}

	if len(ir.Filters) > v.maxFilters {
		add("filters", fmt.Sprintf("too many filters: %d > %d", len(ir.Filters), v.maxFilters))
	}
	for i, filter := range ir.Filters {
		name := fmt.Sprintf("filters[%d].%s", i, filter.Field)
		if filter.Field == "" {
			add(fmt.Sprintf("filters[%d]", i), "field is required")
			continue
		}
		if !v.schema.KnownField(table, filter.Field) {
			add(name, "unknown field: not a declared column or metadata facet")
			continue
		}
		if !filter.Op.Valid() {
			add(name, fmt.Sprintf("operator %q is not declared", filter.Op))
			continue
		}
		v.checkFilterValue(table, name, filter, add)
	}

	for _, target := range ir.TargetFields {
		v.checkTarget(table, target, add)
	}

	if len(violations) > 0 {
		return domain.NewSchemaValidationError(violations)
	}
	return nil
}

func (v *SchemaValidator) checkFilterValue(table, name string, filter domain.Filter, add func(field, reason string)) {
	switch filter.Op {
	case domain.OpBetween:
		if len(filter.Values) != 2 {
			add(name, "between requires exactly two values")
			return
		}
		for _, value := range filter.Values {
			if err := v.checkValue(table, filter.Field, value); err != nil {
				add(name, err.Error())
				return
			}
		}
		if ct, ok := v.resolveType(table, filter.Field); ok && ct == domain.ColumnDate {
			if filter.Values[0] > filter.Values[1] {
				add(name, "date range start must not be after end")
			}
		}
	case domain.OpIn:
		if len(filter.Values) == 0 {
			add(name, "in requires at least one value")
			return
		}
		for _, value := range filter.Values {
			if err := v.checkValue(table, filter.Field, value); err != nil {
				add(name, err.Error())
				return
			}
		}
	default:
		if filter.Value == "" {
			add(name, "value is required")
			return
		}
		if err := v.checkValue(table, filter.Field, filter.Value); err != nil {
			add(name, err.Error())
		}
	}
}

func (v *SchemaValidator) checkTarget(table, target string, add func(field, reason string)) {
	if m := aggregateTargetPattern.FindStringSubmatch(target); m != nil {
		if _, ok := v.schema.ResolveColumn(table, m[2]); !ok {
			add(target, fmt.Sprintf("aggregation column %q is not declared", m[2]))
		}
		return
	}
	if strings.Contains(target, "(") {
		add(target, "aggregation function must be one of COUNT, SUM, AVG, MIN, MAX")
		return
	}
	if _, ok := v.schema.ResolveColumn(table, target); !ok {
		add(target, "unknown output field")
	}
}

func (v *SchemaValidator) resolveType(table, field string) (domain.ColumnType, bool) {
	if ct, ok := v.schema.ResolveColumn(table, field); ok {
		return ct, true
	}
	return v.schema.ResolveFacet(field)
}

func (v *SchemaValidator) checkValue(table, field, value string) error {
	ct, ok := v.resolveType(table, field)
	if !ok {
		return nil
	}
	switch ct {
	case domain.ColumnDate:
		if _, err := time.Parse("2006-01-02", value); err != nil {
			return fmt.Errorf("value %q is not a parseable date", value)
		}
	case domain.ColumnNumeric:
		if _, err := strconv.ParseFloat(value, 64); err != nil {
			return fmt.Errorf("value %q is not numeric", value)
		}
	case domain.ColumnID, domain.ColumnText:
		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("value must be a non-empty string")
		}
	}
	return nil
}

// BusinessValidator applies domain rules beyond structural typing.
type BusinessValidator struct {
	amountMin float64
	amountMax float64
}

func NewBusinessValidator(amountMin, amountMax float64) *BusinessValidator {
	if amountMax <= 0 {
		amountMax = 1e9
	}
	return &BusinessValidator{amountMin: amountMin, amountMax: amountMax}
}

func (v *BusinessValidator) Validate(ir *domain.IR) error {
	var violations []domain.RuleViolation
	add := func(ruleID, detail string) {
		violations = append(violations, domain.RuleViolation{RuleID: ruleID, Detail: detail})
	}

	if ir.IntentType == domain.IntentSQLAggregate && len(ir.TargetFields) == 0 {
		add("aggregate_targets", "sql_aggregate requires at least one target field")
	}

	for _, filter := range ir.Filters {
		if isAmountField(filter.Field) {
			for _, raw := range filterValues(filter) {
				amount, err := strconv.ParseFloat(raw, 64)
				if err != nil {
					continue
				}
				if amount < v.amountMin {
					add("amount_range_bounds", fmt.Sprintf("%s=%s below configured minimum %.0f", filter.Field, raw, v.amountMin))
				}
				if amount > v.amountMax {
					add("amount_range_bounds", fmt.Sprintf("%s=%s above configured maximum %.0f", filter.Field, raw, v.amountMax))
				}
			}
			if filter.Op == domain.OpBetween && len(filter.Values) == 2 {
				low, errLow := strconv.ParseFloat(filter.Values[0], 64)
				high, errHigh := strconv.ParseFloat(filter.Values[1], 64)
				if errLow == nil && errHigh == nil && low > high {
					add("amount_range_order", fmt.Sprintf("%s range lower bound exceeds upper bound", filter.Field))
				}
			}
		}
		if filter.Field == "company_id" {
			for _, raw := range filterValues(filter) {
				if strings.TrimSpace(raw) == "" {
					add("company_id_nonempty", "company_id filter must reference a non-empty identifier")
				}
			}
		}
	}

	if companyID, ok := ir.Entities["company_id"]; ok && strings.TrimSpace(companyID) == "" {
		add("company_id_nonempty", "company_id slot must reference a non-empty identifier")
	}
	if ir.Limit < 0 {
		add("limit_nonnegative", "row limit must not be negative")
	}

	if len(violations) > 0 {
		return domain.NewBusinessRuleError(violations)
	}
	return nil
}

func isAmountField(field string) bool {
	switch field {
	case "amount", "unit_price", "registered_capital":
		return true
	}
	return false
}

func filterValues(filter domain.Filter) []string {
	if len(filter.Values) > 0 {
		return filter.Values
	}
	if filter.Value != "" {
		return []string{filter.Value}
	}
	return nil
}

// SemanticValidator asks the model whether the IR still represents the
// original question. Its verdict is advisory: a mismatch is logged and
// reflected in confidence, never hard-blocking, because model
// judgments are themselves uncertain.
type SemanticValidator struct {
	llm ports.CompletionClient
}

func NewSemanticValidator(llm ports.CompletionClient) *SemanticValidator {
	return &SemanticValidator{llm: llm}
}

type SemanticCheck struct {
	OK     bool
	Reason string
}

func (v *SemanticValidator) Validate(ctx context.Context, query string, ir *domain.IR) SemanticCheck {
	if v.llm == nil {
		return SemanticCheck{OK: true, Reason: "llm_not_configured"}
	}

	irJSON, err := json.Marshal(ir)
	if err != nil {
		return SemanticCheck{OK: true, Reason: "marshal_failed"}
	}

	prompt := fmt.Sprintf(`你是查询解析的审查助手。判断下面的结构化 IR 是否与用户问题语义一致。

用户问题：%s
结构化 IR(JSON)：%s

仅回答 OK 或 MISMATCH。`, query, irJSON)

	reply, err := v.llm.Complete(ctx, prompt)
	if err != nil {
		slog.Warn("semantic_validation_unavailable", "error", err)
		return SemanticCheck{OK: true, Reason: "llm_call_failed"}
	}
	if strings.Contains(strings.ToUpper(reply), "MISMATCH") {
		return SemanticCheck{OK: false, Reason: "llm_mismatch"}
	}
	return SemanticCheck{OK: true, Reason: "ok"}
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
