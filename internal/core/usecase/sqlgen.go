package usecase

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/tenderops/bidding-qa/internal/core/domain"
)

// SQLTranslator maps a validated IR onto a parameterized SELECT.
// Every identifier is resolved through the shared schema before it can
// appear in the statement; user-controlled values travel only as bound
// arguments. The builder has no code path that emits anything but
// SELECT.
type SQLTranslator struct {
	schema   domain.SharedSchema
	maxLimit int
}

func NewSQLTranslator(schema domain.SharedSchema, maxLimit int) *SQLTranslator {
	if maxLimit <= 0 {
		maxLimit = 100
	}
	return &SQLTranslator{schema: schema, maxLimit: maxLimit}
}

var aggregateFuncs = map[string]struct{}{
	"COUNT": {}, "SUM": {}, "AVG": {}, "MIN": {}, "MAX": {},
}

func (t *SQLTranslator) Translate(ir *domain.IR) (domain.SQLStatement, error) {
	fail := func(err error) (domain.SQLStatement, error) {
		return domain.SQLStatement{}, domain.WrapError(domain.ErrSQLTranslation, "translate ir", err)
	}

	table, ok := t.schema.Table(ir.Table)
	if !ok {
		return fail(fmt.Errorf("table %q is not whitelisted", ir.Table))
	}

	projections, groupBy, err := t.projections(table, ir)
	if err != nil {
		return fail(err)
	}

	var (
		predicates []string
		args       []any
	)
	appendPredicate := func(sql string, values ...any) {
		predicates = append(predicates, sql)
		args = append(args, values...)
	}

	// Entity slots that resolve to columns of the target table become
	// predicates alongside the explicit filters.
	for _, slot := range sortedKeys(ir.Entities) {
		columnType, isColumn := table.Columns[slot]
		if !isColumn {
			continue
		}
		value := ir.Entities[slot]
		if columnType == domain.ColumnText {
			appendPredicate(fmt.Sprintf("%s LIKE $%d", slot, len(args)+1), likePattern(value))
			continue
		}
		typed, err := t.typedValue(columnType, slot, value)
		if err != nil {
			return fail(err)
		}
		appendPredicate(fmt.Sprintf("%s = $%d", slot, len(args)+1), typed)
	}

	for _, filter := range ir.Filters {
		columnType, isColumn := table.Columns[filter.Field]
		if !isColumn {
			// Facet-only fields belong to the retrieval branch.
			continue
		}

		switch filter.Op {
		case domain.OpEq, domain.OpNeq, domain.OpLt, domain.OpLte, domain.OpGt, domain.OpGte:
			typed, err := t.typedValue(columnType, filter.Field, filter.Value)
			if err != nil {
				return fail(err)
			}
			appendPredicate(fmt.Sprintf("%s %s $%d", filter.Field, filter.Op, len(args)+1), typed)
		case domain.OpBetween:
			if len(filter.Values) != 2 {
				return fail(fmt.Errorf("between on %s needs exactly two values", filter.Field))
			}
			low, err := t.typedValue(columnType, filter.Field, filter.Values[0])
			if err != nil {
				return fail(err)
			}
			high, err := t.typedValue(columnType, filter.Field, filter.Values[1])
			if err != nil {
				return fail(err)
			}
			appendPredicate(fmt.Sprintf("%s BETWEEN $%d AND $%d", filter.Field, len(args)+1, len(args)+2), low, high)
		case domain.OpIn:
			if len(filter.Values) == 0 {
				return fail(fmt.Errorf("in on %s needs at least one value", filter.Field))
			}
			placeholders := make([]string, 0, len(filter.Values))
			for _, raw := range filter.Values {
				typed, err := t.typedValue(columnType, filter.Field, raw)
				if err != nil {
					return fail(err)
				}
				args = append(args, typed)
				placeholders = append(placeholders, fmt.Sprintf("$%d", len(args)))
			}
			predicates = append(predicates, fmt.Sprintf("%s IN (%s)", filter.Field, strings.Join(placeholders, ", ")))
		case domain.OpLike:
			appendPredicate(fmt.Sprintf("%s LIKE $%d", filter.Field, len(args)+1), likePattern(filter.Value))
		default:
			return fail(fmt.Errorf("operator %q has no sql mapping", filter.Op))
		}
	}

	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(strings.Join(projections, ", "))
	b.WriteString(" FROM ")
	b.WriteString(table.Name)
	if len(predicates) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(predicates, " AND "))
	}
	if len(groupBy) > 0 {
		b.WriteString(" GROUP BY ")
		b.WriteString(strings.Join(groupBy, ", "))
	}
	b.WriteString(" LIMIT ")
	b.WriteString(strconv.Itoa(t.limit(ir)))

	return domain.SQLStatement{Text: b.String(), Args: args}, nil
}

// projections resolves target fields against the table whitelist. For
// aggregate intents plain columns become GROUP BY keys.
func (t *SQLTranslator) projections(table domain.TableSchema, ir *domain.IR) ([]string, []string, error) {
	if len(ir.TargetFields) == 0 {
		if ir.IntentType == domain.IntentSQLAggregate {
			return nil, nil, fmt.Errorf("aggregate intent without target fields")
		}
		return []string{"*"}, nil, nil
	}

	var projections, groupBy []string
	for _, target := range ir.TargetFields {
		if m := aggregateTargetPattern.FindStringSubmatch(target); m != nil {
			if _, ok := aggregateFuncs[m[1]]; !ok {
				return nil, nil, fmt.Errorf("aggregation %q is not allowed", m[1])
			}
			if !table.HasColumn(m[2]) {
				return nil, nil, fmt.Errorf("aggregation column %q is not whitelisted", m[2])
			}
			projections = append(projections, fmt.Sprintf("%s(%s)", m[1], m[2]))
			continue
		}
		if !table.HasColumn(target) {
			return nil, nil, fmt.Errorf("output field %q is not whitelisted", target)
		}
		projections = append(projections, target)
		if ir.IntentType == domain.IntentSQLAggregate || ir.IntentType == domain.IntentHybrid {
			groupBy = append(groupBy, target)
		}
	}

	// GROUP BY only matters when an aggregation is actually present.
	hasAggregate := false
	for _, p := range projections {
		if strings.Contains(p, "(") {
			hasAggregate = true
			break
		}
	}
	if !hasAggregate {
		groupBy = nil
	}
	return projections, groupBy, nil
}

func (t *SQLTranslator) typedValue(columnType domain.ColumnType, field, raw string) (any, error) {
	switch columnType {
	case domain.ColumnNumeric:
		value, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("%s: %q is not numeric", field, raw)
		}
		return value, nil
	case domain.ColumnDate:
		if _, err := time.Parse("2006-01-02", raw); err != nil {
			return nil, fmt.Errorf("%s: %q is not a date", field, raw)
		}
		return raw, nil
	default:
		if strings.TrimSpace(raw) == "" {
			return nil, fmt.Errorf("%s: empty value", field)
		}
		return raw, nil
	}
}

func (t *SQLTranslator) limit(ir *domain.IR) int {
	if ir.Limit > 0 && ir.Limit < t.maxLimit {
		return ir.Limit
	}
	return t.maxLimit
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// likePattern escapes LIKE metacharacters in the user value, then adds
// the surrounding wildcards.
func likePattern(value string) string {
	return "%" + likeEscaper.Replace(value) + "%"
}
