package domain

type IntentType string

const (
	IntentPolicyLookup  IntentType = "policy_lookup"
	IntentOpinionLookup IntentType = "opinion_lookup"
	IntentSQLAggregate  IntentType = "sql_aggregate"
	IntentSQLFilter     IntentType = "sql_filter"
	IntentHybrid        IntentType = "hybrid"
)

func (t IntentType) Valid() bool {
	switch t {
	case IntentPolicyLookup, IntentOpinionLookup, IntentSQLAggregate, IntentSQLFilter, IntentHybrid:
		return true
	}
	return false
}

// NeedsSQL reports whether the intent requires the relational branch.
func (t IntentType) NeedsSQL() bool {
	return t == IntentSQLAggregate || t == IntentSQLFilter || t == IntentHybrid
}

// NeedsRAG reports whether the intent requires the retrieval branch.
func (t IntentType) NeedsRAG() bool {
	return t == IntentPolicyLookup || t == IntentOpinionLookup || t == IntentHybrid
}

type Operator string

const (
	OpEq      Operator = "="
	OpNeq     Operator = "!="
	OpLt      Operator = "<"
	OpLte     Operator = "<="
	OpGt      Operator = ">"
	OpGte     Operator = ">="
	OpIn      Operator = "in"
	OpBetween Operator = "between"
	OpLike    Operator = "like"
)

// Operators lists every declared filter operator. The SQL translator's
// operator table must stay total over this set.
func Operators() []Operator {
	return []Operator{OpEq, OpNeq, OpLt, OpLte, OpGt, OpGte, OpIn, OpBetween, OpLike}
}

func (op Operator) Valid() bool {
	for _, known := range Operators() {
		if op == known {
			return true
		}
	}
	return false
}

// Filter is one (field, operator, value) predicate. Scalar operators
// use Value; `between` uses Values[0..1] and `in` uses Values[0..n].
type Filter struct {
	Field  string   `json:"field"`
	Op     Operator `json:"op"`
	Value  string   `json:"value,omitempty"`
	Values []string `json:"values,omitempty"`
}

// IR is the structured intermediate representation of a query's intent.
// Created by the IR generator, read-only afterwards; it must pass the
// schema and business validators before any engine consumes it.
type IR struct {
	IntentType   IntentType        `json:"intent_type"`
	Entities     map[string]string `json:"entities,omitempty"`
	Filters      []Filter          `json:"filters,omitempty"`
	TargetFields []string          `json:"target_fields,omitempty"`
	Table        string            `json:"table,omitempty"`
	Limit        int               `json:"limit,omitempty"`
	RawQuery     string            `json:"raw_query"`
}

// Clone returns a deep copy so regeneration attempts never mutate an
// IR already handed to downstream stages.
func (ir *IR) Clone() *IR {
	if ir == nil {
		return nil
	}
	out := *ir
	if ir.Entities != nil {
		out.Entities = make(map[string]string, len(ir.Entities))
		for k, v := range ir.Entities {
			out.Entities[k] = v
		}
	}
	out.Filters = append([]Filter(nil), ir.Filters...)
	for i, f := range ir.Filters {
		out.Filters[i].Values = append([]string(nil), f.Values...)
	}
	out.TargetFields = append([]string(nil), ir.TargetFields...)
	return &out
}
