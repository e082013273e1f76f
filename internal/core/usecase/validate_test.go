package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/tenderops/bidding-qa/internal/core/domain"
)

func validFilterIR() *domain.IR {
	return &domain.IR{
		IntentType: domain.IntentSQLFilter,
		Table:      "supplier_item_price",
		Entities:   map[string]string{"supplier_name": "华宇公司"},
		Filters: []domain.Filter{
			{Field: "unit_price", Op: domain.OpLte, Value: "500"},
		},
		RawQuery: "华宇公司单价500元以下的报价",
	}
}

func TestSchemaValidatorAcceptsValidIR(t *testing.T) {
	v := NewSchemaValidator(domain.DefaultSchema(), 5)
	if err := v.Validate(validFilterIR()); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
}

func TestSchemaValidatorMisspelledField(t *testing.T) {
	v := NewSchemaValidator(domain.DefaultSchema(), 5)
	ir := validFilterIR()
	ir.Filters = append(ir.Filters, domain.Filter{Field: "supplier_nmae", Op: domain.OpEq, Value: "华宇"})

	err := v.Validate(ir)
	if !domain.IsKind(err, domain.ErrSchemaValidation) {
		t.Fatalf("expected schema validation error, got %v", err)
	}
	var vErr *domain.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	msgs := strings.Join(vErr.Messages(), "; ")
	if !strings.Contains(msgs, "supplier_nmae") || !strings.Contains(msgs, "unknown field") {
		t.Fatalf("violation should name the misspelled field, got %q", msgs)
	}
}

func TestSchemaValidatorCollectsAllViolations(t *testing.T) {
	v := NewSchemaValidator(domain.DefaultSchema(), 5)
	ir := &domain.IR{
		IntentType: domain.IntentType("nonsense"),
		Table:      "secret_table",
		Filters: []domain.Filter{
			{Field: "nope", Op: domain.OpEq, Value: "x"},
			{Field: "unit_price", Op: domain.Operator("~"), Value: "1"},
		},
		RawQuery: "q",
	}

	err := v.Validate(ir)
	var vErr *domain.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if len(vErr.SchemaViolations) < 4 {
		t.Fatalf("expected every violation collected, got %v", vErr.Messages())
	}
}

func TestSchemaValidatorBetweenDateOrder(t *testing.T) {
	v := NewSchemaValidator(domain.DefaultSchema(), 5)
	ir := validFilterIR()
	ir.Filters = []domain.Filter{
		{Field: "quote_date", Op: domain.OpBetween, Values: []string{"2024-06-30", "2024-01-01"}},
	}
	if err := v.Validate(ir); err == nil {
		t.Fatalf("expected reversed date range rejected")
	}
}

func TestSchemaValidatorBetweenArity(t *testing.T) {
	v := NewSchemaValidator(domain.DefaultSchema(), 5)
	ir := validFilterIR()
	ir.Filters = []domain.Filter{
		{Field: "quote_date", Op: domain.OpBetween, Values: []string{"2024-01-01"}},
	}
	if err := v.Validate(ir); err == nil {
		t.Fatalf("expected between arity violation")
	}
}

func TestSchemaValidatorAggregateTargets(t *testing.T) {
	v := NewSchemaValidator(domain.DefaultSchema(), 5)
	ir := &domain.IR{
		IntentType:   domain.IntentSQLAggregate,
		Table:        "tender_project",
		TargetFields: []string{"COUNT(project_id)", "MEDIAN(amount)"},
		RawQuery:     "q",
	}
	err := v.Validate(ir)
	var vErr *domain.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	msgs := strings.Join(vErr.Messages(), "; ")
	if !strings.Contains(msgs, "MEDIAN(amount)") {
		t.Fatalf("only the unsupported aggregation should fail, got %q", msgs)
	}
}

func TestSchemaValidatorFilterBudget(t *testing.T) {
	v := NewSchemaValidator(domain.DefaultSchema(), 2)
	ir := validFilterIR()
	ir.Filters = []domain.Filter{
		{Field: "unit_price", Op: domain.OpGte, Value: "1"},
		{Field: "unit_price", Op: domain.OpLte, Value: "2"},
		{Field: "region", Op: domain.OpEq, Value: "华东"},
	}
	if err := v.Validate(ir); err == nil {
		t.Fatalf("expected filter budget violation")
	}
}

func TestBusinessValidatorAmountBounds(t *testing.T) {
	v := NewBusinessValidator(0, 1e9)
	ir := validFilterIR()
	ir.Filters = []domain.Filter{
		{Field: "amount", Op: domain.OpGte, Value: "2000000000"},
	}
	err := v.Validate(ir)
	if !domain.IsKind(err, domain.ErrBusinessRule) {
		t.Fatalf("expected business rule error, got %v", err)
	}
}

func TestBusinessValidatorAmountRangeOrder(t *testing.T) {
	v := NewBusinessValidator(0, 1e9)
	ir := validFilterIR()
	ir.Filters = []domain.Filter{
		{Field: "unit_price", Op: domain.OpBetween, Values: []string{"500", "100"}},
	}
	if err := v.Validate(ir); err == nil {
		t.Fatalf("expected reversed amount range rejected")
	}
}

func TestBusinessValidatorAggregateNeedsTargets(t *testing.T) {
	v := NewBusinessValidator(0, 1e9)
	ir := &domain.IR{IntentType: domain.IntentSQLAggregate, Table: "tender_project", RawQuery: "q"}
	if err := v.Validate(ir); err == nil {
		t.Fatalf("expected missing aggregate targets rejected")
	}
}

func TestBusinessValidatorNegativeLimit(t *testing.T) {
	v := NewBusinessValidator(0, 1e9)
	ir := validFilterIR()
	ir.Limit = -1
	if err := v.Validate(ir); err == nil {
		t.Fatalf("expected negative limit rejected")
	}
}

func TestSemanticValidatorMismatch(t *testing.T) {
	llm := &irLLMFake{reply: "MISMATCH"}
	v := NewSemanticValidator(llm)
	check := v.Validate(context.Background(), "q", validFilterIR())
	if check.OK {
		t.Fatalf("expected mismatch verdict")
	}
}

func TestSemanticValidatorAdvisoryOnFailure(t *testing.T) {
	llm := &irLLMFake{err: errors.New("model down")}
	v := NewSemanticValidator(llm)
	check := v.Validate(context.Background(), "q", validFilterIR())
	if !check.OK {
		t.Fatalf("semantic check must stay advisory when the model is down")
	}
}
