package usecase

import (
	"strings"
	"testing"

	"github.com/tenderops/bidding-qa/internal/core/domain"
)

func TestTranslateFilterQuery(t *testing.T) {
	tr := NewSQLTranslator(domain.DefaultSchema(), 100)
	stmt, err := tr.Translate(&domain.IR{
		IntentType: domain.IntentSQLFilter,
		Table:      "supplier_item_price",
		Entities:   map[string]string{"supplier_name": "华宇公司"},
		Filters: []domain.Filter{
			{Field: "unit_price", Op: domain.OpLte, Value: "500"},
		},
		RawQuery: "q",
	})
	if err != nil {
		t.Fatalf("Translate() error = %v", err)
	}
	want := "SELECT * FROM supplier_item_price WHERE supplier_name LIKE $1 AND unit_price <= $2 LIMIT 100"
	if stmt.Text != want {
		t.Fatalf("statement = %q, want %q", stmt.Text, want)
	}
	if len(stmt.Args) != 2 {
		t.Fatalf("expected 2 args, got %v", stmt.Args)
	}
	if stmt.Args[0] != "%华宇公司%" {
		t.Fatalf("expected escaped like pattern, got %v", stmt.Args[0])
	}
	if stmt.Args[1] != 500.0 {
		t.Fatalf("expected numeric arg, got %T %v", stmt.Args[1], stmt.Args[1])
	}
}

func TestTranslateAggregateQuery(t *testing.T) {
	tr := NewSQLTranslator(domain.DefaultSchema(), 100)
	stmt, err := tr.Translate(&domain.IR{
		IntentType:   domain.IntentSQLAggregate,
		Table:        "tender_project",
		Entities:     map[string]string{"company_name": "天成建设集团"},
		TargetFields: []string{"COUNT(project_id)"},
		Filters: []domain.Filter{
			{Field: "publish_date", Op: domain.OpBetween, Values: []string{"2024-01-01", "2024-06-30"}},
		},
		RawQuery: "q",
	})
	if err != nil {
		t.Fatalf("Translate() error = %v", err)
	}
	want := "SELECT COUNT(project_id) FROM tender_project WHERE company_name LIKE $1 AND publish_date BETWEEN $2 AND $3 LIMIT 100"
	if stmt.Text != want {
		t.Fatalf("statement = %q, want %q", stmt.Text, want)
	}
}

func TestTranslateGroupBy(t *testing.T) {
	tr := NewSQLTranslator(domain.DefaultSchema(), 100)
	stmt, err := tr.Translate(&domain.IR{
		IntentType:   domain.IntentSQLAggregate,
		Table:        "tender_project",
		TargetFields: []string{"region", "SUM(amount)"},
		RawQuery:     "q",
	})
	if err != nil {
		t.Fatalf("Translate() error = %v", err)
	}
	if !strings.Contains(stmt.Text, "GROUP BY region") {
		t.Fatalf("expected GROUP BY, got %q", stmt.Text)
	}
}

// Every declared operator must either translate or fail closed; none
// may pass user text into the statement body.
func TestTranslateOperatorCoverage(t *testing.T) {
	tr := NewSQLTranslator(domain.DefaultSchema(), 100)
	for _, op := range domain.Operators() {
		filter := domain.Filter{Field: "region", Op: op, Value: "华东'; DROP TABLE x--"}
		switch op {
		case domain.OpBetween:
			filter = domain.Filter{Field: "publish_date", Op: op, Values: []string{"2024-01-01", "2024-06-30"}}
		case domain.OpIn:
			filter = domain.Filter{Field: "status", Op: op, Values: []string{"已中标", "评标中"}}
		}

		stmt, err := tr.Translate(&domain.IR{
			IntentType: domain.IntentSQLFilter,
			Table:      "tender_project",
			Filters:    []domain.Filter{filter},
			RawQuery:   "q",
		})
		if err != nil {
			t.Fatalf("operator %q: Translate() error = %v", op, err)
		}
		if !strings.HasPrefix(stmt.Text, "SELECT ") {
			t.Fatalf("operator %q: non-select statement %q", op, stmt.Text)
		}
		if strings.Contains(stmt.Text, "DROP") || strings.Contains(stmt.Text, "华东") {
			t.Fatalf("operator %q: user value leaked into statement %q", op, stmt.Text)
		}
	}
}

func TestTranslateRejectsUnknownTable(t *testing.T) {
	tr := NewSQLTranslator(domain.DefaultSchema(), 100)
	_, err := tr.Translate(&domain.IR{IntentType: domain.IntentSQLFilter, Table: "pg_catalog", RawQuery: "q"})
	if !domain.IsKind(err, domain.ErrSQLTranslation) {
		t.Fatalf("expected translation error, got %v", err)
	}
}

func TestTranslateRejectsUnknownProjection(t *testing.T) {
	tr := NewSQLTranslator(domain.DefaultSchema(), 100)
	_, err := tr.Translate(&domain.IR{
		IntentType:   domain.IntentSQLFilter,
		Table:        "tender_project",
		TargetFields: []string{"password"},
		RawQuery:     "q",
	})
	if !domain.IsKind(err, domain.ErrSQLTranslation) {
		t.Fatalf("expected translation error, got %v", err)
	}
}

func TestTranslateAggregateWithoutTargets(t *testing.T) {
	tr := NewSQLTranslator(domain.DefaultSchema(), 100)
	_, err := tr.Translate(&domain.IR{IntentType: domain.IntentSQLAggregate, Table: "tender_project", RawQuery: "q"})
	if !domain.IsKind(err, domain.ErrSQLTranslation) {
		t.Fatalf("expected translation error, got %v", err)
	}
}

func TestTranslateLimitCap(t *testing.T) {
	tr := NewSQLTranslator(domain.DefaultSchema(), 50)
	stmt, err := tr.Translate(&domain.IR{
		IntentType: domain.IntentSQLFilter,
		Table:      "tender_project",
		Limit:      10000,
		RawQuery:   "q",
	})
	if err != nil {
		t.Fatalf("Translate() error = %v", err)
	}
	if !strings.HasSuffix(stmt.Text, "LIMIT 50") {
		t.Fatalf("expected capped limit, got %q", stmt.Text)
	}
}

func TestTranslateSkipsFacetOnlyFilters(t *testing.T) {
	tr := NewSQLTranslator(domain.DefaultSchema(), 100)
	stmt, err := tr.Translate(&domain.IR{
		IntentType: domain.IntentHybrid,
		Table:      "tender_project",
		Filters: []domain.Filter{
			{Field: "sentiment", Op: domain.OpEq, Value: "负面"},
			{Field: "region", Op: domain.OpEq, Value: "华东"},
		},
		RawQuery: "q",
	})
	if err != nil {
		t.Fatalf("Translate() error = %v", err)
	}
	if strings.Contains(stmt.Text, "sentiment") {
		t.Fatalf("facet-only field must not reach sql, got %q", stmt.Text)
	}
	if !strings.Contains(stmt.Text, "region = $1") {
		t.Fatalf("expected region predicate, got %q", stmt.Text)
	}
}

func TestLikePatternEscapes(t *testing.T) {
	got := likePattern(`50%_\`)
	if got != `%50\%\_\\%` {
		t.Fatalf("unexpected pattern %q", got)
	}
}
