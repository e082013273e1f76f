package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadIncludesPipelineDefaults(t *testing.T) {
	t.Setenv("RETRIEVAL_TOP_K", "")
	t.Setenv("RETRIEVAL_TOP_N", "")
	t.Setenv("SQL_MAX_LIMIT", "")
	t.Setenv("CONFIDENCE_THRESHOLD", "")
	t.Setenv("BRANCH_TIMEOUT_SECONDS", "")

	cfg := Load()
	if cfg.RetrievalTopK != 20 {
		t.Fatalf("expected default top k 20, got %d", cfg.RetrievalTopK)
	}
	if cfg.RetrievalTopN != 5 {
		t.Fatalf("expected default top n 5, got %d", cfg.RetrievalTopN)
	}
	if cfg.SQLMaxLimit != 100 {
		t.Fatalf("expected default sql limit 100, got %d", cfg.SQLMaxLimit)
	}
	if cfg.ConfidenceThreshold != 0.55 {
		t.Fatalf("expected default confidence threshold 0.55, got %v", cfg.ConfidenceThreshold)
	}
	if cfg.BranchTimeoutSeconds != 8 {
		t.Fatalf("expected default branch timeout 8s, got %d", cfg.BranchTimeoutSeconds)
	}
}

func TestLoadParsesPipelineOverrides(t *testing.T) {
	t.Setenv("RETRIEVAL_TOP_K", "40")
	t.Setenv("RETRIEVAL_TOP_N", "8")
	t.Setenv("CONFIDENCE_THRESHOLD", "0.7")
	t.Setenv("ROUTER_MODEL_THRESHOLD", "0.8")
	t.Setenv("API_RATE_LIMIT_RPS", "25")

	cfg := Load()
	if cfg.RetrievalTopK != 40 {
		t.Fatalf("expected top k 40, got %d", cfg.RetrievalTopK)
	}
	if cfg.RetrievalTopN != 8 {
		t.Fatalf("expected top n 8, got %d", cfg.RetrievalTopN)
	}
	if cfg.ConfidenceThreshold != 0.7 {
		t.Fatalf("expected confidence threshold 0.7, got %v", cfg.ConfidenceThreshold)
	}
	if cfg.RouterModelThreshold != 0.8 {
		t.Fatalf("expected router threshold 0.8, got %v", cfg.RouterModelThreshold)
	}
	if cfg.APIRateLimitRPS != 25 {
		t.Fatalf("expected rate limit 25 rps, got %d", cfg.APIRateLimitRPS)
	}
}

func TestLoadIgnoresMalformedNumbers(t *testing.T) {
	t.Setenv("RETRIEVAL_TOP_K", "not-a-number")
	t.Setenv("CONFIDENCE_THRESHOLD", "high")

	cfg := Load()
	if cfg.RetrievalTopK != 20 {
		t.Fatalf("expected fallback top k 20, got %d", cfg.RetrievalTopK)
	}
	if cfg.ConfidenceThreshold != 0.55 {
		t.Fatalf("expected fallback confidence threshold, got %v", cfg.ConfidenceThreshold)
	}
}

func TestLoadSchemaEmptyPathUsesCompiledInModel(t *testing.T) {
	schema, err := LoadSchema("")
	if err != nil {
		t.Fatalf("LoadSchema() error = %v", err)
	}
	if _, ok := schema.Table("tender_project"); !ok {
		t.Fatalf("expected compiled-in tender_project table")
	}
	if _, ok := schema.Collection("policy_chunks"); !ok {
		t.Fatalf("expected compiled-in policy_chunks collection")
	}
}

func TestLoadSchemaParsesYAMLOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schema.yaml")
	content := []byte(`
tables:
  tender_project:
    primary_key: project_id
    columns:
      project_id: id
      company_name: text
      amount: numeric
      publish_date: date
collections:
  policy_chunks:
    facets:
      region: text
      date: date
`)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write schema file: %v", err)
	}

	schema, err := LoadSchema(path)
	if err != nil {
		t.Fatalf("LoadSchema() error = %v", err)
	}
	table, ok := schema.Table("tender_project")
	if !ok {
		t.Fatalf("expected tender_project table in override")
	}
	if table.PrimaryKey != "project_id" {
		t.Fatalf("PrimaryKey = %q, want project_id", table.PrimaryKey)
	}
	if ct, _ := schema.ResolveColumn("tender_project", "amount"); ct != "numeric" {
		t.Fatalf("amount column type = %q, want numeric", ct)
	}
	if ct, _ := schema.ResolveFacet("region"); ct != "text" {
		t.Fatalf("region facet type = %q, want text", ct)
	}
	if _, ok := schema.Table("company_master"); ok {
		t.Fatalf("override should replace, not merge, the compiled-in model")
	}
}

func TestLoadSchemaRejectsUnknownColumnType(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schema.yaml")
	content := []byte(`
tables:
  tender_project:
    primary_key: project_id
    columns:
      amount: money
`)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write schema file: %v", err)
	}

	if _, err := LoadSchema(path); err == nil {
		t.Fatalf("expected error for unknown column type")
	}
}
