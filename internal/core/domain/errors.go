package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrRouting          = errors.New("routing indecisive")
	ErrSchemaValidation = errors.New("ir schema validation failed")
	ErrBusinessRule     = errors.New("business rule violation")
	ErrSQLTranslation   = errors.New("sql translation failed")
	ErrSQLTimeout       = errors.New("sql timeout")
	ErrSQLExecution     = errors.New("sql execution failed")
	ErrRetrieval        = errors.New("retrieval failed")
	ErrLLMUnavailable   = errors.New("llm unavailable")
	ErrTemporary        = errors.New("temporary upstream failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// SchemaViolation names a single structural defect in an IR.
type SchemaViolation struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

func (v SchemaViolation) String() string {
	return v.Field + ": " + v.Reason
}

// RuleViolation names a single business-rule defect in an IR.
type RuleViolation struct {
	RuleID string `json:"rule_id"`
	Detail string `json:"detail"`
}

func (v RuleViolation) String() string {
	return v.RuleID + ": " + v.Detail
}

// ValidationError carries every violation found in one validator pass
// so callers can report all of them at once.
type ValidationError struct {
	Kind             error
	SchemaViolations []SchemaViolation
	RuleViolations   []RuleViolation
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.SchemaViolations)+len(e.RuleViolations))
	for _, v := range e.SchemaViolations {
		parts = append(parts, v.String())
	}
	for _, v := range e.RuleViolations {
		parts = append(parts, v.String())
	}
	return e.Kind.Error() + ": " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error {
	return e.Kind
}

func (e *ValidationError) Messages() []string {
	out := make([]string, 0, len(e.SchemaViolations)+len(e.RuleViolations))
	for _, v := range e.SchemaViolations {
		out = append(out, v.String())
	}
	for _, v := range e.RuleViolations {
		out = append(out, v.String())
	}
	return out
}

func NewSchemaValidationError(violations []SchemaViolation) *ValidationError {
	return &ValidationError{Kind: ErrSchemaValidation, SchemaViolations: violations}
}

func NewBusinessRuleError(violations []RuleViolation) *ValidationError {
	return &ValidationError{Kind: ErrBusinessRule, RuleViolations: violations}
}
