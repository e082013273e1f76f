package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/tenderops/bidding-qa/internal/core/domain"
	"github.com/tenderops/bidding-qa/internal/core/ports"
)

const (
	defaultQueryTimeout = 5 * time.Second
	defaultMaxRows      = 200
)

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

// ReadOnlyExecutor runs translated statements against the tender mirror.
// It is a single-shot executor: a failed query is reported, never retried.
type ReadOnlyExecutor struct {
	db      *sql.DB
	timeout time.Duration
	maxRows int
}

type ExecutorOption func(*ReadOnlyExecutor)

func WithQueryTimeout(d time.Duration) ExecutorOption {
	return func(e *ReadOnlyExecutor) {
		if d > 0 {
			e.timeout = d
		}
	}
}

func WithMaxRows(n int) ExecutorOption {
	return func(e *ReadOnlyExecutor) {
		if n > 0 {
			e.maxRows = n
		}
	}
}

func NewReadOnlyExecutor(db *sql.DB, opts ...ExecutorOption) *ReadOnlyExecutor {
	e := &ReadOnlyExecutor{
		db:      db,
		timeout: defaultQueryTimeout,
		maxRows: defaultMaxRows,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

var _ ports.ReadOnlyDB = (*ReadOnlyExecutor)(nil)

func (e *ReadOnlyExecutor) Query(ctx context.Context, stmt domain.SQLStatement) (*domain.SQLResult, error) {
	text := strings.TrimSpace(stmt.Text)
	// The translator only emits SELECT; this guard catches anything that
	// reaches the executor through another path.
	if !strings.HasPrefix(strings.ToUpper(text), "SELECT") {
		return nil, domain.WrapError(domain.ErrSQLExecution, "postgres.query",
			fmt.Errorf("refusing non-select statement"))
	}

	queryCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	started := time.Now()
	rows, err := e.db.QueryContext(queryCtx, text, stmt.Args...)
	if err != nil {
		return nil, e.wrapQueryError(queryCtx, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	columns, err := rows.Columns()
	if err != nil {
		return nil, domain.WrapError(domain.ErrSQLExecution, "postgres.query", err)
	}

	result := &domain.SQLResult{
		Statement: text,
		Columns:   columns,
	}
	for rows.Next() {
		if result.RowCount >= e.maxRows {
			result.Truncated = true
			break
		}
		values := make([]any, len(columns))
		scan := make([]any, len(columns))
		for i := range values {
			scan[i] = &values[i]
		}
		if err := rows.Scan(scan...); err != nil {
			return nil, domain.WrapError(domain.ErrSQLExecution, "postgres.query", err)
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		result.Rows = append(result.Rows, values)
		result.RowCount++
	}
	if err := rows.Err(); err != nil {
		return nil, e.wrapQueryError(queryCtx, err)
	}

	result.Duration = time.Since(started)
	return result, nil
}

func (e *ReadOnlyExecutor) wrapQueryError(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return domain.WrapError(domain.ErrSQLTimeout, "postgres.query", err)
	}
	return domain.WrapError(domain.ErrSQLExecution, "postgres.query", err)
}

// EnsureSchema creates the mirrored tender tables when they are missing.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across concurrent api startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026083101)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS tender_project (
	project_id TEXT PRIMARY KEY,
	project_name TEXT NOT NULL,
	company_id TEXT,
	company_name TEXT NOT NULL,
	amount NUMERIC,
	publish_date DATE,
	award_date DATE,
	status TEXT,
	region TEXT
);

CREATE TABLE IF NOT EXISTS company_master (
	company_id TEXT PRIMARY KEY,
	company_name TEXT NOT NULL,
	credit_code TEXT,
	legal_person TEXT,
	registered_capital NUMERIC,
	region TEXT,
	phone TEXT
);

CREATE TABLE IF NOT EXISTS supplier_item_price (
	item_id TEXT PRIMARY KEY,
	item_name TEXT NOT NULL,
	supplier_id TEXT,
	supplier_name TEXT NOT NULL,
	unit_price NUMERIC,
	quote_date DATE,
	region TEXT
);

CREATE INDEX IF NOT EXISTS idx_tender_project_company ON tender_project(company_name);
CREATE INDEX IF NOT EXISTS idx_tender_project_publish ON tender_project(publish_date DESC);
CREATE INDEX IF NOT EXISTS idx_supplier_item_price_supplier ON supplier_item_price(supplier_name);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}
