package domain

import "time"

// SQLStatement is a translated, parameterized read-only query. Text is
// always a single SELECT; user-controlled values travel only in Args.
type SQLStatement struct {
	Text string
	Args []any
}

type SQLResult struct {
	Statement string        `json:"statement_executed"`
	Columns   []string      `json:"column_names"`
	Rows      [][]any       `json:"rows"`
	RowCount  int           `json:"row_count"`
	Truncated bool          `json:"truncated,omitempty"`
	Duration  time.Duration `json:"execution_time"`
}
