package v1

import (
	"fmt"

	"github.com/Warrelis/huba/internal/core/aggregation"
	"github.com/Warrelis/huba/internal/core/value"
)

// Query status codes carried in-band by QueryResponse. Zero means success;
// StatusPartialFailure may accompany rows when the degrade policy is active.
const (
	StatusOK             = 0
	StatusBadRequest     = 1
	StatusNotFound       = 2
	StatusPartialFailure = 3
	StatusTimeout        = 4
	StatusInternal       = 5
)

// ColumnExpression selects one output column: either a projected stored
// value (constant) or an aggregate over the column.
type ColumnExpression struct {
	Column string `json:"column"`
	Op     string `json:"op"`
}

// Query is the fixed query shape every tier understands.
//
// GroupBy semantics:
//   - nil: no aggregation, every matching message projects one row;
//   - empty: all matching messages form a single global group;
//   - non-empty: messages partition by the tuple of those column values.
type Query struct {
	Select    []ColumnExpression `json:"select"`
	Table     string             `json:"table"`
	StartTime int64              `json:"start_time"`
	EndTime   int64              `json:"end_time"`
	Filter    *Filter            `json:"filter,omitempty"`
	GroupBy   []string           `json:"group_by"`
	Having    *Filter            `json:"having,omitempty"`
	Limit     int                `json:"limit,omitempty"`
}

// Grouped reports whether the query aggregates (GroupBy present, possibly empty).
func (q *Query) Grouped() bool { return q.GroupBy != nil }

// Validate checks the structural shape shared by every tier. Tier-specific
// rules (avg below the root) are enforced by the executor and the planner.
func (q *Query) Validate() error {
	if q.Table == "" {
		return fmt.Errorf("table is required")
	}
	if len(q.Select) == 0 {
		return fmt.Errorf("select must not be empty")
	}
	if q.EndTime < q.StartTime {
		return fmt.Errorf("end_time %d precedes start_time %d", q.EndTime, q.StartTime)
	}

	for i, expr := range q.Select {
		if expr.Column == "" {
			return fmt.Errorf("select[%d]: column is required", i)
		}
		if !aggregation.KnownOperator(expr.Op) {
			return fmt.Errorf("select[%d]: unknown op %q", i, expr.Op)
		}
		if !q.Grouped() && expr.Op != aggregation.OpConstant {
			return fmt.Errorf("select[%d]: op %q requires group_by", i, expr.Op)
		}
	}

	if q.Grouped() {
		for _, col := range q.GroupBy {
			if !q.selectsConstant(col) {
				return fmt.Errorf("group_by column %q must appear in select as a constant", col)
			}
		}
	}

	if q.Filter != nil {
		if err := q.Filter.Validate(); err != nil {
			return fmt.Errorf("filter: %w", err)
		}
	}
	if q.Having != nil {
		if err := q.Having.Validate(); err != nil {
			return fmt.Errorf("having: %w", err)
		}
	}
	return nil
}

func (q *Query) selectsConstant(column string) bool {
	for _, expr := range q.Select {
		if expr.Column == column && expr.Op == aggregation.OpConstant {
			return true
		}
	}
	return false
}

// Row is one result row, positionally aligned with Query.Select.
type Row []value.Value

// QueryResponse is the in-band result of executing or merging a query.
// Rows == nil signals a query-level failure with Error set; a present but
// empty Rows slice is a successful empty result.
type QueryResponse struct {
	StatusCode int    `json:"status_code"`
	Error      string `json:"error,omitempty"`
	Rows       []Row  `json:"rows"`
}

// Failed reports whether the response carries no result set.
func (r *QueryResponse) Failed() bool { return r.Rows == nil }

// Success builds a successful response. rows may be empty but is never
// returned as nil, keeping the success/failure distinction on the wire.
func Success(rows []Row) *QueryResponse {
	if rows == nil {
		rows = []Row{}
	}
	return &QueryResponse{StatusCode: StatusOK, Rows: rows}
}

// Failure builds an in-band error response.
func Failure(statusCode int, format string, args ...interface{}) *QueryResponse {
	return &QueryResponse{StatusCode: statusCode, Error: fmt.Sprintf(format, args...)}
}
