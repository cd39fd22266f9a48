package executor

import (
	"strings"

	"github.com/shopspring/decimal"

	v1 "github.com/Warrelis/huba/internal/api/v1"
	"github.com/Warrelis/huba/internal/core/aggregation"
	"github.com/Warrelis/huba/internal/core/value"
	"github.com/Warrelis/huba/internal/store"
)

// Execute runs a query against the local message store and returns the
// in-band response. Structural problems (bad op combinations, unknown
// table) come back as failure responses, never as panics or Go errors:
// the caller forwards the response as-is.
func Execute(q *v1.Query, s *store.Store) *v1.QueryResponse {
	if err := q.Validate(); err != nil {
		return v1.Failure(v1.StatusBadRequest, "invalid query: %v", err)
	}
	for i, expr := range q.Select {
		// avg never executes below the root; the root plans it as a
		// sum/count pair before fanning out.
		if expr.Op == aggregation.OpAvg {
			return v1.Failure(v1.StatusBadRequest, "select[%d]: avg is a root-derived op; request sum and count instead", i)
		}
	}

	snap, ok := s.Snapshot(q.Table)
	if !ok {
		return v1.Failure(v1.StatusNotFound, "unknown table %q", q.Table)
	}

	matched := scan(q, snap)

	if !q.Grouped() {
		return project(q, matched)
	}
	return aggregate(q, matched)
}

// scan selects the messages in the inclusive time range that pass the
// optional filter, preserving storage order.
func scan(q *v1.Query, snap store.Snapshot) []v1.LogMessage {
	var matched []v1.LogMessage
	for _, msg := range snap.Messages() {
		if msg.Timestamp < q.StartTime || msg.Timestamp > q.EndTime {
			continue
		}
		if q.Filter != nil && !q.Filter.Eval(msg.Fields) {
			continue
		}
		matched = append(matched, msg)
	}
	return matched
}

// project handles the pass-through mode: one output row per matching
// message, constants only. A missing column projects a null cell.
func project(q *v1.Query, matched []v1.LogMessage) *v1.QueryResponse {
	rows := make([]v1.Row, 0, len(matched))
	for _, msg := range matched {
		row := make(v1.Row, len(q.Select))
		for i, expr := range q.Select {
			if v, ok := msg.Fields.Get(expr.Column); ok {
				row[i] = v
			} else {
				row[i] = value.Null()
			}
		}
		rows = append(rows, row)
	}
	return v1.Success(truncate(applyHaving(q, rows), q.Limit))
}

// accumulator holds the partial state of one select expression within one group.
type accumulator struct {
	constant value.Value
	agg      decimal.Decimal
	seen     bool
}

// group collects accumulators for one distinct group key.
type group struct {
	cells []accumulator
}

// aggregate handles the grouped mode. Output order is the order in which
// each distinct group key was first observed during the scan.
func aggregate(q *v1.Query, matched []v1.LogMessage) *v1.QueryResponse {
	groups := make(map[string]*group)
	var order []string

	for _, msg := range matched {
		key := groupKey(q.GroupBy, msg.Fields)

		g, ok := groups[key]
		if !ok {
			g = newGroup(q, msg.Fields)
			groups[key] = g
			order = append(order, key)
			continue
		}
		g.fold(q, msg.Fields)
	}

	rows := make([]v1.Row, 0, len(order))
	for _, key := range order {
		rows = append(rows, groups[key].finalize(q))
	}
	return v1.Success(truncate(applyHaving(q, rows), q.Limit))
}

// groupKey encodes the tuple of group-by column values. The empty group-by
// list yields one shared key: the single global group.
func groupKey(groupBy []string, fields v1.Fields) string {
	parts := make([]string, len(groupBy))
	for i, col := range groupBy {
		v, ok := fields.Get(col)
		if !ok {
			v = value.Null()
		}
		parts[i] = v.Key()
	}
	return strings.Join(parts, "\x1f")
}

// newGroup creates a group from its first message. Constants capture this
// message's value and are never overwritten by later group members.
func newGroup(q *v1.Query, fields v1.Fields) *group {
	g := &group{cells: make([]accumulator, len(q.Select))}
	for i, expr := range q.Select {
		if expr.Op == aggregation.OpConstant {
			if v, ok := fields.Get(expr.Column); ok {
				g.cells[i].constant = v
			} else {
				g.cells[i].constant = value.Null()
			}
			continue
		}
		g.cells[i].fold(expr, fields)
	}
	return g
}

// fold accumulates one further message into the group.
func (g *group) fold(q *v1.Query, fields v1.Fields) {
	for i, expr := range q.Select {
		if expr.Op == aggregation.OpConstant {
			continue
		}
		g.cells[i].fold(expr, fields)
	}
}

// fold folds one message's column into a single accumulator.
// Missing-column policy: count/min/max skip the message, sum contributes 0
// by skipping (the finalized sum of an all-missing group is 0).
func (a *accumulator) fold(expr v1.ColumnExpression, fields v1.Fields) {
	agg := aggregation.Operators[expr.Op]

	var incoming decimal.Decimal
	if expr.Op == aggregation.OpCount {
		if !fields.Has(expr.Column) {
			return
		}
	} else {
		v, ok := fields.Get(expr.Column)
		if !ok {
			return
		}
		incoming, ok = v.Decimal()
		if !ok {
			return
		}
	}

	if !a.seen {
		a.agg = agg.Initial(incoming)
		a.seen = true
		return
	}
	a.agg = agg.Apply(a.agg, incoming)
}

// finalize turns the group's accumulators into a result row.
// Groups with no contributing values finalize count and sum to 0 and
// min/max to null.
func (g *group) finalize(q *v1.Query) v1.Row {
	row := make(v1.Row, len(q.Select))
	for i, expr := range q.Select {
		cell := g.cells[i]
		switch {
		case expr.Op == aggregation.OpConstant:
			row[i] = cell.constant
		case cell.seen:
			row[i] = value.FromDecimal(cell.agg)
		case expr.Op == aggregation.OpCount || expr.Op == aggregation.OpSum:
			row[i] = value.Int(0)
		default:
			row[i] = value.Null()
		}
	}
	return row
}

// applyHaving drops rows failing the having predicate. The predicate
// references select output columns by name; the first select expression
// with a matching column supplies the compared cell.
func applyHaving(q *v1.Query, rows []v1.Row) []v1.Row {
	if q.Having == nil {
		return rows
	}
	kept := rows[:0]
	for _, row := range rows {
		if q.Having.Eval(RowFields(q, row)) {
			kept = append(kept, row)
		}
	}
	return kept
}

// RowFields exposes a result row as an ordered field set keyed by select
// column names, letting the same predicate tree serve filter and having.
// On duplicate column names the first select expression wins.
func RowFields(q *v1.Query, row v1.Row) v1.Fields {
	fields := make(v1.Fields, 0, len(q.Select))
	for i, expr := range q.Select {
		if _, exists := fields.Get(expr.Column); exists {
			continue
		}
		fields = append(fields, v1.Field{Name: expr.Column, Value: row[i]})
	}
	return fields
}

// truncate keeps the leading rows in output order. Limit zero means unlimited.
func truncate(rows []v1.Row, limit int) []v1.Row {
	if limit > 0 && len(rows) > limit {
		return rows[:limit]
	}
	return rows
}
