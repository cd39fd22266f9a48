// Package merge combines partial query responses from the children of one
// tier into a single response, preserving the group semantics the leaf
// executor established. Aggregator and root tiers run the same engine; the
// root adds the post-passes in root.go.
package merge

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	v1 "github.com/Warrelis/huba/internal/api/v1"
	"github.com/Warrelis/huba/internal/core/aggregation"
	"github.com/Warrelis/huba/internal/core/value"
	"github.com/Warrelis/huba/internal/executor"
)

// Partial pairs one child's response with the child's identity, so merge
// failures can name the children that caused them.
type Partial struct {
	Child    string
	Response *v1.QueryResponse
}

// Merge combines the partials in supplied order. Supplied order must be the
// configured fan-out order: it determines both concatenation order in
// pass-through mode and first-seen group order in grouped mode, which is
// how cross-tier output order stays deterministic.
//
// Any failed partial fails the merge; the caller's failure policy decides
// whether failed children are excluded before this point.
func Merge(q *v1.Query, partials []Partial) *v1.QueryResponse {
	if err := q.Validate(); err != nil {
		return v1.Failure(v1.StatusBadRequest, "invalid query: %v", err)
	}

	var failed []string
	for _, p := range partials {
		if p.Response == nil || p.Response.Failed() {
			detail := p.Child
			if p.Response != nil && p.Response.Error != "" {
				detail = fmt.Sprintf("%s (%s)", p.Child, p.Response.Error)
			}
			failed = append(failed, detail)
		}
	}
	if len(failed) > 0 {
		return v1.Failure(v1.StatusPartialFailure, "children failed: %s", strings.Join(failed, "; "))
	}

	if !q.Grouped() {
		return concatenate(q, partials)
	}
	return regroup(q, partials)
}

// concatenate handles pass-through queries: child order, then row order
// within each child, then this tier's own limit.
func concatenate(q *v1.Query, partials []Partial) *v1.QueryResponse {
	var rows []v1.Row
	for _, p := range partials {
		rows = append(rows, p.Response.Rows...)
	}
	return v1.Success(truncate(applyHaving(q, rows), q.Limit))
}

// mergedGroup accumulates already-reduced partial cells for one group key.
type mergedGroup struct {
	row  v1.Row
	seen []bool
}

// regroup re-runs the grouping pass over the concatenated partial row
// stream. Group keys are unioned across partials: a key reported by only a
// subset of children still yields exactly one output row carrying that
// subset's contributions.
func regroup(q *v1.Query, partials []Partial) *v1.QueryResponse {
	keyIdx, err := groupKeyIndexes(q)
	if err != nil {
		return v1.Failure(v1.StatusBadRequest, "%v", err)
	}

	groups := make(map[string]*mergedGroup)
	var order []string

	for _, p := range partials {
		for _, row := range p.Response.Rows {
			if len(row) != len(q.Select) {
				return v1.Failure(v1.StatusInternal,
					"child %s returned %d cells per row, want %d", p.Child, len(row), len(q.Select))
			}

			key := rowKey(row, keyIdx)
			g, ok := groups[key]
			if !ok {
				// First row seen for the key: constants are settled here
				// and never overwritten, mirroring the leaf executor.
				g = &mergedGroup{row: append(v1.Row(nil), row...), seen: make([]bool, len(row))}
				for i := range row {
					g.seen[i] = !row[i].IsNull()
				}
				groups[key] = g
				order = append(order, key)
				continue
			}
			g.combine(q, row)
		}
	}

	rows := make([]v1.Row, 0, len(order))
	for _, key := range order {
		rows = append(rows, groups[key].row)
	}
	return v1.Success(truncate(applyHaving(q, rows), q.Limit))
}

// combine folds one further partial row into the group: counts and sums
// add, mins and maxes pick the extremum, constants keep their first value.
func (g *mergedGroup) combine(q *v1.Query, row v1.Row) {
	for i, expr := range q.Select {
		agg, mergeable := aggregation.Operators[expr.Op]
		if !mergeable {
			continue
		}
		// A null cell is a no-contribution marker (a min/max over an
		// all-missing group); it must not perturb the merged value.
		if row[i].IsNull() {
			continue
		}
		incoming, ok := row[i].Decimal()
		if !ok {
			continue
		}
		if !g.seen[i] {
			g.row[i] = row[i]
			g.seen[i] = true
			continue
		}
		current, _ := g.row[i].Decimal()
		g.row[i] = value.FromDecimal(agg.Combine(current, incoming))
	}
}

// groupKeyIndexes resolves each group-by column to the select position its
// constant cell occupies in partial rows.
func groupKeyIndexes(q *v1.Query) ([]int, error) {
	idx := make([]int, len(q.GroupBy))
	for i, col := range q.GroupBy {
		idx[i] = -1
		for j, expr := range q.Select {
			if expr.Column == col && expr.Op == aggregation.OpConstant {
				idx[i] = j
				break
			}
		}
		if idx[i] == -1 {
			return nil, fmt.Errorf("group_by column %q has no constant select cell to merge on", col)
		}
	}
	return idx, nil
}

func rowKey(row v1.Row, keyIdx []int) string {
	parts := make([]string, len(keyIdx))
	for i, j := range keyIdx {
		parts[i] = row[j].Key()
	}
	return strings.Join(parts, "\x1f")
}

func applyHaving(q *v1.Query, rows []v1.Row) []v1.Row {
	if q.Having == nil {
		return rows
	}
	kept := rows[:0]
	for _, row := range rows {
		if q.Having.Eval(executor.RowFields(q, row)) {
			kept = append(kept, row)
		}
	}
	return kept
}

func truncate(rows []v1.Row, limit int) []v1.Row {
	if limit > 0 && len(rows) > limit {
		return rows[:limit]
	}
	return rows
}

// decimalCell is a shared helper for the root post-passes: it reads an
// aggregate cell, tolerating the zero defaults the executor emits.
func decimalCell(v value.Value) (decimal.Decimal, bool) {
	if v.IsNull() {
		return decimal.Decimal{}, false
	}
	return v.Decimal()
}
