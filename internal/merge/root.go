package merge

import (
	v1 "github.com/Warrelis/huba/internal/api/v1"
	"github.com/Warrelis/huba/internal/core/aggregation"
	"github.com/Warrelis/huba/internal/core/value"
)

// avgColumn maps one requested avg cell to the sum/count pair it is
// derived from in downstream rows.
type avgColumn struct {
	selectIdx int
	countIdx  int
}

// Plan is the root's rewrite of a client query. Avg is not associative, so
// it never travels below the root: each avg expression is sent downstream
// as its sum, with a companion count appended at the tail of the select.
// Finalize divides the merged pair and strips the companions.
type Plan struct {
	// Downstream is the query every child tier executes and merges on.
	Downstream *v1.Query

	width int // select width of the original query
	avgs  []avgColumn
}

// NewPlan validates the client query at the root tier and rewrites avg
// expressions. A query without avg passes through untouched.
func NewPlan(q *v1.Query) (*Plan, *v1.QueryResponse) {
	if err := q.Validate(); err != nil {
		return nil, v1.Failure(v1.StatusBadRequest, "invalid query: %v", err)
	}

	plan := &Plan{Downstream: q, width: len(q.Select)}

	hasAvg := false
	for _, expr := range q.Select {
		if expr.Op == aggregation.OpAvg {
			hasAvg = true
			break
		}
	}
	if !hasAvg {
		return plan, nil
	}

	down := *q
	down.Select = append([]v1.ColumnExpression(nil), q.Select...)
	for i, expr := range q.Select {
		if expr.Op != aggregation.OpAvg {
			continue
		}
		down.Select[i] = v1.ColumnExpression{Column: expr.Column, Op: aggregation.OpSum}
		down.Select = append(down.Select, v1.ColumnExpression{Column: expr.Column, Op: aggregation.OpCount})
		plan.avgs = append(plan.avgs, avgColumn{selectIdx: i, countIdx: len(down.Select) - 1})
	}

	plan.Downstream = &down
	return plan, nil
}

// Finalize runs the root-only post-passes over the merged downstream
// response: derive each avg cell from its sum/count pair (count zero
// yields a null cell, not a fault) and strip the companion columns so rows
// align with the client's select again. Group-set completion needs no work
// here: Merge unions group keys across partials by construction, so a key
// absent from some children already surfaced exactly once.
func (p *Plan) Finalize(resp *v1.QueryResponse) *v1.QueryResponse {
	if resp.Failed() || len(p.avgs) == 0 {
		return resp
	}

	rows := make([]v1.Row, 0, len(resp.Rows))
	for _, row := range resp.Rows {
		if len(row) < p.width {
			return v1.Failure(v1.StatusInternal, "merged row has %d cells, want at least %d", len(row), p.width)
		}

		out := append(v1.Row(nil), row[:p.width]...)
		for _, avg := range p.avgs {
			out[avg.selectIdx] = deriveAvgCell(row[avg.selectIdx], row[avg.countIdx])
		}
		rows = append(rows, out)
	}

	return &v1.QueryResponse{StatusCode: resp.StatusCode, Error: resp.Error, Rows: rows}
}

func deriveAvgCell(sumCell, countCell value.Value) value.Value {
	sum, sumOK := decimalCell(sumCell)
	count, countOK := decimalCell(countCell)
	if !sumOK || !countOK {
		return value.Null()
	}
	avg, ok := aggregation.DeriveAvg(sum, count)
	if !ok {
		return value.Null()
	}
	return value.FromDecimal(avg)
}
