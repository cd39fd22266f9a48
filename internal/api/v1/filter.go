package v1

import (
	"fmt"

	"github.com/Warrelis/huba/internal/core/value"
)

// Filter predicate operators.
const (
	FilterAnd    = "and"
	FilterOr     = "or"
	FilterNot    = "not"
	FilterEq     = "eq"
	FilterNeq    = "neq"
	FilterLt     = "lt"
	FilterLte    = "lte"
	FilterGt     = "gt"
	FilterGte    = "gte"
	FilterExists = "exists"
)

// Filter is a boolean expression tree over column comparisons. Leaf nodes
// compare one column against a literal; branch nodes combine children.
// The same tree shape serves both the pre-aggregation filter (over message
// fields) and having (over finalized aggregate cells).
type Filter struct {
	Op       string       `json:"op"`
	Column   string       `json:"column,omitempty"`
	Value    *value.Value `json:"value,omitempty"`
	Children []*Filter    `json:"children,omitempty"`
}

// Validate checks operator names and arity through the whole tree.
func (f *Filter) Validate() error {
	switch f.Op {
	case FilterAnd, FilterOr:
		if len(f.Children) == 0 {
			return fmt.Errorf("%s requires at least one child", f.Op)
		}
	case FilterNot:
		if len(f.Children) != 1 {
			return fmt.Errorf("not requires exactly one child")
		}
	case FilterEq, FilterNeq, FilterLt, FilterLte, FilterGt, FilterGte:
		if f.Column == "" {
			return fmt.Errorf("%s requires a column", f.Op)
		}
		if f.Value == nil {
			return fmt.Errorf("%s requires a comparison value", f.Op)
		}
	case FilterExists:
		if f.Column == "" {
			return fmt.Errorf("exists requires a column")
		}
	default:
		return fmt.Errorf("unknown filter op %q", f.Op)
	}

	for _, child := range f.Children {
		if err := child.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Eval evaluates the predicate against one ordered field set.
// Comparisons on a missing column or across incomparable kinds are false,
// so filters never invent matches for absent data.
func (f *Filter) Eval(fields Fields) bool {
	switch f.Op {
	case FilterAnd:
		for _, child := range f.Children {
			if !child.Eval(fields) {
				return false
			}
		}
		return true
	case FilterOr:
		for _, child := range f.Children {
			if child.Eval(fields) {
				return true
			}
		}
		return false
	case FilterNot:
		return !f.Children[0].Eval(fields)
	case FilterExists:
		return fields.Has(f.Column)
	}

	got, ok := fields.Get(f.Column)
	if !ok {
		return false
	}

	switch f.Op {
	case FilterEq:
		return got.Equal(*f.Value)
	case FilterNeq:
		return !got.Equal(*f.Value)
	}

	cmp, comparable := value.Compare(got, *f.Value)
	if !comparable {
		return false
	}
	switch f.Op {
	case FilterLt:
		return cmp < 0
	case FilterLte:
		return cmp <= 0
	case FilterGt:
		return cmp > 0
	case FilterGte:
		return cmp >= 0
	}
	return false
}
