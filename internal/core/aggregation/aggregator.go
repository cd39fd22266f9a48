package aggregation

import (
	"github.com/shopspring/decimal"
)

// Aggregator defines the reduce semantics of an aggregation operator.
// To add a new operator: implement this interface and register it in Operators.
// The executor's and merge engine's hot paths become a single map lookup.
type Aggregator interface {
	// Initial returns the aggregate value after the very first contributing
	// message for a group. count → 1; sum/min/max → the incoming value itself.
	Initial(incoming decimal.Decimal) decimal.Decimal

	// Apply folds an incoming raw value into an existing aggregate.
	Apply(current, incoming decimal.Decimal) decimal.Decimal

	// Combine merges two already-reduced partial aggregates of the same
	// operator. This is the associativity law the distributed merge relies
	// on: count/sum add, min/max pick the extremum.
	Combine(a, b decimal.Decimal) decimal.Decimal
}

// Operators is the registry of all mergeable aggregation operators.
// OpConstant and OpAvg are deliberately absent: constants carry no reduce
// state, and avg is derived at the root from a sum/count pair (it is not
// associative on its own).
var Operators = map[string]Aggregator{
	OpCount: countAgg{},
	OpSum:   sumAgg{},
	OpMin:   minAgg{},
	OpMax:   maxAgg{},
}

// ValidOperator reports whether op is a registered mergeable operator.
func ValidOperator(op string) bool {
	_, ok := Operators[op]
	return ok
}

// countAgg increments by 1 per contributing message. The incoming value is ignored.
type countAgg struct{}

func (countAgg) Initial(_ decimal.Decimal) decimal.Decimal    { return decimal.NewFromInt(1) }
func (countAgg) Apply(cur, _ decimal.Decimal) decimal.Decimal { return cur.Add(decimal.NewFromInt(1)) }
func (countAgg) Combine(a, b decimal.Decimal) decimal.Decimal { return a.Add(b) }

// sumAgg accumulates the sum of incoming values.
type sumAgg struct{}

func (sumAgg) Initial(v decimal.Decimal) decimal.Decimal      { return v }
func (sumAgg) Apply(cur, inc decimal.Decimal) decimal.Decimal { return cur.Add(inc) }
func (sumAgg) Combine(a, b decimal.Decimal) decimal.Decimal   { return a.Add(b) }

// minAgg tracks the minimum value seen.
type minAgg struct{}

func (minAgg) Initial(v decimal.Decimal) decimal.Decimal { return v }
func (minAgg) Apply(cur, inc decimal.Decimal) decimal.Decimal {
	if inc.LessThan(cur) {
		return inc
	}
	return cur
}
func (m minAgg) Combine(a, b decimal.Decimal) decimal.Decimal { return m.Apply(a, b) }

// maxAgg tracks the maximum value seen.
type maxAgg struct{}

func (maxAgg) Initial(v decimal.Decimal) decimal.Decimal { return v }
func (maxAgg) Apply(cur, inc decimal.Decimal) decimal.Decimal {
	if inc.GreaterThan(cur) {
		return inc
	}
	return cur
}
func (m maxAgg) Combine(a, b decimal.Decimal) decimal.Decimal { return m.Apply(a, b) }
