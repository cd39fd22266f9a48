package aggregation

// Column expression operators. OpConstant projects a stored value without
// reducing; OpAvg is a root-only presentation of a sum/count pair and never
// travels below the root tier.
const (
	OpConstant = "constant"
	OpCount    = "count"
	OpSum      = "sum"
	OpMin      = "min"
	OpMax      = "max"
	OpAvg      = "avg"
)

// KnownOperator reports whether op is any operator a client may request,
// including the non-mergeable constant and avg.
func KnownOperator(op string) bool {
	return op == OpConstant || op == OpAvg || ValidOperator(op)
}
