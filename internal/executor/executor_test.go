package executor

import (
	"testing"

	v1 "github.com/Warrelis/huba/internal/api/v1"
	"github.com/Warrelis/huba/internal/core/aggregation"
	"github.com/Warrelis/huba/internal/core/value"
	"github.com/Warrelis/huba/internal/store"
	"github.com/stretchr/testify/require"
)

func msg(ts int64, table string, fields ...v1.Field) v1.LogMessage {
	return v1.LogMessage{Timestamp: ts, Table: table, Fields: fields}
}

func field(name string, v value.Value) v1.Field {
	return v1.Field{Name: name, Value: v}
}

func seed(t *testing.T, messages ...v1.LogMessage) *store.Store {
	t.Helper()
	s := store.New()
	resp := s.IngestBatch(&v1.LogBatch{Messages: messages})
	require.Zero(t, resp.Rejected)
	return s
}

func constant(col string) v1.ColumnExpression {
	return v1.ColumnExpression{Column: col, Op: aggregation.OpConstant}
}

func agg(col, op string) v1.ColumnExpression {
	return v1.ColumnExpression{Column: col, Op: op}
}

func TestRoundTripIngestQuery(t *testing.T) {
	s := seed(t, msg(10, "t",
		field("string1", value.String("s1")),
		field("int1", value.Int(42)),
	))

	resp := Execute(&v1.Query{
		Select:    []v1.ColumnExpression{constant("string1")},
		Table:     "t",
		StartTime: 0,
		EndTime:   50,
	}, s)

	require.False(t, resp.Failed())
	require.Len(t, resp.Rows, 1)
	require.True(t, resp.Rows[0][0].Equal(value.String("s1")))
}

func TestTimeRangeInclusive(t *testing.T) {
	s := seed(t,
		msg(10, "t", field("int1", value.Int(1))),
		msg(20, "t", field("int1", value.Int(2))),
		msg(30, "t", field("int1", value.Int(3))),
		msg(40, "t", field("int1", value.Int(4))),
	)

	q := func(start, end int64) *v1.QueryResponse {
		return Execute(&v1.Query{
			Select:    []v1.ColumnExpression{constant("int1")},
			Table:     "t",
			StartTime: start,
			EndTime:   end,
		}, s)
	}

	resp := q(15, 25)
	require.Len(t, resp.Rows, 1)
	require.True(t, resp.Rows[0][0].Equal(value.Int(2)))

	// Bounds are inclusive on both ends.
	resp = q(20, 30)
	require.Len(t, resp.Rows, 2)

	resp = q(41, 100)
	require.Empty(t, resp.Rows)
}

func TestAggregationOverSingleGroup(t *testing.T) {
	s := seed(t,
		msg(10, "t", field("int1", value.Int(42)), field("string1", value.String("s1"))),
		msg(20, "t", field("int1", value.Int(100)), field("string1", value.String("s1"))),
		msg(30, "t", field("int1", value.Int(3)), field("string1", value.String("s1"))),
		msg(40, "t", field("int1", value.Int(15)), field("string1", value.String("s1"))),
	)

	tests := []struct {
		op   string
		want int64
	}{
		{op: aggregation.OpCount, want: 4},
		{op: aggregation.OpMin, want: 3},
		{op: aggregation.OpMax, want: 100},
		{op: aggregation.OpSum, want: 160},
	}

	for _, tc := range tests {
		t.Run(tc.op, func(t *testing.T) {
			resp := Execute(&v1.Query{
				Select:    []v1.ColumnExpression{agg("int1", tc.op), constant("string1")},
				Table:     "t",
				StartTime: 0,
				EndTime:   50,
				GroupBy:   []string{},
			}, s)

			require.False(t, resp.Failed(), resp.Error)
			require.Len(t, resp.Rows, 1)
			require.True(t, resp.Rows[0][0].Equal(value.Int(tc.want)), "got %v", resp.Rows[0][0])
			require.True(t, resp.Rows[0][1].Equal(value.String("s1")))
		})
	}
}

func TestGroupOrderIsFirstSeen(t *testing.T) {
	// Keys arrive A, B, A, B, B: output order must be [A, B].
	s := seed(t,
		msg(1, "t", field("k", value.String("A")), field("n", value.Int(1))),
		msg(2, "t", field("k", value.String("B")), field("n", value.Int(1))),
		msg(3, "t", field("k", value.String("A")), field("n", value.Int(1))),
		msg(4, "t", field("k", value.String("B")), field("n", value.Int(1))),
		msg(5, "t", field("k", value.String("B")), field("n", value.Int(1))),
	)

	resp := Execute(&v1.Query{
		Select:    []v1.ColumnExpression{constant("k"), agg("n", aggregation.OpCount)},
		Table:     "t",
		StartTime: 0,
		EndTime:   10,
		GroupBy:   []string{"k"},
	}, s)

	require.False(t, resp.Failed())
	require.Len(t, resp.Rows, 2)
	require.True(t, resp.Rows[0][0].Equal(value.String("A")))
	require.True(t, resp.Rows[0][1].Equal(value.Int(2)))
	require.True(t, resp.Rows[1][0].Equal(value.String("B")))
	require.True(t, resp.Rows[1][1].Equal(value.Int(3)))
}

func TestGroupTuplesWithSeparatorBytesStayDistinct(t *testing.T) {
	// The tuple ("p\x1fs:q", "r") must not land in the same group as
	// ("p", "q\x1fs:r") just because the stored strings carry the byte the
	// key encoding joins on.
	s := seed(t,
		msg(1, "t", field("a", value.String("p\x1fs:q")), field("b", value.String("r"))),
		msg(2, "t", field("a", value.String("p")), field("b", value.String("q\x1fs:r"))),
	)

	resp := Execute(&v1.Query{
		Select:    []v1.ColumnExpression{constant("a"), constant("b"), agg("a", aggregation.OpCount)},
		Table:     "t",
		StartTime: 0,
		EndTime:   10,
		GroupBy:   []string{"a", "b"},
	}, s)

	require.False(t, resp.Failed(), resp.Error)
	require.Len(t, resp.Rows, 2)
	require.True(t, resp.Rows[0][2].Equal(value.Int(1)))
	require.True(t, resp.Rows[1][2].Equal(value.Int(1)))
}

func TestConstantTakesFirstGroupMember(t *testing.T) {
	s := seed(t,
		msg(1, "t", field("k", value.String("A")), field("label", value.String("first"))),
		msg(2, "t", field("k", value.String("A")), field("label", value.String("second"))),
	)

	resp := Execute(&v1.Query{
		Select:    []v1.ColumnExpression{constant("k"), constant("label")},
		Table:     "t",
		StartTime: 0,
		EndTime:   10,
		GroupBy:   []string{"k"},
	}, s)

	require.Len(t, resp.Rows, 1)
	require.True(t, resp.Rows[0][1].Equal(value.String("first")))
}

func TestMissingColumnPolicy(t *testing.T) {
	s := seed(t,
		msg(1, "t", field("k", value.String("A")), field("n", value.Int(5))),
		msg(2, "t", field("k", value.String("A"))), // no n
		msg(3, "t", field("k", value.String("A")), field("n", value.Int(7))),
	)

	resp := Execute(&v1.Query{
		Select: []v1.ColumnExpression{
			constant("k"),
			agg("n", aggregation.OpCount),
			agg("n", aggregation.OpSum),
			agg("n", aggregation.OpMin),
			agg("missing", aggregation.OpSum),
			agg("missing", aggregation.OpMax),
			constant("missing"),
		},
		Table:     "t",
		StartTime: 0,
		EndTime:   10,
		GroupBy:   []string{"k"},
	}, s)

	require.False(t, resp.Failed(), resp.Error)
	require.Len(t, resp.Rows, 1)
	row := resp.Rows[0]
	require.True(t, row[1].Equal(value.Int(2)), "count skips missing")
	require.True(t, row[2].Equal(value.Int(12)), "sum treats missing as 0")
	require.True(t, row[3].Equal(value.Int(5)), "min ignores missing")
	require.True(t, row[4].Equal(value.Int(0)), "all-missing sum is 0")
	require.True(t, row[5].IsNull(), "all-missing max is null")
	require.True(t, row[6].IsNull(), "missing constant projects null")
}

func TestPassThroughProjectsEveryRow(t *testing.T) {
	s := seed(t,
		msg(1, "t", field("a", value.Int(1)), field("b", value.String("x"))),
		msg(2, "t", field("a", value.Int(2))),
	)

	resp := Execute(&v1.Query{
		Select:    []v1.ColumnExpression{constant("a"), constant("b")},
		Table:     "t",
		StartTime: 0,
		EndTime:   10,
	}, s)

	require.Len(t, resp.Rows, 2)
	require.True(t, resp.Rows[0][1].Equal(value.String("x")))
	require.True(t, resp.Rows[1][1].IsNull())
}

func TestFilterApplied(t *testing.T) {
	lit := value.String("keep")
	s := seed(t,
		msg(1, "t", field("tag", value.String("keep")), field("n", value.Int(1))),
		msg(2, "t", field("tag", value.String("drop")), field("n", value.Int(2))),
		msg(3, "t", field("tag", value.String("keep")), field("n", value.Int(3))),
	)

	resp := Execute(&v1.Query{
		Select:    []v1.ColumnExpression{agg("n", aggregation.OpSum)},
		Table:     "t",
		StartTime: 0,
		EndTime:   10,
		Filter:    &v1.Filter{Op: v1.FilterEq, Column: "tag", Value: &lit},
		GroupBy:   []string{},
	}, s)

	require.Len(t, resp.Rows, 1)
	require.True(t, resp.Rows[0][0].Equal(value.Int(4)))
}

func TestHavingDropsGroups(t *testing.T) {
	threshold := value.Int(2)
	s := seed(t,
		msg(1, "t", field("k", value.String("A")), field("n", value.Int(1))),
		msg(2, "t", field("k", value.String("B")), field("n", value.Int(1))),
		msg(3, "t", field("k", value.String("B")), field("n", value.Int(1))),
	)

	resp := Execute(&v1.Query{
		Select:    []v1.ColumnExpression{constant("k"), agg("n", aggregation.OpCount)},
		Table:     "t",
		StartTime: 0,
		EndTime:   10,
		GroupBy:   []string{"k"},
		Having:    &v1.Filter{Op: v1.FilterGte, Column: "n", Value: &threshold},
	}, s)

	require.Len(t, resp.Rows, 1)
	require.True(t, resp.Rows[0][0].Equal(value.String("B")))
}

func TestLimitKeepsLeadingGroups(t *testing.T) {
	var messages []v1.LogMessage
	for i := 0; i < 10; i++ {
		messages = append(messages, msg(int64(i), "t",
			field("k", value.Int(int64(i))),
			field("n", value.Int(1)),
		))
	}
	s := seed(t, messages...)

	resp := Execute(&v1.Query{
		Select:    []v1.ColumnExpression{constant("k"), agg("n", aggregation.OpCount)},
		Table:     "t",
		StartTime: 0,
		EndTime:   100,
		GroupBy:   []string{"k"},
		Limit:     3,
	}, s)

	require.Len(t, resp.Rows, 3)
	for i, row := range resp.Rows {
		require.True(t, row[0].Equal(value.Int(int64(i))))
	}
}

func TestStructuralErrors(t *testing.T) {
	s := seed(t, msg(1, "t", field("n", value.Int(1))))

	t.Run("unknown table is not found", func(t *testing.T) {
		resp := Execute(&v1.Query{
			Select:  []v1.ColumnExpression{constant("n")},
			Table:   "elsewhere",
			EndTime: 10,
		}, s)
		require.True(t, resp.Failed())
		require.Equal(t, v1.StatusNotFound, resp.StatusCode)
	})

	t.Run("aggregate without group_by is bad request", func(t *testing.T) {
		resp := Execute(&v1.Query{
			Select:  []v1.ColumnExpression{agg("n", aggregation.OpCount)},
			Table:   "t",
			EndTime: 10,
		}, s)
		require.True(t, resp.Failed())
		require.Equal(t, v1.StatusBadRequest, resp.StatusCode)
	})

	t.Run("avg below root is bad request", func(t *testing.T) {
		resp := Execute(&v1.Query{
			Select:  []v1.ColumnExpression{agg("n", aggregation.OpAvg)},
			Table:   "t",
			EndTime: 10,
			GroupBy: []string{},
		}, s)
		require.True(t, resp.Failed())
		require.Equal(t, v1.StatusBadRequest, resp.StatusCode)
		require.Contains(t, resp.Error, "avg")
	})

	t.Run("empty result is success", func(t *testing.T) {
		resp := Execute(&v1.Query{
			Select:    []v1.ColumnExpression{constant("n")},
			Table:     "t",
			StartTime: 100,
			EndTime:   200,
		}, s)
		require.False(t, resp.Failed())
		require.Empty(t, resp.Rows)
	})
}
