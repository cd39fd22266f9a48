package fanout

import (
	"context"
	"fmt"
	"testing"
	"time"

	v1 "github.com/Warrelis/huba/internal/api/v1"
	"github.com/Warrelis/huba/internal/core/aggregation"
	"github.com/Warrelis/huba/internal/core/value"
	"github.com/stretchr/testify/require"
)

// fakeClient serves canned responses per endpoint, optionally after a delay.
type fakeClient struct {
	responses map[string]*v1.QueryResponse
	errs      map[string]error
	delays    map[string]time.Duration
	pingErrs  map[string]error
}

func (f *fakeClient) Query(ctx context.Context, endpoint string, _ *v1.Query) (*v1.QueryResponse, error) {
	if delay := f.delays[endpoint]; delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := f.errs[endpoint]; err != nil {
		return nil, err
	}
	return f.responses[endpoint], nil
}

func (f *fakeClient) Ping(_ context.Context, endpoint string) error {
	return f.pingErrs[endpoint]
}

func passThroughQuery() *v1.Query {
	return &v1.Query{
		Select:    []v1.ColumnExpression{{Column: "n", Op: aggregation.OpConstant}},
		Table:     "t",
		StartTime: 0,
		EndTime:   100,
	}
}

func respWithInt(n int64) *v1.QueryResponse {
	return v1.Success([]v1.Row{{value.Int(n)}})
}

func TestFanOutPreservesChildOrder(t *testing.T) {
	client := &fakeClient{
		responses: map[string]*v1.QueryResponse{
			"leaf-0": respWithInt(0),
			"leaf-1": respWithInt(1),
			"leaf-2": respWithInt(2),
		},
		// The first child answers last; order must still be configured order.
		delays: map[string]time.Duration{"leaf-0": 30 * time.Millisecond},
	}

	c := New([]string{"leaf-0", "leaf-1", "leaf-2"}, client, time.Second, PolicyFailFast)
	results := c.FanOut(context.Background(), passThroughQuery())

	require.Len(t, results, 3)
	for i, res := range results {
		require.Equal(t, fmt.Sprintf("leaf-%d", i), res.Child)
		require.NoError(t, res.Err)
		require.True(t, res.Response.Rows[0][0].Equal(value.Int(int64(i))))
	}
}

func TestQueryMergesAllChildren(t *testing.T) {
	client := &fakeClient{
		responses: map[string]*v1.QueryResponse{
			"leaf-0": respWithInt(1),
			"leaf-1": respWithInt(2),
		},
	}

	c := New([]string{"leaf-0", "leaf-1"}, client, time.Second, PolicyFailFast)
	resp := c.Query(context.Background(), passThroughQuery())

	require.False(t, resp.Failed())
	require.Len(t, resp.Rows, 2)
	require.True(t, resp.Rows[0][0].Equal(value.Int(1)))
	require.True(t, resp.Rows[1][0].Equal(value.Int(2)))
}

func TestTimeoutBecomesFailedChild(t *testing.T) {
	client := &fakeClient{
		responses: map[string]*v1.QueryResponse{
			"leaf-0": respWithInt(1),
			"leaf-1": respWithInt(2),
		},
		delays: map[string]time.Duration{"leaf-1": 500 * time.Millisecond},
	}

	c := New([]string{"leaf-0", "leaf-1"}, client, 20*time.Millisecond, PolicyFailFast)
	resp := c.Query(context.Background(), passThroughQuery())

	require.True(t, resp.Failed())
	require.Equal(t, v1.StatusTimeout, resp.StatusCode, "all failures were deadline errors")
	require.Contains(t, resp.Error, "leaf-1")
}

func TestFailFastPropagatesChildError(t *testing.T) {
	client := &fakeClient{
		responses: map[string]*v1.QueryResponse{"leaf-0": respWithInt(1)},
		errs:      map[string]error{"leaf-1": fmt.Errorf("connection refused")},
	}

	c := New([]string{"leaf-0", "leaf-1"}, client, time.Second, PolicyFailFast)
	resp := c.Query(context.Background(), passThroughQuery())

	require.True(t, resp.Failed())
	require.Equal(t, v1.StatusPartialFailure, resp.StatusCode)
	require.Contains(t, resp.Error, "leaf-1")
	require.Contains(t, resp.Error, "connection refused")
}

func TestDegradeMergesRespondingSubset(t *testing.T) {
	client := &fakeClient{
		responses: map[string]*v1.QueryResponse{
			"leaf-0": respWithInt(1),
			"leaf-2": respWithInt(3),
		},
		errs: map[string]error{"leaf-1": fmt.Errorf("connection refused")},
	}

	c := New([]string{"leaf-0", "leaf-1", "leaf-2"}, client, time.Second, PolicyDegrade)
	resp := c.Query(context.Background(), passThroughQuery())

	require.False(t, resp.Failed(), "degrade keeps the responding subset's rows")
	require.Equal(t, v1.StatusPartialFailure, resp.StatusCode)
	require.Contains(t, resp.Error, "2/3 children responded")
	require.Len(t, resp.Rows, 2)
}

func TestDegradeWithNoSurvivorsStillFails(t *testing.T) {
	client := &fakeClient{
		errs: map[string]error{
			"leaf-0": fmt.Errorf("boom"),
			"leaf-1": fmt.Errorf("boom"),
		},
	}

	c := New([]string{"leaf-0", "leaf-1"}, client, time.Second, PolicyDegrade)
	resp := c.Query(context.Background(), passThroughQuery())

	require.True(t, resp.Failed())
	require.Equal(t, v1.StatusPartialFailure, resp.StatusCode)
}

func TestInBandChildFailureFollowsPolicy(t *testing.T) {
	client := &fakeClient{
		responses: map[string]*v1.QueryResponse{
			"leaf-0": respWithInt(1),
			"leaf-1": v1.Failure(v1.StatusInternal, "disk on fire"),
		},
	}

	c := New([]string{"leaf-0", "leaf-1"}, client, time.Second, PolicyFailFast)
	resp := c.Query(context.Background(), passThroughQuery())
	require.True(t, resp.Failed())
	require.Contains(t, resp.Error, "disk on fire")
}

func TestChildWithoutTableContributesNothing(t *testing.T) {
	// Ingest routes each table to one child, so siblings legitimately
	// answer NotFound; the query must still succeed on the holder's data.
	client := &fakeClient{
		responses: map[string]*v1.QueryResponse{
			"leaf-0": respWithInt(7),
			"leaf-1": v1.Failure(v1.StatusNotFound, "unknown table"),
		},
	}

	c := New([]string{"leaf-0", "leaf-1"}, client, time.Second, PolicyFailFast)
	resp := c.Query(context.Background(), passThroughQuery())
	require.False(t, resp.Failed())
	require.Len(t, resp.Rows, 1)
	require.True(t, resp.Rows[0][0].Equal(value.Int(7)))
}

func TestAllChildrenWithoutTableIsNotFound(t *testing.T) {
	client := &fakeClient{
		responses: map[string]*v1.QueryResponse{
			"leaf-0": v1.Failure(v1.StatusNotFound, "unknown table"),
			"leaf-1": v1.Failure(v1.StatusNotFound, "unknown table"),
		},
	}

	c := New([]string{"leaf-0", "leaf-1"}, client, time.Second, PolicyFailFast)
	resp := c.Query(context.Background(), passThroughQuery())
	require.True(t, resp.Failed())
	require.Equal(t, v1.StatusNotFound, resp.StatusCode)
}

func TestUnknownPolicyDefaultsToFailFast(t *testing.T) {
	client := &fakeClient{
		responses: map[string]*v1.QueryResponse{"leaf-0": respWithInt(1)},
		errs:      map[string]error{"leaf-1": fmt.Errorf("boom")},
	}

	c := New([]string{"leaf-0", "leaf-1"}, client, time.Second, "whatever")
	resp := c.Query(context.Background(), passThroughQuery())
	require.True(t, resp.Failed())
}

func TestPingReportsUnreachableChildren(t *testing.T) {
	client := &fakeClient{
		pingErrs: map[string]error{"leaf-1": fmt.Errorf("unreachable")},
	}

	c := New([]string{"leaf-0", "leaf-1", "leaf-2"}, client, time.Second, PolicyFailFast)
	down := c.Ping(context.Background())
	require.Equal(t, []string{"leaf-1"}, down)
}
