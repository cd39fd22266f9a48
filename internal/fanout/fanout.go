// Package fanout dispatches a query to every child of an aggregating tier
// in parallel and applies the configured partial-failure policy before the
// results reach the merge engine.
package fanout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	v1 "github.com/Warrelis/huba/internal/api/v1"
	"github.com/Warrelis/huba/internal/merge"
)

// Failure policies for children that time out or error.
//
// PolicyFailFast fails the whole query with a partial-failure or timeout
// status. PolicyDegrade merges the responding subset and tags the response
// with a non-zero status so callers can tell the result is incomplete.
const (
	PolicyFailFast = "fail_fast"
	PolicyDegrade  = "degrade"
)

// ValidPolicy reports whether p names a supported failure policy.
func ValidPolicy(p string) bool {
	return p == PolicyFailFast || p == PolicyDegrade
}

// Client issues calls against one child endpoint. The production
// implementation lives in internal/client; tests substitute fakes.
type Client interface {
	Query(ctx context.Context, endpoint string, q *v1.Query) (*v1.QueryResponse, error)
	Ping(ctx context.Context, endpoint string) error
}

// Result is one child's outcome, reported in configured child order.
type Result struct {
	Child    string
	Response *v1.QueryResponse
	Err      error
}

// Coordinator fans queries out to a fixed, ordered set of children.
type Coordinator struct {
	children []string
	client   Client
	timeout  time.Duration
	policy   string
}

func New(children []string, client Client, timeout time.Duration, policy string) *Coordinator {
	if !ValidPolicy(policy) {
		policy = PolicyFailFast
	}
	return &Coordinator{
		children: children,
		client:   client,
		timeout:  timeout,
		policy:   policy,
	}
}

func (c *Coordinator) Children() []string { return c.children }

// FanOut dispatches q to every child concurrently and returns all outcomes
// in configured child order regardless of network completion order. That
// ordering is what makes the merge engine's first-seen group order
// deterministic across runs.
func (c *Coordinator) FanOut(ctx context.Context, q *v1.Query) []Result {
	results := make([]Result, len(c.children))

	var g errgroup.Group
	for i, child := range c.children {
		g.Go(func() error {
			callCtx := ctx
			if c.timeout > 0 {
				var cancel context.CancelFunc
				callCtx, cancel = context.WithTimeout(ctx, c.timeout)
				defer cancel()
			}

			resp, err := c.client.Query(callCtx, child, q)
			results[i] = Result{Child: child, Response: resp, Err: err}
			return nil
		})
	}
	g.Wait()

	return results
}

// Query runs the full aggregating-tier read path: fan out, apply the
// failure policy, merge.
func (c *Coordinator) Query(ctx context.Context, q *v1.Query) *v1.QueryResponse {
	results := c.FanOut(ctx, q)

	var (
		responded []merge.Partial
		failed    []Result
		notFound  int
	)
	for _, res := range results {
		// A shard that has never seen the table is an empty contribution,
		// not a failure: ingest routes each table to one child, so sibling
		// shards legitimately answer NotFound for it.
		if res.Err == nil && res.Response != nil && res.Response.StatusCode == v1.StatusNotFound {
			notFound++
			responded = append(responded, merge.Partial{Child: res.Child, Response: v1.Success(nil)})
			continue
		}
		if res.Err != nil || res.Response == nil || res.Response.Failed() {
			failed = append(failed, res)
			continue
		}
		responded = append(responded, merge.Partial{Child: res.Child, Response: res.Response})
	}

	if len(results) > 0 && notFound == len(results) {
		return v1.Failure(v1.StatusNotFound, "table %q not found on any child", q.Table)
	}

	if len(failed) == 0 {
		return merge.Merge(q, responded)
	}

	for _, res := range failed {
		slog.Warn("Child query failed", "child", res.Child, "error", failureDetail(res))
	}

	status := v1.StatusPartialFailure
	if allTimeouts(failed) {
		status = v1.StatusTimeout
	}

	if c.policy == PolicyFailFast || len(responded) == 0 {
		return v1.Failure(status, "children failed: %s", failureSummary(failed))
	}

	merged := merge.Merge(q, responded)
	if merged.Failed() {
		return merged
	}
	merged.StatusCode = status
	merged.Error = fmt.Sprintf("degraded result, %d/%d children responded: %s",
		len(responded), len(results), failureSummary(failed))
	return merged
}

// Ping probes every child, returning the endpoints that failed.
// Used by the readiness handler of aggregating tiers.
func (c *Coordinator) Ping(ctx context.Context) []string {
	unreachable := make([]string, len(c.children))

	var g errgroup.Group
	for i, child := range c.children {
		g.Go(func() error {
			if err := c.client.Ping(ctx, child); err != nil {
				unreachable[i] = child
			}
			return nil
		})
	}
	g.Wait()

	var down []string
	for _, child := range unreachable {
		if child != "" {
			down = append(down, child)
		}
	}
	return down
}

func failureDetail(res Result) string {
	if res.Err != nil {
		return res.Err.Error()
	}
	if res.Response != nil && res.Response.Error != "" {
		return res.Response.Error
	}
	return "no response"
}

func failureSummary(failed []Result) string {
	parts := make([]string, len(failed))
	for i, res := range failed {
		parts[i] = fmt.Sprintf("%s (%s)", res.Child, failureDetail(res))
	}
	return strings.Join(parts, "; ")
}

func allTimeouts(failed []Result) bool {
	for _, res := range failed {
		if !errors.Is(res.Err, context.DeadlineExceeded) {
			return false
		}
	}
	return true
}
