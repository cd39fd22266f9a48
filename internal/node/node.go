// Package node models the three tiers of the tree as one capability set:
// answer queries, accept batches, report readiness. A leaf executes
// against its store; aggregating tiers fan out to children and merge. The
// root additionally rewrites derived aggregates around the generic merge.
package node

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	v1 "github.com/Warrelis/huba/internal/api/v1"
	"github.com/Warrelis/huba/internal/core/partition"
	"github.com/Warrelis/huba/internal/executor"
	"github.com/Warrelis/huba/internal/fanout"
	"github.com/Warrelis/huba/internal/merge"
	"github.com/Warrelis/huba/internal/store"
)

// Node roles.
const (
	RoleLeaf       = "leaf"
	RoleAggregator = "aggregator"
	RoleRoot       = "root"
)

// ValidRole reports whether role names a supported tier.
func ValidRole(role string) bool {
	return role == RoleLeaf || role == RoleAggregator || role == RoleRoot
}

// Node is one tier's view of the tree.
type Node interface {
	// Query answers q, either locally or by fan-out and merge. Failures
	// are in-band; the returned response is never nil.
	Query(ctx context.Context, q *v1.Query) *v1.QueryResponse

	// Ingest accepts one batch. Leaves append locally; aggregating tiers
	// forward each table's messages to the owning child.
	Ingest(ctx context.Context, batch *v1.LogBatch) (*v1.IngestResponse, error)

	// Ready reports whether the tier can serve traffic.
	Ready(ctx context.Context) error
}

// IngestClient forwards batches to one child endpoint.
type IngestClient interface {
	Ingest(ctx context.Context, endpoint string, batch *v1.LogBatch) (*v1.IngestResponse, error)
}

// Leaf holds raw messages and executes queries directly against them.
type Leaf struct {
	store *store.Store
}

func NewLeaf(s *store.Store) *Leaf {
	return &Leaf{store: s}
}

func (l *Leaf) Query(_ context.Context, q *v1.Query) *v1.QueryResponse {
	return executor.Execute(q, l.store)
}

func (l *Leaf) Ingest(_ context.Context, batch *v1.LogBatch) (*v1.IngestResponse, error) {
	return l.store.IngestBatch(batch), nil
}

func (l *Leaf) Ready(_ context.Context) error { return nil }

// Aggregator fans queries out to its children and merges the partials.
type Aggregator struct {
	coord    *fanout.Coordinator
	ingester IngestClient
}

func NewAggregator(coord *fanout.Coordinator, ingester IngestClient) *Aggregator {
	return &Aggregator{coord: coord, ingester: ingester}
}

func (a *Aggregator) Query(ctx context.Context, q *v1.Query) *v1.QueryResponse {
	return a.coord.Query(ctx, q)
}

// Ingest splits the batch by table and forwards each table's messages to
// the child that owns it, so one table's data stays on one shard.
func (a *Aggregator) Ingest(ctx context.Context, batch *v1.LogBatch) (*v1.IngestResponse, error) {
	children := a.coord.Children()

	perChild := make(map[int][]v1.LogMessage)
	// Original batch positions per forwarded message, so rejection indexes
	// can be reported against the caller's batch, not the sub-batch.
	origIdx := make(map[int][]int)
	for i, msg := range batch.Messages {
		owner := partition.For(msg.Table, len(children))
		perChild[owner] = append(perChild[owner], msg)
		origIdx[owner] = append(origIdx[owner], i)
	}

	total := &v1.IngestResponse{BatchID: batch.ID}
	for owner, messages := range perChild {
		sub := &v1.LogBatch{ID: batch.ID, Messages: messages}
		resp, err := a.ingester.Ingest(ctx, children[owner], sub)
		if err != nil {
			return nil, fmt.Errorf("forwarding batch %s to %s: %w", batch.ID, children[owner], err)
		}
		total.Accepted += resp.Accepted
		total.Rejected += resp.Rejected
		for _, ingErr := range resp.Errors {
			if ingErr.Index >= 0 && ingErr.Index < len(origIdx[owner]) {
				ingErr.Index = origIdx[owner][ingErr.Index]
			}
			total.Errors = append(total.Errors, ingErr)
		}
	}

	slog.Info("Forwarded batch",
		"batch_id", batch.ID,
		"children", len(perChild),
		"accepted", total.Accepted,
		"rejected", total.Rejected,
	)
	return total, nil
}

func (a *Aggregator) Ready(ctx context.Context) error {
	if down := a.coord.Ping(ctx); len(down) > 0 {
		return fmt.Errorf("children unreachable: %s", strings.Join(down, ", "))
	}
	return nil
}

// Root wraps the aggregating read path with the root-only post-passes:
// avg derivation from merged sum/count pairs.
type Root struct {
	*Aggregator
}

func NewRoot(coord *fanout.Coordinator, ingester IngestClient) *Root {
	return &Root{Aggregator: NewAggregator(coord, ingester)}
}

func (r *Root) Query(ctx context.Context, q *v1.Query) *v1.QueryResponse {
	plan, failure := merge.NewPlan(q)
	if failure != nil {
		return failure
	}
	return plan.Finalize(r.Aggregator.Query(ctx, plan.Downstream))
}
