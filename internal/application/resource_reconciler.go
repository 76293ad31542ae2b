package application

import (
	"context"
	"fmt"
	"time"

	"github.com/niveshsaharan/centire-shopify/internal/ports"

	"github.com/rs/zerolog"
	"go.uber.org/multierr"
)

// Keyed is a resource with an identity key used for matching desired against remote
type Keyed interface {
	Key() string
}

// Desired is a configured resource. Entries are matched against remote by
// key but only dropped as duplicates when every field is equal.
type Desired interface {
	Keyed
	comparable
}

// Result is the outcome of one reconciliation pass.
// Failures aggregates per-item errors that did not abort the pass.
type Result[D Keyed, R Keyed] struct {
	Created  []D
	Deleted  []R
	Failures error
}

// Changed reports whether anything was created or deleted
func (r *Result[D, R]) Changed() bool {
	return r != nil && (len(r.Created) > 0 || len(r.Deleted) > 0)
}

// FailureCount is the number of aggregated per-item failures
func (r *Result[D, R]) FailureCount() int {
	if r == nil {
		return 0
	}
	return len(multierr.Errors(r.Failures))
}

// Diff is the set of mutations needed to converge remote onto desired
type Diff[D Keyed, R Keyed] struct {
	Create []D
	Delete []R
}

// ComputeDiff returns the desired resources missing remotely and the remote
// resources that are no longer desired. Matching resources are left alone.
func ComputeDiff[D Desired, R Keyed](desired []D, remote []R) Diff[D, R] {
	remoteKeys := make(map[string]struct{}, len(remote))
	for _, r := range remote {
		remoteKeys[r.Key()] = struct{}{}
	}
	desiredKeys := make(map[string]struct{}, len(desired))
	seen := make(map[D]struct{}, len(desired))

	var diff Diff[D, R]
	for _, d := range desired {
		if _, dup := seen[d]; dup {
			continue
		}
		seen[d] = struct{}{}
		desiredKeys[d.Key()] = struct{}{}
		if _, ok := remoteKeys[d.Key()]; !ok {
			diff.Create = append(diff.Create, d)
		}
	}
	for _, r := range remote {
		if _, ok := desiredKeys[r.Key()]; !ok {
			diff.Delete = append(diff.Delete, r)
		}
	}
	return diff
}

// ResourceSchema binds the reconciler to one Shopify resource type
type ResourceSchema[D Keyed, R Keyed] interface {
	Name() string
	Fetch(ctx context.Context, client ports.ShopClient) ([]R, error)
	CreateOp(index int, desired D) MutationOp
	DeleteOp(index int, remote R) MutationOp
}

// ResourceReconciler converges a shop's remote resources onto a desired set
type ResourceReconciler[D Desired, R Keyed] struct {
	schema  ResourceSchema[D, R]
	metrics ports.Metrics
	logger  zerolog.Logger
}

// NewResourceReconciler creates a reconciler for one schema
func NewResourceReconciler[D Desired, R Keyed](schema ResourceSchema[D, R], metrics ports.Metrics, logger zerolog.Logger) *ResourceReconciler[D, R] {
	return &ResourceReconciler[D, R]{
		schema:  schema,
		metrics: metrics,
		logger:  logger.With().Str("resource", schema.Name()).Logger(),
	}
}

// Remote fetches the live remote set
func (rr *ResourceReconciler[D, R]) Remote(ctx context.Context, client ports.ShopClient) ([]R, error) {
	remote, err := rr.schema.Fetch(ctx, client)
	if err != nil {
		return nil, transportError(err, fmt.Sprintf("list %s", rr.schema.Name()))
	}
	return remote, nil
}

// Reconcile fetches the remote set once and applies the diff against desired
func (rr *ResourceReconciler[D, R]) Reconcile(ctx context.Context, client ports.ShopClient, desired []D) (*Result[D, R], error) {
	remote, err := rr.Remote(ctx, client)
	if err != nil {
		return nil, err
	}
	diff := ComputeDiff(desired, remote)
	return rr.Apply(ctx, client, diff.Create, diff.Delete)
}

// Apply sends the creates and deletes as one composite batch.
// An empty diff makes no API call.
func (rr *ResourceReconciler[D, R]) Apply(ctx context.Context, client ports.ShopClient, creates []D, deletes []R) (*Result[D, R], error) {
	result := &Result[D, R]{}
	if len(creates) == 0 && len(deletes) == 0 {
		return result, nil
	}

	started := time.Now()
	batch := NewMutationBatch(rr.schema.Name() + "Reconcile")
	for i, d := range creates {
		batch.Add(rr.schema.CreateOp(i, d))
	}
	for i, r := range deletes {
		batch.Add(rr.schema.DeleteOp(i, r))
	}

	outcomes, err := batch.Execute(ctx, client)
	if err != nil {
		return nil, err
	}

	for i, d := range creates {
		if outcome := outcomes[i]; outcome.OK {
			result.Created = append(result.Created, d)
		} else {
			result.Failures = multierr.Append(result.Failures, outcome.Err)
		}
	}
	for i, r := range deletes {
		if outcome := outcomes[len(creates)+i]; outcome.OK {
			result.Deleted = append(result.Deleted, r)
		} else {
			result.Failures = multierr.Append(result.Failures, outcome.Err)
		}
	}

	if result.Failures != nil {
		rr.logger.Warn().
			Err(result.Failures).
			Int("failed", result.FailureCount()).
			Msg("Some resources could not be reconciled")
	}
	rr.logger.Info().
		Int("created", len(result.Created)).
		Int("deleted", len(result.Deleted)).
		Dur("duration", time.Since(started)).
		Msg("Reconciled resources")

	if rr.metrics != nil {
		rr.metrics.ObserveReconcile(rr.schema.Name(), len(result.Created), len(result.Deleted), result.FailureCount(), time.Since(started))
	}

	return result, nil
}
