// Package pipeline runs one full recomputation: staging, identity resolution,
// unification and metrics, rendered into the derived output tables.
package pipeline

import (
	"context"
	"time"

	"cda/internal/identity"
	"cda/internal/landing"
	"cda/internal/metrics"
	"cda/internal/observability"
	"cda/internal/staging"
	"cda/internal/tables"
	"cda/internal/unify"
	"cda/pkg/errors"
	"cda/pkg/models"
	"github.com/google/uuid"
)

// Sink receives fully computed tables. ReplaceTable must leave the previous
// contents in place when it fails.
type Sink interface {
	ReplaceTable(ctx context.Context, t *tables.Table) error
}

// Input is everything one run depends on
type Input struct {
	Client     string
	Source     landing.Source
	Seeds      []identity.SeedRow
	Params     models.Parameters
	ProjectDir string

	// Clock stamps CALCULATED_AT; defaults to time.Now
	Clock func() time.Time
	// NewRunID defaults to a random uuid
	NewRunID func() string
	Logger   *observability.Logger
}

// Result carries the rendered tables and every intermediate report
type Result struct {
	Tables   []*tables.Table
	Manifest Manifest
	Staging  *staging.Report
	Identity *identity.Result
	Unified  *unify.Result
	Metrics  *metrics.Result
}

// Table returns a rendered table by name
func (r *Result) Table(name string) *tables.Table {
	for _, t := range r.Tables {
		if t.Name == name {
			return t
		}
	}
	return nil
}

// Run computes every output table. Nothing is written; see Publish.
func Run(ctx context.Context, in Input) (*Result, error) {
	if in.Source == nil {
		return nil, errors.New(errors.ErrCodeInvalidInput, "No landing source configured")
	}
	clock := in.Clock
	if clock == nil {
		clock = time.Now
	}
	newRunID := in.NewRunID
	if newRunID == nil {
		newRunID = uuid.NewString
	}
	logger := in.Logger
	if logger == nil {
		logger = observability.Nop()
	}

	runID := newRunID()
	logger = logger.WithFields(map[string]interface{}{
		"run_id": runID,
		"client": in.Client,
	})
	logger.Info("Starting recomputation")

	snap, report, err := staging.Load(ctx, in.Source, logger)
	if err != nil {
		return nil, err
	}

	resolved := identity.NewResolver().Resolve(snap, in.Seeds)
	logger.InfoWithFields("Resolved identities", map[string]interface{}{
		"identities": len(resolved.Identities),
		"unresolved": len(resolved.Unresolved),
		"conflicts":  len(resolved.Conflicts),
	})

	unified := unify.Unify(snap, resolved.Index, in.Params)
	if n := unified.Report.UnresolvedTotal(); n > 0 {
		logger.WarnWithFields("Excluded events without a canonical customer", map[string]interface{}{
			"events": n,
		})
	}

	asOf, ok, err := in.Params.AsOf()
	if err != nil {
		return nil, errors.ConfigError(err.Error(), "parameters.as_of_date")
	}
	if !ok {
		asOf = metrics.LatestActivity(unified)
	}
	computed := metrics.Compute(unified, in.Params, asOf)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	at := clock().UTC()
	res := &Result{
		Staging:  report,
		Identity: resolved,
		Unified:  unified,
		Metrics:  computed,
		Tables: []*tables.Table{
			renderIdentities(resolved, at),
			renderCosts(unified.Costs, at),
			renderRevenue(unified.Revenue, at),
			renderAllocations(computed.Allocations, at),
			renderHealth(computed.Health, at),
			renderProfitability(computed.Profitability, at),
			renderRevenueGap(computed.RevenueGap, at),
			renderRevenueAtRisk(computed.RevenueAtRisk, at),
			renderLTV(computed.LTV, at),
			renderProjects(computed.Projects, at),
		},
	}
	res.Manifest = buildManifest(runID, in, res, at, logger)

	logger.InfoWithFields("Recomputation finished", map[string]interface{}{
		"as_of":  res.Manifest.AsOf,
		"tables": len(res.Tables),
	})
	return res, nil
}

// Publish hands every table to the sink in order, stopping at the first failure
func Publish(ctx context.Context, sink Sink, res *Result, logger *observability.Logger) error {
	if logger == nil {
		logger = observability.Nop()
	}
	for _, t := range res.Tables {
		if err := sink.ReplaceTable(ctx, t); err != nil {
			return errors.Wrap(err, errors.GetErrorCode(err), "Failed to publish table").
				WithContext("table", t.Name)
		}
		logger.InfoWithFields("Published table", map[string]interface{}{
			"table": t.Name,
			"rows":  len(t.Rows),
		})
	}
	return nil
}
