// Package staging parses raw landing payloads into typed records and reduces every
// table to its latest snapshot.
package staging

import (
	"context"
	"sort"
	"time"

	"cda/internal/landing"
	"cda/internal/observability"
	"cda/pkg/errors"
)

// TableStats describes how one landing table was staged
type TableStats struct {
	Table      landing.TableRef
	Missing    bool
	Raw        int
	Malformed  int
	Keyless    int
	Duplicates int
	Kept       int
}

// Report aggregates staging statistics in landing table order
type Report struct {
	Tables []TableStats
}

// Keyless is the number of records dropped because they carried no key
func (r *Report) Keyless() int {
	n := 0
	for _, t := range r.Tables {
		n += t.Keyless
	}
	return n
}

// Missing lists the tables that had no landing data
func (r *Report) Missing() []landing.TableRef {
	var refs []landing.TableRef
	for _, t := range r.Tables {
		if t.Missing {
			refs = append(refs, t.Table)
		}
	}
	return refs
}

type staged[T any] struct {
	key        string
	record     T
	ingestedAt time.Time
	file       string
	row        int64
}

// newer orders duplicates: later ingestion, then later source file, then later row
func (s staged[T]) newer(o staged[T]) bool {
	if !s.ingestedAt.Equal(o.ingestedAt) {
		return s.ingestedAt.After(o.ingestedAt)
	}
	if s.file != o.file {
		return s.file > o.file
	}
	return s.row > o.row
}

type loader struct {
	ctx    context.Context
	src    landing.Source
	logger *observability.Logger
	report *Report
}

func stage[T any](l *loader, ref landing.TableRef, parse func(payload) (string, T)) ([]T, error) {
	stats := TableStats{Table: ref}
	defer func() { l.report.Tables = append(l.report.Tables, stats) }()

	raw, err := l.src.Records(l.ctx, ref.System, ref.Entity)
	if err != nil {
		if errors.GetErrorCode(err) == errors.ErrCodeLandingTableMissing {
			stats.Missing = true
			l.logger.WithField("table", ref.String()).Warn("Landing table missing, treating as empty")
			return nil, nil
		}
		return nil, err
	}
	stats.Raw = len(raw)

	latest := make(map[string]staged[T], len(raw))
	for _, rec := range raw {
		p, err := decodePayload(rec.Payload)
		if err != nil {
			stats.Malformed++
			continue
		}
		key, record := parse(p)
		if key == "" {
			stats.Keyless++
			continue
		}
		candidate := staged[T]{key: key, record: record, ingestedAt: rec.IngestedAt, file: rec.SourceFile, row: rec.RowNumber}
		if prev, ok := latest[key]; ok {
			stats.Duplicates++
			if !candidate.newer(prev) {
				continue
			}
		}
		latest[key] = candidate
	}

	keys := make([]string, 0, len(latest))
	for k := range latest {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]T, 0, len(keys))
	for _, k := range keys {
		out = append(out, latest[k].record)
	}
	stats.Kept = len(out)

	if stats.Keyless > 0 || stats.Malformed > 0 {
		l.logger.WithFields(map[string]interface{}{
			"table":     ref.String(),
			"keyless":   stats.Keyless,
			"malformed": stats.Malformed,
		}).Warn("Dropped unidentifiable landing records")
	}
	return out, nil
}

// Load reads every landing table from src and stages it. Missing tables are
// staged as empty; any other source error aborts the load.
func Load(ctx context.Context, src landing.Source, logger *observability.Logger) (*Snapshot, *Report, error) {
	if logger == nil {
		logger = observability.Nop()
	}
	l := &loader{ctx: ctx, src: src, logger: logger, report: &Report{}}
	snap := &Snapshot{}

	steps := []func() error{
		func() (err error) {
			snap.Accounts, err = stage(l, landing.TableRef{System: landing.SystemSalesforce, Entity: "accounts"}, parseAccount)
			return err
		},
		func() (err error) {
			snap.Opportunities, err = stage(l, landing.TableRef{System: landing.SystemSalesforce, Entity: "opportunities"}, parseOpportunity)
			return err
		},
		func() (err error) {
			snap.StripeCustomers, err = stage(l, landing.TableRef{System: landing.SystemStripe, Entity: "customers"}, parseStripeCustomer)
			return err
		},
		func() (err error) {
			snap.Invoices, err = stage(l, landing.TableRef{System: landing.SystemStripe, Entity: "invoices"}, parseInvoice)
			return err
		},
		func() (err error) {
			snap.Charges, err = stage(l, landing.TableRef{System: landing.SystemStripe, Entity: "charges"}, parseCharge)
			return err
		},
		func() (err error) {
			snap.Refunds, err = stage(l, landing.TableRef{System: landing.SystemStripe, Entity: "refunds"}, parseRefund)
			return err
		},
		func() (err error) {
			snap.Disputes, err = stage(l, landing.TableRef{System: landing.SystemStripe, Entity: "disputes"}, parseDispute)
			return err
		},
		func() (err error) {
			snap.IntacctCustomers, err = stage(l, landing.TableRef{System: landing.SystemIntacct, Entity: "customers"}, parseIntacctCustomer)
			return err
		},
		func() (err error) {
			snap.RevenueEntries, err = stage(l, landing.TableRef{System: landing.SystemIntacct, Entity: "revenue_entries"}, parseRevenueEntry)
			return err
		},
		func() (err error) {
			snap.Organizations, err = stage(l, landing.TableRef{System: landing.SystemZendesk, Entity: "organizations"}, parseOrganization)
			return err
		},
		func() (err error) {
			snap.Tickets, err = stage(l, landing.TableRef{System: landing.SystemZendesk, Entity: "tickets"}, parseTicket)
			return err
		},
		func() (err error) {
			snap.HarvestClients, err = stage(l, landing.TableRef{System: landing.SystemHarvest, Entity: "clients"}, parseHarvestClient)
			return err
		},
		func() (err error) {
			snap.Projects, err = stage(l, landing.TableRef{System: landing.SystemHarvest, Entity: "projects"}, parseProject)
			return err
		},
		func() (err error) {
			snap.TimeEntries, err = stage(l, landing.TableRef{System: landing.SystemHarvest, Entity: "time_entries"}, parseTimeEntry)
			return err
		},
		func() (err error) {
			snap.Issues, err = stage(l, landing.TableRef{System: landing.SystemJira, Entity: "issues"}, parseIssue)
			return err
		},
		func() (err error) {
			snap.MixpanelCompanies, err = stage(l, landing.TableRef{System: landing.SystemMixpanel, Entity: "companies"}, parseMixpanelCompany)
			return err
		},
		func() (err error) {
			snap.Events, err = stage(l, landing.TableRef{System: landing.SystemMixpanel, Entity: "events"}, parseEvent)
			return err
		},
	}

	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		if err := step(); err != nil {
			return nil, nil, err
		}
	}

	logger.WithFields(map[string]interface{}{
		"tables":  len(l.report.Tables),
		"missing": len(l.report.Missing()),
		"keyless": l.report.Keyless(),
	}).Info("Staged landing snapshot")

	return snap, l.report, nil
}
