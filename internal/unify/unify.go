package unify

import (
	"sort"

	"cda/internal/identity"
	"cda/internal/staging"
	"cda/pkg/models"
	"github.com/shopspring/decimal"
)

var (
	sixty     = decimal.NewFromInt(60)
	hourInSec = decimal.NewFromInt(3600)
)

// Report counts rows that could not be attributed, keyed by landing table
type Report struct {
	Unresolved map[string]int
	Skipped    map[string]int
}

// UnresolvedTotal sums unresolved rows across sources
func (r Report) UnresolvedTotal() int {
	n := 0
	for _, v := range r.Unresolved {
		n += v
	}
	return n
}

// Result holds the unified tables. Costs and Revenue only contain rows with a
// canonical id; unattributed shared engineering cost is kept apart for the pool.
type Result struct {
	Costs              []CostEvent
	UnattributedShared []CostEvent
	Revenue            []RevenueEvent
	Facts              Facts
	Report             Report
}

type unifier struct {
	snap   *staging.Snapshot
	idx    *identity.Index
	params models.Parameters
	out    *Result
}

// Unify normalizes a staged snapshot against the resolved identity index
func Unify(snap *staging.Snapshot, idx *identity.Index, params models.Parameters) *Result {
	u := &unifier{
		snap:   snap,
		idx:    idx,
		params: params,
		out: &Result{Report: Report{
			Unresolved: make(map[string]int),
			Skipped:    make(map[string]int),
		}},
	}

	u.timeEntries()
	u.tickets()
	u.issues()
	u.invoices()
	u.refunds()
	u.disputes()
	u.revenueEntries()
	u.usage()
	u.bookings()
	u.projects()

	sort.Slice(u.out.Costs, func(i, j int) bool { return u.out.Costs[i].EventID < u.out.Costs[j].EventID })
	sort.Slice(u.out.UnattributedShared, func(i, j int) bool {
		return u.out.UnattributedShared[i].EventID < u.out.UnattributedShared[j].EventID
	})
	sort.Slice(u.out.Revenue, func(i, j int) bool { return u.out.Revenue[i].EventID < u.out.Revenue[j].EventID })
	return u.out
}

func (u *unifier) unresolved(table string) {
	u.out.Report.Unresolved[table]++
}

func (u *unifier) skipped(table string) {
	u.out.Report.Skipped[table]++
}

func (u *unifier) timeEntries() {
	projects := make(map[string]staging.Project, len(u.snap.Projects))
	for _, p := range u.snap.Projects {
		projects[p.ID] = p
	}

	for _, e := range u.snap.TimeEntries {
		client := e.ClientID
		if p, ok := projects[e.ProjectID]; ok && p.ClientID != "" {
			client = p.ClientID
		}
		id, ok := u.idx.Lookup(identity.SlotHarvest, client)
		if !ok {
			u.unresolved("harvest/time_entries")
			continue
		}
		u.out.Costs = append(u.out.Costs, CostEvent{
			EventID:         "harvest:" + e.ID,
			CanonicalID:     id,
			ActivityDate:    e.SpentDate,
			WorkType:        WorkDelivery,
			Hours:           e.Hours,
			CostGBP:         e.Hours.Mul(e.CostRate),
			Source:          "harvest",
			AllocationClass: AllocationDirect,
			ProjectID:       e.ProjectID,
			Billable:        e.Billable,
		})
	}
}

func (u *unifier) ticketCustomer(t staging.Ticket) (string, bool) {
	return u.idx.Lookup(identity.SlotZendesk, t.OrganizationID)
}

func (u *unifier) tickets() {
	for _, t := range u.snap.Tickets {
		id, ok := u.ticketCustomer(t)
		if !ok {
			u.unresolved("zendesk/tickets")
			continue
		}

		rate := decimal.NewFromFloat(u.params.SupportRate(t.SupportTier))
		u.out.Costs = append(u.out.Costs, CostEvent{
			EventID:         "zendesk:" + t.ID,
			CanonicalID:     id,
			ActivityDate:    staging.Day(t.CreatedAt),
			WorkType:        WorkSupport,
			Hours:           t.TimeSpentMinutes.Div(sixty),
			CostGBP:         t.TimeSpentMinutes.Mul(rate).Div(sixty),
			Source:          "zendesk",
			AllocationClass: AllocationDirect,
			TicketID:        t.ID,
			SupportTier:     t.SupportTier,
		})
		u.out.Facts.Tickets = append(u.out.Facts.Tickets, TicketFact{
			TicketID:    t.ID,
			CanonicalID: id,
			Priority:    t.Priority,
			Status:      t.Status,
			CreatedAt:   t.CreatedAt,
			SolvedAt:    t.SolvedAt,
		})
	}
}

func (u *unifier) issues() {
	tickets := make(map[string]staging.Ticket, len(u.snap.Tickets))
	for _, t := range u.snap.Tickets {
		tickets[t.ID] = t
	}
	rate := decimal.NewFromFloat(u.params.EngineeringRate)

	for _, i := range u.snap.Issues {
		hours := i.TimeSpentSeconds.Div(hourInSec)
		ev := CostEvent{
			EventID:         "jira:" + i.Key,
			ActivityDate:    i.ActivityDate(),
			WorkType:        WorkEngineering,
			Hours:           hours,
			CostGBP:         hours.Mul(rate),
			Source:          "jira",
			AllocationClass: AllocationShared,
			TicketID:        i.TicketID,
		}

		var ok bool
		if i.TicketID != "" {
			ev.AllocationClass = AllocationDirect
			if t, found := tickets[i.TicketID]; found {
				ev.CanonicalID, ok = u.ticketCustomer(t)
			}
		}
		if !ok {
			ev.CanonicalID, ok = u.idx.Lookup(identity.SlotJira, i.AccountKey)
		}

		switch {
		case ok:
			u.out.Costs = append(u.out.Costs, ev)
		case ev.AllocationClass == AllocationShared:
			ev.CanonicalID = ""
			u.out.UnattributedShared = append(u.out.UnattributedShared, ev)
		default:
			u.unresolved("jira/issues")
		}
	}
}

func (u *unifier) invoices() {
	for _, inv := range u.snap.Invoices {
		ev := RevenueEvent{
			EventID:   "stripe:invoice:" + inv.ID,
			Direction: Credit,
			Source:    "stripe",
			Currency:  inv.Currency,
		}
		switch inv.Status {
		case "paid":
			ev.RevenueType = RevenueCash
			ev.Amount = inv.AmountPaid
			ev.EventDate = staging.Day(inv.PaidAt)
			if ev.EventDate.IsZero() {
				ev.EventDate = staging.Day(inv.CreatedAt)
			}
		case "open", "uncollectible":
			ev.RevenueType = RevenueAR
			ev.Amount = inv.AmountRemaining
			ev.EventDate = staging.Day(inv.CreatedAt)
		default:
			u.skipped("stripe/invoices")
			continue
		}

		id, ok := u.idx.Lookup(identity.SlotStripe, inv.CustomerID)
		if !ok {
			u.unresolved("stripe/invoices")
			continue
		}
		ev.CanonicalID = id
		u.out.Revenue = append(u.out.Revenue, ev)

		amount := inv.AmountDue
		if amount.IsZero() {
			amount = inv.AmountPaid.Add(inv.AmountRemaining)
		}
		u.out.Facts.Receivables = append(u.out.Facts.Receivables, Receivable{
			InvoiceID:   inv.ID,
			CanonicalID: id,
			Amount:      amount,
			IssuedAt:    staging.Day(inv.CreatedAt),
			DueDate:     staging.Day(inv.DueDate),
			PaidAt:      staging.Day(inv.PaidAt),
		})
	}
}

func (u *unifier) chargeCustomer(chargeID string, charges map[string]staging.Charge) (string, bool) {
	c, ok := charges[chargeID]
	if !ok {
		return "", false
	}
	return u.idx.Lookup(identity.SlotStripe, c.CustomerID)
}

func (u *unifier) chargeIndex() map[string]staging.Charge {
	charges := make(map[string]staging.Charge, len(u.snap.Charges))
	for _, c := range u.snap.Charges {
		charges[c.ID] = c
	}
	return charges
}

func (u *unifier) refunds() {
	charges := u.chargeIndex()
	for _, r := range u.snap.Refunds {
		if r.Status == "failed" || r.Status == "canceled" {
			u.skipped("stripe/refunds")
			continue
		}
		id, ok := u.chargeCustomer(r.ChargeID, charges)
		if !ok {
			u.unresolved("stripe/refunds")
			continue
		}
		u.out.Revenue = append(u.out.Revenue, RevenueEvent{
			EventID:     "stripe:refund:" + r.ID,
			CanonicalID: id,
			EventDate:   staging.Day(r.CreatedAt),
			RevenueType: RevenueCash,
			Amount:      r.Amount.Abs().Neg(),
			Direction:   Debit,
			Source:      "stripe",
			Currency:    r.Currency,
		})
	}
}

func (u *unifier) disputes() {
	charges := u.chargeIndex()
	for _, d := range u.snap.Disputes {
		if d.Status != "lost" {
			u.skipped("stripe/disputes")
			continue
		}
		id, ok := u.chargeCustomer(d.ChargeID, charges)
		if !ok {
			u.unresolved("stripe/disputes")
			continue
		}
		u.out.Revenue = append(u.out.Revenue, RevenueEvent{
			EventID:     "stripe:dispute:" + d.ID,
			CanonicalID: id,
			EventDate:   staging.Day(d.CreatedAt),
			RevenueType: RevenueCash,
			Amount:      d.Amount.Abs().Neg(),
			Direction:   Debit,
			Source:      "stripe",
			Currency:    d.Currency,
		})
	}
}

func (u *unifier) revenueEntries() {
	for _, e := range u.snap.RevenueEntries {
		id, ok := u.idx.Lookup(identity.SlotIntacct, e.CustomerID)
		if !ok {
			u.unresolved("intacct/revenue_entries")
			continue
		}
		ev := RevenueEvent{
			EventID:     "intacct:" + e.ID,
			CanonicalID: id,
			EventDate:   e.EntryDate,
			RevenueType: RevenueGAAPDeferred,
			Amount:      e.Amount,
			Direction:   Credit,
			Source:      "intacct",
			Currency:    e.Currency,
		}
		if e.Posted {
			ev.RevenueType = RevenueGAAPRecognized
		}
		if e.TrType == -1 {
			ev.Direction = Debit
			ev.Amount = e.Amount.Neg()
		}
		u.out.Revenue = append(u.out.Revenue, ev)
	}
}

func (u *unifier) usage() {
	seen := make(map[ActiveDay]bool)
	for _, e := range u.snap.Events {
		id, ok := u.idx.Lookup(identity.SlotMixpanel, e.CompanyID)
		if !ok {
			u.unresolved("mixpanel/events")
			continue
		}
		if e.Time.IsZero() {
			continue
		}
		d := ActiveDay{CanonicalID: id, Day: staging.Day(e.Time)}
		if !seen[d] {
			seen[d] = true
			u.out.Facts.ActiveDays = append(u.out.Facts.ActiveDays, d)
		}
	}
	sort.Slice(u.out.Facts.ActiveDays, func(i, j int) bool {
		a, b := u.out.Facts.ActiveDays[i], u.out.Facts.ActiveDays[j]
		if a.CanonicalID != b.CanonicalID {
			return a.CanonicalID < b.CanonicalID
		}
		return a.Day.Before(b.Day)
	})
}

func (u *unifier) bookings() {
	for _, o := range u.snap.Opportunities {
		if !o.IsWon {
			continue
		}
		id, ok := u.idx.Lookup(identity.SlotSalesforce, o.AccountID)
		if !ok {
			u.unresolved("salesforce/opportunities")
			continue
		}
		start := o.ContractStart
		if start.IsZero() {
			start = o.CloseDate
		}
		if start.IsZero() {
			u.skipped("salesforce/opportunities")
			continue
		}
		term := o.TermMonths
		if term <= 0 {
			term = u.params.DefaultContractMonths
		}
		u.out.Facts.Bookings = append(u.out.Facts.Bookings, Booking{
			OpportunityID: o.ID,
			CanonicalID:   id,
			Amount:        o.Amount,
			Start:         start,
			TermMonths:    term,
		})
	}
}

func (u *unifier) projects() {
	for _, p := range u.snap.Projects {
		id, ok := u.idx.Lookup(identity.SlotHarvest, p.ClientID)
		if !ok {
			u.unresolved("harvest/projects")
			continue
		}
		u.out.Facts.Projects = append(u.out.Facts.Projects, ProjectFact{
			ProjectID:   p.ID,
			CanonicalID: id,
			Name:        p.Name,
			BudgetHours: p.BudgetHours,
		})
	}
}
