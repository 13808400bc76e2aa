// Package metrics derives monthly and as-of aggregates from the unified cost and
// revenue tables. Every function is pure; nothing reads the wall clock.
package metrics

import (
	"time"

	"cda/internal/unify"
	"cda/pkg/models"
)

// Result holds every derived metric table, each sorted by its natural key
type Result struct {
	AsOf          time.Time
	Allocations   []SharedAllocation
	Health        []HealthRow
	Profitability []ProfitabilityRow
	LTV           []LTVRow
	RevenueGap    []RevenueGapRow
	RevenueAtRisk []RevenueAtRiskRow
	Projects      []ProjectRow
}

// LatestActivity is the newest dated event in the unified tables; it is the
// default as-of date so reruns over the same snapshot agree.
func LatestActivity(u *unify.Result) time.Time {
	var latest time.Time
	bump := func(t time.Time) {
		if t.After(latest) {
			latest = t
		}
	}
	for _, c := range u.Costs {
		bump(c.ActivityDate)
	}
	for _, c := range u.UnattributedShared {
		bump(c.ActivityDate)
	}
	for _, r := range u.Revenue {
		bump(r.EventDate)
	}
	for _, d := range u.Facts.ActiveDays {
		bump(d.Day)
	}
	return latest
}

// Compute runs every metric over events dated on or before asOf
func Compute(u *unify.Result, params models.Parameters, asOf time.Time) *Result {
	costs := filterCosts(u.Costs, asOf)
	unattributed := filterCosts(u.UnattributedShared, asOf)
	revenue := filterRevenue(u.Revenue, asOf)

	facts := u.Facts
	facts.ActiveDays = nil
	for _, d := range u.Facts.ActiveDays {
		if !d.Day.After(asOf) {
			facts.ActiveDays = append(facts.ActiveDays, d)
		}
	}

	months := activeCustomerMonths(costs, revenue, facts.ActiveDays)
	customers := customerIDs(months)

	res := &Result{AsOf: asOf}
	res.Allocations = AllocateSharedCosts(costs, unattributed, revenue)
	res.Health = computeHealth(months, groupFacts(facts), params, asOf)
	res.Profitability = computeProfitability(months, costs, revenue, res.Allocations)
	res.LTV = computeLTV(customers, revenue, params, asOf)
	res.RevenueGap = computeRevenueGap(facts.Bookings, revenue, asOf)
	res.RevenueAtRisk = computeRevenueAtRisk(res.Health, res.LTV, facts.Receivables, asOf)
	res.Projects = computeProjects(costs, facts.Projects)
	return res
}

// activeCustomerMonths lists customer-months with at least one event; there is no
// dense customer by month grid
func activeCustomerMonths(costs []unify.CostEvent, revenue []unify.RevenueEvent, days []unify.ActiveDay) []customerMonth {
	set := make(map[customerMonth]bool)
	for _, c := range costs {
		set[customerMonth{c.CanonicalID, MonthStart(c.ActivityDate)}] = true
	}
	for _, r := range revenue {
		set[customerMonth{r.CanonicalID, MonthStart(r.EventDate)}] = true
	}
	for _, d := range days {
		set[customerMonth{d.CanonicalID, MonthStart(d.Day)}] = true
	}
	return sortedCustomerMonths(set)
}

func filterCosts(events []unify.CostEvent, asOf time.Time) []unify.CostEvent {
	out := make([]unify.CostEvent, 0, len(events))
	for _, e := range events {
		if !e.ActivityDate.IsZero() && !e.ActivityDate.After(asOf) {
			out = append(out, e)
		}
	}
	return out
}

func filterRevenue(events []unify.RevenueEvent, asOf time.Time) []unify.RevenueEvent {
	out := make([]unify.RevenueEvent, 0, len(events))
	for _, e := range events {
		if !e.EventDate.IsZero() && !e.EventDate.After(asOf) {
			out = append(out, e)
		}
	}
	return out
}
