package metrics

import (
	"sort"
	"time"

	"cda/internal/unify"
	"github.com/shopspring/decimal"
)

// Allocate splits pool across customers in proportion to their weights. Negative
// weights count as zero; when the weights sum to zero every share is zero.
func Allocate(pool float64, weights map[string]float64) map[string]float64 {
	shares := make(map[string]float64, len(weights))

	var total float64
	for _, w := range weights {
		if w > 0 {
			total += w
		}
	}

	for id, w := range weights {
		if w <= 0 || total == 0 {
			shares[id] = 0
			continue
		}
		shares[id] = pool * (w / total)
	}
	return shares
}

// SharedAllocation is one customer's share of a month's shared engineering pool
type SharedAllocation struct {
	CanonicalID        string
	Month              time.Time
	PoolGBP            float64
	CustomerRevenueGBP float64
	TotalRevenueGBP    float64
	ShareFraction      float64
	AllocatedGBP       float64
}

// AllocateSharedCosts builds the monthly pool from every SHARED engineering event,
// attributed or not, and weights it by recognized GAAP revenue per customer.
func AllocateSharedCosts(costs, unattributed []unify.CostEvent, revenue []unify.RevenueEvent) []SharedAllocation {
	pools := make(map[time.Time]decimal.Decimal)
	addPool := func(events []unify.CostEvent) {
		for _, c := range events {
			if c.AllocationClass != unify.AllocationShared || c.WorkType != unify.WorkEngineering {
				continue
			}
			m := MonthStart(c.ActivityDate)
			pools[m] = pools[m].Add(c.CostGBP)
		}
	}
	addPool(costs)
	addPool(unattributed)

	weights := make(map[time.Time]map[string]decimal.Decimal)
	for _, r := range revenue {
		if r.RevenueType != unify.RevenueGAAPRecognized {
			continue
		}
		m := MonthStart(r.EventDate)
		if weights[m] == nil {
			weights[m] = make(map[string]decimal.Decimal)
		}
		weights[m][r.CanonicalID] = weights[m][r.CanonicalID].Add(r.Amount)
	}

	months := make([]time.Time, 0, len(pools))
	for m := range pools {
		months = append(months, m)
	}
	sort.Slice(months, func(i, j int) bool { return months[i].Before(months[j]) })

	var out []SharedAllocation
	for _, m := range months {
		pool := pools[m].InexactFloat64()
		w := make(map[string]float64, len(weights[m]))
		var total float64
		for id, v := range weights[m] {
			f := v.InexactFloat64()
			w[id] = f
			if f > 0 {
				total += f
			}
		}
		shares := Allocate(pool, w)

		ids := make([]string, 0, len(w))
		for id := range w {
			ids = append(ids, id)
		}
		sort.Strings(ids)

		for _, id := range ids {
			fraction, _ := ratio(shares[id], pool)
			out = append(out, SharedAllocation{
				CanonicalID:        id,
				Month:              m,
				PoolGBP:            pool,
				CustomerRevenueGBP: w[id],
				TotalRevenueGBP:    total,
				ShareFraction:      fraction,
				AllocatedGBP:       shares[id],
			})
		}
	}
	return out
}
