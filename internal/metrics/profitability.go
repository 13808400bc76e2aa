package metrics

import (
	"time"

	"cda/internal/unify"
	"github.com/shopspring/decimal"
)

// ProfitabilityRow keeps cash and GAAP bases in separate, labelled columns
type ProfitabilityRow struct {
	CanonicalID            string
	Month                  time.Time
	RecognizedRevenueGBP   float64
	CashCollectedGBP       float64
	DeferredRevenueGBP     float64
	ARBilledGBP            float64
	DeliveryCostGBP        float64
	SupportCostGBP         float64
	EngineeringCostGBP     float64
	AllocatedSharedCostGBP float64
	TotalCostGBP           float64
	GrossProfitGBP         float64
	GrossMarginPct         *float64
}

type monthTotals struct {
	recognized, cash, deferred, ar decimal.Decimal
	delivery, support, engineering decimal.Decimal
}

func computeProfitability(months []customerMonth, costs []unify.CostEvent, revenue []unify.RevenueEvent, allocations []SharedAllocation) []ProfitabilityRow {
	totals := make(map[customerMonth]*monthTotals, len(months))
	get := func(id string, t time.Time) *monthTotals {
		k := customerMonth{id, MonthStart(t)}
		mt, ok := totals[k]
		if !ok {
			mt = &monthTotals{}
			totals[k] = mt
		}
		return mt
	}

	for _, r := range revenue {
		mt := get(r.CanonicalID, r.EventDate)
		switch r.RevenueType {
		case unify.RevenueGAAPRecognized:
			mt.recognized = mt.recognized.Add(r.Amount)
		case unify.RevenueCash:
			mt.cash = mt.cash.Add(r.Amount)
		case unify.RevenueGAAPDeferred:
			mt.deferred = mt.deferred.Add(r.Amount)
		case unify.RevenueAR:
			mt.ar = mt.ar.Add(r.Amount)
		}
	}

	for _, c := range costs {
		if c.AllocationClass != unify.AllocationDirect {
			continue
		}
		mt := get(c.CanonicalID, c.ActivityDate)
		switch c.WorkType {
		case unify.WorkDelivery:
			mt.delivery = mt.delivery.Add(c.CostGBP)
		case unify.WorkSupport:
			mt.support = mt.support.Add(c.CostGBP)
		case unify.WorkEngineering:
			mt.engineering = mt.engineering.Add(c.CostGBP)
		}
	}

	allocated := make(map[customerMonth]float64, len(allocations))
	for _, a := range allocations {
		allocated[customerMonth{a.CanonicalID, a.Month}] += a.AllocatedGBP
	}

	rows := make([]ProfitabilityRow, 0, len(months))
	for _, cm := range months {
		mt, ok := totals[cm]
		if !ok {
			mt = &monthTotals{}
		}
		shared := allocated[cm]
		direct := mt.delivery.Add(mt.support).Add(mt.engineering).InexactFloat64()
		recognized := mt.recognized.InexactFloat64()
		total := direct + shared
		profit := recognized - total

		row := ProfitabilityRow{
			CanonicalID:            cm.id,
			Month:                  cm.month,
			RecognizedRevenueGBP:   money(mt.recognized),
			CashCollectedGBP:       money(mt.cash),
			DeferredRevenueGBP:     money(mt.deferred),
			ARBilledGBP:            money(mt.ar),
			DeliveryCostGBP:        money(mt.delivery),
			SupportCostGBP:         money(mt.support),
			EngineeringCostGBP:     money(mt.engineering),
			AllocatedSharedCostGBP: round(shared, 4),
			TotalCostGBP:           round(total, 4),
			GrossProfitGBP:         round(profit, 4),
		}
		if margin, ok := ratio(profit, recognized); ok {
			row.GrossMarginPct = ptr(round(margin*100, 2))
		}
		rows = append(rows, row)
	}
	return rows
}
