package metrics

import (
	"time"

	"cda/internal/unify"
	"github.com/shopspring/decimal"
)

// RevenueGapRow compares booked contract value spread over the term against net cash.
// A positive gap is under-delivery against the booking.
type RevenueGapRow struct {
	CanonicalID   string
	Month         time.Time
	BookedGBP     float64
	ActualCashGBP float64
	GapGBP        float64
}

func computeRevenueGap(bookings []unify.Booking, revenue []unify.RevenueEvent, asOf time.Time) []RevenueGapRow {
	lastMonth := MonthStart(asOf)
	booked := make(map[customerMonth]decimal.Decimal)
	cash := make(map[customerMonth]decimal.Decimal)
	keys := make(map[customerMonth]bool)

	for _, b := range bookings {
		if b.TermMonths <= 0 {
			continue
		}
		monthly := b.Amount.Div(decimal.NewFromInt(int64(b.TermMonths)))
		for i := 0; i < b.TermMonths; i++ {
			m := AddMonths(b.Start, i)
			if m.After(lastMonth) {
				break
			}
			k := customerMonth{b.CanonicalID, m}
			booked[k] = booked[k].Add(monthly)
			keys[k] = true
		}
	}

	for _, r := range revenue {
		if r.RevenueType != unify.RevenueCash {
			continue
		}
		k := customerMonth{r.CanonicalID, MonthStart(r.EventDate)}
		cash[k] = cash[k].Add(r.Amount)
		keys[k] = true
	}

	months := sortedCustomerMonths(keys)
	rows := make([]RevenueGapRow, 0, len(months))
	for _, k := range months {
		rows = append(rows, RevenueGapRow{
			CanonicalID:   k.id,
			Month:         k.month,
			BookedGBP:     money(booked[k]),
			ActualCashGBP: money(cash[k]),
			GapGBP:        money(booked[k].Sub(cash[k])),
		})
	}
	return rows
}
