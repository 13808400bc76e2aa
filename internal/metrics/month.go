package metrics

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// MonthStart truncates t to the first day of its UTC month
func MonthStart(t time.Time) time.Time {
	y, m, _ := t.UTC().Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
}

// MonthEnd is the last calendar day of t's month
func MonthEnd(t time.Time) time.Time {
	return MonthStart(t).AddDate(0, 1, -1)
}

// AddMonths shifts a month start by n months
func AddMonths(month time.Time, n int) time.Time {
	return MonthStart(month).AddDate(0, n, 0)
}

type customerMonth struct {
	id    string
	month time.Time
}

func sortedCustomerMonths(set map[customerMonth]bool) []customerMonth {
	keys := make([]customerMonth, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].id != keys[j].id {
			return keys[i].id < keys[j].id
		}
		return keys[i].month.Before(keys[j].month)
	})
	return keys
}

// round to places using decimal half-away-from-zero rounding
func round(f float64, places int32) float64 {
	return decimal.NewFromFloat(f).Round(places).InexactFloat64()
}

func money(d decimal.Decimal) float64 {
	return d.Round(4).InexactFloat64()
}

// ratio divides with an explicit guard; ok is false for an empty denominator
func ratio(num, den float64) (float64, bool) {
	if den == 0 {
		return 0, false
	}
	return num / den, true
}

func clamp(f, lo, hi float64) float64 {
	if f < lo {
		return lo
	}
	if f > hi {
		return hi
	}
	return f
}

func ptr(f float64) *float64 {
	return &f
}
