package metrics

import (
	"sort"
	"time"

	"cda/internal/unify"
	"cda/pkg/models"
	"github.com/shopspring/decimal"
)

const mrrWindowMonths = 3

// LTVRow projects lifetime value as of the run date. CAC is a configured
// placeholder, not derived from acquisition spend.
type LTVRow struct {
	CanonicalID   string
	AsOf          time.Time
	MRRGBP        float64
	LTVGBP        float64
	CACGBP        float64
	LTVToCAC      *float64
	RevenueMonths int
}

// MRR averages recognized revenue over the trailing window ending in asOf's month.
// Months without revenue count as zero.
func MRR(revenue []unify.RevenueEvent, id string, asOf time.Time) (float64, int) {
	last := MonthStart(asOf)
	first := AddMonths(last, -(mrrWindowMonths - 1))

	sum := decimal.Zero
	months := make(map[time.Time]bool)
	for _, r := range revenue {
		if r.CanonicalID != id || r.RevenueType != unify.RevenueGAAPRecognized {
			continue
		}
		m := MonthStart(r.EventDate)
		if m.Before(first) || m.After(last) {
			continue
		}
		sum = sum.Add(r.Amount)
		months[m] = true
	}
	return sum.Div(decimal.NewFromInt(mrrWindowMonths)).InexactFloat64(), len(months)
}

func computeLTV(customers []string, revenue []unify.RevenueEvent, params models.Parameters, asOf time.Time) []LTVRow {
	byCustomer := make(map[string][]unify.RevenueEvent)
	for _, r := range revenue {
		byCustomer[r.CanonicalID] = append(byCustomer[r.CanonicalID], r)
	}

	rows := make([]LTVRow, 0, len(customers))
	for _, id := range customers {
		mrr, months := MRR(byCustomer[id], id, asOf)
		ltv := mrr * float64(params.LTVMonths)
		row := LTVRow{
			CanonicalID:   id,
			AsOf:          asOf,
			MRRGBP:        round(mrr, 4),
			LTVGBP:        round(ltv, 4),
			CACGBP:        params.CACPlaceholderGBP,
			RevenueMonths: months,
		}
		if r, ok := ratio(ltv, params.CACPlaceholderGBP); ok {
			row.LTVToCAC = ptr(round(r, 4))
		}
		rows = append(rows, row)
	}
	return rows
}

func customerIDs(months []customerMonth) []string {
	seen := make(map[string]bool)
	var ids []string
	for _, cm := range months {
		if !seen[cm.id] {
			seen[cm.id] = true
			ids = append(ids, cm.id)
		}
	}
	sort.Strings(ids)
	return ids
}
