package metrics

import (
	"sort"
	"time"

	"cda/internal/unify"
	"github.com/shopspring/decimal"
)

const overdueGraceDays = 30

// RevenueAtRiskRow combines churn exposure from the latest health band with
// receivables more than thirty days past due
type RevenueAtRiskRow struct {
	CanonicalID           string
	AsOf                  time.Time
	HealthCategory        string
	HealthScore           float64
	ARRGBP                float64
	ChurnExposureGBP      float64
	OverdueReceivablesGBP float64
	RevenueAtRiskGBP      float64
}

func churnFactor(category string) float64 {
	switch category {
	case CategoryChurnRisk:
		return 1
	case CategoryAtRisk:
		return 0.5
	default:
		return 0
	}
}

func computeRevenueAtRisk(health []HealthRow, ltv []LTVRow, receivables []unify.Receivable, asOf time.Time) []RevenueAtRiskRow {
	latest := make(map[string]HealthRow)
	for _, h := range health {
		if prev, ok := latest[h.CanonicalID]; !ok || h.Month.After(prev.Month) {
			latest[h.CanonicalID] = h
		}
	}
	mrr := make(map[string]float64, len(ltv))
	for _, l := range ltv {
		mrr[l.CanonicalID] = l.MRRGBP
	}

	cutoff := asOf.AddDate(0, 0, -overdueGraceDays)
	overdue := make(map[string]decimal.Decimal)
	for _, r := range receivables {
		if r.OpenAt(asOf) && r.Due().Before(cutoff) {
			overdue[r.CanonicalID] = overdue[r.CanonicalID].Add(r.Amount)
		}
	}

	ids := make([]string, 0, len(latest)+len(overdue))
	seen := make(map[string]bool)
	for id := range latest {
		seen[id] = true
		ids = append(ids, id)
	}
	for id := range overdue {
		if !seen[id] {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	var rows []RevenueAtRiskRow
	for _, id := range ids {
		h := latest[id]
		arr := mrr[id] * 12
		exposure := arr * churnFactor(h.Category)
		late := overdue[id].InexactFloat64()
		total := exposure + late
		if total <= 0 {
			continue
		}
		rows = append(rows, RevenueAtRiskRow{
			CanonicalID:           id,
			AsOf:                  asOf,
			HealthCategory:        h.Category,
			HealthScore:           h.HealthScore,
			ARRGBP:                round(arr, 4),
			ChurnExposureGBP:      round(exposure, 4),
			OverdueReceivablesGBP: money(overdue[id]),
			RevenueAtRiskGBP:      round(total, 4),
		})
	}
	return rows
}
