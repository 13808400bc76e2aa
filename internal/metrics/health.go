package metrics

import (
	"math"
	"sort"
	"time"

	"cda/internal/unify"
	"cda/pkg/models"
	"github.com/shopspring/decimal"
)

// Health categories in ascending order
const (
	CategoryChurnRisk = "CHURN_RISK"
	CategoryAtRisk    = "AT_RISK"
	CategoryHealthy   = "HEALTHY"
	CategoryExpansion = "EXPANSION_OPPORTUNITY"
)

const (
	usageWeight     = 0.5
	ticketWeight    = 0.3
	paymentWeight   = 0.2
	usageWindowDays = 30
)

// HealthRow is the composite health of one customer at the end of a month
type HealthRow struct {
	CanonicalID             string
	Month                   time.Time
	AsOf                    time.Time
	ActiveDays              int
	UsageScore              float64
	OpenHighSeverityTickets int
	TicketScore             float64
	DSODays                 float64
	PaymentScore            float64
	HealthScore             float64
	Category                string
}

// Category maps a score onto its band. Boundaries belong to the lower band.
func Category(score float64) string {
	switch {
	case score <= 40:
		return CategoryChurnRisk
	case score <= 60:
		return CategoryAtRisk
	case score <= 80:
		return CategoryHealthy
	default:
		return CategoryExpansion
	}
}

// HealthScore combines the component scores, clamps to [0, 100] and rounds to 2dp
func HealthScore(usage, tickets, payment float64) float64 {
	score := usageWeight*usage + ticketWeight*tickets + paymentWeight*payment
	return round(clamp(score, 0, 100), 2)
}

// UsageScore is the share of active days in the trailing window, as 0-100
func UsageScore(activeDays int) float64 {
	return clamp(float64(activeDays)/usageWindowDays*100, 0, 100)
}

// TicketScore penalizes each open high-severity ticket, floored at zero
func TicketScore(openHighSeverity int, penalty float64) float64 {
	return clamp(100-penalty*float64(openHighSeverity), 0, 100)
}

// PaymentScore scales DSO against the cap; a non-positive cap scores 100
func PaymentScore(dso, capDays float64) float64 {
	if capDays <= 0 {
		return 100
	}
	return clamp(100-math.Min(dso, capDays)/capDays*100, 0, 100)
}

// DSO is the amount weighted average age of invoices open at asOf, 0 when none are open
func DSO(receivables []unify.Receivable, asOf time.Time) float64 {
	weighted := decimal.Zero
	total := decimal.Zero
	for _, r := range receivables {
		if !r.OpenAt(asOf) || !r.Amount.IsPositive() {
			continue
		}
		days := decimal.NewFromInt(int64(asOf.Sub(r.IssuedAt).Hours() / 24))
		weighted = weighted.Add(r.Amount.Mul(days))
		total = total.Add(r.Amount)
	}
	if total.IsZero() {
		return 0
	}
	return weighted.Div(total).InexactFloat64()
}

type customerFacts struct {
	activeDays  map[string][]time.Time
	tickets     map[string][]unify.TicketFact
	receivables map[string][]unify.Receivable
}

func groupFacts(f unify.Facts) customerFacts {
	cf := customerFacts{
		activeDays:  make(map[string][]time.Time),
		tickets:     make(map[string][]unify.TicketFact),
		receivables: make(map[string][]unify.Receivable),
	}
	for _, d := range f.ActiveDays {
		cf.activeDays[d.CanonicalID] = append(cf.activeDays[d.CanonicalID], d.Day)
	}
	for id := range cf.activeDays {
		days := cf.activeDays[id]
		sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })
	}
	for _, t := range f.Tickets {
		cf.tickets[t.CanonicalID] = append(cf.tickets[t.CanonicalID], t)
	}
	for _, r := range f.Receivables {
		cf.receivables[r.CanonicalID] = append(cf.receivables[r.CanonicalID], r)
	}
	return cf
}

func countActiveDays(days []time.Time, asOf time.Time) int {
	from := asOf.AddDate(0, 0, -(usageWindowDays - 1))
	n := 0
	for _, d := range days {
		if !d.Before(from) && !d.After(asOf) {
			n++
		}
	}
	return n
}

func computeHealth(months []customerMonth, cf customerFacts, params models.Parameters, runAsOf time.Time) []HealthRow {
	rows := make([]HealthRow, 0, len(months))
	for _, cm := range months {
		asOf := MonthEnd(cm.month)
		if asOf.After(runAsOf) {
			asOf = runAsOf
		}

		active := countActiveDays(cf.activeDays[cm.id], asOf)

		open := 0
		for _, t := range cf.tickets[cm.id] {
			if t.HighSeverity() && t.OpenAt(asOf) {
				open++
			}
		}

		dso := DSO(cf.receivables[cm.id], asOf)

		row := HealthRow{
			CanonicalID:             cm.id,
			Month:                   cm.month,
			AsOf:                    asOf,
			ActiveDays:              active,
			UsageScore:              round(UsageScore(active), 2),
			OpenHighSeverityTickets: open,
			TicketScore:             round(TicketScore(open, params.HealthTicketPenalty), 2),
			DSODays:                 round(dso, 2),
			PaymentScore:            round(PaymentScore(dso, params.HealthDSOCapDays), 2),
		}
		row.HealthScore = HealthScore(UsageScore(active), TicketScore(open, params.HealthTicketPenalty), PaymentScore(dso, params.HealthDSOCapDays))
		row.Category = Category(row.HealthScore)
		rows = append(rows, row)
	}
	return rows
}
