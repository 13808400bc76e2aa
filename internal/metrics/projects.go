package metrics

import (
	"sort"
	"time"

	"cda/internal/unify"
	"github.com/shopspring/decimal"
)

// ProjectRow is delivery effort on one project in one month
type ProjectRow struct {
	ProjectID            string
	CanonicalID          string
	ProjectName          string
	Month                time.Time
	Hours                float64
	BillableHours        float64
	CostGBP              float64
	CumulativeHours      float64
	BudgetHours          *float64
	BudgetUtilizationPct *float64
}

type projectMonth struct {
	project string
	month   time.Time
}

type projectTotals struct {
	canonicalID     string
	hours, billable decimal.Decimal
	cost            decimal.Decimal
}

func computeProjects(costs []unify.CostEvent, projects []unify.ProjectFact) []ProjectRow {
	facts := make(map[string]unify.ProjectFact, len(projects))
	for _, p := range projects {
		facts[p.ProjectID] = p
	}

	totals := make(map[projectMonth]*projectTotals)
	for _, c := range costs {
		if c.WorkType != unify.WorkDelivery || c.ProjectID == "" {
			continue
		}
		k := projectMonth{c.ProjectID, MonthStart(c.ActivityDate)}
		pt, ok := totals[k]
		if !ok {
			pt = &projectTotals{canonicalID: c.CanonicalID}
			totals[k] = pt
		}
		pt.hours = pt.hours.Add(c.Hours)
		pt.cost = pt.cost.Add(c.CostGBP)
		if c.Billable {
			pt.billable = pt.billable.Add(c.Hours)
		}
	}

	keys := make([]projectMonth, 0, len(totals))
	for k := range totals {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].project != keys[j].project {
			return keys[i].project < keys[j].project
		}
		return keys[i].month.Before(keys[j].month)
	})

	rows := make([]ProjectRow, 0, len(keys))
	cumulative := decimal.Zero
	for i, k := range keys {
		if i == 0 || keys[i-1].project != k.project {
			cumulative = decimal.Zero
		}
		pt := totals[k]
		cumulative = cumulative.Add(pt.hours)

		row := ProjectRow{
			ProjectID:       k.project,
			CanonicalID:     pt.canonicalID,
			Month:           k.month,
			Hours:           money(pt.hours),
			BillableHours:   money(pt.billable),
			CostGBP:         money(pt.cost),
			CumulativeHours: money(cumulative),
		}
		if fact, ok := facts[k.project]; ok {
			row.ProjectName = fact.Name
			if fact.CanonicalID != "" {
				row.CanonicalID = fact.CanonicalID
			}
			if fact.BudgetHours.IsPositive() {
				row.BudgetHours = ptr(money(fact.BudgetHours))
				util := cumulative.Div(fact.BudgetHours).Mul(decimal.NewFromInt(100))
				row.BudgetUtilizationPct = ptr(util.Round(2).InexactFloat64())
			}
		}
		rows = append(rows, row)
	}
	return rows
}
