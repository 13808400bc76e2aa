package pipeline

import (
	"strings"
	"time"

	"cda/internal/identity"
	"cda/internal/metrics"
	"cda/internal/tables"
	"cda/internal/unify"
	"github.com/shopspring/decimal"
)

// Output table names in publication order
const (
	TableCustomerIdentity     = "DIM_CUSTOMER_IDENTITY"
	TableCostEvents           = "FCT_COST_EVENTS"
	TableRevenueEvents        = "FCT_REVENUE_EVENTS"
	TableSharedCostAllocation = "FCT_SHARED_COST_ALLOCATION"
	TableCustomerHealth       = "FCT_CUSTOMER_HEALTH"
	TableCustomerProfit       = "FCT_CUSTOMER_PROFITABILITY"
	TableRevenueGap           = "FCT_REVENUE_GAP"
	TableRevenueAtRisk        = "FCT_REVENUE_AT_RISK"
	TableCustomerLTV          = "FCT_CUSTOMER_LTV"
	TableProjectPerformance   = "FCT_PROJECT_PERFORMANCE"
)

type col = tables.Column

func str(name string) col       { return col{Name: name, Type: tables.TypeString} }
func num(name string) col       { return col{Name: name, Type: tables.TypeNumber} }
func integer(name string) col   { return col{Name: name, Type: tables.TypeInteger} }
func boolean(name string) col   { return col{Name: name, Type: tables.TypeBoolean} }
func date(name string) col      { return col{Name: name, Type: tables.TypeDate} }
func timestamp(name string) col { return col{Name: name, Type: tables.TypeTimestamp} }

func newTable(name string, columns ...col) *tables.Table {
	columns = append(columns, timestamp(tables.CalculatedAtColumn))
	return &tables.Table{Name: name, Columns: columns}
}

func optString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func optTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t
}

func optFloat(f *float64) interface{} {
	if f == nil {
		return nil
	}
	return *f
}

func optInt(n int) interface{} {
	if n == 0 {
		return nil
	}
	return n
}

func amount(d decimal.Decimal) float64 {
	return d.Round(4).InexactFloat64()
}

func renderIdentities(res *identity.Result, at time.Time) *tables.Table {
	t := newTable(TableCustomerIdentity,
		str("CUSTOMER_KEY"), str("CANONICAL_CUSTOMER_ID"), str("CUSTOMER_NAME"),
		str("SALESFORCE_ACCOUNT_ID"), str("STRIPE_CUSTOMER_ID"), str("INTACCT_CUSTOMER_ID"),
		str("ZENDESK_ORGANIZATION_ID"), str("HARVEST_CLIENT_ID"), str("JIRA_ACCOUNT_KEY"),
		str("MIXPANEL_COMPANY_ID"), integer("PRIORITY_RANK"), str("MATCH_RULE"),
		num("MATCH_CONFIDENCE"), integer("SOURCE_ROW_COUNT"), boolean("HAS_CONFLICTS"),
		str("CONFLICT_SLOTS"), timestamp("FIRST_SEEN"), timestamp("LAST_SEEN"),
	)
	for _, ident := range res.Identities {
		slots := make([]string, len(ident.ConflictSlots))
		for i, s := range ident.ConflictSlots {
			slots[i] = s.String()
		}
		row := []interface{}{
			tables.SurrogateKey(ident.CanonicalID),
			ident.CanonicalID,
			optString(ident.CustomerName),
		}
		for _, slot := range identity.Slots {
			row = append(row, optString(ident.ID(slot)))
		}
		row = append(row,
			int(ident.Rank),
			ident.Rule,
			ident.Confidence,
			ident.SourceRows,
			ident.HasConflicts,
			optString(strings.Join(slots, ",")),
			optTime(ident.FirstSeen),
			optTime(ident.LastSeen),
			at,
		)
		t.Rows = append(t.Rows, row)
	}
	return t
}

func renderCosts(costs []unify.CostEvent, at time.Time) *tables.Table {
	t := newTable(TableCostEvents,
		str("COST_EVENT_KEY"), str("EVENT_ID"), str("CANONICAL_CUSTOMER_ID"), date("ACTIVITY_DATE"),
		str("WORK_TYPE"), num("HOURS"), num("COST_GBP"), str("SOURCE_SYSTEM"),
		str("ALLOCATION_CLASS"), str("PROJECT_ID"), str("TICKET_ID"), integer("SUPPORT_TIER"),
	)
	for _, c := range costs {
		t.Rows = append(t.Rows, []interface{}{
			tables.SurrogateKey(c.EventID),
			c.EventID,
			c.CanonicalID,
			optTime(c.ActivityDate),
			string(c.WorkType),
			amount(c.Hours),
			amount(c.CostGBP),
			c.Source,
			string(c.AllocationClass),
			optString(c.ProjectID),
			optString(c.TicketID),
			optInt(c.SupportTier),
			at,
		})
	}
	return t
}

func renderRevenue(revenue []unify.RevenueEvent, at time.Time) *tables.Table {
	t := newTable(TableRevenueEvents,
		str("REVENUE_EVENT_KEY"), str("EVENT_ID"), str("CANONICAL_CUSTOMER_ID"), date("EVENT_DATE"),
		str("REVENUE_TYPE"), num("AMOUNT"), str("DIRECTION"), str("SOURCE_SYSTEM"), str("CURRENCY"),
	)
	for _, r := range revenue {
		t.Rows = append(t.Rows, []interface{}{
			tables.SurrogateKey(r.EventID, string(r.RevenueType)),
			r.EventID,
			r.CanonicalID,
			optTime(r.EventDate),
			string(r.RevenueType),
			amount(r.Amount),
			string(r.Direction),
			r.Source,
			r.Currency,
			at,
		})
	}
	return t
}

func renderAllocations(rows []metrics.SharedAllocation, at time.Time) *tables.Table {
	t := newTable(TableSharedCostAllocation,
		str("ALLOCATION_KEY"), str("CANONICAL_CUSTOMER_ID"), date("MONTH"), num("POOL_GBP"),
		num("CUSTOMER_RECOGNIZED_REVENUE_GBP"), num("TOTAL_RECOGNIZED_REVENUE_GBP"),
		num("SHARE_FRACTION"), num("ALLOCATED_COST_GBP"),
	)
	for _, a := range rows {
		t.Rows = append(t.Rows, []interface{}{
			tables.SurrogateKey(a.CanonicalID, a.Month),
			a.CanonicalID,
			a.Month,
			round4(a.PoolGBP),
			round4(a.CustomerRevenueGBP),
			round4(a.TotalRevenueGBP),
			round4(a.ShareFraction),
			round4(a.AllocatedGBP),
			at,
		})
	}
	return t
}

func renderHealth(rows []metrics.HealthRow, at time.Time) *tables.Table {
	t := newTable(TableCustomerHealth,
		str("HEALTH_KEY"), str("CANONICAL_CUSTOMER_ID"), date("MONTH"), date("AS_OF_DATE"),
		integer("ACTIVE_DAYS_30D"), num("USAGE_SCORE"), integer("OPEN_HIGH_SEVERITY_TICKETS"),
		num("TICKET_SCORE"), num("DSO_DAYS"), num("PAYMENT_SCORE"), num("HEALTH_SCORE"),
		str("HEALTH_CATEGORY"),
	)
	for _, h := range rows {
		t.Rows = append(t.Rows, []interface{}{
			tables.SurrogateKey(h.CanonicalID, h.Month),
			h.CanonicalID,
			h.Month,
			h.AsOf,
			h.ActiveDays,
			h.UsageScore,
			h.OpenHighSeverityTickets,
			h.TicketScore,
			h.DSODays,
			h.PaymentScore,
			h.HealthScore,
			h.Category,
			at,
		})
	}
	return t
}

func renderProfitability(rows []metrics.ProfitabilityRow, at time.Time) *tables.Table {
	t := newTable(TableCustomerProfit,
		str("PROFITABILITY_KEY"), str("CANONICAL_CUSTOMER_ID"), date("MONTH"),
		num("RECOGNIZED_REVENUE_GBP"), num("CASH_COLLECTED_GBP"), num("DEFERRED_REVENUE_GBP"),
		num("AR_BILLED_GBP"), num("DELIVERY_COST_GBP"), num("SUPPORT_COST_GBP"),
		num("ENGINEERING_COST_GBP"), num("ALLOCATED_SHARED_COST_GBP"), num("TOTAL_COST_GBP"),
		num("GROSS_PROFIT_GBP"), num("GROSS_MARGIN_PCT"),
	)
	for _, p := range rows {
		t.Rows = append(t.Rows, []interface{}{
			tables.SurrogateKey(p.CanonicalID, p.Month),
			p.CanonicalID,
			p.Month,
			p.RecognizedRevenueGBP,
			p.CashCollectedGBP,
			p.DeferredRevenueGBP,
			p.ARBilledGBP,
			p.DeliveryCostGBP,
			p.SupportCostGBP,
			p.EngineeringCostGBP,
			p.AllocatedSharedCostGBP,
			p.TotalCostGBP,
			p.GrossProfitGBP,
			optFloat(p.GrossMarginPct),
			at,
		})
	}
	return t
}

func renderRevenueGap(rows []metrics.RevenueGapRow, at time.Time) *tables.Table {
	t := newTable(TableRevenueGap,
		str("REVENUE_GAP_KEY"), str("CANONICAL_CUSTOMER_ID"), date("MONTH"),
		num("BOOKED_REVENUE_GBP"), num("ACTUAL_CASH_GBP"), num("REVENUE_GAP_GBP"),
	)
	for _, g := range rows {
		t.Rows = append(t.Rows, []interface{}{
			tables.SurrogateKey(g.CanonicalID, g.Month),
			g.CanonicalID,
			g.Month,
			g.BookedGBP,
			g.ActualCashGBP,
			g.GapGBP,
			at,
		})
	}
	return t
}

func renderRevenueAtRisk(rows []metrics.RevenueAtRiskRow, at time.Time) *tables.Table {
	t := newTable(TableRevenueAtRisk,
		str("REVENUE_AT_RISK_KEY"), str("CANONICAL_CUSTOMER_ID"), date("AS_OF_DATE"),
		str("HEALTH_CATEGORY"), num("HEALTH_SCORE"), num("ARR_GBP"), num("CHURN_EXPOSURE_GBP"),
		num("OVERDUE_RECEIVABLES_GBP"), num("REVENUE_AT_RISK_GBP"),
	)
	for _, r := range rows {
		t.Rows = append(t.Rows, []interface{}{
			tables.SurrogateKey(r.CanonicalID, r.AsOf),
			r.CanonicalID,
			r.AsOf,
			optString(r.HealthCategory),
			r.HealthScore,
			r.ARRGBP,
			r.ChurnExposureGBP,
			r.OverdueReceivablesGBP,
			r.RevenueAtRiskGBP,
			at,
		})
	}
	return t
}

func renderLTV(rows []metrics.LTVRow, at time.Time) *tables.Table {
	t := newTable(TableCustomerLTV,
		str("LTV_KEY"), str("CANONICAL_CUSTOMER_ID"), date("AS_OF_DATE"), num("MRR_GBP"),
		num("LTV_GBP"), num("CAC_GBP"), num("LTV_TO_CAC_RATIO"), integer("REVENUE_MONTHS_3M"),
		boolean("CAC_IS_PLACEHOLDER"),
	)
	for _, l := range rows {
		t.Rows = append(t.Rows, []interface{}{
			tables.SurrogateKey(l.CanonicalID, l.AsOf),
			l.CanonicalID,
			l.AsOf,
			l.MRRGBP,
			l.LTVGBP,
			l.CACGBP,
			optFloat(l.LTVToCAC),
			l.RevenueMonths,
			true,
			at,
		})
	}
	return t
}

func renderProjects(rows []metrics.ProjectRow, at time.Time) *tables.Table {
	t := newTable(TableProjectPerformance,
		str("PROJECT_PERFORMANCE_KEY"), str("PROJECT_ID"), str("CANONICAL_CUSTOMER_ID"),
		str("PROJECT_NAME"), date("MONTH"), num("HOURS"), num("BILLABLE_HOURS"), num("COST_GBP"),
		num("CUMULATIVE_HOURS"), num("BUDGET_HOURS"), num("BUDGET_UTILIZATION_PCT"),
	)
	for _, p := range rows {
		t.Rows = append(t.Rows, []interface{}{
			tables.SurrogateKey(p.ProjectID, p.Month),
			p.ProjectID,
			optString(p.CanonicalID),
			optString(p.ProjectName),
			p.Month,
			p.Hours,
			p.BillableHours,
			p.CostGBP,
			p.CumulativeHours,
			optFloat(p.BudgetHours),
			optFloat(p.BudgetUtilizationPct),
			at,
		})
	}
	return t
}

func round4(f float64) float64 {
	return decimal.NewFromFloat(f).Round(4).InexactFloat64()
}
