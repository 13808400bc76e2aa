package unify

import (
	"testing"
	"time"

	"cda/internal/identity"
	"cda/internal/staging"
	"cda/pkg/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func companyASeed() []identity.SeedRow {
	return []identity.SeedRow{{
		CanonicalID:  "CUST-A",
		CustomerName: "CompanyA",
		IDs: [identity.SlotCount]string{
			identity.SlotSalesforce: "acc_1",
			identity.SlotStripe:     "cus_1",
			identity.SlotIntacct:    "C-1",
			identity.SlotHarvest:    "h_1",
			identity.SlotJira:       "ACME",
			identity.SlotMixpanel:   "mp_1",
		},
	}}
}

func unifySnapshot(t *testing.T, snap *staging.Snapshot) *Result {
	t.Helper()
	res := identity.NewResolver().Resolve(snap, companyASeed())
	return Unify(snap, res.Index, models.DefaultParameters())
}

func TestSupportTicketCost(t *testing.T) {
	snap := &staging.Snapshot{
		Organizations: []staging.Organization{{ID: "org_1", SalesforceAccountID: "acc_1"}},
		Tickets: []staging.Ticket{{
			ID:               "1001",
			OrganizationID:   "org_1",
			SupportTier:      2,
			TimeSpentMinutes: decimal.NewFromInt(60),
			CreatedAt:        time.Date(2025, 1, 15, 9, 30, 0, 0, time.UTC),
		}},
	}

	res := unifySnapshot(t, snap)

	require.Len(t, res.Costs, 1)
	ev := res.Costs[0]
	assert.Equal(t, "CUST-A", ev.CanonicalID)
	assert.Equal(t, WorkSupport, ev.WorkType)
	assert.Equal(t, AllocationDirect, ev.AllocationClass)
	assert.Equal(t, 35.0, ev.CostGBP.InexactFloat64())
	assert.Equal(t, day(2025, 1, 15), ev.ActivityDate)
}

func TestSupportRateTiers(t *testing.T) {
	snap := &staging.Snapshot{
		Organizations: []staging.Organization{{ID: "org_1", SalesforceAccountID: "acc_1"}},
		Tickets: []staging.Ticket{
			{ID: "1", OrganizationID: "org_1", SupportTier: 1, TimeSpentMinutes: dec("30")},
			{ID: "2", OrganizationID: "org_1", SupportTier: 3, TimeSpentMinutes: dec("90")},
			{ID: "3", OrganizationID: "org_1", TimeSpentMinutes: dec("120")},
			{ID: "4", OrganizationID: "org_unknown", TimeSpentMinutes: dec("10")},
		},
	}

	res := unifySnapshot(t, snap)
	require.Len(t, res.Costs, 3)
	assert.True(t, dec("12.5").Equal(res.Costs[0].CostGBP))
	assert.True(t, dec("75").Equal(res.Costs[1].CostGBP))
	assert.True(t, dec("60").Equal(res.Costs[2].CostGBP))
	assert.Equal(t, 1, res.Report.Unresolved["zendesk/tickets"])
	assert.Len(t, res.Facts.Tickets, 3)
}

func TestTimeEntryProjectFallback(t *testing.T) {
	snap := &staging.Snapshot{
		Projects: []staging.Project{{ID: "p1", ClientID: "h_1", BudgetHours: dec("100")}},
		TimeEntries: []staging.TimeEntry{
			{ID: "t1", ProjectID: "p1", SpentDate: day(2025, 2, 3), Hours: dec("2.5"), CostRate: dec("80")},
			{ID: "t2", ProjectID: "p_missing", ClientID: "h_1", SpentDate: day(2025, 2, 4), Hours: dec("1"), CostRate: dec("80")},
			{ID: "t3", ProjectID: "p_missing", ClientID: "h_other", Hours: dec("1"), CostRate: dec("80")},
		},
	}

	res := unifySnapshot(t, snap)
	require.Len(t, res.Costs, 2)
	assert.True(t, dec("200").Equal(res.Costs[0].CostGBP))
	assert.Equal(t, WorkDelivery, res.Costs[1].WorkType)
	assert.Equal(t, 1, res.Report.Unresolved["harvest/time_entries"])
	require.Len(t, res.Facts.Projects, 1)
	assert.Equal(t, "CUST-A", res.Facts.Projects[0].CanonicalID)
}

func TestEngineeringAllocationClass(t *testing.T) {
	snap := &staging.Snapshot{
		Organizations: []staging.Organization{{ID: "org_1", SalesforceAccountID: "acc_1"}},
		Tickets:       []staging.Ticket{{ID: "1001", OrganizationID: "org_1"}},
		Issues: []staging.Issue{
			{Key: "ENG-1", TicketID: "1001", TimeSpentSeconds: dec("7200"), ResolvedAt: day(2025, 1, 20)},
			{Key: "ENG-2", AccountKey: "ACME", TimeSpentSeconds: dec("3600"), UpdatedAt: day(2025, 1, 21)},
			{Key: "ENG-3", TimeSpentSeconds: dec("1800"), CreatedAt: day(2025, 1, 22)},
			{Key: "ENG-4", TicketID: "9999", TimeSpentSeconds: dec("3600")},
		},
	}

	res := unifySnapshot(t, snap)

	var eng []CostEvent
	for _, c := range res.Costs {
		if c.WorkType == WorkEngineering {
			eng = append(eng, c)
		}
	}
	require.Len(t, eng, 2)
	assert.Equal(t, "jira:ENG-1", eng[0].EventID)
	assert.Equal(t, AllocationDirect, eng[0].AllocationClass)
	assert.True(t, dec("120").Equal(eng[0].CostGBP))
	assert.Equal(t, AllocationShared, eng[1].AllocationClass)
	assert.Equal(t, "CUST-A", eng[1].CanonicalID)

	require.Len(t, res.UnattributedShared, 1)
	assert.Equal(t, "jira:ENG-3", res.UnattributedShared[0].EventID)
	assert.Empty(t, res.UnattributedShared[0].CanonicalID)
	assert.True(t, dec("30").Equal(res.UnattributedShared[0].CostGBP))

	assert.Equal(t, 1, res.Report.Unresolved["jira/issues"])
}

func TestRevenueTypes(t *testing.T) {
	snap := &staging.Snapshot{
		Invoices: []staging.Invoice{
			{ID: "in_1", CustomerID: "cus_1", Status: "paid", AmountDue: dec("100"), AmountPaid: dec("100"), CreatedAt: day(2025, 1, 1), PaidAt: day(2025, 1, 10)},
			{ID: "in_2", CustomerID: "cus_1", Status: "open", AmountDue: dec("50"), AmountRemaining: dec("50"), CreatedAt: day(2025, 2, 1)},
			{ID: "in_3", CustomerID: "cus_1", Status: "draft", AmountDue: dec("10")},
			{ID: "in_4", CustomerID: "cus_1", Status: "void", AmountDue: dec("10")},
		},
		Charges: []staging.Charge{{ID: "ch_1", CustomerID: "cus_1"}},
		Refunds: []staging.Refund{
			{ID: "re_1", ChargeID: "ch_1", Amount: dec("20"), Status: "succeeded", CreatedAt: day(2025, 1, 12)},
			{ID: "re_2", ChargeID: "ch_missing", Amount: dec("5")},
		},
		Disputes: []staging.Dispute{
			{ID: "dp_1", ChargeID: "ch_1", Amount: dec("30"), Status: "lost", CreatedAt: day(2025, 1, 14)},
			{ID: "dp_2", ChargeID: "ch_1", Amount: dec("30"), Status: "won"},
		},
		RevenueEntries: []staging.RevenueEntry{
			{ID: "1", CustomerID: "C-1", Amount: dec("100"), TrType: 1, Posted: true, EntryDate: day(2025, 1, 31)},
			{ID: "2", CustomerID: "C-1", Amount: dec("200"), TrType: 1, EntryDate: day(2025, 1, 31)},
			{ID: "3", CustomerID: "C-1", Amount: dec("10"), TrType: -1, Posted: true, EntryDate: day(2025, 1, 31)},
		},
	}

	res := unifySnapshot(t, snap)

	byID := make(map[string]RevenueEvent)
	for _, ev := range res.Revenue {
		_, dup := byID[ev.EventID]
		assert.False(t, dup, "one row per event: %s", ev.EventID)
		byID[ev.EventID] = ev
	}
	require.Len(t, byID, 7)

	assert.Equal(t, RevenueCash, byID["stripe:invoice:in_1"].RevenueType)
	assert.Equal(t, day(2025, 1, 10), byID["stripe:invoice:in_1"].EventDate)
	assert.Equal(t, RevenueAR, byID["stripe:invoice:in_2"].RevenueType)
	assert.True(t, dec("-20").Equal(byID["stripe:refund:re_1"].Amount))
	assert.Equal(t, Debit, byID["stripe:dispute:dp_1"].Direction)
	assert.Equal(t, RevenueGAAPRecognized, byID["intacct:1"].RevenueType)
	assert.Equal(t, RevenueGAAPDeferred, byID["intacct:2"].RevenueType)
	assert.True(t, dec("-10").Equal(byID["intacct:3"].Amount))
	assert.Equal(t, Debit, byID["intacct:3"].Direction)

	assert.Equal(t, 2, res.Report.Skipped["stripe/invoices"])
	assert.Equal(t, 1, res.Report.Unresolved["stripe/refunds"])
	assert.Len(t, res.Facts.Receivables, 2)
}

func TestUsageAndBookings(t *testing.T) {
	snap := &staging.Snapshot{
		Events: []staging.Event{
			{ID: "e1", CompanyID: "mp_1", Time: time.Date(2025, 1, 5, 8, 0, 0, 0, time.UTC)},
			{ID: "e2", CompanyID: "mp_1", Time: time.Date(2025, 1, 5, 17, 0, 0, 0, time.UTC)},
			{ID: "e3", CompanyID: "mp_1", Time: time.Date(2025, 1, 6, 8, 0, 0, 0, time.UTC)},
			{ID: "e4", CompanyID: "mp_x", Time: time.Date(2025, 1, 6, 8, 0, 0, 0, time.UTC)},
		},
		Opportunities: []staging.Opportunity{
			{ID: "o1", AccountID: "acc_1", IsWon: true, Amount: dec("12000"), CloseDate: day(2024, 12, 20)},
			{ID: "o2", AccountID: "acc_1", IsWon: false, Amount: dec("500")},
		},
	}

	res := unifySnapshot(t, snap)
	assert.Len(t, res.Facts.ActiveDays, 2)
	assert.Equal(t, 1, res.Report.Unresolved["mixpanel/events"])

	require.Len(t, res.Facts.Bookings, 1)
	assert.Equal(t, 12, res.Facts.Bookings[0].TermMonths)
	assert.Equal(t, day(2024, 12, 20), res.Facts.Bookings[0].Start)
}

func TestTicketOpenAt(t *testing.T) {
	asOf := day(2025, 1, 31)
	assert.True(t, TicketFact{Status: "open", CreatedAt: day(2025, 1, 2)}.OpenAt(asOf))
	assert.False(t, TicketFact{Status: "open", CreatedAt: day(2025, 2, 2)}.OpenAt(asOf))
	assert.True(t, TicketFact{Status: "solved", CreatedAt: day(2025, 1, 2), SolvedAt: day(2025, 2, 1)}.OpenAt(asOf))
	assert.False(t, TicketFact{Status: "closed", CreatedAt: day(2025, 1, 2)}.OpenAt(asOf))
}
