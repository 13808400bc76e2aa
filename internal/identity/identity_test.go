package identity

import (
	"strings"
	"testing"
	"time"

	"cda/internal/staging"
	"cda/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func find(t *testing.T, res *Result, id string) Identity {
	t.Helper()
	for _, ident := range res.Identities {
		if ident.CanonicalID == id {
			return ident
		}
	}
	t.Fatalf("identity %s not found", id)
	return Identity{}
}

func TestReadSeedCSV(t *testing.T) {
	csv := `canonical_id,customer_name,salesforce_account_id,stripe_customer_id,zendesk_organization_id,notes
CUST-A,CompanyA,acc_1,cus_1,org_1,vip
,CompanyB,,cus_2,,
,,,,,
`
	seeds, err := ReadSeedCSV(strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, seeds, 2)

	assert.Equal(t, "CUST-A", seeds[0].CanonicalID)
	assert.Equal(t, "acc_1", seeds[0].IDs[SlotSalesforce])
	assert.Equal(t, "org_1", seeds[0].IDs[SlotZendesk])
	assert.Equal(t, "GT:cus_2", seeds[1].CanonicalID)
}

func TestReadSeedCSVWithoutSlots(t *testing.T) {
	_, err := ReadSeedCSV(strings.NewReader("customer_name\nCompanyA\n"))
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeSeedInvalid, errors.GetErrorCode(err))
}

func TestGroundTruthSlotConflict(t *testing.T) {
	seeds := []SeedRow{
		{CanonicalID: "CUST-A", CustomerName: "CompanyA", IDs: [SlotCount]string{SlotStripe: "cus_1"}},
		{CanonicalID: "CUST-A", CustomerName: "CompanyA", IDs: [SlotCount]string{SlotStripe: "cus_9"}},
	}
	res := NewResolver().Resolve(&staging.Snapshot{}, seeds)

	require.Len(t, res.Identities, 1)
	ident := res.Identities[0]
	assert.True(t, ident.HasConflicts)
	assert.Equal(t, []Slot{SlotStripe}, ident.ConflictSlots)
	assert.Equal(t, "cus_1", ident.ID(SlotStripe))

	require.Len(t, res.Conflicts, 1)
	assert.Equal(t, ConflictSlotValues, res.Conflicts[0].Kind)
	assert.Equal(t, []string{"cus_1", "cus_9"}, res.Conflicts[0].Values)

	id, ok := res.Index.Lookup(SlotStripe, "cus_9")
	assert.True(t, ok)
	assert.Equal(t, "CUST-A", id)
}

func TestRuleCascade(t *testing.T) {
	seeds := []SeedRow{
		{CanonicalID: "CUST-A", CustomerName: "CompanyA", IDs: [SlotCount]string{SlotSalesforce: "acc_1", SlotStripe: "cus_1"}},
	}
	snap := &staging.Snapshot{
		Accounts: []staging.Account{
			{ID: "acc_1", Name: "Company A Ltd", CreatedAt: day(2023, 5, 1)},
			{ID: "acc_2", Name: "CompanyB", CreatedAt: day(2024, 1, 10)},
		},
		StripeCustomers: []staging.StripeCustomer{
			{ID: "cus_1", CreatedAt: day(2023, 6, 1)},
			{ID: "cus_2", SalesforceAccountID: "acc_2", CreatedAt: day(2024, 2, 1)},
			{ID: "cus_3", Name: "Card Only", CreatedAt: day(2024, 3, 1)},
		},
		Organizations: []staging.Organization{
			{ID: "org_1", Name: "CompanyA Support", SalesforceAccountID: "acc_1", CreatedAt: day(2022, 1, 1)},
			{ID: "org_7", Name: "Desk Only"},
		},
		HarvestClients: []staging.HarvestClient{
			{ID: "h_1", Name: "No CRM link"},
		},
		MixpanelCompanies: []staging.MixpanelCompany{
			{ID: "mp_2", SalesforceAccountID: "acc_2"},
			{ID: "mp_9", SalesforceAccountID: "acc_missing"},
		},
	}

	res := NewResolver().Resolve(snap, seeds)

	a := find(t, res, "CUST-A")
	assert.Equal(t, RankGroundTruth, a.Rank)
	assert.Equal(t, "CompanyA", a.CustomerName)
	assert.Equal(t, "org_1", a.ID(SlotZendesk))
	assert.Equal(t, day(2022, 1, 1), a.FirstSeen)
	assert.Equal(t, day(2023, 6, 1), a.LastSeen)
	assert.False(t, a.HasConflicts)

	b := find(t, res, "SALESFORCE:acc_2")
	assert.Equal(t, RankCRM, b.Rank)
	assert.Equal(t, "CompanyB", b.CustomerName)
	assert.Equal(t, "cus_2", b.ID(SlotStripe))
	assert.Equal(t, "mp_2", b.ID(SlotMixpanel))
	assert.Equal(t, 3, b.SourceRows)

	card := find(t, res, "STRIPE:cus_3")
	assert.Equal(t, RuleSynthetic, card.Rule)
	assert.Equal(t, RankPaymentProcessor, card.Rank)

	desk := find(t, res, "ZENDESK:org_7")
	assert.Equal(t, RankSupport, desk.Rank)
	assert.True(t, desk.FirstSeen.IsZero())

	// crm-link mints an identity for an account absent from the CRM snapshot
	missing := find(t, res, "SALESFORCE:acc_missing")
	assert.Equal(t, RankAnalyticsViaCRM, missing.Rank)
	assert.Equal(t, "acc_missing", missing.ID(SlotSalesforce))

	require.Len(t, res.Unresolved, 1)
	assert.Equal(t, "h_1", res.Unresolved[0].Key)
	_, ok := res.Index.Lookup(SlotHarvest, "h_1")
	assert.False(t, ok)
}

func TestIdentityUniqueness(t *testing.T) {
	seeds := []SeedRow{
		{CanonicalID: "CUST-A", IDs: [SlotCount]string{SlotSalesforce: "acc_1"}},
		{CanonicalID: "CUST-B", IDs: [SlotCount]string{SlotSalesforce: "acc_2", SlotIntacct: "C-2"}},
	}
	snap := &staging.Snapshot{
		Accounts:         []staging.Account{{ID: "acc_1"}, {ID: "acc_2"}, {ID: "acc_3"}},
		IntacctCustomers: []staging.IntacctCustomer{{ID: "C-2"}, {ID: "C-3", SalesforceAccountID: "acc_3"}, {ID: "C-4"}},
		Organizations:    []staging.Organization{{ID: "org_1", SalesforceAccountID: "acc_1"}, {ID: "org_3", SalesforceAccountID: "acc_3"}},
	}

	res := NewResolver().Resolve(snap, seeds)

	seen := make(map[string]bool)
	owners := make(map[Slot]map[string]string)
	for _, ident := range res.Identities {
		assert.False(t, seen[ident.CanonicalID], "duplicate canonical id %s", ident.CanonicalID)
		seen[ident.CanonicalID] = true
		for _, slot := range Slots {
			v := ident.ID(slot)
			if v == "" {
				continue
			}
			if owners[slot] == nil {
				owners[slot] = make(map[string]string)
			}
			if prev, ok := owners[slot][v]; ok && !ident.HasConflicts {
				t.Errorf("%s %s maps to both %s and %s", slot, v, prev, ident.CanonicalID)
			}
			owners[slot][v] = ident.CanonicalID
		}
	}
	assert.Len(t, res.Identities, 4)
	assert.Empty(t, res.Conflicts)
}

func TestSharedForeignIDFlagsEveryOwner(t *testing.T) {
	seeds := []SeedRow{
		{CanonicalID: "CUST-A", IDs: [SlotCount]string{SlotSalesforce: "acc_1", SlotJira: "ACME"}},
		{CanonicalID: "CUST-B", IDs: [SlotCount]string{SlotSalesforce: "acc_2", SlotJira: "ACME"}},
		{CanonicalID: "CUST-C", IDs: [SlotCount]string{SlotSalesforce: "acc_3"}},
	}
	res := NewResolver().Resolve(&staging.Snapshot{}, seeds)

	assert.True(t, find(t, res, "CUST-A").HasConflicts)
	assert.True(t, find(t, res, "CUST-B").HasConflicts)
	assert.False(t, find(t, res, "CUST-C").HasConflicts)

	require.Len(t, res.Conflicts, 1)
	assert.Equal(t, ConflictSharedID, res.Conflicts[0].Kind)
	assert.Equal(t, []string{"CUST-A", "CUST-B"}, res.Conflicts[0].CanonicalIDs)

	id, ok := res.Index.Lookup(SlotJira, "ACME")
	assert.True(t, ok)
	assert.Equal(t, "CUST-A", id)
}

func TestIndexPrefersLowestRank(t *testing.T) {
	seeds := []SeedRow{{CanonicalID: "Z-GT", IDs: [SlotCount]string{SlotStripe: "cus_1"}}}
	snap := &staging.Snapshot{
		StripeCustomers: []staging.StripeCustomer{{ID: "cus_2", SalesforceAccountID: "acc_5"}},
		Accounts:        []staging.Account{{ID: "acc_5"}},
	}
	res := NewResolver().Resolve(snap, seeds)

	id, ok := res.Index.Lookup(SlotStripe, "cus_1")
	assert.True(t, ok)
	assert.Equal(t, "Z-GT", id)

	id, ok = res.Index.Lookup(SlotSalesforce, "acc_5")
	assert.True(t, ok)
	assert.Equal(t, "SALESFORCE:acc_5", id)
	assert.Equal(t, 2, res.Index.Len())
}

func TestCustomRulesStopAtFirstMatch(t *testing.T) {
	calls := 0
	never := Rule{Name: "never", Match: func(Candidate, *SeedIndex) (Match, bool) {
		calls++
		return Match{}, false
	}}
	always := Rule{Name: "always", Match: func(c Candidate, _ *SeedIndex) (Match, bool) {
		return Match{CanonicalID: "ALL", Confidence: 0.1}, true
	}}
	snap := &staging.Snapshot{Organizations: []staging.Organization{{ID: "o1"}, {ID: "o2"}}}

	res := NewResolver(never, always, Rule{Name: "unreachable", Match: func(Candidate, *SeedIndex) (Match, bool) {
		t.Fatal("rule after a match must not run")
		return Match{}, false
	}}).Resolve(snap, nil)

	assert.Equal(t, 2, calls)
	require.Len(t, res.Identities, 1)
	assert.Equal(t, "always", res.Identities[0].Rule)
	assert.True(t, res.Identities[0].HasConflicts)
}
