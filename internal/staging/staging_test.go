package staging

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"cda/internal/landing"
	"cda/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memSource map[string][]landing.RawRecord

func (m memSource) Records(ctx context.Context, system, entity string) ([]landing.RawRecord, error) {
	recs, ok := m[system+"/"+entity]
	if !ok {
		return nil, errors.New(errors.ErrCodeLandingTableMissing, "missing")
	}
	return recs, nil
}

func raw(t *testing.T, file string, row int64, day int, v interface{}) landing.RawRecord {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return landing.RawRecord{
		SourceFile: file,
		RowNumber:  row,
		IngestedAt: time.Date(2025, 1, day, 0, 0, 0, 0, time.UTC),
		Payload:    data,
	}
}

func TestLoadKeepsLatestSnapshot(t *testing.T) {
	src := memSource{
		"stripe/customers": {
			raw(t, "a.jsonl", 1, 2, map[string]interface{}{"id": "cus_1", "name": "Newest"}),
			raw(t, "a.jsonl", 2, 1, map[string]interface{}{"id": "cus_1", "name": "Older"}),
			raw(t, "a.jsonl", 3, 2, map[string]interface{}{"id": "cus_2", "name": "First row"}),
			raw(t, "a.jsonl", 4, 2, map[string]interface{}{"id": "cus_2", "name": "Later row"}),
			raw(t, "a.jsonl", 5, 2, map[string]interface{}{"name": "No key"}),
			{SourceFile: "a.jsonl", RowNumber: 6, Payload: json.RawMessage(`[1,2]`)},
		},
	}

	snap, report, err := Load(context.Background(), src, nil)
	require.NoError(t, err)

	require.Len(t, snap.StripeCustomers, 2)
	assert.Equal(t, "Newest", snap.StripeCustomers[0].Name)
	assert.Equal(t, "Later row", snap.StripeCustomers[1].Name)

	assert.Len(t, report.Tables, len(landing.Tables))
	assert.Equal(t, 1, report.Keyless())
	assert.Len(t, report.Missing(), len(landing.Tables)-1)

	for _, stats := range report.Tables {
		if stats.Table.String() == "stripe/customers" {
			assert.Equal(t, 6, stats.Raw)
			assert.Equal(t, 1, stats.Malformed)
			assert.Equal(t, 2, stats.Duplicates)
			assert.Equal(t, 2, stats.Kept)
		}
	}
}

func TestLoadPropagatesSourceErrors(t *testing.T) {
	src := failingSource{err: errors.New(errors.ErrCodePartitionIncomplete, "incomplete")}
	_, _, err := Load(context.Background(), src, nil)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodePartitionIncomplete, errors.GetErrorCode(err))
}

type failingSource struct{ err error }

func (f failingSource) Records(context.Context, string, string) ([]landing.RawRecord, error) {
	return nil, f.err
}

func TestParsers(t *testing.T) {
	decode := func(s string) payload {
		p, err := decodePayload(json.RawMessage(s))
		require.NoError(t, err)
		return p
	}

	t.Run("stripe invoice uses minor units and unix times", func(t *testing.T) {
		_, inv := parseInvoice(decode(`{"id":"in_1","customer":"cus_1","status":"paid","amount_paid":123456,
			"amount_remaining":0,"currency":"gbp","created":1735689600,"status_transitions":{"paid_at":1736035200}}`))
		assert.True(t, decimal.RequireFromString("1234.56").Equal(inv.AmountPaid))
		assert.Equal(t, "GBP", inv.Currency)
		assert.Equal(t, time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC), inv.PaidAt)
	})

	t.Run("salesforce opportunity", func(t *testing.T) {
		key, o := parseOpportunity(decode(`{"Id":"006A","AccountId":"001A","StageName":"Closed Won","Amount":"12000.00",
			"Contract_Start_Date__c":"2025-01-01","Contract_Term_Months__c":12,"CreatedDate":"2024-12-01T10:00:00.000+0000"}`))
		assert.Equal(t, "006A", key)
		assert.True(t, o.IsWon)
		assert.Equal(t, 12, o.TermMonths)
		assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), o.ContractStart)
	})

	t.Run("zendesk ticket with nested tier", func(t *testing.T) {
		_, tk := parseTicket(decode(`{"id":42,"organization_id":7,"priority":"HIGH","status":"open",
			"custom_fields":{"support_tier":"tier_2","time_spent_minutes":60}}`))
		assert.Equal(t, "42", tk.ID)
		assert.Equal(t, "7", tk.OrganizationID)
		assert.Equal(t, 2, tk.SupportTier)
		assert.Equal(t, "high", tk.Priority)
	})

	t.Run("harvest entry with expanded references", func(t *testing.T) {
		_, e := parseTimeEntry(decode(`{"id":1,"spent_date":"2025-01-15","hours":2.5,"cost_rate":80,
			"project":{"id":10,"name":"Build"},"client":{"id":3}}`))
		assert.Equal(t, "10", e.ProjectID)
		assert.Equal(t, "3", e.ClientID)
		assert.True(t, decimal.NewFromFloat(2.5).Equal(e.Hours))
	})

	t.Run("intacct debit entry", func(t *testing.T) {
		_, e := parseRevenueEntry(decode(`{"RECORDNO":"9","CUSTOMERID":"C1","AMOUNT":"-100","TR_TYPE":"-1","STATE":"Posted","ENTRY_DATE":"01/15/2025"}`))
		assert.Equal(t, -1, e.TrType)
		assert.True(t, e.Posted)
		assert.True(t, decimal.NewFromInt(100).Equal(e.Amount))
	})
}

func TestParseTier(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"1", 1},
		{"tier_3", 3},
		{"Tier 2", 2},
		{"", 0},
		{"4", 0},
		{"gold", 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, parseTier(tt.in), tt.in)
	}
}

func TestParseTime(t *testing.T) {
	want := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	for _, in := range []interface{}{
		"2025-03-01T12:00:00Z",
		"2025-03-01T13:00:00.000+0100",
		"2025-03-01 12:00:00",
		json.Number("1740830400"),
		"1740830400",
	} {
		got, ok := ParseTime(in)
		assert.True(t, ok, in)
		assert.True(t, want.Equal(got), "%v parsed as %v", in, got)
	}

	_, ok := ParseTime("not a date")
	assert.False(t, ok)
}
