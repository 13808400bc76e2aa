package ui

import (
	"bytes"
	"testing"
	"time"

	"cda/internal/identity"
	"cda/internal/landing"
	"cda/internal/pipeline"
	"cda/internal/staging"
	"cda/internal/unify"
	"cda/pkg/errors"
	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
)

func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev, prevColor, prevNoColor := Output, supportsColor, color.NoColor
	Output, supportsColor, color.NoColor = &buf, false, true
	t.Cleanup(func() {
		Output, supportsColor, color.NoColor = prev, prevColor, prevNoColor
	})
	return &buf
}

func TestColorFuncWithoutTerminal(t *testing.T) {
	captureOutput(t)
	assert.Equal(t, "plain", ColorSuccess("plain"))
}

func TestShowErrorPrintsSuggestions(t *testing.T) {
	buf := captureOutput(t)

	err := errors.New(errors.ErrCodeAuthenticationFailed, "Authentication failed").
		WithSuggestions("Run 'cda setup'")
	ShowError(err)

	out := buf.String()
	assert.Contains(t, out, "ERROR:")
	assert.Contains(t, out, "CDA1003")
	assert.Contains(t, out, "Run 'cda setup'")
	assert.NotContains(t, out, "TIP:")
}

func TestShowErrorFallsBackToKnownHints(t *testing.T) {
	buf := captureOutput(t)
	ShowError(assert.AnError)
	assert.NotContains(t, buf.String(), "TIP:")

	buf.Reset()
	ShowError(errors.New(errors.ErrCodePartitionIncomplete, "latest partition has no _SUCCESS marker"))
	assert.Contains(t, buf.String(), "_SUCCESS marker")
	assert.Contains(t, buf.String(), "TIP:")
}

func TestStatusLines(t *testing.T) {
	buf := captureOutput(t)

	ShowSuccess("published")
	ShowWarning("careful")
	ShowInfo("note")
	PrintKeyValue("Client", "acme")

	out := buf.String()
	assert.Contains(t, out, "SUCCESS: published")
	assert.Contains(t, out, "WARNING: careful")
	assert.Contains(t, out, "INFO: note")
	assert.Contains(t, out, "Client:")
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		duration time.Duration
		expected string
	}{
		{500 * time.Millisecond, "500ms"},
		{45 * time.Second, "45.0s"},
		{5*time.Minute + 30*time.Second, "5m30s"},
		{2*time.Hour + 15*time.Minute, "2h15m"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, formatDuration(tt.duration))
	}
}

func TestProgressBar(t *testing.T) {
	buf := captureOutput(t)

	pb := NewProgressBar(2)
	pb.Update(1, "FCT_COST_EVENTS", true)
	pb.Update(2, "FCT_REVENUE_EVENTS", false)
	pb.Finish()

	assert.Equal(t, 1, pb.successCount)
	assert.Equal(t, 1, pb.failureCount)
	out := buf.String()
	assert.Contains(t, out, "[2/2] FCT_REVENUE_EVENTS")
	assert.Contains(t, out, "1 failed")
}

func TestSpinnerStopIsIdempotent(t *testing.T) {
	buf := captureOutput(t)

	s := NewSpinner("Computing")
	s.Start()
	s.Stop(true, "Computed")
	s.Stop(false, "ignored")

	assert.Contains(t, buf.String(), "Computed")
	assert.NotContains(t, buf.String(), "ignored")
}

func TestRenderRunSummary(t *testing.T) {
	captureOutput(t)
	res := &pipeline.Result{
		Manifest: pipeline.Manifest{
			RunID:         "run-1",
			Client:        "acme",
			AsOf:          "2025-02-28",
			Tables:        []pipeline.TableManifest{{Name: "DIM_CUSTOMER_IDENTITY", Rows: 3, Digest: "0123456789abcdef"}},
			MissingTables: []string{"jira/issues"},
			Conflicts:     1,
		},
		Unified: &unify.Result{Report: unify.Report{Unresolved: map[string]int{"harvest/time_entries": 2}}},
	}

	var buf bytes.Buffer
	RenderRunSummary(&buf, res)
	out := buf.String()
	assert.Contains(t, out, "as_of=2025-02-28")
	assert.Contains(t, out, "DIM_CUSTOMER_IDENTITY")
	assert.Contains(t, out, "0123456789ab")
	assert.NotContains(t, out, "0123456789abc")
	assert.Contains(t, out, "jira/issues")
	assert.Contains(t, out, "2 events excluded")
	assert.Contains(t, out, "1 identity conflicts")
}

func TestRenderValidation(t *testing.T) {
	captureOutput(t)
	report := &landing.ValidationReport{Tables: []landing.TableValidation{
		{Table: landing.TableRef{System: "stripe", Entity: "customers"}, Complete: true, Files: 1, Records: 10,
			RunDate: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)},
		{Table: landing.TableRef{System: "jira", Entity: "issues"}, Missing: true},
		{Table: landing.TableRef{System: "zendesk", Entity: "tickets"}, Problems: []string{"no _SUCCESS marker"}},
	}}

	var buf bytes.Buffer
	RenderValidation(&buf, report)
	out := buf.String()
	assert.Contains(t, out, "2025-03-01")
	assert.Contains(t, out, "MISSING")
	assert.Contains(t, out, "FAILED")
	assert.Contains(t, out, "no _SUCCESS marker")
}

func TestRenderStagingReport(t *testing.T) {
	captureOutput(t)
	report := &staging.Report{Tables: []staging.TableStats{
		{Table: landing.TableRef{System: "stripe", Entity: "customers"}, Raw: 6, Malformed: 1, Keyless: 1, Duplicates: 2, Kept: 2},
		{Table: landing.TableRef{System: "jira", Entity: "issues"}, Missing: true},
	}}

	var buf bytes.Buffer
	RenderStagingReport(&buf, report)
	assert.Contains(t, buf.String(), "stripe/customers")
	assert.Contains(t, buf.String(), "missing")
}

func TestRenderIdentitiesAndConflicts(t *testing.T) {
	captureOutput(t)
	ident := identity.Identity{CanonicalID: "GT-1", CustomerName: "Acme", Rank: 1, Rule: "ground-truth",
		HasConflicts: true, ConflictSlots: []identity.Slot{identity.SlotStripe}}
	ident.IDs[identity.SlotStripe] = "cus_1"

	var buf bytes.Buffer
	RenderIdentities(&buf, []identity.Identity{ident})
	assert.Contains(t, buf.String(), "GT-1")
	assert.Contains(t, buf.String(), "cus_1")

	buf.Reset()
	RenderConflicts(&buf, nil)
	assert.Contains(t, buf.String(), "No identity conflicts")

	buf.Reset()
	RenderConflicts(&buf, []identity.Conflict{{
		Kind: identity.ConflictSlotValues, Slot: identity.SlotStripe,
		CanonicalIDs: []string{"GT-1"}, Values: []string{"cus_1", "cus_2"},
	}})
	assert.Contains(t, buf.String(), "SLOT_VALUES")
	assert.Contains(t, buf.String(), "cus_1, cus_2")
}
