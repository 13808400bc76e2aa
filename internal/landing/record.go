// Package landing reads raw landing records from object storage and writes derived
// tables back out as files.
package landing

import (
	"context"
	"encoding/json"
	"time"
)

// RawRecord is one row of a raw landing table
type RawRecord struct {
	SourceFile string
	RowNumber  int64
	IngestedAt time.Time
	Payload    json.RawMessage
}

// Source yields the raw records of one (system, entity) landing table.
// A table that does not exist returns an error with code ErrCodeLandingTableMissing.
type Source interface {
	Records(ctx context.Context, system, entity string) ([]RawRecord, error)
}

// TableRef names a landing table
type TableRef struct {
	System string
	Entity string
}

func (t TableRef) String() string {
	return t.System + "/" + t.Entity
}

// Source systems
const (
	SystemSalesforce = "salesforce"
	SystemStripe     = "stripe"
	SystemIntacct    = "intacct"
	SystemZendesk    = "zendesk"
	SystemHarvest    = "harvest"
	SystemJira       = "jira"
	SystemMixpanel   = "mixpanel"
)

// Tables lists every landing table the pipeline consumes
var Tables = []TableRef{
	{SystemSalesforce, "accounts"},
	{SystemSalesforce, "opportunities"},
	{SystemStripe, "customers"},
	{SystemStripe, "invoices"},
	{SystemStripe, "charges"},
	{SystemStripe, "refunds"},
	{SystemStripe, "disputes"},
	{SystemIntacct, "customers"},
	{SystemIntacct, "revenue_entries"},
	{SystemZendesk, "organizations"},
	{SystemZendesk, "tickets"},
	{SystemHarvest, "clients"},
	{SystemHarvest, "projects"},
	{SystemHarvest, "time_entries"},
	{SystemJira, "issues"},
	{SystemMixpanel, "companies"},
	{SystemMixpanel, "events"},
}

var filePrefixes = map[string]string{
	"sf":         SystemSalesforce,
	"salesforce": SystemSalesforce,
	"stripe":     SystemStripe,
	"intacct":    SystemIntacct,
	"zendesk":    SystemZendesk,
	"harvest":    SystemHarvest,
	"jira":       SystemJira,
	"mixpanel":   SystemMixpanel,
}

// SystemForPrefix maps an export file prefix such as "sf" to its source system
func SystemForPrefix(prefix string) (string, bool) {
	system, ok := filePrefixes[prefix]
	return system, ok
}
