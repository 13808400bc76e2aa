package ui

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"cda/internal/identity"
	"cda/internal/landing"
	"cda/internal/pipeline"
	"cda/internal/staging"
	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
)

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetBorder(false)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	return table
}

func shortDigest(d string) string {
	if len(d) > 12 {
		return d[:12]
	}
	return d
}

// RenderRunSummary prints the row count and content digest of every output table
func RenderRunSummary(w io.Writer, res *pipeline.Result) {
	m := res.Manifest
	fmt.Fprintf(w, "Run %s  client=%s  as_of=%s", m.RunID, m.Client, valueOr(m.AsOf, "-"))
	if m.Revision != "" {
		fmt.Fprintf(w, "  revision=%s", m.Revision)
	}
	fmt.Fprintln(w)

	table := newTable(w, "Table", "Rows", "Digest")
	for _, t := range m.Tables {
		table.Append([]string{t.Name, strconv.Itoa(t.Rows), shortDigest(t.Digest)})
	}
	table.Render()

	if len(m.MissingTables) > 0 {
		fmt.Fprintf(w, "%s no landing data for %s\n", color.YellowString("!"), strings.Join(m.MissingTables, ", "))
	}
	if n := res.Unified.Report.UnresolvedTotal(); n > 0 {
		fmt.Fprintf(w, "%s %d events excluded without a canonical customer\n", color.YellowString("!"), n)
	}
	if m.Conflicts > 0 {
		fmt.Fprintf(w, "%s %d identity conflicts need review (cda identities --conflicts-only)\n", color.YellowString("!"), m.Conflicts)
	}
}

// RenderStagingReport prints per-table staging counts
func RenderStagingReport(w io.Writer, report *staging.Report) {
	table := newTable(w, "Landing table", "Raw", "Malformed", "Keyless", "Duplicates", "Kept")
	for _, s := range report.Tables {
		if s.Missing {
			table.Append([]string{s.Table.String(), color.YellowString("missing"), "", "", "", ""})
			continue
		}
		table.Append([]string{
			s.Table.String(),
			strconv.Itoa(s.Raw),
			strconv.Itoa(s.Malformed),
			strconv.Itoa(s.Keyless),
			strconv.Itoa(s.Duplicates),
			strconv.Itoa(s.Kept),
		})
	}
	table.Render()
}

// RenderValidation prints the bronze validation report
func RenderValidation(w io.Writer, report *landing.ValidationReport) {
	table := newTable(w, "Landing table", "Status", "Run date", "Files", "Records", "Problems")
	for _, v := range report.Tables {
		status := color.GreenString("OK")
		switch {
		case v.Missing:
			status = color.YellowString("MISSING")
		case !v.OK():
			status = color.RedString("FAILED")
		}
		runDate := ""
		if !v.RunDate.IsZero() {
			runDate = v.RunDate.Format("2006-01-02")
		}
		table.Append([]string{
			v.Table.String(),
			status,
			runDate,
			strconv.Itoa(v.Files),
			strconv.Itoa(v.Records),
			strings.Join(v.Problems, "; "),
		})
	}
	table.Render()
}

// RenderIdentities prints canonical identities with their foreign ids
func RenderIdentities(w io.Writer, identities []identity.Identity) {
	header := []string{"Canonical ID", "Name", "Rank", "Rule"}
	for _, s := range identity.Slots {
		header = append(header, s.String())
	}
	header = append(header, "Conflicts")

	table := newTable(w, header...)
	for _, ident := range identities {
		row := []string{ident.CanonicalID, ident.CustomerName, strconv.Itoa(int(ident.Rank)), ident.Rule}
		for _, s := range identity.Slots {
			row = append(row, ident.ID(s))
		}
		conflicts := ""
		if ident.HasConflicts {
			slots := make([]string, len(ident.ConflictSlots))
			for i, s := range ident.ConflictSlots {
				slots[i] = s.String()
			}
			conflicts = color.RedString(strings.Join(slots, ","))
		}
		table.Append(append(row, conflicts))
	}
	table.Render()
}

// RenderConflicts prints identity conflicts for manual review
func RenderConflicts(w io.Writer, conflicts []identity.Conflict) {
	if len(conflicts) == 0 {
		fmt.Fprintln(w, color.GreenString("No identity conflicts"))
		return
	}
	sorted := append([]identity.Conflict(nil), conflicts...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Kind < sorted[j].Kind })

	table := newTable(w, "Kind", "Slot", "Canonical IDs", "Values")
	for _, c := range sorted {
		table.Append([]string{
			string(c.Kind),
			c.Slot.String(),
			strings.Join(c.CanonicalIDs, ", "),
			strings.Join(c.Values, ", "),
		})
	}
	table.Render()
}

func valueOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
