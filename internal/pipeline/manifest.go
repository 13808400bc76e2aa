package pipeline

import (
	"encoding/json"
	"os"
	"sort"
	"time"

	"cda/internal/common"
	"cda/internal/git"
	"cda/internal/observability"
	"cda/pkg/errors"
)

// Manifest records what a run produced. Digests ignore CALCULATED_AT, so two runs
// over the same snapshot and parameters carry equal digests.
type Manifest struct {
	RunID          string          `json:"run_id"`
	Client         string          `json:"client"`
	AsOf           string          `json:"as_of"`
	CalculatedAt   time.Time       `json:"calculated_at"`
	Revision       string          `json:"revision,omitempty"`
	Branch         string          `json:"branch,omitempty"`
	Tables         []TableManifest `json:"tables"`
	MissingTables  []string        `json:"missing_tables,omitempty"`
	KeylessRecords int             `json:"keyless_records"`
	Unresolved     map[string]int  `json:"unresolved_events,omitempty"`
	Conflicts      int             `json:"identity_conflicts"`
}

type TableManifest struct {
	Name   string `json:"name"`
	Rows   int    `json:"rows"`
	Digest string `json:"digest"`
}

// Digests maps table name to content digest
func (m Manifest) Digests() map[string]string {
	out := make(map[string]string, len(m.Tables))
	for _, t := range m.Tables {
		out[t.Name] = t.Digest
	}
	return out
}

// WriteFile stores the manifest as indented JSON
func (m Manifest) WriteFile(path string) error {
	cleaned, err := common.CleanPath(path)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInvalidInput, "Invalid manifest path")
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "Failed to encode manifest")
	}
	if err := os.WriteFile(cleaned, append(data, '\n'), common.FilePermissionNormal); err != nil {
		return errors.Wrap(err, errors.ErrCodeFileOperation, "Failed to write manifest").
			WithContext("path", cleaned)
	}
	return nil
}

func buildManifest(runID string, in Input, res *Result, at time.Time, logger *observability.Logger) Manifest {
	m := Manifest{
		RunID:        runID,
		Client:       in.Client,
		CalculatedAt: at,
		Conflicts:    len(res.Identity.Conflicts),
	}
	if !res.Metrics.AsOf.IsZero() {
		m.AsOf = res.Metrics.AsOf.Format("2006-01-02")
	}

	if in.ProjectDir != "" {
		rev, err := git.Describe(in.ProjectDir)
		if err != nil {
			logger.Warnf("Could not read project revision: %v", err)
		}
		m.Revision = rev.String()
		m.Branch = rev.Branch
	}

	for _, t := range res.Tables {
		m.Tables = append(m.Tables, TableManifest{Name: t.Name, Rows: len(t.Rows), Digest: t.Digest()})
	}

	if res.Staging != nil {
		m.KeylessRecords = res.Staging.Keyless()
		for _, ref := range res.Staging.Missing() {
			m.MissingTables = append(m.MissingTables, ref.String())
		}
	}

	for table, n := range res.Unified.Report.Unresolved {
		if m.Unresolved == nil {
			m.Unresolved = make(map[string]int)
		}
		m.Unresolved[table] = n
	}
	sort.Strings(m.MissingTables)
	return m
}
