package cmd

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"cda/internal/testutil"
	"cda/internal/ui"
	"cda/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rec = testutil.Rec

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	prev := ui.Output
	ui.Output = io.Discard
	t.Cleanup(func() { ui.Output = prev })

	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := testutil.WriteFile(t, t.TempDir(), "config.yaml", content)
	t.Setenv("CDA_CONFIG", path)
	return path
}

func landingFixture(t *testing.T, complete bool) string {
	t.Helper()
	dir := testutil.NewLandingDir(t)
	dir.Write("salesforce", "accounts", "2025-03-01", "accounts.jsonl", []rec{
		{"Id": "001A", "Name": "Acme Ltd"},
		{"Id": "001B", "Name": "Globex"},
	}, true)
	dir.Write("stripe", "customers", "2025-03-01", "customers.jsonl", []rec{
		{"id": "cus_1", "metadata": rec{"salesforce_account_id": "001A"}},
		{"id": "cus_2", "metadata": rec{"salesforce_account_id": "001B"}},
	}, true)
	dir.Write("harvest", "clients", "2025-03-01", "clients.jsonl", []rec{
		{"id": 3, "name": "Acme", "salesforce_account_id": "001A"},
	}, true)
	dir.Write("harvest", "time_entries", "2025-03-01", "entries.jsonl", []rec{
		{"id": 1, "client_id": 3, "spent_date": "2025-02-10", "hours": 3, "cost_rate": 50},
	}, complete)
	return dir.Root
}

func seedFile(t *testing.T) string {
	return testutil.WriteFile(t, t.TempDir(), "seed.csv",
		"canonical_id,customer_name,salesforce_account_id,stripe_customer_id\n"+
			"GT-1,Acme Group,001A,cus_2\n")
}

func TestRootHelp(t *testing.T) {
	out, err := execute(t, "--help")
	require.NoError(t, err)
	for _, name := range []string{"run", "validate", "identities", "setup", "config", "version"} {
		assert.Contains(t, out, name)
	}
}

func TestInvalidCommand(t *testing.T) {
	_, err := execute(t, "invalid-command")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown command")
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "cda version dev")
}

func TestConfigShowMasksPassword(t *testing.T) {
	writeConfig(t, "client_name: acme\nsnowflake:\n  account: xy12345\n  password: hunter2\n")
	t.Setenv("CDA_SOURCE_PATH", "/data/landing")

	out, err := execute(t, "config", "show")
	require.NoError(t, err)
	assert.NotContains(t, out, "hunter2")
	assert.Contains(t, out, "********")
	assert.Contains(t, out, "/data/landing")
	assert.Contains(t, out, "client_name: acme")
}

func TestRunWritesTablesAndManifest(t *testing.T) {
	writeConfig(t, "client_name: acme\nlogging:\n  level: error\n")
	outDir := t.TempDir()
	manifest := filepath.Join(t.TempDir(), "manifest.json")

	out, err := execute(t, "run",
		"--source-path", landingFixture(t, true),
		"--output-path", outDir,
		"--seed", seedFile(t),
		"--manifest", manifest,
		"--project-dir", t.TempDir(),
	)
	require.NoError(t, err)
	assert.Contains(t, out, "DIM_CUSTOMER_IDENTITY")
	assert.Contains(t, out, "as_of=2025-02-10")

	for _, name := range []string{"dim_customer_identity.jsonl", "fct_cost_events.jsonl", "fct_project_performance.jsonl"} {
		_, err := os.Stat(filepath.Join(outDir, name))
		assert.NoError(t, err, name)
	}

	data, err := os.ReadFile(manifest)
	require.NoError(t, err)
	var decoded struct {
		Client    string `json:"client"`
		AsOf      string `json:"as_of"`
		Conflicts int    `json:"identity_conflicts"`
		Tables    []struct {
			Name string `json:"name"`
			Rows int    `json:"rows"`
		} `json:"tables"`
	}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "acme", decoded.Client)
	assert.Len(t, decoded.Tables, 10)
	assert.Equal(t, 1, decoded.Tables[1].Rows)
}

func TestRunDryRunWritesNothing(t *testing.T) {
	writeConfig(t, "client_name: acme\nlogging:\n  level: error\n")
	outDir := filepath.Join(t.TempDir(), "out")

	_, err := execute(t, "run", "--dry-run",
		"--source-path", landingFixture(t, true),
		"--output-path", outDir,
		"--seed", seedFile(t),
	)
	require.NoError(t, err)
	_, err = os.Stat(outDir)
	assert.True(t, os.IsNotExist(err))
}

func TestRunRejectsIncompleteSnapshot(t *testing.T) {
	writeConfig(t, "client_name: acme\nlogging:\n  level: error\n")
	outDir := filepath.Join(t.TempDir(), "out")

	_, err := execute(t, "run",
		"--source-path", landingFixture(t, false),
		"--output-path", outDir,
		"--seed", seedFile(t),
	)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodePartitionIncomplete, errors.GetErrorCode(err))
	_, statErr := os.Stat(outDir)
	assert.True(t, os.IsNotExist(statErr))
}

func TestRunRequiresSeed(t *testing.T) {
	writeConfig(t, "client_name: acme\nlogging:\n  level: error\n")
	_, err := execute(t, "run", "--source-path", landingFixture(t, true), "--output-path", t.TempDir())
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeConfigInvalid, errors.GetErrorCode(err))
}

func TestValidate(t *testing.T) {
	writeConfig(t, "client_name: acme\nlogging:\n  level: error\n")

	out, err := execute(t, "validate", "--source-path", landingFixture(t, true))
	require.NoError(t, err)
	assert.Contains(t, out, "stripe/customers")
	assert.Contains(t, out, "MISSING")

	_, err = execute(t, "validate", "--source-path", landingFixture(t, false))
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeValidationFailed, errors.GetErrorCode(err))
}

func TestIdentitiesConflictsOnly(t *testing.T) {
	writeConfig(t, "client_name: acme\nlogging:\n  level: error\n")

	seed := testutil.WriteFile(t, t.TempDir(), "seed.csv",
		"canonical_id,customer_name,salesforce_account_id,stripe_customer_id\n"+
			"GT-1,Acme Group,001A,\n"+
			"GT-2,Acme Duplicate,001A,cus_9\n")

	out, err := execute(t, "identities", "--conflicts-only",
		"--source-path", landingFixture(t, true),
		"--seed", seed,
	)
	require.NoError(t, err)
	assert.Contains(t, out, "SHARED_ID")
	assert.Contains(t, out, "GT-1, GT-2")
	assert.NotContains(t, out, "canonical customers")
}
