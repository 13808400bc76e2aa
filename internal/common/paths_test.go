package common

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanPath(t *testing.T) {
	abs, err := CleanPath("data/raw")
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(abs))

	_, err = CleanPath("../etc/passwd")
	assert.Error(t, err)
}

func TestWithin(t *testing.T) {
	base := t.TempDir()

	p, err := Within(base, "stripe/invoices/run_date=2025-01-01/part-0.jsonl")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "stripe", "invoices", "run_date=2025-01-01", "part-0.jsonl"), p)

	_, err = Within(base, "../../outside")
	assert.Error(t, err)
}
