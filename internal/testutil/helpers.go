package testutil

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"cda/internal/common"
	"github.com/klauspost/compress/gzip"
)

// Rec is a JSON landing payload
type Rec = map[string]interface{}

// LandingDir writes landing partitions under a temporary root
type LandingDir struct {
	t    *testing.T
	Root string
}

// NewLandingDir creates an empty landing root
func NewLandingDir(t *testing.T) *LandingDir {
	t.Helper()
	return &LandingDir{t: t, Root: t.TempDir()}
}

// Write stores records as <system>/<entity>/run_date=<runDate>/<file> and, when complete,
// drops a _SUCCESS marker next to it. Files ending in .gz are gzip compressed.
func (l *LandingDir) Write(system, entity, runDate, file string, records []Rec, complete bool) string {
	l.t.Helper()

	var buf bytes.Buffer
	for _, r := range records {
		line, err := json.Marshal(r)
		if err != nil {
			l.t.Fatalf("Failed to marshal record: %v", err)
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}
	return l.WriteRaw(system, entity, runDate, file, buf.Bytes(), complete)
}

// WriteRaw stores bytes verbatim (compressed when file ends in .gz)
func (l *LandingDir) WriteRaw(system, entity, runDate, file string, content []byte, complete bool) string {
	l.t.Helper()

	dir := filepath.Join(l.Root, system, entity, "run_date="+runDate)
	if err := os.MkdirAll(dir, common.DirPermissionNormal); err != nil {
		l.t.Fatalf("Failed to create partition: %v", err)
	}

	if filepath.Ext(file) == ".gz" {
		var gz bytes.Buffer
		w := gzip.NewWriter(&gz)
		if _, err := w.Write(content); err != nil {
			l.t.Fatalf("Failed to compress: %v", err)
		}
		if err := w.Close(); err != nil {
			l.t.Fatalf("Failed to compress: %v", err)
		}
		content = gz.Bytes()
	}

	path := filepath.Join(dir, file)
	if err := os.WriteFile(path, content, common.FilePermissionNormal); err != nil {
		l.t.Fatalf("Failed to write %s: %v", path, err)
	}
	if complete {
		if err := os.WriteFile(filepath.Join(dir, "_SUCCESS"), []byte(`{"status":"complete"}`), common.FilePermissionNormal); err != nil {
			l.t.Fatalf("Failed to write marker: %v", err)
		}
	}
	return path
}

// WriteFile writes an arbitrary file relative to dir and returns its path
func WriteFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), common.DirPermissionNormal); err != nil {
		t.Fatalf("Failed to create directories: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), common.FilePermissionNormal); err != nil {
		t.Fatalf("Failed to write file %s: %v", path, err)
	}
	return path
}
