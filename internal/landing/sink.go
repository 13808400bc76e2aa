package landing

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cda/internal/common"
	"cda/internal/tables"
	"cda/pkg/errors"
)

// DirSink writes each derived table to <dir>/<table>.jsonl
type DirSink struct {
	dir string
}

// NewDirSink creates the output directory if needed
func NewDirSink(dir string) (*DirSink, error) {
	cleaned, err := common.CleanPath(dir)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInvalidInput, "Invalid output directory")
	}
	if err := os.MkdirAll(cleaned, common.DirPermissionNormal); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeFilePermission, "Failed to create output directory").
			WithContext("path", cleaned)
	}
	return &DirSink{dir: cleaned}, nil
}

// Path returns where a table is written
func (d *DirSink) Path(table string) string {
	return filepath.Join(d.dir, strings.ToLower(table)+".jsonl")
}

// ReplaceTable writes the table to a temporary file and renames it over the previous
// output, so readers never see a partial file.
func (d *DirSink) ReplaceTable(ctx context.Context, t *tables.Table) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	final := d.Path(t.Name)
	tmp, err := os.CreateTemp(d.dir, "."+strings.ToLower(t.Name)+"-*.tmp")
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeFileOperation, "Failed to create temporary output file")
	}
	defer os.Remove(tmp.Name())

	w := bufio.NewWriter(tmp)
	names := t.ColumnNames()
	for _, row := range t.Rows {
		obj := make(map[string]interface{}, len(names))
		for i, name := range names {
			obj[name] = jsonValue(row[i])
		}
		line, err := json.Marshal(obj)
		if err != nil {
			tmp.Close()
			return errors.Wrap(err, errors.ErrCodeInternal, "Failed to encode output row").
				WithContext("table", t.Name)
		}
		w.Write(line)
		w.WriteByte('\n')
	}

	if err := w.Flush(); err != nil {
		tmp.Close()
		return errors.Wrap(err, errors.ErrCodeFileOperation, "Failed to write output file")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, errors.ErrCodeFileOperation, "Failed to close output file")
	}
	if err := os.Chmod(tmp.Name(), common.FilePermissionNormal); err != nil {
		return errors.Wrap(err, errors.ErrCodeFilePermission, "Failed to set output permissions")
	}
	if err := os.Rename(tmp.Name(), final); err != nil {
		return errors.Wrap(err, errors.ErrCodeFileOperation, fmt.Sprintf("Failed to replace %s", final))
	}
	return nil
}

func jsonValue(v interface{}) interface{} {
	if v == nil {
		return nil
	}
	switch v.(type) {
	case string, bool, int, int64, float64:
		return v
	default:
		return tables.FormatValue(v)
	}
}
