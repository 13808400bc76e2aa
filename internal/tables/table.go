// Package tables holds the in-memory representation of a derived warehouse table.
package tables

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Column types understood by the sinks
const (
	TypeString    = "STRING"
	TypeNumber    = "NUMBER(38,4)"
	TypeInteger   = "NUMBER(38,0)"
	TypeBoolean   = "BOOLEAN"
	TypeDate      = "DATE"
	TypeTimestamp = "TIMESTAMP_NTZ"
)

// CalculatedAtColumn is excluded from content digests
const CalculatedAtColumn = "CALCULATED_AT"

const nullKeyToken = "_dbt_utils_surrogate_key_null_"

type Column struct {
	Name string
	Type string
}

// Table is a fully materialized derived table. Row values are nil, string, bool,
// int, int64, float64 or time.Time.
type Table struct {
	Name    string
	Columns []Column
	Rows    [][]interface{}
}

// ColumnIndex returns the position of a column or -1
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// ColumnNames returns the column names in order
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Digest hashes every row except the CALCULATED_AT column. Two runs over the same
// snapshot must produce the same digest.
func (t *Table) Digest() string {
	skip := t.ColumnIndex(CalculatedAtColumn)
	h := sha256.New()
	for _, row := range t.Rows {
		for i, v := range row {
			if i == skip {
				continue
			}
			h.Write([]byte(FormatValue(v)))
			h.Write([]byte{0x1f})
		}
		h.Write([]byte{0x1e})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// SurrogateKey hashes natural key values the way dbt_utils.generate_surrogate_key does:
// md5 over the values joined with '-', nulls replaced by a fixed token.
func SurrogateKey(values ...interface{}) string {
	parts := make([]string, len(values))
	for i, v := range values {
		if v == nil {
			parts[i] = nullKeyToken
			continue
		}
		parts[i] = FormatValue(v)
	}
	sum := md5.Sum([]byte(strings.Join(parts, "-"))) // #nosec G401 - key derivation, not security
	return hex.EncodeToString(sum[:])
}

// FormatValue renders a cell as text. Dates without a clock part render as YYYY-MM-DD.
func FormatValue(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case time.Time:
		if x.Hour() == 0 && x.Minute() == 0 && x.Second() == 0 && x.Nanosecond() == 0 {
			return x.Format("2006-01-02")
		}
		return x.UTC().Format(time.RFC3339)
	default:
		return fmt.Sprintf("%v", x)
	}
}
