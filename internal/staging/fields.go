package staging

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// payload is a decoded landing record. Nested values are addressed with dotted paths
// such as "metadata.salesforce_account_id".
type payload map[string]interface{}

func decodePayload(raw json.RawMessage) (payload, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var p payload
	if err := dec.Decode(&p); err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("payload is not an object")
	}
	return p, nil
}

func (p payload) lookup(path string) (interface{}, bool) {
	var cur interface{} = map[string]interface{}(p)
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok || cur == nil {
			return nil, false
		}
	}
	return cur, true
}

// str returns the first non-empty value among paths rendered as text
func (p payload) str(paths ...string) string {
	for _, path := range paths {
		v, ok := p.lookup(path)
		if !ok {
			continue
		}
		var s string
		switch x := v.(type) {
		case string:
			s = strings.TrimSpace(x)
		case json.Number:
			s = x.String()
		case bool:
			s = strconv.FormatBool(x)
		case map[string]interface{}:
			// expanded references such as {"id": 42, "name": "..."}
			if id, ok := x["id"]; ok && id != nil {
				s = fmt.Sprintf("%v", id)
			}
		}
		if s != "" {
			return s
		}
	}
	return ""
}

func (p payload) decimal(paths ...string) decimal.Decimal {
	for _, path := range paths {
		v, ok := p.lookup(path)
		if !ok {
			continue
		}
		switch x := v.(type) {
		case json.Number:
			if d, err := decimal.NewFromString(x.String()); err == nil {
				return d
			}
		case string:
			if d, err := decimal.NewFromString(strings.TrimSpace(x)); err == nil {
				return d
			}
		}
	}
	return decimal.Zero
}

// minorUnits reads an integer amount in pence/cents and converts it to major units
func (p payload) minorUnits(paths ...string) decimal.Decimal {
	return p.decimal(paths...).Shift(-2)
}

func (p payload) integer(paths ...string) int {
	return int(p.decimal(paths...).IntPart())
}

func (p payload) boolean(paths ...string) bool {
	for _, path := range paths {
		v, ok := p.lookup(path)
		if !ok {
			continue
		}
		switch x := v.(type) {
		case bool:
			return x
		case string:
			b, err := strconv.ParseBool(strings.TrimSpace(x))
			if err == nil {
				return b
			}
		case json.Number:
			return x.String() != "0"
		}
	}
	return false
}

func (p payload) time(paths ...string) time.Time {
	for _, path := range paths {
		v, ok := p.lookup(path)
		if !ok {
			continue
		}
		if t, ok := ParseTime(v); ok {
			return t
		}
	}
	return time.Time{}
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.000-0700",
	"2006-01-02T15:04:05-0700",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"01/02/2006",
}

// ParseTime accepts RFC3339, Salesforce style offsets, plain and US dates, and unix seconds.
// All results are UTC.
func ParseTime(v interface{}) (time.Time, bool) {
	switch x := v.(type) {
	case json.Number:
		n, err := x.Int64()
		if err != nil {
			return time.Time{}, false
		}
		return time.Unix(n, 0).UTC(), true
	case int64:
		return time.Unix(x, 0).UTC(), true
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return time.Time{}, false
		}
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t.UTC(), true
			}
		}
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return time.Unix(n, 0).UTC(), true
		}
	}
	return time.Time{}, false
}

// Day truncates t to its UTC calendar date
func Day(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
