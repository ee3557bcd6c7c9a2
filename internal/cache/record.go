package cache

import (
	"fmt"
	"strings"
)

// Record is one row of a collection keyed by field name.
// The "id" field is its identifier.
type Record = map[string]any

// TempPrefix marks identifiers generated locally for unconfirmed creates
const TempPrefix = "temp-"

// IsTemp reports whether id is a locally generated placeholder
func IsTemp(id string) bool {
	return strings.HasPrefix(id, TempPrefix)
}

// IDOf returns the record's id as a string, or "" when it has none.
// Numeric ids decoded from JSON are rendered without a fraction.
func IDOf(r Record) string {
	if r == nil {
		return ""
	}
	switch v := r["id"].(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		if v == float64(int64(v)) {
			return fmt.Sprintf("%d", int64(v))
		}
		return fmt.Sprintf("%v", v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// Clone returns a shallow copy of r
func Clone(r Record) Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

func cloneAll(records []Record) []Record {
	out := make([]Record, len(records))
	for i, r := range records {
		out[i] = Clone(r)
	}
	return out
}

func merge(dst, src Record) {
	for k, v := range src {
		dst[k] = v
	}
}

func indexOf(records []Record, id string) int {
	for i, r := range records {
		if IDOf(r) == id {
			return i
		}
	}
	return -1
}

func removeAt(records []Record, i int) []Record {
	out := make([]Record, 0, len(records)-1)
	out = append(out, records[:i]...)
	return append(out, records[i+1:]...)
}

func insertAt(records []Record, i int, r Record) []Record {
	if i < 0 || i > len(records) {
		i = len(records)
	}
	out := make([]Record, 0, len(records)+1)
	out = append(out, records[:i]...)
	out = append(out, r)
	return append(out, records[i:]...)
}
