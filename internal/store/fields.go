package store

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// fieldName restricts order and filter fields to plain identifiers
var fieldName = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// GetString extracts a string value from a record
func GetString(r Record, k string) (string, bool) {
	if v, ok := r[k]; ok {
		if s, ok2 := v.(string); ok2 {
			return s, true
		}
	}
	return "", false
}

// Text renders a field value the way equality filters compare it
func Text(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}

// NowRFC3339 returns the current UTC time in the format stored in created_at
func NowRFC3339() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

// prepareInsert validates fields against the schema and returns the record
// to store with a fresh id and created_at
func prepareInsert(s Schema, fields Record) (Record, error) {
	rec := make(Record, len(fields)+2)
	for k, v := range fields {
		rec[k] = v
	}
	for _, f := range s.Required {
		if Text(rec[f]) == "" {
			return nil, fmt.Errorf("%w: %s is required", ErrInvalidRecord, f)
		}
	}
	if email, ok := GetString(rec, "email"); ok {
		rec["email"] = strings.ToLower(strings.TrimSpace(email))
	}
	rec["id"] = uuid.New().String()
	if _, ok := GetString(rec, "created_at"); !ok {
		rec["created_at"] = NowRFC3339()
	}
	return rec, nil
}

// prepareUpdate drops fields a client may not change
func prepareUpdate(fields Record) Record {
	out := make(Record, len(fields))
	for k, v := range fields {
		if k == "id" || k == "created_at" {
			continue
		}
		out[k] = v
	}
	if email, ok := GetString(out, "email"); ok {
		out["email"] = strings.ToLower(strings.TrimSpace(email))
	}
	return out
}

// ParseOrder splits "<field>.<asc|desc>"
func ParseOrder(order string) (field string, desc bool, err error) {
	field, dir, found := strings.Cut(order, ".")
	if !found {
		dir = "asc"
	}
	if !fieldName.MatchString(field) {
		return "", false, fmt.Errorf("%w: invalid order field %q", ErrInvalidRecord, field)
	}
	switch dir {
	case "asc":
		return field, false, nil
	case "desc":
		return field, true, nil
	default:
		return "", false, fmt.Errorf("%w: invalid order direction %q", ErrInvalidRecord, dir)
	}
}

// ValidField reports whether name can be used in filters and orders
func ValidField(name string) bool {
	return fieldName.MatchString(name)
}

// applyQuery filters, sorts and limits records in memory
func applyQuery(s Schema, records []Record, q Query) ([]Record, error) {
	out := records[:0:0]
	for _, r := range records {
		if matches(r, q.Eq) {
			out = append(out, r)
		}
	}

	order := q.Order
	if order == "" {
		order = s.DefaultOrder
	}
	if order != "" {
		field, desc, err := ParseOrder(order)
		if err != nil {
			return nil, err
		}
		sort.SliceStable(out, func(i, j int) bool {
			c := compare(out[i][field], out[j][field])
			if c == 0 {
				c = strings.Compare(Text(out[i]["id"]), Text(out[j]["id"]))
			}
			if desc {
				return c > 0
			}
			return c < 0
		})
	}

	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func matches(r Record, eq map[string]string) bool {
	for field, want := range eq {
		if !strings.EqualFold(Text(r[field]), want) {
			return false
		}
	}
	return true
}

func compare(a, b any) int {
	fa, aok := a.(float64)
	fb, bok := b.(float64)
	if aok && bok {
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		default:
			return 0
		}
	}
	return strings.Compare(Text(a), Text(b))
}
