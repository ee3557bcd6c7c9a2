// Package feed builds the activity feed shown on the dashboard overview:
// recent reservations, incident reports and ledger entries merged into one
// list, newest first.
package feed

import (
	"fmt"
	"slices"
	"time"

	"github.com/erauner12/condoboard/internal/cache"
)

// DefaultLimit is the maximum number of items Build returns
const DefaultLimit = 20

// Item kinds
const (
	KindReservation = "reservation"
	KindIncident    = "incident"
	KindLedger      = "ledger"
)

// Item is one entry of the feed
type Item struct {
	Kind        string
	ID          string
	Title       string
	Description string
	Timestamp   time.Time
	Icon        string
	ColorTag    string
}

// Mapper converts a raw record into a feed item. Records it rejects are skipped.
type Mapper func(r cache.Record) (Item, bool)

// Source is one collection contributing to the feed
type Source struct {
	Records []cache.Record
	Map     Mapper
}

// Build maps every source, concatenates the results in source order, sorts
// them newest first and keeps at most limit items (DefaultLimit when limit
// is not positive). Items with equal timestamps keep their input order.
func Build(limit int, sources ...Source) []Item {
	if limit <= 0 {
		limit = DefaultLimit
	}

	var items []Item
	for _, src := range sources {
		for _, r := range src.Records {
			if item, ok := src.Map(r); ok {
				items = append(items, item)
			}
		}
	}

	slices.SortStableFunc(items, func(a, b Item) int {
		return b.Timestamp.Compare(a.Timestamp)
	})

	if len(items) > limit {
		items = items[:limit]
	}
	return items
}

// Reservations returns the feed source for the reservations collection
func Reservations(records []cache.Record) Source {
	return Source{Records: records, Map: mapReservation}
}

// Incidents returns the feed source for the incidents collection
func Incidents(records []cache.Record) Source {
	return Source{Records: records, Map: mapIncident}
}

// Ledger returns the feed source for the ledger collection
func Ledger(records []cache.Record) Source {
	return Source{Records: records, Map: mapLedger}
}

func mapReservation(r cache.Record) (Item, bool) {
	item := Item{
		Kind:      KindReservation,
		ID:        cache.IDOf(r),
		Title:     "Reservation: " + str(r, "area"),
		Timestamp: timestamp(r, "created_at", "date"),
		Icon:      "calendar-check",
		ColorTag:  "blue",
	}

	desc := str(r, "date")
	if name := str(r, "resident_name"); name != "" {
		desc = name + " on " + desc
	}
	item.Description = desc

	if str(r, "status") == "cancelled" {
		item.Icon = "calendar-xmark"
		item.ColorTag = "gray"
	}
	return item, true
}

func mapIncident(r cache.Record) (Item, bool) {
	item := Item{
		Kind:        KindIncident,
		ID:          cache.IDOf(r),
		Title:       str(r, "title"),
		Description: str(r, "description"),
		Timestamp:   timestamp(r, "created_at"),
		Icon:        "triangle-exclamation",
		ColorTag:    "red",
	}
	if str(r, "status") == "resolved" {
		item.Icon = "circle-check"
		item.ColorTag = "green"
	}
	return item, true
}

func mapLedger(r cache.Record) (Item, bool) {
	amount, ok := number(r["amount"])
	if !ok {
		return Item{}, false
	}

	item := Item{
		Kind:      KindLedger,
		ID:        cache.IDOf(r),
		Title:     str(r, "description"),
		Timestamp: timestamp(r, "created_at", "date"),
	}
	if str(r, "kind") == "expense" {
		item.Description = fmt.Sprintf("-%.2f", amount)
		item.Icon = "arrow-trend-down"
		item.ColorTag = "orange"
	} else {
		item.Description = fmt.Sprintf("+%.2f", amount)
		item.Icon = "arrow-trend-up"
		item.ColorTag = "green"
	}
	return item, true
}

func str(r cache.Record, field string) string {
	switch v := r[field].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

var timeLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"}

// timestamp returns the first field that parses as a time; the zero time
// sorts last
func timestamp(r cache.Record, fields ...string) time.Time {
	for _, f := range fields {
		switch v := r[f].(type) {
		case time.Time:
			return v
		case string:
			for _, layout := range timeLayouts {
				if t, err := time.Parse(layout, v); err == nil {
					return t
				}
			}
		}
	}
	return time.Time{}
}
