package store

import "sort"

// Schema describes a collection the backend serves
type Schema struct {
	Name string
	// Required fields must be present and non-empty on insert
	Required []string
	// Unique fields are compared case-insensitively among live records
	Unique []string
	// DefaultOrder is used when a List query names no order
	DefaultOrder string
}

// Collections served by the backend
var Collections = map[string]Schema{
	"residents": {
		Name:         "residents",
		Required:     []string{"name", "email"},
		Unique:       []string{"email"},
		DefaultOrder: "created_at.desc",
	},
	"reservations": {
		Name:         "reservations",
		Required:     []string{"area", "date"},
		DefaultOrder: "created_at.desc",
	},
	"incidents": {
		Name:         "incidents",
		Required:     []string{"title"},
		DefaultOrder: "created_at.desc",
	},
	"ledger": {
		Name:         "ledger",
		Required:     []string{"description", "amount", "kind"},
		DefaultOrder: "date.asc",
	},
}

// Lookup returns the schema of a collection
func Lookup(collection string) (Schema, error) {
	s, ok := Collections[collection]
	if !ok {
		return Schema{}, ErrUnknownCollection
	}
	return s, nil
}

// Names returns the collection names in sorted order
func Names() []string {
	names := make([]string, 0, len(Collections))
	for name := range Collections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
