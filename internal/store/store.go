// Package store persists the collections served by the reference backend
package store

import (
	"context"
	"time"
)

// Record is one row of a collection
type Record = map[string]any

// Query narrows a List call
type Query struct {
	// Eq keeps records whose field equals the value (compared as text)
	Eq map[string]string
	// Order is "<field>.asc" or "<field>.desc"; empty uses the collection default
	Order string
	Limit int
}

// Account is a login identity
type Account struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Store is implemented by the memory and postgres backends. Deletes are
// soft: deleted records disappear from List and Get.
type Store interface {
	List(ctx context.Context, collection string, q Query) ([]Record, error)
	Get(ctx context.Context, collection, id string) (Record, error)
	// Insert assigns id and created_at and returns the stored record
	Insert(ctx context.Context, collection string, fields Record) (Record, error)
	// Update merges fields into the record and returns the result
	Update(ctx context.Context, collection, id string, fields Record) (Record, error)
	Delete(ctx context.Context, collection, id string) error

	CreateAccount(ctx context.Context, email, passwordHash string) (*Account, error)
	AccountByEmail(ctx context.Context, email string) (*Account, error)
	DeleteAccount(ctx context.Context, email string) error

	Close()
}
