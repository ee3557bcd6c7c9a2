package store

import (
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrNotFound          = errors.New("record not found")
	ErrUnknownCollection = errors.New("unknown collection")
	ErrInvalidRecord     = errors.New("invalid record")
)

// ConstraintError reports a write rejected by a uniqueness constraint
type ConstraintError struct {
	Collection string
	Field      string
	Value      string
}

func (e *ConstraintError) Error() string {
	return fmt.Sprintf("duplicate %s %q in %s", e.Field, e.Value, e.Collection)
}

// Code returns the SQLSTATE of a unique violation so every backend reports
// the same machine-readable code
func (e *ConstraintError) Code() string {
	return pgerrcode.UniqueViolation
}

// IsUniqueViolation reports whether err is a uniqueness failure, either
// from the memory backend or straight from PostgreSQL
func IsUniqueViolation(err error) bool {
	var ce *ConstraintError
	if errors.As(err, &ce) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}
