package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// Postgres is a Store keeping every collection in one JSONB table
type Postgres struct {
	DB *pgxpool.Pool
}

// NewPostgres wraps an open pool; the schema must already be migrated
func NewPostgres(db *pgxpool.Pool) *Postgres {
	return &Postgres{DB: db}
}

// List returns the live records of a collection
func (p *Postgres) List(ctx context.Context, collection string, q Query) ([]Record, error) {
	s, err := Lookup(collection)
	if err != nil {
		return nil, err
	}

	sql, args, err := buildListQuery(s, q)
	if err != nil {
		return nil, err
	}

	rows, err := p.DB.Query(ctx, sql, args...)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Str("collection", collection).Msg("failed to query records")
		return nil, err
	}
	defer rows.Close()

	records := make([]Record, 0)
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var rec Record
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, fmt.Errorf("decode %s record: %w", collection, err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// buildListQuery renders a List query; field names are validated and
// passed as parameters, the sort direction is one of two literals
func buildListQuery(s Schema, q Query) (string, []any, error) {
	var b strings.Builder
	args := []any{s.Name}
	b.WriteString(`SELECT data FROM record WHERE collection = $1 AND deleted_at IS NULL`)

	for field, value := range q.Eq {
		if !ValidField(field) {
			return "", nil, fmt.Errorf("%w: invalid filter field %q", ErrInvalidRecord, field)
		}
		args = append(args, field, value)
		fmt.Fprintf(&b, ` AND lower(data->>$%d) = lower($%d)`, len(args)-1, len(args))
	}

	order := q.Order
	if order == "" {
		order = s.DefaultOrder
	}
	if order != "" {
		field, desc, err := ParseOrder(order)
		if err != nil {
			return "", nil, err
		}
		dir := "ASC"
		if desc {
			dir = "DESC"
		}
		args = append(args, field)
		fmt.Fprintf(&b, ` ORDER BY data->>$%d %s, id %s`, len(args), dir, dir)
	}

	if q.Limit > 0 {
		args = append(args, q.Limit)
		fmt.Fprintf(&b, ` LIMIT $%d`, len(args))
	}
	return b.String(), args, nil
}

// Get returns one live record
func (p *Postgres) Get(ctx context.Context, collection, id string) (Record, error) {
	if _, err := Lookup(collection); err != nil {
		return nil, err
	}

	var data []byte
	err := p.DB.QueryRow(ctx,
		`SELECT data FROM record WHERE collection = $1 AND id::text = $2 AND deleted_at IS NULL`,
		collection, id).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Insert stores a new record
func (p *Postgres) Insert(ctx context.Context, collection string, fields Record) (Record, error) {
	s, err := Lookup(collection)
	if err != nil {
		return nil, err
	}
	rec, err := prepareInsert(s, fields)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}

	_, err = p.DB.Exec(ctx,
		`INSERT INTO record (collection, id, data) VALUES ($1, $2, $3)`,
		collection, rec["id"], data)
	if err != nil {
		return nil, translate(s, rec, err)
	}

	log.Ctx(ctx).Debug().Str("collection", collection).Interface("id", rec["id"]).Msg("record inserted")
	return rec, nil
}

// Update merges fields into a live record
func (p *Postgres) Update(ctx context.Context, collection, id string, fields Record) (Record, error) {
	s, err := Lookup(collection)
	if err != nil {
		return nil, err
	}

	changes := prepareUpdate(fields)
	patch, err := json.Marshal(changes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}

	var data []byte
	err = p.DB.QueryRow(ctx, `
		UPDATE record SET data = data || $3::jsonb, updated_at = NOW()
		WHERE collection = $1 AND id::text = $2 AND deleted_at IS NULL
		RETURNING data
	`, collection, id, patch).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, translate(s, changes, err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Delete soft-deletes a record
func (p *Postgres) Delete(ctx context.Context, collection, id string) error {
	if _, err := Lookup(collection); err != nil {
		return err
	}

	tag, err := p.DB.Exec(ctx, `
		UPDATE record SET deleted_at = NOW(), updated_at = NOW()
		WHERE collection = $1 AND id::text = $2 AND deleted_at IS NULL
	`, collection, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateAccount registers a login identity
func (p *Postgres) CreateAccount(ctx context.Context, email, passwordHash string) (*Account, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	var a Account
	err := p.DB.QueryRow(ctx, `
		INSERT INTO account (email, password_hash) VALUES ($1, $2)
		RETURNING id::text, email, password_hash, created_at
	`, email, passwordHash).Scan(&a.ID, &a.Email, &a.PasswordHash, &a.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return nil, &ConstraintError{Collection: "accounts", Field: "email", Value: email}
		}
		return nil, err
	}
	return &a, nil
}

// AccountByEmail looks up a login identity
func (p *Postgres) AccountByEmail(ctx context.Context, email string) (*Account, error) {
	var a Account
	err := p.DB.QueryRow(ctx,
		`SELECT id::text, email, password_hash, created_at FROM account WHERE email = $1`,
		strings.ToLower(strings.TrimSpace(email))).Scan(&a.ID, &a.Email, &a.PasswordHash, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// DeleteAccount removes a login identity
func (p *Postgres) DeleteAccount(ctx context.Context, email string) error {
	tag, err := p.DB.Exec(ctx, `DELETE FROM account WHERE email = $1`, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Close releases the pool
func (p *Postgres) Close() {
	p.DB.Close()
}

// translate maps a unique violation onto ConstraintError
func translate(s Schema, rec Record, err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgerrcode.UniqueViolation {
		return err
	}
	field := "id"
	if len(s.Unique) > 0 {
		field = s.Unique[0]
	}
	return &ConstraintError{Collection: s.Name, Field: field, Value: Text(rec[field])}
}
