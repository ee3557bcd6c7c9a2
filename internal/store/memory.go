package store

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/zyedidia/generic"
	"github.com/zyedidia/generic/btree"
)

type memEntry struct {
	Value     Record
	Deleted   bool
	UpdatedAt time.Time
}

// Memory is an in-process Store backed by one btree per collection
type Memory struct {
	mu          sync.RWMutex
	collections map[string]*btree.Tree[string, *memEntry]
	accounts    *btree.Tree[string, *Account]
}

// NewMemory creates an empty memory store
func NewMemory() *Memory {
	m := &Memory{
		collections: make(map[string]*btree.Tree[string, *memEntry]),
		accounts:    btree.New[string, *Account](generic.Less[string]),
	}
	for name := range Collections {
		m.collections[name] = btree.New[string, *memEntry](generic.Less[string])
	}
	return m
}

func (m *Memory) tree(collection string) (*btree.Tree[string, *memEntry], Schema, error) {
	s, err := Lookup(collection)
	if err != nil {
		return nil, Schema{}, err
	}
	return m.collections[collection], s, nil
}

// List returns the live records of a collection
func (m *Memory) List(ctx context.Context, collection string, q Query) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, s, err := m.tree(collection)
	if err != nil {
		return nil, err
	}

	records := make([]Record, 0, t.Size())
	t.Each(func(id string, e *memEntry) {
		if !e.Deleted {
			records = append(records, clone(e.Value))
		}
	})
	return applyQuery(s, records, q)
}

// Get returns one live record
func (m *Memory) Get(ctx context.Context, collection, id string) (Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, _, err := m.tree(collection)
	if err != nil {
		return nil, err
	}
	e, ok := t.Get(id)
	if !ok || e.Deleted {
		return nil, ErrNotFound
	}
	return clone(e.Value), nil
}

// Insert stores a new record
func (m *Memory) Insert(ctx context.Context, collection string, fields Record) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, s, err := m.tree(collection)
	if err != nil {
		return nil, err
	}
	rec, err := prepareInsert(s, fields)
	if err != nil {
		return nil, err
	}
	if err := m.checkUniqueLocked(t, s, rec, ""); err != nil {
		return nil, err
	}

	t.Put(rec["id"].(string), &memEntry{Value: rec, UpdatedAt: time.Now()})
	return clone(rec), nil
}

// Update merges fields into a live record
func (m *Memory) Update(ctx context.Context, collection, id string, fields Record) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, s, err := m.tree(collection)
	if err != nil {
		return nil, err
	}
	e, ok := t.Get(id)
	if !ok || e.Deleted {
		return nil, ErrNotFound
	}

	next := clone(e.Value)
	for k, v := range prepareUpdate(fields) {
		next[k] = v
	}
	if err := m.checkUniqueLocked(t, s, next, id); err != nil {
		return nil, err
	}

	e.Value = next
	e.UpdatedAt = time.Now()
	t.Put(id, e)
	return clone(next), nil
}

// Delete soft-deletes a record
func (m *Memory) Delete(ctx context.Context, collection, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, _, err := m.tree(collection)
	if err != nil {
		return err
	}
	e, ok := t.Get(id)
	if !ok || e.Deleted {
		return ErrNotFound
	}
	e.Deleted = true
	e.UpdatedAt = time.Now()
	t.Put(id, e)
	return nil
}

func (m *Memory) checkUniqueLocked(t *btree.Tree[string, *memEntry], s Schema, rec Record, selfID string) error {
	var conflict *ConstraintError
	for _, field := range s.Unique {
		want := Text(rec[field])
		if want == "" {
			continue
		}
		t.Each(func(id string, e *memEntry) {
			if conflict != nil || e.Deleted || id == selfID {
				return
			}
			if strings.EqualFold(Text(e.Value[field]), want) {
				conflict = &ConstraintError{Collection: s.Name, Field: field, Value: want}
			}
		})
	}
	if conflict != nil {
		return conflict
	}
	return nil
}

// CreateAccount registers a login identity
func (m *Memory) CreateAccount(ctx context.Context, email, passwordHash string) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	email = strings.ToLower(strings.TrimSpace(email))
	if _, ok := m.accounts.Get(email); ok {
		return nil, &ConstraintError{Collection: "accounts", Field: "email", Value: email}
	}
	a := &Account{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}
	m.accounts.Put(email, a)
	copied := *a
	return &copied, nil
}

// AccountByEmail looks up a login identity
func (m *Memory) AccountByEmail(ctx context.Context, email string) (*Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.accounts.Get(strings.ToLower(strings.TrimSpace(email)))
	if !ok {
		return nil, ErrNotFound
	}
	copied := *a
	return &copied, nil
}

// DeleteAccount removes a login identity
func (m *Memory) DeleteAccount(ctx context.Context, email string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	email = strings.ToLower(strings.TrimSpace(email))
	if _, ok := m.accounts.Get(email); !ok {
		return ErrNotFound
	}
	m.accounts.Remove(email)
	return nil
}

// Close is a no-op for the memory store
func (m *Memory) Close() {}

func clone(r Record) Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}
