package cache

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
)

// Create inserts fields under a temporary id, notifies listeners and issues
// the remote create. On success the placeholder is replaced in place by the
// record the service returns; on failure it is removed.
func (s *Store) Create(collection string, fields Record, opts ...MutateOption) (*Op, error) {
	rec := Clone(fields)
	if rec == nil {
		rec = Record{}
	}
	payload := Clone(rec)
	delete(payload, "id")

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}

	id := s.newID()
	rec["id"] = id
	op := newOp(KindCreate, collection, id, opts)
	op.fields = rec
	op.payload = payload

	var notes []notification
	if e := s.entries[collection]; e != nil {
		e.records = insertAt(e.records, s.insertIndex(collection, len(e.records)), rec)
		notes = append(notes, s.notificationLocked(s.viewLocked(collection)))
	}

	key := keyOf(collection, id)
	prev := s.beginLocked(op, key)
	s.mu.Unlock()

	s.fire(notes)
	go s.run(op, key, prev)
	return op, nil
}

// Update applies fields to the cached record in place, notifies listeners
// and issues the remote update. On failure the pre-update snapshot is
// restored unless a later local mutation touched the record.
func (s *Store) Update(collection, id string, fields Record, opts ...MutateOption) (*Op, error) {
	changes := Clone(fields)
	delete(changes, "id")

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}

	id = s.resolveLocked(collection, id)
	rec, _, err := s.findLocked(collection, id)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}

	op := newOp(KindUpdate, collection, id, opts)
	op.fields = changes
	op.snapshot = Clone(rec)
	merge(rec, changes)

	notes := []notification{s.notificationLocked(s.viewLocked(collection))}
	key := keyOf(collection, id)
	prev := s.beginLocked(op, key)
	s.mu.Unlock()

	s.fire(notes)
	go s.run(op, key, prev)
	return op, nil
}

// Delete removes the cached record, notifies listeners and issues the
// remote delete. On failure the record is reinserted at its former position.
func (s *Store) Delete(collection, id string, opts ...MutateOption) (*Op, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}

	id = s.resolveLocked(collection, id)
	rec, i, err := s.findLocked(collection, id)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}

	op := newOp(KindDelete, collection, id, opts)
	op.snapshot = Clone(rec)
	op.index = i
	e := s.entries[collection]
	e.records = removeAt(e.records, i)

	notes := []notification{s.notificationLocked(s.viewLocked(collection))}
	key := keyOf(collection, id)
	prev := s.beginLocked(op, key)
	s.mu.Unlock()

	s.fire(notes)
	go s.run(op, key, prev)
	return op, nil
}

// Pending returns the number of unresolved operations on collection
func (s *Store) Pending(collection string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending[collection])
}

func keyOf(collection, id string) string {
	return collection + "/" + id
}

func (s *Store) resolveLocked(collection, id string) string {
	if real, ok := s.aliases[keyOf(collection, id)]; ok {
		return real
	}
	return id
}

func (s *Store) findLocked(collection, id string) (Record, int, error) {
	if id == "" {
		return nil, -1, ErrMissingID
	}
	e := s.entries[collection]
	if e == nil {
		return nil, -1, fmt.Errorf("%w: %s/%s", ErrNotFound, collection, id)
	}
	i := indexOf(e.records, id)
	if i < 0 {
		return nil, -1, fmt.Errorf("%w: %s/%s", ErrNotFound, collection, id)
	}
	return e.records[i], i, nil
}

// beginLocked records op as applied and appends it to the record's lane.
// It returns the lane tail op must wait for, if any.
func (s *Store) beginLocked(op *Op, key string) chan struct{} {
	s.rev++
	s.revs[key] = s.rev
	op.rev = s.rev

	s.pending[op.Collection] = append(s.pending[op.Collection], op)
	op.setState(StateApplied)

	prev := s.lanes[key]
	op.lane = make(chan struct{})
	s.lanes[key] = op.lane

	s.wg.Add(1)
	return prev
}

// run waits for the previous operation on the same record, then performs
// the remote call and reconciles its outcome
func (s *Store) run(op *Op, key string, prev chan struct{}) {
	defer s.wg.Done()
	if prev != nil {
		<-prev
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	var (
		result Record
		err    error
	)
	switch op.Kind {
	case KindCreate:
		result, err = s.remote.Create(ctx, op.Collection, op.payload)
	case KindUpdate:
		id, ok := s.targetID(op)
		switch {
		case !ok:
			err = ErrNotPersisted
		case op.viaUpdate != nil:
			result, err = op.viaUpdate(ctx, id, op.fields)
		default:
			result, err = s.remote.Update(ctx, op.Collection, id, op.fields)
		}
	case KindDelete:
		id, ok := s.targetID(op)
		switch {
		case !ok:
			err = ErrNotPersisted
		case op.viaDelete != nil:
			err = op.viaDelete(ctx, id)
		default:
			err = s.remote.Delete(ctx, op.Collection, id)
		}
	}

	s.finish(op, key, result, err)
}

// targetID resolves the id an update or delete is sent with. A temporary id
// without an alias means its create failed.
func (s *Store) targetID(op *Op) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.resolveLocked(op.Collection, op.id)
	return id, !IsTemp(id)
}

func (s *Store) finish(op *Op, key string, result Record, err error) {
	s.mu.Lock()
	s.removePendingLocked(op)

	state := StateConfirmed
	if err != nil {
		state = StateRolledBack
	}

	var notes []notification
	if !s.closed {
		if err == nil {
			s.writes[op.Collection]++
		}
		switch {
		case err != nil:
			notes = s.rollbackLocked(op, key, err)
		case op.Kind == KindCreate:
			notes = s.confirmCreateLocked(op, key, result)
		default:
			notes = s.confirmLocked(op, key, result)
		}
	}
	closed := s.closed
	s.releaseLaneLocked(op.lane)
	s.mu.Unlock()

	s.fire(notes)

	logger := log.With().
		Str("op", string(op.Kind)).
		Str("collection", op.Collection).
		Str("id", op.ID()).
		Logger()

	if err != nil {
		logger.Warn().Err(err).Msg("remote write failed, rolled back")
		if s.reporter != nil && !closed && !errors.Is(err, ErrNotPersisted) {
			f := Failure{Kind: op.Kind, Collection: op.Collection, ID: op.ID(), Err: err}
			f.Message = s.describe(f)
			s.reporter.ReportFailure(f)
		}
	} else {
		logger.Debug().Msg("remote write confirmed")
	}

	op.resolve(state, result, err)
}

func (s *Store) confirmCreateLocked(op *Op, tempKey string, result Record) []notification {
	c := op.Collection
	realID := IDOf(result)

	if realID == "" {
		// No authoritative record: drop the placeholder and refetch
		s.gens[c]++
		delete(s.entries, c)
		delete(s.revs, tempKey)
		s.startFetchLocked(c)
		return []notification{s.notificationLocked(s.viewLocked(c))}
	}

	op.mu.Lock()
	op.realID = realID
	op.mu.Unlock()

	realKey := keyOf(c, realID)
	s.aliases[tempKey] = realID
	s.revs[realKey] = s.revs[tempKey]
	delete(s.revs, tempKey)

	// Operations already queued behind the create keep their order
	if tail, ok := s.lanes[tempKey]; ok && tail != op.lane {
		if _, exists := s.lanes[realKey]; !exists {
			s.lanes[realKey] = tail
		}
	}

	e := s.entries[c]
	if e == nil {
		return nil
	}
	rec := Clone(result)
	s.reapplyLocked(c, realID, rec)
	// A refetch that landed while the create was in flight may already hold
	// the server row next to the placeholder.
	i := indexOf(e.records, op.id)
	switch j := indexOf(e.records, realID); {
	case j >= 0:
		e.records[j] = rec
		if i >= 0 {
			e.records = removeAt(e.records, i)
		}
	case i >= 0:
		e.records[i] = rec
	default:
		e.records = insertAt(e.records, s.insertIndex(c, len(e.records)), rec)
	}
	return []notification{s.notificationLocked(s.viewLocked(c))}
}

func (s *Store) confirmLocked(op *Op, key string, result Record) []notification {
	c := op.Collection
	if op.Kind == KindDelete {
		if s.revs[key] == op.rev {
			delete(s.revs, key)
		}
		return nil
	}

	e := s.entries[c]
	if e == nil || result == nil {
		return nil
	}
	id := s.resolveLocked(c, op.id)
	i := indexOf(e.records, id)
	if i < 0 {
		return nil
	}
	rec := Clone(e.records[i])
	for k, v := range result {
		if k != "id" {
			rec[k] = v
		}
	}
	s.reapplyLocked(c, id, rec)
	e.records[i] = rec
	return []notification{s.notificationLocked(s.viewLocked(c))}
}

func (s *Store) rollbackLocked(op *Op, key string, err error) []notification {
	c := op.Collection
	e := s.entries[c]

	if op.Kind == KindCreate {
		// The record never existed remotely, so it goes regardless of local edits
		delete(s.revs, key)
		if e == nil {
			return nil
		}
		if i := indexOf(e.records, op.id); i >= 0 {
			e.records = removeAt(e.records, i)
		}
		return []notification{s.notificationLocked(s.viewLocked(c))}
	}

	if errors.Is(err, ErrNotPersisted) {
		return nil
	}

	id := s.resolveLocked(c, op.id)
	if s.revs[keyOf(c, id)] != op.rev {
		log.Debug().Str("collection", c).Str("id", id).Msg("newer local change, skipping rollback")
		if e == nil {
			return nil
		}
		e.stale = true
		s.startFetchLocked(c)
		return []notification{s.notificationLocked(s.viewLocked(c))}
	}
	if e == nil {
		return nil
	}

	restored := Clone(op.snapshot)
	if IDOf(restored) != id {
		restored["id"] = id
	}
	switch op.Kind {
	case KindUpdate:
		if i := indexOf(e.records, id); i >= 0 {
			e.records[i] = restored
		}
	case KindDelete:
		if indexOf(e.records, id) < 0 {
			e.records = insertAt(e.records, op.index, restored)
		}
	}
	return []notification{s.notificationLocked(s.viewLocked(c))}
}

// reapplyLocked merges the fields of still-pending updates of id into rec
func (s *Store) reapplyLocked(collection, id string, rec Record) {
	for _, p := range s.pending[collection] {
		if p.Kind == KindUpdate && s.resolveLocked(collection, p.id) == id {
			merge(rec, p.fields)
		}
	}
}

func (s *Store) removePendingLocked(op *Op) {
	ops := s.pending[op.Collection]
	for i, p := range ops {
		if p == op {
			s.pending[op.Collection] = append(ops[:i:i], ops[i+1:]...)
			break
		}
	}
	if len(s.pending[op.Collection]) == 0 {
		delete(s.pending, op.Collection)
	}
}

// releaseLaneLocked unblocks the next operation of the lane and forgets
// the lane when nothing is queued behind it
func (s *Store) releaseLaneLocked(lane chan struct{}) {
	close(lane)
	for k, tail := range s.lanes {
		if tail == lane {
			delete(s.lanes, k)
		}
	}
}
