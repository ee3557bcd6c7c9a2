package cache

import (
	"context"
	"sync"
)

// Kind is the type of an optimistic mutation
type Kind string

const (
	KindCreate Kind = "create"
	KindUpdate Kind = "update"
	KindDelete Kind = "delete"
)

// OpState tracks a pending operation: idle -> applied -> confirmed | rolled-back.
// There is no retry state; a failure is terminal.
type OpState int

const (
	StateIdle OpState = iota
	StateApplied
	StateConfirmed
	StateRolledBack
)

func (s OpState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateApplied:
		return "applied"
	case StateConfirmed:
		return "confirmed"
	case StateRolledBack:
		return "rolled-back"
	default:
		return "unknown"
	}
}

// RemoteUpdate replaces the default remote update call of one operation
type RemoteUpdate func(ctx context.Context, id string, fields Record) (Record, error)

// RemoteDelete replaces the default remote delete call of one operation
type RemoteDelete func(ctx context.Context, id string) error

// MutateOption customizes a single mutation
type MutateOption func(*Op)

// WithRemoteUpdate sends an update through fn instead of Remote.Update
func WithRemoteUpdate(fn RemoteUpdate) MutateOption {
	return func(o *Op) { o.viaUpdate = fn }
}

// WithRemoteDelete sends a delete through fn instead of Remote.Delete
func WithRemoteDelete(fn RemoteDelete) MutateOption {
	return func(o *Op) { o.viaDelete = fn }
}

// Op is the handle of one optimistic mutation. The local change is visible
// as soon as the Op is returned; the Op resolves when the remote call ends.
type Op struct {
	Kind       Kind
	Collection string

	// id the caller targeted; for creates the temporary id
	id string

	fields   Record // create: the live optimistic record; update: the changed fields
	payload  Record // create: fields sent to the service
	snapshot Record // pre-mutation copy (update, delete)
	index    int    // former position (delete)
	rev      uint64
	lane     chan struct{}

	viaUpdate RemoteUpdate
	viaDelete RemoteDelete

	done chan struct{}

	mu     sync.Mutex
	state  OpState
	err    error
	result Record
	realID string
}

func newOp(kind Kind, collection, id string, opts []MutateOption) *Op {
	op := &Op{
		Kind:       kind,
		Collection: collection,
		id:         id,
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(op)
	}
	return op
}

// ID returns the id of the affected record: the server id once a create is
// confirmed, the temporary id before that
func (o *Op) ID() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.realID != "" {
		return o.realID
	}
	return o.id
}

// State returns the current state of the operation
func (o *Op) State() OpState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Done is closed once the operation is confirmed or rolled back
func (o *Op) Done() <-chan struct{} {
	return o.done
}

// Err returns the remote error of a resolved operation (nil while pending)
func (o *Op) Err() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.err
}

// Result returns the authoritative record returned by the service, if any
func (o *Op) Result() Record {
	o.mu.Lock()
	defer o.mu.Unlock()
	return Clone(o.result)
}

// Wait blocks until the operation resolves or ctx is done
func (o *Op) Wait(ctx context.Context) error {
	select {
	case <-o.done:
		return o.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (o *Op) setState(s OpState) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()
}

func (o *Op) resolve(state OpState, result Record, err error) {
	o.mu.Lock()
	o.state = state
	o.result = result
	o.err = err
	o.mu.Unlock()
	close(o.done)
}
