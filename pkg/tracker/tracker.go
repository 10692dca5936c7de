// Package tracker keeps at most one authoritative operation per category.
//
// A store requests an Operation before starting a network call, and applies the result
// through the Operation only. When another operation is requested in the same category
// (or the category is cancelled) meanwhile, the first one becomes superseded and its result
// is dropped. In-flight calls are not aborted.
package tracker

import (
	"sync"

	"github.com/opst/fleetdeck/pkg/logs"
)

type Category string

const (
	List    Category = "LIST"
	Details Category = "DETAILS"
	Stats   Category = "STATS"
	Logs    Category = "LOGS"
)

type Tracker struct {
	mu         sync.Mutex
	generation map[Category]uint64
	current    map[Category]*Operation
	logger     logs.Logger
}

type Option func(*Tracker) *Tracker

// WithLogger sets a logger to report discarded results.
func WithLogger(l logs.Logger) Option {
	return func(t *Tracker) *Tracker {
		t.logger = l
		return t
	}
}

func New(options ...Option) *Tracker {
	t := &Tracker{
		generation: map[Category]uint64{},
		current:    map[Category]*Operation{},
		logger:     logs.Discard(),
	}
	for _, opt := range options {
		t = opt(t)
	}
	return t
}

// Operation is a handle of a requested operation.
type Operation struct {
	tracker    *Tracker
	category   Category
	key        string
	generation uint64
	settled    bool
}

func (op *Operation) Category() Category {
	return op.category
}

func (op *Operation) Key() string {
	return op.key
}

// Request starts a new operation in the category.
//
// It returns nil when the pending operation of the category has the same key,
// since the result of that is what the caller wants. Otherwise, it supersedes
// the previous operation of the category.
func (t *Tracker) Request(category Category, key string) *Operation {
	t.mu.Lock()
	defer t.mu.Unlock()

	if cur := t.current[category]; cur != nil && !cur.settled && cur.key == key {
		return nil
	}
	return t.start(category, key)
}

// Force starts a new operation in the category, even if the same one is pending.
func (t *Tracker) Force(category Category, key string) *Operation {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.start(category, key)
}

func (t *Tracker) start(category Category, key string) *Operation {
	t.generation[category] += 1
	op := &Operation{
		tracker:    t,
		category:   category,
		key:        key,
		generation: t.generation[category],
	}
	t.current[category] = op
	return op
}

// Cancel supersedes operations of categories.
func (t *Tracker) Cancel(categories ...Category) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, c := range categories {
		if _, ok := t.current[c]; !ok {
			continue
		}
		t.generation[c] += 1
		delete(t.current, c)
	}
}

// Pending tells whether the category has an operation not resolved yet.
func (t *Tracker) Pending(category Category) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	cur := t.current[category]
	return cur != nil && !cur.settled
}

// Superseded tells whether a newer operation has been requested, or the category is cancelled.
//
// Resolving does not make an operation superseded.
func (op *Operation) Superseded() bool {
	t := op.tracker
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.generation[op.category] != op.generation
}

// Resolve runs fn if the operation is still authoritative, and settles the operation.
//
// It returns true if fn has run. After settled, the operation does not block Request
// for the same key any more.
//
// fn is called without lock of the tracker, so fn can request another operation.
func (op *Operation) Resolve(fn func()) bool {
	t := op.tracker
	t.mu.Lock()
	if t.generation[op.category] != op.generation {
		t.mu.Unlock()
		t.logger.Debugf(
			"tracker: discard stale result of %s (key = %q, generation = %d)",
			op.category, op.key, op.generation,
		)
		return false
	}
	op.settled = true
	t.mu.Unlock()

	fn()
	return true
}

// Then resolves the operation with a result of a call.
//
// If the operation is still authoritative, onOk or onErr is called according to err.
// Otherwise, neither is called.
func Then[T any](op *Operation, value T, err error, onOk func(T), onErr func(error)) bool {
	return op.Resolve(func() {
		if err != nil {
			onErr(err)
			return
		}
		onOk(value)
	})
}
