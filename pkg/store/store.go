// Package store holds view-state trees of the console and the operations changing them.
//
// A store mediates between the backend (through rest.Client) and view layers.
// Actions start network calls on goroutines and return immediately. Results are
// merged into the view-state in the critical section of the store, and each batch of
// changes is emitted to subscribers once, as a snapshot.
//
// Results of superseded operations (see package tracker) are dropped.
package store

import (
	"context"
	"errors"
	"sync"

	"github.com/mohae/deepcopy"
	"github.com/opst/fleetdeck/pkg/api/types/requests"
	"github.com/opst/fleetdeck/pkg/logs"
	"github.com/opst/fleetdeck/pkg/notifications"
	"github.com/opst/fleetdeck/pkg/query"
	"github.com/opst/fleetdeck/pkg/rest"
	"github.com/opst/fleetdeck/pkg/tracker"
)

// Navigator changes the route visible to users.
//
// Stores call this when the current view should be replaced, for example,
// when everything shown is removed.
type Navigator interface {
	OpenList(q query.SearchOptions)
	OpenDetails(containerId string, clusterId string, compositeId string)
	OpenClusterDetails(clusterId string, compositeId string)
	OpenCompositeDetails(compositeId string)
}

// RequestSink receives day-2 requests stores have submitted. notifications.Hub satisfies this.
type RequestSink interface {
	RequestCreated(req requests.Request)
}

type nopSink struct{}

func (nopSink) RequestCreated(requests.Request) {}

// GenericErrorMessage is shown when an error tells nothing.
const GenericErrorMessage = "unexpected error"

// ErrorView is an error as the view shows.
type ErrorView struct {
	Message string `json:"message"`

	// Status is the HTTP status code from the backend, if any.
	Status int `json:"status,omitempty"`

	// Validation has per-field messages of an edit form.
	Validation map[string]string `json:"validation,omitempty"`
}

func errorViewOf(err error) *ErrorView {
	if err == nil {
		return nil
	}
	ev := &ErrorView{Message: err.Error()}
	var te *rest.TransportError
	if errors.As(err, &te) {
		ev.Message = te.Message
		ev.Status = te.StatusCode
		ev.Validation = te.Validation
	}
	if ev.Message == "" {
		ev.Message = GenericErrorMessage
	}
	return ev
}

// context panels
const (
	PanelRequests  = "requests"
	PanelEventLogs = "eventlogs"
)

// ContextView is the side panel of a view.
type ContextView struct {
	// ActiveItem is the panel opened, or empty.
	ActiveItem string `json:"activeItem,omitempty"`

	// Notifications are counters shown on panel buttons, keyed by panel.
	Notifications map[string]int `json:"notifications,omitempty"`
}

func (cv *ContextView) open(panel string) {
	cv.ActiveItem = panel
}

func (cv *ContextView) close() {
	cv.ActiveItem = ""
}

func (cv *ContextView) count(c notifications.Counts) {
	cv.Notifications = map[string]int{
		PanelRequests:  c.Running,
		PanelEventLogs: c.Failed,
	}
}

type options struct {
	logger      logs.Logger
	ctx         context.Context
	recommended []RecommendedImage
}

type Option func(*options) *options

func WithLogger(l logs.Logger) Option {
	return func(o *options) *options {
		o.logger = l
		return o
	}
}

// WithContext sets the base context of network calls. When it is done, calls in flight fail.
func WithContext(ctx context.Context) Option {
	return func(o *options) *options {
		o.ctx = ctx
		return o
	}
}

// WithRecommendedImages sets images the templates store shows for empty search.
func WithRecommendedImages(images ...RecommendedImage) Option {
	return func(o *options) *options {
		o.recommended = append(o.recommended, images...)
		return o
	}
}

func buildOptions(opts []Option) *options {
	o := &options{logger: logs.Discard(), ctx: context.Background()}
	for _, opt := range opts {
		o = opt(o)
	}
	return o
}

// core owns a view-state tree of type S.
type core[S any] struct {
	ctx    context.Context
	cancel context.CancelFunc
	logger logs.Logger

	mu             sync.Mutex
	state          S
	subscribers    map[int]func(S)
	nextSubscriber int

	// changes counts emissions. Snapshots are delivered in this order.
	changes uint64

	delivery  sync.Mutex
	turn      *sync.Cond
	delivered uint64

	flight   sync.Mutex
	settled  *sync.Cond
	inflight int
}

func newCore[S any](o *options) *core[S] {
	ctx, cancel := context.WithCancel(o.ctx)
	c := &core[S]{
		ctx:         ctx,
		cancel:      cancel,
		logger:      o.logger,
		subscribers: map[int]func(S){},
	}
	c.turn = sync.NewCond(&c.delivery)
	c.settled = sync.NewCond(&c.flight)
	return c
}

// Subscribe registers a handler of changes. It returns the unsubscriber.
//
// The handler receives a snapshot; it may keep it. Handlers are called
// one at a time, in the order of changes, in the goroutine which made the change.
// No lock of the store is held while a handler runs, so it may call Snapshot,
// Subscribe or the unsubscriber. It should not call actions of the store directly.
func (c *core[S]) Subscribe(handler func(S)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextSubscriber
	c.nextSubscriber += 1
	c.subscribers[id] = handler
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.subscribers, id)
	}
}

// Snapshot returns a copy of the current view-state.
func (c *core[S]) Snapshot() S {
	c.mu.Lock()
	defer c.mu.Unlock()
	return deepcopy.Copy(c.state).(S)
}

// Wait blocks until no network calls of actions are in flight.
//
// Calls started while waiting are waited too.
func (c *core[S]) Wait() {
	c.flight.Lock()
	defer c.flight.Unlock()
	for c.inflight != 0 {
		c.settled.Wait()
	}
}

// Close makes calls in flight fail, and waits them.
func (c *core[S]) Close() {
	c.cancel()
	c.Wait()
}

// spawn runs a task with network calls.
func (c *core[S]) spawn(task func(ctx context.Context)) {
	c.flight.Lock()
	c.inflight += 1
	c.flight.Unlock()

	go func() {
		defer func() {
			c.flight.Lock()
			defer c.flight.Unlock()
			c.inflight -= 1
			if c.inflight == 0 {
				c.settled.Broadcast()
			}
		}()
		task(c.ctx)
	}()
}

// update applies fn to the state in the critical section, and emits a snapshot when fn returns true.
//
// When op is given, it is resolved. If op is superseded, fn is not called.
// It returns whether the state has been changed.
func (c *core[S]) update(op *tracker.Operation, fn func(*S) bool) bool {
	c.mu.Lock()
	if op != nil && !op.Resolve(func() {}) {
		c.mu.Unlock()
		return false
	}
	if !fn(&c.state) {
		c.mu.Unlock()
		return false
	}

	snapshot := deepcopy.Copy(c.state).(S)
	handlers := make([]func(S), 0, len(c.subscribers))
	for _, h := range c.subscribers {
		handlers = append(handlers, h)
	}
	seq := c.changes
	c.changes += 1
	c.mu.Unlock()

	c.deliver(seq, func() {
		for _, h := range handlers {
			h(snapshot)
		}
	})
	return true
}

// deliver runs emit after emissions of earlier changes.
func (c *core[S]) deliver(seq uint64, emit func()) {
	c.delivery.Lock()
	for c.delivered != seq {
		c.turn.Wait()
	}
	c.delivery.Unlock()

	defer func() {
		c.delivery.Lock()
		defer c.delivery.Unlock()
		c.delivered += 1
		c.turn.Broadcast()
	}()
	emit()
}

// peek reads the state in the critical section. fn must not change the state.
func (c *core[S]) peek(fn func(*S)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(&c.state)
}
