package notifications

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/opst/fleetdeck/pkg/api/types/documents"
	"github.com/opst/fleetdeck/pkg/api/types/requests"
	"github.com/opst/fleetdeck/pkg/logs"
	"github.com/opst/fleetdeck/pkg/loop"
)

// StatusSource reads request statuses. rest.Client satisfies this.
type StatusSource interface {
	LoadRequestStatus(ctx context.Context, trackerLink string) (requests.Status, error)
	LoadRequestStatuses(ctx context.Context, stages ...requests.Stage) (documents.List[requests.Status], error)
}

// RequestWatcher polls statuses of submitted requests, and publishes settlements and counts.
type RequestWatcher struct {
	hub      *Hub
	source   StatusSource
	interval time.Duration
	logger   logs.Logger

	mu       sync.Mutex
	tracking map[string]requests.Request // keyed by tracker link
}

func NewRequestWatcher(hub *Hub, source StatusSource, interval time.Duration, logger logs.Logger) *RequestWatcher {
	if logger == nil {
		logger = logs.Discard()
	}
	return &RequestWatcher{
		hub:      hub,
		source:   source,
		interval: interval,
		logger:   logger,
		tracking: map[string]requests.Request{},
	}
}

// Track starts watching the request. Requests without tracker link are ignored.
func (w *RequestWatcher) Track(req requests.Request) {
	if req.RequestTrackerLink == "" {
		w.logger.Warnf("request %s has no tracker. ignored.", req.DocumentSelfLink)
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.tracking[req.RequestTrackerLink] = req
}

// Tracking returns the number of requests being watched.
func (w *RequestWatcher) Tracking() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.tracking)
}

func (w *RequestWatcher) snapshot() map[string]requests.Request {
	w.mu.Lock()
	defer w.mu.Unlock()
	ret := make(map[string]requests.Request, len(w.tracking))
	for k, v := range w.tracking {
		ret[k] = v
	}
	return ret
}

func (w *RequestWatcher) untrack(trackerLink string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.tracking, trackerLink)
}

// Poll checks each request once, and publishes settled ones.
func (w *RequestWatcher) Poll(ctx context.Context) {
	for link, req := range w.snapshot() {
		st, err := w.source.LoadRequestStatus(ctx, link)
		if err != nil {
			w.logger.Warnf("cannot load status of request %s: %s", link, err)
			continue
		}
		if st.TaskInfo.Stage.Running() {
			continue
		}

		w.untrack(link)
		ids := st.ResourceIds()
		if len(ids) == 0 {
			for _, l := range req.ResourceLinks {
				ids = append(ids, documents.DocumentId(l))
			}
		}
		ev := OperationEvent{Type: requests.TypeOf(req), ResourceIds: ids}
		if st.TaskInfo.Stage.Failure() {
			w.logger.Infof("request %s has failed (stage = %s)", link, st.TaskInfo.Stage)
			w.hub.OperationFailed(ev)
		} else {
			w.logger.Debugf("request %s has finished", link)
			w.hub.OperationCompleted(ev)
		}
	}
}

// Count reads numbers of running and failed requests.
func (w *RequestWatcher) Count(ctx context.Context) (Counts, error) {
	running, err := w.source.LoadRequestStatuses(ctx, requests.Created, requests.Started)
	if err != nil {
		return Counts{}, err
	}
	failed, err := w.source.LoadRequestStatuses(ctx, requests.Failed, requests.Cancelled)
	if err != nil {
		return Counts{}, err
	}
	return Counts{Running: running.Count(), Failed: failed.Count()}, nil
}

// Run watches requests until ctx is done.
//
// Requests announced on the hub are tracked automatically.
// Counts are published when they change.
func (w *RequestWatcher) Run(ctx context.Context) error {
	unsubscribe := w.hub.OnRequestCreated(w.Track)
	defer unsubscribe()

	var last *Counts
	err := loop.Run(
		ctx,
		func(ctx context.Context) (time.Duration, error) {
			w.Poll(ctx)

			c, err := w.Count(ctx)
			if err != nil {
				w.logger.Warnf("cannot count requests: %s", err)
				return w.interval, nil
			}
			if last == nil || *last != c {
				w.hub.Counts(c)
			}
			last = &c
			return w.interval, nil
		},
		loop.WithStepTimeout(w.interval+10*time.Second),
	)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}
