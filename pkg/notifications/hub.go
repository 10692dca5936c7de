// Package notifications delivers day-2 request events between the request watcher and stores.
package notifications

import (
	"github.com/juju/pubsub/v2"
	"github.com/opst/fleetdeck/pkg/api/types/requests"
)

// topics of the hub
const (
	TopicOperationCompleted = "operation.completed"
	TopicOperationFailed    = "operation.failed"
	TopicRequestCreated     = "request.created"
	TopicCounts             = "notifications.counts"
)

// OperationEvent tells a day-2 request has settled.
type OperationEvent struct {
	Type requests.OperationType

	// document ids of resources the request affected.
	ResourceIds []string
}

// Counts are numbers of requests to be notified.
type Counts struct {
	Running int `json:"running"`
	Failed  int `json:"failed"`
}

// Hub is an in-process notification channel.
//
// Handlers are called asynchronously, on goroutines of the hub.
// Handlers of a subscription are called in publishing order.
type Hub struct {
	hub *pubsub.SimpleHub
}

func NewHub() *Hub {
	return &Hub{hub: pubsub.NewSimpleHub(&pubsub.SimpleHubConfig{})}
}

// RequestCreated announces a submitted day-2 request.
func (h *Hub) RequestCreated(req requests.Request) {
	h.hub.Publish(TopicRequestCreated, req)
}

func (h *Hub) OperationCompleted(ev OperationEvent) {
	h.hub.Publish(TopicOperationCompleted, ev)
}

func (h *Hub) OperationFailed(ev OperationEvent) {
	h.hub.Publish(TopicOperationFailed, ev)
}

func (h *Hub) Counts(c Counts) {
	h.hub.Publish(TopicCounts, c)
}

// subscribe calls handler with data of the topic in type T. Data of other types are ignored.
func subscribe[T any](h *Hub, topic string, handler func(T)) func() {
	return h.hub.Subscribe(topic, func(_ string, data interface{}) {
		if v, ok := data.(T); ok {
			handler(v)
		}
	})
}

// OnRequestCreated subscribes submitted requests. It returns the unsubscriber.
func (h *Hub) OnRequestCreated(handler func(requests.Request)) func() {
	return subscribe(h, TopicRequestCreated, handler)
}

func (h *Hub) OnOperationCompleted(handler func(OperationEvent)) func() {
	return subscribe(h, TopicOperationCompleted, handler)
}

func (h *Hub) OnOperationFailed(handler func(OperationEvent)) func() {
	return subscribe(h, TopicOperationFailed, handler)
}

func (h *Hub) OnCounts(handler func(Counts)) func() {
	return subscribe(h, TopicCounts, handler)
}

// Listener reacts to settled day-2 requests.
type Listener interface {
	OnOperationCompleted(opType requests.OperationType, resourceIds []string)
	OnOperationFailed(opType requests.OperationType, resourceIds []string)
}

// CountsListener reacts to changes of notification counts.
type CountsListener interface {
	OnNotificationsCounts(Counts)
}

// Bind subscribes the listener to the hub.
//
// When the listener is also a CountsListener, it receives counts too.
//
// # Returns
//
// - func(): unsubscribes all.
func Bind(h *Hub, l Listener) func() {
	unsubs := []func(){
		h.OnOperationCompleted(func(ev OperationEvent) {
			l.OnOperationCompleted(ev.Type, ev.ResourceIds)
		}),
		h.OnOperationFailed(func(ev OperationEvent) {
			l.OnOperationFailed(ev.Type, ev.ResourceIds)
		}),
	}
	if cl, ok := l.(CountsListener); ok {
		unsubs = append(unsubs, h.OnCounts(cl.OnNotificationsCounts))
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}
