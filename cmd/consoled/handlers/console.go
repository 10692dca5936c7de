package handlers

import (
	"sync"

	"github.com/opst/fleetdeck/pkg/notifications"
	"github.com/opst/fleetdeck/pkg/query"
	"github.com/opst/fleetdeck/pkg/rest"
	"github.com/opst/fleetdeck/pkg/store"
)

// Console holds stores of a console session.
//
// Stores are bound to the notification hub, and navigations requested by them
// are applied through Router.
type Console struct {
	client  rest.Client
	hub     *notifications.Hub
	options []store.Option
	router  *Router

	mu         sync.Mutex
	containers *store.ContainersStore
	templates  *store.TemplatesStore
	unbind     []func()
}

// NewConsole creates a session. client can be given later with SetClient, before any request.
func NewConsole(client rest.Client, hub *notifications.Hub, options ...store.Option) *Console {
	c := &Console{client: client, hub: hub, options: options}
	c.router = &Router{containers: c.Containers}
	return c
}

// SetClient replaces the backend client. Stores are recreated.
func (c *Console) SetClient(client rest.Client) {
	c.mu.Lock()
	c.client = client
	c.mu.Unlock()
	c.Reset()
}

func (c *Console) Client() rest.Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.client
}

// Containers returns the containers store, creating it if needed.
func (c *Console) Containers() *store.ContainersStore {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.open()
	return c.containers
}

// Templates returns the templates store, creating it if needed.
func (c *Console) Templates() *store.TemplatesStore {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.open()
	return c.templates
}

func (c *Console) Router() *Router {
	return c.router
}

// open creates stores if they are not. c.mu should be locked.
func (c *Console) open() {
	if c.containers != nil {
		return
	}
	c.containers = store.NewContainersStore(c.client, c.router, c.hub, c.options...)
	c.templates = store.NewTemplatesStore(c.client, c.hub, c.options...)
	c.unbind = []func(){
		notifications.Bind(c.hub, c.containers),
		notifications.Bind(c.hub, c.templates),
	}
}

// Reset drops all view-states, as a fresh session.
//
// Calls in flight are cancelled, but Reset does not wait them, so that it can be
// called from them (for example, by a hook of the backend client).
func (c *Console) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.drop(false)
	c.router.forget()
}

// Close drops stores, waiting calls in flight.
func (c *Console) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.drop(true)
}

func (c *Console) drop(wait bool) {
	for _, u := range c.unbind {
		u()
	}
	c.unbind = nil
	containers, templates := c.containers, c.templates
	c.containers, c.templates = nil, nil
	if containers == nil {
		return
	}
	closeAll := func() {
		containers.Close()
		templates.Close()
	}
	if wait {
		closeAll()
	} else {
		go closeAll()
	}
}

// Navigation is a route stores requested.
type Navigation struct {
	Route       string              `json:"route"`
	Query       query.SearchOptions `json:"query,omitempty"`
	ContainerId string              `json:"containerId,omitempty"`
	ClusterId   string              `json:"clusterId,omitempty"`
	CompositeId string              `json:"compositeId,omitempty"`
}

// routes
const (
	RouteList      = "list"
	RouteDetails   = "details"
	RouteCluster   = "cluster"
	RouteComposite = "composite"
)

// Router is the store.Navigator of the console.
//
// It remembers the last navigation, and opens the view of the route in the containers store.
type Router struct {
	containers func() *store.ContainersStore

	mu   sync.Mutex
	last *Navigation
}

var _ store.Navigator = &Router{}

// Last returns the last navigation, or nil.
func (r *Router) Last() *Navigation {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.last == nil {
		return nil
	}
	nav := *r.last
	return &nav
}

func (r *Router) forget() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.last = nil
}

func (r *Router) push(nav Navigation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.last = &nav
}

func (r *Router) OpenList(q query.SearchOptions) {
	r.push(Navigation{Route: RouteList, Query: q})
	r.containers().OpenList(q, true, true)
}

func (r *Router) OpenDetails(containerId string, clusterId string, compositeId string) {
	r.push(Navigation{Route: RouteDetails, ContainerId: containerId, ClusterId: clusterId, CompositeId: compositeId})
	r.containers().OpenDetails(containerId, clusterId, compositeId)
}

func (r *Router) OpenClusterDetails(clusterId string, compositeId string) {
	r.push(Navigation{Route: RouteCluster, ClusterId: clusterId, CompositeId: compositeId})
	r.containers().OpenClusterDetails(clusterId, compositeId)
}

func (r *Router) OpenCompositeDetails(compositeId string) {
	r.push(Navigation{Route: RouteComposite, CompositeId: compositeId})
	r.containers().OpenCompositeDetails(compositeId)
}
