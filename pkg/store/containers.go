package store

import (
	"context"
	"maps"
	"strings"
	"time"

	"github.com/opst/fleetdeck/pkg/api/types/containers"
	"github.com/opst/fleetdeck/pkg/api/types/documents"
	"github.com/opst/fleetdeck/pkg/cluster"
	"github.com/opst/fleetdeck/pkg/notifications"
	"github.com/opst/fleetdeck/pkg/query"
	"github.com/opst/fleetdeck/pkg/rest"
	"github.com/opst/fleetdeck/pkg/tracker"
	"golang.org/x/sync/errgroup"
)

// ContainersStore is the store of the containers view: containers, applications,
// clusters and their details.
type ContainersStore struct {
	*core[ViewState]

	client  rest.Client
	tracker *tracker.Tracker
	nav     Navigator
	sink    RequestSink
}

var (
	_ notifications.Listener       = &ContainersStore{}
	_ notifications.CountsListener = &ContainersStore{}
)

// NewContainersStore creates a store.
//
// # Args
//
// - client: backend client.
//
// - nav: Navigator called to change routes.
//
// - sink: receives submitted day-2 requests. It can be nil.
func NewContainersStore(client rest.Client, nav Navigator, sink RequestSink, options ...Option) *ContainersStore {
	o := buildOptions(options)
	if sink == nil {
		sink = nopSink{}
	}
	return &ContainersStore{
		core:    newCore[ViewState](o),
		client:  client,
		tracker: tracker.New(tracker.WithLogger(o.logger)),
		nav:     nav,
		sink:    sink,
	}
}

// withCategory fills the default category in.
func withCategory(q query.SearchOptions) query.SearchOptions {
	return q.With(query.KeyCategory, q.Category())
}

// OpenList opens the list of containers or applications, as the category of q says.
//
// When the list has been loaded and forceReload is false, it does nothing.
// When keepContext is false, the context panel is closed.
func (s *ContainersStore) OpenList(q query.SearchOptions, forceReload bool, keepContext bool) {
	s.update(nil, func(st *ViewState) bool {
		if !forceReload && st.ListView.Items != nil {
			return false
		}
		q = withCategory(q)

		st.ListView.QueryOptions = q
		st.Selection = nil
		if !keepContext {
			st.ContextView.close()
		}

		op := s.tracker.Request(tracker.List, q.Key())
		if op == nil {
			return true
		}
		s.tracker.Cancel(tracker.Details, tracker.Stats, tracker.Logs)
		st.ListView.ItemsLoading = true
		st.ListView.Error = nil

		s.spawn(func(ctx context.Context) { s.loadList(ctx, op, q, "") })
		return true
	})
}

// OpenListNext loads the next page of the list, and appends it.
func (s *ContainersStore) OpenListNext(q query.SearchOptions, nextPageLink string) {
	s.update(nil, func(st *ViewState) bool {
		q = withCategory(q)
		st.ListView.QueryOptions = q

		op := s.tracker.Request(tracker.List, q.Key()+" "+nextPageLink)
		if op == nil {
			return true
		}
		st.ListView.ItemsLoading = true
		st.ListView.Error = nil

		s.spawn(func(ctx context.Context) { s.loadList(ctx, op, q, nextPageLink) })
		return true
	})
}

// CloseList drops items of the list. Cached hosts are kept.
func (s *ContainersStore) CloseList() {
	s.update(nil, func(st *ViewState) bool {
		s.tracker.Cancel(tracker.List)
		st.ListView.Items = nil
		st.ListView.ItemsLoading = false
		st.ListView.ItemsCount = 0
		st.ListView.NextPageLink = ""
		st.ListView.Error = nil
		return true
	})
}

// loadPage loads the first page by first, or the page of nextPageLink.
func loadPage[T any](
	ctx context.Context, client rest.Client, nextPageLink string,
	first func(context.Context) (documents.List[T], error),
) (documents.List[T], error) {
	if nextPageLink == "" {
		return first(ctx)
	}
	env, err := client.LoadNextPage(ctx, nextPageLink)
	if err != nil {
		return documents.List[T]{}, err
	}
	return documents.Decode[T](env)
}

func (s *ContainersStore) loadList(ctx context.Context, op *tracker.Operation, q query.SearchOptions, nextPageLink string) {
	appending := nextPageLink != ""

	if q.Category() == query.CategoryApplications {
		list, err := loadPage(ctx, s.client, nextPageLink, func(ctx context.Context) (documents.List[containers.CompositeComponent], error) {
			return s.client.LoadCompositeComponents(ctx, q)
		})
		if err != nil {
			s.listError(op, err)
			return
		}
		items, err := s.loadComposites(ctx, list.ToArray())
		if err != nil {
			s.listError(op, err)
			return
		}
		s.update(op, func(st *ViewState) bool {
			st.ListView.merge(items, list.TotalCount, list.NextPageLink, appending)
			return true
		})
		return
	}

	list, err := loadPage(ctx, s.client, nextPageLink, func(ctx context.Context) (documents.List[containers.Container], error) {
		return s.client.LoadContainers(ctx, q)
	})
	if err != nil {
		s.listError(op, err)
		return
	}
	cs := list.ToArray()
	items := make([]ListItem, 0, len(cs))
	for _, c := range cs {
		items = append(items, containerListItem(decorateContainer(c)))
	}
	applied := s.update(op, func(st *ViewState) bool {
		st.ListView.merge(items, list.TotalCount, list.NextPageLink, appending)
		return true
	})
	if !applied || len(parentLinks(cs)) == 0 {
		return
	}

	hosts, loaded, err := s.hostsFor(ctx, cs)
	if err != nil {
		s.listError(op, err)
		return
	}
	s.update(op, func(st *ViewState) bool {
		cacheHosts(st, loaded)
		for i := range st.ListView.Items {
			for _, c := range st.ListView.Items[i].members() {
				c.withHost(hosts)
			}
		}
		return true
	})
}

// loadComposites loads member containers of applications concurrently.
func (s *ContainersStore) loadComposites(ctx context.Context, ccs []containers.CompositeComponent) ([]ListItem, error) {
	items := make([]ListItem, len(ccs))
	g, gctx := errgroup.WithContext(ctx)
	for i, cc := range ccs {
		g.Go(func() error {
			members, err := s.client.LoadContainersForComposite(gctx, cc.DocumentId())
			if err != nil {
				return err
			}
			items[i] = compositeListItem(decorateComposite(cc, members.ToArray()))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return items, nil
}

func (lv *ListView) merge(items []ListItem, totalCount *int, nextPageLink string, appending bool) {
	if appending && lv.Items != nil {
		items = mergeItems(lv.Items, items)
	}
	lv.Items = items
	lv.ItemsLoading = false
	if totalCount != nil {
		lv.ItemsCount = *totalCount
	}
	lv.NextPageLink = nextPageLink
}

func (s *ContainersStore) listError(op *tracker.Operation, err error) {
	s.logger.Warnf("cannot load list: %s", err)
	s.update(op, func(st *ViewState) bool {
		st.ListView.ItemsLoading = false
		st.ListView.Error = errorViewOf(err)
		return true
	})
}

func (s *ContainersStore) detailsError(op *tracker.Operation, err error) {
	s.logger.Warnf("cannot load details: %s", err)
	s.update(op, func(st *ViewState) bool {
		if st.Selection == nil {
			return false
		}
		st.Selection.Error = errorViewOf(err)
		return true
	})
}

// hostsFor returns hosts running containers, and hosts loaded now.
//
// Hosts are read from the cache. Only hosts missing in the cache are loaded.
// Callers merge loaded hosts into the cache with cacheHosts, in the update applying them.
func (s *ContainersStore) hostsFor(ctx context.Context, cs []containers.Container) (hosts map[string]containers.Host, loaded map[string]containers.Host, err error) {
	missing := []string{}
	s.peek(func(st *ViewState) {
		hosts = maps.Clone(st.ListView.Hosts)
		for _, l := range parentLinks(cs) {
			if _, ok := st.ListView.Hosts[l]; !ok {
				missing = append(missing, l)
			}
		}
	})
	if hosts == nil {
		hosts = map[string]containers.Host{}
	}
	if len(missing) == 0 {
		return hosts, nil, nil
	}

	loaded, err = s.client.LoadHostsByLinks(ctx, missing)
	if err != nil {
		return nil, nil, err
	}
	maps.Copy(hosts, loaded)
	return hosts, loaded, nil
}

// cacheHosts adds hosts to the cache. Cached hosts are never dropped.
func cacheHosts(st *ViewState, loaded map[string]containers.Host) {
	if len(loaded) == 0 {
		return
	}
	if st.ListView.Hosts == nil {
		st.ListView.Hosts = map[string]containers.Host{}
	}
	maps.Copy(st.ListView.Hosts, loaded)
}

// enrichSelection sets host names of containers in the selection.
func (s *ContainersStore) enrichSelection(ctx context.Context, op *tracker.Operation, cs []containers.Container) {
	if len(parentLinks(cs)) == 0 {
		return
	}
	hosts, loaded, err := s.hostsFor(ctx, cs)
	if err != nil {
		s.logger.Warnf("cannot load hosts: %s", err)
		return
	}
	s.update(op, func(st *ViewState) bool {
		cacheHosts(st, loaded)
		for _, c := range st.Selection.containers() {
			c.withHost(hosts)
		}
		return st.Selection != nil || len(loaded) != 0
	})
}

// beginDetails supersedes operations on details, and starts a new one.
func (s *ContainersStore) beginDetails(ids ...string) *tracker.Operation {
	s.tracker.Cancel(tracker.Details, tracker.Stats, tracker.Logs)
	return s.tracker.Force(tracker.Details, strings.Join(ids, "/"))
}

// selectionFor returns the selection to be modified for the chain of ids.
// Levels not in the chain are dropped.
func selectionFor(st *ViewState, compositeId string, clusterId string) *Selection {
	sel := st.Selection
	if sel == nil {
		sel = &Selection{}
	}
	if compositeId == "" {
		sel.Composite = nil
	}
	if clusterId == "" {
		sel.Cluster = nil
	}
	sel.Error = nil
	return sel
}

// OpenDetails opens a container, in a cluster and/or an application when their ids are given.
//
// Levels already shown are not reloaded.
func (s *ContainersStore) OpenDetails(containerId string, clusterId string, compositeId string) {
	s.update(nil, func(st *ViewState) bool {
		op := s.beginDetails(compositeId, clusterId, containerId)
		sel := selectionFor(st, compositeId, clusterId)
		if compositeId != "" {
			s.openComposite(sel, compositeId, op, false)
		}
		if clusterId != "" {
			s.openCluster(sel, clusterId, compositeId, op, false)
		}
		s.openContainer(sel, containerId, op)
		st.Selection = sel
		return true
	})
}

// OpenClusterDetails opens a cluster, in an application when compositeId is given.
func (s *ContainersStore) OpenClusterDetails(clusterId string, compositeId string) {
	s.update(nil, func(st *ViewState) bool {
		op := s.beginDetails(compositeId, clusterId)
		sel := selectionFor(st, compositeId, clusterId)
		if compositeId != "" {
			s.openComposite(sel, compositeId, op, false)
		}
		s.openCluster(sel, clusterId, compositeId, op, true)
		st.Selection = sel
		return true
	})
}

// OpenCompositeDetails opens an application.
func (s *ContainersStore) OpenCompositeDetails(compositeId string) {
	s.update(nil, func(st *ViewState) bool {
		op := s.beginDetails(compositeId)
		sel := selectionFor(st, compositeId, "")
		s.openComposite(sel, compositeId, op, true)
		st.Selection = sel
		return true
	})
}

func (s *ContainersStore) openComposite(sel *Selection, compositeId string, op *tracker.Operation, force bool) {
	cur := sel.Composite
	if cur != nil && cur.DocumentId == compositeId && !force {
		return
	}

	next := &CompositeDetails{
		DocumentId: compositeId,
		Item: &CompositeItem{
			CompositeComponent: containers.CompositeComponent{Name: compositeId},
			DocumentId:         compositeId,
		},
		ListView: DetailsListView{ItemsLoading: true},
	}
	if cur != nil && cur.DocumentId == compositeId {
		next.ListView.Items = cur.ListView.Items
	}
	sel.Composite = next
	sel.Cluster = nil
	sel.Container = nil

	s.spawn(func(ctx context.Context) { s.loadComposite(ctx, op, compositeId) })
}

func (s *ContainersStore) loadComposite(ctx context.Context, op *tracker.Operation, compositeId string) {
	var cc containers.CompositeComponent
	var members documents.List[containers.Container]

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		cc, err = s.client.LoadCompositeComponent(gctx, compositeId)
		return err
	})
	g.Go(func() error {
		var err error
		members, err = s.client.LoadContainersForComposite(gctx, compositeId)
		return err
	})
	if err := g.Wait(); err != nil {
		s.detailsError(op, err)
		return
	}

	cs := members.ToArray()
	item := decorateComposite(cc, cs)
	items := aggregate(cs)
	applied := s.update(op, func(st *ViewState) bool {
		d := st.Selection.compositeOf(compositeId)
		if d == nil {
			return false
		}
		d.Item = &item
		d.ListView.Items = items
		d.ListView.ItemsLoading = false
		return true
	})
	if applied {
		s.enrichSelection(ctx, op, cs)
	}
}

func (s *ContainersStore) openCluster(sel *Selection, clusterId string, compositeId string, op *tracker.Operation, force bool) {
	descriptionLink, contextId := cluster.Split(clusterId)
	key := cluster.Key(descriptionLink, contextId)
	documentId := documents.DocumentId(key)

	cur := sel.Cluster
	if cur != nil && cur.DocumentId == documentId && !force {
		return
	}

	next := &ClusterDetails{
		DocumentId:      documentId,
		DescriptionLink: key,
		Item:            decorateCluster(cluster.New(key, nil)),
		ListView:        DetailsListView{ItemsLoading: true},
	}
	if cur != nil && cur.DocumentId == documentId {
		next.ListView.Items = cur.ListView.Items
	}
	sel.Cluster = next
	sel.Container = nil

	if contextId == "" {
		contextId = compositeId
	}
	s.spawn(func(ctx context.Context) { s.loadCluster(ctx, op, key, descriptionLink, contextId) })
}

func (s *ContainersStore) loadCluster(ctx context.Context, op *tracker.Operation, key string, descriptionLink string, contextId string) {
	cs, err := s.client.LoadClusterContainers(ctx, descriptionLink, contextId)
	if err != nil {
		s.detailsError(op, err)
		return
	}

	item := decorateCluster(cluster.New(key, cs))
	items := make([]ListItem, 0, len(cs))
	for _, c := range item.Containers {
		items = append(items, containerListItem(c))
	}
	documentId := documents.DocumentId(key)
	applied := s.update(op, func(st *ViewState) bool {
		d := st.Selection.clusterOf(documentId)
		if d == nil {
			return false
		}
		if st.Selection.Composite != nil {
			st.Selection.Composite.Expanded = true
		}
		d.Item = item
		d.ListView.Items = items
		d.ListView.ItemsLoading = false
		return true
	})
	if applied {
		s.enrichSelection(ctx, op, cs)
	}
}

func (s *ContainersStore) openContainer(sel *Selection, containerId string, op *tracker.Operation) {
	next := &ContainerDetails{}
	if cur := sel.containerOf(containerId); cur != nil {
		// keep what is shown until reloaded.
		*next = *cur
	}
	next.DocumentId = containerId
	next.LogsSettings = LogsSettings{SinceDuration: LogsSinceDurations[0]}
	next.LogsLoading = true
	next.StatsLoading = true
	sel.Container = next

	s.spawn(func(ctx context.Context) { s.loadContainer(ctx, op, containerId, true) })
}

// loadContainer loads the selected container, and its host.
// When withService is true, its exposed service is loaded too.
func (s *ContainersStore) loadContainer(ctx context.Context, op *tracker.Operation, containerId string, withService bool) {
	c, err := s.client.LoadContainer(ctx, containerId)
	if err != nil {
		s.detailsError(op, err)
		return
	}

	item := decorateContainer(c)
	applied := s.update(op, func(st *ViewState) bool {
		d := st.Selection.containerOf(containerId)
		if d == nil {
			return false
		}
		switch st.Selection.Parent(LevelContainer) {
		case LevelCluster:
			st.Selection.Cluster.Expanded = true
		case LevelComposite:
			st.Selection.Composite.Expanded = true
		}
		d.Instance = &item
		return true
	})
	if !applied {
		return
	}
	s.enrichSelection(ctx, op, []containers.Container{c})

	if !withService || c.ExposedServiceLink == "" {
		return
	}
	es, err := s.client.LoadExposedService(ctx, c.ExposedServiceLink)
	if err != nil {
		s.logger.Warnf("cannot load exposed service %s: %s", c.ExposedServiceLink, err)
		return
	}
	host, err := s.client.LoadHostByLink(ctx, es.HostLink)
	if err != nil {
		s.logger.Warnf("cannot load host %s: %s", es.HostLink, err)
		return
	}
	s.update(op, func(st *ViewState) bool {
		d := st.Selection.containerOf(containerId)
		if d == nil {
			return false
		}
		d.ExposedService = &ExposedServiceView{ExposedService: es, Hostname: hostnameOf(host.Address)}
		return true
	})
}

// selectedContainer returns id of the container selected, or empty.
func (s *ContainersStore) selectedContainer() (id string, since time.Duration) {
	s.peek(func(st *ViewState) {
		if c := st.Selection.container(); c != nil {
			id = c.DocumentId
			since = c.LogsSettings.SinceDuration
		}
	})
	return id, since
}

// RefreshContainer reloads the selected container.
func (s *ContainersStore) RefreshContainer() {
	id, _ := s.selectedContainer()
	if id == "" {
		return
	}
	op := s.tracker.Request(tracker.Details, "refresh/"+id)
	if op == nil {
		return
	}
	s.spawn(func(ctx context.Context) { s.loadContainer(ctx, op, id, false) })
}

// RefreshContainerStats reloads stats of the selected container.
func (s *ContainersStore) RefreshContainerStats() {
	id, _ := s.selectedContainer()
	if id == "" {
		return
	}
	op := s.tracker.Request(tracker.Stats, id)
	if op == nil {
		return
	}
	s.spawn(func(ctx context.Context) {
		stats, err := s.client.LoadContainerStats(ctx, id)
		s.update(op, func(st *ViewState) bool {
			d := st.Selection.containerOf(id)
			if d == nil {
				return false
			}
			d.StatsLoading = false
			if err != nil {
				st.Selection.Error = errorViewOf(err)
				return true
			}
			d.Stats = statsViewOf(stats)
			return true
		})
	})
}

// RefreshContainerLogs reloads logs of the selected container, since the duration in its settings.
func (s *ContainersStore) RefreshContainerLogs() {
	id, since := s.selectedContainer()
	if id == "" {
		return
	}
	op := s.tracker.Request(tracker.Logs, id+"/"+since.String())
	if op == nil {
		return
	}
	s.spawn(func(ctx context.Context) {
		logs, err := s.client.LoadContainerLogs(ctx, id, since)
		s.update(op, func(st *ViewState) bool {
			d := st.Selection.containerOf(id)
			if d == nil {
				return false
			}
			d.LogsLoading = false
			if err != nil {
				st.Selection.Error = errorViewOf(err)
				return true
			}
			d.Logs = logs
			return true
		})
	})
}

// ChangeLogsSinceDuration changes the duration logs are read since.
func (s *ContainersStore) ChangeLogsSinceDuration(since time.Duration) {
	s.update(nil, func(st *ViewState) bool {
		d := st.Selection.container()
		if d == nil {
			return false
		}
		d.LogsSettings.SinceDuration = since
		return true
	})
}

// OpenShell loads the shell uri of the container. It is shown if the container is still selected.
func (s *ContainersStore) OpenShell(containerId string) {
	s.spawn(func(ctx context.Context) {
		uri, err := s.client.LoadContainerShellUri(ctx, containerId)
		if err != nil {
			s.detailsError(nil, err)
			return
		}
		s.update(nil, func(st *ViewState) bool {
			d := st.Selection.containerOf(containerId)
			if d == nil {
				return false
			}
			d.Shell = &ShellView{ShellUri: shellPath(uri)}
			return true
		})
	})
}

func (s *ContainersStore) CloseShell() {
	s.update(nil, func(st *ViewState) bool {
		d := st.Selection.container()
		if d == nil {
			return false
		}
		d.Shell = nil
		return true
	})
}

func (s *ContainersStore) OpenToolbarRequests() {
	s.update(nil, func(st *ViewState) bool {
		st.ContextView.open(PanelRequests)
		return true
	})
}

func (s *ContainersStore) OpenToolbarEventLogs() {
	s.update(nil, func(st *ViewState) bool {
		st.ContextView.open(PanelEventLogs)
		return true
	})
}

func (s *ContainersStore) CloseToolbar() {
	s.update(nil, func(st *ViewState) bool {
		st.ContextView.close()
		return true
	})
}

// OnNotificationsCounts updates counters on panel buttons.
func (s *ContainersStore) OnNotificationsCounts(c notifications.Counts) {
	s.update(nil, func(st *ViewState) bool {
		st.ContextView.count(c)
		return true
	})
}
