package store

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/opst/fleetdeck/pkg/api/types/documents"
	"github.com/opst/fleetdeck/pkg/api/types/requests"
	"github.com/opst/fleetdeck/pkg/api/types/templates"
	"github.com/opst/fleetdeck/pkg/cluster"
	"github.com/opst/fleetdeck/pkg/notifications"
	"github.com/opst/fleetdeck/pkg/query"
	"github.com/opst/fleetdeck/pkg/rest"
	"github.com/opst/fleetdeck/pkg/tracker"
	"github.com/opst/fleetdeck/pkg/utils"
	"golang.org/x/sync/errgroup"
)

// RecommendedImage is an image shown in the templates view when users search nothing.
type RecommendedImage struct {
	Name        string
	Description string
}

// max concurrency to load icons of templates
const iconLoaders = 4

// TemplatesViewState is the view-state tree of the templates view.
type TemplatesViewState struct {
	ListView TemplatesListView `json:"listView"`

	// Selection is the template opened, or nil.
	Selection *TemplateDetails `json:"selection,omitempty"`

	ContextView ContextView `json:"contextView"`
}

type TemplatesListView struct {
	// Items are nil until loaded.
	Items        []TemplateItem `json:"items"`
	ItemsLoading bool           `json:"itemsLoading"`

	// SearchedItems is true when Items are results of search, false when recommended.
	SearchedItems bool `json:"searchedItems"`

	QueryOptions query.SearchOptions `json:"queryOptions,omitempty"`
	Error        *ErrorView          `json:"error,omitempty"`
}

// TemplateItem is an image or a template in the list.
type TemplateItem struct {
	Type ItemType `json:"type"`

	// DocumentId is the id of a template. For images, it is the image name.
	DocumentId       string `json:"documentId"`
	DocumentSelfLink string `json:"documentSelfLink,omitempty"`

	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Icon        string   `json:"icon,omitempty"`
	Icons       []string `json:"icons,omitempty"`
	StarCount   int      `json:"starCount,omitempty"`
	Official    bool     `json:"official,omitempty"`

	// Provisioning is true while a request creating containers from this is being submitted.
	Provisioning bool       `json:"provisioning,omitempty"`
	Error        *ErrorView `json:"error,omitempty"`
}

func recommendedItem(img RecommendedImage) TemplateItem {
	return TemplateItem{
		Type:        TypeImage,
		DocumentId:  img.Name,
		Name:        img.Name,
		Description: img.Description,
		Icon:        cluster.ImageIcon(img.Name),
	}
}

func templateItemOf(e templates.Entry) TemplateItem {
	item := TemplateItem{
		Type:             TypeImage,
		DocumentId:       e.Name,
		DocumentSelfLink: e.DocumentSelfLink,
		Name:             e.Name,
		Description:      e.Description,
		StarCount:        e.StarCount,
		Official:         e.Official,
	}
	if e.TemplateType == templates.TemplateKind {
		item.Type = TypeTemplate
		item.DocumentId = documents.DocumentId(e.DocumentSelfLink)
		item.Icons = utils.Distinct(utils.Map(e.DescriptionImages, cluster.ImageIcon))
		return item
	}
	item.Icon = cluster.ImageIcon(e.Name)
	return item
}

// TemplateDetails is a template opened.
type TemplateDetails struct {
	DocumentId string `json:"documentId"`
	Name       string `json:"name"`

	// ListView has container definitions of the template.
	ListView ContainerDescriptionsView `json:"listView"`

	Networks []templates.NetworkDescription `json:"networks,omitempty"`

	Error *ErrorView `json:"error,omitempty"`

	// EditError is the last failure of editing the template.
	EditError *ErrorView `json:"editError,omitempty"`
}

type ContainerDescriptionsView struct {
	Items        []ContainerDescriptionItem `json:"items"`
	ItemsLoading bool                       `json:"itemsLoading"`
}

type ContainerDescriptionItem struct {
	templates.ContainerDescription

	DocumentId string `json:"documentId"`
	Icon       string `json:"icon,omitempty"`
}

// TemplatesStore is the store of the templates view.
type TemplatesStore struct {
	*core[TemplatesViewState]

	client      rest.Client
	tracker     *tracker.Tracker
	sink        RequestSink
	recommended []RecommendedImage
}

var (
	_ notifications.Listener       = &TemplatesStore{}
	_ notifications.CountsListener = &TemplatesStore{}
)

// NewTemplatesStore creates a store. sink can be nil.
func NewTemplatesStore(client rest.Client, sink RequestSink, options ...Option) *TemplatesStore {
	o := buildOptions(options)
	if sink == nil {
		sink = nopSink{}
	}
	return &TemplatesStore{
		core:        newCore[TemplatesViewState](o),
		client:      client,
		tracker:     tracker.New(tracker.WithLogger(o.logger)),
		sink:        sink,
		recommended: o.recommended,
	}
}

// showsRecommended tells whether q searches nothing but images.
func showsRecommended(q query.SearchOptions) bool {
	for k, vs := range q {
		if len(vs) == 0 {
			continue
		}
		switch k {
		case query.KeyCategory:
			if q.Get(k) != query.CategoryImages {
				return false
			}
		case query.KeyOccurrence:
		default:
			return false
		}
	}
	return true
}

// OpenTemplates searches templates and images.
//
// When q searches nothing, recommended images are shown without requests.
// When the same search has been shown and forceReload is false, it does nothing.
func (s *TemplatesStore) OpenTemplates(q query.SearchOptions, forceReload bool) {
	s.update(nil, func(st *TemplatesViewState) bool {
		lv := &st.ListView
		if !forceReload && lv.Items != nil && lv.QueryOptions.Key() == q.Key() {
			return false
		}
		lv.QueryOptions = q
		lv.Error = nil
		st.Selection = nil
		s.tracker.Cancel(tracker.Details)

		if showsRecommended(q) {
			s.tracker.Cancel(tracker.List)
			lv.Items = utils.Map(s.recommended, recommendedItem)
			lv.ItemsLoading = false
			lv.SearchedItems = false
			return true
		}

		op := s.tracker.Request(tracker.List, q.Key())
		if op == nil {
			return true
		}
		lv.ItemsLoading = true
		s.spawn(func(ctx context.Context) { s.loadTemplates(ctx, op, q) })
		return true
	})
}

func (s *TemplatesStore) loadTemplates(ctx context.Context, op *tracker.Operation, q query.SearchOptions) {
	entries, err := s.client.LoadTemplates(ctx, q)
	if err != nil {
		s.logger.Warnf("cannot search templates: %s", err)
		s.update(op, func(st *TemplatesViewState) bool {
			st.ListView.ItemsLoading = false
			st.ListView.Error = errorViewOf(err)
			return true
		})
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(iconLoaders)
	for i := range entries {
		e := &entries[i]
		if e.TemplateType != templates.TemplateKind || len(e.DescriptionImages) != 0 {
			continue
		}
		g.Go(func() error {
			images, err := s.client.LoadTemplateDescriptionImages(gctx, e.DocumentSelfLink)
			if err != nil {
				// icons are optional.
				s.logger.Debugf("cannot load images of %s: %s", e.DocumentSelfLink, err)
				return nil
			}
			e.DescriptionImages = images
			return nil
		})
	}
	g.Wait()

	items := utils.Map(entries, templateItemOf)
	s.update(op, func(st *TemplatesViewState) bool {
		st.ListView.Items = items
		st.ListView.ItemsLoading = false
		st.ListView.SearchedItems = true
		return true
	})
}

// OpenTemplateDetails opens a template with its container and network definitions.
func (s *TemplatesStore) OpenTemplateDetails(templateId string) {
	s.update(nil, func(st *TemplatesViewState) bool {
		op := s.tracker.Force(tracker.Details, templateId)
		st.Selection = &TemplateDetails{
			DocumentId: templateId,
			ListView:   ContainerDescriptionsView{ItemsLoading: true},
		}
		s.spawn(func(ctx context.Context) { s.loadTemplate(ctx, op, templateId) })
		return true
	})
}

func (s *TemplatesStore) loadTemplate(ctx context.Context, op *tracker.Operation, templateId string) {
	tpl, descs, networks, err := s.loadDescriptions(ctx, templateId)
	if err != nil {
		s.logger.Warnf("cannot load template %s: %s", templateId, err)
		s.update(op, func(st *TemplatesViewState) bool {
			if st.Selection == nil {
				return false
			}
			st.Selection.ListView.ItemsLoading = false
			st.Selection.Error = errorViewOf(err)
			return true
		})
		return
	}

	items := utils.Map(descs, func(d templates.ContainerDescription) ContainerDescriptionItem {
		return ContainerDescriptionItem{
			ContainerDescription: d,
			DocumentId:           documents.DocumentId(d.DocumentSelfLink),
			Icon:                 cluster.ImageIcon(d.Image),
		}
	})
	s.update(op, func(st *TemplatesViewState) bool {
		sel := st.Selection
		if sel == nil || sel.DocumentId != templateId {
			return false
		}
		sel.Name = tpl.Name
		sel.ListView.Items = items
		sel.ListView.ItemsLoading = false
		sel.Networks = networks
		return true
	})
}

// loadDescriptions loads a template and definitions it refers, concurrently.
//
// Definitions are in the order of the template.
func (s *TemplatesStore) loadDescriptions(ctx context.Context, templateId string) (
	templates.CompositeDescription, []templates.ContainerDescription, []templates.NetworkDescription, error,
) {
	tpl, err := s.client.LoadContainerTemplate(ctx, templateId)
	if err != nil {
		return tpl, nil, nil, err
	}

	raws := make([]json.RawMessage, len(tpl.DescriptionLinks))
	g, gctx := errgroup.WithContext(ctx)
	for i, link := range tpl.DescriptionLinks {
		g.Go(func() error {
			raw, err := s.client.LoadDocument(gctx, link)
			raws[i] = raw
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return tpl, nil, nil, err
	}

	descs := []templates.ContainerDescription{}
	networks := []templates.NetworkDescription{}
	for i, link := range tpl.DescriptionLinks {
		switch {
		case templates.IsContainerDescription(link):
			var d templates.ContainerDescription
			if err := json.Unmarshal(raws[i], &d); err != nil {
				return tpl, nil, nil, err
			}
			descs = append(descs, d)
		case templates.IsNetworkDescription(link):
			var n templates.NetworkDescription
			if err := json.Unmarshal(raws[i], &n); err != nil {
				return tpl, nil, nil, err
			}
			networks = append(networks, n)
		default:
			s.logger.Debugf("unknown description in template %s: %s", templateId, link)
		}
	}
	return tpl, descs, networks, nil
}

// SaveTemplateName renames the template opened.
func (s *TemplatesStore) SaveTemplateName(templateId string, name string) {
	s.spawn(func(ctx context.Context) {
		updated, err := s.client.UpdateContainerTemplate(ctx, templates.CompositeDescription{
			DocumentSelfLink: documents.LinkOf(documents.CompositeDescriptions, templateId),
			Name:             name,
		})
		s.update(nil, func(st *TemplatesViewState) bool {
			sel := st.Selection
			if sel == nil || sel.DocumentId != templateId {
				return false
			}
			if err != nil {
				sel.EditError = errorViewOf(err)
				return true
			}
			sel.EditError = nil
			sel.Name = updated.Name
			for i := range st.ListView.Items {
				if item := &st.ListView.Items[i]; item.Type == TypeTemplate && item.DocumentId == templateId {
					item.Name = updated.Name
				}
			}
			return true
		})
	})
}

// RemoveTemplate removes a template and its container definitions, then reloads the list.
func (s *TemplatesStore) RemoveTemplate(templateId string) {
	s.spawn(func(ctx context.Context) {
		err := s.removeTemplate(ctx, templateId)
		if err != nil {
			s.logger.Warnf("cannot remove template %s: %s", templateId, err)
			s.update(nil, func(st *TemplatesViewState) bool {
				if sel := st.Selection; sel != nil && sel.DocumentId == templateId {
					sel.EditError = errorViewOf(err)
				} else {
					st.ListView.Error = errorViewOf(err)
				}
				return true
			})
			return
		}

		var q query.SearchOptions
		s.update(nil, func(st *TemplatesViewState) bool {
			q = st.ListView.QueryOptions
			if sel := st.Selection; sel != nil && sel.DocumentId == templateId {
				st.Selection = nil
				return true
			}
			return false
		})
		s.OpenTemplates(q, true)
	})
}

func (s *TemplatesStore) removeTemplate(ctx context.Context, templateId string) error {
	tpl, err := s.client.LoadContainerTemplate(ctx, templateId)
	if err != nil {
		return err
	}
	for _, link := range tpl.DescriptionLinks {
		if !templates.IsContainerDescription(link) {
			continue
		}
		if err := s.client.DeleteDocument(ctx, link); err != nil {
			return err
		}
	}
	return s.client.RemoveContainerTemplate(ctx, templateId)
}

// CreateContainerFromTemplate provisions containers from an image or a template in the list.
//
// # Args
//
// - itemType: TypeImage or TypeTemplate.
//
// - itemId: image name, or template id.
//
// - group: tenant link the containers belong to. Optional.
func (s *TemplatesStore) CreateContainerFromTemplate(itemType ItemType, itemId string, group string) {
	s.markProvisioning(itemType, itemId, true, nil)
	s.spawn(func(ctx context.Context) {
		req, err := s.provisionRequest(ctx, itemType, itemId, group)
		if err == nil {
			req, err = s.client.SubmitRequest(ctx, req)
		}
		if err != nil {
			s.logger.Warnf("cannot create containers from %s: %s", itemId, err)
			s.markProvisioning(itemType, itemId, false, err)
			return
		}
		s.markProvisioning(itemType, itemId, false, nil)
		s.update(nil, func(st *TemplatesViewState) bool {
			st.ContextView.open(PanelRequests)
			return true
		})
		s.sink.RequestCreated(req)
	})
}

func (s *TemplatesStore) provisionRequest(ctx context.Context, itemType ItemType, itemId string, group string) (requests.Request, error) {
	if itemType == TypeTemplate {
		tpl, err := s.client.LoadContainerTemplate(ctx, itemId)
		if err != nil {
			return requests.Request{}, err
		}
		return requests.Provision(tpl.DocumentSelfLink, tpl.TenantLinks, group), nil
	}

	desc, err := s.client.CreateContainerDescription(ctx, templates.ContainerDescription{
		Name:       containerNameOf(itemId),
		Image:      itemId,
		PublishAll: true,
	})
	if err != nil {
		return requests.Request{}, err
	}
	return requests.Provision(desc.DocumentSelfLink, desc.TenantLinks, group), nil
}

// containerNameOf makes a container name from an image, like "kafka" for "bitnami/kafka:3".
func containerNameOf(image string) string {
	n := cluster.ImageName(image)
	if i := strings.LastIndex(n, "/"); 0 <= i {
		n = n[i+1:]
	}
	return n
}

func (s *TemplatesStore) markProvisioning(itemType ItemType, itemId string, provisioning bool, err error) {
	s.update(nil, func(st *TemplatesViewState) bool {
		changed := false
		for i := range st.ListView.Items {
			item := &st.ListView.Items[i]
			if item.Type != itemType || item.DocumentId != itemId {
				continue
			}
			item.Provisioning = provisioning
			item.Error = errorViewOf(err)
			changed = true
		}
		return changed
	})
}

// OnOperationCompleted opens the requests panel when containers have been created.
func (s *TemplatesStore) OnOperationCompleted(opType requests.OperationType, _ []string) {
	if opType != requests.Create {
		return
	}
	s.OpenToolbarRequests()
}

// OnOperationFailed opens the event logs panel when creation has failed.
func (s *TemplatesStore) OnOperationFailed(opType requests.OperationType, _ []string) {
	if opType != requests.Create {
		return
	}
	s.OpenToolbarEventLogs()
}

func (s *TemplatesStore) OpenToolbarRequests() {
	s.update(nil, func(st *TemplatesViewState) bool {
		st.ContextView.open(PanelRequests)
		return true
	})
}

func (s *TemplatesStore) OpenToolbarEventLogs() {
	s.update(nil, func(st *TemplatesViewState) bool {
		st.ContextView.open(PanelEventLogs)
		return true
	})
}

func (s *TemplatesStore) CloseToolbar() {
	s.update(nil, func(st *TemplatesViewState) bool {
		st.ContextView.close()
		return true
	})
}

func (s *TemplatesStore) OnNotificationsCounts(c notifications.Counts) {
	s.update(nil, func(st *TemplatesViewState) bool {
		st.ContextView.count(c)
		return true
	})
}
