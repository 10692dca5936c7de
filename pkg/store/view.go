package store

import (
	"github.com/opst/fleetdeck/pkg/api/types/containers"
	"github.com/opst/fleetdeck/pkg/api/types/requests"
	"github.com/opst/fleetdeck/pkg/query"
)

// ViewState is the view-state tree of the containers view.
type ViewState struct {
	ListView ListView `json:"listView"`

	// Selection is nil while the list is shown.
	Selection *Selection `json:"selection,omitempty"`

	ContextView ContextView `json:"contextView"`
}

type ListView struct {
	// Items are nil until loaded.
	Items        []ListItem          `json:"items"`
	ItemsLoading bool                `json:"itemsLoading"`
	ItemsCount   int                 `json:"itemsCount"`
	NextPageLink string              `json:"nextPageLink,omitempty"`
	QueryOptions query.SearchOptions `json:"queryOptions,omitempty"`
	Error        *ErrorView          `json:"error,omitempty"`

	// Hosts caches hosts by self link. Entries are never removed.
	Hosts map[string]containers.Host `json:"hosts,omitempty"`
}

// Level is a depth of selection.
type Level int

const (
	LevelNone Level = iota
	LevelComposite
	LevelCluster
	LevelContainer
)

// Selection is the chain of selected items: an application, a cluster and a container.
//
// Each level is optional, but levels present are nested in this order.
type Selection struct {
	Composite *CompositeDetails `json:"composite,omitempty"`
	Cluster   *ClusterDetails   `json:"cluster,omitempty"`
	Container *ContainerDetails `json:"container,omitempty"`

	// Error is the last failure of loading details.
	Error *ErrorView `json:"error,omitempty"`
}

// Deepest returns the innermost level selected.
func (s *Selection) Deepest() Level {
	switch {
	case s == nil:
		return LevelNone
	case s.Container != nil:
		return LevelContainer
	case s.Cluster != nil:
		return LevelCluster
	case s.Composite != nil:
		return LevelComposite
	}
	return LevelNone
}

// Parent returns the nearest level selected outside of l.
func (s *Selection) Parent(l Level) Level {
	if s == nil {
		return LevelNone
	}
	if l > LevelCluster && s.Cluster != nil {
		return LevelCluster
	}
	if l > LevelComposite && s.Composite != nil {
		return LevelComposite
	}
	return LevelNone
}

func (s *Selection) container() *ContainerDetails {
	if s == nil {
		return nil
	}
	return s.Container
}

// containerOf returns the selected container if it is of the id.
func (s *Selection) containerOf(id string) *ContainerDetails {
	if c := s.container(); c != nil && c.DocumentId == id {
		return c
	}
	return nil
}

func (s *Selection) clusterOf(id string) *ClusterDetails {
	if s != nil && s.Cluster != nil && s.Cluster.DocumentId == id {
		return s.Cluster
	}
	return nil
}

func (s *Selection) compositeOf(id string) *CompositeDetails {
	if s != nil && s.Composite != nil && s.Composite.DocumentId == id {
		return s.Composite
	}
	return nil
}

// itemsOf returns list items shown at the level.
func (s *Selection) itemsOf(l Level) []ListItem {
	switch l {
	case LevelComposite:
		return s.Composite.ListView.Items
	case LevelCluster:
		return s.Cluster.ListView.Items
	}
	return nil
}

// containers returns all containers shown in the selection.
func (s *Selection) containers() []*ContainerItem {
	if s == nil {
		return nil
	}
	ret := []*ContainerItem{}
	for _, lv := range []*DetailsListView{s.compositeList(), s.clusterList()} {
		if lv == nil {
			continue
		}
		for i := range lv.Items {
			ret = append(ret, lv.Items[i].members()...)
		}
	}
	if s.Cluster != nil && s.Cluster.Item != nil {
		for i := range s.Cluster.Item.Containers {
			ret = append(ret, &s.Cluster.Item.Containers[i])
		}
	}
	if s.Container != nil && s.Container.Instance != nil {
		ret = append(ret, s.Container.Instance)
	}
	return ret
}

func (s *Selection) compositeList() *DetailsListView {
	if s.Composite == nil {
		return nil
	}
	return &s.Composite.ListView
}

func (s *Selection) clusterList() *DetailsListView {
	if s.Cluster == nil {
		return nil
	}
	return &s.Cluster.ListView
}

// DetailsListView is a list nested in details.
type DetailsListView struct {
	Items        []ListItem `json:"items"`
	ItemsLoading bool       `json:"itemsLoading"`
}

type CompositeDetails struct {
	DocumentId string         `json:"documentId"`
	Item       *CompositeItem `json:"item,omitempty"`

	// ListView has clusters and containers of the application.
	ListView DetailsListView `json:"listView"`

	// Expanded tells an inner level is shown.
	Expanded bool `json:"expanded,omitempty"`
}

type ClusterDetails struct {
	DocumentId      string       `json:"documentId"`
	DescriptionLink string       `json:"descriptionLink"`
	Item            *ClusterItem `json:"item,omitempty"`

	ListView DetailsListView `json:"listView"`
	Expanded bool            `json:"expanded,omitempty"`
}

type ContainerDetails struct {
	DocumentId string         `json:"documentId"`
	Instance   *ContainerItem `json:"instance,omitempty"`

	Stats        *StatsView `json:"stats,omitempty"`
	StatsLoading bool       `json:"statsLoading"`

	Logs         string       `json:"logs,omitempty"`
	LogsLoading  bool         `json:"logsLoading"`
	LogsSettings LogsSettings `json:"logsSettings"`

	ExposedService *ExposedServiceView `json:"exposedService,omitempty"`
	Shell          *ShellView          `json:"shell,omitempty"`

	// day-2 operation submitted from the details, until it is settled.
	OperationInProgress requests.OperationType `json:"operationInProgress,omitempty"`

	// day-2 operation failed lastly.
	OperationFailure requests.OperationType `json:"operationFailure,omitempty"`
}
