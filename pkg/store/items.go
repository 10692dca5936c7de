package store

import (
	"net/url"
	"strings"
	"time"

	"github.com/opst/fleetdeck/pkg/api/types/containers"
	"github.com/opst/fleetdeck/pkg/cluster"
	"github.com/opst/fleetdeck/pkg/utils"
	"k8s.io/apimachinery/pkg/api/resource"
)

type ItemType string

const (
	TypeSingle    ItemType = "SINGLE"
	TypeCluster   ItemType = "CLUSTER"
	TypeComposite ItemType = "COMPOSITE"
	TypeImage     ItemType = "IMAGE"
	TypeTemplate  ItemType = "TEMPLATE"
)

// ContainerItem is a container decorated for views.
type ContainerItem struct {
	containers.Container

	DocumentId     string `json:"documentId"`
	Icon           string `json:"icon,omitempty"`
	HostDocumentId string `json:"hostDocumentId,omitempty"`

	// set after hosts are resolved.
	HostName    string `json:"hostName,omitempty"`
	HostAddress string `json:"hostAddress,omitempty"`

	ParsedAttributes map[string]any `json:"parsedAttributes,omitempty"`
}

func decorateContainer(c containers.Container) ContainerItem {
	return ContainerItem{
		Container:        c,
		DocumentId:       c.DocumentId(),
		Icon:             cluster.ImageIcon(c.Image),
		HostDocumentId:   c.HostDocumentId(),
		ParsedAttributes: c.ParsedAttributes(),
	}
}

func decorateContainers(cs []containers.Container) []ContainerItem {
	return utils.Map(cs, decorateContainer)
}

// withHost sets host names when hosts have the parent of the container.
func (ci *ContainerItem) withHost(hosts map[string]containers.Host) {
	h, ok := hosts[ci.ParentLink]
	if !ok {
		return
	}
	ci.HostName = h.DisplayName()
	ci.HostAddress = h.Address
}

// ClusterItem is a cluster decorated for views.
type ClusterItem struct {
	Id              string          `json:"id"`
	DocumentId      string          `json:"documentId"`
	DescriptionLink string          `json:"descriptionLink"`
	Name            string          `json:"name"`
	Icon            string          `json:"icon,omitempty"`
	Containers      []ContainerItem `json:"containers,omitempty"`
}

func decorateCluster(c *cluster.Cluster) *ClusterItem {
	return &ClusterItem{
		Id:              c.Id,
		DocumentId:      c.DocumentId,
		DescriptionLink: c.DescriptionLink,
		Name:            c.Name,
		Icon:            c.Icon,
		Containers:      decorateContainers(c.Containers),
	}
}

func (c *ClusterItem) Size() int {
	return len(c.Containers)
}

// CompositeItem is an application decorated for views.
type CompositeItem struct {
	containers.CompositeComponent

	DocumentId string `json:"documentId"`

	// icons of images of member containers, without duplication.
	Icons []string `json:"icons,omitempty"`

	Containers []ContainerItem `json:"containers,omitempty"`
}

func decorateComposite(cc containers.CompositeComponent, members []containers.Container) CompositeItem {
	icons := utils.Distinct(utils.Map(members, func(c containers.Container) string {
		return cluster.ImageIcon(c.Image)
	}))
	return CompositeItem{
		CompositeComponent: cc,
		DocumentId:         cc.DocumentId(),
		Icons:              icons,
		Containers:         decorateContainers(members),
	}
}

// ListItem is an element of lists. One of Container, Cluster or Composite is set, as Type says.
type ListItem struct {
	Type      ItemType       `json:"type"`
	Container *ContainerItem `json:"container,omitempty"`
	Cluster   *ClusterItem   `json:"cluster,omitempty"`
	Composite *CompositeItem `json:"composite,omitempty"`
}

func containerListItem(c ContainerItem) ListItem {
	return ListItem{Type: TypeSingle, Container: &c}
}

func compositeListItem(c CompositeItem) ListItem {
	return ListItem{Type: TypeComposite, Composite: &c}
}

// Link returns the self link of the item. Clusters answer their cluster id.
func (i ListItem) Link() string {
	switch {
	case i.Container != nil:
		return i.Container.DocumentSelfLink
	case i.Cluster != nil:
		return i.Cluster.Id
	case i.Composite != nil:
		return i.Composite.DocumentSelfLink
	}
	return ""
}

func (i ListItem) DocumentId() string {
	switch {
	case i.Container != nil:
		return i.Container.DocumentId
	case i.Cluster != nil:
		return i.Cluster.DocumentId
	case i.Composite != nil:
		return i.Composite.DocumentId
	}
	return ""
}

// members returns containers in the item.
func (i *ListItem) members() []*ContainerItem {
	ret := []*ContainerItem{}
	switch {
	case i.Container != nil:
		ret = append(ret, i.Container)
	case i.Cluster != nil:
		for n := range i.Cluster.Containers {
			ret = append(ret, &i.Cluster.Containers[n])
		}
	case i.Composite != nil:
		for n := range i.Composite.Containers {
			ret = append(ret, &i.Composite.Containers[n])
		}
	}
	return ret
}

// aggregate groups containers into list items of clusters and single containers.
func aggregate(cs []containers.Container) []ListItem {
	entries := cluster.Aggregate(cs)
	items := make([]ListItem, 0, len(entries))
	for _, e := range entries {
		if e.IsCluster() {
			items = append(items, ListItem{Type: TypeCluster, Cluster: decorateCluster(e.Cluster)})
			continue
		}
		items = append(items, containerListItem(decorateContainer(*e.Container)))
	}
	return items
}

// mergeItems concatenates lists, dropping items of the same link as preceding ones.
func mergeItems(former []ListItem, latter []ListItem) []ListItem {
	return utils.DistinctBy(append(append([]ListItem{}, former...), latter...), ListItem.Link)
}

// parentLinks returns distinct host links of containers.
func parentLinks(cs []containers.Container) []string {
	links := utils.Map(
		utils.Filter(cs, func(c containers.Container) bool { return c.ParentLink != "" }),
		func(c containers.Container) string { return c.ParentLink },
	)
	return utils.Distinct(links)
}

// StatsView is resource usage of a container, with human readable memory sizes.
type StatsView struct {
	containers.Stats

	MemUsageText string `json:"memUsageText"`
	MemLimitText string `json:"memLimitText"`
}

func statsViewOf(s *containers.Stats) *StatsView {
	if s == nil {
		return nil
	}
	return &StatsView{
		Stats:        *s,
		MemUsageText: memoryText(s.MemUsage),
		MemLimitText: memoryText(s.MemLimit),
	}
}

// memoryText formats bytes in binary SI, like "512Mi".
func memoryText(bytes int64) string {
	return resource.NewQuantity(bytes, resource.BinarySI).String()
}

type ExposedServiceView struct {
	containers.ExposedService

	// Hostname is the host part of the address of the host publishing the service.
	Hostname string `json:"hostname,omitempty"`
}

// hostnameOf extracts the host name from an address, with or without scheme.
func hostnameOf(address string) string {
	if address == "" {
		return ""
	}
	if !strings.Contains(address, "://") {
		address = "https://" + address
	}
	u, err := url.Parse(address)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

type ShellView struct {
	ShellUri string `json:"shellUri"`
}

// shellPath makes a shell uri relative, and ends it with "/".
func shellPath(uri string) string {
	uri = strings.TrimPrefix(uri, "/")
	if !strings.HasSuffix(uri, "/") {
		uri += "/"
	}
	return uri
}

// durations logs can be read since. The first is default.
var LogsSinceDurations = []time.Duration{
	15 * time.Minute,
	time.Hour,
	6 * time.Hour,
	24 * time.Hour,
}

type LogsSettings struct {
	SinceDuration time.Duration `json:"sinceDuration"`
}
