package requests

import (
	"slices"
	"strings"

	"github.com/opst/fleetdeck/pkg/api/types/containers"
	"github.com/opst/fleetdeck/pkg/api/types/documents"
)

type ResourceType string

const (
	DockerContainer    ResourceType = "DOCKER_CONTAINER"
	CompositeComponent ResourceType = "COMPOSITE_COMPONENT"
	ContainerHost      ResourceType = "CONTAINER_HOST"
)

// operations in the backend vocabulary
const (
	OpStart           = "Container.Start"
	OpStop            = "Container.Stop"
	OpDelete          = "Container.Delete"
	OpClusterResource = "CLUSTER_RESOURCE"
)

// Request is the day-2 request payload, and the request document returned by the backend.
type Request struct {
	DocumentSelfLink        string            `json:"documentSelfLink,omitempty"`
	ResourceType            ResourceType      `json:"resourceType"`
	ResourceLinks           []string          `json:"resourceLinks,omitempty"`
	ResourceDescriptionLink string            `json:"resourceDescriptionLink,omitempty"`
	Operation               string            `json:"operation,omitempty"`
	ResourceCount           int               `json:"resourceCount,omitempty"`
	CustomProperties        map[string]string `json:"customProperties,omitempty"`
	TenantLinks             []string          `json:"tenantLinks,omitempty"`
	RequestTrackerLink      string            `json:"requestTrackerLink,omitempty"`
}

// ForContainer builds a request to operate a container.
func ForContainer(containerId string, op string) Request {
	return Request{
		ResourceType:  DockerContainer,
		ResourceLinks: []string{documents.LinkOf(documents.Containers, containerId)},
		Operation:     op,
	}
}

// ForCluster builds a request to operate all containers of a cluster.
func ForCluster(clusterContainers []containers.Container, op string) Request {
	links := make([]string, 0, len(clusterContainers))
	for _, c := range clusterContainers {
		links = append(links, c.DocumentSelfLink)
	}
	return Request{
		ResourceType:  DockerContainer,
		ResourceLinks: links,
		Operation:     op,
	}
}

// ForComposite builds a request to operate an application.
func ForComposite(compositeId string, op string) Request {
	return Request{
		ResourceType:  CompositeComponent,
		ResourceLinks: []string{documents.LinkOf(documents.CompositeComponents, compositeId)},
		Operation:     op,
	}
}

// Scale builds a request resizing a cluster to desiredCount containers.
//
// contextId is the composition context. It is empty for a cluster of a single container.
func Scale(descriptionLink string, contextId string, desiredCount int) Request {
	return Request{
		ResourceType:            DockerContainer,
		ResourceDescriptionLink: descriptionLink,
		ResourceCount:           desiredCount,
		CustomProperties: map[string]string{
			containers.PropCompositionContextId: contextId,
		},
		Operation: OpClusterResource,
	}
}

// Provision builds a request creating containers from a description.
//
// A composite description (template) provisions an application.
// When group is given, the request carries tenantLinks with group, added once.
func Provision(descriptionLink string, tenantLinks []string, group string) Request {
	req := Request{
		ResourceType:            DockerContainer,
		ResourceDescriptionLink: descriptionLink,
	}
	if strings.HasPrefix(descriptionLink, documents.CompositeDescriptions+"/") {
		req.ResourceType = CompositeComponent
	}
	if group == "" {
		return req
	}
	req.TenantLinks = append([]string{}, tenantLinks...)
	if !slices.Contains(req.TenantLinks, group) {
		req.TenantLinks = append(req.TenantLinks, group)
	}
	return req
}

// OperationType is the kind of a day-2 operation, as stores see.
type OperationType string

const (
	Start      OperationType = "START"
	Stop       OperationType = "STOP"
	Remove     OperationType = "REMOVE"
	Clustering OperationType = "CLUSTERING"
	Create     OperationType = "CREATE"
	Default    OperationType = "DEFAULT"
)

// TypeOf classifies a request.
func TypeOf(r Request) OperationType {
	switch r.Operation {
	case OpStart:
		return Start
	case OpStop:
		return Stop
	case OpDelete:
		return Remove
	case OpClusterResource:
		return Clustering
	case "":
		if r.ResourceDescriptionLink != "" {
			return Create
		}
	}
	return Default
}

type Stage string

const (
	Created   Stage = "CREATED"
	Started   Stage = "STARTED"
	Finished  Stage = "FINISHED"
	Failed    Stage = "FAILED"
	Cancelled Stage = "CANCELLED"
)

// Running tells the request is not settled yet.
func (s Stage) Running() bool {
	return s == Created || s == Started
}

// Failure tells the request ends without success.
func (s Stage) Failure() bool {
	return s == Failed || s == Cancelled
}

type TaskInfo struct {
	Stage Stage `json:"stage"`
}

// Status is the request tracker document.
type Status struct {
	DocumentSelfLink string   `json:"documentSelfLink"`
	Name             string   `json:"name,omitempty"`
	Phase            string   `json:"phase,omitempty"`
	SubStage         string   `json:"subStage,omitempty"`
	Progress         int      `json:"progress,omitempty"`
	TaskInfo         TaskInfo `json:"taskInfo"`
	ResourceLinks    []string `json:"resourceLinks,omitempty"`
	EventLogLink     string   `json:"eventLogLink,omitempty"`
}

// ResourceIds returns document ids of resources the request affects.
func (s Status) ResourceIds() []string {
	ids := make([]string, 0, len(s.ResourceLinks))
	for _, l := range s.ResourceLinks {
		ids = append(ids, documents.DocumentId(l))
	}
	return ids
}
