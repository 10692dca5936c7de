package templates

import (
	"encoding/json"
	"strings"

	"github.com/opst/fleetdeck/pkg/api/types/documents"
)

type TemplateType string

const (
	ImageType    TemplateType = "CONTAINER_IMAGE_DESCRIPTION"
	TemplateKind TemplateType = "COMPOSITE_DESCRIPTION"
)

// Entry is an item of the template search, either an image or a template.
type Entry struct {
	TemplateType      TemplateType `json:"templateType"`
	Name              string       `json:"name"`
	DocumentSelfLink  string       `json:"documentSelfLink,omitempty"`
	Description       string       `json:"description,omitempty"`
	DescriptionImages []string     `json:"descriptionImages,omitempty"`
	StarCount         int          `json:"star_count,omitempty"`
	Official          bool         `json:"is_official,omitempty"`
}

// SearchResult is the wire shape of the template search.
type SearchResult struct {
	Results []Entry `json:"results"`
}

// CompositeDescription is a template.
type CompositeDescription struct {
	DocumentSelfLink string   `json:"documentSelfLink,omitempty"`
	Name             string   `json:"name,omitempty"`
	DescriptionLinks []string `json:"descriptionLinks,omitempty"`
	TenantLinks      []string `json:"tenantLinks,omitempty"`
}

func (c CompositeDescription) DocumentId() string {
	return documents.DocumentId(c.DocumentSelfLink)
}

// ContainerDescription is a container definition in a template.
type ContainerDescription struct {
	DocumentSelfLink string                     `json:"documentSelfLink,omitempty"`
	Name             string                     `json:"name,omitempty"`
	Image            string                     `json:"image,omitempty"`
	NetworkMode      string                     `json:"networkMode,omitempty"`
	Networks         map[string]json.RawMessage `json:"networks,omitempty"`
	Cluster          int                        `json:"_cluster,omitempty"`
	PublishAll       bool                       `json:"publishAll,omitempty"`
	TenantLinks      []string                   `json:"tenantLinks,omitempty"`
}

// NetworkDescription is a network definition in a template.
type NetworkDescription struct {
	DocumentSelfLink string `json:"documentSelfLink,omitempty"`
	Name             string `json:"name,omitempty"`
}

// IsContainerDescription tells whether the link points a container description.
func IsContainerDescription(link string) bool {
	return strings.Contains(link, documents.ContainerDescriptions)
}

// IsNetworkDescription tells whether the link points a network description.
func IsNetworkDescription(link string) bool {
	return strings.Contains(link, documents.NetworkDescriptions)
}
