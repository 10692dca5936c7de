package documents

import (
	"encoding/json"
	"strings"
)

// Factory links of the backend.
const (
	Containers            = "/resources/containers"
	CompositeComponents   = "/resources/composite-components"
	ContainerDescriptions = "/resources/container-descriptions"
	NetworkDescriptions   = "/resources/container-network-descriptions"
	CompositeDescriptions = "/resources/composite-descriptions"
	ComputeResources      = "/resources/compute"
	ComputeDescriptions   = "/resources/compute-descriptions"
	ResourcePools         = "/resources/pools"
	ExposedServices       = "/resources/exposed-services"
	Requests              = "/requests"
	RequestStatus         = "/request-status"
	Templates             = "/templates"
	ContainerLogs         = "/logs"
	ContainerShell        = "/container-shell"
	ContainerImageIcons   = "/container-image-icons"
	BasicAuth             = "/core/authn/basic"
)

// DocumentId returns the last path segment of a document link.
//
// A link without any slash is already an id, and returned as it is.
func DocumentId(link string) string {
	link = strings.TrimSuffix(link, "/")
	if i := strings.LastIndex(link, "/"); 0 <= i {
		return link[i+1:]
	}
	return link
}

// LinkOf returns the link of a document in the factory.
//
// When id is already a link in the factory, it is returned as it is.
func LinkOf(factory string, id string) string {
	prefix := strings.TrimSuffix(factory, "/") + "/"
	if strings.HasPrefix(id, prefix) {
		return id
	}
	return prefix + strings.TrimPrefix(id, "/")
}

// Envelope is a list response of the backend, undecoded.
type Envelope struct {
	DocumentLinks []string                   `json:"documentLinks"`
	Documents     map[string]json.RawMessage `json:"documents,omitempty"`
	TotalCount    *int                       `json:"totalCount,omitempty"`
	NextPageLink  string                     `json:"nextPageLink,omitempty"`
}

// List is a list response of the backend.
//
// Documents is keyed by self link. The order of the list is in DocumentLinks.
type List[T any] struct {
	DocumentLinks []string     `json:"documentLinks"`
	Documents     map[string]T `json:"documents,omitempty"`
	TotalCount    *int         `json:"totalCount,omitempty"`
	NextPageLink  string       `json:"nextPageLink,omitempty"`
}

// Decode types documents in the envelope.
func Decode[T any](env Envelope) (List[T], error) {
	ret := List[T]{
		DocumentLinks: env.DocumentLinks,
		TotalCount:    env.TotalCount,
		NextPageLink:  env.NextPageLink,
	}
	if env.Documents == nil {
		return ret, nil
	}

	ret.Documents = make(map[string]T, len(env.Documents))
	for link, raw := range env.Documents {
		var t T
		if err := json.Unmarshal(raw, &t); err != nil {
			return List[T]{}, err
		}
		ret.Documents[link] = t
	}
	return ret, nil
}

// ToArray returns documents in the order of DocumentLinks.
//
// Links without expanded document are skipped.
func (l List[T]) ToArray() []T {
	ret := make([]T, 0, len(l.DocumentLinks))
	for _, link := range l.DocumentLinks {
		d, ok := l.Documents[link]
		if !ok {
			continue
		}
		ret = append(ret, d)
	}
	return ret
}

// Count returns TotalCount if the backend reports, or the number of links otherwise.
func (l List[T]) Count() int {
	if l.TotalCount != nil {
		return *l.TotalCount
	}
	return len(l.DocumentLinks)
}
