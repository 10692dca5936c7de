package containers

import (
	"encoding/json"
	"strings"

	"github.com/opst/fleetdeck/pkg/api/types/documents"
)

const (
	// custom property holding the composition context a container is provisioned in.
	PropCompositionContextId = "__composition_context_id"

	PropComputeHost          = "__computeHost"
	PropComputeContainerHost = "__computeContainerHost"
	PropHostAlias            = "__hostAlias"
)

type PowerState string

const (
	PowerStateUnknown      PowerState = "UNKNOWN"
	PowerStateProvisioning PowerState = "PROVISIONING"
	PowerStateRunning      PowerState = "RUNNING"
	PowerStatePaused       PowerState = "PAUSED"
	PowerStateStopped      PowerState = "STOPPED"
	PowerStateRetired      PowerState = "RETIRED"
	PowerStateError        PowerState = "ERROR"
)

// Container is a container document.
type Container struct {
	DocumentSelfLink       string            `json:"documentSelfLink"`
	Id                     string            `json:"id,omitempty"`
	Names                  []string          `json:"names,omitempty"`
	Image                  string            `json:"image,omitempty"`
	DescriptionLink        string            `json:"descriptionLink,omitempty"`
	ParentLink             string            `json:"parentLink,omitempty"`
	CompositeComponentLink string            `json:"compositeComponentLink,omitempty"`
	GroupResourcePolicy    string            `json:"groupResourcePolicyLink,omitempty"`
	PowerState             PowerState        `json:"powerState,omitempty"`
	Created                int64             `json:"created,omitempty"`
	Started                int64             `json:"started,omitempty"`
	Address                string            `json:"address,omitempty"`
	Ports                  []PortBinding     `json:"ports,omitempty"`
	Env                    []string          `json:"env,omitempty"`
	Command                []string          `json:"command,omitempty"`
	ExposedServiceLink     string            `json:"exposedServiceLink,omitempty"`
	System                 bool              `json:"system,omitempty"`
	CustomProperties       map[string]string `json:"customProperties,omitempty"`

	// raw docker inspection, each value is JSON text (Config, NetworkSettings, HostConfig, ...)
	Attributes map[string]string `json:"attributes,omitempty"`
}

type PortBinding struct {
	Protocol      string `json:"protocol,omitempty"`
	ContainerPort string `json:"containerPort,omitempty"`
	HostIp        string `json:"hostIp,omitempty"`
	HostPort      string `json:"hostPort,omitempty"`
}

func (c Container) DocumentId() string {
	return documents.DocumentId(c.DocumentSelfLink)
}

// ContextId returns the composition context id, or empty string.
func (c Container) ContextId() string {
	if c.CustomProperties == nil {
		return ""
	}
	return c.CustomProperties[PropCompositionContextId]
}

// HostDocumentId returns the document id of the host running the container.
func (c Container) HostDocumentId() string {
	if c.ParentLink == "" {
		return ""
	}
	return documents.DocumentId(strings.TrimPrefix(c.ParentLink, documents.ComputeResources+"/"))
}

// Name returns the first name of the container, or its document id when unnamed.
func (c Container) Name() string {
	if len(c.Names) != 0 && c.Names[0] != "" {
		return c.Names[0]
	}
	return c.DocumentId()
}

// ParsedAttributes decodes JSON valued attributes.
//
// Values which are not JSON are kept as string.
func (c Container) ParsedAttributes() map[string]any {
	if len(c.Attributes) == 0 {
		return nil
	}
	ret := make(map[string]any, len(c.Attributes))
	for k, v := range c.Attributes {
		var parsed any
		if err := json.Unmarshal([]byte(v), &parsed); err != nil {
			ret[k] = v
			continue
		}
		ret[k] = parsed
	}
	return ret
}

// CompositeComponent is a deployed multi-container application.
type CompositeComponent struct {
	DocumentSelfLink     string            `json:"documentSelfLink"`
	Name                 string            `json:"name,omitempty"`
	CompositeDescription string            `json:"compositeDescriptionLink,omitempty"`
	ComponentLinks       []string          `json:"componentLinks,omitempty"`
	Created              int64             `json:"documentUpdateTimeMicros,omitempty"`
	CustomProperties     map[string]string `json:"customProperties,omitempty"`
}

func (c CompositeComponent) DocumentId() string {
	return documents.DocumentId(c.DocumentSelfLink)
}

// Host is a compute resource (a container host).
type Host struct {
	DocumentSelfLink string            `json:"documentSelfLink"`
	Id               string            `json:"id,omitempty"`
	Name             string            `json:"name,omitempty"`
	Address          string            `json:"address,omitempty"`
	PowerState       PowerState        `json:"powerState,omitempty"`
	DescriptionLink  string            `json:"descriptionLink,omitempty"`
	ResourcePoolLink string            `json:"resourcePoolLink,omitempty"`
	CustomProperties map[string]string `json:"customProperties,omitempty"`
}

// DisplayName returns the name to show for the host.
//
// The alias given by users wins, then the name, then the address.
func (h Host) DisplayName() string {
	if alias := h.CustomProperties[PropHostAlias]; alias != "" {
		return alias
	}
	if h.Name != "" {
		return h.Name
	}
	if h.Address != "" {
		return h.Address
	}
	return documents.DocumentId(h.DocumentSelfLink)
}

// ExposedService is a service published by containers of an application.
type ExposedService struct {
	DocumentSelfLink string   `json:"documentSelfLink"`
	HostLink         string   `json:"hostLink,omitempty"`
	Alias            string   `json:"alias,omitempty"`
	Ports            []string `json:"ports,omitempty"`
}

// Stats are the latest resource usage of a container.
type Stats struct {
	CpuUsage   float64 `json:"cpuUsage"`
	MemLimit   int64   `json:"memLimit"`
	MemUsage   int64   `json:"memUsage"`
	NetworkIn  int64   `json:"networkIn"`
	NetworkOut int64   `json:"networkOut"`
}

// ServiceStats is the wire shape of the stats endpoint.
type ServiceStats struct {
	Entries map[string]struct {
		LatestValue float64 `json:"latestValue"`
	} `json:"entries"`
}

// Stats extracts the latest values.
//
// It returns nil when the backend has no entries yet.
func (s ServiceStats) Stats() *Stats {
	if s.Entries == nil {
		return nil
	}
	latest := func(key string) float64 {
		e, ok := s.Entries[key]
		if !ok {
			return 0
		}
		return e.LatestValue
	}
	return &Stats{
		CpuUsage:   latest("cpuUsage"),
		MemLimit:   int64(latest("memLimit")),
		MemUsage:   int64(latest("memUsage")),
		NetworkIn:  int64(latest("networkIn")),
		NetworkOut: int64(latest("networkOut")),
	}
}

// LogState is the wire shape of the log endpoint. Logs is base64 encoded.
type LogState struct {
	Logs string `json:"logs"`
}
