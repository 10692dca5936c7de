package rest

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/opst/fleetdeck/pkg/api/types/containers"
	"github.com/opst/fleetdeck/pkg/api/types/documents"
	"github.com/opst/fleetdeck/pkg/query"
)

// orders of lists
const (
	orderContainers = "created asc"
	orderComposites = "documentUpdateTimeMicros asc"
	orderHosts      = "creationTimeMicros asc"
)

func (c *client) LoadContainer(ctx context.Context, containerId string) (containers.Container, error) {
	return get[containers.Container](
		ctx, c, documents.LinkOf(documents.Containers, containerId),
		MessageFor{
			Status4xx: fmt.Sprintf("container %s is not found", containerId),
			Status5xx: "server error on loading container",
		},
	)
}

func (c *client) LoadContainers(ctx context.Context, q query.SearchOptions) (documents.List[containers.Container], error) {
	return page[containers.Container](
		ctx, c, documents.Containers,
		c.paginationQuery(query.ContainersFilter(q), true, orderContainers),
		messagesFor("load containers"),
	)
}

func (c *client) LoadContainersForComposite(ctx context.Context, compositeId string) (documents.List[containers.Container], error) {
	return c.LoadContainers(ctx, query.SearchOptions{
		query.KeyCompositeComponentLink: {documents.LinkOf(documents.CompositeComponents, compositeId)},
	})
}

func (c *client) LoadClusterContainers(ctx context.Context, descriptionLink string, contextId string) ([]containers.Container, error) {
	l, err := expanded[containers.Container](
		ctx, c, documents.Containers, query.ClusterFilter(descriptionLink, contextId),
		messagesFor("load containers of cluster"),
	)
	if err != nil {
		return nil, err
	}
	return l.ToArray(), nil
}

func (c *client) LoadContainerStats(ctx context.Context, containerId string) (*containers.Stats, error) {
	ss, err := get[containers.ServiceStats](
		ctx, c, documents.LinkOf(documents.Containers, containerId)+"/stats",
		messagesFor("load stats of container "+containerId),
	)
	if err != nil {
		return nil, err
	}
	return ss.Stats(), nil
}

func (c *client) LoadContainerLogs(ctx context.Context, containerId string, since time.Duration) (string, error) {
	q := url.Values{}
	q.Set("id", containerId)
	if 0 < since {
		q.Set("since", strconv.FormatFloat(since.Seconds(), 'f', -1, 64))
	}

	state, err := get[containers.LogState](
		ctx, c, documents.ContainerLogs+"?"+encodeQuery(q),
		messagesFor("load logs of container "+containerId),
	)
	if err != nil {
		return "", err
	}
	if state.Logs == "" {
		return "", nil
	}
	decoded, err := base64.StdEncoding.DecodeString(state.Logs)
	if err != nil {
		return "", fmt.Errorf("logs of container %s are broken: %w", containerId, err)
	}
	return string(decoded), nil
}

func (c *client) LoadContainerShellUri(ctx context.Context, containerId string) (string, error) {
	q := url.Values{}
	q.Set("id", containerId)
	req, err := c.newRequest(ctx, http.MethodGet, documents.ContainerShell+"?"+encodeQuery(q), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "text/plain")

	resp, err := c.do(req, withAccept("text/plain"))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if StatusCodeRangeOf(resp) != Status2xx {
		return "", transportError(resp, messagesFor("open shell of container "+containerId))
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

func (c *client) LoadExposedService(ctx context.Context, link string) (containers.ExposedService, error) {
	return get[containers.ExposedService](ctx, c, link, messagesFor("load exposed service"))
}

func (c *client) LoadCompositeComponent(ctx context.Context, compositeId string) (containers.CompositeComponent, error) {
	return get[containers.CompositeComponent](
		ctx, c, documents.LinkOf(documents.CompositeComponents, compositeId),
		MessageFor{
			Status4xx: fmt.Sprintf("application %s is not found", compositeId),
			Status5xx: "server error on loading application",
		},
	)
}

func (c *client) LoadCompositeComponents(ctx context.Context, q query.SearchOptions) (documents.List[containers.CompositeComponent], error) {
	return page[containers.CompositeComponent](
		ctx, c, documents.CompositeComponents,
		c.paginationQuery(query.ContainersFilter(q), true, orderComposites),
		messagesFor("load applications"),
	)
}

func (c *client) LoadHosts(ctx context.Context, q query.SearchOptions, onlyContainerHosts bool) (documents.List[containers.Host], error) {
	return page[containers.Host](
		ctx, c, documents.ComputeResources,
		c.paginationQuery(query.HostsFilter(q, onlyContainerHosts), true, orderHosts),
		messagesFor("load hosts"),
	)
}

func (c *client) LoadHostByLink(ctx context.Context, link string) (containers.Host, error) {
	return get[containers.Host](ctx, c, link, messagesFor("load host "+link))
}

func (c *client) LoadHostsByLinks(ctx context.Context, links []string) (map[string]containers.Host, error) {
	if len(links) == 0 {
		return map[string]containers.Host{}, nil
	}
	l, err := expanded[containers.Host](
		ctx, c, documents.ComputeResources, query.LinksFilter(links), messagesFor("load hosts"),
	)
	if err != nil {
		return nil, err
	}
	if l.Documents == nil {
		return map[string]containers.Host{}, nil
	}
	return l.Documents, nil
}
