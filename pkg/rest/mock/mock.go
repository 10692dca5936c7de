// Package mock provides a hand-written mock of rest.Client.
//
// Methods can be called from any goroutine. Calling a method without Impl
// reports a test error and returns ErrNotReady.
package mock

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/opst/fleetdeck/pkg/api/types/containers"
	"github.com/opst/fleetdeck/pkg/api/types/documents"
	"github.com/opst/fleetdeck/pkg/api/types/requests"
	"github.com/opst/fleetdeck/pkg/api/types/templates"
	"github.com/opst/fleetdeck/pkg/query"
	"github.com/opst/fleetdeck/pkg/rest"
)

var ErrNotReady = errors.New("mock: not ready to be called")

type DocumentArgs struct {
	Link     string
	Document any
}

type ClusterArgs struct {
	DescriptionLink string
	ContextId       string
}

type LogsArgs struct {
	ContainerId string
	Since       time.Duration
}

type HostsArgs struct {
	Query              query.SearchOptions
	OnlyContainerHosts bool
}

type LoginArgs struct {
	Username string
	Password string
}

func New(t *testing.T) *MockClient {
	return &MockClient{t: t}
}

type MockClient struct {
	t  *testing.T
	mu sync.Mutex

	Impl struct {
		LoadDocument                  func(context.Context, string) (json.RawMessage, error)
		CreateDocument                func(context.Context, string, any) (json.RawMessage, error)
		UpdateDocument                func(context.Context, string, any) (json.RawMessage, error)
		PatchDocument                 func(context.Context, string, any) (json.RawMessage, error)
		DeleteDocument                func(context.Context, string) error
		LoadNextPage                  func(context.Context, string) (documents.Envelope, error)
		LoadContainer                 func(context.Context, string) (containers.Container, error)
		LoadContainers                func(context.Context, query.SearchOptions) (documents.List[containers.Container], error)
		LoadContainersForComposite    func(context.Context, string) (documents.List[containers.Container], error)
		LoadClusterContainers         func(context.Context, string, string) ([]containers.Container, error)
		LoadContainerStats            func(context.Context, string) (*containers.Stats, error)
		LoadContainerLogs             func(context.Context, string, time.Duration) (string, error)
		LoadContainerShellUri         func(context.Context, string) (string, error)
		LoadExposedService            func(context.Context, string) (containers.ExposedService, error)
		LoadCompositeComponent        func(context.Context, string) (containers.CompositeComponent, error)
		LoadCompositeComponents       func(context.Context, query.SearchOptions) (documents.List[containers.CompositeComponent], error)
		LoadHosts                     func(context.Context, query.SearchOptions, bool) (documents.List[containers.Host], error)
		LoadHostByLink                func(context.Context, string) (containers.Host, error)
		LoadHostsByLinks              func(context.Context, []string) (map[string]containers.Host, error)
		SubmitRequest                 func(context.Context, requests.Request) (requests.Request, error)
		LoadRequestStatus             func(context.Context, string) (requests.Status, error)
		LoadRequestStatuses           func(context.Context, ...requests.Stage) (documents.List[requests.Status], error)
		LoadTemplates                 func(context.Context, query.SearchOptions) ([]templates.Entry, error)
		LoadTemplateDescriptionImages func(context.Context, string) ([]string, error)
		LoadContainerTemplate         func(context.Context, string) (templates.CompositeDescription, error)
		UpdateContainerTemplate       func(context.Context, templates.CompositeDescription) (templates.CompositeDescription, error)
		RemoveContainerTemplate       func(context.Context, string) error
		LoadContainerDescription      func(context.Context, string) (templates.ContainerDescription, error)
		CreateContainerDescription    func(context.Context, templates.ContainerDescription) (templates.ContainerDescription, error)
		Login                         func(context.Context, string, string) (string, error)
		Logout                        func(context.Context) error
	}
	Calls Calls
}

// Calls records arguments of each method.
type Calls struct {
	LoadDocument                  []string
	CreateDocument                []DocumentArgs
	UpdateDocument                []DocumentArgs
	PatchDocument                 []DocumentArgs
	DeleteDocument                []string
	LoadNextPage                  []string
	LoadContainer                 []string
	LoadContainers                []query.SearchOptions
	LoadContainersForComposite    []string
	LoadClusterContainers         []ClusterArgs
	LoadContainerStats            []string
	LoadContainerLogs             []LogsArgs
	LoadContainerShellUri         []string
	LoadExposedService            []string
	LoadCompositeComponent        []string
	LoadCompositeComponents       []query.SearchOptions
	LoadHosts                     []HostsArgs
	LoadHostByLink                []string
	LoadHostsByLinks              [][]string
	SubmitRequest                 []requests.Request
	LoadRequestStatus             []string
	LoadRequestStatuses           [][]requests.Stage
	LoadTemplates                 []query.SearchOptions
	LoadTemplateDescriptionImages []string
	LoadContainerTemplate         []string
	UpdateContainerTemplate       []templates.CompositeDescription
	RemoveContainerTemplate       []string
	LoadContainerDescription      []string
	CreateContainerDescription    []templates.ContainerDescription
	Login                         []LoginArgs
	Logout                        []struct{}
}

var _ rest.Client = &MockClient{}

func (m *MockClient) LoadDocument(ctx context.Context, link string) (json.RawMessage, error) {
	m.t.Helper()

	m.mu.Lock()
	m.Calls.LoadDocument = append(m.Calls.LoadDocument, link)
	impl := m.Impl.LoadDocument
	m.mu.Unlock()

	if impl == nil {
		m.t.Errorf("LoadDocument is not ready to be called")
		return *new(json.RawMessage), ErrNotReady
	}
	return impl(ctx, link)
}

func (m *MockClient) CreateDocument(ctx context.Context, factory string, document any) (json.RawMessage, error) {
	m.t.Helper()

	m.mu.Lock()
	m.Calls.CreateDocument = append(m.Calls.CreateDocument, DocumentArgs{Link: factory, Document: document})
	impl := m.Impl.CreateDocument
	m.mu.Unlock()

	if impl == nil {
		m.t.Errorf("CreateDocument is not ready to be called")
		return *new(json.RawMessage), ErrNotReady
	}
	return impl(ctx, factory, document)
}

func (m *MockClient) UpdateDocument(ctx context.Context, link string, document any) (json.RawMessage, error) {
	m.t.Helper()

	m.mu.Lock()
	m.Calls.UpdateDocument = append(m.Calls.UpdateDocument, DocumentArgs{Link: link, Document: document})
	impl := m.Impl.UpdateDocument
	m.mu.Unlock()

	if impl == nil {
		m.t.Errorf("UpdateDocument is not ready to be called")
		return *new(json.RawMessage), ErrNotReady
	}
	return impl(ctx, link, document)
}

func (m *MockClient) PatchDocument(ctx context.Context, link string, diff any) (json.RawMessage, error) {
	m.t.Helper()

	m.mu.Lock()
	m.Calls.PatchDocument = append(m.Calls.PatchDocument, DocumentArgs{Link: link, Document: diff})
	impl := m.Impl.PatchDocument
	m.mu.Unlock()

	if impl == nil {
		m.t.Errorf("PatchDocument is not ready to be called")
		return *new(json.RawMessage), ErrNotReady
	}
	return impl(ctx, link, diff)
}

func (m *MockClient) DeleteDocument(ctx context.Context, link string) error {
	m.t.Helper()

	m.mu.Lock()
	m.Calls.DeleteDocument = append(m.Calls.DeleteDocument, link)
	impl := m.Impl.DeleteDocument
	m.mu.Unlock()

	if impl == nil {
		m.t.Errorf("DeleteDocument is not ready to be called")
		return ErrNotReady
	}
	return impl(ctx, link)
}

func (m *MockClient) LoadNextPage(ctx context.Context, nextPageLink string) (documents.Envelope, error) {
	m.t.Helper()

	m.mu.Lock()
	m.Calls.LoadNextPage = append(m.Calls.LoadNextPage, nextPageLink)
	impl := m.Impl.LoadNextPage
	m.mu.Unlock()

	if impl == nil {
		m.t.Errorf("LoadNextPage is not ready to be called")
		return *new(documents.Envelope), ErrNotReady
	}
	return impl(ctx, nextPageLink)
}

func (m *MockClient) LoadContainer(ctx context.Context, containerId string) (containers.Container, error) {
	m.t.Helper()

	m.mu.Lock()
	m.Calls.LoadContainer = append(m.Calls.LoadContainer, containerId)
	impl := m.Impl.LoadContainer
	m.mu.Unlock()

	if impl == nil {
		m.t.Errorf("LoadContainer is not ready to be called")
		return *new(containers.Container), ErrNotReady
	}
	return impl(ctx, containerId)
}

func (m *MockClient) LoadContainers(ctx context.Context, q query.SearchOptions) (documents.List[containers.Container], error) {
	m.t.Helper()

	m.mu.Lock()
	m.Calls.LoadContainers = append(m.Calls.LoadContainers, q)
	impl := m.Impl.LoadContainers
	m.mu.Unlock()

	if impl == nil {
		m.t.Errorf("LoadContainers is not ready to be called")
		return *new(documents.List[containers.Container]), ErrNotReady
	}
	return impl(ctx, q)
}

func (m *MockClient) LoadContainersForComposite(ctx context.Context, compositeId string) (documents.List[containers.Container], error) {
	m.t.Helper()

	m.mu.Lock()
	m.Calls.LoadContainersForComposite = append(m.Calls.LoadContainersForComposite, compositeId)
	impl := m.Impl.LoadContainersForComposite
	m.mu.Unlock()

	if impl == nil {
		m.t.Errorf("LoadContainersForComposite is not ready to be called")
		return *new(documents.List[containers.Container]), ErrNotReady
	}
	return impl(ctx, compositeId)
}

func (m *MockClient) LoadClusterContainers(ctx context.Context, descriptionLink string, contextId string) ([]containers.Container, error) {
	m.t.Helper()

	m.mu.Lock()
	m.Calls.LoadClusterContainers = append(m.Calls.LoadClusterContainers, ClusterArgs{DescriptionLink: descriptionLink, ContextId: contextId})
	impl := m.Impl.LoadClusterContainers
	m.mu.Unlock()

	if impl == nil {
		m.t.Errorf("LoadClusterContainers is not ready to be called")
		return *new([]containers.Container), ErrNotReady
	}
	return impl(ctx, descriptionLink, contextId)
}

func (m *MockClient) LoadContainerStats(ctx context.Context, containerId string) (*containers.Stats, error) {
	m.t.Helper()

	m.mu.Lock()
	m.Calls.LoadContainerStats = append(m.Calls.LoadContainerStats, containerId)
	impl := m.Impl.LoadContainerStats
	m.mu.Unlock()

	if impl == nil {
		m.t.Errorf("LoadContainerStats is not ready to be called")
		return *new(*containers.Stats), ErrNotReady
	}
	return impl(ctx, containerId)
}

func (m *MockClient) LoadContainerLogs(ctx context.Context, containerId string, since time.Duration) (string, error) {
	m.t.Helper()

	m.mu.Lock()
	m.Calls.LoadContainerLogs = append(m.Calls.LoadContainerLogs, LogsArgs{ContainerId: containerId, Since: since})
	impl := m.Impl.LoadContainerLogs
	m.mu.Unlock()

	if impl == nil {
		m.t.Errorf("LoadContainerLogs is not ready to be called")
		return *new(string), ErrNotReady
	}
	return impl(ctx, containerId, since)
}

func (m *MockClient) LoadContainerShellUri(ctx context.Context, containerId string) (string, error) {
	m.t.Helper()

	m.mu.Lock()
	m.Calls.LoadContainerShellUri = append(m.Calls.LoadContainerShellUri, containerId)
	impl := m.Impl.LoadContainerShellUri
	m.mu.Unlock()

	if impl == nil {
		m.t.Errorf("LoadContainerShellUri is not ready to be called")
		return *new(string), ErrNotReady
	}
	return impl(ctx, containerId)
}

func (m *MockClient) LoadExposedService(ctx context.Context, link string) (containers.ExposedService, error) {
	m.t.Helper()

	m.mu.Lock()
	m.Calls.LoadExposedService = append(m.Calls.LoadExposedService, link)
	impl := m.Impl.LoadExposedService
	m.mu.Unlock()

	if impl == nil {
		m.t.Errorf("LoadExposedService is not ready to be called")
		return *new(containers.ExposedService), ErrNotReady
	}
	return impl(ctx, link)
}

func (m *MockClient) LoadCompositeComponent(ctx context.Context, compositeId string) (containers.CompositeComponent, error) {
	m.t.Helper()

	m.mu.Lock()
	m.Calls.LoadCompositeComponent = append(m.Calls.LoadCompositeComponent, compositeId)
	impl := m.Impl.LoadCompositeComponent
	m.mu.Unlock()

	if impl == nil {
		m.t.Errorf("LoadCompositeComponent is not ready to be called")
		return *new(containers.CompositeComponent), ErrNotReady
	}
	return impl(ctx, compositeId)
}

func (m *MockClient) LoadCompositeComponents(ctx context.Context, q query.SearchOptions) (documents.List[containers.CompositeComponent], error) {
	m.t.Helper()

	m.mu.Lock()
	m.Calls.LoadCompositeComponents = append(m.Calls.LoadCompositeComponents, q)
	impl := m.Impl.LoadCompositeComponents
	m.mu.Unlock()

	if impl == nil {
		m.t.Errorf("LoadCompositeComponents is not ready to be called")
		return *new(documents.List[containers.CompositeComponent]), ErrNotReady
	}
	return impl(ctx, q)
}

func (m *MockClient) LoadHosts(ctx context.Context, q query.SearchOptions, onlyContainerHosts bool) (documents.List[containers.Host], error) {
	m.t.Helper()

	m.mu.Lock()
	m.Calls.LoadHosts = append(m.Calls.LoadHosts, HostsArgs{Query: q, OnlyContainerHosts: onlyContainerHosts})
	impl := m.Impl.LoadHosts
	m.mu.Unlock()

	if impl == nil {
		m.t.Errorf("LoadHosts is not ready to be called")
		return *new(documents.List[containers.Host]), ErrNotReady
	}
	return impl(ctx, q, onlyContainerHosts)
}

func (m *MockClient) LoadHostByLink(ctx context.Context, link string) (containers.Host, error) {
	m.t.Helper()

	m.mu.Lock()
	m.Calls.LoadHostByLink = append(m.Calls.LoadHostByLink, link)
	impl := m.Impl.LoadHostByLink
	m.mu.Unlock()

	if impl == nil {
		m.t.Errorf("LoadHostByLink is not ready to be called")
		return *new(containers.Host), ErrNotReady
	}
	return impl(ctx, link)
}

func (m *MockClient) LoadHostsByLinks(ctx context.Context, links []string) (map[string]containers.Host, error) {
	m.t.Helper()

	m.mu.Lock()
	m.Calls.LoadHostsByLinks = append(m.Calls.LoadHostsByLinks, links)
	impl := m.Impl.LoadHostsByLinks
	m.mu.Unlock()

	if impl == nil {
		m.t.Errorf("LoadHostsByLinks is not ready to be called")
		return *new(map[string]containers.Host), ErrNotReady
	}
	return impl(ctx, links)
}

func (m *MockClient) SubmitRequest(ctx context.Context, req requests.Request) (requests.Request, error) {
	m.t.Helper()

	m.mu.Lock()
	m.Calls.SubmitRequest = append(m.Calls.SubmitRequest, req)
	impl := m.Impl.SubmitRequest
	m.mu.Unlock()

	if impl == nil {
		m.t.Errorf("SubmitRequest is not ready to be called")
		return *new(requests.Request), ErrNotReady
	}
	return impl(ctx, req)
}

func (m *MockClient) LoadRequestStatus(ctx context.Context, trackerLink string) (requests.Status, error) {
	m.t.Helper()

	m.mu.Lock()
	m.Calls.LoadRequestStatus = append(m.Calls.LoadRequestStatus, trackerLink)
	impl := m.Impl.LoadRequestStatus
	m.mu.Unlock()

	if impl == nil {
		m.t.Errorf("LoadRequestStatus is not ready to be called")
		return *new(requests.Status), ErrNotReady
	}
	return impl(ctx, trackerLink)
}

func (m *MockClient) LoadRequestStatuses(ctx context.Context, stages ...requests.Stage) (documents.List[requests.Status], error) {
	m.t.Helper()

	m.mu.Lock()
	m.Calls.LoadRequestStatuses = append(m.Calls.LoadRequestStatuses, stages)
	impl := m.Impl.LoadRequestStatuses
	m.mu.Unlock()

	if impl == nil {
		m.t.Errorf("LoadRequestStatuses is not ready to be called")
		return *new(documents.List[requests.Status]), ErrNotReady
	}
	return impl(ctx, stages...)
}

func (m *MockClient) LoadTemplates(ctx context.Context, q query.SearchOptions) ([]templates.Entry, error) {
	m.t.Helper()

	m.mu.Lock()
	m.Calls.LoadTemplates = append(m.Calls.LoadTemplates, q)
	impl := m.Impl.LoadTemplates
	m.mu.Unlock()

	if impl == nil {
		m.t.Errorf("LoadTemplates is not ready to be called")
		return *new([]templates.Entry), ErrNotReady
	}
	return impl(ctx, q)
}

func (m *MockClient) LoadTemplateDescriptionImages(ctx context.Context, templateLink string) ([]string, error) {
	m.t.Helper()

	m.mu.Lock()
	m.Calls.LoadTemplateDescriptionImages = append(m.Calls.LoadTemplateDescriptionImages, templateLink)
	impl := m.Impl.LoadTemplateDescriptionImages
	m.mu.Unlock()

	if impl == nil {
		m.t.Errorf("LoadTemplateDescriptionImages is not ready to be called")
		return *new([]string), ErrNotReady
	}
	return impl(ctx, templateLink)
}

func (m *MockClient) LoadContainerTemplate(ctx context.Context, templateId string) (templates.CompositeDescription, error) {
	m.t.Helper()

	m.mu.Lock()
	m.Calls.LoadContainerTemplate = append(m.Calls.LoadContainerTemplate, templateId)
	impl := m.Impl.LoadContainerTemplate
	m.mu.Unlock()

	if impl == nil {
		m.t.Errorf("LoadContainerTemplate is not ready to be called")
		return *new(templates.CompositeDescription), ErrNotReady
	}
	return impl(ctx, templateId)
}

func (m *MockClient) UpdateContainerTemplate(ctx context.Context, template templates.CompositeDescription) (templates.CompositeDescription, error) {
	m.t.Helper()

	m.mu.Lock()
	m.Calls.UpdateContainerTemplate = append(m.Calls.UpdateContainerTemplate, template)
	impl := m.Impl.UpdateContainerTemplate
	m.mu.Unlock()

	if impl == nil {
		m.t.Errorf("UpdateContainerTemplate is not ready to be called")
		return *new(templates.CompositeDescription), ErrNotReady
	}
	return impl(ctx, template)
}

func (m *MockClient) RemoveContainerTemplate(ctx context.Context, templateId string) error {
	m.t.Helper()

	m.mu.Lock()
	m.Calls.RemoveContainerTemplate = append(m.Calls.RemoveContainerTemplate, templateId)
	impl := m.Impl.RemoveContainerTemplate
	m.mu.Unlock()

	if impl == nil {
		m.t.Errorf("RemoveContainerTemplate is not ready to be called")
		return ErrNotReady
	}
	return impl(ctx, templateId)
}

func (m *MockClient) LoadContainerDescription(ctx context.Context, link string) (templates.ContainerDescription, error) {
	m.t.Helper()

	m.mu.Lock()
	m.Calls.LoadContainerDescription = append(m.Calls.LoadContainerDescription, link)
	impl := m.Impl.LoadContainerDescription
	m.mu.Unlock()

	if impl == nil {
		m.t.Errorf("LoadContainerDescription is not ready to be called")
		return *new(templates.ContainerDescription), ErrNotReady
	}
	return impl(ctx, link)
}

func (m *MockClient) CreateContainerDescription(ctx context.Context, desc templates.ContainerDescription) (templates.ContainerDescription, error) {
	m.t.Helper()

	m.mu.Lock()
	m.Calls.CreateContainerDescription = append(m.Calls.CreateContainerDescription, desc)
	impl := m.Impl.CreateContainerDescription
	m.mu.Unlock()

	if impl == nil {
		m.t.Errorf("CreateContainerDescription is not ready to be called")
		return *new(templates.ContainerDescription), ErrNotReady
	}
	return impl(ctx, desc)
}

func (m *MockClient) Login(ctx context.Context, username string, password string) (string, error) {
	m.t.Helper()

	m.mu.Lock()
	m.Calls.Login = append(m.Calls.Login, LoginArgs{Username: username, Password: password})
	impl := m.Impl.Login
	m.mu.Unlock()

	if impl == nil {
		m.t.Errorf("Login is not ready to be called")
		return *new(string), ErrNotReady
	}
	return impl(ctx, username, password)
}

func (m *MockClient) Logout(ctx context.Context) error {
	m.t.Helper()

	m.mu.Lock()
	m.Calls.Logout = append(m.Calls.Logout, struct{}{})
	impl := m.Impl.Logout
	m.mu.Unlock()

	if impl == nil {
		m.t.Errorf("Logout is not ready to be called")
		return ErrNotReady
	}
	return impl(ctx)
}

// Recorded returns a copy of Calls, safe to read while the mock is in use.
func (m *MockClient) Recorded() Calls {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Calls
}

