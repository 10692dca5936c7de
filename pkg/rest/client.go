package rest

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/opst/fleetdeck/pkg/api/types/containers"
	"github.com/opst/fleetdeck/pkg/api/types/documents"
	"github.com/opst/fleetdeck/pkg/api/types/requests"
	"github.com/opst/fleetdeck/pkg/api/types/templates"
	"github.com/opst/fleetdeck/pkg/auth"
	"github.com/opst/fleetdeck/pkg/configs/console"
	"github.com/opst/fleetdeck/pkg/logs"
	"github.com/opst/fleetdeck/pkg/query"
	"github.com/opst/fleetdeck/pkg/utils"
)

const (
	headerPragma    = "pragma"
	headerAuthToken = "x-xenon-auth-token"
	headerRequestId = "X-Request-Id"

	pragmaForceIndexUpdate = "xn-force-index-update"
)

// Client is the transport to the management backend.
//
// Methods are stateless except the session token. Each method issues one HTTP request
// unless noted.
type Client interface {
	// LoadDocument gets a document by its link.
	LoadDocument(ctx context.Context, link string) (json.RawMessage, error)

	// CreateDocument posts a new document into the factory.
	CreateDocument(ctx context.Context, factory string, document any) (json.RawMessage, error)

	// UpdateDocument replaces the document (PUT).
	UpdateDocument(ctx context.Context, link string, document any) (json.RawMessage, error)

	// PatchDocument applies a partial update to the document (PATCH).
	PatchDocument(ctx context.Context, link string, diff any) (json.RawMessage, error)

	// DeleteDocument deletes the document. The request body is always `{}`.
	DeleteDocument(ctx context.Context, link string) error

	// LoadNextPage follows the nextPageLink of a list response.
	LoadNextPage(ctx context.Context, nextPageLink string) (documents.Envelope, error)

	LoadContainer(ctx context.Context, containerId string) (containers.Container, error)

	// LoadContainers searches containers.
	//
	// # Args
	//
	// - context.Context
	//
	// - query.SearchOptions: search terms.
	//
	// # Returns
	//
	// - documents.List[containers.Container]: a page of containers, ordered by creation.
	//
	// - error
	LoadContainers(ctx context.Context, q query.SearchOptions) (documents.List[containers.Container], error)

	// LoadContainersForComposite lists containers in an application.
	//
	// compositeId can be either of a document id or a link.
	LoadContainersForComposite(ctx context.Context, compositeId string) (documents.List[containers.Container], error)

	// LoadClusterContainers lists all containers of a cluster, unpaged.
	//
	// # Args
	//
	// - context.Context
	//
	// - string: description link of the cluster. Either of an id or a link.
	//
	// - string: composition context id. Empty for clusters out of applications.
	LoadClusterContainers(ctx context.Context, descriptionLink string, contextId string) ([]containers.Container, error)

	// LoadContainerStats gets the latest stats. It returns nil if no stats are collected yet.
	LoadContainerStats(ctx context.Context, containerId string) (*containers.Stats, error)

	// LoadContainerLogs gets decoded logs of a container.
	//
	// # Args
	//
	// - context.Context
	//
	// - string: container id
	//
	// - time.Duration: how far back logs are read. Zero means entire logs.
	LoadContainerLogs(ctx context.Context, containerId string, since time.Duration) (string, error)

	// LoadContainerShellUri gets the uri of a web shell attached to the container.
	LoadContainerShellUri(ctx context.Context, containerId string) (string, error)

	LoadExposedService(ctx context.Context, link string) (containers.ExposedService, error)

	LoadCompositeComponent(ctx context.Context, compositeId string) (containers.CompositeComponent, error)

	// LoadCompositeComponents searches applications.
	LoadCompositeComponents(ctx context.Context, q query.SearchOptions) (documents.List[containers.CompositeComponent], error)

	// LoadHosts searches hosts.
	//
	// When onlyContainerHosts is true, hosts which cannot run containers are excluded.
	LoadHosts(ctx context.Context, q query.SearchOptions, onlyContainerHosts bool) (documents.List[containers.Host], error)

	LoadHostByLink(ctx context.Context, link string) (containers.Host, error)

	// LoadHostsByLinks gets hosts having given links, keyed by link.
	//
	// When links is empty, it returns empty map without requests.
	LoadHostsByLinks(ctx context.Context, links []string) (map[string]containers.Host, error)

	// SubmitRequest posts a day-2 request.
	//
	// # Returns
	//
	// - requests.Request: accepted request, which has RequestTrackerLink.
	//
	// - error
	SubmitRequest(ctx context.Context, req requests.Request) (requests.Request, error)

	LoadRequestStatus(ctx context.Context, trackerLink string) (requests.Status, error)

	// LoadRequestStatuses lists request statuses in one of stages, newer first.
	//
	// When no stages are given, all statuses are listed.
	LoadRequestStatuses(ctx context.Context, stages ...requests.Stage) (documents.List[requests.Status], error)

	// LoadTemplates searches templates and images.
	//
	// Only the first "any" term is used as the search word; "*" if none.
	LoadTemplates(ctx context.Context, q query.SearchOptions) ([]templates.Entry, error)

	// LoadTemplateDescriptionImages gets images used in a template.
	LoadTemplateDescriptionImages(ctx context.Context, templateLink string) ([]string, error)

	LoadContainerTemplate(ctx context.Context, templateId string) (templates.CompositeDescription, error)

	// UpdateContainerTemplate patches a template, and returns the updated one.
	UpdateContainerTemplate(ctx context.Context, template templates.CompositeDescription) (templates.CompositeDescription, error)

	RemoveContainerTemplate(ctx context.Context, templateId string) error

	LoadContainerDescription(ctx context.Context, link string) (templates.ContainerDescription, error)

	CreateContainerDescription(ctx context.Context, desc templates.ContainerDescription) (templates.ContainerDescription, error)

	// Login starts a session with basic authentication.
	//
	// The session token is kept in the client and sent with following requests.
	// 403 of this request never triggers the forbidden hook.
	//
	// # Returns
	//
	// - string: session token
	//
	// - error
	Login(ctx context.Context, username string, password string) (string, error)

	// Logout ends the session.
	Logout(ctx context.Context) error
}

// Forwarder gives how to pass a request through to the backend as it is.
type Forwarder interface {
	// Forward returns the http client, the URL of path and headers for the session.
	Forward(path string) (*http.Client, string, http.Header)
}

type client struct {
	httpclient  *http.Client
	api         string
	pageSize    PageSize
	onForbidden func()
	logger      logs.Logger
	now         func() time.Time

	mu    sync.Mutex
	token string
}

type Option func(*client) *client

// WithPageSize sets the page size of lists. Default is no limits.
func WithPageSize(ps PageSize) Option {
	return func(c *client) *client {
		c.pageSize = ps
		return c
	}
}

// WithOnForbidden sets the hook called when the backend responds 403,
// or when the session token has expired.
func WithOnForbidden(hook func()) Option {
	return func(c *client) *client {
		c.onForbidden = hook
		return c
	}
}

func WithLogger(l logs.Logger) Option {
	return func(c *client) *client {
		c.logger = l
		return c
	}
}

// WithClock replaces the clock used to check token expiry.
func WithClock(now func() time.Time) Option {
	return func(c *client) *client {
		c.now = now
		return c
	}
}

// create new client for the backend
//
// # Args
//
// - *console.BackendConfig
//
// - ...Option
//
// # Return
//
// - Client: created client
//
// - error: If given config is invalid.
func NewClient(conf *console.BackendConfig, options ...Option) (Client, error) {
	if conf == nil || conf.ApiRoot == "" {
		return nil, fmt.Errorf("%w: backend.apiRoot is empty", console.ErrConfigInvalid)
	}
	if _, err := url.Parse(conf.ApiRoot); err != nil {
		return nil, fmt.Errorf("%w: backend.apiRoot: %w", console.ErrConfigInvalid, err)
	}

	httpclient := new(http.Client)
	if conf.Cert.CA != "" {
		hc, err := trustCa(httpclient, []string{conf.Cert.CA})
		if err != nil {
			return nil, err
		}
		httpclient = hc
	}

	c := &client{
		httpclient: httpclient,
		api:        strings.TrimSuffix(conf.ApiRoot, "/"),
		pageSize:   Unlimited(),
		logger:     logs.Discard(),
		now:        time.Now,
		token:      conf.Token,
	}
	for _, opt := range options {
		c = opt(c)
	}
	return c, nil
}

// build URL with path.
//
// Each path may have query part.
func (c *client) apipath(path ...string) string {
	path = utils.Map(path, func(p string) string {
		return strings.TrimPrefix(strings.TrimSuffix(p, "/"), "/")
	})

	return strings.Join(append([]string{c.api}, path...), "/")
}

func trustCa(hc *http.Client, cacerts []string) (*http.Client, error) {
	if len(cacerts) <= 0 {
		return hc, nil
	}

	if hc.Transport == nil {
		hc.Transport = http.DefaultTransport
	}

	tran, ok := hc.Transport.(*http.Transport)
	if !ok {
		return nil, fmt.Errorf("failed to add ca cert")
	}
	tran = tran.Clone()

	tcc := tran.TLSClientConfig.Clone()
	if tcc == nil {
		tcc = &tls.Config{}
	}

	rootcas := tcc.RootCAs
	if rootcas == nil {
		rootcas = x509.NewCertPool()
		tcc.RootCAs = rootcas
	}
	for _, ca := range cacerts {
		bin, err := base64.StdEncoding.DecodeString(ca)
		if err != nil {
			return nil, err
		}

		if !rootcas.AppendCertsFromPEM(bin) {
			return nil, fmt.Errorf("failed to add cert")
		}
	}

	tran.TLSClientConfig = tcc
	hc.Transport = tran
	return hc, nil
}

func (c *client) sessionToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

func (c *client) setSessionToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

type requestOption func(*http.Request, *callConfig)

type callConfig struct {
	suppressForbidden bool
}

// the request does not trigger the forbidden hook.
func suppressForbidden() requestOption {
	return func(_ *http.Request, cc *callConfig) {
		cc.suppressForbidden = true
	}
}

func withHeader(key, value string) requestOption {
	return func(r *http.Request, _ *callConfig) {
		r.Header.Set(key, value)
	}
}

// newRequest creates a request with headers the backend requires.
//
// body is encoded as JSON unless nil.
func (c *client) newRequest(ctx context.Context, method string, path string, body any) (*http.Request, error) {
	var payload io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		payload = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.apipath(path), payload)
	if err != nil {
		return nil, err
	}
	req.Header.Set(headerPragma, pragmaForceIndexUpdate)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(headerRequestId, uuid.NewString())
	if token := c.sessionToken(); token != "" {
		req.Header.Set(headerAuthToken, token)
	}
	return req, nil
}

func (c *client) Forward(path string) (*http.Client, string, http.Header) {
	header := http.Header{}
	if token := c.sessionToken(); token != "" {
		header.Set(headerAuthToken, token)
	}
	return c.httpclient, c.apipath(path), header
}

func (c *client) forbidden(cc callConfig) {
	if cc.suppressForbidden || c.onForbidden == nil {
		return
	}
	c.onForbidden()
}

// do sends the request.
//
// When the session has expired, the request is not sent and auth.ErrSessionExpired is returned.
// When the backend responds 403, the forbidden hook is called.
func (c *client) do(req *http.Request, options ...requestOption) (*http.Response, error) {
	cc := callConfig{}
	for _, opt := range options {
		opt(req, &cc)
	}

	if token := req.Header.Get(headerAuthToken); token != "" && auth.Expired(token, c.now()) {
		c.forbidden(cc)
		return nil, auth.ErrSessionExpired
	}

	started := c.now()
	resp, err := c.httpclient.Do(req)
	if err != nil {
		c.logger.Debugf(
			"rest: %s %s failed (request id = %s): %s",
			req.Method, req.URL.Path, req.Header.Get(headerRequestId), err,
		)
		return nil, err
	}
	c.logger.Debugf(
		"rest: %s %s -> %d (request id = %s, %s)",
		req.Method, req.URL.Path, resp.StatusCode, req.Header.Get(headerRequestId), c.now().Sub(started),
	)

	if resp.StatusCode == http.StatusForbidden {
		c.forbidden(cc)
	}
	return resp, nil
}

// call sends a request and decodes JSON response into T.
func call[T any](
	ctx context.Context, c *client, method string, path string, body any,
	messageFor MessageFor, options ...requestOption,
) (T, error) {
	var ret T
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return ret, err
	}
	resp, err := c.do(req, options...)
	if err != nil {
		return ret, err
	}
	defer resp.Body.Close()

	if err := unmarshalJsonResponse(resp, &ret, messageFor); err != nil {
		return *new(T), err
	}
	return ret, nil
}

// get is call with GET.
func get[T any](ctx context.Context, c *client, path string, messageFor MessageFor) (T, error) {
	return call[T](ctx, c, http.MethodGet, path, nil, messageFor)
}

func messagesFor(what string) MessageFor {
	return MessageFor{
		Status4xx: fmt.Sprintf("cannot %s", what),
		Status5xx: fmt.Sprintf("server error on %s", what),
	}
}

func (c *client) LoadDocument(ctx context.Context, link string) (json.RawMessage, error) {
	return get[json.RawMessage](ctx, c, link, messagesFor("load "+link))
}

func (c *client) CreateDocument(ctx context.Context, factory string, document any) (json.RawMessage, error) {
	return call[json.RawMessage](ctx, c, http.MethodPost, factory, document, messagesFor("create document in "+factory))
}

func (c *client) UpdateDocument(ctx context.Context, link string, document any) (json.RawMessage, error) {
	return call[json.RawMessage](ctx, c, http.MethodPut, link, document, messagesFor("update "+link))
}

func (c *client) PatchDocument(ctx context.Context, link string, diff any) (json.RawMessage, error) {
	return call[json.RawMessage](ctx, c, http.MethodPatch, link, diff, messagesFor("update "+link))
}

func (c *client) DeleteDocument(ctx context.Context, link string) error {
	req, err := c.newRequest(ctx, http.MethodDelete, link, struct{}{})
	if err != nil {
		return err
	}
	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return unmarshalResponseDiscardingPayload(resp, messagesFor("delete "+link))
}

func (c *client) LoadNextPage(ctx context.Context, nextPageLink string) (documents.Envelope, error) {
	return get[documents.Envelope](
		ctx, c, nextPageLink+"&"+paramDocumentType+"=true", messagesFor("load next page"),
	)
}

type session struct {
	RequestType string `json:"requestType"`
}

func (c *client) Login(ctx context.Context, username string, password string) (string, error) {
	req, err := c.newRequest(ctx, http.MethodPost, documents.BasicAuth, session{RequestType: "LOGIN"})
	if err != nil {
		return "", err
	}
	req.Header.Del(headerAuthToken)
	req.SetBasicAuth(username, password)

	resp, err := c.do(req, suppressForbidden())
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if err := unmarshalResponseDiscardingPayload(resp, MessageFor{
		Status4xx: "login failed",
		Status5xx: fmt.Sprintf("server error (status code = %d)", resp.StatusCode),
	}); err != nil {
		return "", err
	}

	token := resp.Header.Get(headerAuthToken)
	c.setSessionToken(token)
	return token, nil
}

func (c *client) Logout(ctx context.Context) error {
	req, err := c.newRequest(ctx, http.MethodPost, documents.BasicAuth, session{RequestType: "LOGOUT"})
	if err != nil {
		return err
	}
	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := unmarshalResponseDiscardingPayload(resp, messagesFor("logout")); err != nil {
		return err
	}
	c.setSessionToken("")
	return nil
}

// ensure the client satisfies the interface.
var _ Client = &client{}

// shorthand to make a request with the option.
func withAccept(mime string) requestOption {
	return withHeader("Accept", mime)
}
