package rest_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/go-cmp/cmp"
	"github.com/opst/fleetdeck/pkg/api/types/containers"
	"github.com/opst/fleetdeck/pkg/api/types/requests"
	"github.com/opst/fleetdeck/pkg/api/types/templates"
	"github.com/opst/fleetdeck/pkg/auth"
	"github.com/opst/fleetdeck/pkg/configs/console"
	"github.com/opst/fleetdeck/pkg/query"
	"github.com/opst/fleetdeck/pkg/rest"
	"github.com/opst/fleetdeck/pkg/utils/try"
)

// recorder is a fake backend recording requests.
type recorder struct {
	mu       sync.Mutex
	requests []*http.Request
	bodies   []string
	respond  func(w http.ResponseWriter, r *http.Request)
}

func (rec *recorder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	rec.mu.Lock()
	rec.requests = append(rec.requests, r)
	rec.bodies = append(rec.bodies, string(body))
	rec.mu.Unlock()
	rec.respond(w, r)
}

func (rec *recorder) last(t *testing.T) (*http.Request, string) {
	t.Helper()
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.requests) == 0 {
		t.Fatal("no requests")
	}
	n := len(rec.requests) - 1
	return rec.requests[n], rec.bodies[n]
}

func (rec *recorder) count() int {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return len(rec.requests)
}

func respondJson(status int, body any) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if body != nil {
			json.NewEncoder(w).Encode(body)
		}
	}
}

func setup(t *testing.T, respond func(http.ResponseWriter, *http.Request), options ...rest.Option) (rest.Client, *recorder) {
	t.Helper()
	rec := &recorder{respond: respond}
	server := httptest.NewServer(rec)
	t.Cleanup(server.Close)

	testee := try.To(rest.NewClient(&console.BackendConfig{ApiRoot: server.URL}, options...)).OrFatal(t)
	return testee, rec
}

func TestClient_headers(t *testing.T) {
	testee, rec := setup(t, respondJson(http.StatusOK, containers.Container{DocumentSelfLink: "/resources/containers/c1"}))

	actual := try.To(testee.LoadContainer(context.Background(), "c1")).OrFatal(t)
	if actual.DocumentSelfLink != "/resources/containers/c1" {
		t.Errorf("unexpected container: %+v", actual)
	}

	req, _ := rec.last(t)
	if req.Method != http.MethodGet || req.URL.Path != "/resources/containers/c1" {
		t.Errorf("unexpected request: %s %s", req.Method, req.URL.Path)
	}
	for header, expected := range map[string]string{
		"Pragma":       "xn-force-index-update",
		"Accept":       "application/json",
		"Content-Type": "application/json",
	} {
		if actual := req.Header.Get(header); actual != expected {
			t.Errorf("header %s: actual = %q, expected = %q", header, actual, expected)
		}
	}
	if req.Header.Get("X-Request-Id") == "" {
		t.Error("request id is not sent")
	}
}

func TestClient_DeleteDocument(t *testing.T) {
	testee, rec := setup(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	if err := testee.DeleteDocument(context.Background(), "/resources/composite-descriptions/t1"); err != nil {
		t.Fatal(err)
	}

	req, body := rec.last(t)
	if req.Method != http.MethodDelete || req.URL.Path != "/resources/composite-descriptions/t1" {
		t.Errorf("unexpected request: %s %s", req.Method, req.URL.Path)
	}
	if body != "{}" {
		t.Errorf("body: %q", body)
	}
}

func TestClient_errors(t *testing.T) {
	t.Run("when the backend responds error message, it is TransportError with the message", func(t *testing.T) {
		testee, _ := setup(t, respondJson(http.StatusBadRequest, map[string]any{
			"message":          "invalid template",
			"validationErrors": map[string]string{"name": "is required"},
		}))

		_, err := testee.UpdateContainerTemplate(
			context.Background(),
			templates.CompositeDescription{DocumentSelfLink: "/resources/composite-descriptions/t1"},
		)

		terr := new(rest.TransportError)
		if !errors.As(err, &terr) {
			t.Fatalf("unexpected error: %v", err)
		}
		expected := &rest.TransportError{
			StatusCode: http.StatusBadRequest,
			Message:    "invalid template",
			Validation: map[string]string{"name": "is required"},
		}
		if diff := cmp.Diff(expected, terr); diff != "" {
			t.Errorf("error (-want +got):\n%s", diff)
		}
	})

	t.Run("when the backend responds without message, it is TransportError with fallback message", func(t *testing.T) {
		testee, _ := setup(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte("<html>not found</html>"))
		})

		_, err := testee.LoadContainer(context.Background(), "c1")
		if !errors.Is(err, rest.ErrNotFound) {
			t.Errorf("unexpected error: %v", err)
		}
		terr := new(rest.TransportError)
		if !errors.As(err, &terr) || terr.Message != "container c1 is not found" {
			t.Errorf("unexpected error: %v", err)
		}
	})
}

func TestClient_forbidden(t *testing.T) {
	forbidden := respondJson(http.StatusForbidden, map[string]string{"message": "forbidden"})

	t.Run("when the backend responds 403, the hook is called", func(t *testing.T) {
		called := 0
		testee, _ := setup(t, forbidden, rest.WithOnForbidden(func() { called += 1 }))

		_, err := testee.LoadContainer(context.Background(), "c1")
		if !errors.Is(err, rest.ErrForbidden) {
			t.Errorf("unexpected error: %v", err)
		}
		if called != 1 {
			t.Errorf("hook is called %d times", called)
		}
	})

	t.Run("when login is rejected with 403, the hook is not called", func(t *testing.T) {
		called := 0
		testee, _ := setup(t, forbidden, rest.WithOnForbidden(func() { called += 1 }))

		if _, err := testee.Login(context.Background(), "user", "pass"); err == nil {
			t.Error("login succeeded")
		}
		if called != 0 {
			t.Errorf("hook is called %d times", called)
		}
	})

	t.Run("when the session token has expired, request is not sent and the hook is called", func(t *testing.T) {
		now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
		expiredToken := try.To(
			jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(now.Add(-time.Minute)),
			}).SignedString([]byte("secret")),
		).OrFatal(t)

		rec := &recorder{respond: respondJson(http.StatusOK, containers.Container{})}
		server := httptest.NewServer(rec)
		defer server.Close()

		called := 0
		testee := try.To(rest.NewClient(
			&console.BackendConfig{ApiRoot: server.URL, Token: expiredToken},
			rest.WithOnForbidden(func() { called += 1 }),
			rest.WithClock(func() time.Time { return now }),
		)).OrFatal(t)

		_, err := testee.LoadContainer(context.Background(), "c1")
		if !errors.Is(err, auth.ErrSessionExpired) {
			t.Errorf("unexpected error: %v", err)
		}
		if rec.count() != 0 {
			t.Errorf("request is sent")
		}
		if called != 1 {
			t.Errorf("hook is called %d times", called)
		}
	})
}

func TestClient_Login(t *testing.T) {
	testee, rec := setup(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/core/authn/basic" {
			w.Header().Set("x-xenon-auth-token", "token-1")
			w.WriteHeader(http.StatusOK)
			return
		}
		respondJson(http.StatusOK, containers.Container{})(w, r)
	})

	token := try.To(testee.Login(context.Background(), "user", "pass")).OrFatal(t)
	if token != "token-1" {
		t.Errorf("token: %s", token)
	}
	req, body := rec.last(t)
	if user, pass, ok := req.BasicAuth(); !ok || user != "user" || pass != "pass" {
		t.Errorf("basic auth: %s, %s, %v", user, pass, ok)
	}
	if body != `{"requestType":"LOGIN"}` {
		t.Errorf("body: %s", body)
	}

	try.To(testee.LoadContainer(context.Background(), "c1")).OrFatal(t)
	req, _ = rec.last(t)
	if actual := req.Header.Get("x-xenon-auth-token"); actual != "token-1" {
		t.Errorf("token is not sent: %q", actual)
	}
}

func TestClient_LoadContainers(t *testing.T) {
	t.Run("it requests a page with filter, order and limit", func(t *testing.T) {
		total := 3
		testee, rec := setup(
			t,
			respondJson(http.StatusOK, map[string]any{
				"documentLinks": []string{"/resources/containers/b", "/resources/containers/a"},
				"documents": map[string]any{
					"/resources/containers/a": map[string]any{"documentSelfLink": "/resources/containers/a"},
					"/resources/containers/b": map[string]any{"documentSelfLink": "/resources/containers/b"},
				},
				"totalCount":   total,
				"nextPageLink": "/resources/containers?page=2",
			}),
			rest.WithPageSize(rest.Viewport{Width: 1000, Height: 600}),
		)

		actual := try.To(testee.LoadContainers(
			context.Background(),
			query.SearchOptions{"image": {"nginx"}, "name": {"web"}},
		)).OrFatal(t)

		req, _ := rec.last(t)
		q := req.URL.Query()
		for key, expected := range map[string]string{
			"documentType": "true",
			"$count":       "true",
			"$limit":       "10", // ceil(4 * 2.4)
			"$orderby":     "created asc",
			"$filter":      "names/item eq '*web*' and image eq '*nginx*'",
		} {
			if q.Get(key) != expected {
				t.Errorf("query %s: actual = %q, expected = %q", key, q.Get(key), expected)
			}
		}

		ids := []string{}
		for _, c := range actual.ToArray() {
			ids = append(ids, c.DocumentId())
		}
		if diff := cmp.Diff([]string{"b", "a"}, ids); diff != "" {
			t.Errorf("order (-want +got):\n%s", diff)
		}
		if actual.Count() != total || actual.NextPageLink != "/resources/containers?page=2" {
			t.Errorf("unexpected page: %+v", actual)
		}
	})

	t.Run("when page size is unlimited, $limit is not sent", func(t *testing.T) {
		testee, rec := setup(t, respondJson(http.StatusOK, map[string]any{"documentLinks": []string{}}))
		try.To(testee.LoadContainers(context.Background(), nil)).OrFatal(t)

		req, _ := rec.last(t)
		if req.URL.Query().Has("$limit") {
			t.Errorf("$limit is sent: %s", req.URL.RawQuery)
		}
		if req.URL.Query().Has("$filter") {
			t.Errorf("$filter is sent: %s", req.URL.RawQuery)
		}
	})
}

func TestClient_LoadNextPage(t *testing.T) {
	testee, rec := setup(t, respondJson(http.StatusOK, map[string]any{"documentLinks": []string{}}))
	try.To(testee.LoadNextPage(context.Background(), "/resources/containers?page=2")).OrFatal(t)

	req, _ := rec.last(t)
	if q := req.URL.Query(); q.Get("page") != "2" || q.Get("documentType") != "true" {
		t.Errorf("unexpected query: %s", req.URL.RawQuery)
	}
}

func TestClient_LoadClusterContainers(t *testing.T) {
	testee, rec := setup(t, respondJson(http.StatusOK, map[string]any{
		"documentLinks": []string{"/resources/containers/c1"},
		"documents": map[string]any{
			"/resources/containers/c1": map[string]any{"documentSelfLink": "/resources/containers/c1"},
		},
	}))

	actual := try.To(testee.LoadClusterContainers(context.Background(), "d1", "ctx")).OrFatal(t)
	if len(actual) != 1 || actual[0].DocumentId() != "c1" {
		t.Errorf("unexpected: %+v", actual)
	}

	req, _ := rec.last(t)
	q := req.URL.Query()
	if q.Get("expand") != "true" {
		t.Error("not expanded")
	}
	expectedFilter := "descriptionLink eq '/resources/container-descriptions/d1'" +
		" and customProperties/__composition_context_id eq 'ctx'"
	if q.Get("$filter") != expectedFilter {
		t.Errorf("filter: %s", q.Get("$filter"))
	}
}

func TestClient_LoadHostsByLinks(t *testing.T) {
	t.Run("when links are empty, it does not send requests", func(t *testing.T) {
		testee, rec := setup(t, respondJson(http.StatusOK, nil))
		actual := try.To(testee.LoadHostsByLinks(context.Background(), nil)).OrFatal(t)
		if len(actual) != 0 || rec.count() != 0 {
			t.Errorf("unexpected: %+v, %d requests", actual, rec.count())
		}
	})

	t.Run("it returns hosts keyed by link", func(t *testing.T) {
		testee, rec := setup(t, respondJson(http.StatusOK, map[string]any{
			"documentLinks": []string{"/resources/compute/h1"},
			"documents": map[string]any{
				"/resources/compute/h1": map[string]any{"documentSelfLink": "/resources/compute/h1", "name": "host-1"},
			},
		}))
		actual := try.To(testee.LoadHostsByLinks(
			context.Background(), []string{"/resources/compute/h1", "/resources/compute/h2"},
		)).OrFatal(t)
		if actual["/resources/compute/h1"].Name != "host-1" {
			t.Errorf("unexpected: %+v", actual)
		}
		req, _ := rec.last(t)
		expected := "documentSelfLink eq '/resources/compute/h1' or documentSelfLink eq '/resources/compute/h2'"
		if f := req.URL.Query().Get("$filter"); f != expected {
			t.Errorf("filter: %s", f)
		}
	})
}

func TestClient_LoadContainerLogs(t *testing.T) {
	testee, rec := setup(t, respondJson(http.StatusOK, containers.LogState{
		Logs: base64.StdEncoding.EncodeToString([]byte("hello\nworld\n")),
	}))

	actual := try.To(testee.LoadContainerLogs(context.Background(), "c1", 90*time.Second)).OrFatal(t)
	if actual != "hello\nworld\n" {
		t.Errorf("logs: %q", actual)
	}
	req, _ := rec.last(t)
	if q := req.URL.Query(); req.URL.Path != "/logs" || q.Get("id") != "c1" || q.Get("since") != "90" {
		t.Errorf("unexpected request: %s?%s", req.URL.Path, req.URL.RawQuery)
	}
}

func TestClient_LoadContainerStats(t *testing.T) {
	t.Run("when entries exist, it returns latest values", func(t *testing.T) {
		testee, _ := setup(t, respondJson(http.StatusOK, map[string]any{
			"entries": map[string]any{
				"cpuUsage": map[string]any{"latestValue": 12.5},
				"memUsage": map[string]any{"latestValue": 1024},
			},
		}))
		actual := try.To(testee.LoadContainerStats(context.Background(), "c1")).OrFatal(t)
		if diff := cmp.Diff(&containers.Stats{CpuUsage: 12.5, MemUsage: 1024}, actual); diff != "" {
			t.Errorf("stats (-want +got):\n%s", diff)
		}
	})

	t.Run("when no entries, it returns nil", func(t *testing.T) {
		testee, _ := setup(t, respondJson(http.StatusOK, map[string]any{}))
		if actual := try.To(testee.LoadContainerStats(context.Background(), "c1")).OrFatal(t); actual != nil {
			t.Errorf("stats: %+v", actual)
		}
	})
}

func TestClient_SubmitRequest(t *testing.T) {
	testee, rec := setup(t, respondJson(http.StatusOK, requests.Request{
		DocumentSelfLink:   "/requests/r1",
		RequestTrackerLink: "/request-status/r1",
	}))

	actual := try.To(testee.SubmitRequest(
		context.Background(),
		requests.Scale("/resources/container-descriptions/d1", "ctx", 3),
	)).OrFatal(t)
	if actual.RequestTrackerLink != "/request-status/r1" {
		t.Errorf("unexpected: %+v", actual)
	}

	req, body := rec.last(t)
	if req.Method != http.MethodPost || req.URL.Path != "/requests" {
		t.Errorf("unexpected request: %s %s", req.Method, req.URL.Path)
	}
	sent := map[string]any{}
	if err := json.Unmarshal([]byte(body), &sent); err != nil {
		t.Fatal(err)
	}
	expected := map[string]any{
		"resourceType":            "DOCKER_CONTAINER",
		"resourceDescriptionLink": "/resources/container-descriptions/d1",
		"resourceCount":           float64(3),
		"customProperties":        map[string]any{"__composition_context_id": "ctx"},
		"operation":               "CLUSTER_RESOURCE",
	}
	if diff := cmp.Diff(expected, sent); diff != "" {
		t.Errorf("payload (-want +got):\n%s", diff)
	}
}

func TestClient_LoadTemplates(t *testing.T) {
	for name, testcase := range map[string]struct {
		when  query.SearchOptions
		query map[string]string
		unset []string
	}{
		"when nothing is searched, it searches with wildcard": {
			when:  nil,
			query: map[string]string{"q": "*"},
			unset: []string{"templatesOnly", "imagesOnly"},
		},
		"when templates are searched, it sends templatesOnly": {
			when:  query.SearchOptions{"any": {"web", "db"}, "$category": {"templates"}},
			query: map[string]string{"q": "web", "templatesOnly": "true", "templatesParentOnly": "true"},
			unset: []string{"imagesOnly"},
		},
		"when images are searched, it sends imagesOnly": {
			when:  query.SearchOptions{"any": {"nginx"}, "$category": {"images"}},
			query: map[string]string{"q": "nginx", "imagesOnly": "true"},
			unset: []string{"templatesOnly"},
		},
	} {
		t.Run(name, func(t *testing.T) {
			testee, rec := setup(t, respondJson(http.StatusOK, templates.SearchResult{
				Results: []templates.Entry{{Name: "nginx", TemplateType: templates.ImageType}},
			}))
			actual := try.To(testee.LoadTemplates(context.Background(), testcase.when)).OrFatal(t)
			if len(actual) != 1 || actual[0].Name != "nginx" {
				t.Errorf("unexpected: %+v", actual)
			}

			req, _ := rec.last(t)
			q := req.URL.Query()
			for k, v := range testcase.query {
				if q.Get(k) != v {
					t.Errorf("query %s: actual = %q, expected = %q", k, q.Get(k), v)
				}
			}
			for _, k := range testcase.unset {
				if q.Has(k) {
					t.Errorf("query %s is set", k)
				}
			}
		})
	}
}

func TestClient_UpdateContainerTemplate(t *testing.T) {
	t.Run("when the backend responds nothing, it returns the given template", func(t *testing.T) {
		testee, rec := setup(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
		given := templates.CompositeDescription{DocumentSelfLink: "/resources/composite-descriptions/t1", Name: "new"}

		actual := try.To(testee.UpdateContainerTemplate(context.Background(), given)).OrFatal(t)
		if diff := cmp.Diff(given, actual); diff != "" {
			t.Errorf("template (-want +got):\n%s", diff)
		}
		req, _ := rec.last(t)
		if req.Method != http.MethodPatch {
			t.Errorf("method: %s", req.Method)
		}
	})
}

func TestViewport(t *testing.T) {
	for _, testcase := range []struct {
		when rest.Viewport
		then int
	}{
		{when: rest.Viewport{Width: 1000, Height: 600}, then: 10},
		{when: rest.Viewport{Width: 250, Height: 250}, then: 1},
		{when: rest.Viewport{Width: 260, Height: 250}, then: 2},
		{when: rest.Viewport{Width: 0, Height: 250}, then: 0},
	} {
		if actual := testcase.when.Limit(); actual != testcase.then {
			t.Errorf("%+v: actual = %d, expected = %d", testcase.when, actual, testcase.then)
		}
	}
}

func TestClient_Forward(t *testing.T) {
	t.Run("it tells the URL in the backend and the session header", func(t *testing.T) {
		testee := try.To(rest.NewClient(&console.BackendConfig{ApiRoot: "https://backend.example.com/api/"})).OrFatal(t)
		fw, ok := testee.(rest.Forwarder)
		if !ok {
			t.Fatal("client is not a Forwarder")
		}

		hc, url, header := fw.Forward("/container-image-icons?container-image=nginx")
		if hc == nil {
			t.Error("http client is nil")
		}
		if url != "https://backend.example.com/api/container-image-icons?container-image=nginx" {
			t.Errorf("url = %s", url)
		}
		if len(header) != 0 {
			t.Errorf("header without session: %v", header)
		}
	})
}
