package store_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/opst/fleetdeck/pkg/api/types/containers"
	"github.com/opst/fleetdeck/pkg/api/types/documents"
	"github.com/opst/fleetdeck/pkg/api/types/requests"
	"github.com/opst/fleetdeck/pkg/cluster"
	"github.com/opst/fleetdeck/pkg/notifications"
	"github.com/opst/fleetdeck/pkg/query"
	"github.com/opst/fleetdeck/pkg/rest/mock"
	"github.com/opst/fleetdeck/pkg/store"
)

type sink struct {
	mu   sync.Mutex
	reqs []requests.Request
}

func (s *sink) RequestCreated(req requests.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reqs = append(s.reqs, req)
}

func (s *sink) Created() []requests.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]requests.Request{}, s.reqs...)
}

func submitted(_ context.Context, req requests.Request) (requests.Request, error) {
	req.RequestTrackerLink = documents.RequestStatus + "/r1"
	return req, nil
}

// composite mocks an application app1 having members.
func composite(client *mock.MockClient, members ...containers.Container) {
	client.Impl.LoadCompositeComponent = func(_ context.Context, id string) (containers.CompositeComponent, error) {
		return containers.CompositeComponent{
			DocumentSelfLink: documents.LinkOf(documents.CompositeComponents, id),
			Name:             id,
		}, nil
	}
	client.Impl.LoadContainersForComposite = func(context.Context, string) (documents.List[containers.Container], error) {
		return listOf(containerLink, members...), nil
	}
	client.Impl.LoadContainer = func(_ context.Context, id string) (containers.Container, error) {
		for _, m := range members {
			if m.DocumentId() == id {
				return m, nil
			}
		}
		return containers.Container{}, errors.New("not found")
	}
}

var listNavigation = navigation{
	To:    "list",
	Query: query.SearchOptions{}.With(query.KeyCategory, query.CategoryContainers).Key(),
}

func TestContainersStore_Day2(t *testing.T) {
	t.Run("an operation on the list opens the requests panel", func(t *testing.T) {
		client := mock.New(t)
		client.Impl.SubmitRequest = submitted
		created := &sink{}

		testee := store.NewContainersStore(client, &navigator{}, created)
		defer testee.Close()

		testee.StartContainer("c1")
		testee.Wait()

		want := []requests.Request{requests.ForContainer("c1", requests.OpStart)}
		if diff := cmp.Diff(want, client.Recorded().SubmitRequest); diff != "" {
			t.Errorf("submitted (-want +got):\n%s", diff)
		}
		if n := len(created.Created()); n != 1 {
			t.Errorf("created: %d", n)
		}
		if got := testee.Snapshot().ContextView.ActiveItem; got != store.PanelRequests {
			t.Errorf("active panel = %s", got)
		}
	})

	t.Run("a rejected operation on the list shows the error", func(t *testing.T) {
		client := mock.New(t)
		client.Impl.SubmitRequest = func(context.Context, requests.Request) (requests.Request, error) {
			return requests.Request{}, errors.New("rejected")
		}
		created := &sink{}

		testee := store.NewContainersStore(client, &navigator{}, created)
		defer testee.Close()

		testee.RemoveComposite("app1")
		testee.Wait()

		if diff := cmp.Diff(&store.ErrorView{Message: "rejected"}, testee.Snapshot().ListView.Error); diff != "" {
			t.Errorf("error (-want +got):\n%s", diff)
		}
		if n := len(created.Created()); n != 0 {
			t.Errorf("created: %d", n)
		}
	})

	t.Run("an unknown cluster cannot be operated", func(t *testing.T) {
		client := mock.New(t)
		testee := store.NewContainersStore(client, &navigator{}, nil)
		defer testee.Close()

		if err := testee.StopCluster("nowhere"); !errors.Is(err, store.ErrUnknownCluster) {
			t.Errorf("error = %v", err)
		}
	})

	t.Run("a cluster shown is operated with its members", func(t *testing.T) {
		client := mock.New(t)
		members := []containers.Container{container("c1", "d1", ""), container("c2", "d1", "")}
		client.Impl.LoadClusterContainers = func(context.Context, string, string) ([]containers.Container, error) {
			return members, nil
		}
		client.Impl.LoadContainer = func(_ context.Context, id string) (containers.Container, error) {
			return members[0], nil
		}
		client.Impl.SubmitRequest = submitted

		testee := store.NewContainersStore(client, &navigator{}, nil)
		defer testee.Close()

		testee.OpenDetails("c1", "d1", "")
		testee.Wait()

		if err := testee.RemoveCluster("d1"); err != nil {
			t.Fatal(err)
		}
		testee.Wait()

		want := []requests.Request{requests.ForCluster(members, requests.OpDelete)}
		if diff := cmp.Diff(want, client.Recorded().SubmitRequest); diff != "" {
			t.Errorf("submitted (-want +got):\n%s", diff)
		}
	})

	t.Run("cluster size is modified by the cluster id", func(t *testing.T) {
		client := mock.New(t)
		client.Impl.SubmitRequest = submitted
		testee := store.NewContainersStore(client, &navigator{}, nil)
		defer testee.Close()

		testee.ModifyClusterSize(cluster.Key("d1", "ctx1"), 3)
		testee.Wait()

		want := []requests.Request{requests.Scale(documents.LinkOf(documents.ContainerDescriptions, "d1"), "ctx1", 3)}
		if diff := cmp.Diff(want, client.Recorded().SubmitRequest); diff != "" {
			t.Errorf("submitted (-want +got):\n%s", diff)
		}
	})

	t.Run("scaling a container adds one to its cluster", func(t *testing.T) {
		client := mock.New(t)
		client.Impl.LoadClusterContainers = func(context.Context, string, string) ([]containers.Container, error) {
			return []containers.Container{container("c1", "d1", "")}, nil
		}
		client.Impl.SubmitRequest = submitted
		testee := store.NewContainersStore(client, &navigator{}, nil)
		defer testee.Close()

		descriptionLink := documents.LinkOf(documents.ContainerDescriptions, "d1")
		testee.ScaleContainer(descriptionLink, "")
		testee.Wait()

		want := []requests.Request{requests.Scale(descriptionLink, "", 2)}
		if diff := cmp.Diff(want, client.Recorded().SubmitRequest); diff != "" {
			t.Errorf("submitted (-want +got):\n%s", diff)
		}
	})

	t.Run("an operation on details marks the container in progress", func(t *testing.T) {
		client := mock.New(t)
		composite(client, container("c1", "d1", ""))
		client.Impl.SubmitRequest = submitted

		testee := store.NewContainersStore(client, &navigator{}, nil)
		defer testee.Close()

		testee.OpenDetails("c1", "", "")
		testee.Wait()
		testee.StopContainerDetails("c1")
		testee.Wait()

		if got := testee.Snapshot().Selection.Container.OperationInProgress; got != requests.Stop {
			t.Errorf("in progress: %s", got)
		}
	})
}

func TestContainersStore_OnOperationCompleted(t *testing.T) {
	t.Run("when the application shown is removed, it navigates to the list", func(t *testing.T) {
		client := mock.New(t)
		composite(client, inComposite(container("c1", "d1", ""), "app1"))
		nav := &navigator{}

		testee := store.NewContainersStore(client, nav, nil)
		defer testee.Close()

		testee.OpenCompositeDetails("app1")
		testee.Wait()
		testee.OnOperationCompleted(requests.Remove, []string{"app1"})
		testee.Wait()

		if diff := cmp.Diff([]navigation{listNavigation}, nav.Navigations()); diff != "" {
			t.Errorf("navigations (-want +got):\n%s", diff)
		}
	})

	t.Run("when the only container of the application shown is removed, it navigates to the list", func(t *testing.T) {
		client := mock.New(t)
		composite(client, inComposite(container("c1", "d1", ""), "app1"))
		nav := &navigator{}

		testee := store.NewContainersStore(client, nav, nil)
		defer testee.Close()

		testee.OpenCompositeDetails("app1")
		testee.Wait()
		if sel := testee.Snapshot().Selection; sel == nil || sel.Container != nil {
			t.Fatalf("selection: %+v", sel)
		}
		testee.OnOperationCompleted(requests.Remove, []string{"c1"})
		testee.Wait()

		if diff := cmp.Diff([]navigation{listNavigation}, nav.Navigations()); diff != "" {
			t.Errorf("navigations (-want +got):\n%s", diff)
		}
	})

	t.Run("when the last container of an application is removed from details, it navigates to the list", func(t *testing.T) {
		client := mock.New(t)
		composite(client, inComposite(container("c1", "d1", ""), "app1"))
		client.Impl.SubmitRequest = submitted
		nav := &navigator{}

		testee := store.NewContainersStore(client, nav, nil)
		defer testee.Close()

		testee.OpenDetails("c1", "", "app1")
		testee.Wait()
		testee.RemoveContainerDetails("c1")
		testee.Wait()
		testee.OnOperationCompleted(requests.Remove, []string{"c1"})
		testee.Wait()

		if diff := cmp.Diff([]navigation{listNavigation}, nav.Navigations()); diff != "" {
			t.Errorf("navigations (-want +got):\n%s", diff)
		}
		if got := testee.Snapshot().Selection.Container.OperationInProgress; got != "" {
			t.Errorf("still in progress: %s", got)
		}
	})

	t.Run("when a container of an application is removed from details and others remain, it navigates to the application", func(t *testing.T) {
		client := mock.New(t)
		composite(client, inComposite(container("c1", "d1", ""), "app1"), inComposite(container("c2", "d2", ""), "app1"))
		client.Impl.SubmitRequest = submitted
		nav := &navigator{}

		testee := store.NewContainersStore(client, nav, nil)
		defer testee.Close()

		testee.OpenDetails("c1", "", "app1")
		testee.Wait()
		testee.RemoveContainerDetails("c1")
		testee.Wait()
		testee.OnOperationCompleted(requests.Remove, []string{"c1"})
		testee.Wait()

		want := []navigation{{To: "composite", CompositeId: "app1"}}
		if diff := cmp.Diff(want, nav.Navigations()); diff != "" {
			t.Errorf("navigations (-want +got):\n%s", diff)
		}
	})

	t.Run("when removed ids are not what is shown, it reloads the view in place", func(t *testing.T) {
		client := mock.New(t)
		composite(client, inComposite(container("c1", "d1", ""), "app1"))
		nav := &navigator{}

		testee := store.NewContainersStore(client, nav, nil)
		defer testee.Close()

		testee.OpenCompositeDetails("app1")
		testee.Wait()
		testee.OnOperationCompleted(requests.Remove, []string{"c1", "elsewhere"})
		testee.Wait()

		if navs := nav.Navigations(); len(navs) != 0 {
			t.Errorf("navigated: %+v", navs)
		}
		if n := len(client.Recorded().LoadCompositeComponent); n != 2 {
			t.Errorf("LoadCompositeComponent is called %d times", n)
		}
	})

	t.Run("a container started from details is reloaded", func(t *testing.T) {
		client := mock.New(t)
		composite(client, container("c1", "d1", ""))
		client.Impl.SubmitRequest = submitted

		testee := store.NewContainersStore(client, &navigator{}, nil)
		defer testee.Close()

		testee.OpenDetails("c1", "", "")
		testee.Wait()
		testee.StartContainerDetails("c1")
		testee.Wait()
		testee.OnOperationCompleted(requests.Start, []string{"c1"})
		testee.Wait()

		if n := len(client.Recorded().LoadContainer); n != 2 {
			t.Errorf("LoadContainer is called %d times", n)
		}
		if got := testee.Snapshot().Selection.Container.OperationInProgress; got != "" {
			t.Errorf("still in progress: %s", got)
		}
	})

	t.Run("creation opens the requests panel", func(t *testing.T) {
		testee := store.NewContainersStore(mock.New(t), &navigator{}, nil)
		defer testee.Close()

		testee.OnOperationCompleted(requests.Create, []string{"c9"})
		if got := testee.Snapshot().ContextView.ActiveItem; got != store.PanelRequests {
			t.Errorf("active panel = %s", got)
		}
	})
}

func TestContainersStore_OnOperationFailed(t *testing.T) {
	t.Run("a failed operation on the container selected is marked", func(t *testing.T) {
		client := mock.New(t)
		composite(client, container("c1", "d1", ""))
		client.Impl.SubmitRequest = submitted

		testee := store.NewContainersStore(client, &navigator{}, nil)
		defer testee.Close()

		testee.OpenDetails("c1", "", "")
		testee.Wait()
		testee.StartContainerDetails("c1")
		testee.Wait()
		testee.OnOperationFailed(requests.Start, []string{"c1"})
		testee.Wait()

		d := testee.Snapshot().Selection.Container
		if d.OperationInProgress != "" {
			t.Errorf("still in progress: %s", d.OperationInProgress)
		}
		if d.OperationFailure != requests.Start {
			t.Errorf("failure: %s", d.OperationFailure)
		}
		if n := len(client.Recorded().LoadContainer); n != 2 {
			t.Errorf("LoadContainer is called %d times", n)
		}
	})

	t.Run("a failure of other containers is ignored", func(t *testing.T) {
		client := mock.New(t)
		composite(client, container("c1", "d1", ""))
		client.Impl.SubmitRequest = submitted

		testee := store.NewContainersStore(client, &navigator{}, nil)
		defer testee.Close()

		testee.OpenDetails("c1", "", "")
		testee.Wait()
		testee.StartContainerDetails("c1")
		testee.Wait()
		testee.OnOperationFailed(requests.Start, []string{"c2"})
		testee.Wait()

		d := testee.Snapshot().Selection.Container
		if d.OperationInProgress != requests.Start || d.OperationFailure != "" {
			t.Errorf("details: %+v", d)
		}
	})
}

func TestContainersStore_OnNotificationsCounts(t *testing.T) {
	testee := store.NewContainersStore(mock.New(t), &navigator{}, nil)
	defer testee.Close()

	testee.OnNotificationsCounts(notifications.Counts{Running: 3, Failed: 1})

	want := map[string]int{store.PanelRequests: 3, store.PanelEventLogs: 1}
	if diff := cmp.Diff(want, testee.Snapshot().ContextView.Notifications); diff != "" {
		t.Errorf("counters (-want +got):\n%s", diff)
	}
}
