package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/opst/fleetdeck/pkg/api/types/containers"
	"github.com/opst/fleetdeck/pkg/api/types/requests"
	"github.com/opst/fleetdeck/pkg/cluster"
)

// ErrUnknownCluster is returned when a cluster to be operated is not shown.
var ErrUnknownCluster = errors.New("cluster is not found in the view")

// submit posts a day-2 request.
//
// After submitted, onSubmitted is applied and the request is sent to the sink.
// On failure, onError is applied.
func (s *ContainersStore) submit(req requests.Request, onSubmitted func(*ViewState, requests.Request), onError func(*ViewState, error)) {
	s.spawn(func(ctx context.Context) {
		created, err := s.client.SubmitRequest(ctx, req)
		if err != nil {
			s.logger.Warnf("request (%s) is rejected: %s", requests.TypeOf(req), err)
			s.update(nil, func(st *ViewState) bool {
				onError(st, err)
				return true
			})
			return
		}
		s.update(nil, func(st *ViewState) bool {
			onSubmitted(st, created)
			return true
		})
		s.sink.RequestCreated(created)
	})
}

// submitFromList submits a request made on the list. The requests panel is opened after submitted.
func (s *ContainersStore) submitFromList(req requests.Request) {
	s.submit(
		req,
		func(st *ViewState, _ requests.Request) { st.ContextView.open(PanelRequests) },
		func(st *ViewState, err error) { st.ListView.Error = errorViewOf(err) },
	)
}

// submitFromDetails submits a request on the selected container.
// The container is marked as in progress after submitted.
func (s *ContainersStore) submitFromDetails(containerId string, op string) {
	req := requests.ForContainer(containerId, op)
	s.update(nil, func(st *ViewState) bool {
		d := st.Selection.container()
		if d == nil {
			return false
		}
		d.OperationFailure = ""
		return true
	})
	s.submit(
		req,
		func(st *ViewState, _ requests.Request) {
			if d := st.Selection.containerOf(containerId); d != nil {
				d.OperationInProgress = requests.TypeOf(req)
			}
		},
		func(st *ViewState, err error) {
			if st.Selection != nil {
				st.Selection.Error = errorViewOf(err)
			}
		},
	)
}

func (s *ContainersStore) StartContainer(containerId string) {
	s.submitFromList(requests.ForContainer(containerId, requests.OpStart))
}

func (s *ContainersStore) StopContainer(containerId string) {
	s.submitFromList(requests.ForContainer(containerId, requests.OpStop))
}

func (s *ContainersStore) RemoveContainer(containerId string) {
	s.submitFromList(requests.ForContainer(containerId, requests.OpDelete))
}

func (s *ContainersStore) StartComposite(compositeId string) {
	s.submitFromList(requests.ForComposite(compositeId, requests.OpStart))
}

func (s *ContainersStore) StopComposite(compositeId string) {
	s.submitFromList(requests.ForComposite(compositeId, requests.OpStop))
}

func (s *ContainersStore) RemoveComposite(compositeId string) {
	s.submitFromList(requests.ForComposite(compositeId, requests.OpDelete))
}

// clusterMembers finds containers of a cluster shown in the list or the selection.
func (s *ContainersStore) clusterMembers(clusterId string) ([]containers.Container, error) {
	var found *ClusterItem
	match := func(c *ClusterItem) bool {
		return c != nil && (c.Id == clusterId || c.DocumentId == clusterId)
	}
	s.peek(func(st *ViewState) {
		lists := [][]ListItem{st.ListView.Items}
		if sel := st.Selection; sel != nil {
			if sel.Cluster != nil && match(sel.Cluster.Item) {
				found = sel.Cluster.Item
				return
			}
			if sel.Composite != nil {
				lists = append(lists, sel.Composite.ListView.Items)
			}
		}
		for _, items := range lists {
			for _, i := range items {
				if match(i.Cluster) {
					found = i.Cluster
					return
				}
			}
		}
	})
	if found == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCluster, clusterId)
	}
	ret := make([]containers.Container, 0, found.Size())
	for _, c := range found.Containers {
		ret = append(ret, c.Container)
	}
	return ret, nil
}

func (s *ContainersStore) operateCluster(clusterId string, op string) error {
	members, err := s.clusterMembers(clusterId)
	if err != nil {
		return err
	}
	s.submitFromList(requests.ForCluster(members, op))
	return nil
}

// StartCluster starts all containers of a cluster shown.
func (s *ContainersStore) StartCluster(clusterId string) error {
	return s.operateCluster(clusterId, requests.OpStart)
}

func (s *ContainersStore) StopCluster(clusterId string) error {
	return s.operateCluster(clusterId, requests.OpStop)
}

func (s *ContainersStore) RemoveCluster(clusterId string) error {
	return s.operateCluster(clusterId, requests.OpDelete)
}

func (s *ContainersStore) StartContainerDetails(containerId string) {
	s.submitFromDetails(containerId, requests.OpStart)
}

func (s *ContainersStore) StopContainerDetails(containerId string) {
	s.submitFromDetails(containerId, requests.OpStop)
}

func (s *ContainersStore) RemoveContainerDetails(containerId string) {
	s.submitFromDetails(containerId, requests.OpDelete)
}

// ModifyClusterSize requests the cluster to have totalSize containers.
func (s *ContainersStore) ModifyClusterSize(clusterId string, totalSize int) {
	descriptionLink, contextId := cluster.Split(clusterId)
	s.submitFromList(requests.Scale(descriptionLink, contextId, totalSize))
}

// ScaleContainer adds a container to the cluster of the description and the context.
// A container not in any cluster becomes a cluster of two.
func (s *ContainersStore) ScaleContainer(descriptionLink string, contextId string) {
	s.spawn(func(ctx context.Context) {
		members, err := s.client.LoadClusterContainers(ctx, descriptionLink, contextId)
		if err != nil {
			s.listError(nil, err)
			return
		}
		s.ModifyClusterSize(cluster.Key(descriptionLink, contextId), len(members)+1)
	})
}

// OnOperationCompleted reconciles the view with a settled day-2 request.
//
// When the selected container is the target of the request, it is reloaded; if removed,
// the view goes up. Otherwise, the view shown is reloaded. When everything shown in
// details is removed, it navigates to the nearest view surviving.
func (s *ContainersStore) OnOperationCompleted(opType requests.OperationType, resourceIds []string) {
	var then func()
	s.update(nil, func(st *ViewState) bool {
		switch opType {
		case requests.Create:
			st.ContextView.open(PanelRequests)
		case requests.Start, requests.Stop, requests.Remove, requests.Clustering, requests.Default:
			then = s.backFromOperation(st, opType, resourceIds)
		default:
			return false
		}
		return true
	})
	if then != nil {
		then()
	}
}

// OnOperationFailed marks failure on the selected container, when it is the target of the request.
func (s *ContainersStore) OnOperationFailed(opType requests.OperationType, resourceIds []string) {
	failed := false
	s.update(nil, func(st *ViewState) bool {
		d := st.Selection.container()
		if d == nil || len(resourceIds) == 0 || d.DocumentId != resourceIds[0] || d.OperationInProgress == "" {
			return false
		}
		d.OperationInProgress = ""
		d.OperationFailure = opType
		failed = true
		return true
	})
	if failed {
		s.RefreshContainer()
	}
}

// backFromOperation decides what to do after an operation. The returned func does it,
// and it should be called out of the critical section.
func (s *ContainersStore) backFromOperation(st *ViewState, opType requests.OperationType, ids []string) func() {
	sel := st.Selection
	if d := sel.container(); d != nil && len(ids) == 1 && d.DocumentId == ids[0] && d.OperationInProgress != "" {
		d.OperationInProgress = ""
		if opType != requests.Remove {
			return s.RefreshContainer
		}
		return s.refreshView(st, sel.Parent(LevelContainer), true, opType, ids)
	}
	return s.refreshView(st, sel.Deepest(), false, opType, ids)
}

// refreshView reloads the view at the level. When navigate is true, it goes there by Navigator.
func (s *ContainersStore) refreshView(st *ViewState, level Level, navigate bool, opType requests.OperationType, ids []string) func() {
	if level == LevelNone {
		return s.toList(st, navigate)
	}
	sel := st.Selection

	if !everythingRemoved(sel, level, opType, ids) {
		return s.showLast(st, level, navigate)
	}

	switch level {
	case LevelCluster:
		if sel.Parent(LevelCluster) == LevelComposite && len(sel.Composite.ListView.Items) != 1 {
			compositeId := sel.Composite.DocumentId
			return func() { s.nav.OpenCompositeDetails(compositeId) }
		}
	}
	return s.toList(st, true)
}

// everythingRemoved tells whether the request removed everything shown at the level.
//
// For an application, it is when the application itself is removed. Otherwise,
// it is when the removed ids are exactly the items shown. Ids not shown make it false.
func everythingRemoved(sel *Selection, level Level, opType requests.OperationType, ids []string) bool {
	if level == LevelNone || opType != requests.Remove {
		return false
	}
	if level == LevelComposite && len(ids) == 1 && sel.Composite.DocumentId == ids[0] {
		return true
	}

	items := sel.itemsOf(level)
	if items == nil || len(items) != len(ids) {
		return false
	}
	removed := map[string]struct{}{}
	for _, id := range ids {
		removed[id] = struct{}{}
	}
	for _, i := range items {
		if _, ok := removed[i.DocumentId()]; !ok {
			return false
		}
	}
	return true
}

// showLast reloads the view at the level.
func (s *ContainersStore) showLast(st *ViewState, level Level, navigate bool) func() {
	sel := st.Selection
	switch level {
	case LevelCluster:
		clusterId := sel.Cluster.DocumentId
		compositeId := ""
		if sel.Parent(LevelCluster) == LevelComposite {
			compositeId = sel.Composite.DocumentId
		}
		if navigate {
			return func() { s.nav.OpenClusterDetails(clusterId, compositeId) }
		}
		return func() { s.OpenClusterDetails(clusterId, compositeId) }
	case LevelComposite:
		compositeId := sel.Composite.DocumentId
		if navigate {
			return func() { s.nav.OpenCompositeDetails(compositeId) }
		}
		return func() { s.OpenCompositeDetails(compositeId) }
	}
	return s.toList(st, navigate)
}

func (s *ContainersStore) toList(st *ViewState, navigate bool) func() {
	q := withCategory(st.ListView.QueryOptions)
	if navigate {
		return func() { s.nav.OpenList(q) }
	}
	return func() { s.OpenList(q, true, true) }
}
