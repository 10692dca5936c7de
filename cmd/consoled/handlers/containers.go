package handlers

import (
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/labstack/echo/v4"
	apierr "github.com/opst/fleetdeck/pkg/api/types/errors"
	"github.com/opst/fleetdeck/pkg/query"
	"github.com/opst/fleetdeck/pkg/store"
)

// store actions run in background. With "?wait=true", handlers wait them and respond the view.
const paramWait = "wait"

// respond responds the view-state when the request waits. Otherwise, 202.
func respond[S any](c echo.Context, wait func(), snapshot func() S) error {
	if c.QueryParam(paramWait) != "true" {
		return c.NoContent(http.StatusAccepted)
	}
	wait()
	return c.JSON(http.StatusOK, snapshot())
}

type ListRequest struct {
	Query        query.SearchOptions `json:"query"`
	Force        bool                `json:"force"`
	KeepContext  bool                `json:"keepContext"`
	NextPageLink string              `json:"nextPageLink"`
}

type DetailsRequest struct {
	ContainerId string `json:"containerId"`
	ClusterId   string `json:"clusterId"`
	CompositeId string `json:"compositeId"`
}

type ScaleRequest struct {
	DescriptionLink string `json:"descriptionLink"`
	ContextId       string `json:"contextId"`
}

type SizeRequest struct {
	Size int `json:"size"`
}

// pathParam returns the path parameter unescaped.
func pathParam(c echo.Context, name string) string {
	p := c.Param(name)
	if u, err := url.PathUnescape(p); err == nil {
		return u
	}
	return p
}

func bind[T any](c echo.Context) (T, error) {
	var body T
	if err := c.Bind(&body); err != nil {
		return body, apierr.BadRequest("malformed request", err)
	}
	return body, nil
}

// GetContainersView responds the view-state of the containers view.
func GetContainersView(console *Console) echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, console.Containers().Snapshot())
	}
}

func OpenListHandler(console *Console) echo.HandlerFunc {
	return func(c echo.Context) error {
		body, err := bind[ListRequest](c)
		if err != nil {
			return err
		}
		st := console.Containers()
		st.OpenList(body.Query, body.Force, body.KeepContext)
		return respond(c, st.Wait, st.Snapshot)
	}
}

func OpenListNextHandler(console *Console) echo.HandlerFunc {
	return func(c echo.Context) error {
		body, err := bind[ListRequest](c)
		if err != nil {
			return err
		}
		if body.NextPageLink == "" {
			return apierr.BadRequest("nextPageLink is required", nil)
		}
		st := console.Containers()
		st.OpenListNext(body.Query, body.NextPageLink)
		return respond(c, st.Wait, st.Snapshot)
	}
}

func CloseListHandler(console *Console) echo.HandlerFunc {
	return func(c echo.Context) error {
		st := console.Containers()
		st.CloseList()
		return respond(c, st.Wait, st.Snapshot)
	}
}

func OpenDetailsHandler(console *Console) echo.HandlerFunc {
	return func(c echo.Context) error {
		body, err := bind[DetailsRequest](c)
		if err != nil {
			return err
		}
		if body.ContainerId == "" {
			return apierr.BadRequest("containerId is required", nil)
		}
		st := console.Containers()
		st.OpenDetails(body.ContainerId, body.ClusterId, body.CompositeId)
		return respond(c, st.Wait, st.Snapshot)
	}
}

func OpenClusterDetailsHandler(console *Console) echo.HandlerFunc {
	return func(c echo.Context) error {
		body, err := bind[DetailsRequest](c)
		if err != nil {
			return err
		}
		if body.ClusterId == "" {
			return apierr.BadRequest("clusterId is required", nil)
		}
		st := console.Containers()
		st.OpenClusterDetails(body.ClusterId, body.CompositeId)
		return respond(c, st.Wait, st.Snapshot)
	}
}

func OpenCompositeDetailsHandler(console *Console) echo.HandlerFunc {
	return func(c echo.Context) error {
		body, err := bind[DetailsRequest](c)
		if err != nil {
			return err
		}
		if body.CompositeId == "" {
			return apierr.BadRequest("compositeId is required", nil)
		}
		st := console.Containers()
		st.OpenCompositeDetails(body.CompositeId)
		return respond(c, st.Wait, st.Snapshot)
	}
}

// RefreshHandler reloads a part of the selected container: "instance", "stats" or "logs".
//
// For logs, "since" query parameter (like "1h") changes the duration logs are read since.
func RefreshHandler(console *Console, partParam string) echo.HandlerFunc {
	return func(c echo.Context) error {
		st := console.Containers()
		switch c.Param(partParam) {
		case "instance":
			st.RefreshContainer()
		case "stats":
			st.RefreshContainerStats()
		case "logs":
			if s := c.QueryParam("since"); s != "" {
				since, err := time.ParseDuration(s)
				if err != nil || since <= 0 {
					return apierr.BadRequest("since should be a positive duration", nil)
				}
				st.ChangeLogsSinceDuration(since)
			}
			st.RefreshContainerLogs()
		default:
			return apierr.NotFound()
		}
		return respond(c, st.Wait, st.Snapshot)
	}
}

func OpenShellHandler(console *Console, containerIdParam string) echo.HandlerFunc {
	return func(c echo.Context) error {
		st := console.Containers()
		st.OpenShell(pathParam(c, containerIdParam))
		return respond(c, st.Wait, st.Snapshot)
	}
}

func CloseShellHandler(console *Console) echo.HandlerFunc {
	return func(c echo.Context) error {
		st := console.Containers()
		st.CloseShell()
		return respond(c, st.Wait, st.Snapshot)
	}
}

// day-2 actions
const (
	ActionStart  = "start"
	ActionStop   = "stop"
	ActionRemove = "remove"
)

// ContainerActionHandler operates a container.
//
// With "?from=details", it is the operation on the selected container.
func ContainerActionHandler(console *Console, containerIdParam string, actionParam string) echo.HandlerFunc {
	return func(c echo.Context) error {
		st := console.Containers()
		id := pathParam(c, containerIdParam)
		fromDetails := c.QueryParam("from") == "details"

		switch a := c.Param(actionParam); {
		case a == ActionStart && fromDetails:
			st.StartContainerDetails(id)
		case a == ActionStop && fromDetails:
			st.StopContainerDetails(id)
		case a == ActionRemove && fromDetails:
			st.RemoveContainerDetails(id)
		case a == ActionStart:
			st.StartContainer(id)
		case a == ActionStop:
			st.StopContainer(id)
		case a == ActionRemove:
			st.RemoveContainer(id)
		default:
			return apierr.NotFound()
		}
		return respond(c, st.Wait, st.Snapshot)
	}
}

func CompositeActionHandler(console *Console, compositeIdParam string, actionParam string) echo.HandlerFunc {
	return func(c echo.Context) error {
		st := console.Containers()
		id := pathParam(c, compositeIdParam)
		switch c.Param(actionParam) {
		case ActionStart:
			st.StartComposite(id)
		case ActionStop:
			st.StopComposite(id)
		case ActionRemove:
			st.RemoveComposite(id)
		default:
			return apierr.NotFound()
		}
		return respond(c, st.Wait, st.Snapshot)
	}
}

func ClusterActionHandler(console *Console, clusterIdParam string, actionParam string) echo.HandlerFunc {
	return func(c echo.Context) error {
		st := console.Containers()
		id := pathParam(c, clusterIdParam)

		var err error
		switch c.Param(actionParam) {
		case ActionStart:
			err = st.StartCluster(id)
		case ActionStop:
			err = st.StopCluster(id)
		case ActionRemove:
			err = st.RemoveCluster(id)
		default:
			return apierr.NotFound()
		}
		if errors.Is(err, store.ErrUnknownCluster) {
			return apierr.NotFound(apierr.WithAdvice(err.Error()), apierr.WithError(err))
		} else if err != nil {
			return err
		}
		return respond(c, st.Wait, st.Snapshot)
	}
}

func ClusterSizeHandler(console *Console, clusterIdParam string) echo.HandlerFunc {
	return func(c echo.Context) error {
		body, err := bind[SizeRequest](c)
		if err != nil {
			return err
		}
		if body.Size <= 0 {
			return apierr.BadRequest("size should be positive", nil)
		}
		st := console.Containers()
		st.ModifyClusterSize(pathParam(c, clusterIdParam), body.Size)
		return respond(c, st.Wait, st.Snapshot)
	}
}

func ScaleContainerHandler(console *Console) echo.HandlerFunc {
	return func(c echo.Context) error {
		body, err := bind[ScaleRequest](c)
		if err != nil {
			return err
		}
		if body.DescriptionLink == "" {
			return apierr.BadRequest("descriptionLink is required", nil)
		}
		st := console.Containers()
		st.ScaleContainer(body.DescriptionLink, body.ContextId)
		return respond(c, st.Wait, st.Snapshot)
	}
}

type toolbar interface {
	OpenToolbarRequests()
	OpenToolbarEventLogs()
	CloseToolbar()
}

// applyToolbar opens the panel of the path parameter, or closes the panel for DELETE.
func applyToolbar(c echo.Context, t toolbar, panelParam string) error {
	if c.Request().Method == http.MethodDelete {
		t.CloseToolbar()
		return nil
	}
	switch c.Param(panelParam) {
	case store.PanelRequests:
		t.OpenToolbarRequests()
	case store.PanelEventLogs:
		t.OpenToolbarEventLogs()
	default:
		return apierr.NotFound()
	}
	return nil
}

func ContainersToolbarHandler(console *Console, panelParam string) echo.HandlerFunc {
	return func(c echo.Context) error {
		st := console.Containers()
		if err := applyToolbar(c, st, panelParam); err != nil {
			return err
		}
		return c.JSON(http.StatusOK, st.Snapshot())
	}
}

// GetNavigation responds the last navigation requested by stores. 204 when none.
func GetNavigation(console *Console) echo.HandlerFunc {
	return func(c echo.Context) error {
		nav := console.Router().Last()
		if nav == nil {
			return c.NoContent(http.StatusNoContent)
		}
		return c.JSON(http.StatusOK, nav)
	}
}
