package handlers

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	apierr "github.com/opst/fleetdeck/pkg/api/types/errors"
	"github.com/opst/fleetdeck/pkg/echoutil"
	"github.com/opst/fleetdeck/pkg/query"
	"github.com/opst/fleetdeck/pkg/rest"
	"github.com/opst/fleetdeck/pkg/store"
)

type TemplatesListRequest struct {
	Query query.SearchOptions `json:"query"`
	Force bool                `json:"force"`
}

type TemplateNameRequest struct {
	Name string `json:"name"`
}

type ProvisionRequest struct {
	Type  store.ItemType `json:"type"`
	Id    string         `json:"id"`
	Group string         `json:"group"`
}

func GetTemplatesView(console *Console) echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, console.Templates().Snapshot())
	}
}

func OpenTemplatesHandler(console *Console) echo.HandlerFunc {
	return func(c echo.Context) error {
		body, err := bind[TemplatesListRequest](c)
		if err != nil {
			return err
		}
		st := console.Templates()
		st.OpenTemplates(body.Query, body.Force)
		return respond(c, st.Wait, st.Snapshot)
	}
}

func OpenTemplateDetailsHandler(console *Console, templateIdParam string) echo.HandlerFunc {
	return func(c echo.Context) error {
		st := console.Templates()
		st.OpenTemplateDetails(pathParam(c, templateIdParam))
		return respond(c, st.Wait, st.Snapshot)
	}
}

func SaveTemplateNameHandler(console *Console, templateIdParam string) echo.HandlerFunc {
	return func(c echo.Context) error {
		body, err := bind[TemplateNameRequest](c)
		if err != nil {
			return err
		}
		name := strings.TrimSpace(body.Name)
		if name == "" {
			return apierr.BadRequest("name is required", nil)
		}
		st := console.Templates()
		st.SaveTemplateName(pathParam(c, templateIdParam), name)
		return respond(c, st.Wait, st.Snapshot)
	}
}

func RemoveTemplateHandler(console *Console, templateIdParam string) echo.HandlerFunc {
	return func(c echo.Context) error {
		st := console.Templates()
		st.RemoveTemplate(pathParam(c, templateIdParam))
		return respond(c, st.Wait, st.Snapshot)
	}
}

func ProvisionHandler(console *Console) echo.HandlerFunc {
	return func(c echo.Context) error {
		body, err := bind[ProvisionRequest](c)
		if err != nil {
			return err
		}
		if body.Type != store.TypeImage && body.Type != store.TypeTemplate {
			return apierr.BadRequest(`type should be "IMAGE" or "TEMPLATE"`, nil)
		}
		if body.Id == "" {
			return apierr.BadRequest("id is required", nil)
		}
		st := console.Templates()
		st.CreateContainerFromTemplate(body.Type, body.Id, body.Group)
		return respond(c, st.Wait, st.Snapshot)
	}
}

func TemplatesToolbarHandler(console *Console, panelParam string) echo.HandlerFunc {
	return func(c echo.Context) error {
		st := console.Templates()
		if err := applyToolbar(c, st, panelParam); err != nil {
			return err
		}
		return c.JSON(http.StatusOK, st.Snapshot())
	}
}

// IconProxy forwards requests of image icons to the backend.
func IconProxy(console *Console) echo.HandlerFunc {
	return func(c echo.Context) error {
		fw, ok := console.Client().(rest.Forwarder)
		if !ok {
			return apierr.BadGateway("backend cannot be reached", nil)
		}
		hc, url, header := fw.Forward(c.Request().URL.RequestURI())
		return echoutil.Proxy(c, hc, url, header)
	}
}
