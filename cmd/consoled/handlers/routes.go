package handlers

import (
	"github.com/labstack/echo/v4"
)

// Register adds routes of the console into e.
func Register(e *echo.Echo, console *Console) {
	api := e.Group("/api")

	{
		g := api.Group("/containers")
		g.GET("/view", GetContainersView(console))
		g.POST("/list", OpenListHandler(console))
		g.POST("/list/next", OpenListNextHandler(console))
		g.DELETE("/list", CloseListHandler(console))

		g.POST("/details", OpenDetailsHandler(console))
		g.POST("/cluster", OpenClusterDetailsHandler(console))
		g.POST("/composite", OpenCompositeDetailsHandler(console))
		g.POST("/details/refresh/:part", RefreshHandler(console, "part"))

		g.POST("/shell/:containerId", OpenShellHandler(console, "containerId"))
		g.DELETE("/shell", CloseShellHandler(console))

		g.PUT("/:containerId/:action", ContainerActionHandler(console, "containerId", "action"))
		g.PUT("/composites/:compositeId/:action", CompositeActionHandler(console, "compositeId", "action"))
		g.PUT("/clusters/:clusterId/size", ClusterSizeHandler(console, "clusterId"))
		g.PUT("/clusters/:clusterId/:action", ClusterActionHandler(console, "clusterId", "action"))
		g.POST("/scale", ScaleContainerHandler(console))

		g.PUT("/toolbar/:panel", ContainersToolbarHandler(console, "panel"))
		g.DELETE("/toolbar", ContainersToolbarHandler(console, "panel"))
	}

	{
		g := api.Group("/templates")
		g.GET("/view", GetTemplatesView(console))
		g.POST("/list", OpenTemplatesHandler(console))
		g.POST("/provision", ProvisionHandler(console))
		g.POST("/:templateId", OpenTemplateDetailsHandler(console, "templateId"))
		g.PUT("/:templateId/name", SaveTemplateNameHandler(console, "templateId"))
		g.DELETE("/:templateId", RemoveTemplateHandler(console, "templateId"))

		g.PUT("/toolbar/:panel", TemplatesToolbarHandler(console, "panel"))
		g.DELETE("/toolbar", TemplatesToolbarHandler(console, "panel"))
	}

	api.GET("/navigation", GetNavigation(console))

	e.GET("/container-image-icons", IconProxy(console))
}
