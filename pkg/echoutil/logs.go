package echoutil

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/opst/fleetdeck/pkg/logs"
)

// LogHandlerFunc logs each request and its response.
func LogHandlerFunc(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		meth := c.Request().Method
		path := c.Request().URL
		begin := time.Now()
		c.Logger().Debugf("< request @[%s] %s %s", begin, meth, path)

		err := next(c)

		end := time.Now()
		c.Logger().Infof(
			"> %s %s: status = %d in %v / error = %v",
			meth, path, c.Response().Status, end.Sub(begin), err,
		)
		return err
	}
}

// SetLevel sets log level of the echo server: debug|info|warn|error|off.
func SetLevel(e *echo.Echo, loglevel string) {
	lvl, ok := logs.ParseLevel(loglevel)
	e.Logger.SetLevel(lvl)
	if !ok {
		e.Logger.Warnf("unknown loglevel: %s . fall-backed to warn", loglevel)
	}
}
