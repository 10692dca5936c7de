package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/opst/fleetdeck/cmd/consoled/handlers"
	"github.com/opst/fleetdeck/pkg/configs/console"
	"github.com/opst/fleetdeck/pkg/echoutil"
	"github.com/opst/fleetdeck/pkg/notifications"
	"github.com/opst/fleetdeck/pkg/rest"
	"github.com/opst/fleetdeck/pkg/store"
	"github.com/opst/fleetdeck/pkg/utils"
	"github.com/opst/fleetdeck/pkg/utils/filewatch"
)

func main() {
	configPath := flag.String("config-path", "", "console config path")
	pcert := flag.String("cert", "", "certification file for TLS")
	pkey := flag.String("certkey", "", "key of certification file for TLS")
	flag.Parse()

	for {
		restart, err := serve(*configPath, *pcert, *pkey)
		if err != nil {
			log.Fatal(err)
		}
		if !restart {
			return
		}
		log.Println("config file is updated. restart server.")
	}
}

// serve runs the console until the server stops.
//
// It returns true when the server has been stopped because the config file is modified.
func serve(configPath string, cert string, key string) (bool, error) {
	conf, err := console.Load(configPath)
	if err != nil {
		return false, fmt.Errorf("can not read configration: %w", err)
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	echoutil.SetLevel(e, conf.Server.LogLevel)
	e.HTTPErrorHandler = func(err error, ctx echo.Context) {
		e.DefaultHTTPErrorHandler(err, ctx)
		e.Logger.Error(err)
	}
	e.Use(echoutil.LogHandlerFunc)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := notifications.NewHub()

	var session *handlers.Console
	client, err := rest.NewClient(
		&conf.Backend,
		rest.WithPageSize(pageSizeOf(conf.List)),
		rest.WithLogger(e.Logger),
		rest.WithOnForbidden(func() {
			e.Logger.Warn("backend rejected the session. view-states are reset.")
			session.Reset()
		}),
	)
	if err != nil {
		return false, err
	}
	session = handlers.NewConsole(
		client, hub,
		store.WithLogger(e.Logger),
		store.WithContext(ctx),
		store.WithRecommendedImages(utils.Map(
			conf.Templates.RecommendedImages,
			func(i console.RecommendedImage) store.RecommendedImage {
				return store.RecommendedImage{Name: i.Name, Description: i.Description}
			},
		)...),
	)
	defer session.Close()

	watcher := notifications.NewRequestWatcher(hub, client, conf.PollInterval(), e.Logger)
	go func() {
		if err := watcher.Run(ctx); err != nil {
			e.Logger.Errorf("request watcher stopped: %s", err)
		}
	}()

	handlers.Register(e, session)
	log.Println("registred routes:")
	for _, r := range e.Routes() {
		log.Println(r.Method, r.Path)
	}

	modified, stop, err := filewatch.UntilModified(ctx, configPath)
	if err != nil {
		return false, err
	}
	defer stop()

	restart := new(atomic.Bool)
	context.AfterFunc(modified, func() {
		if !errors.Is(context.Cause(modified), filewatch.ErrModified) {
			return
		}
		restart.Store(true)
		graceful, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := e.Shutdown(graceful); err != nil {
			log.Printf("error on shutdown by config update: %s", err)
		}
	})

	if cert != "" && key != "" {
		err = e.StartTLS(":"+conf.Port(), cert, key)
	} else {
		err = e.Start(":" + conf.Port())
	}
	if errors.Is(err, http.ErrServerClosed) {
		return restart.Load(), nil
	}
	return false, err
}

func pageSizeOf(conf console.ListConfig) rest.PageSize {
	switch {
	case conf.PageSize > 0:
		return rest.Fixed(conf.PageSize)
	case conf.Viewport != nil:
		return rest.Viewport{Width: conf.Viewport.Width, Height: conf.Viewport.Height}
	default:
		return rest.Unlimited()
	}
}
