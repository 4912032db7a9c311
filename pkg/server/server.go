package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/kinotekahq/kinoteka/pkg/auth"
	"github.com/kinotekahq/kinoteka/pkg/binder"
	"github.com/kinotekahq/kinoteka/pkg/config"
	"github.com/kinotekahq/kinoteka/pkg/errcodes"
	"github.com/kinotekahq/kinoteka/pkg/filesystem"
	"github.com/kinotekahq/kinoteka/pkg/items"
	"github.com/kinotekahq/kinoteka/pkg/libraries"
	"github.com/kinotekahq/kinoteka/pkg/refresh"
	"github.com/kinotekahq/kinoteka/pkg/scan"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/echo/v4/health"
	"github.com/robinjoseph08/golib/echo/v4/middleware/logger"
	"github.com/robinjoseph08/golib/echo/v4/middleware/recovery"
	"github.com/uptrace/bun"
)

func New(cfg *config.Config, db *bun.DB) (*http.Server, error) {
	e := echo.New()

	b, err := binder.New()
	if err != nil {
		return nil, errors.WithStack(err)
	}
	e.Binder = b

	e.Use(logger.Middleware())
	e.Use(recovery.Middleware())
	e.Use(middleware.CORS())

	health.RegisterRoutes(e)

	authMiddleware := auth.NewMiddleware(cfg)

	fsService := filesystem.NewService()
	scanService := scan.NewService(items.NewService(db), fsService, refresh.NewService(db), scan.Options{
		StoreTimeout: cfg.ScanStoreTimeout,
		Reconcile:    cfg.ScanReconcile,
	})

	// All API routes require a valid token.
	api := e.Group("")
	api.Use(authMiddleware.RequireToken)
	scan.RegisterRoutesWithGroup(api, scanService)
	libraries.RegisterRoutesWithGroup(api, db)

	fsGroup := e.Group("/filesystem")
	fsGroup.Use(authMiddleware.RequireToken)
	filesystem.RegisterRoutesWithGroup(fsGroup)

	echo.NotFoundHandler = notFoundHandler
	e.HTTPErrorHandler = errcodes.NewHandler().Handle

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.ServerHost, cfg.ServerPort),
		Handler:           e,
		ReadHeaderTimeout: 3 * time.Second,
	}

	return srv, nil
}

func notFoundHandler(c echo.Context) error {
	c.SetPath("/:path")
	return errcodes.NotFound("Page")
}
