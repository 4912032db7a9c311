package filesystem

import (
	"github.com/labstack/echo/v4"
)

func RegisterRoutesWithGroup(g *echo.Group) {
	filesystemService := NewService()

	h := &handler{
		filesystemService: filesystemService,
	}

	g.GET("/Browse", h.browse)
}
