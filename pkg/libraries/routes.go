package libraries

import (
	"github.com/labstack/echo/v4"
	"github.com/uptrace/bun"
)

func RegisterRoutesWithGroup(g *echo.Group, db *bun.DB) {
	libraryService := NewService(db)

	h := &handler{
		libraryService: libraryService,
	}

	g.POST("/libraries", h.create)
	g.GET("/libraries/:id", h.retrieve)
	g.GET("/libraries", h.list)
	g.POST("/libraries/:id", h.update)

	// Emby-compatible listing used by external scan automation.
	g.GET("/Library/VirtualFolders", h.virtualFolders)
}
