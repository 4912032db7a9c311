package scan

import (
	"github.com/labstack/echo/v4"
)

func RegisterRoutesWithGroup(g *echo.Group, scanService *Service) {
	h := &handler{
		scanService: scanService,
	}

	g.POST("/Library/ScanPath", h.scanPath)
	g.POST("/Library/ScanPaths", h.scanPaths)
}
