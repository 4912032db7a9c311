package scan

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

type handler struct {
	scanService *Service
}

func (h *handler) scanPath(c echo.Context) error {
	ctx := c.Request().Context()

	// Bind params.
	params := ScanPathPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	result := h.scanService.ScanPath(ctx, params.Path)

	return errors.WithStack(c.JSON(statusCode(result), result))
}

func (h *handler) scanPaths(c echo.Context) error {
	ctx := c.Request().Context()

	// Bind params.
	params := ScanPathsPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	results := h.scanService.ScanPaths(ctx, params.Paths)

	resp := struct {
		Results []Result `json:"Results"`
	}{results}

	return errors.WithStack(c.JSON(http.StatusOK, resp))
}

// statusCode maps a scan outcome onto the response code; the body always
// carries the full result so callers can rely on the Status field alone.
func statusCode(result Result) int {
	switch result.Status {
	case StatusPathNotFound, StatusParentNotFound:
		return http.StatusNotFound
	case StatusFailed:
		return http.StatusInternalServerError
	}
	return http.StatusOK
}
