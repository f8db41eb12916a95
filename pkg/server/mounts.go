package server

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// getMounts handles GET /mounts. The list is cached briefly.
func (srv *ChartServer) getMounts(ctx echo.Context) error {
	value, err := srv.mounts.Get(mountsKey)
	if err != nil {
		status, body := srv.failure(ctx, err)
		return ctx.JSON(status, map[string]string{"error": body})
	}

	names, _ := value.([]string)
	if names == nil {
		names = []string{}
	}
	return ctx.JSON(http.StatusOK, map[string][]string{"mounts": names})
}

// getHealth handles GET /health.
func (srv *ChartServer) getHealth(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, HealthResponse{Status: "ok", Version: srv.opts.Version})
}
