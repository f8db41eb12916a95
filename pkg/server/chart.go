package server

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"dfchart/pkg/monitor"
)

const cacheStatusHeader = "X-Cache"

// request reads the query parameters shared by /chart and /extrema.
func request(ctx echo.Context) monitor.Request {
	return monitor.Request{
		Mount: ctx.QueryParam("mntpt"),
		Pivot: ctx.QueryParam("pivot"),
		Delta: ctx.QueryParam("delta"),
		Agg:   ctx.QueryParam("agg"),
		Limit: ctx.QueryParam("limit"),
	}
}

// getChart handles GET /chart?mntpt=&pivot=&delta=.
func (srv *ChartServer) getChart(ctx echo.Context) error {
	req := request(ctx)
	srv.logger.Info().
		Str("mount", req.Mount).
		Str("pivot", req.Pivot).
		Str("delta", req.Delta).
		Msg("Chart request")

	artifact, err := srv.monitor.Chart(ctx.Request().Context(), req)
	if err != nil {
		status, body := srv.failure(ctx, err)
		return ctx.String(status, body)
	}

	cacheStatus := "MISS"
	if artifact.Hit {
		cacheStatus = "HIT"
	}
	ctx.Response().Header().Set(echo.HeaderContentType, artifact.ContentType)
	ctx.Response().Header().Set(cacheStatusHeader, cacheStatus)
	return ctx.File(artifact.Path)
}

// getExtrema handles GET /extrema?mntpt=&pivot=&delta=&agg=&limit=.
func (srv *ChartServer) getExtrema(ctx echo.Context) error {
	result, err := srv.monitor.Extrema(ctx.Request().Context(), request(ctx))
	if err != nil {
		status, body := srv.failure(ctx, err)
		return ctx.JSON(status, map[string]string{"error": body})
	}
	return ctx.JSON(http.StatusOK, result)
}
