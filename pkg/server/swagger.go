package server

import (
	"embed"
	"fmt"
	"html/template"
	"net/http"

	"github.com/labstack/echo/v4"
)

//go:embed web/swagger.yml web/swagger-ui.html
var web embed.FS

var swaggerUI = template.Must(template.ParseFS(web, "web/swagger-ui.html"))

func (srv *ChartServer) serveSwaggerUI(ctx echo.Context) error {
	data := struct {
		Title       string
		SwaggerPath string
	}{
		Title:       "Disk Usage Chart API Documentation",
		SwaggerPath: "/swagger.yml",
	}

	ctx.Response().Header().Set(echo.HeaderContentType, echo.MIMETextHTMLCharsetUTF8)
	ctx.Response().WriteHeader(http.StatusOK)
	if err := swaggerUI.Execute(ctx.Response().Writer, data); err != nil {
		srv.logger.Error().Err(err).Msg("Failed to render API documentation")
		return fmt.Errorf("failed to render API documentation: %w", err)
	}
	return nil
}

func (srv *ChartServer) serveSwaggerSpec(ctx echo.Context) error {
	spec, err := web.ReadFile("web/swagger.yml")
	if err != nil {
		srv.logger.Error().Err(err).Msg("Failed to read swagger spec")
		return ctx.String(http.StatusInternalServerError, internalBody)
	}
	return ctx.Blob(http.StatusOK, "application/yaml", spec)
}
