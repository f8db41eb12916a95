package server

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"dfchart/pkg/fault"
)

const (
	noDataBody   = "no data"
	internalBody = "internal server error"
)

// failure maps err to a status and a response body. Client errors echo
// their message; server errors are logged and answered generically.
func (srv *ChartServer) failure(ctx echo.Context, err error) (int, string) {
	requestID := ctx.Response().Header().Get(echo.HeaderXRequestID)
	kind := fault.KindOf(err)

	switch {
	case kind == fault.KindNoData:
		srv.logger.Warn().Err(err).Str("request_id", requestID).Msg("No data for request")
		return http.StatusBadRequest, noDataBody
	case fault.IsClient(err):
		srv.logger.Warn().Err(err).Str("request_id", requestID).Str("kind", string(kind)).Msg("Rejected request")
		return http.StatusBadRequest, err.Error()
	default:
		srv.logger.Error().Err(err).Str("request_id", requestID).Str("kind", string(kind)).Msg("Request failed")
		return http.StatusInternalServerError, internalBody
	}
}
