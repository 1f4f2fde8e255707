package httpapi

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/tesso57/trendfeed/internal/domain/trend"
)

// mapError converts an application error into an echo.HTTPError.
func mapError(err error) *echo.HTTPError {
	var httpErr *echo.HTTPError
	switch {
	case errors.As(err, &httpErr):
		return httpErr
	case errors.Is(err, trend.ErrInvalidRequest):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, trend.ErrClientUnavailable):
		return echo.NewHTTPError(http.StatusServiceUnavailable, "HTTP client not initialized")
	case errors.Is(err, trend.ErrHistoryDisabled):
		return echo.NewHTTPError(http.StatusServiceUnavailable, "history is disabled")
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error").SetInternal(err)
	}
}
