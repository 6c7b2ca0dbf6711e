package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/decisiond/internal/embeddings"
	"github.com/fyrsmithlabs/decisiond/internal/logging"
	"github.com/fyrsmithlabs/decisiond/internal/service"
	"github.com/fyrsmithlabs/decisiond/internal/store"
)

// fail converts a service error into an HTTP error. what names the missing
// entity for 404 responses.
func fail(c echo.Context, err error, what string) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, what+" not found")
	case errors.Is(err, service.ErrInvalidInput), errors.Is(err, embeddings.ErrEmptyInput):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, embeddings.ErrProviderUnavailable):
		ctx := c.Request().Context()
		logging.FromContext(ctx).Warn(ctx, "embedding provider unavailable", zap.Error(err))
		return echo.NewHTTPError(http.StatusServiceUnavailable, "embedding provider unavailable")
	default:
		ctx := c.Request().Context()
		logging.FromContext(ctx).Error(ctx, "request failed",
			zap.String("route", c.Path()), zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
}

// bind decodes and validates the request into req.
func bind(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	return c.Validate(req)
}
