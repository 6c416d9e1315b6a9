package internalhttp

import (
	"errors"
	"net/http"

	"github.com/elitestate/estate-server/internal/app"
	"github.com/elitestate/estate-server/internal/auth"
	"github.com/elitestate/estate-server/internal/storage"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"
)

func errBody(message string) echo.Map {
	return echo.Map{"error": message}
}

// writeError maps app and storage errors onto the API's status codes.
// Anything unclassified is logged and reported as a plain 500; no error is
// fatal to the server.
func writeError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, app.ErrValidation),
		errors.Is(err, storage.ErrIncorrectEventTime),
		errors.Is(err, storage.ErrIncorrectStartDate):
		return c.JSON(http.StatusBadRequest, errBody(err.Error()))
	case errors.Is(err, auth.ErrInvalidCredentials), errors.Is(err, auth.ErrInvalidToken):
		return c.JSON(http.StatusUnauthorized, errBody(err.Error()))
	case errors.Is(err, storage.ErrPermissionDenied):
		return c.JSON(http.StatusForbidden, errBody(err.Error()))
	case errors.Is(err, storage.ErrNotFound):
		return c.JSON(http.StatusNotFound, errBody(err.Error()))
	case errors.Is(err, storage.ErrZoneNotEmpty),
		errors.Is(err, storage.ErrDuplicateEmail),
		errors.Is(err, storage.ErrDuplicateID):
		return c.JSON(http.StatusConflict, errBody(err.Error()))
	default:
		log.Errorf("request failed: %v", err)
		return c.JSON(http.StatusInternalServerError, errBody("internal server error"))
	}
}
