package internalhttp

import (
	"net/http"
	"strings"
	"time"

	"github.com/elitestate/estate-server/internal/auth"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"
)

const userIDKey = "userID"

func loggingMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		r := c.Request()
		log.WithField("ip", c.RealIP()).WithField("method", r.Method).WithField("path", r.URL.Path).
			WithField("status", c.Response().Status).WithField("user-agent", r.Header.Get("user-agent")).
			WithField("latency", time.Since(start)).
			Info("http request processed")
		return err
	}
}

// authMiddleware binds the session's user ID into the request context.
// Handlers pass it to the app layer explicitly; there is no ambient
// current-user state anywhere below this point.
func (s *Server) authMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		header := c.Request().Header.Get(echo.HeaderAuthorization)
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			return c.JSON(http.StatusUnauthorized, errBody("missing bearer token"))
		}
		userID, err := s.tokens.Parse(token, auth.PurposeSession)
		if err != nil {
			return c.JSON(http.StatusUnauthorized, errBody("invalid session token"))
		}
		c.Set(userIDKey, userID)
		return next(c)
	}
}

func ownerID(c echo.Context) string {
	id, _ := c.Get(userIDKey).(string)
	return id
}
