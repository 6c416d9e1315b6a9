package internalhttp

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"

	"github.com/elitestate/estate-server/internal/app"
	"github.com/elitestate/estate-server/internal/auth"
	"github.com/elitestate/estate-server/internal/blob"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	log "github.com/sirupsen/logrus"
)

type Config struct {
	Host string
	Port int
}

type Server struct {
	echo     *echo.Echo
	addr     string
	app      *app.App
	auth     *auth.Service
	tokens   *auth.Manager
	uploader blob.Uploader
	validate *validator.Validate
}

func NewServer(config Config, application *app.App, authService *auth.Service, tokens *auth.Manager, uploader blob.Uploader) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.CORS())
	e.Use(loggingMiddleware)

	s := &Server{
		echo:     e,
		addr:     net.JoinHostPort(config.Host, strconv.Itoa(config.Port)),
		app:      application,
		auth:     authService,
		tokens:   tokens,
		uploader: uploader,
		validate: validator.New(),
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	api := s.echo.Group("/api")

	api.POST("/auth/register", s.register)
	api.POST("/auth/login", s.login)
	api.POST("/auth/verify", s.verifyEmail)
	api.POST("/auth/reset-request", s.requestPasswordReset)
	api.POST("/auth/reset", s.resetPassword)

	authed := api.Group("", s.authMiddleware)
	authed.GET("/auth/me", s.currentUser)

	authed.GET("/zones", s.listZones)
	authed.POST("/zones", s.createZone)
	authed.PUT("/zones/:id", s.renameZone)
	authed.DELETE("/zones/:id", s.deleteZone)

	authed.GET("/zones/:id/properties", s.listProperties)
	authed.POST("/zones/:id/properties", s.createProperty)
	authed.GET("/zones/:id/properties/:pid", s.getProperty)
	authed.PUT("/zones/:id/properties/:pid", s.updateProperty)
	authed.PUT("/zones/:id/properties/:pid/status", s.setPropertyStatus)
	authed.POST("/zones/:id/properties/:pid/archive", s.archiveProperty)
	authed.GET("/properties/search", s.searchProperties)

	authed.GET("/events", s.listEvents)
	authed.POST("/events", s.createEvent)
	authed.PUT("/events/:id", s.updateEvent)
	authed.DELETE("/events/:id", s.deleteEvent)

	authed.GET("/reminders", s.listReminders)
	authed.GET("/notifications", s.listNotifications)
	authed.GET("/stats", s.statistics)
	authed.POST("/images", s.uploadImage)
}

func (s *Server) Start(_ context.Context) error {
	log.Printf("starting http server on %s", s.addr)
	err := s.echo.Start(s.addr)
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// Handler exposes the routing tree for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}
