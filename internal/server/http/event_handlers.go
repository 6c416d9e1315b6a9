package internalhttp

import (
	"net/http"
	"time"

	"github.com/elitestate/estate-server/internal/app"
	"github.com/elitestate/estate-server/internal/storage"
	"github.com/labstack/echo/v4"
)

func (s *Server) listEvents(c echo.Context) error {
	ctx := c.Request().Context()
	owner := ownerID(c)

	var events []storage.Event
	var err error
	switch period := c.QueryParam("period"); period {
	case "":
		from, perr := time.Parse(time.RFC3339, c.QueryParam("from"))
		if perr != nil {
			return c.JSON(http.StatusBadRequest, errBody("from is not a valid RFC3339 timestamp"))
		}
		to, perr := time.Parse(time.RFC3339, c.QueryParam("to"))
		if perr != nil {
			return c.JSON(http.StatusBadRequest, errBody("to is not a valid RFC3339 timestamp"))
		}
		events, err = s.app.EventsForRange(ctx, owner, from, to)
	case "day", "week", "month":
		date, perr := time.Parse(time.RFC3339, c.QueryParam("date"))
		if perr != nil {
			return c.JSON(http.StatusBadRequest, errBody("date is not a valid RFC3339 timestamp"))
		}
		switch period {
		case "day":
			events, err = s.app.EventsForDay(ctx, owner, date)
		case "week":
			events, err = s.app.EventsForWeek(ctx, owner, date)
		case "month":
			events, err = s.app.EventsForMonth(ctx, owner, date)
		}
	default:
		return c.JSON(http.StatusBadRequest, errBody("period must be day, week or month"))
	}
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"events": events})
}

func (s *Server) createEvent(c echo.Context) error {
	var req app.EventRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errBody("malformed body"))
	}
	e, err := s.app.CreateEvent(c.Request().Context(), ownerID(c), req)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, e)
}

func (s *Server) updateEvent(c echo.Context) error {
	var req app.EventRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errBody("malformed body"))
	}
	e, err := s.app.UpdateEvent(c.Request().Context(), ownerID(c), c.Param("id"), req)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, e)
}

func (s *Server) deleteEvent(c echo.Context) error {
	if err := s.app.DeleteEvent(c.Request().Context(), ownerID(c), c.Param("id")); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) listReminders(c echo.Context) error {
	reminders, err := s.app.PendingReminders(c.Request().Context(), ownerID(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"reminders": reminders})
}

func (s *Server) listNotifications(c echo.Context) error {
	notifications, err := s.app.Notifications(c.Request().Context(), ownerID(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"notifications": notifications})
}

func (s *Server) statistics(c echo.Context) error {
	stats, err := s.app.Statistics(c.Request().Context(), ownerID(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, stats)
}

func (s *Server) uploadImage(c echo.Context) error {
	if s.uploader == nil {
		return c.JSON(http.StatusServiceUnavailable, errBody("image storage is not configured"))
	}
	file, err := c.FormFile("image")
	if err != nil {
		return c.JSON(http.StatusBadRequest, errBody("image file is required"))
	}
	src, err := file.Open()
	if err != nil {
		return writeError(c, err)
	}
	defer src.Close()

	url, err := s.uploader.Upload(
		c.Request().Context(),
		"properties", file.Filename,
		file.Header.Get("Content-Type"), src)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"url": url})
}
