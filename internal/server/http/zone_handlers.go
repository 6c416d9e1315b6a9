package internalhttp

import (
	"net/http"

	"github.com/elitestate/estate-server/internal/app"
	"github.com/labstack/echo/v4"
)

func (s *Server) listZones(c echo.Context) error {
	zones, err := s.app.Zones(c.Request().Context(), ownerID(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"zones": zones})
}

func (s *Server) createZone(c echo.Context) error {
	var req app.ZoneRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errBody("malformed body"))
	}
	z, err := s.app.CreateZone(c.Request().Context(), ownerID(c), req)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, z)
}

func (s *Server) renameZone(c echo.Context) error {
	var req app.ZoneRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errBody("malformed body"))
	}
	if err := s.app.RenameZone(c.Request().Context(), ownerID(c), c.Param("id"), req); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) deleteZone(c echo.Context) error {
	if err := s.app.DeleteZone(c.Request().Context(), ownerID(c), c.Param("id")); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) listProperties(c echo.Context) error {
	props, err := s.app.Properties(c.Request().Context(), ownerID(c), c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"properties": props})
}

func (s *Server) createProperty(c echo.Context) error {
	var req app.PropertyRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errBody("malformed body"))
	}
	p, err := s.app.CreateProperty(c.Request().Context(), ownerID(c), c.Param("id"), req)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, p)
}

func (s *Server) getProperty(c echo.Context) error {
	p, err := s.app.Property(c.Request().Context(), ownerID(c), c.Param("id"), c.Param("pid"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, p)
}

func (s *Server) updateProperty(c echo.Context) error {
	var req app.PropertyRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errBody("malformed body"))
	}
	if err := s.app.UpdateProperty(c.Request().Context(), ownerID(c), c.Param("id"), c.Param("pid"), req); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) setPropertyStatus(c echo.Context) error {
	var req struct {
		Status string `json:"status"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errBody("malformed body"))
	}
	if err := s.app.SetPropertyStatus(c.Request().Context(), ownerID(c), c.Param("id"), c.Param("pid"), req.Status); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) archiveProperty(c echo.Context) error {
	if err := s.app.ArchiveProperty(c.Request().Context(), ownerID(c), c.Param("id"), c.Param("pid")); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) searchProperties(c echo.Context) error {
	props, err := s.app.SearchProperties(
		c.Request().Context(), ownerID(c),
		c.QueryParam("location"), c.QueryParam("owner"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"properties": props})
}
