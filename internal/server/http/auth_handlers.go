package internalhttp

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

type credentialsRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=128"`
}

type tokenRequest struct {
	Token string `json:"token" validate:"required"`
}

type resetRequest struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required,min=8,max=128"`
}

func (s *Server) register(c echo.Context) error {
	var req credentialsRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errBody("malformed body"))
	}
	if err := s.validate.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, errBody(err.Error()))
	}
	u, err := s.auth.Register(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, u)
}

func (s *Server) login(c echo.Context) error {
	var req credentialsRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errBody("malformed body"))
	}
	if err := s.validate.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, errBody(err.Error()))
	}
	token, u, err := s.auth.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"token": token, "user": u})
}

func (s *Server) verifyEmail(c echo.Context) error {
	var req tokenRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errBody("malformed body"))
	}
	if err := s.validate.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, errBody(err.Error()))
	}
	if err := s.auth.VerifyEmail(c.Request().Context(), req.Token); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) requestPasswordReset(c echo.Context) error {
	var req struct {
		Email string `json:"email" validate:"required,email"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errBody("malformed body"))
	}
	if err := s.validate.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, errBody(err.Error()))
	}
	if err := s.auth.RequestPasswordReset(c.Request().Context(), req.Email); err != nil {
		return writeError(c, err)
	}
	// Always accepted: the response must not reveal whether the email exists.
	return c.NoContent(http.StatusAccepted)
}

func (s *Server) resetPassword(c echo.Context) error {
	var req resetRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errBody("malformed body"))
	}
	if err := s.validate.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, errBody(err.Error()))
	}
	if err := s.auth.ResetPassword(c.Request().Context(), req.Token, req.Password); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) currentUser(c echo.Context) error {
	u, err := s.auth.CurrentUser(c.Request().Context(), ownerID(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, u)
}
