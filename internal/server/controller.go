package server

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

type Controller interface {
	Health(c echo.Context) error
}

type controller struct{}

func NewHandler() Controller {
	return &controller{}
}

func (h *controller) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "chat-node",
	})
}
