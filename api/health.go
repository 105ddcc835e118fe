package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

func (a *API) health(c echo.Context) error {
	if err := a.eng.Dispatcher().Store().Ping(c.Request().Context()); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{
			"status": "unavailable",
			"error":  err.Error(),
		})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
