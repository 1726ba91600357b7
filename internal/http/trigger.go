package http

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
)

// triggerHandler runs one scheduler pass; cron or an external scheduler calls it.
func triggerHandler(svc Scheduler) echo.HandlerFunc {
	return func(c echo.Context) error {
		res, err := svc.RunDue(c.Request().Context(), time.Now())
		if err != nil {
			log.Errorf("scheduler trigger failed: %v", err)
			return errorJSON(c, http.StatusInternalServerError, err.Error())
		}
		return c.JSON(http.StatusOK, res)
	}
}
