package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/jmehdipour/church-sms/internal/model"
	"github.com/jmehdipour/church-sms/internal/repository"
	"github.com/jmehdipour/church-sms/internal/service/schedule"
	"github.com/labstack/echo/v4"
)

type scheduleReq struct {
	CampaignName  string   `json:"campaignName"`
	Message       string   `json:"message"`
	Recipients    []string `json:"recipients"`
	RecipientType string   `json:"recipientType"`
	RecipientName string   `json:"recipientName"`
	GroupID       *int64   `json:"groupId"`
	ScheduledDate string   `json:"scheduledDate"`
	ScheduledTime string   `json:"scheduledTime"`
}

func createScheduledHandler(svc Scheduler) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req scheduleReq
		if err := c.Bind(&req); err != nil {
			return errorJSON(c, http.StatusBadRequest, "bad request")
		}

		rt, ok := model.ParseRecipientType(req.RecipientType)
		if !ok {
			return errorJSON(c, http.StatusBadRequest, "invalid recipientType")
		}

		m, err := svc.Create(c.Request().Context(), schedule.CreateRequest{
			CampaignName:  req.CampaignName,
			Message:       req.Message,
			Recipients:    req.Recipients,
			RecipientType: rt,
			RecipientName: req.RecipientName,
			GroupID:       req.GroupID,
			ScheduledDate: req.ScheduledDate,
			ScheduledTime: req.ScheduledTime,
		})
		if err != nil {
			if errors.Is(err, schedule.ErrInvalidSchedule) {
				return errorJSON(c, http.StatusBadRequest, err.Error())
			}
			c.Logger().Errorf("create scheduled message failed: %v", err)
			return errorJSON(c, http.StatusInternalServerError, "db error")
		}

		return c.JSON(http.StatusCreated, m)
	}
}

func listScheduledHandler(svc Scheduler) echo.HandlerFunc {
	return func(c echo.Context) error {
		limit, offset := pageParams(c)

		var st model.ScheduleStatus
		if raw := strings.TrimSpace(c.QueryParam("status")); raw != "" {
			st = model.ScheduleStatus(raw)
			if !st.Valid() {
				return errorJSON(c, http.StatusBadRequest, "invalid status")
			}
		}

		rows, err := svc.List(c.Request().Context(), st, limit, offset)
		if err != nil {
			c.Logger().Errorf("list scheduled messages failed: %v", err)
			return errorJSON(c, http.StatusInternalServerError, "query failed")
		}

		return c.JSON(http.StatusOK, map[string]any{
			"limit":   limit,
			"offset":  offset,
			"count":   len(rows),
			"results": rows,
		})
	}
}

func cancelScheduledHandler(svc Scheduler) echo.HandlerFunc {
	return func(c echo.Context) error {
		err := svc.Cancel(c.Request().Context(), c.Param("id"))
		switch {
		case err == nil:
			return c.JSON(http.StatusOK, map[string]any{"success": true, "id": c.Param("id"), "status": model.ScheduleCancelled})
		case errors.Is(err, repository.ErrNotFound):
			return errorJSON(c, http.StatusNotFound, "scheduled message not found")
		case errors.Is(err, schedule.ErrNotCancellable):
			return errorJSON(c, http.StatusConflict, err.Error())
		default:
			c.Logger().Errorf("cancel scheduled message failed: %v", err)
			return errorJSON(c, http.StatusInternalServerError, "db error")
		}
	}
}
