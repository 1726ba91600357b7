package http

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jmehdipour/church-sms/internal/model"
	"github.com/jmehdipour/church-sms/internal/service/dispatch"
	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
)

type sendReq struct {
	CampaignName  string   `json:"campaignName"`
	Message       string   `json:"message"`
	Recipients    []string `json:"recipients"`
	RecipientType string   `json:"recipientType"`
	RecipientName string   `json:"recipientName"`
	GroupID       *int64   `json:"groupId"`
}

type sendResp struct {
	Success    bool   `json:"success"`
	CampaignID string `json:"campaignId"`
	TotalSent  int    `json:"totalSent"`
	Delivered  int    `json:"delivered"`
	Failed     int    `json:"failed"`
	Message    string `json:"message"`
}

func sendSMSHandler(svc Submitter) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req sendReq
		if err := c.Bind(&req); err != nil {
			return errorJSON(c, http.StatusBadRequest, "bad request")
		}

		rt, ok := model.ParseRecipientType(req.RecipientType)
		if !ok {
			return errorJSON(c, http.StatusBadRequest, "invalid recipientType")
		}

		res, err := svc.Submit(c.Request().Context(), dispatch.Request{
			CampaignName:  req.CampaignName,
			Message:       req.Message,
			Recipients:    req.Recipients,
			RecipientType: rt,
			RecipientName: req.RecipientName,
			GroupID:       req.GroupID,
		})
		if err != nil {
			if errors.Is(err, dispatch.ErrInvalidRequest) {
				return errorJSON(c, http.StatusBadRequest, err.Error())
			}

			log.Errorf("send campaign failed: %v", err)

			body := map[string]any{"success": false, "error": err.Error()}
			if res.CampaignID != "" {
				body["campaignId"] = res.CampaignID
				body["delivered"] = res.Delivered
				body["failed"] = res.Failed
			}
			return c.JSON(http.StatusInternalServerError, body)
		}

		return c.JSON(http.StatusOK, sendResp{
			Success:    true,
			CampaignID: res.CampaignID,
			TotalSent:  res.Total,
			Delivered:  res.Delivered,
			Failed:     res.Failed,
			Message:    fmt.Sprintf("SMS sent to %d of %d recipients", res.Delivered, res.Total),
		})
	}
}
