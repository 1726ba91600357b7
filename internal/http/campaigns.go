package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/jmehdipour/church-sms/internal/model"
	"github.com/jmehdipour/church-sms/internal/repository"
	"github.com/labstack/echo/v4"
)

func pageParams(c echo.Context) (limit, offset int) {
	limit = 50
	if v := c.QueryParam("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 1000 {
			limit = n
		}
	}
	if v := c.QueryParam("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	return limit, offset
}

func listCampaignsHandler(campaigns repository.CampaignsRepository) echo.HandlerFunc {
	return func(c echo.Context) error {
		limit, offset := pageParams(c)

		var st model.CampaignStatus
		if raw := strings.TrimSpace(c.QueryParam("status")); raw != "" {
			st = model.CampaignStatus(raw)
			if !st.Valid() {
				return errorJSON(c, http.StatusBadRequest, "invalid status")
			}
		}

		rows, err := campaigns.List(c.Request().Context(), st, limit, offset)
		if err != nil {
			c.Logger().Errorf("list campaigns failed: %v", err)
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

func getCampaignHandler(campaigns repository.CampaignsRepository, reports repository.DeliveryReportsRepository) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()

		camp, err := campaigns.GetByID(ctx, c.Param("id"))
		if errors.Is(err, repository.ErrNotFound) {
			return errorJSON(c, http.StatusNotFound, "campaign not found")
		}
		if err != nil {
			c.Logger().Errorf("get campaign failed: %v", err)
			return errorJSON(c, http.StatusInternalServerError, "query failed")
		}

		counts, err := reports.CountByCampaign(ctx, camp.ID)
		if err != nil {
			c.Logger().Errorf("count reports failed: %v", err)
			return errorJSON(c, http.StatusInternalServerError, "query failed")
		}

		return c.JSON(http.StatusOK, map[string]any{
			"campaign": camp,
			"stats": map[string]int{
				"delivered": counts[model.ReportDelivered],
				"failed":    counts[model.ReportFailed],
				"reports":   counts[model.ReportDelivered] + counts[model.ReportFailed],
			},
		})
	}
}

func listCampaignReportsHandler(campaigns repository.CampaignsRepository, reports repository.DeliveryReportsRepository) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		id := c.Param("id")
		limit, offset := pageParams(c)

		var st model.ReportStatus
		if raw := strings.TrimSpace(c.QueryParam("status")); raw != "" {
			st = model.ReportStatus(raw)
			if !st.Valid() {
				return errorJSON(c, http.StatusBadRequest, "invalid status")
			}
		}

		if _, err := campaigns.GetByID(ctx, id); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return errorJSON(c, http.StatusNotFound, "campaign not found")
			}
			c.Logger().Errorf("get campaign failed: %v", err)
			return errorJSON(c, http.StatusInternalServerError, "query failed")
		}

		rows, err := reports.ListByCampaign(ctx, id, st, limit, offset)
		if err != nil {
			c.Logger().Errorf("list reports failed: %v", err)
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
