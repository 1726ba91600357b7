package http

import (
	"net/http"
	"strings"

	"github.com/jmehdipour/church-sms/internal/model"
	"github.com/jmehdipour/church-sms/internal/repository"
	"github.com/jmehdipour/church-sms/internal/util"
	echo "github.com/labstack/echo/v4"
)

// listDeliveriesHandler serves the ClickHouse delivery analytics view.
func listDeliveriesHandler(chRepo repository.CHReportsRepository, phone util.PhoneNormalizer) echo.HandlerFunc {
	return func(c echo.Context) error {
		limit, offset := pageParams(c)

		f := repository.CHReportFilter{
			CampaignID: strings.TrimSpace(c.QueryParam("campaign_id")),
			Limit:      limit,
			Offset:     offset,
		}

		if raw := strings.TrimSpace(c.QueryParam("status")); raw != "" {
			f.Status = model.ReportStatus(raw)
			if !f.Status.Valid() {
				return errorJSON(c, http.StatusBadRequest, "invalid status")
			}
		}
		if raw := strings.TrimSpace(c.QueryParam("phone")); raw != "" {
			f.Phone = phone.Normalize(raw)
		}

		rows, err := chRepo.List(c.Request().Context(), f)
		if err != nil {
			c.Logger().Errorf("clickhouse list failed: %v", err)
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
