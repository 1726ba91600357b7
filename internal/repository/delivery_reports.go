package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jmehdipour/church-sms/internal/model"
	"github.com/jmoiron/sqlx"
)

type DeliveryReportsRepository interface {
	Insert(ctx context.Context, r model.DeliveryReport) error
	ListByCampaign(ctx context.Context, campaignID string, status model.ReportStatus, limit, offset int) ([]model.DeliveryReport, error)
	CountByCampaign(ctx context.Context, campaignID string) (map[model.ReportStatus]int, error)
}

type DeliveryReportsRepositoryImpl struct {
	db     *sqlx.DB
	outbox OutboxRepository
}

func NewDeliveryReportsRepository(db *sqlx.DB, outbox OutboxRepository) *DeliveryReportsRepositoryImpl {
	return &DeliveryReportsRepositoryImpl{db: db, outbox: outbox}
}

var _ DeliveryReportsRepository = (*DeliveryReportsRepositoryImpl)(nil)

// Insert writes the report row and its outbox event in one transaction.
func (r *DeliveryReportsRepositoryImpl) Insert(ctx context.Context, rep model.DeliveryReport) error {
	payload, err := json.Marshal(rep.Envelope())
	if err != nil {
		return fmt.Errorf("marshal report envelope: %w", err)
	}

	const q = `
		INSERT INTO delivery_reports
		    (id, campaign_id, recipient_phone, status, provider_message_id, error_message, delivered_at, created_at)
		VALUES
		    (:id, :campaign_id, :recipient_phone, :status, :provider_message_id, :error_message, :delivered_at, :created_at)
	`
	return withTx(ctx, r.db, nil, func(tx *sqlx.Tx) error {
		if _, err := tx.NamedExecContext(ctx, q, rep); err != nil {
			return fmt.Errorf("insert delivery report: %w", err)
		}
		ev := model.OutboxEvent{
			Aggregate:   "delivery_report",
			AggregateID: rep.ID,
			Topic:       DeliveryReportsTopic,
			Payload:     payload,
		}
		if err := r.outbox.Insert(ctx, tx, ev); err != nil {
			return fmt.Errorf("insert outbox: %w", err)
		}
		return nil
	})
}

func (r *DeliveryReportsRepositoryImpl) ListByCampaign(ctx context.Context, campaignID string, status model.ReportStatus, limit, offset int) ([]model.DeliveryReport, error) {
	limit, offset = clampPage(limit, offset)

	q := `
		SELECT id, campaign_id, recipient_phone, status, provider_message_id, error_message, delivered_at, created_at
		  FROM delivery_reports
		 WHERE campaign_id = ?
	`
	args := []any{campaignID}
	if status != "" {
		q += " AND status = ?"
		args = append(args, status.String())
	}
	q += " ORDER BY id ASC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows := []model.DeliveryReport{}
	if err := r.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *DeliveryReportsRepositoryImpl) CountByCampaign(ctx context.Context, campaignID string) (map[model.ReportStatus]int, error) {
	var rows []struct {
		Status model.ReportStatus `db:"status"`
		N      int                `db:"n"`
	}
	const q = `SELECT status, COUNT(*) AS n FROM delivery_reports WHERE campaign_id = ? GROUP BY status`
	if err := r.db.SelectContext(ctx, &rows, q, campaignID); err != nil {
		return nil, err
	}

	out := map[model.ReportStatus]int{model.ReportDelivered: 0, model.ReportFailed: 0}
	for _, row := range rows {
		out[row.Status] = row.N
	}
	return out, nil
}
