package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmehdipour/church-sms/internal/model"
	"github.com/jmoiron/sqlx"
)

// CHReport is a delivery report row in the ClickHouse analytics store.
type CHReport struct {
	ID                string    `db:"id"                  json:"id"`
	CampaignID        string    `db:"campaign_id"         json:"campaign_id"`
	Phone             string    `db:"phone"               json:"phone"`
	Status            string    `db:"status"              json:"status"`
	ProviderMessageID string    `db:"provider_message_id" json:"provider_message_id,omitempty"`
	Error             string    `db:"error"               json:"error,omitempty"`
	CreatedAt         time.Time `db:"created_at"          json:"created_at"`
}

type CHReportFilter struct {
	CampaignID string
	Phone      string
	Status     model.ReportStatus
	Limit      int
	Offset     int
}

// CHReportsRepository reads and batch-writes delivery reports in ClickHouse.
type CHReportsRepository interface {
	InsertBatch(ctx context.Context, envs []model.ReportEnvelope) error
	List(ctx context.Context, f CHReportFilter) ([]CHReport, error)
}

type chReportsRepository struct {
	ch *sqlx.DB // ClickHouse connection
}

func NewCHReportsRepository(ch *sqlx.DB) CHReportsRepository {
	return &chReportsRepository{ch: ch}
}

// InsertBatch uses one prepared batch per call; clickhouse-go sends it on commit.
func (r *chReportsRepository) InsertBatch(ctx context.Context, envs []model.ReportEnvelope) error {
	if len(envs) == 0 {
		return nil
	}

	tx, err := r.ch.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO churchsms.delivery_reports
		    (id, campaign_id, phone, status, provider_message_id, error, created_at)
	`)
	if err != nil {
		return fmt.Errorf("prepare clickhouse batch: %w", err)
	}
	defer stmt.Close()

	for _, e := range envs {
		if _, err := stmt.ExecContext(ctx,
			e.ID, e.CampaignID, e.Phone, e.Status.String(), e.ProviderMessageID, e.Error, e.CreatedAt.UTC(),
		); err != nil {
			return fmt.Errorf("append report %s: %w", e.ID, err)
		}
	}

	return tx.Commit()
}

func (r *chReportsRepository) List(ctx context.Context, f CHReportFilter) ([]CHReport, error) {
	limit, offset := clampPage(f.Limit, f.Offset)

	q := `
		SELECT id, campaign_id, phone, status, provider_message_id, error, created_at
		FROM churchsms.delivery_reports FINAL
		WHERE 1 = 1
	`
	args := []any{}

	if f.CampaignID != "" {
		q += " AND campaign_id = ?"
		args = append(args, f.CampaignID)
	}
	if f.Status != "" {
		q += " AND status = ?"
		args = append(args, f.Status.String())
	}
	if f.Phone != "" {
		q += " AND phone = ?"
		args = append(args, f.Phone)
	}

	q += " ORDER BY created_at DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows := []CHReport{}
	if err := r.ch.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, err
	}
	return rows, nil
}
