package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmehdipour/church-sms/internal/model"
	"github.com/jmoiron/sqlx"
)

// CampaignsRepository persists campaigns. It does not enforce who may
// finalize a campaign; the dispatch loop is the only caller that does.
type CampaignsRepository interface {
	Create(ctx context.Context, c model.Campaign) error
	Finalize(ctx context.Context, id string, status model.CampaignStatus, delivered, failed int, sentAt time.Time) error
	GetByID(ctx context.Context, id string) (*model.Campaign, error)
	List(ctx context.Context, status model.CampaignStatus, limit, offset int) ([]model.Campaign, error)
}

type CampaignsRepositoryImpl struct {
	db *sqlx.DB
}

func NewCampaignsRepository(db *sqlx.DB) *CampaignsRepositoryImpl {
	return &CampaignsRepositoryImpl{db: db}
}

var _ CampaignsRepository = (*CampaignsRepositoryImpl)(nil)

const campaignColumns = `
	id, name, message, recipients, recipient_type, recipient_name, group_id,
	recipient_count, delivered_count, failed_count, segments, cost, status,
	created_at, sent_at`

// Create inserts a campaign in status sending with zero counts.
func (r *CampaignsRepositoryImpl) Create(ctx context.Context, c model.Campaign) error {
	const q = `
		INSERT INTO campaigns
		    (id, name, message, recipients, recipient_type, recipient_name, group_id,
		     recipient_count, delivered_count, failed_count, segments, cost, status, created_at)
		VALUES
		    (:id, :name, :message, :recipients, :recipient_type, :recipient_name, :group_id,
		     :recipient_count, 0, 0, :segments, :cost, 'sending', :created_at)
	`
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	if _, err := r.db.NamedExecContext(ctx, q, c); err != nil {
		return fmt.Errorf("insert campaign: %w", err)
	}
	return nil
}

func (r *CampaignsRepositoryImpl) Finalize(ctx context.Context, id string, status model.CampaignStatus, delivered, failed int, sentAt time.Time) error {
	const q = `
		UPDATE campaigns
		   SET status = ?, delivered_count = ?, failed_count = ?, sent_at = ?
		 WHERE id = ?
	`
	res, err := r.db.ExecContext(ctx, q, status.String(), delivered, failed, sentAt.UTC(), id)
	if err != nil {
		return fmt.Errorf("finalize campaign: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *CampaignsRepositoryImpl) GetByID(ctx context.Context, id string) (*model.Campaign, error) {
	var c model.Campaign
	err := r.db.GetContext(ctx, &c, `SELECT `+campaignColumns+` FROM campaigns WHERE id = ? LIMIT 1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *CampaignsRepositoryImpl) List(ctx context.Context, status model.CampaignStatus, limit, offset int) ([]model.Campaign, error) {
	limit, offset = clampPage(limit, offset)

	q := `SELECT ` + campaignColumns + ` FROM campaigns`
	args := []any{}
	if status != "" {
		q += " WHERE status = ?"
		args = append(args, status.String())
	}
	q += " ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows := []model.Campaign{}
	if err := r.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, err
	}
	return rows, nil
}
