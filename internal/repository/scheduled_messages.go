package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmehdipour/church-sms/internal/model"
	"github.com/jmoiron/sqlx"
)

// ScheduledMessagesRepository persists deferred campaigns. Status moves only
// through the conditional Mark*/Cancel methods.
type ScheduledMessagesRepository interface {
	Insert(ctx context.Context, m model.ScheduledMessage) error
	GetByID(ctx context.Context, id string) (*model.ScheduledMessage, error)
	List(ctx context.Context, status model.ScheduleStatus, limit, offset int) ([]model.ScheduledMessage, error)
	// ListDue returns scheduled rows whose date/time is at or before
	// today/clock (wall-clock values in the scheduler timezone).
	ListDue(ctx context.Context, today, clock string) ([]model.ScheduledMessage, error)
	// MarkSending claims a row; false means it is no longer scheduled.
	MarkSending(ctx context.Context, id string) (bool, error)
	MarkSent(ctx context.Context, id, campaignID string) error
	MarkFailed(ctx context.Context, id, errText string) error
	// Cancel moves scheduled -> cancelled; false means the row was not scheduled.
	Cancel(ctx context.Context, id string) (bool, error)
}

type ScheduledMessagesRepositoryImpl struct {
	db *sqlx.DB
}

func NewScheduledMessagesRepository(db *sqlx.DB) *ScheduledMessagesRepositoryImpl {
	return &ScheduledMessagesRepositoryImpl{db: db}
}

var _ ScheduledMessagesRepository = (*ScheduledMessagesRepositoryImpl)(nil)

const scheduledColumns = `
	id, campaign_name, message, recipients, recipient_type, recipient_name, group_id,
	DATE_FORMAT(scheduled_date, '%Y-%m-%d') AS scheduled_date,
	TIME_FORMAT(scheduled_time, '%H:%i:%s') AS scheduled_time,
	status, campaign_id, error_message, created_at, updated_at`

func (r *ScheduledMessagesRepositoryImpl) Insert(ctx context.Context, m model.ScheduledMessage) error {
	const q = `
		INSERT INTO scheduled_messages
		    (id, campaign_name, message, recipients, recipient_type, recipient_name, group_id,
		     scheduled_date, scheduled_time, status, created_at, updated_at)
		VALUES
		    (:id, :campaign_name, :message, :recipients, :recipient_type, :recipient_name, :group_id,
		     :scheduled_date, :scheduled_time, 'scheduled', NOW(), NOW())
	`
	if _, err := r.db.NamedExecContext(ctx, q, m); err != nil {
		return fmt.Errorf("insert scheduled message: %w", err)
	}
	return nil
}

func (r *ScheduledMessagesRepositoryImpl) GetByID(ctx context.Context, id string) (*model.ScheduledMessage, error) {
	var m model.ScheduledMessage
	err := r.db.GetContext(ctx, &m, `SELECT `+scheduledColumns+` FROM scheduled_messages WHERE id = ? LIMIT 1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *ScheduledMessagesRepositoryImpl) List(ctx context.Context, status model.ScheduleStatus, limit, offset int) ([]model.ScheduledMessage, error) {
	limit, offset = clampPage(limit, offset)

	q := `SELECT ` + scheduledColumns + ` FROM scheduled_messages`
	args := []any{}
	if status != "" {
		q += " WHERE status = ?"
		args = append(args, status.String())
	}
	q += " ORDER BY scheduled_date ASC, scheduled_time ASC, id ASC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows := []model.ScheduledMessage{}
	if err := r.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *ScheduledMessagesRepositoryImpl) ListDue(ctx context.Context, today, clock string) ([]model.ScheduledMessage, error) {
	q := `
		SELECT ` + scheduledColumns + `
		  FROM scheduled_messages
		 WHERE status = 'scheduled'
		   AND (scheduled_date < ? OR (scheduled_date = ? AND scheduled_time <= ?))
		 ORDER BY created_at ASC, id ASC
	`
	rows := []model.ScheduledMessage{}
	if err := r.db.SelectContext(ctx, &rows, q, today, today, clock); err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *ScheduledMessagesRepositoryImpl) MarkSending(ctx context.Context, id string) (bool, error) {
	return r.transition(ctx, `
		UPDATE scheduled_messages SET status = 'sending', updated_at = NOW()
		 WHERE id = ? AND status = 'scheduled'
	`, id)
}

func (r *ScheduledMessagesRepositoryImpl) MarkSent(ctx context.Context, id, campaignID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE scheduled_messages
		   SET status = 'sent', campaign_id = ?, error_message = NULL, updated_at = NOW()
		 WHERE id = ?
	`, campaignID, id)
	return err
}

func (r *ScheduledMessagesRepositoryImpl) MarkFailed(ctx context.Context, id, errText string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE scheduled_messages
		   SET status = 'failed', error_message = ?, updated_at = NOW()
		 WHERE id = ?
	`, errText, id)
	return err
}

func (r *ScheduledMessagesRepositoryImpl) Cancel(ctx context.Context, id string) (bool, error) {
	return r.transition(ctx, `
		UPDATE scheduled_messages SET status = 'cancelled', updated_at = NOW()
		 WHERE id = ? AND status = 'scheduled'
	`, id)
}

func (r *ScheduledMessagesRepositoryImpl) transition(ctx context.Context, q, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, q, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
