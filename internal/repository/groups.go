package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmehdipour/church-sms/internal/model"
	"github.com/jmoiron/sqlx"
)

type GroupsRepository interface {
	GetByID(ctx context.Context, id int64) (*model.Group, error)
	List(ctx context.Context) ([]model.Group, error)
	ListMembers(ctx context.Context, groupID int64) ([]model.GroupMember, error)
	Upsert(ctx context.Context, tx *sqlx.Tx, name string) (int64, error)
	AddMember(ctx context.Context, tx *sqlx.Tx, m model.GroupMember) error
}

type GroupsRepositoryImpl struct {
	db *sqlx.DB
}

func NewGroupsRepository(db *sqlx.DB) *GroupsRepositoryImpl {
	return &GroupsRepositoryImpl{db: db}
}

var _ GroupsRepository = (*GroupsRepositoryImpl)(nil)

func (r *GroupsRepositoryImpl) GetByID(ctx context.Context, id int64) (*model.Group, error) {
	var g model.Group
	err := r.db.GetContext(ctx, &g, `SELECT id, name, created_at FROM `+"`groups`"+` WHERE id = ? LIMIT 1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &g, nil
}

func (r *GroupsRepositoryImpl) List(ctx context.Context) ([]model.Group, error) {
	rows := []model.Group{}
	if err := r.db.SelectContext(ctx, &rows, "SELECT id, name, created_at FROM `groups` ORDER BY name ASC"); err != nil {
		return nil, err
	}
	return rows, nil
}

// ListMembers returns members in insertion order.
func (r *GroupsRepositoryImpl) ListMembers(ctx context.Context, groupID int64) ([]model.GroupMember, error) {
	const q = `
		SELECT id, group_id, full_name, phone, created_at
		  FROM group_members
		 WHERE group_id = ?
		 ORDER BY id ASC
	`
	rows := []model.GroupMember{}
	if err := r.db.SelectContext(ctx, &rows, q, groupID); err != nil {
		return nil, err
	}
	return rows, nil
}

// Upsert creates the group by name if missing and returns its id.
func (r *GroupsRepositoryImpl) Upsert(ctx context.Context, tx *sqlx.Tx, name string) (int64, error) {
	var id int64
	err := withTx(ctx, r.db, tx, func(tx *sqlx.Tx) error {
		const q = "INSERT INTO `groups` (name, created_at) VALUES (?, NOW()) " +
			"ON DUPLICATE KEY UPDATE id = LAST_INSERT_ID(id)"
		res, err := tx.ExecContext(ctx, q, name)
		if err != nil {
			return fmt.Errorf("upsert group %q: %w", name, err)
		}
		id, err = res.LastInsertId()
		return err
	})
	return id, err
}

// AddMember is idempotent on (group_id, phone).
func (r *GroupsRepositoryImpl) AddMember(ctx context.Context, tx *sqlx.Tx, m model.GroupMember) error {
	const q = `
		INSERT INTO group_members (group_id, full_name, phone, created_at)
		VALUES (?, ?, ?, NOW())
		ON DUPLICATE KEY UPDATE full_name = VALUES(full_name)
	`
	return withTx(ctx, r.db, tx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, q, m.GroupID, m.FullName, m.Phone)
		return err
	})
}
