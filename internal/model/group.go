package model

import "time"

// Group is a church group (choir, youth, ushers...) used as a recipient list.
type Group struct {
	ID        int64     `db:"id"         json:"id"`
	Name      string    `db:"name"       json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

type GroupMember struct {
	ID        int64     `db:"id"         json:"id"`
	GroupID   int64     `db:"group_id"   json:"group_id"`
	FullName  string    `db:"full_name"  json:"full_name"`
	Phone     string    `db:"phone"      json:"phone"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
