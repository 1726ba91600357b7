package model

import "time"

type ReportStatus string

const (
	ReportDelivered ReportStatus = "delivered"
	ReportFailed    ReportStatus = "failed"
)

func (s ReportStatus) String() string { return string(s) }

func (s ReportStatus) Valid() bool {
	return s == ReportDelivered || s == ReportFailed
}

// DeliveryReport is one outcome per recipient per campaign attempt. Never updated.
type DeliveryReport struct {
	ID                string       `db:"id"                  json:"id"`
	CampaignID        string       `db:"campaign_id"         json:"campaign_id"`
	Phone             string       `db:"recipient_phone"     json:"recipient_phone"`
	Status            ReportStatus `db:"status"              json:"status"`
	ProviderMessageID *string      `db:"provider_message_id" json:"provider_message_id,omitempty"`
	ErrorMessage      *string      `db:"error_message"       json:"error_message,omitempty"`
	DeliveredAt       *time.Time   `db:"delivered_at"        json:"delivered_at,omitempty"`
	CreatedAt         time.Time    `db:"created_at"          json:"created_at"`
}
