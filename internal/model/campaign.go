package model

import "time"

type CampaignStatus string

const (
	CampaignSending CampaignStatus = "sending"
	CampaignSent    CampaignStatus = "sent"
	CampaignFailed  CampaignStatus = "failed"
)

func (s CampaignStatus) String() string {
	return string(s)
}

func (s CampaignStatus) Valid() bool {
	return s == CampaignSending || s == CampaignSent || s == CampaignFailed
}

// Terminal reports whether the dispatch loop is done with the campaign.
// "sent" means the attempt completed, not that every recipient got the message.
func (s CampaignStatus) Terminal() bool {
	return s == CampaignSent || s == CampaignFailed
}

// Campaign is the DB entity persisted in campaigns table.
// Message and recipients are write-once.
type Campaign struct {
	ID             string         `db:"id"              json:"id"`
	Name           string         `db:"name"            json:"name"`
	Message        string         `db:"message"         json:"message"`
	Recipients     Recipients     `db:"recipients"      json:"recipients"`
	RecipientType  RecipientType  `db:"recipient_type"  json:"recipient_type"`
	RecipientName  string         `db:"recipient_name"  json:"recipient_name"`
	GroupID        *int64         `db:"group_id"        json:"group_id,omitempty"`
	RecipientCount int            `db:"recipient_count" json:"recipient_count"`
	DeliveredCount int            `db:"delivered_count" json:"delivered_count"`
	FailedCount    int            `db:"failed_count"    json:"failed_count"`
	Segments       int            `db:"segments"        json:"segments"`
	Cost           int64          `db:"cost"            json:"cost"` // minor units
	Status         CampaignStatus `db:"status"          json:"status"`
	CreatedAt      time.Time      `db:"created_at"      json:"created_at"`
	SentAt         *time.Time     `db:"sent_at"         json:"sent_at,omitempty"`
}
