package model

import "time"

// ReportEnvelope is the payload published to Kafka (via Debezium outbox SMT)
// for every delivery report, and stored as-is in ClickHouse.
type ReportEnvelope struct {
	ID                string       `json:"id"` // report ULID
	CampaignID        string       `json:"campaign_id"`
	Phone             string       `json:"phone"`
	Status            ReportStatus `json:"status"`
	ProviderMessageID string       `json:"provider_message_id,omitempty"`
	Error             string       `json:"error,omitempty"`
	CreatedAt         time.Time    `json:"created_at"`
}

// Envelope builds the outbox payload for a report.
func (r DeliveryReport) Envelope() ReportEnvelope {
	env := ReportEnvelope{
		ID:         r.ID,
		CampaignID: r.CampaignID,
		Phone:      r.Phone,
		Status:     r.Status,
		CreatedAt:  r.CreatedAt,
	}
	if r.ProviderMessageID != nil {
		env.ProviderMessageID = *r.ProviderMessageID
	}
	if r.ErrorMessage != nil {
		env.Error = *r.ErrorMessage
	}
	return env
}
