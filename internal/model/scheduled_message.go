package model

import (
	"fmt"
	"strings"
	"time"
)

type ScheduleStatus string

const (
	ScheduleScheduled ScheduleStatus = "scheduled"
	ScheduleSending   ScheduleStatus = "sending"
	ScheduleSent      ScheduleStatus = "sent"
	ScheduleFailed    ScheduleStatus = "failed"
	ScheduleCancelled ScheduleStatus = "cancelled"
)

func (s ScheduleStatus) String() string { return string(s) }

func (s ScheduleStatus) Valid() bool {
	switch s {
	case ScheduleScheduled, ScheduleSending, ScheduleSent, ScheduleFailed, ScheduleCancelled:
		return true
	}
	return false
}

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04:05"
)

// ScheduledMessage is a campaign deferred to a date/time. It becomes a
// Campaign when the scheduler trigger picks it up.
type ScheduledMessage struct {
	ID            string         `db:"id"             json:"id"`
	CampaignName  string         `db:"campaign_name"  json:"campaign_name"`
	Message       string         `db:"message"        json:"message"`
	Recipients    Recipients     `db:"recipients"     json:"recipients"`
	RecipientType RecipientType  `db:"recipient_type" json:"recipient_type"`
	RecipientName string         `db:"recipient_name" json:"recipient_name"`
	GroupID       *int64         `db:"group_id"       json:"group_id,omitempty"`
	ScheduledDate string         `db:"scheduled_date" json:"scheduled_date"` // YYYY-MM-DD
	ScheduledTime string         `db:"scheduled_time" json:"scheduled_time"` // HH:MM:SS
	Status        ScheduleStatus `db:"status"         json:"status"`
	CampaignID    *string        `db:"campaign_id"    json:"campaign_id,omitempty"`
	ErrorMessage  *string        `db:"error_message"  json:"error_message,omitempty"`
	CreatedAt     time.Time      `db:"created_at"     json:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at"     json:"updated_at"`
}

// ParseScheduleTime accepts HH:MM or HH:MM:SS and returns HH:MM:SS.
func ParseScheduleTime(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range []string{TimeLayout, "15:04"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Format(TimeLayout), nil
		}
	}
	return "", fmt.Errorf("invalid time %q, want HH:MM or HH:MM:SS", raw)
}

// DueAt resolves the scheduled date and time in loc.
func (m ScheduledMessage) DueAt(loc *time.Location) (time.Time, error) {
	clock, err := ParseScheduleTime(m.ScheduledTime)
	if err != nil {
		return time.Time{}, err
	}
	return time.ParseInLocation(DateLayout+" "+TimeLayout, m.ScheduledDate+" "+clock, loc)
}

// IsDue is the selection predicate of the scheduler trigger.
func (m ScheduledMessage) IsDue(now time.Time) bool {
	if m.Status != ScheduleScheduled {
		return false
	}
	due, err := m.DueAt(now.Location())
	if err != nil {
		return false
	}
	return !due.After(now)
}
