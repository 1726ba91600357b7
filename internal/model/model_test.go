package model

import (
	"testing"
	"time"
)

func TestScheduledMessage_IsDue(t *testing.T) {
	loc := time.FixedZone("GMT", 0)
	now := time.Date(2026, 10, 18, 10, 30, 0, 0, loc)

	cases := []struct {
		name string
		msg  ScheduledMessage
		want bool
	}{
		{"earlier today", ScheduledMessage{ScheduledDate: "2026-10-18", ScheduledTime: "10:00", Status: ScheduleScheduled}, true},
		{"exactly now", ScheduledMessage{ScheduledDate: "2026-10-18", ScheduledTime: "10:30:00", Status: ScheduleScheduled}, true},
		{"later today", ScheduledMessage{ScheduledDate: "2026-10-18", ScheduledTime: "10:31", Status: ScheduleScheduled}, false},
		{"yesterday late", ScheduledMessage{ScheduledDate: "2026-10-17", ScheduledTime: "23:00", Status: ScheduleScheduled}, true},
		{"tomorrow early", ScheduledMessage{ScheduledDate: "2026-10-19", ScheduledTime: "01:00", Status: ScheduleScheduled}, false},
		{"cancelled past", ScheduledMessage{ScheduledDate: "2026-10-01", ScheduledTime: "08:00", Status: ScheduleCancelled}, false},
		{"already sending", ScheduledMessage{ScheduledDate: "2026-10-01", ScheduledTime: "08:00", Status: ScheduleSending}, false},
		{"bad time", ScheduledMessage{ScheduledDate: "2026-10-01", ScheduledTime: "8 am", Status: ScheduleScheduled}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.msg.IsDue(now); got != tc.want {
				t.Fatalf("IsDue() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestParseScheduleTime(t *testing.T) {
	got, err := ParseScheduleTime(" 07:05 ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "07:05:00" {
		t.Fatalf("expected 07:05:00, got %q", got)
	}

	if _, err := ParseScheduleTime("25:00"); err == nil {
		t.Fatalf("expected error for 25:00")
	}
}

func TestRecipients_ValueScan(t *testing.T) {
	in := Recipients{"+233244000000", "+233244000001"}
	v, err := in.Value()
	if err != nil {
		t.Fatalf("Value() error: %v", err)
	}

	var out Recipients
	if err := out.Scan([]byte(v.(string))); err != nil {
		t.Fatalf("Scan() error: %v", err)
	}
	if len(out) != 2 || out[0] != in[0] || out[1] != in[1] {
		t.Fatalf("unexpected recipients after scan: %v", out)
	}

	if err := out.Scan(42); err == nil {
		t.Fatalf("expected error scanning int")
	}
}

func TestParseRecipientType(t *testing.T) {
	if rt, ok := ParseRecipientType(""); !ok || rt != RecipientManual {
		t.Fatalf("empty should default to manual, got %q ok=%v", rt, ok)
	}
	if rt, ok := ParseRecipientType(" Group "); !ok || rt != RecipientGroup {
		t.Fatalf("expected group, got %q ok=%v", rt, ok)
	}
	if _, ok := ParseRecipientType("everyone"); ok {
		t.Fatalf("expected everyone to be rejected")
	}
}
