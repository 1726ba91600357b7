package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
)

type RecipientType string

const (
	RecipientGroup  RecipientType = "group"
	RecipientManual RecipientType = "manual"
	RecipientSingle RecipientType = "single"
)

func (t RecipientType) String() string { return string(t) }

func (t RecipientType) Valid() bool {
	return t == RecipientGroup || t == RecipientManual || t == RecipientSingle
}

// ParseRecipientType normalizes input; empty => manual.
// Returns (value, true) if valid; otherwise (manual, false).
func ParseRecipientType(s string) (RecipientType, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "manual":
		return RecipientManual, true
	case "group":
		return RecipientGroup, true
	case "single":
		return RecipientSingle, true
	default:
		return RecipientManual, false
	}
}

// Recipients is an ordered phone list stored as a JSON column.
type Recipients []string

func (r Recipients) Value() (driver.Value, error) {
	if r == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(r))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (r *Recipients) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*r = nil
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("recipients: unsupported scan type %T", src)
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("recipients: %w", err)
	}
	*r = out
	return nil
}
