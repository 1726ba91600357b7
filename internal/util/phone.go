package util

import (
	"regexp"
	"strings"
)

var phoneJunk = regexp.MustCompile(`[^\d\+]+`)

// PhoneNormalizer turns local or international input into +<cc><number>.
type PhoneNormalizer struct {
	CountryCode string // digits only, e.g. "233"
	TrunkPrefix string // e.g. "0"
}

// Normalize never fails: every input maps to some output, and normalized
// output maps to itself.
func (n PhoneNormalizer) Normalize(raw string) string {
	s := phoneJunk.ReplaceAllString(raw, "")

	switch {
	case strings.HasPrefix(s, "+"):
		// already carries a country code
	case strings.HasPrefix(s, "00"):
		s = "+" + s[2:]
	case n.TrunkPrefix != "" && strings.HasPrefix(s, n.TrunkPrefix):
		s = "+" + n.CountryCode + s[len(n.TrunkPrefix):]
	case strings.HasPrefix(s, n.CountryCode):
		s = "+" + s
	default:
		s = "+" + n.CountryCode + s
	}

	return s
}

// MaxPhoneDigits is the E.164 limit on digits in a full number.
const MaxPhoneDigits = 15

// NormalizeAll normalizes and drops exact duplicates, keeping first-seen order.
// Entries without any digit are skipped.
func (n PhoneNormalizer) NormalizeAll(raw []string) []string {
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		if !hasDigit(r) {
			continue
		}
		out = append(out, n.Normalize(r))
	}
	return Dedupe(out)
}

// Partition is NormalizeAll split into numbers within MaxPhoneDigits and
// numbers that exceed it.
func (n PhoneNormalizer) Partition(raw []string) (valid, invalid []string) {
	valid = make([]string, 0, len(raw))
	for _, p := range n.NormalizeAll(raw) {
		if ValidPhone(p) {
			valid = append(valid, p)
		} else {
			invalid = append(invalid, p)
		}
	}
	return valid, invalid
}

// ValidPhone reports whether a normalized number has 1..MaxPhoneDigits digits.
func ValidPhone(normalized string) bool {
	d := strings.TrimPrefix(normalized, "+")
	return d != "" && len(d) <= MaxPhoneDigits && strings.Trim(d, "0123456789") == ""
}

func hasDigit(s string) bool {
	return strings.ContainsAny(s, "0123456789")
}

// Dedupe removes exact duplicates, keeping first-seen order.
func Dedupe(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, it := range items {
		if _, ok := seen[it]; ok {
			continue
		}
		seen[it] = struct{}{}
		out = append(out, it)
	}
	return out
}
