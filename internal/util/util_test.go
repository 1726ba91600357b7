package util

import (
	"strings"
	"testing"
	"time"
)

var ghana = PhoneNormalizer{CountryCode: "233", TrunkPrefix: "0"}

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"0244000000":       "+233244000000",
		"024 400 0000":     "+233244000000",
		"+233244000001":    "+233244000001",
		"233244000002":     "+233244000002",
		"244000003":        "+233244000003",
		"00233244000004":   "+233244000004",
		"+44 20 7946 0958": "+442079460958",
		"(024)-400-0005":   "+233244000005",
	}
	for in, want := range cases {
		if got := ghana.Normalize(in); got != want {
			t.Fatalf("Normalize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	inputs := []string{
		"0244000000", "+233244000001", "233244000002", "244000003",
		"00441234", "+", "", "0", "abc", " 0 2 4 4 ",
	}
	for _, in := range inputs {
		once := ghana.Normalize(in)
		twice := ghana.Normalize(once)
		if once != twice {
			t.Fatalf("not idempotent for %q: %q then %q", in, once, twice)
		}
		if !strings.HasPrefix(once, "+") {
			t.Fatalf("expected + prefix for %q, got %q", in, once)
		}
	}
}

func TestNormalizeAll_DedupesAfterNormalizing(t *testing.T) {
	got := ghana.NormalizeAll([]string{"0244000000", "0244000000", "+233244000001", "  ", "233244000000"})
	want := []string{"+233244000000", "+233244000001"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestNormalizeAll_SkipsEntriesWithoutDigits(t *testing.T) {
	got := ghana.NormalizeAll([]string{"n/a", "-", "0244000000", "+"})
	if len(got) != 1 || got[0] != "+233244000000" {
		t.Fatalf("expected only the real number, got %v", got)
	}
}

func TestPartition_SplitsOverlongNumbers(t *testing.T) {
	valid, invalid := ghana.Partition([]string{"0244000000", "0244000000000000000000000", "+447700900123"})
	if strings.Join(valid, ",") != "+233244000000,+447700900123" {
		t.Fatalf("unexpected valid numbers: %v", valid)
	}
	if len(invalid) != 1 || invalid[0] != "+233244000000000000000000000" {
		t.Fatalf("unexpected invalid numbers: %v", invalid)
	}
}

func TestValidPhone(t *testing.T) {
	cases := map[string]bool{
		"+233244000000":     true,
		"+123456789012345":  true,
		"+1234567890123456": false,
		"+":                 false,
		"+23324a000000":     false,
	}
	for in, want := range cases {
		if got := ValidPhone(in); got != want {
			t.Fatalf("ValidPhone(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestDedupe_KeepsOrder(t *testing.T) {
	got := Dedupe([]string{"b", "a", "b", "c", "a"})
	if strings.Join(got, ",") != "b,a,c" {
		t.Fatalf("unexpected order: %v", got)
	}
}

func TestSegments(t *testing.T) {
	cases := []struct {
		name string
		text string
		want int
	}{
		{"empty", "", 1},
		{"short gsm", "Hello church", 1},
		{"160 gsm", strings.Repeat("a", 160), 1},
		{"161 gsm", strings.Repeat("a", 161), 2},
		{"306 gsm", strings.Repeat("a", 306), 2},
		{"307 gsm", strings.Repeat("a", 307), 3},
		{"extension chars count double", strings.Repeat("€", 80), 1},
		{"extension overflow", strings.Repeat("€", 81), 2},
		{"70 ucs2", strings.Repeat("ɛ", 70), 1},
		{"71 ucs2", strings.Repeat("ɛ", 71), 2},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Segments(tc.text); got != tc.want {
				t.Fatalf("Segments() = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestNewID_SortableWithinMillisecond(t *testing.T) {
	at := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)
	a := NewIDAt(at)
	b := NewIDAt(at)
	if len(a) != 26 || len(b) != 26 {
		t.Fatalf("unexpected ulid lengths: %q %q", a, b)
	}
	if !(a < b) {
		t.Fatalf("expected monotonic ids, got %q then %q", a, b)
	}
}
