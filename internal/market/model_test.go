package market

import (
	"errors"
	"testing"
	"time"
)

func TestParseCredits(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{in: "10", want: 1000},
		{in: "10.27", want: 1027},
		{in: "0.01", want: 1},
		{in: " 250.00 ", want: 25000},
		{in: "-3.50", want: -350},
	}
	for _, tc := range tests {
		got, err := ParseCredits(tc.in)
		if err != nil {
			t.Fatalf("ParseCredits(%q): %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("ParseCredits(%q) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestParseCreditsRejectsBadInput(t *testing.T) {
	for _, in := range []string{"", "abc", "10.001", "1e-3", "10.27.5"} {
		if _, err := ParseCredits(in); !errors.Is(err, ErrValidation) {
			t.Fatalf("ParseCredits(%q): expected ErrValidation, got %v", in, err)
		}
	}
}

func TestFormatCredits(t *testing.T) {
	tests := []struct {
		cents int64
		want  string
	}{
		{cents: 1027, want: "10.27"},
		{cents: 1000, want: "10.00"},
		{cents: 1, want: "0.01"},
		{cents: -350, want: "-3.50"},
	}
	for _, tc := range tests {
		if got := FormatCredits(tc.cents); got != tc.want {
			t.Fatalf("FormatCredits(%d) = %q, want %q", tc.cents, got, tc.want)
		}
	}
}

func TestHistoryWindow(t *testing.T) {
	tests := []struct {
		period string
		want   time.Duration
	}{
		{period: "1h", want: time.Hour},
		{period: "12h", want: 12 * time.Hour},
		{period: "1d", want: 24 * time.Hour},
		{period: "3d", want: 72 * time.Hour},
		{period: "7D", want: 7 * 24 * time.Hour},
	}
	for _, tc := range tests {
		got, err := historyWindow(tc.period)
		if err != nil {
			t.Fatalf("historyWindow(%q): %v", tc.period, err)
		}
		if got != tc.want {
			t.Fatalf("historyWindow(%q) = %v, want %v", tc.period, got, tc.want)
		}
	}

	if _, err := historyWindow("2w"); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for unknown period, got %v", err)
	}
}

func TestValidateCompanyName(t *testing.T) {
	if _, err := validateCompanyName("  Nimbus Corp  "); err != nil {
		t.Fatalf("expected trimmed name to be valid: %v", err)
	}
	if _, err := validateCompanyName(""); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for empty name, got %v", err)
	}
	long := make([]byte, MaxCompanyNameLen+1)
	for i := range long {
		long[i] = 'x'
	}
	if _, err := validateCompanyName(string(long)); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for oversized name, got %v", err)
	}
}

func TestValidateUserID(t *testing.T) {
	got, err := validateUserID(" user-1 ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "user-1" {
		t.Fatalf("got %q, want trimmed id", got)
	}
	if _, err := validateUserID("   "); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for blank id, got %v", err)
	}
}
