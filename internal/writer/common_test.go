package writer

import (
	"testing"
	"time"
)

func TestParseDecimal(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		want   float64
		wantOK bool
	}{
		{"integer", "50000", 50000, true},
		{"fraction", "50000.5", 50000.5, true},
		{"trailing zeros", "0.01000000", 0.01, true},
		{"small", "0.00000100", 0.000001, true},
		{"negative", "-1.5", -1.5, true},
		{"empty string", "", 0, false},
		{"invalid", "abc", 0, false},
		{"comma", "1,5", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := parseDecimal(tt.input)
			if ok != tt.wantOK {
				t.Fatalf("parseDecimal(%q) ok = %v, want %v", tt.input, ok, tt.wantOK)
			}
			if got != tt.want {
				t.Errorf("parseDecimal(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestFormatTimestamp(t *testing.T) {
	tests := []struct {
		in   time.Time
		want string
	}{
		{time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC), "12:00:00.000"},
		{time.Date(2024, 1, 15, 9, 5, 7, 123456789, time.UTC), "09:05:07.123"},
		{time.UnixMilli(1700000000050).UTC(), "22:13:20.050"},
		{time.Date(2024, 1, 15, 14, 30, 0, 0, time.FixedZone("UTC+2", 2*3600)), "12:30:00.000"},
	}

	for _, tt := range tests {
		if got := formatTimestamp(tt.in); got != tt.want {
			t.Errorf("formatTimestamp(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
