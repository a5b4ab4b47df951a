package utils

import (
	"testing"
	"time"
)

func TestParseStringTime(t *testing.T) {
	tests := []struct {
		timeString string
		expected   time.Duration
	}{
		{"10s", 10 * time.Second},
		{"20M", 20 * time.Minute},
		{"48h", 48 * time.Hour},
		{"2d", 2 * time.Hour * 24},
		{"250ms", 250 * time.Millisecond},
		{" 30s ", 30 * time.Second},
		{"abc", 0},
		{"", 0},
		{"xs", 0},
	}

	for _, test := range tests {
		result := ParseStringTime(test.timeString)
		if result != test.expected {
			t.Errorf("ParseStringTime(%q): expected %v, got %v", test.timeString, test.expected, result)
		}
	}
}

func TestParseDurationError(t *testing.T) {
	if _, err := ParseDuration("10w"); err == nil {
		t.Fatal("expected error for unknown unit")
	}
	if _, err := ParseDuration("1.5s"); err == nil {
		t.Fatal("expected error for fractional value")
	}
}
