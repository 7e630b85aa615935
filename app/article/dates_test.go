package article

import (
	"testing"
	"time"
)

func TestNormalizeDate(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"2024-03-15T08:00:00Z", "2024-03-15T08:00:00Z", true},
		{"2024-03-15T13:00:00+05:00", "2024-03-15T08:00:00Z", true},
		{"2024-03-15T08:00:00", "2024-03-15T08:00:00Z", true},
		{"2024-03-15", "2024-03-15T00:00:00Z", true},
		{"2024-03-15 garbage", "2024-03-15 garbage", true},
		{"Fri, 15 Mar 2024 08:00:00 GMT", "2024-03-15T08:00:00Z", true},
		{"not a date", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := NormalizeDate(tt.in)
			if ok != tt.ok {
				t.Fatalf("Expected ok=%v, got %v", tt.ok, ok)
			}
			if got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestDayOf(t *testing.T) {
	day, ok := DayOf("2024-03-14T23:59:59+00:00")
	if !ok {
		t.Fatal("Expected date to parse")
	}
	if !day.Equal(time.Date(2024, 3, 14, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Expected 2024-03-14, got %s", day)
	}

	day, ok = DayOf("2024-03-16T03:00:00+05:00")
	if !ok || day.Day() != 15 {
		t.Errorf("Expected offset date converted to UTC day 15, got %s", day)
	}

	if _, ok := DayOf("sometime"); ok {
		t.Error("Expected unparseable date to fail")
	}
}
