package markethours

import (
	"testing"
	"time"
)

func TestIsMarketOpen(t *testing.T) {
	tests := []struct {
		name string
		t    time.Time
		want bool
	}{
		{"weekday_mid_session", time.Date(2026, 9, 1, 11, 0, 0, 0, IST), true},
		{"weekday_at_open", time.Date(2026, 9, 1, 9, 15, 0, 0, IST), true},
		{"weekday_before_open", time.Date(2026, 9, 1, 9, 0, 0, 0, IST), false},
		{"weekday_at_close", time.Date(2026, 9, 1, 15, 30, 0, 0, IST), false},
		{"saturday", time.Date(2026, 9, 5, 11, 0, 0, 0, IST), false},
		{"sunday", time.Date(2026, 9, 6, 11, 0, 0, 0, IST), false},
		{"republic_day_holiday", time.Date(2026, 1, 26, 11, 0, 0, 0, IST), false},
		{"utc_converted", time.Date(2026, 9, 1, 5, 0, 0, 0, time.UTC), true}, // 10:30 IST
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsMarketOpen(tt.t); got != tt.want {
				t.Errorf("IsMarketOpen(%v) = %v, want %v", tt.t, got, tt.want)
			}
		})
	}
}

func TestNextOpenSkipsWeekend(t *testing.T) {
	// Friday after close rolls to Monday 9:15.
	fri := time.Date(2026, 9, 4, 16, 0, 0, 0, IST)
	next := NextOpen(fri)
	if next.Weekday() != time.Monday {
		t.Fatalf("next open on %v, want Monday", next.Weekday())
	}
	if next.Hour() != OpenHour || next.Minute() != OpenMinute {
		t.Errorf("next open at %02d:%02d", next.Hour(), next.Minute())
	}
}

func TestStatusString(t *testing.T) {
	open := time.Date(2026, 9, 1, 11, 0, 0, 0, IST)
	if s := StatusString(open); s == "" || s[:11] != "Market Open" {
		t.Errorf("StatusString(open) = %q", s)
	}
	closed := time.Date(2026, 9, 1, 20, 0, 0, 0, IST)
	if s := StatusString(closed); s == "" || s[:13] != "Market Closed" {
		t.Errorf("StatusString(closed) = %q", s)
	}
}
