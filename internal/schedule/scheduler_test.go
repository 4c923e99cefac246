package schedule

import (
	"testing"
	"time"

	"go.uber.org/zap"
)

func newTestRefresher(t *testing.T) *Refresher {
	t.Helper()
	return NewRefresher(nil, []string{"SPX"}, time.Minute, "America/New_York", zap.NewNop())
}

func TestIsMarketDayWeekday(t *testing.T) {
	r := newTestRefresher(t)
	// A regular Monday.
	monday := time.Date(2026, 8, 24, 15, 0, 0, 0, time.UTC)
	if !r.IsMarketDay(monday) {
		t.Error("expected a regular Monday to be a market day")
	}
}

func TestIsMarketDayWeekend(t *testing.T) {
	r := newTestRefresher(t)
	saturday := time.Date(2026, 8, 22, 15, 0, 0, 0, time.UTC)
	if r.IsMarketDay(saturday) {
		t.Error("expected Saturday to not be a market day")
	}
}

func TestIsMarketDayHoliday(t *testing.T) {
	r := newTestRefresher(t)
	// New Year's Day 2026 falls on a Thursday.
	holiday := time.Date(2026, 1, 1, 15, 0, 0, 0, time.UTC)
	if r.IsMarketDay(holiday) {
		t.Error("expected New Year's Day to not be a market day")
	}
}

func TestUnknownTimezoneFallsBackToUTC(t *testing.T) {
	r := NewRefresher(nil, nil, time.Minute, "Not/AZone", zap.NewNop())
	if r.location != time.UTC {
		t.Errorf("expected UTC fallback, got %v", r.location)
	}
}
