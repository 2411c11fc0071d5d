package compliance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/equityrun/internal/config"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// 2026-08-28 is a Friday.
var friday = date(2026, time.August, 28)

func newManager() *ComplianceManager {
	return NewComplianceManager(config.DefaultConfig().Compliance, nil)
}

func TestCanDayTradeAboveThresholdAlwaysAllowed(t *testing.T) {
	m := newManager()
	state := NewPDTState(30_000)

	for i := 0; i < 10; i++ {
		ok, _ := m.CanDayTrade(state, friday)
		require.True(t, ok)
		m.RecordDayTrade(state, friday)
	}
}

func TestCanDayTradeFourthDenied(t *testing.T) {
	m := newManager()
	state := NewPDTState(20_000)

	// 3 day trades within the trailing 5 business days
	m.RecordDayTrade(state, date(2026, time.August, 24)) // Mon
	m.RecordDayTrade(state, date(2026, time.August, 25)) // Tue
	m.RecordDayTrade(state, date(2026, time.August, 27)) // Thu

	ok, reason := m.CanDayTrade(state, friday)
	assert.False(t, ok)
	assert.Contains(t, reason, "PDT")

	// the same account above the threshold is unrestricted
	m.UpdateEquity(state, 25_000)
	ok, _ = m.CanDayTrade(state, friday)
	assert.True(t, ok)
}

func TestWindowExcludesWeekends(t *testing.T) {
	m := newManager()
	state := NewPDTState(20_000)

	// The window ending Friday 2026-08-28 covers Mon 24 through Fri 28, so a
	// trade on Thu 20 (6 business days back, across the weekend) is out.
	m.RecordDayTrade(state, date(2026, time.August, 20))
	m.RecordDayTrade(state, date(2026, time.August, 24))
	m.RecordDayTrade(state, date(2026, time.August, 25))

	ok, _ := m.CanDayTrade(state, friday)
	assert.True(t, ok, "trade outside the trailing window must not count")
}

func TestWindowExcludesHolidays(t *testing.T) {
	cfg := config.DefaultConfig().Compliance
	m := NewComplianceManager(cfg, holidayCalendar{holiday: date(2026, time.August, 26)})
	state := NewPDTState(20_000)

	// With Wed 26 a holiday the window ending Fri 28 reaches back to Fri 21,
	// so a trade on the 21st still counts.
	m.RecordDayTrade(state, date(2026, time.August, 21))
	m.RecordDayTrade(state, date(2026, time.August, 24))
	m.RecordDayTrade(state, date(2026, time.August, 25))

	ok, _ := m.CanDayTrade(state, friday)
	assert.False(t, ok)
}

func TestAgedEntriesArePruned(t *testing.T) {
	m := newManager()
	state := NewPDTState(20_000)

	m.RecordDayTrade(state, date(2026, time.July, 1))
	m.RecordDayTrade(state, date(2026, time.July, 2))
	m.RecordDayTrade(state, date(2026, time.August, 27))

	ok, _ := m.CanDayTrade(state, friday)
	assert.True(t, ok)
	assert.Len(t, state.DayTradeDates, 1, "aged-out entries should be pruned on read")
}

func TestDisabledPDT(t *testing.T) {
	cfg := config.DefaultConfig().Compliance
	cfg.PDTEnabled = false
	m := NewComplianceManager(cfg, nil)
	state := NewPDTState(1_000)

	for i := 0; i < 5; i++ {
		m.RecordDayTrade(state, friday)
	}
	ok, _ := m.CanDayTrade(state, friday)
	assert.True(t, ok)
}

// holidayCalendar wraps the weekday fallback with one extra holiday.
type holidayCalendar struct {
	holiday time.Time
}

func (h holidayCalendar) IsBusinessDay(d time.Time) bool {
	if d.Year() == h.holiday.Year() && d.YearDay() == h.holiday.YearDay() {
		return false
	}
	return weekdayCalendar{}.IsBusinessDay(d)
}

func (h holidayCalendar) BusinessDaysAgo(d time.Time, n int) time.Time {
	cur := d
	for !h.IsBusinessDay(cur) {
		cur = cur.AddDate(0, 0, -1)
	}
	for i := 0; i < n; i++ {
		cur = cur.AddDate(0, 0, -1)
		for !h.IsBusinessDay(cur) {
			cur = cur.AddDate(0, 0, -1)
		}
	}
	return cur
}
