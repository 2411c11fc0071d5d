package compliance

import (
	"fmt"
	"time"

	"github.com/sawpanic/equityrun/internal/config"
)

// BusinessCalendar is the slice of the market calendar compliance needs to
// compute trailing business-day windows.
type BusinessCalendar interface {
	IsBusinessDay(d time.Time) bool
	BusinessDaysAgo(d time.Time, n int) time.Time
}

// PDTState tracks the facts the pattern-day-trader rule depends on. Mutated
// only by ComplianceManager. DayTradeDates is append-only in spirit: the
// counting window prunes entries that have aged out, it never rewrites them.
type PDTState struct {
	Equity        float64     `json:"equity"`
	DayTradeDates []time.Time `json:"day_trade_dates"`
}

// NewPDTState returns an empty state with the given starting equity.
func NewPDTState(equity float64) *PDTState {
	return &PDTState{Equity: equity}
}

// ComplianceManager enforces the PDT day-trade limit over a rolling
// business-day window.
type ComplianceManager struct {
	cfg config.ComplianceConfig
	cal BusinessCalendar
}

// NewComplianceManager builds a manager over the given calendar. A nil
// calendar falls back to weekends-only business days.
func NewComplianceManager(cfg config.ComplianceConfig, cal BusinessCalendar) *ComplianceManager {
	if cal == nil {
		cal = weekdayCalendar{}
	}
	return &ComplianceManager{cfg: cfg, cal: cal}
}

// UpdateEquity overwrites the stored equity. Call before every CanDayTrade.
func (m *ComplianceManager) UpdateEquity(state *PDTState, equity float64) {
	state.Equity = equity
}

// CanDayTrade always returns a decision. Accounts at or above the PDT
// minimum are unrestricted; below it, at most MaxDayTrades day trades are
// allowed within the trailing window of business days ending at tradeDate.
func (m *ComplianceManager) CanDayTrade(state *PDTState, tradeDate time.Time) (bool, string) {
	if !m.cfg.PDTEnabled || !m.cfg.MarginAccount {
		return true, ""
	}
	if state.Equity >= m.cfg.PDTMinEquity {
		return true, ""
	}

	recent := m.countInWindow(state, tradeDate)
	if recent >= m.cfg.MaxDayTrades {
		return false, fmt.Sprintf("PDT: equity $%.0f below $%.0f; day trade limit (%d in %d business days) reached",
			state.Equity, m.cfg.PDTMinEquity, m.cfg.MaxDayTrades, m.cfg.WindowBusinessDays)
	}
	return true, ""
}

// DayTradesInWindow reports the current rolling-window count, e.g. for
// status reporting.
func (m *ComplianceManager) DayTradesInWindow(state *PDTState, at time.Time) int {
	return m.countInWindow(state, at)
}

// RecordDayTrade appends unconditionally; callers check CanDayTrade first.
func (m *ComplianceManager) RecordDayTrade(state *PDTState, tradeDate time.Time) {
	state.DayTradeDates = append(state.DayTradeDates, dateOnly(tradeDate))
}

// countInWindow counts day trades within the trailing window and prunes
// aged-out entries so per-call cost stays independent of total history.
func (m *ComplianceManager) countInWindow(state *PDTState, tradeDate time.Time) int {
	cutoff := dateOnly(m.cal.BusinessDaysAgo(tradeDate, m.cfg.WindowBusinessDays-1))
	end := dateOnly(tradeDate)

	kept := state.DayTradeDates[:0]
	count := 0
	for _, d := range state.DayTradeDates {
		if d.Before(cutoff) {
			continue
		}
		kept = append(kept, d)
		if !d.After(end) {
			count++
		}
	}
	state.DayTradeDates = kept
	return count
}

func dateOnly(d time.Time) time.Time {
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, d.Location())
}

// weekdayCalendar treats every weekday as a business day.
type weekdayCalendar struct{}

func (weekdayCalendar) IsBusinessDay(d time.Time) bool {
	wd := d.Weekday()
	return wd != time.Saturday && wd != time.Sunday
}

func (c weekdayCalendar) BusinessDaysAgo(d time.Time, n int) time.Time {
	cur := d
	for !c.IsBusinessDay(cur) {
		cur = cur.AddDate(0, 0, -1)
	}
	for i := 0; i < n; i++ {
		cur = cur.AddDate(0, 0, -1)
		for !c.IsBusinessDay(cur) {
			cur = cur.AddDate(0, 0, -1)
		}
	}
	return cur
}
