package calendar

import (
	"fmt"
	"time"

	"github.com/sawpanic/equityrun/internal/config"
)

// SessionType identifies which market session a timestamp falls in.
type SessionType string

const (
	SessionPreMarket  SessionType = "pre_market"
	SessionRegular    SessionType = "regular"
	SessionAfterHours SessionType = "after_hours"
	SessionClosed     SessionType = "closed"
)

type window struct {
	start        int // minutes since midnight
	end          int
	tradeAllowed bool
}

// MarketCalendar answers session and holiday questions for one exchange.
// Times are interpreted in the caller's clock; the engine passes exchange
// local time throughout.
type MarketCalendar struct {
	preMarket  window
	regular    window
	afterHours window
	holidays   map[string]struct{} // YYYY-MM-DD
}

// New builds a calendar from session config and a holiday list.
func New(sessions config.MarketSessionsConfig, holidays []string) (*MarketCalendar, error) {
	mc := &MarketCalendar{holidays: make(map[string]struct{}, len(holidays))}

	var err error
	if mc.preMarket, err = parseWindow(sessions.PreMarket); err != nil {
		return nil, fmt.Errorf("pre_market session: %w", err)
	}
	if mc.regular, err = parseWindow(sessions.Regular); err != nil {
		return nil, fmt.Errorf("regular session: %w", err)
	}
	if mc.afterHours, err = parseWindow(sessions.AfterHours); err != nil {
		return nil, fmt.Errorf("after_hours session: %w", err)
	}

	for _, h := range holidays {
		if _, err := time.Parse("2006-01-02", h); err != nil {
			return nil, fmt.Errorf("holiday %q: %w", h, err)
		}
		mc.holidays[h] = struct{}{}
	}
	return mc, nil
}

func parseWindow(w config.SessionWindow) (window, error) {
	start, err := parseClock(w.Start)
	if err != nil {
		return window{}, err
	}
	end, err := parseClock(w.End)
	if err != nil {
		return window{}, err
	}
	return window{start: start, end: end, tradeAllowed: w.TradeAllowed}, nil
}

func parseClock(s string) (int, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("bad clock %q: %w", s, err)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("bad clock %q", s)
	}
	return h*60 + m, nil
}

func (w window) contains(min int) bool {
	if w.start <= w.end {
		return min >= w.start && min < w.end
	}
	// wrap-around window
	return min >= w.start || min < w.end
}

// SessionAt reports which session dt falls in. Weekends and holidays are
// always CLOSED.
func (mc *MarketCalendar) SessionAt(dt time.Time) SessionType {
	if !mc.IsBusinessDay(dt) {
		return SessionClosed
	}
	min := dt.Hour()*60 + dt.Minute()
	switch {
	case mc.preMarket.contains(min):
		return SessionPreMarket
	case mc.regular.contains(min):
		return SessionRegular
	case mc.afterHours.contains(min):
		return SessionAfterHours
	default:
		return SessionClosed
	}
}

// TradingAllowed reports whether the session at dt permits trading.
func (mc *MarketCalendar) TradingAllowed(dt time.Time) bool {
	switch mc.SessionAt(dt) {
	case SessionPreMarket:
		return mc.preMarket.tradeAllowed
	case SessionRegular:
		return mc.regular.tradeAllowed
	case SessionAfterHours:
		return mc.afterHours.tradeAllowed
	default:
		return false
	}
}

// IsBusinessDay reports whether d is a weekday and not a configured holiday.
func (mc *MarketCalendar) IsBusinessDay(d time.Time) bool {
	if wd := d.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return false
	}
	_, holiday := mc.holidays[d.Format("2006-01-02")]
	return !holiday
}

// BusinessDaysAgo walks back n business days from d (n=0 returns the nearest
// business day at or before d). Used for trailing-window cutoffs.
func (mc *MarketCalendar) BusinessDaysAgo(d time.Time, n int) time.Time {
	cur := d
	for !mc.IsBusinessDay(cur) {
		cur = cur.AddDate(0, 0, -1)
	}
	for i := 0; i < n; i++ {
		cur = cur.AddDate(0, 0, -1)
		for !mc.IsBusinessDay(cur) {
			cur = cur.AddDate(0, 0, -1)
		}
	}
	return cur
}

// AddHoliday registers an ad-hoc closure (half-days are modeled as holidays
// by callers that need them).
func (mc *MarketCalendar) AddHoliday(d time.Time) {
	mc.holidays[d.Format("2006-01-02")] = struct{}{}
}
