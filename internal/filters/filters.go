package filters

import (
	"fmt"
	"strings"
	"time"

	"github.com/sawpanic/equityrun/internal/config"
)

// Result is the outcome of a single trade filter.
type Result struct {
	Allowed bool
	Reason  string
}

func allow() Result { return Result{Allowed: true} }

// MacroEventBlackout blocks all trading on configured dates (FOMC, CPI) or
// intraday windows of a date. Windows may wrap midnight.
type MacroEventBlackout struct {
	enabled bool
	dates   map[string]struct{}
	windows []macroWindow
}

type macroWindow struct {
	date       string
	start, end int // minutes since midnight
}

func NewMacroEventBlackout(cfg config.TradeFiltersConfig) (*MacroEventBlackout, error) {
	mb := cfg.MacroBlackout
	f := &MacroEventBlackout{enabled: mb.Enabled, dates: make(map[string]struct{}, len(mb.BlackoutDates))}
	for _, d := range mb.BlackoutDates {
		if _, err := time.Parse("2006-01-02", d); err != nil {
			return nil, fmt.Errorf("macro blackout date %q: %w", d, err)
		}
		f.dates[d] = struct{}{}
	}
	for _, w := range mb.BlackoutWindows {
		if _, err := time.Parse("2006-01-02", w.Date); err != nil {
			return nil, fmt.Errorf("macro blackout window date %q: %w", w.Date, err)
		}
		start, err := parseClock(w.Start)
		if err != nil {
			return nil, err
		}
		end, err := parseClock(w.End)
		if err != nil {
			return nil, err
		}
		f.windows = append(f.windows, macroWindow{date: w.Date, start: start, end: end})
	}
	return f, nil
}

func parseClock(s string) (int, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("bad clock %q: %w", s, err)
	}
	return h*60 + m, nil
}

func (f *MacroEventBlackout) Check(dt time.Time) Result {
	if !f.enabled {
		return allow()
	}
	day := dt.Format("2006-01-02")
	if _, ok := f.dates[day]; ok {
		return Result{Reason: fmt.Sprintf("macro blackout date %s", day)}
	}
	min := dt.Hour()*60 + dt.Minute()
	for _, w := range f.windows {
		if w.date != day {
			continue
		}
		inside := false
		if w.start <= w.end {
			inside = min >= w.start && min < w.end
		} else {
			inside = min >= w.start || min < w.end
		}
		if inside {
			return Result{Reason: fmt.Sprintf("macro blackout window %s %02d:%02d-%02d:%02d",
				day, w.start/60, w.start%60, w.end/60, w.end%60)}
		}
	}
	return allow()
}

// EarningsBlackout blocks a symbol for N days before/after its earnings
// dates.
type EarningsBlackout struct {
	enabled    bool
	daysBefore int
	daysAfter  int
	dates      map[string][]time.Time // upper-cased symbol -> earnings dates
}

func NewEarningsBlackout(cfg config.TradeFiltersConfig) (*EarningsBlackout, error) {
	eb := cfg.EarningsBlackout
	f := &EarningsBlackout{
		enabled:    eb.Enabled,
		daysBefore: eb.DaysBefore,
		daysAfter:  eb.DaysAfter,
		dates:      make(map[string][]time.Time, len(eb.EarningsDates)),
	}
	for sym, dates := range eb.EarningsDates {
		for _, d := range dates {
			parsed, err := time.Parse("2006-01-02", d)
			if err != nil {
				return nil, fmt.Errorf("earnings date %q for %s: %w", d, sym, err)
			}
			key := strings.ToUpper(sym)
			f.dates[key] = append(f.dates[key], parsed)
		}
	}
	return f, nil
}

func (f *EarningsBlackout) Check(symbol string, dt time.Time) Result {
	if !f.enabled {
		return allow()
	}
	day := time.Date(dt.Year(), dt.Month(), dt.Day(), 0, 0, 0, 0, time.UTC)
	for _, ed := range f.dates[strings.ToUpper(symbol)] {
		start := ed.AddDate(0, 0, -f.daysBefore)
		end := ed.AddDate(0, 0, f.daysAfter)
		if !day.Before(start) && !day.After(end) {
			return Result{Reason: fmt.Sprintf("earnings blackout for %s around %s", symbol, ed.Format("2006-01-02"))}
		}
	}
	return allow()
}

// VolatilityDoNotTrade blocks entries when volatility or spread run hot.
// Missing metrics skip their sub-check.
type VolatilityDoNotTrade struct {
	enabled      bool
	maxATRPct    float64
	maxSpreadPct float64
}

func NewVolatilityDoNotTrade(cfg config.TradeFiltersConfig) *VolatilityDoNotTrade {
	vd := cfg.VolatilityDNT
	return &VolatilityDoNotTrade{enabled: vd.Enabled, maxATRPct: vd.MaxATRPct, maxSpreadPct: vd.MaxSpreadPct}
}

func (f *VolatilityDoNotTrade) Check(atrPct, spreadPct *float64) Result {
	if !f.enabled {
		return allow()
	}
	if atrPct != nil && *atrPct > f.maxATRPct {
		return Result{Reason: fmt.Sprintf("volatility DNT: ATR%% %.2f > %.2f", *atrPct, f.maxATRPct)}
	}
	if spreadPct != nil && *spreadPct > f.maxSpreadPct {
		return Result{Reason: fmt.Sprintf("volatility DNT: spread %.2f%% > %.2f%%", *spreadPct, f.maxSpreadPct)}
	}
	return allow()
}
