package risk

import (
	"fmt"
	"time"

	"github.com/sawpanic/equityrun/internal/config"
)

// EquityPoint is one observation on the equity curve.
type EquityPoint struct {
	Timestamp time.Time `json:"ts"`
	Equity    float64   `json:"equity"`
}

// PortfolioRiskState is the mutable risk record for one account. It is
// mutated only by PortfolioRiskManager and is not safe for concurrent use
// without external locking. Peak equity persists across days; the daily
// counters reset on the first call of each trading day.
type PortfolioRiskState struct {
	EquityCurve          []EquityPoint  `json:"equity_curve"`
	PeakEquity           float64        `json:"peak_equity"`
	DailyPnLPct          float64        `json:"daily_pnl_pct"`
	DailyTradeCount      int            `json:"daily_trade_count"`
	DailyTradesPerSymbol map[string]int `json:"daily_trades_per_symbol"`
	LastTradeDate        string         `json:"last_trade_date"` // YYYY-MM-DD, empty before first reset
	SafeMode             bool           `json:"safe_mode"`
	TradingStoppedToday  bool           `json:"trading_stopped_today"`
}

// NewPortfolioRiskState returns an empty state ready for the first session.
func NewPortfolioRiskState() *PortfolioRiskState {
	return &PortfolioRiskState{DailyTradesPerSymbol: make(map[string]int)}
}

// PortfolioRiskManager decides day-level and drawdown-level trading
// eligibility. It is a pure function of (state, inputs) plus its config;
// all history lives in the state object.
type PortfolioRiskManager struct {
	cfg config.PortfolioRiskConfig
}

func NewPortfolioRiskManager(cfg config.PortfolioRiskConfig) *PortfolioRiskManager {
	return &PortfolioRiskManager{cfg: cfg}
}

func dateKey(d time.Time) string { return d.Format("2006-01-02") }

// CheckDailyReset zeroes the daily counters when the calendar day changes.
// Idempotent within the same day.
func (m *PortfolioRiskManager) CheckDailyReset(state *PortfolioRiskState, today time.Time) {
	key := dateKey(today)
	if state.LastTradeDate == key {
		return
	}
	state.DailyPnLPct = 0
	state.DailyTradeCount = 0
	state.DailyTradesPerSymbol = make(map[string]int)
	state.TradingStoppedToday = false
	state.LastTradeDate = key
}

// UpdateEquity appends to the equity curve and advances the peak. History is
// never removed here.
func (m *PortfolioRiskManager) UpdateEquity(state *PortfolioRiskState, dt time.Time, equity float64) {
	state.EquityCurve = append(state.EquityCurve, EquityPoint{Timestamp: dt, Equity: equity})
	if equity > state.PeakEquity {
		state.PeakEquity = equity
	}
}

// CurrentDrawdownPct is the percentage decline from peak equity, clamped at
// zero when equity is at or above the peak.
func (m *PortfolioRiskManager) CurrentDrawdownPct(state *PortfolioRiskState, equity float64) float64 {
	if state.PeakEquity <= 0 {
		return 0
	}
	dd := (state.PeakEquity - equity) / state.PeakEquity * 100.0
	if dd < 0 {
		return 0
	}
	return dd
}

// CanTrade runs the day-level eligibility checks in fixed order. It always
// returns a decision; extreme inputs deny, they never error. Safe mode is
// entered here on a drawdown breach and cleared only once the drawdown has
// recovered below the recovery threshold (measured against peak equity).
func (m *PortfolioRiskManager) CanTrade(state *PortfolioRiskState, equity float64, symbol string, today time.Time) (bool, string) {
	m.CheckDailyReset(state, today)

	dd := m.CurrentDrawdownPct(state, equity)

	if state.SafeMode {
		if dd >= m.cfg.RecoveryThresholdPct {
			return false, fmt.Sprintf("safe mode active: drawdown %.2f%% not yet recovered below %.2f%%",
				dd, m.cfg.RecoveryThresholdPct)
		}
		state.SafeMode = false
	}

	if state.TradingStoppedToday {
		return false, "daily loss limit hit; trading stopped for the day"
	}

	if state.DailyPnLPct <= m.cfg.DailyLossLimitPct {
		state.TradingStoppedToday = true
		return false, fmt.Sprintf("daily loss limit %.2f%% hit (current %.2f%%)",
			m.cfg.DailyLossLimitPct, state.DailyPnLPct)
	}

	if dd >= m.cfg.MaxDrawdownPct && m.cfg.SafeModeAfterMaxDD {
		state.SafeMode = true
		return false, fmt.Sprintf("max drawdown %.2f%% hit (current %.2f%%); entering safe mode",
			m.cfg.MaxDrawdownPct, dd)
	}

	if state.DailyTradeCount >= m.cfg.MaxTradesPerDay {
		return false, fmt.Sprintf("max trades per day (%d) reached", m.cfg.MaxTradesPerDay)
	}

	if state.DailyTradesPerSymbol[symbol] >= m.cfg.MaxTradesPerSymbolPerDay {
		return false, fmt.Sprintf("max trades per symbol per day (%d) reached for %s",
			m.cfg.MaxTradesPerSymbolPerDay, symbol)
	}

	return true, ""
}

// RecordTrade increments the daily counters and accumulates realized P&L.
// Callers invoke it exactly once per completed trade; no deduplication here.
func (m *PortfolioRiskManager) RecordTrade(state *PortfolioRiskState, symbol string, pnlPct float64) {
	if state.DailyTradesPerSymbol == nil {
		state.DailyTradesPerSymbol = make(map[string]int)
	}
	state.DailyTradeCount++
	state.DailyTradesPerSymbol[symbol]++
	state.DailyPnLPct += pnlPct
}
