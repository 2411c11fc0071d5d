package strategy

import (
	"fmt"

	"github.com/sawpanic/equityrun/internal/config"
	"github.com/sawpanic/equityrun/internal/domain"
)

// Player focus profiles tune the trend parameters toward the flow being
// followed.
const (
	FocusNeutral       = "neutral"
	FocusInstitutional = "institutional"
	FocusRetail        = "retail"
)

// TrendFollowing is the default mechanical strategy: price above the slow
// MA, pullback to the fast MA, volatility filter, exits defined before
// entries (stop, optional target, time, kill-switch).
type TrendFollowing struct {
	maFast              int
	maSlow              int
	pullbackTouch       bool
	pullbackTolerance   float64
	atrPeriod           int
	maxATRPctForEntry   float64
	stopLossPct         float64
	takeProfitPct       float64
	timeBarsExit        int
	killSwitchSpreadPct float64
	killSwitchATRMult   float64
	playerFocus         string
	minVolumeRatio      float64
	candlestickEnabled  bool
	candlestickPatterns []string
}

// NewTrendFollowing builds the strategy from config, applying the retail
// profile overrides when selected.
func NewTrendFollowing(cfg config.StrategyConfig) (*TrendFollowing, error) {
	focus := cfg.PlayerFocus
	if focus == "" {
		focus = FocusNeutral
	}
	switch focus {
	case FocusNeutral, FocusInstitutional, FocusRetail:
	default:
		return nil, fmt.Errorf("unknown player_focus %q", focus)
	}

	s := &TrendFollowing{
		maFast:              cfg.TrendFollowing.MAFast,
		maSlow:              cfg.TrendFollowing.MASlow,
		pullbackTouch:       cfg.TrendFollowing.PullbackTouchMAFast,
		pullbackTolerance:   cfg.TrendFollowing.PullbackTolerance,
		atrPeriod:           cfg.TrendFollowing.ATRPeriod,
		maxATRPctForEntry:   cfg.TrendFollowing.MaxATRPctForEntry,
		stopLossPct:         cfg.Exits.StopLossPct,
		takeProfitPct:       cfg.Exits.TakeProfitPct,
		timeBarsExit:        cfg.Exits.TimeBarsExit,
		killSwitchSpreadPct: cfg.Exits.KillSwitch.MaxSpreadPct,
		killSwitchATRMult:   cfg.Exits.KillSwitch.MaxATRMultiple,
		playerFocus:         focus,
		minVolumeRatio:      cfg.Institutional.MinVolumeRatioVsAvg,
		candlestickEnabled:  cfg.CandlestickFilter.Enabled,
		candlestickPatterns: cfg.CandlestickFilter.Patterns,
	}
	if focus == FocusRetail {
		s.maFast = cfg.Retail.MAFast
		s.maSlow = cfg.Retail.MASlow
		s.timeBarsExit = cfg.Retail.TimeBarsExit
	}
	if s.maFast <= 0 || s.maSlow <= 0 || s.maFast >= s.maSlow {
		return nil, fmt.Errorf("bad MA periods fast=%d slow=%d", s.maFast, s.maSlow)
	}
	return s, nil
}

// GenerateEntry returns an entry signal when trend, pullback, volatility and
// the optional confirmation filters all pass, nil otherwise. Insufficient
// history is a nil, not an error. spreadPct/atrMultiple are optional
// kill-switch guards; nil skips them.
func (s *TrendFollowing) GenerateEntry(symbol string, bars []domain.Bar, spreadPct, atrMultiple *float64) *domain.EntrySignal {
	if len(bars) < s.maSlow {
		return nil
	}

	price := bars[len(bars)-1].Close
	maFast := sma(bars, s.maFast)
	maSlow := sma(bars, s.maSlow)
	curATRPct := atrPct(bars, s.atrPeriod)

	if curATRPct > s.maxATRPctForEntry {
		return nil
	}
	// uptrend: price above the slow MA
	if price <= maSlow {
		return nil
	}
	// pullback: price at or near the fast MA
	if s.pullbackTouch && maFast > 0 && abs(price-maFast)/maFast > s.pullbackTolerance {
		return nil
	}
	// don't enter into conditions the kill-switch would immediately exit
	if spreadPct != nil && *spreadPct > s.killSwitchSpreadPct {
		return nil
	}
	if atrMultiple != nil && *atrMultiple > s.killSwitchATRMult {
		return nil
	}
	// institutional focus: require elevated volume as a participation proxy
	if s.playerFocus == FocusInstitutional && len(bars) >= 20 {
		if avg := avgVolume(bars, 20); avg > 0 {
			if bars[len(bars)-1].Volume/avg < s.minVolumeRatio {
				return nil
			}
		}
	}
	if s.candlestickEnabled && !detectAnyPattern(bars, s.candlestickPatterns) {
		return nil
	}

	return &domain.EntrySignal{
		Symbol:        symbol,
		Side:          domain.SideBuy,
		Strength:      1.0,
		StopPct:       s.stopLossPct,
		TakeProfitPct: s.takeProfitPct,
		TimeBarsExit:  s.timeBarsExit,
		Metadata: map[string]float64{
			"ma_fast": maFast,
			"ma_slow": maSlow,
			"atr_pct": curATRPct,
		},
	}
}

// CheckExit evaluates the exits in precedence order: stop, target, time,
// kill-switch. Nil means hold.
func (s *TrendFollowing) CheckExit(symbol string, entryPrice, currentPrice float64, barsHeld int, spreadPct, atrMultiple *float64) *domain.ExitSignal {
	if entryPrice <= 0 {
		return nil
	}
	retPct := (currentPrice - entryPrice) / entryPrice * 100.0

	if retPct <= -s.stopLossPct {
		return &domain.ExitSignal{Symbol: symbol, Reason: domain.ExitStopLoss, Metadata: map[string]float64{"ret_pct": retPct}}
	}
	if s.takeProfitPct > 0 && retPct >= s.takeProfitPct {
		return &domain.ExitSignal{Symbol: symbol, Reason: domain.ExitTakeProfit, Metadata: map[string]float64{"ret_pct": retPct}}
	}
	if barsHeld >= s.timeBarsExit {
		return &domain.ExitSignal{Symbol: symbol, Reason: domain.ExitTimeBars, Metadata: map[string]float64{"bars_held": float64(barsHeld)}}
	}
	if spreadPct != nil && *spreadPct > s.killSwitchSpreadPct {
		return &domain.ExitSignal{Symbol: symbol, Reason: domain.ExitKillSwitch, Metadata: map[string]float64{"spread_pct": *spreadPct}}
	}
	if atrMultiple != nil && *atrMultiple > s.killSwitchATRMult {
		return &domain.ExitSignal{Symbol: symbol, Reason: domain.ExitKillSwitch, Metadata: map[string]float64{"atr_multiple": *atrMultiple}}
	}
	return nil
}
