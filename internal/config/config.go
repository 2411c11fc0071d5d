package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the full engine configuration. Every threshold the gate chain
// and the managers consult lives here; the zero value is not usable, start
// from DefaultConfig and override via YAML.
type Config struct {
	PositionSizing PositionSizingConfig `yaml:"position_sizing"`
	PortfolioRisk  PortfolioRiskConfig  `yaml:"portfolio_risk"`
	Compliance     ComplianceConfig     `yaml:"compliance"`
	Execution      ExecutionConfig      `yaml:"execution"`
	MarketSessions MarketSessionsConfig `yaml:"market_sessions"`
	Holidays       []string             `yaml:"holidays"` // YYYY-MM-DD
	Universe       UniverseConfig       `yaml:"universe"`
	MarketQuality  MarketQualityConfig  `yaml:"market_quality"`
	TradeFilters   TradeFiltersConfig   `yaml:"trade_filters"`
	Strategy       StrategyConfig       `yaml:"strategy"`
}

// PositionSizingConfig controls the risk-budget share computation.
type PositionSizingConfig struct {
	RiskPerTradePct          float64 `yaml:"risk_per_trade_pct"`            // % of equity risked per trade
	MaxOpenRiskPct           float64 `yaml:"max_open_risk_pct"`             // ceiling on summed open risk
	MaxExposurePerSymbolPct  float64 `yaml:"max_exposure_per_symbol_pct"`   // notional cap per symbol, % of equity
	MaxExposurePerSectorPct  float64 `yaml:"max_exposure_per_sector_pct"`   // notional cap per sector, % of equity
	HighVolReductionEnabled  bool    `yaml:"high_vol_reduction_enabled"`    // halve size in high-vol regimes
	HighVolATRThresholdPct   float64 `yaml:"high_vol_atr_threshold_pct"`    // ATR% above which size is reduced
	HighVolSizeMultiplier    float64 `yaml:"high_vol_size_multiplier"`      // e.g. 0.5
}

// PortfolioRiskConfig controls day-level and drawdown-level trading stops.
// DailyLossLimitPct is a negative threshold; the drawdown thresholds are
// positive percentages measured down from peak equity.
type PortfolioRiskConfig struct {
	DailyLossLimitPct        float64 `yaml:"daily_loss_limit_pct"`          // e.g. -2.0
	MaxDrawdownPct           float64 `yaml:"max_drawdown_pct"`              // e.g. 10.0
	SafeModeAfterMaxDD       bool    `yaml:"safe_mode_after_max_dd"`
	RecoveryThresholdPct     float64 `yaml:"recovery_threshold_pct"`        // drawdown must fall below this to resume
	MaxTradesPerDay          int     `yaml:"max_trades_per_day"`
	MaxTradesPerSymbolPerDay int     `yaml:"max_trades_per_symbol_per_day"`
}

// ComplianceConfig controls pattern-day-trader enforcement.
type ComplianceConfig struct {
	PDTEnabled       bool    `yaml:"pdt_enabled"`
	MarginAccount    bool    `yaml:"margin_account"`
	PDTMinEquity     float64 `yaml:"pdt_min_equity"`      // default 25000
	MaxDayTrades     int     `yaml:"max_day_trades"`       // below threshold, default 3
	WindowBusinessDays int   `yaml:"window_business_days"` // trailing window, default 5
}

// ExecutionConfig controls order construction and slippage policy.
type ExecutionConfig struct {
	PreferLimitOrders       bool    `yaml:"prefer_limit_orders"`
	LimitOrderOffsetTicks   int     `yaml:"limit_order_offset_ticks"`
	MaxSpreadPctToTrade     float64 `yaml:"max_spread_pct_to_trade"`
	CancelReplaceOnPartial  bool    `yaml:"cancel_replace_on_partial"`
	MinFillRatio            float64 `yaml:"min_fill_ratio"`             // below this, cancel/replace
	SlippageWindowFills     int     `yaml:"slippage_window_fills"`      // 0 = full history
	BlockStrategyAboveBps   float64 `yaml:"block_strategy_above_bps"`   // sticky block threshold
}

// SessionWindow is one tradeable (or not) span of the day, local exchange time.
type SessionWindow struct {
	Start        string `yaml:"start"` // HH:MM
	End          string `yaml:"end"`
	TradeAllowed bool   `yaml:"trade_allowed"`
}

// MarketSessionsConfig declares the three session windows.
type MarketSessionsConfig struct {
	PreMarket  SessionWindow `yaml:"pre_market"`
	Regular    SessionWindow `yaml:"regular"`
	AfterHours SessionWindow `yaml:"after_hours"`
}

// UniverseConfig restricts the tradeable symbol set by liquidity.
type UniverseConfig struct {
	Symbols                 []string `yaml:"symbols"`
	MinAvgDollarVolume30d   float64  `yaml:"min_avg_dollar_volume_30d"`
	MinVolumeVsATR          float64  `yaml:"min_volume_vs_atr"`
}

// MarketQualityConfig gates every trade on microstructure quality.
type MarketQualityConfig struct {
	MaxSpreadPct              float64 `yaml:"max_spread_pct"`
	MinVolumeATRRatio         float64 `yaml:"min_volume_atr_ratio"`
	BlockOnVolatilitySpike    bool    `yaml:"block_on_volatility_spike"`
	VolatilitySpikeATRMultiple float64 `yaml:"volatility_spike_atr_multiple"`
}

// BlackoutWindow is an intraday do-not-trade span on a specific date.
type BlackoutWindow struct {
	Date  string `yaml:"date"`  // YYYY-MM-DD
	Start string `yaml:"start"` // HH:MM
	End   string `yaml:"end"`
}

// TradeFiltersConfig holds the macro, earnings and volatility filters.
type TradeFiltersConfig struct {
	MacroBlackout struct {
		Enabled         bool             `yaml:"enabled"`
		BlackoutDates   []string         `yaml:"blackout_dates"`
		BlackoutWindows []BlackoutWindow `yaml:"blackout_windows"`
	} `yaml:"macro_blackout"`
	EarningsBlackout struct {
		Enabled       bool                `yaml:"enabled"`
		DaysBefore    int                 `yaml:"days_before"`
		DaysAfter     int                 `yaml:"days_after"`
		EarningsDates map[string][]string `yaml:"earnings_dates"` // symbol -> dates
	} `yaml:"earnings_blackout"`
	VolatilityDNT struct {
		Enabled      bool    `yaml:"enabled"`
		MaxATRPct    float64 `yaml:"max_atr_pct"`
		MaxSpreadPct float64 `yaml:"max_spread_pct"`
	} `yaml:"volatility_do_not_trade"`
}

// StrategyConfig parameterizes the trend-following strategy and its exits.
type StrategyConfig struct {
	PlayerFocus string `yaml:"player_focus"` // neutral | institutional | retail

	TrendFollowing struct {
		MAFast              int     `yaml:"ma_fast"`
		MASlow              int     `yaml:"ma_slow"`
		PullbackTouchMAFast bool    `yaml:"pullback_touch_ma_fast"`
		PullbackTolerance   float64 `yaml:"pullback_tolerance"` // fraction of fast MA, e.g. 0.005
		ATRPeriod           int     `yaml:"atr_period"`
		MaxATRPctForEntry   float64 `yaml:"max_atr_pct_for_entry"`
	} `yaml:"trend_following"`

	Institutional struct {
		MinVolumeRatioVsAvg float64 `yaml:"min_volume_ratio_vs_avg"`
	} `yaml:"institutional"`

	Retail struct {
		MAFast       int `yaml:"ma_fast"`
		MASlow       int `yaml:"ma_slow"`
		TimeBarsExit int `yaml:"time_bars_exit"`
	} `yaml:"retail"`

	Exits struct {
		StopLossPct   float64 `yaml:"stop_loss_pct"`
		TakeProfitPct float64 `yaml:"take_profit_pct"` // 0 disables the target
		TimeBarsExit  int     `yaml:"time_bars_exit"`
		KillSwitch    struct {
			MaxSpreadPct   float64 `yaml:"max_spread_pct"`
			MaxATRMultiple float64 `yaml:"max_atr_multiple"`
		} `yaml:"kill_switch"`
	} `yaml:"exits"`

	CandlestickFilter struct {
		Enabled  bool     `yaml:"enabled"`
		Patterns []string `yaml:"patterns"`
	} `yaml:"candlestick_filter"`
}

// DefaultConfig returns the production defaults. Values mirror the shipped
// config/trading.yaml.
func DefaultConfig() *Config {
	cfg := &Config{
		PositionSizing: PositionSizingConfig{
			RiskPerTradePct:         0.5,
			MaxOpenRiskPct:          3.0,
			MaxExposurePerSymbolPct: 20.0,
			MaxExposurePerSectorPct: 40.0,
			HighVolReductionEnabled: true,
			HighVolATRThresholdPct:  2.0,
			HighVolSizeMultiplier:   0.5,
		},
		PortfolioRisk: PortfolioRiskConfig{
			DailyLossLimitPct:        -2.0,
			MaxDrawdownPct:           10.0,
			SafeModeAfterMaxDD:       true,
			RecoveryThresholdPct:     8.0,
			MaxTradesPerDay:          15,
			MaxTradesPerSymbolPerDay: 3,
		},
		Compliance: ComplianceConfig{
			PDTEnabled:         true,
			MarginAccount:      true,
			PDTMinEquity:       25000,
			MaxDayTrades:       3,
			WindowBusinessDays: 5,
		},
		Execution: ExecutionConfig{
			PreferLimitOrders:      true,
			LimitOrderOffsetTicks:  1,
			MaxSpreadPctToTrade:    0.10,
			CancelReplaceOnPartial: true,
			MinFillRatio:           0.5,
			SlippageWindowFills:    50,
			BlockStrategyAboveBps:  25,
		},
		MarketSessions: MarketSessionsConfig{
			PreMarket:  SessionWindow{Start: "04:00", End: "09:30", TradeAllowed: false},
			Regular:    SessionWindow{Start: "09:30", End: "16:00", TradeAllowed: true},
			AfterHours: SessionWindow{Start: "16:00", End: "20:00", TradeAllowed: false},
		},
		Universe: UniverseConfig{
			Symbols:               []string{"SPY", "QQQ", "AAPL", "MSFT", "NVDA"},
			MinAvgDollarVolume30d: 50_000_000,
			MinVolumeVsATR:        0.5,
		},
		MarketQuality: MarketQualityConfig{
			MaxSpreadPct:               0.10,
			MinVolumeATRRatio:          1.0,
			BlockOnVolatilitySpike:     true,
			VolatilitySpikeATRMultiple: 2.0,
		},
	}

	cfg.TradeFilters.MacroBlackout.Enabled = true
	cfg.TradeFilters.EarningsBlackout.Enabled = true
	cfg.TradeFilters.EarningsBlackout.DaysBefore = 1
	cfg.TradeFilters.EarningsBlackout.DaysAfter = 1
	cfg.TradeFilters.VolatilityDNT.Enabled = true
	cfg.TradeFilters.VolatilityDNT.MaxATRPct = 2.5
	cfg.TradeFilters.VolatilityDNT.MaxSpreadPct = 0.15

	cfg.Strategy.PlayerFocus = "neutral"
	cfg.Strategy.TrendFollowing.MAFast = 20
	cfg.Strategy.TrendFollowing.MASlow = 200
	cfg.Strategy.TrendFollowing.PullbackTouchMAFast = true
	cfg.Strategy.TrendFollowing.PullbackTolerance = 0.005
	cfg.Strategy.TrendFollowing.ATRPeriod = 14
	cfg.Strategy.TrendFollowing.MaxATRPctForEntry = 2.0
	cfg.Strategy.Institutional.MinVolumeRatioVsAvg = 1.2
	cfg.Strategy.Retail.MAFast = 10
	cfg.Strategy.Retail.MASlow = 50
	cfg.Strategy.Retail.TimeBarsExit = 10
	cfg.Strategy.Exits.StopLossPct = 1.5
	cfg.Strategy.Exits.TakeProfitPct = 3.0
	cfg.Strategy.Exits.TimeBarsExit = 20
	cfg.Strategy.Exits.KillSwitch.MaxSpreadPct = 0.25
	cfg.Strategy.Exits.KillSwitch.MaxATRMultiple = 3.0

	return cfg
}

// LoadConfig reads a YAML config file over the defaults, so partial files
// only override what they name.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects configurations that would make the managers nonsensical.
func (c *Config) Validate() error {
	if c.PositionSizing.RiskPerTradePct <= 0 {
		return fmt.Errorf("position_sizing.risk_per_trade_pct must be > 0, got %v", c.PositionSizing.RiskPerTradePct)
	}
	if c.PositionSizing.MaxExposurePerSymbolPct <= 0 || c.PositionSizing.MaxExposurePerSectorPct <= 0 {
		return fmt.Errorf("exposure caps must be > 0")
	}
	if c.PortfolioRisk.DailyLossLimitPct >= 0 {
		return fmt.Errorf("portfolio_risk.daily_loss_limit_pct must be negative, got %v", c.PortfolioRisk.DailyLossLimitPct)
	}
	if c.PortfolioRisk.MaxDrawdownPct <= 0 {
		return fmt.Errorf("portfolio_risk.max_drawdown_pct must be > 0, got %v", c.PortfolioRisk.MaxDrawdownPct)
	}
	if c.PortfolioRisk.RecoveryThresholdPct >= c.PortfolioRisk.MaxDrawdownPct {
		return fmt.Errorf("recovery_threshold_pct %v must be below max_drawdown_pct %v",
			c.PortfolioRisk.RecoveryThresholdPct, c.PortfolioRisk.MaxDrawdownPct)
	}
	if c.Compliance.WindowBusinessDays <= 0 {
		return fmt.Errorf("compliance.window_business_days must be > 0")
	}
	if c.Execution.MinFillRatio < 0 || c.Execution.MinFillRatio > 1 {
		return fmt.Errorf("execution.min_fill_ratio must be in [0,1], got %v", c.Execution.MinFillRatio)
	}
	return nil
}
