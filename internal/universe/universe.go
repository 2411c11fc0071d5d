package universe

import (
	"fmt"

	"github.com/sawpanic/equityrun/internal/config"
)

// Filter restricts trading to a configured set of liquid symbols. Optional
// liquidity metrics tighten the check when supplied; absent metrics are
// skipped, not failed.
type Filter struct {
	symbols               map[string]struct{}
	minAvgDollarVolume30d float64
	minVolumeVsATR        float64
}

func NewFilter(cfg config.UniverseConfig) *Filter {
	f := &Filter{
		symbols:               make(map[string]struct{}, len(cfg.Symbols)),
		minAvgDollarVolume30d: cfg.MinAvgDollarVolume30d,
		minVolumeVsATR:        cfg.MinVolumeVsATR,
	}
	for _, s := range cfg.Symbols {
		f.symbols[s] = struct{}{}
	}
	return f
}

// IsEligible reports membership plus the optional liquidity floors.
func (f *Filter) IsEligible(symbol string, avgDollarVolume30d, volumeVsATR *float64) bool {
	if _, ok := f.symbols[symbol]; !ok {
		return false
	}
	if avgDollarVolume30d != nil && *avgDollarVolume30d < f.minAvgDollarVolume30d {
		return false
	}
	if volumeVsATR != nil && *volumeVsATR < f.minVolumeVsATR {
		return false
	}
	return true
}

// QualityResult is the outcome of a market-quality check.
type QualityResult struct {
	OK              bool
	Reason          string
	VolatilitySpike bool
}

// QualityGate gates every trade on spread, volume/ATR and volatility-spike
// conditions. Each sub-check is skipped when its input is absent.
type QualityGate struct {
	cfg config.MarketQualityConfig
}

func NewQualityGate(cfg config.MarketQualityConfig) *QualityGate {
	return &QualityGate{cfg: cfg}
}

// Check evaluates the sub-checks in order and reports the first failure.
func (g *QualityGate) Check(spreadPct, volumeATRRatio, atrMultiple *float64) QualityResult {
	if spreadPct != nil && *spreadPct > g.cfg.MaxSpreadPct {
		return QualityResult{Reason: fmt.Sprintf("spread %.4f%% > max %.4f%%", *spreadPct, g.cfg.MaxSpreadPct)}
	}
	if volumeATRRatio != nil && *volumeATRRatio < g.cfg.MinVolumeATRRatio {
		return QualityResult{Reason: fmt.Sprintf("volume/ATR %.4f < min %.4f", *volumeATRRatio, g.cfg.MinVolumeATRRatio)}
	}
	if g.cfg.BlockOnVolatilitySpike && atrMultiple != nil && *atrMultiple >= g.cfg.VolatilitySpikeATRMultiple {
		return QualityResult{
			Reason:          fmt.Sprintf("volatility spike: ATR multiple %.2f >= %.2f", *atrMultiple, g.cfg.VolatilitySpikeATRMultiple),
			VolatilitySpike: true,
		}
	}
	return QualityResult{OK: true}
}
