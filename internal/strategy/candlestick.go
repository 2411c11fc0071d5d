package strategy

import (
	"strings"

	"github.com/sawpanic/equityrun/internal/domain"
)

// Candlestick pattern detectors over the last bar(s). Patterns are optional
// entry confirmation, never a standalone signal.

func bodySize(b domain.Bar) float64 {
	if b.Close > b.Open {
		return b.Close - b.Open
	}
	return b.Open - b.Close
}

func upperWick(b domain.Bar) float64 {
	top := b.Open
	if b.Close > top {
		top = b.Close
	}
	return b.High - top
}

func lowerWick(b domain.Bar) float64 {
	bottom := b.Open
	if b.Close < bottom {
		bottom = b.Close
	}
	return bottom - b.Low
}

func rangeSize(b domain.Bar) float64 {
	r := b.High - b.Low
	if r <= 0 {
		return 1e-9
	}
	return r
}

func isBullish(b domain.Bar) bool { return b.Close > b.Open }
func isBearish(b domain.Bar) bool { return b.Close < b.Open }

// bullishEngulfing: current bar bullish, previous bearish, current body
// engulfs the previous body. A reversal hint after a dip.
func bullishEngulfing(bars []domain.Bar) bool {
	if len(bars) < 2 {
		return false
	}
	curr, prev := bars[len(bars)-1], bars[len(bars)-2]
	if !isBullish(curr) || !isBearish(prev) {
		return false
	}
	return curr.Close >= prev.Open && curr.Open <= prev.Close
}

// hammer: small bullish body at the top of the range with a long lower wick.
func hammer(bars []domain.Bar) bool {
	if len(bars) < 1 {
		return false
	}
	b := bars[len(bars)-1]
	body := bodySize(b)
	if body <= 0 {
		return false
	}
	return isBullish(b) && lowerWick(b) >= body*2.0 && upperWick(b) <= body*0.5
}

// doji: open ≈ close relative to the bar range.
func doji(bars []domain.Bar) bool {
	if len(bars) < 1 {
		return false
	}
	b := bars[len(bars)-1]
	return bodySize(b)/rangeSize(b) <= 0.15
}

// detectAnyPattern reports whether any named pattern is present on the last
// bar. An empty pattern list always passes.
func detectAnyPattern(bars []domain.Bar, patterns []string) bool {
	if len(patterns) == 0 || len(bars) == 0 {
		return true
	}
	for _, name := range patterns {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "bullish_engulfing":
			if bullishEngulfing(bars) {
				return true
			}
		case "hammer":
			if hammer(bars) {
				return true
			}
		case "doji":
			if doji(bars) {
				return true
			}
		}
	}
	return false
}
