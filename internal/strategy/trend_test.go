package strategy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/equityrun/internal/config"
	"github.com/sawpanic/equityrun/internal/domain"
)

func floatPtr(v float64) *float64 { return &v }

func testConfig() config.StrategyConfig {
	cfg := config.DefaultConfig().Strategy
	cfg.TrendFollowing.MAFast = 5
	cfg.TrendFollowing.MASlow = 20
	return cfg
}

func newTrend(t *testing.T, cfg config.StrategyConfig) *TrendFollowing {
	t.Helper()
	s, err := NewTrendFollowing(cfg)
	require.NoError(t, err)
	return s
}

// barsWithCloses builds calm bars (tight ranges, steady volume) from closes.
func barsWithCloses(closes ...float64) []domain.Bar {
	bars := make([]domain.Bar, len(closes))
	ts := time.Date(2026, 8, 3, 16, 0, 0, 0, time.UTC)
	for i, c := range closes {
		bars[i] = domain.Bar{
			Timestamp: ts.AddDate(0, 0, i),
			Open:      c - 0.1,
			High:      c + 0.2,
			Low:       c - 0.3,
			Close:     c,
			Volume:    1_000_000,
		}
	}
	return bars
}

// pullbackSetup is an uptrend with the last bars resting on the fast MA:
// 15 rising closes then 10 flat at 100, so price sits above the slow MA and
// on the fast MA.
func pullbackSetup() []domain.Bar {
	closes := make([]float64, 0, 25)
	for i := 0; i < 15; i++ {
		closes = append(closes, 90+float64(i)*0.6)
	}
	for i := 0; i < 10; i++ {
		closes = append(closes, 100)
	}
	return barsWithCloses(closes...)
}

func TestGenerateEntryOnPullback(t *testing.T) {
	s := newTrend(t, testConfig())

	sig := s.GenerateEntry("AAPL", pullbackSetup(), nil, nil)
	require.NotNil(t, sig)
	assert.Equal(t, domain.SideBuy, sig.Side)
	assert.Equal(t, 1.5, sig.StopPct)
	assert.Equal(t, 3.0, sig.TakeProfitPct)
	assert.Equal(t, 20, sig.TimeBarsExit)
	assert.Greater(t, sig.Metadata["ma_slow"], 0.0)
}

func TestGenerateEntryNilWithoutHistory(t *testing.T) {
	s := newTrend(t, testConfig())
	assert.Nil(t, s.GenerateEntry("AAPL", barsWithCloses(100, 101), nil, nil))
	assert.Nil(t, s.GenerateEntry("AAPL", nil, nil, nil))
}

func TestGenerateEntryRequiresUptrend(t *testing.T) {
	s := newTrend(t, testConfig())

	// falling series: price below the slow MA
	closes := make([]float64, 25)
	for i := range closes {
		closes[i] = 110 - float64(i)*0.5
	}
	assert.Nil(t, s.GenerateEntry("AAPL", barsWithCloses(closes...), nil, nil))
}

func TestGenerateEntryRequiresPullback(t *testing.T) {
	s := newTrend(t, testConfig())

	// price has run 3% above the fast MA: no pullback, no entry
	bars := pullbackSetup()
	last := &bars[len(bars)-1]
	last.Close = 103
	last.High = 103.2
	last.Open = 102.9
	assert.Nil(t, s.GenerateEntry("AAPL", bars, nil, nil))
}

func TestGenerateEntryKillSwitchGuards(t *testing.T) {
	s := newTrend(t, testConfig())
	bars := pullbackSetup()

	require.NotNil(t, s.GenerateEntry("AAPL", bars, floatPtr(0.10), floatPtr(1.0)))
	assert.Nil(t, s.GenerateEntry("AAPL", bars, floatPtr(0.50), nil), "spread beyond kill-switch")
	assert.Nil(t, s.GenerateEntry("AAPL", bars, nil, floatPtr(4.0)), "ATR multiple beyond kill-switch")
}

func TestGenerateEntryInstitutionalVolumeFilter(t *testing.T) {
	cfg := testConfig()
	cfg.PlayerFocus = FocusInstitutional
	s := newTrend(t, cfg)

	bars := pullbackSetup()
	assert.Nil(t, s.GenerateEntry("AAPL", bars, nil, nil), "flat volume should not pass institutional focus")

	bars[len(bars)-1].Volume = 1_500_000
	assert.NotNil(t, s.GenerateEntry("AAPL", bars, nil, nil))
}

func TestGenerateEntryRetailProfile(t *testing.T) {
	cfg := testConfig()
	cfg.PlayerFocus = FocusRetail
	cfg.Retail.MAFast = 5
	cfg.Retail.MASlow = 20
	cfg.Retail.TimeBarsExit = 10
	s := newTrend(t, cfg)

	sig := s.GenerateEntry("AAPL", pullbackSetup(), nil, nil)
	require.NotNil(t, sig)
	assert.Equal(t, 10, sig.TimeBarsExit)
}

func TestGenerateEntryCandlestickFilter(t *testing.T) {
	cfg := testConfig()
	cfg.CandlestickFilter.Enabled = true
	cfg.CandlestickFilter.Patterns = []string{"hammer"}
	s := newTrend(t, cfg)

	bars := pullbackSetup()
	assert.Nil(t, s.GenerateEntry("AAPL", bars, nil, nil), "ordinary bar is not a hammer")

	// reshape the last bar into a hammer: small body on top, long lower wick
	last := &bars[len(bars)-1]
	last.Open = 99.9
	last.Close = 100.0
	last.High = 100.02
	last.Low = 99.5
	assert.NotNil(t, s.GenerateEntry("AAPL", bars, nil, nil))
}

func TestNewTrendFollowingValidation(t *testing.T) {
	cfg := testConfig()
	cfg.PlayerFocus = "contrarian"
	_, err := NewTrendFollowing(cfg)
	require.Error(t, err)

	cfg = testConfig()
	cfg.TrendFollowing.MAFast = 50
	cfg.TrendFollowing.MASlow = 20
	_, err = NewTrendFollowing(cfg)
	require.Error(t, err)
}

func TestCheckExitPrecedence(t *testing.T) {
	s := newTrend(t, testConfig()) // stop 1.5, target 3.0, time 20

	exit := s.CheckExit("AAPL", 100, 98.0, 1, nil, nil)
	require.NotNil(t, exit)
	assert.Equal(t, domain.ExitStopLoss, exit.Reason)

	exit = s.CheckExit("AAPL", 100, 103.5, 1, nil, nil)
	require.NotNil(t, exit)
	assert.Equal(t, domain.ExitTakeProfit, exit.Reason)

	exit = s.CheckExit("AAPL", 100, 101.0, 25, nil, nil)
	require.NotNil(t, exit)
	assert.Equal(t, domain.ExitTimeBars, exit.Reason)

	exit = s.CheckExit("AAPL", 100, 101.0, 1, floatPtr(0.40), nil)
	require.NotNil(t, exit)
	assert.Equal(t, domain.ExitKillSwitch, exit.Reason)

	exit = s.CheckExit("AAPL", 100, 101.0, 1, nil, floatPtr(5.0))
	require.NotNil(t, exit)
	assert.Equal(t, domain.ExitKillSwitch, exit.Reason)

	assert.Nil(t, s.CheckExit("AAPL", 100, 101.0, 1, nil, nil))
}

func TestCheckExitStopBeatsKillSwitch(t *testing.T) {
	s := newTrend(t, testConfig())
	exit := s.CheckExit("AAPL", 100, 98.0, 1, floatPtr(0.40), nil)
	require.NotNil(t, exit)
	assert.Equal(t, domain.ExitStopLoss, exit.Reason)
}
