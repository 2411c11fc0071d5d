package filters

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/equityrun/internal/config"
)

func floatPtr(v float64) *float64 { return &v }

func macroConfig(dates []string, windows []config.BlackoutWindow) config.TradeFiltersConfig {
	var cfg config.TradeFiltersConfig
	cfg.MacroBlackout.Enabled = true
	cfg.MacroBlackout.BlackoutDates = dates
	cfg.MacroBlackout.BlackoutWindows = windows
	return cfg
}

func TestMacroBlackoutDates(t *testing.T) {
	f, err := NewMacroEventBlackout(macroConfig([]string{"2026-09-16"}, nil))
	require.NoError(t, err)

	res := f.Check(time.Date(2026, 9, 16, 10, 0, 0, 0, time.UTC))
	assert.False(t, res.Allowed)
	assert.Contains(t, res.Reason, "2026-09-16")

	res = f.Check(time.Date(2026, 9, 17, 10, 0, 0, 0, time.UTC))
	assert.True(t, res.Allowed)
}

func TestMacroBlackoutWindows(t *testing.T) {
	f, err := NewMacroEventBlackout(macroConfig(nil, []config.BlackoutWindow{
		{Date: "2026-09-16", Start: "13:30", End: "15:00"},
	}))
	require.NoError(t, err)

	assert.False(t, f.Check(time.Date(2026, 9, 16, 14, 0, 0, 0, time.UTC)).Allowed)
	assert.True(t, f.Check(time.Date(2026, 9, 16, 15, 0, 0, 0, time.UTC)).Allowed)
	assert.True(t, f.Check(time.Date(2026, 9, 17, 14, 0, 0, 0, time.UTC)).Allowed)
}

func TestMacroBlackoutWrapAroundWindow(t *testing.T) {
	f, err := NewMacroEventBlackout(macroConfig(nil, []config.BlackoutWindow{
		{Date: "2026-09-16", Start: "22:00", End: "02:00"},
	}))
	require.NoError(t, err)

	assert.False(t, f.Check(time.Date(2026, 9, 16, 23, 0, 0, 0, time.UTC)).Allowed)
	assert.False(t, f.Check(time.Date(2026, 9, 16, 1, 0, 0, 0, time.UTC)).Allowed)
	assert.True(t, f.Check(time.Date(2026, 9, 16, 12, 0, 0, 0, time.UTC)).Allowed)
}

func TestMacroBlackoutDisabled(t *testing.T) {
	cfg := macroConfig([]string{"2026-09-16"}, nil)
	cfg.MacroBlackout.Enabled = false
	f, err := NewMacroEventBlackout(cfg)
	require.NoError(t, err)

	assert.True(t, f.Check(time.Date(2026, 9, 16, 10, 0, 0, 0, time.UTC)).Allowed)
}

func TestMacroBlackoutRejectsBadDate(t *testing.T) {
	_, err := NewMacroEventBlackout(macroConfig([]string{"09/16/2026"}, nil))
	require.Error(t, err)
}

func earningsConfig() config.TradeFiltersConfig {
	var cfg config.TradeFiltersConfig
	cfg.EarningsBlackout.Enabled = true
	cfg.EarningsBlackout.DaysBefore = 1
	cfg.EarningsBlackout.DaysAfter = 1
	cfg.EarningsBlackout.EarningsDates = map[string][]string{
		"aapl": {"2026-10-29"},
	}
	return cfg
}

func TestEarningsBlackoutWindow(t *testing.T) {
	f, err := NewEarningsBlackout(earningsConfig())
	require.NoError(t, err)

	for _, day := range []int{28, 29, 30} {
		res := f.Check("AAPL", time.Date(2026, 10, day, 10, 0, 0, 0, time.UTC))
		assert.False(t, res.Allowed, "day %d", day)
	}
	assert.True(t, f.Check("AAPL", time.Date(2026, 10, 27, 10, 0, 0, 0, time.UTC)).Allowed)
	assert.True(t, f.Check("AAPL", time.Date(2026, 10, 31, 10, 0, 0, 0, time.UTC)).Allowed)
	// symbols without earnings dates pass
	assert.True(t, f.Check("MSFT", time.Date(2026, 10, 29, 10, 0, 0, 0, time.UTC)).Allowed)
}

func TestEarningsBlackoutSymbolCaseInsensitive(t *testing.T) {
	f, err := NewEarningsBlackout(earningsConfig())
	require.NoError(t, err)

	assert.False(t, f.Check("aapl", time.Date(2026, 10, 29, 10, 0, 0, 0, time.UTC)).Allowed)
}

func TestVolatilityDoNotTrade(t *testing.T) {
	var cfg config.TradeFiltersConfig
	cfg.VolatilityDNT.Enabled = true
	cfg.VolatilityDNT.MaxATRPct = 2.5
	cfg.VolatilityDNT.MaxSpreadPct = 0.15
	f := NewVolatilityDoNotTrade(cfg)

	assert.True(t, f.Check(floatPtr(2.0), floatPtr(0.10)).Allowed)
	assert.False(t, f.Check(floatPtr(3.0), nil).Allowed)
	assert.False(t, f.Check(nil, floatPtr(0.20)).Allowed)
	assert.True(t, f.Check(nil, nil).Allowed, "missing metrics skip the check")
}
