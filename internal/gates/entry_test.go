package gates

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/equityrun/internal/calendar"
	"github.com/sawpanic/equityrun/internal/compliance"
	"github.com/sawpanic/equityrun/internal/config"
	"github.com/sawpanic/equityrun/internal/domain"
	"github.com/sawpanic/equityrun/internal/execution"
	"github.com/sawpanic/equityrun/internal/filters"
	"github.com/sawpanic/equityrun/internal/risk"
	"github.com/sawpanic/equityrun/internal/sizing"
	"github.com/sawpanic/equityrun/internal/universe"
)

func floatPtr(v float64) *float64 { return &v }

// Monday 2026-08-24 10:00, inside the regular session.
var regularSessionTime = time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)

type stubStrategy struct {
	signal     *domain.EntrySignal
	exit       *domain.ExitSignal
	entryCalls int
}

func (s *stubStrategy) GenerateEntry(symbol string, bars []domain.Bar, spreadPct, atrMultiple *float64) *domain.EntrySignal {
	s.entryCalls++
	return s.signal
}

func (s *stubStrategy) CheckExit(symbol string, entryPrice, currentPrice float64, barsHeld int, spreadPct, atrMultiple *float64) *domain.ExitSignal {
	return s.exit
}

type recordedDecision struct {
	gate    string
	allowed bool
}

type captureRecorder struct {
	decisions []recordedDecision
}

func (r *captureRecorder) RecordDecision(gate string, allowed bool) {
	r.decisions = append(r.decisions, recordedDecision{gate, allowed})
}

func buySignal() *domain.EntrySignal {
	return &domain.EntrySignal{
		Symbol:       "AAPL",
		Side:         domain.SideBuy,
		StopPct:      2.0,
		TimeBarsExit: 20,
	}
}

type harness struct {
	eval      *EntryGateEvaluator
	strat     *stubStrategy
	recorder  *captureRecorder
	riskState *risk.PortfolioRiskState
	pdtState  *compliance.PDTState
	execState *execution.ExecutionState
}

func newHarness(t *testing.T, cfg *config.Config) *harness {
	t.Helper()

	cal, err := calendar.New(cfg.MarketSessions, cfg.Holidays)
	require.NoError(t, err)
	macro, err := filters.NewMacroEventBlackout(cfg.TradeFilters)
	require.NoError(t, err)
	earnings, err := filters.NewEarningsBlackout(cfg.TradeFilters)
	require.NoError(t, err)

	h := &harness{
		strat:     &stubStrategy{signal: buySignal()},
		recorder:  &captureRecorder{},
		riskState: risk.NewPortfolioRiskState(),
		pdtState:  compliance.NewPDTState(100_000),
		execState: execution.NewExecutionState(),
	}
	h.eval = NewEntryGateEvaluator(Deps{
		Calendar:   cal,
		Macro:      macro,
		Earnings:   earnings,
		VolDNT:     filters.NewVolatilityDoNotTrade(cfg.TradeFilters),
		Universe:   universe.NewFilter(cfg.Universe),
		Quality:    universe.NewQualityGate(cfg.MarketQuality),
		Execution:  execution.NewExecutionManager(cfg.Execution),
		Risk:       risk.NewPortfolioRiskManager(cfg.PortfolioRisk),
		Compliance: compliance.NewComplianceManager(cfg.Compliance, cal),
		Sizer:      sizing.NewPositionSizer(cfg.PositionSizing),
		Strategy:   h.strat,
		RiskState:  h.riskState,
		PDTState:   h.pdtState,
		ExecState:  h.execState,
		Recorder:   h.recorder,
		Logger:     zerolog.Nop(),
	})
	return h
}

func cleanRequest() EntryRequest {
	return EntryRequest{
		Symbol:             "AAPL",
		Now:                regularSessionTime,
		Equity:             100_000,
		Price:              50,
		TickSize:           0.01,
		SpreadPct:          floatPtr(0.05),
		ATRPct:             floatPtr(1.0),
		ATRMultiple:        floatPtr(1.0),
		VolumeATRRatio:     floatPtr(2.0),
		AvgDollarVolume30d: floatPtr(60_000_000),
	}
}

func TestEvaluateEntryAllowed(t *testing.T) {
	h := newHarness(t, config.DefaultConfig())

	d, err := h.eval.EvaluateEntry(cleanRequest())
	require.NoError(t, err)
	require.True(t, d.Allowed)

	// $500 budget at $1 risk/share gives 500 raw, then the 20% symbol
	// notional cap shrinks it to 400.
	assert.Equal(t, 400, d.Sizing.Shares)
	require.NotNil(t, d.Order)
	assert.Equal(t, domain.OrderTypeLimit, d.Order.OrderType)
	assert.InDelta(t, 49.99, d.Order.LimitPrice, 1e-9)
	assert.NotEmpty(t, d.Order.ClientOrderID)
	require.Len(t, h.recorder.decisions, 1)
	assert.True(t, h.recorder.decisions[0].allowed)
}

func TestEvaluateEntryShortCircuitsOnCalendar(t *testing.T) {
	h := newHarness(t, config.DefaultConfig())

	req := cleanRequest()
	req.Now = time.Date(2026, 8, 22, 10, 0, 0, 0, time.UTC) // Saturday

	d, err := h.eval.EvaluateEntry(req)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, GateCalendar, d.Gate)
	assert.Zero(t, h.strat.entryCalls, "later gates must not run after a denial")
}

func TestEvaluateEntryDeniesOutsideUniverse(t *testing.T) {
	h := newHarness(t, config.DefaultConfig())

	req := cleanRequest()
	req.Symbol = "ZZZZ"

	d, err := h.eval.EvaluateEntry(req)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, GateUniverse, d.Gate)
}

func TestEvaluateEntrySpreadGateAfterQuality(t *testing.T) {
	// loosen the quality ceiling so the execution spread gate is the one
	// that fires
	cfg := config.DefaultConfig()
	cfg.MarketQuality.MaxSpreadPct = 1.0
	cfg.TradeFilters.VolatilityDNT.Enabled = false
	h := newHarness(t, cfg)

	req := cleanRequest()
	req.SpreadPct = floatPtr(0.20)

	d, err := h.eval.EvaluateEntry(req)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, GateSpread, d.Gate)
}

func TestEvaluateEntryMissingSpreadSkipsSpreadGates(t *testing.T) {
	h := newHarness(t, config.DefaultConfig())

	req := cleanRequest()
	req.SpreadPct = nil

	d, err := h.eval.EvaluateEntry(req)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	// without a spread the order falls back to a limit at one tick under mid
	require.NotNil(t, d.Order)
}

func TestEvaluateEntrySlippageBlock(t *testing.T) {
	h := newHarness(t, config.DefaultConfig())
	h.execState.StrategyBlocked = true

	d, err := h.eval.EvaluateEntry(cleanRequest())
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, GateSlippage, d.Gate)
}

func TestEvaluateEntryPortfolioRiskStop(t *testing.T) {
	h := newHarness(t, config.DefaultConfig())
	h.riskState.TradingStoppedToday = true
	h.riskState.LastTradeDate = regularSessionTime.Format("2006-01-02")

	d, err := h.eval.EvaluateEntry(cleanRequest())
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, GatePortfolioRisk, d.Gate)
}

func TestEvaluateEntryPDTOnlyForDayTrades(t *testing.T) {
	h := newHarness(t, config.DefaultConfig())
	h.pdtState.Equity = 10_000
	for i := 0; i < 3; i++ {
		h.eval.RecordTrade("AAPL", 0.1, true, regularSessionTime.AddDate(0, 0, -1))
	}

	req := cleanRequest()
	req.IsDayTrade = true
	d, err := h.eval.EvaluateEntry(req)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, GatePDT, d.Gate)

	// swing entries are not day trades and skip the PDT gate
	req.IsDayTrade = false
	d, err = h.eval.EvaluateEntry(req)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestEvaluateEntryNoSignal(t *testing.T) {
	h := newHarness(t, config.DefaultConfig())
	h.strat.signal = nil

	d, err := h.eval.EvaluateEntry(cleanRequest())
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, GateStrategy, d.Gate)
	assert.Equal(t, "no entry signal", d.Reason)
}

func TestEvaluateEntrySizeRoundsToZero(t *testing.T) {
	h := newHarness(t, config.DefaultConfig())

	req := cleanRequest()
	req.Equity = 1_000
	req.Price = 500 // $5 budget against $10 risk per share

	d, err := h.eval.EvaluateEntry(req)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, GateSizing, d.Gate)
}

func TestEvaluateEntryMaxOpenRisk(t *testing.T) {
	h := newHarness(t, config.DefaultConfig())

	req := cleanRequest()
	req.CurrentPositions = map[string]domain.Position{
		"MSFT": {Symbol: "MSFT", Notional: 90_000, StopPct: 3.0}, // 2.7% open risk
	}

	d, err := h.eval.EvaluateEntry(req)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, GateMaxOpenRisk, d.Gate)
}

func TestEvaluateEntryInvalidRequest(t *testing.T) {
	h := newHarness(t, config.DefaultConfig())

	req := cleanRequest()
	req.Equity = 0
	_, err := h.eval.EvaluateEntry(req)
	require.Error(t, err)

	req = cleanRequest()
	req.Symbol = ""
	_, err = h.eval.EvaluateEntry(req)
	require.Error(t, err)

	req = cleanRequest()
	req.Price = -1
	_, err = h.eval.EvaluateEntry(req)
	require.Error(t, err)
}

func TestCheckExitDelegates(t *testing.T) {
	h := newHarness(t, config.DefaultConfig())
	h.strat.exit = &domain.ExitSignal{Symbol: "AAPL", Reason: domain.ExitStopLoss}

	exit := h.eval.CheckExit("AAPL", 100, 98, 1, nil, nil)
	require.NotNil(t, exit)
	assert.Equal(t, domain.ExitStopLoss, exit.Reason)
}

func TestUpdateEquityFeedsRiskAndCompliance(t *testing.T) {
	h := newHarness(t, config.DefaultConfig())

	h.eval.UpdateEquity(regularSessionTime, 120_000)
	assert.Equal(t, 120_000.0, h.riskState.PeakEquity)
	assert.Equal(t, 120_000.0, h.pdtState.Equity)
}
