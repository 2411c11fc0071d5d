package gates

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/sawpanic/equityrun/internal/compliance"
	"github.com/sawpanic/equityrun/internal/domain"
	"github.com/sawpanic/equityrun/internal/execution"
	"github.com/sawpanic/equityrun/internal/filters"
	"github.com/sawpanic/equityrun/internal/risk"
	"github.com/sawpanic/equityrun/internal/sizing"
	"github.com/sawpanic/equityrun/internal/universe"
)

// Gate names, in evaluation order. The first denying gate names the decision.
const (
	GateCalendar      = "calendar"
	GateMacroBlackout = "macro_blackout"
	GateUniverse      = "universe"
	GateEarnings      = "earnings_blackout"
	GateMarketQuality = "market_quality"
	GateSpread        = "spread"
	GateVolatilityDNT = "volatility_dnt"
	GateSlippage      = "slippage_block"
	GatePortfolioRisk = "portfolio_risk"
	GatePDT           = "pdt"
	GateStrategy      = "strategy"
	GateSizing        = "sizing"
	GateMaxOpenRisk   = "max_open_risk"
	GateOrderBuild    = "order_build"
)

// Calendar answers whether the clock permits trading.
type Calendar interface {
	TradingAllowed(dt time.Time) bool
}

// Strategy produces entry and exit signals from bar history.
type Strategy interface {
	GenerateEntry(symbol string, bars []domain.Bar, spreadPct, atrMultiple *float64) *domain.EntrySignal
	CheckExit(symbol string, entryPrice, currentPrice float64, barsHeld int, spreadPct, atrMultiple *float64) *domain.ExitSignal
}

// DecisionRecorder receives every gate outcome, e.g. for metrics.
type DecisionRecorder interface {
	RecordDecision(gate string, allowed bool)
}

// EntryRequest is one evaluation's worth of account and market facts.
// Pointer fields are optional telemetry; nil skips the checks that need them.
type EntryRequest struct {
	Symbol string
	Now    time.Time
	Equity float64

	Bars     []domain.Bar
	Price    float64
	TickSize float64

	SpreadPct          *float64
	ATRPct             *float64
	ATRMultiple        *float64
	VolumeATRRatio     *float64
	AvgDollarVolume30d *float64

	CurrentPositions  map[string]domain.Position
	SectorExposurePct map[string]float64
	SymbolSector      map[string]string

	// IsDayTrade marks an entry that would close the same day, which puts
	// it under the day-trade count rules.
	IsDayTrade bool
}

// Deps wires the evaluator's collaborators and the state it mutates.
type Deps struct {
	Calendar   Calendar
	Macro      *filters.MacroEventBlackout
	Earnings   *filters.EarningsBlackout
	VolDNT     *filters.VolatilityDoNotTrade
	Universe   *universe.Filter
	Quality    *universe.QualityGate
	Execution  *execution.ExecutionManager
	Risk       *risk.PortfolioRiskManager
	Compliance *compliance.ComplianceManager
	Sizer      *sizing.PositionSizer
	Strategy   Strategy

	RiskState *risk.PortfolioRiskState
	PDTState  *compliance.PDTState
	ExecState *execution.ExecutionState

	Recorder DecisionRecorder
	Logger   zerolog.Logger
}

// EntryGateEvaluator runs the ordered entry gate chain. Evaluation stops at
// the first denying gate; later gates never run. Denials are decisions, not
// errors. Not safe for concurrent use; the owning loop serializes calls.
type EntryGateEvaluator struct {
	deps   Deps
	stages []stage
}

// stage is one link in the chain. An empty reason means pass; a non-nil
// error aborts the whole evaluation.
type stage struct {
	name string
	run  func(*evalContext) (reason string, err error)
}

// evalContext accumulates the artifacts the later stages need.
type evalContext struct {
	req    *EntryRequest
	entry  *domain.EntrySignal
	sizing domain.PositionSizingResult
	order  *domain.OrderRequest
}

func NewEntryGateEvaluator(deps Deps) *EntryGateEvaluator {
	e := &EntryGateEvaluator{deps: deps}
	e.stages = []stage{
		{GateCalendar, e.checkCalendar},
		{GateMacroBlackout, e.checkMacro},
		{GateUniverse, e.checkUniverse},
		{GateEarnings, e.checkEarnings},
		{GateMarketQuality, e.checkQuality},
		{GateSpread, e.checkSpread},
		{GateVolatilityDNT, e.checkVolDNT},
		{GateSlippage, e.checkSlippage},
		{GatePortfolioRisk, e.checkPortfolioRisk},
		{GatePDT, e.checkPDT},
		{GateStrategy, e.runStrategy},
		{GateSizing, e.runSizing},
		{GateMaxOpenRisk, e.checkMaxOpenRisk},
		{GateOrderBuild, e.buildOrder},
	}
	return e
}

// EvaluateEntry runs the full chain for one symbol and returns the decision.
// Errors are reserved for structurally invalid requests; every market or
// account condition that says "no" comes back as a denied decision.
func (e *EntryGateEvaluator) EvaluateEntry(req EntryRequest) (*domain.TradeDecision, error) {
	if req.Symbol == "" {
		return nil, fmt.Errorf("entry request missing symbol")
	}
	if req.Equity <= 0 {
		return nil, fmt.Errorf("entry request for %s: non-positive equity %.2f", req.Symbol, req.Equity)
	}
	if req.Price <= 0 {
		return nil, fmt.Errorf("entry request for %s: non-positive price %.2f", req.Symbol, req.Price)
	}

	e.deps.Risk.CheckDailyReset(e.deps.RiskState, req.Now)

	ctx := &evalContext{req: &req}
	for _, st := range e.stages {
		reason, err := st.run(ctx)
		if err != nil {
			return nil, fmt.Errorf("gate %s: %w", st.name, err)
		}
		if reason != "" {
			d := domain.Deny(req.Symbol, req.Now, st.name, reason)
			e.finish(d)
			return d, nil
		}
	}

	d := &domain.TradeDecision{
		Symbol:    req.Symbol,
		Timestamp: req.Now,
		Allowed:   true,
		Order:     ctx.order,
		Entry:     ctx.entry,
		Sizing:    &ctx.sizing,
	}
	e.finish(d)
	return d, nil
}

func (e *EntryGateEvaluator) finish(d *domain.TradeDecision) {
	if e.deps.Recorder != nil {
		e.deps.Recorder.RecordDecision(d.Gate, d.Allowed)
	}
	evt := e.deps.Logger.Info().
		Str("symbol", d.Symbol).
		Bool("allowed", d.Allowed)
	if !d.Allowed {
		evt = evt.Str("gate", d.Gate).Str("reason", d.Reason)
	} else if d.Order != nil {
		evt = evt.Str("client_order_id", d.Order.ClientOrderID).Int("shares", d.Sizing.Shares)
	}
	evt.Msg("entry decision")
}

func (e *EntryGateEvaluator) checkCalendar(ctx *evalContext) (string, error) {
	if !e.deps.Calendar.TradingAllowed(ctx.req.Now) {
		return "market session does not allow trading", nil
	}
	return "", nil
}

func (e *EntryGateEvaluator) checkMacro(ctx *evalContext) (string, error) {
	if res := e.deps.Macro.Check(ctx.req.Now); !res.Allowed {
		return res.Reason, nil
	}
	return "", nil
}

func (e *EntryGateEvaluator) checkUniverse(ctx *evalContext) (string, error) {
	if !e.deps.Universe.IsEligible(ctx.req.Symbol, ctx.req.AvgDollarVolume30d, ctx.req.VolumeATRRatio) {
		return "symbol not in tradable universe", nil
	}
	return "", nil
}

func (e *EntryGateEvaluator) checkEarnings(ctx *evalContext) (string, error) {
	if res := e.deps.Earnings.Check(ctx.req.Symbol, ctx.req.Now); !res.Allowed {
		return res.Reason, nil
	}
	return "", nil
}

func (e *EntryGateEvaluator) checkQuality(ctx *evalContext) (string, error) {
	if res := e.deps.Quality.Check(ctx.req.SpreadPct, ctx.req.VolumeATRRatio, ctx.req.ATRMultiple); !res.OK {
		return res.Reason, nil
	}
	return "", nil
}

func (e *EntryGateEvaluator) checkSpread(ctx *evalContext) (string, error) {
	if ctx.req.SpreadPct == nil {
		return "", nil
	}
	if ok, reason := e.deps.Execution.CanTradeSpread(*ctx.req.SpreadPct); !ok {
		return reason, nil
	}
	return "", nil
}

func (e *EntryGateEvaluator) checkVolDNT(ctx *evalContext) (string, error) {
	if res := e.deps.VolDNT.Check(ctx.req.ATRPct, ctx.req.SpreadPct); !res.Allowed {
		return res.Reason, nil
	}
	return "", nil
}

func (e *EntryGateEvaluator) checkSlippage(ctx *evalContext) (string, error) {
	if e.deps.Execution.ShouldBlockStrategy(e.deps.ExecState) {
		return "strategy blocked by adverse slippage", nil
	}
	return "", nil
}

func (e *EntryGateEvaluator) checkPortfolioRisk(ctx *evalContext) (string, error) {
	if ok, reason := e.deps.Risk.CanTrade(e.deps.RiskState, ctx.req.Equity, ctx.req.Symbol, ctx.req.Now); !ok {
		return reason, nil
	}
	return "", nil
}

func (e *EntryGateEvaluator) checkPDT(ctx *evalContext) (string, error) {
	if !ctx.req.IsDayTrade {
		return "", nil
	}
	if ok, reason := e.deps.Compliance.CanDayTrade(e.deps.PDTState, ctx.req.Now); !ok {
		return reason, nil
	}
	return "", nil
}

func (e *EntryGateEvaluator) runStrategy(ctx *evalContext) (string, error) {
	ctx.entry = e.deps.Strategy.GenerateEntry(ctx.req.Symbol, ctx.req.Bars, ctx.req.SpreadPct, ctx.req.ATRMultiple)
	if ctx.entry == nil {
		return "no entry signal", nil
	}
	return "", nil
}

func (e *EntryGateEvaluator) runSizing(ctx *evalContext) (string, error) {
	ctx.sizing = e.deps.Sizer.SizePosition(sizing.SizeRequest{
		Equity:            ctx.req.Equity,
		Price:             ctx.req.Price,
		StopDistancePct:   ctx.entry.StopPct,
		Symbol:            ctx.req.Symbol,
		CurrentPositions:  ctx.req.CurrentPositions,
		SectorExposurePct: ctx.req.SectorExposurePct,
		SymbolSector:      ctx.req.SymbolSector,
		ATRPct:            ctx.req.ATRPct,
	})
	if ctx.sizing.RejectReason != "" {
		return "", fmt.Errorf("sizing rejected: %s", ctx.sizing.RejectReason)
	}
	if ctx.sizing.Shares <= 0 {
		return "position size rounds to zero shares", nil
	}
	return "", nil
}

func (e *EntryGateEvaluator) checkMaxOpenRisk(ctx *evalContext) (string, error) {
	positions := make([]domain.Position, 0, len(ctx.req.CurrentPositions))
	for _, p := range ctx.req.CurrentPositions {
		positions = append(positions, p)
	}
	open := e.deps.Sizer.TotalOpenRiskPct(ctx.req.Equity, positions)
	if e.deps.Sizer.WouldExceedMaxOpenRisk(open, ctx.sizing.RiskPct) {
		return fmt.Sprintf("open risk %.2f%% + new %.2f%% exceeds cap %.2f%%",
			open, ctx.sizing.RiskPct, e.deps.Sizer.MaxOpenRiskPct()), nil
	}
	return "", nil
}

func (e *EntryGateEvaluator) buildOrder(ctx *evalContext) (string, error) {
	spread := 0.0
	if ctx.req.SpreadPct != nil {
		spread = *ctx.req.SpreadPct
	}
	ctx.order = e.deps.Execution.BuildOrder(ctx.req.Symbol, ctx.entry.Side, ctx.sizing.Shares, ctx.req.Price, spread, ctx.req.TickSize)
	if ctx.order == nil {
		return "order construction refused", nil
	}
	return "", nil
}

// CheckExit delegates to the strategy; exits bypass the entry gates.
func (e *EntryGateEvaluator) CheckExit(symbol string, entryPrice, currentPrice float64, barsHeld int, spreadPct, atrMultiple *float64) *domain.ExitSignal {
	return e.deps.Strategy.CheckExit(symbol, entryPrice, currentPrice, barsHeld, spreadPct, atrMultiple)
}

// UpdateEquity feeds a fresh account mark into the risk and compliance state.
func (e *EntryGateEvaluator) UpdateEquity(dt time.Time, equity float64) {
	e.deps.Risk.UpdateEquity(e.deps.RiskState, dt, equity)
	e.deps.Compliance.UpdateEquity(e.deps.PDTState, equity)
}

// RecordFill folds an execution report into the slippage tracker.
func (e *EntryGateEvaluator) RecordFill(symbol string, side domain.Side, quantity int, fillPrice, expectedPrice float64) {
	e.deps.Execution.RecordFill(e.deps.ExecState, symbol, side, quantity, fillPrice, expectedPrice)
}

// RecordTrade books a completed round trip against the daily counters, and
// against the day-trade window when it opened and closed the same day.
func (e *EntryGateEvaluator) RecordTrade(symbol string, pnlPct float64, dayTrade bool, when time.Time) {
	e.deps.Risk.RecordTrade(e.deps.RiskState, symbol, pnlPct)
	if dayTrade {
		e.deps.Compliance.RecordDayTrade(e.deps.PDTState, when)
	}
}
