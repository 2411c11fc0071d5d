package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/sawpanic/equityrun/internal/compliance"
	"github.com/sawpanic/equityrun/internal/domain"
	"github.com/sawpanic/equityrun/internal/execution"
	"github.com/sawpanic/equityrun/internal/gates"
	httpiface "github.com/sawpanic/equityrun/internal/interfaces/http"
	"github.com/sawpanic/equityrun/internal/metrics"
	"github.com/sawpanic/equityrun/internal/risk"
)

// MarketData supplies one symbol's evaluation facts. Implementations talk
// to whatever feed the deployment has; the loop only sees the request.
type MarketData interface {
	Fetch(ctx context.Context, symbol string, now time.Time) (gates.EntryRequest, error)
}

// AccountSource reports current account equity.
type AccountSource interface {
	Equity(ctx context.Context) (float64, error)
}

// DecisionWriter journals decisions. Optional.
type DecisionWriter interface {
	InsertDecision(ctx context.Context, d *domain.TradeDecision) error
}

// StateSaver snapshots engine state after each sweep. Optional.
type StateSaver interface {
	SaveAll(ctx context.Context, riskSt *risk.PortfolioRiskState, pdtSt *compliance.PDTState, execSt *execution.ExecutionState) error
}

// Config controls sweep cadence and pacing.
type Config struct {
	Symbols        []string
	Interval       time.Duration
	EvalsPerSecond float64
	Burst          int
}

// Deps carries the loop's collaborators. Journal, Saver and Metrics are
// optional; the rest are required.
type Deps struct {
	Evaluator  *gates.EntryGateEvaluator
	Data       MarketData
	Account    AccountSource
	Risk       *risk.PortfolioRiskManager
	Compliance *compliance.ComplianceManager
	RiskState  *risk.PortfolioRiskState
	PDTState   *compliance.PDTState
	ExecState  *execution.ExecutionState

	Journal DecisionWriter
	Saver   StateSaver
	Metrics *metrics.Registry
	Logger  zerolog.Logger
}

// Loop sweeps the symbol list on a fixed interval, pacing evaluations with
// a rate limiter so a large universe cannot stampede the data source. All
// state mutation happens on the loop goroutine; readers get snapshots.
type Loop struct {
	cfg     Config
	deps    Deps
	limiter *rate.Limiter

	mu   sync.RWMutex
	last httpiface.StatusSnapshot
}

func NewLoop(cfg Config, deps Deps) (*Loop, error) {
	if len(cfg.Symbols) == 0 {
		return nil, fmt.Errorf("no symbols configured")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.EvalsPerSecond <= 0 {
		cfg.EvalsPerSecond = 10
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	return &Loop{
		cfg:     cfg,
		deps:    deps,
		limiter: rate.NewLimiter(rate.Limit(cfg.EvalsPerSecond), cfg.Burst),
	}, nil
}

// Run sweeps until the context is cancelled. The first sweep starts
// immediately.
func (l *Loop) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.cfg.Interval)
	defer ticker.Stop()

	for {
		if err := l.RunOnce(ctx, time.Now()); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			l.deps.Logger.Error().Err(err).Msg("sweep failed")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunOnce evaluates every configured symbol once and refreshes the status
// snapshot.
func (l *Loop) RunOnce(ctx context.Context, now time.Time) error {
	equity, err := l.deps.Account.Equity(ctx)
	if err != nil {
		return fmt.Errorf("fetch equity: %w", err)
	}
	l.deps.Evaluator.UpdateEquity(now, equity)

	for _, symbol := range l.cfg.Symbols {
		if err := l.limiter.Wait(ctx); err != nil {
			return err
		}
		l.evaluateSymbol(ctx, symbol, now, equity)
	}

	l.refreshSnapshot(now, equity)

	if l.deps.Saver != nil {
		if err := l.deps.Saver.SaveAll(ctx, l.deps.RiskState, l.deps.PDTState, l.deps.ExecState); err != nil {
			l.deps.Logger.Warn().Err(err).Msg("state snapshot failed")
		}
	}
	return nil
}

func (l *Loop) evaluateSymbol(ctx context.Context, symbol string, now time.Time, equity float64) {
	req, err := l.deps.Data.Fetch(ctx, symbol, now)
	if err != nil {
		l.deps.Logger.Warn().Err(err).Str("symbol", symbol).Msg("market data unavailable")
		return
	}
	req.Symbol = symbol
	req.Now = now
	req.Equity = equity

	var timer *metrics.EvalTimer
	if l.deps.Metrics != nil {
		timer = l.deps.Metrics.StartEvalTimer(symbol)
	}

	decision, err := l.deps.Evaluator.EvaluateEntry(req)
	if err != nil {
		if timer != nil {
			timer.Stop("error")
		}
		l.deps.Logger.Error().Err(err).Str("symbol", symbol).Msg("evaluation failed")
		return
	}
	if timer != nil {
		outcome := "denied"
		if decision.Allowed {
			outcome = "allowed"
		}
		timer.Stop(outcome)
	}

	if l.deps.Journal != nil {
		if err := l.deps.Journal.InsertDecision(ctx, decision); err != nil {
			l.deps.Logger.Warn().Err(err).Str("symbol", symbol).Msg("journal write failed")
		}
	}
}

func (l *Loop) refreshSnapshot(now time.Time, equity float64) {
	dd := l.deps.Risk.CurrentDrawdownPct(l.deps.RiskState, equity)
	snap := httpiface.StatusSnapshot{
		Timestamp:           now,
		Equity:              equity,
		PeakEquity:          l.deps.RiskState.PeakEquity,
		DrawdownPct:         dd,
		DailyPnLPct:         l.deps.RiskState.DailyPnLPct,
		SafeMode:            l.deps.RiskState.SafeMode,
		TradingStoppedToday: l.deps.RiskState.TradingStoppedToday,
		DayTradesInWindow:   l.deps.Compliance.DayTradesInWindow(l.deps.PDTState, now),
		AvgSlippageBps:      l.deps.ExecState.AvgSlippageBps,
		StrategyBlocked:     l.deps.ExecState.StrategyBlocked,
	}

	l.mu.Lock()
	l.last = snap
	l.mu.Unlock()

	if l.deps.Metrics != nil {
		l.deps.Metrics.SetRiskSnapshot(equity, dd, snap.SafeMode)
		l.deps.Metrics.AvgSlippageBps.Set(snap.AvgSlippageBps)
		l.deps.Metrics.DayTradesInWindow.Set(float64(snap.DayTradesInWindow))
	}
}

// Snapshot returns the status from the last completed sweep. Safe for
// concurrent use.
func (l *Loop) Snapshot() httpiface.StatusSnapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.last
}
