package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/equityrun/internal/calendar"
	"github.com/sawpanic/equityrun/internal/compliance"
	"github.com/sawpanic/equityrun/internal/config"
	"github.com/sawpanic/equityrun/internal/execution"
	"github.com/sawpanic/equityrun/internal/filters"
	"github.com/sawpanic/equityrun/internal/gates"
	"github.com/sawpanic/equityrun/internal/risk"
	"github.com/sawpanic/equityrun/internal/sizing"
	"github.com/sawpanic/equityrun/internal/strategy"
	"github.com/sawpanic/equityrun/internal/universe"
)

// engine bundles the evaluator with the state it owns so commands can
// persist and restore it.
type engine struct {
	cfg       *config.Config
	evaluator *gates.EntryGateEvaluator
	riskMgr   *risk.PortfolioRiskManager
	compMgr   *compliance.ComplianceManager
	riskState *risk.PortfolioRiskState
	pdtState  *compliance.PDTState
	execState *execution.ExecutionState
}

func loadEngineConfig(path string) (*config.Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		log.Warn().Str("path", path).Msg("config file not found, using defaults")
		return config.DefaultConfig(), nil
	}
	return config.LoadConfig(path)
}

// buildEngine wires every gate collaborator from config. Recorder may be nil.
func buildEngine(cfg *config.Config, recorder gates.DecisionRecorder) (*engine, error) {
	cal, err := calendar.New(cfg.MarketSessions, cfg.Holidays)
	if err != nil {
		return nil, fmt.Errorf("build calendar: %w", err)
	}
	macro, err := filters.NewMacroEventBlackout(cfg.TradeFilters)
	if err != nil {
		return nil, fmt.Errorf("build macro blackout: %w", err)
	}
	earnings, err := filters.NewEarningsBlackout(cfg.TradeFilters)
	if err != nil {
		return nil, fmt.Errorf("build earnings blackout: %w", err)
	}
	trend, err := strategy.NewTrendFollowing(cfg.Strategy)
	if err != nil {
		return nil, fmt.Errorf("build strategy: %w", err)
	}

	e := &engine{
		cfg:       cfg,
		riskMgr:   risk.NewPortfolioRiskManager(cfg.PortfolioRisk),
		compMgr:   compliance.NewComplianceManager(cfg.Compliance, cal),
		riskState: risk.NewPortfolioRiskState(),
		pdtState:  compliance.NewPDTState(0),
		execState: execution.NewExecutionState(),
	}
	e.evaluator = gates.NewEntryGateEvaluator(gates.Deps{
		Calendar:   cal,
		Macro:      macro,
		Earnings:   earnings,
		VolDNT:     filters.NewVolatilityDoNotTrade(cfg.TradeFilters),
		Universe:   universe.NewFilter(cfg.Universe),
		Quality:    universe.NewQualityGate(cfg.MarketQuality),
		Execution:  execution.NewExecutionManager(cfg.Execution),
		Risk:       e.riskMgr,
		Compliance: e.compMgr,
		Sizer:      sizing.NewPositionSizer(cfg.PositionSizing),
		Strategy:   trend,
		RiskState:  e.riskState,
		PDTState:   e.pdtState,
		ExecState:  e.execState,
		Recorder:   recorder,
		Logger:     log.Logger,
	})
	return e, nil
}
