package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sawpanic/equityrun/internal/gates"
	httpiface "github.com/sawpanic/equityrun/internal/interfaces/http"
	"github.com/sawpanic/equityrun/internal/metrics"
	"github.com/sawpanic/equityrun/internal/persistence"
	"github.com/sawpanic/equityrun/internal/scheduler"
)

func newLoopCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "loop",
		Short: "Run the periodic evaluation loop",
		Long: `Sweeps the configured universe on a fixed interval, journaling every
decision. Bar history is read per symbol from CSV files in --bars-dir
(<SYMBOL>.csv). Optional Postgres journaling, Redis state snapshots and a
read-only status server can be enabled with flags.`,
		RunE: runLoop,
	}

	cmd.Flags().String("symbols", "", "Comma-separated symbols (default: config universe)")
	cmd.Flags().String("bars-dir", "data/bars", "Directory of <SYMBOL>.csv bar files")
	cmd.Flags().Float64("equity", 100_000, "Account equity in USD")
	cmd.Flags().Duration("interval", time.Minute, "Sweep interval")
	cmd.Flags().Float64("evals-per-second", 10, "Evaluation pacing limit")
	cmd.Flags().String("listen", "", "Status server address, e.g. 127.0.0.1:8080 (disabled when empty)")
	cmd.Flags().String("postgres-dsn", "", "Postgres DSN for the decision journal (disabled when empty)")
	cmd.Flags().String("redis-addr", "", "Redis address for state snapshots (disabled when empty)")

	return cmd
}

// fileMarketData serves bar history from per-symbol CSV files. The richer
// telemetry inputs stay nil; their gates skip.
type fileMarketData struct {
	dir string
}

func (d fileMarketData) Fetch(ctx context.Context, symbol string, now time.Time) (gates.EntryRequest, error) {
	bars, err := loadBarsCSV(filepath.Join(d.dir, symbol+".csv"))
	if err != nil {
		return gates.EntryRequest{}, err
	}
	return gates.EntryRequest{
		Bars:     bars,
		Price:    bars[len(bars)-1].Close,
		TickSize: 0.01,
	}, nil
}

// fixedAccount reports a constant equity. Live account feeds replace this.
type fixedAccount struct {
	equity float64
}

func (a fixedAccount) Equity(ctx context.Context) (float64, error) { return a.equity, nil }

func runLoop(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := loadEngineConfig(configPath)
	if err != nil {
		return err
	}

	registry := metrics.NewRegistry()
	eng, err := buildEngine(cfg, registry)
	if err != nil {
		return err
	}

	symbolsFlag, _ := cmd.Flags().GetString("symbols")
	symbols := cfg.Universe.Symbols
	if symbolsFlag != "" {
		symbols = strings.Split(symbolsFlag, ",")
		for i := range symbols {
			symbols[i] = strings.ToUpper(strings.TrimSpace(symbols[i]))
		}
	}

	barsDir, _ := cmd.Flags().GetString("bars-dir")
	equity, _ := cmd.Flags().GetFloat64("equity")
	interval, _ := cmd.Flags().GetDuration("interval")
	evalsPerSecond, _ := cmd.Flags().GetFloat64("evals-per-second")

	deps := scheduler.Deps{
		Evaluator:  eng.evaluator,
		Data:       fileMarketData{dir: barsDir},
		Account:    fixedAccount{equity: equity},
		Risk:       eng.riskMgr,
		Compliance: eng.compMgr,
		RiskState:  eng.riskState,
		PDTState:   eng.pdtState,
		ExecState:  eng.execState,
		Metrics:    registry,
		Logger:     log.Logger,
	}

	var summarize httpiface.SummarizeFunc
	if dsn, _ := cmd.Flags().GetString("postgres-dsn"); dsn != "" {
		db, err := persistence.OpenPostgres(ctx, dsn, 10*time.Second)
		if err != nil {
			return err
		}
		defer db.Close()

		journal := persistence.NewJournal(db, 5*time.Second)
		if err := journal.Migrate(ctx); err != nil {
			return err
		}
		deps.Journal = journal
		summarize = journal.Summarize
		log.Info().Msg("decision journal enabled")
	}

	if addr, _ := cmd.Flags().GetString("redis-addr"); addr != "" {
		client := redis.NewClient(&redis.Options{Addr: addr})
		defer client.Close()

		store := persistence.NewStateStore(client, 0)
		if err := restoreState(ctx, store, eng); err != nil {
			return err
		}
		deps.Saver = store
		log.Info().Msg("state snapshots enabled")
	}

	loop, err := scheduler.NewLoop(scheduler.Config{
		Symbols:        symbols,
		Interval:       interval,
		EvalsPerSecond: evalsPerSecond,
	}, deps)
	if err != nil {
		return err
	}

	if listen, _ := cmd.Flags().GetString("listen"); listen != "" {
		srv, err := buildStatusServer(listen, loop.Snapshot, summarize, registry.Handler())
		if err != nil {
			return err
		}
		go func() {
			if err := srv.Start(); err != nil && err != http.ErrServerClosed {
				log.Error().Err(err).Msg("status server failed")
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	log.Info().Strs("symbols", symbols).Dur("interval", interval).Msg("evaluation loop starting")
	err = loop.Run(ctx)
	if err == context.Canceled {
		log.Info().Msg("evaluation loop stopped")
		return nil
	}
	return err
}

// restoreState overwrites the engine's fresh state with stored snapshots
// when they exist.
func restoreState(ctx context.Context, store *persistence.StateStore, eng *engine) error {
	if st, err := store.LoadRiskState(ctx); err != nil {
		return err
	} else if st != nil {
		*eng.riskState = *st
	}
	if st, err := store.LoadPDTState(ctx); err != nil {
		return err
	} else if st != nil {
		*eng.pdtState = *st
	}
	if st, err := store.LoadExecutionState(ctx); err != nil {
		return err
	} else if st != nil {
		*eng.execState = *st
	}
	return nil
}

func buildStatusServer(listen string, snapshot httpiface.SnapshotFunc, summarize httpiface.SummarizeFunc, metricsHandler http.Handler) (*httpiface.Server, error) {
	host, portStr, err := net.SplitHostPort(listen)
	if err != nil {
		return nil, fmt.Errorf("bad listen address %q: %w", listen, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("bad listen port %q: %w", portStr, err)
	}

	srvCfg := httpiface.DefaultServerConfig()
	srvCfg.Host = host
	srvCfg.Port = port
	return httpiface.NewServer(srvCfg, snapshot, summarize, metricsHandler), nil
}
