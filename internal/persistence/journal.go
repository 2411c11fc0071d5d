package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/sony/gobreaker"

	"github.com/sawpanic/equityrun/internal/domain"
)

// Journal persists every decision and fill to Postgres for later audit.
// Writes run through a circuit breaker so a dead database degrades the
// journal instead of stalling the decision loop.
type Journal struct {
	db      *sqlx.DB
	timeout time.Duration
	breaker *gobreaker.CircuitBreaker
}

// NewJournal creates a journal over an open sqlx handle.
func NewJournal(db *sqlx.DB, timeout time.Duration) *Journal {
	settings := gobreaker.Settings{
		Name:    "decision-journal",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	}
	return &Journal{
		db:      db,
		timeout: timeout,
		breaker: gobreaker.NewCircuitBreaker(settings),
	}
}

// InsertDecision appends one decision row. Allowed decisions carry their
// sizing and order id; denials carry the gate and reason.
func (j *Journal) InsertDecision(ctx context.Context, d *domain.TradeDecision) error {
	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	var (
		shares        int
		notional      float64
		riskPct       float64
		clientOrderID string
	)
	if d.Allowed {
		shares = d.Sizing.Shares
		notional = d.Sizing.Notional
		riskPct = d.Sizing.RiskPct
		clientOrderID = d.Order.ClientOrderID
	}

	query := `
		INSERT INTO decisions (ts, symbol, allowed, gate, reason, shares, notional, risk_pct, client_order_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := j.breaker.Execute(func() (interface{}, error) {
		return j.db.ExecContext(ctx, query,
			d.Timestamp, d.Symbol, d.Allowed, d.Gate, d.Reason,
			shares, notional, riskPct, clientOrderID)
	})
	if err != nil {
		return fmt.Errorf("insert decision for %s: %w", d.Symbol, err)
	}
	return nil
}

// InsertFill appends one fill row.
func (j *Journal) InsertFill(ctx context.Context, f domain.FillReport) error {
	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	query := `
		INSERT INTO fills (ts, symbol, side, quantity, fill_price, expected_price, slippage_bps)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := j.breaker.Execute(func() (interface{}, error) {
		return j.db.ExecContext(ctx, query,
			f.Timestamp, f.Symbol, f.Side, f.Quantity,
			f.FillPrice, f.ExpectedPrice, f.SlippageBps)
	})
	if err != nil {
		return fmt.Errorf("insert fill for %s: %w", f.Symbol, err)
	}
	return nil
}

// DailySummary aggregates one calendar day of journal activity.
type DailySummary struct {
	Date           string  `db:"date" json:"date"`
	Evaluations    int     `db:"evaluations" json:"evaluations"`
	Allowed        int     `db:"allowed" json:"allowed"`
	Denied         int     `db:"denied" json:"denied"`
	Fills          int     `db:"fills" json:"fills"`
	AvgSlippageBps float64 `db:"avg_slippage_bps" json:"avg_slippage_bps"`
}

// Summarize reports decision and fill counts for the given day.
func (j *Journal) Summarize(ctx context.Context, day time.Time) (*DailySummary, error) {
	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	dayKey := day.Format("2006-01-02")
	s := &DailySummary{Date: dayKey}

	query := `
		SELECT COUNT(*) AS evaluations,
		       COUNT(*) FILTER (WHERE allowed) AS allowed,
		       COUNT(*) FILTER (WHERE NOT allowed) AS denied
		FROM decisions
		WHERE ts::date = $1`
	row := j.db.QueryRowxContext(ctx, query, dayKey)
	if err := row.Scan(&s.Evaluations, &s.Allowed, &s.Denied); err != nil {
		return nil, fmt.Errorf("summarize decisions for %s: %w", dayKey, err)
	}

	query = `
		SELECT COUNT(*) AS fills, COALESCE(AVG(slippage_bps), 0) AS avg_slippage_bps
		FROM fills
		WHERE ts::date = $1`
	row = j.db.QueryRowxContext(ctx, query, dayKey)
	if err := row.Scan(&s.Fills, &s.AvgSlippageBps); err != nil {
		return nil, fmt.Errorf("summarize fills for %s: %w", dayKey, err)
	}

	return s, nil
}

// TopDenyGates returns the most frequent denying gates for the day.
func (j *Journal) TopDenyGates(ctx context.Context, day time.Time, limit int) (map[string]int, error) {
	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	query := `
		SELECT gate, COUNT(*) AS n
		FROM decisions
		WHERE NOT allowed AND ts::date = $1
		GROUP BY gate
		ORDER BY n DESC
		LIMIT $2`

	rows, err := j.db.QueryxContext(ctx, query, day.Format("2006-01-02"), limit)
	if err != nil {
		return nil, fmt.Errorf("top deny gates: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var gate string
		var n int
		if err := rows.Scan(&gate, &n); err != nil {
			return nil, fmt.Errorf("scan deny gate row: %w", err)
		}
		out[gate] = n
	}
	return out, rows.Err()
}

// Migrate creates the journal tables when they do not exist.
func (j *Journal) Migrate(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	schema := `
		CREATE TABLE IF NOT EXISTS decisions (
			id BIGSERIAL PRIMARY KEY,
			ts TIMESTAMPTZ NOT NULL,
			symbol TEXT NOT NULL,
			allowed BOOLEAN NOT NULL,
			gate TEXT NOT NULL DEFAULT '',
			reason TEXT NOT NULL DEFAULT '',
			shares INTEGER NOT NULL DEFAULT 0,
			notional DOUBLE PRECISION NOT NULL DEFAULT 0,
			risk_pct DOUBLE PRECISION NOT NULL DEFAULT 0,
			client_order_id TEXT NOT NULL DEFAULT ''
		);
		CREATE INDEX IF NOT EXISTS idx_decisions_ts ON decisions (ts);
		CREATE TABLE IF NOT EXISTS fills (
			id BIGSERIAL PRIMARY KEY,
			ts TIMESTAMPTZ NOT NULL,
			symbol TEXT NOT NULL,
			side TEXT NOT NULL,
			quantity INTEGER NOT NULL,
			fill_price DOUBLE PRECISION NOT NULL,
			expected_price DOUBLE PRECISION NOT NULL,
			slippage_bps DOUBLE PRECISION NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_fills_ts ON fills (ts);`

	if _, err := j.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate journal schema: %w", err)
	}
	return nil
}
