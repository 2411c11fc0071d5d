package domain

import (
	"fmt"
	"time"
)

// Side is the direction of an order or position.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// OrderType distinguishes limit from market orders.
type OrderType string

const (
	OrderTypeLimit  OrderType = "limit"
	OrderTypeMarket OrderType = "market"
)

// Bar is a single OHLCV bar. Bars are supplied newest-last.
type Bar struct {
	Timestamp time.Time `json:"ts"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

// Position is an open position as reported by the account, with the stop
// distance attached so open risk can be aggregated.
type Position struct {
	Symbol   string  `json:"symbol"`
	Notional float64 `json:"notional"`
	StopPct  float64 `json:"stop_pct"`
}

// OrderRequest is the order the engine hands back to the caller. The engine
// never submits it; the broker client is the caller's concern.
type OrderRequest struct {
	ClientOrderID string    `json:"client_order_id"`
	Symbol        string    `json:"symbol"`
	Side          Side      `json:"side"`
	Quantity      int       `json:"quantity"`
	OrderType     OrderType `json:"order_type"`
	LimitPrice    float64   `json:"limit_price,omitempty"` // set iff OrderType == limit
	ExpectedPrice float64   `json:"expected_price"`
}

// FillReport records one fill against its expected price. SlippageBps is
// signed so that adverse fills are positive regardless of side.
type FillReport struct {
	Symbol        string    `json:"symbol"`
	Side          Side      `json:"side"`
	Quantity      int       `json:"quantity"`
	FillPrice     float64   `json:"fill_price"`
	ExpectedPrice float64   `json:"expected_price"`
	SlippageBps   float64   `json:"slippage_bps"`
	Timestamp     time.Time `json:"ts"`
}

// EntrySignal is produced by a strategy when its entry conditions hold.
type EntrySignal struct {
	Symbol        string             `json:"symbol"`
	Side          Side               `json:"side"`
	Strength      float64            `json:"strength"`
	StopPct       float64            `json:"stop_pct"`
	TakeProfitPct float64            `json:"take_profit_pct,omitempty"` // 0 = no target
	TimeBarsExit  int                `json:"time_bars_exit"`
	Metadata      map[string]float64 `json:"metadata,omitempty"`
}

// ExitReason tags why a position should be closed, in trigger precedence.
type ExitReason string

const (
	ExitStopLoss   ExitReason = "stop_loss"
	ExitTakeProfit ExitReason = "take_profit"
	ExitTimeBars   ExitReason = "time_bars"
	ExitKillSwitch ExitReason = "kill_switch"
)

// ExitSignal is produced by a strategy when a position should be closed.
type ExitSignal struct {
	Symbol   string             `json:"symbol"`
	Reason   ExitReason         `json:"reason"`
	Metadata map[string]float64 `json:"metadata,omitempty"`
}

// PositionSizingResult carries the share count and the risk it implies.
// Zero shares with an empty RejectReason is a valid outcome: the caps
// reduced the trade away rather than rejecting it.
type PositionSizingResult struct {
	Shares       int     `json:"shares"`
	Notional     float64 `json:"notional"`
	RiskAmount   float64 `json:"risk_amount"`
	RiskPct      float64 `json:"risk_pct"`
	RejectReason string  `json:"reject_reason,omitempty"`
}

// TradeDecision is the single output of the entry gate chain. Immutable once
// constructed; Order, Entry and Sizing are populated iff Allowed.
type TradeDecision struct {
	Symbol    string                `json:"symbol"`
	Timestamp time.Time             `json:"ts"`
	Allowed   bool                  `json:"allowed"`
	Gate      string                `json:"gate,omitempty"` // gate that denied, empty on allow
	Reason    string                `json:"reason,omitempty"`
	Order     *OrderRequest         `json:"order,omitempty"`
	Entry     *EntrySignal          `json:"entry,omitempty"`
	Sizing    *PositionSizingResult `json:"sizing,omitempty"`
}

// Deny builds a denial decision for a named gate.
func Deny(symbol string, ts time.Time, gate, reason string) *TradeDecision {
	return &TradeDecision{Symbol: symbol, Timestamp: ts, Allowed: false, Gate: gate, Reason: reason}
}

// Denyf builds a denial decision with a formatted reason.
func Denyf(symbol string, ts time.Time, gate, format string, args ...any) *TradeDecision {
	return Deny(symbol, ts, gate, fmt.Sprintf(format, args...))
}

// String renders a one-line summary of the decision.
func (d *TradeDecision) String() string {
	if d.Allowed {
		return fmt.Sprintf("ALLOW %s qty=%d", d.Symbol, d.Order.Quantity)
	}
	return fmt.Sprintf("DENY %s [%s] %s", d.Symbol, d.Gate, d.Reason)
}
