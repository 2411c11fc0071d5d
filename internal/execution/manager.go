package execution

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/sawpanic/equityrun/internal/config"
	"github.com/sawpanic/equityrun/internal/domain"
)

// ExecutionState accumulates fill history and the sticky strategy block.
// Mutated only by ExecutionManager; not safe for concurrent mutation.
// StrategyBlocked is never cleared here; operators reset it externally once
// the slippage source is understood.
type ExecutionState struct {
	FillHistory    []domain.FillReport `json:"fill_history"`
	AvgSlippageBps float64             `json:"avg_slippage_bps"`
	StrategyBlocked bool               `json:"strategy_blocked"`
}

// NewExecutionState returns an empty state.
func NewExecutionState() *ExecutionState {
	return &ExecutionState{}
}

// ExecutionManager builds orders, gates on spread, and tracks realized
// slippage against expected prices.
type ExecutionManager struct {
	cfg config.ExecutionConfig
	now func() time.Time
}

func NewExecutionManager(cfg config.ExecutionConfig) *ExecutionManager {
	return &ExecutionManager{cfg: cfg, now: time.Now}
}

// CanTradeSpread denies when the quoted spread exceeds the ceiling.
func (m *ExecutionManager) CanTradeSpread(spreadPct float64) (bool, string) {
	if spreadPct > m.cfg.MaxSpreadPctToTrade {
		return false, fmt.Sprintf("spread %.4f%% > max %.4f%%", spreadPct, m.cfg.MaxSpreadPctToTrade)
	}
	return true, ""
}

// BuildOrder constructs the order for a sized trade, or nil when the spread
// gate fails. Limit orders are offset from mid by the configured number of
// ticks in the favorable direction (buy below mid, sell above), rounded to
// the tick size.
func (m *ExecutionManager) BuildOrder(symbol string, side domain.Side, quantity int, midPrice, spreadPct, tickSize float64) *domain.OrderRequest {
	if ok, _ := m.CanTradeSpread(spreadPct); !ok {
		return nil
	}

	order := &domain.OrderRequest{
		ClientOrderID: uuid.NewString(),
		Symbol:        symbol,
		Side:          side,
		Quantity:      quantity,
		OrderType:     domain.OrderTypeMarket,
		ExpectedPrice: midPrice,
	}
	if !m.cfg.PreferLimitOrders {
		return order
	}

	offset := float64(m.cfg.LimitOrderOffsetTicks) * tickSize
	limit := midPrice - offset
	if side == domain.SideSell {
		limit = midPrice + offset
	}
	order.OrderType = domain.OrderTypeLimit
	order.LimitPrice = roundToTick(limit, tickSize)
	return order
}

func roundToTick(price, tickSize float64) float64 {
	if tickSize <= 0 {
		return price
	}
	return math.Round(price/tickSize) * tickSize
}

// RecordFill appends a fill, recomputes the trailing average slippage, and
// latches StrategyBlocked once the average crosses the threshold. Slippage
// is signed adverse-positive for both sides: a buy above expected or a sell
// below expected comes out positive.
func (m *ExecutionManager) RecordFill(state *ExecutionState, symbol string, side domain.Side, quantity int, fillPrice, expectedPrice float64) {
	slippageBps := 0.0
	if expectedPrice > 0 {
		slippageBps = (fillPrice - expectedPrice) / expectedPrice * 10_000
		if side == domain.SideSell {
			slippageBps = -slippageBps
		}
	}

	state.FillHistory = append(state.FillHistory, domain.FillReport{
		Symbol:        symbol,
		Side:          side,
		Quantity:      quantity,
		FillPrice:     fillPrice,
		ExpectedPrice: expectedPrice,
		SlippageBps:   slippageBps,
		Timestamp:     m.now(),
	})

	window := state.FillHistory
	if n := m.cfg.SlippageWindowFills; n > 0 && len(window) > n {
		window = window[len(window)-n:]
	}
	sum := 0.0
	for _, f := range window {
		sum += f.SlippageBps
	}
	state.AvgSlippageBps = sum / float64(len(window))

	if state.AvgSlippageBps > m.cfg.BlockStrategyAboveBps {
		state.StrategyBlocked = true
	}
}

// ShouldBlockStrategy reports the sticky block flag.
func (m *ExecutionManager) ShouldBlockStrategy(state *ExecutionState) bool {
	return state.StrategyBlocked
}

// PartialFillShouldCancelReplace is true when cancel/replace is enabled and
// the filled fraction of the request sits below the minimum fill ratio.
func (m *ExecutionManager) PartialFillShouldCancelReplace(filledQty, requestedQty int) bool {
	if !m.cfg.CancelReplaceOnPartial || requestedQty <= 0 {
		return false
	}
	if filledQty <= 0 || filledQty >= requestedQty {
		return false
	}
	return float64(filledQty)/float64(requestedQty) < m.cfg.MinFillRatio
}
