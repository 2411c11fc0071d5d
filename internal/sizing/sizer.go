package sizing

import (
	"math"

	"github.com/sawpanic/equityrun/internal/config"
	"github.com/sawpanic/equityrun/internal/domain"
)

// PositionSizer converts a risk budget into a share count under the
// per-symbol cap, per-sector cap and high-volatility reduction. It is a pure
// function of its inputs; nothing is stored between calls.
type PositionSizer struct {
	cfg config.PositionSizingConfig
}

func NewPositionSizer(cfg config.PositionSizingConfig) *PositionSizer {
	return &PositionSizer{cfg: cfg}
}

// SizeRequest carries the account and market facts for one sizing call.
// ATRPct is optional; nil skips the high-volatility reduction.
type SizeRequest struct {
	Equity            float64
	Price             float64
	StopDistancePct   float64
	Symbol            string
	CurrentPositions  map[string]domain.Position
	SectorExposurePct map[string]float64 // sector -> % of equity currently deployed
	SymbolSector      map[string]string  // symbol -> sector
	ATRPct            *float64
}

// SizePosition computes shares so that risk ≈ risk_per_trade_pct of equity,
// then shrinks (never rejects) under the tighter of the symbol and sector
// exposure caps, then applies the high-volatility reduction. Zero shares is
// a valid outcome. RejectReason is set only for structurally invalid inputs.
func (s *PositionSizer) SizePosition(req SizeRequest) domain.PositionSizingResult {
	if req.Equity <= 0 {
		return domain.PositionSizingResult{RejectReason: "invalid equity"}
	}
	if req.Price <= 0 {
		return domain.PositionSizingResult{RejectReason: "invalid price"}
	}
	if req.StopDistancePct <= 0 {
		return domain.PositionSizingResult{RejectReason: "invalid stop_distance_pct"}
	}

	riskBudget := req.Equity * s.cfg.RiskPerTradePct / 100.0
	riskPerShare := req.Price * req.StopDistancePct / 100.0
	shares := int(riskBudget / riskPerShare)
	if shares <= 0 {
		return domain.PositionSizingResult{}
	}

	// Tighter of the symbol and sector caps wins; capping shrinks the trade.
	capNotional := s.symbolCapNotional(req)
	if sectorCap, ok := s.sectorCapNotional(req); ok && sectorCap < capNotional {
		capNotional = sectorCap
	}
	if capNotional < 0 {
		capNotional = 0
	}
	if float64(shares)*req.Price > capNotional {
		shares = int(capNotional / req.Price)
	}

	if s.cfg.HighVolReductionEnabled && req.ATRPct != nil && *req.ATRPct > s.cfg.HighVolATRThresholdPct {
		shares = int(math.Floor(float64(shares) * s.cfg.HighVolSizeMultiplier))
	}

	if shares <= 0 {
		return domain.PositionSizingResult{}
	}

	notional := float64(shares) * req.Price
	riskAmount := notional * req.StopDistancePct / 100.0
	return domain.PositionSizingResult{
		Shares:     shares,
		Notional:   notional,
		RiskAmount: riskAmount,
		RiskPct:    riskAmount / req.Equity * 100.0,
	}
}

// symbolCapNotional is the notional headroom left under the per-symbol cap.
func (s *PositionSizer) symbolCapNotional(req SizeRequest) float64 {
	existing := 0.0
	if pos, ok := req.CurrentPositions[req.Symbol]; ok {
		existing = pos.Notional
	}
	return req.Equity*s.cfg.MaxExposurePerSymbolPct/100.0 - existing
}

// sectorCapNotional is the headroom under the sector cap, when the symbol's
// sector is known. Unknown sectors skip the sector check.
func (s *PositionSizer) sectorCapNotional(req SizeRequest) (float64, bool) {
	sector, ok := req.SymbolSector[req.Symbol]
	if !ok {
		return 0, false
	}
	currentPct := req.SectorExposurePct[sector]
	return req.Equity * (s.cfg.MaxExposurePerSectorPct - currentPct) / 100.0, true
}

// TotalOpenRiskPct sums notional × stop distance over the open positions and
// expresses it as a percentage of equity.
func (s *PositionSizer) TotalOpenRiskPct(equity float64, positions []domain.Position) float64 {
	if equity <= 0 {
		return 0
	}
	total := 0.0
	for _, p := range positions {
		total += p.Notional * p.StopPct / 100.0
	}
	return total / equity * 100.0
}

// WouldExceedMaxOpenRisk reports whether adding newTradeRiskPct to the
// current open risk breaches the configured ceiling. Callers run this after
// sizing and before accepting the trade.
func (s *PositionSizer) WouldExceedMaxOpenRisk(currentOpenRiskPct, newTradeRiskPct float64) bool {
	return currentOpenRiskPct+newTradeRiskPct > s.cfg.MaxOpenRiskPct
}

// MaxOpenRiskPct exposes the ceiling for denial reasons.
func (s *PositionSizer) MaxOpenRiskPct() float64 {
	return s.cfg.MaxOpenRiskPct
}
