// Package risk enforces the daily risk governor: trade caps, loss
// caps, and the sticky hard-shutdown rules that no other component may
// override. Currency amounts use decimal arithmetic so a day of
// repeated P&L additions never drifts.
package risk

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status is the governor's escalation ladder.
type Status string

const (
	StatusNormal   Status = "normal"
	StatusCaution  Status = "caution"
	StatusWarning  Status = "warning"
	StatusCritical Status = "critical"
	StatusShutdown Status = "shutdown"
)

// DailyState is the single authoritative per-day risk record, keyed by
// Date. Once HardShutdown is set it never reverts within the day.
type DailyState struct {
	Date string `json:"date"` // YYYY-MM-DD, primary key

	TradesTaken     int `json:"trades_taken"`
	MaxTrades       int `json:"max_trades"`
	TradesRemaining int `json:"trades_remaining"`

	RealizedPnL   decimal.Decimal `json:"realized_pnl"`
	UnrealizedPnL decimal.Decimal `json:"unrealized_pnl"`
	TotalPnL      decimal.Decimal `json:"total_pnl"`

	ConsecutiveLosses    int `json:"consecutive_losses"`
	MaxConsecutiveLosses int `json:"max_consecutive_losses"`

	WorstTradePnL decimal.Decimal `json:"worst_trade_pnl"`
	BestTradePnL  decimal.Decimal `json:"best_trade_pnl"`

	StartingCapital decimal.Decimal `json:"starting_capital"`
	CurrentCapital  decimal.Decimal `json:"current_capital"`

	MaxDailyLossPct    float64         `json:"max_daily_loss_pct"`
	MaxDailyLossAmount decimal.Decimal `json:"max_daily_loss_amount"`

	// Max-loss-amount + total P&L, clamped non-negative for display.
	RemainingRiskCapacity decimal.Decimal `json:"remaining_risk_capacity"`

	MaxLossReached   bool `json:"max_loss_reached"`
	MaxTradesReached bool `json:"max_trades_reached"`
	HardShutdown     bool `json:"hard_shutdown"`

	Status         Status `json:"status"`
	ShutdownReason string `json:"shutdown_reason"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CanTrade reports whether the governor would even consider a new
// entry: no shutdown, trades remaining, loss cap not breached.
func (s *DailyState) CanTrade() bool {
	return !s.HardShutdown &&
		s.TradesTaken < s.MaxTrades &&
		s.TotalPnL.GreaterThan(s.MaxDailyLossAmount.Neg())
}

// recompute refreshes every derived field from the primaries.
func (s *DailyState) recompute(now time.Time) {
	s.TotalPnL = s.RealizedPnL.Add(s.UnrealizedPnL)
	s.CurrentCapital = s.StartingCapital.Add(s.TotalPnL)

	s.TradesRemaining = s.MaxTrades - s.TradesTaken
	if s.TradesRemaining < 0 {
		s.TradesRemaining = 0
	}
	s.MaxTradesReached = s.TradesTaken >= s.MaxTrades

	capacity := s.MaxDailyLossAmount.Add(s.TotalPnL)
	if capacity.IsNegative() {
		capacity = decimal.Zero
	}
	s.RemainingRiskCapacity = capacity

	s.MaxLossReached = s.TotalPnL.LessThanOrEqual(s.MaxDailyLossAmount.Neg())

	s.Status = s.deriveStatus()
	s.UpdatedAt = now
}

// deriveStatus: shutdown > critical > warning > caution > normal.
func (s *DailyState) deriveStatus() Status {
	halfCapacity := s.MaxDailyLossAmount.Div(decimal.NewFromInt(2))
	switch {
	case s.HardShutdown:
		return StatusShutdown
	case s.MaxLossReached || s.MaxTradesReached:
		return StatusCritical
	case s.ConsecutiveLosses >= 1 || s.RemainingRiskCapacity.LessThan(halfCapacity):
		return StatusWarning
	case s.TradesTaken >= 1 || s.TotalPnL.IsNegative():
		return StatusCaution
	default:
		return StatusNormal
	}
}
