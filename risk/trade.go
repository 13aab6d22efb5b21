package risk

import (
	"time"

	"github.com/shopspring/decimal"

	"optionsdesk/plan"
)

// Trade is one executed (human-logged) trade against a plan.
type Trade struct {
	ID         string              `json:"id"`
	PlanID     string              `json:"plan_id"`
	Instrument string              `json:"instrument"`
	Direction  plan.Direction      `json:"direction"`
	EntryPrice decimal.Decimal     `json:"entry_price"`
	EntryTime  time.Time           `json:"entry_time"`
	Quantity   int64               `json:"quantity"`
	ExitPrice  decimal.Decimal     `json:"exit_price"`
	ExitTime   time.Time           `json:"exit_time"`
	ExitReason string              `json:"exit_reason"`
	PnLPoints  decimal.Decimal     `json:"pnl_points"`
	PnLAmount  decimal.Decimal     `json:"pnl_amount"`
	Closed     bool                `json:"closed"`
	Winner     bool                `json:"winner"`
	Notes      string              `json:"notes"`
}

// Close records the exit and computes P&L: (exit - entry) * quantity
// for a long, negated for a short. Winner is strictly positive P&L.
func (t *Trade) Close(exitPrice decimal.Decimal, exitTime time.Time, reason string) {
	t.ExitPrice = exitPrice
	t.ExitTime = exitTime
	t.ExitReason = reason

	t.PnLPoints = exitPrice.Sub(t.EntryPrice)
	if t.Direction == plan.DirectionShort {
		t.PnLPoints = t.PnLPoints.Neg()
	}
	t.PnLAmount = t.PnLPoints.Mul(decimal.NewFromInt(t.Quantity))

	t.Closed = true
	t.Winner = t.PnLAmount.IsPositive()
}
