package risk

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"optionsdesk/plan"
)

func defaultGovernor() *Governor {
	return NewGovernor(GovernorConfig{
		TradingCapital:       500000,
		MaxTradesPerDay:      2,
		MaxDailyLossPct:      1.5,
		MaxConsecutiveLosses: 2,
		MinRiskReward:        2.0,
		LotSize:              15,
	})
}

func validPlan() plan.Plan {
	return plan.Plan{
		ID:           "p-1",
		Valid:        true,
		Status:       plan.StatusPending,
		Direction:    plan.DirectionLong,
		RiskPoints:   300,
		RiskAmount:   4500,
		RiskRewardT2: 2.5,
		PositionLots: 1,
		LotSize:      15,
	}
}

func lossTrade(amount int64) Trade {
	t := Trade{
		ID:         "t-1",
		PlanID:     "p-1",
		Direction:  plan.DirectionLong,
		EntryPrice: decimal.NewFromInt(51700),
		Quantity:   15,
	}
	// Exit such that P&L amount equals -amount.
	points := decimal.NewFromInt(amount).Div(decimal.NewFromInt(15))
	t.Close(t.EntryPrice.Sub(points), time.Now(), "stop hit")
	return t
}

func TestGovernor_AllowsValidPlanFresh(t *testing.T) {
	g := defaultGovernor()
	now := time.Now()
	g.InitializeDay("2026-07-30", now)

	res := g.CheckTradeRisk(validPlan())
	require.True(t, res.Allowed, "reasons: %v", res.Reasons)
	assert.Empty(t, res.Reasons)
}

// Two -3000 exits trip the hard shutdown
// with the literal reason string, and every later check is rejected.
func TestGovernor_ConsecutiveLossShutdown(t *testing.T) {
	g := defaultGovernor()
	now := time.Now()
	g.InitializeDay("2026-07-30", now)

	g.RecordTradeEntry(validPlan(), now)
	st := g.RecordTradeExit(lossTrade(3000), now)
	require.False(t, st.HardShutdown)
	assert.Equal(t, 1, st.ConsecutiveLosses)

	g.RecordTradeEntry(validPlan(), now)
	st = g.RecordTradeExit(lossTrade(3000), now)
	require.True(t, st.HardShutdown)
	assert.Equal(t, "2 consecutive losses", st.ShutdownReason)
	assert.Equal(t, StatusShutdown, st.Status)

	res := g.CheckTradeRisk(validPlan())
	assert.False(t, res.Allowed)
	assert.Contains(t, res.Reasons[0], "hard shutdown")
}

// Hard shutdown is monotone; a later winning exit does not
// clear it.
func TestGovernor_ShutdownIsMonotone(t *testing.T) {
	g := defaultGovernor()
	now := time.Now()
	g.InitializeDay("2026-07-30", now)

	g.RecordTradeExit(lossTrade(3000), now)
	g.RecordTradeExit(lossTrade(3000), now)
	require.True(t, g.Snapshot().HardShutdown)

	win := Trade{ID: "t-w", Direction: plan.DirectionLong, EntryPrice: decimal.NewFromInt(51000), Quantity: 15}
	win.Close(decimal.NewFromInt(51500), now, "target hit")
	st := g.RecordTradeExit(win, now)

	assert.True(t, st.HardShutdown)
	assert.Equal(t, StatusShutdown, st.Status)
}

func TestGovernor_MaxLossShutdown(t *testing.T) {
	g := defaultGovernor()
	now := time.Now()
	g.InitializeDay("2026-07-30", now)

	// Max daily loss = 1.5% of 500000 = 7500; one big loss breaches it.
	st := g.RecordTradeExit(lossTrade(8000), now)

	require.True(t, st.HardShutdown)
	assert.Equal(t, "Maximum daily loss reached", st.ShutdownReason)
	assert.True(t, st.MaxLossReached)
}

// After max-trades entries every check is rejected.
func TestGovernor_DailyTradeCap(t *testing.T) {
	g := defaultGovernor()
	now := time.Now()
	g.InitializeDay("2026-07-30", now)

	g.RecordTradeEntry(validPlan(), now)
	st := g.RecordTradeEntry(validPlan(), now)
	assert.True(t, st.MaxTradesReached)
	assert.Equal(t, 0, st.TradesRemaining)

	res := g.CheckTradeRisk(validPlan())
	assert.False(t, res.Allowed)
	assert.Contains(t, res.Reasons[0], "daily trade cap")
}

func TestGovernor_CapacityRejectionSuggestsSmallerSize(t *testing.T) {
	g := defaultGovernor()
	now := time.Now()
	g.InitializeDay("2026-07-30", now)

	// Burn most of the capacity: 7500 limit, lose 5000.
	g.RecordTradeEntry(validPlan(), now)
	g.RecordTradeExit(lossTrade(5000), now)

	p := validPlan()
	p.RiskPoints = 300
	p.RiskAmount = 4500 // capacity is now 2500

	res := g.CheckTradeRisk(p)
	require.False(t, res.Allowed)
	// floor(2500 / (300*15)) = 0 -> clamped to 1.
	assert.Equal(t, 1, res.SuggestedLots)
}

func TestGovernor_UnrealizedNeverTriggersShutdown(t *testing.T) {
	g := defaultGovernor()
	now := time.Now()
	g.InitializeDay("2026-07-30", now)

	st := g.UpdateUnrealized(decimal.NewFromInt(-20000), now)

	assert.False(t, st.HardShutdown)
	assert.True(t, st.TotalPnL.Equal(decimal.NewFromInt(-20000)))
	// The next check still rejects on the loss cap, but no sticky
	// shutdown was set: a recovering mark restores tradability.
	res := g.CheckTradeRisk(validPlan())
	assert.False(t, res.Allowed)

	st = g.UpdateUnrealized(decimal.Zero, now)
	assert.False(t, st.HardShutdown)
}

func TestGovernor_WarningsOnLastTradeAndAfterLoss(t *testing.T) {
	g := defaultGovernor()
	now := time.Now()
	g.InitializeDay("2026-07-30", now)

	g.RecordTradeEntry(validPlan(), now)
	g.RecordTradeExit(lossTrade(1000), now)

	res := g.CheckTradeRisk(validPlan())
	require.True(t, res.Allowed)
	assert.Len(t, res.Warnings, 3) // consecutive loss, last trade, >50% capacity
}

func TestGovernor_ShouldTightenSL(t *testing.T) {
	g := defaultGovernor()
	assert.False(t, g.ShouldTightenSL(100, 450))
	assert.True(t, g.ShouldTightenSL(225, 450))
	assert.True(t, g.ShouldTightenSL(300, 450))
	assert.False(t, g.ShouldTightenSL(300, 0))
}

func TestGovernor_InitializeDayIdempotent(t *testing.T) {
	g := defaultGovernor()
	now := time.Now()
	g.InitializeDay("2026-07-30", now)
	g.RecordTradeEntry(validPlan(), now)

	st := g.InitializeDay("2026-07-30", now)
	assert.Equal(t, 1, st.TradesTaken, "re-initializing the same date must not wipe the ledger")
}

func TestTrade_PnLArithmetic(t *testing.T) {
	long := Trade{Direction: plan.DirectionLong, EntryPrice: decimal.NewFromInt(51700), Quantity: 15}
	long.Close(decimal.NewFromInt(51900), time.Now(), "target")
	assert.True(t, long.PnLAmount.Equal(decimal.NewFromInt(3000)))
	assert.True(t, long.Winner)

	short := Trade{Direction: plan.DirectionShort, EntryPrice: decimal.NewFromInt(51700), Quantity: 15}
	short.Close(decimal.NewFromInt(51900), time.Now(), "stop")
	assert.True(t, short.PnLAmount.Equal(decimal.NewFromInt(-3000)))
	assert.False(t, short.Winner)
}
