package risk

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"optionsdesk/logger"
	"optionsdesk/plan"
)

// GovernorConfig is the subset of configuration the governor needs.
type GovernorConfig struct {
	TradingCapital       float64
	MaxTradesPerDay      int
	MaxDailyLossPct      float64
	MaxConsecutiveLosses int
	MinRiskReward        float64
	LotSize              int
}

// CheckResult is the governor's verdict on a proposed plan.
type CheckResult struct {
	Allowed       bool
	Reasons       []string
	Warnings      []string
	SuggestedLots int // set on a capacity rejection: max(1, floor(capacity / risk per lot)); one lot may still exceed capacity
}

// Governor holds the one authoritative DailyState. Every operation
// runs under the same mutex; readers take a consistent snapshot.
type Governor struct {
	mu    sync.Mutex
	cfg   GovernorConfig
	state *DailyState
}

// NewGovernor builds a Governor with no active day; InitializeDay must
// run before any check.
func NewGovernor(cfg GovernorConfig) *Governor {
	return &Governor{cfg: cfg}
}

// InitializeDay creates a fresh DailyState for the given date with
// zeroed counters from configured capital and caps. Called by the
// day-start activity; calling it again for the same date is a no-op so
// a restarted process cannot wipe the day's ledger.
func (g *Governor) InitializeDay(date string, now time.Time) *DailyState {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state != nil && g.state.Date == date {
		return g.snapshotLocked()
	}

	capital := decimal.NewFromFloat(g.cfg.TradingCapital)
	st := &DailyState{
		Date:                 date,
		MaxTrades:            g.cfg.MaxTradesPerDay,
		MaxConsecutiveLosses: g.cfg.MaxConsecutiveLosses,
		StartingCapital:      capital,
		CurrentCapital:       capital,
		MaxDailyLossPct:      g.cfg.MaxDailyLossPct,
		MaxDailyLossAmount:   capital.Mul(decimal.NewFromFloat(g.cfg.MaxDailyLossPct)).Div(decimal.NewFromInt(100)),
		Status:               StatusNormal,
		CreatedAt:            now,
	}
	st.recompute(now)
	g.state = st
	logger.Infof("risk day initialized: %s capital=%s max-loss=%s max-trades=%d",
		date, st.StartingCapital, st.MaxDailyLossAmount, st.MaxTrades)
	return g.snapshotLocked()
}

// Restore replaces the in-memory state with one loaded from
// persistence, used at process start to resume mid-day. A restored
// hard shutdown stays in force.
func (g *Governor) Restore(st DailyState) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.state = &st
}

// CheckTradeRisk decides whether a plan may be acted on right now.
func (g *Governor) CheckTradeRisk(p plan.Plan) CheckResult {
	g.mu.Lock()
	defer g.mu.Unlock()

	res := CheckResult{}
	st := g.state
	if st == nil {
		res.Reasons = append(res.Reasons, "risk day not initialized")
		return res
	}

	if st.HardShutdown {
		res.Reasons = append(res.Reasons, fmt.Sprintf("hard shutdown in force: %s", st.ShutdownReason))
	}
	if st.TradesTaken >= st.MaxTrades {
		res.Reasons = append(res.Reasons, fmt.Sprintf("daily trade cap reached (%d/%d)", st.TradesTaken, st.MaxTrades))
	}
	if st.TotalPnL.LessThanOrEqual(st.MaxDailyLossAmount.Neg()) {
		res.Reasons = append(res.Reasons, "maximum daily loss reached")
	}

	riskAmount := decimal.NewFromFloat(p.RiskAmount)
	if riskAmount.GreaterThan(st.RemainingRiskCapacity) {
		res.Reasons = append(res.Reasons,
			fmt.Sprintf("plan risk %s exceeds remaining capacity %s", riskAmount, st.RemainingRiskCapacity))
		res.SuggestedLots = suggestedLots(st.RemainingRiskCapacity, p.RiskPoints, g.cfg.LotSize)
	}
	if !p.Valid {
		res.Reasons = append(res.Reasons, "plan is not valid")
		res.Reasons = append(res.Reasons, p.RejectionReasons...)
	}
	if p.RiskRewardT2 < g.cfg.MinRiskReward {
		res.Reasons = append(res.Reasons,
			fmt.Sprintf("risk-reward at T2 %.2f below minimum %.2f", p.RiskRewardT2, g.cfg.MinRiskReward))
	}

	if len(res.Reasons) > 0 {
		return res
	}

	if st.ConsecutiveLosses >= 1 {
		res.Warnings = append(res.Warnings,
			fmt.Sprintf("%d consecutive loss(es): shutdown triggers at %d", st.ConsecutiveLosses, st.MaxConsecutiveLosses))
	}
	if st.TradesTaken == st.MaxTrades-1 {
		res.Warnings = append(res.Warnings, "this would be the last allowed trade today")
	}
	half := st.RemainingRiskCapacity.Div(decimal.NewFromInt(2))
	if riskAmount.GreaterThan(half) {
		res.Warnings = append(res.Warnings, "plan risks more than half the remaining daily capacity")
	}

	res.Allowed = true
	return res
}

func suggestedLots(capacity decimal.Decimal, riskPoints float64, lotSize int) int {
	if riskPoints <= 0 || lotSize <= 0 {
		return 1
	}
	perLot := riskPoints * float64(lotSize)
	cap64, _ := capacity.Float64()
	lots := int(math.Floor(cap64 / perLot))
	if lots < 1 {
		return 1
	}
	return lots
}

// RecordTradeEntry counts a new entry against the daily caps.
func (g *Governor) RecordTradeEntry(p plan.Plan, now time.Time) *DailyState {
	g.mu.Lock()
	defer g.mu.Unlock()

	st := g.state
	if st == nil {
		return nil
	}
	st.TradesTaken++
	st.recompute(now)
	logger.Infof("trade entry recorded: plan=%s taken=%d/%d", p.ID, st.TradesTaken, st.MaxTrades)
	return g.snapshotLocked()
}

// RecordTradeExit folds a closed trade into realized P&L and
// re-evaluates the hard-shutdown triggers.
func (g *Governor) RecordTradeExit(t Trade, now time.Time) *DailyState {
	g.mu.Lock()
	defer g.mu.Unlock()

	st := g.state
	if st == nil {
		return nil
	}

	st.RealizedPnL = st.RealizedPnL.Add(t.PnLAmount)
	if st.WorstTradePnL.IsZero() || t.PnLAmount.LessThan(st.WorstTradePnL) {
		st.WorstTradePnL = t.PnLAmount
	}
	if st.BestTradePnL.IsZero() || t.PnLAmount.GreaterThan(st.BestTradePnL) {
		st.BestTradePnL = t.PnLAmount
	}

	if t.Winner {
		st.ConsecutiveLosses = 0
	} else {
		st.ConsecutiveLosses++
	}

	st.recompute(now)
	g.evaluateShutdownLocked(now)
	logger.Infof("trade exit recorded: trade=%s pnl=%s realized=%s consecutive-losses=%d",
		t.ID, t.PnLAmount, st.RealizedPnL, st.ConsecutiveLosses)
	return g.snapshotLocked()
}

// UpdateUnrealized refreshes the open-position mark. It affects total
// P&L and current capital only and never triggers shutdown.
func (g *Governor) UpdateUnrealized(amount decimal.Decimal, now time.Time) *DailyState {
	g.mu.Lock()
	defer g.mu.Unlock()

	st := g.state
	if st == nil {
		return nil
	}
	st.UnrealizedPnL = amount
	st.recompute(now)
	return g.snapshotLocked()
}

// ShouldTightenSL advises moving the stop to breakeven once unrealized
// profit covers half the distance to the first target.
func (g *Governor) ShouldTightenSL(unrealizedPoints, target1Points float64) bool {
	return target1Points > 0 && unrealizedPoints >= 0.5*target1Points
}

// evaluateShutdownLocked applies the monotone hard-shutdown triggers.
// Once set, the flag survives every later recompute for the day.
func (g *Governor) evaluateShutdownLocked(now time.Time) {
	st := g.state
	if st.HardShutdown {
		return
	}

	switch {
	case st.RealizedPnL.Add(st.UnrealizedPnL).LessThanOrEqual(st.MaxDailyLossAmount.Neg()):
		st.HardShutdown = true
		st.ShutdownReason = "Maximum daily loss reached"
	case st.ConsecutiveLosses >= st.MaxConsecutiveLosses:
		st.HardShutdown = true
		st.ShutdownReason = fmt.Sprintf("%d consecutive losses", st.ConsecutiveLosses)
	}

	if st.HardShutdown {
		st.recompute(now)
		logger.Warnf("HARD SHUTDOWN: %s", st.ShutdownReason)
	}
}

// Snapshot returns a consistent copy of the current state, or nil when
// no day is active.
func (g *Governor) Snapshot() *DailyState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.snapshotLocked()
}

func (g *Governor) snapshotLocked() *DailyState {
	if g.state == nil {
		return nil
	}
	cp := *g.state
	return &cp
}
