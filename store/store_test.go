package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"optionsdesk/plan"
	"optionsdesk/risk"
	"optionsdesk/signal"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// A risk state written through the persistence schema and
// re-loaded reproduces the same can-trade and status values.
func TestRiskState_RoundTrip(t *testing.T) {
	s := openTestStore(t)

	gov := risk.NewGovernor(risk.GovernorConfig{
		TradingCapital:       500000,
		MaxTradesPerDay:      2,
		MaxDailyLossPct:      1.5,
		MaxConsecutiveLosses: 2,
		MinRiskReward:        2.0,
		LotSize:              15,
	})
	now := time.Now()
	gov.InitializeDay("2026-07-30", now)
	gov.RecordTradeEntry(plan.Plan{ID: "p-1", Valid: true}, now)

	lose := risk.Trade{ID: "t-1", PlanID: "p-1", Direction: plan.DirectionLong,
		EntryPrice: decimal.NewFromInt(51700), Quantity: 15}
	lose.Close(decimal.NewFromInt(51500), now, "stop hit")
	st := gov.RecordTradeExit(lose, now)
	require.NotNil(t, st)

	require.NoError(t, s.RiskState().Upsert(*st))
	loaded, err := s.RiskState().Load("2026-07-30")
	require.NoError(t, err)

	assert.Equal(t, st.CanTrade(), loaded.CanTrade())
	assert.Equal(t, st.Status, loaded.Status)
	assert.Equal(t, st.HardShutdown, loaded.HardShutdown)
	assert.True(t, st.RealizedPnL.Equal(loaded.RealizedPnL))
	assert.Equal(t, st.TradesTaken, loaded.TradesTaken)
}

func TestRiskState_UpsertReplacesByDate(t *testing.T) {
	s := openTestStore(t)

	st := risk.DailyState{Date: "2026-07-30", Status: risk.StatusNormal}
	require.NoError(t, s.RiskState().Upsert(st))

	st.Status = risk.StatusShutdown
	st.HardShutdown = true
	require.NoError(t, s.RiskState().Upsert(st))

	loaded, err := s.RiskState().Load("2026-07-30")
	require.NoError(t, err)
	assert.True(t, loaded.HardShutdown)
	assert.Equal(t, risk.StatusShutdown, loaded.Status)
}

func TestSignalAndPlanAppend(t *testing.T) {
	s := openTestStore(t)
	ts := time.Date(2026, 7, 30, 11, 0, 0, 0, time.UTC)

	sig := signal.TradeSignal{ID: "s-1", Timestamp: ts, Direction: signal.Long, Valid: true, TotalScore: 17}
	require.NoError(t, s.Signals().Append(sig))

	p := plan.Plan{
		ID: "p-1", SignalID: "s-1", Direction: plan.DirectionLong,
		Status: plan.StatusPending, Valid: true,
		CreatedAt: ts, ExpiresAt: ts.Add(30 * time.Minute),
	}
	require.NoError(t, s.Plans().Append(p))

	sigs, err := s.Signals().Recent(10)
	require.NoError(t, err)
	require.Len(t, sigs, 1)
	assert.Equal(t, "s-1", sigs[0].ID)

	got, err := s.Plans().Get("p-1")
	require.NoError(t, err)
	assert.Equal(t, plan.StatusPending, got.Status)

	require.NoError(t, s.Plans().UpdateStatus("p-1", plan.StatusExpired))
	got, err = s.Plans().Get("p-1")
	require.NoError(t, err)
	assert.Equal(t, plan.StatusExpired, got.Status)

	plans, err := s.Plans().Recent(5)
	require.NoError(t, err)
	require.Len(t, plans, 1)
}

func TestTradeUpsertLifecycle(t *testing.T) {
	s := openTestStore(t)

	tr := risk.Trade{ID: "t-1", PlanID: "p-1", Direction: plan.DirectionLong,
		EntryPrice: decimal.NewFromInt(51700), EntryTime: time.Now(), Quantity: 15}
	require.NoError(t, s.Trades().Upsert(tr))

	tr.Close(decimal.NewFromInt(51900), time.Now(), "target hit")
	require.NoError(t, s.Trades().Upsert(tr))

	got, err := s.Trades().Get("t-1")
	require.NoError(t, err)
	assert.True(t, got.Closed)
	assert.True(t, got.Winner)
	assert.True(t, got.PnLAmount.Equal(decimal.NewFromInt(3000)))
}
