package plan

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"optionsdesk/confluence"
	"optionsdesk/market"
	"optionsdesk/options"
	"optionsdesk/regime"
	"optionsdesk/signal"
)

func defaultConfig() BuilderConfig {
	return BuilderConfig{MaxRiskAmount: 5000, MinRiskReward: 2.0, LotSize: 15}
}

// trendDayInputs builds a clean trend day: spot 51500 area, price 51700 above a
// captured OR of [51400, 51600], session range 400, everything aligned
// long.
func trendDayInputs() (signal.TradeSignal, market.Snapshot, regime.Regime, options.Intel) {
	snap := market.Snapshot{
		Spot: market.Spot{
			Symbol: "BANKNIFTY",
			LTP:    51700,
			Session: market.OHLCV{
				Open: 51450, High: 51750, Low: 51350, Close: 51700, Volume: 1_000_000,
			},
			PreviousClose: 51400,
		},
		Futures:      market.Futures{Symbol: "BANKNIFTY-FUT", Price: 51730},
		OptionsChain: market.OptionsChain{Underlying: "BANKNIFTY", ATMStrike: 51700},
		Timestamp:    time.Date(2026, 7, 30, 11, 0, 0, 0, time.UTC),
	}

	reg := regime.Regime{
		Type:         regime.TrendingBullish,
		Volatility:   regime.VolNormal,
		Trend:        regime.TrendUp,
		TradeAllowed: true,
		OpeningRange: regime.OpeningRange{High: 51600, Low: 51400, Captured: true},
	}

	intel := options.Intel{Direction: options.Long, Confidence: 0.7, IVStatus: options.IVNormal}

	sig := signal.Fuse(snap, reg,
		confluence.Result{Total: 8.0, Max: 10, Direction: confluence.Long, Eligible: true},
		intel)

	return sig, snap, reg, intel
}

// The full long-side arithmetic chain against
// literal inputs.
func TestBuild_ValidLongPlan(t *testing.T) {
	sig, snap, reg, intel := trendDayInputs()
	now := snap.Timestamp

	p := Build(sig, snap, reg, intel, defaultConfig(), now)

	require.True(t, p.Valid, "rejections: %v", p.RejectionReasons)
	assert.Equal(t, StatusPending, p.Status)
	assert.Equal(t, DirectionLong, p.Direction)
	assert.Equal(t, InstrumentFutures, p.InstrumentType)
	assert.Equal(t, "BANKNIFTY-FUT", p.Instrument)

	// atr-estimate = max(400*0.5, 0.2% of 51700) = 200; width = 60.
	assert.InDelta(t, 51640, p.Entry.Lower, 1e-9)
	assert.InDelta(t, 51700, p.Entry.Upper, 1e-9)
	assert.InDelta(t, 51682, p.Entry.Optimal, 1e-9)

	// sl-buffer = max(1.5*200, 0.5*200) = 300; already below OR.low-10.
	assert.InDelta(t, 51382, p.StopLoss, 1e-9)
	assert.Less(t, p.StopLoss, reg.OpeningRange.Low-10+1e-9)

	assert.InDelta(t, 300, p.RiskPoints, 1e-9)
	assert.InDelta(t, p.Entry.Optimal+1.5*300, p.Target1, 1e-9)
	assert.InDelta(t, p.Entry.Optimal+2.5*300, p.Target2, 1e-9)
	assert.InDelta(t, 2.5, p.RiskRewardT2, 1e-9)

	// risk per lot = 300*15 = 4500 against a 5000 cap: exactly one lot.
	assert.Equal(t, 1, p.PositionLots)
	assert.InDelta(t, 4500, p.RiskAmount, 1e-9)

	assert.Equal(t, now.Add(30*time.Minute), p.ExpiresAt)
}

// Entry/stop/target ordering invariants.
func TestBuild_OrderingInvariants(t *testing.T) {
	sig, snap, reg, intel := trendDayInputs()
	p := Build(sig, snap, reg, intel, defaultConfig(), snap.Timestamp)
	require.True(t, p.Valid)

	assert.LessOrEqual(t, p.Entry.Lower, p.Entry.Optimal)
	assert.LessOrEqual(t, p.Entry.Optimal, p.Entry.Upper)
	assert.Less(t, p.StopLoss, p.Entry.Optimal)
	assert.Less(t, p.Entry.Optimal, p.Target1)
	assert.Less(t, p.Target1, p.Target2)
}

func TestBuild_ShortMirrors(t *testing.T) {
	_, snap, reg, _ := trendDayInputs()
	snap.Spot.LTP = 51300 // below OR low
	reg.Trend = regime.TrendDown
	reg.Type = regime.TrendingBearish

	shortSig := signal.Fuse(snap, reg,
		confluence.Result{Total: 8.0, Max: 10, Direction: confluence.Short, Eligible: true},
		options.Intel{Direction: options.Short, Confidence: 0.7})

	p := Build(shortSig, snap, reg, options.Intel{Direction: options.Short, Confidence: 0.7}, defaultConfig(), snap.Timestamp)
	require.True(t, p.Valid, "rejections: %v", p.RejectionReasons)

	assert.Equal(t, DirectionShort, p.Direction)
	assert.Greater(t, p.StopLoss, p.Entry.Optimal)
	assert.Greater(t, p.Entry.Optimal, p.Target1)
	assert.Greater(t, p.Target1, p.Target2)
	assert.LessOrEqual(t, p.Entry.Lower, p.Entry.Optimal)
	assert.LessOrEqual(t, p.Entry.Optimal, p.Entry.Upper)
}

// A stop forced far from entry while the
// targets stand drops R:R-at-T2 below the minimum and the gate rejects.
func TestFinalize_LowRiskRewardRejected(t *testing.T) {
	sig, snap, reg, intel := trendDayInputs()
	p := Build(sig, snap, reg, intel, defaultConfig(), snap.Timestamp)
	require.True(t, p.Valid)

	// Widen the stop from 300 to 500 points; targets unchanged, so
	// R:R-T2 = 750/500 = 1.5.
	p.StopLoss = p.Entry.Optimal - 500
	Finalize(&p, reg, defaultConfig())

	assert.False(t, p.Valid)
	assert.Equal(t, StatusRejected, p.Status)
	require.NotEmpty(t, p.RejectionReasons)
	assert.Contains(t, p.RejectionReasons[0], "Risk-Reward")
	assert.InDelta(t, 1.5, p.RiskRewardT2, 1e-9)
}

// Lot clamping across a sweep of risk widths. Wider stops never
// increase the lot count.
func TestPositionLots_Monotonic(t *testing.T) {
	cfg := defaultConfig()
	prev := maxLots + 1
	for risk := 50.0; risk <= 800; risk += 25 {
		lots := positionLots(cfg.MaxRiskAmount, risk, cfg.LotSize)
		assert.LessOrEqual(t, lots, prev, "risk %.0f", risk)
		if lots > 0 {
			assert.GreaterOrEqual(t, lots, minLots)
			assert.LessOrEqual(t, lots, maxLots)
		}
		prev = lots
	}
}

func TestBuild_UnsizeablePlanRejected(t *testing.T) {
	sig, snap, reg, intel := trendDayInputs()
	cfg := defaultConfig()
	cfg.MaxRiskAmount = 1000 // one lot risks 4500

	p := Build(sig, snap, reg, intel, cfg, snap.Timestamp)

	// Sizing floors at one lot; the risk-amount gate still rejects.
	assert.False(t, p.Valid)
	assert.Equal(t, StatusRejected, p.Status)
	assert.Equal(t, 1, p.PositionLots)
	require.NotEmpty(t, p.RejectionReasons)
	assert.Contains(t, p.RejectionReasons[0], "exceeds per-trade cap")
}

func TestBuild_InvalidSignalRejectedDefensively(t *testing.T) {
	sig, snap, reg, intel := trendDayInputs()
	sig.Valid = false
	sig.ValidityReasons = []string{"conflicting option signals"}

	p := Build(sig, snap, reg, intel, defaultConfig(), snap.Timestamp)

	assert.False(t, p.Valid)
	assert.Equal(t, StatusRejected, p.Status)
	assert.Contains(t, p.RejectionReasons, "conflicting option signals")
}

func TestBuild_ExtremeIVSwitchesToOption(t *testing.T) {
	sig, snap, reg, intel := trendDayInputs()
	intel.IVStatus = options.IVExtreme

	p := Build(sig, snap, reg, intel, defaultConfig(), snap.Timestamp)

	assert.Equal(t, InstrumentCallOption, p.InstrumentType)
	assert.Equal(t, "BANKNIFTY 51700 CE", p.Instrument)
}

func TestExpireIfPast(t *testing.T) {
	sig, snap, reg, intel := trendDayInputs()
	p := Build(sig, snap, reg, intel, defaultConfig(), snap.Timestamp)
	require.Equal(t, StatusPending, p.Status)

	ExpireIfPast(&p, p.ExpiresAt.Add(-time.Minute))
	assert.Equal(t, StatusPending, p.Status)

	ExpireIfPast(&p, p.ExpiresAt.Add(time.Minute))
	assert.Equal(t, StatusExpired, p.Status)
}
