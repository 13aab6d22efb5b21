package options

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"optionsdesk/market"
)

func leg(strike float64, typ market.OptionType, price float64, oi, oiChange int64, iv float64) market.OptionLeg {
	return market.OptionLeg{Strike: strike, Type: typ, Price: price, OI: oi, OIChange: oiChange, Greeks: market.Greeks{IV: iv}}
}

// PCR 1.35 (bullish) while the total OI delta
// indicates short-buildup; expect the conflict gate to trip and force
// neutral/zero confidence.
func TestEngine_PCRvsBuildupConflict(t *testing.T) {
	e := NewEngine()

	chain := market.OptionsChain{
		Underlying: "BANKNIFTY",
		SpotRef:    51500,
		ATMStrike:  51500,
		Calls: []market.OptionLeg{
			leg(51400, market.CE, 380, 100000, 60000, 14),
			leg(51500, market.CE, 310, 100000, 60000, 14),
		},
		Puts: []market.OptionLeg{
			leg(51500, market.PE, 290, 135000, 40000, 15),
			leg(51600, market.PE, 350, 135000, 40000, 15),
		},
	}

	intel := e.Analyze(chain, 51500)

	require.InDelta(t, 1.35, intel.PCR, 0.001)
	assert.Equal(t, PCRBullish, intel.PCRInterpretation)
	assert.Equal(t, ShortBuildup, intel.Buildup)

	assert.True(t, intel.HasConflict)
	assert.NotEmpty(t, intel.ConflictReasons)
	assert.Equal(t, Neutral, intel.Direction)
	assert.Zero(t, intel.Confidence)
}

func TestClassifyBuildup(t *testing.T) {
	cases := []struct {
		calls, puts int64
		want        BuildupType
	}{
		{calls: 1000, puts: 5000, want: LongBuildup},
		{calls: 5000, puts: 1000, want: ShortBuildup},
		{calls: -5000, puts: -1000, want: ShortCovering},
		{calls: -1000, puts: -5000, want: LongUnwinding},
		{calls: -200, puts: 3000, want: LongBuildup},
		{calls: 3000, puts: -200, want: ShortBuildup},
		{calls: 0, puts: 0, want: NoBuildup},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, classifyBuildup(tc.calls, tc.puts),
			"calls=%d puts=%d", tc.calls, tc.puts)
	}
}

func TestMaxPain(t *testing.T) {
	// Heavy call OI above, heavy put OI below: pain is minimised in
	// between, where neither side finishes deep in the money.
	chain := market.OptionsChain{
		ATMStrike: 51500,
		Calls: []market.OptionLeg{
			leg(51400, market.CE, 0, 10000, 0, 0),
			leg(51500, market.CE, 0, 50000, 0, 0),
			leg(51600, market.CE, 0, 80000, 0, 0),
		},
		Puts: []market.OptionLeg{
			leg(51400, market.PE, 0, 80000, 0, 0),
			leg(51500, market.PE, 0, 50000, 0, 0),
			leg(51600, market.PE, 0, 10000, 0, 0),
		},
	}
	assert.Equal(t, 51500.0, maxPain(chain))
}

func TestWalls_NearerWallHints(t *testing.T) {
	call := Wall{Strike: 51600, OI: 90000}
	put := Wall{Strike: 51200, OI: 80000}
	// Call wall 100 away, put wall 300 away: resistance presses closer.
	assert.Equal(t, Short, wallHint(call, put, 51500))
	// Mirror.
	assert.Equal(t, Long, wallHint(Wall{Strike: 51900, OI: 90000}, Wall{Strike: 51450, OI: 80000}, 51500))
}

func TestIVPercentileAndTrend(t *testing.T) {
	e := NewEngine()
	chainWithIV := func(iv float64) market.OptionsChain {
		return market.OptionsChain{
			ATMStrike: 51500,
			Calls:     []market.OptionLeg{leg(51500, market.CE, 300, 100000, 5000, iv)},
			Puts:      []market.OptionLeg{leg(51500, market.PE, 280, 120000, 9000, iv)},
		}
	}

	for _, iv := range []float64{10, 11, 12, 13, 14} {
		e.Analyze(chainWithIV(iv), 51500)
	}
	intel := e.Analyze(chainWithIV(15), 51500)

	// 15 ranks above all five prior observations.
	assert.InDelta(t, 83.3, intel.IVPercentile, 0.5)
	assert.Equal(t, IVExtreme, intel.IVStatus)
	assert.Equal(t, IVExpanding, intel.IVTrend)
}

func TestResetDay_KeepsIVHistory(t *testing.T) {
	e := NewEngine()
	chain := market.OptionsChain{
		ATMStrike: 51500,
		Calls:     []market.OptionLeg{leg(51500, market.CE, 300, 100000, 5000, 14)},
		Puts:      []market.OptionLeg{leg(51500, market.PE, 280, 120000, 9000, 14)},
	}
	e.Analyze(chain, 51500)
	e.Analyze(chain, 51500)
	require.Len(t, e.ivHistory, 2)

	e.ResetDay()
	assert.Len(t, e.ivHistory, 2)
	assert.False(t, e.hasPrev)
}

func TestAnalyze_CleanBullishChain(t *testing.T) {
	e := NewEngine()
	// Puts building, PCR bullish, put wall nearer: three long votes,
	// no conflict.
	chain := market.OptionsChain{
		ATMStrike: 51500,
		Calls: []market.OptionLeg{
			leg(51500, market.CE, 310, 70000, -2000, 14),
			leg(51700, market.CE, 180, 90000, -1000, 14),
		},
		Puts: []market.OptionLeg{
			leg(51400, market.PE, 250, 160000, 30000, 14),
			leg(51300, market.PE, 190, 50000, 10000, 14),
		},
	}
	intel := e.Analyze(chain, 51500)

	require.False(t, intel.HasConflict, "conflicts: %v", intel.ConflictReasons)
	assert.Equal(t, Long, intel.Direction)
	assert.Greater(t, intel.Confidence, 0.0)
	assert.LessOrEqual(t, intel.Confidence, 1.0)
}
