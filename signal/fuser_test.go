package signal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"optionsdesk/confluence"
	"optionsdesk/market"
	"optionsdesk/options"
	"optionsdesk/regime"
)

func goodRegime() regime.Regime {
	return regime.Regime{
		Type:          regime.TrendingBullish,
		Volatility:    regime.VolNormal,
		Trend:         regime.TrendUp,
		TradeAllowed:  true,
		AllowedSetups: regime.AllowedSetups(regime.TrendingBullish, regime.VolNormal),
		Reasons:       []string{"classified as trending-bullish"},
	}
}

func goodConfluence() confluence.Result {
	return confluence.Result{Total: 8.0, Max: 10, Direction: confluence.Long, Eligible: true}
}

func goodOptions() options.Intel {
	return options.Intel{Direction: options.Long, Confidence: 0.8}
}

func snap() market.Snapshot {
	return market.Snapshot{Timestamp: time.Date(2026, 7, 30, 11, 0, 0, 0, time.UTC)}
}

func TestFuse_ValidLong(t *testing.T) {
	sig := Fuse(snap(), goodRegime(), goodConfluence(), goodOptions())

	require.True(t, sig.Valid, "reasons: %v", sig.ValidityReasons)
	assert.Equal(t, Long, sig.Direction)
	assert.NotEmpty(t, sig.ID)
	// 2.0 regime + 8.0 confluence + 0.8*10 options.
	assert.InDelta(t, 18.0, sig.TotalScore, 1e-9)
	assert.Equal(t, regime.PullbackToEMA9, sig.SuggestedSetup)
}

// Whenever options has a conflict the fused signal is
// invalid, regardless of how strong the other two engines look.
func TestFuse_OptionsConflictInvalidates(t *testing.T) {
	intel := options.Intel{
		Direction:       options.Neutral,
		Confidence:      0,
		HasConflict:     true,
		ConflictReasons: []string{"mixed long and short votes"},
	}
	sig := Fuse(snap(), goodRegime(), goodConfluence(), intel)

	assert.False(t, sig.Valid)
	assert.Equal(t, Neutral, sig.Direction)
	assert.Contains(t, sig.ValidityReasons, "mixed long and short votes")
}

func TestFuse_RegimeSuppressionInvalidates(t *testing.T) {
	reg := goodRegime()
	reg.TradeAllowed = false
	reg.RejectionReasons = []string{"Opening range period: no trades until the range is captured"}

	sig := Fuse(snap(), reg, goodConfluence(), goodOptions())

	assert.False(t, sig.Valid)
	assert.Zero(t, sig.RegimeScore)
	assert.Contains(t, sig.ValidityReasons[0], "Opening range")
}

func TestFuse_DirectionalDisagreementIsNeutralAndInvalid(t *testing.T) {
	intel := goodOptions()
	intel.Direction = options.Short

	sig := Fuse(snap(), goodRegime(), goodConfluence(), intel)

	assert.Equal(t, Neutral, sig.Direction)
	assert.False(t, sig.Valid)
	assert.Contains(t, sig.ValidityReasons, "technical and options directions disagree")
}

func TestFuse_ShortRequiresBothShort(t *testing.T) {
	reg := goodRegime()
	reg.Type = regime.TrendingBearish
	reg.Trend = regime.TrendDown
	reg.AllowedSetups = regime.AllowedSetups(regime.TrendingBearish, regime.VolNormal)

	conf := goodConfluence()
	conf.Direction = confluence.Short

	intel := goodOptions()
	intel.Direction = options.Short

	sig := Fuse(snap(), reg, conf, intel)

	require.True(t, sig.Valid)
	assert.Equal(t, Short, sig.Direction)
	assert.Equal(t, regime.PullbackToEMA9, sig.SuggestedSetup)
}

func TestFuse_IneligibleConfluence(t *testing.T) {
	conf := goodConfluence()
	conf.Total = 5.0
	conf.Eligible = false

	sig := Fuse(snap(), goodRegime(), conf, goodOptions())

	assert.False(t, sig.Valid)
	assert.Contains(t, sig.ValidityReasons, "confluence score below eligibility threshold")
}
