package market

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validHours() HoursConfig {
	loc, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		loc = time.FixedZone("IST", 5*3600+1800)
	}
	return HoursConfig{
		Location:        loc,
		MarketOpen:      9*time.Hour + 15*time.Minute,
		MarketClose:     15*time.Hour + 30*time.Minute,
		OpeningRangeEnd: 9*time.Hour + 30*time.Minute,
	}
}

func completeSnapshot(ts time.Time) Snapshot {
	return Snapshot{
		Spot:    Spot{Symbol: "BANKNIFTY", LTP: 51500, PreviousClose: 51000, Timestamp: ts},
		Futures: Futures{Symbol: "BANKNIFTY-FUT", Price: 51550, OI: 1000, Timestamp: ts},
		OptionsChain: OptionsChain{
			Calls: []OptionLeg{{Strike: 51500, Type: CE, Price: 120, OI: 1000}},
			Puts:  []OptionLeg{{Strike: 51500, Type: PE, Price: 110, OI: 1200}},
		},
		VIX:       VIX{Value: 13.5, PreviousClose: 13.2, Timestamp: ts},
		Timestamp: ts,
	}
}

func TestValidate_Fresh(t *testing.T) {
	hours := validHours()
	v := NewValidator(5*time.Second, 500*time.Millisecond, hours)
	now := time.Date(2026, 7, 29, 11, 0, 0, 0, hours.Location)
	snap := completeSnapshot(now.Add(-1 * time.Second))

	res := v.Validate(snap, now, true)
	require.True(t, res.Valid)
	assert.Equal(t, StatusValid, res.Status)
	assert.Empty(t, res.Errors)
}

func TestValidate_Stale(t *testing.T) {
	hours := validHours()
	v := NewValidator(5*time.Second, 500*time.Millisecond, hours)
	now := time.Date(2026, 7, 29, 11, 0, 0, 0, hours.Location)
	snap := completeSnapshot(now.Add(-10 * time.Second))

	res := v.Validate(snap, now, true)
	assert.False(t, res.Valid)
	assert.Equal(t, StatusStale, res.Status)
}

func TestValidate_Incomplete(t *testing.T) {
	hours := validHours()
	v := NewValidator(5*time.Second, 500*time.Millisecond, hours)
	now := time.Date(2026, 7, 29, 11, 0, 0, 0, hours.Location)
	snap := completeSnapshot(now.Add(-1 * time.Second))
	snap.OptionsChain.Puts = nil

	res := v.Validate(snap, now, true)
	assert.False(t, res.Valid)
	assert.Equal(t, StatusIncomplete, res.Status)
	assert.Contains(t, res.Errors, "options chain has no puts")
}

func TestValidate_OutsideHours(t *testing.T) {
	hours := validHours()
	v := NewValidator(5*time.Second, 500*time.Millisecond, hours)
	now := time.Date(2026, 7, 29, 16, 0, 0, 0, hours.Location)
	snap := completeSnapshot(now.Add(-1 * time.Second))

	res := v.Validate(snap, now, true)
	assert.False(t, res.Valid)
	assert.Equal(t, StatusOutsideHours, res.Status)
}

func TestValidate_Weekend(t *testing.T) {
	hours := validHours()
	v := NewValidator(5*time.Second, 500*time.Millisecond, hours)
	// 2026-08-01 is a Saturday.
	now := time.Date(2026, 8, 1, 11, 0, 0, 0, hours.Location)
	snap := completeSnapshot(now.Add(-1 * time.Second))

	res := v.Validate(snap, now, true)
	assert.False(t, res.Valid)
	assert.Equal(t, StatusOutsideHours, res.Status)
}

func TestValidate_InOpeningRange(t *testing.T) {
	hours := validHours()
	v := NewValidator(5*time.Second, 500*time.Millisecond, hours)
	now := time.Date(2026, 7, 29, 9, 22, 0, 0, hours.Location)
	snap := completeSnapshot(now.Add(-1 * time.Second))

	res := v.Validate(snap, now, true)
	require.True(t, res.Valid)
	assert.True(t, res.InOpeningRange)
}

func TestValidate_LatencyWarningOnly(t *testing.T) {
	hours := validHours()
	v := NewValidator(5*time.Second, 200*time.Millisecond, hours)
	now := time.Date(2026, 7, 29, 11, 0, 0, 0, hours.Location)
	snap := completeSnapshot(now.Add(-400 * time.Millisecond))

	res := v.Validate(snap, now, true)
	require.True(t, res.Valid)
	assert.NotEmpty(t, res.Warnings)
}
