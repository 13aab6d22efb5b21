package buffer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"optionsdesk/market"
)

func snap(ts time.Time) market.Snapshot {
	return market.Snapshot{Timestamp: ts}
}

// Capacity 10, min-fill 80%, append 7 fresh
// snapshots; trade-allowed must be false and the reason must mention
// filling and the exact shortfall.
func TestRing_WarmUpBlocksTrading(t *testing.T) {
	r := New(10, 8, 5*time.Second)
	now := time.Now()
	for i := 0; i < 7; i++ {
		r.Append(snap(now))
	}

	assert.False(t, r.TradeAllowed(now))
	assert.Contains(t, r.NoTradeReason(now), "filling")
	assert.Contains(t, r.NoTradeReason(now), "1 more")
}

func TestRing_ReadyWhenWarm(t *testing.T) {
	r := New(10, 8, 5*time.Second)
	now := time.Now()
	for i := 0; i < 8; i++ {
		r.Append(snap(now))
	}
	assert.True(t, r.TradeAllowed(now))
	assert.Equal(t, StatusReady, r.Status(now))
}

func TestRing_StaleWhenWarmButOld(t *testing.T) {
	r := New(10, 8, 5*time.Second)
	base := time.Now()
	for i := 0; i < 8; i++ {
		r.Append(snap(base))
	}
	later := base.Add(15 * time.Second)
	assert.Equal(t, StatusStale, r.Status(later))
	assert.False(t, r.TradeAllowed(later))
}

func TestRing_EvictsOldestWhenFull(t *testing.T) {
	r := New(3, 2, 5*time.Second)
	base := time.Now()
	r.Append(snap(base))
	r.Append(snap(base.Add(time.Second)))
	r.Append(snap(base.Add(2 * time.Second)))
	r.Append(snap(base.Add(3 * time.Second)))

	require.Equal(t, 3, r.Size())
	oldest, ok := r.Oldest()
	require.True(t, ok)
	assert.Equal(t, base.Add(time.Second), oldest.Timestamp)
}

// Status = READY implies size >= ceil(capacity * fill%/100).
func TestRing_ReadyImpliesMinimumSize(t *testing.T) {
	r := New(100, 80, 5*time.Second)
	now := time.Now()
	for i := 0; i < 79; i++ {
		r.Append(snap(now))
	}
	assert.NotEqual(t, StatusReady, r.Status(now))

	r.Append(snap(now))
	assert.Equal(t, StatusReady, r.Status(now))
	assert.GreaterOrEqual(t, r.Size(), 80)
}

// After a simulated restart (Clear), trade-allowed stays
// false until warm-up threshold snapshots are appended again.
func TestRing_RestartSafety(t *testing.T) {
	r := New(10, 8, 5*time.Second)
	now := time.Now()
	for i := 0; i < 8; i++ {
		r.Append(snap(now))
	}
	require.True(t, r.TradeAllowed(now))

	r.Clear()
	assert.False(t, r.TradeAllowed(now))
	assert.Equal(t, StatusEmpty, r.Status(now))

	for i := 0; i < 7; i++ {
		r.Append(snap(now))
	}
	assert.False(t, r.TradeAllowed(now))

	r.Append(snap(now))
	assert.True(t, r.TradeAllowed(now))
}
