// Package signal fuses the regime, confluence and options-intelligence
// outputs into a single TradeSignal: the one record downstream that
// says whether a trade may be suggested at all, and in which direction.
package signal

import (
	"time"

	"github.com/google/uuid"

	"optionsdesk/confluence"
	"optionsdesk/market"
	"optionsdesk/options"
	"optionsdesk/regime"
)

// Direction is the fused directional call.
type Direction string

const (
	Long    Direction = "long"
	Short   Direction = "short"
	Neutral Direction = "neutral"
)

// RegimeContribution is the fixed score a trade-allowed regime adds to
// the fused total.
const RegimeContribution = 2.0

// TradeSignal is the fused output of the three analysis engines for
// one snapshot.
type TradeSignal struct {
	ID        string
	Timestamp time.Time

	Direction       Direction
	Valid           bool
	ValidityReasons []string

	RegimeScore     float64
	ConfluenceScore float64
	OptionsScore    float64
	TotalScore      float64

	RegimeType       regime.Type
	RegimeVolatility regime.VolatilityLevel
	RegimeTrend      regime.Trend

	Confluence confluence.Result
	Options    options.Intel

	SuggestedSetup regime.AllowedSetup
	Reasoning      []string
}

// Fuse combines the three engine outputs for one snapshot. The signal
// is valid only when the regime allows trading, the confluence is
// eligible, the options view carries no conflict, and both directional
// engines agree on a side.
func Fuse(snap market.Snapshot, reg regime.Regime, conf confluence.Result, intel options.Intel) TradeSignal {
	sig := TradeSignal{
		ID:               uuid.NewString(),
		Timestamp:        snap.Timestamp,
		RegimeType:       reg.Type,
		RegimeVolatility: reg.Volatility,
		RegimeTrend:      reg.Trend,
		Confluence:       conf,
		Options:          intel,
	}

	sig.Direction = fuseDirection(conf.Direction, intel.Direction)

	sig.Valid = reg.TradeAllowed && conf.Eligible && !intel.HasConflict && sig.Direction != Neutral

	sig.ValidityReasons = append(sig.ValidityReasons, reg.RejectionReasons...)
	sig.ValidityReasons = append(sig.ValidityReasons, intel.ConflictReasons...)
	if !conf.Eligible {
		sig.ValidityReasons = append(sig.ValidityReasons, "confluence score below eligibility threshold")
	}
	if sig.Direction == Neutral && reg.TradeAllowed && conf.Eligible && !intel.HasConflict {
		sig.ValidityReasons = append(sig.ValidityReasons, "technical and options directions disagree")
	}

	if reg.TradeAllowed {
		sig.RegimeScore = RegimeContribution
	}
	sig.ConfluenceScore = conf.Total
	sig.OptionsScore = intel.Confidence * 10
	sig.TotalScore = sig.RegimeScore + sig.ConfluenceScore + sig.OptionsScore

	sig.Reasoning = append(sig.Reasoning, reg.Reasons...)
	sig.Reasoning = append(sig.Reasoning, conf.Reasoning...)
	sig.Reasoning = append(sig.Reasoning, intel.Reasoning...)

	sig.SuggestedSetup = suggestSetup(reg, sig.Direction)

	return sig
}

func fuseDirection(conf confluence.Direction, opt options.Direction) Direction {
	switch {
	case conf == confluence.Long && opt == options.Long:
		return Long
	case conf == confluence.Short && opt == options.Short:
		return Short
	default:
		return Neutral
	}
}

// suggestSetup picks the first allowed setup compatible with the fused
// direction; directionless setups (mean-reversion, wait-for-*) are
// only offered when no directional setup fits.
func suggestSetup(reg regime.Regime, dir Direction) regime.AllowedSetup {
	if len(reg.AllowedSetups) == 0 {
		return ""
	}
	for _, s := range reg.AllowedSetups {
		if setupMatches(s, dir) {
			return s
		}
	}
	return reg.AllowedSetups[0]
}

func setupMatches(s regime.AllowedSetup, dir Direction) bool {
	switch dir {
	case Long:
		switch s {
		case regime.BreakoutContinuation, regime.ORBreakoutLong, regime.RangeReversalLong,
			regime.PullbackToEMA9, regime.PullbackToVWAP, regime.MomentumEntry:
			return true
		}
	case Short:
		switch s {
		case regime.BreakdownContinuation, regime.ORBreakoutShort, regime.RangeReversalShort,
			regime.PullbackToEMA9, regime.PullbackToVWAP, regime.MomentumEntry:
			return true
		}
	}
	return false
}
