// Package plan turns a valid trade signal into an executable plan:
// entry zone, ATR-derived stop, fib-multiple targets, lot sizing and
// the hard risk-reward gate. The plan is a recommendation only; a
// human acts on it.
package plan

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"optionsdesk/market"
	"optionsdesk/options"
	"optionsdesk/regime"
	"optionsdesk/signal"
)

// Lifetime is how long a plan stays actionable after creation.
const Lifetime = 30 * time.Minute

// Lot sizing is clamped to this range for any valid plan.
const (
	minLots = 1
	maxLots = 5
)

// Target multiples applied to the risk distance.
const (
	target1Multiple = 1.5
	target2Multiple = 2.5
)

// BuilderConfig is the subset of configuration the builder needs.
type BuilderConfig struct {
	MaxRiskAmount float64
	MinRiskReward float64
	LotSize       int
}

// Build constructs a Plan from a valid signal. A conflicted or invalid
// signal never reaches this point in the pipeline; Build still guards
// and returns a rejected plan rather than trusting the caller.
func Build(sig signal.TradeSignal, snap market.Snapshot, reg regime.Regime, intel options.Intel, cfg BuilderConfig, now time.Time) Plan {
	p := Plan{
		ID:        uuid.NewString(),
		SignalID:  sig.ID,
		Direction: directionOf(sig.Direction),
		Status:    StatusPending,
		CreatedAt: now,
		ExpiresAt: now.Add(Lifetime),
		LotSize:   cfg.LotSize,
	}

	if !sig.Valid || p.Direction == DirectionNone {
		p.Status = StatusRejected
		p.RejectionReasons = append(p.RejectionReasons, "signal is not valid")
		p.RejectionReasons = append(p.RejectionReasons, sig.ValidityReasons...)
		return p
	}

	price := snap.Spot.LTP
	atrEstimate := atrEstimate(snap)

	p.Instrument, p.InstrumentType = selectInstrument(sig, snap, intel)
	p.Entry = entryZone(p.Direction, price, atrEstimate)
	p.StopLoss = stopLoss(p.Direction, p.Entry.Optimal, atrEstimate, reg)
	p.Reasoning = append(p.Reasoning,
		fmt.Sprintf("entry %.1f-%.1f (optimal %.1f), ATR estimate %.1f", p.Entry.Lower, p.Entry.Upper, p.Entry.Optimal, atrEstimate))
	p.Reasoning = append(p.Reasoning, sig.Reasoning...)
	p.Confidence = math.Min(1, sig.TotalScore/(signal.RegimeContribution+10+10))

	Finalize(&p, reg, cfg)
	return p
}

// Finalize computes targets, risk-reward, sizing and runs the hard
// validation gate against the plan's entry/stop as they stand. Exposed
// separately so risk tooling can re-validate an adjusted plan.
func Finalize(p *Plan, reg regime.Regime, cfg BuilderConfig) {
	risk := math.Abs(p.Entry.Optimal - p.StopLoss)
	p.RiskPoints = risk

	sign := 1.0
	if p.Direction == DirectionShort {
		sign = -1.0
	}
	// Targets are derived from the risk distance on first pass; a
	// re-validation of an adjusted plan keeps the targets it was given.
	if p.Target1 == 0 && p.Target2 == 0 {
		p.Target1 = p.Entry.Optimal + sign*target1Multiple*risk
		p.Target2 = p.Entry.Optimal + sign*target2Multiple*risk
	}

	p.RewardPointsT1 = math.Abs(p.Target1 - p.Entry.Optimal)
	p.RewardPointsT2 = math.Abs(p.Target2 - p.Entry.Optimal)
	if risk > 0 {
		p.RiskRewardT1 = p.RewardPointsT1 / risk
		p.RiskRewardT2 = p.RewardPointsT2 / risk
	}

	p.PositionLots = positionLots(cfg.MaxRiskAmount, risk, cfg.LotSize)
	p.RiskAmount = risk * float64(p.PositionLots) * float64(cfg.LotSize)

	p.RejectionReasons = p.RejectionReasons[:0]
	if p.RiskRewardT2 < cfg.MinRiskReward {
		p.RejectionReasons = append(p.RejectionReasons,
			fmt.Sprintf("Risk-Reward at T2 %.2f below minimum %.2f", p.RiskRewardT2, cfg.MinRiskReward))
	}
	if p.RiskAmount > cfg.MaxRiskAmount {
		p.RejectionReasons = append(p.RejectionReasons,
			fmt.Sprintf("risk amount %.0f exceeds per-trade cap %.0f", p.RiskAmount, cfg.MaxRiskAmount))
	}
	if !reg.TradeAllowed {
		p.RejectionReasons = append(p.RejectionReasons, "regime does not allow trading")
		p.RejectionReasons = append(p.RejectionReasons, reg.RejectionReasons...)
	}
	if p.PositionLots < minLots {
		p.RejectionReasons = append(p.RejectionReasons, "invalid position size")
	}

	if len(p.RejectionReasons) > 0 {
		p.Status = StatusRejected
		p.Valid = false
		return
	}
	p.Status = StatusPending
	p.Valid = true
}

// atrEstimate derives a working volatility estimate when the intraday
// session is the only data available: half the session range, floored
// at 0.2% of price.
func atrEstimate(snap market.Snapshot) float64 {
	sessionRange := snap.Spot.Session.High - snap.Spot.Session.Low
	return math.Max(sessionRange*0.5, snap.Spot.LTP*0.002)
}

// selectInstrument defaults to the future; extreme IV or a conflicted
// options view switches to the ATM option for defined risk. The
// conflict clause is unreachable through the normal signal path and
// guards future signal-path changes.
func selectInstrument(sig signal.TradeSignal, snap market.Snapshot, intel options.Intel) (string, InstrumentType) {
	if intel.IVStatus == options.IVExtreme || intel.HasConflict {
		strike := snap.OptionsChain.ATMStrike
		if sig.Direction == signal.Long {
			return fmt.Sprintf("%s %.0f CE", snap.OptionsChain.Underlying, strike), InstrumentCallOption
		}
		return fmt.Sprintf("%s %.0f PE", snap.OptionsChain.Underlying, strike), InstrumentPutOption
	}
	return snap.Futures.Symbol, InstrumentFutures
}

func entryZone(dir Direction, price, atrEstimate float64) EntryZone {
	width := 0.3 * atrEstimate
	if dir == DirectionLong {
		return EntryZone{
			Lower:   price - width,
			Upper:   price,
			Optimal: price - 0.3*width,
		}
	}
	return EntryZone{
		Lower:   price,
		Upper:   price + width,
		Optimal: price + 0.3*width,
	}
}

// stopLoss places the stop a volatility buffer away from the optimal
// entry, then pulls it beyond the opening-range edge when the range is
// captured and sits inside the buffer.
func stopLoss(dir Direction, optimal, atrEstimate float64, reg regime.Regime) float64 {
	// The opening range, once captured, is carried on the regime result
	// as reg.OpeningRange.
	buffer := 1.5 * atrEstimate
	if reg.OpeningRange.Captured && reg.OpeningRange.Range() > 0 {
		buffer = math.Max(buffer, 0.5*reg.OpeningRange.Range())
	}

	if dir == DirectionLong {
		stop := optimal - buffer
		if reg.OpeningRange.Captured {
			orStop := reg.OpeningRange.Low - 10
			if orStop < optimal && stop > orStop {
				stop = orStop
			}
		}
		return stop
	}

	stop := optimal + buffer
	if reg.OpeningRange.Captured {
		orStop := reg.OpeningRange.High + 10
		if orStop > optimal && stop < orStop {
			stop = orStop
		}
	}
	return stop
}

// positionLots sizes by risk: floor(maxRisk / riskPerLot), clamped to
// [1, maxLots]. A stop too wide for even one lot still sizes at one;
// the risk-amount gate in Finalize rejects that plan.
func positionLots(maxRiskAmount, riskPoints float64, lotSize int) int {
	if riskPoints <= 0 || lotSize <= 0 {
		return minLots
	}
	lots := int(math.Floor(maxRiskAmount / (riskPoints * float64(lotSize))))
	if lots > maxLots {
		return maxLots
	}
	if lots < minLots {
		return minLots
	}
	return lots
}

func directionOf(d signal.Direction) Direction {
	switch d {
	case signal.Long:
		return DirectionLong
	case signal.Short:
		return DirectionShort
	default:
		return DirectionNone
	}
}

// ExpireIfPast transitions a pending plan to EXPIRED once its lifetime
// has lapsed. Callers reading plans apply this before surfacing them.
func ExpireIfPast(p *Plan, now time.Time) {
	if p.Status == StatusPending && now.After(p.ExpiresAt) {
		p.Status = StatusExpired
	}
}
