package options

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"optionsdesk/market"
)

const maxIVHistory = 20

// Engine carries state across chain observations: the previous PCR and
// straddle premium for change computation, and a bounded ATM IV history
// for the percentile. All mutation happens under a single lock; the
// signal activity is the only writer in practice, but the lock keeps
// the engine safe for observers.
type Engine struct {
	mu sync.Mutex

	hasPrev      bool
	prevPCR      float64
	prevStraddle float64

	ivHistory []float64
}

// NewEngine builds an empty Engine.
func NewEngine() *Engine {
	return &Engine{}
}

// ResetDay clears the previous-chain comparison state. The IV history
// is retained across days so the percentile stays meaningful — a
// deliberate cross-day decision.
func (e *Engine) ResetDay() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.hasPrev = false
	e.prevPCR = 0
	e.prevStraddle = 0
}

// Analyze runs the full options-intelligence pass over one chain and
// updates the engine's comparison state.
func (e *Engine) Analyze(chain market.OptionsChain, spot float64) Intel {
	e.mu.Lock()
	defer e.mu.Unlock()

	intel := Intel{}

	// 1. Put-call ratio of open interest.
	intel.PCR = computePCR(chain)
	intel.PCRInterpretation = interpretPCR(intel.PCR)
	if e.hasPrev {
		intel.PCRChange = intel.PCR - e.prevPCR
	}
	intel.Reasoning = append(intel.Reasoning,
		fmt.Sprintf("PCR %.2f (%s)", intel.PCR, intel.PCRInterpretation))

	// 2. ATM straddle premium and change.
	intel.StraddlePremium = straddlePremium(chain)
	if e.hasPrev {
		intel.StraddleChange = intel.StraddlePremium - e.prevStraddle
	}

	// 3. ATM IV, percentile, status and trend.
	intel.ATMIV = atmIV(chain)
	if intel.ATMIV > 0 {
		e.ivHistory = append(e.ivHistory, intel.ATMIV)
		if len(e.ivHistory) > maxIVHistory {
			e.ivHistory = e.ivHistory[1:]
		}
	}
	intel.IVPercentile = percentileRank(e.ivHistory, intel.ATMIV)
	intel.IVStatus = ivStatusOf(intel.IVPercentile)
	intel.IVTrend = ivTrendOf(e.ivHistory)
	intel.Reasoning = append(intel.Reasoning,
		fmt.Sprintf("ATM IV %.1f at percentile %.0f (%s, %s)",
			intel.ATMIV, intel.IVPercentile, intel.IVStatus, intel.IVTrend))

	// 4. Open-interest deltas and buildup classification.
	intel.DeltaOICalls, intel.DeltaOIPuts = deltaOI(chain)
	intel.Buildup = classifyBuildup(intel.DeltaOICalls, intel.DeltaOIPuts)
	intel.Reasoning = append(intel.Reasoning,
		fmt.Sprintf("OI buildup %s (calls %+d, puts %+d)", intel.Buildup, intel.DeltaOICalls, intel.DeltaOIPuts))

	// 5. OI walls and the nearer-wall hint.
	intel.CallWall, intel.PutWall = findWalls(chain)
	hint := wallHint(intel.CallWall, intel.PutWall, spot)

	// 6. Max pain.
	intel.MaxPainStrike = maxPain(chain)
	intel.DistanceToMaxPain = spot - intel.MaxPainStrike
	intel.Reasoning = append(intel.Reasoning,
		fmt.Sprintf("max pain %.0f (spot %+.0f away)", intel.MaxPainStrike, intel.DistanceToMaxPain))

	// 7. Directional vote bag: buildup, PCR, nearer wall. Only sides
	// count; a neutral read contributes no vote.
	var votes []Direction
	for _, v := range []Direction{
		buildupDirection(intel.Buildup),
		pcrDirection(intel.PCRInterpretation),
		hint,
	} {
		if v != Neutral {
			votes = append(votes, v)
		}
	}
	intel.Direction = majority(votes)

	// 8. Conflict detection: any disagreement forces neutral, zero
	// confidence. Conflicting signals mean no trade.
	intel.HasConflict, intel.ConflictReasons = detectConflict(votes, intel)
	if intel.HasConflict {
		intel.Direction = Neutral
		intel.Confidence = 0
		intel.Reasoning = append(intel.Reasoning, "conflicting option signals: standing aside")
	} else {
		// 9. Confidence: dominant-vote share scaled by the IV regime.
		intel.Confidence = confidence(votes, intel.Direction, intel.IVStatus)
	}

	e.hasPrev = true
	e.prevPCR = intel.PCR
	e.prevStraddle = intel.StraddlePremium

	return intel
}

func computePCR(chain market.OptionsChain) float64 {
	var callOI, putOI int64
	for _, c := range chain.Calls {
		callOI += c.OI
	}
	for _, p := range chain.Puts {
		putOI += p.OI
	}
	if callOI == 0 {
		return 0
	}
	return float64(putOI) / float64(callOI)
}

func interpretPCR(pcr float64) PCRView {
	switch {
	case pcr > 1.2:
		return PCRBullish
	case pcr < 0.8 && pcr > 0:
		return PCRBearish
	default:
		return PCRNeutral
	}
}

func straddlePremium(chain market.OptionsChain) float64 {
	var call, put float64
	for _, c := range chain.Calls {
		if c.Strike == chain.ATMStrike {
			call = c.Price
			break
		}
	}
	for _, p := range chain.Puts {
		if p.Strike == chain.ATMStrike {
			put = p.Price
			break
		}
	}
	return call + put
}

func atmIV(chain market.OptionsChain) float64 {
	var ivs []float64
	for _, c := range chain.Calls {
		if c.Strike == chain.ATMStrike && c.Greeks.IV > 0 {
			ivs = append(ivs, c.Greeks.IV)
		}
	}
	for _, p := range chain.Puts {
		if p.Strike == chain.ATMStrike && p.Greeks.IV > 0 {
			ivs = append(ivs, p.Greeks.IV)
		}
	}
	if len(ivs) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range ivs {
		sum += v
	}
	return sum / float64(len(ivs))
}

// percentileRank returns the share of history entries strictly below
// the current value, as a percentage. Below five observations the
// rank is uninformative and pins at 50.
func percentileRank(history []float64, current float64) float64 {
	if len(history) < 5 {
		return 50
	}
	below := 0
	for _, h := range history {
		if h < current {
			below++
		}
	}
	return float64(below) / float64(len(history)) * 100
}

func ivStatusOf(percentile float64) IVStatus {
	switch {
	case percentile < 20:
		return IVLow
	case percentile < 50:
		return IVNormal
	case percentile < 80:
		return IVElevated
	default:
		return IVExtreme
	}
}

// ivTrendOf looks at the last three observations: strictly rising is
// expanding, strictly falling is contracting, anything else stable.
func ivTrendOf(history []float64) IVTrend {
	if len(history) < 3 {
		return IVStable
	}
	a, b, c := history[len(history)-3], history[len(history)-2], history[len(history)-1]
	switch {
	case a < b && b < c:
		return IVExpanding
	case a > b && b > c:
		return IVContracting
	default:
		return IVStable
	}
}

func deltaOI(chain market.OptionsChain) (calls, puts int64) {
	for _, c := range chain.Calls {
		calls += c.OIChange
	}
	for _, p := range chain.Puts {
		puts += p.OIChange
	}
	return calls, puts
}

func classifyBuildup(calls, puts int64) BuildupType {
	switch {
	case calls > 0 && puts > 0 && puts > calls:
		return LongBuildup
	case calls > 0 && puts > 0:
		return ShortBuildup
	case calls < 0 && puts < 0 && -calls > -puts:
		return ShortCovering
	case calls < 0 && puts < 0 && -puts > -calls:
		return LongUnwinding
	case puts > 0 && calls <= 0:
		return LongBuildup
	case calls > 0 && puts <= 0:
		return ShortBuildup
	default:
		return NoBuildup
	}
}

// findWalls returns the dominant call wall (resistance) and put wall
// (support): the single highest-OI strike on each side. The top three
// on each side are considered; only the strongest is surfaced.
func findWalls(chain market.OptionsChain) (callWall, putWall Wall) {
	callWall = topWall(chain.Calls)
	putWall = topWall(chain.Puts)
	return callWall, putWall
}

func topWall(legs []market.OptionLeg) Wall {
	sorted := append([]market.OptionLeg(nil), legs...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].OI > sorted[j].OI })
	if len(sorted) > 3 {
		sorted = sorted[:3]
	}
	if len(sorted) == 0 {
		return Wall{}
	}
	return Wall{Strike: sorted[0].Strike, OI: sorted[0].OI}
}

// wallHint votes by the nearer dominant wall: a call wall pressing
// close overhead hints short, a put wall close underneath hints long.
// Both walls must sit on their natural side of spot, otherwise the
// read is meaningless and no vote is cast.
func wallHint(callWall, putWall Wall, spot float64) Direction {
	if callWall.Strike == 0 || putWall.Strike == 0 {
		return Neutral
	}
	distToCall := callWall.Strike - spot
	distToPut := spot - putWall.Strike
	if distToCall <= 0 || distToPut <= 0 {
		return Neutral
	}
	if distToCall < distToPut {
		return Short
	}
	return Long
}

// maxPain chooses the settlement strike minimising the aggregate
// option-writer payout across the chain.
func maxPain(chain market.OptionsChain) float64 {
	strikeSet := map[float64]struct{}{}
	for _, c := range chain.Calls {
		strikeSet[c.Strike] = struct{}{}
	}
	for _, p := range chain.Puts {
		strikeSet[p.Strike] = struct{}{}
	}
	if len(strikeSet) == 0 {
		return 0
	}

	strikes := make([]float64, 0, len(strikeSet))
	for k := range strikeSet {
		strikes = append(strikes, k)
	}
	sort.Float64s(strikes)

	best, bestPain := strikes[0], math.MaxFloat64
	for _, settle := range strikes {
		pain := 0.0
		for _, c := range chain.Calls {
			pain += math.Max(0, settle-c.Strike) * float64(c.OI)
		}
		for _, p := range chain.Puts {
			pain += math.Max(0, p.Strike-settle) * float64(p.OI)
		}
		if pain < bestPain {
			best, bestPain = settle, pain
		}
	}
	return best
}

func buildupDirection(b BuildupType) Direction {
	switch b {
	case LongBuildup, ShortCovering:
		return Long
	case ShortBuildup, LongUnwinding:
		return Short
	default:
		return Neutral
	}
}

func pcrDirection(v PCRView) Direction {
	switch v {
	case PCRBullish:
		return Long
	case PCRBearish:
		return Short
	default:
		return Neutral
	}
}

func majority(votes []Direction) Direction {
	long, short := 0, 0
	for _, v := range votes {
		switch v {
		case Long:
			long++
		case Short:
			short++
		}
	}
	switch {
	case long > short:
		return Long
	case short > long:
		return Short
	default:
		return Neutral
	}
}

// detectConflict implements the hard safety gate: (a) long and short
// votes coexist; (b) OI buildup and PCR point opposite ways; (c) IV is
// expanding while the votes are not unanimous.
func detectConflict(votes []Direction, intel Intel) (bool, []string) {
	var reasons []string

	long, short := 0, 0
	for _, v := range votes {
		switch v {
		case Long:
			long++
		case Short:
			short++
		}
	}
	if long > 0 && short > 0 {
		reasons = append(reasons, "mixed long and short votes across OI buildup, PCR and walls")
	}

	buildupDir := buildupDirection(intel.Buildup)
	pcrDir := pcrDirection(intel.PCRInterpretation)
	if buildupDir == Long && pcrDir == Short {
		reasons = append(reasons, fmt.Sprintf("OI buildup bullish (%s) while PCR bearish (%.2f)", intel.Buildup, intel.PCR))
	}
	if buildupDir == Short && pcrDir == Long {
		reasons = append(reasons, fmt.Sprintf("OI buildup bearish (%s) while PCR bullish (%.2f)", intel.Buildup, intel.PCR))
	}

	if intel.IVTrend == IVExpanding && long > 0 && short > 0 {
		reasons = append(reasons, "IV expanding with unclear direction")
	}

	return len(reasons) > 0, reasons
}

// confidence is the dominant-side share of the cast votes, scaled by
// the IV regime.
func confidence(votes []Direction, dir Direction, iv IVStatus) float64 {
	if dir == Neutral || len(votes) == 0 {
		return 0
	}
	dominant := 0
	for _, v := range votes {
		if v == dir {
			dominant++
		}
	}
	base := float64(dominant) / float64(len(votes))

	mult := 1.0
	switch iv {
	case IVLow:
		mult = 0.8
	case IVElevated:
		mult = 0.9
	case IVExtreme:
		mult = 0.7
	}
	return base * mult
}
