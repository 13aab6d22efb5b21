package regime

import (
	"math"
	"sync"
	"time"

	"optionsdesk/market"
)

// HoursConfig is the subset of exchange-hours configuration the
// classifier needs, mirroring market.HoursConfig so this package has
// no dependency on the config package (kept free-standing/testable).
type HoursConfig struct {
	Location        *time.Location
	MarketOpen      time.Duration
	OpeningRangeEnd time.Duration
}

type bar struct {
	high, low, close float64
	volume           int64
}

// Classifier carries state across snapshots within a trading day:
// the opening-range accumulator, ATR bar/value history, and recent
// VWAP history. ResetDay clears intraday state; the ATR averaging
// window is retained across days on purpose (a fresh session otherwise
// starts with an uninformative ATR-ratio of 1.0 for its first 14
// observations).
type Classifier struct {
	mu sync.Mutex

	hours HoursConfig

	or OpeningRange

	bars       []bar     // bounded 20, one per Update call
	atrHistory []float64 // bounded 20, one ATR value per Update call

	vwapPairs []vwapPair // bounded 20 (price, volume)

	prevPriceVsVWAP PriceVsVWAP // for the 0.2% hysteresis band
}

type vwapPair struct {
	price  float64
	volume int64
}

const (
	maxBarHistory  = 20
	atrPeriod      = 14
	maxVWAPHistory = 20
)

// NewClassifier builds a Classifier bound to the given exchange hours.
func NewClassifier(hours HoursConfig) *Classifier {
	return &Classifier{hours: hours}
}

// ResetDay clears intraday accumulators (opening range, VWAP history,
// price-vs-VWAP hysteresis memory) but keeps the ATR averaging window,
// which spans multiple sessions by design.
func (c *Classifier) ResetDay() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.or = OpeningRange{}
	c.vwapPairs = nil
	c.prevPriceVsVWAP = ""
}

// Classify runs the full classification pipeline against one
// snapshot and returns the resulting Regime.
func (c *Classifier) Classify(s market.Snapshot, vixLevel VIXLevel) Regime {
	c.mu.Lock()
	defer c.mu.Unlock()

	local := s.Timestamp.In(c.hours.Location)
	price := s.Spot.LTP

	c.updateOpeningRange(local, s)
	atrRatio := c.updateATR(s)
	vwap, slope := c.updateVWAP(s)

	priceVsVWAP := c.priceVsVWAPHysteresis(price, vwap)

	vol := classifyVolatility(atrRatio, vixLevel)
	trend := c.voteTrend(price, vwap, slope)

	inOpeningRangePeriod := isWithinOpeningRange(local, c.hours)

	rtype := c.classifyType(price, slope, vol, trend, inOpeningRangePeriod)

	vixChangePct := 0.0
	if s.VIX.PreviousClose > 0 {
		vixChangePct = (s.VIX.Value - s.VIX.PreviousClose) / s.VIX.PreviousClose * 100
	}
	vixDirection := "flat"
	switch {
	case vixChangePct > 3:
		vixDirection = "rising"
	case vixChangePct < -3:
		vixDirection = "falling"
	}

	tradeAllowed, rejections := evaluateTradeAllowed(local, c.hours, rtype, vol, vixDirection, vixChangePct)

	return Regime{
		Type:             rtype,
		Volatility:       vol,
		Trend:            trend,
		AllowedSetups:    AllowedSetups(rtype, vol),
		TradeAllowed:     tradeAllowed,
		Reasons:          reasonsFor(rtype, vol, trend),
		RejectionReasons: rejections,
		Metrics: Metrics{
			ATRRatio:     atrRatio,
			VWAPSlope:    slope,
			PriceVsVWAP:  priceVsVWAP,
			VIXLevel:     vixLevel,
			VIXDirection: vixDirection,
		},
		OpeningRange: c.or,
		Timestamp:    s.Timestamp,
	}
}

func (c *Classifier) updateOpeningRange(local time.Time, s market.Snapshot) {
	tod := timeOfDay(local)
	if tod < c.hours.MarketOpen {
		return
	}
	if tod <= c.hours.OpeningRangeEnd {
		if !c.or.Captured {
			if c.or.StartTime.IsZero() {
				c.or.StartTime = local
				c.or.High = s.Spot.Session.High
				c.or.Low = s.Spot.Session.Low
			} else {
				c.or.High = math.Max(c.or.High, s.Spot.Session.High)
				c.or.Low = math.Min(c.or.Low, s.Spot.Session.Low)
			}
		}
		return
	}
	// First snapshot observed after opening-range-end freezes the OR,
	// exactly once per day.
	if !c.or.Captured {
		c.or.Captured = true
		c.or.EndTime = local
	}
}

// updateATR folds the latest bar into the bounded history and returns
// the current ATR-ratio (current ATR / average of the retained ATR
// history). Returns 1.0 below 14 observations.
func (c *Classifier) updateATR(s market.Snapshot) float64 {
	b := bar{high: s.Spot.Session.High, low: s.Spot.Session.Low, close: s.Spot.LTP, volume: s.Spot.Session.Volume}
	c.bars = append(c.bars, b)
	if len(c.bars) > maxBarHistory {
		c.bars = c.bars[1:]
	}

	if len(c.bars) < atrPeriod+1 {
		return 1.0
	}

	currentATR := wilderATR(c.bars, atrPeriod)

	c.atrHistory = append(c.atrHistory, currentATR)
	if len(c.atrHistory) > maxBarHistory {
		c.atrHistory = c.atrHistory[1:]
	}

	if len(c.atrHistory) < atrPeriod {
		return 1.0
	}

	avg := mean(c.atrHistory)
	if avg == 0 {
		return 1.0
	}
	return currentATR / avg
}

func wilderATR(bars []bar, period int) float64 {
	trs := make([]float64, 0, len(bars)-1)
	for i := 1; i < len(bars); i++ {
		tr1 := bars[i].high - bars[i].low
		tr2 := math.Abs(bars[i].high - bars[i-1].close)
		tr3 := math.Abs(bars[i].low - bars[i-1].close)
		trs = append(trs, math.Max(tr1, math.Max(tr2, tr3)))
	}
	if len(trs) < period {
		return mean(trs)
	}
	sum := 0.0
	for i := 0; i < period; i++ {
		sum += trs[i]
	}
	atr := sum / float64(period)
	for i := period; i < len(trs); i++ {
		atr = (atr*float64(period-1) + trs[i]) / float64(period)
	}
	return atr
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// updateVWAP folds in the latest (price, volume) pair and returns the
// current session VWAP plus the slope of the cumulative-VWAP series
// over the retained window (<=20 points).
func (c *Classifier) updateVWAP(s market.Snapshot) (vwap, slope float64) {
	c.vwapPairs = append(c.vwapPairs, vwapPair{price: s.Spot.LTP, volume: s.Spot.Session.Volume})
	if len(c.vwapPairs) > maxVWAPHistory {
		c.vwapPairs = c.vwapPairs[1:]
	}

	series := make([]float64, len(c.vwapPairs))
	var pv, v float64
	for i, p := range c.vwapPairs {
		pv += p.price * float64(p.volume)
		v += float64(p.volume)
		if v == 0 {
			series[i] = p.price
		} else {
			series[i] = pv / v
		}
	}
	vwap = series[len(series)-1]
	slope = linearSlope(series)
	return vwap, slope
}

// linearSlope fits y = a + b*x over x = 0..n-1 and returns b.
func linearSlope(ys []float64) float64 {
	n := len(ys)
	if n < 2 {
		return 0
	}
	var sumX, sumY, sumXY, sumXX float64
	for i, y := range ys {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}
	nf := float64(n)
	denom := nf*sumXX - sumX*sumX
	if denom == 0 {
		return 0
	}
	return (nf*sumXY - sumX*sumY) / denom
}

const hysteresisBand = 0.002 // 0.2%

func (c *Classifier) priceVsVWAPHysteresis(price, vwap float64) PriceVsVWAP {
	if vwap == 0 {
		return At
	}
	upper := vwap * (1 + hysteresisBand)
	lower := vwap * (1 - hysteresisBand)

	switch {
	case price > upper:
		c.prevPriceVsVWAP = Above
	case price < lower:
		c.prevPriceVsVWAP = Below
	default:
		// Inside the band: stay with whatever side we were already on,
		// only settling to "at" if we have no prior state.
		if c.prevPriceVsVWAP == "" {
			c.prevPriceVsVWAP = At
		}
	}
	return c.prevPriceVsVWAP
}

func priceVsVWAPBand(price, vwap, band float64) PriceVsVWAP {
	if vwap == 0 {
		return At
	}
	switch {
	case price > vwap*(1+band):
		return Above
	case price < vwap*(1-band):
		return Below
	default:
		return At
	}
}

func classifyVolatility(atrRatio float64, vix VIXLevel) VolatilityLevel {
	switch {
	case atrRatio >= 1.8 || vix == VIXExtreme:
		return VolExtreme
	case atrRatio >= 1.3 || vix == VIXElevated:
		return VolHigh
	case atrRatio >= 0.8 && (vix == VIXNormal || vix == VIXLow):
		return VolNormal
	default:
		return VolLow
	}
}

func (c *Classifier) voteTrend(price, vwap, slope float64) Trend {
	bullish, bearish := 0, 0

	switch priceVsVWAPBand(price, vwap, 0.001) {
	case Above:
		bullish++
	case Below:
		bearish++
	}

	if slope > 0.1 {
		bullish++
	} else if slope < -0.1 {
		bearish++
	}

	if c.or.Captured {
		switch {
		case price > c.or.High:
			bullish++
		case price < c.or.Low:
			bearish++
		}
	}

	switch {
	case bullish >= 2:
		return TrendUp
	case bearish >= 2:
		return TrendDown
	default:
		return TrendSideways
	}
}

func isWithinOpeningRange(local time.Time, h HoursConfig) bool {
	tod := timeOfDay(local)
	return tod >= h.MarketOpen && tod <= h.OpeningRangeEnd
}

func timeOfDay(t time.Time) time.Duration {
	return time.Duration(t.Hour())*time.Hour +
		time.Duration(t.Minute())*time.Minute +
		time.Duration(t.Second())*time.Second
}

func (c *Classifier) classifyType(price, slope float64, vol VolatilityLevel, trend Trend, inOpeningRange bool) Type {
	switch {
	case inOpeningRange:
		return OpeningRangeT
	case vol == VolExtreme:
		return Volatile
	case c.or.Captured && price > c.or.High && trend == TrendUp && slope > 0.05:
		return TrendingBullish
	case c.or.Captured && price < c.or.Low && trend == TrendDown && slope < -0.05:
		return TrendingBearish
	case math.Abs(slope) > 0.15:
		if slope > 0 {
			return TrendingBullish
		}
		return TrendingBearish
	case c.or.Captured && c.or.Range() > 0 && math.Abs(price-c.nearestOREdge(price)) < 0.3*c.or.Range() && vol == VolLow:
		return PreBreakout
	case vol == VolHigh:
		return Volatile
	default:
		return RangeBound
	}
}

func (c *Classifier) nearestOREdge(price float64) float64 {
	if math.Abs(price-c.or.High) < math.Abs(price-c.or.Low) {
		return c.or.High
	}
	return c.or.Low
}

// evaluateTradeAllowed: trade-allowed is
// false whenever any suppression applies, each contributing its own
// rejection reason.
func evaluateTradeAllowed(local time.Time, h HoursConfig, rtype Type, vol VolatilityLevel, vixDir string, vixChangePct float64) (bool, []string) {
	var reasons []string

	if isWithinOpeningRange(local, h) {
		reasons = append(reasons, "Opening range period: no trades until the range is captured")
	}
	if vol == VolExtreme {
		reasons = append(reasons, "Extreme volatility regime")
	}
	if rtype == Volatile {
		reasons = append(reasons, "Regime classified as volatile")
	}
	if vixDir == "rising" && vixChangePct > 10 {
		reasons = append(reasons, "VIX rising sharply (more than +10%)")
	}
	cutoff := 15 * time.Hour
	if timeOfDay(local) >= cutoff {
		reasons = append(reasons, "Past new-entries cutoff (15:00)")
	}

	return len(reasons) == 0, reasons
}

func reasonsFor(rtype Type, vol VolatilityLevel, trend Trend) []string {
	return []string{
		"classified as " + string(rtype),
		"volatility " + string(vol),
		"trend " + string(trend),
	}
}
