package confluence

// EMACross scores the fast(9)/slow(21) EMA crossover state, checked in
// priority order.
func EMACross(w Window) IndicatorSignal {
	const fastPeriod, slowPeriod = 9, 21
	if len(w.Bars) < slowPeriod+5 {
		return IndicatorSignal{Name: "ema_9_21", Direction: Neutral, Score: 0, Reasoning: "insufficient bars for EMA 9/21"}
	}

	closes := closesOf(w.Bars)
	fastSeries := emaSeries(closes, fastPeriod)
	slowSeries := emaSeries(closes, slowPeriod)

	n := len(closes)
	fast, slow := fastSeries[n-1], slowSeries[n-1]
	prevFast, prevSlow := fastSeries[n-2], slowSeries[n-2]
	price := closes[n-1]

	freshBullishCross := prevFast <= prevSlow && fast > slow
	freshBearishCross := prevFast >= prevSlow && fast < slow

	switch {
	case freshBullishCross:
		return IndicatorSignal{Name: "ema_9_21", Direction: Long, Score: 2.0, Value: fast - slow, Reasoning: "fresh bullish EMA9/21 crossover"}
	case freshBearishCross:
		return IndicatorSignal{Name: "ema_9_21", Direction: Short, Score: 2.0, Value: fast - slow, Reasoning: "fresh bearish EMA9/21 crossover"}
	case fast > slow && price > fast:
		return IndicatorSignal{Name: "ema_9_21", Direction: Long, Score: 1.5, Value: fast - slow, Reasoning: "fast EMA above slow, price above fast EMA"}
	case fast > slow && price <= fast && price >= slow:
		return IndicatorSignal{Name: "ema_9_21", Direction: Long, Score: 1.0, Value: fast - slow, Reasoning: "fast EMA above slow, price between EMAs"}
	case fast < slow && price < fast:
		return IndicatorSignal{Name: "ema_9_21", Direction: Short, Score: 1.5, Value: fast - slow, Reasoning: "fast EMA below slow, price below fast EMA"}
	case fast < slow && price >= fast && price <= slow:
		return IndicatorSignal{Name: "ema_9_21", Direction: Short, Score: 1.0, Value: fast - slow, Reasoning: "fast EMA below slow, price between EMAs"}
	default:
		return IndicatorSignal{Name: "ema_9_21", Direction: Neutral, Score: 0.5, Value: fast - slow, Reasoning: "potential weakening, no clear EMA alignment"}
	}
}

func closesOf(bars []Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}

// emaSeries returns an EMA value for every index >= period-1 (earlier
// indices repeat the first computed value so callers can index by the
// same position as closes).
func emaSeries(closes []float64, period int) []float64 {
	out := make([]float64, len(closes))
	if len(closes) < period {
		return out
	}
	sum := 0.0
	for i := 0; i < period; i++ {
		sum += closes[i]
	}
	ema := sum / float64(period)
	for i := 0; i < period; i++ {
		out[i] = ema
	}
	mult := 2.0 / float64(period+1)
	for i := period; i < len(closes); i++ {
		ema = (closes[i]-ema)*mult + ema
		out[i] = ema
	}
	return out
}
