package confluence

import "math"

// PriceAction flags candlestick motifs on the last two bars and emits
// the highest-scoring one.
func PriceAction(w Window) IndicatorSignal {
	if len(w.Bars) < 2 {
		return IndicatorSignal{Name: "price_action", Direction: Neutral, Score: 0, Reasoning: "insufficient bars for price action"}
	}

	prev := w.Bars[len(w.Bars)-2]
	cur := w.Bars[len(w.Bars)-1]

	candidates := []IndicatorSignal{
		largeBody(cur),
		hammer(cur),
		shootingStar(cur),
		engulfing(prev, cur),
		doji(cur),
	}

	best := IndicatorSignal{Name: "price_action", Direction: Neutral, Score: 0, Reasoning: "no recognizable motif"}
	for _, c := range candidates {
		if c.Score > best.Score {
			best = c
		}
	}
	return best
}

func bodyRange(b Bar) (body, rng float64) {
	body = math.Abs(b.Close - b.Open)
	rng = b.High - b.Low
	return
}

func largeBody(b Bar) IndicatorSignal {
	body, rng := bodyRange(b)
	if rng == 0 || body/rng <= 0.7 {
		return IndicatorSignal{Name: "price_action", Direction: Neutral, Score: 0}
	}
	if b.Close > b.Open {
		return IndicatorSignal{Name: "price_action", Direction: Long, Score: 1.0, Reasoning: "large bullish body"}
	}
	return IndicatorSignal{Name: "price_action", Direction: Short, Score: 1.0, Reasoning: "large bearish body"}
}

func hammer(b Bar) IndicatorSignal {
	body, rng := bodyRange(b)
	if rng == 0 || body == 0 {
		return IndicatorSignal{Name: "price_action", Direction: Neutral, Score: 0}
	}
	upperWick := b.High - math.Max(b.Open, b.Close)
	lowerWick := math.Min(b.Open, b.Close) - b.Low
	if lowerWick > 2*body && upperWick < 0.5*body {
		return IndicatorSignal{Name: "price_action", Direction: Long, Score: 1.5, Reasoning: "hammer"}
	}
	return IndicatorSignal{Name: "price_action", Direction: Neutral, Score: 0}
}

func shootingStar(b Bar) IndicatorSignal {
	body, rng := bodyRange(b)
	if rng == 0 || body == 0 {
		return IndicatorSignal{Name: "price_action", Direction: Neutral, Score: 0}
	}
	upperWick := b.High - math.Max(b.Open, b.Close)
	lowerWick := math.Min(b.Open, b.Close) - b.Low
	if upperWick > 2*body && lowerWick < 0.5*body {
		return IndicatorSignal{Name: "price_action", Direction: Short, Score: 1.5, Reasoning: "shooting star"}
	}
	return IndicatorSignal{Name: "price_action", Direction: Neutral, Score: 0}
}

func engulfing(prev, cur Bar) IndicatorSignal {
	prevBullish := prev.Close > prev.Open
	curBullish := cur.Close > cur.Open
	if curBullish && !prevBullish && cur.Open <= prev.Close && cur.Close >= prev.Open {
		return IndicatorSignal{Name: "price_action", Direction: Long, Score: 2.0, Reasoning: "bullish engulfing"}
	}
	if !curBullish && prevBullish && cur.Open >= prev.Close && cur.Close <= prev.Open {
		return IndicatorSignal{Name: "price_action", Direction: Short, Score: 2.0, Reasoning: "bearish engulfing"}
	}
	return IndicatorSignal{Name: "price_action", Direction: Neutral, Score: 0}
}

func doji(b Bar) IndicatorSignal {
	body, rng := bodyRange(b)
	if rng == 0 {
		return IndicatorSignal{Name: "price_action", Direction: Neutral, Score: 0}
	}
	if body/rng < 0.1 {
		return IndicatorSignal{Name: "price_action", Direction: Neutral, Score: 0.5, Reasoning: "doji"}
	}
	return IndicatorSignal{Name: "price_action", Direction: Neutral, Score: 0}
}
