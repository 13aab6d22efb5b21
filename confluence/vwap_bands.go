package confluence

import "math"

// VWAPBands scores price against the session VWAP and its +-1sigma/+-2sigma
// bands, computed from the cumulative volume-weighted variance of
// typical price.
func VWAPBands(w Window) IndicatorSignal {
	if len(w.Bars) == 0 {
		return IndicatorSignal{Name: "vwap_bands", Direction: Neutral, Score: 0, Reasoning: "no data"}
	}

	vwap, sigma := vwapAndSigma(w.Bars)
	price := w.last().Close

	switch {
	case sigma == 0 || vwap == 0:
		return IndicatorSignal{Name: "vwap_bands", Direction: Neutral, Score: 0, Value: price, Reasoning: "insufficient volume for VWAP bands"}
	case price > vwap+2*sigma:
		return IndicatorSignal{Name: "vwap_bands", Direction: Long, Score: 0.5, Value: price, Reasoning: "price above +2 sigma VWAP band, extended"}
	case price > vwap+sigma:
		return IndicatorSignal{Name: "vwap_bands", Direction: Long, Score: 1.0, Value: price, Reasoning: "price above +1 sigma VWAP band"}
	case price > vwap:
		return IndicatorSignal{Name: "vwap_bands", Direction: Long, Score: 1.5, Value: price, Reasoning: "price above VWAP"}
	case price < vwap-2*sigma:
		return IndicatorSignal{Name: "vwap_bands", Direction: Short, Score: 0.5, Value: price, Reasoning: "price below -2 sigma VWAP band, extended"}
	case price < vwap-sigma:
		return IndicatorSignal{Name: "vwap_bands", Direction: Short, Score: 1.0, Value: price, Reasoning: "price below -1 sigma VWAP band"}
	case price < vwap:
		return IndicatorSignal{Name: "vwap_bands", Direction: Short, Score: 1.5, Value: price, Reasoning: "price below VWAP"}
	default:
		return IndicatorSignal{Name: "vwap_bands", Direction: Neutral, Score: 0, Value: price, Reasoning: "price at VWAP"}
	}
}

func vwapAndSigma(bars []Bar) (vwap, sigma float64) {
	var pv, v float64
	for _, b := range bars {
		tp := typicalPrice(b)
		pv += tp * b.Volume
		v += b.Volume
	}
	if v == 0 {
		return 0, 0
	}
	vwap = pv / v

	var varSum float64
	for _, b := range bars {
		tp := typicalPrice(b)
		d := tp - vwap
		varSum += b.Volume * d * d
	}
	variance := varSum / v
	sigma = math.Sqrt(variance)
	return vwap, sigma
}

func typicalPrice(b Bar) float64 {
	return (b.High + b.Low + b.Close) / 3
}
