package confluence

// RSI14 scores the Wilder RSI(14) against the banded rules in
// the banded thresholds.
func RSI14(w Window) IndicatorSignal {
	const period = 14
	closes := closesOf(w.Bars)
	if len(closes) <= period+1 {
		return IndicatorSignal{Name: "rsi_14", Direction: Neutral, Score: 0, Reasoning: "insufficient bars for RSI14"}
	}

	rsiSeries := wilderRSISeries(closes, period)
	rsi := rsiSeries[len(rsiSeries)-1]
	prevRSI := rsiSeries[len(rsiSeries)-2]
	rising := rsi > prevRSI
	falling := rsi < prevRSI

	switch {
	case rsi < 25:
		return sig(Long, 2.0, rsi, "RSI below 25, oversold")
	case rsi < 30:
		return sig(Long, 1.5, rsi, "RSI below 30")
	case rsi < 40:
		if rising {
			return sig(Long, 0.5, rsi, "RSI below 40 and rising")
		}
		return sig(Long, 0, rsi, "RSI below 40 but not rising")
	case rsi <= 60:
		return sig(Neutral, 0, rsi, "RSI in neutral 40-60 band")
	case rsi <= 70:
		if falling {
			return sig(Short, 0.5, rsi, "RSI above 60 and falling")
		}
		return sig(Short, 0, rsi, "RSI above 60 but not falling")
	case rsi < 75:
		return sig(Short, 1.5, rsi, "RSI above 70")
	default:
		return sig(Short, 2.0, rsi, "RSI above 75, overbought")
	}
}

func sig(dir Direction, score, value float64, reason string) IndicatorSignal {
	return IndicatorSignal{Name: "rsi_14", Direction: dir, Score: score, Value: value, Reasoning: reason}
}

func wilderRSISeries(closes []float64, period int) []float64 {
	out := make([]float64, len(closes))
	gains, losses := 0.0, 0.0
	for i := 1; i <= period; i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			gains += change
		} else {
			losses += -change
		}
	}
	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)
	out[period] = rsiFromAvg(avgGain, avgLoss)

	for i := period + 1; i < len(closes); i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			avgGain = (avgGain*float64(period-1) + change) / float64(period)
			avgLoss = (avgLoss * float64(period-1)) / float64(period)
		} else {
			avgGain = (avgGain * float64(period-1)) / float64(period)
			avgLoss = (avgLoss*float64(period-1) + (-change)) / float64(period)
		}
		out[i] = rsiFromAvg(avgGain, avgLoss)
	}
	return out
}

func rsiFromAvg(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs))
}
