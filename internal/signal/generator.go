package signal

import (
	"errors"
)

const DefaultPeriod = 14

// ErrInsufficientData is returned when the price series is too short to form
// even one oscillator reading.
var ErrInsufficientData = errors.New("insufficient price data")

type Direction string

const (
	DirectionUp   Direction = "UP"
	DirectionDown Direction = "DOWN"
	DirectionNone Direction = "NONE"
)

// Generator derives a directional decision from a price series using a
// Wilder-smoothed RSI. Pure: no state survives a call.
type Generator struct {
	Period int
}

// Oscillator returns one RSI value per price position starting at index 1
// (index 0 has no delta). For positions with fewer than Period deltas behind
// them the average gain/loss is the plain mean over the deltas seen so far;
// Wilder smoothing takes over once a full window is available. This is the
// documented degenerate-window behavior for short series: values exist from
// the second observation on, they are just less smoothed.
func (g *Generator) Oscillator(prices []float64) ([]float64, error) {
	if len(prices) < 2 {
		return nil, ErrInsufficientData
	}
	n := g.Period
	if n <= 0 {
		n = DefaultPeriod
	}

	out := make([]float64, 0, len(prices)-1)
	var avgGain, avgLoss float64
	for i := 1; i < len(prices); i++ {
		d := prices[i] - prices[i-1]
		gain, loss := 0.0, 0.0
		if d > 0 {
			gain = d
		} else {
			loss = -d
		}
		if i <= n {
			// Seed phase: running simple average over the deltas so far.
			k := float64(i)
			avgGain = (avgGain*(k-1) + gain) / k
			avgLoss = (avgLoss*(k-1) + loss) / k
		} else {
			avgGain = (avgGain*float64(n-1) + gain) / float64(n)
			avgLoss = (avgLoss*float64(n-1) + loss) / float64(n)
		}

		out = append(out, rsiValue(avgGain, avgLoss))
	}
	return out, nil
}

// rsiValue maps smoothed averages to the 0-100 scale. A zero average loss
// pins the value at 100 (or 50 for a perfectly flat window) instead of
// letting the ratio degenerate.
func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		if avgGain == 0 {
			return 50.0
		}
		return 100.0
	}
	rs := avgGain / avgLoss
	return 100.0 - (100.0 / (1.0 + rs))
}

// Decide applies the threshold rule to the trailing oscillator values.
//
// UP fires when the oscillator is above upper and falling back from it.
// DOWN fires when the oscillator is below lower and falling: any decrease,
// not specifically a cross through the threshold. The asymmetry matches the
// production rule; do not "fix" it here without a strategy review.
func (g *Generator) Decide(prices []float64, upper, lower float64) (Direction, error) {
	osc, err := g.Oscillator(prices)
	if err != nil {
		return DirectionNone, err
	}

	current := osc[len(osc)-1]
	previous := current
	if len(osc) > 1 {
		previous = osc[len(osc)-2]
	}
	decreasing := current < previous

	switch {
	case current > upper && decreasing:
		return DirectionUp, nil
	case current < lower && decreasing:
		return DirectionDown, nil
	default:
		return DirectionNone, nil
	}
}
