package theme

import "math"

// wilsonZ is the confidence used for both bounds (roughly 99.7%).
const wilsonZ = 3.0

// WilsonBounds returns the lower and upper bound of the Wilson score interval
// for positive successes out of total trials. With no trials the interval
// spans [0, 1].
func WilsonBounds(positive, total float64) (low, high float64) {
	if total <= 0 {
		return 0, 1
	}

	phat := positive / total
	zsqbyn := wilsonZ * wilsonZ / total
	uncertainty := wilsonZ * math.Sqrt((phat*(1-phat)+zsqbyn/4)/total)

	low = (phat + zsqbyn/2 - uncertainty) / (1 + zsqbyn)
	high = (phat + zsqbyn/2 + uncertainty) / (1 + zsqbyn)
	return clamp01(low), clamp01(high)
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return min(1, max(0, v))
}
