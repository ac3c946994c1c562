package reprocess

import "math"

func mean(scores map[string]float64) float64 {
	if len(scores) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range scores {
		sum += v
	}
	return sum / float64(len(scores))
}

// stdDev is the sample standard deviation (n-1 denominator).
func stdDev(scores map[string]float64) float64 {
	n := len(scores)
	if n < 2 {
		return 0
	}
	m := mean(scores)
	sum := 0.0
	for _, v := range scores {
		d := v - m
		sum += d * d
	}
	return math.Sqrt(sum / float64(n-1))
}
