package level

import "math"

// Resample maps levels onto exactly m bars.
//
// When m <= len(levels) the samples are split into m contiguous slices and
// each bar holds the peak of its slice, so short transients stay visible.
// When m > len(levels) the bars are linearly interpolated and the first and
// last bar reproduce the first and last sample exactly. An empty input yields
// m bars at RestLevel. m < 1 is treated as 1.
func Resample(levels []float64, m int) []float64 {
	if m < 1 {
		m = 1
	}
	n := len(levels)
	out := make([]float64, m)

	if n == 0 {
		for i := range out {
			out[i] = RestLevel
		}
		return out
	}

	if m <= n {
		for i := range out {
			start := i * n / m
			end := (i + 1) * n / m
			if end <= start {
				out[i] = RestLevel
				continue
			}
			peak := levels[start]
			for _, v := range levels[start+1 : end] {
				if v > peak {
					peak = v
				}
			}
			out[i] = peak
		}
		return out
	}

	// m > n >= 1, so m >= 2 and the divisor below is never zero.
	for i := range out {
		if i == m-1 {
			out[i] = levels[n-1]
			continue
		}
		position := float64(i) * float64(n-1) / float64(m-1)
		lower := int(math.Floor(position))
		upper := int(math.Ceil(position))
		if upper > n-1 {
			upper = n - 1
		}
		fraction := position - float64(lower)
		if lower == upper {
			out[i] = levels[lower]
			continue
		}
		out[i] = levels[lower]*(1-fraction) + levels[upper]*fraction
	}
	return out
}
