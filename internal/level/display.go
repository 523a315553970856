package level

import "fmt"

// BarsForWidth returns how many bars of barWidth plus gap fit in width.
// An unknown width (<= 0) falls back to max(n, BarCount).
func BarsForWidth(width, barWidth, gap, n int) int {
	if width <= 0 {
		return max(n, BarCount)
	}
	pitch := barWidth + gap
	if pitch <= 0 {
		pitch = 1
	}
	return max(width/pitch, 1)
}

// DisplayClamp limits a bar value to the drawable range [0.1, 1].
func DisplayClamp(v float64) float64 {
	return min(max(v, 0.1), 1)
}

// FormatElapsed renders whole seconds as m:ss.
func FormatElapsed(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}
