// Package level turns frequency-domain frames into normalized loudness values
// and resamples the rolling level history to an arbitrary number of bars.
package level

const (
	// BarCount is the capacity of the level history.
	BarCount = 40
	// RestLevel is the value every bar holds after a reset.
	RestLevel = 0.15
	// FloorLevel is the lowest level Level ever reports.
	FloorLevel = 0.05
	// Gain boosts the mean magnitude so normal speech fills the range.
	Gain = 3.5
	// CommitEvery is the number of ticks between history commits.
	CommitEvery = 5
)

// Level converts one frame of byte magnitudes into a loudness scalar in
// [FloorLevel, 1]. An empty frame is treated as silence.
func Level(frame []byte) float64 {
	var avg float64
	if len(frame) > 0 {
		var sum int
		for _, v := range frame {
			sum += int(v)
		}
		avg = float64(sum) / float64(len(frame))
	}

	normalized := avg / 255 * Gain
	if normalized < FloorLevel {
		normalized = FloorLevel
	}
	if normalized > 1 {
		normalized = 1
	}
	return normalized
}

// Analyzer computes a level on every tick and commits every CommitEvery-th
// one into its History.
type Analyzer struct {
	history *History
	count   int
}

// NewAnalyzer returns an Analyzer that commits into h.
func NewAnalyzer(h *History) *Analyzer {
	return &Analyzer{history: h}
}

// Tick processes one animation frame. It reports the computed level and
// whether it was pushed into the history.
func (a *Analyzer) Tick(frame []byte) (float64, bool) {
	lvl := Level(frame)
	a.count++
	if a.count < CommitEvery {
		return lvl, false
	}
	a.count = 0
	a.history.Push(lvl)
	return lvl, true
}

// Reset clears the decimation counter.
func (a *Analyzer) Reset() {
	a.count = 0
}

// History returns the history the analyzer commits into.
func (a *Analyzer) History() *History {
	return a.history
}
