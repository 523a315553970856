package level

// History is a fixed-capacity FIFO of levels. It always holds exactly
// BarCount values; pushing drops the oldest one.
type History struct {
	buf  [BarCount]float64
	head int // index of the oldest value
}

// NewHistory returns a History filled with RestLevel.
func NewHistory() *History {
	h := &History{}
	h.Reset()
	return h
}

// Push appends v and drops the oldest value.
func (h *History) Push(v float64) {
	h.buf[h.head] = v
	h.head = (h.head + 1) % BarCount
}

// Reset fills the history with RestLevel.
func (h *History) Reset() {
	for i := range h.buf {
		h.buf[i] = RestLevel
	}
	h.head = 0
}

// Len is always BarCount.
func (h *History) Len() int {
	return BarCount
}

// Values returns a copy of the history, oldest first.
func (h *History) Values() []float64 {
	out := make([]float64, BarCount)
	for i := range out {
		out[i] = h.buf[(h.head+i)%BarCount]
	}
	return out
}
