package audio

import "sync"

// SampleRing is a fixed-capacity drop-oldest buffer of mono samples. It is
// safe for one writer and concurrent readers.
type SampleRing struct {
	mu   sync.Mutex
	buf  []float64
	head int // next write position
	len  int
}

// NewSampleRing returns a ring holding up to capacity samples.
func NewSampleRing(capacity int) *SampleRing {
	if capacity < 1 {
		capacity = 1
	}
	return &SampleRing{buf: make([]float64, capacity)}
}

// WritePCM mixes interleaved PCM down to mono and appends it.
func (r *SampleRing) WritePCM(pcm []int16, channels int) {
	if channels < 1 {
		channels = 1
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := 0; i+channels <= len(pcm); i += channels {
		var sum float64
		for c := 0; c < channels; c++ {
			sum += float64(pcm[i+c])
		}
		r.push(sum / float64(channels) / 32768)
	}
}

// Write appends mono samples.
func (r *SampleRing) Write(samples []float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range samples {
		r.push(s)
	}
}

func (r *SampleRing) push(s float64) {
	r.buf[r.head] = s
	r.head = (r.head + 1) % len(r.buf)
	if r.len < len(r.buf) {
		r.len++
	}
}

// Latest implements Signal.
func (r *SampleRing) Latest(dst []float64) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := min(len(dst), r.len)
	pad := len(dst) - n
	for i := 0; i < pad; i++ {
		dst[i] = 0
	}
	start := (r.head - n + len(r.buf)) % len(r.buf)
	for i := 0; i < n; i++ {
		dst[pad+i] = r.buf[(start+i)%len(r.buf)]
	}
	return n
}

// Reset drops all samples.
func (r *SampleRing) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.head = 0
	r.len = 0
}
