package audio

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSampleRing_LatestPadsFront(t *testing.T) {
	r := NewSampleRing(8)
	r.Write([]float64{0.1, 0.2, 0.3})

	dst := make([]float64, 5)
	n := r.Latest(dst)

	assert.Equal(t, 3, n)
	assert.Equal(t, []float64{0, 0, 0.1, 0.2, 0.3}, dst)
}

func TestSampleRing_DropsOldest(t *testing.T) {
	r := NewSampleRing(4)
	r.Write([]float64{1, 2, 3, 4, 5, 6})

	dst := make([]float64, 4)
	assert.Equal(t, 4, r.Latest(dst))
	assert.Equal(t, []float64{3, 4, 5, 6}, dst)

	short := make([]float64, 2)
	r.Latest(short)
	assert.Equal(t, []float64{5, 6}, short)
}

func TestSampleRing_WritePCMMixesToMono(t *testing.T) {
	r := NewSampleRing(4)
	r.WritePCM([]int16{16384, 0, -32768, -32768}, 2)

	dst := make([]float64, 2)
	r.Latest(dst)
	assert.InDelta(t, 0.25, dst[0], 1e-9)
	assert.InDelta(t, -1.0, dst[1], 1e-9)
}

func TestSampleRing_Reset(t *testing.T) {
	r := NewSampleRing(4)
	r.Write([]float64{1, 2})
	r.Reset()

	dst := []float64{9, 9}
	assert.Equal(t, 0, r.Latest(dst))
	assert.Equal(t, []float64{0, 0}, dst)
}
