package audio

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sine(n int, cyclesPerWindow float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.Sin(2 * math.Pi * cyclesPerWindow * float64(i) / float64(n))
	}
	return out
}

func TestFFTAnalyser_Silence(t *testing.T) {
	ring := NewSampleRing(1024)
	ring.Write(make([]float64, 1024))

	a := NewFFTAnalyser(ring, DefaultAnalyserOptions())
	require.Equal(t, 256, a.BinCount())

	dst := make([]byte, a.BinCount())
	a.ByteFrequencyData(dst)
	for k, v := range dst {
		assert.Zero(t, v, "bin %d", k)
	}
}

func TestFFTAnalyser_ToneLandsInItsBin(t *testing.T) {
	ring := NewSampleRing(512)
	ring.Write(sine(512, 32))

	opts := DefaultAnalyserOptions()
	opts.Smoothing = 0
	a := NewFFTAnalyser(ring, opts)

	dst := make([]byte, a.BinCount())
	a.ByteFrequencyData(dst)

	assert.Equal(t, byte(255), dst[32])
	assert.Less(t, dst[200], dst[32])
	assert.Zero(t, dst[200])
}

func TestFFTAnalyser_SmoothingDecays(t *testing.T) {
	ring := NewSampleRing(512)
	ring.Write(sine(512, 32))

	a := NewFFTAnalyser(ring, DefaultAnalyserOptions())
	dst := make([]byte, a.BinCount())
	a.ByteFrequencyData(dst)
	require.NotZero(t, dst[32])

	ring.Write(make([]float64, 512))
	a.ByteFrequencyData(dst)
	assert.NotZero(t, dst[32], "smoothing keeps energy for a frame")

	for i := 0; i < 200; i++ {
		a.ByteFrequencyData(dst)
	}
	assert.Zero(t, dst[32])
}

func TestFFTAnalyser_InvalidOptionsFallBack(t *testing.T) {
	a := NewFFTAnalyser(NewSampleRing(16), AnalyserOptions{FFTSize: 500, MinDB: -10, MaxDB: -20})
	assert.Equal(t, 256, a.BinCount())
}

func TestFFTAnalyser_ClosedIsInert(t *testing.T) {
	ring := NewSampleRing(512)
	ring.Write(sine(512, 32))

	a := AnalyserFactory(DefaultAnalyserOptions())(ring)
	a.Close()

	dst := []byte{7, 7}
	a.ByteFrequencyData(dst)
	assert.Equal(t, []byte{7, 7}, dst)
}
