package level

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevel(t *testing.T) {
	tests := []struct {
		name  string
		frame []byte
		want  float64
	}{
		{name: "full scale", frame: bytes.Repeat([]byte{255}, 256), want: 1.0},
		{name: "silence hits the floor", frame: make([]byte, 256), want: FloorLevel},
		{name: "empty frame", frame: nil, want: FloorLevel},
		{name: "mid range", frame: bytes.Repeat([]byte{51}, 8), want: 51.0 / 255 * Gain},
		{name: "just under floor", frame: []byte{3}, want: FloorLevel},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Level(tt.frame), 1e-12)
		})
	}
}

func TestAnalyzerCommitsEveryFifthTick(t *testing.T) {
	h := NewHistory()
	a := NewAnalyzer(h)
	loud := bytes.Repeat([]byte{255}, 16)

	for i := 1; i <= 12; i++ {
		lvl, committed := a.Tick(loud)
		assert.Equal(t, 1.0, lvl)
		assert.Equal(t, i%CommitEvery == 0, committed, "tick %d", i)
	}

	values := h.Values()
	require.Len(t, values, BarCount)
	assert.Equal(t, 1.0, values[BarCount-1])
	assert.Equal(t, 1.0, values[BarCount-2])
	assert.Equal(t, RestLevel, values[BarCount-3])

	// Two pending ticks are forgotten after a reset.
	a.Reset()
	for i := 0; i < CommitEvery-1; i++ {
		_, committed := a.Tick(loud)
		assert.False(t, committed)
	}
}

func TestHistoryFIFO(t *testing.T) {
	h := NewHistory()
	require.Equal(t, BarCount, h.Len())
	for _, v := range h.Values() {
		assert.Equal(t, RestLevel, v)
	}

	for i := 0; i < BarCount+3; i++ {
		h.Push(float64(i))
	}
	values := h.Values()
	require.Len(t, values, BarCount)
	assert.Equal(t, 3.0, values[0])
	assert.Equal(t, float64(BarCount+2), values[BarCount-1])

	h.Reset()
	values = h.Values()
	require.Len(t, values, BarCount)
	assert.Equal(t, RestLevel, values[0])
	assert.Equal(t, RestLevel, values[BarCount-1])
}
