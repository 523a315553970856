package cmd

import (
	"testing"

	"github.com/audiolibrelab/voicerec/internal/service"
	"github.com/stretchr/testify/assert"
)

func TestRenderBars(t *testing.T) {
	assert.Equal(t, "", renderBars(nil))
	assert.Equal(t, " ▄█", renderBars([]float64{0, 0.5, 1}))
	// Out of range values clamp to the glyph range.
	assert.Equal(t, " █", renderBars([]float64{-1, 3}))
}

func TestRenderStatus(t *testing.T) {
	line := renderStatus(service.Status{State: "recording", ElapsedHuman: "1:05", Bars: []float64{1, 1}})
	assert.Contains(t, line, "REC")
	assert.Contains(t, line, "1:05")
	assert.Contains(t, line, "██")

	line = renderStatus(service.Status{State: "idle", ElapsedHuman: "0:00", Error: "permission denied"})
	assert.Contains(t, line, "IDLE")
	assert.Contains(t, line, "permission denied")

	assert.Contains(t, stateLabel(service.Status{State: "reviewing", Temporary: true}), "HOLD")
	assert.Contains(t, stateLabel(service.Status{State: "reviewing"}), "DONE")
	assert.Contains(t, stateLabel(service.Status{State: "playing"}), "PLAY")
	assert.Contains(t, stateLabel(service.Status{State: "paused"}), "PAUSE")
}

func TestBarCells(t *testing.T) {
	assert.Equal(t, 60, barCells(80))
	assert.Equal(t, 10, barCells(12))
}

func TestKeyCommandsAreBound(t *testing.T) {
	for key, name := range keyCommands {
		if name == "quit" {
			continue
		}
		_, ok := commandFuncs[name]
		assert.True(t, ok, "key %q maps to unbound command %s", key, name)
	}
}
