package cmd

import (
	"fmt"
	"math"
	"strings"

	"github.com/audiolibrelab/voicerec/internal/service"
	"github.com/charmbracelet/lipgloss"
)

var (
	recStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#ef4444"))
	pauseStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#eab308"))
	reviewStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#22c55e"))
	playStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#00ff9f"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#6e7681"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#ef4444"))
)

var barGlyphs = []rune(" ▁▂▃▄▅▆▇█")

// statusReserve is the room the label, timer and padding take on the line.
const statusReserve = 20

const helpText = "[p] pause/resume  [t] stop for review  [s] finish  [space] play  [a] record again  [r] restart  [d] delete  [n] new  [q] quit"

// renderBars draws one glyph per bar value in [0, 1].
func renderBars(bars []float64) string {
	var b strings.Builder
	top := len(barGlyphs) - 1
	for _, v := range bars {
		i := int(math.Round(v * float64(top)))
		i = min(max(i, 0), top)
		b.WriteRune(barGlyphs[i])
	}
	return b.String()
}

func stateLabel(st service.Status) string {
	switch st.State {
	case "recording":
		return recStyle.Render("● REC ")
	case "paused":
		return pauseStyle.Render("‖ PAUSE")
	case "reviewing":
		if st.Temporary {
			return reviewStyle.Render("■ HOLD ")
		}
		return reviewStyle.Render("■ DONE ")
	case "playing":
		return playStyle.Render("▶ PLAY ")
	}
	return dimStyle.Render("○ IDLE ")
}

// renderStatus renders the single-line view of st.
func renderStatus(st service.Status) string {
	line := fmt.Sprintf("%s %5s  %s", stateLabel(st), st.ElapsedHuman, renderBars(st.Bars))
	if st.Error != "" {
		line += "  " + errorStyle.Render(st.Error)
	}
	return line
}

// barCells returns how many bars fit a terminal of cols columns.
func barCells(cols int) int {
	return max(cols-statusReserve, 10)
}
