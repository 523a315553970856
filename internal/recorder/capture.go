package recorder

import (
	"context"
	"log/slog"
	"time"

	"github.com/audiolibrelab/voicerec/internal/audio"
	"github.com/audiolibrelab/voicerec/internal/clock"
)

// drainTimeout bounds how long finalize waits for a stopped stream to
// deliver its last increment.
const drainTimeout = 5 * time.Second

// captureSession owns one open stream, its analyser tap and the segment
// sequence of the current span.
type captureSession struct {
	clk           clock.Clock
	log           *slog.Logger
	newAnalyzer   audio.AnalyzerFactory
	frameInterval time.Duration

	stream   audio.Stream
	analyzer audio.FrequencyAnalyzer
	frame    []byte
	segments [][]byte

	timer    clock.Ticker
	sampling clock.Ticker
	start    time.Time
	paused   bool
	ended    bool
}

// openCapture opens dev and seeds the segment sequence with seed. elapsed
// is the frozen time the span continues from.
func openCapture(ctx context.Context, dev audio.Device, o *options, seed [][]byte, elapsed int) (*captureSession, error) {
	stream, err := dev.Open(ctx)
	if err != nil {
		return nil, err
	}
	c := &captureSession{
		clk:           o.clock,
		log:           o.logger,
		newAnalyzer:   o.analyzerFactory,
		frameInterval: o.frameInterval,
		stream:        stream,
		segments:      append([][]byte(nil), seed...),
	}
	c.attach(elapsed)
	return c, nil
}

// attach starts the elapsed timer and the sampling loop.
func (c *captureSession) attach(elapsed int) {
	c.start = c.clk.Now().Add(-time.Duration(elapsed) * time.Second)
	c.timer = c.clk.NewTicker(time.Second)
	c.analyzer = c.newAnalyzer(c.stream.Signal())
	c.frame = make([]byte, c.analyzer.BinCount())
	c.sampling = c.clk.NewTicker(c.frameInterval)
}

// detach cancels the timer, then the sampling loop, then closes the
// analyser.
func (c *captureSession) detach() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	if c.sampling != nil {
		c.sampling.Stop()
		c.sampling = nil
	}
	if c.analyzer != nil {
		c.analyzer.Close()
		c.analyzer = nil
	}
}

func (c *captureSession) elapsed() int {
	return int(c.clk.Now().Sub(c.start) / time.Second)
}

// sample reads one analyser frame.
func (c *captureSession) sample() []byte {
	if c.analyzer == nil {
		return nil
	}
	c.analyzer.ByteFrequencyData(c.frame)
	return c.frame
}

func (c *captureSession) pause() error {
	if err := c.stream.Pause(); err != nil {
		return err
	}
	c.detach()
	c.paused = true
	return nil
}

func (c *captureSession) resumeInPlace(elapsed int) error {
	if err := c.stream.Resume(); err != nil {
		return err
	}
	c.paused = false
	c.attach(elapsed)
	return nil
}

func (c *captureSession) append(b []byte) {
	if len(b) > 0 {
		c.segments = append(c.segments, b)
	}
}

// finalize tears the session down and returns the complete segment
// sequence. It is the last writer of the sequence.
func (c *captureSession) finalize(outcome Outcome) ([][]byte, error) {
	c.detach()

	stopErr := c.stream.Stop()
	if stopErr != nil {
		c.log.Warn("Capture device stop failed", "error", stopErr)
	}

	if !c.ended {
		deadline := time.NewTimer(drainTimeout)
		defer deadline.Stop()
	drain:
		for {
			select {
			case b, ok := <-c.stream.Data():
				if !ok {
					break drain
				}
				c.append(b)
			case <-deadline.C:
				c.log.Warn("Capture device did not close its stream in time")
				break drain
			}
		}
		c.ended = true
	}

	c.log.Debug("Capture finalized", "outcome", outcome, "segments", len(c.segments), "bytes", totalBytes(c.segments))
	return c.segments, stopErr
}

func totalBytes(segments [][]byte) int {
	n := 0
	for _, s := range segments {
		n += len(s)
	}
	return n
}

func concat(segments [][]byte) []byte {
	out := make([]byte, 0, totalBytes(segments))
	for _, s := range segments {
		out = append(out, s...)
	}
	return out
}
