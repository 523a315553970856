package recorder

import (
	"time"

	"github.com/audiolibrelab/voicerec/internal/audio"
	"github.com/audiolibrelab/voicerec/internal/clock"
)

// playbackSession replays one decoded artifact through a sink and taps it
// with a fresh analyser on every play start.
type playbackSession struct {
	clk         clock.Clock
	sink        audio.Sink
	newAnalyzer audio.AnalyzerFactory
	format      audio.Format
	chunk       time.Duration
	pollEvery   time.Duration
	frameEvery  time.Duration

	pcm []int16
	pos int // interleaved samples already handed to the sink

	out      audio.SinkStream
	signal   *audio.SampleRing
	analyzer audio.FrequencyAnalyzer
	frame    []byte

	poll     clock.Ticker
	sampling clock.Ticker
	pump     clock.Ticker
}

func newPlayback(o *options, pcm []int16, format audio.Format) *playbackSession {
	return &playbackSession{
		clk:         o.clock,
		sink:        o.sink,
		newAnalyzer: o.analyzerFactory,
		format:      format,
		chunk:       o.playbackChunk,
		pollEvery:   o.playbackPoll,
		frameEvery:  o.frameInterval,
		pcm:         pcm,
		signal:      audio.NewSampleRing(max(format.SampleRate, 1024)),
	}
}

func (p *playbackSession) playing() bool {
	return p.out != nil
}

// play starts from the current position, rewinding first if the previous
// run reached the end.
func (p *playbackSession) play() error {
	if p.pos >= len(p.pcm) {
		p.pos = 0
	}
	out, err := p.sink.Open(p.format)
	if err != nil {
		return err
	}
	p.out = out
	p.signal.Reset()
	p.analyzer = p.newAnalyzer(p.signal)
	p.frame = make([]byte, p.analyzer.BinCount())
	p.pump = p.clk.NewTicker(p.chunk)
	p.poll = p.clk.NewTicker(p.pollEvery)
	p.sampling = p.clk.NewTicker(p.frameEvery)
	return nil
}

// stop cancels the poll timer, the sampling loop and the pump, then closes
// the analyser and the sink. The position is kept.
func (p *playbackSession) stop() {
	if p.poll != nil {
		p.poll.Stop()
		p.poll = nil
	}
	if p.sampling != nil {
		p.sampling.Stop()
		p.sampling = nil
	}
	if p.pump != nil {
		p.pump.Stop()
		p.pump = nil
	}
	if p.analyzer != nil {
		p.analyzer.Close()
		p.analyzer = nil
	}
	if p.out != nil {
		p.out.Close()
		p.out = nil
	}
}

func (p *playbackSession) chunkSamples() int {
	n := int(int64(p.format.SampleRate) * int64(p.chunk) / int64(time.Second))
	return max(n, 1) * max(p.format.Channels, 1)
}

// feed pushes the next chunk to the sink. It reports true once the end of
// the recording has been written.
func (p *playbackSession) feed() (bool, error) {
	end := min(p.pos+p.chunkSamples(), len(p.pcm))
	chunk := p.pcm[p.pos:end]
	if err := p.out.Write(chunk); err != nil {
		return false, err
	}
	p.signal.WritePCM(chunk, p.format.Channels)
	p.pos = end
	return p.pos >= len(p.pcm), nil
}

// position is the play-head in whole seconds.
func (p *playbackSession) position() int {
	perSecond := p.format.FramesPerSecond()
	if perSecond <= 0 {
		return 0
	}
	return p.pos / perSecond
}

func (p *playbackSession) sample() []byte {
	if p.analyzer == nil {
		return nil
	}
	p.analyzer.ByteFrequencyData(p.frame)
	return p.frame
}

// rewind resets the play-head after a natural end.
func (p *playbackSession) rewind() {
	p.pos = 0
}
