package recorder

import (
	"log/slog"
	"time"

	"github.com/audiolibrelab/voicerec/internal/artifact"
	"github.com/audiolibrelab/voicerec/internal/audio"
	"github.com/audiolibrelab/voicerec/internal/clock"
	"github.com/audiolibrelab/voicerec/internal/codec"
)

// StopFunc receives every committed take.
type StopFunc func(data []byte, a *artifact.Artifact)

type options struct {
	clock           clock.Clock
	logger          *slog.Logger
	analyzerFactory audio.AnalyzerFactory
	codec           codec.Codec
	sink            audio.Sink
	store           *artifact.Store
	onStop          StopFunc
	onDelete        func()
	autoStart       bool
	filePrefix      string
	frameInterval   time.Duration
	playbackChunk   time.Duration
	playbackPoll    time.Duration
}

func defaultOptions() *options {
	return &options{
		clock:           clock.Real(),
		logger:          slog.Default(),
		analyzerFactory: audio.AnalyserFactory(audio.DefaultAnalyserOptions()),
		codec:           codec.PCM{},
		sink:            audio.NewDiscardSink(),
		autoStart:       true,
		filePrefix:      "voice",
		frameInterval:   time.Second / 60,
		playbackChunk:   20 * time.Millisecond,
		playbackPoll:    250 * time.Millisecond,
	}
}

// Option configures a Recorder.
type Option func(*options)

func WithClock(c clock.Clock) Option {
	return func(o *options) { o.clock = c }
}

func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

func WithAnalyzerFactory(f audio.AnalyzerFactory) Option {
	return func(o *options) { o.analyzerFactory = f }
}

// WithCodec sets the codec the device encodes with; it names and decodes
// artifacts.
func WithCodec(c codec.Codec) Option {
	return func(o *options) { o.codec = c }
}

func WithSink(s audio.Sink) Option {
	return func(o *options) { o.sink = s }
}

func WithStore(s *artifact.Store) Option {
	return func(o *options) { o.store = s }
}

// WithOnStop registers the callback fired once per committed take. It runs
// on the recorder's loop and must not call back into the Recorder.
func WithOnStop(f StopFunc) Option {
	return func(o *options) { o.onStop = f }
}

// WithOnDelete registers the callback fired once per delete. Same
// restrictions as WithOnStop.
func WithOnDelete(f func()) Option {
	return func(o *options) { o.onDelete = f }
}

func WithAutoStart(enabled bool) Option {
	return func(o *options) { o.autoStart = enabled }
}

func WithFilePrefix(prefix string) Option {
	return func(o *options) { o.filePrefix = prefix }
}

// WithFrameInterval sets the period of the level sampling loop.
func WithFrameInterval(d time.Duration) Option {
	return func(o *options) { o.frameInterval = d }
}

// WithPlaybackChunk sets how much audio each pump tick hands to the sink.
func WithPlaybackChunk(d time.Duration) Option {
	return func(o *options) { o.playbackChunk = d }
}

// WithPlaybackPoll sets how often the play-head position is sampled.
func WithPlaybackPoll(d time.Duration) Option {
	return func(o *options) { o.playbackPoll = d }
}
