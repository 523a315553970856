package audio

import (
	"context"
	"errors"
)

// Error kinds reported by capture and playback backends. Callers classify
// failures with errors.Is.
var (
	ErrUnsupportedPlatform = errors.New("audio capture is not supported on this platform")
	ErrPermissionDenied    = errors.New("microphone access was denied")
	ErrDeviceUnavailable   = errors.New("capture device is unavailable")
	ErrDeviceError         = errors.New("capture device rejected the request")
	ErrDecodeError         = errors.New("recording could not be decoded")
)

// Format describes interleaved signed 16-bit PCM.
type Format struct {
	SampleRate int `json:"sample_rate"`
	Channels   int `json:"channels"`
}

// DefaultFormat is 48 kHz mono.
var DefaultFormat = Format{SampleRate: 48000, Channels: 1}

// FramesPerSecond returns the number of interleaved samples per second.
func (f Format) FramesPerSecond() int {
	return f.SampleRate * f.Channels
}

// Device opens capture streams. Open blocks until the platform grants or
// refuses access.
type Device interface {
	Open(ctx context.Context) (Stream, error)
}

// Stream is one open capture session.
//
// Data delivers encoded increments in order. Stop flushes the last increment
// and Data is closed once everything has been delivered; a Data channel that
// closes without Stop means the device went away.
type Stream interface {
	Format() Format
	Data() <-chan []byte
	Signal() Signal
	Pause() error
	Resume() error
	Stop() error
}

// Signal exposes the most recent mono samples of a live or decoded stream,
// normalized to [-1, 1].
type Signal interface {
	// Latest copies the newest len(dst) samples into dst, oldest first, and
	// returns how many were available. Missing samples are left as zero at
	// the front of dst.
	Latest(dst []float64) int
}

// Encoder turns PCM into encoded bytes. Encode may buffer; Flush returns
// whatever is left and resets the encoder.
type Encoder interface {
	Encode(pcm []int16) ([]byte, error)
	Flush() ([]byte, error)
}

// EncoderFactory creates an encoder for a capture format.
type EncoderFactory func(Format) (Encoder, error)

// FrequencyAnalyzer produces magnitude frames from a Signal.
type FrequencyAnalyzer interface {
	BinCount() int
	// ByteFrequencyData fills dst with up to BinCount magnitudes in [0, 255].
	ByteFrequencyData(dst []byte)
	Close()
}

// AnalyzerFactory attaches a new FrequencyAnalyzer to a Signal.
type AnalyzerFactory func(Signal) FrequencyAnalyzer
