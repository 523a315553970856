package codec

import (
	"encoding/binary"
	"fmt"

	"github.com/audiolibrelab/voicerec/internal/audio"
	"gopkg.in/hraban/opus.v2"
)

const (
	opusFrameMS = 20
	// maxPacket is the largest packet libopus produces for one frame.
	maxPacket = 4000
)

// Opus stores 20ms Opus packets, each prefixed with its length as a
// big-endian uint16.
type Opus struct {
	Bitrate int
}

func (Opus) Name() string { return "opus" }
func (Opus) MIME() string { return "application/x-opus-packets" }
func (Opus) Ext() string  { return ".opx" }

func frameSamples(f audio.Format) int {
	return f.SampleRate * opusFrameMS / 1000 * f.Channels
}

func (o Opus) NewEncoder(f audio.Format) (audio.Encoder, error) {
	enc, err := opus.NewEncoder(f.SampleRate, f.Channels, opus.AppVoIP)
	if err != nil {
		return nil, fmt.Errorf("failed to create opus encoder: %w", err)
	}
	if o.Bitrate > 0 {
		if err := enc.SetBitrate(o.Bitrate); err != nil {
			return nil, fmt.Errorf("failed to set opus bitrate %d: %w", o.Bitrate, err)
		}
	}
	return &opusEncoder{
		enc:    enc,
		frame:  make([]int16, 0, frameSamples(f)),
		size:   frameSamples(f),
		packet: make([]byte, maxPacket),
	}, nil
}

type opusEncoder struct {
	enc    *opus.Encoder
	frame  []int16
	size   int
	packet []byte
}

func (e *opusEncoder) Encode(pcm []int16) ([]byte, error) {
	var out []byte
	for len(pcm) > 0 {
		n := min(e.size-len(e.frame), len(pcm))
		e.frame = append(e.frame, pcm[:n]...)
		pcm = pcm[n:]
		if len(e.frame) == e.size {
			var err error
			if out, err = e.encodeFrame(out); err != nil {
				return out, err
			}
		}
	}
	return out, nil
}

// Flush pads the partial frame with silence and encodes it.
func (e *opusEncoder) Flush() ([]byte, error) {
	if len(e.frame) == 0 {
		return nil, nil
	}
	for len(e.frame) < e.size {
		e.frame = append(e.frame, 0)
	}
	return e.encodeFrame(nil)
}

func (e *opusEncoder) encodeFrame(out []byte) ([]byte, error) {
	n, err := e.enc.Encode(e.frame, e.packet)
	e.frame = e.frame[:0]
	if err != nil {
		return out, fmt.Errorf("opus encode failed: %w", err)
	}
	var hdr [2]byte
	binary.BigEndian.PutUint16(hdr[:], uint16(n))
	out = append(out, hdr[:]...)
	return append(out, e.packet[:n]...), nil
}

func (Opus) Decode(data []byte, f audio.Format) ([]int16, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty recording", audio.ErrDecodeError)
	}
	dec, err := opus.NewDecoder(f.SampleRate, f.Channels)
	if err != nil {
		return nil, fmt.Errorf("failed to create opus decoder: %w", err)
	}

	// 120ms is the longest frame Opus allows.
	buf := make([]int16, f.SampleRate*120/1000*f.Channels)
	var out []int16
	for off := 0; off < len(data); {
		if len(data)-off < 2 {
			return nil, fmt.Errorf("%w: truncated packet header at byte %d", audio.ErrDecodeError, off)
		}
		size := int(binary.BigEndian.Uint16(data[off:]))
		off += 2
		if size == 0 || len(data)-off < size {
			return nil, fmt.Errorf("%w: truncated packet at byte %d", audio.ErrDecodeError, off)
		}
		n, err := dec.Decode(data[off:off+size], buf)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", audio.ErrDecodeError, err)
		}
		out = append(out, buf[:n*f.Channels]...)
		off += size
	}
	return out, nil
}
