package codec

import (
	"fmt"
	"io"

	"github.com/audiolibrelab/voicerec/internal/audio"
	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WriteWAV writes samples as a 16-bit PCM WAV file.
func WriteWAV(w io.WriteSeeker, samples []int16, f audio.Format) error {
	enc := wav.NewEncoder(w, f.SampleRate, 16, f.Channels, 1)

	data := make([]int, len(samples))
	for i, s := range samples {
		data[i] = int(s)
	}
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: f.Channels, SampleRate: f.SampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("failed to write wav data: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to finalize wav: %w", err)
	}
	return nil
}

// ReadWAV decodes a 16-bit PCM WAV stream.
func ReadWAV(r io.ReadSeeker) ([]int16, audio.Format, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, audio.Format{}, fmt.Errorf("%w: not a wav file", audio.ErrDecodeError)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, audio.Format{}, fmt.Errorf("%w: %v", audio.ErrDecodeError, err)
	}
	if dec.BitDepth != 16 {
		return nil, audio.Format{}, fmt.Errorf("%w: unsupported bit depth %d", audio.ErrDecodeError, dec.BitDepth)
	}
	out := make([]int16, len(buf.Data))
	for i, v := range buf.Data {
		out[i] = int16(v)
	}
	return out, audio.Format{SampleRate: int(dec.SampleRate), Channels: int(dec.NumChans)}, nil
}
