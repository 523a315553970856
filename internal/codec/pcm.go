package codec

import (
	"encoding/binary"
	"fmt"

	"github.com/audiolibrelab/voicerec/internal/audio"
)

// PCM stores raw little-endian signed 16-bit samples.
type PCM struct{}

func (PCM) Name() string { return "pcm" }
func (PCM) MIME() string { return "audio/L16" }
func (PCM) Ext() string  { return ".pcm" }

func (PCM) NewEncoder(audio.Format) (audio.Encoder, error) {
	return pcmEncoder{}, nil
}

type pcmEncoder struct{}

func (pcmEncoder) Encode(pcm []int16) ([]byte, error) {
	out := make([]byte, 2*len(pcm))
	for i, v := range pcm {
		binary.LittleEndian.PutUint16(out[2*i:], uint16(v))
	}
	return out, nil
}

func (pcmEncoder) Flush() ([]byte, error) { return nil, nil }

func (PCM) Decode(data []byte, f audio.Format) ([]int16, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty recording", audio.ErrDecodeError)
	}
	frame := 2 * max(f.Channels, 1)
	if len(data)%frame != 0 {
		return nil, fmt.Errorf("%w: %d bytes is not a whole number of %d-byte frames", audio.ErrDecodeError, len(data), frame)
	}
	out := make([]int16, len(data)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(data[2*i:]))
	}
	return out, nil
}
