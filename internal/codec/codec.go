// Package codec encodes capture segments and decodes finished recordings.
//
// Every codec here is concatenation safe: the byte-wise concatenation of any
// sequence of whole segments decodes to the concatenation of their audio.
package codec

import (
	"fmt"

	"github.com/audiolibrelab/voicerec/internal/audio"
)

type Codec interface {
	Name() string
	MIME() string
	Ext() string
	NewEncoder(f audio.Format) (audio.Encoder, error)
	Decode(data []byte, f audio.Format) ([]int16, error)
}

// Lookup returns the codec registered under name. bitrate only applies to
// lossy codecs.
func Lookup(name string, bitrate int) (Codec, error) {
	switch name {
	case "pcm", "":
		return PCM{}, nil
	case "opus":
		return Opus{Bitrate: bitrate}, nil
	default:
		return nil, fmt.Errorf("unknown codec: %s", name)
	}
}
