package audio

import (
	"errors"
	"testing"

	"github.com/audiolibrelab/voicerec/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lookPathOnly(names ...string) func(string) (string, error) {
	return func(name string) (string, error) {
		for _, n := range names {
			if n == name {
				return "/usr/bin/" + name, nil
			}
		}
		return "", errors.New("executable file not found in $PATH")
	}
}

func TestDetermineBackend(t *testing.T) {
	tests := []struct {
		backend  string
		expected BackendType
	}{
		{"mock", BackendTypeMock},
		{"MOCK", BackendTypeMock},
		{"ffmpeg", BackendTypeFFmpeg},
		{"auto", BackendTypeFFmpeg},
		{"", BackendTypeFFmpeg},
	}
	for _, tt := range tests {
		cfg := config.Default()
		cfg.Capture.Backend = tt.backend
		assert.Equal(t, tt.expected, determineBackend(cfg), "backend %q", tt.backend)
	}
}

func TestNewDevice(t *testing.T) {
	enc := func(Format) (Encoder, error) { return &countingEncoder{}, nil }

	cfg := config.Default()
	cfg.Capture.Backend = "mock"
	dev, err := NewDevice(cfg, enc, nil)
	require.NoError(t, err)
	assert.IsType(t, &MockDevice{}, dev)

	cfg.Capture.Backend = "ffmpeg"
	cfg.Capture.Device = "hw:1"
	dev, err = NewDevice(cfg, enc, nil)
	require.NoError(t, err)
	ff, ok := dev.(*FFmpegDevice)
	require.True(t, ok)
	assert.Equal(t, "hw:1", ff.Input)
	assert.Equal(t, "pulse", ff.InputFormat)

	cfg.Capture.Backend = "portaudio"
	_, err = NewDevice(cfg, enc, nil)
	assert.Error(t, err)
}

func TestAvailableBackends(t *testing.T) {
	assert.Equal(t, []BackendType{BackendTypeFFmpeg, BackendTypeMock}, availableBackends(lookPathOnly("ffmpeg")))
	assert.Equal(t, []BackendType{BackendTypeMock}, availableBackends(lookPathOnly()))
}

func TestNewSink(t *testing.T) {
	cfg := config.Default()

	cfg.Playback.Player = "discard"
	sink, err := newSink(cfg, lookPathOnly())
	require.NoError(t, err)
	assert.IsType(t, &DiscardSink{}, sink)

	cfg.Playback.Player = "auto"
	sink, err = newSink(cfg, lookPathOnly("aplay", "pacat"))
	require.NoError(t, err)
	require.IsType(t, &CommandSink{}, sink)
	assert.Equal(t, "aplay", sink.(*CommandSink).Player)

	sink, err = newSink(cfg, lookPathOnly())
	require.NoError(t, err)
	assert.IsType(t, &DiscardSink{}, sink, "auto without players falls back to discard")

	cfg.Playback.Player = "pacat"
	sink, err = newSink(cfg, lookPathOnly())
	require.NoError(t, err)
	assert.Equal(t, "pacat", sink.(*CommandSink).Player)

	cfg.Playback.Player = "vlc"
	_, err = newSink(cfg, lookPathOnly("vlc"))
	assert.Error(t, err)
}
