package audio

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFFmpegDevice_BuildArgs(t *testing.T) {
	d := NewFFmpegDevice("alsa", "hw:1", Format{SampleRate: 16000, Channels: 2}, time.Second, nil, nil)

	assert.Equal(t, []string{
		"-hide_banner", "-nostdin", "-loglevel", "error",
		"-f", "alsa", "-i", "hw:1",
		"-ac", "2", "-ar", "16000",
		"-f", "s16le", "pipe:1",
	}, d.buildArgs())
}

func TestFFmpegDevice_MissingBinary(t *testing.T) {
	d := NewFFmpegDevice("pulse", "default", DefaultFormat, time.Second, nil, nil)
	d.lookPath = lookPathOnly()

	_, err := d.Open(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsupportedPlatform)
}

func TestFFmpegDevice_NoEncoder(t *testing.T) {
	d := NewFFmpegDevice("pulse", "default", DefaultFormat, time.Second, nil, nil)
	d.lookPath = lookPathOnly("ffmpeg")

	_, err := d.Open(context.Background())
	assert.ErrorIs(t, err, ErrDeviceUnavailable)
}

func TestClassifyExit(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		stderr string
		kind   error
	}{
		{"pulse access denied", errors.New("exit status 1"), "default: Access denied\n", ErrPermissionDenied},
		{"alsa permission", errors.New("exit status 1"), "cannot open audio device hw:1 (Permission denied)\n", ErrPermissionDenied},
		{"missing device", errors.New("exit status 1"), "hw:9: No such file or directory\n", ErrDeviceUnavailable},
		{"silent exit", errors.New("exit status 1"), "", ErrDeviceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classifyExit(tt.err, tt.stderr)
			assert.ErrorIs(t, err, tt.kind)
		})
	}

	err := classifyExit(errors.New("exit status 1"), "")
	assert.Contains(t, err.Error(), "exit status 1")
}
