package audio

import (
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"

	"github.com/audiolibrelab/voicerec/internal/config"
)

// BackendType represents the type of capture backend
type BackendType string

const (
	BackendTypeFFmpeg BackendType = "ffmpeg"
	BackendTypeMock   BackendType = "mock"
	BackendTypeAuto   BackendType = "auto"
)

// NewDevice creates a capture device for the configured backend. Segments
// are encoded with enc.
func NewDevice(cfg *config.Config, enc EncoderFactory, logWriter io.Writer) (Device, error) {
	format := Format{SampleRate: cfg.Capture.SampleRate, Channels: cfg.Capture.Channels}

	switch determineBackend(cfg) {
	case BackendTypeMock:
		slog.Debug("Using synthetic capture backend")
		return NewSyntheticDevice(format, cfg.Timeslice(), enc), nil
	case BackendTypeFFmpeg:
		slog.Debug("Using ffmpeg capture backend", "input_format", cfg.Capture.InputFormat, "device", cfg.Capture.Device)
		return NewFFmpegDevice(cfg.Capture.InputFormat, cfg.Capture.Device, format, cfg.Timeslice(), enc, logWriter), nil
	default:
		return nil, fmt.Errorf("unsupported capture backend: %s", cfg.Capture.Backend)
	}
}

// determineBackend determines which backend to use based on configuration.
// "auto" resolves to ffmpeg; a missing binary then surfaces as
// ErrUnsupportedPlatform when the device is opened.
func determineBackend(cfg *config.Config) BackendType {
	switch strings.ToLower(cfg.Capture.Backend) {
	case "mock":
		return BackendTypeMock
	case "ffmpeg", "auto", "":
		return BackendTypeFFmpeg
	}
	return BackendType(cfg.Capture.Backend)
}

// GetAvailableBackends returns list of available backends on current system
func GetAvailableBackends() []BackendType {
	return availableBackends(exec.LookPath)
}

func availableBackends(lookPath func(string) (string, error)) []BackendType {
	backends := []BackendType{}
	if _, err := lookPath("ffmpeg"); err == nil {
		backends = append(backends, BackendTypeFFmpeg)
	}
	return append(backends, BackendTypeMock)
}

// NewSink creates the playback sink for the configured player. "auto"
// without any installed player falls back to a discarding sink so review
// still advances the play-head.
func NewSink(cfg *config.Config) (Sink, error) {
	return newSink(cfg, exec.LookPath)
}

func newSink(cfg *config.Config, lookPath func(string) (string, error)) (Sink, error) {
	switch cfg.Playback.Player {
	case "discard":
		return NewDiscardSink(), nil
	case "auto", "":
		sink, err := newCommandSink("auto", lookPath)
		if err != nil {
			slog.Warn("No audio player available, playback will be silent", "error", err)
			return NewDiscardSink(), nil
		}
		return sink, nil
	default:
		return newCommandSink(cfg.Playback.Player, lookPath)
	}
}
