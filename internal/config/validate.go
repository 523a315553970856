package config

import (
	"fmt"
	"strings"
)

var (
	validBackends = []string{"ffmpeg", "mock", "auto"}
	validCodecs   = []string{"pcm", "opus"}
	validPlayers  = []string{"auto", "aplay", "ffplay", "pacat", "discard"}
	// Opus only encodes at these rates.
	opusSampleRates = []int{8000, 12000, 16000, 24000, 48000}
)

func contains[T comparable](list []T, v T) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

// Validate checks a resolved configuration and returns the first problem
// found.
func Validate(c *Config) error {
	if c.Recorder.FilePrefix == "" {
		return fmt.Errorf("recorder.file_prefix cannot be empty")
	}
	if strings.ContainsAny(c.Recorder.FilePrefix, `/\`) {
		return fmt.Errorf("recorder.file_prefix must not contain path separators, got: %s", c.Recorder.FilePrefix)
	}

	if err := validateCapture(c.Capture); err != nil {
		return err
	}
	if err := validateAnalyzer(c.Analyzer); err != nil {
		return err
	}

	if !contains(validPlayers, c.Playback.Player) {
		return fmt.Errorf("playback.player must be one of %s, got: %s", strings.Join(validPlayers, ", "), c.Playback.Player)
	}
	if c.Playback.ChunkMS <= 0 {
		return fmt.Errorf("playback.chunk_ms must be > 0, got: %d", c.Playback.ChunkMS)
	}
	if c.Playback.PollMS <= 0 {
		return fmt.Errorf("playback.poll_ms must be > 0, got: %d", c.Playback.PollMS)
	}

	if c.Display.BarWidth <= 0 {
		return fmt.Errorf("display.bar_width must be > 0, got: %d", c.Display.BarWidth)
	}
	if c.Gap() < 0 {
		return fmt.Errorf("display.bar_gap must be >= 0, got: %d", c.Gap())
	}
	return nil
}

func validateCapture(c CaptureConfig) error {
	if !contains(validBackends, c.Backend) {
		return fmt.Errorf("capture.backend must be one of %s, got: %s", strings.Join(validBackends, ", "), c.Backend)
	}
	if c.Backend != "mock" {
		if c.InputFormat == "" {
			return fmt.Errorf("capture.input_format is required for the %s backend", c.Backend)
		}
		if strings.TrimSpace(c.Device) == "" {
			return fmt.Errorf("capture.device is required for the %s backend", c.Backend)
		}
	}
	if c.SampleRate < 8000 || c.SampleRate > 192000 {
		return fmt.Errorf("capture.sample_rate must be between 8000 and 192000, got: %d", c.SampleRate)
	}
	if c.Channels != 1 && c.Channels != 2 {
		return fmt.Errorf("capture.channels must be 1 or 2, got: %d", c.Channels)
	}
	if !contains(validCodecs, c.Codec) {
		return fmt.Errorf("capture.codec must be one of %s, got: %s", strings.Join(validCodecs, ", "), c.Codec)
	}
	if c.Codec == "opus" {
		if !contains(opusSampleRates, c.SampleRate) {
			return fmt.Errorf("capture.sample_rate %d is not supported by opus (use 8000, 12000, 16000, 24000 or 48000)", c.SampleRate)
		}
		if c.Bitrate < 6000 || c.Bitrate > 510000 {
			return fmt.Errorf("capture.bitrate must be between 6000 and 510000 for opus, got: %d", c.Bitrate)
		}
	}
	if c.TimesliceMS <= 0 {
		return fmt.Errorf("capture.timeslice_ms must be > 0, got: %d", c.TimesliceMS)
	}
	return nil
}

func validateAnalyzer(a AnalyzerConfig) error {
	if a.FFTSize < 32 || a.FFTSize > 32768 || a.FFTSize&(a.FFTSize-1) != 0 {
		return fmt.Errorf("analyzer.fft_size must be a power of two between 32 and 32768, got: %d", a.FFTSize)
	}
	if a.Smoothing != nil && (*a.Smoothing < 0 || *a.Smoothing >= 1) {
		return fmt.Errorf("analyzer.smoothing must be in [0, 1), got: %.2f", *a.Smoothing)
	}
	if a.MaxDB <= a.MinDB {
		return fmt.Errorf("analyzer.max_db (%.1f) must be greater than analyzer.min_db (%.1f)", a.MaxDB, a.MinDB)
	}
	if a.FrameRate < 1 || a.FrameRate > 240 {
		return fmt.Errorf("analyzer.frame_rate must be between 1 and 240, got: %d", a.FrameRate)
	}
	return nil
}
