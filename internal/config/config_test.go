package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.True(t, cfg.AutoStartEnabled())
	assert.Equal(t, "voice", cfg.Recorder.FilePrefix)
	assert.Equal(t, "auto", cfg.Capture.Backend)
	assert.Equal(t, 48000, cfg.Capture.SampleRate)
	assert.Equal(t, 1, cfg.Capture.Channels)
	assert.Equal(t, "pcm", cfg.Capture.Codec)
	assert.Equal(t, 512, cfg.Analyzer.FFTSize)
	assert.InDelta(t, 0.6, cfg.SmoothingValue(), 1e-9)
	assert.Equal(t, 250, cfg.Playback.PollMS)
	assert.Equal(t, 3, cfg.Display.BarWidth)
	assert.Equal(t, 4, cfg.Gap())
	require.NoError(t, Validate(cfg))
}

func TestDurations(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "1s", cfg.Timeslice().String())
	assert.Equal(t, "16.666666ms", cfg.FrameInterval().String())
	assert.Equal(t, "20ms", cfg.PlaybackChunk().String())
	assert.Equal(t, "250ms", cfg.PlaybackPoll().String())
}

func TestMergeConfigs_ProfileOverridesBase(t *testing.T) {
	base := Default()
	profile := &Config{
		Recorder: RecorderConfig{AutoStart: boolPtr(false)},
		Capture:  CaptureConfig{Codec: "opus", SampleRate: 24000},
		Analyzer: AnalyzerConfig{Smoothing: floatPtr(0)},
		Display:  DisplayConfig{BarGap: intPtr(0)},
		Output:   OutputConfig{Directory: "~/Audio/Studio", ExportWAV: true},
	}

	result := mergeConfigs(base, profile)

	assert.False(t, result.AutoStartEnabled())
	assert.Equal(t, "opus", result.Capture.Codec)
	assert.Equal(t, 24000, result.Capture.SampleRate)
	assert.Equal(t, 0.0, result.SmoothingValue(), "explicit zero smoothing is kept")
	assert.Equal(t, 0, result.Gap(), "explicit zero gap is kept")
	assert.Equal(t, "~/Audio/Studio", result.Output.Directory)
	assert.True(t, result.Output.ExportWAV)

	// Unset fields fall back to the base.
	assert.Equal(t, "voice", result.Recorder.FilePrefix)
	assert.Equal(t, "pulse", result.Capture.InputFormat)
	assert.Equal(t, 1, result.Capture.Channels)
	assert.Equal(t, 512, result.Analyzer.FFTSize)
	assert.Equal(t, 3, result.Display.BarWidth)

	// The base is not modified.
	assert.True(t, base.AutoStartEnabled())
	assert.Equal(t, "pcm", base.Capture.Codec)
}

func TestMergeConfigs_EmptyProfile(t *testing.T) {
	base := Default()
	result := mergeConfigs(base, &Config{})
	assert.Equal(t, base, result)

	result = mergeConfigs(base, nil)
	assert.Equal(t, base, result)
}

func TestExpandPath(t *testing.T) {
	homeDir, _ := os.UserHomeDir()

	tests := []struct {
		input    string
		expected string
	}{
		{"~/Audio/VoiceRec", filepath.Join(homeDir, "Audio", "VoiceRec")},
		{"/absolute/path", "/absolute/path"},
		{"relative/path", "relative/path"},
		{"~", "~"},
	}

	for _, test := range tests {
		assert.Equal(t, test.expected, expandPath(test.input), "expandPath(%q)", test.input)
	}
}

func TestLoadWithProfile_MissingFileUsesDefaults(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "absent.yaml")

	cfg, err := Load(missing)
	require.NoError(t, err)
	assert.Equal(t, "voice", cfg.Recorder.FilePrefix)
	assert.Equal(t, "", cfg.Profile)

	_, err = LoadWithProfile(missing, "studio")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "'studio' not found")
}

func TestLoadWithProfile_NoFile(t *testing.T) {
	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no config file specified")
}

const profilesYAML = `
active_config: studio

configs:
  default:
    recorder:
      file_prefix: take
    capture:
      backend: mock
      timeslice_ms: 500
    output:
      directory: ~/Audio/Takes

  studio:
    capture:
      codec: opus
      bitrate: 64000
    playback:
      player: discard

  broken:
    analyzer:
      fft_size: 500
`

func TestLoadWithProfile_ActiveProfileOverDefault(t *testing.T) {
	configFile := createTempConfig(t, profilesYAML)

	cfg, err := Load(configFile)
	require.NoError(t, err)

	homeDir, _ := os.UserHomeDir()
	assert.Equal(t, "studio", cfg.Profile)
	assert.Equal(t, "opus", cfg.Capture.Codec)
	assert.Equal(t, 64000, cfg.Capture.Bitrate)
	assert.Equal(t, "discard", cfg.Playback.Player)
	// Inherited from the default profile.
	assert.Equal(t, "take", cfg.Recorder.FilePrefix)
	assert.Equal(t, "mock", cfg.Capture.Backend)
	assert.Equal(t, 500, cfg.Capture.TimesliceMS)
	assert.Equal(t, filepath.Join(homeDir, "Audio", "Takes"), cfg.Output.Directory)
	// Inherited from built-in defaults.
	assert.Equal(t, 48000, cfg.Capture.SampleRate)
	assert.Equal(t, 250, cfg.Playback.PollMS)
}

func TestLoadWithProfile_ExplicitProfile(t *testing.T) {
	configFile := createTempConfig(t, profilesYAML)

	cfg, err := LoadWithProfile(configFile, "default")
	require.NoError(t, err)
	assert.Equal(t, "default", cfg.Profile)
	assert.Equal(t, "pcm", cfg.Capture.Codec)
	assert.Equal(t, "auto", cfg.Playback.Player)

	_, err = LoadWithProfile(configFile, "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "'nope' not found")
}

func TestLoadWithProfile_InvalidProfile(t *testing.T) {
	configFile := createTempConfig(t, profilesYAML)

	_, err := LoadWithProfile(configFile, "broken")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "analyzer.fft_size")
}

func TestLoadWithProfile_EnvironmentOverride(t *testing.T) {
	configFile := createTempConfig(t, profilesYAML)
	t.Setenv("VOICEREC_ACTIVE_CONFIG", "default")

	cfg, err := Load(configFile)
	require.NoError(t, err)
	assert.Equal(t, "default", cfg.Profile)
}

func TestUpdateActiveConfig(t *testing.T) {
	configFile := createTempConfig(t, profilesYAML)

	require.NoError(t, UpdateActiveConfig(configFile, "default"))
	root, err := ReadRootConfig(configFile)
	require.NoError(t, err)
	assert.Equal(t, "default", root.ActiveConfig)

	err = UpdateActiveConfig(configFile, "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")

	assert.Error(t, UpdateActiveConfig("", "default"))
}

// createTempConfig writes content to a yaml file removed with the test.
func createTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "voicerec-test.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}
