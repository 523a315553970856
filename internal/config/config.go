package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// RootConfig is the on-disk layout: named profiles, one of them active.
type RootConfig struct {
	ActiveConfig string             `mapstructure:"active_config" yaml:"active_config"`
	Configs      map[string]*Config `mapstructure:"configs" yaml:"configs"`
}

type Config struct {
	Recorder RecorderConfig `mapstructure:"recorder" yaml:"recorder"`
	Capture  CaptureConfig  `mapstructure:"capture" yaml:"capture"`
	Analyzer AnalyzerConfig `mapstructure:"analyzer" yaml:"analyzer"`
	Playback PlaybackConfig `mapstructure:"playback" yaml:"playback"`
	Display  DisplayConfig  `mapstructure:"display" yaml:"display"`
	Output   OutputConfig   `mapstructure:"output" yaml:"output"`

	// Profile is the name of the resolved profile, empty for built-in defaults.
	Profile string `mapstructure:"-" yaml:"-"`
}

type RecorderConfig struct {
	AutoStart  *bool  `mapstructure:"auto_start" yaml:"auto_start"`
	FilePrefix string `mapstructure:"file_prefix" yaml:"file_prefix"`
}

type CaptureConfig struct {
	Backend     string `mapstructure:"backend" yaml:"backend"`           // "ffmpeg", "mock", "auto"
	InputFormat string `mapstructure:"input_format" yaml:"input_format"` // ffmpeg -f, e.g. "pulse", "alsa"
	Device      string `mapstructure:"device" yaml:"device"`
	SampleRate  int    `mapstructure:"sample_rate" yaml:"sample_rate"`
	Channels    int    `mapstructure:"channels" yaml:"channels"`
	Codec       string `mapstructure:"codec" yaml:"codec"` // "pcm", "opus"
	TimesliceMS int    `mapstructure:"timeslice_ms" yaml:"timeslice_ms"`
	Bitrate     int    `mapstructure:"bitrate" yaml:"bitrate"`
}

type AnalyzerConfig struct {
	FFTSize   int      `mapstructure:"fft_size" yaml:"fft_size"`
	Smoothing *float64 `mapstructure:"smoothing" yaml:"smoothing"`
	MinDB     float64  `mapstructure:"min_db" yaml:"min_db"`
	MaxDB     float64  `mapstructure:"max_db" yaml:"max_db"`
	FrameRate int      `mapstructure:"frame_rate" yaml:"frame_rate"`
}

type PlaybackConfig struct {
	Player  string `mapstructure:"player" yaml:"player"` // "auto", "aplay", "ffplay", "pacat", "discard"
	ChunkMS int    `mapstructure:"chunk_ms" yaml:"chunk_ms"`
	PollMS  int    `mapstructure:"poll_ms" yaml:"poll_ms"`
}

type DisplayConfig struct {
	BarWidth int  `mapstructure:"bar_width" yaml:"bar_width"`
	BarGap   *int `mapstructure:"bar_gap" yaml:"bar_gap"`
}

type OutputConfig struct {
	Directory string `mapstructure:"directory" yaml:"directory"`
	ExportWAV bool   `mapstructure:"export_wav" yaml:"export_wav"`
}

func boolPtr(b bool) *bool        { return &b }
func intPtr(i int) *int           { return &i }
func floatPtr(f float64) *float64 { return &f }

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Recorder: RecorderConfig{
			AutoStart:  boolPtr(true),
			FilePrefix: "voice",
		},
		Capture: CaptureConfig{
			Backend:     "auto",
			InputFormat: "pulse",
			Device:      "default",
			SampleRate:  48000,
			Channels:    1,
			Codec:       "pcm",
			TimesliceMS: 1000,
			Bitrate:     32000,
		},
		Analyzer: AnalyzerConfig{
			FFTSize:   512,
			Smoothing: floatPtr(0.6),
			MinDB:     -100,
			MaxDB:     -30,
			FrameRate: 60,
		},
		Playback: PlaybackConfig{
			Player:  "auto",
			ChunkMS: 20,
			PollMS:  250,
		},
		Display: DisplayConfig{
			BarWidth: 3,
			BarGap:   intPtr(4),
		},
		Output: OutputConfig{
			Directory: filepath.Join(os.Getenv("HOME"), "Audio", "VoiceRec"),
		},
	}
}

// DefaultPath returns $HOME/.config/voicerec.yaml.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "voicerec.yaml"
	}
	return filepath.Join(home, ".config", "voicerec.yaml")
}

// Load resolves the active profile of configFile. A missing file yields the
// built-in defaults.
func Load(configFile string) (*Config, error) {
	return LoadWithProfile(configFile, "")
}

// LoadWithProfile resolves profile (or the file's active_config, or
// "default") over the file's default profile and the built-in defaults.
func LoadWithProfile(configFile, profile string) (*Config, error) {
	if configFile == "" {
		return nil, fmt.Errorf("no config file specified, use --config flag")
	}

	if _, err := os.Stat(configFile); errors.Is(err, os.ErrNotExist) {
		if profile != "" && profile != "default" {
			return nil, fmt.Errorf("configuration profile '%s' not found: %s does not exist", profile, configFile)
		}
		cfg := Default()
		cfg.Output.Directory = expandPath(cfg.Output.Directory)
		return cfg, nil
	}

	rootConfig, err := ReadRootConfig(configFile)
	if err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	configName := profile
	if configName == "" {
		configName = rootConfig.ActiveConfig
	}
	if configName == "" {
		configName = "default"
	}

	selected, exists := rootConfig.Configs[configName]
	if !exists {
		if configName != "default" || len(rootConfig.Configs) > 0 {
			return nil, fmt.Errorf("configuration profile '%s' not found", configName)
		}
		selected = &Config{}
	}

	resolved := Default()
	if configName != "default" {
		if base, ok := rootConfig.Configs["default"]; ok {
			resolved = mergeConfigs(resolved, base)
		}
	}
	resolved = mergeConfigs(resolved, selected)
	resolved.Profile = configName
	resolved.Output.Directory = expandPath(resolved.Output.Directory)

	if err := Validate(resolved); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return resolved, nil
}

// ReadRootConfig reads configFile with a private viper instance. Values can
// be overridden with VOICEREC_* environment variables.
func ReadRootConfig(configFile string) (*RootConfig, error) {
	v := viper.New()
	v.SetConfigFile(configFile)
	v.SetEnvPrefix("VOICEREC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
	}

	var rootConfig RootConfig
	if err := v.Unmarshal(&rootConfig); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	for name, c := range rootConfig.Configs {
		if c == nil {
			return nil, fmt.Errorf("config '%s' is empty", name)
		}
	}
	return &rootConfig, nil
}

// UpdateActiveConfig updates the active_config field in the config file
func UpdateActiveConfig(configFile, newActiveConfig string) error {
	if configFile == "" {
		return fmt.Errorf("no config file specified")
	}

	v := viper.New()
	v.SetConfigFile(configFile)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("error reading config file %s: %w", configFile, err)
	}
	if !v.IsSet("configs." + newActiveConfig) {
		return fmt.Errorf("configuration profile '%s' not found", newActiveConfig)
	}
	v.Set("active_config", newActiveConfig)
	if err := v.WriteConfig(); err != nil {
		return fmt.Errorf("error writing config file %s: %w", configFile, err)
	}
	return nil
}

// mergeConfigs overlays every non-zero value of profile onto a copy of base.
func mergeConfigs(base, profile *Config) *Config {
	result := *base
	if profile == nil {
		return &result
	}

	if profile.Recorder.AutoStart != nil {
		result.Recorder.AutoStart = profile.Recorder.AutoStart
	}
	if profile.Recorder.FilePrefix != "" {
		result.Recorder.FilePrefix = profile.Recorder.FilePrefix
	}

	p := profile.Capture
	if p.Backend != "" {
		result.Capture.Backend = p.Backend
	}
	if p.InputFormat != "" {
		result.Capture.InputFormat = p.InputFormat
	}
	if p.Device != "" {
		result.Capture.Device = p.Device
	}
	if p.SampleRate != 0 {
		result.Capture.SampleRate = p.SampleRate
	}
	if p.Channels != 0 {
		result.Capture.Channels = p.Channels
	}
	if p.Codec != "" {
		result.Capture.Codec = p.Codec
	}
	if p.TimesliceMS != 0 {
		result.Capture.TimesliceMS = p.TimesliceMS
	}
	if p.Bitrate != 0 {
		result.Capture.Bitrate = p.Bitrate
	}

	a := profile.Analyzer
	if a.FFTSize != 0 {
		result.Analyzer.FFTSize = a.FFTSize
	}
	if a.Smoothing != nil {
		result.Analyzer.Smoothing = a.Smoothing
	}
	if a.MinDB != 0 {
		result.Analyzer.MinDB = a.MinDB
	}
	if a.MaxDB != 0 {
		result.Analyzer.MaxDB = a.MaxDB
	}
	if a.FrameRate != 0 {
		result.Analyzer.FrameRate = a.FrameRate
	}

	if profile.Playback.Player != "" {
		result.Playback.Player = profile.Playback.Player
	}
	if profile.Playback.ChunkMS != 0 {
		result.Playback.ChunkMS = profile.Playback.ChunkMS
	}
	if profile.Playback.PollMS != 0 {
		result.Playback.PollMS = profile.Playback.PollMS
	}

	if profile.Display.BarWidth != 0 {
		result.Display.BarWidth = profile.Display.BarWidth
	}
	if profile.Display.BarGap != nil {
		result.Display.BarGap = profile.Display.BarGap
	}

	if profile.Output.Directory != "" {
		result.Output.Directory = profile.Output.Directory
	}
	// export_wav is opt-in; a profile can only turn it on.
	if profile.Output.ExportWAV {
		result.Output.ExportWAV = true
	}

	return &result
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, path[2:])
	}
	return path
}

// AutoStartEnabled reports whether the recorder starts capturing on launch.
func (c *Config) AutoStartEnabled() bool {
	return c.Recorder.AutoStart == nil || *c.Recorder.AutoStart
}

// SmoothingValue returns the analyser time constant.
func (c *Config) SmoothingValue() float64 {
	if c.Analyzer.Smoothing == nil {
		return 0.6
	}
	return *c.Analyzer.Smoothing
}

// Gap returns the spacing between bars.
func (c *Config) Gap() int {
	if c.Display.BarGap == nil {
		return 4
	}
	return *c.Display.BarGap
}

func (c *Config) Timeslice() time.Duration {
	return time.Duration(c.Capture.TimesliceMS) * time.Millisecond
}

// FrameInterval is the period of the level sampling loop.
func (c *Config) FrameInterval() time.Duration {
	return time.Second / time.Duration(c.Analyzer.FrameRate)
}

func (c *Config) PlaybackChunk() time.Duration {
	return time.Duration(c.Playback.ChunkMS) * time.Millisecond
}

func (c *Config) PlaybackPoll() time.Duration {
	return time.Duration(c.Playback.PollMS) * time.Millisecond
}
