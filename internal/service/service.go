package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/audiolibrelab/voicerec/internal/artifact"
	"github.com/audiolibrelab/voicerec/internal/audio"
	"github.com/audiolibrelab/voicerec/internal/codec"
	"github.com/audiolibrelab/voicerec/internal/config"
	"github.com/audiolibrelab/voicerec/internal/level"
	"github.com/audiolibrelab/voicerec/internal/recorder"
	"gopkg.in/yaml.v3"
)

// Service represents the core VoiceRec service interface
type Service interface {
	// Recording operations
	Start() error
	Pause() error
	Resume() error
	TogglePause() error
	StopTemporary() error
	Stop() error
	Restart() error
	RecordAgain() error
	Delete() error

	// Review operations
	TogglePlay() error
	Artifact() (*artifact.Artifact, bool)
	ResolveArtifact(url string) (*artifact.Artifact, bool)

	// Information operations
	Status(width int) Status
	ListRecordings() ([]RecordingInfo, error)
	GetLastError() string

	// Configuration operations
	LoadProfile(profile string) error
	GetConfig() *config.Config

	Close() error
}

// Status is the renderable view of the recorder.
type Status struct {
	State        string        `json:"state"`
	Temporary    bool          `json:"temporary"`
	Elapsed      int           `json:"elapsed"`
	ElapsedHuman string        `json:"elapsed_human"`
	Bars         []float64     `json:"bars"`
	Error        string        `json:"error,omitempty"`
	LastError    string        `json:"last_error,omitempty"`
	Artifact     *ArtifactInfo `json:"artifact,omitempty"`
	Segments     int           `json:"segments"`
	Pending      int           `json:"pending"`
	Profile      string        `json:"profile"`
}

// ArtifactInfo describes the artifact currently under review
type ArtifactInfo struct {
	Name      string    `json:"name"`
	URL       string    `json:"url"`
	MIME      string    `json:"mime"`
	Size      int       `json:"size"`
	SizeHuman string    `json:"size_human"`
	Created   time.Time `json:"created"`
}

// RecordingInfo contains information about a recording persisted to the
// output directory
type RecordingInfo struct {
	Name         string    `json:"name"`
	Path         string    `json:"path"`
	WAVPath      string    `json:"wav_path,omitempty"`
	MIME         string    `json:"mime"`
	Codec        string    `json:"codec"`
	Size         int64     `json:"size"`
	SizeHuman    string    `json:"size_human"`
	Duration     float64   `json:"duration"`
	Created      time.Time `json:"created"`
	CreatedHuman string    `json:"created_human"`
}

// RecordingMeta is the sidecar stored next to every persisted recording.
type RecordingMeta struct {
	Name       string    `yaml:"name"`
	MIME       string    `yaml:"mime"`
	Codec      string    `yaml:"codec"`
	SampleRate int       `yaml:"sample_rate"`
	Channels   int       `yaml:"channels"`
	Bytes      int       `yaml:"bytes"`
	Duration   float64   `yaml:"duration_seconds"`
	WAV        string    `yaml:"wav,omitempty"`
	Profile    string    `yaml:"profile,omitempty"`
	Created    time.Time `yaml:"created"`
}

const metaExt = ".yaml"

// Option configures a VoiceRecService.
type Option func(*settings)

type settings struct {
	device       audio.Device
	sink         audio.Sink
	recorderOpts []recorder.Option
}

// WithDevice replaces the configured capture backend.
func WithDevice(d audio.Device) Option {
	return func(s *settings) { s.device = d }
}

// WithSink replaces the configured playback sink.
func WithSink(sink audio.Sink) Option {
	return func(s *settings) { s.sink = sink }
}

// WithRecorderOptions appends options to every recorder the service builds.
// They are applied last and override the configured values.
func WithRecorderOptions(opts ...recorder.Option) Option {
	return func(s *settings) { s.recorderOpts = append(s.recorderOpts, opts...) }
}

// VoiceRecService is the main service implementation
type VoiceRecService struct {
	configFile string
	logWriter  io.Writer
	settings   settings

	mu    sync.RWMutex
	cfg   *config.Config
	codec codec.Codec
	rec   *recorder.Recorder
	done  chan struct{}

	// Recordings directory access
	outputMutex sync.Mutex

	// Error tracking
	lastError      string
	lastErrorMutex sync.RWMutex
}

// New creates the service and starts the recorder loop.
func New(cfg *config.Config, configFile string, logWriter io.Writer, opts ...Option) (*VoiceRecService, error) {
	if logWriter == nil {
		logWriter = io.Discard
	}
	s := &VoiceRecService{
		configFile: configFile,
		logWriter:  logWriter,
	}
	for _, opt := range opts {
		opt(&s.settings)
	}
	if err := s.startRecorder(cfg); err != nil {
		return nil, err
	}
	return s, nil
}

// startRecorder builds the backends for cfg and runs a recorder over them.
func (s *VoiceRecService) startRecorder(cfg *config.Config) error {
	c, err := codec.Lookup(cfg.Capture.Codec, cfg.Capture.Bitrate)
	if err != nil {
		return fmt.Errorf("failed to select codec: %w", err)
	}

	device := s.settings.device
	if device == nil {
		device, err = audio.NewDevice(cfg, c.NewEncoder, s.logWriter)
		if err != nil {
			return fmt.Errorf("failed to create capture device: %w", err)
		}
	}

	sink := s.settings.sink
	if sink == nil {
		sink, err = audio.NewSink(cfg)
		if err != nil {
			return fmt.Errorf("failed to create playback sink: %w", err)
		}
	}

	opts := []recorder.Option{
		recorder.WithLogger(slog.Default().With("component", "recorder")),
		recorder.WithCodec(c),
		recorder.WithSink(sink),
		recorder.WithAnalyzerFactory(audio.AnalyserFactory(audio.AnalyserOptions{
			FFTSize:   cfg.Analyzer.FFTSize,
			Smoothing: cfg.SmoothingValue(),
			MinDB:     cfg.Analyzer.MinDB,
			MaxDB:     cfg.Analyzer.MaxDB,
		})),
		recorder.WithAutoStart(cfg.AutoStartEnabled()),
		recorder.WithFilePrefix(cfg.Recorder.FilePrefix),
		recorder.WithFrameInterval(cfg.FrameInterval()),
		recorder.WithPlaybackChunk(cfg.PlaybackChunk()),
		recorder.WithPlaybackPoll(cfg.PlaybackPoll()),
		recorder.WithOnStop(s.persist),
		recorder.WithOnDelete(func() { slog.Debug("Recording deleted") }),
	}
	opts = append(opts, s.settings.recorderOpts...)

	rec := recorder.New(device, opts...)
	done := make(chan struct{})

	s.mu.Lock()
	s.cfg = cfg
	s.codec = c
	s.rec = rec
	s.done = done
	s.mu.Unlock()

	go func() {
		defer close(done)
		if err := rec.Run(context.Background()); err != nil {
			slog.Error("Recorder loop exited", "error", err)
		}
	}()

	slog.Info("Recorder ready",
		"profile", cfg.Profile,
		"backend", cfg.Capture.Backend,
		"codec", c.Name(),
		"sample_rate", cfg.Capture.SampleRate,
		"auto_start", cfg.AutoStartEnabled())
	return nil
}

func (s *VoiceRecService) current() *recorder.Recorder {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rec
}

// run executes a recorder command and records its outcome.
func (s *VoiceRecService) run(op string, fn func(*recorder.Recorder) error) error {
	slog.Debug("Service command", "op", op)
	if err := fn(s.current()); err != nil {
		s.setLastError(fmt.Sprintf("Failed to %s: %v", op, err))
		return err
	}
	s.clearLastError()
	return nil
}

func (s *VoiceRecService) Start() error {
	return s.run("start recording", (*recorder.Recorder).Start)
}

func (s *VoiceRecService) Pause() error {
	return s.run("pause", (*recorder.Recorder).Pause)
}

func (s *VoiceRecService) Resume() error {
	return s.run("resume", (*recorder.Recorder).Resume)
}

func (s *VoiceRecService) TogglePause() error {
	return s.run("toggle pause", (*recorder.Recorder).TogglePause)
}

func (s *VoiceRecService) StopTemporary() error {
	return s.run("stop for review", (*recorder.Recorder).StopTemporary)
}

func (s *VoiceRecService) Stop() error {
	return s.run("stop recording", (*recorder.Recorder).Stop)
}

func (s *VoiceRecService) Restart() error {
	return s.run("restart recording", (*recorder.Recorder).Restart)
}

func (s *VoiceRecService) RecordAgain() error {
	return s.run("record again", (*recorder.Recorder).RecordAgain)
}

func (s *VoiceRecService) Delete() error {
	return s.run("delete recording", (*recorder.Recorder).Delete)
}

func (s *VoiceRecService) TogglePlay() error {
	return s.run("toggle playback", (*recorder.Recorder).TogglePlay)
}

// Artifact returns the artifact under review, if any.
func (s *VoiceRecService) Artifact() (*artifact.Artifact, bool) {
	snap := s.current().Snapshot()
	if snap.Artifact == nil {
		return nil, false
	}
	return snap.Artifact, true
}

// ResolveArtifact looks up an object URL handed out by the recorder. Revoked
// URLs no longer resolve.
func (s *VoiceRecService) ResolveArtifact(url string) (*artifact.Artifact, bool) {
	return s.current().Store().Resolve(url)
}

// Status renders the recorder for a display width in pixels. A non-positive
// width yields the full bar count.
func (s *VoiceRecService) Status(width int) Status {
	cfg := s.GetConfig()
	snap := s.current().Snapshot()

	n := level.BarCount
	if width > 0 {
		n = level.BarsForWidth(width, cfg.Display.BarWidth, cfg.Gap(), level.BarCount)
	}
	bars := level.Resample(snap.Levels, n)
	for i, v := range bars {
		bars[i] = level.DisplayClamp(v)
	}

	status := Status{
		State:        snap.State.String(),
		Temporary:    snap.Temporary,
		Elapsed:      snap.Elapsed,
		ElapsedHuman: level.FormatElapsed(snap.Elapsed),
		Bars:         bars,
		Error:        snap.Error,
		LastError:    s.GetLastError(),
		Segments:     snap.Segments,
		Pending:      snap.Pending,
		Profile:      cfg.Profile,
	}
	if a := snap.Artifact; a != nil {
		status.Artifact = &ArtifactInfo{
			Name:      a.Name,
			URL:       a.URL,
			MIME:      a.MIME,
			Size:      a.Size(),
			SizeHuman: formatBytes(int64(a.Size())),
			Created:   a.Created,
		}
	}
	return status
}

// LoadProfile loads a new configuration profile. The recorder is rebuilt, so
// a session in progress must be finished or deleted first.
func (s *VoiceRecService) LoadProfile(profile string) error {
	if state := s.current().Snapshot().State; state == recorder.Recording || state == recorder.Paused {
		return fmt.Errorf("cannot switch profile while %s", state)
	}

	newCfg, err := config.LoadWithProfile(s.configFile, profile)
	if err != nil {
		return fmt.Errorf("failed to load profile '%s': %w", profile, err)
	}

	s.stopRecorder()
	if err := s.startRecorder(newCfg); err != nil {
		s.setLastError(fmt.Sprintf("Failed to load profile '%s': %v", profile, err))
		return err
	}
	s.clearLastError()
	return nil
}

// GetConfig returns the current configuration
func (s *VoiceRecService) GetConfig() *config.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// Close stops the recorder, discarding any session in progress.
func (s *VoiceRecService) Close() error {
	s.stopRecorder()
	return nil
}

func (s *VoiceRecService) stopRecorder() {
	s.mu.RLock()
	rec, done := s.rec, s.done
	s.mu.RUnlock()
	rec.Close()
	<-done
}

// ===== RECORDINGS DIRECTORY =====

// persist writes a committed take to the output directory. It runs on the
// recorder loop and never calls back into the recorder.
func (s *VoiceRecService) persist(data []byte, a *artifact.Artifact) {
	s.mu.RLock()
	cfg, c := s.cfg, s.codec
	s.mu.RUnlock()

	if cfg.Output.Directory == "" {
		return
	}
	if err := s.saveRecording(cfg, c, data, a); err != nil {
		s.setLastError(fmt.Sprintf("Failed to save recording: %v", err))
	}
}

func (s *VoiceRecService) saveRecording(cfg *config.Config, c codec.Codec, data []byte, a *artifact.Artifact) error {
	s.outputMutex.Lock()
	defer s.outputMutex.Unlock()

	dir := cfg.Output.Directory
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	audioPath := filepath.Join(dir, a.Name)
	if err := os.WriteFile(audioPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write recording: %w", err)
	}

	format := audio.Format{SampleRate: cfg.Capture.SampleRate, Channels: cfg.Capture.Channels}
	meta := RecordingMeta{
		Name:       a.Name,
		MIME:       a.MIME,
		Codec:      c.Name(),
		SampleRate: format.SampleRate,
		Channels:   format.Channels,
		Bytes:      len(data),
		Profile:    cfg.Profile,
		Created:    a.Created,
	}

	samples, err := c.Decode(data, format)
	if err != nil {
		slog.Warn("Recording could not be decoded", "file", a.Name, "error", err)
	} else {
		meta.Duration = float64(len(samples)/format.Channels) / float64(format.SampleRate)
		if cfg.Output.ExportWAV {
			wavName := strings.TrimSuffix(a.Name, filepath.Ext(a.Name)) + ".wav"
			if err := writeWAVFile(filepath.Join(dir, wavName), samples, format); err != nil {
				return err
			}
			meta.WAV = wavName
		}
	}

	out, err := yaml.Marshal(&meta)
	if err != nil {
		return fmt.Errorf("failed to marshal recording metadata: %w", err)
	}
	if err := os.WriteFile(audioPath+metaExt, out, 0644); err != nil {
		return fmt.Errorf("failed to write recording metadata: %w", err)
	}

	slog.Info("Recording saved", "path", audioPath, "bytes", len(data), "duration", meta.Duration, "wav", meta.WAV)
	return nil
}

func writeWAVFile(path string, samples []int16, f audio.Format) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create wav file: %w", err)
	}
	if err := codec.WriteWAV(file, samples, f); err != nil {
		file.Close()
		return fmt.Errorf("failed to export wav: %w", err)
	}
	return file.Close()
}

// ListRecordings returns the persisted recordings, newest first
func (s *VoiceRecService) ListRecordings() ([]RecordingInfo, error) {
	s.outputMutex.Lock()
	defer s.outputMutex.Unlock()

	dir := s.GetConfig().Output.Directory
	if dir == "" {
		return nil, nil
	}

	files, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read recordings directory: %w", err)
	}

	var recordings []RecordingInfo
	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(file.Name(), metaExt) {
			continue
		}

		metaPath := filepath.Join(dir, file.Name())
		raw, err := os.ReadFile(metaPath)
		if err != nil {
			slog.Warn("Failed to read recording metadata", "file", file.Name(), "error", err)
			continue
		}
		var meta RecordingMeta
		if err := yaml.Unmarshal(raw, &meta); err != nil {
			slog.Warn("Failed to parse recording metadata", "file", file.Name(), "error", err)
			continue
		}

		audioPath := strings.TrimSuffix(metaPath, metaExt)
		info, err := os.Stat(audioPath)
		if err != nil {
			slog.Warn("Recording metadata without audio", "file", file.Name(), "error", err)
			continue
		}

		rec := RecordingInfo{
			Name:         meta.Name,
			Path:         audioPath,
			MIME:         meta.MIME,
			Codec:        meta.Codec,
			Size:         info.Size(),
			SizeHuman:    formatBytes(info.Size()),
			Duration:     meta.Duration,
			Created:      meta.Created,
			CreatedHuman: meta.Created.Local().Format("2006-01-02 15:04:05"),
		}
		if meta.WAV != "" {
			rec.WAVPath = filepath.Join(dir, meta.WAV)
		}
		recordings = append(recordings, rec)
	}

	sort.Slice(recordings, func(i, j int) bool {
		return recordings[i].Created.After(recordings[j].Created)
	})
	return recordings, nil
}

// GetLastError returns the last error message (thread-safe)
func (s *VoiceRecService) GetLastError() string {
	s.lastErrorMutex.RLock()
	defer s.lastErrorMutex.RUnlock()
	return s.lastError
}

// setLastError sets the last error message (thread-safe)
func (s *VoiceRecService) setLastError(err string) {
	s.lastErrorMutex.Lock()
	defer s.lastErrorMutex.Unlock()
	s.lastError = err

	slog.Error("Service error occurred", "error_message", err)
}

// clearLastError clears the last error message (thread-safe)
func (s *VoiceRecService) clearLastError() {
	s.lastErrorMutex.Lock()
	defer s.lastErrorMutex.Unlock()
	s.lastError = ""
}

// formatBytes formats bytes in human readable format
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
