package service

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/audiolibrelab/voicerec/internal/audio"
	"github.com/audiolibrelab/voicerec/internal/clock"
	"github.com/audiolibrelab/voicerec/internal/codec"
	"github.com/audiolibrelab/voicerec/internal/config"
	"github.com/audiolibrelab/voicerec/internal/recorder"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

var testFormat = audio.Format{SampleRate: 8000, Channels: 1}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Capture.Backend = "mock"
	cfg.Capture.SampleRate = testFormat.SampleRate
	cfg.Capture.Channels = testFormat.Channels
	cfg.Playback.Player = "discard"
	cfg.Output.Directory = t.TempDir()
	return cfg
}

func newTestService(t *testing.T, cfg *config.Config, configFile string) (*VoiceRecService, *audio.MockDevice) {
	t.Helper()
	dev := audio.NewMockDevice(testFormat)
	clk := clock.NewFake(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	svc, err := New(cfg, configFile, nil,
		WithDevice(dev),
		WithSink(audio.NewDiscardSink()),
		WithRecorderOptions(recorder.WithClock(clk), recorder.WithAutoStart(false)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { svc.Close() })
	return svc, dev
}

func oneSecond() []byte {
	return bytes.Repeat([]byte{0x10, 0x00}, testFormat.SampleRate)
}

func record(t *testing.T, svc *VoiceRecService, dev *audio.MockDevice) {
	t.Helper()
	require.NoError(t, svc.Start())
	dev.Last().Emit(oneSecond())
	require.NoError(t, svc.Stop())
}

func TestService_StopPersistsRecording(t *testing.T) {
	cfg := testConfig(t)
	cfg.Output.ExportWAV = true
	svc, dev := newTestService(t, cfg, "")

	record(t, svc, dev)

	a, ok := svc.Artifact()
	require.True(t, ok)
	assert.Equal(t, "voice-1704067200000.pcm", a.Name)
	assert.Equal(t, "audio/L16", a.MIME)

	dir := cfg.Output.Directory
	data, err := os.ReadFile(filepath.Join(dir, a.Name))
	require.NoError(t, err)
	assert.Equal(t, oneSecond(), data)

	raw, err := os.ReadFile(filepath.Join(dir, a.Name+".yaml"))
	require.NoError(t, err)
	var meta RecordingMeta
	require.NoError(t, yaml.Unmarshal(raw, &meta))
	assert.Equal(t, a.Name, meta.Name)
	assert.Equal(t, "pcm", meta.Codec)
	assert.Equal(t, len(data), meta.Bytes)
	assert.InDelta(t, 1.0, meta.Duration, 1e-9)
	assert.Equal(t, "voice-1704067200000.wav", meta.WAV)

	f, err := os.Open(filepath.Join(dir, meta.WAV))
	require.NoError(t, err)
	defer f.Close()
	samples, format, err := codec.ReadWAV(f)
	require.NoError(t, err)
	assert.Equal(t, testFormat, format)
	assert.Len(t, samples, testFormat.SampleRate)

	recordings, err := svc.ListRecordings()
	require.NoError(t, err)
	require.Len(t, recordings, 1)
	assert.Equal(t, a.Name, recordings[0].Name)
	assert.Equal(t, int64(len(data)), recordings[0].Size)
	assert.Equal(t, "15.6 KB", recordings[0].SizeHuman)
	assert.Equal(t, filepath.Join(dir, meta.WAV), recordings[0].WAVPath)
}

func TestService_NoOutputDirectory(t *testing.T) {
	cfg := testConfig(t)
	dir := cfg.Output.Directory
	cfg.Output.Directory = ""
	svc, dev := newTestService(t, cfg, "")

	record(t, svc, dev)

	_, ok := svc.Artifact()
	assert.True(t, ok)
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)

	recordings, err := svc.ListRecordings()
	require.NoError(t, err)
	assert.Empty(t, recordings)
}

func TestService_ListRecordingsNewestFirst(t *testing.T) {
	cfg := testConfig(t)
	dir := cfg.Output.Directory
	svc, _ := newTestService(t, cfg, "")

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, name := range []string{"old.pcm", "new.pcm", "mid.pcm"} {
		created := base.Add(time.Duration([]int{0, 2, 1}[i]) * time.Hour)
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte{0, 0}, 0644))
		raw, err := yaml.Marshal(&RecordingMeta{Name: name, Codec: "pcm", Created: created})
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(filepath.Join(dir, name+".yaml"), raw, 0644))
	}
	// Unparseable and orphaned sidecars are skipped.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.pcm.yaml"), []byte(":\n\t- ["), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "orphan.pcm.yaml"), []byte("name: orphan.pcm\n"), 0644))

	recordings, err := svc.ListRecordings()
	require.NoError(t, err)
	var names []string
	for _, r := range recordings {
		names = append(names, r.Name)
	}
	assert.Equal(t, []string{"new.pcm", "mid.pcm", "old.pcm"}, names)
}

func TestService_ErrorsBecomeLastError(t *testing.T) {
	svc, dev := newTestService(t, testConfig(t), "")

	dev.SetOpenError(audio.ErrPermissionDenied)
	err := svc.Start()
	require.ErrorIs(t, err, audio.ErrPermissionDenied)
	assert.Contains(t, svc.GetLastError(), "Failed to start recording")

	status := svc.Status(0)
	assert.Equal(t, "idle", status.State)
	assert.NotEmpty(t, status.Error)
	assert.Equal(t, svc.GetLastError(), status.LastError)

	dev.SetOpenError(nil)
	require.NoError(t, svc.Start())
	assert.Empty(t, svc.GetLastError())
	assert.Equal(t, "recording", svc.Status(0).State)
}

func TestService_Status(t *testing.T) {
	svc, dev := newTestService(t, testConfig(t), "")

	status := svc.Status(0)
	assert.Equal(t, "idle", status.State)
	assert.Equal(t, "0:00", status.ElapsedHuman)
	assert.Len(t, status.Bars, 40)
	assert.Nil(t, status.Artifact)

	// 3px bars with a 4px gap: 70px fits ten bars.
	status = svc.Status(70)
	assert.Len(t, status.Bars, 10)
	for _, b := range status.Bars {
		assert.GreaterOrEqual(t, b, 0.1)
		assert.LessOrEqual(t, b, 1.0)
	}

	require.NoError(t, svc.Start())
	dev.Last().Emit(oneSecond())
	require.NoError(t, svc.StopTemporary())

	status = svc.Status(0)
	assert.Equal(t, "reviewing", status.State)
	assert.True(t, status.Temporary)
	assert.Equal(t, 1, status.Pending)
	require.NotNil(t, status.Artifact)
	assert.Equal(t, len(oneSecond()), status.Artifact.Size)
	assert.True(t, strings.HasPrefix(status.Artifact.URL, "blob:voicerec/"))

	// A temporary stop reports nothing to the output directory.
	recordings, err := svc.ListRecordings()
	require.NoError(t, err)
	assert.Empty(t, recordings)

	require.NoError(t, svc.Delete())
	status = svc.Status(0)
	assert.Equal(t, "idle", status.State)
	assert.Nil(t, status.Artifact)
}

func TestService_LoadProfile(t *testing.T) {
	dir := t.TempDir()
	configFile := filepath.Join(dir, "voicerec.yaml")
	content := fmt.Sprintf(`active_config: default
configs:
  default:
    capture:
      backend: mock
      sample_rate: 8000
    playback:
      player: discard
    output:
      directory: %s
  memo:
    recorder:
      file_prefix: memo
`, dir)
	require.NoError(t, os.WriteFile(configFile, []byte(content), 0644))

	cfg, err := config.Load(configFile)
	require.NoError(t, err)
	svc, dev := newTestService(t, cfg, configFile)

	require.NoError(t, svc.Start())
	err = svc.LoadProfile("memo")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "while recording")
	assert.Equal(t, "default", svc.GetConfig().Profile)

	require.NoError(t, svc.Delete())
	require.NoError(t, svc.LoadProfile("memo"))
	assert.Equal(t, "memo", svc.GetConfig().Profile)
	assert.Equal(t, "memo", svc.Status(0).Profile)

	record(t, svc, dev)
	a, ok := svc.Artifact()
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(a.Name, "memo-"), a.Name)

	err = svc.LoadProfile("missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "'missing' not found")
	assert.Equal(t, "memo", svc.GetConfig().Profile)
}

func TestService_CommandsAfterClose(t *testing.T) {
	svc, _ := newTestService(t, testConfig(t), "")
	require.NoError(t, svc.Close())

	err := svc.Start()
	require.ErrorIs(t, err, recorder.ErrClosed)
	assert.Equal(t, "idle", svc.Status(0).State)
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		bytes    int64
		expected string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1024, "1.0 KB"},
		{16000, "15.6 KB"},
		{5 * 1024 * 1024, "5.0 MB"},
	}
	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, formatBytes(tt.bytes))
		})
	}
}
