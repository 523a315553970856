package cmd

import (
	"bytes"
	"os"
	"testing"
	"time"

	"github.com/audiolibrelab/voicerec/internal/audio"
	"github.com/audiolibrelab/voicerec/internal/clock"
	"github.com/audiolibrelab/voicerec/internal/config"
	"github.com/audiolibrelab/voicerec/internal/recorder"
	"github.com/audiolibrelab/voicerec/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testFormat = audio.Format{SampleRate: 8000, Channels: 1}

func newKeyService(t *testing.T) (*service.VoiceRecService, *audio.MockDevice) {
	t.Helper()
	c := config.Default()
	c.Capture.Backend = "mock"
	c.Capture.SampleRate = testFormat.SampleRate
	c.Capture.Channels = testFormat.Channels
	c.Output.Directory = t.TempDir()

	dev := audio.NewMockDevice(testFormat)
	svc, err := service.New(c, "", nil,
		service.WithDevice(dev),
		service.WithSink(audio.NewDiscardSink()),
		service.WithRecorderOptions(
			recorder.WithClock(clock.NewFake(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))),
			recorder.WithAutoStart(false),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { svc.Close() })
	return svc, dev
}

func oneSecond() []byte {
	return bytes.Repeat([]byte{0x10, 0x00}, testFormat.SampleRate)
}

func TestHandleKey_StopForReviewThenResume(t *testing.T) {
	svc, dev := newKeyService(t)

	assert.False(t, handleKey(svc, 'n'))
	require.Equal(t, "recording", svc.Status(0).State)
	dev.Last().Emit(oneSecond())

	assert.False(t, handleKey(svc, 't'))
	st := svc.Status(0)
	assert.Equal(t, "reviewing", st.State)
	assert.True(t, st.Temporary)

	assert.False(t, handleKey(svc, 'p'))
	st = svc.Status(0)
	assert.Equal(t, "recording", st.State, "p resumes the held take")
	assert.False(t, st.Temporary)
	assert.Equal(t, 1, st.Segments)
	assert.Equal(t, 2, dev.Opens())
	assert.Empty(t, svc.GetLastError())

	dev.Last().Emit(oneSecond())
	assert.False(t, handleKey(svc, 's'))
	st = svc.Status(0)
	assert.Equal(t, "reviewing", st.State)
	require.NotNil(t, st.Artifact)
	assert.Equal(t, 2*len(oneSecond()), st.Artifact.Size)
}

func TestHandleKey_PauseAndQuit(t *testing.T) {
	svc, _ := newKeyService(t)

	assert.False(t, handleKey(svc, 'x'), "unbound keys are ignored")
	assert.Equal(t, "idle", svc.Status(0).State)

	handleKey(svc, 'n')
	handleKey(svc, 'p')
	assert.Equal(t, "paused", svc.Status(0).State)
	handleKey(svc, 'p')
	assert.Equal(t, "recording", svc.Status(0).State)

	assert.True(t, handleKey(svc, 'q'))
	assert.True(t, handleKey(svc, 3))
}

func TestFinishSession_CommitsHeldTake(t *testing.T) {
	svc, dev := newKeyService(t)
	handleKey(svc, 'n')
	dev.Last().Emit(oneSecond())
	handleKey(svc, 't')

	var out bytes.Buffer
	require.NoError(t, finishSession(svc, &out))
	assert.Contains(t, out.String(), "Saved voice-1704067200000.pcm")

	st := svc.Status(0)
	assert.Equal(t, "reviewing", st.State)
	assert.False(t, st.Temporary)
	entries, err := os.ReadDir(svc.GetConfig().Output.Directory)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.Contains(t, names, "voice-1704067200000.pcm")
}
