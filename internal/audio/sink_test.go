package audio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlayerArgs(t *testing.T) {
	f := Format{SampleRate: 24000, Channels: 2}

	assert.Equal(t,
		[]string{"-nodisp", "-autoexit", "-loglevel", "error", "-f", "s16le", "-ar", "24000", "-ac", "2", "-i", "-"},
		playerArgs("ffplay", f))
	assert.Equal(t,
		[]string{"-q", "-t", "raw", "-f", "S16_LE", "-r", "24000", "-c", "2", "-"},
		playerArgs("aplay", f))
	assert.Equal(t,
		[]string{"--playback", "--raw", "--format=s16le", "--rate=24000", "--channels=2"},
		playerArgs("pacat", f))
	assert.Nil(t, playerArgs("vlc", f))
}

func TestFindAudioPlayer_Order(t *testing.T) {
	p, err := findAudioPlayer(lookPathOnly("pacat", "ffplay"))
	require.NoError(t, err)
	assert.Equal(t, "ffplay", p)

	_, err = findAudioPlayer(lookPathOnly())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ffplay, aplay, pacat")
}

func TestCommandSink_MissingBinary(t *testing.T) {
	sink, err := newCommandSink("aplay", lookPathOnly())
	require.NoError(t, err)

	_, err = sink.Open(DefaultFormat)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "player aplay not found")
}

func TestDiscardSink(t *testing.T) {
	sink := NewDiscardSink()

	a, err := sink.Open(DefaultFormat)
	require.NoError(t, err)
	require.NoError(t, a.Write(make([]int16, 960)))
	assert.Equal(t, 960, sink.Samples())
	assert.Equal(t, 1, sink.OpenStreams())

	require.NoError(t, a.Close())
	require.NoError(t, a.Close())
	assert.Equal(t, 0, sink.OpenStreams())
	assert.Equal(t, 1, sink.Opens())
	assert.Error(t, a.Write(make([]int16, 1)))

	sink.SetOpenError(assert.AnError)
	_, err = sink.Open(DefaultFormat)
	assert.ErrorIs(t, err, assert.AnError)
}
