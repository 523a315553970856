package audio

import (
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"sync"
)

// Sink opens playback outputs.
type Sink interface {
	Open(format Format) (SinkStream, error)
}

// SinkStream accepts interleaved PCM in real time.
type SinkStream interface {
	Write(pcm []int16) error
	Close() error
}

// Players in order of preference.
var players = []string{"ffplay", "aplay", "pacat"}

// CommandSink plays PCM by piping it into an external player.
type CommandSink struct {
	Player string

	lookPath func(string) (string, error)
}

// NewCommandSink returns a sink for player, or for the first installed
// player when player is "auto" or empty.
func NewCommandSink(player string) (*CommandSink, error) {
	return newCommandSink(player, exec.LookPath)
}

func newCommandSink(player string, lookPath func(string) (string, error)) (*CommandSink, error) {
	if player == "" || player == "auto" {
		found, err := findAudioPlayer(lookPath)
		if err != nil {
			return nil, err
		}
		player = found
	}
	if !isKnownPlayer(player) {
		return nil, fmt.Errorf("unsupported player: %s", player)
	}
	return &CommandSink{Player: player, lookPath: lookPath}, nil
}

func isKnownPlayer(name string) bool {
	for _, p := range players {
		if p == name {
			return true
		}
	}
	return false
}

func findAudioPlayer(lookPath func(string) (string, error)) (string, error) {
	for _, player := range players {
		if _, err := lookPath(player); err == nil {
			return player, nil
		}
	}
	return "", fmt.Errorf("no audio player found (tried: %s)", strings.Join(players, ", "))
}

// playerArgs returns the command line that reads raw s16le from stdin.
func playerArgs(player string, f Format) []string {
	rate := strconv.Itoa(f.SampleRate)
	channels := strconv.Itoa(f.Channels)
	switch player {
	case "ffplay":
		return []string{"-nodisp", "-autoexit", "-loglevel", "error", "-f", "s16le", "-ar", rate, "-ac", channels, "-i", "-"}
	case "aplay":
		return []string{"-q", "-t", "raw", "-f", "S16_LE", "-r", rate, "-c", channels, "-"}
	case "pacat":
		return []string{"--playback", "--raw", "--format=s16le", "--rate=" + rate, "--channels=" + channels}
	}
	return nil
}

func (s *CommandSink) Open(f Format) (SinkStream, error) {
	lookPath := s.lookPath
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	bin, err := lookPath(s.Player)
	if err != nil {
		return nil, fmt.Errorf("player %s not found: %w", s.Player, err)
	}
	cmd := exec.Command(bin, playerArgs(s.Player, f)...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdin pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", s.Player, err)
	}
	slog.Debug("Started playback", "player", s.Player, "rate", f.SampleRate, "channels", f.Channels)
	return &commandSinkStream{cmd: cmd, stdin: stdin, player: s.Player}, nil
}

type commandSinkStream struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	player string
	buf    []byte
	once   sync.Once
}

func (s *commandSinkStream) Write(pcm []int16) error {
	if cap(s.buf) < 2*len(pcm) {
		s.buf = make([]byte, 2*len(pcm))
	}
	b := s.buf[:2*len(pcm)]
	for i, v := range pcm {
		binary.LittleEndian.PutUint16(b[2*i:], uint16(v))
	}
	if _, err := s.stdin.Write(b); err != nil {
		return fmt.Errorf("playback failed with %s: %w", s.player, err)
	}
	return nil
}

// Close stops the player immediately; queued audio is dropped.
func (s *commandSinkStream) Close() error {
	s.once.Do(func() {
		s.stdin.Close()
		if s.cmd.Process != nil {
			s.cmd.Process.Kill()
		}
		s.cmd.Wait()
		slog.Debug("Stopped playback", "player", s.player)
	})
	return nil
}

// DiscardSink accepts and drops audio. It records what it received so tests
// can inspect playback.
type DiscardSink struct {
	mu      sync.Mutex
	opens   int
	open    int
	samples int
	openErr error
}

func NewDiscardSink() *DiscardSink { return &DiscardSink{} }

func (s *DiscardSink) SetOpenError(err error) {
	s.mu.Lock()
	s.openErr = err
	s.mu.Unlock()
}

func (s *DiscardSink) Open(Format) (SinkStream, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.openErr != nil {
		return nil, s.openErr
	}
	s.opens++
	s.open++
	return &discardStream{sink: s}, nil
}

// Opens counts every successful Open.
func (s *DiscardSink) Opens() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opens
}

// OpenStreams counts streams not yet closed.
func (s *DiscardSink) OpenStreams() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

// Samples counts every sample written.
func (s *DiscardSink) Samples() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.samples
}

type discardStream struct {
	sink   *DiscardSink
	closed bool
}

func (d *discardStream) Write(pcm []int16) error {
	d.sink.mu.Lock()
	defer d.sink.mu.Unlock()
	if d.closed {
		return fmt.Errorf("write to closed sink")
	}
	d.sink.samples += len(pcm)
	return nil
}

func (d *discardStream) Close() error {
	d.sink.mu.Lock()
	defer d.sink.mu.Unlock()
	if !d.closed {
		d.closed = true
		d.sink.open--
	}
	return nil
}
