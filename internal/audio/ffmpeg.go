package audio

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// FFmpegDevice captures from a system input through an ffmpeg subprocess that
// writes raw s16le PCM to stdout.
type FFmpegDevice struct {
	Binary      string // ffmpeg executable, default "ffmpeg"
	InputFormat string // ffmpeg -f value for the input, e.g. "pulse" or "alsa"
	Input       string // ffmpeg -i value, e.g. "default"
	Format      Format
	Timeslice   time.Duration // how often an encoded increment is emitted
	NewEncoder  EncoderFactory
	LogWriter   io.Writer

	lookPath func(string) (string, error)
}

// NewFFmpegDevice returns a device with sensible defaults filled in.
func NewFFmpegDevice(inputFormat, input string, format Format, timeslice time.Duration, enc EncoderFactory, logWriter io.Writer) *FFmpegDevice {
	if logWriter == nil {
		logWriter = io.Discard
	}
	return &FFmpegDevice{
		Binary:      "ffmpeg",
		InputFormat: inputFormat,
		Input:       input,
		Format:      format,
		Timeslice:   timeslice,
		NewEncoder:  enc,
		LogWriter:   logWriter,
		lookPath:    exec.LookPath,
	}
}

// buildArgs constructs the ffmpeg command line.
func (d *FFmpegDevice) buildArgs() []string {
	return []string{
		"-hide_banner",
		"-nostdin",
		"-loglevel", "error",
		"-f", d.InputFormat,
		"-i", d.Input,
		"-ac", fmt.Sprintf("%d", d.Format.Channels),
		"-ar", fmt.Sprintf("%d", d.Format.SampleRate),
		"-f", "s16le",
		"pipe:1",
	}
}

// Open starts ffmpeg and waits until the first samples arrive or the process
// exits, whichever comes first.
func (d *FFmpegDevice) Open(ctx context.Context) (Stream, error) {
	lookPath := d.lookPath
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	binary, err := lookPath(d.Binary)
	if err != nil {
		return nil, fmt.Errorf("%w: %s not found: %v", ErrUnsupportedPlatform, d.Binary, err)
	}
	if d.NewEncoder == nil {
		return nil, fmt.Errorf("%w: no encoder configured", ErrDeviceUnavailable)
	}
	enc, err := d.NewEncoder(d.Format)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}

	args := d.buildArgs()
	slog.Info("Starting ffmpeg capture", "command", binary+" "+strings.Join(args, " "))

	cmd := exec.Command(binary, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: failed to start ffmpeg: %v", ErrDeviceUnavailable, err)
	}

	timeslice := d.Timeslice
	if timeslice <= 0 {
		timeslice = time.Second
	}
	s := &ffmpegStream{
		cmd:       cmd,
		format:    d.Format,
		timeslice: timeslice,
		encoder:   enc,
		ring:      NewSampleRing(d.Format.SampleRate),
		data:      make(chan []byte, 32),
		started:   make(chan struct{}),
		readDone:  make(chan struct{}),
		errDone:   make(chan struct{}),
		exited:    make(chan error, 1),
		logWriter: d.LogWriter,
	}

	go s.readOutput(stderr)
	go s.readLoop(stdout)
	go s.wait()

	select {
	case <-s.started:
		slog.Debug("ffmpeg capture started", "input", d.Input, "format", d.InputFormat)
		return s, nil
	case err := <-s.exited:
		s.exited <- err
		return nil, classifyExit(err, s.stderrText())
	case <-ctx.Done():
		s.kill()
		return nil, ctx.Err()
	}
}

// classifyExit maps an early ffmpeg exit to an error kind.
func classifyExit(err error, stderr string) error {
	lower := strings.ToLower(stderr)
	if strings.Contains(lower, "permission denied") || strings.Contains(lower, "access denied") || strings.Contains(lower, "not permitted") {
		return fmt.Errorf("%w: %s", ErrPermissionDenied, strings.TrimSpace(stderr))
	}
	detail := strings.TrimSpace(stderr)
	if detail == "" && err != nil {
		detail = err.Error()
	}
	return fmt.Errorf("%w: %s", ErrDeviceUnavailable, detail)
}

type ffmpegStream struct {
	cmd       *exec.Cmd
	format    Format
	timeslice time.Duration
	encoder   Encoder
	ring      *SampleRing
	logWriter io.Writer

	data     chan []byte
	started  chan struct{}
	readDone chan struct{}
	errDone  chan struct{}
	exited   chan error

	mu        sync.Mutex
	paused    bool
	stopping  bool
	stderrBuf strings.Builder
}

func (s *ffmpegStream) Format() Format      { return s.format }
func (s *ffmpegStream) Data() <-chan []byte { return s.data }
func (s *ffmpegStream) Signal() Signal      { return s.ring }

// readLoop converts stdout PCM, feeds the signal ring and the encoder, and
// emits an increment every timeslice.
func (s *ffmpegStream) readLoop(stdout io.Reader) {
	defer close(s.data)

	block := make([]byte, s.format.FramesPerSecond()/50*2) // 20ms
	if len(block) == 0 {
		block = make([]byte, 1920)
	}
	pcm := make([]int16, len(block)/2)
	var pending []byte
	lastEmit := time.Now()
	startedOnce := sync.Once{}
	wasPaused := false

	flush := func() {
		tail, err := s.encoder.Flush()
		if err != nil {
			slog.Error("Encoder flush failed", "error", err)
		}
		pending = append(pending, tail...)
		if len(pending) > 0 {
			s.data <- pending
			pending = nil
		}
		lastEmit = time.Now()
	}

	for {
		n, err := io.ReadFull(stdout, block)
		if n > 0 {
			startedOnce.Do(func() { close(s.started) })

			s.mu.Lock()
			paused := s.paused
			s.mu.Unlock()

			switch {
			case paused && !wasPaused:
				flush()
			case !paused:
				samples := pcm[:n/2]
				for i := range samples {
					samples[i] = int16(binary.LittleEndian.Uint16(block[2*i:]))
				}
				s.ring.WritePCM(samples, s.format.Channels)
				out, encErr := s.encoder.Encode(samples)
				if encErr != nil {
					slog.Error("Encoder failed", "error", encErr)
				}
				pending = append(pending, out...)
				if time.Since(lastEmit) >= s.timeslice && len(pending) > 0 {
					s.data <- pending
					pending = nil
					lastEmit = time.Now()
				}
			}
			wasPaused = paused
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
				slog.Debug("ffmpeg stdout read ended", "error", err)
			}
			break
		}
	}

	// Let wait() reap the process before the final increment is delivered so
	// Stop never blocks on a full data channel.
	close(s.readDone)
	flush()
}

// readOutput buffers stderr for error classification.
func (s *ffmpegStream) readOutput(pipe io.Reader) {
	defer close(s.errDone)
	scanner := bufio.NewScanner(pipe)
	for scanner.Scan() {
		line := scanner.Text()
		s.mu.Lock()
		s.stderrBuf.WriteString(line + "\n")
		s.mu.Unlock()
		fmt.Fprintln(s.logWriter, line)
		slog.Debug("FFmpeg output", "stream", "stderr", "line", line)
	}
}

func (s *ffmpegStream) stderrText() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stderrBuf.String()
}

func (s *ffmpegStream) wait() {
	<-s.readDone
	<-s.errDone
	s.exited <- s.cmd.Wait()
}

// Pause stops encoding; samples read while paused are dropped.
func (s *ffmpegStream) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopping {
		return fmt.Errorf("%w: pause after stop", ErrDeviceError)
	}
	if s.paused {
		return fmt.Errorf("%w: already paused", ErrDeviceError)
	}
	s.paused = true
	return nil
}

// Resume restarts encoding into the same stream.
func (s *ffmpegStream) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopping {
		return fmt.Errorf("%w: resume after stop", ErrDeviceError)
	}
	if !s.paused {
		return fmt.Errorf("%w: not paused", ErrDeviceError)
	}
	s.paused = false
	return nil
}

// Stop interrupts ffmpeg and waits for it to exit.
func (s *ffmpegStream) Stop() error {
	s.mu.Lock()
	if s.stopping {
		s.mu.Unlock()
		return nil
	}
	s.stopping = true
	s.mu.Unlock()

	if s.cmd.Process != nil {
		slog.Debug("Sending SIGINT to FFmpeg process")
		if err := s.cmd.Process.Signal(os.Interrupt); err != nil {
			slog.Debug("Failed to send interrupt to FFmpeg, falling back to SIGKILL", "error", err)
			s.cmd.Process.Kill()
		}
	}

	select {
	case err := <-s.exited:
		if err != nil {
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) {
				// 255 is ffmpeg's exit code after an interrupt.
				if exitErr.ExitCode() == 255 || exitErr.ExitCode() == -1 {
					return nil
				}
			}
			return fmt.Errorf("%w: ffmpeg exited: %v", ErrDeviceError, err)
		}
		return nil
	case <-time.After(5 * time.Second):
		slog.Warn("FFmpeg did not exit within timeout, force killing")
		s.kill()
		return nil
	}
}

func (s *ffmpegStream) kill() {
	if s.cmd.Process != nil {
		s.cmd.Process.Kill()
	}
}
