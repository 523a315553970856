package audio

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"
)

// MockDevice is a scripted capture device. Tests drive its streams by hand
// with Emit and End; the synthetic variant generates a tone on its own.
type MockDevice struct {
	format Format

	mu        sync.Mutex
	openErr   error
	pauseErr  error
	resumeErr error
	stopErr   error
	stopTail  []byte
	streams   []*MockStream

	synthetic  bool
	timeslice  time.Duration
	toneHz     float64
	newEncoder EncoderFactory
}

// NewMockDevice returns a device whose streams only deliver what the caller
// emits.
func NewMockDevice(format Format) *MockDevice {
	return &MockDevice{format: format}
}

// NewSyntheticDevice returns a device that produces a slowly pulsing sine
// tone, encoded with enc and emitted every timeslice.
func NewSyntheticDevice(format Format, timeslice time.Duration, enc EncoderFactory) *MockDevice {
	if timeslice <= 0 {
		timeslice = time.Second
	}
	return &MockDevice{
		format:     format,
		synthetic:  true,
		timeslice:  timeslice,
		toneHz:     440,
		newEncoder: enc,
	}
}

func (d *MockDevice) SetOpenError(err error) {
	d.mu.Lock()
	d.openErr = err
	d.mu.Unlock()
}

func (d *MockDevice) SetPauseError(err error) {
	d.mu.Lock()
	d.pauseErr = err
	d.mu.Unlock()
}

func (d *MockDevice) SetResumeError(err error) {
	d.mu.Lock()
	d.resumeErr = err
	d.mu.Unlock()
}

func (d *MockDevice) SetStopError(err error) {
	d.mu.Lock()
	d.stopErr = err
	d.mu.Unlock()
}

// SetStopTail sets the increment delivered by Stop before the data channel
// closes, mirroring a recorder that flushes buffered audio on stop.
func (d *MockDevice) SetStopTail(b []byte) {
	d.mu.Lock()
	d.stopTail = b
	d.mu.Unlock()
}

// Opens reports how many streams were opened successfully.
func (d *MockDevice) Opens() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.streams)
}

// Last returns the most recently opened stream, or nil.
func (d *MockDevice) Last() *MockStream {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.streams) == 0 {
		return nil
	}
	return d.streams[len(d.streams)-1]
}

// OpenStreams counts streams that have not been stopped or ended.
func (d *MockDevice) OpenStreams() int {
	d.mu.Lock()
	streams := append([]*MockStream(nil), d.streams...)
	d.mu.Unlock()
	n := 0
	for _, s := range streams {
		if !s.Closed() {
			n++
		}
	}
	return n
}

func (d *MockDevice) Open(ctx context.Context) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.openErr != nil {
		return nil, d.openErr
	}

	s := &MockStream{
		device: d,
		format: d.format,
		ring:   NewSampleRing(4096),
		data:   make(chan []byte),
		done:   make(chan struct{}),
	}
	if d.synthetic {
		enc, err := d.newEncoder(d.format)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
		}
		s.stopReq = make(chan struct{})
		go s.generate(enc, d.timeslice, d.toneHz)
	}
	d.streams = append(d.streams, s)
	return s, nil
}

// MockStream is the stream handed out by MockDevice.
type MockStream struct {
	device *MockDevice
	format Format
	ring   *SampleRing
	data   chan []byte

	mu      sync.Mutex
	paused  bool
	stopped bool
	closed  bool
	pauses  int
	resumes int

	stopReq   chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

func (s *MockStream) Format() Format      { return s.format }
func (s *MockStream) Data() <-chan []byte { return s.data }
func (s *MockStream) Signal() Signal      { return s.ring }

// Emit delivers one encoded increment. It blocks until the consumer
// receives it.
func (s *MockStream) Emit(b []byte) {
	s.data <- b
}

// Feed writes samples into the signal tap.
func (s *MockStream) Feed(samples []float64) {
	s.ring.Write(samples)
}

// End closes the data channel without a Stop call, as a device that was
// unplugged would.
func (s *MockStream) End() {
	s.close()
}

func (s *MockStream) close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		close(s.data)
		close(s.done)
	})
}

func (s *MockStream) Pause() error {
	s.device.mu.Lock()
	err := s.device.pauseErr
	s.device.mu.Unlock()
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.paused = true
	s.pauses++
	s.mu.Unlock()
	return nil
}

func (s *MockStream) Resume() error {
	s.device.mu.Lock()
	err := s.device.resumeErr
	s.device.mu.Unlock()
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.paused = false
	s.resumes++
	s.mu.Unlock()
	return nil
}

// Stop delivers the configured tail, if any, and closes the data channel.
func (s *MockStream) Stop() error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	s.mu.Unlock()

	s.device.mu.Lock()
	tail := s.device.stopTail
	err := s.device.stopErr
	s.device.mu.Unlock()

	if s.stopReq != nil {
		close(s.stopReq)
		return err
	}
	go func() {
		if len(tail) > 0 {
			select {
			case s.data <- tail:
			case <-s.done:
				return
			}
		}
		s.close()
	}()
	return err
}

func (s *MockStream) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

func (s *MockStream) Stopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

// Closed reports whether the data channel has been closed.
func (s *MockStream) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *MockStream) Pauses() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pauses
}

func (s *MockStream) Resumes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resumes
}

// generate produces 20ms blocks of a pulsing tone in real time.
func (s *MockStream) generate(enc Encoder, timeslice time.Duration, hz float64) {
	defer s.close()

	const block = 20 * time.Millisecond
	frames := s.format.SampleRate * int(block/time.Millisecond) / 1000
	pcm := make([]int16, frames*s.format.Channels)
	ticker := time.NewTicker(block)
	defer ticker.Stop()

	var phase, t float64
	var pending []byte
	lastEmit := time.Now()
	step := 2 * math.Pi * hz / float64(s.format.SampleRate)

	for {
		select {
		case <-s.stopReq:
			tail, _ := enc.Flush()
			pending = append(pending, tail...)
			if len(pending) > 0 {
				s.data <- pending
			}
			return
		case <-ticker.C:
		}
		if s.Paused() {
			continue
		}
		for i := 0; i < frames; i++ {
			env := 0.5 + 0.5*math.Sin(2*math.Pi*0.5*t)
			v := int16(env * 0.6 * 32767 * math.Sin(phase))
			for c := 0; c < s.format.Channels; c++ {
				pcm[i*s.format.Channels+c] = v
			}
			phase += step
			t += 1 / float64(s.format.SampleRate)
		}
		s.ring.WritePCM(pcm, s.format.Channels)
		out, err := enc.Encode(pcm)
		if err != nil {
			continue
		}
		pending = append(pending, out...)
		if time.Since(lastEmit) >= timeslice && len(pending) > 0 {
			select {
			case s.data <- pending:
				pending = nil
				lastEmit = time.Now()
			case <-s.stopReq:
				tail, _ := enc.Flush()
				s.data <- append(pending, tail...)
				return
			}
		}
	}
}
