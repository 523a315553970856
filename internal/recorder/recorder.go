// Package recorder implements the recording lifecycle: capture spans that
// survive pause, temporary stop and restart, review playback, and the level
// meter fed by whichever session is active.
//
// All state is owned by the goroutine running Run. Commands and queries are
// handed to it over a channel and executed one at a time.
package recorder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/audiolibrelab/voicerec/internal/artifact"
	"github.com/audiolibrelab/voicerec/internal/audio"
	"github.com/audiolibrelab/voicerec/internal/clock"
	"github.com/audiolibrelab/voicerec/internal/level"
)

// Snapshot is a read-only copy of the recorder state.
type Snapshot struct {
	State     State
	Temporary bool // the artifact under review is a pending take
	Elapsed   int  // seconds
	Levels    []float64
	Err       error
	Error     string
	Artifact  *artifact.Artifact
	Segments  int
	Pending   int
}

type command struct {
	fn    func() error
	reply chan error
}

type Recorder struct {
	device audio.Device
	opts   *options
	log    *slog.Logger

	cmds      chan command
	quit      chan struct{}
	stopped   chan struct{}
	started   atomic.Bool
	closeOnce sync.Once

	// Owned by the loop.
	ctx       context.Context
	state     State
	temporary bool
	elapsed   int
	recorded  int // duration of the take under review
	history   *level.History
	meter     *level.Analyzer
	capture   *captureSession
	playback  *playbackSession
	take      [][]byte
	pending   [][]byte
	format    audio.Format
	artifact  *artifact.Artifact
	lastErr   error
}

// New returns a recorder capturing from device. Nothing happens until Run.
func New(device audio.Device, opts ...Option) *Recorder {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	if o.store == nil {
		o.store = artifact.NewStore()
	}
	history := level.NewHistory()
	return &Recorder{
		device:  device,
		opts:    o,
		log:     o.logger,
		cmds:    make(chan command),
		quit:    make(chan struct{}),
		stopped: make(chan struct{}),
		ctx:     context.Background(),
		format:  audio.DefaultFormat,
		history: history,
		meter:   level.NewAnalyzer(history),
	}
}

// Store returns the artifact store backing the recorder's URLs.
func (r *Recorder) Store() *artifact.Store {
	return r.opts.store
}

// Run executes the event loop until ctx is cancelled or Close is called.
// With auto-start enabled the first capture is opened immediately.
func (r *Recorder) Run(ctx context.Context) error {
	if !r.started.CompareAndSwap(false, true) {
		return ErrClosed
	}
	defer close(r.stopped)
	r.ctx = ctx

	if r.opts.autoStart {
		r.start()
	}

	for {
		var (
			data                     <-chan []byte
			capTimer, capSampling    <-chan time.Time
			pump, poll, playSampling <-chan time.Time
		)
		if c := r.capture; c != nil {
			if !c.ended {
				data = c.stream.Data()
			}
			capTimer = tickC(c.timer)
			capSampling = tickC(c.sampling)
		}
		if p := r.playback; p != nil {
			pump = tickC(p.pump)
			poll = tickC(p.poll)
			playSampling = tickC(p.sampling)
		}

		select {
		case <-ctx.Done():
			r.shutdown()
			return ctx.Err()
		case <-r.quit:
			r.shutdown()
			return nil
		case c := <-r.cmds:
			c.reply <- c.fn()
		case b, ok := <-data:
			if ok {
				r.capture.append(b)
			} else {
				r.captureEnded()
			}
		case <-capTimer:
			r.elapsed = r.capture.elapsed()
		case <-capSampling:
			r.meter.Tick(r.capture.sample())
		case <-pump:
			r.pumpPlayback()
		case <-poll:
			r.elapsed = r.playback.position()
		case <-playSampling:
			r.meter.Tick(r.playback.sample())
		}
	}
}

func tickC(t clock.Ticker) <-chan time.Time {
	if t == nil {
		return nil
	}
	return t.C()
}

// Close stops the loop, tearing down any open session and releasing the
// current artifact URL.
func (r *Recorder) Close() error {
	r.closeOnce.Do(func() {
		close(r.quit)
		if r.started.CompareAndSwap(false, true) {
			close(r.stopped)
		}
	})
	<-r.stopped
	return nil
}

func (r *Recorder) exec(fn func() error) error {
	c := command{fn: fn, reply: make(chan error, 1)}
	select {
	case r.cmds <- c:
	case <-r.stopped:
		return ErrClosed
	}
	select {
	case err := <-c.reply:
		return err
	case <-r.stopped:
		return ErrClosed
	}
}

// Start opens a new capture. Valid from Idle.
func (r *Recorder) Start() error { return r.exec(r.start) }

// Pause pauses the capture, or the review playback when playing.
func (r *Recorder) Pause() error { return r.exec(r.pause) }

// Resume continues a paused capture in place, or reopens the device after a
// temporary stop and keeps appending to the pending take.
func (r *Recorder) Resume() error { return r.exec(r.resume) }

// StopTemporary ends the span for review without reporting it.
func (r *Recorder) StopTemporary() error { return r.exec(r.stopTemporary) }

// Stop commits the take and fires onStop.
func (r *Recorder) Stop() error { return r.exec(r.stop) }

// TogglePlay starts or pauses review playback.
func (r *Recorder) TogglePlay() error { return r.exec(r.togglePlay) }

// Delete discards everything and returns to Idle.
func (r *Recorder) Delete() error { return r.exec(r.delete) }

// Restart discards everything and opens a fresh capture.
func (r *Recorder) Restart() error { return r.exec(r.restart) }

// RecordAgain deletes the take under review and starts a new one.
func (r *Recorder) RecordAgain() error { return r.exec(r.recordAgain) }

// TogglePause pauses a running capture, resumes a paused one, or resumes
// recording after a temporary stop.
func (r *Recorder) TogglePause() error { return r.exec(r.togglePause) }

// Snapshot returns the current state.
func (r *Recorder) Snapshot() Snapshot {
	var s Snapshot
	if err := r.exec(func() error { s = r.snapshot(); return nil }); errors.Is(err, ErrClosed) {
		return r.snapshot()
	}
	return s
}

// Bars returns the level history resampled to m display bars.
func (r *Recorder) Bars(m int) []float64 {
	var bars []float64
	if err := r.exec(func() error { bars = level.Resample(r.history.Values(), m); return nil }); errors.Is(err, ErrClosed) {
		return level.Resample(r.history.Values(), m)
	}
	return bars
}

func (r *Recorder) snapshot() Snapshot {
	s := Snapshot{
		State:     r.state,
		Temporary: r.temporary,
		Elapsed:   r.elapsed,
		Levels:    r.history.Values(),
		Err:       r.lastErr,
		Artifact:  r.artifact,
		Segments:  len(r.take),
		Pending:   len(r.pending),
	}
	if r.capture != nil {
		s.Segments = len(r.capture.segments)
	}
	if r.lastErr != nil {
		s.Error = r.lastErr.Error()
	}
	return s
}

func (r *Recorder) fail(op string, err error) {
	r.lastErr = err
	r.log.Error("Recorder command failed", "op", op, "state", r.state, "error", err)
}

func (r *Recorder) resetLevels() {
	r.history.Reset()
	r.meter.Reset()
}

func (r *Recorder) start() error {
	if r.state != Idle {
		return nil
	}
	return r.openCapture(nil, 0)
}

// openCapture opens a capture span seeded with seed. On failure the state
// is left as it was.
func (r *Recorder) openCapture(seed [][]byte, elapsed int) error {
	c, err := openCapture(r.ctx, r.device, r.opts, seed, elapsed)
	if err != nil {
		r.fail("open", err)
		return err
	}
	r.capture = c
	r.format = c.stream.Format()
	r.state = Recording
	r.temporary = false
	r.elapsed = elapsed
	r.lastErr = nil
	r.resetLevels()
	r.log.Info("Recording started", "seeded_segments", len(seed), "elapsed", elapsed)
	return nil
}

func (r *Recorder) pause() error {
	switch r.state {
	case Recording:
		elapsed := r.capture.elapsed()
		if err := r.capture.pause(); err != nil {
			r.fail("pause", err)
			return err
		}
		r.elapsed = elapsed
		r.state = Paused
		r.resetLevels()
		r.log.Info("Recording paused", "elapsed", r.elapsed)
	case Playing:
		r.pausePlayback()
	}
	return nil
}

func (r *Recorder) resume() error {
	switch {
	case r.state == Paused:
		if err := r.capture.resumeInPlace(r.elapsed); err != nil {
			r.fail("resume", err)
			return err
		}
		r.state = Recording
		r.log.Info("Recording resumed", "elapsed", r.elapsed)
	case (r.state == Reviewing || r.state == Playing) && r.temporary:
		return r.resumeFromSnapshot()
	}
	return nil
}

// resumeFromSnapshot reopens the device with the pending take as the start
// of the new span. The pending artifact is only released once the device
// is open again.
func (r *Recorder) resumeFromSnapshot() error {
	if r.state == Playing {
		r.pausePlayback()
	}
	r.closePlayback()

	pending := r.pending
	if err := r.openCapture(pending, r.recorded); err != nil {
		r.state = Reviewing
		r.temporary = true
		return err
	}
	r.releaseArtifact()
	r.pending = nil
	r.take = nil
	return nil
}

func (r *Recorder) stopTemporary() error {
	if r.state != Recording && r.state != Paused {
		return nil
	}
	if r.state == Recording {
		r.elapsed = r.capture.elapsed()
	}
	segments, err := r.capture.finalize(Temporary)
	r.capture = nil
	r.resetLevels()

	// Nothing to review: end like an empty final stop.
	if len(concat(segments)) == 0 {
		r.pending = nil
		r.take = nil
		r.temporary = false
		r.releaseArtifact()
		r.state = Idle
		r.elapsed = 0
		r.recorded = 0
		r.fail("stop", ErrEmptyRecording)
		return ErrEmptyRecording
	}

	r.pending = append([][]byte(nil), segments...)
	r.take = segments
	r.recorded = r.elapsed
	r.releaseArtifact()
	r.artifact = r.opts.store.Create(r.fileName(), r.opts.codec.MIME(), concat(segments))
	r.state = Reviewing
	r.temporary = true
	r.log.Info("Recording stopped for review", "segments", len(segments), "bytes", r.artifact.Size())

	if err != nil {
		r.fail("stop", err)
	}
	return nil
}

func (r *Recorder) stop() error {
	switch {
	case r.state == Recording || r.state == Paused:
		if r.state == Recording {
			r.elapsed = r.capture.elapsed()
		}
		segments, stopErr := r.capture.finalize(Final)
		r.capture = nil
		r.resetLevels()
		if err := r.commit(segments); err != nil {
			return err
		}
		if stopErr != nil {
			r.fail("stop", stopErr)
		}
	case (r.state == Reviewing || r.state == Playing) && r.temporary:
		r.closePlayback()
		r.resetLevels()
		r.elapsed = r.recorded
		return r.commit(r.pending)
	}
	return nil
}

// commit builds the final artifact from segments and reports it.
func (r *Recorder) commit(segments [][]byte) error {
	data := concat(segments)
	r.pending = nil
	r.temporary = false
	r.releaseArtifact()

	if len(data) == 0 {
		r.take = nil
		r.state = Idle
		r.elapsed = 0
		r.fail("stop", ErrEmptyRecording)
		return ErrEmptyRecording
	}

	r.take = segments
	r.recorded = r.elapsed
	r.artifact = r.opts.store.Create(r.fileName(), r.opts.codec.MIME(), data)
	r.state = Reviewing
	r.log.Info("Recording finished", "segments", len(segments), "bytes", len(data), "url", r.artifact.URL)
	if r.opts.onStop != nil {
		r.opts.onStop(data, r.artifact)
	}
	return nil
}

// captureEnded handles a stream that closed without being stopped.
func (r *Recorder) captureEnded() {
	r.capture.ended = true
	if r.state == Recording {
		r.elapsed = r.capture.elapsed()
	}
	segments, _ := r.capture.finalize(Final)
	r.capture = nil
	r.resetLevels()
	ended := fmt.Errorf("%w: capture stream ended unexpectedly", audio.ErrDeviceError)
	if err := r.commit(segments); err != nil {
		ended = errors.Join(ended, err)
	}
	r.fail("capture", ended)
}

func (r *Recorder) togglePlay() error {
	switch r.state {
	case Reviewing:
		return r.startPlayback()
	case Playing:
		r.pausePlayback()
	}
	return nil
}

func (r *Recorder) startPlayback() error {
	if r.artifact == nil {
		return nil
	}
	if r.playback == nil {
		pcm, err := r.opts.codec.Decode(r.artifact.Bytes, r.format)
		if err != nil {
			r.fail("play", err)
			return err
		}
		r.playback = newPlayback(r.opts, pcm, r.format)
	}
	if err := r.playback.play(); err != nil {
		r.fail("play", err)
		return err
	}
	r.state = Playing
	r.elapsed = r.playback.position()
	r.lastErr = nil
	r.resetLevels()
	return nil
}

func (r *Recorder) pausePlayback() {
	r.playback.stop()
	r.state = Reviewing
	r.elapsed = r.playback.position()
	r.resetLevels()
}

func (r *Recorder) pumpPlayback() {
	done, err := r.playback.feed()
	if err != nil {
		r.pausePlayback()
		r.fail("play", err)
		return
	}
	if done {
		r.playback.stop()
		r.playback.rewind()
		r.state = Reviewing
		r.elapsed = 0
		r.resetLevels()
	}
}

// closePlayback tears down playback and forgets the decoded audio.
func (r *Recorder) closePlayback() {
	if r.playback != nil {
		r.playback.stop()
		r.playback = nil
	}
}

// releaseArtifact revokes the current URL once.
func (r *Recorder) releaseArtifact() {
	r.closePlayback()
	if r.artifact != nil {
		r.opts.store.Revoke(r.artifact.URL)
		r.artifact = nil
	}
}

// discard drops every session, segment and artifact.
func (r *Recorder) discard() {
	if r.capture != nil {
		r.capture.finalize(Superseded)
		r.capture = nil
	}
	r.closePlayback()
	r.releaseArtifact()
	r.pending = nil
	r.take = nil
	r.elapsed = 0
	r.recorded = 0
	r.resetLevels()
	r.state = Idle
	r.temporary = false
	r.lastErr = nil
}

func (r *Recorder) delete() error {
	r.discard()
	r.log.Info("Recording deleted")
	if r.opts.onDelete != nil {
		r.opts.onDelete()
	}
	return nil
}

func (r *Recorder) restart() error {
	r.discard()
	r.log.Info("Recording restarted")
	return r.openCapture(nil, 0)
}

func (r *Recorder) recordAgain() error {
	if r.state != Reviewing && r.state != Playing {
		return nil
	}
	r.delete()
	return r.start()
}

func (r *Recorder) togglePause() error {
	switch r.state {
	case Recording:
		return r.pause()
	case Paused:
		return r.resume()
	case Reviewing, Playing:
		if r.temporary {
			return r.resumeFromSnapshot()
		}
	}
	return nil
}

func (r *Recorder) shutdown() {
	r.discard()
	r.log.Debug("Recorder stopped")
}

func (r *Recorder) fileName() string {
	return fmt.Sprintf("%s-%d%s", r.opts.filePrefix, r.opts.clock.Now().UnixMilli(), r.opts.codec.Ext())
}
