package recorder

import "errors"

// State is the lifecycle state of a Recorder.
type State int

const (
	Idle State = iota
	Recording
	Paused
	Reviewing
	Playing
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Recording:
		return "recording"
	case Paused:
		return "paused"
	case Reviewing:
		return "reviewing"
	case Playing:
		return "playing"
	default:
		return "unknown"
	}
}

// Outcome tells finalize what the end of a capture span means.
type Outcome int

const (
	// Temporary keeps the segments as a pending take under review.
	Temporary Outcome = iota
	// Final commits the take and reports it to onStop.
	Final
	// Superseded discards the span (restart, delete, close).
	Superseded
)

func (o Outcome) String() string {
	switch o {
	case Temporary:
		return "temporary"
	case Final:
		return "final"
	case Superseded:
		return "superseded"
	default:
		return "unknown"
	}
}

var (
	// ErrEmptyRecording is reported when a final stop captured no audio.
	ErrEmptyRecording = errors.New("recording is empty")
	// ErrClosed is returned by commands issued after the recorder stopped.
	ErrClosed = errors.New("recorder is closed")
)
