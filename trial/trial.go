// Package trial runs the trials of the experiment: fixation, video, typed
// response, with the eye tracker recording around the stimulus.
package trial

import (
	"errors"
	"time"

	"mcgurk/results"
)

// ErrTerminated is returned when the operator ends the session.
var ErrTerminated = errors.New("session terminated by user")

// State of a running trial.
type State int

const (
	Armed State = iota
	Fixation
	Playing
	Response
	Logged
	Aborted
	Terminated
)

func (s State) String() string {
	switch s {
	case Armed:
		return "armed"
	case Fixation:
		return "fixation"
	case Playing:
		return "playing"
	case Response:
		return "response"
	case Logged:
		return "logged"
	case Aborted:
		return "aborted"
	case Terminated:
		return "terminated"
	}
	return "unknown"
}

// Events passed to the Marker.
const (
	EventTrialStart     = "trial_start"
	EventFixationOnset  = "fixation_onset"
	EventFixationOffset = "fixation_offset"
	EventVideoOnset     = "video_onset"
	EventVideoOffset    = "video_offset"
	EventResponse       = "response"
)

// Result codes written with TRIAL_RESULT.
const (
	resultOK    = 0
	resultError = -1
)

// Screen is the participant display.
type Screen interface {
	Clear() error
	ShowFixation() error
	ShowMessage(text string) error
	ShowPrompt(prompt, text string) error
	OpenVideo(path string) (Video, error)
}

// Video is a stimulus being played.
type Video interface {
	// Start begins playback; the first frame is due immediately.
	Start() error
	// Present shows the frame due at elapsed since Start and reports
	// whether the video reached its end.
	Present(elapsed time.Duration) (done bool, err error)
	Close() error
}

// Clock is a monotonic time source.
type Clock interface {
	Now() time.Duration
	Sleep(d time.Duration)
}

// Recorder is the eye tracker as seen by a trial. *tracker.Session
// implements it.
type Recorder interface {
	Annotate(msg string)
	Command(cmd string) error
	Offline() error
	StartRecording() error
	StopRecording() error
	Recording() bool
	CheckLink() error
	DriftCheck(x, y int) (bool, error)
	Connected() bool
}

// Marker receives experiment events, e.g. to send TTL triggers.
type Marker interface {
	Mark(event string)
}

// Sink stores finished trials.
type Sink interface {
	Add(results.Row) error
}

type nopMarker struct{}

func (nopMarker) Mark(string) {}

// Config holds the timing and wording of a trial.
type Config struct {
	VideoDir string
	// FixationDuration is measured on the Clock, not in frames.
	FixationDuration time.Duration
	// SettleDelay follows the recording start and the fixation offset so
	// the tracker has samples around each event.
	SettleDelay time.Duration
	Prompt      string
	// DriftX and DriftY locate the drift-check target, i.e. the fixation
	// mark, in screen pixels.
	DriftX, DriftY int
	// ClearColor is reported to data viewers when a trial is cleared.
	ClearColor [3]uint8
}

func DefaultConfig() Config {
	return Config{
		VideoDir:         "videos",
		FixationDuration: time.Second,
		SettleDelay:      100 * time.Millisecond,
		Prompt:           "Which syllable did you hear?",
		DriftX:           960,
		DriftY:           643,
		ClearColor:       [3]uint8{116, 116, 116},
	}
}

// Markers passes every event to each of its markers.
type Markers []Marker

func (ms Markers) Mark(event string) {
	for _, m := range ms {
		m.Mark(event)
	}
}
