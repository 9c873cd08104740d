// Package tracker drives the eye tracker: it opens the link to the tracker
// host, manages the data file recorded on the host and sends the annotations
// that align gaze samples with experiment events.
package tracker

import "errors"

var (
	// ErrConnection is returned when the tracker host cannot be reached.
	ErrConnection = errors.New("tracker unreachable")
	// ErrDevice is returned when the tracker refuses a request.
	ErrDevice = errors.New("tracker error")
	// ErrLinkLost is returned once the link to the tracker host is down.
	ErrLinkLost = errors.New("tracker link lost")
	// ErrLogFile is returned for an invalid or already open data file.
	ErrLogFile = errors.New("tracker data file error")
)

// Link is a connection to a tracker host. Implementations are not safe for
// concurrent use.
type Link interface {
	// Version is the tracker generation reported by the host, 0 when
	// simulated.
	Version() int
	Command(cmd string) error
	// Message writes a timestamped message into the data file.
	Message(msg string) error
	OpenDataFile(name string) error
	CloseDataFile() error
	// ReceiveDataFile copies the data file src from the host to the local
	// path dst.
	ReceiveDataFile(src, dst string) error
	SetOfflineMode() error
	StartRecording() error
	StopRecording() error
	IsRecording() (bool, error)
	Connected() bool
	// DoTrackerSetup runs camera setup and calibration on the host.
	DoTrackerSetup() error
	// DoDriftCorrect checks the gaze position on a target at x, y. It
	// returns false when the operator escaped to camera setup.
	DoDriftCorrect(x, y int) (bool, error)
	Close() error
}
