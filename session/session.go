// Package session derives and validates the identifiers of a testing session.
//
// The operator supplies a short name which becomes the device log name on the
// tracker host. The name plus the session start time is the session
// identifier used for the local results folder and the downloaded log.
package session

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// MaxNameLength is the longest log name the tracker host accepts.
const MaxNameLength = 8

// DefaultName is offered to the operator when no name was given.
const DefaultName = "TEST"

var (
	// ErrInvalidName is returned for names the tracker host would refuse.
	ErrInvalidName = errors.New("invalid session name")
	// ErrCancelled is returned when the operator cancels the name prompt.
	ErrCancelled = errors.New("session prompt cancelled")
)

// Normalize strips trailing whitespace and any file extension the operator
// typed, so "TEST.edf " becomes "TEST".
func Normalize(raw string) string {
	s := strings.TrimRight(raw, " \t\r\n")
	if i := strings.IndexByte(s, '.'); i >= 0 {
		s = s[:i]
	}
	return s
}

// ValidateName reports whether name may be used as a device log name:
// at most MaxNameLength characters from [A-Za-z0-9_].
func ValidateName(name string) error {
	for _, c := range name {
		if !isNameChar(c) {
			return fmt.Errorf("%w: %q contains %q, use only letters, digits and underscore", ErrInvalidName, name, c)
		}
	}
	if len(name) > MaxNameLength {
		return fmt.Errorf("%w: %q is longer than %d characters", ErrInvalidName, name, MaxNameLength)
	}
	return nil
}

func isNameChar(c rune) bool {
	return c == '_' ||
		(c >= 'a' && c <= 'z') ||
		(c >= 'A' && c <= 'Z') ||
		(c >= '0' && c <= '9')
}

// Identifier joins the session name with the start time, minute resolution.
func Identifier(name string, t time.Time) string {
	return name + t.Format("_2006_01_02_15_04")
}

// Layout locates every file a session produces.
type Layout struct {
	Name       string
	Identifier string
	ResultsDir string
	// Folder holds the downloaded device log and the results CSV.
	Folder string
}

// NewLayout builds the layout for a session started at t. An empty name falls
// back to DefaultName.
func NewLayout(resultsDir, name string, t time.Time) Layout {
	if name == "" {
		name = DefaultName
	}
	id := Identifier(name, t)
	return Layout{
		Name:       name,
		Identifier: id,
		ResultsDir: resultsDir,
		Folder:     filepath.Join(resultsDir, id),
	}
}

// Events is the trigger timing log.
func (l Layout) Events() string { return filepath.Join(l.Folder, l.Identifier+"_events.csv") }

// LocalLog is where the device log is downloaded to.
func (l Layout) LocalLog() string { return filepath.Join(l.Folder, l.Identifier+".EDF") }

// ResultsCSV is the results file written at the end of the session.
func (l Layout) ResultsCSV() string { return filepath.Join(l.Folder, l.Identifier+".csv") }

// Journal is the SQLite journal shared by all sessions in the results folder.
func (l Layout) Journal() string { return filepath.Join(l.ResultsDir, "journal.db") }

// LogFile is the diagnostic log of the run.
func (l Layout) LogFile() string { return filepath.Join(l.Folder, "run.log") }
