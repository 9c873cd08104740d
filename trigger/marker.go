package trigger

import (
	"time"

	"github.com/rs/zerolog"
)

// Lines maps experiment event names to the box lines pulsed for them.
type Lines map[string]string

// Pulser is satisfied by DLPIO8G.
type Pulser interface {
	Pulse(lines string, width time.Duration) error
}

// Marker pulses the configured lines for each experiment event it is told
// about. Events without lines are ignored.
type Marker struct {
	box    Pulser
	lines  Lines
	width  time.Duration
	logger zerolog.Logger
}

func NewMarker(box Pulser, lines Lines, width time.Duration, logger zerolog.Logger) *Marker {
	return &Marker{box: box, lines: lines, width: width, logger: logger.With().Str("component", "trigger").Logger()}
}

// Mark pulses the lines of event. Failures are logged, never returned: a
// missed TTL pulse must not stop a trial.
func (m *Marker) Mark(event string) {
	lines, ok := m.lines[event]
	if !ok || lines == "" {
		return
	}
	if err := m.box.Pulse(lines, m.width); err != nil {
		m.logger.Warn().Err(err).Str("event", event).Msg("Trigger failed")
	}
}
