package engine

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"

	"mcgurk/trial"
)

type EventLogEntry struct {
	TimestampMS int64
	Type        string
}

// EventLog timestamps trial events on the display clock, the same events the
// trigger box receives, so TTL pulses can be checked against the screen.
type EventLog struct {
	Clock   trial.Clock
	Entries []EventLogEntry
}

func (l *EventLog) Mark(event string) {
	l.Entries = append(l.Entries, EventLogEntry{
		TimestampMS: l.Clock.Now().Milliseconds(),
		Type:        event,
	})
}

func (l *EventLog) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	w.Write([]string{"time_ms", "event"})
	for _, e := range l.Entries {
		w.Write([]string{strconv.FormatInt(e.TimestampMS, 10), e.Type})
	}
	w.Flush()
	return w.Error()
}
