// Package results accumulates the per-trial answers and writes them out at the
// end of the session.
package results

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// Status of a finished trial.
type Status string

const (
	StatusOK         Status = "ok"
	StatusSkipped    Status = "skipped"
	StatusError      Status = "error"
	StatusTerminated Status = "terminated"
)

// Header of the results file.
var Header = []string{"trialIndex", "expectedSyllable", "reportedSyllable", "status"}

// Row is the outcome of one trial.
type Row struct {
	TrialIndex       int
	ExpectedSyllable string
	ReportedSyllable string
	Status           Status
	// Order is the 1-based presentation position. It is journaled but not
	// part of the CSV, whose rows are already in presentation order.
	Order     int
	VideoFile string
}

func (r Row) record() []string {
	return []string{
		strconv.Itoa(r.TrialIndex),
		r.ExpectedSyllable,
		r.ReportedSyllable,
		string(r.Status),
	}
}

// Appender persists rows as soon as they are produced.
type Appender interface {
	Append(Row) error
}

// Sink keeps the rows in completion order.
type Sink struct {
	rows    []Row
	journal Appender
}

// NewSink returns a sink that also hands every row to journal, if not nil.
func NewSink(journal Appender) *Sink {
	return &Sink{journal: journal}
}

// Add appends a row. The row is kept even if journaling fails.
func (s *Sink) Add(r Row) error {
	s.rows = append(s.rows, r)
	if s.journal == nil {
		return nil
	}
	if err := s.journal.Append(r); err != nil {
		return fmt.Errorf("journal trial %d: %w", r.TrialIndex, err)
	}
	return nil
}

// Rows returns a copy of the accumulated rows.
func (s *Sink) Rows() []Row {
	out := make([]Row, len(s.rows))
	copy(out, s.rows)
	return out
}

func (s *Sink) Len() int { return len(s.rows) }

// Save writes the header and all rows to path, creating its directory.
func (s *Sink) Save(path string) error {
	return WriteCSV(path, s.rows)
}

// WriteCSV writes rows to a new file at path.
func WriteCSV(path string, rows []Row) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(Header); err != nil {
		return err
	}
	for _, r := range rows {
		if err := w.Write(r.record()); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return f.Close()
}
