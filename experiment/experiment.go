// Package experiment ties one testing session together: instructions,
// calibration, the trials and the shutdown that saves everything.
package experiment

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"mcgurk/catalog"
	"mcgurk/input"
	"mcgurk/results"
	"mcgurk/session"
	"mcgurk/tracker"
	"mcgurk/trial"
)

// Run statuses recorded in the journal.
const (
	StatusCompleted  = "completed"
	StatusTerminated = "terminated"
	StatusLinkLost   = "link_lost"
	StatusAborted    = "aborted"
)

// Tracker is the recording session as used for a whole run.
// *tracker.Session implements it.
type Tracker interface {
	trial.Recorder
	Calibrate() error
	Close(localPath string) error
}

// Journal is the run record of the results journal.
type Journal interface {
	Finish(status string) error
}

// Session owns every device of a run. Fields are set by the caller before
// Run; Marker and Journal may be nil.
type Session struct {
	Tracker  Tracker
	Screen   trial.Screen
	Keyboard input.Keyboard
	Clock    trial.Clock
	Marker   trial.Marker
	Sink     *results.Sink
	Journal  Journal
	Layout   session.Layout
	Trials   []catalog.TrialSpec
	Trial    trial.Config

	Instructions []string
	EndText      string
	TransferText string

	Logger zerolog.Logger

	// OnState is passed to the trial executor.
	OnState func(order int, spec catalog.TrialSpec, s trial.State)

	shutdownOnce sync.Once
	shutdownErr  error
}

// Run shows the instructions, calibrates, runs every trial and shuts the
// session down. The returned error wraps trial.ErrTerminated or
// tracker.ErrLinkLost when the session ended early; the data are saved in
// every case.
func (s *Session) Run(ctx context.Context) error {
	err := s.run(ctx)

	status := StatusCompleted
	switch {
	case errors.Is(err, tracker.ErrLinkLost):
		status = StatusLinkLost
	case errors.Is(err, trial.ErrTerminated):
		status = StatusTerminated
	case err != nil:
		status = StatusAborted
	}

	return errors.Join(err, s.Shutdown(status))
}

func (s *Session) run(ctx context.Context) error {
	log := s.Logger.With().Str("component", "experiment").Logger()

	for i, page := range s.Instructions {
		if err := s.page(ctx, page); err != nil {
			return err
		}
		log.Debug().Int("page", i+1).Msg("Instructions page done")
	}

	if err := s.Screen.Clear(); err != nil {
		log.Warn().Err(err).Msg("Clear failed")
	}
	if err := s.Tracker.Calibrate(); err != nil {
		if errors.Is(err, tracker.ErrLinkLost) {
			return err
		}
		log.Error().Err(err).Msg("Calibration failed, continuing")
	}

	exec := trial.NewExecutor(s.Trial, trial.Deps{
		Screen:   s.Screen,
		Keyboard: s.Keyboard,
		Clock:    s.Clock,
		Recorder: s.Tracker,
		Marker:   s.Marker,
		Sink:     s.Sink,
	}, s.Logger)
	exec.OnState = s.OnState

	log.Info().Int("trials", len(s.Trials)).Str("session", s.Layout.Identifier).Msg("Starting trials")
	if err := exec.Run(ctx, s.Trials); err != nil {
		return err
	}
	log.Info().Int("rows", s.Sink.Len()).Msg("All trials done")

	if s.EndText != "" {
		return s.page(ctx, s.EndText)
	}
	return nil
}

// page shows text until space is pressed.
func (s *Session) page(ctx context.Context, text string) error {
	if err := s.Screen.ShowMessage(text); err != nil {
		return fmt.Errorf("show message: %w", err)
	}
	for {
		key, err := s.Keyboard.Wait(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return trial.ErrTerminated
			}
			return err
		}
		if key.Terminates() {
			return trial.ErrTerminated
		}
		if key.Name == input.Space {
			return nil
		}
	}
}

// Shutdown downloads the tracker data file, saves the results and closes
// the journal run. Only the first call does anything; later calls return
// its error.
func (s *Session) Shutdown(status string) error {
	s.shutdownOnce.Do(func() {
		s.shutdownErr = s.shutdown(status)
	})
	return s.shutdownErr
}

func (s *Session) shutdown(status string) error {
	log := s.Logger.With().Str("component", "experiment").Logger()
	log.Info().Str("status", status).Msg("Shutting down")

	if s.TransferText != "" {
		if err := s.Screen.ShowMessage(s.TransferText); err != nil {
			log.Warn().Err(err).Msg("Transfer message not shown")
		}
	}

	var errs []error
	if err := s.Tracker.Close(s.Layout.LocalLog()); err != nil {
		log.Error().Err(err).Msg("Tracker close failed")
		errs = append(errs, fmt.Errorf("close tracker: %w", err))
	}

	if err := s.Sink.Save(s.Layout.ResultsCSV()); err != nil {
		log.Error().Err(err).Msg("Saving results failed")
		errs = append(errs, fmt.Errorf("save results: %w", err))
	} else {
		log.Info().Str("path", s.Layout.ResultsCSV()).Int("rows", s.Sink.Len()).Msg("Results saved")
	}

	if s.Journal != nil {
		if err := s.Journal.Finish(status); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
