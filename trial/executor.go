package trial

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"mcgurk/catalog"
	"mcgurk/input"
	"mcgurk/response"
	"mcgurk/results"
	"mcgurk/tracker"
)

// Deps are the devices a trial drives. Marker may be nil.
type Deps struct {
	Screen   Screen
	Keyboard input.Keyboard
	Clock    Clock
	Recorder Recorder
	Marker   Marker
	Sink     Sink
}

// Executor runs trials one after the other on a single goroutine. Abort and
// terminate keys and the tracker link are polled once per frame.
type Executor struct {
	cfg    Config
	deps   Deps
	logger zerolog.Logger

	// OnState, if set, is called on every state change.
	OnState func(order int, spec catalog.TrialSpec, s State)
}

func NewExecutor(cfg Config, deps Deps, logger zerolog.Logger) *Executor {
	if deps.Marker == nil {
		deps.Marker = nopMarker{}
	}
	return &Executor{
		cfg:    cfg,
		deps:   deps,
		logger: logger.With().Str("component", "trial").Logger(),
	}
}

// Run executes trials in the given order and stores one row per trial run.
// It stops early, with an error wrapping ErrTerminated or
// tracker.ErrLinkLost, when the session has to end.
func (e *Executor) Run(ctx context.Context, trials []catalog.TrialSpec) error {
	for i, spec := range trials {
		fmt.Printf("\rTrial: %d/%d ", i+1, len(trials))

		row, err := e.RunTrial(ctx, i+1, spec)
		if addErr := e.deps.Sink.Add(row); addErr != nil {
			e.logger.Error().Err(addErr).Int("trial", spec.Index).Msg("Failed to store result")
		}
		if err != nil {
			fmt.Println()
			return err
		}
	}
	fmt.Println()
	return nil
}

// trialRun is the state of one RunTrial call.
type trialRun struct {
	*Executor
	ctx    context.Context
	order  int
	spec   catalog.TrialSpec
	row    results.Row
	logger zerolog.Logger
}

// RunTrial runs one trial. A trial that fails on its own is reported in the
// row status with a nil error; a non-nil error means the session must end.
func (e *Executor) RunTrial(ctx context.Context, order int, spec catalog.TrialSpec) (results.Row, error) {
	t := &trialRun{
		Executor: e,
		ctx:      ctx,
		order:    order,
		spec:     spec,
		row: results.Row{
			TrialIndex:       spec.Index,
			ExpectedSyllable: spec.Syllable,
			Order:            order,
			VideoFile:        spec.VideoFile,
		},
		logger: e.logger.With().Int("trial", spec.Index).Int("order", order).Logger(),
	}
	err := t.run()
	return t.row, err
}

func (t *trialRun) enter(s State) {
	t.logger.Debug().Stringer("state", s).Msg("State")
	if t.OnState != nil {
		t.OnState(t.order, t.spec, s)
	}
}

func (t *trialRun) run() error {
	rec := t.deps.Recorder

	t.enter(Armed)
	video, err := t.deps.Screen.OpenVideo(filepath.Join(t.cfg.VideoDir, t.spec.VideoFile))
	if err != nil {
		t.logger.Error().Err(err).Str("video", t.spec.VideoFile).Msg("Cannot open video")
		return t.abort(results.StatusError)
	}
	defer video.Close()

	if err := rec.Offline(); err != nil {
		return t.fail(err)
	}
	t.command("clear_screen 0")
	rec.Annotate(fmt.Sprintf("TRIALID %d", t.spec.Index))
	rec.Annotate("The phoneme is: " + t.spec.Phoneme)
	rec.Annotate("The viseme is: " + t.spec.Viseme)
	t.command(fmt.Sprintf("record_status_message 'TRIAL number %d'", t.order))
	t.deps.Marker.Mark(EventTrialStart)

	if err := t.driftCheck(); err != nil {
		return err
	}

	if err := rec.Offline(); err != nil {
		return t.fail(err)
	}
	if err := rec.StartRecording(); err != nil {
		t.logger.Error().Err(err).Msg("Cannot start recording")
		return t.fail(err)
	}
	if err := t.hold(t.cfg.SettleDelay, nil); err != nil {
		return err
	}

	t.enter(Fixation)
	if err := t.deps.Screen.ShowFixation(); err != nil {
		t.logger.Error().Err(err).Msg("Cannot draw fixation")
		return t.abort(results.StatusError)
	}
	rec.Annotate("fix_cross_onset")
	t.deps.Marker.Mark(EventFixationOnset)
	if err := t.hold(t.cfg.FixationDuration, t.deps.Screen.ShowFixation); err != nil {
		return err
	}
	rec.Annotate("fix_cross_offset")
	t.deps.Marker.Mark(EventFixationOffset)
	if err := t.hold(t.cfg.SettleDelay, nil); err != nil {
		return err
	}

	t.enter(Playing)
	if err := t.play(video); err != nil {
		return err
	}
	if t.row.Status != "" {
		return nil
	}

	t.enter(Response)
	if err := rec.StopRecording(); err != nil {
		t.logger.Error().Err(err).Msg("Cannot stop recording")
		return t.fail(err)
	}
	collector := &response.Collector{Prompt: t.cfg.Prompt, View: t.deps.Screen, Keys: t.deps.Keyboard}
	text, err := collector.Collect(t.ctx)
	if err != nil {
		if errors.Is(err, response.ErrInterrupted) || t.ctx.Err() != nil {
			return t.terminate()
		}
		t.logger.Error().Err(err).Msg("Response entry failed")
		return t.abort(results.StatusError)
	}
	t.deps.Marker.Mark(EventResponse)
	t.clear()

	t.enter(Logged)
	t.row.ReportedSyllable = text
	t.row.Status = results.StatusOK
	rec.Annotate("!V TRIAL_VAR condition " + t.spec.Syllable)
	rec.Annotate("Participant reported syllable: " + text)
	rec.Annotate(fmt.Sprintf("TRIAL_RESULT %d", resultOK))
	t.logger.Info().Str("expected", t.spec.Syllable).Str("reported", text).Msg("Trial done")
	return nil
}

// driftCheck repeats the check until the tracker accepts it, i.e. while the
// operator escapes to camera setup.
func (t *trialRun) driftCheck() error {
	rec := t.deps.Recorder
	for {
		if !rec.Connected() {
			return t.fail(tracker.ErrLinkLost)
		}
		if _, stop := t.poll(); stop {
			return t.terminate()
		}
		ok, err := rec.DriftCheck(t.cfg.DriftX, t.cfg.DriftY)
		if errors.Is(err, tracker.ErrLinkLost) {
			return t.fail(err)
		}
		if err != nil {
			t.logger.Error().Err(err).Msg("Drift check failed")
			return t.fail(err)
		}
		if ok {
			return nil
		}
	}
}

// play shows the video until its end. Skipping sets the row status and
// returns nil.
func (t *trialRun) play(video Video) error {
	rec := t.deps.Recorder
	clock := t.deps.Clock

	t.clear()
	if err := video.Start(); err != nil {
		t.logger.Error().Err(err).Msg("Cannot start video")
		return t.abort(results.StatusError)
	}
	start := clock.Now()
	rec.Annotate("Video stimulus onset")
	t.deps.Marker.Mark(EventVideoOnset)

	for {
		if err := rec.CheckLink(); err != nil {
			rec.Annotate("tracker_disconnected")
			t.logger.Error().Err(err).Msg("Tracker stopped recording")
			return t.fail(err)
		}

		skip, stop := t.poll()
		if stop {
			return t.terminate()
		}
		if skip {
			rec.Annotate("trial_skipped_by_user")
			t.logger.Info().Msg("Trial skipped")
			return t.abort(results.StatusSkipped)
		}

		done, err := video.Present(clock.Now() - start)
		if err != nil {
			t.logger.Error().Err(err).Msg("Video playback failed")
			return t.abort(results.StatusError)
		}
		if done {
			break
		}
	}

	length := clock.Now() - start
	rec.Annotate("Video stimulus end")
	rec.Annotate(fmt.Sprintf("Video length: %d", length.Milliseconds()))
	t.deps.Marker.Mark(EventVideoOffset)
	t.clear()
	rec.Annotate("blank_screen")
	return nil
}

// command sends a tracker command whose failure does not affect the trial.
func (t *trialRun) command(cmd string) {
	if err := t.deps.Recorder.Command(cmd); err != nil {
		t.logger.Warn().Err(err).Str("command", cmd).Msg("Tracker command failed")
	}
}

func (t *trialRun) clear() {
	if err := t.deps.Screen.Clear(); err != nil {
		t.logger.Warn().Err(err).Msg("Clear failed")
	}
}

// poll drains the keyboard. skip is set by the abort key, stop by the
// terminate key or a cancelled context.
func (t *trialRun) poll() (skip, stop bool) {
	if t.ctx.Err() != nil {
		return false, true
	}
	for _, k := range t.deps.Keyboard.Poll() {
		switch {
		case k.Terminates():
			stop = true
		case k.Name == input.Escape:
			skip = true
		}
	}
	return skip, stop
}

// hold waits d on the clock, redrawing with draw if not nil and watching for
// the terminate key.
func (t *trialRun) hold(d time.Duration, draw func() error) error {
	clock := t.deps.Clock
	start := clock.Now()
	for clock.Now()-start < d {
		if _, stop := t.poll(); stop {
			return t.terminate()
		}
		if draw != nil {
			if err := draw(); err != nil {
				t.logger.Warn().Err(err).Msg("Redraw failed")
			}
		}
		clock.Sleep(time.Millisecond)
	}
	return nil
}

// fail aborts the trial after a tracker error. A lost link ends the session.
func (t *trialRun) fail(err error) error {
	t.abort(results.StatusError)
	if errors.Is(err, tracker.ErrLinkLost) {
		t.enter(Terminated)
		return err
	}
	return nil
}

// terminate ends the trial and the session at the operator's request.
func (t *trialRun) terminate() error {
	t.deps.Recorder.Annotate("terminated_by_user")
	t.logger.Warn().Msg("Session terminated by user")
	t.abort(results.StatusTerminated)
	t.enter(Terminated)
	return ErrTerminated
}

// abort stops the recording, clears the screen and marks the trial as
// failed in the data file.
func (t *trialRun) abort(status results.Status) error {
	rec := t.deps.Recorder
	if t.row.Status == "" {
		t.row.Status = status
	}
	if status != results.StatusTerminated {
		t.enter(Aborted)
	}

	if rec.Recording() {
		if err := rec.StopRecording(); err != nil {
			t.logger.Warn().Err(err).Msg("Stop recording on abort failed")
		}
	}
	t.clear()
	c := t.cfg.ClearColor
	rec.Annotate(fmt.Sprintf("!V CLEAR %d %d %d", c[0], c[1], c[2]))
	rec.Annotate(fmt.Sprintf("TRIAL_RESULT %d", resultError))
	return nil
}
