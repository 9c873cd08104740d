package trial

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mcgurk/catalog"
	"mcgurk/input"
	"mcgurk/results"
	"mcgurk/tracker"
)

type fakeClock struct{ now time.Duration }

func (c *fakeClock) Now() time.Duration { return c.now }

func (c *fakeClock) Sleep(d time.Duration) { c.now += d }

// fakeKeyboard hands out queued presses: pending ones to Poll, typed ones to
// Wait.
type fakeKeyboard struct {
	pending []input.Key
	typed   []input.Key
}

func (k *fakeKeyboard) Poll() []input.Key {
	keys := k.pending
	k.pending = nil
	return keys
}

func (k *fakeKeyboard) Wait(ctx context.Context) (input.Key, error) {
	if err := ctx.Err(); err != nil {
		return input.Key{}, err
	}
	if len(k.typed) == 0 {
		return input.Key{}, errors.New("no more keys")
	}
	key := k.typed[0]
	k.typed = k.typed[1:]
	return key, nil
}

func (k *fakeKeyboard) typeText(text string) {
	for _, r := range text {
		k.typed = append(k.typed, input.Key{Name: string(r)})
	}
	k.typed = append(k.typed, input.Key{Name: input.Return})
}

// fakeVideo lasts frames frames of 40ms on the shared clock.
type fakeVideo struct {
	clock   *fakeClock
	frames  int
	shown   int
	onFrame func(n int)
	closed  bool
}

func (v *fakeVideo) Start() error { return nil }

func (v *fakeVideo) Present(elapsed time.Duration) (bool, error) {
	if v.shown == v.frames {
		return true, nil
	}
	v.shown++
	if v.onFrame != nil {
		v.onFrame(v.shown)
	}
	v.clock.now += 40 * time.Millisecond
	return false, nil
}

func (v *fakeVideo) Close() error {
	v.closed = true
	return nil
}

type fakeScreen struct {
	clock   *fakeClock
	missing map[string]bool
	onFrame func(n int)
	videos   []*fakeVideo
	prompts  []string
	clearErr error
}

func (s *fakeScreen) Clear() error { return s.clearErr }

func (s *fakeScreen) ShowFixation() error { return nil }

func (s *fakeScreen) ShowMessage(string) error { return nil }

func (s *fakeScreen) ShowPrompt(_, text string) error {
	s.prompts = append(s.prompts, text)
	return nil
}

func (s *fakeScreen) OpenVideo(path string) (Video, error) {
	if s.missing[filepath.Base(path)] {
		return nil, errors.New("no such file")
	}
	v := &fakeVideo{clock: s.clock, frames: 10, onFrame: s.onFrame}
	s.videos = append(s.videos, v)
	return v, nil
}

type fixture struct {
	clock  *fakeClock
	keys   *fakeKeyboard
	screen *fakeScreen
	link   *tracker.DummyLink
	rec    *tracker.Session
	sink   *results.Sink
	exec   *Executor
	states []State
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		clock: &fakeClock{},
		keys:  &fakeKeyboard{},
		link:  tracker.NewDummyLink(),
		sink:  results.NewSink(nil),
	}
	f.screen = &fakeScreen{clock: f.clock, missing: map[string]bool{}}

	opts := tracker.DefaultOptions()
	opts.StopDelay = 0
	opts.CloseDelay = 0
	f.rec = tracker.NewSession(f.link, true, opts, zerolog.Nop())
	require.NoError(t, f.rec.OpenLog("TEST"))

	f.exec = NewExecutor(DefaultConfig(), Deps{
		Screen:   f.screen,
		Keyboard: f.keys,
		Clock:    f.clock,
		Recorder: f.rec,
		Sink:     f.sink,
	}, zerolog.Nop())
	f.exec.OnState = func(_ int, _ catalog.TrialSpec, s State) { f.states = append(f.states, s) }
	return f
}

func (f *fixture) messages() []string { return f.link.Messages("TEST.EDF") }

func specs(n int) []catalog.TrialSpec {
	syllables := []string{"ba", "ga", "da", "ka", "pa"}
	out := make([]catalog.TrialSpec, n)
	for i := range out {
		s := syllables[i%len(syllables)]
		out[i] = catalog.TrialSpec{
			Index:     i + 1,
			VideoFile: s + "_" + s + ".mp4",
			Syllable:  s,
			Phoneme:   s,
			Viseme:    s,
		}
	}
	return out
}

func TestRunProducesOneRowPerTrial(t *testing.T) {
	f := newFixture(t)
	trials := specs(5)
	for range trials {
		f.keys.typeText("ba")
	}

	require.NoError(t, f.exec.Run(context.Background(), trials))

	rows := f.sink.Rows()
	require.Len(t, rows, 5)
	seen := map[int]bool{}
	for i, r := range rows {
		assert.Equal(t, trials[i].Index, r.TrialIndex)
		assert.Equal(t, trials[i].Syllable, r.ExpectedSyllable)
		assert.Equal(t, "ba", r.ReportedSyllable)
		assert.Equal(t, results.StatusOK, r.Status)
		assert.Equal(t, i+1, r.Order)
		seen[r.TrialIndex] = true
	}
	assert.Len(t, seen, 5)
	for _, v := range f.screen.videos {
		assert.True(t, v.closed)
	}
	assert.False(t, f.rec.Recording())
}

func TestRunThreeTrialsWithCorrection(t *testing.T) {
	f := newFixture(t)
	trials := []catalog.TrialSpec{
		{Index: 1, VideoFile: "ba_ga.mp4", Syllable: "ba_ga", Phoneme: "ba", Viseme: "ga"},
		{Index: 2, VideoFile: "ga_ba.mp4", Syllable: "ga_ba", Phoneme: "ga", Viseme: "ba"},
		{Index: 3, VideoFile: "da_da.mp4", Syllable: "da_da", Phoneme: "da", Viseme: "da"},
	}
	for range trials {
		f.keys.typed = append(f.keys.typed,
			input.Key{Name: "b"},
			input.Key{Name: "a"},
			input.Key{Name: input.Backspace},
			input.Key{Name: "o"},
			input.Key{Name: input.Return},
		)
	}

	require.NoError(t, f.exec.Run(context.Background(), trials))

	rows := f.sink.Rows()
	require.Len(t, rows, 3)
	for i, r := range rows {
		assert.Equal(t, i+1, r.TrialIndex)
		assert.Equal(t, "bo", r.ReportedSyllable)
	}
	assert.Equal(t, []string{"", "b", "ba", "b", "bo"}, f.screen.prompts[:5])
}

func TestTrialStatesAndAnnotations(t *testing.T) {
	f := newFixture(t)
	f.keys.typeText("da")

	row, err := f.exec.RunTrial(context.Background(), 1, specs(3)[2])
	require.NoError(t, err)
	assert.Equal(t, results.StatusOK, row.Status)
	assert.Equal(t, []State{Armed, Fixation, Playing, Response, Logged}, f.states)

	assert.Equal(t, []string{
		"TRIALID 3",
		"The phoneme is: da",
		"The viseme is: da",
		"fix_cross_onset",
		"fix_cross_offset",
		"Video stimulus onset",
		"Video stimulus end",
		"Video length: 400",
		"blank_screen",
		"!V TRIAL_VAR condition da",
		"Participant reported syllable: da",
		"TRIAL_RESULT 0",
	}, f.messages())
	assert.Contains(t, f.link.Commands(), "record_status_message 'TRIAL number 1'")
}

func TestFixationIsTimedOnTheClock(t *testing.T) {
	f := newFixture(t)
	f.keys.typeText("ba")

	var onset, offset time.Duration
	f.exec.OnState = func(_ int, _ catalog.TrialSpec, s State) {
		switch s {
		case Fixation:
			onset = f.clock.Now()
		case Playing:
			offset = f.clock.Now()
		}
	}
	_, err := f.exec.RunTrial(context.Background(), 1, specs(1)[0])
	require.NoError(t, err)

	cfg := DefaultConfig()
	assert.Equal(t, cfg.FixationDuration+cfg.SettleDelay, offset-onset)
}

func TestEscapeSkipsTrial(t *testing.T) {
	f := newFixture(t)
	f.screen.onFrame = func(n int) {
		if n == 3 {
			f.keys.pending = append(f.keys.pending, input.Key{Name: input.Escape})
		}
	}
	f.keys.typeText("ga")
	trials := specs(2)

	require.NoError(t, f.exec.Run(context.Background(), trials[:1]))
	rows := f.sink.Rows()
	require.Len(t, rows, 1)
	assert.Equal(t, results.StatusSkipped, rows[0].Status)
	assert.Empty(t, rows[0].ReportedSyllable)
	assert.False(t, f.rec.Recording())

	msgs := f.messages()
	assert.Contains(t, msgs, "trial_skipped_by_user")
	assert.Contains(t, msgs, "!V CLEAR 116 116 116")
	assert.Contains(t, msgs, "TRIAL_RESULT -1")
	assert.NotContains(t, msgs, "Video stimulus end")

	f.screen.onFrame = nil
	require.NoError(t, f.exec.Run(context.Background(), trials[1:]))
	rows = f.sink.Rows()
	require.Len(t, rows, 2)
	assert.Equal(t, results.StatusOK, rows[1].Status)
	assert.Equal(t, "ga", rows[1].ReportedSyllable)
}

func TestCtrlCTerminatesSession(t *testing.T) {
	f := newFixture(t)
	f.screen.onFrame = func(n int) {
		if n == 2 {
			f.keys.pending = append(f.keys.pending, input.Key{Name: "c", Ctrl: true})
		}
	}

	err := f.exec.Run(context.Background(), specs(3))
	require.ErrorIs(t, err, ErrTerminated)

	rows := f.sink.Rows()
	require.Len(t, rows, 1)
	assert.Equal(t, results.StatusTerminated, rows[0].Status)
	assert.Contains(t, f.messages(), "terminated_by_user")
	assert.Equal(t, Terminated, f.states[len(f.states)-1])
}

func TestTerminateDuringResponse(t *testing.T) {
	f := newFixture(t)
	f.keys.typed = []input.Key{{Name: "b"}, {Name: input.Quit}}

	err := f.exec.Run(context.Background(), specs(2))
	require.ErrorIs(t, err, ErrTerminated)
	rows := f.sink.Rows()
	require.Len(t, rows, 1)
	assert.Equal(t, results.StatusTerminated, rows[0].Status)
}

func TestCancelledContextTerminates(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := f.exec.Run(ctx, specs(2))
	require.ErrorIs(t, err, ErrTerminated)
	assert.Len(t, f.sink.Rows(), 1)
}

func TestLinkLossTerminatesOnce(t *testing.T) {
	f := newFixture(t)
	f.screen.onFrame = func(n int) {
		if n == 4 {
			f.link.Disconnect()
		}
	}
	for range 3 {
		f.keys.typeText("ba")
	}

	err := f.exec.Run(context.Background(), specs(3))
	require.ErrorIs(t, err, tracker.ErrLinkLost)

	rows := f.sink.Rows()
	require.Len(t, rows, 1)
	assert.Equal(t, results.StatusError, rows[0].Status)
	assert.Len(t, f.screen.videos, 1)

	terminations := 0
	for _, s := range f.states {
		if s == Terminated {
			terminations++
		}
	}
	assert.Equal(t, 1, terminations)
}

// flakyRecorder fails the next starts or stops with a device error.
type flakyRecorder struct {
	*tracker.Session
	startErrs  int
	stopErrs   int
	commandErr error
}

func (r *flakyRecorder) Command(cmd string) error {
	if r.commandErr != nil {
		return r.commandErr
	}
	return r.Session.Command(cmd)
}

func (r *flakyRecorder) StartRecording() error {
	if r.startErrs > 0 {
		r.startErrs--
		return fmt.Errorf("%w: start refused", tracker.ErrDevice)
	}
	return r.Session.StartRecording()
}

func (r *flakyRecorder) StopRecording() error {
	if r.stopErrs > 0 {
		r.stopErrs--
		return fmt.Errorf("%w: stop refused", tracker.ErrDevice)
	}
	return r.Session.StopRecording()
}

func TestDeviceErrorAbortsTrialOnly(t *testing.T) {
	tests := []struct {
		name      string
		startErrs int
		stopErrs  int
	}{
		{"start recording", 1, 0},
		{"stop recording", 0, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.exec.deps.Recorder = &flakyRecorder{Session: f.rec, startErrs: tt.startErrs, stopErrs: tt.stopErrs}
			f.keys.typeText("ga")
			f.keys.typeText("da")

			require.NoError(t, f.exec.Run(context.Background(), specs(3)))

			rows := f.sink.Rows()
			require.Len(t, rows, 3)
			assert.Equal(t, results.StatusError, rows[0].Status)
			assert.Empty(t, rows[0].ReportedSyllable)
			assert.Equal(t, results.StatusOK, rows[1].Status)
			assert.Equal(t, "ga", rows[1].ReportedSyllable)
			assert.Equal(t, results.StatusOK, rows[2].Status)
			assert.Equal(t, "da", rows[2].ReportedSyllable)
			assert.NotContains(t, f.states, Terminated)
			assert.True(t, f.rec.Connected())
			assert.False(t, f.rec.Recording())
		})
	}
}

func TestSideEffectFailuresAreLogged(t *testing.T) {
	f := newFixture(t)
	var buf bytes.Buffer
	f.exec.logger = zerolog.New(&buf)
	f.exec.deps.Recorder = &flakyRecorder{Session: f.rec, commandErr: fmt.Errorf("%w: busy", tracker.ErrDevice)}
	f.screen.clearErr = errors.New("renderer gone")
	f.keys.typeText("ba")

	row, err := f.exec.RunTrial(context.Background(), 1, specs(1)[0])
	require.NoError(t, err)
	assert.Equal(t, results.StatusOK, row.Status)

	logs := buf.String()
	assert.Contains(t, logs, `"command":"clear_screen 0"`)
	assert.Contains(t, logs, "record_status_message")
	assert.Contains(t, logs, "Clear failed")
	assert.Equal(t, 2, strings.Count(logs, "Tracker command failed"))
}

func TestRecordingDropAbortsTrialOnly(t *testing.T) {
	f := newFixture(t)
	f.screen.onFrame = func(n int) {
		if n == 3 {
			require.NoError(t, f.link.StopRecording())
			f.screen.onFrame = nil
		}
	}
	f.keys.typeText("ga")

	require.NoError(t, f.exec.Run(context.Background(), specs(2)))

	rows := f.sink.Rows()
	require.Len(t, rows, 2)
	assert.Equal(t, results.StatusError, rows[0].Status)
	assert.Equal(t, results.StatusOK, rows[1].Status)
	assert.Equal(t, "ga", rows[1].ReportedSyllable)
	assert.True(t, f.rec.Connected())
	assert.NotContains(t, f.states, Terminated)

	msgs := f.messages()
	assert.Contains(t, msgs, "tracker_disconnected")
	assert.Contains(t, msgs, "TRIAL_RESULT -1")
}

func TestMissingVideoAbortsTrialOnly(t *testing.T) {
	f := newFixture(t)
	trials := specs(2)
	f.screen.missing[trials[0].VideoFile] = true
	f.keys.typeText("ga")

	require.NoError(t, f.exec.Run(context.Background(), trials))
	rows := f.sink.Rows()
	require.Len(t, rows, 2)
	assert.Equal(t, results.StatusError, rows[0].Status)
	assert.Equal(t, results.StatusOK, rows[1].Status)
	assert.Contains(t, f.messages(), "TRIAL_RESULT -1")
}

type recordingMarker struct{ events []string }

func (m *recordingMarker) Mark(event string) { m.events = append(m.events, event) }

func TestMarkerEvents(t *testing.T) {
	f := newFixture(t)
	marker := &recordingMarker{}
	f.exec.deps.Marker = marker
	f.keys.typeText("ba")

	_, err := f.exec.RunTrial(context.Background(), 1, specs(1)[0])
	require.NoError(t, err)
	assert.Equal(t, []string{
		EventTrialStart,
		EventFixationOnset,
		EventFixationOffset,
		EventVideoOnset,
		EventVideoOffset,
		EventResponse,
	}, marker.events)
}
