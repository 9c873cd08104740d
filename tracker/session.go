package tracker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"mcgurk/session"
)

// Options tune a Session.
type Options struct {
	// RequestTimeout bounds every round trip to a remote host.
	RequestTimeout time.Duration
	// Preamble is written at the top of the data file.
	Preamble string
	// StopDelay lets the tracker flush the last samples before a recording
	// is stopped.
	StopDelay time.Duration
	// CloseDelay separates clearing the host screen from closing the data
	// file.
	CloseDelay time.Duration
}

// DefaultOptions matches the tracker vendor's recommended timings.
func DefaultOptions() Options {
	return Options{
		RequestTimeout: 2 * time.Second,
		Preamble:       "RECORDED BY mcgurk",
		StopDelay:      100 * time.Millisecond,
		CloseDelay:     500 * time.Millisecond,
	}
}

// Settings are the acquisition parameters sent by Configure.
type Settings struct {
	FileEventFilter string
	LinkEventFilter string
	// Sample filters left empty are chosen from the tracker version.
	FileSampleData  string
	LinkSampleData  string
	CalibrationType string
	// AcceptButton is the gamepad button that accepts a fixation target, 0
	// for none.
	AcceptButton int
	ScreenWidth  int
	ScreenHeight int
}

// DefaultSettings records every event and sample type.
func DefaultSettings() Settings {
	return Settings{
		FileEventFilter: "LEFT,RIGHT,FIXATION,SACCADE,BLINK,MESSAGE,BUTTON,INPUT",
		LinkEventFilter: "LEFT,RIGHT,FIXATION,SACCADE,BLINK,BUTTON,FIXUPDATE,INPUT",
		CalibrationType: "HV9",
		AcceptButton:    5,
		ScreenWidth:     1920,
		ScreenHeight:    1080,
	}
}

func (s Settings) sampleData(version int) (file, link string) {
	file, link = s.FileSampleData, s.LinkSampleData
	// Head target data exists from the fourth tracker generation on.
	if file == "" {
		file = "LEFT,RIGHT,GAZE,HREF,RAW,AREA,GAZERES,BUTTON,STATUS,INPUT"
		if version > 3 {
			file = "LEFT,RIGHT,GAZE,HREF,RAW,AREA,HTARGET,GAZERES,BUTTON,STATUS,INPUT"
		}
	}
	if link == "" {
		link = "LEFT,RIGHT,GAZE,GAZERES,AREA,STATUS,INPUT"
		if version > 3 {
			link = "LEFT,RIGHT,GAZE,GAZERES,AREA,HTARGET,STATUS,INPUT"
		}
	}
	return file, link
}

// Session owns the link to the tracker for the length of a testing session.
type Session struct {
	link      Link
	opts      Options
	logger    zerolog.Logger
	dummy     bool
	dataFile  string
	recording bool

	closeOnce sync.Once
	closeErr  error
}

// Connect opens the link to the tracker host at address. An empty address
// runs the session against a simulated tracker.
func Connect(ctx context.Context, address string, opts Options, logger zerolog.Logger) (*Session, error) {
	logger = logger.With().Str("component", "tracker").Logger()
	if address == "" {
		logger.Info().Msg("Running in dummy mode, no tracker")
		return NewSession(NewDummyLink(), true, opts, logger), nil
	}

	link, err := DialWS(ctx, address, opts.RequestTimeout)
	if err != nil {
		return nil, err
	}
	logger.Info().Str("address", address).Int("version", link.Version()).Msg("Connected to tracker")
	return NewSession(link, false, opts, logger), nil
}

// NewSession wraps an open link. Dummy sessions skip calibration and drift
// checks.
func NewSession(link Link, dummy bool, opts Options, logger zerolog.Logger) *Session {
	return &Session{link: link, dummy: dummy, opts: opts, logger: logger}
}

// Dummy reports whether the tracker is simulated.
func (s *Session) Dummy() bool { return s.dummy }

// OpenLog opens the data file <name>.EDF on the host.
func (s *Session) OpenLog(name string) error {
	if s.dataFile != "" {
		return fmt.Errorf("%w: %s is already open", ErrLogFile, s.dataFile)
	}
	if name == "" {
		return fmt.Errorf("%w: empty name", ErrLogFile)
	}
	if err := session.ValidateName(name); err != nil {
		return fmt.Errorf("%w: %v", ErrLogFile, err)
	}

	file := name + ".EDF"
	if err := s.link.OpenDataFile(file); err != nil {
		if errors.Is(err, ErrLogFile) || errors.Is(err, ErrLinkLost) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrLogFile, err)
	}
	s.dataFile = file

	if s.opts.Preamble != "" {
		s.Command(fmt.Sprintf("add_file_preamble_text '%s'", s.opts.Preamble))
	}
	s.logger.Info().Str("file", file).Msg("Data file opened")
	return nil
}

// DataFile is the name of the open data file on the host.
func (s *Session) DataFile() string { return s.dataFile }

// Configure puts the tracker offline and sends the acquisition parameters.
func (s *Session) Configure(cfg Settings) error {
	if err := s.Offline(); err != nil {
		return err
	}

	fileSamples, linkSamples := cfg.sampleData(s.link.Version())
	cmds := []string{
		"file_event_filter = " + cfg.FileEventFilter,
		"file_sample_data = " + fileSamples,
		"link_event_filter = " + cfg.LinkEventFilter,
		"link_sample_data = " + linkSamples,
		"calibration_type = " + cfg.CalibrationType,
	}
	if cfg.AcceptButton > 0 {
		cmds = append(cmds, fmt.Sprintf("button_function %d 'accept_target_fixation'", cfg.AcceptButton))
	}
	cmds = append(cmds, fmt.Sprintf("screen_pixel_coords = 0 0 %d %d", cfg.ScreenWidth-1, cfg.ScreenHeight-1))

	for _, cmd := range cmds {
		if err := s.Command(cmd); err != nil {
			return err
		}
	}

	// Data viewers need the display geometry in the data file.
	s.Annotate(fmt.Sprintf("DISPLAY_COORDS  0 0 %d %d", cfg.ScreenWidth-1, cfg.ScreenHeight-1))
	return nil
}

// Command sends a command to the host.
func (s *Session) Command(cmd string) error {
	if err := s.link.Command(cmd); err != nil {
		s.logger.Warn().Err(err).Str("command", cmd).Msg("Command failed")
		return s.classify(err)
	}
	return nil
}

// Annotate writes a timestamped marker into the data file. It never fails:
// the experiment carries on and the problem is logged.
func (s *Session) Annotate(msg string) {
	if err := s.link.Message(msg); err != nil {
		s.logger.Warn().Err(err).Str("message", msg).Msg("Annotation lost")
		return
	}
	s.logger.Debug().Str("message", msg).Msg("Annotation")
}

// Offline puts the tracker in idle mode.
func (s *Session) Offline() error {
	if err := s.link.SetOfflineMode(); err != nil {
		return s.classify(err)
	}
	s.recording = false
	return nil
}

// StartRecording begins sample capture.
func (s *Session) StartRecording() error {
	if !s.link.Connected() {
		return ErrLinkLost
	}
	if err := s.link.StartRecording(); err != nil {
		return s.classify(err)
	}
	s.recording = true
	return nil
}

// StopRecording ends sample capture, a no-op when not recording.
func (s *Session) StopRecording() error {
	if !s.recording {
		return nil
	}
	if s.opts.StopDelay > 0 {
		time.Sleep(s.opts.StopDelay)
	}
	s.recording = false
	if err := s.link.StopRecording(); err != nil {
		return s.classify(err)
	}
	return nil
}

// Recording reports whether the session started a recording it has not
// stopped yet.
func (s *Session) Recording() bool { return s.recording }

// CheckLink is polled once per frame while recording. It returns ErrLinkLost
// when the host is gone and ErrDevice when the recording stopped on its own.
func (s *Session) CheckLink() error {
	if !s.link.Connected() {
		return ErrLinkLost
	}
	rec, err := s.link.IsRecording()
	if err != nil {
		return s.classify(err)
	}
	if s.recording && !rec {
		return fmt.Errorf("%w: recording stopped", ErrDevice)
	}
	return nil
}

// Calibrate runs camera setup and calibration. Skipped in dummy mode.
func (s *Session) Calibrate() error {
	if s.dummy {
		return nil
	}
	if err := s.link.DoTrackerSetup(); err != nil {
		return s.classify(err)
	}
	return nil
}

// DriftCheck checks the gaze on a target at x, y. It returns false when the
// operator escaped to camera setup and the check should be repeated. Dummy
// sessions accept immediately.
func (s *Session) DriftCheck(x, y int) (bool, error) {
	if s.dummy {
		return true, nil
	}
	ok, err := s.link.DoDriftCorrect(x, y)
	if err != nil {
		return false, s.classify(err)
	}
	return ok, nil
}

// Connected reports whether the link is up.
func (s *Session) Connected() bool { return s.link.Connected() }

func (s *Session) classify(err error) error {
	if errors.Is(err, ErrLinkLost) || errors.Is(err, ErrDevice) || errors.Is(err, ErrLogFile) {
		return err
	}
	if !s.link.Connected() {
		return fmt.Errorf("%w: %v", ErrLinkLost, err)
	}
	return fmt.Errorf("%w: %v", ErrDevice, err)
}

// Close stops any recording, closes the data file, downloads it to
// localPath and releases the link. Later calls return the first result.
func (s *Session) Close(localPath string) error {
	s.closeOnce.Do(func() {
		s.closeErr = s.close(localPath)
	})
	return s.closeErr
}

func (s *Session) close(localPath string) error {
	if !s.link.Connected() {
		s.logger.Warn().Msg("Link already down, data file stays on the host")
		s.link.Close()
		return ErrLinkLost
	}

	var errs []error
	if s.recording {
		if err := s.StopRecording(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := s.Offline(); err != nil {
		errs = append(errs, err)
	}
	s.Command("clear_screen 0")
	if s.opts.CloseDelay > 0 {
		time.Sleep(s.opts.CloseDelay)
	}

	if s.dataFile != "" {
		if err := s.link.CloseDataFile(); err != nil {
			errs = append(errs, s.classify(err))
		}
		if localPath != "" {
			if err := s.link.ReceiveDataFile(s.dataFile, localPath); err != nil {
				errs = append(errs, fmt.Errorf("download %s: %w", s.dataFile, err))
			} else {
				s.logger.Info().Str("path", localPath).Msg("Data file downloaded")
			}
		}
	}

	if err := s.link.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
