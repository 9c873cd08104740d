package tracker

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DummyLink simulates a tracker host in memory. Messages are kept in a text
// data file that can be downloaded like a real one.
type DummyLink struct {
	start     time.Time
	files     map[string]*bytes.Buffer
	open      string
	recording bool
	connected bool
	commands  []string
}

// NewDummyLink returns a connected simulated link.
func NewDummyLink() *DummyLink {
	return &DummyLink{
		start:     time.Now(),
		files:     make(map[string]*bytes.Buffer),
		connected: true,
	}
}

func (d *DummyLink) stamp() int64 { return time.Since(d.start).Milliseconds() }

func (d *DummyLink) write(format string, args ...any) {
	if d.open == "" {
		return
	}
	fmt.Fprintf(d.files[d.open], format, args...)
}

func (d *DummyLink) check() error {
	if !d.connected {
		return ErrLinkLost
	}
	return nil
}

func (d *DummyLink) Version() int { return 0 }

func (d *DummyLink) Command(cmd string) error {
	if err := d.check(); err != nil {
		return err
	}
	d.commands = append(d.commands, cmd)
	return nil
}

// Commands returns the commands received so far.
func (d *DummyLink) Commands() []string { return append([]string(nil), d.commands...) }

func (d *DummyLink) Message(msg string) error {
	if err := d.check(); err != nil {
		return err
	}
	d.write("MSG\t%d %s\n", d.stamp(), msg)
	return nil
}

func (d *DummyLink) OpenDataFile(name string) error {
	if err := d.check(); err != nil {
		return err
	}
	if d.open != "" {
		return fmt.Errorf("%w: %s is already open", ErrLogFile, d.open)
	}
	d.files[name] = &bytes.Buffer{}
	d.open = name
	d.write("** DATE: %s\n", time.Now().Format(time.ANSIC))
	return nil
}

func (d *DummyLink) CloseDataFile() error {
	if err := d.check(); err != nil {
		return err
	}
	d.open = ""
	return nil
}

// DataFile returns the content of a data file kept by the simulated host.
func (d *DummyLink) DataFile(name string) ([]byte, bool) {
	buf, ok := d.files[name]
	if !ok {
		return nil, false
	}
	return buf.Bytes(), true
}

func (d *DummyLink) ReceiveDataFile(src, dst string) error {
	if err := d.check(); err != nil {
		return err
	}
	data, ok := d.DataFile(src)
	if !ok {
		return fmt.Errorf("%w: no data file %s", ErrLogFile, src)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o644)
}

func (d *DummyLink) SetOfflineMode() error {
	if err := d.check(); err != nil {
		return err
	}
	d.recording = false
	return nil
}

func (d *DummyLink) StartRecording() error {
	if err := d.check(); err != nil {
		return err
	}
	d.recording = true
	d.write("START\t%d\n", d.stamp())
	return nil
}

func (d *DummyLink) StopRecording() error {
	if err := d.check(); err != nil {
		return err
	}
	if d.recording {
		d.write("END\t%d\n", d.stamp())
	}
	d.recording = false
	return nil
}

func (d *DummyLink) IsRecording() (bool, error) {
	if err := d.check(); err != nil {
		return false, err
	}
	return d.recording, nil
}

func (d *DummyLink) Connected() bool { return d.connected }

func (d *DummyLink) DoTrackerSetup() error { return d.check() }

func (d *DummyLink) DoDriftCorrect(x, y int) (bool, error) {
	if err := d.check(); err != nil {
		return false, err
	}
	d.write("MSG\t%d DRIFTCORRECT %d %d\n", d.stamp(), x, y)
	return true, nil
}

// Disconnect simulates a cable pull.
func (d *DummyLink) Disconnect() {
	d.connected = false
	d.recording = false
}

func (d *DummyLink) Close() error {
	d.connected = false
	return nil
}

// Messages returns the message lines of a data file, without timestamps.
func (d *DummyLink) Messages(name string) []string {
	data, ok := d.DataFile(name)
	if !ok {
		return nil
	}
	var out []string
	for _, line := range strings.Split(string(data), "\n") {
		rest, ok := strings.CutPrefix(line, "MSG\t")
		if !ok {
			continue
		}
		if _, msg, ok := strings.Cut(rest, " "); ok {
			out = append(out, msg)
		}
	}
	return out
}
