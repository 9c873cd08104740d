// Package trigger sends TTL markers through a DLP-IO8-G USB I/O box so that
// external recorders can be aligned with experiment events.
package trigger

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
	"go.bug.st/serial"
)

// Port is the part of a serial port the box needs.
type Port interface {
	io.ReadWriter
	Close() error
}

type DLPIO8G struct {
	port   Port
	logger zerolog.Logger
}

// Open opens the box on a serial device and switches it to binary mode.
func Open(device string, baudrate int, logger zerolog.Logger) (*DLPIO8G, error) {
	mode := &serial.Mode{
		BaudRate: baudrate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(device, mode)
	if err != nil {
		return nil, err
	}
	if err := port.SetReadTimeout(time.Second); err != nil {
		port.Close()
		return nil, err
	}

	d, err := New(port, logger)
	if err != nil {
		port.Close()
		return nil, err
	}
	return d, nil
}

// New initialises a box on an already open port.
func New(port Port, logger zerolog.Logger) (*DLPIO8G, error) {
	d := &DLPIO8G{port: port, logger: logger.With().Str("component", "dlp").Logger()}
	if !d.Ping() {
		return nil, errors.New("device did not respond to ping correctly")
	}

	// Binary mode
	if _, err := port.Write([]byte{0x5C}); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *DLPIO8G) Close() error {
	if d.port == nil {
		return nil
	}
	err := d.port.Close()
	d.port = nil
	return err
}

// Ping asks the box for its 'Q' answer.
func (d *DLPIO8G) Ping() bool {
	if _, err := d.port.Write([]byte{0x27}); err != nil {
		return false
	}

	buf := make([]byte, 1)
	n, err := d.port.Read(buf)
	return err == nil && n == 1 && buf[0] == 'Q'
}

// Set raises the given lines, e.g. "13" for lines 1 and 3.
func (d *DLPIO8G) Set(lines string) error {
	if err := validLines(lines); err != nil {
		return err
	}
	if _, err := d.port.Write([]byte(lines)); err != nil {
		d.logger.Warn().Err(err).Str("lines", lines).Msg("Write error in Set")
		return err
	}
	return nil
}

// unsetKeys maps a line to the key that lowers it.
var unsetKeys = [...]byte{'Q', 'W', 'E', 'R', 'T', 'Y', 'U', 'I'}

// Unset lowers the given lines.
func (d *DLPIO8G) Unset(lines string) error {
	if err := validLines(lines); err != nil {
		return err
	}
	cmd := []byte(lines)
	for i := range cmd {
		cmd[i] = unsetKeys[cmd[i]-'1']
	}
	if _, err := d.port.Write(cmd); err != nil {
		d.logger.Warn().Err(err).Str("lines", lines).Msg("Write error in Unset")
		return err
	}
	return nil
}

// Pulse raises lines for width.
func (d *DLPIO8G) Pulse(lines string, width time.Duration) error {
	if err := d.Set(lines); err != nil {
		return err
	}
	time.Sleep(width)
	return d.Unset(lines)
}

func validLines(lines string) error {
	for _, c := range []byte(lines) {
		if c < '1' || c > '8' {
			return fmt.Errorf("invalid line %q, lines are 1-8", c)
		}
	}
	return nil
}
