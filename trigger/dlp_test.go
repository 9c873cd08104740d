package trigger

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePort answers pings and records everything written after them.
type fakePort struct {
	written bytes.Buffer
	answer  byte
	closed  bool
	failing bool
}

func (p *fakePort) Read(b []byte) (int, error) {
	if p.answer == 0 {
		return 0, nil
	}
	b[0] = p.answer
	return 1, nil
}

func (p *fakePort) Write(b []byte) (int, error) {
	if p.failing {
		return 0, errors.New("unplugged")
	}
	return p.written.Write(b)
}

func (p *fakePort) Close() error {
	p.closed = true
	return nil
}

func TestNew(t *testing.T) {
	port := &fakePort{answer: 'Q'}
	d, err := New(port, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, []byte{0x27, 0x5C}, port.written.Bytes())

	require.NoError(t, d.Close())
	assert.True(t, port.closed)
	require.NoError(t, d.Close())
}

func TestNewNoAnswer(t *testing.T) {
	_, err := New(&fakePort{answer: 'X'}, zerolog.Nop())
	assert.Error(t, err)
	_, err = New(&fakePort{}, zerolog.Nop())
	assert.Error(t, err)
}

func TestSetUnsetPulse(t *testing.T) {
	port := &fakePort{answer: 'Q'}
	d, err := New(port, zerolog.Nop())
	require.NoError(t, err)
	port.written.Reset()

	require.NoError(t, d.Set("13"))
	require.NoError(t, d.Unset("13"))
	require.NoError(t, d.Pulse("8", time.Millisecond))
	assert.Equal(t, "13QE8I", port.written.String())

	assert.Error(t, d.Set("9"))
	assert.Error(t, d.Unset("0"))
}

func TestMarker(t *testing.T) {
	port := &fakePort{answer: 'Q'}
	d, err := New(port, zerolog.Nop())
	require.NoError(t, err)
	port.written.Reset()

	m := NewMarker(d, Lines{"video_onset": "1", "response": "3"}, 0, zerolog.Nop())
	m.Mark("video_onset")
	m.Mark("fixation_onset")
	m.Mark("response")
	assert.Equal(t, "1Q3E", port.written.String())

	port.failing = true
	m.Mark("video_onset")
}
