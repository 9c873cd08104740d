package engine

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func samples(vals ...int16) []byte {
	b := make([]byte, 2*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint16(b[2*i:], uint16(v))
	}
	return b
}

func decode(b []byte) []int16 {
	out := make([]int16, len(b)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(b[2*i:]))
	}
	return out
}

func TestMixerSumsAndClips(t *testing.T) {
	m := NewAudioMixer()
	a := &SoundResource{Data: samples(100, -100, 30000, -30000)}
	b := &SoundResource{Data: samples(1, 1, 30000, -30000)}
	require.True(t, m.Play(a))
	require.True(t, m.Play(b))

	out := make([]byte, 8)
	m.mix(out)
	assert.Equal(t, []int16{101, -99, 32767, -32768}, decode(out))
	assert.False(t, m.Playing(a))
	assert.False(t, m.Playing(b))

	m.mix(out)
	assert.Equal(t, []int16{0, 0, 0, 0}, decode(out))
}

func TestMixerAdvancesAcrossChunks(t *testing.T) {
	m := NewAudioMixer()
	s := &SoundResource{Data: samples(1, 2, 3, 4, 5, 6)}
	m.Play(s)

	out := make([]byte, 8)
	m.mix(out)
	assert.Equal(t, []int16{1, 2, 3, 4}, decode(out))
	assert.True(t, m.Playing(s))
	m.mix(out)
	assert.Equal(t, []int16{5, 6, 0, 0}, decode(out))
	assert.False(t, m.Playing(s))
}

func TestMixerStop(t *testing.T) {
	m := NewAudioMixer()
	s := &SoundResource{Data: samples(7, 7, 7, 7)}
	m.Play(s)
	m.Stop(s)

	out := make([]byte, 4)
	m.mix(out)
	assert.Equal(t, []int16{0, 0}, decode(out))
}

func TestMixerSlotsRunOut(t *testing.T) {
	m := NewAudioMixer()
	for range MaxActiveSounds {
		require.True(t, m.Play(&SoundResource{Data: samples(1)}))
	}
	assert.False(t, m.Play(&SoundResource{Data: samples(1)}))
}
