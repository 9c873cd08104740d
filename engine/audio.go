package engine

import (
	"sync"
	"unsafe"

	"github.com/Zyko0/go-sdl3/sdl"
)

const (
	MaxActiveSounds   = 4
	AudioScratchBytes = 4096
)

// audioSpec is the format of every sound handed to the mixer.
var audioSpec = sdl.AudioSpec{Format: sdl.AUDIO_S16, Channels: 2, Freq: 44100}

// SoundResource is a decoded soundtrack, interleaved signed 16-bit stereo.
type SoundResource struct {
	Data []byte
}

type ActiveSound struct {
	Resource *SoundResource
	PlayPos  uint32
	Active   bool
}

// AudioMixer feeds the playback stream from the SDL audio thread.
type AudioMixer struct {
	Slots   [MaxActiveSounds]ActiveSound
	Mutex   sync.Mutex
	Scratch []byte
}

func NewAudioMixer() *AudioMixer {
	return &AudioMixer{
		Scratch: make([]byte, AudioScratchBytes),
	}
}

func (m *AudioMixer) Callback(stream *sdl.AudioStream, additionalAmount, totalAmount int32) {
	remaining := int(additionalAmount)
	for remaining > 0 {
		chunk := remaining
		if chunk > AudioScratchBytes {
			chunk = AudioScratchBytes
		}
		m.mix(m.Scratch[:chunk])
		stream.PutData(m.Scratch[:chunk])
		remaining -= chunk
	}
}

// mix overwrites out with the sum of the active sounds and advances them.
func (m *AudioMixer) mix(out []byte) {
	clear(out)
	if len(out) < 2 {
		return
	}

	m.Mutex.Lock()
	defer m.Mutex.Unlock()

	dst := unsafe.Slice((*int16)(unsafe.Pointer(&out[0])), len(out)/2)
	for i := range m.Slots {
		s := &m.Slots[i]
		if !s.Active {
			continue
		}

		soundRemaining := uint32(len(s.Resource.Data)) - s.PlayPos
		toMix := uint32(len(out))
		if toMix > soundRemaining {
			toMix = soundRemaining
		}

		if toMix >= 2 {
			src := unsafe.Slice((*int16)(unsafe.Pointer(&s.Resource.Data[s.PlayPos])), toMix/2)
			for j := range src {
				val := int32(dst[j]) + int32(src[j])
				if val > 32767 {
					val = 32767
				} else if val < -32768 {
					val = -32768
				}
				dst[j] = int16(val)
			}
		}

		s.PlayPos += toMix
		if s.PlayPos >= uint32(len(s.Resource.Data)) {
			s.Active = false
		}
	}
}

// Play starts res from its beginning. It returns false when every slot is
// busy.
func (m *AudioMixer) Play(res *SoundResource) bool {
	m.Mutex.Lock()
	defer m.Mutex.Unlock()

	for i := range m.Slots {
		if !m.Slots[i].Active {
			m.Slots[i].Resource = res
			m.Slots[i].PlayPos = 0
			m.Slots[i].Active = true
			return true
		}
	}
	return false
}

// Stop silences res, e.g. when a trial is skipped mid-video.
func (m *AudioMixer) Stop(res *SoundResource) {
	m.Mutex.Lock()
	defer m.Mutex.Unlock()

	for i := range m.Slots {
		if m.Slots[i].Active && m.Slots[i].Resource == res {
			m.Slots[i].Active = false
		}
	}
}

// Playing reports whether res is still being played.
func (m *AudioMixer) Playing(res *SoundResource) bool {
	m.Mutex.Lock()
	defer m.Mutex.Unlock()

	for i := range m.Slots {
		if m.Slots[i].Active && m.Slots[i].Resource == res {
			return true
		}
	}
	return false
}
