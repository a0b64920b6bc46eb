// Package audio plays the character's sound cues and an optional ambient loop.
package audio

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/speaker"
	"github.com/gopxl/beep/v2/wav"
	"go.uber.org/zap"
)

// DefaultSampleRate is the speaker sample rate.
const DefaultSampleRate = beep.SampleRate(44100)

// ErrNotInitialized is returned when playback is requested before Init.
var ErrNotInitialized = errors.New("audio not initialized")

// Manager owns the speaker, a mixer for overlapping cues and the ambient loop.
type Manager struct {
	mu  sync.RWMutex
	log *zap.Logger

	initialized bool
	muted       bool
	sampleRate  beep.SampleRate

	ambient       beep.StreamSeekCloser
	ambientCtrl   *beep.Ctrl
	ambientVolume *effects.Volume

	// 0..1
	masterVolume float64
	ambientLevel float64
	cueLevel     float64

	mixer *beep.Mixer
	cues  Cues
}

// New creates a manager. Nothing is played until Init succeeds.
func New(log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		log:          log,
		masterVolume: 1.0,
		ambientLevel: 0.4,
		cueLevel:     1.0,
		mixer:        &beep.Mixer{},
		cues:         Cues{},
	}
}

// Init opens the speaker.
func (m *Manager) Init() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.initialized {
		return nil
	}

	m.sampleRate = DefaultSampleRate
	if err := speaker.Init(m.sampleRate, m.sampleRate.N(time.Second/30)); err != nil {
		return fmt.Errorf("init speaker: %w", err)
	}
	speaker.Play(m.mixer)

	m.initialized = true
	m.log.Info("audio initialized", zap.Int("sample_rate", int(m.sampleRate)))
	return nil
}

// Close stops playback.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.initialized {
		return
	}
	m.stopAmbient()
	speaker.Clear()
	m.initialized = false
}

// IsInitialized reports whether the speaker is open.
func (m *Manager) IsInitialized() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.initialized
}

// SetMuted silences cues and the ambient loop without stopping them.
func (m *Manager) SetMuted(muted bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.muted = muted
	m.updateAmbientVolume()
}

// Muted reports whether output is muted.
func (m *Manager) Muted() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.muted
}

// SetMasterVolume sets the master volume (0.0 to 1.0).
func (m *Manager) SetMasterVolume(vol float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.masterVolume = clamp(vol, 0, 1)
	m.updateAmbientVolume()
}

// SetAmbientVolume sets the ambient loop volume (0.0 to 1.0).
func (m *Manager) SetAmbientVolume(vol float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ambientLevel = clamp(vol, 0, 1)
	m.updateAmbientVolume()
}

// SetCueVolume sets the cue volume (0.0 to 1.0).
func (m *Manager) SetCueVolume(vol float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cueLevel = clamp(vol, 0, 1)
}

// MasterVolume returns the master volume.
func (m *Manager) MasterVolume() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.masterVolume
}

// AmbientVolume returns the ambient loop volume.
func (m *Manager) AmbientVolume() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ambientLevel
}

// CueVolume returns the cue volume.
func (m *Manager) CueVolume() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cueLevel
}

func (m *Manager) updateAmbientVolume() {
	if m.ambientVolume == nil {
		return
	}
	vol := m.masterVolume * m.ambientLevel
	m.ambientVolume.Silent = m.muted || vol <= 0
	m.ambientVolume.Volume = gain(vol)
}

// volumeToDb maps a 0..1 level onto the decibel scale used by effects.Volume.
func volumeToDb(vol float64) float64 {
	if vol <= 0 {
		return -100
	}
	return 20 * math.Log10(vol)
}

// gain returns the exponent for an effects.Volume with Base 10.
func gain(vol float64) float64 {
	return volumeToDb(vol) / 20
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func (m *Manager) decode(data []byte) (beep.StreamSeekCloser, beep.Streamer, error) {
	streamer, format, err := wav.Decode(io.NopCloser(bytes.NewReader(data)))
	if err != nil {
		return nil, nil, fmt.Errorf("decode wav: %w", err)
	}
	if format.SampleRate != m.sampleRate {
		return streamer, beep.Resample(4, format.SampleRate, m.sampleRate, streamer), nil
	}
	return streamer, streamer, nil
}

// PlayAmbient starts looping WAV data underneath the cues, replacing any
// current ambient loop.
func (m *Manager) PlayAmbient(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.initialized {
		return ErrNotInitialized
	}
	m.stopAmbient()

	streamer, resampled, err := m.decode(data)
	if err != nil {
		return err
	}

	m.ambient = streamer
	m.ambientCtrl = &beep.Ctrl{Streamer: &loopStreamer{source: streamer, out: resampled}}
	m.ambientVolume = &effects.Volume{Streamer: m.ambientCtrl, Base: 10}
	m.updateAmbientVolume()
	speaker.Lock()
	m.mixer.Add(m.ambientVolume)
	speaker.Unlock()
	return nil
}

// StopAmbient stops the ambient loop.
func (m *Manager) StopAmbient() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopAmbient()
}

func (m *Manager) stopAmbient() {
	if m.ambientCtrl == nil {
		return
	}
	speaker.Lock()
	m.ambientCtrl.Streamer = nil
	speaker.Unlock()
	if m.ambient != nil {
		m.ambient.Close()
	}
	m.ambient = nil
	m.ambientCtrl = nil
	m.ambientVolume = nil
}

// AmbientPlaying reports whether an ambient loop is active.
func (m *Manager) AmbientPlaying() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ambientCtrl != nil
}

// PlaySFX mixes WAV data over whatever is playing.
func (m *Manager) PlaySFX(data []byte) error {
	m.mu.RLock()
	initialized := m.initialized
	vol := m.masterVolume * m.cueLevel
	muted := m.muted
	m.mu.RUnlock()

	if !initialized {
		return ErrNotInitialized
	}
	if muted || vol <= 0 {
		return nil
	}

	_, resampled, err := m.decode(data)
	if err != nil {
		return err
	}
	speaker.Lock()
	m.mixer.Add(&effects.Volume{
		Streamer: resampled,
		Base:     10,
		Volume:   gain(vol),
	})
	speaker.Unlock()
	return nil
}

// loopStreamer rewinds its source whenever the output runs dry.
type loopStreamer struct {
	source beep.StreamSeekCloser
	out    beep.Streamer
}

func (l *loopStreamer) Stream(samples [][2]float64) (int, bool) {
	filled := 0
	for filled < len(samples) {
		n, ok := l.out.Stream(samples[filled:])
		filled += n
		if !ok {
			if err := l.source.Seek(0); err != nil {
				return filled, filled > 0
			}
			if n == 0 && l.source.Len() == 0 {
				return filled, filled > 0
			}
		}
	}
	return filled, true
}

func (l *loopStreamer) Err() error {
	return l.source.Err()
}
