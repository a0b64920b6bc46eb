package audio

import (
	"errors"
	"fmt"
	"io/fs"
	"path"
	"strings"

	"go.uber.org/zap"

	"github.com/arcadeearth/launchsite/internal/character"
)

// Cues holds WAV data to play when the character enters a state.
type Cues map[character.State][]byte

// LoadCues reads "<state>.wav" files from dir. Files whose name is not an
// animation state are skipped with a warning. A missing dir yields no cues.
func LoadCues(fsys fs.FS, dir string, log *zap.Logger) (Cues, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if dir == "" {
		dir = "."
	}

	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Cues{}, nil
		}
		return nil, fmt.Errorf("reading cue dir: %w", err)
	}

	cues := Cues{}
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(path.Ext(e.Name()), ".wav") {
			continue
		}
		stem := strings.TrimSuffix(e.Name(), path.Ext(e.Name()))
		state, err := character.ParseState(stem)
		if err != nil {
			log.Warn("skipping cue", zap.String("file", e.Name()), zap.Error(err))
			continue
		}
		data, err := fs.ReadFile(fsys, path.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading cue %s: %w", e.Name(), err)
		}
		cues[state] = data
	}
	return cues, nil
}

// SetCues replaces the cue table.
func (m *Manager) SetCues(cues Cues) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cues == nil {
		cues = Cues{}
	}
	m.cues = cues
}

// HasCue reports whether a cue is registered for state.
func (m *Manager) HasCue(state character.State) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.cues[state]
	return ok
}

// PlayCue plays the cue for state. States without a cue are silent.
func (m *Manager) PlayCue(state character.State) error {
	m.mu.RLock()
	data, ok := m.cues[state]
	m.mu.RUnlock()
	if !ok {
		return nil
	}
	if err := m.PlaySFX(data); err != nil {
		return fmt.Errorf("cue %s: %w", state, err)
	}
	return nil
}

// OnStateChange plays the cue for the entered state. It matches the
// controller's state change listener.
func (m *Manager) OnStateChange(_, to character.State) {
	if !m.IsInitialized() {
		return
	}
	if err := m.PlayCue(to); err != nil {
		m.log.Warn("cue playback failed", zap.Error(err))
	}
}
