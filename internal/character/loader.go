package character

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/arcadeearth/launchsite/internal/assets"
)

var (
	// ErrNoPlayableSequence means no state ended up with frames. The host
	// should show its static fallback instead of mounting the animator.
	ErrNoPlayableSequence = errors.New("character: no playable sequence")

	// ErrUnmappedFolder is returned in strict mode for a frame folder that
	// maps to no state.
	ErrUnmappedFolder = errors.New("character: unmapped frame folder")
)

// DefaultIntroPattern selects the sleep frames that make up the sleep intro.
var DefaultIntroPattern = regexp.MustCompile(`(?i)fixtosleep`)

// defaultFolders maps lower-cased frame folder names to states. Every state
// also answers to its own name.
var defaultFolders = map[string]State{
	"fixing":  IdleLong,
	"iddle":   Hover,
	"standup": StandUp,
	"sitdown": SitDown,
	"looking": Looking,
	"sneeze":  Sneeze,
	"gum":     Gum,
	"spin":    Spin,
	"selfie":  Selfie,
	"wave":    Wave,
	"sleep":   Sleep,
}

func init() {
	for _, s := range AllStates() {
		key := strings.ToLower(s.String())
		if _, ok := defaultFolders[key]; !ok {
			defaultFolders[key] = s
		}
	}
}

// FolderState resolves a frame folder name through overrides, then the
// built-in table. Matching ignores case.
func FolderState(folder string, overrides map[string]State) (State, bool) {
	for name, s := range overrides {
		if strings.EqualFold(name, folder) {
			return s, s.Valid()
		}
	}
	s, ok := defaultFolders[strings.ToLower(folder)]
	return s, ok
}

// Sequence is the ordered frame list of one state.
type Sequence struct {
	Frames []string // frame ids, playback order
	FPS    float64
}

// Len returns the number of frames.
func (s Sequence) Len() int { return len(s.Frames) }

// Sequences maps each available state to its frames. States without frames
// are absent.
type Sequences map[State]Sequence

// Has reports whether s has at least one frame.
func (s Sequences) Has(state State) bool {
	return len(s[state].Frames) > 0
}

// Playable reports whether any state has frames.
func (s Sequences) Playable() bool {
	for _, seq := range s {
		if len(seq.Frames) > 0 {
			return true
		}
	}
	return false
}

// States returns the available states in declaration order.
func (s Sequences) States() []State {
	var out []State
	for _, st := range AllStates() {
		if s.Has(st) {
			out = append(out, st)
		}
	}
	return out
}

// FrameCount returns the total number of frames across all states.
func (s Sequences) FrameCount() int {
	n := 0
	for _, seq := range s {
		n += len(seq.Frames)
	}
	return n
}

// LoadOptions controls sequence discovery.
type LoadOptions struct {
	Mode            Mode
	FolderOverrides map[string]State
	// Strict turns unmapped folders into ErrUnmappedFolder instead of a warning.
	Strict       bool
	IntroPattern *regexp.Regexp
	MobileStates []State
	MobileFPS    float64
	Meta         *MetaTable
	Log          *zap.Logger
}

func (o *LoadOptions) defaults() {
	if o.IntroPattern == nil {
		o.IntroPattern = DefaultIntroPattern
	}
	if len(o.MobileStates) == 0 {
		o.MobileStates = defaultMobileStates
	}
	if o.MobileFPS <= 0 {
		o.MobileFPS = MobileFPS
	}
	if o.Meta == nil {
		meta := DefaultMeta()
		o.Meta = &meta
	}
	if o.Log == nil {
		o.Log = zap.NewNop()
	}
}

// LoadFrom lists the frames of m and builds sequences from them.
func LoadFrom(m *assets.Manager, opts LoadOptions) (Sequences, error) {
	frames, err := m.Frames()
	if err != nil {
		return nil, err
	}
	return Load(frames, opts)
}

type bucket struct {
	priority int
	frames   []assets.Frame
}

// Load groups frames into per-state sequences.
//
// A folder maps to a state through the folder table. When several sources
// provide a state, only the highest-priority source's frames are kept;
// sources of equal priority are merged. Frames are ordered by path. Sleep
// frames matching the intro pattern become the sleep intro. Mobile mode keeps
// only the mobile states at the mobile frame rate. An empty idle state is
// backfilled from hover, then from the long idle.
func Load(frames []assets.Frame, opts LoadOptions) (Sequences, error) {
	opts.defaults()

	var buckets [numStates]bucket
	unmapped := make(map[string]bool)

	for _, f := range frames {
		state, ok := FolderState(f.Folder, opts.FolderOverrides)
		if !ok {
			if opts.Strict {
				return nil, fmt.Errorf("%w: %q (%s)", ErrUnmappedFolder, f.Folder, f.ID)
			}
			if !unmapped[f.Folder] {
				unmapped[f.Folder] = true
				opts.Log.Warn("skipping unmapped frame folder",
					zap.String("folder", f.Folder),
					zap.String("source", f.Source))
			}
			continue
		}

		b := &buckets[state]
		switch {
		case len(b.frames) == 0 || f.Priority > b.priority:
			b.priority = f.Priority
			b.frames = append(b.frames[:0], f)
		case f.Priority == b.priority:
			b.frames = append(b.frames, f)
		}
	}

	seqs := make(Sequences)
	for i := range buckets {
		b := &buckets[i]
		if len(b.frames) == 0 {
			continue
		}
		sort.SliceStable(b.frames, func(x, y int) bool {
			if b.frames[x].Path == b.frames[y].Path {
				return b.frames[x].ID < b.frames[y].ID
			}
			return b.frames[x].Path < b.frames[y].Path
		})
		ids := make([]string, len(b.frames))
		for j, f := range b.frames {
			ids[j] = f.ID
		}
		state := State(i)
		seqs[state] = Sequence{Frames: ids, FPS: fpsOf(opts.Meta, state)}
	}

	splitSleep(seqs, opts.IntroPattern, opts.Meta)

	if opts.Mode == Mobile {
		allowed := setOf(opts.MobileStates...)
		for state := range seqs {
			if !allowed.has(state) {
				delete(seqs, state)
			}
		}
		for state, seq := range seqs {
			seq.FPS = opts.MobileFPS
			seqs[state] = seq
		}
	}

	if !seqs.Has(Idle) {
		for _, donor := range []State{Hover, IdleLong} {
			if seqs.Has(donor) {
				src := seqs[donor]
				seqs[Idle] = Sequence{Frames: append([]string(nil), src.Frames...), FPS: src.FPS}
				break
			}
		}
	}

	if !seqs.Playable() {
		return nil, ErrNoPlayableSequence
	}

	opts.Log.Info("character sequences loaded",
		zap.Stringer("mode", opts.Mode),
		zap.Int("states", len(seqs)),
		zap.Int("frames", seqs.FrameCount()))
	return seqs, nil
}

func splitSleep(seqs Sequences, pattern *regexp.Regexp, meta *MetaTable) {
	sleep, ok := seqs[Sleep]
	if !ok {
		return
	}

	var intro, loop []string
	for _, id := range sleep.Frames {
		if pattern.MatchString(id) {
			intro = append(intro, id)
		} else {
			loop = append(loop, id)
		}
	}
	if len(intro) == 0 {
		return
	}

	seqs[SleepIntro] = Sequence{Frames: intro, FPS: fpsOf(meta, SleepIntro)}
	if len(loop) == 0 {
		loop = intro
	}
	sleep.Frames = loop
	seqs[Sleep] = sleep
}

func fpsOf(meta *MetaTable, s State) float64 {
	if fps := meta.Get(s).FPS; fps > 0 {
		return fps
	}
	return DefaultFPS
}
