package character

import "time"

// DefaultFPS is the authored frame rate of every sequence.
const DefaultFPS = 60

// Tuning constants.
const (
	MobileFPS            = 28
	bufferAhead          = 3
	primerFrames         = 6
	frameDropWindow      = 4 * time.Second
	idleTaskTimeout      = 2 * time.Second
	idleVariantCooldown  = 6 * time.Second
	sleepAfterIdleLong   = 15 * time.Second
	sleepIntroPadFrames  = 40
	minFPSScale          = 0.5
	fpsScaleStep         = 0.85
	transientMinDuration = time.Second
	defaultTransient     = 2200 * time.Millisecond
	loopingSlack         = 120 * time.Millisecond
)

// StateMeta is the playback policy of one state.
type StateMeta struct {
	Priority int     `yaml:"priority"`
	FPS      float64 `yaml:"fps"`
	Loop     bool    `yaml:"loop"`
	Fallback State   `yaml:"fallback"`
}

// MetaTable holds a StateMeta for every state, indexed by State.
type MetaTable [numStates]StateMeta

// DefaultMeta returns the stock priority and fallback table.
func DefaultMeta() MetaTable {
	return MetaTable{
		Idle:       {Priority: 0, FPS: DefaultFPS, Loop: true, Fallback: Idle},
		Hover:      {Priority: 1, FPS: DefaultFPS, Loop: true, Fallback: Hover},
		Looking:    {Priority: 2, FPS: DefaultFPS, Fallback: Idle},
		Gum:        {Priority: 2, FPS: DefaultFPS, Fallback: Idle},
		SitDown:    {Priority: 3, FPS: DefaultFPS, Fallback: IdleLong},
		StandUp:    {Priority: 4, FPS: DefaultFPS, Fallback: Hover},
		IdleLong:   {Priority: 3, FPS: DefaultFPS, Loop: true, Fallback: Idle},
		SleepIntro: {Priority: 4, FPS: DefaultFPS, Fallback: Sleep},
		Sleep:      {Priority: 4, FPS: DefaultFPS, Loop: true, Fallback: IdleLong},
		Wave:       {Priority: 5, FPS: DefaultFPS, Fallback: Hover},
		Sneeze:     {Priority: 5, FPS: DefaultFPS, Fallback: Idle},
		Spin:       {Priority: 6, FPS: DefaultFPS, Fallback: Idle},
		Selfie:     {Priority: 7, FPS: DefaultFPS, Fallback: Idle},
		Celebrate:  {Priority: 6, FPS: DefaultFPS, Fallback: Idle},
	}
}

// Get returns the meta for s, or the zero value for an invalid state.
func (t *MetaTable) Get(s State) StateMeta {
	if !s.Valid() {
		return StateMeta{}
	}
	return t[s]
}

type stateSet [numStates]bool

func setOf(states ...State) stateSet {
	var set stateSet
	for _, s := range states {
		set[s] = true
	}
	return set
}

func (set *stateSet) has(s State) bool {
	return s.Valid() && set[s]
}

var (
	// Primed before the controller reports ready.
	heroStates = setOf(Idle, Hover, SitDown, IdleLong, SleepIntro, Sleep, Wave, StandUp, Spin, Selfie)

	standingStates = setOf(Hover, Wave, StandUp, Spin, Selfie, Looking)

	// Entering one of these defers idle variants until idle is re-entered.
	heavyStates = setOf(SitDown, IdleLong, SleepIntro, Wave, Sleep)

	defaultMobileStates = []State{Idle, IdleLong}

	defaultIdleVariants = []State{Looking, Gum, Selfie, Spin}
)

// IsStanding reports whether the character is upright in s.
func IsStanding(s State) bool {
	return standingStates.has(s)
}

// IsHero reports whether s is primed ahead of first paint.
func IsHero(s State) bool {
	return heroStates.has(s)
}
