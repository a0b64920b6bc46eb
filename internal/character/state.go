package character

import (
	"fmt"
	"strings"
)

// State is a semantic animation mode. Which states a deployment can play
// depends on the frame folders it ships; see Sequences.
type State uint8

const (
	Idle State = iota
	Hover
	Looking
	Gum
	SitDown
	StandUp
	IdleLong
	SleepIntro
	Sleep
	Wave
	Sneeze
	Spin
	Selfie
	Celebrate

	numStates

	// None marks the absence of a state, e.g. no pending request or no
	// explicit fallback.
	None State = 0xff
)

var stateNames = [numStates]string{
	Idle:       "idle",
	Hover:      "hover",
	Looking:    "looking",
	Gum:        "gum",
	SitDown:    "sitDown",
	StandUp:    "standUp",
	IdleLong:   "idleLong",
	SleepIntro: "sleepIntro",
	Sleep:      "sleep",
	Wave:       "wave",
	Sneeze:     "sneeze",
	Spin:       "spin",
	Selfie:     "selfie",
	Celebrate:  "celebrate",
}

// AllStates returns every state in declaration order.
func AllStates() []State {
	out := make([]State, numStates)
	for i := range out {
		out[i] = State(i)
	}
	return out
}

// Valid reports whether s is a declared state.
func (s State) Valid() bool {
	return s < numStates
}

func (s State) String() string {
	if s.Valid() {
		return stateNames[s]
	}
	if s == None {
		return "none"
	}
	return fmt.Sprintf("State(%d)", uint8(s))
}

// ParseState looks a state up by name, ignoring case.
func ParseState(name string) (State, error) {
	for i, n := range stateNames {
		if strings.EqualFold(n, name) {
			return State(i), nil
		}
	}
	return None, fmt.Errorf("unknown animation state %q", name)
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("cannot marshal %v", s)
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *State) UnmarshalText(text []byte) error {
	parsed, err := ParseState(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Mode selects the frame set a device gets.
type Mode uint8

const (
	Desktop Mode = iota
	Mobile
)

func (m Mode) String() string {
	if m == Mobile {
		return "mobile"
	}
	return "desktop"
}

// ParseMode parses "desktop" or "mobile".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "desktop", "":
		return Desktop, nil
	case "mobile":
		return Mobile, nil
	}
	return Desktop, fmt.Errorf("unknown mode %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Mode) UnmarshalText(text []byte) error {
	parsed, err := ParseMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
