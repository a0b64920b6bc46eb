// Package input turns SDL2 events into the pointer, touch, key and window
// events the viewer routes to the character.
package input

import (
	"github.com/veandco/go-sdl2/sdl"
)

// EventType identifies a processed event.
type EventType int

const (
	EventNone EventType = iota
	EventQuit
	EventWindowResize
	EventWindowShown
	EventWindowHidden
	EventPointerLeave
	EventFocusGained
	EventFocusLost
	EventKeyDown
	EventKeyUp
	EventMouseMove
	EventMouseDown
	EventMouseUp
	EventTouchDown
	EventTouchMove
	EventTouchUp
	EventDrop
)

// Event represents a processed input event. Pointer and touch positions are
// in window coordinates.
type Event struct {
	Type   EventType
	Key    sdl.Scancode
	Width  int
	Height int
	X      float64
	Y      float64
	Button uint8
	Touch  bool   // mouse event synthesized from a touch contact
	Path   string // dropped file or folder
}

// Input handles all input processing.
type Input struct {
	events []Event
	width  int
	height int
}

// New creates a new input handler for a window of the given size.
func New(width, height int) *Input {
	return &Input{
		events: make([]Event, 0, 16),
		width:  width,
		height: height,
	}
}

// Update polls SDL events and converts them.
// Returns true if the viewer should quit.
func (i *Input) Update() bool {
	i.events = i.events[:0]

	quit := false
	for event := sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
		if i.translate(event) {
			quit = true
		}
	}
	return quit
}

func (i *Input) push(e Event) {
	i.events = append(i.events, e)
}

func (i *Input) translate(event sdl.Event) bool {
	switch e := event.(type) {
	case *sdl.QuitEvent:
		i.push(Event{Type: EventQuit})
		return true

	case *sdl.WindowEvent:
		switch e.Event {
		case sdl.WINDOWEVENT_RESIZED, sdl.WINDOWEVENT_SIZE_CHANGED:
			i.width, i.height = int(e.Data1), int(e.Data2)
			i.push(Event{Type: EventWindowResize, Width: i.width, Height: i.height})
		case sdl.WINDOWEVENT_SHOWN, sdl.WINDOWEVENT_RESTORED, sdl.WINDOWEVENT_EXPOSED:
			i.push(Event{Type: EventWindowShown})
		case sdl.WINDOWEVENT_HIDDEN, sdl.WINDOWEVENT_MINIMIZED:
			i.push(Event{Type: EventWindowHidden})
		case sdl.WINDOWEVENT_LEAVE:
			i.push(Event{Type: EventPointerLeave})
		case sdl.WINDOWEVENT_FOCUS_GAINED:
			i.push(Event{Type: EventFocusGained})
		case sdl.WINDOWEVENT_FOCUS_LOST:
			i.push(Event{Type: EventFocusLost})
		}

	case *sdl.KeyboardEvent:
		if e.Repeat != 0 {
			return false
		}
		if e.Type == sdl.KEYDOWN {
			i.push(Event{Type: EventKeyDown, Key: e.Keysym.Scancode})
		} else if e.Type == sdl.KEYUP {
			i.push(Event{Type: EventKeyUp, Key: e.Keysym.Scancode})
		}

	case *sdl.MouseMotionEvent:
		i.push(Event{
			Type:  EventMouseMove,
			X:     float64(e.X),
			Y:     float64(e.Y),
			Touch: e.Which == sdl.TOUCH_MOUSEID,
		})

	case *sdl.MouseButtonEvent:
		ev := Event{
			X:      float64(e.X),
			Y:      float64(e.Y),
			Button: e.Button,
			Touch:  e.Which == sdl.TOUCH_MOUSEID,
		}
		if e.Type == sdl.MOUSEBUTTONDOWN {
			ev.Type = EventMouseDown
		} else {
			ev.Type = EventMouseUp
		}
		i.push(ev)

	case *sdl.TouchFingerEvent:
		// Finger coordinates are normalized to the window.
		ev := Event{
			X:     float64(e.X) * float64(i.width),
			Y:     float64(e.Y) * float64(i.height),
			Touch: true,
		}
		switch e.Type {
		case sdl.FINGERDOWN:
			ev.Type = EventTouchDown
		case sdl.FINGERMOTION:
			ev.Type = EventTouchMove
		case sdl.FINGERUP:
			ev.Type = EventTouchUp
		}
		i.push(ev)

	case *sdl.DropEvent:
		if e.Type == sdl.DROPFILE {
			i.push(Event{Type: EventDrop, Path: e.File})
		}
	}
	return false
}

// Events returns the events from the last Update.
func (i *Input) Events() []Event {
	return i.events
}

// IsKeyPressed checks if a specific key was pressed since the last Update.
func (i *Input) IsKeyPressed(scancode sdl.Scancode) bool {
	for _, e := range i.events {
		if e.Type == EventKeyDown && e.Key == scancode {
			return true
		}
	}
	return false
}
