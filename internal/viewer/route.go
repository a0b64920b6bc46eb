package viewer

import (
	"github.com/veandco/go-sdl2/sdl"

	"github.com/arcadeearth/launchsite/internal/engine/input"
	geom "github.com/arcadeearth/launchsite/pkg/math"
)

// pointerPolicy is the part of interaction.Policy the router drives.
type pointerPolicy interface {
	PointerMove(pos geom.Vec2, touch bool)
	Leave()
	Focus(focused bool)
	TouchStart(pos geom.Vec2)
	UserEvent()
	Click(pos geom.Vec2, primary, onChrome bool) bool
}

// environment is the part of mascot.Instance the router drives.
type environment interface {
	SetIntersection(ratio float64)
	SetCoarsePointer(coarse bool)
	SetReducedMotion(reduce bool)
	SignupSucceeded()
	CallToAction()
}

// Actions are the viewer-level commands a key or drop can trigger.
type Actions struct {
	Quit       func()
	Reload     func()
	PickFolder func()
	ToggleMute func()
	Open       func(path string)
	Resize     func(width, height int)
}

// Router maps input events onto the mounted character.
type Router struct {
	policy pointerPolicy
	env    environment
	notify func() // user activity when no policy is attached
	act    Actions

	coarse  bool
	reduced bool
}

// NewRouter creates a router with no character attached.
func NewRouter(act Actions) *Router {
	return &Router{act: act}
}

// Attach points the router at a mounted character. policy may be nil in
// mobile mode, in which case notify records user activity.
func (r *Router) Attach(env environment, policy pointerPolicy, notify func()) {
	r.env = env
	r.policy = policy
	r.notify = notify
}

// Detach drops the current character.
func (r *Router) Detach() {
	r.env = nil
	r.policy = nil
	r.notify = nil
}

// Coarse reports whether the last pointer input was a touch.
func (r *Router) Coarse() bool { return r.coarse }

// ReducedMotion reports the toggled reduced-motion preference.
func (r *Router) ReducedMotion() bool { return r.reduced }

// SetReducedMotion sets the initial preference without notifying.
func (r *Router) SetReducedMotion(reduce bool) { r.reduced = reduce }

// Route handles one event.
func (r *Router) Route(e input.Event) {
	pos := geom.Vec2{X: e.X, Y: e.Y}

	switch e.Type {
	case input.EventQuit:
		call(r.act.Quit)

	case input.EventWindowResize:
		if r.act.Resize != nil {
			r.act.Resize(e.Width, e.Height)
		}

	case input.EventWindowShown:
		if r.env != nil {
			r.env.SetIntersection(1)
		}

	case input.EventWindowHidden:
		if r.env != nil {
			r.env.SetIntersection(0)
		}

	case input.EventPointerLeave:
		if r.policy != nil {
			r.policy.Leave()
		}

	case input.EventFocusGained, input.EventFocusLost:
		if r.policy != nil {
			r.policy.Focus(e.Type == input.EventFocusGained)
		}

	case input.EventMouseMove:
		// SDL mirrors touches as mouse events; the finger events carry them.
		if e.Touch {
			return
		}
		r.setCoarse(false)
		if r.policy != nil {
			r.policy.PointerMove(pos, false)
		}

	case input.EventMouseDown:
		if e.Touch {
			return
		}
		r.setCoarse(false)
		r.userEvent()
		if r.policy != nil {
			r.policy.Click(pos, e.Button == sdl.BUTTON_LEFT, false)
		}

	case input.EventTouchDown:
		r.setCoarse(true)
		if r.policy != nil {
			r.policy.TouchStart(pos)
		} else {
			call(r.notify)
		}

	case input.EventTouchMove:
		if r.policy != nil {
			r.policy.PointerMove(pos, true)
		}

	case input.EventKeyDown:
		r.key(e.Key)

	case input.EventDrop:
		if r.act.Open != nil && e.Path != "" {
			r.act.Open(e.Path)
		}
	}
}

func (r *Router) key(code sdl.Scancode) {
	switch code {
	case sdl.SCANCODE_ESCAPE:
		call(r.act.Quit)
		return
	case sdl.SCANCODE_F5:
		call(r.act.Reload)
		return
	case sdl.SCANCODE_O:
		call(r.act.PickFolder)
		return
	case sdl.SCANCODE_M:
		call(r.act.ToggleMute)
		return
	}

	r.userEvent()
	if r.env == nil {
		return
	}
	switch code {
	case sdl.SCANCODE_S:
		r.env.SignupSucceeded()
	case sdl.SCANCODE_C, sdl.SCANCODE_RETURN:
		r.env.CallToAction()
	case sdl.SCANCODE_R:
		r.reduced = !r.reduced
		r.env.SetReducedMotion(r.reduced)
	}
}

func (r *Router) userEvent() {
	if r.policy != nil {
		r.policy.UserEvent()
		return
	}
	call(r.notify)
}

func (r *Router) setCoarse(coarse bool) {
	if r.coarse == coarse {
		return
	}
	r.coarse = coarse
	if r.env != nil {
		r.env.SetCoarsePointer(coarse)
	}
}

func call(fn func()) {
	if fn != nil {
		fn()
	}
}
