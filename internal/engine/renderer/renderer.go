// Package renderer draws frames with SDL's 2D renderer.
package renderer

import (
	"fmt"
	"image/color"

	"github.com/veandco/go-sdl2/sdl"
	"go.uber.org/zap"

	"github.com/arcadeearth/launchsite/internal/logger"
)

// Config holds renderer configuration.
type Config struct {
	Width      int
	Height     int
	Background color.NRGBA
}

// Renderer owns the per-frame clear and present.
type Renderer struct {
	config Config
	sdl    *sdl.Renderer
}

// New wraps r. The window's renderer must outlive the Renderer.
func New(r *sdl.Renderer, cfg Config) (*Renderer, error) {
	if r == nil {
		return nil, fmt.Errorf("renderer: nil SDL renderer")
	}
	if err := r.SetDrawBlendMode(sdl.BLENDMODE_BLEND); err != nil {
		return nil, fmt.Errorf("setting blend mode: %w", err)
	}

	info, err := r.GetInfo()
	if err == nil {
		logger.Info("renderer initialized",
			zap.String("driver", info.Name),
			zap.Bool("vsync", info.Flags&sdl.RENDERER_PRESENTVSYNC != 0),
		)
	}

	return &Renderer{config: cfg, sdl: r}, nil
}

// SDL returns the underlying SDL renderer.
func (r *Renderer) SDL() *sdl.Renderer {
	return r.sdl
}

// Resize records a new output size.
func (r *Renderer) Resize(width, height int) {
	r.config.Width = width
	r.config.Height = height
	logger.Debug("renderer resized",
		zap.Int("width", width),
		zap.Int("height", height),
	)
}

// MatchWindow scales drawing so that window coordinates map onto the
// output pixels. Only HiDPI windows need a scale other than 1.
func (r *Renderer) MatchWindow(width, height int) {
	r.Resize(width, height)
	if width <= 0 || height <= 0 {
		return
	}
	pw, ph, err := r.sdl.GetOutputSize()
	if err != nil {
		return
	}
	r.sdl.SetScale(float32(pw)/float32(width), float32(ph)/float32(height))
}

// Size returns the output size last recorded.
func (r *Renderer) Size() (int, int) {
	return r.config.Width, r.config.Height
}

// SetBackground changes the clear color.
func (r *Renderer) SetBackground(c color.NRGBA) {
	r.config.Background = c
}

// Begin clears the frame.
func (r *Renderer) Begin() {
	bg := r.config.Background
	r.sdl.SetDrawColor(bg.R, bg.G, bg.B, bg.A)
	r.sdl.Clear()
}

// End presents the frame.
func (r *Renderer) End() {
	r.sdl.Present()
}

// FillRect draws a filled rectangle, used for simple overlays.
func (r *Renderer) FillRect(x, y, w, h int, c color.NRGBA) {
	r.sdl.SetDrawColor(c.R, c.G, c.B, c.A)
	r.sdl.FillRect(&sdl.Rect{X: int32(x), Y: int32(y), W: int32(w), H: int32(h)})
}
