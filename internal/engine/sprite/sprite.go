// Package sprite shows character frames as SDL textures and reports where
// the character is drawn.
package sprite

import (
	"fmt"
	"image"
	"image/draw"
	"unsafe"

	"github.com/veandco/go-sdl2/sdl"
	"go.uber.org/zap"

	"github.com/arcadeearth/launchsite/internal/character"
	geom "github.com/arcadeearth/launchsite/pkg/math"
)

// Sprite implements the character mount on an SDL renderer. Frames are
// uploaded once and kept; when a frame cannot be uploaded the last texture
// stays on screen.
type Sprite struct {
	renderer *sdl.Renderer
	log      *zap.Logger

	textures map[string]*texture
	current  *texture
	fallback *texture

	showFallback bool
	state        character.State
	region       geom.Rect
	bounds       geom.Rect
	onLabel      func(character.State)
}

type texture struct {
	tex  *sdl.Texture
	w, h int
}

// New creates a sprite drawing through r.
func New(r *sdl.Renderer, log *zap.Logger) *Sprite {
	if log == nil {
		log = zap.NewNop()
	}
	return &Sprite{
		renderer: r,
		log:      log,
		textures: make(map[string]*texture),
		state:    character.None,
	}
}

// Show implements character.Mount.
func (s *Sprite) Show(id string, img image.Image) {
	if t, ok := s.textures[id]; ok {
		s.current = t
		s.layout()
		return
	}
	t, err := s.upload(img)
	if err != nil {
		s.log.Warn("frame upload failed", zap.String("frame", id), zap.Error(err))
		return
	}
	s.textures[id] = t
	s.current = t
	s.layout()
}

// SetStateLabel implements character.Mount.
func (s *Sprite) SetStateLabel(state character.State) {
	s.state = state
	if s.onLabel != nil {
		s.onLabel(state)
	}
}

// Clear implements character.Mount. It releases every texture.
func (s *Sprite) Clear() {
	for id, t := range s.textures {
		t.tex.Destroy()
		delete(s.textures, id)
	}
	s.current = nil
	s.bounds = geom.Rect{}
}

// ShowFallback toggles the static fallback image.
func (s *Sprite) ShowFallback(show bool) {
	s.showFallback = show
	s.layout()
}

// SetFallback sets the static image shown while the character is not ready.
func (s *Sprite) SetFallback(img image.Image) error {
	t, err := s.upload(img)
	if err != nil {
		return err
	}
	if s.fallback != nil {
		s.fallback.tex.Destroy()
	}
	s.fallback = t
	s.layout()
	return nil
}

// OnLabel registers fn to run on every state label change.
func (s *Sprite) OnLabel(fn func(character.State)) {
	s.onLabel = fn
}

// State returns the last state label.
func (s *Sprite) State() character.State {
	return s.state
}

// SetRegion sets the window area the sprite is fitted into.
func (s *Sprite) SetRegion(r geom.Rect) {
	s.region = r
	s.layout()
}

// Bounds returns where the visible image is drawn, in window coordinates.
func (s *Sprite) Bounds() geom.Rect {
	return s.bounds
}

// TextureCount returns how many frames are resident.
func (s *Sprite) TextureCount() int {
	return len(s.textures)
}

func (s *Sprite) visible() *texture {
	if s.showFallback && s.fallback != nil {
		return s.fallback
	}
	return s.current
}

func (s *Sprite) layout() {
	t := s.visible()
	if t == nil {
		s.bounds = geom.Rect{}
		return
	}
	s.bounds = geom.Fit(float64(t.w), float64(t.h), s.region)
}

// Draw copies the visible image into its bounds.
func (s *Sprite) Draw() {
	t := s.visible()
	if t == nil || s.bounds.Empty() {
		return
	}
	dst := sdl.FRect{
		X: float32(s.bounds.Min.X),
		Y: float32(s.bounds.Min.Y),
		W: float32(s.bounds.Width()),
		H: float32(s.bounds.Height()),
	}
	s.renderer.CopyF(t.tex, nil, &dst)
}

// Close releases every texture including the fallback.
func (s *Sprite) Close() {
	s.Clear()
	if s.fallback != nil {
		s.fallback.tex.Destroy()
		s.fallback = nil
	}
}

func (s *Sprite) upload(img image.Image) (*texture, error) {
	if img == nil {
		return nil, fmt.Errorf("no image")
	}
	rgba := toNRGBA(img)
	w, h := rgba.Rect.Dx(), rgba.Rect.Dy()
	if w == 0 || h == 0 {
		return nil, fmt.Errorf("empty image")
	}

	// ABGR8888 is R,G,B,A in memory on little-endian hosts, matching NRGBA.
	tex, err := s.renderer.CreateTexture(sdl.PIXELFORMAT_ABGR8888, sdl.TEXTUREACCESS_STATIC, int32(w), int32(h))
	if err != nil {
		return nil, fmt.Errorf("creating texture: %w", err)
	}
	if err := tex.Update(nil, unsafe.Pointer(&rgba.Pix[0]), rgba.Stride); err != nil {
		tex.Destroy()
		return nil, fmt.Errorf("uploading texture: %w", err)
	}
	tex.SetBlendMode(sdl.BLENDMODE_BLEND)
	return &texture{tex: tex, w: w, h: h}, nil
}

// toNRGBA returns img as a zero-origin NRGBA image, converting if needed.
func toNRGBA(img image.Image) *image.NRGBA {
	if n, ok := img.(*image.NRGBA); ok && n.Rect.Min == (image.Point{}) {
		return n
	}
	b := img.Bounds()
	n := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(n, n.Rect, img, b.Min, draw.Src)
	return n
}
