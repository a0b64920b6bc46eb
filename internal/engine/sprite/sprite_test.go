package sprite

import (
	"image"
	"image/color"
	"testing"

	"github.com/arcadeearth/launchsite/internal/character"
	geom "github.com/arcadeearth/launchsite/pkg/math"
)

func TestToNRGBA(t *testing.T) {
	src := image.NewRGBA(image.Rect(5, 5, 7, 6))
	src.Set(5, 5, color.RGBA{255, 0, 0, 255})
	src.Set(6, 5, color.RGBA{0, 0, 0, 0})

	n := toNRGBA(src)
	if n.Rect != image.Rect(0, 0, 2, 1) {
		t.Fatalf("expected zero-origin 2x1 image, got %v", n.Rect)
	}
	if got := n.NRGBAAt(0, 0); got != (color.NRGBA{255, 0, 0, 255}) {
		t.Errorf("expected red pixel, got %v", got)
	}
	if got := n.NRGBAAt(1, 0); got.A != 0 {
		t.Errorf("expected transparent pixel, got %v", got)
	}

	same := image.NewNRGBA(image.Rect(0, 0, 1, 1))
	if toNRGBA(same) != same {
		t.Error("expected zero-origin NRGBA to be used as-is")
	}
}

func TestLayout(t *testing.T) {
	s := New(nil, nil)
	s.SetRegion(geom.RectXYWH(0, 0, 400, 200))
	if !s.Bounds().Empty() {
		t.Errorf("expected empty bounds before any frame, got %v", s.Bounds())
	}

	s.current = &texture{w: 100, h: 200}
	s.layout()
	if want := geom.RectXYWH(150, 0, 100, 200); s.Bounds() != want {
		t.Errorf("expected %v, got %v", want, s.Bounds())
	}

	s.fallback = &texture{w: 200, h: 200}
	s.ShowFallback(true)
	if want := geom.RectXYWH(100, 0, 200, 200); s.Bounds() != want {
		t.Errorf("expected fallback bounds %v, got %v", want, s.Bounds())
	}

	s.ShowFallback(false)
	if want := geom.RectXYWH(150, 0, 100, 200); s.Bounds() != want {
		t.Errorf("expected frame bounds %v, got %v", want, s.Bounds())
	}
}

func TestStateLabel(t *testing.T) {
	s := New(nil, nil)
	if s.State() != character.None {
		t.Errorf("expected no label, got %v", s.State())
	}

	var seen []character.State
	s.OnLabel(func(st character.State) { seen = append(seen, st) })
	s.SetStateLabel(character.Wave)
	s.SetStateLabel(character.Hover)

	if s.State() != character.Hover {
		t.Errorf("expected hover label, got %v", s.State())
	}
	if len(seen) != 2 || seen[0] != character.Wave {
		t.Errorf("expected [wave hover], got %v", seen)
	}
}

func TestUploadRejectsEmpty(t *testing.T) {
	s := New(nil, nil)
	if _, err := s.upload(nil); err == nil {
		t.Error("expected error for nil image")
	}
	if _, err := s.upload(image.NewNRGBA(image.Rect(0, 0, 0, 0))); err == nil {
		t.Error("expected error for empty image")
	}
}
