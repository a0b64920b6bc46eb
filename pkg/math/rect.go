package math

// Rect is an axis-aligned rectangle. Min is the top-left corner.
type Rect struct {
	Min, Max Vec2
}

// RectXYWH builds a rectangle from its top-left corner and size.
func RectXYWH(x, y, w, h float64) Rect {
	return Rect{Min: Vec2{x, y}, Max: Vec2{x + w, y + h}}
}

// Width returns the horizontal extent.
func (r Rect) Width() float64 { return r.Max.X - r.Min.X }

// Height returns the vertical extent.
func (r Rect) Height() float64 { return r.Max.Y - r.Min.Y }

// Center returns the midpoint.
func (r Rect) Center() Vec2 {
	return Vec2{(r.Min.X + r.Max.X) / 2, (r.Min.Y + r.Max.Y) / 2}
}

// Empty reports whether the rectangle has no area.
func (r Rect) Empty() bool {
	return r.Min.X >= r.Max.X || r.Min.Y >= r.Max.Y
}

// Contains reports whether p lies inside r, edges included.
func (r Rect) Contains(p Vec2) bool {
	return p.X >= r.Min.X && p.X <= r.Max.X && p.Y >= r.Min.Y && p.Y <= r.Max.Y
}

// Margins are inset ratios relative to a rectangle's size.
type Margins struct {
	X      float64 // applied to both left and right
	Top    float64
	Bottom float64
}

// Inset shrinks r by the given ratios of its own width and height.
func (r Rect) Inset(m Margins) Rect {
	dx := r.Width() * m.X
	return Rect{
		Min: Vec2{r.Min.X + dx, r.Min.Y + r.Height()*m.Top},
		Max: Vec2{r.Max.X - dx, r.Max.Y - r.Height()*m.Bottom},
	}
}

// InsetEllipseContains reports whether p lies within the ellipse inscribed
// in r after insetting it by m. When the margins collapse the inner box the
// raw rectangle is used instead.
func InsetEllipseContains(r Rect, m Margins, p Vec2) bool {
	inner := r.Inset(m)
	if inner.Empty() {
		return r.Contains(p)
	}
	if !inner.Contains(p) {
		return false
	}

	c := inner.Center()
	rx := inner.Width() / 2
	ry := inner.Height() / 2
	if rx <= 0 || ry <= 0 {
		return true
	}

	nx := (p.X - c.X) / rx
	ny := (p.Y - c.Y) / ry
	return nx*nx+ny*ny <= 1
}

// Fit scales a w×h image to fit inside box, keeping its aspect ratio, and
// centers it. A degenerate size or box yields an empty rectangle.
func Fit(w, h float64, box Rect) Rect {
	if w <= 0 || h <= 0 || box.Empty() {
		return Rect{}
	}
	scale := min(box.Width()/w, box.Height()/h)
	fw, fh := w*scale, h*scale
	c := box.Center()
	return Rect{
		Min: Vec2{c.X - fw/2, c.Y - fh/2},
		Max: Vec2{c.X + fw/2, c.Y + fh/2},
	}
}
