package math

import (
	"math"
	"testing"
)

func TestVec2Add(t *testing.T) {
	a := Vec2{1, 2}
	b := Vec2{3, 4}
	got := a.Add(b)
	want := Vec2{4, 6}
	if got != want {
		t.Errorf("Vec2.Add() = %v, want %v", got, want)
	}
}

func TestVec2Distance(t *testing.T) {
	got := Vec2{0, 0}.Distance(Vec2{3, 4})
	if got != 5 {
		t.Errorf("Vec2.Distance() = %v, want 5", got)
	}
}

func TestVec2IsFinite(t *testing.T) {
	tests := []struct {
		v    Vec2
		want bool
	}{
		{Vec2{1, 2}, true},
		{Vec2{math.NaN(), 0}, false},
		{Vec2{0, math.Inf(1)}, false},
	}

	for _, tt := range tests {
		if got := tt.v.IsFinite(); got != tt.want {
			t.Errorf("%v.IsFinite() = %v, want %v", tt.v, got, tt.want)
		}
	}
}

func TestRectInset(t *testing.T) {
	r := RectXYWH(0, 0, 100, 200)
	inner := r.Inset(Margins{X: 0.1, Top: 0.05, Bottom: 0.25})
	want := Rect{Min: Vec2{10, 10}, Max: Vec2{90, 150}}
	if inner != want {
		t.Errorf("Inset() = %v, want %v", inner, want)
	}
}

func TestInsetEllipseContains(t *testing.T) {
	r := RectXYWH(0, 0, 100, 100)
	m := Margins{X: 0.18, Top: 0.08, Bottom: 0.28}

	tests := []struct {
		name string
		p    Vec2
		want bool
	}{
		{"center of inner box", Vec2{50, 40}, true},
		{"raw corner is padding", Vec2{2, 2}, false},
		{"inner box corner is outside ellipse", Vec2{19, 9}, false},
		{"below bottom inset", Vec2{50, 80}, false},
		{"outside entirely", Vec2{150, 50}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := InsetEllipseContains(r, m, tt.p); got != tt.want {
				t.Errorf("InsetEllipseContains(%v) = %v, want %v", tt.p, got, tt.want)
			}
		})
	}
}

func TestInsetEllipseCollapsedMargins(t *testing.T) {
	r := RectXYWH(0, 0, 10, 10)
	m := Margins{X: 0.6}
	if !InsetEllipseContains(r, m, Vec2{1, 1}) {
		t.Error("expected raw rectangle test when margins collapse the inner box")
	}
	if InsetEllipseContains(r, m, Vec2{11, 1}) {
		t.Error("expected point outside raw rectangle to miss")
	}
}

func TestFit(t *testing.T) {
	tests := []struct {
		name string
		w, h float64
		box  Rect
		want Rect
	}{
		{"wide box", 100, 200, RectXYWH(0, 0, 400, 200), RectXYWH(150, 0, 100, 200)},
		{"tall box", 200, 100, RectXYWH(0, 0, 100, 300), RectXYWH(0, 125, 100, 50)},
		{"upscale", 10, 10, RectXYWH(10, 10, 50, 50), RectXYWH(10, 10, 50, 50)},
		{"empty image", 0, 10, RectXYWH(0, 0, 50, 50), Rect{}},
		{"empty box", 10, 10, Rect{}, Rect{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Fit(tt.w, tt.h, tt.box); got != tt.want {
				t.Errorf("Fit() = %v, want %v", got, tt.want)
			}
		})
	}
}
