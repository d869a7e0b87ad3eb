// Package mapping translates a window rectangle into a tablet context
// template.
//
// The output area always covers the whole window. When aspect preservation
// is requested the input area is cropped instead, so every pixel of the
// window stays reachable and no part of the tablet maps outside it.
package mapping

import (
	"math"

	"PenTarget/internal/state"
	"PenTarget/internal/tablet"
)

// Compute derives a working template from base for the window rectangle r.
// Degenerate rectangles are clamped to a 1x1 area at their origin.
func Compute(base tablet.Template, r state.Rect, keepAspect bool) tablet.Template {
	out := base
	winW := max(r.Width(), 1)
	winH := max(r.Height(), 1)

	out.OutOrg.X = r.Left
	out.OutOrg.Y = r.Top
	out.OutExt.X = winW
	out.OutExt.Y = winH

	if keepAspect {
		cropInput(&out, winW, winH)
	}

	out.SysOrgX = out.OutOrg.X
	out.SysOrgY = out.OutOrg.Y
	out.SysExtX = out.OutExt.X
	out.SysExtY = out.OutExt.Y
	return out
}

func cropInput(t *tablet.Template, winW, winH int32) {
	inW := max(abs32(t.InExt.X), 1)
	inH := max(abs32(t.InExt.Y), 1)

	// Compare winW/winH against inW/inH without rounding.
	lhs := int64(winW) * int64(inH)
	rhs := int64(inW) * int64(winH)
	winAspect := float64(winW) / float64(winH)

	switch {
	case lhs > rhs:
		newH := max(int32(math.Round(float64(inW)/winAspect)), 1)
		t.InOrg.Y, t.InExt.Y = shrink(t.InOrg.Y, t.InExt.Y, inH, newH)
	case lhs < rhs:
		newW := max(int32(math.Round(float64(inH)*winAspect)), 1)
		t.InOrg.X, t.InExt.X = shrink(t.InOrg.X, t.InExt.X, inW, newW)
	}
}

// shrink centers a span of size newSize inside the original span, keeping
// the direction of the original extent.
func shrink(org, ext, oldSize, newSize int32) (int32, int32) {
	shift := (oldSize - newSize) / 2
	if ext < 0 {
		return org - shift, -newSize
	}
	return org + shift, newSize
}

func abs32(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}
