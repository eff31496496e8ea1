// Package view maps between image space and screen space and owns the
// pan, zoom and clamping rules of the viewport.
package view

import (
	"errors"
	"fmt"
	"math"

	"polygon-annotator/pkg/geometry"
)

// Errors returned by FitToViewport.
var (
	ErrEmptyImage    = errors.New("view: image has no pixels")
	ErrEmptyViewport = errors.New("view: viewport has no pixels")
)

// snapEpsilon absorbs rounding when zooming back out to the fit scale
// (e.g. 2 * 1.1 / 1.1 landing a hair below 2).
const snapEpsilon = 1e-9

// Transform maps image coordinates to screen coordinates with
// screen = image*scale + offset.
//
// The scale never drops below the fit scale, and after every mutation the
// image is centered on any axis where it is smaller than the viewport and
// covers the viewport edge to edge on any axis where it is larger.
type Transform struct {
	baseScale float64
	scale     float64
	offsetX   float64
	offsetY   float64

	imageW, imageH       float64
	viewportW, viewportH int

	ready bool
}

// New returns a transform with no image or viewport.
// Call FitToViewport before using it.
func New() *Transform {
	return &Transform{baseScale: 1, scale: 1}
}

// FitToViewport records the image and viewport dimensions and computes the
// fit scale, min(viewportW/imageW, viewportH/imageH). The current scale and
// offsets are left alone; call Reset to apply the fit.
func (t *Transform) FitToViewport(imageW, imageH, viewportW, viewportH int) error {
	if imageW <= 0 || imageH <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrEmptyImage, imageW, imageH)
	}
	if viewportW <= 0 || viewportH <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrEmptyViewport, viewportW, viewportH)
	}

	t.imageW = float64(imageW)
	t.imageH = float64(imageH)
	t.viewportW = viewportW
	t.viewportH = viewportH

	scaleX := float64(viewportW) / t.imageW
	scaleY := float64(viewportH) / t.imageH
	t.baseScale = math.Min(scaleX, scaleY)
	t.ready = true
	return nil
}

// Reset returns to the fit scale with the image centered.
func (t *Transform) Reset() {
	t.scale = t.baseScale
	t.offsetX = (float64(t.viewportW) - t.imageW*t.scale) / 2
	t.offsetY = (float64(t.viewportH) - t.imageH*t.scale) / 2
}

// Ready reports whether FitToViewport has succeeded at least once.
func (t *Transform) Ready() bool {
	return t.ready
}

// BaseScale returns the fit scale, the floor for zooming out.
func (t *Transform) BaseScale() float64 {
	return t.baseScale
}

// Scale returns the current scale.
func (t *Transform) Scale() float64 {
	return t.scale
}

// ZoomLevel returns the current scale relative to the fit scale (1 = fit).
func (t *Transform) ZoomLevel() float64 {
	if t.baseScale == 0 {
		return 1
	}
	return t.scale / t.baseScale
}

// Offset returns the screen position of the image origin.
func (t *Transform) Offset() geometry.Point2D {
	return geometry.Point2D{X: t.offsetX, Y: t.offsetY}
}

// Viewport returns the viewport size in screen pixels.
func (t *Transform) Viewport() (width, height int) {
	return t.viewportW, t.viewportH
}

// ImageSize returns the image dimensions the transform was fitted to.
func (t *Transform) ImageSize() geometry.Size {
	return geometry.Size{Width: t.imageW, Height: t.imageH}
}

// Center returns the center of the viewport in screen coordinates.
func (t *Transform) Center() geometry.Point2D {
	return geometry.Point2D{X: float64(t.viewportW) / 2, Y: float64(t.viewportH) / 2}
}

// ImageToScreen converts image coordinates to screen coordinates.
func (t *Transform) ImageToScreen(p geometry.Point2D) geometry.Point2D {
	return t.Matrix().Apply(p)
}

// ScreenToImage converts screen coordinates to image coordinates.
func (t *Transform) ScreenToImage(p geometry.Point2D) geometry.Point2D {
	return geometry.Point2D{
		X: (p.X - t.offsetX) / t.scale,
		Y: (p.Y - t.offsetY) / t.scale,
	}
}

// Matrix returns the image-to-screen mapping as a single affine transform.
func (t *Transform) Matrix() geometry.AffineTransform {
	return geometry.Translation(t.offsetX, t.offsetY).Compose(geometry.Scale(t.scale, t.scale))
}

// Pan moves the image by a screen-space delta, then clamps.
func (t *Transform) Pan(dx, dy float64) {
	t.offsetX += dx
	t.offsetY += dy
	t.Clamp()
}

// Zoom multiplies the scale by factor, keeping the image point under pivot
// (screen coordinates) fixed on screen. A zoom that would take the scale
// below the fit scale is rejected and Zoom returns false.
//
// One exception: when zoomed in, a result that lands below the fit scale by
// no more than snapEpsilon (relative) is floating-point residue from undoing
// earlier zoom steps. It snaps to exactly the fit scale instead of being
// rejected. At the fit scale itself every zoom out is rejected.
func (t *Transform) Zoom(factor float64, pivot geometry.Point2D) bool {
	if factor <= 0 || math.IsNaN(factor) || math.IsInf(factor, 0) {
		return false
	}

	newScale := t.scale * factor
	if newScale < t.baseScale {
		if t.scale <= t.baseScale || t.baseScale-newScale > snapEpsilon*t.baseScale {
			return false
		}
		newScale = t.baseScale
	}

	before := t.ScreenToImage(pivot)
	t.scale = newScale
	after := t.ImageToScreen(before)

	t.offsetX += pivot.X - after.X
	t.offsetY += pivot.Y - after.Y
	t.Clamp()
	return true
}

// ZoomCenter zooms about the center of the viewport.
func (t *Transform) ZoomCenter(factor float64) bool {
	return t.Zoom(factor, t.Center())
}

// Clamp enforces the centering and coverage rules on both axes.
func (t *Transform) Clamp() {
	t.offsetX = clampAxis(t.offsetX, t.imageW*t.scale, float64(t.viewportW))
	t.offsetY = clampAxis(t.offsetY, t.imageH*t.scale, float64(t.viewportH))
}

// clampAxis centers an extent that fits inside the viewport, and otherwise
// keeps both viewport edges covered.
func clampAxis(offset, extent, viewport float64) float64 {
	if extent <= viewport {
		return (viewport - extent) / 2
	}
	if offset > 0 {
		offset = 0
	}
	if offset+extent < viewport {
		offset = viewport - extent
	}
	return offset
}
