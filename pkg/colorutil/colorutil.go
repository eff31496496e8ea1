// Package colorutil provides shared colors for the annotation overlay.
package colorutil

import (
	"image/color"
)

// Common overlay colors used throughout the application.
var (
	Black = color.RGBA{R: 0, G: 0, B: 0, A: 255}
	White = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	Red   = color.RGBA{R: 255, G: 0, B: 0, A: 255}
	Blue  = color.RGBA{R: 0, G: 0, B: 255, A: 255}

	// Background fills the viewport outside the image.
	Background = color.RGBA{R: 0x20, G: 0x20, B: 0x20, A: 255}

	// PolygonFill is the translucent white used for closed contours.
	PolygonFill = WithAlpha(White, 0.5)
)

// WithAlpha returns c as a non-premultiplied color with the given opacity (0-1).
func WithAlpha(c color.RGBA, alpha float64) color.NRGBA {
	if alpha < 0 {
		alpha = 0
	}
	if alpha > 1 {
		alpha = 1
	}
	return color.NRGBA{R: c.R, G: c.G, B: c.B, A: uint8(alpha*255 + 0.5)}
}
