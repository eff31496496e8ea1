// Package render draws the annotated image and drives the per-frame redraw.
package render

import (
	"fmt"
	"image"
	"image/color"
	"log/slog"

	"polygon-annotator/pkg/colorutil"
	"polygon-annotator/pkg/geometry"

	"github.com/gogpu/gg"
)

// Overlay styling. Sizes are in screen pixels and are divided by the view
// scale before drawing in image space.
const (
	LineWidth    = 2.0
	DashLength   = 10.0
	DashGap      = 5.0
	AnchorRadius = 6.0
	PointRadius  = 4.0
)

// Frame is everything one redraw needs. It is a snapshot: the renderer never
// writes back to the session it came from.
type Frame struct {
	Width, Height int

	Image image.Image              // Source raster, drawn at the image origin
	View  geometry.AffineTransform // Image-to-screen mapping

	Points     []geometry.Point2D // Annotation in image coordinates
	Closed     bool               // Whether Points form a closed contour
	DashOffset float64            // Marching-ants phase for the closed outline
}

// Scale returns the uniform view scale of the frame.
func (f Frame) Scale() float64 {
	if f.View.A == 0 {
		return 1
	}
	return f.View.A
}

// SetLogger routes gg's internal diagnostics to l. A nil logger silences
// them again.
func SetLogger(l *slog.Logger) {
	gg.SetLogger(l)
}

// Renderer rasterizes frames with gg's software renderer.
type Renderer struct {
	Background color.Color

	// Converted source image, reused while the session shows the same image.
	src image.Image
	buf *gg.ImageBuf
}

// NewRenderer returns a renderer with the default background.
func NewRenderer() *Renderer {
	return &Renderer{Background: colorutil.Background}
}

// Render draws f: clear, apply the view transform once, draw the image, then
// the annotation overlay and point markers.
func (r *Renderer) Render(f Frame) (image.Image, error) {
	if f.Width <= 0 || f.Height <= 0 {
		return image.NewRGBA(image.Rect(0, 0, 1, 1)), nil
	}

	dc := gg.NewContext(f.Width, f.Height)
	defer dc.Close()

	dc.ClearWithColor(gg.FromColor(r.Background))

	dc.Push()
	dc.SetTransform(toMatrix(f.View))

	if f.Image != nil {
		b := f.Image.Bounds()
		dc.DrawImageEx(r.imageBuf(f.Image), gg.DrawImageOptions{
			DstWidth:  float64(b.Dx()),
			DstHeight: float64(b.Dy()),
		})
	}

	err := drawOverlay(dc, f)
	dc.Pop()
	if err != nil {
		return dc.Image(), fmt.Errorf("render overlay: %w", err)
	}
	return dc.Image(), nil
}

func (r *Renderer) imageBuf(img image.Image) *gg.ImageBuf {
	if r.buf == nil || r.src != img {
		r.src = img
		r.buf = gg.ImageBufFromImage(img)
	}
	return r.buf
}

// drawOverlay draws the contour: a dashed blue outline under a translucent
// fill when closed, a plain red polyline when open.
func drawOverlay(dc *gg.Context, f Frame) error {
	pts := f.Points
	if len(pts) == 0 {
		return nil
	}
	scale := f.Scale()

	if f.Closed {
		// The fill goes over the outline and tints its inner half.
		tracePolyline(dc, pts)
		dc.ClosePath()
		dc.SetLineWidth(LineWidth / scale)
		dc.SetDash(DashLength/scale, DashGap/scale)
		dc.SetDashOffset(f.DashOffset)
		dc.SetColor(colorutil.Blue)
		if err := dc.Stroke(); err != nil {
			return err
		}
		dc.ClearDash()

		tracePolyline(dc, pts)
		dc.ClosePath()
		dc.SetColor(colorutil.PolygonFill)
		if err := dc.Fill(); err != nil {
			return err
		}
	} else if len(pts) > 1 {
		tracePolyline(dc, pts)
		dc.SetLineWidth(LineWidth / scale)
		dc.SetColor(colorutil.Red)
		if err := dc.Stroke(); err != nil {
			return err
		}
	}

	for i, p := range pts {
		radius, col := PointRadius, colorutil.Red
		if i == 0 {
			radius, col = AnchorRadius, colorutil.Blue
		}
		dc.DrawCircle(p.X, p.Y, radius/scale)
		dc.SetColor(col)
		if err := dc.Fill(); err != nil {
			return err
		}
	}
	return nil
}

func tracePolyline(dc *gg.Context, pts []geometry.Point2D) {
	dc.MoveTo(pts[0].X, pts[0].Y)
	for _, p := range pts[1:] {
		dc.LineTo(p.X, p.Y)
	}
}

func toMatrix(t geometry.AffineTransform) gg.Matrix {
	return gg.Matrix{
		A: t.A, B: t.B, C: t.TX,
		D: t.C, E: t.D, F: t.TY,
	}
}
