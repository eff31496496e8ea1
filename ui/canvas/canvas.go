// Package canvas provides the annotation viewport: a raster that shows the
// rendered session and feeds pointer events to its input router.
package canvas

import (
	"image"
	"log"

	"polygon-annotator/internal/app"
	"polygon-annotator/internal/input"
	"polygon-annotator/internal/render"
	"polygon-annotator/pkg/geometry"

	"fyne.io/fyne/v2"
	fynecanvas "fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/widget"
)

// AnnotationCanvas displays one session. Positions from fyne events are in
// device-independent units; the session works in raster pixels, so every
// position is scaled by the ratio between the two.
type AnnotationCanvas struct {
	widget.BaseWidget

	session  *app.Session
	renderer *render.Renderer
	raster   *fynecanvas.Raster
	loop     *render.Loop

	dashOffset float64
	pixelScale float32 // Raster pixels per fyne unit
	lastOutput image.Image
}

var (
	_ fyne.Tappable      = (*AnnotationCanvas)(nil)
	_ fyne.Draggable     = (*AnnotationCanvas)(nil)
	_ fyne.Scrollable    = (*AnnotationCanvas)(nil)
	_ desktop.Mouseable  = (*AnnotationCanvas)(nil)
	_ desktop.Cursorable = (*AnnotationCanvas)(nil)
)

// NewAnnotationCanvas creates a canvas for session. Call Start to begin
// redrawing.
func NewAnnotationCanvas(session *app.Session) *AnnotationCanvas {
	c := &AnnotationCanvas{
		session:    session,
		renderer:   render.NewRenderer(),
		pixelScale: 1,
	}
	c.raster = fynecanvas.NewRaster(c.draw)
	c.raster.ScaleMode = fynecanvas.ImageScalePixels
	c.raster.SetMinSize(fyne.NewSize(320, 240))

	c.ExtendBaseWidget(c)
	return c
}

// Start runs the redraw loop on sched until Stop.
func (c *AnnotationCanvas) Start(sched render.Scheduler) {
	if c.loop != nil {
		return
	}
	c.loop = render.NewLoop(sched, func(dashOffset float64) {
		c.dashOffset = dashOffset
		c.raster.Refresh()
	})
	c.loop.Start()
}

// Stop ends the redraw loop.
func (c *AnnotationCanvas) Stop() {
	if c.loop != nil {
		c.loop.Stop()
	}
}

// Frames returns how many frames the loop has produced.
func (c *AnnotationCanvas) Frames() uint64 {
	if c.loop == nil {
		return 0
	}
	return c.loop.Frames()
}

// RenderedOutput returns the last rendered frame.
func (c *AnnotationCanvas) RenderedOutput() image.Image {
	return c.lastOutput
}

func (c *AnnotationCanvas) CreateRenderer() fyne.WidgetRenderer {
	return widget.NewSimpleRenderer(c.raster)
}

func (c *AnnotationCanvas) MinSize() fyne.Size {
	return c.raster.MinSize()
}

// draw is the raster generator. w and h are in pixels; each call doubles as
// the viewport size report.
func (c *AnnotationCanvas) draw(w, h int) image.Image {
	if size := c.Size(); size.Width > 0 && w > 0 {
		c.pixelScale = float32(w) / size.Width
	}
	c.session.Resize(w, h)

	out, err := c.renderer.Render(c.session.Frame(c.dashOffset))
	if err != nil {
		log.Printf("Canvas: render: %v", err)
	}
	c.lastOutput = out
	return out
}

func (c *AnnotationCanvas) toScreen(pos fyne.Position) geometry.Point2D {
	return geometry.Point2D{
		X: float64(pos.X * c.pixelScale),
		Y: float64(pos.Y * c.pixelScale),
	}
}

// Tapped places a point in Add mode.
func (c *AnnotationCanvas) Tapped(ev *fyne.PointEvent) {
	// Reject taps reported outside the widget
	size := c.Size()
	if ev.Position.X < 0 || ev.Position.Y < 0 ||
		ev.Position.X > size.Width || ev.Position.Y > size.Height {
		return
	}
	if c.session.Router().Click(c.toScreen(ev.Position)) {
		c.raster.Refresh()
	}
}

// MouseDown starts a pan in Move mode.
func (c *AnnotationCanvas) MouseDown(ev *desktop.MouseEvent) {
	if ev.Button != desktop.MouseButtonPrimary {
		return
	}
	c.session.Router().PointerDown(c.toScreen(ev.Position))
}

// MouseUp ends a pan.
func (c *AnnotationCanvas) MouseUp(ev *desktop.MouseEvent) {
	c.session.Router().PointerUp()
}

// Dragged pans while the primary button is held in Move mode.
func (c *AnnotationCanvas) Dragged(ev *fyne.DragEvent) {
	r := c.session.Router()
	if !r.Dragging() {
		return
	}
	r.PointerMove(c.toScreen(ev.Position))
	c.raster.Refresh()
}

func (c *AnnotationCanvas) DragEnd() {
	c.session.Router().PointerUp()
}

// Scrolled zooms about the pointer.
func (c *AnnotationCanvas) Scrolled(ev *fyne.ScrollEvent) {
	if c.session.Router().Scroll(float64(ev.Scrolled.DY), c.toScreen(ev.Position)) {
		c.raster.Refresh()
	}
}

// Cursor shows crosshair in Add mode and a hand in Move mode.
func (c *AnnotationCanvas) Cursor() desktop.Cursor {
	return cursorFor(c.session.Router().Cursor())
}

func cursorFor(cur input.Cursor) desktop.Cursor {
	switch cur {
	case input.CursorGrab:
		return GrabCursor
	case input.CursorGrabbing:
		return GrabbingCursor
	default:
		return desktop.CrosshairCursor
	}
}
