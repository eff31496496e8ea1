// Package input turns pointer gestures and toolbar commands into edits of
// the annotation or the view, depending on the active mode.
package input

import (
	"polygon-annotator/pkg/geometry"
)

// DefaultZoomStep is the factor applied by ZoomIn (and inverted by ZoomOut).
const DefaultZoomStep = 1.1

// Mode selects which gesture the pointer performs.
type Mode int

const (
	ModeAdd  Mode = iota // Clicks place points
	ModeMove             // Drags pan the view
)

func (m Mode) String() string {
	switch m {
	case ModeAdd:
		return "Add"
	case ModeMove:
		return "Move"
	default:
		return "Unknown"
	}
}

// Cursor is the pointer affordance shown over the canvas.
type Cursor int

const (
	CursorCrosshair Cursor = iota // Add mode
	CursorGrab                    // Move mode, idle
	CursorGrabbing                // Move mode, dragging
)

func (c Cursor) String() string {
	switch c {
	case CursorCrosshair:
		return "crosshair"
	case CursorGrab:
		return "grab"
	case CursorGrabbing:
		return "grabbing"
	default:
		return "default"
	}
}

// Target is what the router drives. Screen coordinates are viewport pixels;
// image coordinates are source-image pixels.
type Target interface {
	ScreenToImage(p geometry.Point2D) geometry.Point2D
	AddPoint(p geometry.Point2D) bool
	Pan(dx, dy float64)
	Zoom(factor float64, pivot geometry.Point2D) bool
	ZoomCenter(factor float64) bool
	Undo() bool
	Save()
}

// DragState exists only between pointer-down and pointer-up in Move mode.
type DragState struct {
	Last geometry.Point2D // Last pointer position in screen coordinates
}

// Router is the mode state machine. It is driven from a single thread and
// every handler returns without blocking.
type Router struct {
	target   Target
	mode     Mode
	drag     *DragState
	cursor   Cursor
	zoomStep float64

	onChange func(Mode, Cursor)
}

// NewRouter returns a router in Add mode.
func NewRouter(target Target, zoomStep float64) *Router {
	if zoomStep <= 1 {
		zoomStep = DefaultZoomStep
	}
	return &Router{
		target:   target,
		mode:     ModeAdd,
		cursor:   CursorCrosshair,
		zoomStep: zoomStep,
	}
}

// OnChange registers a callback for mode and cursor changes.
func (r *Router) OnChange(callback func(Mode, Cursor)) {
	r.onChange = callback
}

// Mode returns the active mode.
func (r *Router) Mode() Mode {
	return r.mode
}

// Cursor returns the current pointer affordance.
func (r *Router) Cursor() Cursor {
	return r.cursor
}

// Dragging reports whether a drag is in progress.
func (r *Router) Dragging() bool {
	return r.drag != nil
}

// SetMode switches mode. A drag in progress is ended; the annotation and
// the view are left untouched.
func (r *Router) SetMode(m Mode) {
	r.drag = nil
	r.mode = m
	r.setCursor(r.idleCursor())
}

// Click places a point in Add mode.
func (r *Router) Click(screen geometry.Point2D) bool {
	if r.mode != ModeAdd {
		return false
	}
	return r.target.AddPoint(r.target.ScreenToImage(screen))
}

// PointerDown starts a drag in Move mode.
func (r *Router) PointerDown(screen geometry.Point2D) {
	if r.mode != ModeMove {
		return
	}
	r.drag = &DragState{Last: screen}
	r.setCursor(CursorGrabbing)
}

// PointerMove pans by the distance moved since the last pointer event.
func (r *Router) PointerMove(screen geometry.Point2D) {
	if r.drag == nil || r.mode != ModeMove {
		return
	}
	d := screen.Sub(r.drag.Last)
	r.drag.Last = screen
	if d.X == 0 && d.Y == 0 {
		return
	}
	r.target.Pan(d.X, d.Y)
}

// PointerUp ends a drag.
func (r *Router) PointerUp() {
	r.drag = nil
	r.setCursor(r.idleCursor())
}

// Scroll zooms about the pointer; positive steps zoom in.
func (r *Router) Scroll(steps float64, pivot geometry.Point2D) bool {
	switch {
	case steps > 0:
		return r.target.Zoom(r.zoomStep, pivot)
	case steps < 0:
		return r.target.Zoom(1/r.zoomStep, pivot)
	}
	return false
}

// ZoomIn zooms about the viewport center.
func (r *Router) ZoomIn() bool {
	return r.target.ZoomCenter(r.zoomStep)
}

// ZoomOut zooms out about the viewport center, never past the fit scale.
func (r *Router) ZoomOut() bool {
	return r.target.ZoomCenter(1 / r.zoomStep)
}

// Undo removes the last point.
func (r *Router) Undo() bool {
	return r.target.Undo()
}

// Save hands the annotation to the persistence endpoint.
func (r *Router) Save() {
	r.target.Save()
}

func (r *Router) idleCursor() Cursor {
	if r.mode == ModeMove {
		return CursorGrab
	}
	return CursorCrosshair
}

func (r *Router) setCursor(c Cursor) {
	r.cursor = c
	if r.onChange != nil {
		r.onChange(r.mode, c)
	}
}
