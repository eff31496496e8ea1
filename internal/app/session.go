// Package app ties the image, view, annotation, input and persistence
// components into one editing session, and holds the editor configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"

	"polygon-annotator/internal/annotation"
	"polygon-annotator/internal/image"
	"polygon-annotator/internal/input"
	"polygon-annotator/internal/persist"
	"polygon-annotator/internal/render"
	"polygon-annotator/internal/view"
	"polygon-annotator/pkg/geometry"
)

// ErrNoSaver is reported when Save is pressed without a save endpoint.
var ErrNoSaver = errors.New("no save endpoint configured")

// Saver posts a snapshot of the annotation without blocking the caller.
// done must be invoked through deliver.
type Saver interface {
	SaveAsync(ctx context.Context, p persist.Payload, deliver func(func()), done func(persist.Result))
}

// EventType identifies different session events.
type EventType int

const (
	EventPathChanged  EventType = iota // Point added or removed; data is Status
	EventViewChanged                   // Pan, zoom or resize; data is Status
	EventModeChanged                   // Mode or cursor; data is ModeChange
	EventSaveStarted                   // data is persist.Payload
	EventSaveFinished                  // data is persist.Result
)

// EventListener is called when an event occurs.
type EventListener func(data interface{})

// ModeChange is the payload of EventModeChanged.
type ModeChange struct {
	Mode   input.Mode
	Cursor input.Cursor
}

// Session is one image being annotated. It owns the image, the view
// transform, the annotation path and the input router.
//
// A Session is not safe for concurrent use. Every call, including frame
// ticks and save results, must come from the thread that drives sched.
type Session struct {
	source *image.Source
	view   *view.Transform
	path   *annotation.Path
	router *input.Router

	saver Saver
	sched render.Scheduler

	ctx    context.Context
	cancel context.CancelFunc

	pendingSaves int
	lastSave     *persist.Result

	listeners map[EventType][]EventListener
}

// NewSession starts a session over src. The view is not usable until the
// first Resize reports a viewport size.
func NewSession(src *image.Source, saver Saver, sched render.Scheduler, zoomStep float64) (*Session, error) {
	if src == nil || src.Image == nil {
		return nil, image.ErrNoImage
	}
	if src.Width() <= 0 || src.Height() <= 0 {
		return nil, fmt.Errorf("%s: %w", src.Name, image.ErrEmptyImage)
	}
	if sched == nil {
		return nil, errors.New("session needs a scheduler")
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		source:    src,
		view:      view.New(),
		path:      annotation.New(),
		saver:     saver,
		sched:     sched,
		ctx:       ctx,
		cancel:    cancel,
		listeners: make(map[EventType][]EventListener),
	}
	s.router = input.NewRouter(s, zoomStep)
	s.router.OnChange(func(m input.Mode, c input.Cursor) {
		s.Emit(EventModeChanged, ModeChange{Mode: m, Cursor: c})
	})

	log.Printf("Session: opened %s (%dx%d)", src.Name, src.Width(), src.Height())
	return s, nil
}

// Close cancels outstanding saves. Results that still arrive are ignored.
func (s *Session) Close() {
	s.cancel()
}

// On registers an event listener for the specified event type.
func (s *Session) On(event EventType, listener EventListener) {
	s.listeners[event] = append(s.listeners[event], listener)
}

// Emit triggers all listeners for the specified event type.
func (s *Session) Emit(event EventType, data interface{}) {
	for _, listener := range s.listeners[event] {
		listener(data)
	}
}

// Source returns the image being annotated.
func (s *Session) Source() *image.Source {
	return s.source
}

// Router returns the input router; the canvas and toolbar feed it.
func (s *Session) Router() *input.Router {
	return s.router
}

// View returns the view transform. Callers must not mutate it directly.
func (s *Session) View() *view.Transform {
	return s.view
}

// Points returns a snapshot of the annotation.
func (s *Session) Points() []geometry.Point2D {
	return s.path.Points()
}

// Closed reports whether the annotation currently forms a closed contour.
func (s *Session) Closed() bool {
	return s.path.IsClosed()
}

// Resize refits the view to a new viewport size and discards any zoom and
// pan. Zero-sized reports are ignored. The annotation is not touched.
func (s *Session) Resize(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	if w, h := s.view.Viewport(); s.view.Ready() && w == width && h == height {
		return
	}
	if err := s.view.FitToViewport(s.source.Width(), s.source.Height(), width, height); err != nil {
		log.Printf("Session: resize %dx%d: %v", width, height, err)
		return
	}
	s.view.Reset()
	s.Emit(EventViewChanged, s.Status())
}

// Frame snapshots everything the renderer needs for one redraw.
func (s *Session) Frame(dashOffset float64) render.Frame {
	w, h := s.view.Viewport()
	return render.Frame{
		Width:      w,
		Height:     h,
		Image:      s.source.Image,
		View:       s.view.Matrix(),
		Points:     s.path.Points(),
		Closed:     s.path.IsClosed(),
		DashOffset: dashOffset,
	}
}

// ScreenToImage converts a viewport position to image coordinates.
func (s *Session) ScreenToImage(p geometry.Point2D) geometry.Point2D {
	return s.view.ScreenToImage(p)
}

// AddPoint appends p (image coordinates) when it lies on the image. Before
// the first Resize there is no view to map clicks through, so it does nothing.
func (s *Session) AddPoint(p geometry.Point2D) bool {
	if !s.view.Ready() {
		return false
	}
	wasClosed := s.path.IsClosed()
	if !s.path.Add(p, s.source.Size()) {
		return false
	}
	if closed := s.path.IsClosed(); closed && !wasClosed {
		log.Printf("Session: contour closed with %d points", s.path.Len())
	}
	s.Emit(EventPathChanged, s.Status())
	return true
}

// Undo removes the last point.
func (s *Session) Undo() bool {
	if !s.path.Undo() {
		return false
	}
	s.Emit(EventPathChanged, s.Status())
	return true
}

// Pan moves the view by a screen-space delta.
func (s *Session) Pan(dx, dy float64) {
	if !s.view.Ready() {
		return
	}
	s.view.Pan(dx, dy)
	s.Emit(EventViewChanged, s.Status())
}

// Zoom zooms about a screen position.
func (s *Session) Zoom(factor float64, pivot geometry.Point2D) bool {
	if !s.view.Ready() || !s.view.Zoom(factor, pivot) {
		return false
	}
	s.Emit(EventViewChanged, s.Status())
	return true
}

// ZoomCenter zooms about the viewport center.
func (s *Session) ZoomCenter(factor float64) bool {
	if !s.view.Ready() || !s.view.ZoomCenter(factor) {
		return false
	}
	s.Emit(EventViewChanged, s.Status())
	return true
}

// Save posts a snapshot of the current points. It returns immediately; the
// result arrives later as EventSaveFinished and never changes the path.
func (s *Session) Save() {
	payload := persist.Payload{
		ImageName:   s.source.Name,
		Annotations: s.path.Points(),
	}
	if s.saver == nil {
		s.finishSave(persist.Result{Err: ErrNoSaver})
		return
	}

	s.pendingSaves++
	s.Emit(EventSaveStarted, payload)
	s.saver.SaveAsync(s.ctx, payload, s.sched.Schedule, func(r persist.Result) {
		s.pendingSaves--
		if s.ctx.Err() != nil {
			return
		}
		s.finishSave(r)
	})
}

func (s *Session) finishSave(r persist.Result) {
	s.lastSave = &r
	if r.Err != nil {
		log.Printf("Session: save failed: %v", r.Err)
	}
	s.Emit(EventSaveFinished, r)
}

// LastSave returns the most recent save result, or nil before the first one.
func (s *Session) LastSave() *persist.Result {
	return s.lastSave
}

// SetSaver switches the save endpoint for later saves.
func (s *Session) SetSaver(saver Saver) {
	s.saver = saver
}

// Saving reports whether a save is outstanding.
func (s *Session) Saving() bool {
	return s.pendingSaves > 0
}

// Status summarizes the session for the status bar.
type Status struct {
	ImageName string
	Points    int
	Closed    bool
	Area      float64 // Image-space area; zero while open
	Perimeter float64
	Zoom      float64 // Relative to the fit scale
	Mode      input.Mode
	Saving    bool
}

// Status returns the current summary.
func (s *Session) Status() Status {
	return Status{
		ImageName: s.source.Name,
		Points:    s.path.Len(),
		Closed:    s.path.IsClosed(),
		Area:      s.path.Area(),
		Perimeter: s.path.Perimeter(),
		Zoom:      s.view.ZoomLevel(),
		Mode:      s.router.Mode(),
		Saving:    s.Saving(),
	}
}

func (st Status) String() string {
	shape := "open"
	if st.Closed {
		shape = fmt.Sprintf("closed, area %.1f px²", st.Area)
	}
	text := fmt.Sprintf("%s mode | %d points (%s) | zoom %.0f%%", st.Mode, st.Points, shape, st.Zoom*100)
	if st.Saving {
		text += " | saving..."
	}
	return text
}
