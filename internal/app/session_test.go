package app

import (
	"context"
	"errors"
	goimage "image"
	"image/color"
	"image/draw"
	"testing"

	"polygon-annotator/internal/image"
	"polygon-annotator/internal/input"
	"polygon-annotator/internal/persist"
	"polygon-annotator/internal/render"
	"polygon-annotator/pkg/geometry"

	"gonum.org/v1/gonum/floats/scalar"
)

// fakeSaver holds each save until the test completes it.
type fakeSaver struct {
	payloads []persist.Payload
	deliver  func(func())
	done     func(persist.Result)
}

func (f *fakeSaver) SaveAsync(_ context.Context, p persist.Payload, deliver func(func()), done func(persist.Result)) {
	f.payloads = append(f.payloads, p)
	f.deliver = deliver
	f.done = done
}

func (f *fakeSaver) complete(r persist.Result) {
	done := f.done
	f.deliver(func() { done(r) })
}

func blackSource(w, h int) *image.Source {
	img := goimage.NewRGBA(goimage.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), &goimage.Uniform{C: color.Black}, goimage.Point{}, draw.Src)
	return &image.Source{Name: "cells.png", Format: "png", Image: img}
}

func newTestSession(t *testing.T, saver Saver) (*Session, *render.QueueScheduler) {
	t.Helper()
	sched := &render.QueueScheduler{}
	s, err := NewSession(blackSource(200, 100), saver, sched, 1.1)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	s.Resize(400, 400)
	return s, sched
}

func TestNewSessionRejectsMissingImage(t *testing.T) {
	sched := &render.QueueScheduler{}
	if _, err := NewSession(nil, nil, sched, 1.1); !errors.Is(err, image.ErrNoImage) {
		t.Errorf("nil source: err = %v", err)
	}
	empty := &image.Source{Name: "empty.png", Image: goimage.NewRGBA(goimage.Rect(0, 0, 0, 10))}
	if _, err := NewSession(empty, nil, sched, 1.1); !errors.Is(err, image.ErrEmptyImage) {
		t.Errorf("empty source: err = %v", err)
	}
}

func TestEndToEndClickCloseAndRender(t *testing.T) {
	s, _ := newTestSession(t, nil)

	v := s.View()
	if v.BaseScale() != 2 {
		t.Fatalf("baseScale = %v, want 2", v.BaseScale())
	}
	if off := v.Offset(); off.X != 0 || off.Y != 100 {
		t.Fatalf("offset = %v, want (0,100)", off)
	}

	r := s.Router()
	r.Click(geometry.Point2D{X: 100, Y: 150})
	pts := s.Points()
	if len(pts) != 1 || pts[0] != (geometry.Point2D{X: 50, Y: 25}) {
		t.Fatalf("points = %v, want [(50,25)]", pts)
	}

	r.Click(geometry.Point2D{X: 300, Y: 150}) // (150,25)
	r.Click(geometry.Point2D{X: 200, Y: 250}) // (100,75)
	if s.Closed() {
		t.Fatal("triangle without closing click reported closed")
	}

	open, err := render.NewRenderer().Render(s.Frame(0))
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if c := color.RGBAModel.Convert(open.At(200, 190)).(color.RGBA); c.R > 20 || c.B > 20 {
		t.Errorf("open contour filled: %v", c)
	}
	// Row 149 is the outer half of the stroke along screen (100,150)-(300,150).
	red, blue, gap := edgeRun(open, 110, 290, 149)
	if red != 181 || blue != 0 {
		t.Errorf("open edge: %d red, %d blue of 181 pixels, want solid red", red, blue)
	}

	r.Click(geometry.Point2D{X: 104, Y: 154}) // (52,27), within 10 of the anchor
	if !s.Closed() {
		t.Fatal("closing click did not close the contour")
	}

	closed, err := render.NewRenderer().Render(s.Frame(-3))
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	c := color.RGBAModel.Convert(closed.At(200, 190)).(color.RGBA)
	if c.R < 60 || c.G < 60 || c.B < 60 {
		t.Errorf("closed interior = %v, want translucent white fill", c)
	}
	red, blue, gap = edgeRun(closed, 110, 290, 149)
	if red != 0 || blue == 0 || gap == 0 {
		t.Errorf("closed edge: %d red, %d blue, %d gap pixels, want dashed blue", red, blue, gap)
	}
}

// edgeRun classifies the pixels of row y between x0 and x1 inclusive.
func edgeRun(img goimage.Image, x0, x1, y int) (red, blue, gap int) {
	for x := x0; x <= x1; x++ {
		c := color.RGBAModel.Convert(img.At(x, y)).(color.RGBA)
		switch {
		case c.R > 180 && c.G < 80 && c.B < 80:
			red++
		case c.B > 180 && c.R < 80 && c.G < 80:
			blue++
		case c.R < 40 && c.G < 40 && c.B < 40:
			gap++
		}
	}
	return red, blue, gap
}

func TestAddPointBeforeResizeIgnored(t *testing.T) {
	s, err := NewSession(blackSource(200, 100), nil, &render.QueueScheduler{}, 1.1)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	if s.AddPoint(geometry.Point2D{X: 50, Y: 25}) {
		t.Error("AddPoint applied before the view was fitted")
	}
	s.Router().Click(geometry.Point2D{X: 100, Y: 150})
	if len(s.Points()) != 0 {
		t.Errorf("points = %v, want none before Resize", s.Points())
	}

	s.Resize(400, 400)
	if !s.AddPoint(geometry.Point2D{X: 50, Y: 25}) {
		t.Error("AddPoint rejected after Resize")
	}
}

func TestOutOfImageClickIgnored(t *testing.T) {
	s, _ := newTestSession(t, nil)
	// Screen y=50 is in the letterbox above the image.
	if s.Router().Click(geometry.Point2D{X: 200, Y: 50}) {
		t.Error("click in letterbox added a point")
	}
	if len(s.Points()) != 0 {
		t.Errorf("points = %v", s.Points())
	}
}

func TestMoveModeDragPansAndKeepsPath(t *testing.T) {
	s, _ := newTestSession(t, nil)
	r := s.Router()
	r.Click(geometry.Point2D{X: 100, Y: 150})

	r.ZoomIn()
	r.ZoomIn()
	before := s.View().Offset()

	r.SetMode(input.ModeMove)
	r.Click(geometry.Point2D{X: 10, Y: 10})
	r.PointerDown(geometry.Point2D{X: 200, Y: 200})
	r.PointerMove(geometry.Point2D{X: 190, Y: 195})
	r.PointerUp()

	after := s.View().Offset()
	if after == before {
		t.Error("drag did not pan")
	}
	if len(s.Points()) != 1 {
		t.Errorf("move mode changed the path: %v", s.Points())
	}
}

func TestZoomOutStopsAtFit(t *testing.T) {
	s, _ := newTestSession(t, nil)
	r := s.Router()
	if r.ZoomOut() {
		t.Error("zoom out at fit scale applied")
	}
	r.ZoomIn()
	r.ZoomOut()
	if !scalar.EqualWithinAbs(s.View().Scale(), 2, 1e-9) {
		t.Errorf("scale = %v, want 2", s.View().Scale())
	}
	if s.Status().Zoom < 1-1e-9 {
		t.Errorf("zoom level %v below fit", s.Status().Zoom)
	}
}

func TestResizeResetsViewNotPath(t *testing.T) {
	s, _ := newTestSession(t, nil)
	s.Router().Click(geometry.Point2D{X: 100, Y: 150})
	s.Router().ZoomIn()

	s.Resize(0, 300) // ignored
	if w, h := s.View().Viewport(); w != 400 || h != 400 {
		t.Fatalf("zero-sized resize applied: %dx%d", w, h)
	}

	s.Resize(800, 200)
	if s.View().BaseScale() != 2 || s.View().Scale() != 2 {
		t.Errorf("scale after resize = %v", s.View().Scale())
	}
	if off := s.View().Offset(); off.X != 200 || off.Y != 0 {
		t.Errorf("offset after resize = %v, want (200,0)", off)
	}
	if len(s.Points()) != 1 {
		t.Error("resize touched the path")
	}
}

func TestSaveIsAsyncAndLeavesPathAlone(t *testing.T) {
	saver := &fakeSaver{}
	s, sched := newTestSession(t, saver)

	var finished []persist.Result
	s.On(EventSaveFinished, func(data interface{}) {
		finished = append(finished, data.(persist.Result))
	})

	r := s.Router()
	r.Click(geometry.Point2D{X: 100, Y: 150})
	r.Save()
	if !s.Saving() {
		t.Fatal("save not outstanding")
	}

	// Editing continues while the save is in flight.
	r.Click(geometry.Point2D{X: 300, Y: 150})

	if got := saver.payloads[0]; got.ImageName != "cells.png" || len(got.Annotations) != 1 {
		t.Errorf("payload = %+v", got)
	}

	saver.complete(persist.Result{Message: "Annotation saved"})
	if len(finished) != 0 {
		t.Fatal("result delivered off the scheduler")
	}
	sched.RunPending()

	if len(finished) != 1 || finished[0].Message != "Annotation saved" {
		t.Fatalf("finished = %+v", finished)
	}
	if s.Saving() {
		t.Error("still saving after delivery")
	}
	if len(s.Points()) != 2 {
		t.Errorf("save result changed the path: %v", s.Points())
	}
	if last := s.LastSave(); last == nil || last.Message != "Annotation saved" {
		t.Errorf("LastSave = %+v", last)
	}
}

func TestSaveFailureKeepsState(t *testing.T) {
	saver := &fakeSaver{}
	s, sched := newTestSession(t, saver)
	s.Router().Click(geometry.Point2D{X: 100, Y: 150})

	s.Save()
	saver.complete(persist.Result{Err: errors.New("connection refused")})
	sched.RunPending()

	if last := s.LastSave(); last == nil || last.Err == nil {
		t.Fatalf("LastSave = %+v", last)
	}
	if len(s.Points()) != 1 {
		t.Error("failed save changed the path")
	}
}

func TestSaveWithoutSaver(t *testing.T) {
	s, _ := newTestSession(t, nil)
	var got persist.Result
	s.On(EventSaveFinished, func(data interface{}) { got = data.(persist.Result) })
	s.Save()
	if !errors.Is(got.Err, ErrNoSaver) {
		t.Errorf("err = %v, want ErrNoSaver", got.Err)
	}
}

func TestSaveResultAfterCloseDropped(t *testing.T) {
	saver := &fakeSaver{}
	s, sched := newTestSession(t, saver)
	fired := false
	s.On(EventSaveFinished, func(interface{}) { fired = true })

	s.Save()
	s.Close()
	saver.complete(persist.Result{Message: "late"})
	sched.RunPending()
	if fired {
		t.Error("result delivered after Close")
	}
}

func TestModeChangeEvents(t *testing.T) {
	s, _ := newTestSession(t, nil)
	var changes []ModeChange
	s.On(EventModeChanged, func(data interface{}) { changes = append(changes, data.(ModeChange)) })

	s.Router().SetMode(input.ModeMove)
	if len(changes) != 1 || changes[0].Mode != input.ModeMove || changes[0].Cursor != input.CursorGrab {
		t.Errorf("changes = %+v", changes)
	}
	if s.Status().Mode != input.ModeMove {
		t.Errorf("status mode = %v", s.Status().Mode)
	}
}

func TestLoopDrivesFrames(t *testing.T) {
	s, sched := newTestSession(t, nil)
	var offsets []float64
	loop := render.NewLoop(sched, func(dash float64) {
		f := s.Frame(dash)
		offsets = append(offsets, f.DashOffset)
	})
	loop.Start()
	for i := 0; i < 3; i++ {
		sched.RunPending()
	}
	loop.Stop()
	sched.RunPending()

	if len(offsets) != 3 || offsets[2] != -3 {
		t.Errorf("offsets = %v", offsets)
	}
}

func TestStatusString(t *testing.T) {
	st := Status{Points: 4, Closed: true, Area: 2500, Zoom: 1.21, Mode: input.ModeAdd}
	want := "Add mode | 4 points (closed, area 2500.0 px²) | zoom 121%"
	if got := st.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
