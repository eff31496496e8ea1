package view

import (
	"errors"
	"math/rand"
	"testing"

	"polygon-annotator/pkg/geometry"

	"gonum.org/v1/gonum/floats/scalar"
)

const tol = 1e-9

func fitted(t *testing.T, iw, ih, vw, vh int) *Transform {
	t.Helper()
	tr := New()
	if err := tr.FitToViewport(iw, ih, vw, vh); err != nil {
		t.Fatalf("FitToViewport: %v", err)
	}
	tr.Reset()
	return tr
}

// checkClamp asserts the centering/coverage rules on both axes.
func checkClamp(t *testing.T, tr *Transform) {
	t.Helper()
	vw, vh := tr.Viewport()
	size := tr.ImageSize()
	off := tr.Offset()

	axes := []struct {
		name     string
		offset   float64
		extent   float64
		viewport float64
	}{
		{"x", off.X, size.Width * tr.Scale(), float64(vw)},
		{"y", off.Y, size.Height * tr.Scale(), float64(vh)},
	}
	for _, a := range axes {
		if a.extent > a.viewport {
			if a.offset > tol {
				t.Errorf("%s: offset %v > 0 with extent %v > viewport %v", a.name, a.offset, a.extent, a.viewport)
			}
			if a.offset+a.extent < a.viewport-tol {
				t.Errorf("%s: far edge %v short of viewport %v", a.name, a.offset+a.extent, a.viewport)
			}
		} else {
			want := (a.viewport - a.extent) / 2
			if !scalar.EqualWithinAbs(a.offset, want, tol) {
				t.Errorf("%s: offset %v, want centered %v", a.name, a.offset, want)
			}
		}
	}
}

func TestFitAndReset(t *testing.T) {
	tr := fitted(t, 200, 100, 400, 400)

	if tr.BaseScale() != 2.0 {
		t.Fatalf("baseScale = %v, want 2", tr.BaseScale())
	}
	if tr.Scale() != 2.0 {
		t.Fatalf("scale = %v, want 2", tr.Scale())
	}
	if off := tr.Offset(); off.X != 0 || off.Y != 100 {
		t.Fatalf("offset = %v, want (0,100)", off)
	}

	got := tr.ScreenToImage(geometry.Point2D{X: 100, Y: 150})
	if got != (geometry.Point2D{X: 50, Y: 25}) {
		t.Fatalf("ScreenToImage(100,150) = %v, want (50,25)", got)
	}
}

func TestFitRejectsEmptyDimensions(t *testing.T) {
	tr := New()
	if err := tr.FitToViewport(0, 10, 100, 100); !errors.Is(err, ErrEmptyImage) {
		t.Errorf("err = %v, want ErrEmptyImage", err)
	}
	if err := tr.FitToViewport(10, 10, 100, 0); !errors.Is(err, ErrEmptyViewport) {
		t.Errorf("err = %v, want ErrEmptyViewport", err)
	}
	if tr.Ready() {
		t.Error("transform should not be ready after failed fits")
	}
}

func TestRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	tr := fitted(t, 640, 480, 800, 600)

	for i := 0; i < 200; i++ {
		// Wander through a mix of zooms and pans.
		switch i % 3 {
		case 0:
			tr.Zoom(1+rng.Float64(), geometry.Point2D{X: rng.Float64() * 800, Y: rng.Float64() * 600})
		case 1:
			tr.Pan(rng.Float64()*200-100, rng.Float64()*200-100)
		case 2:
			tr.Zoom(0.5+rng.Float64()*0.5, tr.Center())
		}

		p := geometry.Point2D{X: rng.Float64() * 640, Y: rng.Float64() * 480}
		back := tr.ScreenToImage(tr.ImageToScreen(p))
		if !scalar.EqualWithinAbs(back.X, p.X, 1e-6) || !scalar.EqualWithinAbs(back.Y, p.Y, 1e-6) {
			t.Fatalf("step %d: round trip %v -> %v", i, p, back)
		}
	}
}

func TestMatrixMatchesImageToScreen(t *testing.T) {
	tr := fitted(t, 300, 200, 500, 500)
	tr.ZoomCenter(1.7)
	tr.Pan(-40, 13)

	p := geometry.Point2D{X: 123.25, Y: 77.5}
	want := tr.ImageToScreen(p)
	got := tr.Matrix().Apply(p)
	if got.Distance(want) > tol {
		t.Errorf("Matrix().Apply = %v, want %v", got, want)
	}
}

func TestZoomFloor(t *testing.T) {
	tr := fitted(t, 200, 100, 400, 400)
	base := tr.BaseScale()

	if tr.Zoom(1/1.1, tr.Center()) {
		t.Error("zoom below fit scale should be rejected")
	}
	if tr.Scale() != base {
		t.Errorf("scale changed to %v after rejected zoom", tr.Scale())
	}

	rng := rand.New(rand.NewSource(11))
	for i := 0; i < 500; i++ {
		factor := 0.3 + rng.Float64()*1.5
		before := tr.Scale()
		applied := tr.Zoom(factor, geometry.Point2D{X: rng.Float64() * 400, Y: rng.Float64() * 400})
		if tr.Scale() < base {
			t.Fatalf("step %d: scale %v below base %v", i, tr.Scale(), base)
		}
		if !applied && tr.Scale() != before {
			t.Fatalf("step %d: rejected zoom changed scale", i)
		}
	}
}

func TestZoomInThenOutReturnsToFit(t *testing.T) {
	tr := fitted(t, 200, 100, 400, 400)
	for i := 0; i < 5; i++ {
		tr.ZoomCenter(1.1)
	}
	for i := 0; i < 5; i++ {
		if !tr.ZoomCenter(1 / 1.1) {
			t.Fatalf("zoom out %d rejected at scale %v", i, tr.Scale())
		}
	}
	if !scalar.EqualWithinAbs(tr.Scale(), tr.BaseScale(), 1e-9) {
		t.Errorf("scale = %v, want %v", tr.Scale(), tr.BaseScale())
	}
	if tr.Scale() < tr.BaseScale() {
		t.Errorf("scale %v dropped below base", tr.Scale())
	}
	checkClamp(t, tr)
}

func TestZoomSnapsOnlyRoundingResidue(t *testing.T) {
	tr := fitted(t, 200, 100, 400, 400)
	base := tr.BaseScale()

	// At the fit scale even a tiny zoom out is rejected.
	if tr.ZoomCenter(1 - 1e-12) {
		t.Error("zoom out at fit scale applied")
	}
	if tr.Scale() != base {
		t.Errorf("scale = %v, want %v", tr.Scale(), base)
	}

	tests := []struct {
		name    string
		factor  float64
		applied bool
		want    float64
	}{
		{"residue snaps to fit", 1 / (1 + 1e-10) * (1 - 1e-12), true, base},
		{"real zoom out below fit rejected", 1 / (1 + 1e-10) * 0.9, false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := fitted(t, 200, 100, 400, 400)
			if !tr.ZoomCenter(1 + 1e-10) {
				t.Fatal("zoom in rejected")
			}
			start := tr.Scale()
			if got := tr.ZoomCenter(tt.factor); got != tt.applied {
				t.Fatalf("ZoomCenter(%v) = %v, want %v", tt.factor, got, tt.applied)
			}
			if tt.applied && tr.Scale() != tt.want {
				t.Errorf("scale = %v, want exactly %v", tr.Scale(), tt.want)
			}
			if !tt.applied && tr.Scale() != start {
				t.Errorf("rejected zoom changed scale %v -> %v", start, tr.Scale())
			}
			checkClamp(t, tr)
		})
	}
}

func TestZoomKeepsPivotFixed(t *testing.T) {
	tr := fitted(t, 1000, 1000, 500, 500)
	tr.ZoomCenter(4)

	pivot := geometry.Point2D{X: 250, Y: 250}
	under := tr.ScreenToImage(pivot)
	tr.Zoom(1.25, pivot)

	if got := tr.ImageToScreen(under); got.Distance(pivot) > 1e-9 {
		t.Errorf("pivot drifted to %v", got)
	}
}

func TestZoomRejectsBadFactors(t *testing.T) {
	tr := fitted(t, 10, 10, 10, 10)
	for _, f := range []float64{0, -2} {
		if tr.Zoom(f, tr.Center()) {
			t.Errorf("Zoom(%v) applied", f)
		}
	}
}

func TestClampContainment(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	tr := fitted(t, 200, 100, 400, 400)
	checkClamp(t, tr)

	for i := 0; i < 300; i++ {
		if rng.Intn(2) == 0 {
			tr.Pan(rng.Float64()*1000-500, rng.Float64()*1000-500)
		} else {
			tr.Zoom(0.6+rng.Float64()*1.2, geometry.Point2D{X: rng.Float64() * 400, Y: rng.Float64() * 400})
		}
		checkClamp(t, tr)
	}
}

func TestPanAtFitScaleStaysCentered(t *testing.T) {
	tr := fitted(t, 200, 100, 400, 400)
	tr.Pan(35, -70)
	if off := tr.Offset(); off.X != 0 || off.Y != 100 {
		t.Errorf("offset = %v, want (0,100)", off)
	}
}

func TestPanClampsOverscaledAxis(t *testing.T) {
	tr := fitted(t, 200, 100, 400, 400)
	tr.ZoomCenter(3) // 1200x600 on screen

	tr.Pan(10000, 10000)
	if off := tr.Offset(); off.X != 0 || off.Y != 0 {
		t.Errorf("after large positive pan offset = %v, want (0,0)", off)
	}

	tr.Pan(-10000, -10000)
	off := tr.Offset()
	if !scalar.EqualWithinAbs(off.X, 400-1200, tol) || !scalar.EqualWithinAbs(off.Y, 400-600, tol) {
		t.Errorf("after large negative pan offset = %v, want (-800,-200)", off)
	}
}
