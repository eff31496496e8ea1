// Package export writes an annotated image to a PDF page.
package export

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"

	"github.com/jung-kurt/gofpdf"

	"polygon-annotator/internal/annotation"
	"polygon-annotator/internal/render"
	"polygon-annotator/internal/version"
	"polygon-annotator/pkg/colorutil"
	"polygon-annotator/pkg/geometry"
)

var ErrNoImage = errors.New("export: no image")

// Document is what gets exported: one image and its contour in image
// coordinates. The page is sized so one image pixel is one point.
type Document struct {
	Title  string
	Image  image.Image
	Points []geometry.Point2D
}

// WritePDF writes d as a single-page PDF to w. Closure is decided the same
// way the editor decides it.
func WritePDF(w io.Writer, d Document) error {
	if d.Image == nil {
		return ErrNoImage
	}
	b := d.Image.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return ErrNoImage
	}
	width, height := float64(b.Dx()), float64(b.Dy())

	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "pt",
		Size:           gofpdf.SizeType{Wd: width, Ht: height},
	})
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetTitle(d.Title, true)
	pdf.SetCreator("polygon-annotator "+version.Version, true)
	pdf.AddPage()

	var buf bytes.Buffer
	if err := png.Encode(&buf, d.Image); err != nil {
		return fmt.Errorf("encode image: %w", err)
	}
	opts := gofpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("source", opts, &buf)
	pdf.ImageOptions("source", 0, 0, width, height, false, opts, 0, "")

	drawContour(pdf, d.Points)

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

// WritePDFFile writes d to path.
func WritePDFFile(path string, d Document) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WritePDF(f, d); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func drawContour(pdf *gofpdf.Fpdf, pts []geometry.Point2D) {
	if len(pts) == 0 {
		return
	}
	poly := make([]gofpdf.PointType, len(pts))
	for i, p := range pts {
		poly[i] = gofpdf.PointType{X: p.X, Y: p.Y}
	}

	pdf.SetLineWidth(render.LineWidth)
	pdf.SetLineJoinStyle("round")
	pdf.SetLineCapStyle("round")

	if annotation.IsClosed(pts) {
		fill := colorutil.PolygonFill
		pdf.SetFillColor(int(fill.R), int(fill.G), int(fill.B))
		pdf.SetAlpha(float64(fill.A)/255, "Normal")
		pdf.Polygon(poly, "F")
		pdf.SetAlpha(1, "Normal")

		setDraw(pdf, colorutil.Blue)
		pdf.SetDashPattern([]float64{render.DashLength, render.DashGap}, 0)
		pdf.Polygon(poly, "D")
		pdf.SetDashPattern([]float64{}, 0)
	} else if len(poly) > 1 {
		setDraw(pdf, colorutil.Red)
		for i := 1; i < len(poly); i++ {
			pdf.Line(poly[i-1].X, poly[i-1].Y, poly[i].X, poly[i].Y)
		}
	}

	for i, p := range poly {
		c, r := colorutil.Red, render.PointRadius
		if i == 0 {
			c, r = colorutil.Blue, render.AnchorRadius
		}
		pdf.SetFillColor(int(c.R), int(c.G), int(c.B))
		pdf.Circle(p.X, p.Y, r, "F")
	}
}

func setDraw(pdf *gofpdf.Fpdf, c color.RGBA) {
	pdf.SetDrawColor(int(c.R), int(c.G), int(c.B))
}
