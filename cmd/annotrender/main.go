// Command annotrender draws a saved annotation over its image without a
// window and writes the result as PNG or PDF.
package main

import (
	"context"
	"flag"
	"fmt"
	goimage "image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"time"

	"polygon-annotator/internal/annotation"
	"polygon-annotator/internal/export"
	"polygon-annotator/internal/image"
	"polygon-annotator/internal/project"
	"polygon-annotator/internal/render"
	"polygon-annotator/internal/view"
)

func main() {
	annotPath := flag.String("annotations", "", "Annotation document (.annot.json)")
	imageRef := flag.String("image", "", "Image path or URL (default: the document's image_name)")
	outPath := flag.String("out", "", "Output file (.png or .pdf)")
	width := flag.Int("width", 0, "Viewport width for PNG output (default: image width)")
	height := flag.Int("height", 0, "Viewport height for PNG output (default: image height)")
	dash := flag.Float64("dash", 0, "Dash offset of the closed outline")
	flag.Parse()

	if *annotPath == "" || *outPath == "" {
		fmt.Println("Usage: annotrender -annotations <file> -out <file.png|file.pdf> [-image <ref>] [-width N -height N]")
		os.Exit(1)
	}

	doc, err := project.Load(*annotPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load annotations: %v\n", err)
		os.Exit(1)
	}

	ref := *imageRef
	if ref == "" {
		ref = doc.ImageName
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	src, err := image.Load(ctx, ref)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load image: %v\n", err)
		os.Exit(1)
	}

	path := doc.Path()
	fmt.Printf("Loaded %s image: %dx%d pixels\n", src.Format, src.Width(), src.Height())
	fmt.Printf("Annotation: %d points, closed=%v", path.Len(), path.IsClosed())
	if path.IsClosed() {
		fmt.Printf(", area=%.1f px², perimeter=%.1f px", path.Area(), path.Perimeter())
	}
	fmt.Println()

	switch strings.ToLower(filepath.Ext(*outPath)) {
	case ".pdf":
		err = export.WritePDFFile(*outPath, export.Document{
			Title:  doc.ImageName,
			Image:  src.Image,
			Points: path.Points(),
		})
	case ".png":
		err = writePNG(*outPath, src, path, *width, *height, *dash)
	default:
		err = fmt.Errorf("unsupported output type %q", filepath.Ext(*outPath))
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write %s: %v\n", *outPath, err)
		os.Exit(1)
	}
	fmt.Printf("Wrote %s\n", *outPath)
}

// writePNG renders one frame the way the editor shows it at fit scale.
func writePNG(out string, src *image.Source, path *annotation.Path, w, h int, dash float64) error {
	if w <= 0 {
		w = src.Width()
	}
	if h <= 0 {
		h = src.Height()
	}

	v := view.New()
	if err := v.FitToViewport(src.Width(), src.Height(), w, h); err != nil {
		return err
	}
	v.Reset()

	frame := render.Frame{
		Width:      w,
		Height:     h,
		Image:      src.Image,
		View:       v.Matrix(),
		Points:     path.Points(),
		Closed:     path.IsClosed(),
		DashOffset: dash,
	}
	img, err := render.NewRenderer().Render(frame)
	if err != nil {
		return err
	}
	return savePNG(out, img)
}

func savePNG(path string, img goimage.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
