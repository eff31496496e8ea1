// Package main provides the entry point for the Polygon Annotator editor.
package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"

	"polygon-annotator/internal/app"
	"polygon-annotator/internal/image"
	"polygon-annotator/internal/render"
	"polygon-annotator/internal/version"
	"polygon-annotator/ui/mainwindow"
	"polygon-annotator/ui/prefs"

	fyneapp "fyne.io/fyne/v2/app"
)

const appID = "io.github.polygon-annotator"

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	imageURL := flag.String("image_url", "", "Image to annotate (file path or http(s) URL)")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [-image_url <path|url>] [image]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	log.Printf("Starting Polygon Annotator %s", version.String())

	cfg, err := app.LoadConfig()
	if err != nil {
		log.Fatalf("Config: %v", err)
	}
	if cfg.Verbose {
		render.SetLogger(slog.Default())
	}

	fyneApp := fyneapp.NewWithID(appID)
	fyneApp.Settings().SetTheme(&app.AnnotatorTheme{})

	appPrefs := prefs.Load()
	win := mainwindow.New(fyneApp, cfg, appPrefs)

	// Handle command line arguments
	ref := *imageURL
	if ref == "" && flag.NArg() > 0 {
		ref = flag.Arg(0)
	}
	if ref == "" {
		ref = win.LastImage()
	}

	if ref == "" {
		win.ShowLoadError(fmt.Errorf("%w: pass -image_url or open one from the File menu", image.ErrNoImage))
	} else {
		log.Printf("Image: opening %s", ref)
		win.Open(ref)
	}

	win.ShowAndRun()
}
