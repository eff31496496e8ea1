// Package mainwindow provides the main application window.
package mainwindow

import (
	"context"
	"errors"
	"fmt"
	"image/png"
	"log"
	"os"
	"path/filepath"
	"strings"

	"polygon-annotator/internal/app"
	"polygon-annotator/internal/export"
	"polygon-annotator/internal/image"
	"polygon-annotator/internal/input"
	"polygon-annotator/internal/persist"
	"polygon-annotator/internal/render"
	"polygon-annotator/internal/version"
	"polygon-annotator/ui/canvas"
	"polygon-annotator/ui/prefs"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/widget"
)

const (
	prefKeyLastDir   = "lastDirectory"
	prefKeyLastImage = "lastImage"
	prefKeySaveURL   = "saveURL"
	prefKeyWidth     = "windowWidth"
	prefKeyHeight    = "windowHeight"
)

const appTitle = "Polygon Annotator"

// MainWindow is the primary application window.
type MainWindow struct {
	fyne.Window
	app   fyne.App
	cfg   *app.Config
	prefs *prefs.Prefs

	sched   *render.FrameScheduler
	client  *persist.Client
	session *app.Session
	canvas  *canvas.AnnotationCanvas

	addBtn    *widget.Button
	moveBtn   *widget.Button
	statusBar *widget.Label
	body      *fyne.Container

	cancelLoad context.CancelFunc
}

// New creates a new main window. Frames and save results are delivered on
// the fyne main goroutine.
func New(fyneApp fyne.App, cfg *app.Config, p *prefs.Prefs) *MainWindow {
	win := fyneApp.NewWindow(appTitle)

	saveURL := cfg.SaveURL
	if override := p.String(prefKeySaveURL); override != "" {
		saveURL = override
	}

	mw := &MainWindow{
		Window: win,
		app:    fyneApp,
		cfg:    cfg,
		prefs:  p,
		sched:  render.NewFrameScheduler(cfg.FrameRate, fyne.Do),
		client: persist.NewClient(saveURL, cfg.SaveTimeout),
	}

	mw.setupUI()
	mw.setupMenus()
	mw.setupShortcuts()

	mw.Resize(fyne.NewSize(
		float32(p.Int(prefKeyWidth, 1024)),
		float32(p.Int(prefKeyHeight, 768)),
	))
	mw.SetOnClosed(mw.onClosed)

	mw.sched.Start()
	return mw
}

// setupUI creates the main UI layout.
func (mw *MainWindow) setupUI() {
	mw.statusBar = widget.NewLabel("No image loaded")
	mw.body = container.NewStack(widget.NewLabelWithStyle(
		"Open an image to start annotating",
		fyne.TextAlignCenter, fyne.TextStyle{Italic: true},
	))

	content := container.NewBorder(
		mw.createToolbar(),                // top
		container.NewPadded(mw.statusBar), // bottom
		nil,                               // left
		nil,                               // right
		mw.body,                           // center
	)
	mw.SetContent(content)
}

// createToolbar creates the command buttons.
func (mw *MainWindow) createToolbar() fyne.CanvasObject {
	mw.addBtn = widget.NewButton("Add Points", func() { mw.setMode(input.ModeAdd) })
	mw.moveBtn = widget.NewButton("Move", func() { mw.setMode(input.ModeMove) })
	mw.addBtn.Importance = widget.HighImportance

	return container.NewHBox(
		mw.addBtn,
		mw.moveBtn,
		widget.NewSeparator(),
		widget.NewButton("Zoom +", mw.onZoomIn),
		widget.NewButton("Zoom −", mw.onZoomOut),
		widget.NewSeparator(),
		widget.NewButton("Undo", mw.onUndo),
		widget.NewButton("Save", mw.onSave),
	)
}

// setupMenus creates the application menus.
func (mw *MainWindow) setupMenus() {
	fileMenu := fyne.NewMenu("File",
		fyne.NewMenuItem("Open Image...", mw.onOpenImage),
		fyne.NewMenuItem("Open Image URL...", mw.onOpenURL),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Save Annotation", mw.onSave),
		fyne.NewMenuItem("Set Save Endpoint...", mw.onSetEndpoint),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Export PNG...", func() { mw.onExport(".png") }),
		fyne.NewMenuItem("Export PDF...", func() { mw.onExport(".pdf") }),
	)

	editMenu := fyne.NewMenu("Edit",
		fyne.NewMenuItem("Undo", mw.onUndo),
	)

	viewMenu := fyne.NewMenu("View",
		fyne.NewMenuItem("Add Points", func() { mw.setMode(input.ModeAdd) }),
		fyne.NewMenuItem("Move", func() { mw.setMode(input.ModeMove) }),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Zoom In", mw.onZoomIn),
		fyne.NewMenuItem("Zoom Out", mw.onZoomOut),
	)

	helpMenu := fyne.NewMenu("Help",
		fyne.NewMenuItem("About", mw.onAbout),
	)

	mw.SetMainMenu(fyne.NewMainMenu(fileMenu, editMenu, viewMenu, helpMenu))
}

func (mw *MainWindow) setupShortcuts() {
	shortcut := func(key fyne.KeyName, fn func()) {
		mw.Canvas().AddShortcut(&desktop.CustomShortcut{
			KeyName:  key,
			Modifier: fyne.KeyModifierShortcutDefault,
		}, func(fyne.Shortcut) { fn() })
	}
	shortcut(fyne.KeyZ, mw.onUndo)
	shortcut(fyne.KeyS, mw.onSave)
	shortcut(fyne.KeyO, mw.onOpenImage)
	shortcut(fyne.KeyEqual, mw.onZoomIn)
	shortcut(fyne.KeyMinus, mw.onZoomOut)
}

// Open loads ref (a path or URL) in the background and starts a session
// on it. A failure leaves the window without a canvas and shows an error.
func (mw *MainWindow) Open(ref string) {
	if mw.cancelLoad != nil {
		mw.cancelLoad()
	}
	ctx, cancel := context.WithCancel(context.Background())
	mw.cancelLoad = cancel

	mw.updateStatus("Loading " + ref + "...")
	go func() {
		src, err := image.Load(ctx, ref)
		if ctx.Err() != nil {
			return
		}
		fyne.Do(func() {
			if err != nil {
				log.Printf("Image: %v", err)
				mw.updateStatus("Failed to load " + ref)
				dialog.ShowError(fmt.Errorf("cannot open %s: %w", ref, err), mw.Window)
				return
			}
			mw.startSession(src)
		})
	}()
}

// LastImage returns the image opened in the previous run, if any.
func (mw *MainWindow) LastImage() string {
	return mw.prefs.String(prefKeyLastImage)
}

// ShowLoadError reports that no image could be opened.
func (mw *MainWindow) ShowLoadError(err error) {
	mw.updateStatus(err.Error())
	dialog.ShowError(err, mw.Window)
}

func (mw *MainWindow) startSession(src *image.Source) {
	mw.endSession()

	s, err := app.NewSession(src, mw.client, mw.sched, mw.cfg.ZoomStep)
	if err != nil {
		mw.ShowLoadError(err)
		return
	}
	mw.session = s
	mw.canvas = canvas.NewAnnotationCanvas(s)
	mw.setupEventHandlers()

	mw.body.Objects = []fyne.CanvasObject{mw.canvas}
	mw.body.Refresh()
	mw.canvas.Start(mw.sched)

	if !image.IsRemote(src.Name) {
		mw.prefs.SetString(prefKeyLastDir, filepath.Dir(src.Name))
	}
	mw.prefs.SetString(prefKeyLastImage, src.Name)

	mw.SetTitle(appTitle + " - " + displayName(src.Name))
	mw.syncModeButtons(input.ModeAdd)
	mw.updateStatus(s.Status().String())
}

func (mw *MainWindow) endSession() {
	if mw.canvas != nil {
		mw.canvas.Stop()
		mw.canvas = nil
	}
	if mw.session != nil {
		mw.session.Close()
		mw.session = nil
	}
}

// setupEventHandlers registers for session events.
func (mw *MainWindow) setupEventHandlers() {
	s := mw.session
	status := func(interface{}) { mw.updateStatus(s.Status().String()) }

	s.On(app.EventPathChanged, status)
	s.On(app.EventViewChanged, status)
	s.On(app.EventModeChanged, func(data interface{}) {
		if mc, ok := data.(app.ModeChange); ok {
			mw.syncModeButtons(mc.Mode)
		}
		status(data)
	})
	s.On(app.EventSaveStarted, status)
	s.On(app.EventSaveFinished, func(data interface{}) {
		res, ok := data.(persist.Result)
		if !ok {
			return
		}
		if res.Err != nil {
			mw.updateStatus("Save failed: " + res.Err.Error())
			dialog.ShowError(res.Err, mw.Window)
			return
		}
		mw.updateStatus(s.Status().String() + " | " + res.Message)
		dialog.ShowInformation("Save", res.Message, mw.Window)
	})
}

// updateStatus updates the status bar text.
func (mw *MainWindow) updateStatus(text string) {
	mw.statusBar.SetText(text)
}

func (mw *MainWindow) syncModeButtons(m input.Mode) {
	mw.addBtn.Importance = widget.MediumImportance
	mw.moveBtn.Importance = widget.MediumImportance
	if m == input.ModeMove {
		mw.moveBtn.Importance = widget.HighImportance
	} else {
		mw.addBtn.Importance = widget.HighImportance
	}
	mw.addBtn.Refresh()
	mw.moveBtn.Refresh()
}

// getLastDir returns the last used directory as a ListableURI, or nil.
func (mw *MainWindow) getLastDir() fyne.ListableURI {
	path := mw.prefs.String(prefKeyLastDir)
	if path == "" {
		return nil
	}
	listable, err := storage.ListerForURI(storage.NewFileURI(path))
	if err != nil {
		return nil
	}
	return listable
}

// Command handlers. All of them are no-ops until an image is loaded.

func (mw *MainWindow) setMode(m input.Mode) {
	if mw.session != nil {
		mw.session.Router().SetMode(m)
	}
}

func (mw *MainWindow) onZoomIn() {
	if mw.session != nil {
		mw.session.Router().ZoomIn()
	}
}

func (mw *MainWindow) onZoomOut() {
	if mw.session != nil {
		mw.session.Router().ZoomOut()
	}
}

func (mw *MainWindow) onUndo() {
	if mw.session != nil {
		mw.session.Router().Undo()
	}
}

func (mw *MainWindow) onSave() {
	if mw.session != nil {
		mw.session.Router().Save()
	}
}

func (mw *MainWindow) onOpenImage() {
	fd := dialog.NewFileOpen(func(reader fyne.URIReadCloser, err error) {
		if err != nil || reader == nil {
			return
		}
		reader.Close()
		mw.Open(reader.URI().Path())
	}, mw.Window)
	fd.SetFilter(storage.NewExtensionFileFilter(image.SupportedFormats()))
	if loc := mw.getLastDir(); loc != nil {
		fd.SetLocation(loc)
	}
	fd.Show()
}

func (mw *MainWindow) onOpenURL() {
	entry := widget.NewEntry()
	entry.SetPlaceHolder("https://example.com/image.png")
	dialog.ShowForm("Open Image URL", "Open", "Cancel",
		[]*widget.FormItem{widget.NewFormItem("URL", entry)},
		func(ok bool) {
			if ok && strings.TrimSpace(entry.Text) != "" {
				mw.Open(strings.TrimSpace(entry.Text))
			}
		}, mw.Window)
}

func (mw *MainWindow) onSetEndpoint() {
	entry := widget.NewEntry()
	entry.SetText(mw.client.BaseURL())
	dialog.ShowForm("Save Endpoint", "Set", "Cancel",
		[]*widget.FormItem{widget.NewFormItem("Base URL", entry)},
		func(ok bool) {
			if !ok {
				return
			}
			url := strings.TrimSpace(entry.Text)
			mw.prefs.SetString(prefKeySaveURL, url)
			if url == "" {
				url = mw.cfg.SaveURL
			}
			mw.client = persist.NewClient(url, mw.cfg.SaveTimeout)
			if mw.session != nil {
				mw.session.SetSaver(mw.client)
			}
			mw.updateStatus("Saving to " + mw.client.BaseURL())
		}, mw.Window)
}

func (mw *MainWindow) onExport(ext string) {
	if mw.session == nil {
		return
	}
	fd := dialog.NewFileSave(func(writer fyne.URIWriteCloser, err error) {
		if err != nil || writer == nil {
			return
		}
		writer.Close()
		path := writer.URI().Path()
		if filepath.Ext(path) != ext {
			path += ext
		}
		if err := mw.exportTo(path); err != nil {
			dialog.ShowError(err, mw.Window)
			return
		}
		mw.updateStatus("Exported " + path)
	}, mw.Window)
	fd.SetFileName(strings.TrimSuffix(displayName(mw.session.Source().Name), filepath.Ext(mw.session.Source().Name)) + ext)
	if loc := mw.getLastDir(); loc != nil {
		fd.SetLocation(loc)
	}
	fd.Show()
}

func (mw *MainWindow) exportTo(path string) error {
	s := mw.session
	if filepath.Ext(path) == ".pdf" {
		return export.WritePDFFile(path, export.Document{
			Title:  s.Source().Name,
			Image:  s.Source().Image,
			Points: s.Points(),
		})
	}

	out := mw.canvas.RenderedOutput()
	if out == nil {
		return errors.New("nothing rendered yet")
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, out); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (mw *MainWindow) onAbout() {
	dialog.ShowInformation("About "+appTitle,
		fmt.Sprintf("%s v%s\n\n"+
			"Draw a polygon over an image and save its points.\n\n"+
			"Built: %s\n"+
			"Commit: %s",
			appTitle, version.Version, version.BuildTime, version.GitCommit),
		mw.Window)
}

// SavePreferences writes window size and recent files.
func (mw *MainWindow) SavePreferences() {
	size := mw.Canvas().Size()
	if size.Width > 0 && size.Height > 0 {
		mw.prefs.SetInt(prefKeyWidth, int(size.Width))
		mw.prefs.SetInt(prefKeyHeight, int(size.Height))
	}
	if err := mw.prefs.Save(); err != nil {
		log.Printf("Prefs: save failed: %v", err)
	}
}

func (mw *MainWindow) onClosed() {
	if mw.cancelLoad != nil {
		mw.cancelLoad()
	}
	mw.endSession()
	mw.sched.Stop()
	mw.SavePreferences()
}

func displayName(ref string) string {
	if i := strings.IndexAny(ref, "?#"); i >= 0 && image.IsRemote(ref) {
		ref = ref[:i]
	}
	return filepath.Base(ref)
}
