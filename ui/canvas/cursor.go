package canvas

import (
	"image"
	"image/color"
	"log"
	"math"
	"sync"

	"github.com/gogpu/gg"
)

const cursorSize = 24

// handCursor is a desktop.Cursor drawn once on first use.
type handCursor struct {
	closed bool

	once sync.Once
	img  image.Image
}

// GrabCursor and GrabbingCursor are the open and closed hands shown in Move
// mode.
var (
	GrabCursor     = &handCursor{}
	GrabbingCursor = &handCursor{closed: true}
)

func (h *handCursor) Image() (image.Image, int, int) {
	h.once.Do(func() {
		img, err := drawHand(h.closed)
		if err != nil {
			log.Printf("Canvas: cursor: %v", err)
		}
		h.img = img
	})
	return h.img, cursorSize / 2, cursorSize / 2
}

// drawHand draws a palm with four fingers, extended when open and curled
// into knuckles when closed.
func drawHand(closed bool) (image.Image, error) {
	dc := gg.NewContext(cursorSize, cursorSize)
	defer dc.Close()

	outline := color.Black
	fill := color.White
	c := float64(cursorSize) / 2

	fingerLen := 7.0
	if closed {
		fingerLen = 2.5
	}

	// Fingers, drawn first so the palm covers their roots
	for i := 0; i < 4; i++ {
		x := c - 4.5 + float64(i)*3
		top := c - 2 - fingerLen
		dc.MoveTo(x, c)
		dc.LineTo(x, top)
		dc.SetLineWidth(3.4)
		dc.SetColor(outline)
		if err := dc.Stroke(); err != nil {
			return dc.Image(), err
		}
		dc.MoveTo(x, c)
		dc.LineTo(x, top)
		dc.SetLineWidth(1.6)
		dc.SetColor(fill)
		if err := dc.Stroke(); err != nil {
			return dc.Image(), err
		}
	}

	// Palm
	dc.DrawCircle(c, c+2, 5.5)
	dc.SetColor(fill)
	if err := dc.Fill(); err != nil {
		return dc.Image(), err
	}
	dc.DrawCircle(c, c+2, 5.5)
	dc.SetColor(outline)
	dc.SetLineWidth(1)
	if err := dc.Stroke(); err != nil {
		return dc.Image(), err
	}

	// Thumb
	angle := -math.Pi / 4
	if closed {
		angle = -math.Pi / 8
	}
	tx, ty := c-5, c+2
	dc.MoveTo(tx, ty)
	dc.LineTo(tx-4*math.Cos(angle), ty+4*math.Sin(angle))
	dc.SetLineWidth(2)
	dc.SetColor(outline)
	if err := dc.Stroke(); err != nil {
		return dc.Image(), err
	}

	return dc.Image(), nil
}
