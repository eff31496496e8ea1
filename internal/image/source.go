// Package image loads and decodes the raster being annotated.
package image

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"polygon-annotator/pkg/geometry"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// maxDownload caps remote image size.
const maxDownload = 256 << 20

var (
	// ErrNoImage is returned when no image reference was given.
	ErrNoImage = errors.New("no image specified")

	// ErrDecode wraps decoder failures.
	ErrDecode = errors.New("failed to decode image")

	// ErrEmptyImage is returned for images with a zero dimension.
	ErrEmptyImage = errors.New("image has no pixels")
)

// Source is a decoded image together with the name it is saved under.
// It is immutable once loaded.
type Source struct {
	Name   string      // Reference the image was loaded from (path or URL)
	Format string      // Decoder name ("png", "jpeg", "tiff", ...)
	Image  image.Image // Decoded pixels
}

// Load reads an image from a local path or an http(s) URL.
func Load(ctx context.Context, ref string) (*Source, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, ErrNoImage
	}

	if IsRemote(ref) {
		return fetch(ctx, ref)
	}

	file, err := os.Open(ref)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer file.Close()

	return Decode(ref, file)
}

// Decode decodes r and names the result.
func Decode(name string, r io.Reader) (*Source, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("%w %s: %v", ErrDecode, name, err)
	}

	src := &Source{Name: name, Format: format, Image: img}
	if src.Width() == 0 || src.Height() == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyImage, name)
	}
	return src, nil
}

// IsRemote reports whether ref should be fetched over HTTP.
func IsRemote(ref string) bool {
	lower := strings.ToLower(ref)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

func fetch(ctx context.Context, url string) (*Source, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch image %s: %s", url, resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDownload))
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	return Decode(url, bytes.NewReader(data))
}

// Width returns the image width in pixels.
func (s *Source) Width() int {
	if s == nil || s.Image == nil {
		return 0
	}
	return s.Image.Bounds().Dx()
}

// Height returns the image height in pixels.
func (s *Source) Height() int {
	if s == nil || s.Image == nil {
		return 0
	}
	return s.Image.Bounds().Dy()
}

// Size returns the image dimensions.
func (s *Source) Size() geometry.Size {
	return geometry.Size{
		Width:  float64(s.Width()),
		Height: float64(s.Height()),
	}
}

// SupportedFormats returns the list of supported image file extensions.
func SupportedFormats() []string {
	return []string{".png", ".jpg", ".jpeg", ".gif", ".bmp", ".tiff", ".tif", ".webp"}
}

// IsSupportedFormat checks if the given path has a supported image format.
func IsSupportedFormat(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, format := range SupportedFormats() {
		if ext == format {
			return true
		}
	}
	return false
}
