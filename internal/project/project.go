// Package project provides annotation document handling and persistence.
package project

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"polygon-annotator/internal/annotation"
	"polygon-annotator/pkg/geometry"
)

// CurrentVersion is written into every saved document.
const CurrentVersion = 1

// ErrNoImageName is returned for documents without an image reference.
var ErrNoImageName = errors.New("image name is required")

// File is one saved annotation (.annot.json): the contour drawn over a
// single image.
type File struct {
	Version   int       `json:"version"`
	ID        uuid.UUID `json:"id"`
	ImageName string    `json:"image_name"`
	Created   time.Time `json:"created"`
	Modified  time.Time `json:"modified"`

	Annotations []geometry.Point2D `json:"annotations"`

	// Derived on save
	Closed bool    `json:"closed"`
	Area   float64 `json:"area,omitempty"`
}

// New creates a document for imageName.
func New(imageName string, points []geometry.Point2D) *File {
	now := time.Now()
	f := &File{
		Version:   CurrentVersion,
		ID:        uuid.New(),
		ImageName: imageName,
		Created:   now,
		Modified:  now,
	}
	f.SetPoints(points)
	return f
}

// SetPoints replaces the contour and refreshes the derived fields.
func (f *File) SetPoints(points []geometry.Point2D) {
	path := annotation.FromPoints(points)
	f.Annotations = path.Points()
	f.Closed = path.IsClosed()
	f.Area = path.Area()
	f.Modified = time.Now()
}

// Path returns the contour as an editable path.
func (f *File) Path() *annotation.Path {
	return annotation.FromPoints(f.Annotations)
}

// Validate checks the fields a document cannot do without.
func (f *File) Validate() error {
	if f.ImageName == "" {
		return ErrNoImageName
	}
	if f.Version > CurrentVersion {
		return fmt.Errorf("unsupported annotation version %d", f.Version)
	}
	return nil
}

// Load loads an annotation document.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	if err := f.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	if f.Annotations == nil {
		f.Annotations = []geometry.Point2D{}
	}
	return &f, nil
}

// Save writes the document. The file is replaced atomically.
func (f *File) Save(path string) error {
	if err := f.Validate(); err != nil {
		return err
	}
	if f.Annotations == nil {
		f.Annotations = []geometry.Point2D{}
	}

	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
