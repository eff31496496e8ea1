package project

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"polygon-annotator/pkg/geometry"
)

// Extension is the suffix of annotation documents in a Store.
const Extension = ".annot.json"

// ErrNotFound is returned by Get for an image with no saved annotation.
var ErrNotFound = errors.New("annotation not found")

// Store keeps one annotation document per image name in a directory.
// It is safe for concurrent use.
type Store struct {
	dir string
	mu  sync.Mutex
}

// Summary describes a stored document without its points.
type Summary struct {
	ID        string    `json:"id"`
	ImageName string    `json:"image_name"`
	Points    int       `json:"points"`
	Closed    bool      `json:"closed"`
	Modified  time.Time `json:"modified"`
}

// OpenStore creates dir if needed.
func OpenStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create store: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the store directory.
func (s *Store) Dir() string {
	return s.dir
}

// Put saves points for imageName, replacing any earlier save for the same
// image. The document keeps its ID and creation time across saves.
func (s *Store) Put(imageName string, points []geometry.Point2D) (*File, error) {
	if strings.TrimSpace(imageName) == "" {
		return nil, ErrNoImageName
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.pathFor(imageName)
	f, err := Load(p)
	switch {
	case err == nil:
		f.SetPoints(points)
	case errors.Is(err, os.ErrNotExist):
		f = New(imageName, points)
	default:
		return nil, err
	}

	if err := f.Save(p); err != nil {
		return nil, fmt.Errorf("save %s: %w", imageName, err)
	}
	return f, nil
}

// Get loads the document for imageName.
func (s *Store) Get(imageName string) (*File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := Load(s.pathFor(imageName))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", imageName, ErrNotFound)
	}
	return f, err
}

// List summarizes every stored document, most recently modified first.
// Unreadable files are skipped.
func (s *Store) List() ([]Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}

	out := []Summary{}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), Extension) {
			continue
		}
		f, err := Load(filepath.Join(s.dir, e.Name()))
		if err != nil {
			continue
		}
		out = append(out, Summary{
			ID:        f.ID.String(),
			ImageName: f.ImageName,
			Points:    len(f.Annotations),
			Closed:    f.Closed,
			Modified:  f.Modified,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Modified.After(out[j].Modified) })
	return out, nil
}

func (s *Store) pathFor(imageName string) string {
	return filepath.Join(s.dir, FileName(imageName))
}

// FileName maps an image name (a path or URL) to a document file name: a
// readable stem from the last path element plus a hash of the full name, so
// distinct images never collide.
func FileName(imageName string) string {
	sum := sha256.Sum256([]byte(imageName))
	return sanitize(stem(imageName)) + "-" + hex.EncodeToString(sum[:6]) + Extension
}

func stem(name string) string {
	if i := strings.IndexAny(name, "?#"); i >= 0 {
		name = name[:i]
	}
	base := path.Base(filepath.ToSlash(name))
	return strings.TrimSuffix(base, path.Ext(base))
}

func sanitize(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
		if b.Len() >= 48 {
			break
		}
	}
	if b.Len() == 0 {
		return "image"
	}
	return b.String()
}
