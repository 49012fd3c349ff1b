package capture

import (
	"context"
	"fmt"
	"image"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/disintegration/imaging"
)

// Files decodes image files one per Capture call.
type Files struct {
	mu    sync.Mutex
	paths []string
	next  int
	last  string
}

// NewFiles returns a source over paths in the given order.
func NewFiles(paths ...string) *Files {
	return &Files{paths: append([]string(nil), paths...)}
}

// Glob expands patterns into a sorted, de-duplicated list of image files.
// Directories match every .jpg, .jpeg and .png file directly inside them.
func Glob(patterns ...string) ([]string, error) {
	seen := make(map[string]bool)
	var out []string

	add := func(p string) {
		if !seen[p] && isImage(p) {
			seen[p] = true
			out = append(out, p)
		}
	}

	for _, pattern := range patterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("capture: bad pattern %q: %w", pattern, err)
		}
		for _, m := range matches {
			inner, err := filepath.Glob(filepath.Join(m, "*"))
			if err == nil && len(inner) > 0 {
				for _, p := range inner {
					add(p)
				}
				continue
			}
			add(m)
		}
	}

	sort.Strings(out)
	return out, nil
}

func isImage(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg", ".png":
		return true
	}
	return false
}

// Capture decodes the next file. EXIF orientation is applied.
func (f *Files) Capture(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	if f.next >= len(f.paths) {
		f.mu.Unlock()
		return nil, ErrExhausted
	}
	path := f.paths[f.next]
	f.next++
	f.last = path
	f.mu.Unlock()

	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("capture: decode %s: %w", path, err)
	}
	return img, nil
}

// Last returns the path of the most recently captured file.
func (f *Files) Last() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last
}

// Len returns the number of files.
func (f *Files) Len() int {
	return len(f.paths)
}

// Close is a no-op.
func (f *Files) Close() error { return nil }
