package files

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// ErrOutsideRoot is returned when a location resolves outside the remover's root.
var ErrOutsideRoot = errors.New("location outside root")

// Remover deletes the resource a store record points at.
type Remover interface {
	Remove(ctx context.Context, location string) error
}

// FSRemover removes files from Fs. When Root is set, only locations inside
// Root are touched.
type FSRemover struct {
	Fs   afero.Fs
	Root string
}

// NewOSRemover returns an FSRemover backed by the real filesystem.
func NewOSRemover(root string) *FSRemover {
	return &FSRemover{Fs: afero.NewOsFs(), Root: root}
}

// Remove deletes the file at location. A file that is already gone is not an error.
func (r *FSRemover) Remove(ctx context.Context, location string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if location == "" {
		return nil
	}

	path := filepath.Clean(location)
	if r.Root != "" && !within(filepath.Clean(r.Root), path) {
		return fmt.Errorf("files: remove %q: %w", location, ErrOutsideRoot)
	}

	if err := r.Fs.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("files: remove %q: %w", location, err)
	}
	return nil
}

// within reports whether path lies strictly below root. Root itself is outside.
func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}
