package reference

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// DirFetcher serves keys as paths relative to a local directory.
type DirFetcher struct {
	root string
}

// NewDirFetcher creates a fetcher rooted at dir, which must exist.
func NewDirFetcher(dir string) (*DirFetcher, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, errors.New("reference: directory must not be empty")
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("reference: data directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("reference: %s is not a directory", dir)
	}
	return &DirFetcher{root: dir}, nil
}

func (f *DirFetcher) Fetch(_ context.Context, key string) ([]byte, error) {
	clean := filepath.Clean("/" + filepath.FromSlash(key))
	raw, err := os.ReadFile(filepath.Join(f.root, clean))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("reference: read %q: %w", key, err)
	}
	return raw, nil
}
