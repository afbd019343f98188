package localfiles

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Store writes files under a local uploads directory and returns a URL built
// from the configured base. The core treats the result as opaque; swapping in
// S3 or similar is a matter of implementing ports.FileStore.
type Store struct {
	Dir     string
	BaseURL string
}

func New(dir, baseURL string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create uploads dir: %w", err)
	}
	return &Store{Dir: dir, BaseURL: strings.TrimRight(baseURL, "/")}, nil
}

func (s *Store) Store(ctx context.Context, name string, data []byte) (string, error) {
	name = filepath.Base(name) // no traversal
	if name == "" || name == "." {
		return "", fmt.Errorf("empty file name")
	}
	if err := os.WriteFile(filepath.Join(s.Dir, name), data, 0o644); err != nil {
		return "", err
	}
	return s.BaseURL + "/uploads/" + name, nil
}
