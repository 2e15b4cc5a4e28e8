package source

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/custodia-labs/pagewise/internal/core/domain"
	"github.com/custodia-labs/pagewise/internal/core/ports/driven"
)

// Verify interface compliance.
var _ driven.DocumentSource = (*Local)(nil)

// Local reads documents from the local filesystem. Relative paths resolve
// under Root; no path may escape it.
type Local struct {
	root string
}

// NewLocal creates a local source rooted at root. An empty root allows any
// absolute path and resolves relative paths against the working directory.
func NewLocal(root string) (*Local, error) {
	if root == "" {
		return &Local{}, nil
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve document root: %w", err)
	}
	return &Local{root: abs}, nil
}

// Root returns the resolved document root.
func (l *Local) Root() string {
	return l.root
}

// Fetch reads the whole file at storagePath.
func (l *Local) Fetch(ctx context.Context, storagePath string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path, err := l.Resolve(storagePath)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, storagePath)
		}
		return nil, fmt.Errorf("read %s: %w", storagePath, err)
	}
	return data, nil
}

// Resolve converts a bare path or file:// URI to a cleaned absolute path.
func (l *Local) Resolve(storagePath string) (string, error) {
	path := strings.TrimPrefix(storagePath, SchemeFile)
	if path == "" {
		return "", fmt.Errorf("%w: empty storage path", domain.ErrInvalidInput)
	}

	if l.root == "" {
		return filepath.Abs(path)
	}

	if !filepath.IsAbs(path) {
		path = filepath.Join(l.root, path)
	}
	path = filepath.Clean(path)

	rel, err := filepath.Rel(l.root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s is outside the document root", domain.ErrInvalidInput, storagePath)
	}
	return path, nil
}
