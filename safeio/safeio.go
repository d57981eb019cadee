// Package safeio guards file access driven by untrusted callers: path
// confinement under a root directory and bounded reads.
package safeio

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ErrPathTraversal is returned when a caller-supplied path escapes its root.
var ErrPathTraversal = errors.New("safeio: path escapes root")

// ErrTooLarge is returned by LimitedReadAll when the input exceeds the limit.
var ErrTooLarge = errors.New("safeio: input too large")

// Within resolves p against root and verifies the result stays under root.
// Relative paths are joined to root; absolute paths must already lie inside
// it. Symlinks are resolved when the target exists. An empty root accepts
// any path unchanged.
func Within(root, p string) (string, error) {
	if root == "" {
		return p, nil
	}
	if strings.ContainsRune(p, 0) {
		return "", ErrPathTraversal
	}
	root = filepath.Clean(root)
	if !filepath.IsAbs(p) {
		p = filepath.Join(root, p)
	}
	p = filepath.Clean(p)
	if !inside(root, p) {
		return "", ErrPathTraversal
	}

	resolved, err := filepath.EvalSymlinks(p)
	if err != nil {
		// Missing files are reported by the caller's own stat.
		return p, nil
	}
	realRoot, err := filepath.EvalSymlinks(root)
	if err != nil {
		realRoot = root
	}
	if !inside(realRoot, resolved) {
		return "", ErrPathTraversal
	}
	return p, nil
}

func inside(root, p string) bool {
	rel, err := filepath.Rel(root, p)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// LimitedReadAll reads at most maxBytes from r. It returns ErrTooLarge if
// the limit is exceeded. A non-positive limit disables the check.
func LimitedReadAll(r io.Reader, maxBytes int64) ([]byte, error) {
	if maxBytes <= 0 {
		return io.ReadAll(r)
	}
	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, maxBytes)
	}
	return data, nil
}

// ReadFile reads the named file with LimitedReadAll. The file may have
// grown since it was last stat'ed; the limit still holds.
func ReadFile(path string, maxBytes int64) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return LimitedReadAll(f, maxBytes)
}
