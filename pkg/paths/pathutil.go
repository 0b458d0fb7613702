// Package paths validates the relative paths that package
// manifests and archive members declare. Every path that ends up
// joined to a staging or target root goes through here first.
package paths

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"
)

// ValidateRelPath rejects any path that could not safely be
// joined beneath a root directory: absolute paths, empty paths,
// and anything that climbs out via "..".
func ValidateRelPath(p string) error {
	if p == "" {
		return fmt.Errorf("empty path")
	}
	if strings.ContainsRune(p, 0) {
		return fmt.Errorf("path contains null byte")
	}
	if path.IsAbs(p) || filepath.IsAbs(p) {
		return fmt.Errorf("absolute path not allowed: %s", p)
	}
	cleaned := path.Clean(filepath.ToSlash(p))
	if cleaned == "." {
		return fmt.Errorf("path resolves to current directory")
	}
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return fmt.Errorf("path escapes root: %s", p)
	}
	return nil
}

// CleanRelPath normalizes a manifest or archive path to a
// slash-separated relative form.
func CleanRelPath(p string) string {
	p = path.Clean(filepath.ToSlash(p))
	return strings.TrimPrefix(p, "./")
}

// IsWithinDir reports whether full resolves to dir or somewhere
// beneath it. It is the belt-and-suspenders check applied after
// joining an already-validated relative path.
func IsWithinDir(dir, full string) bool {
	rel, err := filepath.Rel(dir, full)
	if err != nil {
		return false
	}
	return rel != ".." &&
		!strings.HasPrefix(rel, "../") &&
		!filepath.IsAbs(rel)
}

// Prefixes returns every ancestor directory of a relative path,
// shallowest first. "a/b/c.txt" yields ["a", "a/b"]. Used to
// create and track parent directories deterministically.
func Prefixes(rel string) []string {
	dir := path.Dir(filepath.ToSlash(rel))
	if dir == "." || dir == "/" {
		return nil
	}
	parts := strings.Split(dir, "/")
	out := make([]string, 0, len(parts))
	var b strings.Builder
	for i, part := range parts {
		if i > 0 {
			b.WriteString("/")
		}
		b.WriteString(part)
		out = append(out, b.String())
	}
	return out
}
