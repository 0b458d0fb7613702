// Package format routes a package path to an installation
// backend by file extension. Pure routing; the engine itself is
// only invoked for its own bundle format.
package format

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Format is a recognized package file format.
type Format int

const (
	Unknown Format = iota
	Eopkg
	Deb
	RPM
	APK
	Pacman
)

func (f Format) String() string {
	return [...]string{
		"unknown", "eopkg", "deb", "rpm", "apk", "pacman",
	}[f]
}

// ErrUnsupported marks a recognized format this tool has no
// backend for.
var ErrUnsupported = errors.New("no installation backend")

// Detect classifies a package path. A directory is assumed to be
// an unpacked eopkg bundle; files are classified by extension.
func Detect(path string) Format {
	if fi, err := os.Stat(path); err == nil && fi.IsDir() {
		return Eopkg
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".eopkg":
		return Eopkg
	case ".deb":
		return Deb
	case ".rpm":
		return RPM
	case ".apk":
		return APK
	}
	if strings.Contains(filepath.Base(path), ".pkg.tar") {
		return Pacman
	}
	return Unknown
}

// Check returns nil when the engine can handle path, and a
// descriptive error otherwise.
func Check(path string) error {
	switch f := Detect(path); f {
	case Eopkg:
		return nil
	case Unknown:
		return fmt.Errorf(
			"%s: unrecognized package format", path,
		)
	default:
		return fmt.Errorf(
			"%s packages: %w", f, ErrUnsupported,
		)
	}
}
