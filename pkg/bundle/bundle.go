// Package bundle opens eopkg-style package bundles and parses
// their descriptor documents. A bundle is either a directory or
// a zip container holding metadata.xml, files.xml, and a
// compressed content payload.
package bundle

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

const (
	metadataName = "metadata.xml"
	filesName    = "files.xml"
	payloadStem  = "install.tar"
)

// payloadSuffixes in probe order. Plain tar last so the
// compressed variants win when both exist.
var payloadSuffixes = []string{".xz", ".gz", ".zst", ""}

// Bundle is one opened package: parsed descriptors plus a handle
// for streaming the content payload. Read-only after Open.
type Bundle struct {
	Meta  *Metadata
	Files []FileEntry

	payloadName string
	openPayload func() (io.ReadCloser, error)
	container   io.Closer
}

// Open reads a bundle from path, which may be a bundle directory
// or a .eopkg zip container. Both descriptor documents are parsed
// eagerly; the payload is only located, not read.
func Open(path string) (*Bundle, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("open bundle: %w", err)
	}
	if fi.IsDir() {
		return openDir(path)
	}
	return openZip(path)
}

// PayloadName returns the payload member's file name, from which
// the compression format is inferred.
func (b *Bundle) PayloadName() string { return b.payloadName }

// OpenPayload returns a streaming reader over the raw
// (still-compressed) content payload. The caller closes it.
func (b *Bundle) OpenPayload() (io.ReadCloser, error) {
	return b.openPayload()
}

// Close releases the underlying container handle, if any.
func (b *Bundle) Close() error {
	if b.container == nil {
		return nil
	}
	return b.container.Close()
}

func openDir(dir string) (*Bundle, error) {
	b := &Bundle{}
	if err := b.parseDescriptors(
		func(name string) ([]byte, error) {
			return os.ReadFile(filepath.Join(dir, name))
		},
	); err != nil {
		return nil, err
	}

	for _, suf := range payloadSuffixes {
		name := payloadStem + suf
		full := filepath.Join(dir, name)
		if _, err := os.Stat(full); err == nil {
			b.payloadName = name
			b.openPayload = func() (io.ReadCloser, error) {
				return os.Open(full)
			}
			return b, nil
		}
	}
	return nil, fmt.Errorf(
		"bundle %s: no %s payload found", dir, payloadStem,
	)
}

func openZip(path string) (*Bundle, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open container %s: %w", path, err)
	}

	b := &Bundle{container: zr}
	if err := b.parseDescriptors(
		func(name string) ([]byte, error) {
			f, err := zr.Open(name)
			if err != nil {
				return nil, err
			}
			defer f.Close()
			return io.ReadAll(f)
		},
	); err != nil {
		zr.Close()
		return nil, err
	}

	for _, f := range zr.File {
		if strings.HasPrefix(f.Name, payloadStem) {
			member := f
			b.payloadName = member.Name
			b.openPayload = func() (io.ReadCloser, error) {
				return member.Open()
			}
			return b, nil
		}
	}
	zr.Close()
	return nil, fmt.Errorf(
		"container %s: no %s payload found", path, payloadStem,
	)
}

func (b *Bundle) parseDescriptors(
	read func(name string) ([]byte, error),
) error {
	metaRaw, err := read(metadataName)
	if err != nil {
		return fmt.Errorf("read %s: %w", metadataName, err)
	}
	meta, err := ParseMetadata(metaRaw)
	if err != nil {
		return err
	}

	filesRaw, err := read(filesName)
	if err != nil {
		return fmt.Errorf("read %s: %w", filesName, err)
	}
	entries, err := ParseFiles(filesRaw)
	if err != nil {
		return err
	}

	b.Meta = meta
	b.Files = entries
	return nil
}
