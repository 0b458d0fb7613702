// Package archive streams a bundle's compressed content payload
// into a staging directory. Decompression and tar demuxing are
// both streaming; no member is buffered whole. Members that
// would land outside the staging root are rejected.
package archive

import (
	"archive/tar"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/lunaros/pakit/pkg/paths"
)

// Error reports a corrupt, truncated, or hostile payload.
// Member is empty when the stream itself is at fault.
type Error struct {
	Member string
	Err    error
}

func (e *Error) Error() string {
	if e.Member == "" {
		return fmt.Sprintf("archive: %v", e.Err)
	}
	return fmt.Sprintf("archive member %s: %v", e.Member, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Extract unpacks the payload read from r beneath dest,
// preserving relative paths. name selects the decompressor by
// suffix. Returns the number of regular files written.
func Extract(
	ctx context.Context,
	r io.Reader,
	name string,
	dest string,
) (int, error) {
	dec, closeDec, err := openDecoder(r, name)
	if err != nil {
		return 0, err
	}
	defer closeDec()

	// The lexical path checks below do not see symlinks, so any
	// member whose path passes through one staged earlier could
	// still write outside dest. Track every staged link and
	// refuse members that resolve through them.
	links := make(map[string]bool)

	tr := tar.NewReader(dec)
	count := 0
	for {
		if err := ctx.Err(); err != nil {
			return count, err
		}

		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return count, &Error{
				Err: fmt.Errorf("read tar: %w", err),
			}
		}

		rel := paths.CleanRelPath(hdr.Name)
		if rel == "." || rel == "" {
			continue
		}
		if err := paths.ValidateRelPath(rel); err != nil {
			return count, &Error{Member: hdr.Name, Err: err}
		}
		if p := linkAncestor(links, rel); p != "" {
			return count, &Error{
				Member: hdr.Name,
				Err: fmt.Errorf(
					"path traverses symlink member %s", p,
				),
			}
		}
		target := filepath.Join(dest, rel)
		if !paths.IsWithinDir(dest, target) {
			return count, &Error{
				Member: hdr.Name,
				Err:    fmt.Errorf("path escapes staging root"),
			}
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if links[rel] {
				return count, &Error{
					Member: hdr.Name,
					Err: fmt.Errorf(
						"directory over symlink member",
					),
				}
			}
			if err := os.MkdirAll(target, 0o755); err != nil {
				return count, &Error{
					Member: hdr.Name, Err: err,
				}
			}
		case tar.TypeReg:
			if err := writeMember(tr, target, hdr); err != nil {
				return count, err
			}
			count++
		case tar.TypeSymlink:
			if err := writeSymlink(target, hdr); err != nil {
				return count, err
			}
			links[rel] = true
		case tar.TypeLink:
			err := stageHardlink(dest, target, hdr, links)
			if err != nil {
				return count, err
			}
			count++
		}
	}
	return count, nil
}

// linkAncestor returns the first ancestor component of rel that
// was staged as a symlink, or "".
func linkAncestor(links map[string]bool, rel string) string {
	for _, p := range paths.Prefixes(rel) {
		if links[p] {
			return p
		}
	}
	return ""
}

func writeMember(
	tr *tar.Reader, target string, hdr *tar.Header,
) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return &Error{Member: hdr.Name, Err: err}
	}

	// O_TRUNC follows an existing symlink, so a link staged
	// under the same name must not be written through.
	if fi, err := os.Lstat(target); err == nil &&
		fi.Mode()&os.ModeSymlink != 0 {
		return &Error{
			Member: hdr.Name,
			Err:    fmt.Errorf("refusing to write through symlink"),
		}
	}

	f, err := os.OpenFile(
		target,
		os.O_CREATE|os.O_WRONLY|os.O_TRUNC,
		os.FileMode(hdr.Mode&0o777),
	)
	if err != nil {
		return &Error{Member: hdr.Name, Err: err}
	}

	_, copyErr := io.Copy(f, tr)
	closeErr := f.Close()
	if copyErr != nil {
		return &Error{
			Member: hdr.Name,
			Err:    fmt.Errorf("write: %w", copyErr),
		}
	}
	if closeErr != nil {
		return &Error{Member: hdr.Name, Err: closeErr}
	}
	return nil
}

// stageHardlink materializes a hardlink member by linking to the
// already-staged file it names. The link target gets the same
// validation as member paths: relative, contained, and not
// through a staged symlink.
func stageHardlink(
	dest, target string,
	hdr *tar.Header,
	links map[string]bool,
) error {
	linkRel := paths.CleanRelPath(hdr.Linkname)
	if err := paths.ValidateRelPath(linkRel); err != nil {
		return &Error{
			Member: hdr.Name,
			Err:    fmt.Errorf("hardlink target: %w", err),
		}
	}
	if links[linkRel] || linkAncestor(links, linkRel) != "" {
		return &Error{
			Member: hdr.Name,
			Err: fmt.Errorf(
				"hardlink target traverses symlink member",
			),
		}
	}
	src := filepath.Join(dest, linkRel)
	if !paths.IsWithinDir(dest, src) {
		return &Error{
			Member: hdr.Name,
			Err:    fmt.Errorf("hardlink target escapes staging root"),
		}
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return &Error{Member: hdr.Name, Err: err}
	}
	if err := os.Link(src, target); err != nil {
		return &Error{
			Member: hdr.Name,
			Err:    fmt.Errorf("hardlink: %w", err),
		}
	}
	return nil
}

// writeSymlink stages a symlink member. The link target is kept
// verbatim: links are only followed after install, relative to
// wherever they land in the target root. Absolute link targets
// are allowed (distribution packages point into /usr all the
// time) but the member's own path was already containment-checked.
func writeSymlink(target string, hdr *tar.Header) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return &Error{Member: hdr.Name, Err: err}
	}
	if err := os.Symlink(hdr.Linkname, target); err != nil {
		if os.IsExist(err) {
			os.Remove(target)
			err = os.Symlink(hdr.Linkname, target)
		}
		if err != nil {
			return &Error{Member: hdr.Name, Err: err}
		}
	}
	return nil
}
