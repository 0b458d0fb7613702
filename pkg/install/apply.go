package install

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/lunaros/pakit/pkg/bundle"
	"github.com/lunaros/pakit/pkg/paths"
)

// applyPlan materializes the plan in manifest order: parent
// directories, then content, then ownership metadata. It returns
// every path this operation created (for rollback), a list of
// non-fatal metadata warnings, and the number of files written.
// On error the caller rolls back; overwritten pre-existing paths
// are not tracked since their old content cannot be restored.
func applyPlan(
	ctx context.Context,
	plan *Plan,
	stagingRoot string,
) (created []string, warnings []string, installed int, err error) {
	madeDirs := make(map[string]bool)

	for _, pe := range plan.Entries {
		if err := ctx.Err(); err != nil {
			return created, warnings, installed, err
		}
		if pe.Action == ActionSkip {
			continue
		}

		dirs, derr := ensureParents(
			plan.TargetRoot, pe.Entry.Path, madeDirs,
		)
		created = append(created, dirs...)
		if derr != nil {
			return created, warnings, installed, derr
		}

		if pe.Entry.IsDir() {
			madeDir, derr := ensureDir(pe.Target, pe.Entry)
			if derr != nil {
				return created, warnings, installed, derr
			}
			if madeDir {
				created = append(created, pe.Target)
			}
		} else {
			madeFile, ferr := placeFile(
				stagingRoot, pe.Target, pe.Entry,
			)
			if madeFile {
				created = append(created, pe.Target)
			}
			if ferr != nil {
				return created, warnings, installed, ferr
			}
			installed++
		}

		if w := applyOwnership(pe.Target, pe.Entry); w != "" {
			warnings = append(warnings, w)
		}
	}
	return created, warnings, installed, nil
}

// ensureParents creates the missing ancestor directories of one
// entry, shallowest first, recording each one it makes. Existing
// directories are left alone, so shared prefixes are idempotent.
func ensureParents(
	root, rel string, madeDirs map[string]bool,
) ([]string, error) {
	var made []string
	for _, prefix := range paths.Prefixes(rel) {
		full := filepath.Join(root, prefix)
		if madeDirs[full] {
			continue
		}
		err := os.Mkdir(full, 0o755)
		switch {
		case err == nil:
			made = append(made, full)
			madeDirs[full] = true
		case os.IsExist(err):
			madeDirs[full] = true
		default:
			return made, &IOError{
				Op: "mkdir", Path: full, Err: err,
			}
		}
	}
	return made, nil
}

func ensureDir(target string, e bundle.FileEntry) (bool, error) {
	mode, err := e.FileMode()
	if err != nil {
		return false, &IOError{
			Op: "mkdir", Path: target, Err: err,
		}
	}
	err = os.Mkdir(target, mode)
	switch {
	case err == nil:
		return true, nil
	case os.IsExist(err):
		return false, nil
	default:
		return false, &IOError{
			Op: "mkdir", Path: target, Err: err,
		}
	}
}

// placeFile copies one verified staged file (or symlink) to its
// target. The bool reports whether a new target path came into
// existence, even when the copy then failed partway.
func placeFile(
	stagingRoot, target string, e bundle.FileEntry,
) (bool, error) {
	staged := filepath.Join(stagingRoot, e.Path)
	si, err := os.Lstat(staged)
	if err != nil {
		return false, &IOError{
			Op: "stat staged", Path: e.Path, Err: err,
		}
	}

	_, lerr := os.Lstat(target)
	existed := lerr == nil

	if si.Mode()&os.ModeSymlink != 0 {
		link, err := os.Readlink(staged)
		if err != nil {
			return false, &IOError{
				Op: "readlink", Path: e.Path, Err: err,
			}
		}
		if existed {
			if err := os.Remove(target); err != nil {
				return false, &IOError{
					Op: "replace", Path: target, Err: err,
				}
			}
		}
		if err := os.Symlink(link, target); err != nil {
			return false, &IOError{
				Op: "symlink", Path: target, Err: err,
			}
		}
		return true, nil
	}

	mode, err := e.FileMode()
	if err != nil {
		return false, &IOError{
			Op: "create", Path: target, Err: err,
		}
	}

	src, err := os.Open(staged)
	if err != nil {
		return false, &IOError{
			Op: "open staged", Path: e.Path, Err: err,
		}
	}
	defer src.Close()

	dst, err := os.OpenFile(
		target,
		os.O_CREATE|os.O_WRONLY|os.O_TRUNC,
		mode,
	)
	if err != nil {
		return false, &IOError{
			Op: "create", Path: target, Err: err,
		}
	}

	_, copyErr := io.Copy(dst, src)
	closeErr := dst.Close()
	if copyErr != nil {
		return !existed, &IOError{
			Op: "write", Path: target, Err: copyErr,
		}
	}
	if closeErr != nil {
		return !existed, &IOError{
			Op: "close", Path: target, Err: closeErr,
		}
	}
	return !existed, nil
}

// applyOwnership applies the declared uid/gid and re-asserts the
// mode (the copy may have been narrowed by umask). Ownership is
// metadata, not content: failure degrades to a warning instead
// of unwinding a good copy.
func applyOwnership(target string, e bundle.FileEntry) string {
	if err := os.Lchown(target, e.UID, e.GID); err != nil {
		return fmt.Sprintf(
			"chown %s to %d:%d: %v", target, e.UID, e.GID, err,
		)
	}
	if mode, err := e.FileMode(); err == nil {
		fi, lerr := os.Lstat(target)
		if lerr == nil && fi.Mode()&os.ModeSymlink == 0 {
			if err := os.Chmod(target, mode); err != nil {
				return fmt.Sprintf(
					"chmod %s: %v", target, err,
				)
			}
		}
	}
	return ""
}

// rollback removes, deepest first, every path the failed
// operation created. Best effort: a path that refuses to go away
// is not worth masking the original failure over.
func rollback(created []string) {
	for i := len(created) - 1; i >= 0; i-- {
		os.Remove(created[i])
	}
}
