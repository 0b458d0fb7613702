package install

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/lunaros/pakit/pkg/bundle"
	"github.com/lunaros/pakit/pkg/paths"
)

// Action tags what the installer will do with one entry.
type Action int

const (
	ActionCreate Action = iota
	ActionConflict
	ActionSkip
)

func (a Action) String() string {
	return [...]string{"create", "conflict", "skip"}[a]
}

// PlanEntry pairs a verified manifest entry with its resolved
// target path and action.
type PlanEntry struct {
	Entry  bundle.FileEntry
	Target string
	Action Action
}

// Plan is the resolved set of per-path actions for one install,
// in manifest order. Built immediately before application and
// never reused.
type Plan struct {
	TargetRoot string
	Entries    []PlanEntry
}

// BuildPlan resolves every entry against the target root. An
// existing path is tagged Conflict unless force is set, and any
// conflict fails the whole plan with a ConflictError for the
// first one in manifest order; a conflicted plan must never be
// applied. Directory entries whose target already is a directory
// become skips, so reinstalling over shared parents stays
// idempotent. The fully classified plan is returned even on
// conflict so callers can report every colliding path.
func BuildPlan(
	entries []bundle.FileEntry,
	targetRoot string,
	force bool,
) (*Plan, error) {
	plan := &Plan{
		TargetRoot: targetRoot,
		Entries:    make([]PlanEntry, 0, len(entries)),
	}

	firstConflict := ""
	for _, e := range entries {
		target := filepath.Join(targetRoot, e.Path)
		if !paths.IsWithinDir(targetRoot, target) {
			return nil, fmt.Errorf(
				"entry escapes target root: %s", e.Path,
			)
		}

		pe := PlanEntry{Entry: e, Target: target}
		fi, err := os.Lstat(target)
		switch {
		case err == nil && e.IsDir() && fi.IsDir():
			pe.Action = ActionSkip
		case err == nil && !force:
			pe.Action = ActionConflict
			if firstConflict == "" {
				firstConflict = target
			}
		case err == nil:
			pe.Action = ActionCreate
		case os.IsNotExist(err):
			pe.Action = ActionCreate
		default:
			return nil, &IOError{
				Op: "stat", Path: target, Err: err,
			}
		}
		plan.Entries = append(plan.Entries, pe)
	}
	if firstConflict != "" {
		return plan, &ConflictError{Path: firstConflict}
	}
	return plan, nil
}
