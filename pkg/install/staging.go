package install

import (
	"fmt"
	"os"
)

// StagingArea is the scratch tree one install operation extracts
// into. Created fresh per operation and removed unconditionally
// when the operation ends; reusing one would let stale files
// satisfy hash checks for content the payload never delivered.
type StagingArea struct {
	Root string
}

// NewStagingArea creates a private scratch directory beneath
// base. An empty base selects the system temp directory.
func NewStagingArea(base string) (*StagingArea, error) {
	dir, err := os.MkdirTemp(base, "pakit-staging-*")
	if err != nil {
		return nil, fmt.Errorf("create staging area: %w", err)
	}
	return &StagingArea{Root: dir}, nil
}

// Remove deletes the staging tree. Safe to call exactly once;
// the area must not be used afterwards.
func (s *StagingArea) Remove() error {
	return os.RemoveAll(s.Root)
}
