// Package install drives one package installation end to end:
// parse descriptors, extract the payload into a private staging
// area, verify content digests, plan against the target root,
// and apply. No target path is written before its digest checks
// out, and a failed apply removes everything it created.
//
// One target root must only ever be installed into by one
// operation at a time; conflict detection and rollback both
// assume exclusive ownership of the paths they touch.
package install

import (
	"context"
	"os"

	"github.com/lunaros/pakit/pkg/archive"
	"github.com/lunaros/pakit/pkg/bundle"
	"github.com/lunaros/pakit/pkg/verify"
)

// Stage is how far an operation has progressed. Failed is
// terminal and reachable from every other stage.
type Stage int

const (
	StageLoaded Stage = iota
	StageManifestParsed
	StageExtracted
	StageVerified
	StagePlanned
	StageInstalled
	StageFailed
)

func (s Stage) String() string {
	return [...]string{
		"loaded",
		"manifest-parsed",
		"extracted",
		"verified",
		"planned",
		"installed",
		"failed",
	}[s]
}

// Policy decides what a digest mismatch does to the operation.
type Policy int

const (
	// Strict aborts the install before any target write on the
	// first failed check. The default.
	Strict Policy = iota
	// Permissive records failed checks as warnings and installs
	// anyway. Some bundle producers ship stale hashes; callers
	// opt into this explicitly.
	Permissive
)

// Options configures one install operation. The zero value
// installs into "/" with a system-temp staging area, strict
// verification, and no overwriting.
type Options struct {
	TargetRoot  string
	StagingRoot string
	Force       bool
	Policy      Policy
	Workers     int
}

// Report summarizes a finished (or failed) operation.
type Report struct {
	Package   *bundle.Metadata
	Stage     Stage
	Extracted int
	Installed int
	Warnings  []string
}

// Run installs the bundle at pkgPath. The returned Report is
// always non-nil and records the stage reached; on error the
// target filesystem holds none of the paths this operation
// created. Cancelling ctx before apply leaves the target
// untouched; cancelling mid-apply rolls back like any fatal
// apply error.
func Run(
	ctx context.Context,
	pkgPath string,
	opts Options,
) (*Report, error) {
	if opts.TargetRoot == "" {
		opts.TargetRoot = string(os.PathSeparator)
	}

	rep := &Report{Stage: StageLoaded}
	fail := func(err error) (*Report, error) {
		rep.Stage = StageFailed
		return rep, err
	}

	b, err := bundle.Open(pkgPath)
	if err != nil {
		return fail(err)
	}
	defer b.Close()
	rep.Package = b.Meta
	rep.Stage = StageManifestParsed

	staging, err := NewStagingArea(opts.StagingRoot)
	if err != nil {
		return fail(err)
	}
	defer staging.Remove()

	payload, err := b.OpenPayload()
	if err != nil {
		return fail(err)
	}
	n, err := archive.Extract(
		ctx, payload, b.PayloadName(), staging.Root,
	)
	payload.Close()
	if err != nil {
		return fail(err)
	}
	rep.Extracted = n
	rep.Stage = StageExtracted

	results, err := verify.Run(
		ctx, staging.Root, b.Files, opts.Workers,
	)
	if err != nil {
		return fail(err)
	}
	if failures := verify.Failures(results); len(failures) > 0 {
		if opts.Policy == Strict {
			return fail(failures[0].AsError())
		}
		for _, f := range failures {
			rep.Warnings = append(
				rep.Warnings, f.AsError().Error(),
			)
		}
	}
	rep.Stage = StageVerified

	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	plan, err := BuildPlan(b.Files, opts.TargetRoot, opts.Force)
	if err != nil {
		return fail(err)
	}
	rep.Stage = StagePlanned

	created, warns, installed, err := applyPlan(
		ctx, plan, staging.Root,
	)
	if err != nil {
		rollback(created)
		return fail(err)
	}
	rep.Warnings = append(rep.Warnings, warns...)
	rep.Installed = installed
	rep.Stage = StageInstalled
	return rep, nil
}
