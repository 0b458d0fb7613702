// Package verify recomputes content digests for staged files and
// compares them against the hashes the bundle manifest declares.
// Entries are hashed concurrently by a bounded worker pool;
// results come back in manifest order.
package verify

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/lunaros/pakit/pkg/bundle"
)

// Verdict classifies one entry's integrity check.
type Verdict int

const (
	Match Verdict = iota
	Mismatch
	Unreadable
)

func (v Verdict) String() string {
	return [...]string{"match", "mismatch", "unreadable"}[v]
}

// Result is the verdict for a single manifest entry.
type Result struct {
	Path     string
	Verdict  Verdict
	Expected string
	Actual   string
	Err      error
}

// IntegrityError is the fatal form of a failed check, raised by
// callers enforcing strict policy.
type IntegrityError struct {
	Path     string
	Expected string
	Actual   string
	Err      error
}

func (e *IntegrityError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf(
			"integrity: %s: %v", e.Path, e.Err,
		)
	}
	return fmt.Sprintf(
		"integrity: %s: expected %s, got %s",
		e.Path, e.Expected, e.Actual,
	)
}

func (e *IntegrityError) Unwrap() error { return e.Err }

// AsError converts a non-Match result into an IntegrityError.
func (r Result) AsError() error {
	if r.Verdict == Match {
		return nil
	}
	return &IntegrityError{
		Path:     r.Path,
		Expected: r.Expected,
		Actual:   r.Actual,
		Err:      r.Err,
	}
}

// Run hashes every non-directory entry under root and returns
// one Result per entry, in entry order. workers <= 0 selects
// GOMAXPROCS-sized concurrency. Run always drains the pool:
// every entry has a verdict before it returns, unless the
// context is cancelled first.
func Run(
	ctx context.Context,
	root string,
	entries []bundle.FileEntry,
	workers int,
) ([]Result, error) {
	results := make([]Result, len(entries))

	var jobs []int
	for i, e := range entries {
		if e.IsDir() {
			results[i] = Result{Path: e.Path, Verdict: Match}
			continue
		}
		jobs = append(jobs, i)
	}

	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(jobs) {
		workers = len(jobs)
	}
	if workers == 0 {
		return results, nil
	}

	jobCh := make(chan int, len(jobs))
	for _, i := range jobs {
		jobCh <- i
	}
	close(jobCh)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			buf := make([]byte, 1<<20)
			for i := range jobCh {
				if ctx.Err() != nil {
					return
				}
				e := entries[i]
				results[i] = checkEntry(root, e, buf)
			}
		}()
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func checkEntry(
	root string, e bundle.FileEntry, buf []byte,
) Result {
	actual, err := hashFile(filepath.Join(root, e.Path), buf)
	if err != nil {
		return Result{
			Path:    e.Path,
			Verdict: Unreadable,
			Err:     err,
		}
	}
	if !strings.EqualFold(actual, e.Hash) {
		return Result{
			Path:     e.Path,
			Verdict:  Mismatch,
			Expected: strings.ToLower(e.Hash),
			Actual:   actual,
		}
	}
	return Result{Path: e.Path, Verdict: Match}
}

// hashFile computes the bundle format's 160-bit content digest.
func hashFile(path string, buf []byte) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha1.New()
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Failures filters results down to the non-Match subset,
// preserving order.
func Failures(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if r.Verdict != Match {
			out = append(out, r)
		}
	}
	return out
}
