// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package git provides typed access to the git CLI for the read-only
// queries changepack needs: the three change listings and the
// best-effort provenance lookups (branch, short hash, user name).
//
// Every command targets the repository via "git -C <dir>" and runs with
// core.quotePath=false so that non-ASCII paths come back as raw UTF-8
// instead of octal-escaped quoted strings. The change listings also use
// -z, so paths holding quotes, backslashes, tabs or newlines arrive
// verbatim instead of C-quoted.
package git

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"golang.org/x/sync/errgroup"
)

// =============================================================================
// QUERY DEFINITIONS
// =============================================================================

// Query names used in errors and logs.
const (
	QueryStaged    = "staged"
	QueryModified  = "modified"
	QueryUntracked = "untracked"
)

var (
	stagedArgs    = []string{"diff", "--cached", "--name-only", "-z"}
	modifiedArgs  = []string{"diff", "--name-only", "-z"}
	untrackedArgs = []string{"ls-files", "--others", "--exclude-standard", "-z"}
)

// =============================================================================
// ERRORS
// =============================================================================

// QueryError reports a failed git invocation. Change-listing queries
// surface it to the caller; provenance lookups swallow it.
type QueryError struct {
	Query  string   // logical query name, e.g. "staged"
	Dir    string   // repository directory
	Args   []string // git arguments (without -C)
	Stderr string   // trimmed stderr output
	Err    error    // underlying exec error
}

func (e *QueryError) Error() string {
	msg := fmt.Sprintf("git %s in %s: %v", strings.Join(e.Args, " "), e.Dir, e.Err)
	if e.Stderr != "" {
		msg += " (stderr: " + e.Stderr + ")"
	}
	return msg
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

// IsQueryError reports whether err is (or wraps) a *QueryError.
func IsQueryError(err error) bool {
	var qe *QueryError
	return errors.As(err, &qe)
}

// =============================================================================
// REPOSITORY
// =============================================================================

// Repository runs git commands against one working tree.
type Repository struct {
	dir    string
	binary string
}

// NewRepository returns a Repository targeting dir.
func NewRepository(dir string) *Repository {
	return &Repository{dir: dir, binary: "git"}
}

// Dir returns the repository directory.
func (r *Repository) Dir() string {
	return r.dir
}

// Run executes git with the given arguments and returns stdout.
// Stderr is captured and attached to the returned *QueryError.
func (r *Repository) Run(ctx context.Context, args ...string) (string, error) {
	return r.run(ctx, "", args...)
}

func (r *Repository) run(ctx context.Context, query string, args ...string) (string, error) {
	fullArgs := append([]string{"-C", r.dir, "-c", "core.quotePath=false"}, args...)

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, r.binary, fullArgs...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		// Prefer the context error when the process was killed by cancellation
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		return "", &QueryError{
			Query:  query,
			Dir:    r.dir,
			Args:   args,
			Stderr: strings.TrimSpace(stderr.String()),
			Err:    err,
		}
	}
	return stdout.String(), nil
}

// ParseList splits git list output into non-empty paths. NUL-separated
// output (-z) is taken verbatim. Anything else is read as lines, each
// trimmed, which also handles CRLF output from git on Windows.
func ParseList(output string) []string {
	if strings.Contains(output, "\x00") {
		records := strings.Split(output, "\x00")
		out := make([]string, 0, len(records))
		for _, rec := range records {
			if rec != "" {
				out = append(out, rec)
			}
		}
		return out
	}

	lines := strings.Split(strings.TrimSpace(output), "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		out = append(out, line)
	}
	return out
}

func (r *Repository) list(ctx context.Context, query string, args []string) ([]string, error) {
	out, err := r.run(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return ParseList(out), nil
}

// Staged lists paths recorded in the index for the next commit.
func (r *Repository) Staged(ctx context.Context) ([]string, error) {
	return r.list(ctx, QueryStaged, stagedArgs)
}

// Modified lists tracked paths with unstaged working-tree changes.
func (r *Repository) Modified(ctx context.Context) ([]string, error) {
	return r.list(ctx, QueryModified, modifiedArgs)
}

// Untracked lists paths that are neither tracked nor ignored.
func (r *Repository) Untracked(ctx context.Context) ([]string, error) {
	return r.list(ctx, QueryUntracked, untrackedArgs)
}

// Changes issues the three change queries concurrently and waits for all
// of them. The first failure cancels the others and is returned.
func (r *Repository) Changes(ctx context.Context) (staged, modified, untracked []string, err error) {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error
		staged, err = r.Staged(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		modified, err = r.Modified(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		untracked, err = r.Untracked(gctx)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, nil, nil, err
	}
	return staged, modified, untracked, nil
}
