// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package git

import (
	"context"
	"path/filepath"
	"strings"
)

// Provenance lookups are best-effort: each returns ok=false instead of an
// error and the call site picks its own fallback.

// Branch returns the current branch name. A detached HEAD or any git
// failure reports ok=false. An unborn branch (no commits yet) still
// resolves through symbolic-ref.
func (r *Repository) Branch(ctx context.Context) (string, bool) {
	out, err := r.Run(ctx, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		out, err = r.Run(ctx, "symbolic-ref", "--short", "-q", "HEAD")
		if err != nil {
			return "", false
		}
	}
	branch := strings.TrimSpace(out)
	if branch == "" || branch == "HEAD" {
		return "", false
	}
	return branch, true
}

// ShortHash returns the abbreviated hash of HEAD.
func (r *Repository) ShortHash(ctx context.Context) (string, bool) {
	out, err := r.Run(ctx, "rev-parse", "--short", "HEAD")
	if err != nil {
		return "", false
	}
	hash := strings.TrimSpace(out)
	return hash, hash != ""
}

// UserName returns the configured user.name.
func (r *Repository) UserName(ctx context.Context) (string, bool) {
	out, err := r.Run(ctx, "config", "user.name")
	if err != nil {
		return "", false
	}
	name := strings.TrimSpace(out)
	return name, name != ""
}

// TopLevel resolves the working tree root containing dir.
func TopLevel(ctx context.Context, dir string) (string, error) {
	out, err := NewRepository(dir).Run(ctx, "rev-parse", "--show-toplevel")
	if err != nil {
		return "", err
	}
	return filepath.FromSlash(strings.TrimSpace(out)), nil
}

// Version returns the installed git version, e.g. "2.43.0".
func Version(ctx context.Context) (string, error) {
	out, err := NewRepository(".").Run(ctx, "--version")
	if err != nil {
		return "", err
	}
	return strings.TrimPrefix(strings.TrimSpace(out), "git version "), nil
}
