// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package changeset combines the three change listings of a repository
// (staged, unstaged-modified, untracked) into one deduplicated file list.
//
// The union is a pure function of its three inputs: a path that appears
// in several listings is exported once, and the result does not depend
// on which query finished first.
package changeset

import (
	"context"
	"path"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Source produces the three change listings for one repository.
// *git.Repository implements it.
type Source interface {
	Changes(ctx context.Context) (staged, modified, untracked []string, err error)
}

// ChangeSet holds the raw output of the three change queries.
type ChangeSet struct {
	Staged    []string
	Modified  []string
	Untracked []string
}

// Resolve runs the change queries of src. Query failures are returned
// unchanged so the caller can decide how to fail.
func Resolve(ctx context.Context, src Source) (ChangeSet, error) {
	staged, modified, untracked, err := src.Changes(ctx)
	if err != nil {
		return ChangeSet{}, err
	}
	return ChangeSet{Staged: staged, Modified: modified, Untracked: untracked}, nil
}

// Files returns the deduplicated union of the three listings. Order is
// first-seen: staged, then modified, then untracked.
func (c ChangeSet) Files() []string {
	return Union(c.Staged, c.Modified, c.Untracked)
}

// Empty reports whether there is nothing to export.
func (c ChangeSet) Empty() bool {
	return len(c.Files()) == 0
}

// Union merges lists into one slice without duplicates, keeping the
// first occurrence of each path. Two paths are duplicates when their
// cleaned NFC forms match; the spelling of the first occurrence is kept
// because that is the name the file has on disk.
func Union(lists ...[]string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, list := range lists {
		for _, p := range list {
			p = Canonical(p)
			if p == "" {
				continue
			}
			key := Key(p)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, p)
		}
	}
	return out
}

// Key is the identity two listed paths share when they name the same
// file: the canonical path in Unicode NFC.
func Key(p string) string {
	return norm.NFC.String(Canonical(p))
}

// Canonical cleans a repository-relative path as git prints it (slash
// separated): surrounding whitespace trimmed and redundant elements
// removed. An empty or "." path yields "".
func Canonical(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	p = path.Clean(p)
	if p == "." {
		return ""
	}
	return p
}
