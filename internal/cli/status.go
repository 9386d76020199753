// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// status.go - Show the change set without exporting.

package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jeranaias/changepack/internal/changeset"
	"github.com/jeranaias/changepack/internal/git"
	"github.com/jeranaias/changepack/internal/util"
)

func newStatusCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "List the files an export would include",
		Long: `Status runs the same staged, modified and untracked queries as export
and prints the deduplicated result. Nothing is written.

Each file is flagged with the lists it appeared in:
  S  staged
  M  modified
  ?  untracked`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runStatus(cmd.Context())
		},
	}
}

func (a *app) runStatus(ctx context.Context) error {
	if a.repoErr != nil {
		return a.repoErr
	}

	repo := git.NewRepository(a.repoRoot)
	cs, err := changeset.Resolve(ctx, repo)
	if err != nil {
		return NewCommandError("status", "query", "could not list changes", err)
	}
	files := cs.Files()
	branch, hasBranch := repo.Branch(ctx)

	if a.flags.json {
		data := StatusData{
			Repository: a.repoRoot,
			Staged:     nonNil(cs.Staged),
			Modified:   nonNil(cs.Modified),
			Untracked:  nonNil(cs.Untracked),
			Files:      nonNil(files),
			Total:      len(files),
		}
		if hasBranch {
			data.Branch = &branch
		}
		return NewJSONResponse("status", data).Print(a.stdout)
	}

	if !hasBranch {
		branch = "(detached)"
	}
	w := a.stdout
	fmt.Fprintln(w, TitleStyle.Render("changepack status"))
	fmt.Fprintln(w, RenderLabel("Repository", a.repoRoot))
	fmt.Fprintln(w, RenderLabel("Branch", branch))
	fmt.Fprintln(w, RenderLabel("Staged", strconv.Itoa(len(cs.Staged))))
	fmt.Fprintln(w, RenderLabel("Modified", strconv.Itoa(len(cs.Modified))))
	fmt.Fprintln(w, RenderLabel("Untracked", strconv.Itoa(len(cs.Untracked))))
	fmt.Fprintln(w, RenderSeparator())

	if len(files) == 0 {
		fmt.Fprintf(w, "%s No changed files found\n", RenderStatus("warning"))
		return nil
	}

	markers := newMarkerIndex(cs)

	// Long paths are shortened on a terminal only; piped output stays exact.
	pathWidth := 0
	if isTerminalWriter(w) {
		pathWidth = terminalWidth(w) - 7
	}
	for _, f := range files {
		shown := f
		if pathWidth > 0 {
			shown = util.TruncateLeftWidth(f, pathWidth)
		}
		fmt.Fprintf(w, "  %s  %s\n", DimStyle.Render(markers.marker(f)), shown)
	}
	fmt.Fprintf(w, "\n%d changed file(s)\n", len(files))
	return nil
}

// markerIndex records which listings each file appeared in, keyed the
// same way the change set dedupes paths.
type markerIndex struct {
	staged, modified, untracked map[string]bool
}

func newMarkerIndex(cs changeset.ChangeSet) markerIndex {
	return markerIndex{
		staged:    keySet(cs.Staged),
		modified:  keySet(cs.Modified),
		untracked: keySet(cs.Untracked),
	}
}

// marker returns the three-column S/M/? flag for f.
func (m markerIndex) marker(f string) string {
	key := changeset.Key(f)
	marker := []byte("   ")
	if m.staged[key] {
		marker[0] = 'S'
	}
	if m.modified[key] {
		marker[1] = 'M'
	}
	if m.untracked[key] {
		marker[2] = '?'
	}
	return string(marker)
}

func keySet(paths []string) map[string]bool {
	set := make(map[string]bool, len(paths))
	for _, p := range paths {
		set[changeset.Key(p)] = true
	}
	return set
}

// nonNil keeps empty lists as [] in JSON.
func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
