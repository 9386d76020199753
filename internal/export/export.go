// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jeranaias/changepack/internal/archive"
	"github.com/jeranaias/changepack/internal/changeset"
	"github.com/jeranaias/changepack/internal/logging"
	"github.com/jeranaias/changepack/internal/manifest"
	"github.com/jeranaias/changepack/internal/naming"
	"github.com/jeranaias/changepack/internal/staging"
)

// Options configures a Runner. Zero fields get no-op or default values.
type Options struct {
	Logger   *logging.Logger
	Progress ProgressSink
	Notifier Notifier
	// Now returns the run's timestamp source. Default: time.Now.
	Now func() time.Time
	// NewRunID returns the run identifier. Default: a random UUID.
	NewRunID func() string
}

// Runner executes exports against one repository.
type Runner struct {
	repo     Repository
	logger   *logging.Logger
	progress ProgressSink
	notifier Notifier
	now      func() time.Time
	newRunID func() string
}

// NewRunner creates a Runner for repo.
func NewRunner(repo Repository, opts Options) *Runner {
	r := &Runner{
		repo:     repo,
		logger:   opts.Logger,
		progress: opts.Progress,
		notifier: opts.Notifier,
		now:      opts.Now,
		newRunID: opts.NewRunID,
	}
	if r.logger == nil {
		r.logger = logging.Nop()
	}
	if r.progress == nil {
		r.progress = NopProgress{}
	}
	if r.notifier == nil {
		r.notifier = NopNotifier{}
	}
	if r.now == nil {
		r.now = time.Now
	}
	if r.newRunID == nil {
		r.newRunID = func() string { return uuid.NewString() }
	}
	return r
}

// Run performs one export. The Notifier sees exactly one Outcome, which
// is also returned. The error is nil only for StatusSuccess.
func (r *Runner) Run(ctx context.Context, req Request) (*Outcome, error) {
	runID := r.newRunID()
	log := r.logger.With("run_id", runID, "repo", req.RepoRoot)

	out := &Outcome{RunID: runID, Kind: req.Kind}
	err := r.run(ctx, req, log, out)

	switch {
	case err == nil:
		out.Status = StatusSuccess
		out.Message = successMessage(out)
		log.Info("export completed",
			"destination", out.Destination,
			"kind", string(out.Kind),
			"copied", out.Copied,
			"omitted", out.Omitted,
			"failed", len(out.Failed))
	case errors.Is(err, ErrNothingToExport):
		out.Status = StatusWarning
		out.Message = "No changed files found"
		log.Warn("nothing to export")
	default:
		out.Status = StatusError
		out.Message = "Failed to export changed files: " + err.Error()
		log.Error("export failed", "error", err)
	}
	out.Err = err

	r.notifier.Notify(*out)
	return out, err
}

func (r *Runner) run(ctx context.Context, req Request, log *logging.Logger, out *Outcome) error {
	if req.Kind == "" {
		req.Kind = archive.KindDirectory
		out.Kind = req.Kind
	}

	repoRoot, err := checkEnvironment(req)
	if err != nil {
		return err
	}
	project := req.ProjectName
	if project == "" {
		project = filepath.Base(repoRoot)
	}
	out.Project = project

	progress := &tracker{sink: r.progress}

	// Change set.
	progress.advance(pctQuery, MsgQuery)
	cs, err := changeset.Resolve(ctx, r.repo)
	if err != nil {
		return err
	}
	files := cs.Files()
	out.Files = len(files)
	log.Debug("change set resolved",
		"staged", len(cs.Staged),
		"modified", len(cs.Modified),
		"untracked", len(cs.Untracked),
		"total", len(files))
	if len(files) == 0 {
		return ErrNothingToExport
	}
	progress.advance(pctFound, MsgFound(len(files)))

	// Naming.
	ec := r.resolveContext(ctx, project)
	name := naming.Render(req.Template, ec.Values())
	out.Name = name
	dest := archive.NormalizeDestination(req.Destination, name, req.Kind)
	out.Destination = dest
	log.Debug("export named", "name", name, "destination", dest)

	// Staging.
	progress.advance(pctFolders, MsgFolders)
	area, err := staging.New(name, log.Slog())
	if err != nil {
		return err
	}
	defer func() {
		if err := area.Close(); err != nil {
			log.Warn("failed to remove staging directory", "path", area.TempDir(), "error", err)
		}
	}()

	toStage := files
	var reserved []staging.Failure
	if req.IncludeManifest {
		toStage, reserved = reserveManifestName(files)
		for _, f := range reserved {
			log.Warn("file not exported", "path", f.Path, "reason", f.Reason)
		}
	}

	result, err := area.Stage(ctx, repoRoot, toStage, func(i, n int, _ string) {
		progress.copying(i, n)
	})
	if err != nil {
		return err
	}
	out.Copied = len(result.Entries)
	out.Omitted = len(result.Omitted)
	out.Failed = append(result.Failed, reserved...)

	// Manifest.
	if req.IncludeManifest {
		progress.advance(pctWrite, MsgManifest)
		m := buildManifest(name, ec, cs, len(files), result.Entries)
		if _, err := manifest.Write(area.ContentRoot(), m); err != nil {
			return fmt.Errorf("write manifest: %w", err)
		}
		out.Manifest = true
	}

	// Commit.
	if err := ctx.Err(); err != nil {
		return err
	}
	progress.advance(pctCommit, MsgCommit)
	err = archive.Commit(ctx, archive.Request{
		ContentRoot: area.ContentRoot(),
		BaseName:    name,
		Destination: dest,
		Kind:        req.Kind,
	})
	if err != nil {
		return err
	}

	progress.advance(pctDone, MsgDone)
	return nil
}

// resolveContext performs the best-effort provenance lookups.
func (r *Runner) resolveContext(ctx context.Context, project string) Context {
	now := r.now()
	ec := Context{
		Project:    project,
		Timestamp:  naming.FormatTimestamp(now),
		ExportedAt: now,
	}
	if v, ok := r.repo.Branch(ctx); ok {
		ec.Branch = v
	}
	if v, ok := r.repo.ShortHash(ctx); ok {
		ec.Hash = v
	}
	if v, ok := r.repo.UserName(ctx); ok {
		ec.User = v
	}
	return ec
}

func buildManifest(name string, ec Context, cs changeset.ChangeSet, total int, entries []manifest.Entry) *manifest.Manifest {
	return &manifest.Manifest{
		Name:           name,
		ProjectName:    ec.Project,
		Branch:         manifest.Optional(ec.Branch),
		CommitHash:     manifest.Optional(ec.Hash),
		User:           manifest.Optional(ec.User),
		ExportDate:     manifest.FormatDate(ec.ExportedAt),
		TotalFiles:     total,
		StagedFiles:    len(cs.Staged),
		ModifiedFiles:  len(cs.Modified),
		UntrackedFiles: len(cs.Untracked),
		Files:          entries,
	}
}

// reserveManifestName removes a root-level file named like the manifest
// from files. The manifest is written to the same place and would replace
// it, so the file is reported as not copied instead.
func reserveManifestName(files []string) ([]string, []staging.Failure) {
	kept := make([]string, 0, len(files))
	var reserved []staging.Failure
	for _, f := range files {
		if strings.EqualFold(f, manifest.FileName) {
			reserved = append(reserved, staging.Failure{
				Path:   f,
				Reason: "name is reserved for the export manifest",
			})
			continue
		}
		kept = append(kept, f)
	}
	return kept, reserved
}

// checkEnvironment validates the request before anything touches disk and
// returns the cleaned absolute repository root.
func checkEnvironment(req Request) (string, error) {
	if strings.TrimSpace(req.RepoRoot) == "" {
		return "", &EnvironmentError{Path: req.RepoRoot, Reason: "no repository root"}
	}
	root, err := filepath.Abs(req.RepoRoot)
	if err != nil {
		return "", &EnvironmentError{Path: req.RepoRoot, Reason: "cannot resolve repository root", Err: err}
	}
	info, err := os.Stat(root)
	if err != nil {
		return "", &EnvironmentError{Path: root, Reason: "repository root not accessible", Err: err}
	}
	if !info.IsDir() {
		return "", &EnvironmentError{Path: root, Reason: "repository root is not a directory"}
	}

	if strings.TrimSpace(req.Destination) == "" {
		return "", &EnvironmentError{Path: req.Destination, Reason: "no destination"}
	}
	if _, err := archive.ParseKind(string(req.Kind)); err != nil {
		return "", &EnvironmentError{Path: req.Destination, Reason: "invalid output kind", Err: err}
	}

	// A directory commit wipes its destination first.
	if req.Kind == archive.KindDirectory {
		dest, err := filepath.Abs(req.Destination)
		if err != nil {
			return "", &EnvironmentError{Path: req.Destination, Reason: "cannot resolve destination", Err: err}
		}
		if contains(dest, root) {
			return "", &EnvironmentError{Path: dest, Reason: "destination contains the repository"}
		}
	}
	return root, nil
}

// contains reports whether child is parent or lies beneath it, comparing
// both the cleaned paths and, when they exist, their resolved targets.
func contains(parent, child string) bool {
	if within(parent, child) {
		return true
	}
	p, perr := filepath.EvalSymlinks(parent)
	c, cerr := filepath.EvalSymlinks(child)
	if perr != nil || cerr != nil {
		return false
	}
	return within(p, c)
}

func within(parent, child string) bool {
	rel, err := filepath.Rel(parent, child)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

func successMessage(o *Outcome) string {
	msg := fmt.Sprintf("Successfully exported %s changes to: %s", o.Project, o.Destination)
	if n := len(o.Failed); n > 0 {
		msg += fmt.Sprintf(" (%d file(s) could not be copied)", n)
	}
	return msg
}
