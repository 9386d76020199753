// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// export_cmd.go - The export command (also the root command's action).

package cli

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jeranaias/changepack/internal/archive"
	"github.com/jeranaias/changepack/internal/export"
	"github.com/jeranaias/changepack/internal/git"
	"github.com/jeranaias/changepack/internal/logging"
	"github.com/jeranaias/changepack/internal/manifest"
	"github.com/jeranaias/changepack/internal/naming"
)

// exportFlags are the flags of the export command. The root command
// carries its own copy.
type exportFlags struct {
	dest     string
	kind     string
	template string
	name     string
	manifest bool
	noReveal bool
}

func addExportFlags(cmd *cobra.Command, o *exportFlags) {
	f := cmd.Flags()
	f.StringVarP(&o.dest, "dest", "o", "", "destination directory or archive path; end an archive path with / to write into that folder (default: ~/Desktop/<project>)")
	f.StringVarP(&o.kind, "kind", "k", "", "output kind: directory, zip or tar.gz")
	f.StringVarP(&o.template, "template", "t", "", "name template, e.g. \"{project}-{branch}-{timestamp}\"")
	f.StringVar(&o.name, "name", "", "project name (default: repository directory name)")
	f.BoolVar(&o.manifest, "manifest", false, "write "+manifest.FileName+" into the export")
	f.BoolVar(&o.noReveal, "no-reveal", false, "do not open the destination when done")
}

func newExportCommand(a *app) *cobra.Command {
	o := &exportFlags{}
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the staged, modified and untracked files",
		Long: `Export copies every changed file of the repository into a fresh
destination, preserving relative paths. Deleted files are skipped.

Template placeholders: {project} {branch} {hash} {user} {timestamp}.
Unavailable values render as empty strings.`,
		Example: `  changepack export
  changepack export -k zip -o ~/handoff/review
  changepack export --name webapp --manifest`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runExport(cmd, o)
		},
	}
	addExportFlags(cmd, o)
	return cmd
}

// runExport performs one export and reports it through the notifier.
// "Nothing to export" is a warning, not a failure.
func (a *app) runExport(cmd *cobra.Command, o *exportFlags) error {
	req, err := a.exportRequest(cmd, o)
	if err != nil {
		return err
	}

	sink, bar := a.progressSink()
	runner := export.NewRunner(git.NewRepository(req.RepoRoot), export.Options{
		Logger:   a.logger,
		Progress: sink,
		Notifier: a.notifier(bar, time.Now()),
	})

	outcome, err := runner.Run(cmd.Context(), req)
	if errors.Is(err, export.ErrNothingToExport) {
		return nil
	}
	if err != nil {
		a.logger.Debug("export stopped", "stage", describeFailure(err), "run_id", outcome.RunID)
		return &reportedError{err: err}
	}

	if a.shouldReveal(o) {
		target := revealTarget(outcome)
		if err := a.reveal(target); err != nil {
			a.logger.Warn("could not open destination", "path", target, "error", err)
		}
	}
	return nil
}

// exportRequest merges flags over the configuration. Flags win.
func (a *app) exportRequest(cmd *cobra.Command, o *exportFlags) (export.Request, error) {
	if a.repoErr != nil {
		return export.Request{}, a.repoErr
	}

	kind := a.cfg.Kind()
	if o.kind != "" {
		k, err := archive.ParseKind(o.kind)
		if err != nil {
			return export.Request{}, NewValidationErrorWithExample("kind", o.kind,
				"must be directory, zip or tar.gz", "--kind zip")
		}
		kind = k
	}

	template := a.cfg.Export.NameTemplate
	if o.template != "" {
		if strings.Count(o.template, "{") != strings.Count(o.template, "}") {
			return export.Request{}, NewValidationErrorWithExample("template", o.template,
				"unbalanced braces", "--template \"{project}-{hash}\"")
		}
		template = o.template
	}

	includeManifest := a.cfg.Export.IncludeManifest
	if cmd.Flags().Changed("manifest") {
		includeManifest = o.manifest
	}

	project := filepath.Base(a.repoRoot)
	if cmd.Flags().Changed("name") {
		name, err := validateProjectName(o.name)
		if err != nil {
			return export.Request{}, err
		}
		project = name
	}

	dest := o.dest
	if dest == "" {
		dest = defaultDestination(a.cfg.Export.DestinationDir, project)
	} else {
		dest = logging.ExpandPath(dest)
	}

	return export.Request{
		RepoRoot:        a.repoRoot,
		ProjectName:     project,
		Destination:     dest,
		Kind:            kind,
		Template:        template,
		IncludeManifest: includeManifest,
	}, nil
}

// validateProjectName accepts a non-empty name without file-name-illegal
// characters and returns it trimmed.
func validateProjectName(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "", NewValidationError("name", name, "project name cannot be empty")
	}
	if naming.HasIllegalChars(trimmed) {
		return "", NewValidationErrorWithExample("name", name,
			"project name cannot contain "+strings.Join(strings.Split(naming.IllegalChars, ""), " ")+" or control characters",
			"--name my-project")
	}
	return trimmed, nil
}

// defaultDestination returns <dir>/<project>. dir is the configured
// destination directory, else ~/Desktop when it exists, else the home
// directory.
func defaultDestination(configured, project string) string {
	if configured != "" {
		return filepath.Join(logging.ExpandPath(configured), project)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return project
	}
	desktop := filepath.Join(home, "Desktop")
	if info, err := os.Stat(desktop); err == nil && info.IsDir() {
		return filepath.Join(desktop, project)
	}
	return filepath.Join(home, project)
}

func (a *app) shouldReveal(o *exportFlags) bool {
	return a.cfg.Export.RevealAfterExport &&
		!o.noReveal &&
		!a.flags.json &&
		!a.flags.quiet &&
		a.interactive()
}

// revealTarget is the directory to open: the export itself, or the
// folder holding the archive.
func revealTarget(o *export.Outcome) string {
	if o.Kind.IsArchive() {
		return filepath.Dir(o.Destination)
	}
	return o.Destination
}
