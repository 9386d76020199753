// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export runs the changed-files export pipeline.
//
// One call to Runner.Run is one export: it resolves the change set from
// the repository, renders the export name, stages the files into a
// private temporary content root, optionally writes the manifest, and
// commits the content root to a directory, zip or tar.gz destination.
// The temporary root is always removed before Run returns.
//
// # Collaborators
//
//   - Repository: the three change queries plus best-effort provenance
//     (implemented by *git.Repository)
//   - ProgressSink: discrete milestones; NopProgress is fine
//   - Notifier: exactly one terminal Outcome per run
//
// # Usage
//
//	runner := export.NewRunner(git.NewRepository(root), export.Options{
//	    Logger:   logger,
//	    Progress: sink,
//	    Notifier: notifier,
//	})
//	outcome, err := runner.Run(ctx, export.Request{
//	    RepoRoot:    root,
//	    Destination: "/out/demo",
//	    Kind:        archive.KindZip,
//	})
//
// # Errors
//
// Run returns *EnvironmentError, *git.QueryError, *archive.CommitError,
// ErrNothingToExport or the context's error. The same error is carried
// in the Outcome passed to the Notifier.
package export
