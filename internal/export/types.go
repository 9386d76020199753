// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jeranaias/changepack/internal/archive"
	"github.com/jeranaias/changepack/internal/changeset"
	"github.com/jeranaias/changepack/internal/naming"
	"github.com/jeranaias/changepack/internal/staging"
)

// =============================================================================
// COLLABORATORS
// =============================================================================

// Provenance answers the best-effort lookups used for naming and the
// manifest. A false result means "unavailable".
type Provenance interface {
	Branch(ctx context.Context) (string, bool)
	ShortHash(ctx context.Context) (string, bool)
	UserName(ctx context.Context) (string, bool)
}

// Repository is everything the pipeline needs from version control.
type Repository interface {
	changeset.Source
	Provenance
}

// =============================================================================
// REQUEST / CONTEXT
// =============================================================================

// Request is the caller's input for one export.
type Request struct {
	// RepoRoot is the repository's top-level directory.
	RepoRoot string
	// ProjectName overrides the default (base name of RepoRoot).
	ProjectName string
	// Destination is the target directory, or the archive path. The
	// archive extension is appended when missing.
	Destination string
	Kind        archive.Kind
	// Template is the name template; empty means naming.DefaultTemplate.
	Template        string
	IncludeManifest bool
}

// Context is resolved once per run and never changed afterwards. Empty
// strings mean the lookup was unavailable.
type Context struct {
	Project    string
	Branch     string
	Hash       string
	User       string
	Timestamp  string
	ExportedAt time.Time
}

// Values returns the template substitution values.
func (c Context) Values() naming.Values {
	return naming.Values{
		Project:   c.Project,
		Branch:    c.Branch,
		Hash:      c.Hash,
		User:      c.User,
		Timestamp: c.Timestamp,
	}
}

// =============================================================================
// OUTCOME
// =============================================================================

// Status is the terminal state of a run.
type Status string

const (
	StatusSuccess Status = "success"
	StatusWarning Status = "warning"
	StatusError   Status = "error"
)

// Outcome is reported to the Notifier exactly once per run.
type Outcome struct {
	RunID       string
	Status      Status
	Project     string
	Name        string
	Destination string
	Kind        archive.Kind
	Message     string

	// Files is the resolved change-set size.
	Files int
	// Copied is the number of files written to the destination.
	Copied int
	// Omitted counts deleted or non-regular paths that were skipped.
	Omitted int
	// Failed lists files that could not be copied.
	Failed []staging.Failure
	// Manifest is true when export-info.json was written.
	Manifest bool

	Err error
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrNothingToExport is returned when the change set is empty.
var ErrNothingToExport = errors.New("no changed files found")

// EnvironmentError means the run could not start: the repository root or
// destination is unusable. Nothing has been touched on disk.
type EnvironmentError struct {
	Path   string
	Reason string
	Err    error
}

func (e *EnvironmentError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Reason, e.Path, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Reason, e.Path)
}

func (e *EnvironmentError) Unwrap() error {
	return e.Err
}

// IsEnvironmentError reports whether err is or wraps an *EnvironmentError.
func IsEnvironmentError(err error) bool {
	var envErr *EnvironmentError
	return errors.As(err, &envErr)
}
