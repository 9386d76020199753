// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package archive commits a finished content root to its destination:
// a plain directory, a zip archive, or a gzip-compressed tarball.
//
// Directory output places the content root's entries directly at the
// destination (which is wiped first). Archives nest everything under one
// top-level folder named after the export and are written through a
// temporary file that is renamed into place only when complete.
package archive

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jeranaias/changepack/internal/util"
)

// CommitError reports a failed commit step.
type CommitError struct {
	Kind        Kind
	Destination string
	Op          string
	Err         error
}

func (e *CommitError) Error() string {
	return fmt.Sprintf("%s output to %s: %s: %v", e.Kind, e.Destination, e.Op, e.Err)
}

func (e *CommitError) Unwrap() error {
	return e.Err
}

// Request describes one commit.
type Request struct {
	// ContentRoot is the staged directory.
	ContentRoot string
	// BaseName is the archive's top-level folder name.
	BaseName string
	// Destination is the target directory or archive file path. For
	// archives it should already be normalized with NormalizeDestination.
	Destination string
	Kind        Kind
}

// Commit writes req.ContentRoot to req.Destination. The content root may
// be consumed (moved) by a directory commit.
func Commit(ctx context.Context, req Request) error {
	if req.ContentRoot == "" || req.Destination == "" {
		return &CommitError{Kind: req.Kind, Destination: req.Destination, Op: "validate", Err: errors.New("content root and destination are required")}
	}

	switch req.Kind {
	case KindDirectory:
		return commitDirectory(req)
	case KindZip:
		return commitArchive(ctx, req, writeZip)
	case KindTarGz:
		return commitArchive(ctx, req, writeTarGz)
	default:
		return &CommitError{Kind: req.Kind, Destination: req.Destination, Op: "validate", Err: fmt.Errorf("unsupported kind %q", req.Kind)}
	}
}

// =============================================================================
// DIRECTORY
// =============================================================================

func commitDirectory(req Request) error {
	fail := func(op string, err error) error {
		return &CommitError{Kind: KindDirectory, Destination: req.Destination, Op: op, Err: err}
	}

	if err := os.RemoveAll(req.Destination); err != nil {
		return fail("remove existing destination", err)
	}
	if err := os.MkdirAll(req.Destination, 0755); err != nil {
		return fail("create destination", err)
	}

	entries, err := os.ReadDir(req.ContentRoot)
	if err != nil {
		return fail("read content root", err)
	}

	for _, entry := range entries {
		src := filepath.Join(req.ContentRoot, entry.Name())
		dst := filepath.Join(req.Destination, entry.Name())

		// Same filesystem: a rename is enough.
		if err := os.Rename(src, dst); err == nil {
			continue
		}
		if err := copyEntry(src, dst, entry); err != nil {
			return fail("copy "+entry.Name(), err)
		}
	}
	return nil
}

func copyEntry(src, dst string, entry os.DirEntry) error {
	info, err := entry.Info()
	if err != nil {
		return err
	}
	if entry.IsDir() {
		if err := os.MkdirAll(dst, info.Mode().Perm()|0700); err != nil {
			return err
		}
		return util.CopyTree(src, dst)
	}
	if !info.Mode().IsRegular() {
		return nil
	}
	_, err = util.CopyFile(src, dst, info.Mode().Perm(), nil)
	return err
}

// =============================================================================
// ARCHIVES
// =============================================================================

type archiveWriter func(ctx context.Context, out *os.File, contentRoot, baseName string) error

func commitArchive(ctx context.Context, req Request, write archiveWriter) error {
	fail := func(op string, err error) error {
		return &CommitError{Kind: req.Kind, Destination: req.Destination, Op: op, Err: err}
	}

	if strings.TrimSpace(req.BaseName) == "" {
		return fail("validate", errors.New("archive folder name is required"))
	}

	dir := filepath.Dir(req.Destination)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fail("create parent directory", err)
	}

	tmp, err := os.CreateTemp(dir, ".changepack-*.partial")
	if err != nil {
		return fail("create temporary archive", err)
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	if err := write(ctx, tmp, req.ContentRoot, req.BaseName); err != nil {
		return fail("write archive", err)
	}
	if err := tmp.Sync(); err != nil {
		return fail("sync archive", err)
	}
	if err := tmp.Close(); err != nil {
		return fail("close archive", err)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		return fail("set archive permissions", err)
	}
	if err := os.Rename(tmpPath, req.Destination); err != nil {
		return fail("move archive into place", err)
	}

	success = true
	return nil
}
