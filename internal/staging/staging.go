// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package staging assembles the content root of an export: a private
// temporary directory holding the changed files laid out exactly as they
// will appear in the final output.
//
// Files are copied one at a time. Missing paths (deleted files still
// listed by git) and anything that is not a regular file are skipped
// silently. A file that fails to copy is logged and recorded in
// Result.Failed; it never aborts the run.
package staging

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/jeranaias/changepack/internal/manifest"
	"github.com/jeranaias/changepack/internal/util"
)

// TempPattern names the per-run temporary directory.
const TempPattern = "changepack-*"

// Failure records a file that could not be staged.
type Failure struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// Result is the side output of Stage.
type Result struct {
	// Entries has one item per copied file, in processing order.
	Entries []manifest.Entry
	// Omitted lists paths that were missing or not regular files.
	Omitted []string
	// Failed lists paths whose copy failed.
	Failed []Failure
}

// ProgressFunc is called after each file with its 1-based index.
type ProgressFunc func(index, total int, relPath string)

// Area is one run's staging area. Close removes it.
type Area struct {
	tempDir     string
	contentRoot string
	logger      *slog.Logger
}

// New creates a fresh temporary directory with a content root named
// baseName beneath it.
func New(baseName string, logger *slog.Logger) (*Area, error) {
	if baseName == "" || baseName != filepath.Base(baseName) || baseName == "." || baseName == ".." {
		return nil, fmt.Errorf("invalid content root name %q", baseName)
	}
	if logger == nil {
		logger = slog.Default()
	}

	tempDir, err := os.MkdirTemp("", TempPattern)
	if err != nil {
		return nil, fmt.Errorf("create staging directory: %w", err)
	}
	contentRoot := filepath.Join(tempDir, baseName)
	if err := os.Mkdir(contentRoot, 0755); err != nil {
		os.RemoveAll(tempDir)
		return nil, fmt.Errorf("create content root: %w", err)
	}

	return &Area{tempDir: tempDir, contentRoot: contentRoot, logger: logger}, nil
}

// TempDir is the directory removed by Close.
func (a *Area) TempDir() string { return a.tempDir }

// ContentRoot is the directory holding the staged files.
func (a *Area) ContentRoot() string { return a.contentRoot }

// Close removes the temporary directory and everything below it.
func (a *Area) Close() error {
	if a.tempDir == "" {
		return nil
	}
	err := os.RemoveAll(a.tempDir)
	a.tempDir = ""
	return err
}

// Stage copies files (repository-relative, slash separated) from
// repoRoot into the content root. Only cancellation of ctx returns an
// error; per-file problems end up in the Result.
func (a *Area) Stage(ctx context.Context, repoRoot string, files []string, progress ProgressFunc) (*Result, error) {
	result := &Result{}
	total := len(files)

	for i, rel := range files {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		switch entry, err := a.stageOne(repoRoot, rel); {
		case errors.Is(err, errOmitted):
			a.logger.Debug("skipping non-regular or missing file", "path", rel)
			result.Omitted = append(result.Omitted, rel)
		case err != nil:
			a.logger.Warn("failed to copy file", "path", rel, "error", err)
			result.Failed = append(result.Failed, Failure{Path: rel, Reason: err.Error()})
		default:
			result.Entries = append(result.Entries, entry)
		}

		if progress != nil {
			progress(i+1, total, rel)
		}
	}
	return result, nil
}

var errOmitted = errors.New("omitted")

func (a *Area) stageOne(repoRoot, rel string) (manifest.Entry, error) {
	local, err := localPath(rel)
	if err != nil {
		return manifest.Entry{}, err
	}

	target := filepath.Join(a.contentRoot, local)
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return manifest.Entry{}, fmt.Errorf("create parent directory: %w", err)
	}

	source := filepath.Join(repoRoot, local)
	info, err := os.Lstat(source)
	if errors.Is(err, os.ErrNotExist) {
		return manifest.Entry{}, errOmitted
	}
	if err != nil {
		return manifest.Entry{}, err
	}
	if !info.Mode().IsRegular() {
		return manifest.Entry{}, errOmitted
	}

	h := sha256.New()
	n, err := util.CopyFile(source, target, info.Mode().Perm(), h)
	if err != nil {
		return manifest.Entry{}, err
	}
	sum := hex.EncodeToString(h.Sum(nil))

	return manifest.Entry{Path: rel, Size: n, SHA256: &sum}, nil
}

// localPath converts a repository-relative slash path into an OS path,
// refusing anything that would land outside the root.
func localPath(rel string) (string, error) {
	clean := path.Clean(rel)
	if clean == "." || path.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("path %q escapes the repository root", rel)
	}
	local := filepath.FromSlash(clean)
	if filepath.IsAbs(local) || filepath.VolumeName(local) != "" {
		return "", fmt.Errorf("path %q escapes the repository root", rel)
	}
	return local, nil
}
