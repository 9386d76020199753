// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package manifest describes an export: where it came from (project,
// branch, commit, user, time) and what it contains (path, size and
// SHA-256 of every copied file).
//
// The manifest is written as export-info.json at the root of the content
// directory before the destination is committed, so archives carry it
// too.
package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jeranaias/changepack/internal/util"
)

// FileName is the manifest's fixed name at the content root.
const FileName = "export-info.json"

// DateLayout is ISO-8601 with millisecond precision.
const DateLayout = "2006-01-02T15:04:05.000Z07:00"

// Entry describes one copied regular file.
type Entry struct {
	Path   string  `json:"path"`
	Size   int64   `json:"size"`
	SHA256 *string `json:"sha256"`
}

// Manifest is the on-disk record. Unavailable provenance is null.
type Manifest struct {
	Name           string  `json:"name"`
	ProjectName    string  `json:"projectName"`
	Branch         *string `json:"branch"`
	CommitHash     *string `json:"commitHash"`
	User           *string `json:"user"`
	ExportDate     string  `json:"exportDate"`
	TotalFiles     int     `json:"totalFiles"`
	StagedFiles    int     `json:"stagedFiles"`
	ModifiedFiles  int     `json:"modifiedFiles"`
	UntrackedFiles int     `json:"untrackedFiles"`
	Files          []Entry `json:"files"`
}

// Optional returns nil for an empty string, otherwise a pointer to s.
func Optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// FormatDate renders t in UTC with DateLayout.
func FormatDate(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

// Marshal encodes m as indented JSON with a trailing newline. A nil file
// list encodes as an empty array.
func Marshal(m *Manifest) ([]byte, error) {
	if m.Files == nil {
		m.Files = []Entry{}
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode manifest: %w", err)
	}
	return append(data, '\n'), nil
}

// Write stores m as FileName inside dir and returns the file path.
func Write(dir string, m *Manifest) (string, error) {
	data, err := Marshal(m)
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, FileName)
	if err := util.AtomicWriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("write manifest: %w", err)
	}
	return path, nil
}

// Read loads a manifest from path. If path is a directory, FileName
// inside it is read.
func Read(path string) (*Manifest, error) {
	if fi, err := os.Stat(path); err == nil && fi.IsDir() {
		path = filepath.Join(path, FileName)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode manifest %s: %w", path, err)
	}
	return &m, nil
}
