// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package manifest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Problem kinds reported by Verify.
const (
	ProblemMissing      = "missing"
	ProblemSizeMismatch = "size mismatch"
	ProblemHashMismatch = "hash mismatch"
	ProblemUnreadable   = "unreadable"
)

// Problem is one file that does not match its entry.
type Problem struct {
	Path   string `json:"path"`
	Kind   string `json:"kind"`
	Detail string `json:"detail,omitempty"`
}

// Report summarizes a verification pass.
type Report struct {
	Checked  int       `json:"checked"`
	Problems []Problem `json:"problems"`
}

// OK reports whether every entry matched.
func (r *Report) OK() bool {
	return len(r.Problems) == 0
}

// HashFile returns the hex SHA-256 and size of the file at path.
func HashFile(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return "", 0, err
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}

// Verify re-reads every entry of m below root and compares size and
// hash. Entries without a recorded hash are checked for size only.
func Verify(root string, m *Manifest) *Report {
	report := &Report{}
	for _, e := range m.Files {
		report.Checked++
		path := filepath.Join(root, filepath.FromSlash(e.Path))

		sum, size, err := HashFile(path)
		switch {
		case os.IsNotExist(err):
			report.Problems = append(report.Problems, Problem{Path: e.Path, Kind: ProblemMissing})
			continue
		case err != nil:
			report.Problems = append(report.Problems, Problem{Path: e.Path, Kind: ProblemUnreadable, Detail: err.Error()})
			continue
		}

		if size != e.Size {
			report.Problems = append(report.Problems, Problem{
				Path:   e.Path,
				Kind:   ProblemSizeMismatch,
				Detail: fmt.Sprintf("expected %d bytes, found %d", e.Size, size),
			})
			continue
		}
		if e.SHA256 != nil && *e.SHA256 != sum {
			report.Problems = append(report.Problems, Problem{
				Path:   e.Path,
				Kind:   ProblemHashMismatch,
				Detail: fmt.Sprintf("expected %s, found %s", *e.SHA256, sum),
			})
		}
	}
	return report
}
