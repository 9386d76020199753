// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package archive

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Kind is the destination representation.
type Kind string

const (
	KindDirectory Kind = "directory"
	KindZip       Kind = "zip"
	KindTarGz     Kind = "tar.gz"
)

// Kinds lists every supported kind.
var Kinds = []Kind{KindDirectory, KindZip, KindTarGz}

// ParseKind accepts the canonical names plus a few common aliases,
// case-insensitively. An empty string means KindDirectory.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "directory", "dir", "folder":
		return KindDirectory, nil
	case "zip":
		return KindZip, nil
	case "tar.gz", "tgz", "targz", "tar-gz":
		return KindTarGz, nil
	default:
		return "", fmt.Errorf("unknown output kind %q (want directory, zip or tar.gz)", s)
	}
}

// Extension returns the file extension of an archive kind, or "" for
// KindDirectory.
func (k Kind) Extension() string {
	switch k {
	case KindZip:
		return ".zip"
	case KindTarGz:
		return ".tar.gz"
	default:
		return ""
	}
}

// IsArchive reports whether k produces a single archive file.
func (k Kind) IsArchive() bool {
	return k.Extension() != ""
}

func (k Kind) String() string { return string(k) }

// NormalizeDestination appends the kind's extension to path unless it
// already ends with it (compared case-insensitively). For archives, a path
// ending in a separator names the folder to write into, and the archive
// is called name inside it.
func NormalizeDestination(path, name string, k Kind) string {
	ext := k.Extension()
	if ext == "" {
		return path
	}
	if hasTrailingSeparator(path) {
		if name != "" {
			path = filepath.Join(path, name)
		} else if trimmed := strings.TrimRight(path, `/`+string(filepath.Separator)); trimmed != "" {
			path = trimmed
		}
	}
	if strings.HasSuffix(strings.ToLower(path), ext) {
		return path
	}
	return path + ext
}

func hasTrailingSeparator(path string) bool {
	return strings.HasSuffix(path, "/") || strings.HasSuffix(path, string(filepath.Separator))
}
