// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides file and text helpers shared by changepack's packages.
//
// # Key Functions
//
//   - AtomicWriteFile: crash-safe file writing with fsync
//   - CopyFile: byte-exact copy with an optional tee (e.g. a hash)
//   - CopyTree: recursive copy of directories and regular files
//   - TruncateWidth, TruncateLeftWidth: display-width aware shortening
//
// # Usage
//
//	// Write files atomically to prevent data loss
//	err := util.AtomicWriteFile(path, data, 0644)
//
//	// Copy and hash in one pass
//	h := sha256.New()
//	n, err := util.CopyFile(src, dst, 0644, h)
package util
