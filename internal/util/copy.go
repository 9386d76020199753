// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package util

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// CopyFile copies the regular file src to dst, creating or truncating dst
// with perm. Every byte written to dst is also written to tee when tee is
// non-nil (e.g. a hash). Returns the number of bytes copied.
//
// A partially written dst is removed on failure.
func CopyFile(src, dst string, perm os.FileMode, tee io.Writer) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return 0, err
	}

	var w io.Writer = out
	if tee != nil {
		w = io.MultiWriter(out, tee)
	}

	n, err := io.Copy(w, in)
	if err == nil {
		err = out.Sync()
	}
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(dst)
		return 0, err
	}
	return n, nil
}

// CopyTree recursively copies the contents of srcDir into dstDir, which
// must already exist. Directories are recreated with their permissions;
// only regular files are copied.
func CopyTree(srcDir, dstDir string) error {
	return filepath.WalkDir(srcDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		target := filepath.Join(dstDir, rel)

		info, err := d.Info()
		if err != nil {
			return err
		}

		switch {
		case d.IsDir():
			if err := os.MkdirAll(target, info.Mode().Perm()|0700); err != nil {
				return fmt.Errorf("create directory %s: %w", rel, err)
			}
		case info.Mode().IsRegular():
			if _, err := CopyFile(path, target, info.Mode().Perm(), nil); err != nil {
				return fmt.Errorf("copy %s: %w", rel, err)
			}
		}
		return nil
	})
}
