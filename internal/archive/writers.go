// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package archive

import (
	"archive/tar"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
)

// walkFunc is called for every directory and regular file below the
// content root. name is the slash-separated archive path including the
// base folder; directories end in "/".
type walkFunc func(name, fsPath string, info os.FileInfo) error

// walkContent visits the content root in lexical order, starting with the
// base folder itself. Non-regular files are ignored.
func walkContent(ctx context.Context, contentRoot, baseName string, fn walkFunc) error {
	return filepath.WalkDir(contentRoot, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		rel, err := filepath.Rel(contentRoot, p)
		if err != nil {
			return err
		}
		name := baseName
		if rel != "." {
			name = path.Join(baseName, filepath.ToSlash(rel))
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		switch {
		case d.IsDir():
			return fn(name+"/", p, info)
		case info.Mode().IsRegular():
			return fn(name, p, info)
		default:
			return nil
		}
	})
}

func copyInto(w io.Writer, fsPath string) error {
	f, err := os.Open(fsPath)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(w, f)
	return err
}

// =============================================================================
// ZIP
// =============================================================================

func writeZip(ctx context.Context, out *os.File, contentRoot, baseName string) error {
	zw := zip.NewWriter(out)
	zw.RegisterCompressor(zip.Deflate, func(w io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(w, flate.BestCompression)
	})

	err := walkContent(ctx, contentRoot, baseName, func(name, fsPath string, info os.FileInfo) error {
		hdr, err := zip.FileInfoHeader(info)
		if err != nil {
			return err
		}
		hdr.Name = name
		if info.IsDir() {
			hdr.Method = zip.Store
		} else {
			hdr.Method = zip.Deflate
		}

		w, err := zw.CreateHeader(hdr)
		if err != nil {
			return fmt.Errorf("add %s: %w", name, err)
		}
		if info.IsDir() {
			return nil
		}
		if err := copyInto(w, fsPath); err != nil {
			return fmt.Errorf("add %s: %w", name, err)
		}
		return nil
	})
	if err != nil {
		zw.Close()
		return err
	}
	return zw.Close()
}

// =============================================================================
// TAR.GZ
// =============================================================================

func writeTarGz(ctx context.Context, out *os.File, contentRoot, baseName string) error {
	gz, err := gzip.NewWriterLevel(out, gzip.BestCompression)
	if err != nil {
		return err
	}
	gz.Name = baseName + ".tar"
	tw := tar.NewWriter(gz)

	err = walkContent(ctx, contentRoot, baseName, func(name, fsPath string, info os.FileInfo) error {
		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		hdr.Name = name
		// Owner names from the staging host mean nothing to the receiver.
		hdr.Uid, hdr.Gid = 0, 0
		hdr.Uname, hdr.Gname = "", ""
		hdr.Format = tar.FormatPAX

		if err := tw.WriteHeader(hdr); err != nil {
			return fmt.Errorf("add %s: %w", name, err)
		}
		if info.IsDir() {
			return nil
		}
		if err := copyInto(tw, fsPath); err != nil {
			return fmt.Errorf("add %s: %w", name, err)
		}
		return nil
	})
	if err != nil {
		tw.Close()
		gz.Close()
		return err
	}
	if err := tw.Close(); err != nil {
		gz.Close()
		return err
	}
	return gz.Close()
}
