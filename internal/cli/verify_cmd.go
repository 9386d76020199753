// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// verify_cmd.go - Check a directory export against its manifest.

package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jeranaias/changepack/internal/logging"
	"github.com/jeranaias/changepack/internal/manifest"
)

const verifyExample = "changepack verify ~/Desktop/myproject"

func newVerifyCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "verify <dir>",
		Short: "Check an exported directory against its manifest",
		Long: `Verify re-reads every file listed in the directory's ` + manifest.FileName + `
and compares its size and SHA-256 with the recorded values.

The export must have been made with --manifest. Extract archives first.`,
		Example: "  " + verifyExample,
		Args:    exactArgs(1, verifyExample),
		RunE: func(_ *cobra.Command, args []string) error {
			return a.runVerify(args[0])
		},
	}
}

func (a *app) runVerify(dir string) error {
	dir = logging.ExpandPath(dir)
	info, err := os.Stat(dir)
	if err != nil {
		return NewNotFoundError("directory", dir, err)
	}
	if !info.IsDir() {
		return NewValidationErrorWithExample("directory", dir,
			"verify needs an exported directory; extract archives first", verifyExample)
	}

	m, err := manifest.Read(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return NewNotFoundError("manifest", filepath.Join(dir, manifest.FileName), err)
		}
		return NewCommandError("verify", "read", "could not read manifest", err)
	}

	report := manifest.Verify(dir, m)
	a.logger.Debug("verified export", "dir", dir, "checked", report.Checked, "problems", len(report.Problems))

	var failure error
	if !report.OK() {
		failure = fmt.Errorf("%d of %d files do not match the manifest", len(report.Problems), report.Checked)
	}

	if a.flags.json {
		problems := report.Problems
		if problems == nil {
			problems = []manifest.Problem{}
		}
		resp := NewJSONResponse("verify", VerifyData{
			Directory: dir,
			Name:      m.Name,
			Checked:   report.Checked,
			OK:        report.OK(),
			Problems:  problems,
		})
		if failure != nil {
			msg := failure.Error()
			resp.Success = false
			resp.Error = &msg
		}
		if err := resp.Print(a.stdout); err != nil {
			return err
		}
	} else {
		w := a.stdout
		fmt.Fprintln(w, TitleStyle.Render("changepack verify"))
		fmt.Fprintln(w, RenderLabel("Export", m.Name))
		fmt.Fprintln(w, RenderLabel("Directory", dir))
		fmt.Fprintln(w, RenderLabel("Checked", strconv.Itoa(report.Checked)))
		fmt.Fprintln(w, RenderLabel("Size", formatBytes(totalSize(m))))
		fmt.Fprintln(w, RenderSeparator())
		for _, p := range report.Problems {
			line := fmt.Sprintf("%s %s: %s", RenderStatus("fail"), p.Path, p.Kind)
			if p.Detail != "" {
				line += " " + DimStyle.Render("("+p.Detail+")")
			}
			fmt.Fprintln(w, line)
		}
		if failure == nil {
			fmt.Fprintf(w, "%s All %d files match the manifest\n", RenderStatus("ok"), report.Checked)
		} else {
			fmt.Fprintf(w, "%s %s\n", RenderStatus("fail"), failure)
		}
	}

	if failure != nil {
		return &reportedError{err: failure}
	}
	return nil
}

// totalSize sums the sizes recorded in the manifest.
func totalSize(m *manifest.Manifest) int64 {
	var n int64
	for _, f := range m.Files {
		n += f.Size
	}
	return n
}
