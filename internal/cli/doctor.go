// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// doctor.go - Environment health checks.

package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/changepack/internal/config"
	"github.com/jeranaias/changepack/internal/git"
)

// =============================================================================
// HEALTH CHECK TYPES
// =============================================================================

// CheckStatus represents the status of a health check.
type CheckStatus int

const (
	// CheckPass indicates the check passed.
	CheckPass CheckStatus = iota
	// CheckWarn indicates an export may still work.
	CheckWarn
	// CheckFail indicates an export will fail.
	CheckFail
)

// String returns the lower-case name used in JSON output.
func (s CheckStatus) String() string {
	switch s {
	case CheckPass:
		return "pass"
	case CheckWarn:
		return "warn"
	case CheckFail:
		return "fail"
	default:
		return "unknown"
	}
}

// HealthCheck represents a single health check result.
type HealthCheck struct {
	Name    string
	Status  CheckStatus
	Message string
	Fix     string // Suggested command or instruction
}

// Render returns a formatted string representation of the health check.
func (c *HealthCheck) Render() string {
	result := fmt.Sprintf("%s %s", RenderStatus(c.Status.String()), c.Message)
	if c.Status != CheckPass && c.Fix != "" {
		result += "\n  " + DimStyle.Render("-> "+c.Fix)
	}
	return result
}

// =============================================================================
// COMMAND
// =============================================================================

func newDoctorCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check that exports can run here",
		Long: `Doctor checks that git is installed, that the working directory is
inside a repository, that the configuration loads, and that the default
destination is writable.`,
		Args:        noArgs,
		Annotations: noConfig,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runDoctor(cmd.Context())
		},
	}
}

func (a *app) runDoctor(ctx context.Context) error {
	checks := a.runAllChecks(ctx)

	var summary DoctorSummary
	for _, c := range checks {
		switch c.Status {
		case CheckPass:
			summary.Passed++
		case CheckWarn:
			summary.Warned++
		case CheckFail:
			summary.Failed++
		}
	}
	summary.Healthy = summary.Failed == 0

	var failure error
	if !summary.Healthy {
		failure = fmt.Errorf("%d health check(s) failed", summary.Failed)
	}

	if a.flags.json {
		data := DoctorData{Checks: make([]DoctorCheck, 0, len(checks)), Summary: summary}
		for _, c := range checks {
			data.Checks = append(data.Checks, DoctorCheck{
				Name:    c.Name,
				Status:  c.Status.String(),
				Message: c.Message,
				Fix:     c.Fix,
			})
		}
		resp := NewJSONResponse("doctor", data)
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
		fmt.Fprintln(w, TitleStyle.Render("changepack doctor"))
		fmt.Fprintln(w, RenderSeparator())
		for _, c := range checks {
			fmt.Fprintln(w, c.Render())
		}
		fmt.Fprintln(w, RenderSeparator())

		parts := []string{fmt.Sprintf("%d passed", summary.Passed)}
		if summary.Warned > 0 {
			parts = append(parts, WarningStyle.Render(fmt.Sprintf("%d warning", summary.Warned)))
		}
		if summary.Failed > 0 {
			parts = append(parts, ErrorStyle.Render(fmt.Sprintf("%d failed", summary.Failed)))
		}
		fmt.Fprintln(w, strings.Join(parts, ", "))
	}

	if failure != nil {
		return &reportedError{err: failure}
	}
	return nil
}

// =============================================================================
// HEALTH CHECK FUNCTIONS
// =============================================================================

func (a *app) runAllChecks(ctx context.Context) []*HealthCheck {
	cfg, cfgCheck := a.checkConfig()
	return []*HealthCheck{
		checkGit(ctx),
		a.checkRepository(),
		cfgCheck,
		checkDestination(cfg),
	}
}

func checkGit(ctx context.Context) *HealthCheck {
	check := &HealthCheck{Name: "git"}
	version, err := git.Version(ctx)
	if err != nil {
		check.Status = CheckFail
		check.Message = "git is not installed or not on PATH"
		check.Fix = "Install git from https://git-scm.com/downloads"
		return check
	}
	check.Status = CheckPass
	check.Message = "git " + version
	return check
}

func (a *app) checkRepository() *HealthCheck {
	check := &HealthCheck{Name: "repository"}
	if a.repoErr != nil {
		check.Status = CheckWarn
		check.Message = "Not inside a git repository"
		check.Fix = "Run from inside a repository or pass --repo <dir>"
		return check
	}
	check.Status = CheckPass
	check.Message = "Repository " + a.repoRoot
	return check
}

// checkConfig loads the layered configuration. The defaults are returned
// when it cannot be loaded so the remaining checks still run.
func (a *app) checkConfig() (*config.Config, *HealthCheck) {
	check := &HealthCheck{Name: "config"}
	cfg, err := config.Load(a.flags.configPath, a.repoRoot)
	if err != nil {
		check.Status = CheckFail
		check.Message = fmt.Sprintf("Config invalid: %s", err)
		check.Fix = "Run: changepack config reset"
		return config.Default(), check
	}

	check.Status = CheckPass
	if n := len(cfg.Sources()); n > 0 {
		check.Message = fmt.Sprintf("Config valid (%d file(s))", n)
	} else {
		check.Message = "Config valid (using defaults)"
	}
	return cfg, check
}

// checkDestination writes a probe file into the folder that receives
// exports by default.
func checkDestination(cfg *config.Config) *HealthCheck {
	check := &HealthCheck{Name: "destination"}
	parent := filepath.Dir(defaultDestination(cfg.Export.DestinationDir, "project"))

	info, err := os.Stat(parent)
	if os.IsNotExist(err) {
		check.Status = CheckWarn
		check.Message = parent + " does not exist yet; it is created on first export"
		return check
	}
	if err != nil || !info.IsDir() {
		check.Status = CheckFail
		check.Message = parent + " is not a directory"
		check.Fix = "Run: changepack config set export.destination_dir <dir>"
		return check
	}

	probe, err := os.CreateTemp(parent, ".changepack-doctor-*")
	if err != nil {
		check.Status = CheckFail
		check.Message = fmt.Sprintf("%s is not writable: %s", parent, err)
		check.Fix = "Check permissions or pass --dest"
		return check
	}
	probe.Close()
	os.Remove(probe.Name())

	check.Status = CheckPass
	check.Message = "Destination " + parent + " is writable"
	return check
}
