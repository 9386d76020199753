// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// cli.go - Root command, global flags and per-invocation setup.
//
// CLI: Comprehensive help and examples for all commands
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/changepack/internal/config"
	"github.com/jeranaias/changepack/internal/git"
	"github.com/jeranaias/changepack/internal/logging"
)

// Version information (can be overridden at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// annotationNoConfig marks commands that must work with a missing or
// broken configuration file.
const annotationNoConfig = "changepack/no-config"

// globalFlags are the persistent flags shared by every command.
type globalFlags struct {
	repo       string
	configPath string
	json       bool
	quiet      bool
	verbose    bool
	logLevel   string
	logFile    string
}

// app holds the state of one invocation.
type app struct {
	stdout io.Writer
	stderr io.Writer
	flags  globalFlags

	cfg      *config.Config
	repoRoot string
	repoErr  error
	logger   *logging.Logger

	// interactive reports whether a user is watching stdout. Revealing
	// the destination is skipped otherwise.
	interactive func() bool
	// reveal opens a path in the platform file manager.
	reveal func(path string) error
}

func newApp(stdout, stderr io.Writer) *app {
	return &app{
		stdout:      stdout,
		stderr:      stderr,
		logger:      logging.Nop(),
		interactive: IsStdoutTTY,
		reveal:      openPath,
	}
}

// Execute runs changepack with the process arguments and returns the
// exit code.
func Execute(ctx context.Context) int {
	return Run(ctx, os.Args[1:], os.Stdout, os.Stderr)
}

// Run runs changepack with args, writing to stdout and stderr, and
// returns the exit code.
func Run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	return newApp(stdout, stderr).execute(ctx, args)
}

func (a *app) execute(ctx context.Context, args []string) int {
	defer a.close()

	root := newRootCommand(a)
	root.SetArgs(args)
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)

	cmd, err := root.ExecuteContextC(ctx)
	if err == nil {
		return ExitSuccess
	}

	var reported *reportedError
	if !errors.As(err, &reported) {
		w := a.stderr
		if a.flags.json {
			w = a.stdout
		}
		DisplayError(w, commandName(cmd), err, a.flags.json)
	}
	return GetExitCode(err)
}

func (a *app) close() {
	if err := a.logger.Close(); err != nil {
		fmt.Fprintf(a.stderr, "%s %v\n", WarningStyle.Render("[WARN]"), err)
	}
}

// =============================================================================
// COMMAND TREE
// =============================================================================

func newRootCommand(a *app) *cobra.Command {
	opts := &exportFlags{}
	root := &cobra.Command{
		Use:   "changepack",
		Short: "Export the changed files of a git repository",
		Long: `changepack collects the staged, modified and untracked files of a git
repository and exports them with their folder structure intact, as a
directory, a zip archive or a tar.gz archive.

Running changepack without a subcommand performs an export.`,
		Example: `  changepack
  changepack --kind zip --dest ~/handoff
  changepack export --manifest --template "{project}-{hash}"
  changepack status
  changepack verify ~/Desktop/myproject`,
		Args:              noArgs,
		SilenceErrors:     true,
		SilenceUsage:      true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error { return a.setup(cmd) },
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runExport(cmd, opts)
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &ValidationError{Field: "flag", Reason: err.Error()}
	})

	pf := root.PersistentFlags()
	pf.StringVar(&a.flags.repo, "repo", "", "repository directory (default: current directory)")
	pf.StringVar(&a.flags.configPath, "config", "", "config file (default: ~/.changepack/config.toml)")
	pf.BoolVar(&a.flags.json, "json", false, "write machine-readable JSON to stdout")
	pf.BoolVarP(&a.flags.quiet, "quiet", "q", false, "only report errors")
	pf.BoolVarP(&a.flags.verbose, "verbose", "v", false, "log debug output to stderr")
	pf.StringVar(&a.flags.logLevel, "log-level", "", "log to stderr at this level: debug, info, warn or error")
	pf.StringVar(&a.flags.logFile, "log-file", "", "also append JSON log records to this file")

	addExportFlags(root, opts)

	root.AddCommand(
		newExportCommand(a),
		newStatusCommand(a),
		newVerifyCommand(a),
		newConfigCommand(a),
		newDoctorCommand(a),
		newVersionCommand(a),
	)
	return root
}

func newVersionCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Print version information",
		Args:        noArgs,
		Annotations: map[string]string{annotationNoConfig: "true"},
		RunE: func(_ *cobra.Command, _ []string) error {
			data := VersionData{
				Version:   Version,
				GitCommit: GitCommit,
				BuildDate: BuildDate,
				GoVersion: runtime.Version(),
				Platform:  runtime.GOOS + "/" + runtime.GOARCH,
			}
			if a.flags.json {
				return NewJSONResponse("version", data).Print(a.stdout)
			}
			fmt.Fprintf(a.stdout, "changepack %s\n", data.Version)
			fmt.Fprintf(a.stdout, "  Commit:  %s\n", data.GitCommit)
			fmt.Fprintf(a.stdout, "  Built:   %s\n", data.BuildDate)
			fmt.Fprintf(a.stdout, "  Go:      %s (%s)\n", data.GoVersion, data.Platform)
			return nil
		},
	}
}

// =============================================================================
// SETUP
// =============================================================================

// setup runs before every command: it locates the repository, loads the
// configuration and builds the logger.
func (a *app) setup(cmd *cobra.Command) error {
	ctx := cmd.Context()

	// Repository lookup is best-effort here; commands that need one
	// report repoErr themselves.
	a.repoRoot, a.repoErr = findRepository(ctx, a.flags.repo)

	if cmd.Annotations[annotationNoConfig] != "" {
		a.cfg = config.Default()
	} else {
		cfg, err := config.Load(a.flags.configPath, a.repoRoot)
		if err != nil {
			return &ConfigError{Path: a.flags.configPath, Err: err}
		}
		a.cfg = cfg
	}

	logCfg, err := a.loggingConfig()
	if err != nil {
		return err
	}
	logger, err := logging.New(logCfg)
	a.logger = logger
	if err != nil {
		fmt.Fprintf(a.stderr, "%s log file unavailable: %v\n", WarningStyle.Render("[WARN]"), err)
	}
	a.logger.Debug("starting",
		"command", commandName(cmd),
		"version", Version,
		"repo", a.repoRoot,
		"config_sources", a.cfg.Sources())
	return nil
}

// loggingConfig merges the logging flags over the configuration. Console
// logging is off unless --verbose or --log-level is given. The log file
// always receives records at the effective level.
func (a *app) loggingConfig() (logging.Config, error) {
	levelName := a.cfg.Logging.Level
	if a.flags.verbose {
		levelName = "debug"
	}
	if a.flags.logLevel != "" {
		levelName = a.flags.logLevel
	}
	level, err := logging.ParseLevel(levelName)
	if err != nil {
		return logging.Config{}, NewValidationErrorWithExample("log-level", levelName, err.Error(), "--log-level debug")
	}

	file := a.cfg.Logging.File
	if a.flags.logFile != "" {
		file = a.flags.logFile
	}

	return logging.Config{
		Level:  level,
		File:   file,
		JSON:   a.cfg.Logging.JSON,
		Quiet:  a.flags.quiet || !(a.flags.verbose || a.flags.logLevel != ""),
		Output: a.stderr,
	}, nil
}

// findRepository resolves the working tree root containing dir (the
// current directory when empty).
func findRepository(ctx context.Context, dir string) (string, error) {
	if dir == "" {
		dir = "."
	}
	dir = logging.ExpandPath(dir)
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", NewNotFoundError("directory", dir, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", NewNotFoundError("directory", abs, err)
	}
	if !info.IsDir() {
		return "", NewValidationError("repo", abs, "not a directory")
	}

	root, err := git.TopLevel(ctx, abs)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", NewNotFoundError("git repository", abs, err)
	}
	return root, nil
}

// =============================================================================
// ARGUMENT VALIDATION
// =============================================================================

// noArgs rejects positional arguments, suggesting a subcommand when the
// argument looks like a misspelled one.
func noArgs(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return nil
	}
	reason := fmt.Sprintf("%q takes no arguments", cmd.CommandPath())
	if !cmd.HasParent() {
		reason = "unknown command"
		if s := cmd.SuggestionsFor(args[0]); len(s) > 0 {
			reason += ", did you mean " + strings.Join(s, " or ") + "?"
		}
	}
	return NewValidationErrorWithExample("argument", args[0], reason, "changepack --help")
}

// exactArgs requires n positional arguments.
func exactArgs(n int, example string) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) == n {
			return nil
		}
		return NewValidationErrorWithExample("arguments",
			strings.Join(args, " "),
			fmt.Sprintf("%q takes %d argument(s), got %d", cmd.CommandPath(), n, len(args)),
			example)
	}
}

// commandName returns the command path without the program name; the
// root command is reported as "export".
func commandName(cmd *cobra.Command) string {
	if cmd == nil || !cmd.HasParent() {
		return "export"
	}
	return strings.TrimPrefix(cmd.CommandPath(), cmd.Root().Name()+" ")
}
