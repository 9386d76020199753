// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// config.go - The config command and its subcommands.

package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/changepack/internal/config"
	"github.com/jeranaias/changepack/internal/logging"
)

var noConfig = map[string]string{annotationNoConfig: "true"}

func newConfigCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change configuration",
		Long: `Configuration is read from, in order (later wins):
  built-in defaults
  ~/.changepack/config.toml (or config.json)
  .changepack.toml at the repository root
  CHANGEPACK_* environment variables
  command-line flags

"config show" prints the effective result. "config set" edits the user
file only.`,
		Args: noArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return a.runConfigShow()
		},
	}

	var force bool
	initCmd := &cobra.Command{
		Use:         "init",
		Short:       "Write a default configuration file",
		Args:        noArgs,
		Annotations: noConfig,
		RunE: func(_ *cobra.Command, _ []string) error {
			return a.runConfigInit(force)
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Print the effective configuration",
			Args:  noArgs,
			RunE: func(_ *cobra.Command, _ []string) error {
				return a.runConfigShow()
			},
		},
		&cobra.Command{
			Use:         "path",
			Short:       "Print the configuration file locations",
			Args:        noArgs,
			Annotations: noConfig,
			RunE: func(_ *cobra.Command, _ []string) error {
				return a.runConfigPath()
			},
		},
		initCmd,
		&cobra.Command{
			Use:         "reset",
			Short:       "Overwrite the user configuration with the defaults",
			Args:        noArgs,
			Annotations: noConfig,
			RunE: func(_ *cobra.Command, _ []string) error {
				return a.runConfigInit(true)
			},
		},
		&cobra.Command{
			Use:     "get <key>",
			Short:   "Print one effective value",
			Example: "  changepack config get export.output_kind",
			Args:    exactArgs(1, "changepack config get export.output_kind"),
			RunE: func(_ *cobra.Command, args []string) error {
				return a.runConfigGet(args[0])
			},
		},
		&cobra.Command{
			Use:         "set <key> <value>",
			Short:       "Change one value in the user configuration file",
			Example:     "  changepack config set export.output_kind zip\n  changepack config set export.include_manifest true",
			Args:        exactArgs(2, "changepack config set export.output_kind zip"),
			Annotations: noConfig,
			RunE: func(_ *cobra.Command, args []string) error {
				return a.runConfigSet(args[0], args[1])
			},
		},
	)
	return cmd
}

// userConfigPath is --config when given, else the default user file.
func (a *app) userConfigPath() (string, error) {
	if a.flags.configPath != "" {
		return logging.ExpandPath(a.flags.configPath), nil
	}
	path, err := config.UserConfigPath()
	if err != nil {
		return "", &ConfigError{Err: err}
	}
	return path, nil
}

func (a *app) runConfigShow() error {
	sources := a.cfg.Sources()
	if a.flags.json {
		if sources == nil {
			sources = []string{}
		}
		return NewJSONResponse("config show", ConfigData{Config: a.cfg, Sources: sources}).Print(a.stdout)
	}

	w := a.stdout
	fmt.Fprintln(w, TitleStyle.Render("changepack configuration"))
	if len(sources) == 0 {
		fmt.Fprintln(w, DimStyle.Render("(no config files; defaults and environment only)"))
	}
	for _, s := range sources {
		fmt.Fprintln(w, DimStyle.Render("from "+s))
	}
	fmt.Fprintln(w, RenderSeparator())

	keyStyle := LabelStyle.Width(30)
	for _, key := range config.GetAllKeys() {
		val, err := a.cfg.Get(key)
		if err != nil {
			continue
		}
		fmt.Fprintf(w, "%s %v\n", keyStyle.Render(key), val)
	}
	return nil
}

func (a *app) runConfigPath() error {
	path, err := a.userConfigPath()
	if err != nil {
		return err
	}
	repoPath := ""
	if a.repoErr == nil {
		repoPath = config.RepoConfigPath(a.repoRoot)
	}

	if a.flags.json {
		data := map[string]interface{}{
			"path":              path,
			"exists":            fileExists(path),
			"repository_path":   repoPath,
			"repository_exists": repoPath != "" && fileExists(repoPath),
		}
		return NewJSONResponse("config path", data).Print(a.stdout)
	}

	fmt.Fprintln(a.stdout, path)
	if !fileExists(path) {
		fmt.Fprintf(a.stderr, "%s (file does not exist - create it with \"changepack config init\")\n",
			DimStyle.Render("Note"))
	}
	if repoPath != "" && fileExists(repoPath) {
		fmt.Fprintln(a.stdout, repoPath)
	}
	return nil
}

func (a *app) runConfigInit(force bool) error {
	path, err := a.userConfigPath()
	if err != nil {
		return err
	}
	if fileExists(path) && !force {
		return NewCommandError("config", "init", path+" already exists (use --force to overwrite)", nil)
	}
	if err := saveConfig(config.Default(), path); err != nil {
		return err
	}

	if a.flags.json {
		return NewJSONResponse("config init", map[string]string{"path": path}).Print(a.stdout)
	}
	fmt.Fprintf(a.stdout, "%s Wrote default configuration to %s\n", RenderStatus("ok"), path)
	return nil
}

func (a *app) runConfigGet(key string) error {
	val, err := a.cfg.Get(key)
	if err != nil {
		return NewValidationErrorWithExample("key", key, err.Error(),
			"one of: "+strings.Join(config.GetAllKeys(), ", "))
	}
	if a.flags.json {
		return NewJSONResponse("config get", map[string]interface{}{"key": key, "value": val}).Print(a.stdout)
	}
	fmt.Fprintln(a.stdout, val)
	return nil
}

// runConfigSet edits the user file alone, so repository and environment
// overrides are never written back.
func (a *app) runConfigSet(key, value string) error {
	path, err := a.userConfigPath()
	if err != nil {
		return err
	}

	cfg := config.Default()
	if fileExists(path) {
		cfg, err = config.LoadFromPath(path)
		if err != nil {
			return &ConfigError{Path: path, Err: err}
		}
	}

	if err := cfg.Set(key, value); err != nil {
		return NewValidationErrorWithExample("key", key, err.Error(),
			"changepack config set export.output_kind zip")
	}
	if err := cfg.Validate(); err != nil {
		return NewValidationError(key, value, err.Error())
	}
	if err := saveConfig(cfg, path); err != nil {
		return err
	}

	a.logger.Info("config updated", "key", key, "path", path)
	if a.flags.json {
		return NewJSONResponse("config set", map[string]string{"key": key, "value": value, "path": path}).Print(a.stdout)
	}
	fmt.Fprintf(a.stdout, "%s %s = %s\n", RenderStatus("ok"), key, value)
	return nil
}

// saveConfig writes cfg as JSON or TOML depending on the extension.
func saveConfig(cfg *config.Config, path string) error {
	var err error
	if strings.HasSuffix(strings.ToLower(path), ".json") {
		err = config.SaveJSON(cfg, path)
	} else {
		err = config.SaveTOML(cfg, path)
	}
	if err != nil {
		return &ConfigError{Path: path, Err: err}
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
