// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for changepack.
//
// # Key Types
//
//   - Config: the complete configuration
//   - ExportConfig: output kind, name template, manifest and reveal flags
//   - LoggingConfig: log level, optional log file, JSON output
//
// # Configuration Precedence
//
// Configuration is loaded from (later wins):
//   - Built-in defaults
//   - ~/.changepack/config.toml (or config.json)
//   - .changepack.toml at the repository root
//   - Environment variables (CHANGEPACK_*)
//
// Command-line flags are applied on top by the CLI.
//
// # Usage
//
//	cfg, err := config.Load("", repoRoot)
//	if err != nil {
//	    return err
//	}
//	kind := cfg.Kind()
//
// Dotted keys address individual values:
//
//	_ = cfg.Set("export.output_kind", "zip")
//	v, _ := cfg.Get("export.include_manifest")
package config
