// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli provides the changepack command tree.
//
// The tree is built with cobra. Every command shares the persistent
// flags (--repo, --config, --json, --quiet, --verbose, --log-level,
// --log-file) and a setup step that locates the repository, loads the
// layered configuration and builds the logger.
//
// # Usage
//
//	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
//	defer stop()
//	os.Exit(cli.Execute(ctx))
//
// # Commands Overview
//
//   - export: export the change set (also the root command's action)
//   - status: list the change set without exporting
//   - verify: check a directory export against its manifest
//   - config: show, path, init, reset, get, set
//   - doctor: check git, repository, config and destination
//   - version: build information
//
// All commands support --json, which writes exactly one JSONResponse to
// stdout. Exit codes are listed with GetExitCode.
package cli
