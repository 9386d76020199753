// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// errors.go - Unified error handling for all changepack commands.
//
// STANDARDIZED PATTERN:
//   - Commands ALWAYS return errors (never just print and return nil)
//   - Execute displays the error once and maps it to an exit code
//   - A command that already showed its own failure wraps it in
//     reportedError so it is not printed twice
//
// ERROR HANDLING: Errors must not be silently ignored

package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/jeranaias/changepack/internal/archive"
	"github.com/jeranaias/changepack/internal/config"
	"github.com/jeranaias/changepack/internal/export"
	"github.com/jeranaias/changepack/internal/git"
)

// =============================================================================
// EXIT CODES - Specific codes for different error categories
// =============================================================================

const (
	// ExitSuccess indicates successful execution. An export with nothing
	// to export also exits with this code.
	ExitSuccess = 0
	// ExitGeneralError indicates a general/unknown error
	ExitGeneralError = 1
	// ExitUsageError indicates invalid command usage or arguments
	ExitUsageError = 2
	// ExitConfigError indicates configuration file or settings error
	ExitConfigError = 3
	// ExitNotFoundError indicates a repository, directory or file was not found
	ExitNotFoundError = 7
	// ExitTimeoutError indicates an operation timed out
	ExitTimeoutError = 8
	// ExitInterrupted indicates the run was cancelled (Ctrl+C)
	ExitInterrupted = 130
)

// =============================================================================
// ERROR TYPES FOR STRUCTURED ERROR HANDLING
// =============================================================================

// CommandError represents a CLI command error with context.
type CommandError struct {
	Command string // Command that failed (e.g., "export", "config")
	Action  string // Action being performed (e.g., "init", "set")
	Reason  string // Human-readable reason
	Err     error  // Underlying error (if any)
}

func (e *CommandError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s failed: %s: %v", e.Command, e.Action, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s %s failed: %s", e.Command, e.Action, e.Reason)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// ValidationError represents a validation failure for user input.
type ValidationError struct {
	Field   string // Field that failed validation
	Value   string // Value that was provided
	Reason  string // Why validation failed
	Example string // Example of valid value (optional)
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	if e.Value != "" {
		msg += fmt.Sprintf(" (got: %s)", e.Value)
	}
	if e.Example != "" {
		msg += fmt.Sprintf("\nExample: %s", e.Example)
	}
	return msg
}

// NotFoundError represents a resource not found error.
type NotFoundError struct {
	Resource string // Type of resource (e.g., "git repository", "manifest")
	ID       string // Identifier that was not found
	Err      error
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

func (e *NotFoundError) Unwrap() error {
	return e.Err
}

// ConfigError wraps a failure to load or save configuration.
type ConfigError struct {
	Path string
	Err  error
}

func (e *ConfigError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("config %s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("config: %v", e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// reportedError marks an error whose details the command has already
// written to the user.
type reportedError struct {
	err error
}

func (e *reportedError) Error() string { return e.err.Error() }
func (e *reportedError) Unwrap() error { return e.err }

// =============================================================================
// ERROR CONSTRUCTION HELPERS
// =============================================================================

// NewCommandError creates a new command error.
func NewCommandError(command, action, reason string, err error) error {
	return &CommandError{
		Command: command,
		Action:  action,
		Reason:  reason,
		Err:     err,
	}
}

// NewValidationError creates a new validation error.
func NewValidationError(field, value, reason string) error {
	return &ValidationError{
		Field:  field,
		Value:  value,
		Reason: reason,
	}
}

// NewValidationErrorWithExample creates a validation error with an example.
func NewValidationErrorWithExample(field, value, reason, example string) error {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Reason:  reason,
		Example: example,
	}
}

// NewNotFoundError creates a new not found error.
func NewNotFoundError(resource, id string, err error) error {
	return &NotFoundError{
		Resource: resource,
		ID:       id,
		Err:      err,
	}
}

// ErrMissingArgument creates an error for missing required arguments.
func ErrMissingArgument(argName, usage string) error {
	return NewValidationErrorWithExample(argName, "", "required argument missing", usage)
}

// =============================================================================
// ERROR DISPLAY HELPERS
// =============================================================================

// DisplayError writes err to w in a consistent format.
//
// In JSON mode, outputs a JSONResponse with the error set.
// In normal mode, displays formatted error message.
func DisplayError(w io.Writer, command string, err error, jsonMode bool) {
	if err == nil {
		return
	}

	if jsonMode {
		DisplayErrorJSON(w, command, err)
		return
	}

	fmt.Fprintf(w, "%s %s\n", ErrorStyle.Render("[ERROR]"), err.Error())
}

// DisplayErrorJSON outputs an error as a JSONResponse whose data carries
// the structured error details.
func DisplayErrorJSON(w io.Writer, command string, err error) {
	details := map[string]interface{}{
		"exit_code": GetExitCode(err),
	}

	var (
		cmdErr      *CommandError
		validErr    *ValidationError
		notFoundErr *NotFoundError
		cfgErr      *ConfigError
		envErr      *export.EnvironmentError
	)
	switch {
	case errors.As(err, &validErr):
		details["error_type"] = "validation_error"
		details["field"] = validErr.Field
		details["value"] = validErr.Value
		details["reason"] = validErr.Reason
		if validErr.Example != "" {
			details["example"] = validErr.Example
		}
	case errors.As(err, &notFoundErr):
		details["error_type"] = "not_found_error"
		details["resource"] = notFoundErr.Resource
		details["id"] = notFoundErr.ID
	case errors.As(err, &cfgErr):
		details["error_type"] = "config_error"
		if cfgErr.Path != "" {
			details["path"] = cfgErr.Path
		}
	case errors.As(err, &envErr):
		details["error_type"] = "environment_error"
		details["path"] = envErr.Path
		details["reason"] = envErr.Reason
	case errors.As(err, &cmdErr):
		details["error_type"] = "command_error"
		details["command"] = cmdErr.Command
		details["action"] = cmdErr.Action
		details["reason"] = cmdErr.Reason
		if cmdErr.Err != nil {
			details["underlying_error"] = cmdErr.Err.Error()
		}
	default:
		details["error_type"] = "generic_error"
	}

	resp := NewJSONErrorResponse(command, err)
	resp.Data = details

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	_ = encoder.Encode(resp)
}

// =============================================================================
// EXIT CODE MAPPING
// =============================================================================

// GetExitCode determines the appropriate exit code for an error:
//   - ExitUsageError (2): ValidationError
//   - ExitConfigError (3): ConfigError or config.ValidateErrors
//   - ExitNotFoundError (7): NotFoundError or export.EnvironmentError
//   - ExitTimeoutError (8): deadline exceeded
//   - ExitInterrupted (130): cancelled
//   - ExitGeneralError (1): all other errors, including git query and
//     destination commit failures
func GetExitCode(err error) int {
	if err == nil || errors.Is(err, export.ErrNothingToExport) {
		return ExitSuccess
	}

	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return ExitUsageError
	}

	var cfgErr *ConfigError
	var cfgValidate config.ValidateErrors
	if errors.As(err, &cfgErr) || errors.As(err, &cfgValidate) {
		return ExitConfigError
	}

	var notFoundErr *NotFoundError
	if errors.As(err, &notFoundErr) || export.IsEnvironmentError(err) {
		return ExitNotFoundError
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ExitTimeoutError
	}
	if errors.Is(err, context.Canceled) {
		return ExitInterrupted
	}

	return ExitGeneralError
}

// describeFailure returns a short label for the layer an export error
// came from, used in log records.
func describeFailure(err error) string {
	var commitErr *archive.CommitError
	switch {
	case err == nil:
		return ""
	case git.IsQueryError(err):
		return "query"
	case export.IsEnvironmentError(err):
		return "environment"
	case errors.As(err, &commitErr):
		return "commit"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "export"
	}
}
