// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// json_output.go - JSON output support for scripting and CI.
//
// Every command accepts --json and then writes exactly one JSONResponse
// to stdout. Human-readable output is suppressed in that mode.

package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/jeranaias/changepack/internal/export"
	"github.com/jeranaias/changepack/internal/manifest"
	"github.com/jeranaias/changepack/internal/staging"
)

// JSONResponse is the standardized response format for all commands.
type JSONResponse struct {
	// Success indicates whether the command completed successfully
	Success bool `json:"success"`

	// Data contains the command-specific response data
	Data interface{} `json:"data"`

	// Error contains the error message if Success is false, null otherwise
	Error *string `json:"error"`

	// Timestamp is the ISO8601 timestamp when the response was generated
	Timestamp string `json:"timestamp"`

	// Command is the command that was executed
	Command string `json:"command,omitempty"`
}

// NewJSONResponse creates a new successful JSON response.
func NewJSONResponse(command string, data interface{}) *JSONResponse {
	return &JSONResponse{
		Success:   true,
		Data:      data,
		Error:     nil,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Command:   command,
	}
}

// NewJSONErrorResponse creates a new error JSON response.
func NewJSONErrorResponse(command string, err error) *JSONResponse {
	errStr := err.Error()
	return &JSONResponse{
		Success:   false,
		Data:      nil,
		Error:     &errStr,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Command:   command,
	}
}

// Print writes the JSON response to w.
func (r *JSONResponse) Print(w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(r)
}

// String returns the JSON response as a string.
func (r *JSONResponse) String() string {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Sprintf(`{"success":false,"error":"failed to marshal response: %s","timestamp":"%s"}`,
			err.Error(), time.Now().UTC().Format(time.RFC3339))
	}
	return string(data)
}

// =============================================================================
// COMMAND PAYLOADS
// =============================================================================

// ExportData is the payload of `changepack export --json`.
type ExportData struct {
	RunID       string            `json:"run_id"`
	Status      string            `json:"status"`
	Message     string            `json:"message"`
	Project     string            `json:"project,omitempty"`
	Name        string            `json:"name,omitempty"`
	Destination string            `json:"destination,omitempty"`
	Kind        string            `json:"kind"`
	Files       int               `json:"files"`
	Copied      int               `json:"copied"`
	Omitted     int               `json:"omitted"`
	Failed      []staging.Failure `json:"failed"`
	Manifest    bool              `json:"manifest"`
}

// newExportData converts an outcome into its JSON payload.
func newExportData(o export.Outcome) ExportData {
	failed := o.Failed
	if failed == nil {
		failed = []staging.Failure{}
	}
	return ExportData{
		RunID:       o.RunID,
		Status:      string(o.Status),
		Message:     o.Message,
		Project:     o.Project,
		Name:        o.Name,
		Destination: o.Destination,
		Kind:        string(o.Kind),
		Files:       o.Files,
		Copied:      o.Copied,
		Omitted:     o.Omitted,
		Failed:      failed,
		Manifest:    o.Manifest,
	}
}

// StatusData is the payload of `changepack status --json`.
type StatusData struct {
	Repository string   `json:"repository"`
	Branch     *string  `json:"branch"`
	Staged     []string `json:"staged"`
	Modified   []string `json:"modified"`
	Untracked  []string `json:"untracked"`
	Files      []string `json:"files"`
	Total      int      `json:"total"`
}

// VerifyData is the payload of `changepack verify --json`.
type VerifyData struct {
	Directory string             `json:"directory"`
	Name      string             `json:"name"`
	Checked   int                `json:"checked"`
	OK        bool               `json:"ok"`
	Problems  []manifest.Problem `json:"problems"`
}

// DoctorCheck is one health check in `changepack doctor --json`.
type DoctorCheck struct {
	Name    string `json:"name"`
	Status  string `json:"status"` // pass, warn or fail
	Message string `json:"message"`
	Fix     string `json:"fix,omitempty"`
}

// DoctorSummary counts the doctor results.
type DoctorSummary struct {
	Passed  int  `json:"passed"`
	Warned  int  `json:"warned"`
	Failed  int  `json:"failed"`
	Healthy bool `json:"healthy"`
}

// DoctorData is the payload of `changepack doctor --json`.
type DoctorData struct {
	Checks  []DoctorCheck `json:"checks"`
	Summary DoctorSummary `json:"summary"`
}

// VersionData is the payload of `changepack version --json`.
type VersionData struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// ConfigData is the payload of `changepack config show --json`.
type ConfigData struct {
	Config  interface{} `json:"config"`
	Sources []string    `json:"sources"`
}
