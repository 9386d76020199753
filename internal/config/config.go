// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for changepack.
//
// Supports both TOML and JSON configuration formats, with defaults, a
// repository-local override file, environment variable overrides, and
// validation.
//
// Configuration sources (later wins):
//   - Built-in defaults
//   - ~/.changepack/config.toml (or config.json)
//   - <repository>/.changepack.toml
//   - CHANGEPACK_* environment variables
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/jeranaias/changepack/internal/archive"
	"github.com/jeranaias/changepack/internal/logging"
	"github.com/jeranaias/changepack/internal/naming"
	"github.com/jeranaias/changepack/internal/util"
)

// CurrentVersion is the config schema version written by Save.
const CurrentVersion = "1"

// RepoConfigName is the repository-local override file.
const RepoConfigName = ".changepack.toml"

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete changepack configuration.
type Config struct {
	Version string `toml:"version" json:"version"`

	Export  ExportConfig  `toml:"export" json:"export"`
	Logging LoggingConfig `toml:"logging" json:"logging"`

	// sources lists the files that were merged, in order.
	sources []string
}

// ExportConfig holds the export settings.
type ExportConfig struct {
	// OutputKind is directory, zip or tar.gz.
	OutputKind string `toml:"output_kind" json:"output_kind"`

	// NameTemplate names the export; see naming.Render for tokens.
	NameTemplate string `toml:"name_template" json:"name_template"`

	// IncludeManifest writes export-info.json into the export.
	IncludeManifest bool `toml:"include_manifest" json:"include_manifest"`

	// RevealAfterExport opens the destination in the file manager.
	RevealAfterExport bool `toml:"reveal_after_export" json:"reveal_after_export"`

	// DestinationDir is the parent of the default destination.
	// Empty means ~/Desktop, or the home directory without one.
	DestinationDir string `toml:"destination_dir" json:"destination_dir,omitempty"`
}

// LoggingConfig controls diagnostics.
type LoggingConfig struct {
	// Level is debug, info, warn or error.
	Level string `toml:"level" json:"level"`

	// File also receives JSON log records when set.
	File string `toml:"file" json:"file,omitempty"`

	// JSON switches stderr logging to JSON.
	JSON bool `toml:"json" json:"json"`
}

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Version: CurrentVersion,
		Export: ExportConfig{
			OutputKind:        string(archive.KindDirectory),
			NameTemplate:      naming.DefaultTemplate,
			IncludeManifest:   false,
			RevealAfterExport: true,
		},
		Logging: LoggingConfig{
			Level: "warn",
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the changepack configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".changepack"), nil
}

// ConfigPathTOML returns the path to the TOML config file.
func ConfigPathTOML() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ConfigPathJSON returns the path to the JSON config file.
func ConfigPathJSON() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// UserConfigPath returns the user config file that Load would read: the
// TOML file, or the JSON file when only that exists. The TOML path is
// returned when neither exists.
func UserConfigPath() (string, error) {
	tomlPath, err := ConfigPathTOML()
	if err != nil {
		return "", err
	}
	if fileExists(tomlPath) {
		return tomlPath, nil
	}
	jsonPath, err := ConfigPathJSON()
	if err == nil && fileExists(jsonPath) {
		return jsonPath, nil
	}
	return tomlPath, nil
}

// RepoConfigPath returns the repository-local override file for root.
func RepoConfigPath(root string) string {
	return filepath.Join(root, RepoConfigName)
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load builds the effective configuration. path selects the user config
// file; empty means the default location (a missing default file is
// fine, a missing explicit one is not). repoRoot, when set, adds the
// repository-local override file if present. Environment overrides are
// applied last, then the result is validated.
func Load(path, repoRoot string) (*Config, error) {
	cfg := Default()

	if path == "" {
		p, err := UserConfigPath()
		if err == nil && fileExists(p) {
			path = p
		}
	} else if !fileExists(path) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	if path != "" {
		if err := loadFile(cfg, path); err != nil {
			return nil, err
		}
	}

	if repoRoot != "" {
		if p := RepoConfigPath(repoRoot); fileExists(p) {
			if err := LoadTOML(cfg, p); err != nil {
				return nil, fmt.Errorf("failed to load repository config %s: %w", p, err)
			}
			cfg.sources = append(cfg.sources, p)
		}
	}

	cfg.ApplyEnvOverrides()
	if err := fillDefaults(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadFromPath loads a single config file over the defaults, without the
// repository file or environment overrides, and validates it.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()
	if err := loadFile(cfg, path); err != nil {
		return nil, err
	}
	if err := fillDefaults(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func loadFile(cfg *Config, path string) error {
	if strings.HasSuffix(strings.ToLower(path), ".json") {
		if err := LoadJSON(cfg, path); err != nil {
			return fmt.Errorf("failed to load JSON config from %s: %w", path, err)
		}
	} else {
		if err := LoadTOML(cfg, path); err != nil {
			return fmt.Errorf("failed to load TOML config from %s: %w", path, err)
		}
	}
	cfg.sources = append(cfg.sources, path)
	return nil
}

// LoadTOML decodes a TOML file over cfg. Keys absent from the file keep
// their current values.
func LoadTOML(cfg *Config, path string) error {
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return fmt.Errorf("unknown keys: %s", strings.Join(keys, ", "))
	}
	return nil
}

// LoadJSON decodes a JSON file over cfg.
func LoadJSON(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read JSON file: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to decode JSON file: %w", err)
	}
	return nil
}

// fillDefaults fills in values that must never be empty.
func fillDefaults(cfg *Config) error {
	defaults := Default()

	if cfg.Version == "" {
		cfg.Version = defaults.Version
	}
	if strings.TrimSpace(cfg.Export.OutputKind) == "" {
		cfg.Export.OutputKind = defaults.Export.OutputKind
	}
	if strings.TrimSpace(cfg.Export.NameTemplate) == "" {
		cfg.Export.NameTemplate = defaults.Export.NameTemplate
	}
	if strings.TrimSpace(cfg.Logging.Level) == "" {
		cfg.Logging.Level = defaults.Logging.Level
	}
	return nil
}

// Sources lists the config files that were merged, in load order.
func (c *Config) Sources() []string {
	return append([]string(nil), c.sources...)
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// SaveTOML writes cfg to path as TOML.
// RELIABILITY: Atomic write with fsync prevents a truncated file on crash.
func SaveTOML(cfg *Config, path string) error {
	var buf bytes.Buffer
	buf.WriteString("# changepack configuration file\n")
	buf.WriteString("# Generated by changepack - edit with care\n\n")

	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFileWithDir(path, buf.Bytes(), 0600, 0700); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// SaveJSON writes cfg to path as indented JSON.
func SaveJSON(cfg *Config, path string) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFileWithDir(path, append(data, '\n'), 0600, 0700); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	var errs ValidateErrors

	if _, err := archive.ParseKind(c.Export.OutputKind); err != nil {
		errs = append(errs, ValidationError{
			Field:   "export.output_kind",
			Message: fmt.Sprintf("invalid kind '%s', must be one of: directory, zip, tar.gz", c.Export.OutputKind),
		})
	}

	if strings.Count(c.Export.NameTemplate, "{") != strings.Count(c.Export.NameTemplate, "}") {
		errs = append(errs, ValidationError{
			Field:   "export.name_template",
			Message: fmt.Sprintf("unbalanced braces in '%s'", c.Export.NameTemplate),
		})
	}

	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("invalid level '%s', must be one of: debug, info, warn, error", c.Logging.Level),
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// Kind returns the parsed output kind. Validate has already rejected
// unknown kinds; directory is returned for anything unparsable.
func (c *Config) Kind() archive.Kind {
	k, err := archive.ParseKind(c.Export.OutputKind)
	if err != nil {
		return archive.KindDirectory
	}
	return k
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// Environment variables read by ApplyEnvOverrides.
const (
	EnvOutputKind      = "CHANGEPACK_OUTPUT_KIND"
	EnvNameTemplate    = "CHANGEPACK_NAME_TEMPLATE"
	EnvIncludeManifest = "CHANGEPACK_INCLUDE_MANIFEST"
	EnvReveal          = "CHANGEPACK_REVEAL"
	EnvDestinationDir  = "CHANGEPACK_DESTINATION_DIR"
	EnvLogLevel        = "CHANGEPACK_LOG_LEVEL"
	EnvLogFile         = "CHANGEPACK_LOG_FILE"
)

// ApplyEnvOverrides applies environment variable overrides.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv(EnvOutputKind); v != "" {
		c.Export.OutputKind = v
	}
	if v := os.Getenv(EnvNameTemplate); v != "" {
		c.Export.NameTemplate = v
	}
	if v := os.Getenv(EnvIncludeManifest); v != "" {
		c.Export.IncludeManifest = parseBool(v)
	}
	if v := os.Getenv(EnvReveal); v != "" {
		c.Export.RevealAfterExport = parseBool(v)
	}
	if v := os.Getenv(EnvDestinationDir); v != "" {
		c.Export.DestinationDir = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv(EnvLogFile); v != "" {
		c.Logging.File = v
	}
}

func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

// =============================================================================
// GET/SET HELPERS (DOT NOTATION)
// =============================================================================

// Get retrieves a configuration value using dot notation (e.g., "export.output_kind").
func (c *Config) Get(key string) (interface{}, error) {
	field, err := c.lookup(key)
	if err != nil {
		return nil, err
	}
	return field.Interface(), nil
}

// Set sets a configuration value using dot notation. String values are
// converted to the field's type.
func (c *Config) Set(key string, value interface{}) error {
	field, err := c.lookup(key)
	if err != nil {
		return err
	}
	if !field.CanSet() {
		return fmt.Errorf("cannot set field: %s", key)
	}
	return setFieldValue(field, value)
}

func (c *Config) lookup(key string) (reflect.Value, error) {
	if strings.TrimSpace(key) == "" {
		return reflect.Value{}, errors.New("empty key")
	}
	parts := strings.Split(key, ".")

	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		fieldName := normalizeFieldName(part)

		field := v.FieldByNameFunc(func(name string) bool {
			return strings.EqualFold(name, fieldName)
		})
		if !field.IsValid() || !field.CanInterface() {
			return reflect.Value{}, fmt.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}

		if i == len(parts)-1 {
			if field.Kind() == reflect.Struct {
				return reflect.Value{}, fmt.Errorf("field '%s' is a section, not a value", key)
			}
			return field, nil
		}

		if field.Kind() != reflect.Struct {
			return reflect.Value{}, fmt.Errorf("field '%s' is not a struct", strings.Join(parts[:i+1], "."))
		}
		v = field
	}
	return reflect.Value{}, fmt.Errorf("invalid key: %s", key)
}

// normalizeFieldName converts a snake_case or kebab-case name to its Go field equivalent.
func normalizeFieldName(name string) string {
	parts := strings.FieldsFunc(name, func(r rune) bool {
		return r == '_' || r == '-'
	})

	var result strings.Builder
	for _, part := range parts {
		if len(part) > 0 {
			result.WriteString(strings.ToUpper(string(part[0])))
			result.WriteString(strings.ToLower(part[1:]))
		}
	}
	return result.String()
}

// setFieldValue sets a reflect.Value from an interface{} value with type conversion.
func setFieldValue(field reflect.Value, value interface{}) error {
	if strVal, ok := value.(string); ok {
		switch field.Kind() {
		case reflect.String:
			field.SetString(strVal)
			return nil
		case reflect.Int, reflect.Int64:
			intVal, err := strconv.ParseInt(strVal, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer value: %v", err)
			}
			field.SetInt(intVal)
			return nil
		case reflect.Bool:
			boolVal, err := strconv.ParseBool(strings.ToLower(strVal))
			if err != nil {
				switch strings.ToLower(strVal) {
				case "yes", "on":
					boolVal = true
				case "no", "off":
					boolVal = false
				default:
					return fmt.Errorf("invalid boolean value: %q", strVal)
				}
			}
			field.SetBool(boolVal)
			return nil
		}
	}

	val := reflect.ValueOf(value)
	if !val.IsValid() {
		return fmt.Errorf("cannot assign nil to %s", field.Type())
	}
	if val.Type().AssignableTo(field.Type()) {
		field.Set(val)
		return nil
	}
	if val.Type().ConvertibleTo(field.Type()) && val.Kind() == field.Kind() {
		field.Set(val.Convert(field.Type()))
		return nil
	}
	return fmt.Errorf("cannot assign %T to %s", value, field.Type())
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// GetAllKeys returns all configuration keys in dot notation.
func GetAllKeys() []string {
	return []string{
		"version",
		"export.output_kind",
		"export.name_template",
		"export.include_manifest",
		"export.reveal_after_export",
		"export.destination_dir",
		"logging.level",
		"logging.file",
		"logging.json",
	}
}

// Clone returns a copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	clone.sources = c.Sources()
	return &clone
}

// String returns the configuration as indented JSON.
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
