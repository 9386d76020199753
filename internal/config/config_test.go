// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jeranaias/changepack/internal/archive"
)

// isolateHome points the user config directory at a temp dir and clears
// the CHANGEPACK_* environment.
func isolateHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home)
	for _, k := range []string{EnvOutputKind, EnvNameTemplate, EnvIncludeManifest, EnvReveal, EnvDestinationDir, EnvLogLevel, EnvLogFile} {
		t.Setenv(k, "")
	}
	return home
}

func writeConfigFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

// TestConfig_Default tests that Default() returns the documented defaults.
func TestConfig_Default(t *testing.T) {
	cfg := Default()

	if cfg.Export.OutputKind != "directory" {
		t.Errorf("Expected default output kind 'directory', got '%s'", cfg.Export.OutputKind)
	}
	if cfg.Export.NameTemplate != "{project}-{branch}-{timestamp}" {
		t.Errorf("Unexpected default template '%s'", cfg.Export.NameTemplate)
	}
	if cfg.Export.IncludeManifest {
		t.Error("Manifest should be off by default")
	}
	if !cfg.Export.RevealAfterExport {
		t.Error("Reveal should be on by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default config should validate: %v", err)
	}
}

// TestLoad_NoFiles returns defaults when nothing exists.
func TestLoad_NoFiles(t *testing.T) {
	isolateHome(t)

	cfg, err := Load("", t.TempDir())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Kind() != archive.KindDirectory {
		t.Errorf("Kind() = %s, want directory", cfg.Kind())
	}
	if len(cfg.Sources()) != 0 {
		t.Errorf("Sources() = %v, want none", cfg.Sources())
	}
}

// TestLoad_Layering checks defaults < user file < repository file < env.
func TestLoad_Layering(t *testing.T) {
	home := isolateHome(t)
	repo := t.TempDir()

	userPath := filepath.Join(home, ".changepack", "config.toml")
	writeConfigFile(t, userPath, `
[export]
output_kind = "zip"
include_manifest = true
name_template = "{project}-{hash}"

[logging]
level = "info"
`)
	writeConfigFile(t, filepath.Join(repo, RepoConfigName), `
[export]
include_manifest = false
reveal_after_export = false
`)
	t.Setenv(EnvLogLevel, "debug")

	cfg, err := Load("", repo)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Kind() != archive.KindZip {
		t.Errorf("output kind from user file lost: %s", cfg.Export.OutputKind)
	}
	if cfg.Export.NameTemplate != "{project}-{hash}" {
		t.Errorf("name template = %s", cfg.Export.NameTemplate)
	}
	if cfg.Export.IncludeManifest {
		t.Error("repository file should switch the manifest off")
	}
	if cfg.Export.RevealAfterExport {
		t.Error("repository file should switch reveal off")
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("env override lost: level = %s", cfg.Logging.Level)
	}

	sources := cfg.Sources()
	if len(sources) != 2 || sources[0] != userPath || sources[1] != RepoConfigPath(repo) {
		t.Errorf("Sources() = %v", sources)
	}
}

// TestLoad_JSONFallback reads config.json when no TOML file exists.
func TestLoad_JSONFallback(t *testing.T) {
	home := isolateHome(t)
	writeConfigFile(t, filepath.Join(home, ".changepack", "config.json"),
		`{"export": {"output_kind": "tar.gz", "include_manifest": true}}`)

	cfg, err := Load("", "")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Kind() != archive.KindTarGz {
		t.Errorf("Kind() = %s, want tar.gz", cfg.Kind())
	}
	if !cfg.Export.IncludeManifest {
		t.Error("include_manifest from JSON lost")
	}
	if !cfg.Export.RevealAfterExport {
		t.Error("absent key should keep its default")
	}
}

// TestLoad_ExplicitPath requires an explicit file to exist.
func TestLoad_ExplicitPath(t *testing.T) {
	isolateHome(t)
	dir := t.TempDir()

	if _, err := Load(filepath.Join(dir, "missing.toml"), ""); err == nil {
		t.Error("Load() with a missing explicit path should fail")
	}

	path := filepath.Join(dir, "custom.toml")
	writeConfigFile(t, path, "[export]\noutput_kind = \"tgz\"\n")
	cfg, err := Load(path, "")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Kind() != archive.KindTarGz {
		t.Errorf("Kind() = %s, want tar.gz", cfg.Kind())
	}
}

// TestLoad_Errors covers malformed, unknown and invalid content.
func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"malformed", "[export\n", "decode"},
		{"unknown key", "[export]\nformat = \"zip\"\n", "unknown keys"},
		{"invalid kind", "[export]\noutput_kind = \"rar\"\n", "export.output_kind"},
		{"invalid level", "[logging]\nlevel = \"loud\"\n", "logging.level"},
		{"unbalanced template", "[export]\nname_template = \"{project\"\n", "export.name_template"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolateHome(t)
			path := filepath.Join(t.TempDir(), "config.toml")
			writeConfigFile(t, path, tt.content)

			_, err := Load(path, "")
			if err == nil {
				t.Fatal("Load() should fail")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

// TestConfig_ValidateErrorsType checks the error is inspectable.
func TestConfig_ValidateErrorsType(t *testing.T) {
	cfg := Default()
	cfg.Export.OutputKind = "rar"
	cfg.Logging.Level = "loud"

	err := cfg.Validate()
	var verrs ValidateErrors
	if !errors.As(err, &verrs) {
		t.Fatalf("Validate() returned %T, want ValidateErrors", err)
	}
	if len(verrs) != 2 {
		t.Errorf("got %d validation errors, want 2: %v", len(verrs), verrs)
	}
}

// TestConfig_EnvOverrides tests each CHANGEPACK_* variable.
func TestConfig_EnvOverrides(t *testing.T) {
	isolateHome(t)
	t.Setenv(EnvOutputKind, "zip")
	t.Setenv(EnvNameTemplate, "{user}")
	t.Setenv(EnvIncludeManifest, "yes")
	t.Setenv(EnvReveal, "0")
	t.Setenv(EnvDestinationDir, "/exports")
	t.Setenv(EnvLogFile, "/tmp/cp.log")

	cfg := Default()
	cfg.ApplyEnvOverrides()

	if cfg.Export.OutputKind != "zip" || cfg.Export.NameTemplate != "{user}" {
		t.Errorf("string overrides not applied: %+v", cfg.Export)
	}
	if !cfg.Export.IncludeManifest || cfg.Export.RevealAfterExport {
		t.Errorf("bool overrides not applied: %+v", cfg.Export)
	}
	if cfg.Export.DestinationDir != "/exports" || cfg.Logging.File != "/tmp/cp.log" {
		t.Errorf("path overrides not applied: %+v %+v", cfg.Export, cfg.Logging)
	}
}

// TestConfig_GetSet tests Get and Set methods with dot notation.
func TestConfig_GetSet(t *testing.T) {
	cfg := Default()

	val, err := cfg.Get("export.output_kind")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if val != "directory" {
		t.Errorf("Get('export.output_kind') = %v, want 'directory'", val)
	}

	if err := cfg.Set("export.include-manifest", "true"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if !cfg.Export.IncludeManifest {
		t.Error("Set of a bool from string failed")
	}

	if err := cfg.Set("export.reveal_after_export", "off"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if cfg.Export.RevealAfterExport {
		t.Error("'off' should set false")
	}

	if err := cfg.Set("logging.json", "maybe"); err == nil {
		t.Error("Set() with an invalid bool should fail")
	}

	for _, bad := range []string{"", "invalid.key", "export", "export.output_kind.x", "sources"} {
		if _, err := cfg.Get(bad); err == nil {
			t.Errorf("Get(%q) should fail", bad)
		}
	}
}

// TestGetAllKeys checks every advertised key resolves.
func TestGetAllKeys(t *testing.T) {
	cfg := Default()
	for _, key := range GetAllKeys() {
		if _, err := cfg.Get(key); err != nil {
			t.Errorf("Get(%q) error = %v", key, err)
		}
	}
}

// TestSaveTOML_RoundTrip saves with owner-only permissions and reloads.
func TestSaveTOML_RoundTrip(t *testing.T) {
	isolateHome(t)
	path := filepath.Join(t.TempDir(), "nested", "config.toml")

	cfg := Default()
	cfg.Export.OutputKind = "tar.gz"
	cfg.Export.IncludeManifest = true
	cfg.Logging.File = "~/logs/changepack.log"

	if err := SaveTOML(cfg, path); err != nil {
		t.Fatalf("SaveTOML() error = %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0600 && os.Getenv("OS") != "Windows_NT" {
		t.Errorf("config permissions = %o, want 600", perm)
	}

	loaded, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath() error = %v", err)
	}
	if loaded.Export != cfg.Export || loaded.Logging != cfg.Logging {
		t.Errorf("round trip mismatch:\n got %+v %+v\nwant %+v %+v", loaded.Export, loaded.Logging, cfg.Export, cfg.Logging)
	}
}

// TestSaveJSON_RoundTrip does the same for JSON.
func TestSaveJSON_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	cfg := Default()
	cfg.Export.NameTemplate = "{project}_{user}"
	if err := SaveJSON(cfg, path); err != nil {
		t.Fatalf("SaveJSON() error = %v", err)
	}

	loaded, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath() error = %v", err)
	}
	if loaded.Export.NameTemplate != "{project}_{user}" {
		t.Errorf("template = %s", loaded.Export.NameTemplate)
	}
}

// TestConfig_Clone tests that Clone creates an independent copy.
func TestConfig_Clone(t *testing.T) {
	original := Default()
	original.sources = []string{"a"}

	clone := original.Clone()
	clone.Export.OutputKind = "zip"
	clone.sources[0] = "b"

	if original.Export.OutputKind != "directory" {
		t.Error("Clone should create an independent copy")
	}
	if original.sources[0] != "a" {
		t.Error("Clone should not share sources")
	}
}

// TestConfig_StringIsJSON keeps `config show` output stable.
func TestConfig_StringIsJSON(t *testing.T) {
	s := Default().String()
	if !strings.Contains(s, `"output_kind": "directory"`) {
		t.Errorf("String() = %s", s)
	}
}
