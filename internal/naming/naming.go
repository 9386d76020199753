// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package naming renders export base names from templates such as
// "{project}-{branch}-{timestamp}".
//
// The template is sanitized before substitution, and substituted values
// are sanitized as well, so the result is always a single path element.
// Unknown tokens are left as written.
package naming

import (
	"strings"
	"time"
)

// =============================================================================
// TOKENS
// =============================================================================

// Recognized template tokens.
const (
	TokenProject   = "{project}"
	TokenBranch    = "{branch}"
	TokenHash      = "{hash}"
	TokenUser      = "{user}"
	TokenTimestamp = "{timestamp}"
)

// DefaultTemplate is used when no template is configured.
const DefaultTemplate = "{project}-{branch}-{timestamp}"

// TimestampLayout is the fixed YYYYMMDD-HHMMSS layout.
const TimestampLayout = "20060102-150405"

// FallbackName replaces a rendered name with no usable characters.
const FallbackName = "changes"

// Values holds the substitutions for one run. Empty fields render as
// empty strings (detached HEAD, no user configured, ...).
type Values struct {
	Project   string
	Branch    string
	Hash      string
	User      string
	Timestamp string
}

// FormatTimestamp formats t in local time with TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.Local().Format(TimestampLayout)
}

// =============================================================================
// SANITIZING
// =============================================================================

// IllegalChars are the characters that may not appear in a file name on
// at least one supported platform.
const IllegalChars = `<>:"/\|?*`

// Replacement is substituted for every illegal character.
const Replacement = '-'

// Sanitize replaces filename-illegal and control characters with
// Replacement. Everything else, including braces, is kept.
func Sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 32 || r == 127 || strings.ContainsRune(IllegalChars, r) {
			return Replacement
		}
		return r
	}, s)
}

// HasIllegalChars reports whether s contains a character Sanitize would
// replace.
func HasIllegalChars(s string) bool {
	return Sanitize(s) != s
}

// =============================================================================
// RENDERING
// =============================================================================

// Render sanitizes template, then substitutes the recognized tokens with
// the sanitized values. An empty template renders DefaultTemplate.
func Render(template string, v Values) string {
	if strings.TrimSpace(template) == "" {
		template = DefaultTemplate
	}

	r := strings.NewReplacer(
		TokenProject, Sanitize(v.Project),
		TokenBranch, Sanitize(v.Branch),
		TokenHash, Sanitize(v.Hash),
		TokenUser, Sanitize(v.User),
		TokenTimestamp, Sanitize(v.Timestamp),
	)
	name := r.Replace(Sanitize(template))

	if strings.Trim(name, ". ") == "" {
		return FallbackName
	}
	return name
}
