// Package exec provides safety validation for child-process spawning:
// executable names, argument vectors, environments, and working directories.
package exec

import (
	"errors"
	"path/filepath"
	"regexp"
	"strings"
)

// Pattern definitions for spawn safety validation.
var (
	// ShellMetachars matches characters that could enable command or
	// argument injection if a token ever reached a shell.
	ShellMetachars = regexp.MustCompile("[;&|`$(){}\\[\\]<>*?'\"\\\\]")

	// ControlChars matches control characters like newlines and carriage returns.
	ControlChars = regexp.MustCompile(`[\x00-\x1f\x7f]`)

	// BareNamePattern matches safe bare executable names without paths.
	BareNamePattern = regexp.MustCompile(`^[A-Za-z0-9._+-]+$`)

	// EnvKeyPattern matches well-formed environment variable names.
	EnvKeyPattern = regexp.MustCompile(`^[A-Z_][A-Z0-9_]*$`)

	// WindowsDriveLetter matches Windows drive letter paths (e.g., C:\).
	WindowsDriveLetter = regexp.MustCompile(`^[A-Za-z]:[\\/]`)
)

// Validation limits.
const (
	// MaxArgValueLength caps the value side of a flag=value argument.
	MaxArgValueLength = 4096

	// MaxEnvValueLength caps environment variable values.
	MaxEnvValueLength = 8192
)

// Validation errors.
var (
	ErrEmptyValue        = errors.New("value is empty")
	ErrNullByte          = errors.New("value contains null byte")
	ErrControlChar       = errors.New("value contains control characters")
	ErrShellMetachar     = errors.New("value contains shell metacharacters")
	ErrOptionInjection   = errors.New("value starts with dash (option injection)")
	ErrInvalidBareName   = errors.New("value contains invalid characters for a bare executable name")
	ErrValueTooLong      = errors.New("value exceeds maximum length")
	ErrInvalidEnvKey     = errors.New("environment key is malformed")
	ErrRelativeWorkDir   = errors.New("working directory must be absolute")
	ErrUnsafeWorkDirPath = errors.New("working directory contains unsafe characters")
)

// IsLikelyPath reports whether the value looks like a file path rather than
// a bare executable name.
func IsLikelyPath(value string) bool {
	if value == "" {
		return false
	}
	if strings.HasPrefix(value, ".") || strings.HasPrefix(value, "~") {
		return true
	}
	if strings.Contains(value, "/") || strings.Contains(value, "\\") {
		return true
	}
	return WindowsDriveLetter.MatchString(value)
}

// ValidateExecutable checks that an executable name or path is safe to
// spawn. Bare names must match BareNamePattern; paths may contain
// separators but no metacharacters, control characters, or a leading dash.
func ValidateExecutable(value string) error {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ErrEmptyValue
	}
	if strings.Contains(trimmed, "\x00") {
		return ErrNullByte
	}
	if ControlChars.MatchString(trimmed) {
		return ErrControlChar
	}
	if strings.HasPrefix(trimmed, "-") {
		return ErrOptionInjection
	}
	if IsLikelyPath(trimmed) {
		// Paths legitimately contain separators and dots, but still must
		// not carry injection characters.
		if ShellMetachars.MatchString(strings.ReplaceAll(trimmed, "\\", "/")) {
			return ErrShellMetachar
		}
		return nil
	}
	if !BareNamePattern.MatchString(trimmed) {
		return ErrInvalidBareName
	}
	return nil
}

// ValidateWorkDir checks that a working directory is an absolute path free
// of shell metacharacters and control characters.
func ValidateWorkDir(dir string) error {
	if strings.TrimSpace(dir) == "" {
		return ErrEmptyValue
	}
	if !filepath.IsAbs(dir) {
		return ErrRelativeWorkDir
	}
	if strings.Contains(dir, "\x00") || ControlChars.MatchString(dir) {
		return ErrUnsafeWorkDirPath
	}
	// Path separators are fine; everything else in the metachar class is not.
	cleaned := strings.ReplaceAll(dir, "\\", "/")
	if ShellMetachars.MatchString(cleaned) {
		return ErrUnsafeWorkDirPath
	}
	return nil
}
