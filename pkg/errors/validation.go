package errors

import (
	"strings"
	"unicode"
)

// maxCrateNameLength mirrors the limit crates.io enforces on publish.
const maxCrateNameLength = 64

// ValidatePackageName validates a package name for safety.
// It rejects names that could be used for path traversal or injection attacks.
//
// The validation rules are intentionally conservative:
//   - No empty names
//   - No control characters
//   - No path traversal sequences (.., //, etc.)
//   - No null bytes
//   - Maximum length of 256 characters
//
// Crate-specific rules are applied by [ValidateCrateName].
func ValidatePackageName(name string) error {
	if name == "" {
		return New(ErrCodeInvalidPackage, "package name cannot be empty")
	}

	if len(name) > 256 {
		return New(ErrCodeInvalidPackage, "package name too long (max 256 characters)")
	}

	for _, r := range name {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidPackage, "package name contains invalid control characters")
		}
	}

	dangerousPatterns := []string{
		"..",   // Parent directory
		"//",   // Double slash
		"\x00", // Null byte
		"\\",   // Backslash (Windows path)
	}

	for _, pattern := range dangerousPatterns {
		if strings.Contains(name, pattern) {
			return New(ErrCodeInvalidPackage, "package name contains invalid characters: %q", pattern)
		}
	}

	return nil
}

// ValidateCrateName validates a crate name as accepted on the command line.
//
// Crate names consist of alphanumeric characters, '-' and '_'. The error
// names the first offending character and its index so the user can find it
// in a long argument list.
func ValidateCrateName(name string) error {
	if err := ValidatePackageName(name); err != nil {
		return err
	}
	if len(name) > maxCrateNameLength {
		return New(ErrCodeInvalidPackage, "crate name too long (max %d characters)", maxCrateNameLength)
	}
	for i, r := range []rune(name) {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-' && r != '_' {
			return New(ErrCodeInvalidPackage,
				"invalid character %q at index %d, crate names must be alphanumeric or `-_`", r, i)
		}
	}
	return nil
}

// ValidateURL validates a URL string for safety.
// It ensures the URL has a safe scheme (http or https).
func ValidateURL(rawURL string) error {
	if rawURL == "" {
		return New(ErrCodeInvalidInput, "URL cannot be empty")
	}

	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		return New(ErrCodeInvalidInput, "URL must use http or https scheme")
	}

	return nil
}
