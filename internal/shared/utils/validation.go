package utils

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// MaxPackageNameLength bounds a package name, which doubles as a directory name
const MaxPackageNameLength = 128

// PackageNamePattern allows reverse-domain names such as com.example.app
var PackageNamePattern = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// ValidateString validates a string field with length and content checks
func ValidateString(value, fieldName string, minLen, maxLen int, required bool) error {
	if required && value == "" {
		return fmt.Errorf("%s is required", fieldName)
	}

	if value == "" && !required {
		return nil
	}

	length := utf8.RuneCountInString(value)
	if length < minLen {
		return fmt.Errorf("%s must be at least %d characters", fieldName, minLen)
	}
	if length > maxLen {
		return fmt.Errorf("%s must not exceed %d characters", fieldName, maxLen)
	}

	if strings.Contains(value, "\x00") {
		return fmt.Errorf("%s contains invalid characters", fieldName)
	}

	return nil
}

// ValidatePackageName checks that name is usable as a directory under the install roots
func ValidatePackageName(name string) error {
	if err := ValidateString(name, "package", 1, MaxPackageNameLength, true); err != nil {
		return err
	}

	if !PackageNamePattern.MatchString(name) {
		return fmt.Errorf("package %q contains invalid characters (only alphanumeric, dots, hyphens, and underscores allowed)", name)
	}

	if name == "." || strings.Contains(name, "..") {
		return fmt.Errorf("package %q contains invalid path components", name)
	}

	return nil
}
