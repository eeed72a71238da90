package codegen

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrSetup is returned when the target project is missing a required file
	ErrSetup = errors.New("project setup incomplete")

	// ErrConflict is returned when the plugin registry reports conflicts
	ErrConflict = errors.New("plugin conflicts detected")

	// ErrManifestParse is returned when the application manifest cannot be parsed
	ErrManifestParse = errors.New("failed to parse application manifest")

	// ErrBuildScriptParse is returned when the build script cannot be parsed
	ErrBuildScriptParse = errors.New("failed to parse build script")

	// ErrSourcePlacement is returned when a plugin source file has no package declaration
	ErrSourcePlacement = errors.New("cannot place source file")
)

// ConflictError carries the conflicts reported by the plugin registry.
type ConflictError struct {
	Conflicts []string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s: %s", ErrConflict, strings.Join(e.Conflicts, "; "))
}

// Unwrap allows errors.Is(err, ErrConflict).
func (e *ConflictError) Unwrap() error {
	return ErrConflict
}

// NewSetupError creates a setup error naming the missing file
func NewSetupError(path string) error {
	return fmt.Errorf("%w: missing %s", ErrSetup, path)
}

// NewManifestParseError wraps a manifest parse failure
func NewManifestParseError(path string, cause error) error {
	return fmt.Errorf("%w %s: %v", ErrManifestParse, path, cause)
}

// NewBuildScriptParseError wraps a build script parse failure
func NewBuildScriptParseError(path string, cause error) error {
	return fmt.Errorf("%w %s: %v", ErrBuildScriptParse, path, cause)
}

// NewSourcePlacementError reports a source file that could not be placed
func NewSourcePlacementError(path, reason string) error {
	return fmt.Errorf("%w %s: %s", ErrSourcePlacement, path, reason)
}

// IsSetupError checks if the error is or wraps ErrSetup
func IsSetupError(err error) bool {
	return errors.Is(err, ErrSetup)
}

// IsConflictError checks if the error is or wraps ErrConflict
func IsConflictError(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsManifestParseError checks if the error is or wraps ErrManifestParse
func IsManifestParseError(err error) bool {
	return errors.Is(err, ErrManifestParse)
}

// IsBuildScriptParseError checks if the error is or wraps ErrBuildScriptParse
func IsBuildScriptParseError(err error) bool {
	return errors.Is(err, ErrBuildScriptParse)
}

// IsSourcePlacementError checks if the error is or wraps ErrSourcePlacement
func IsSourcePlacementError(err error) bool {
	return errors.Is(err, ErrSourcePlacement)
}
