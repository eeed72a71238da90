package plugins

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	semverRegex        = regexp.MustCompile(`^v?(\d+)\.(\d+)\.(\d+)(-[a-zA-Z0-9.-]+)?(\+[a-zA-Z0-9.-]+)?$`)
	logicalNameRegex   = regexp.MustCompile(`^[A-Za-z_][\w]*(\.[A-Za-z_][\w]*)+$`)
	qualifiedNameRegex = regexp.MustCompile(`^[A-Za-z_][\w$]*(\.[A-Za-z_][\w$]*)+$`)
)

// ManifestFileNames are the file names looked up in a plugin directory, in order
var ManifestFileNames = []string{"plugin.yaml", "plugin.yml", "plugin.json"}

// ErrManifestNotFound is returned when a directory holds no manifest file
var ErrManifestNotFound = errors.New("plugin manifest not found")

// LoadManifest loads and parses a plugin manifest from a file. JSON manifests
// are parsed by the same decoder since YAML is a superset of JSON.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var manifest Manifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}

	return &manifest, nil
}

// LoadManifestFromDir loads a plugin manifest from a directory
func LoadManifestFromDir(dir string) (*Manifest, error) {
	for _, name := range ManifestFileNames {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return LoadManifest(path)
		}
	}
	return nil, fmt.Errorf("%w in %s", ErrManifestNotFound, dir)
}

// SaveManifest saves a plugin manifest to a file
func SaveManifest(manifest *Manifest, path string) error {
	data, err := yaml.Marshal(manifest)
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}

	return nil
}

// ValidateManifest performs basic validation on a plugin manifest
func ValidateManifest(manifest *Manifest) []ValidationError {
	var errs []ValidationError

	// Required fields
	if manifest.Name == "" {
		errs = append(errs, ValidationError{
			Field:   "name",
			Message: "Plugin name is required",
		})
	}

	if manifest.Version == "" {
		errs = append(errs, ValidationError{
			Field:   "version",
			Message: "Version is required",
		})
	} else if !isValidSemver(manifest.Version) {
		errs = append(errs, ValidationError{
			Field:   "version",
			Message: fmt.Sprintf("Invalid semver format: %s", manifest.Version),
		})
	}

	errs = append(errs, validateBridgeFunctions(manifest.BridgeFunctions)...)
	errs = append(errs, validateAndroid(manifest.Android)...)

	return errs
}

func validateBridgeFunctions(functions []BridgeFunction) []ValidationError {
	var errs []ValidationError
	seen := make(map[string]bool)

	for i, fn := range functions {
		field := fmt.Sprintf("bridge_functions[%d]", i)

		if !logicalNameRegex.MatchString(fn.Name) {
			errs = append(errs, ValidationError{
				Field:   field + ".name",
				Message: fmt.Sprintf("Invalid logical name %q (expected dot-qualified, e.g. Camera.Open)", fn.Name),
			})
		} else if seen[fn.Name] {
			errs = append(errs, ValidationError{
				Field:   field + ".name",
				Message: fmt.Sprintf("Duplicate bridge function %s", fn.Name),
			})
		}
		seen[fn.Name] = true

		if !qualifiedNameRegex.MatchString(fn.Android) {
			errs = append(errs, ValidationError{
				Field:   field + ".android",
				Message: fmt.Sprintf("Invalid android target %q", fn.Android),
			})
		}

		for _, p := range fn.AndroidParams {
			if p != ParamActivity && p != ParamContext {
				errs = append(errs, ValidationError{
					Field:   field + ".android_params",
					Message: fmt.Sprintf("Unknown parameter %q (only 'activity' and 'context' are supported)", p),
				})
			}
		}
	}

	return errs
}

func validateAndroid(cfg AndroidConfig) []ValidationError {
	var errs []ValidationError

	for i, perm := range cfg.Permissions {
		if strings.TrimSpace(perm) == "" {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("android.permissions[%d]", i),
				Message: "Permission must not be empty",
			})
		}
	}

	for _, scope := range cfg.Dependencies {
		if !isScopeName(scope.Scope) {
			errs = append(errs, ValidationError{
				Field:   "android.dependencies",
				Message: fmt.Sprintf("Invalid scope name %q", scope.Scope),
			})
		}
		for _, coord := range scope.Coordinates {
			if coord == "" || strings.ContainsAny(coord, "\"\n") {
				errs = append(errs, ValidationError{
					Field:   "android.dependencies." + scope.Scope,
					Message: fmt.Sprintf("Invalid coordinate %q", coord),
				})
			}
		}
	}

	for i, svc := range cfg.Services {
		field := fmt.Sprintf("android.services[%d]", i)
		if svc.Name == "" {
			errs = append(errs, ValidationError{Field: field + ".name", Message: "Service name is required"})
		}
		for j, md := range svc.MetaData {
			if md.Name == "" {
				errs = append(errs, ValidationError{
					Field:   fmt.Sprintf("%s.meta_data[%d].name", field, j),
					Message: "Meta-data name is required",
				})
			}
		}
	}

	return errs
}

// isScopeName accepts Gradle configuration names such as
// implementation, kapt or debugImplementation.
func isScopeName(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}

// isValidSemver checks if a version string follows semantic versioning
func isValidSemver(version string) bool {
	return semverRegex.MatchString(version)
}
