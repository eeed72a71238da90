package plugins

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Plugin is a loaded plugin: identity, owning directory and parsed manifest.
// Plugins are immutable once constructed.
type Plugin struct {
	Name     string
	Version  string
	Path     string // Root directory owning the plugin's resources
	Manifest *Manifest
}

// Manifest describes a plugin and the platform capabilities it contributes
type Manifest struct {
	Name            string           `yaml:"name"`                       // Unique plugin name (e.g., "camera")
	Version         string           `yaml:"version"`                    // Semver
	Description     string           `yaml:"description,omitempty"`      // Short description
	Author          string           `yaml:"author,omitempty"`           // Author name
	License         string           `yaml:"license,omitempty"`          // License (e.g., MIT, Apache-2.0)
	Homepage        string           `yaml:"homepage,omitempty"`         // Homepage URL
	BridgeFunctions []BridgeFunction `yaml:"bridge_functions,omitempty"` // Declaration order is preserved
	Android         AndroidConfig    `yaml:"android"`                    // Android project contributions
}

// BridgeFunction maps a logical capability name to its native implementations
type BridgeFunction struct {
	Name          string  `yaml:"name"`                     // Dot-qualified logical name, e.g. "Camera.Open"
	Android       string  `yaml:"android"`                  // Fully qualified Kotlin/Java target
	IOS           string  `yaml:"ios,omitempty"`            // Counterpart target for the other platform
	AndroidParams []Param `yaml:"android_params,omitempty"` // Handles passed to the Android target
}

// Param names a runtime handle a bridge function needs at construction
type Param string

const (
	ParamActivity Param = "activity"
	ParamContext  Param = "context"
)

// RequiredParams are the handles in the fixed activity-then-context order,
// omitting any the function does not need.
func (f BridgeFunction) RequiredParams() []Param {
	var params []Param
	for _, p := range []Param{ParamActivity, ParamContext} {
		if f.Requires(p) {
			params = append(params, p)
		}
	}
	return params
}

// Requires reports whether the function declares the given handle
func (f BridgeFunction) Requires(p Param) bool {
	for _, declared := range f.AndroidParams {
		if declared == p {
			return true
		}
	}
	return false
}

// AndroidConfig holds everything a plugin merges into the Android project
type AndroidConfig struct {
	Permissions  []string         `yaml:"permissions,omitempty"`
	Dependencies DependencyScopes `yaml:"dependencies,omitempty"`
	Services     []Service        `yaml:"services,omitempty"`
}

// ScopeDependencies lists the coordinates declared under one Gradle scope
type ScopeDependencies struct {
	Scope       string
	Coordinates []string
}

// DependencyScopes is an ordered scope -> coordinates mapping. Scopes are an
// open set; declaration order is kept so generated lines are deterministic.
type DependencyScopes []ScopeDependencies

// UnmarshalYAML decodes a mapping of scope names to a coordinate list or a
// single coordinate string.
func (d *DependencyScopes) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: dependencies must be a mapping of scope to coordinates", node.Line)
	}

	scopes := make(DependencyScopes, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i], node.Content[i+1]

		var coords []string
		switch value.Kind {
		case yaml.ScalarNode:
			coords = []string{value.Value}
		case yaml.SequenceNode:
			if err := value.Decode(&coords); err != nil {
				return fmt.Errorf("line %d: scope %q: %w", value.Line, key.Value, err)
			}
		default:
			return fmt.Errorf("line %d: scope %q must list coordinates", value.Line, key.Value)
		}

		scopes = append(scopes, ScopeDependencies{Scope: key.Value, Coordinates: coords})
	}

	*d = scopes
	return nil
}

// MarshalYAML encodes the scopes back into a mapping, keeping their order
func (d DependencyScopes) MarshalYAML() (interface{}, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, s := range d {
		value := &yaml.Node{Kind: yaml.SequenceNode}
		for _, c := range s.Coordinates {
			value.Content = append(value.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: c})
		}
		node.Content = append(node.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: s.Scope}, value)
	}
	return node, nil
}

// Count returns the total number of coordinates across all scopes
func (d DependencyScopes) Count() int {
	n := 0
	for _, s := range d {
		n += len(s.Coordinates)
	}
	return n
}

// Service is an Android service declared by a plugin
type Service struct {
	Name          string         `yaml:"name"`
	Exported      bool           `yaml:"exported"`
	MetaData      []MetaData     `yaml:"meta_data,omitempty"`
	IntentFilters []IntentFilter `yaml:"intent_filters,omitempty"`
}

// UnmarshalYAML accepts both meta_data and meta-data (and intent_filters or
// intent-filters) spellings.
func (s *Service) UnmarshalYAML(node *yaml.Node) error {
	var raw struct {
		Name              string         `yaml:"name"`
		Exported          bool           `yaml:"exported"`
		MetaData          []MetaData     `yaml:"meta_data"`
		MetaDataDash      []MetaData     `yaml:"meta-data"`
		IntentFilters     []IntentFilter `yaml:"intent_filters"`
		IntentFiltersDash []IntentFilter `yaml:"intent-filters"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}

	*s = Service{
		Name:          raw.Name,
		Exported:      raw.Exported,
		MetaData:      append(raw.MetaData, raw.MetaDataDash...),
		IntentFilters: append(raw.IntentFilters, raw.IntentFiltersDash...),
	}
	return nil
}

// MetaData is a <meta-data> entry. Value may be a string, bool or number.
type MetaData struct {
	Name     string      `yaml:"name"`
	Value    interface{} `yaml:"value,omitempty"`
	Resource string      `yaml:"resource,omitempty"`
}

// Attribute returns the single attribute rendered next to the name.
// Resource takes precedence over value; booleans render as "true"/"false".
func (m MetaData) Attribute() (key, value string, ok bool) {
	if m.Resource != "" {
		return "resource", m.Resource, true
	}

	switch v := m.Value.(type) {
	case nil:
		return "", "", false
	case bool:
		if v {
			return "value", "true", true
		}
		return "value", "false", true
	case string:
		return "value", v, true
	default:
		return "value", fmt.Sprint(v), true
	}
}

// IntentFilter is passed through to the manifest merge. Keys are child
// element names (action, category, data); keys prefixed with "android:" are
// attributes of the intent-filter element itself.
type IntentFilter map[string]interface{}

// Conflict describes a clash between plugins reported by the registry
type Conflict struct {
	Kind    ConflictKind
	Key     string   // Plugin name or bridge function name
	Plugins []string // Plugins involved, in registry order
}

// ConflictKind categorizes registry conflicts
type ConflictKind string

const (
	ConflictDuplicatePlugin   ConflictKind = "duplicate-plugin"
	ConflictDuplicateFunction ConflictKind = "duplicate-function"
)

func (c Conflict) String() string {
	switch c.Kind {
	case ConflictDuplicatePlugin:
		return fmt.Sprintf("plugin %q registered %d times", c.Key, len(c.Plugins))
	case ConflictDuplicateFunction:
		return fmt.Sprintf("bridge function %q declared by plugins %s", c.Key, strings.Join(c.Plugins, ", "))
	default:
		return fmt.Sprintf("%s: %s (%s)", c.Kind, c.Key, strings.Join(c.Plugins, ", "))
	}
}

// ValidationError represents a manifest validation error
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	return e.Field + ": " + e.Message
}
