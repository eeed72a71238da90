package config

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/sirupsen/logrus"
)

var packageRegex = regexp.MustCompile(`^[a-z_][a-z0-9_]*(\.[a-z_][a-z0-9_]*)*$`)

// Config holds all application configuration
type Config struct {
	Project       ProjectConfig
	Compiler      CompilerConfig
	Observability ObservabilityConfig
}

// ProjectConfig locates the host project and its plugins. Relative paths are
// resolved against Root.
type ProjectConfig struct {
	Root            string   `env:"MOBILE_AIR_PROJECT_ROOT" envDefault:"."`
	PluginDirs      []string `env:"MOBILE_AIR_PLUGIN_DIRS" envDefault:"plugins" envSeparator:","`
	ManifestPath    string   `env:"MOBILE_AIR_MANIFEST_PATH" envDefault:"app/src/main/AndroidManifest.xml"`
	BuildScriptPath string   `env:"MOBILE_AIR_BUILD_SCRIPT_PATH" envDefault:"app/build.gradle.kts"`
	SourceRoot      string   `env:"MOBILE_AIR_SOURCE_ROOT" envDefault:"app/src/main/java"`
	BridgePackage   string   `env:"MOBILE_AIR_BRIDGE_PACKAGE" envDefault:"com.mobileair.bridge.plugins"`
	RegistryType    string   `env:"MOBILE_AIR_REGISTRY_TYPE" envDefault:"com.mobileair.bridge.BridgeFunctionRegistry"`
}

// CompilerConfig tunes compilation
type CompilerConfig struct {
	MaxWorkers   int           `env:"MOBILE_AIR_MAX_WORKERS" envDefault:"4"`
	CacheEntries int           `env:"MOBILE_AIR_CACHE_ENTRIES" envDefault:"4096"`
	WatchDelay   time.Duration `env:"MOBILE_AIR_WATCH_DELAY" envDefault:"500ms"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel    string `env:"MOBILE_AIR_LOG_LEVEL" envDefault:"info"`
	LogFormat   string `env:"MOBILE_AIR_LOG_FORMAT" envDefault:"text"`
	MetricsFile string `env:"MOBILE_AIR_METRICS_FILE"` // Prometheus textfile written after each run

	OTelEndpoint    string `env:"MOBILE_AIR_OTEL_ENDPOINT"` // OTLP gRPC endpoint, empty disables export
	OTelServiceName string `env:"MOBILE_AIR_OTEL_SERVICE_NAME" envDefault:"mobile-air"`
	OTelInsecure    bool   `env:"MOBILE_AIR_OTEL_INSECURE"`
}

// ParseEnv loads configuration from environment variables into target
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// LoadConfig loads and validates configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := ParseEnv(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Project.Root == "" {
		return fmt.Errorf("project root is required")
	}
	if len(c.Project.PluginDirs) == 0 {
		return fmt.Errorf("at least one plugin directory is required")
	}
	if c.Project.ManifestPath == "" {
		return fmt.Errorf("manifest path is required")
	}
	if c.Project.BuildScriptPath == "" {
		return fmt.Errorf("build script path is required")
	}
	if c.Project.SourceRoot == "" {
		return fmt.Errorf("source root is required")
	}
	if !packageRegex.MatchString(c.Project.BridgePackage) {
		return fmt.Errorf("invalid bridge package %q: expected a lowercase dotted package name", c.Project.BridgePackage)
	}
	if !strings.Contains(c.Project.RegistryType, ".") {
		return fmt.Errorf("registry type %q must be fully qualified", c.Project.RegistryType)
	}

	if c.Compiler.MaxWorkers < 1 {
		return fmt.Errorf("max workers must be at least 1, got %d", c.Compiler.MaxWorkers)
	}
	if c.Compiler.CacheEntries < 0 {
		return fmt.Errorf("cache entries must not be negative")
	}
	if c.Compiler.WatchDelay < 0 {
		return fmt.Errorf("watch delay must not be negative")
	}

	if _, err := logrus.ParseLevel(c.Observability.LogLevel); err != nil {
		return fmt.Errorf("invalid log level %q", c.Observability.LogLevel)
	}
	switch c.Observability.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log format %q (must be text or json)", c.Observability.LogFormat)
	}

	return nil
}

// Resolve returns path joined to the project root unless it is absolute
func (p ProjectConfig) Resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(p.Root, path)
}

// PluginPaths returns the plugin directories resolved against the root
func (p ProjectConfig) PluginPaths() []string {
	paths := make([]string, 0, len(p.PluginDirs))
	for _, dir := range p.PluginDirs {
		if dir = strings.TrimSpace(dir); dir != "" {
			paths = append(paths, p.Resolve(dir))
		}
	}
	return paths
}
