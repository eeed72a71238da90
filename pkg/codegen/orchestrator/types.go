package orchestrator

import (
	"context"

	"github.com/Mallon94/mobile-air/pkg/codegen"
	"github.com/Mallon94/mobile-air/pkg/codegen/cache"
	"github.com/Mallon94/mobile-air/pkg/codegen/registration"
	"github.com/Mallon94/mobile-air/pkg/plugins"
)

// Orchestrator coordinates the compilation of plugins into the host project
type Orchestrator interface {
	// Compile merges every plugin into the project and regenerates the
	// registration file
	Compile(ctx context.Context) (*codegen.CompilationResult, error)

	// Clean removes the generated registration file and its package
	// directory once empty. Merges into the manifest and build script are
	// kept.
	Clean(ctx context.Context) error

	// ListGeneratedFiles returns the paths recorded by the last Compile
	ListGeneratedFiles() []string

	// Diff reports what Compile would change, without writing
	Diff(ctx context.Context) ([]codegen.FileDiff, error)

	// LastResult returns the result of the last Compile, or nil
	LastResult() *codegen.CompilationResult
}

// PluginSource is the plugin registry as seen by the compiler
type PluginSource interface {
	All() []*plugins.Plugin
	DetectConflicts() []plugins.Conflict
}

// Config holds orchestrator configuration
type Config struct {
	// Host project files
	ProjectRoot     string // Diff headers are relative to it; optional
	ManifestPath    string // AndroidManifest.xml, merged in place
	BuildScriptPath string // build.gradle(.kts), merged in place
	SourceRoot      string // Plugin sources and the registration file land here

	// Generated registration file
	BridgePackage string
	RegistryType  string

	// Parallel execution
	MaxWorkers   int // Concurrent source placements (default: 4)
	CacheEntries int // Namespace cache size (default: 4096)
}

// DefaultConfig returns default configuration for a standard Android project
// layout rooted at the working directory
func DefaultConfig() *Config {
	return &Config{
		ManifestPath:    "app/src/main/AndroidManifest.xml",
		BuildScriptPath: "app/build.gradle.kts",
		SourceRoot:      "app/src/main/java",
		BridgePackage:   registration.DefaultPackage,
		RegistryType:    registration.DefaultRegistryType,
		MaxWorkers:      4,
		CacheEntries:    cache.DefaultMaxEntries,
	}
}
