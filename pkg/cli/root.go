package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/Mallon94/mobile-air/pkg/codegen/orchestrator"
	"github.com/Mallon94/mobile-air/pkg/config"
	"github.com/Mallon94/mobile-air/pkg/observability"
	"github.com/Mallon94/mobile-air/pkg/plugins"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Version information, set by ldflags
var (
	Version   = "dev"
	BuildTime = "unknown"
)

// app carries what every command needs once the configuration is loaded
type app struct {
	cfg     *config.Config
	log     *logrus.Logger
	metrics *observability.Metrics
	tp      *sdktrace.TracerProvider
}

// NewRootCommand creates the root command
func NewRootCommand() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "mobile-air",
		Short: "Compile mobile-air plugins into an Android project",
		Long: `mobile-air merges the plugins found in the plugin directories into the
host Android project: manifest permissions and services, build script
dependencies, native sources, and a generated bridge registration file.

Every setting can also be given through MOBILE_AIR_* environment variables.
Flags take precedence.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.shutdown(cmd.Context())
		},
	}

	root.SetVersionTemplate(fmt.Sprintf("mobile-air %s (built %s)\n", Version, BuildTime))

	flags := root.PersistentFlags()
	flags.String("project-root", "", "Host project root (MOBILE_AIR_PROJECT_ROOT)")
	flags.StringSlice("plugin-dir", nil, "Plugin directory, repeatable (MOBILE_AIR_PLUGIN_DIRS)")
	flags.String("manifest", "", "AndroidManifest.xml path (MOBILE_AIR_MANIFEST_PATH)")
	flags.String("build-script", "", "App build script path (MOBILE_AIR_BUILD_SCRIPT_PATH)")
	flags.String("source-root", "", "Java/Kotlin source root (MOBILE_AIR_SOURCE_ROOT)")
	flags.String("bridge-package", "", "Package of the generated registration file (MOBILE_AIR_BRIDGE_PACKAGE)")
	flags.Int("max-workers", 0, "Concurrent source placements (MOBILE_AIR_MAX_WORKERS)")
	flags.String("log-level", "", "Log level (MOBILE_AIR_LOG_LEVEL)")
	flags.String("log-format", "", "Log format, text or json (MOBILE_AIR_LOG_FORMAT)")
	flags.String("metrics-file", "", "Write Prometheus metrics to this file after each run (MOBILE_AIR_METRICS_FILE)")

	root.AddCommand(
		newCompileCommand(a),
		newCleanCommand(a),
		newListCommand(a),
		newDiffCommand(a),
		newWatchCommand(a),
		newValidateCommand(a),
	)

	return root
}

// setup loads the configuration, applies flag overrides and builds the
// logger, metrics and tracer provider
func (a *app) setup(cmd *cobra.Command) error {
	cfg := &config.Config{}
	if err := config.ParseEnv(cfg); err != nil {
		return err
	}
	if err := applyFlagOverrides(cmd, cfg); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	log, err := observability.NewLogger(observability.LoggerConfig{
		Level:  cfg.Observability.LogLevel,
		Format: cfg.Observability.LogFormat,
		Output: cmd.ErrOrStderr(),
	})
	if err != nil {
		return err
	}

	tp, err := observability.InitTracing(cmd.Context(), observability.OTelConfig{
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: Version,
		Insecure:       cfg.Observability.OTelInsecure,
	}, log)
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.log = log
	a.metrics = observability.NewMetrics(nil)
	a.tp = tp
	return nil
}

func (a *app) shutdown(ctx context.Context) error {
	if err := observability.ShutdownTracing(ctx, a.tp); err != nil {
		a.log.Warnf("Error shutting down tracing: %v", err)
	}
	return nil
}

// applyFlagOverrides copies explicitly set flags over the environment config
func applyFlagOverrides(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()

	stringFlags := []struct {
		name   string
		target *string
	}{
		{"project-root", &cfg.Project.Root},
		{"manifest", &cfg.Project.ManifestPath},
		{"build-script", &cfg.Project.BuildScriptPath},
		{"source-root", &cfg.Project.SourceRoot},
		{"bridge-package", &cfg.Project.BridgePackage},
		{"log-level", &cfg.Observability.LogLevel},
		{"log-format", &cfg.Observability.LogFormat},
		{"metrics-file", &cfg.Observability.MetricsFile},
	}
	for _, f := range stringFlags {
		if !flags.Changed(f.name) {
			continue
		}
		v, err := flags.GetString(f.name)
		if err != nil {
			return err
		}
		*f.target = v
	}

	if flags.Changed("plugin-dir") {
		dirs, err := flags.GetStringSlice("plugin-dir")
		if err != nil {
			return err
		}
		cfg.Project.PluginDirs = dirs
	}
	if flags.Changed("max-workers") {
		n, err := flags.GetInt("max-workers")
		if err != nil {
			return err
		}
		cfg.Compiler.MaxWorkers = n
	}

	return nil
}

// loader returns a plugin loader over the configured plugin directories
func (a *app) loader() *plugins.Loader {
	return plugins.NewLoader(a.cfg.Project.PluginPaths(), a.log)
}

// compilerConfig maps the application config onto the orchestrator's
func (a *app) compilerConfig() *orchestrator.Config {
	p := a.cfg.Project
	return &orchestrator.Config{
		ProjectRoot:     p.Root,
		ManifestPath:    p.Resolve(p.ManifestPath),
		BuildScriptPath: p.Resolve(p.BuildScriptPath),
		SourceRoot:      p.Resolve(p.SourceRoot),
		BridgePackage:   p.BridgePackage,
		RegistryType:    p.RegistryType,
		MaxWorkers:      a.cfg.Compiler.MaxWorkers,
		CacheEntries:    a.cfg.Compiler.CacheEntries,
	}
}

// newCompiler creates a compiler over source
func (a *app) newCompiler(source orchestrator.PluginSource) (*orchestrator.Compiler, error) {
	opts := []orchestrator.Option{
		orchestrator.WithLogger(a.log),
		orchestrator.WithMetrics(a.metrics),
	}
	if a.tp != nil {
		opts = append(opts, orchestrator.WithTracerProvider(a.tp))
	}
	return orchestrator.NewCompiler(source, a.compilerConfig(), opts...)
}

// loadCompiler discovers the plugins and returns a compiler over them
func (a *app) loadCompiler(ctx context.Context) (*orchestrator.Compiler, *plugins.Registry, error) {
	registry, err := a.loader().LoadRegistry(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load plugins: %w", err)
	}

	compiler, err := a.newCompiler(registry)
	if err != nil {
		return nil, nil, err
	}
	return compiler, registry, nil
}

// writeMetrics dumps the metrics textfile when one is configured
func (a *app) writeMetrics() {
	if err := a.metrics.WriteTextfile(a.cfg.Observability.MetricsFile); err != nil {
		a.log.Warnf("Error writing metrics: %v", err)
	}
}

// relative returns path relative to the project root when it lies below it
func (a *app) relative(path string) string {
	root, err := filepath.Abs(a.cfg.Project.Root)
	if err != nil {
		return path
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	rel, err := filepath.Rel(root, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return path
	}
	return rel
}
