package plugins

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

// Loader discovers plugins in filesystem directories. Each immediate
// subdirectory holding a manifest file is one plugin.
type Loader struct {
	pluginDirs []string
	log        *logrus.Logger
}

// NewLoader creates a new plugin loader
func NewLoader(dirs []string, log *logrus.Logger) *Loader {
	if log == nil {
		log = logrus.New()
	}

	return &Loader{
		pluginDirs: dirs,
		log:        log,
	}
}

// PluginDirs lists the candidate plugin directories: every immediate
// subdirectory of the configured directories, in configured order and then
// lexical order. Missing directories are skipped.
func (l *Loader) PluginDirs(ctx context.Context) ([]string, error) {
	var dirs []string

	for _, dir := range l.pluginDirs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if _, err := os.Stat(dir); os.IsNotExist(err) {
			l.log.Debugf("Plugin directory does not exist: %s", dir)
			continue
		}

		entries, err := os.ReadDir(dir)
		if err != nil {
			l.log.Warnf("Failed to read plugin directory %s: %v", dir, err)
			continue
		}

		for _, entry := range entries {
			if entry.IsDir() {
				dirs = append(dirs, filepath.Join(dir, entry.Name()))
			}
		}
	}

	return dirs, nil
}

// DiscoverPlugins scans plugin directories and returns discovered plugins in
// PluginDirs order, so the result is stable across runs. Plugins that fail
// to load are logged and skipped.
func (l *Loader) DiscoverPlugins(ctx context.Context) ([]*Plugin, error) {
	dirs, err := l.PluginDirs(ctx)
	if err != nil {
		return nil, err
	}

	var plugins []*Plugin
	for _, pluginDir := range dirs {
		plugin, err := l.LoadPlugin(ctx, pluginDir)
		if err != nil {
			l.log.WithField("dir", pluginDir).Warnf("Failed to load plugin: %v", err)
			continue
		}
		plugins = append(plugins, plugin)
	}

	return plugins, nil
}

// LoadPlugin loads and validates a single plugin directory
func (l *Loader) LoadPlugin(ctx context.Context, path string) (*Plugin, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve plugin path: %w", err)
	}

	manifest, err := LoadManifestFromDir(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load manifest: %w", err)
	}

	if validationErrors := ValidateManifest(manifest); len(validationErrors) > 0 {
		return nil, fmt.Errorf("manifest validation failed: %v", validationErrors)
	}

	l.log.WithFields(logrus.Fields{
		"plugin":    manifest.Name,
		"version":   manifest.Version,
		"functions": len(manifest.BridgeFunctions),
	}).Debug("Loaded plugin")

	return &Plugin{
		Name:     manifest.Name,
		Version:  manifest.Version,
		Path:     absPath,
		Manifest: manifest,
	}, nil
}

// LoadRegistry discovers plugins and registers them in discovery order
func (l *Loader) LoadRegistry(ctx context.Context) (*Registry, error) {
	registry := NewRegistry()
	if err := l.Reload(ctx, registry); err != nil {
		return nil, err
	}
	return registry, nil
}

// Reload rediscovers plugins and replaces the contents of registry. The
// registry is left untouched when discovery fails.
func (l *Loader) Reload(ctx context.Context, registry *Registry) error {
	discovered, err := l.DiscoverPlugins(ctx)
	if err != nil {
		return err
	}

	if err := registry.Replace(discovered); err != nil {
		return err
	}

	l.log.Infof("Discovered %d plugins", registry.Count())
	return nil
}
