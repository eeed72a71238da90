package plugins

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger(buf *bytes.Buffer) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(buf)
	log.SetLevel(logrus.DebugLevel)
	return log
}

func createPluginDir(t *testing.T, root, name, manifest string) string {
	t.Helper()
	dir := filepath.Join(root, name)
	require.NoError(t, os.MkdirAll(dir, 0755))
	if manifest != "" {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "plugin.yaml"), []byte(manifest), 0644))
	}
	return dir
}

func TestNewLoader_NilLogger(t *testing.T) {
	loader := NewLoader([]string{"plugins"}, nil)
	require.NotNil(t, loader)
	assert.NotNil(t, loader.log)
}

func TestLoader_DiscoverPlugins(t *testing.T) {
	root := t.TempDir()
	createPluginDir(t, root, "zeta", "name: zeta\nversion: 1.0.0\n")
	createPluginDir(t, root, "alpha", "name: alpha\nversion: 2.0.0\n")
	createPluginDir(t, root, "broken", "name: broken\nversion: not-semver\n")
	createPluginDir(t, root, "empty", "")
	require.NoError(t, os.WriteFile(filepath.Join(root, "README.md"), []byte("ignored"), 0644))

	var logs bytes.Buffer
	loader := NewLoader([]string{root, filepath.Join(root, "missing")}, newTestLogger(&logs))

	discovered, err := loader.DiscoverPlugins(context.Background())
	require.NoError(t, err)
	require.Len(t, discovered, 2)

	// Lexical directory order
	assert.Equal(t, "alpha", discovered[0].Name)
	assert.Equal(t, "2.0.0", discovered[0].Version)
	assert.Equal(t, filepath.Join(root, "alpha"), discovered[0].Path)
	assert.Equal(t, "zeta", discovered[1].Name)

	assert.Contains(t, logs.String(), "Failed to load plugin")
	assert.Contains(t, logs.String(), "Plugin directory does not exist")
}

func TestLoader_DiscoverPlugins_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	loader := NewLoader([]string{t.TempDir()}, newTestLogger(&bytes.Buffer{}))
	_, err := loader.DiscoverPlugins(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLoader_LoadPlugin(t *testing.T) {
	root := t.TempDir()
	loader := NewLoader(nil, newTestLogger(&bytes.Buffer{}))

	t.Run("valid", func(t *testing.T) {
		dir := createPluginDir(t, root, "camera", cameraManifest)
		p, err := loader.LoadPlugin(context.Background(), dir)
		require.NoError(t, err)
		assert.Equal(t, "camera", p.Name)
		assert.Equal(t, "1.2.0", p.Version)
		assert.True(t, filepath.IsAbs(p.Path))
		assert.Len(t, p.Manifest.BridgeFunctions, 2)
	})

	t.Run("validation failure", func(t *testing.T) {
		dir := createPluginDir(t, root, "invalid", "name: invalid\nversion: 1.0.0\nbridge_functions:\n  - name: Run\n    android: Run\n")
		_, err := loader.LoadPlugin(context.Background(), dir)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "manifest validation failed")
	})

	t.Run("missing manifest", func(t *testing.T) {
		dir := createPluginDir(t, root, "nothing", "")
		_, err := loader.LoadPlugin(context.Background(), dir)
		assert.ErrorIs(t, err, ErrManifestNotFound)
	})
}

func TestLoader_LoadRegistry(t *testing.T) {
	root := t.TempDir()
	createPluginDir(t, root, "b", "name: b\nversion: 1.0.0\nbridge_functions:\n  - name: Shared.Run\n    android: com.b.Functions.Run\n")
	createPluginDir(t, root, "a", "name: a\nversion: 1.0.0\nbridge_functions:\n  - name: Shared.Run\n    android: com.a.Functions.Run\n")

	loader := NewLoader([]string{root}, newTestLogger(&bytes.Buffer{}))
	registry, err := loader.LoadRegistry(context.Background())
	require.NoError(t, err)

	all := registry.All()
	require.Len(t, all, 2)
	assert.Equal(t, "a", all[0].Name)
	assert.Equal(t, "b", all[1].Name)

	conflicts := registry.DetectConflicts()
	require.Len(t, conflicts, 1)
	assert.Equal(t, ConflictDuplicateFunction, conflicts[0].Kind)
	assert.Equal(t, []string{"a", "b"}, conflicts[0].Plugins)
}

func TestLoader_PluginDirs(t *testing.T) {
	root := t.TempDir()
	createPluginDir(t, root, "zeta", "")
	createPluginDir(t, root, "alpha", "")
	require.NoError(t, os.WriteFile(filepath.Join(root, "plugin.yaml"), []byte("name: stray\n"), 0644))

	loader := NewLoader([]string{root, filepath.Join(root, "missing")}, newTestLogger(&bytes.Buffer{}))
	dirs, err := loader.PluginDirs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(root, "alpha"), filepath.Join(root, "zeta")}, dirs)
}

func TestLoader_Reload(t *testing.T) {
	root := t.TempDir()
	createPluginDir(t, root, "alpha", "name: alpha\nversion: 1.0.0\n")

	loader := NewLoader([]string{root}, newTestLogger(&bytes.Buffer{}))
	registry, err := loader.LoadRegistry(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, registry.Count())

	createPluginDir(t, root, "beta", "name: beta\nversion: 1.0.0\n")
	require.NoError(t, os.RemoveAll(filepath.Join(root, "alpha")))

	require.NoError(t, loader.Reload(context.Background(), registry))
	assert.False(t, registry.Has("alpha"))
	assert.True(t, registry.Has("beta"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, loader.Reload(ctx, registry), context.Canceled)
	assert.Equal(t, 1, registry.Count(), "failed reload keeps the previous contents")
}
