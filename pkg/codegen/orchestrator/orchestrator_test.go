package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Mallon94/mobile-air/pkg/codegen"
	"github.com/Mallon94/mobile-air/pkg/codegen/registration"
	"github.com/Mallon94/mobile-air/pkg/observability"
	"github.com/Mallon94/mobile-air/pkg/plugins"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

const hostManifest = `<?xml version="1.0" encoding="utf-8"?>
<manifest xmlns:android="http://schemas.android.com/apk/res/android">
    <application android:label="Host">
        <activity android:name=".MainActivity"/>
    </application>
</manifest>
`

const hostScript = `plugins {
    id("com.android.application")
}

dependencies {
    implementation("androidx.core:core-ktx:1.12.0")
}
`

type fixture struct {
	root     string
	config   *Config
	registry *plugins.Registry
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()

	f := &fixture{
		root: root,
		config: &Config{
			ProjectRoot:     root,
			ManifestPath:    filepath.Join(root, "app", "src", "main", "AndroidManifest.xml"),
			BuildScriptPath: filepath.Join(root, "app", "build.gradle.kts"),
			SourceRoot:      filepath.Join(root, "app", "src", "main", "java"),
			MaxWorkers:      2,
		},
		registry: plugins.NewRegistry(),
	}
	f.write(t, f.config.ManifestPath, hostManifest)
	f.write(t, f.config.BuildScriptPath, hostScript)
	return f
}

func (f *fixture) write(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func (f *fixture) read(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

// addPlugin registers a plugin whose android sources are given relative to
// its android/src directory
func (f *fixture) addPlugin(t *testing.T, m *plugins.Manifest, srcs map[string]string) *plugins.Plugin {
	t.Helper()
	dir := filepath.Join(f.root, "plugins", m.Name)
	require.NoError(t, os.MkdirAll(dir, 0755))
	for rel, content := range srcs {
		f.write(t, filepath.Join(dir, "android", "src", rel), content)
	}

	p := &plugins.Plugin{Name: m.Name, Version: m.Version, Path: dir, Manifest: m}
	require.NoError(t, f.registry.Register(p))
	return p
}

func (f *fixture) addDefaultPlugins(t *testing.T) {
	t.Helper()
	f.addPlugin(t, &plugins.Manifest{
		Name:    "test",
		Version: "1.0.0",
		BridgeFunctions: []plugins.BridgeFunction{
			{Name: "Test.Execute", Android: "com.test.plugin.TestFunctions.Execute"},
		},
	}, map[string]string{
		"misplaced/TestFunctions.kt": "package com.test.plugin.subfolder\n\nobject TestFunctions\n",
	})

	f.addPlugin(t, &plugins.Manifest{
		Name:    "camera",
		Version: "1.2.0",
		BridgeFunctions: []plugins.BridgeFunction{
			{Name: "Camera.Open", Android: "com.example.camera.CameraFunctions.Open", AndroidParams: []plugins.Param{plugins.ParamActivity}},
			{Name: "Camera.Status", Android: "com.example.camera.CameraFunctions.Status"},
		},
		Android: plugins.AndroidConfig{
			Permissions: []string{"android.permission.CAMERA"},
			Dependencies: plugins.DependencyScopes{
				{Scope: "implementation", Coordinates: []string{"androidx.camera:camera-core:1.3.0", "androidx.core:core-ktx:1.12.0"}},
			},
			Services: []plugins.Service{{
				Name:     "com.example.camera.CaptureService",
				MetaData: []plugins.MetaData{{Name: "com.example.camera.AUTO_START", Value: true}},
			}},
		},
	}, map[string]string{
		"CameraFunctions.kt": "package com.example.camera\n\nclass CameraFunctions\n",
	})
}

func (f *fixture) compiler(t *testing.T, opts ...Option) *Compiler {
	t.Helper()
	log, _ := test.NewNullLogger()
	c, err := NewCompiler(f.registry, f.config, append([]Option{WithLogger(log)}, opts...)...)
	require.NoError(t, err)
	return c
}

func TestNewCompiler(t *testing.T) {
	_, err := NewCompiler(nil, DefaultConfig())
	assert.ErrorIs(t, err, ErrNoPluginSource)

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "missing manifest path", mutate: func(c *Config) { c.ManifestPath = "" }},
		{name: "missing build script path", mutate: func(c *Config) { c.BuildScriptPath = "" }},
		{name: "missing source root", mutate: func(c *Config) { c.SourceRoot = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			_, err := NewCompiler(plugins.NewRegistry(), cfg)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestNewCompiler_DefaultsAndAbsolutePaths(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxWorkers = 0

	c, err := NewCompiler(plugins.NewRegistry(), cfg)
	require.NoError(t, err)

	assert.True(t, filepath.IsAbs(c.config.ManifestPath))
	assert.True(t, filepath.IsAbs(c.config.SourceRoot))
	assert.Equal(t, DefaultConfig().MaxWorkers, c.config.MaxWorkers)
	assert.Equal(t, "app/src/main/java", cfg.SourceRoot, "caller's config is not modified")
	assert.True(t, strings.HasSuffix(c.RegistrationPath(),
		filepath.Join("com", "mobileair", "bridge", "plugins", registration.FileName)))
}

func TestCompile_EndToEnd(t *testing.T) {
	f := newFixture(t)
	f.addDefaultPlugins(t)
	c := f.compiler(t)

	result, err := c.Compile(context.Background())
	require.NoError(t, err)
	require.True(t, result.Success())

	assert.NotEmpty(t, result.RunID)
	assert.Equal(t, []string{"test", "camera"}, result.Plugins)
	assert.Equal(t, codegen.Stats{
		PermissionsAdded:    1,
		ServicesAdded:       1,
		DependenciesAdded:   1,
		SourcesPlaced:       2,
		FunctionsRegistered: 3,
		FilesChanged:        5,
	}, result.Stats)
	assert.Empty(t, result.Warnings)

	manifestXML := f.read(t, f.config.ManifestPath)
	assert.Equal(t, 1, strings.Count(manifestXML, `<uses-permission android:name="android.permission.CAMERA"/>`))
	assert.Contains(t, manifestXML, `<service android:name="com.example.camera.CaptureService" android:exported="false">`)
	assert.Contains(t, manifestXML, `<meta-data android:name="com.example.camera.AUTO_START" android:value="true"/>`)

	script := f.read(t, f.config.BuildScriptPath)
	assert.Contains(t, script, "    implementation(\"androidx.camera:camera-core:1.3.0\")\n}\n")
	assert.Equal(t, 1, strings.Count(script, "androidx.core:core-ktx:1.12.0"))

	reg := f.read(t, c.RegistrationPath())
	assert.Contains(t, reg, "AUTO-GENERATED")
	assert.Contains(t, reg, "DO NOT EDIT")
	assert.Contains(t, reg, `registry.register("Test.Execute", TestFunctions.Execute())`)
	assert.Contains(t, reg, `registry.register("Camera.Open", CameraFunctions.Open(activity))`)
	assert.Contains(t, reg, `registry.register("Camera.Status", CameraFunctions.Status())`)
	assert.LessOrEqual(t, strings.Count(reg, "\nimport "), 3)

	// Placement follows the declared package, not the plugin's folder layout
	placed := filepath.Join(f.config.SourceRoot, "com", "test", "plugin", "subfolder", "TestFunctions.kt")
	assert.FileExists(t, placed)
	assert.NoFileExists(t, filepath.Join(f.config.SourceRoot, "misplaced", "TestFunctions.kt"))

	files := c.ListGeneratedFiles()
	assert.Contains(t, files, c.RegistrationPath())
	assert.Contains(t, files, placed)
	assert.Contains(t, files, f.config.ManifestPath)
	assert.Equal(t, files, result.GeneratedFiles)
	for _, path := range files {
		assert.True(t, filepath.IsAbs(path), path)
	}
	assert.Same(t, result, c.LastResult())
}

func TestCompile_Idempotent(t *testing.T) {
	f := newFixture(t)
	f.addDefaultPlugins(t)
	c := f.compiler(t)

	_, err := c.Compile(context.Background())
	require.NoError(t, err)

	snapshot := func() []string {
		return []string{
			f.read(t, f.config.ManifestPath),
			f.read(t, f.config.BuildScriptPath),
			f.read(t, c.RegistrationPath()),
		}
	}
	first := snapshot()

	for i := 0; i < 2; i++ {
		result, err := c.Compile(context.Background())
		require.NoError(t, err)
		assert.Equal(t, first, snapshot())
		assert.Zero(t, result.Stats.PermissionsAdded)
		assert.Zero(t, result.Stats.ServicesAdded)
		assert.Zero(t, result.Stats.DependenciesAdded)
		assert.Zero(t, result.Stats.FilesChanged)
		assert.Equal(t, 1, result.Stats.ServicesUpdated)
	}

	assert.Equal(t, 1, strings.Count(first[0], "android.permission.CAMERA"))
	assert.Equal(t, 1, strings.Count(first[0], "<service "))
}

func TestCompile_ServiceGainsChildren(t *testing.T) {
	f := newFixture(t)
	svc := &plugins.Manifest{
		Name:    "idle",
		Version: "1.0.0",
		Android: plugins.AndroidConfig{Services: []plugins.Service{{Name: "com.example.Idle"}}},
	}
	f.addPlugin(t, svc, nil)
	c := f.compiler(t)

	_, err := c.Compile(context.Background())
	require.NoError(t, err)
	assert.Contains(t, f.read(t, f.config.ManifestPath), `<service android:name="com.example.Idle" android:exported="false"/>`)

	svc.Android.Services[0].MetaData = []plugins.MetaData{{Name: "k", Value: "v"}}
	_, err = c.Compile(context.Background())
	require.NoError(t, err)

	out := f.read(t, f.config.ManifestPath)
	assert.Contains(t, out, `<service android:name="com.example.Idle" android:exported="false">`)
	assert.Contains(t, out, "</service>")
	assert.Equal(t, 1, strings.Count(out, "<service "))
}

func TestCompile_ConflictWritesNothing(t *testing.T) {
	f := newFixture(t)
	for _, name := range []string{"one", "two"} {
		f.addPlugin(t, &plugins.Manifest{
			Name:            name,
			Version:         "1.0.0",
			BridgeFunctions: []plugins.BridgeFunction{{Name: "Shared.Run", Android: "com." + name + ".Functions.Run"}},
			Android:         plugins.AndroidConfig{Permissions: []string{"android.permission.CAMERA"}},
		}, map[string]string{"Functions.kt": "package com." + name + "\n"})
	}
	c := f.compiler(t)

	result, err := c.Compile(context.Background())
	require.Error(t, err)
	assert.True(t, codegen.IsConflictError(err))

	var conflictErr *codegen.ConflictError
	require.ErrorAs(t, err, &conflictErr)
	assert.Len(t, conflictErr.Conflicts, 1)
	assert.Contains(t, conflictErr.Conflicts[0], "Shared.Run")

	assert.False(t, result.Success())
	assert.Equal(t, codegen.StatusFailed, result.Status)
	assert.NotEmpty(t, result.Error)
	assert.Empty(t, c.ListGeneratedFiles())

	assert.Equal(t, hostManifest, f.read(t, f.config.ManifestPath))
	assert.Equal(t, hostScript, f.read(t, f.config.BuildScriptPath))
	assert.NoFileExists(t, c.RegistrationPath())
	assert.NoDirExists(t, filepath.Join(f.config.SourceRoot, "com"))
}

func TestCompile_SetupError(t *testing.T) {
	tests := []struct {
		name   string
		remove func(*Config) string
	}{
		{name: "missing manifest", remove: func(c *Config) string { return c.ManifestPath }},
		{name: "missing build script", remove: func(c *Config) string { return c.BuildScriptPath }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.addDefaultPlugins(t)
			missing := tt.remove(f.config)
			require.NoError(t, os.Remove(missing))

			c := f.compiler(t)
			_, err := c.Compile(context.Background())
			require.Error(t, err)
			assert.True(t, codegen.IsSetupError(err))
			assert.Contains(t, err.Error(), missing)
			assert.NoFileExists(t, c.RegistrationPath())
		})
	}
}

func TestCompile_ParseErrorsAbortBeforeWriting(t *testing.T) {
	tests := []struct {
		name     string
		manifest string
		script   string
		check    func(error) bool
	}{
		{
			name:     "malformed manifest",
			manifest: `<manifest><application android:label=Host></manifest>`,
			script:   hostScript,
			check:    codegen.IsManifestParseError,
		},
		{
			name:     "malformed build script",
			manifest: hostManifest,
			script:   "dependencies {\n    implementation(\"a:b:1\")\n",
			check:    codegen.IsBuildScriptParseError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.addDefaultPlugins(t)
			f.write(t, f.config.ManifestPath, tt.manifest)
			f.write(t, f.config.BuildScriptPath, tt.script)

			c := f.compiler(t)
			_, err := c.Compile(context.Background())
			require.Error(t, err)
			assert.True(t, tt.check(err), err.Error())

			assert.Equal(t, tt.manifest, f.read(t, f.config.ManifestPath))
			assert.Equal(t, tt.script, f.read(t, f.config.BuildScriptPath))
			assert.NoFileExists(t, c.RegistrationPath())
			assert.NoDirExists(t, filepath.Join(f.config.SourceRoot, "com", "test"))
		})
	}
}

func TestCompile_NoPlugins(t *testing.T) {
	f := newFixture(t)
	c := f.compiler(t)

	result, err := c.Compile(context.Background())
	require.NoError(t, err)

	reg := f.read(t, c.RegistrationPath())
	assert.Contains(t, reg, "// No plugins to register")
	assert.NotContains(t, reg, "registry.register(")
	assert.Contains(t, c.ListGeneratedFiles(), c.RegistrationPath())
	assert.Zero(t, result.Stats.FunctionsRegistered)

	// An untouched manifest keeps its formatting
	assert.Equal(t, hostManifest, f.read(t, f.config.ManifestPath))
	assert.Equal(t, hostScript, f.read(t, f.config.BuildScriptPath))
}

func TestCompile_SourceWithoutNamespace(t *testing.T) {
	f := newFixture(t)
	f.addPlugin(t, &plugins.Manifest{Name: "loose", Version: "1.0.0"}, map[string]string{
		"Loose.kt":  "fun helper() = 1\n",
		"Placed.kt": "package com.loose\n",
	})
	c := f.compiler(t)

	result, err := c.Compile(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Success())
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "Loose.kt")
	assert.Equal(t, 1, result.Stats.SourcesPlaced)
	assert.FileExists(t, filepath.Join(f.config.SourceRoot, "com", "loose", "Placed.kt"))
}

func TestCompile_SourceOverwritten(t *testing.T) {
	f := newFixture(t)
	f.addPlugin(t, &plugins.Manifest{Name: "p", Version: "1.0.0"}, map[string]string{
		"F.kt": "package com.p\n// v2\n",
	})
	dest := filepath.Join(f.config.SourceRoot, "com", "p", "F.kt")
	f.write(t, dest, "package com.p\n// hand edited\n")

	_, err := f.compiler(t).Compile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "package com.p\n// v2\n", f.read(t, dest))
}

func TestCompile_Cancelled(t *testing.T) {
	f := newFixture(t)
	f.addDefaultPlugins(t)
	c := f.compiler(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Compile(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, hostManifest, f.read(t, f.config.ManifestPath))
}

func TestClean(t *testing.T) {
	f := newFixture(t)
	f.addDefaultPlugins(t)
	c := f.compiler(t)

	_, err := c.Compile(context.Background())
	require.NoError(t, err)
	require.FileExists(t, c.RegistrationPath())
	merged := f.read(t, f.config.ManifestPath)

	require.NoError(t, c.Clean(context.Background()))

	assert.NoFileExists(t, c.RegistrationPath())
	assert.NoDirExists(t, filepath.Dir(c.RegistrationPath()))
	// Merges into hand-authored documents are permanent
	assert.Equal(t, merged, f.read(t, f.config.ManifestPath))
	assert.Contains(t, f.read(t, f.config.BuildScriptPath), "camera-core")
	assert.FileExists(t, filepath.Join(f.config.SourceRoot, "com", "example", "camera", "CameraFunctions.kt"))

	// Cleaning twice is fine
	require.NoError(t, c.Clean(context.Background()))
}

func TestClean_KeepsForeignFiles(t *testing.T) {
	f := newFixture(t)
	f.addDefaultPlugins(t)
	c := f.compiler(t)

	_, err := c.Compile(context.Background())
	require.NoError(t, err)

	// the bridge package is shared with hand-written code
	own := filepath.Join(filepath.Dir(c.RegistrationPath()), "AppBridge.kt")
	f.write(t, own, "package com.mobileair.bridge.plugins\n")

	require.NoError(t, c.Clean(context.Background()))
	assert.NoFileExists(t, c.RegistrationPath())
	assert.Equal(t, "package com.mobileair.bridge.plugins\n", f.read(t, own))
}

func TestListGeneratedFiles_ReturnsCopy(t *testing.T) {
	f := newFixture(t)
	f.addDefaultPlugins(t)
	c := f.compiler(t)

	assert.Empty(t, c.ListGeneratedFiles())
	assert.Nil(t, c.LastResult())

	_, err := c.Compile(context.Background())
	require.NoError(t, err)

	files := c.ListGeneratedFiles()
	require.NotEmpty(t, files)
	files[0] = "mutated"
	assert.NotEqual(t, "mutated", c.ListGeneratedFiles()[0])
}

func TestDiff(t *testing.T) {
	f := newFixture(t)
	f.addDefaultPlugins(t)
	c := f.compiler(t)

	diffs, err := c.Diff(context.Background())
	require.NoError(t, err)

	byPath := make(map[string]string)
	for _, d := range diffs {
		byPath[d.Path] = d.Patch
	}
	require.Contains(t, byPath, f.config.ManifestPath)
	require.Contains(t, byPath, f.config.BuildScriptPath)
	require.Contains(t, byPath, c.RegistrationPath())
	assert.Len(t, diffs, 5)

	assert.Contains(t, byPath[f.config.ManifestPath], "--- a/app/src/main/AndroidManifest.xml")
	assert.Contains(t, byPath[f.config.ManifestPath], `+    <uses-permission android:name="android.permission.CAMERA"/>`)
	assert.Contains(t, byPath[f.config.BuildScriptPath], `+    implementation("androidx.camera:camera-core:1.3.0")`)
	assert.Contains(t, byPath[c.RegistrationPath()], "--- /dev/null")

	// Nothing was written
	assert.Equal(t, hostManifest, f.read(t, f.config.ManifestPath))
	assert.Equal(t, hostScript, f.read(t, f.config.BuildScriptPath))
	assert.NoFileExists(t, c.RegistrationPath())

	_, err = c.Compile(context.Background())
	require.NoError(t, err)

	diffs, err = c.Diff(context.Background())
	require.NoError(t, err)
	assert.Empty(t, diffs)
}

func TestDiff_Conflict(t *testing.T) {
	f := newFixture(t)
	f.addDefaultPlugins(t)
	f.addPlugin(t, &plugins.Manifest{Name: "test", Version: "2.0.0"}, nil)

	_, err := f.compiler(t).Diff(context.Background())
	assert.True(t, codegen.IsConflictError(err))
}

func TestCompile_Metrics(t *testing.T) {
	f := newFixture(t)
	f.addDefaultPlugins(t)
	metrics := observability.NewMetrics(nil)
	c := f.compiler(t, WithMetrics(metrics))

	_, err := c.Compile(context.Background())
	require.NoError(t, err)
	_, err = c.Compile(context.Background())
	require.NoError(t, err)

	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.CompilationsTotal.WithLabelValues("succeeded")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.PermissionsAddedTotal))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.DependenciesAddedTotal))
	assert.Equal(t, float64(3), testutil.ToFloat64(metrics.FunctionsRegistered))
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.PluginsCompiled))

	require.NoError(t, os.Remove(f.config.ManifestPath))
	_, err = c.Compile(context.Background())
	require.Error(t, err)
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.CompilationsTotal.WithLabelValues("failed")))
}

func TestCompile_Spans(t *testing.T) {
	f := newFixture(t)
	f.addDefaultPlugins(t)

	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	c := f.compiler(t, WithTracerProvider(tp))

	result, err := c.Compile(context.Background())
	require.NoError(t, err)

	names := make(map[string]int)
	var root sdktrace.ReadOnlySpan
	for _, span := range recorder.Ended() {
		names[span.Name()]++
		if span.Name() == "compile" {
			root = span
		}
	}
	assert.Equal(t, 1, names["load_documents"])
	assert.Equal(t, 2, names["merge_plugin"])
	assert.Equal(t, 1, names["generate_registration"])

	require.NotNil(t, root)
	var runID string
	for _, attr := range root.Attributes() {
		if attr.Key == "run_id" {
			runID = attr.Value.AsString()
		}
	}
	assert.Equal(t, result.RunID, runID)
}

func TestCompile_SpanStatusOnError(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.Remove(f.config.BuildScriptPath))

	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	_, err := f.compiler(t, WithTracerProvider(tp)).Compile(context.Background())
	require.Error(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "compile", spans[0].Name())
	assert.Equal(t, "Error", spans[0].Status().Code.String())
}
