package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/Mallon94/mobile-air/pkg/codegen"
	"github.com/Mallon94/mobile-air/pkg/codegen/artifacts"
	"github.com/Mallon94/mobile-air/pkg/codegen/cache"
	"github.com/Mallon94/mobile-air/pkg/codegen/gradle"
	"github.com/Mallon94/mobile-air/pkg/codegen/manifest"
	"github.com/Mallon94/mobile-air/pkg/codegen/registration"
	"github.com/Mallon94/mobile-air/pkg/codegen/sources"
	"github.com/Mallon94/mobile-air/pkg/observability"
	"github.com/Mallon94/mobile-air/pkg/plugins"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Option customizes a Compiler
type Option func(*Compiler)

// WithLogger sets the logger
func WithLogger(log *logrus.Logger) Option {
	return func(c *Compiler) {
		if log != nil {
			c.log = log
		}
	}
}

// WithMetrics records every compile on m
func WithMetrics(m *observability.Metrics) Option {
	return func(c *Compiler) {
		c.metrics = m
	}
}

// WithTracerProvider sets the provider compile spans are started from
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Compiler) {
		c.tracer = observability.Tracer(tp)
	}
}

// WithArtifactManager replaces the filesystem artifact manager
func WithArtifactManager(mgr artifacts.Manager) Option {
	return func(c *Compiler) {
		if mgr != nil {
			c.artifacts = mgr
		}
	}
}

// Compiler implements Orchestrator for an Android host project. Runs are
// serialized: the manifest and build script are shared by every plugin.
type Compiler struct {
	config    *Config
	source    PluginSource
	log       *logrus.Logger
	metrics   *observability.Metrics
	tracer    trace.Tracer
	artifacts artifacts.Manager

	manifests  *manifest.Merger
	scripts    *gradle.Merger
	projector  *sources.Projector
	generator  *registration.Generator
	namespaces *cache.NamespaceCache

	mu    sync.Mutex
	files *artifacts.FileSet
	last  *codegen.CompilationResult
}

// NewCompiler creates a compiler for the plugins in source. Configured paths
// are made absolute.
func NewCompiler(source PluginSource, config *Config, opts ...Option) (*Compiler, error) {
	if source == nil {
		return nil, ErrNoPluginSource
	}
	if config == nil {
		config = DefaultConfig()
	}

	cfg := *config
	for _, p := range []struct {
		name string
		path *string
	}{
		{name: "manifest path", path: &cfg.ManifestPath},
		{name: "build script path", path: &cfg.BuildScriptPath},
		{name: "source root", path: &cfg.SourceRoot},
	} {
		if *p.path == "" {
			return nil, fmt.Errorf("%w: %s is required", ErrInvalidConfig, p.name)
		}
		abs, err := filepath.Abs(*p.path)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %s: %w", p.name, err)
		}
		*p.path = abs
	}
	if cfg.ProjectRoot != "" {
		abs, err := filepath.Abs(cfg.ProjectRoot)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve project root: %w", err)
		}
		cfg.ProjectRoot = abs
	}
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = DefaultConfig().MaxWorkers
	}

	c := &Compiler{
		config:    &cfg,
		source:    source,
		log:       logrus.New(),
		tracer:    observability.Tracer(nil),
		artifacts: artifacts.NewFSManager(nil),
		files:     artifacts.NewFileSet(),
	}
	for _, opt := range opts {
		opt(c)
	}

	generator, err := registration.NewGenerator(registration.Config{
		Package:      cfg.BridgePackage,
		RegistryType: cfg.RegistryType,
	})
	if err != nil {
		return nil, err
	}

	c.generator = generator
	c.manifests = manifest.NewMerger(c.log)
	c.scripts = gradle.NewMerger(c.log)
	c.namespaces = cache.NewNamespaceCache(&cache.Config{MaxEntries: cfg.CacheEntries})
	c.projector = sources.NewProjector(
		sources.Config{SourceRoot: cfg.SourceRoot, MaxWorkers: cfg.MaxWorkers},
		c.artifacts,
		c.namespaces,
		c.log,
	)

	return c, nil
}

// RegistrationPath returns where the registration file is generated
func (c *Compiler) RegistrationPath() string {
	return c.generator.Path(c.config.SourceRoot)
}

// documents holds the two hand-authored project files while plugins are
// merged into them. Nothing is written until every plugin has been merged.
type documents struct {
	manifest         *manifest.Document
	manifestOriginal []byte
	manifestTouched  bool

	script         *gradle.Script
	scriptOriginal []byte

	stats codegen.Stats
}

// Compile runs one compilation. Conflicts, missing project files and
// unparseable documents abort the run before anything is written. Source
// files that cannot be written are collected and returned joined once the
// rest of the run has completed.
func (c *Compiler) Compile(ctx context.Context) (result *codegen.CompilationResult, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	start := time.Now()
	runID := uuid.New().String()

	ctx = observability.WithRunID(ctx, runID)
	ctx = observability.WithLogger(ctx, c.log)
	ctx, span := c.tracer.Start(ctx, "compile", trace.WithAttributes(attribute.String("run_id", runID)))
	defer span.End()

	log := observability.FromContext(ctx)
	c.files.Reset()
	result = &codegen.CompilationResult{RunID: runID, Status: codegen.StatusFailed}

	defer func() {
		result.Duration = time.Since(start)
		result.GeneratedFiles = c.files.Paths()
		if err != nil {
			result.Error = err.Error()
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			log.WithError(err).Error("Compilation failed")
		} else {
			result.Status = codegen.StatusSucceeded
			log.WithFields(logrus.Fields{
				"plugins":  len(result.Plugins),
				"files":    len(result.GeneratedFiles),
				"changed":  result.Stats.FilesChanged,
				"warnings": len(result.Warnings),
				"duration": result.Duration,
			}).Info("Compilation complete")

			cs := c.namespaces.Stats()
			log.WithFields(logrus.Fields{
				"hits":     cs.Hits,
				"misses":   cs.Misses,
				"hit_rate": cs.HitRate(),
			}).Debug("Namespace cache")
		}
		c.last = result
		c.metrics.RecordCompilation(observability.RunMetrics{
			Status:              string(result.Status),
			Duration:            result.Duration,
			PermissionsAdded:    result.Stats.PermissionsAdded,
			ServicesAdded:       result.Stats.ServicesAdded,
			ServicesUpdated:     result.Stats.ServicesUpdated,
			DependenciesAdded:   result.Stats.DependenciesAdded,
			SourcesPlaced:       result.Stats.SourcesPlaced,
			Warnings:            len(result.Warnings),
			FilesChanged:        result.Stats.FilesChanged,
			FunctionsRegistered: result.Stats.FunctionsRegistered,
			Plugins:             len(result.Plugins),
		})
	}()
	defer observability.RecoverPanicAsError(log, "compile", &err)

	list, err := c.prepare(ctx)
	if err != nil {
		return result, err
	}
	for _, p := range list {
		result.Plugins = append(result.Plugins, p.Name)
	}
	span.SetAttributes(attribute.Int("plugins", len(list)))

	docs, err := c.loadDocuments(ctx)
	if err != nil {
		return result, err
	}

	var placementErrs []error
	for _, p := range list {
		if err := c.mergePlugin(ctx, docs, p); err != nil {
			return result, err
		}

		projected, err := c.projector.Project(ctx, p)
		if err != nil {
			return result, fmt.Errorf("failed to project sources of %s: %w", p.Name, err)
		}
		for _, placement := range projected.Placements {
			c.files.Add(placement.Destination)
			docs.stats.SourcesPlaced++
			if placement.Changed {
				docs.stats.FilesChanged++
			}
		}
		result.Warnings = append(result.Warnings, projected.Warnings...)
		placementErrs = append(placementErrs, projected.Errors...)
	}

	if err := c.writeDocuments(ctx, docs); err != nil {
		result.Stats = docs.stats
		return result, err
	}

	if err := c.writeRegistration(ctx, docs, list); err != nil {
		result.Stats = docs.stats
		return result, err
	}

	result.Stats = docs.stats
	return result, errors.Join(placementErrs...)
}

// prepare checks the project skeleton and the registry. It writes nothing.
func (c *Compiler) prepare(ctx context.Context) ([]*plugins.Plugin, error) {
	for _, path := range []string{c.config.ManifestPath, c.config.BuildScriptPath} {
		exists, err := c.artifacts.Exists(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("failed to check %s: %w", path, err)
		}
		if !exists {
			return nil, codegen.NewSetupError(path)
		}
	}

	list := c.source.All()
	if conflicts := c.source.DetectConflicts(); len(conflicts) > 0 {
		descriptions := make([]string, len(conflicts))
		for i, conflict := range conflicts {
			descriptions[i] = conflict.String()
		}
		return nil, &codegen.ConflictError{Conflicts: descriptions}
	}

	return list, nil
}

// loadDocuments parses the manifest and the build script. Both are parsed
// before either is merged, so a parse error leaves both files untouched.
func (c *Compiler) loadDocuments(ctx context.Context) (*documents, error) {
	_, span := c.tracer.Start(ctx, "load_documents")
	defer span.End()

	doc, manifestOriginal, err := manifest.ParseFile(c.config.ManifestPath)
	if err != nil {
		return nil, err
	}

	script, scriptOriginal, err := gradle.ParseFile(c.config.BuildScriptPath)
	if err != nil {
		return nil, err
	}

	return &documents{
		manifest:         doc,
		manifestOriginal: manifestOriginal,
		script:           script,
		scriptOriginal:   scriptOriginal,
	}, nil
}

func (c *Compiler) mergePlugin(ctx context.Context, docs *documents, p *plugins.Plugin) error {
	_, span := c.tracer.Start(ctx, "merge_plugin", trace.WithAttributes(attribute.String("plugin", p.Name)))
	defer span.End()

	android := p.Manifest.Android

	merged := c.manifests.Merge(docs.manifest, android)
	if merged.PermissionsAdded+merged.ServicesAdded+merged.ServicesUpdated > 0 {
		docs.manifestTouched = true
	}

	added, err := c.scripts.Merge(docs.script, android.Dependencies)
	if err != nil {
		return fmt.Errorf("%s: %w", c.config.BuildScriptPath, err)
	}

	docs.stats.Add(codegen.Stats{
		PermissionsAdded:  merged.PermissionsAdded,
		ServicesAdded:     merged.ServicesAdded,
		ServicesUpdated:   merged.ServicesUpdated,
		DependenciesAdded: added,
	})

	observability.FromContext(ctx).WithFields(logrus.Fields{
		"plugin":       p.Name,
		"permissions":  merged.PermissionsAdded,
		"services":     merged.ServicesAdded + merged.ServicesUpdated,
		"dependencies": added,
	}).Debug("Merged plugin")

	return nil
}

// renderManifest returns the bytes the manifest should hold. A manifest no
// plugin touched keeps its original formatting.
func (d *documents) renderManifest() ([]byte, error) {
	if !d.manifestTouched {
		return d.manifestOriginal, nil
	}
	out, err := d.manifest.Bytes()
	if err != nil {
		return nil, fmt.Errorf("failed to render manifest: %w", err)
	}
	return out, nil
}

func (c *Compiler) writeDocuments(ctx context.Context, docs *documents) error {
	manifestData, err := docs.renderManifest()
	if err != nil {
		return err
	}

	for _, file := range []struct {
		path string
		data []byte
	}{
		{path: c.config.ManifestPath, data: manifestData},
		{path: c.config.BuildScriptPath, data: docs.script.Bytes()},
	} {
		written, err := c.artifacts.Write(ctx, file.path, file.data)
		if err != nil {
			return err
		}
		c.files.Add(file.path)
		if written.Changed {
			docs.stats.FilesChanged++
		}
	}

	return nil
}

func (c *Compiler) writeRegistration(ctx context.Context, docs *documents, list []*plugins.Plugin) error {
	_, span := c.tracer.Start(ctx, "generate_registration")
	defer span.End()

	data, err := c.generator.Generate(list)
	if err != nil {
		return err
	}

	path := c.RegistrationPath()
	written, err := c.artifacts.Write(ctx, path, data)
	if err != nil {
		return err
	}
	c.files.Add(path)

	for _, p := range list {
		docs.stats.FunctionsRegistered += len(p.Manifest.BridgeFunctions)
	}
	if written.Changed {
		docs.stats.FilesChanged++
	}
	span.SetAttributes(attribute.Int("functions", docs.stats.FunctionsRegistered))

	return nil
}

// Clean removes the registration file, then its package directory when
// nothing else lives there. Files the compiler did not generate, plugin
// sources and merges into the manifest and build script stay.
func (c *Compiler) Clean(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	path := c.RegistrationPath()
	if err := c.artifacts.Remove(ctx, path); err != nil {
		return err
	}

	dir := filepath.Dir(path)
	removed, err := c.artifacts.RemoveIfEmpty(ctx, dir)
	if err != nil {
		return err
	}
	if !removed {
		c.log.WithField("dir", dir).Debug("Generated package directory kept")
	}

	c.log.WithField("file", path).Info("Removed generated files")
	return nil
}

// ListGeneratedFiles returns a copy of the paths recorded by the last Compile
func (c *Compiler) ListGeneratedFiles() []string {
	return c.files.Paths()
}

// LastResult returns the result of the last Compile, or nil
func (c *Compiler) LastResult() *codegen.CompilationResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

// Diff merges every plugin in memory and returns a unified patch for each
// file Compile would change: the manifest, the build script, the
// registration file and placed sources. Nothing is written.
func (c *Compiler) Diff(ctx context.Context) ([]codegen.FileDiff, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	list, err := c.prepare(ctx)
	if err != nil {
		return nil, err
	}

	docs, err := c.loadDocuments(ctx)
	if err != nil {
		return nil, err
	}

	var placements []sources.Placement
	for _, p := range list {
		if err := c.mergePlugin(ctx, docs, p); err != nil {
			return nil, err
		}
		planned, err := c.projector.Plan(ctx, p)
		if err != nil {
			return nil, fmt.Errorf("failed to plan sources of %s: %w", p.Name, err)
		}
		placements = append(placements, planned.Placements...)
	}

	manifestData, err := docs.renderManifest()
	if err != nil {
		return nil, err
	}
	registrationData, err := c.generator.Generate(list)
	if err != nil {
		return nil, err
	}
	registrationBefore, err := readOptional(c.RegistrationPath())
	if err != nil {
		return nil, err
	}

	var diffs []codegen.FileDiff
	add := func(path string, before, after []byte) error {
		patch, err := artifacts.UnifiedDiff(c.relative(path), before, after)
		if err != nil {
			return fmt.Errorf("failed to diff %s: %w", path, err)
		}
		if patch != "" {
			diffs = append(diffs, codegen.FileDiff{Path: path, Patch: patch})
		}
		return nil
	}

	if err := add(c.config.ManifestPath, docs.manifestOriginal, manifestData); err != nil {
		return nil, err
	}
	if err := add(c.config.BuildScriptPath, docs.scriptOriginal, docs.script.Bytes()); err != nil {
		return nil, err
	}
	if err := add(c.RegistrationPath(), registrationBefore, registrationData); err != nil {
		return nil, err
	}

	for _, placement := range placements {
		content, err := os.ReadFile(placement.Source)
		if err != nil {
			return nil, fmt.Errorf("failed to read source %s: %w", placement.Source, err)
		}
		existing, err := readOptional(placement.Destination)
		if err != nil {
			return nil, err
		}
		if err := add(placement.Destination, existing, content); err != nil {
			return nil, err
		}
	}

	return diffs, nil
}

// relative names path for diff headers, relative to the project root when
// it lies inside it
func (c *Compiler) relative(path string) string {
	if c.config.ProjectRoot == "" {
		return filepath.ToSlash(path)
	}
	rel, err := filepath.Rel(c.config.ProjectRoot, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

// readOptional reads path, returning nil for a file that does not exist
func readOptional(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}
