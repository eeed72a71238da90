package sources

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/Mallon94/mobile-air/pkg/codegen"
	"github.com/Mallon94/mobile-air/pkg/codegen/artifacts"
	"github.com/Mallon94/mobile-air/pkg/codegen/cache"
	"github.com/Mallon94/mobile-air/pkg/plugins"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// SourceDir is where a plugin keeps its native sources, relative to the
// plugin directory
var SourceDir = plugins.AndroidSourceDir

// Extensions lists the source file extensions that are projected
var Extensions = []string{".kt", ".java"}

// namespaceRegex matches the first package declaration. Java terminates it
// with a semicolon, Kotlin does not.
var namespaceRegex = regexp.MustCompile(`(?m)^[ \t]*package[ \t]+([A-Za-z_][\w]*(?:\.[A-Za-z_][\w]*)*)[ \t]*;?`)

// Config configures source projection
type Config struct {
	SourceRoot string // Host project source root, e.g. app/src/main/java
	MaxWorkers int    // Concurrent file placements
}

// Placement records where a source file went
type Placement struct {
	Source      string
	Destination string
	Namespace   string
	Changed     bool
}

// Result summarizes the projection of one plugin
type Result struct {
	Placements []Placement
	Warnings   []string
	Errors     []error
}

// Err joins the per-file errors, or returns nil
func (r *Result) Err() error {
	return errors.Join(r.Errors...)
}

// Projector copies plugin sources into the host source tree at the path their
// declared namespace implies
type Projector struct {
	config    Config
	artifacts artifacts.Manager
	cache     *cache.NamespaceCache
	log       *logrus.Logger
}

// NewProjector creates a new source projector
func NewProjector(cfg Config, mgr artifacts.Manager, nsCache *cache.NamespaceCache, log *logrus.Logger) *Projector {
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = 1
	}
	if mgr == nil {
		mgr = artifacts.NewFSManager(nil)
	}
	if nsCache == nil {
		nsCache = cache.NewNamespaceCache(nil)
	}
	if log == nil {
		log = logrus.New()
	}

	return &Projector{
		config:    cfg,
		artifacts: mgr,
		cache:     nsCache,
		log:       log,
	}
}

// Namespace extracts the declared package of a Kotlin or Java source file,
// or "" when there is none
func Namespace(content []byte) string {
	m := namespaceRegex.FindSubmatch(content)
	if m == nil {
		return ""
	}
	return string(m[1])
}

// Destination returns where a file with the given namespace is placed
func Destination(sourceRoot, namespace, file string) string {
	parts := append([]string{sourceRoot}, strings.Split(namespace, ".")...)
	return filepath.Join(append(parts, filepath.Base(file))...)
}

// Project places every source of plugin. Files without a namespace are
// skipped with a warning; file system failures are collected per file and do
// not stop the remaining files.
func (p *Projector) Project(ctx context.Context, plugin *plugins.Plugin) (*Result, error) {
	return p.run(ctx, plugin, true)
}

// Plan resolves destinations without writing anything
func (p *Projector) Plan(ctx context.Context, plugin *plugins.Plugin) (*Result, error) {
	return p.run(ctx, plugin, false)
}

type outcome struct {
	placement *Placement
	content   []byte
	warning   string
	err       error
}

func (p *Projector) run(ctx context.Context, plugin *plugins.Plugin, write bool) (*Result, error) {
	files, walkErrs := Collect(filepath.Join(plugin.Path, SourceDir))

	outcomes := make([]outcome, len(files))
	all := make([]int, len(files))
	for i := range files {
		all[i] = i
	}
	if err := p.forEach(ctx, all, func(_ context.Context, i int) {
		outcomes[i] = p.resolve(files[i])
	}); err != nil {
		return nil, err
	}

	// The first file in lexical order claims a destination
	claimed := make(map[string]string)
	var pending []int
	for i, o := range outcomes {
		if o.placement == nil {
			continue
		}
		if first, ok := claimed[o.placement.Destination]; ok {
			err := codegen.NewSourcePlacementError(o.placement.Source, "destination already taken by "+first)
			p.log.WithField("file", o.placement.Source).Warnf("Skipping source: %v", err)
			outcomes[i] = outcome{warning: err.Error()}
			continue
		}
		claimed[o.placement.Destination] = o.placement.Source
		pending = append(pending, i)
	}

	if write {
		if err := p.forEach(ctx, pending, func(ctx context.Context, i int) {
			outcomes[i] = p.write(ctx, outcomes[i])
		}); err != nil {
			return nil, err
		}
	}

	result := &Result{Errors: walkErrs}
	for _, o := range outcomes {
		switch {
		case o.err != nil:
			result.Errors = append(result.Errors, o.err)
		case o.warning != "":
			result.Warnings = append(result.Warnings, o.warning)
		case o.placement != nil:
			result.Placements = append(result.Placements, *o.placement)
		}
	}

	p.log.WithFields(logrus.Fields{
		"plugin":  plugin.Name,
		"placed":  len(result.Placements),
		"skipped": len(result.Warnings),
		"failed":  len(result.Errors),
	}).Debug("Projected plugin sources")

	return result, nil
}

// forEach runs fn for every index with at most MaxWorkers in flight
func (p *Projector) forEach(ctx context.Context, indexes []int, fn func(context.Context, int)) error {
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(p.config.MaxWorkers)

	for _, i := range indexes {
		i := i
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			fn(ctx, i)
			return nil
		})
	}

	return eg.Wait()
}

// resolve finds the namespace and destination of file. The content is only
// read when the namespace cache has no entry for the file.
func (p *Projector) resolve(file string) outcome {
	info, err := os.Stat(file)
	if err != nil {
		return outcome{err: fmt.Errorf("failed to read source %s: %w", file, err)}
	}

	var content []byte
	ns, err := p.cache.GetOrCompute(cache.FileKey(file, info), func() (string, error) {
		data, err := os.ReadFile(file)
		if err != nil {
			return "", err
		}
		content = data
		return Namespace(data), nil
	})
	if err != nil {
		return outcome{err: fmt.Errorf("failed to read source %s: %w", file, err)}
	}

	if ns == "" {
		err := codegen.NewSourcePlacementError(file, "no package declaration")
		p.log.WithField("file", file).Warnf("Skipping source: %v", err)
		return outcome{warning: err.Error()}
	}

	return outcome{
		placement: &Placement{
			Source:      file,
			Destination: Destination(p.config.SourceRoot, ns, file),
			Namespace:   ns,
		},
		content: content,
	}
}

func (p *Projector) write(ctx context.Context, o outcome) outcome {
	content := o.content
	if content == nil {
		data, err := os.ReadFile(o.placement.Source)
		if err != nil {
			return outcome{err: fmt.Errorf("failed to read source %s: %w", o.placement.Source, err)}
		}
		content = data
	}

	written, err := p.artifacts.Write(ctx, o.placement.Destination, content)
	if err != nil {
		return outcome{err: err}
	}

	placement := *o.placement
	placement.Changed = written.Changed
	return outcome{placement: &placement}
}

// walkDir is replaced in tests to simulate unreadable directories
var walkDir = filepath.WalkDir

// Collect lists the projectable files under dir in lexical order. A missing
// directory yields no files. Entries that cannot be read are returned as
// errors and skipped; the rest of the tree is still listed.
func Collect(dir string) ([]string, []error) {
	var (
		files []string
		errs  []error
	)

	err := walkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir && errors.Is(err, fs.ErrNotExist) {
				return filepath.SkipDir
			}
			errs = append(errs, fmt.Errorf("failed to list sources in %s: %w", path, err))
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if hasExtension(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		errs = append(errs, fmt.Errorf("failed to list sources in %s: %w", dir, err))
	}

	return files, errs
}

func hasExtension(path string) bool {
	ext := filepath.Ext(path)
	for _, e := range Extensions {
		if ext == e {
			return true
		}
	}
	return false
}
