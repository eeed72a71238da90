package registration

import (
	"bytes"
	_ "embed"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"text/template"
	"unicode"

	"github.com/Mallon94/mobile-air/pkg/plugins"
)

//go:embed registration.kt.tmpl
var registrationTemplate string

const (
	// FileName is the generated registration source file
	FileName = "PluginBridgeFunctionRegistration.kt"

	// ObjectName is the Kotlin object holding registerAll
	ObjectName = "PluginBridgeFunctionRegistration"

	DefaultPackage      = "com.mobileair.bridge.plugins"
	DefaultRegistryType = "com.mobileair.bridge.BridgeFunctionRegistry"
)

// Config configures the generated file
type Config struct {
	Package      string // Kotlin package of the generated file
	RegistryType string // Fully qualified bridge function registry type
}

// Generator renders the bridge function registration file
type Generator struct {
	config Config
	tmpl   *template.Template
}

// NewGenerator creates a new registration generator
func NewGenerator(cfg Config) (*Generator, error) {
	if cfg.Package == "" {
		cfg.Package = DefaultPackage
	}
	if cfg.RegistryType == "" {
		cfg.RegistryType = DefaultRegistryType
	}

	tmpl, err := template.New(FileName).Parse(registrationTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse registration template: %w", err)
	}

	return &Generator{config: cfg, tmpl: tmpl}, nil
}

// Dir returns the generated package directory under sourceRoot. The
// compiler owns everything in it.
func (g *Generator) Dir(sourceRoot string) string {
	return filepath.Join(append([]string{sourceRoot}, strings.Split(g.config.Package, ".")...)...)
}

// Path returns the registration file path under sourceRoot
func (g *Generator) Path(sourceRoot string) string {
	return filepath.Join(g.Dir(sourceRoot), FileName)
}

type registrationLine struct {
	Name string // Kotlin string literal
	Call string
}

type templateData struct {
	Package       string
	Object        string
	RegistryType  string
	Imports       []string
	Registrations []registrationLine
}

// Generate renders one registration call per bridge function, in plugin then
// declaration order. Output depends only on the input, so identical plugins
// render identical bytes.
func (g *Generator) Generate(list []*plugins.Plugin) ([]byte, error) {
	type resolved struct {
		fn     plugins.BridgeFunction
		target Target
	}

	var functions []resolved
	for _, p := range list {
		if p == nil || p.Manifest == nil {
			continue
		}
		for _, fn := range p.Manifest.BridgeFunctions {
			functions = append(functions, resolved{fn: fn, target: ResolveTarget(fn.Android)})
		}
	}

	// Distinct imports sharing a simple name cannot both be imported
	importsBySimple := make(map[string]map[string]bool)
	for _, f := range functions {
		if f.target.Import == "" {
			continue
		}
		simple := lastSegment(f.target.Import)
		if importsBySimple[simple] == nil {
			importsBySimple[simple] = make(map[string]bool)
		}
		importsBySimple[simple][f.target.Import] = true
	}

	imports := make(map[string]bool)
	data := templateData{
		Package:      g.config.Package,
		Object:       ObjectName,
		RegistryType: g.config.RegistryType,
	}

	for _, f := range functions {
		ref := f.target.Reference
		if imp := f.target.Import; imp != "" {
			if len(importsBySimple[lastSegment(imp)]) > 1 {
				ref = f.fn.Android
			} else {
				imports[imp] = true
			}
		}

		args := make([]string, 0, 2)
		for _, p := range f.fn.RequiredParams() {
			args = append(args, string(p))
		}

		data.Registrations = append(data.Registrations, registrationLine{
			Name: kotlinString(f.fn.Name),
			Call: fmt.Sprintf("%s(%s)", ref, strings.Join(args, ", ")),
		})
	}

	for imp := range imports {
		data.Imports = append(data.Imports, imp)
	}
	sort.Strings(data.Imports)

	var buf bytes.Buffer
	if err := g.tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("failed to render registration file: %w", err)
	}
	return buf.Bytes(), nil
}

// Target is a native target split into its import and call-site reference
type Target struct {
	Import    string // e.g. com.test.plugin.TestFunctions
	Reference string // e.g. TestFunctions.Execute
}

// ResolveTarget splits a fully qualified target at its class: the first
// segment with an uppercase initial. Without one, the whole target is
// imported and referenced by its last segment.
func ResolveTarget(target string) Target {
	segments := strings.Split(target, ".")
	if len(segments) < 2 {
		return Target{Reference: target}
	}

	for i, seg := range segments {
		if seg == "" {
			continue
		}
		if unicode.IsUpper([]rune(seg)[0]) {
			if i == 0 {
				return Target{Reference: target}
			}
			return Target{
				Import:    strings.Join(segments[:i+1], "."),
				Reference: strings.Join(segments[i:], "."),
			}
		}
	}

	return Target{Import: target, Reference: segments[len(segments)-1]}
}

func lastSegment(name string) string {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[i+1:]
	}
	return name
}

// kotlinString quotes s as a Kotlin string literal
func kotlinString(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '\\', '"', '$':
			b.WriteByte('\\')
			b.WriteRune(r)
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		case '\r':
			b.WriteString(`\r`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}
