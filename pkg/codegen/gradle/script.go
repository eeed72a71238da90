package gradle

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/Mallon94/mobile-air/pkg/codegen"
)

// DefaultIndent is used inside dependency blocks whose indentation cannot be
// detected
const DefaultIndent = "    "

var declarationRegex = regexp.MustCompile(`(?m)^[ \t]*([A-Za-z_][\w]*)[ \t]*\(?[ \t]*["']([^"'\n]+)["'][ \t]*\)?[ \t]*$`)

// Dependency is a single scope("coordinate") declaration
type Dependency struct {
	Scope      string
	Coordinate string
}

// Declaration renders the dependency as a build script line
func (d Dependency) Declaration() string {
	return fmt.Sprintf("%s(%q)", d.Scope, d.Coordinate)
}

// Script is an in-memory Gradle build script. Only the dependency blocks are
// interpreted, every other byte is preserved.
type Script struct {
	src string
}

// Parse validates the script structure. Unbalanced braces and unterminated
// strings or comments are parse errors.
func Parse(data []byte) (*Script, error) {
	src := string(data)
	if _, err := scan(src); err != nil {
		return nil, err
	}
	return &Script{src: src}, nil
}

// ParseFile reads and parses the build script at path. Parse failures wrap
// codegen.ErrBuildScriptParse.
func ParseFile(path string) (*Script, []byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read build script: %w", err)
	}

	script, err := Parse(data)
	if err != nil {
		return nil, nil, codegen.NewBuildScriptParseError(path, err)
	}
	return script, data, nil
}

// Bytes returns the script text
func (s *Script) Bytes() []byte {
	return []byte(s.src)
}

// Dependencies returns the declarations found in the top-level dependency
// blocks, in file order.
func (s *Script) Dependencies() []Dependency {
	blocks, err := scan(s.src)
	if err != nil {
		return nil
	}

	var deps []Dependency
	for _, b := range blocks {
		body := stripComments(s.src[b.open+1 : b.close])
		for _, m := range declarationRegex.FindAllStringSubmatch(body, -1) {
			deps = append(deps, Dependency{Scope: m[1], Coordinate: m[2]})
		}
	}
	return deps
}

// declares reports whether coordinate appears quoted inside any top-level
// dependency block, under any scope. Commented out declarations do not count.
func declares(src string, blocks []block, coordinate string) bool {
	double := `"` + coordinate + `"`
	single := `'` + coordinate + `'`
	for _, b := range blocks {
		body := stripComments(src[b.open+1 : b.close])
		if strings.Contains(body, double) || strings.Contains(body, single) {
			return true
		}
	}
	return false
}

// detectIndent returns the leading whitespace of the first non-blank line in
// the block body. Text sharing a line with the opening brace is ignored.
func detectIndent(body string) string {
	lines := strings.Split(body, "\n")
	if len(lines) > 1 {
		lines = lines[1:]
	}
	for _, line := range lines {
		trimmed := strings.TrimLeft(line, " \t")
		if strings.TrimSpace(trimmed) == "" {
			continue
		}
		if indent := line[:len(line)-len(trimmed)]; indent != "" {
			return indent
		}
		return DefaultIndent
	}
	return DefaultIndent
}
