package gradle

import (
	"fmt"
	"strings"

	"github.com/Mallon94/mobile-air/pkg/codegen"
	"github.com/Mallon94/mobile-air/pkg/plugins"
	"github.com/sirupsen/logrus"
)

// Merger adds plugin dependency declarations to a build script
type Merger struct {
	log *logrus.Logger
}

// NewMerger creates a new dependency merger
func NewMerger(log *logrus.Logger) *Merger {
	if log == nil {
		log = logrus.New()
	}
	return &Merger{log: log}
}

// Merge appends one scope("coordinate") line per coordinate not already
// declared, in scope declaration order then coordinate order. A coordinate
// present under any scope is skipped. Lines go before the closing brace of
// the first top-level dependencies block; a block is appended when the script
// has none. Returns the number of declarations added.
func (m *Merger) Merge(script *Script, scopes plugins.DependencyScopes) (int, error) {
	blocks, err := scan(script.src)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", codegen.ErrBuildScriptParse, err)
	}

	var added []Dependency
	seen := make(map[string]bool)
	for _, scope := range scopes {
		for _, coord := range scope.Coordinates {
			if seen[coord] || declares(script.src, blocks, coord) {
				continue
			}
			seen[coord] = true
			added = append(added, Dependency{Scope: scope.Scope, Coordinate: coord})
			m.log.WithFields(logrus.Fields{
				"scope":      scope.Scope,
				"coordinate": coord,
			}).Debug("Adding dependency")
		}
	}

	if len(added) == 0 {
		return 0, nil
	}

	if len(blocks) == 0 {
		script.src = appendBlock(script.src, added)
	} else {
		script.src = insertIntoBlock(script.src, blocks[0], added)
	}

	return len(added), nil
}

func renderLines(indent string, deps []Dependency) string {
	var b strings.Builder
	for _, d := range deps {
		b.WriteString(indent)
		b.WriteString(d.Declaration())
		b.WriteByte('\n')
	}
	return b.String()
}

func appendBlock(src string, deps []Dependency) string {
	var b strings.Builder
	b.WriteString(src)
	if src != "" && !strings.HasSuffix(src, "\n") {
		b.WriteByte('\n')
	}
	if src != "" {
		b.WriteByte('\n')
	}
	b.WriteString(keyword + " {\n")
	b.WriteString(renderLines(DefaultIndent, deps))
	b.WriteString("}\n")
	return b.String()
}

func insertIntoBlock(src string, blk block, deps []Dependency) string {
	body := src[blk.open+1 : blk.close]
	lines := renderLines(detectIndent(body), deps)

	lineStart := strings.LastIndexByte(src[:blk.close], '\n') + 1
	if lineStart > blk.open && strings.TrimSpace(src[lineStart:blk.close]) == "" {
		// closing brace sits on its own line
		return src[:lineStart] + lines + src[lineStart:]
	}

	// single-line block: break before the closing brace
	at := blk.open + 1 + len(strings.TrimRight(body, " \t"))
	return src[:at] + "\n" + lines + src[blk.close:]
}
