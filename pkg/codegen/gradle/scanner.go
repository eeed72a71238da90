package gradle

import (
	"fmt"
	"strings"
)

// block locates a top-level dependencies { ... } block
type block struct {
	start int // offset of the "dependencies" keyword
	open  int // offset of the opening brace
	close int // offset of the matching closing brace
}

const keyword = "dependencies"

// scan walks a Kotlin or Groovy build script tracking strings, comments and
// brace depth, and returns every dependencies block at depth zero. Braces in
// strings and comments are ignored.
func scan(src string) ([]block, error) {
	var (
		blocks  []block
		depth   int
		pending = -1 // keyword offset waiting for its brace
		current = -1 // index into blocks of the open top-level block
	)

	line := func(off int) int { return strings.Count(src[:off], "\n") + 1 }

	for i := 0; i < len(src); {
		c := src[i]

		switch {
		case strings.HasPrefix(src[i:], "//"):
			end := strings.IndexByte(src[i:], '\n')
			if end < 0 {
				end = len(src) - i
			}
			i += end
			continue

		case strings.HasPrefix(src[i:], "/*"):
			end := strings.Index(src[i+2:], "*/")
			if end < 0 {
				return nil, fmt.Errorf("unterminated block comment at line %d", line(i))
			}
			i += end + 4
			continue

		case strings.HasPrefix(src[i:], `"""`), strings.HasPrefix(src[i:], `'''`):
			quote := src[i : i+3]
			end := strings.Index(src[i+3:], quote)
			if end < 0 {
				return nil, fmt.Errorf("unterminated string at line %d", line(i))
			}
			i += end + 6
			continue

		case c == '"' || c == '\'':
			end, ok := stringEnd(src, i)
			if !ok {
				return nil, fmt.Errorf("unterminated string at line %d", line(i))
			}
			i = end + 1
			pending = -1
			continue

		case c == '{':
			if depth == 0 && pending >= 0 {
				blocks = append(blocks, block{start: pending, open: i, close: -1})
				current = len(blocks) - 1
			}
			pending = -1
			depth++

		case c == '}':
			depth--
			if depth < 0 {
				return nil, fmt.Errorf("unexpected '}' at line %d", line(i))
			}
			if depth == 0 && current >= 0 {
				blocks[current].close = i
				current = -1
			}
			pending = -1

		case depth == 0 && isIdentStart(c):
			end := i
			for end < len(src) && isIdentPart(src[end]) {
				end++
			}
			word := src[i:end]
			if word == keyword && (i == 0 || !isIdentPart(src[i-1])) {
				pending = i
			} else {
				pending = -1
			}
			i = end
			continue

		case c == ' ' || c == '\t' || c == '\r' || c == '\n':
			// whitespace keeps a pending keyword alive

		default:
			pending = -1
		}

		i++
	}

	if depth != 0 {
		return nil, fmt.Errorf("unbalanced braces: %d unclosed '{'", depth)
	}
	return blocks, nil
}

// stripComments blanks out line and block comments in a span the scanner has
// already accepted. Newlines inside block comments are kept so line anchored
// matching still works; strings are copied untouched.
func stripComments(src string) string {
	var b strings.Builder
	b.Grow(len(src))

	for i := 0; i < len(src); {
		switch {
		case strings.HasPrefix(src[i:], "//"):
			end := strings.IndexByte(src[i:], '\n')
			if end < 0 {
				return b.String()
			}
			i += end

		case strings.HasPrefix(src[i:], "/*"):
			end := strings.Index(src[i+2:], "*/")
			if end < 0 {
				return b.String()
			}
			if n := strings.Count(src[i:i+2+end], "\n"); n > 0 {
				b.WriteString(strings.Repeat("\n", n))
			} else {
				b.WriteByte(' ')
			}
			i += end + 4

		case strings.HasPrefix(src[i:], `"""`), strings.HasPrefix(src[i:], `'''`):
			end := strings.Index(src[i+3:], src[i:i+3])
			if end < 0 {
				b.WriteString(src[i:])
				return b.String()
			}
			b.WriteString(src[i : i+end+6])
			i += end + 6

		case src[i] == '"' || src[i] == '\'':
			end, ok := stringEnd(src, i)
			if !ok {
				b.WriteString(src[i:])
				return b.String()
			}
			b.WriteString(src[i : end+1])
			i = end + 1

		default:
			b.WriteByte(src[i])
			i++
		}
	}

	return b.String()
}

// stringEnd returns the offset of the quote closing the single-line string
// opened at start.
func stringEnd(src string, start int) (int, bool) {
	quote := src[start]
	for i := start + 1; i < len(src); i++ {
		switch src[i] {
		case '\\':
			i++
		case '\n':
			return 0, false
		case quote:
			return i, true
		}
	}
	return 0, false
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}
