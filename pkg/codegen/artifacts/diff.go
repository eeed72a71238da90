package artifacts

import (
	"strings"

	difflib "github.com/pmezard/go-difflib/difflib"
)

// DiffContext is the number of context lines in unified hunks
const DiffContext = 3

// UnifiedDiff renders a unified patch turning before into after, labelled
// a/name and b/name. Identical inputs produce an empty string. A nil before
// is rendered as a new file.
func UnifiedDiff(name string, before, after []byte) (string, error) {
	if before != nil && string(before) == string(after) {
		return "", nil
	}

	from := "a/" + name
	if before == nil {
		from = "/dev/null"
	}

	return difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        splitLines(before),
		B:        splitLines(after),
		FromFile: from,
		ToFile:   "b/" + name,
		Context:  DiffContext,
	})
}

// splitLines keeps the newline on each line so hunks reproduce the input
func splitLines(data []byte) []string {
	if len(data) == 0 {
		return []string{}
	}
	lines := strings.SplitAfter(string(data), "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}
