package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/Mallon94/mobile-air/pkg/codegen"
	"github.com/Mallon94/mobile-air/pkg/plugins"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	okStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("46"))
	failStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

// renderSummary formats a compilation result for the terminal
func renderSummary(result *codegen.CompilationResult) string {
	var b strings.Builder

	if result.Success() {
		b.WriteString(okStyle.Render("✓ Compilation succeeded"))
	} else {
		b.WriteString(failStyle.Render("✗ Compilation failed"))
	}
	b.WriteString(dimStyle.Render(fmt.Sprintf("  run %s in %s", result.RunID, result.Duration.Round(time.Millisecond))))
	b.WriteString("\n")

	if result.Error != "" {
		b.WriteString(failStyle.Render("  " + result.Error))
		b.WriteString("\n")
	}

	if len(result.Plugins) > 0 {
		b.WriteString(titleStyle.Render("Plugins"))
		b.WriteString("\n")
		for _, name := range result.Plugins {
			fmt.Fprintf(&b, "  %s\n", name)
		}
	}

	s := result.Stats
	rows := []struct {
		label string
		value int
	}{
		{"Permissions added", s.PermissionsAdded},
		{"Services added", s.ServicesAdded},
		{"Services updated", s.ServicesUpdated},
		{"Dependencies added", s.DependenciesAdded},
		{"Sources placed", s.SourcesPlaced},
		{"Functions registered", s.FunctionsRegistered},
		{"Files changed", s.FilesChanged},
	}
	b.WriteString(titleStyle.Render("Stats"))
	b.WriteString("\n")
	for _, row := range rows {
		fmt.Fprintf(&b, "  %-22s %d\n", row.label, row.value)
	}

	if len(result.Warnings) > 0 {
		b.WriteString(titleStyle.Render("Warnings"))
		b.WriteString("\n")
		for _, w := range result.Warnings {
			b.WriteString(warnStyle.Render("  ! " + w))
			b.WriteString("\n")
		}
	}

	return b.String()
}

// renderValidation formats per-plugin validation problems, security findings
// and registry conflicts. problems and issues are keyed by plugin directory.
func renderValidation(dirs []string, problems map[string]error, issues map[string][]plugins.SecurityIssue, conflicts []plugins.Conflict) string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Plugins"))
	b.WriteString("\n")
	for _, dir := range dirs {
		if err, ok := problems[dir]; ok {
			fmt.Fprintf(&b, "  %s %s\n", failStyle.Render("✗"), dir)
			b.WriteString(dimStyle.Render("    " + err.Error()))
			b.WriteString("\n")
			continue
		}
		fmt.Fprintf(&b, "  %s %s\n", okStyle.Render("✓"), dir)
		for _, issue := range issues[dir] {
			style := warnStyle
			if issue.Severity == plugins.SeverityHigh {
				style = failStyle
			}
			b.WriteString(style.Render("    ! " + issue.String()))
			b.WriteString("\n")
		}
	}

	if len(conflicts) > 0 {
		b.WriteString(titleStyle.Render("Conflicts"))
		b.WriteString("\n")
		for _, c := range conflicts {
			b.WriteString(failStyle.Render("  " + c.String()))
			b.WriteString("\n")
		}
	}

	return b.String()
}
