package cli

import (
	"errors"
	"fmt"

	"github.com/Mallon94/mobile-air/pkg/plugins"
	"github.com/spf13/cobra"
)

// ErrValidationFailed is returned when a plugin fails to load, the registry
// has conflicts, or a strict scan finds a high severity issue
var ErrValidationFailed = errors.New("plugin validation failed")

func newValidateCommand(a *app) *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check plugin manifests and registry conflicts",
		Long: `Load every plugin directory, validate its manifest and check the
resulting registry for duplicate plugins and bridge functions. Each plugin
is also scanned for dangerous permissions, exported services and secrets
hardcoded in its sources. Nothing is written to the project.

Security findings are reported without failing unless --strict is set, in
which case a high severity finding fails validation.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			loader := a.loader()
			validator := plugins.NewValidator(a.log)

			dirs, err := loader.PluginDirs(ctx)
			if err != nil {
				return err
			}

			registry := plugins.NewRegistry()
			problems := make(map[string]error)
			issues := make(map[string][]plugins.SecurityIssue)
			high := 0
			var checked []string
			for _, dir := range dirs {
				p, err := loader.LoadPlugin(ctx, dir)
				if errors.Is(err, plugins.ErrManifestNotFound) {
					continue
				}
				name := a.relative(dir)
				checked = append(checked, name)
				if err != nil {
					problems[name] = err
					continue
				}
				if err := registry.Register(p); err != nil {
					problems[name] = err
					continue
				}

				found, err := validator.ScanForSecurityIssues(ctx, p)
				if err != nil {
					problems[name] = err
					continue
				}
				issues[name] = found
				if plugins.HasHighSeverity(found) {
					high++
				}
			}
			conflicts := registry.DetectConflicts()

			out := cmd.OutOrStdout()
			fmt.Fprint(out, renderValidation(checked, problems, issues, conflicts))

			if len(problems) > 0 || len(conflicts) > 0 {
				return fmt.Errorf("%w: %d invalid plugins, %d conflicts", ErrValidationFailed, len(problems), len(conflicts))
			}
			if strict && high > 0 {
				return fmt.Errorf("%w: %d plugins with high severity findings", ErrValidationFailed, high)
			}

			fmt.Fprintln(out, okStyle.Render(fmt.Sprintf("✓ %d plugins valid", registry.Count())))
			return nil
		},
	}

	cmd.Flags().BoolVar(&strict, "strict", false, "Fail on high severity security findings")
	return cmd
}
