package cli

import (
	"fmt"

	"github.com/Mallon94/mobile-air/pkg/plugins"
	"github.com/spf13/cobra"
)

func newCompileCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "compile",
		Short: "Merge every plugin into the host project",
		Long: `Merge every discovered plugin into the host project. Permissions and
services are merged into the Android manifest, dependencies into the app
build script, plugin sources are copied under the source root and the
bridge registration file is regenerated.

Compiling is idempotent: a second run leaves every file byte-identical.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			compiler, _, err := a.loadCompiler(ctx)
			if err != nil {
				return err
			}

			result, err := compiler.Compile(ctx)
			a.writeMetrics()
			if result != nil {
				fmt.Fprint(cmd.OutOrStdout(), renderSummary(result))
			}
			return err
		},
	}
}

func newCleanCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "clean",
		Short: "Remove the generated registration file",
		Long: `Remove the generated bridge registration directory from the source root.
Merged manifest entries, dependencies and copied sources are left in place.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			compiler, err := a.newCompiler(plugins.NewRegistry())
			if err != nil {
				return err
			}
			if err := compiler.Clean(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", a.relative(compiler.RegistrationPath()))
			return nil
		},
	}
}

func newListCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Compile and print every generated file",
		Long: `Compile the plugins and print every file the run wrote or confirmed up to
date, one path per line, relative to the project root.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			compiler, _, err := a.loadCompiler(ctx)
			if err != nil {
				return err
			}
			_, err = compiler.Compile(ctx)
			a.writeMetrics()
			if err != nil {
				return err
			}

			for _, path := range compiler.ListGeneratedFiles() {
				fmt.Fprintln(cmd.OutOrStdout(), a.relative(path))
			}
			return nil
		},
	}
}
