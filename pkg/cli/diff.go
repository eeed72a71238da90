package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

// ErrPendingChanges is returned by diff --exit-code when a compile would
// change the project
var ErrPendingChanges = errors.New("project is not up to date")

func newDiffCommand(a *app) *cobra.Command {
	var exitCode bool

	cmd := &cobra.Command{
		Use:   "diff",
		Short: "Show what compile would change, without writing",
		Long: `Print a unified diff of every change a compile would make to the host
project. Nothing is written.

With --exit-code the command fails when there are changes, which makes it
usable as a CI check that the committed project is up to date.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			compiler, _, err := a.loadCompiler(ctx)
			if err != nil {
				return err
			}

			diffs, err := compiler.Diff(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(diffs) == 0 {
				fmt.Fprintln(out, dimStyle.Render("No changes"))
				return nil
			}
			for _, d := range diffs {
				fmt.Fprint(out, d.Patch)
			}

			if exitCode {
				return fmt.Errorf("%w: %d files would change", ErrPendingChanges, len(diffs))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&exitCode, "exit-code", false, "Fail when compile would change any file")
	return cmd
}
