package cli

import (
	"context"
	"fmt"

	"github.com/Mallon94/mobile-air/pkg/watcher"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newWatchCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Compile, then recompile whenever a plugin changes",
		Long: `Compile once, then watch the plugin directories and recompile after every
burst of changes. Plugins are rediscovered before each run, so adding or
removing a plugin directory is picked up too. Stop with Ctrl-C.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			loader := a.loader()
			compiler, registry, err := a.loadCompiler(ctx)
			if err != nil {
				return err
			}

			compile := func(ctx context.Context) {
				result, err := compiler.Compile(ctx)
				a.writeMetrics()
				if result != nil {
					fmt.Fprint(out, renderSummary(result))
				}
				if err != nil {
					a.log.Errorf("Compilation failed: %v", err)
				}
			}

			// Watch before the first compile so no change slips in between
			w, err := watcher.New(watcher.Config{
				Paths: a.cfg.Project.PluginPaths(),
				Delay: a.cfg.Compiler.WatchDelay,
			}, a.log)
			if err != nil {
				return err
			}
			defer w.Close()

			compile(ctx)
			a.log.WithField("dirs", len(w.WatchList())).Info("Watching for plugin changes")

			return w.Run(ctx, func(ctx context.Context, changed []string) {
				a.log.WithFields(logrus.Fields{
					"files": len(changed),
					"first": changed[0],
				}).Info("Plugin files changed, recompiling")

				if err := loader.Reload(ctx, registry); err != nil {
					a.log.Errorf("Failed to reload plugins: %v", err)
					return
				}
				compile(ctx)
			})
		},
	}
}
