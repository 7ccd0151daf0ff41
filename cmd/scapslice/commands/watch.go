package commands

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/gyaneshwarpardhi/scapslice/internal/config"
)

var watchFlags batchFlags

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run a batch and re-run it whenever the config file changes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := watchFlags.batch()
		if err != nil {
			return err
		}

		rerun := make(chan struct{}, 1)
		loader.OnChange(func(cfg *config.Config) {
			eng.SwapConfig(cfg)
			slog.Info("config hot-reloaded", "version", cfg.Version)
			select {
			case rerun <- struct{}{}:
			default:
			}
		})
		stopWatch, err := loader.Watch()
		if err != nil {
			return err
		}
		defer stopWatch()

		ctx := cmd.Context()
		for {
			rep, err := runBatch(cmd, b, watchFlags.out)
			if err != nil {
				slog.Error("batch failed", "err", err)
			} else if err := printJSON(cmd, summary(rep)); err != nil {
				return err
			}
			select {
			case <-rerun:
			case <-ctx.Done():
				slog.Info("watch stopped")
				return nil
			}
		}
	},
}

func init() {
	watchFlags.register(watchCmd)
	rootCmd.AddCommand(watchCmd)
}
