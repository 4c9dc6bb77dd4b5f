package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"vidfetch/internal/retention"
)

func (c *CLI) newSweepCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Delete expired downloads once and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			report := retention.NewSweeper(cfg.Downloads.Dir, cfg.Downloads.MaxAge, nil, log).Sweep(cmd.Context())

			fmt.Fprintf(cmd.OutOrStdout(), "scanned %d, deleted %d, skipped %d, failed %d\n",
				report.Scanned, report.Deleted, report.Skipped, report.Failed)
			return nil
		},
	}

	cmd.Flags().StringP("download-dir", "d", "downloads", "Directory downloads are written to")

	return cmd
}
