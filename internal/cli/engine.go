package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"vidfetch/internal/config"
	"vidfetch/internal/ytdl"
)

func (c *CLI) newEngineCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "engine",
		Short: "Manage the bundled yt-dlp binary",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "install",
		Short: "Download yt-dlp into the tools directory if missing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			path, err := ytdl.NewManager(config.GetToolsDir(cfg), log).EnsureInstalled(cmd.Context())
			if err != nil {
				return &ExitError{Code: ExitEngineError, Err: err}
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	})

	update := &cobra.Command{
		Use:   "update",
		Short: "Install the latest yt-dlp release",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			mgr := ytdl.NewManager(config.GetToolsDir(cfg), log)

			if checkOnly, _ := cmd.Flags().GetBool("check"); checkOnly {
				latest, hasUpdate, err := mgr.CheckForUpdate(cmd.Context())
				if err != nil {
					return &ExitError{Code: ExitEngineError, Err: err}
				}
				if hasUpdate {
					fmt.Fprintf(cmd.OutOrStdout(), "update available: %s\n", latest)
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "up to date (%s)\n", latest)
				}
				return nil
			}

			if err := mgr.AutoUpdate(cmd.Context()); err != nil {
				return &ExitError{Code: ExitEngineError, Err: err}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "yt-dlp %s at %s\n", mgr.CurrentVersion(), mgr.BinaryPath())
			return nil
		},
	}
	update.Flags().Bool("check", false, "Only report whether an update is available")
	cmd.AddCommand(update)

	return cmd
}
