// Package cli wires configuration, logging and the vidfetch services into
// cobra commands.
package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"vidfetch/internal/config"
	"vidfetch/internal/logger"
	"vidfetch/pkg/models"
)

const (
	ExitOK          = 0
	ExitCLIError    = 1
	ExitConfigError = 2
	ExitEngineError = 3
	ExitServerError = 4
)

// ExitError wraps an error with a process exit code
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return ""
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// CLI builds the command tree for one binary version
type CLI struct {
	version string
}

// NewCLI creates a new CLI instance
func NewCLI(version string) *CLI {
	return &CLI{version: version}
}

// Execute runs the command line in args
func (c *CLI) Execute(ctx context.Context, args []string) error {
	root := c.newRootCmd()
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

func (c *CLI) newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "vidfetch",
		Short:         "Fetch online video at a chosen quality",
		Long:          "vidfetch inspects a video URL, offers its qualities (2160p down to 480p, or audio) and downloads the chosen one into a directory served over HTTP.",
		Version:       c.version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringP("config", "c", "", "Config file (yaml, json or toml)")
	root.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error")

	root.AddCommand(c.newServeCmd())
	root.AddCommand(c.newProbeCmd())
	root.AddCommand(c.newSweepCmd())
	root.AddCommand(c.newEngineCmd())
	root.AddCommand(c.newVersionCmd())

	return root
}

// loadConfig reads configuration with cmd's flags applied and sets up logging
func loadConfig(cmd *cobra.Command) (*models.Config, *slog.Logger, error) {
	configPath, _ := cmd.Flags().GetString("config")

	mgr, err := config.NewManager(configPath, cmd.Flags())
	if err != nil {
		return nil, nil, &ExitError{Code: ExitConfigError, Err: err}
	}
	cfg := mgr.Get()

	log, err := logger.Setup(cmd.ErrOrStderr(), cfg.Log.Level)
	if err != nil {
		return nil, nil, &ExitError{Code: ExitConfigError, Err: fmt.Errorf("log.level %q: %w", cfg.Log.Level, err)}
	}

	if file := mgr.ConfigFile(); file != "" {
		log.Debug("configuration loaded", "file", file)
	}
	return cfg, log, nil
}

func (c *CLI) newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "vidfetch %s\n", c.version)
			return nil
		},
	}
}
