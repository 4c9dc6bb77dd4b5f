package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"vidfetch/internal/cache"
	"vidfetch/internal/format"
	"vidfetch/internal/info"
	"vidfetch/pkg/models"
)

func (c *CLI) newProbeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "probe <url>",
		Short: "Show the qualities available for a URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			eng, err := openEngine(cmd.Context(), cfg, log)
			if err != nil {
				return &ExitError{Code: ExitEngineError, Err: err}
			}

			policy, err := format.ParsePolicy(cfg.Engine.TierPolicy)
			if err != nil {
				return &ExitError{Code: ExitConfigError, Err: err}
			}

			svc := info.NewService(eng, cache.NewManager(cfg.Cache.TTL), policy, cfg.Engine.ProbeTimeout, log)
			meta, err := svc.GetVideoInfo(cmd.Context(), args[0])
			if err != nil {
				return &ExitError{Code: ExitEngineError, Err: err}
			}

			if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(meta.Formats)
			}
			return printFormats(cmd.OutOrStdout(), meta)
		},
	}

	cmd.Flags().Bool("json", false, "Print formats as JSON")
	cmd.Flags().String("ytdlp", "yt-dlp", "Path to the yt-dlp executable")

	return cmd
}

func printFormats(w io.Writer, meta *models.VideoMetadata) error {
	fmt.Fprintf(w, "%s\n\n", meta.Title)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "QUALITY\tFORMAT\tEXT\tSIZE\tNOTE")
	for _, f := range meta.Formats {
		size := "-"
		if f.FileSize != nil {
			size = humanBytes(*f.FileSize)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", f.Tier, f.FormatID, f.Extension, size, f.Note)
	}
	return tw.Flush()
}

func humanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return strconv.FormatInt(n, 10) + " B"
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
