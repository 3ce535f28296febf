package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/photofx/photofx/internal/output"
)

var rateLimitResetCmd = &cobra.Command{
	Use:   "reset [client]",
	Short: "Reset stored rate limit state",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := resolveOutputFormat(cmd)
		if err != nil {
			return err
		}
		if format == output.FormatMarkdown {
			return fmt.Errorf("unsupported output format: %s", format)
		}

		all, _ := cmd.Flags().GetBool("all")
		prefix, _ := cmd.Flags().GetString("prefix")
		yes, _ := cmd.Flags().GetBool("yes")
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		prefix = strings.TrimSpace(prefix)

		selectors := 0
		if all {
			selectors++
		}
		if prefix != "" {
			selectors++
		}
		if len(args) == 1 {
			selectors++
		}
		if selectors != 1 {
			return errors.New("specify exactly one of <client>, --prefix or --all")
		}
		if (all || prefix != "") && !yes && !dryRun {
			return errors.New("--all and --prefix require --yes (or use --dry-run)")
		}

		ctx := cmd.Context()
		cfg, err := loadConfig(ctx)
		if err != nil {
			return err
		}
		backend, err := openSharedRateLimitStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer backend.close() // nolint:errcheck // best-effort cleanup

		limiter := newLimiter(backend.store, cfg)

		var targets []string
		if len(args) == 1 {
			record, err := limiter.Get(ctx, args[0])
			if err != nil {
				return err
			}
			if record != nil {
				targets = append(targets, record.Identifier)
			}
		} else {
			records, err := limiter.List(ctx)
			if err != nil {
				return err
			}
			for _, r := range filterRecords(records, prefix, false, time.Now().UTC()) {
				targets = append(targets, r.Identifier)
			}
		}

		outPath, err := resolveOutputPath(cmd, format, "rate-limit.reset")
		if err != nil {
			return err
		}
		sink, err := openSink(cmd, outPath)
		if err != nil {
			return err
		}
		defer sink.Abort()

		if dryRun {
			if err := writeRateLimitResetResult(format, sink, targets, 0, true); err != nil {
				return err
			}
			return sink.Commit()
		}

		deleted := 0
		for _, id := range targets {
			if err := limiter.Reset(ctx, id); err != nil {
				return fmt.Errorf("reset %s: %w", id, err)
			}
			deleted++
		}
		if err := writeRateLimitResetResult(format, sink, targets, deleted, false); err != nil {
			return err
		}
		return sink.Commit()
	},
}

func writeRateLimitResetResult(format output.Format, w io.Writer, targets []string, deleted int, dryRun bool) error {
	if format == output.FormatJSON {
		payload, err := json.MarshalIndent(map[string]any{
			"matched": len(targets),
			"deleted": deleted,
			"clients": targets,
			"dry_run": dryRun,
		}, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(payload))
		return err
	}

	if dryRun {
		_, err := fmt.Fprintf(w, "Would reset %d client(s)\n", len(targets))
		return err
	}
	_, err := fmt.Fprintf(w, "Reset %d/%d client(s)\n", deleted, len(targets))
	return err
}

func init() {
	rateLimitResetCmd.Flags().Bool("all", false, "Reset every client")
	rateLimitResetCmd.Flags().String("prefix", "", "Reset clients whose identifier starts with prefix")
	rateLimitResetCmd.Flags().Bool("yes", false, "Confirm a bulk reset")
	rateLimitResetCmd.Flags().Bool("dry-run", false, "Show what would be reset")
	rateLimitResetCmd.Flags().String("output-format", string(output.FormatTable), "Output format: table|json")
	rateLimitResetCmd.Flags().String("out", "", "Write output to a file (default stdout)")
	rateLimitResetCmd.Flags().String("out-dir", "", "Write output to a directory")
}
