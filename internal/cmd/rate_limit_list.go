package cmd

import (
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/photofx/photofx/internal/output"
	"github.com/photofx/photofx/internal/ratelimit"
)

var rateLimitListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored rate limit records",
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := resolveOutputFormat(cmd)
		if err != nil {
			return err
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

		records, err := newLimiter(backend.store, cfg).List(ctx)
		if err != nil {
			return err
		}

		prefix, _ := cmd.Flags().GetString("prefix")
		activeOnly, _ := cmd.Flags().GetBool("active")
		records = filterRecords(records, strings.TrimSpace(prefix), activeOnly, time.Now().UTC())

		outPath, err := resolveOutputPath(cmd, format, "rate-limit.list")
		if err != nil {
			return err
		}
		rendered, err := output.FormatRecords(format, records, time.Now().UTC())
		if err != nil {
			return err
		}
		return writeRendered(cmd, outPath, rendered)
	},
}

var rateLimitStatusCmd = &cobra.Command{
	Use:   "status <client>",
	Short: "Show the rate limit record of one client",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := resolveOutputFormat(cmd)
		if err != nil {
			return err
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

		record, err := newLimiter(backend.store, cfg).Get(ctx, args[0])
		if err != nil {
			return err
		}
		var records []ratelimit.Record
		if record != nil {
			records = append(records, *record)
		}

		outPath, err := resolveOutputPath(cmd, format, "rate-limit."+sanitizeFilename(args[0]))
		if err != nil {
			return err
		}
		rendered, err := output.FormatRecords(format, records, time.Now().UTC())
		if err != nil {
			return err
		}
		return writeRendered(cmd, outPath, rendered)
	},
}

// filterRecords keeps records whose identifier starts with prefix, dropping
// expired ones when activeOnly is set. The result is sorted by identifier.
func filterRecords(records []ratelimit.Record, prefix string, activeOnly bool, now time.Time) []ratelimit.Record {
	filtered := make([]ratelimit.Record, 0, len(records))
	for _, r := range records {
		if prefix != "" && !strings.HasPrefix(r.Identifier, prefix) {
			continue
		}
		if activeOnly && r.Expired(now) {
			continue
		}
		filtered = append(filtered, r)
	}
	sort.Slice(filtered, func(i, j int) bool { return filtered[i].Identifier < filtered[j].Identifier })
	return filtered
}

func addRateLimitOutputFlags(cmd *cobra.Command) {
	cmd.Flags().String("output-format", string(output.FormatTable), "Output format: table|json|markdown")
	cmd.Flags().String("out", "", "Write output to a file (default stdout)")
	cmd.Flags().String("out-dir", "", "Write output to a directory")
}

func init() {
	addRateLimitOutputFlags(rateLimitListCmd)
	rateLimitListCmd.Flags().String("prefix", "", "List clients whose identifier starts with prefix")
	rateLimitListCmd.Flags().Bool("active", false, "Hide records whose window has ended")

	addRateLimitOutputFlags(rateLimitStatusCmd)
}
