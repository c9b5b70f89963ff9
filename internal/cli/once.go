package cli

import (
	"context"
	"encoding/json"
	"io"

	"github.com/spf13/cobra"

	"inkuinfo/internal/web"
)

func newOnceCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "once",
		Short: "Poll the calendar once and print the events as JSON",
		Long: `Run a single refresh and print the same document GET /api/events serves.
Exits non-zero if the calendar could not be read.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnce(cmd.Context(), opts, cmd.OutOrStdout())
		},
	}
}

func runOnce(ctx context.Context, opts *options, out io.Writer) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	if err := a.poller.Refresh(ctx); err != nil {
		return err
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(web.BuildEventsResponse(a.store.Snapshot(), a.formatter, cfg.Locale))
}
