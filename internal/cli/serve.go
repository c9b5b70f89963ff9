package cli

import (
	"context"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	appLog "inkuinfo/internal/log"
	"inkuinfo/internal/scheduler"
	"inkuinfo/internal/web"
)

func newServeCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Poll the calendar and serve the event API",
		Long: `Load the config, poll the calendar once and then every refresh_interval,
and serve /health, /api/events and /api/layout until interrupted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
}

func runServe(ctx context.Context, opts *options) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}

	sched := scheduler.New(a.poller, cfg.RefreshInterval)
	srv := web.NewServer(cfg, a.store, a.formatter, a.poller)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return sched.Start(ctx) })
	g.Go(func() error { return srv.Serve(ctx) })

	err = g.Wait()
	appLog.Info("inkuinfo exiting")
	return err
}
