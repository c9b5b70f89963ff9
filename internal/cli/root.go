package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"inkuinfo/internal/config"
	appLog "inkuinfo/internal/log"
)

const defaultConfigPath = "/etc/inkuinfo/config.yaml"

// options holds the persistent flag values shared by all commands.
type options struct {
	configPath string
	listen     string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:   "inkuinfo",
		Short: "Upcoming calendar events for an information display",
		Long: `inkuinfo polls a calendar (Google Calendar, an ICS feed or a CalDAV
collection) and serves the next events, formatted for a kiosk display,
over a small JSON API.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", defaultConfigPath, "Path to config file")
	flags.StringVar(&opts.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(newServeCmd(opts))
	rootCmd.AddCommand(newOnceCmd(opts))
	rootCmd.AddCommand(newPreviewCmd(opts))
	rootCmd.AddCommand(newConfigCmd(opts))

	return rootCmd
}

// Execute runs the command line with ctx as the root context.
func Execute(ctx context.Context) error {
	return newRootCmd().ExecuteContext(ctx)
}

// loadConfig applies the precedence flags > env > file > defaults and
// validates the result.
func loadConfig(opts *options) (*config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", opts.configPath, err)
	}
	if opts.listen != "" {
		cfg.Listen = opts.listen
	}

	level, _ := appLog.ParseLevel(cfg.LogLevel)
	if opts.verbose {
		level = appLog.LevelDebug
	}
	appLog.SetLevel(level)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", opts.configPath, err)
	}

	appLog.Info("effective config",
		"listen", cfg.Listen,
		"timezone", cfg.Timezone,
		"locale", cfg.Locale,
		"refresh_interval", cfg.RefreshInterval.String(),
		"max_events", cfg.MaxEvents,
		"source", cfg.Source.Type,
	)
	return cfg, nil
}
