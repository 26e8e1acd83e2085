package cli

import (
	"github.com/spf13/cobra"

	"feasibility-engine/internal/config"
)

// RootOptions holds global flags and the loaded configuration.
type RootOptions struct {
	LogLevel string
	Config   config.Config
}

// NewRootCommand creates the root command for the feasibility engine.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "feasibility-engine",
		Short: "Answer cohort feasibility queries against an OMOP CDM database",
		Long: `Answer cohort feasibility queries against an OMOP CDM database.

Configuration is read from configs/application.yaml and APP_* environment
variables, e.g. APP_DATASOURCE_HOST or APP_TASK_API_BASE_URL.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if opts.LogLevel != "" {
				cfg.Server.LogLevel = opts.LogLevel
			}
			config.SetupLogging(cfg.Server.LogLevel)
			opts.Config = cfg
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "log level, overrides APP_SERVER_LOG_LEVEL")

	cmd.AddCommand(NewSolveCommand(opts))
	cmd.AddCommand(NewDaemonCommand(opts))

	return cmd
}
