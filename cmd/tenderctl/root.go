package main

import (
	"github.com/spf13/cobra"

	"github.com/tenderwatch/ted-adapter/internal/tender"
	"github.com/tenderwatch/ted-adapter/pkg/config"
	"github.com/tenderwatch/ted-adapter/pkg/logger"
)

type rootOptions struct {
	verbose bool
	cfg     *config.Config
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "tenderctl",
		Short: "Fetch and aggregate open TED procurement notices",
		Long: `tenderctl pulls active contract notices from the TED search API and
collapses their lot records into one enriched tender per procurement.
Settings default to the same environment variables as ted-adapter.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			opts.cfg = config.Load()
			level := "warn"
			if opts.verbose {
				level = "debug"
			}
			logger.InitTo("tenderctl", opts.cfg.Env, level, "stderr")
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging on stderr")
	cmd.AddCommand(newFetchCmd(opts), newAggregateCmd(opts))
	return cmd
}

func (o *rootOptions) engine() (*tender.Pipeline, error) {
	return tender.NewEngine(logger.Named("engine"), tender.EngineOptions{
		ReferenceCurrency: o.cfg.ReferenceCurrency,
		RateOverrides:     o.cfg.ExchangeRates,
		UrgencyProfile:    o.cfg.UrgencyProfile,
		LexiconPath:       o.cfg.LotLexiconPath,
	})
}
