package main

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tenderwatch/ted-adapter/internal/rate"
	"github.com/tenderwatch/ted-adapter/internal/ted"
	"github.com/tenderwatch/ted-adapter/pkg/logger"
)

type fetchOptions struct {
	countries []string
	days      int
	maxPages  int
	limit     int
	coreOnly  bool
	out       string
	rawOut    string
}

func newFetchCmd(root *rootOptions) *cobra.Command {
	opts := &fetchOptions{}

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch active notices and write aggregated tenders",
		Example: `  tenderctl fetch --countries DNK,SWE --days 15 --out tenders.json
  tenderctl fetch --raw-out raw.json --out -`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFetch(cmd, root, opts)
		},
	}

	cmd.Flags().StringSliceVar(&opts.countries, "countries", nil, "buyer countries, ISO alpha-3 (default from TED_COUNTRIES)")
	cmd.Flags().IntVar(&opts.days, "days", 0, "publication lookback in days (default from TED_LOOKBACK_DAYS)")
	cmd.Flags().IntVar(&opts.maxPages, "max-pages", 0, "page cap (default from TED_MAX_PAGES)")
	cmd.Flags().IntVar(&opts.limit, "limit", 0, "records per page (default from TED_PAGE_LIMIT)")
	cmd.Flags().BoolVar(&opts.coreOnly, "core-fields", false, "request only the core field set")
	cmd.Flags().StringVarP(&opts.out, "out", "o", "tenders.json", `output file, "-" for stdout`)
	cmd.Flags().StringVar(&opts.rawOut, "raw-out", "", "also write the raw lot records to this file")
	return cmd
}

func runFetch(cmd *cobra.Command, root *rootOptions, opts *fetchOptions) error {
	cfg := root.cfg
	countries := cfg.TEDCountries
	if len(opts.countries) > 0 {
		countries = make([]string, len(opts.countries))
		for i, c := range opts.countries {
			countries[i] = strings.ToUpper(strings.TrimSpace(c))
		}
	}
	days := orDefault(opts.days, cfg.TEDLookbackDays)
	maxPages := orDefault(opts.maxPages, cfg.TEDMaxPages)
	limit := orDefault(opts.limit, cfg.TEDPageLimit)

	var fields []string
	if opts.coreOnly {
		fields = ted.CoreFields
	}

	rateMgr := rate.NewManager(rate.Config{
		RequestsPerSecond: float64(cfg.TEDRequestsPerSecond),
		Burst:             cfg.TEDRequestsPerSecond,
	})
	client := ted.NewClient(logger.Named("ted"), rateMgr, &http.Client{Timeout: cfg.TEDRequestTimeout}, cfg.TEDAPIURL, cfg.TEDRetryMax)
	fetcher := ted.NewFetcher(logger.Named("fetcher"), client, limit, maxPages, fields)

	pipeline, err := root.engine()
	if err != nil {
		return err
	}

	res, err := fetcher.Fetch(cmd.Context(), ted.Query{Countries: countries, LookbackDays: days})
	if err != nil {
		return err
	}
	if opts.rawOut != "" {
		if err := writeJSON(opts.rawOut, cmd.OutOrStdout(), res.Records); err != nil {
			return err
		}
	}

	now := time.Now().UTC()
	tenders, stats := pipeline.Run(res.Records, now)
	logger.L().Info("tenderctl.fetch_complete",
		zap.Int("records", len(res.Records)),
		zap.Int("tenders", len(tenders)),
		zap.Bool("truncated", res.Truncated))

	if err := writeJSON(opts.out, cmd.OutOrStdout(), outputFile{
		Metadata: outputMetadata{
			FetchedAt: now,
			Total:     len(tenders),
			Available: res.Available,
			Fields:    len(res.Fields),
			Query:     res.Query,
			Stats:     stats,
		},
		Tenders: tenders,
	}); err != nil {
		return err
	}
	if opts.out != "-" {
		fmt.Fprintf(cmd.ErrOrStderr(), "%d tenders from %d records written to %s\n", len(tenders), len(res.Records), opts.out)
	}
	return nil
}

func orDefault(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}
