package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/tenderwatch/ted-adapter/internal/ted"
	"github.com/tenderwatch/ted-adapter/internal/tender"
)

type aggregateOptions struct {
	in  string
	out string
	now string
}

func newAggregateCmd(root *rootOptions) *cobra.Command {
	opts := &aggregateOptions{}

	cmd := &cobra.Command{
		Use:   "aggregate",
		Short: "Aggregate previously fetched lot records",
		Long: `aggregate reads lot records from a file, either a JSON array or a saved
search response with a "notices" array, and writes one tender per procurement.`,
		Example: `  tenderctl aggregate --in raw.json --out tenders.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAggregate(cmd, root, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.in, "in", "i", "", "input file of raw lot records (required)")
	cmd.Flags().StringVarP(&opts.out, "out", "o", "tenders.json", `output file, "-" for stdout`)
	cmd.Flags().StringVar(&opts.now, "now", "", "evaluate deadlines as of this RFC 3339 instant")
	_ = cmd.MarkFlagRequired("in")
	return cmd
}

func runAggregate(cmd *cobra.Command, root *rootOptions, opts *aggregateOptions) error {
	now := time.Now().UTC()
	if opts.now != "" {
		t, err := time.Parse(time.RFC3339, opts.now)
		if err != nil {
			return fmt.Errorf("--now: %w", err)
		}
		now = t.UTC()
	}

	data, err := os.ReadFile(opts.in)
	if err != nil {
		return fmt.Errorf("read %s: %w", opts.in, err)
	}
	records, err := decodeRecords(data)
	if err != nil {
		return fmt.Errorf("decode %s: %w", opts.in, err)
	}

	pipeline, err := root.engine()
	if err != nil {
		return err
	}
	tenders, stats := pipeline.Run(records, now)

	return writeJSON(opts.out, cmd.OutOrStdout(), outputFile{
		Metadata: outputMetadata{
			FetchedAt: now,
			Total:     len(tenders),
			Stats:     stats,
		},
		Tenders: tenders,
	})
}

// decodeRecords accepts a bare array of records or a search response.
// Non-object elements are kept as nil records for the pipeline to skip.
func decodeRecords(data []byte) (tender.Records, error) {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var records tender.Records
		if err := json.Unmarshal(data, &records); err != nil {
			return nil, err
		}
		return records, nil
	}
	var resp ted.SearchResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, err
	}
	return resp.Notices, nil
}
