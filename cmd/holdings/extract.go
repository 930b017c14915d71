package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"filing_holdings/pkg/core/config"
	"filing_holdings/pkg/core/cusip"
	"filing_holdings/pkg/core/ingest"
	"filing_holdings/pkg/core/pipeline"
	"filing_holdings/pkg/core/table"

	"github.com/spf13/cobra"
)

func newExtractCmd() *cobra.Command {
	var (
		period        string
		minNumericRun int
	)

	cmd := &cobra.Command{
		Use:   "extract FILE",
		Short: "Extract the holdings rows of one local filing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if minNumericRun == 0 {
				cfg, err := config.Load(configPath)
				if err != nil {
					return err
				}
				minNumericRun = cfg.MinNumericRun
			}

			ref := ingest.FilingRef{URL: args[0], FormType: ingest.FormHoldingsReport}
			if period != "" {
				p, err := ingest.ParsePeriod(period)
				if err != nil {
					return err
				}
				ref.Period = p
			}

			document, err := ingest.FileFetcher{}.FetchDocument(cmd.Context(), ref)
			if err != nil {
				return err
			}

			aggregator := pipeline.NewAggregator(nil, pipeline.Options{
				Segmenter: table.SegmenterOptions{MinNumericRun: minNumericRun},
			})
			entries, blocks, err := aggregator.ExtractDocument(ref, document)
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, strings.Join([]string{"cusip", "raw", "value", "shares"}, "\t"))
			for _, e := range entries {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", cusip.Normalize(e.Identifier), e.Identifier, e.Value, e.Shares)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "%d rows from %d holdings tables\n", len(entries), blocks)
			return nil
		},
	}

	cmd.Flags().StringVar(&period, "period", "", "Period of report to tag rows with (YYYY-MM-DD)")
	cmd.Flags().IntVar(&minNumericRun, "min-numeric-run", 0, "Numeric columns a holdings table must declare (default: from config)")
	return cmd
}
