package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"filing_holdings/pkg/core/config"
	"filing_holdings/pkg/core/ingest"
	"filing_holdings/pkg/core/lookup"
	"filing_holdings/pkg/core/pipeline"
	"filing_holdings/pkg/core/portfolio"
	"filing_holdings/pkg/core/reconcile"
	"filing_holdings/pkg/core/report"
	"filing_holdings/pkg/core/store"
	"filing_holdings/pkg/core/table"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Aggregate every filing of the index and write the reconciled dataset",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			summary, err := runHoldings(ctx, cfg)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), summary.Markdown())
			return nil
		},
	}
}

// runHoldings executes one full run: index, aggregation, reconciliation,
// portfolio roll-up and every configured sink.
func runHoldings(ctx context.Context, cfg *config.Config) (*report.Summary, error) {
	log := zap.L().Named("run")
	runID := report.NewRunID()
	started := time.Now()
	log.Info("starting run", zap.String("run_id", runID))

	// Reference tables first: a missing table is fatal before any filing is read.
	registrants, err := lookup.LoadRegistrants(cfg.Lookups.RegistrantsPath, cfg.Lookups.ExtraMappings, cfg.Lookups.IssuerFallback)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", config.ErrMissingInput, err)
	}
	symbols, err := lookup.LoadSymbols(cfg.Lookups.SymbolsPath, cfg.Lookups.SymbolsByCIK)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", config.ErrMissingInput, err)
	}
	corrections, err := reconcile.LoadCorrections(cfg.Corrections)
	if err != nil {
		return nil, err
	}
	log.Info("reference tables loaded",
		zap.Int("registrants", registrants.Len()),
		zap.Int("symbols", symbols.Len()),
		zap.Int("corrections", corrections.Len()))

	client := newClient(cfg)
	refs, err := loadRefs(ctx, cfg, client)
	if err != nil {
		return nil, err
	}

	var fetcher ingest.DocumentFetcher = ingest.NewSECDocumentFetcher(client, cfg.Fetch.CacheDir)
	if cfg.Fetch.DocumentRoot != "" {
		fetcher = ingest.FileFetcher{Root: cfg.Fetch.DocumentRoot}
	}

	aggregator := pipeline.NewAggregator(fetcher, pipeline.Options{
		Workers:   cfg.Workers,
		Segmenter: table.SegmenterOptions{MinNumericRun: cfg.MinNumericRun},
	})
	dataset, err := aggregator.Aggregate(ctx, refs)
	if err != nil {
		return nil, fmt.Errorf("aggregation aborted: %w", err)
	}

	reconciler := reconcile.NewReconciler(registrants, symbols, corrections, reconcile.Options{
		ExcludedYears: cfg.ExcludedYears,
	})
	result := reconciler.Reconcile(dataset.Entries)
	positions := portfolio.Build(result.Records, portfolio.Options{ValueScale: cfg.ValueScale})

	summary := report.NewSummary(runID, started, dataset, result, positions)
	if err := writeSinks(ctx, cfg, summary, result.Records, positions); err != nil {
		return nil, err
	}
	summary.Log(log)
	return summary, nil
}

func newClient(cfg *config.Config) *ingest.EDGARClient {
	return ingest.NewEDGARClient(ingest.ClientOptions{
		UserAgent:         cfg.Fetch.UserAgent,
		RequestsPerSecond: cfg.Fetch.RequestsPerSecond,
		Timeout:           time.Duration(cfg.Fetch.TimeoutSeconds) * time.Second,
	})
}

func loadRefs(ctx context.Context, cfg *config.Config, client *ingest.EDGARClient) ([]ingest.FilingRef, error) {
	if cfg.IndexPath != "" {
		refs, err := ingest.LoadIndex(cfg.IndexPath, cfg.FormType)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", config.ErrMissingInput, err)
		}
		return refs, nil
	}
	refs, err := client.BuildIndex(ctx, cfg.RegistrantCIK)
	if err != nil {
		return nil, fmt.Errorf("failed to list filings for CIK %s: %w", cfg.RegistrantCIK, err)
	}
	return refs, nil
}

func writeSinks(ctx context.Context, cfg *config.Config, summary *report.Summary, records []reconcile.HoldingRecord, positions []portfolio.Position) error {
	log := zap.L().Named("run")

	if cfg.Output.CSVPath != "" {
		if err := (store.CSVWriter{Path: cfg.Output.CSVPath}).WriteHoldings(records); err != nil {
			return err
		}
		log.Info("csv written", zap.String("path", cfg.Output.CSVPath))
	}
	if cfg.Output.XLSXPath != "" {
		if err := (store.XLSXWriter{Path: cfg.Output.XLSXPath}).Write(records, positions); err != nil {
			return err
		}
		log.Info("workbook written", zap.String("path", cfg.Output.XLSXPath))
	}
	if cfg.DatabaseURL != "" {
		pool, err := store.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer pool.Close()

		repo := store.NewHoldingsRepo(pool)
		if err := repo.EnsureSchema(ctx); err != nil {
			return err
		}
		if err := repo.SaveRun(ctx, summary, records, positions); err != nil {
			return err
		}
	}
	if cfg.Output.ReportPath != "" {
		if err := summary.WriteFile(cfg.Output.ReportPath); err != nil {
			return err
		}
		log.Info("report written", zap.String("path", cfg.Output.ReportPath))
	}
	return nil
}
