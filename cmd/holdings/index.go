package main

import (
	"fmt"

	"filing_holdings/pkg/core/config"
	"filing_holdings/pkg/core/ingest"

	"github.com/spf13/cobra"
)

func newIndexCmd() *cobra.Command {
	var (
		cik    string
		output string
	)

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Build a filing index from the EDGAR submissions API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if cik == "" {
				cik = cfg.RegistrantCIK
			}
			if cik == "" {
				return fmt.Errorf("--cik is required: %w", config.ErrMissingInput)
			}
			if output == "" {
				output = cfg.IndexPath
			}
			if output == "" {
				return fmt.Errorf("--output is required: %w", config.ErrMissingInput)
			}

			refs, err := newClient(cfg).BuildIndex(cmd.Context(), cik)
			if err != nil {
				return err
			}
			if err := ingest.WriteIndex(output, refs); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d filings to %s\n", len(refs), output)
			return nil
		},
	}

	cmd.Flags().StringVar(&cik, "cik", "", "Registrant CIK (default: registrant_cik from config)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Index file (default: index_path from config)")
	return cmd
}
