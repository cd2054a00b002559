package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"phishguard/internal/analysis"
	"phishguard/internal/urllist"
)

func newScanCmd(configPath *string) *cobra.Command {
	var noHistory bool

	cmd := &cobra.Command{
		Use:   "scan <url>",
		Short: "Score one URL, page included",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), *configPath, !noHistory)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.analyzer.AnalyzeURL(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if err := printJSON(cmd.OutOrStdout(), res); err != nil {
				return err
			}
			if res.Failed() {
				return fmt.Errorf("scan failed: %s", res.Error)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&noHistory, "no-history", false, "do not record the result in scan history")
	return cmd
}

func newBatchCmd(configPath *string) *cobra.Command {
	var (
		format    string
		column    string
		noHistory bool
	)

	cmd := &cobra.Command{
		Use:   "batch <file>",
		Short: "Score a list of URLs from their URL strings only",
		Long: `Score every URL of a file with the URL-only model.

Examples:
  # one URL per line, blank lines and # comments skipped
  phishguard batch urls.txt

  # a CSV export with a "link" column
  phishguard batch export.csv --format=csv --column=link

Lists longer than 200 URLs are scored in consecutive batches.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			urls, err := urllist.ReadAll(f, urllist.Source{Format: format, TargetColumn: column})
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}
			if len(urls) == 0 {
				return analysis.ErrNoURLs
			}

			a, err := newApp(cmd.Context(), *configPath, !noHistory)
			if err != nil {
				return err
			}
			defer a.Close()

			out, err := scanAll(cmd, a.analyzer, urls)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
	cmd.Flags().StringVar(&format, "format", urllist.FormatText, "input format: text|csv")
	cmd.Flags().StringVar(&column, "column", urllist.DefaultColumn, "CSV column holding the URLs")
	cmd.Flags().BoolVar(&noHistory, "no-history", false, "do not record the results in scan history")
	return cmd
}

// scanAll runs urls through AnalyzeBatch in chunks of MaxBatchSize and
// merges the results in input order.
func scanAll(cmd *cobra.Command, a *analysis.Analyzer, urls []string) (analysis.BatchResult, error) {
	var out analysis.BatchResult
	for i, chunk := range urllist.Chunk(urls, analysis.MaxBatchSize) {
		res, err := a.AnalyzeBatch(cmd.Context(), chunk)
		if err != nil {
			return analysis.BatchResult{}, fmt.Errorf("batch %d: %w", i+1, err)
		}
		out.Count += res.Count
		out.Results = append(out.Results, res.Results...)
		out.Summary.Safe += res.Summary.Safe
		out.Summary.Suspicious += res.Summary.Suspicious
		out.Summary.HighRisk += res.Summary.HighRisk
	}
	return out, nil
}
