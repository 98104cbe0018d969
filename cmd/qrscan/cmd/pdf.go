package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/qrscan-dev/qrscan"
)

func newPDFCmd() *cobra.Command {
	var (
		format string
		pages  string
	)

	cmd := &cobra.Command{
		Use:   "pdf <file>",
		Short: "Scan the embedded images of a PDF for QR codes",
		Long: `Extract the embedded images of a PDF and scan each one.

Examples:
  qrscan pdf tickets.pdf
  qrscan pdf tickets.pdf --pages 1-3 --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateFormat(format); err != nil {
				return err
			}

			cfg := configFromContext(cmd.Context())
			scanner, eng, err := buildScanner(cfg)
			if err != nil {
				return err
			}
			if eng != nil {
				defer func() { _ = eng.Close() }()
			}

			results, err := scanner.ScanPDF(cmd.Context(), args[0], pages, qrscan.Options{
				Engine:  eng,
				Timeout: cfg.Scan.Timeout,
			})
			if err != nil {
				return err
			}
			return writePageResults(cmd, format, results)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", outputFormatText, "output format (text, json, yaml)")
	cmd.Flags().StringVar(&pages, "pages", "", "page selection, e.g. 3, 1-5 or 1,3,7-9 (default all)")
	return cmd
}

func writePageResults(cmd *cobra.Command, format string, results []qrscan.PageResult) error {
	out := cmd.OutOrStdout()
	switch format {
	case outputFormatJSON:
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	case outputFormatYAML:
		return yaml.NewEncoder(out).Encode(results)
	default:
		for _, page := range results {
			if len(page.Data) == 0 {
				fmt.Fprintf(out, "page %d: no QR codes\n", page.Page)
				continue
			}
			for _, data := range page.Data {
				fmt.Fprintf(out, "page %d: %s\n", page.Page, data)
			}
		}
		return nil
	}
}
