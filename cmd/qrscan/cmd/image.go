package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/qrscan-dev/qrscan"
)

const (
	outputFormatText = "text"
	outputFormatJSON = "json"
	outputFormatYAML = "yaml"
)

// scanReport is one input's outcome in structured output.
type scanReport struct {
	Input string `json:"input" yaml:"input"`
	Data  string `json:"data,omitempty" yaml:"data,omitempty"`
	Error string `json:"error,omitempty" yaml:"error,omitempty"`
}

func newImageCmd() *cobra.Command {
	var (
		format         string
		regionSpec     string
		downscaleSpec  string
		tryWithout     bool
		disallowResize bool
	)

	cmd := &cobra.Command{
		Use:   "image <path|url> [...]",
		Short: "Scan image files or URLs for QR codes",
		Long: `Scan one or more images for a QR code.

Supported formats: PNG, JPEG, GIF, BMP, WebP. Inputs may be local paths
or http(s) URLs.

Examples:
  qrscan image photo.jpg
  qrscan image ticket.png --region 100,100,400,400 --try-without-region
  qrscan image https://example.com/code.png --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateFormat(format); err != nil {
				return err
			}
			region, err := parseRegion(regionSpec, downscaleSpec)
			if err != nil {
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

			opts := qrscan.Options{
				ScanRegion:               region,
				Engine:                   eng,
				DisallowCanvasResizing:   disallowResize,
				AlsoTryWithoutScanRegion: tryWithout || cfg.Scan.TryWithoutRegion,
				Timeout:                  cfg.Scan.Timeout,
			}
			if region == nil {
				opts.AlsoTryWithoutScanRegion = false
			}

			var (
				reports []scanReport
				failed  bool
			)
			surface := qrscan.NewSurface(0, 0)
			opts.Canvas = surface
			for _, input := range args {
				report := scanReport{Input: input}
				result, err := scanner.Scan(cmd.Context(), input, opts)
				if err != nil {
					report.Error = err.Error()
					if !errors.Is(err, qrscan.ErrNoQRCodeFound) {
						failed = true
					}
				} else {
					report.Data = result.Data
				}
				reports = append(reports, report)
			}

			if err := writeReports(cmd, format, reports); err != nil {
				return err
			}
			if failed {
				return errors.New("one or more scans failed")
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", outputFormatText, "output format (text, json, yaml)")
	cmd.Flags().StringVar(&regionSpec, "region", "", "scan region as x,y,width,height")
	cmd.Flags().StringVar(&downscaleSpec, "downscale", "", "region down-scale target as width,height")
	cmd.Flags().BoolVar(&tryWithout, "try-without-region", false, "retry a failing region scan on the full image")
	cmd.Flags().BoolVar(&disallowResize, "disallow-canvas-resizing", false, "keep the projection surface at its current size")
	return cmd
}

func validateFormat(format string) error {
	switch format {
	case outputFormatText, outputFormatJSON, outputFormatYAML:
		return nil
	default:
		return fmt.Errorf("invalid output format: %s (must be one of: text, json, yaml)", format)
	}
}

func writeReports(cmd *cobra.Command, format string, reports []scanReport) error {
	out := cmd.OutOrStdout()
	switch format {
	case outputFormatJSON:
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(reports)
	case outputFormatYAML:
		return yaml.NewEncoder(out).Encode(reports)
	default:
		for _, r := range reports {
			if r.Error != "" {
				fmt.Fprintf(out, "%s: %s\n", r.Input, r.Error)
			} else {
				fmt.Fprintf(out, "%s: %s\n", r.Input, r.Data)
			}
		}
		return nil
	}
}

// parseRegion parses "x,y,w,h" plus an optional "w,h" down-scale target.
func parseRegion(regionSpec, downscaleSpec string) (*qrscan.Region, error) {
	if regionSpec == "" {
		if downscaleSpec != "" {
			return nil, errors.New("--downscale requires --region")
		}
		return nil, nil
	}
	fields, err := parseInts(regionSpec, 4)
	if err != nil {
		return nil, fmt.Errorf("invalid --region %q: %w", regionSpec, err)
	}
	region := &qrscan.Region{X: fields[0], Y: fields[1], Width: fields[2], Height: fields[3]}

	if downscaleSpec != "" {
		target, err := parseInts(downscaleSpec, 2)
		if err != nil {
			return nil, fmt.Errorf("invalid --downscale %q: %w", downscaleSpec, err)
		}
		region.DownScaledWidth, region.DownScaledHeight = target[0], target[1]
	}
	return region, nil
}

func parseInts(spec string, count int) ([]int, error) {
	parts := strings.Split(spec, ",")
	if len(parts) != count {
		return nil, fmt.Errorf("expected %d comma-separated integers", count)
	}
	values := make([]int, count)
	for i, part := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		values[i] = v
	}
	return values, nil
}
