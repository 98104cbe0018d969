package qrscan

import (
	"context"
	"errors"
	"log/slog"

	"github.com/qrscan-dev/qrscan/internal/pdf"
)

// PageResult holds the QR codes found on one PDF page.
type PageResult struct {
	Page int      `json:"page" yaml:"page"`
	Data []string `json:"data" yaml:"data"`
}

// ScanPDF extracts the embedded images of the selected pages (empty
// pageRange means all pages) and scans each one. Pages without any QR
// code are reported with empty data; per-image decode failures are
// logged and skipped so one broken image never fails the document.
//
// Options.ScanRegion and Options.Canvas are ignored here: regions are
// meaningless across unrelated embedded images, and the surface is
// managed per call.
func (s *Scanner) ScanPDF(ctx context.Context, filename, pageRange string, opts Options) ([]PageResult, error) {
	pages, err := pdf.ExtractImages(filename, pageRange)
	if err != nil {
		return nil, err
	}

	scanOpts := Options{Timeout: opts.Timeout, Engine: opts.Engine}
	if scanOpts.Engine == nil {
		// One engine for the whole document instead of one per image.
		eng, err := s.CreateEngine(ctx)
		if err != nil {
			return nil, err
		}
		defer func() {
			if cerr := eng.Close(); cerr != nil {
				slog.Warn("Engine close failed", "error", cerr)
			}
		}()
		scanOpts.Engine = eng
	}

	results := make([]PageResult, 0, len(pages))
	for _, page := range pages {
		pageResult := PageResult{Page: page.Page, Data: []string{}}
		for _, img := range page.Images {
			res, err := s.Scan(ctx, img, scanOpts)
			switch {
			case err == nil && res.Data != "" && res.Data != ErrNoQRCodeFound.Error():
				pageResult.Data = append(pageResult.Data, res.Data)
			case err == nil || errors.Is(err, ErrNoQRCodeFound):
				// Expected outcome, nothing on this image.
			default:
				slog.Warn("Embedded image scan failed", "file", filename, "page", page.Page, "error", err)
			}
		}
		results = append(results, pageResult)
	}
	return results, nil
}
