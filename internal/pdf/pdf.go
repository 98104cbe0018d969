// Package pdf extracts embedded page images from PDF documents so they
// can be scanned for QR codes.
package pdf

import (
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	_ "image/jpeg"
	_ "image/png"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	_ "golang.org/x/image/tiff"
)

// PageImages groups the images embedded on one page.
type PageImages struct {
	Page   int
	Images []image.Image
}

// ExtractImages extracts the embedded images of the selected pages,
// ordered by page number. An empty pageRange selects all pages.
// Extraction goes through a temporary directory that is removed on every
// exit path.
func ExtractImages(filename, pageRange string) ([]PageImages, error) {
	pages, err := ParsePageRange(pageRange)
	if err != nil {
		return nil, fmt.Errorf("invalid page range %q: %w", pageRange, err)
	}

	tempDir, err := os.MkdirTemp("", "qrscan-pdf-*")
	if err != nil {
		return nil, fmt.Errorf("create extraction directory: %w", err)
	}
	defer func() { _ = os.RemoveAll(tempDir) }()

	var selected []string
	for _, page := range pages {
		selected = append(selected, strconv.Itoa(page))
	}
	if err := api.ExtractImagesFile(filename, tempDir, selected, nil); err != nil {
		return nil, fmt.Errorf("extract images from %s: %w", filename, err)
	}

	byPage, err := collectExtracted(tempDir)
	if err != nil {
		return nil, err
	}

	result := make([]PageImages, 0, len(byPage))
	for page, images := range byPage {
		result = append(result, PageImages{Page: page, Images: images})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Page < result[j].Page })
	return result, nil
}

// collectExtracted walks the extraction directory and groups decoded
// images by page number. Files pdfcpu wrote in formats we cannot decode
// are skipped rather than failing the whole document.
func collectExtracted(dir string) (map[int][]image.Image, error) {
	byPage := make(map[int][]image.Image)
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return err
		}
		page, err := pageFromFilename(info.Name())
		if err != nil {
			return nil
		}
		img, err := loadImageFile(path)
		if err != nil {
			return nil
		}
		byPage[page] = append(byPage[page], img)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("collect extracted images: %w", err)
	}
	return byPage, nil
}

func loadImageFile(path string) (image.Image, error) {
	f, err := os.Open(path) //nolint:gosec // G304: paths come from our own extraction directory
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	img, _, err := image.Decode(f)
	return img, err
}

// pageFromFilename parses the page number out of pdfcpu's extraction
// naming scheme, page_<num>_image_<idx>.<ext>.
func pageFromFilename(filename string) (int, error) {
	if !strings.HasPrefix(filename, "page_") {
		return 0, errors.New("not a page image file")
	}
	parts := strings.Split(filename, "_")
	if len(parts) < 2 {
		return 0, errors.New("unexpected extraction filename")
	}
	return strconv.Atoi(parts[1])
}

// ParsePageRange parses selections like "3", "1-5" or "1,3,7-9". Empty
// input selects all pages.
func ParsePageRange(pageRange string) ([]int, error) {
	if pageRange == "" {
		return nil, nil
	}
	var pages []int
	for _, part := range strings.Split(pageRange, ",") {
		token, err := parseRangeToken(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		pages = append(pages, token...)
	}
	return pages, nil
}

func parseRangeToken(part string) ([]int, error) {
	if start, end, isRange := strings.Cut(part, "-"); isRange {
		first, err := strconv.Atoi(strings.TrimSpace(start))
		if err != nil {
			return nil, fmt.Errorf("invalid start page: %s", start)
		}
		last, err := strconv.Atoi(strings.TrimSpace(end))
		if err != nil {
			return nil, fmt.Errorf("invalid end page: %s", end)
		}
		if first > last {
			return nil, fmt.Errorf("start page %d greater than end page %d", first, last)
		}
		pages := make([]int, 0, last-first+1)
		for page := first; page <= last; page++ {
			pages = append(pages, page)
		}
		return pages, nil
	}
	page, err := strconv.Atoi(part)
	if err != nil {
		return nil, fmt.Errorf("invalid page number: %s", part)
	}
	return []int{page}, nil
}
