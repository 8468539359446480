package pdf

import (
	"errors"
	"fmt"
	"image"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/MeKo-Tech/sticker/internal/utils"
)

// PageImage is one embedded image and the page it was found on.
type PageImage struct {
	Page  int
	Index int // position on the page, starting at 0
	Image image.Image
}

// ExtractImages extracts all images from a PDF file using pdfcpu's extract functionality.
func ExtractImages(filename string, pageRange string) (map[int][]image.Image, error) {
	return extractImages(filename, pageRange, nil)
}

func extractImages(filename, pageRange string, conf *model.Configuration) (map[int][]image.Image, error) {
	pageNumbers, err := parsePageRange(pageRange)
	if err != nil {
		return nil, fmt.Errorf("invalid page range %q: %w", pageRange, err)
	}

	tempDir, err := os.MkdirTemp("", "sticker-pdf-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}
	defer func() { _ = os.RemoveAll(tempDir) }()

	var pageStrings []string
	for _, n := range pageNumbers {
		pageStrings = append(pageStrings, strconv.Itoa(n))
	}

	if err := api.ExtractImagesFile(filename, tempDir, pageStrings, conf); err != nil {
		return nil, fmt.Errorf("failed to extract images from PDF: %w", err)
	}

	result, err := collectExtractedImages(tempDir)
	if err != nil {
		return nil, fmt.Errorf("failed to process extracted images: %w", err)
	}
	return result, nil
}

// Flatten orders extracted images by page, then by position on the page.
func Flatten(pages map[int][]image.Image) []PageImage {
	nums := make([]int, 0, len(pages))
	for n := range pages {
		nums = append(nums, n)
	}
	sort.Ints(nums)

	var out []PageImage
	for _, n := range nums {
		for i, img := range pages[n] {
			out = append(out, PageImage{Page: n, Index: i, Image: img})
		}
	}
	return out
}

// collectExtractedImages groups the files pdfcpu wrote to dir by page.
// Files are visited in lexical order so the index on a page is stable.
func collectExtractedImages(dir string) (map[int][]image.Image, error) {
	result := make(map[int][]image.Image)

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		pageNum, err := parsePageFromFilename(d.Name())
		if err != nil {
			return nil
		}

		// undecodable streams (e.g. JBIG2) are skipped
		img, _, err := utils.LoadImage(path)
		if err != nil {
			return nil
		}
		result[pageNum] = append(result[pageNum], img)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// parsePageFromFilename extracts the page number from an extracted image
// name. pdfcpu writes <stem>_<page>_<resource>.<ext>; the older
// page_<page>_image_<n>.<ext> layout is accepted too.
func parsePageFromFilename(filename string) (int, error) {
	stem := strings.TrimSuffix(filename, filepath.Ext(filename))
	parts := strings.Split(stem, "_")
	if len(parts) < 3 {
		return 0, errors.New("invalid filename format")
	}

	field := parts[len(parts)-2]
	if parts[0] == "page" {
		field = parts[1]
	}
	pageNum, err := strconv.Atoi(field)
	if err != nil || pageNum < 1 {
		return 0, errors.New("invalid page number")
	}
	return pageNum, nil
}

// parsePageRange parses a page range string like "1-5" or "1,3,5".
func parsePageRange(pageRange string) ([]int, error) {
	if strings.TrimSpace(pageRange) == "" {
		return nil, nil // all pages
	}

	var pages []int
	for _, part := range strings.Split(pageRange, ",") {
		tokenPages, err := parseRangeToken(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		pages = append(pages, tokenPages...)
	}
	return pages, nil
}

// parseRangeToken parses either a single page token (e.g., "3") or a range token (e.g., "1-5").
func parseRangeToken(part string) ([]int, error) {
	if !strings.Contains(part, "-") {
		page, err := strconv.Atoi(part)
		if err != nil || page < 1 {
			return nil, fmt.Errorf("invalid page number: %s", part)
		}
		return []int{page}, nil
	}

	rangeParts := strings.Split(part, "-")
	if len(rangeParts) != 2 {
		return nil, fmt.Errorf("invalid range format: %s", part)
	}
	start, err := strconv.Atoi(strings.TrimSpace(rangeParts[0]))
	if err != nil || start < 1 {
		return nil, fmt.Errorf("invalid start page: %s", rangeParts[0])
	}
	end, err := strconv.Atoi(strings.TrimSpace(rangeParts[1]))
	if err != nil {
		return nil, fmt.Errorf("invalid end page: %s", rangeParts[1])
	}
	if start > end {
		return nil, fmt.Errorf("start page %d greater than end page %d", start, end)
	}
	out := make([]int, 0, end-start+1)
	for i := start; i <= end; i++ {
		out = append(out, i)
	}
	return out, nil
}
