package utils

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// SupportedImageExtensions lists supported file extensions for loading.
var SupportedImageExtensions = []string{".jpg", ".jpeg", ".png", ".bmp", ".gif", ".tif", ".tiff", ".webp"}

// IsSupportedImage reports whether the path has a supported image extension.
func IsSupportedImage(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, s := range SupportedImageExtensions {
		if ext == s {
			return true
		}
	}
	return false
}

// ImageMetadata captures lightweight file and pixel information.
type ImageMetadata struct {
	Path      string `json:"path"      yaml:"path"`
	Format    string `json:"format"    yaml:"format"`
	SizeBytes int64  `json:"sizeBytes" yaml:"size_bytes"`
	Width     int    `json:"width"     yaml:"width"`
	Height    int    `json:"height"    yaml:"height"`
}

// LoadImage opens and decodes an image file, returning the image and metadata.
// EXIF orientation is applied so that phone photos come out upright.
func LoadImage(path string) (image.Image, ImageMetadata, error) {
	if path == "" {
		return nil, ImageMetadata{}, &ImageProcessingError{Operation: "load", Err: errors.New("empty path")}
	}
	if !IsSupportedImage(path) {
		err := &ImageProcessingError{Operation: "load", Err: fmt.Errorf("unsupported format: %s", filepath.Ext(path))}
		return nil, ImageMetadata{}, err
	}

	data, err := os.ReadFile(path) //nolint:gosec // G304: reading a user-provided image path is expected
	if err != nil {
		return nil, ImageMetadata{}, &ImageProcessingError{Operation: "load", Err: err}
	}

	img, format, err := DecodeImage(bytes.NewReader(data))
	if err != nil {
		return nil, ImageMetadata{}, err
	}

	b := img.Bounds()
	meta := ImageMetadata{
		Path:      path,
		Format:    format,
		SizeBytes: int64(len(data)),
		Width:     b.Dx(),
		Height:    b.Dy(),
	}
	return img, meta, nil
}

// DecodeImage decodes an image stream with auto-orientation and reports the
// detected format name.
func DecodeImage(r io.ReadSeeker) (image.Image, string, error) {
	_, format, err := image.DecodeConfig(r)
	if err != nil {
		return nil, "", &ImageProcessingError{Operation: "decode", Err: err}
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, "", &ImageProcessingError{Operation: "decode", Err: err}
	}
	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return nil, "", &ImageProcessingError{Operation: "decode", Err: err}
	}
	if err := ValidateImage(img); err != nil {
		return nil, "", err
	}
	return img, format, nil
}

// EncodePNG writes img to w as PNG.
func EncodePNG(w io.Writer, img image.Image) error {
	if err := imaging.Encode(w, img, imaging.PNG); err != nil {
		return &ImageProcessingError{Operation: "encode", Err: err}
	}
	return nil
}

// PNGBytes encodes img as PNG and returns the bytes.
func PNGBytes(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := EncodePNG(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// SavePNG writes img to path as PNG, creating parent directories as needed.
func SavePNG(path string, img image.Image) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return &ImageProcessingError{Operation: "save", Err: err}
	}
	f, err := os.Create(path) //nolint:gosec // G304: output path chosen by the user
	if err != nil {
		return &ImageProcessingError{Operation: "save", Err: err}
	}
	if err := EncodePNG(f, img); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return &ImageProcessingError{Operation: "save", Err: err}
	}
	return nil
}
