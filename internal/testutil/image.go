package testutil

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// ImageSize represents common image dimensions.
type ImageSize struct {
	Width  int
	Height int
}

var (
	// Common test image sizes.
	SmallSize    = ImageSize{160, 120}
	PortraitSize = ImageSize{400, 600}
	LargeSize    = ImageSize{1600, 1200}
)

// Shape selects the outline of the synthetic subject.
type Shape string

const (
	ShapeEllipse Shape = "ellipse"
	ShapeRect    Shape = "rect"
)

// SceneConfig describes a synthetic photo: a single solid subject on a plain
// background, optionally with pixel noise and a caption.
type SceneConfig struct {
	Size       ImageSize
	Background color.NRGBA
	Subject    color.NRGBA
	Shape      Shape
	// Scale is the subject's half-extent as a fraction of the image size.
	Scale float64
	// Noise is the maximum absolute per-channel perturbation.
	Noise int
	Seed  uint64
	Label string
}

// DefaultSceneConfig returns a high-contrast portrait scene: a dark blue
// ellipse covering roughly 28% of a white 400x600 image.
func DefaultSceneConfig() SceneConfig {
	return SceneConfig{
		Size:       PortraitSize,
		Background: color.NRGBA{255, 255, 255, 255},
		Subject:    color.NRGBA{40, 60, 160, 255},
		Shape:      ShapeEllipse,
		Scale:      0.3,
	}
}

// SubjectArea returns the share of the image covered by the subject as
// rendered by GenerateScene, in percent.
func (c SceneConfig) SubjectArea() float64 {
	n := 0
	for y := range c.Size.Height {
		for x := range c.Size.Width {
			if c.inSubject(x, y) {
				n++
			}
		}
	}
	return float64(n) / float64(c.Size.Width*c.Size.Height) * 100
}

func (c SceneConfig) inSubject(x, y int) bool {
	w, h := float64(c.Size.Width), float64(c.Size.Height)
	ax, ay := c.Scale*w, c.Scale*h
	dx, dy := float64(x)+0.5-w/2, float64(y)+0.5-h/2
	switch c.Shape {
	case ShapeRect:
		return math.Abs(dx) <= ax && math.Abs(dy) <= ay
	default:
		return (dx*dx)/(ax*ax)+(dy*dy)/(ay*ay) <= 1
	}
}

// GenerateScene renders cfg deterministically.
func GenerateScene(cfg SceneConfig) *image.NRGBA {
	w, h := cfg.Size.Width, cfg.Size.Height
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	state := cfg.Seed*6364136223846793005 + 1442695040888963407
	jitter := func(v uint8) uint8 {
		if cfg.Noise <= 0 {
			return v
		}
		state = state*6364136223846793005 + 1442695040888963407
		d := int((state>>33)%uint64(2*cfg.Noise+1)) - cfg.Noise
		return uint8(min(max(int(v)+d, 0), 255))
	}
	for y := range h {
		for x := range w {
			c := cfg.Background
			if cfg.Scale > 0 && cfg.inSubject(x, y) {
				c = cfg.Subject
			}
			img.SetNRGBA(x, y, color.NRGBA{jitter(c.R), jitter(c.G), jitter(c.B), 255})
		}
	}
	if cfg.Label != "" {
		drawLabel(img, cfg.Label, color.Black)
	}
	return img
}

// drawLabel writes text in the bottom-left corner with the basic font.
func drawLabel(img draw.Image, text string, col color.Color) {
	face := basicfont.Face7x13
	d := &font.Drawer{Dst: img, Src: image.NewUniform(col), Face: face}
	d.Dot = fixed.P(4, img.Bounds().Dy()-4)
	d.DrawString(text)
}

// CreateTestImage creates a uniform image with the specified dimensions and color.
func CreateTestImage(width, height int, backgroundColor color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), &image.Uniform{backgroundColor}, image.Point{}, draw.Src)
	return img
}

// CreateSubjectImage returns the default scene resized to width x height.
func CreateSubjectImage(width, height int) *image.NRGBA {
	cfg := DefaultSceneConfig()
	cfg.Size = ImageSize{width, height}
	return GenerateScene(cfg)
}

// SaveImage encodes img as PNG (or JPEG for .jpg paths) at path.
func SaveImage(t *testing.T, img image.Image, path string) {
	t.Helper()
	require.NoError(t, EnsureDir(filepath.Dir(path)), "Failed to create directory for %s", path)
	require.NoError(t, imaging.Save(img, path), "Failed to save image %s", path)
}

// LoadImage loads an image from the specified path.
func LoadImage(t *testing.T, path string) image.Image {
	t.Helper()
	img, err := LoadImageFile(path)
	require.NoError(t, err)
	return img
}

// LoadImageFile loads an image from the specified path (non-testing version).
func LoadImageFile(path string) (image.Image, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image file %s: %w", path, err)
	}
	return img, nil
}

// WriteScenes writes n scenes with different subject scales into dir and
// returns their paths in order.
func WriteScenes(t *testing.T, dir string, n int) []string {
	t.Helper()
	paths := make([]string, 0, n)
	for i := range n {
		cfg := DefaultSceneConfig()
		cfg.Size = SmallSize
		cfg.Scale = 0.2 + 0.05*float64(i%4)
		p := filepath.Join(dir, fmt.Sprintf("scene_%02d.png", i+1))
		SaveImage(t, GenerateScene(cfg), p)
		paths = append(paths, p)
	}
	return paths
}

// CompareImages reports whether the mean per-pixel RGBA distance between
// two equally sized images is within tolerance (0..1).
func CompareImages(img1, img2 image.Image, tolerance float64) bool {
	b1, b2 := img1.Bounds(), img2.Bounds()
	if b1.Size() != b2.Size() {
		return false
	}
	var total float64
	for y := range b1.Dy() {
		for x := range b1.Dx() {
			r1, g1, bb1, a1 := img1.At(b1.Min.X+x, b1.Min.Y+y).RGBA()
			r2, g2, bb2, a2 := img2.At(b2.Min.X+x, b2.Min.Y+y).RGBA()
			dr, dg := float64(r1)-float64(r2), float64(g1)-float64(g2)
			db, da := float64(bb1)-float64(bb2), float64(a1)-float64(a2)
			total += math.Sqrt(dr*dr + dg*dg + db*db + da*da)
		}
	}
	pixels := float64(b1.Dx() * b1.Dy())
	if pixels == 0 {
		return true
	}
	return total/pixels/math.Sqrt(4*65535*65535) <= tolerance
}

// TempFile returns a path inside a fresh test directory.
func TempFile(t *testing.T, name string) string {
	t.Helper()
	return filepath.Join(t.TempDir(), name)
}

// WriteFile writes data to path, creating parent directories.
func WriteFile(t *testing.T, path string, data []byte) {
	t.Helper()
	require.NoError(t, EnsureDir(filepath.Dir(path)))
	require.NoError(t, os.WriteFile(path, data, 0o600))
}
