package mask

import (
	"context"
	"fmt"
	"image"

	"github.com/MeKo-Tech/sticker/internal/vision"
)

// openCVRefiner delegates segmentation to OpenCV's GrabCut.
type openCVRefiner struct {
	cfg RefineConfig
}

func (r *openCVRefiner) Name() string { return BackendOpenCV }

func (r *openCVRefiner) Refine(ctx context.Context, img *image.NRGBA, seed *image.Gray) (*image.Gray, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b := seed.Bounds()
	if img.Bounds().Size() != b.Size() {
		return nil, fmt.Errorf("image %v and seed %v differ in size", img.Bounds().Size(), b.Size())
	}
	trimap := SeedTrimap(seed)
	if !hasBothLabels(trimap) {
		return nil, ErrEmptySeed
	}

	labels, err := vision.GrabCut(img, trimap, r.cfg.Iterations)
	if err != nil {
		return nil, err
	}
	return TrimapToMask(labels, b), nil
}

func hasBothLabels(trimap []uint8) bool {
	var fg, bg bool
	for _, l := range trimap {
		switch l {
		case LabelForeground, LabelProbableForeground:
			fg = true
		default:
			bg = true
		}
		if fg && bg {
			return true
		}
	}
	return false
}
