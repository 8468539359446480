package batch

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/MeKo-Tech/sticker/internal/pipeline"
	"github.com/MeKo-Tech/sticker/internal/utils"
)

// OutputOptions selects the optional images written next to the sticker.
type OutputOptions struct {
	Transparent bool
	Mask        bool
	Steps       bool
}

// Outputs lists the files written for one source image. Empty fields were
// not requested.
type Outputs struct {
	Sticker     string `json:"sticker"               yaml:"sticker"`
	Transparent string `json:"transparent,omitempty" yaml:"transparent,omitempty"`
	Mask        string `json:"mask,omitempty"        yaml:"mask,omitempty"`
	Steps       string `json:"steps,omitempty"       yaml:"steps,omitempty"`
}

// OutputPaths returns every output name for src inside dir:
// <name>_sticker.png, <name>_transparent.png, <name>_mask.png and
// <name>_steps.png.
func OutputPaths(dir, src string) Outputs {
	base := filepath.Base(src)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	name := func(suffix string) string { return filepath.Join(dir, stem+"_"+suffix+".png") }
	return Outputs{
		Sticker:     name("sticker"),
		Transparent: name("transparent"),
		Mask:        name("mask"),
		Steps:       name("steps"),
	}
}

// WriteOutputs saves the images of res for src into dir.
func WriteOutputs(res *pipeline.Result, dir, src string, opts OutputOptions) (Outputs, error) {
	all := OutputPaths(dir, src)
	written := Outputs{Sticker: all.Sticker}

	if err := utils.SavePNG(all.Sticker, res.Sticker); err != nil {
		return Outputs{}, fmt.Errorf("failed to write sticker for %s: %w", src, err)
	}
	if opts.Transparent {
		if err := utils.SavePNG(all.Transparent, res.Transparent); err != nil {
			return written, fmt.Errorf("failed to write transparent sticker for %s: %w", src, err)
		}
		written.Transparent = all.Transparent
	}
	if opts.Mask {
		if err := utils.SavePNG(all.Mask, res.Mask); err != nil {
			return written, fmt.Errorf("failed to write mask for %s: %w", src, err)
		}
		written.Mask = all.Mask
	}
	if opts.Steps {
		sheet, err := pipeline.RenderSteps(res)
		if err != nil {
			return written, fmt.Errorf("failed to render steps for %s: %w", src, err)
		}
		if err := utils.SavePNG(all.Steps, sheet); err != nil {
			return written, fmt.Errorf("failed to write steps for %s: %w", src, err)
		}
		written.Steps = all.Steps
	}
	return written, nil
}

// writeAll saves outputs for every successful result. Write failures are
// recorded against the image.
func writeAll(r *Result, dir string, opts OutputOptions) {
	r.Written = make([]Outputs, len(r.ImagePaths))
	for i, res := range r.Results {
		if res == nil {
			continue
		}
		out, err := WriteOutputs(res, dir, r.ImagePaths[i], opts)
		r.Written[i] = out
		if err != nil {
			r.Errors[i] = err
		}
	}
}
