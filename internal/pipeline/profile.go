package pipeline

import (
	"sync/atomic"
)

// Profiler aggregates stage timings across multiple runs.
type Profiler struct {
	PreprocessTimeNs atomic.Int64
	EdgesTimeNs      atomic.Int64
	MaskTimeNs       atomic.Int64
	RefineTimeNs     atomic.Int64
	ComposeTimeNs    atomic.Int64
	TotalTimeNs      atomic.Int64
	ImagesProcessed  atomic.Int64
}

// Record adds the timings of one processed image.
func (p *Profiler) Record(t Timing) {
	p.PreprocessTimeNs.Add(t.PreprocessNs)
	p.EdgesTimeNs.Add(t.EdgesNs + t.ContourNs)
	p.MaskTimeNs.Add(t.MaskNs)
	p.RefineTimeNs.Add(t.RefineNs)
	p.ComposeTimeNs.Add(t.ComposeNs)
	p.TotalTimeNs.Add(t.TotalNs)
	p.ImagesProcessed.Add(1)
}

// Snapshot returns cumulative metrics in milliseconds for readability.
func (p *Profiler) Snapshot() map[string]any {
	imgs := p.ImagesProcessed.Load()
	stages := map[string]int64{
		"preprocess": p.PreprocessTimeNs.Load(),
		"edges":      p.EdgesTimeNs.Load(),
		"mask":       p.MaskTimeNs.Load(),
		"refine":     p.RefineTimeNs.Load(),
		"compose":    p.ComposeTimeNs.Load(),
		"total":      p.TotalTimeNs.Load(),
	}
	out := map[string]any{"images": imgs}
	for name, ns := range stages {
		out[name+"_ms_total"] = ns / 1_000_000
		if imgs > 0 {
			out[name+"_ms_per_image"] = float64(ns) / 1_000_000.0 / float64(imgs)
		}
	}
	return out
}
