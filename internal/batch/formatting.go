package batch

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/MeKo-Tech/sticker/internal/pipeline"
)

// batchDocument is the structured form of a batch run.
type batchDocument struct {
	Images []pipeline.Summary     `json:"images" yaml:"images"`
	Stats  pipeline.ParallelStats `json:"stats"  yaml:"stats"`
}

// formatBatchResults formats the batch processing results in the specified format.
func formatBatchResults(r *Result, format string) (string, error) {
	switch format {
	case "json":
		return formatJSON(r)
	case "yaml":
		return formatYAML(r)
	case "csv":
		return pipeline.ToCSV(r.Summaries()...)
	case "", "text":
		return formatText(r), nil
	default:
		return "", fmt.Errorf("unsupported format: %s", format)
	}
}

func formatJSON(r *Result) (string, error) {
	bts, err := json.MarshalIndent(batchDocument{Images: r.Summaries(), Stats: r.Stats()}, "", "  ")
	return string(bts), err
}

func formatYAML(r *Result) (string, error) {
	bts, err := yaml.Marshal(batchDocument{Images: r.Summaries(), Stats: r.Stats()})
	return string(bts), err
}

// formatText prints one line per image followed by a totals line.
func formatText(r *Result) string {
	var output strings.Builder
	output.WriteString(pipeline.ToText(r.Summaries()...))
	stats := r.Stats()
	fmt.Fprintf(&output, "%d processed, %d failed, mean coverage %.2f%%\n",
		stats.ProcessedImages, stats.FailedImages, stats.MeanCoverage)
	return output.String()
}
