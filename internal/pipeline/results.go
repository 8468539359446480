package pipeline

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Summary is the serialisable record of one processed image.
type Summary struct {
	File           string  `json:"file,omitempty"  yaml:"file,omitempty"`
	OriginalWidth  int     `json:"original_width"  yaml:"original_width"`
	OriginalHeight int     `json:"original_height" yaml:"original_height"`
	Width          int     `json:"width"           yaml:"width"`
	Height         int     `json:"height"          yaml:"height"`
	Coverage       float64 `json:"coverage"        yaml:"coverage"`
	SubjectFound   bool    `json:"subject_found"   yaml:"subject_found"`
	ContourPoints  int     `json:"contour_points"  yaml:"contour_points"`
	ContourArea    float64 `json:"contour_area"    yaml:"contour_area"`
	Style          string  `json:"style"           yaml:"style"`
	StyleLabel     string  `json:"style_label"     yaml:"style_label"`
	Border         int     `json:"border"          yaml:"border"`
	LowThreshold   int     `json:"low_threshold"   yaml:"low_threshold"`
	HighThreshold  int     `json:"high_threshold"  yaml:"high_threshold"`
	Padding        int     `json:"padding"         yaml:"padding"`
	Refinement     bool    `json:"refinement"      yaml:"refinement"`
	Refined        bool    `json:"refined"         yaml:"refined"`
	Timing         Timing  `json:"timing"          yaml:"timing"`
	Error          string  `json:"error,omitempty" yaml:"error,omitempty"`
}

// Summarize builds the summary of res. file may be empty.
func Summarize(file string, res *Result) Summary {
	s := Summary{File: file}
	if res == nil {
		return s
	}
	if res.Original != nil {
		b := res.Original.Bounds()
		s.OriginalWidth, s.OriginalHeight = b.Dx(), b.Dy()
	}
	if res.Resized != nil {
		s.Width, s.Height = res.Width(), res.Height()
	}
	s.Coverage = res.Coverage
	s.SubjectFound = res.SubjectFound()
	s.ContourPoints = len(res.Contour)
	s.ContourArea = res.ContourArea
	s.Style = string(res.Params.Style)
	s.StyleLabel = res.Params.Style.Label()
	s.Border = res.Params.BorderThickness
	s.LowThreshold = res.Params.LowThreshold
	s.HighThreshold = res.Params.HighThreshold
	s.Padding = res.Params.Padding
	s.Refinement = res.Params.UseRefinement
	s.Refined = res.Refined
	s.Timing = res.Timing
	return s
}

// FailedSummary records a file that could not be processed.
func FailedSummary(file string, err error) Summary {
	return Summary{File: file, Error: err.Error()}
}

// ToJSON serializes summaries to pretty JSON. A single summary is written as
// an object, several as an array.
func ToJSON(summaries ...Summary) (string, error) {
	var v any = summaries
	if len(summaries) == 1 {
		v = summaries[0]
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ToYAML serializes summaries to YAML, with the same shape rules as ToJSON.
func ToYAML(summaries ...Summary) (string, error) {
	var v any = summaries
	if len(summaries) == 1 {
		v = summaries[0]
	}
	b, err := yaml.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ToText renders one line per summary.
func ToText(summaries ...Summary) string {
	var sb strings.Builder
	for _, s := range summaries {
		name := s.File
		if name == "" {
			name = "image"
		}
		if s.Error != "" {
			fmt.Fprintf(&sb, "%s: error: %s\n", name, s.Error)
			continue
		}
		subject := "subject found"
		if !s.SubjectFound {
			subject = "no subject, full frame"
		}
		refine := "off"
		switch {
		case s.Refined:
			refine = "applied"
		case s.Refinement:
			refine = "kept contour mask"
		}
		fmt.Fprintf(&sb, "%s: %dx%d, coverage %.2f%%, %s, style %s, border %d, thresholds %d/%d, refinement %s\n",
			name, s.Width, s.Height, s.Coverage, subject, s.StyleLabel, s.Border,
			s.LowThreshold, s.HighThreshold, refine)
	}
	return sb.String()
}

// ToCSV exports summaries as CSV with a header row.
func ToCSV(summaries ...Summary) (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write([]string{"file", "width", "height", "coverage", "contour_points", "style", "border", "low", "high", "refined", "error"})
	for _, s := range summaries {
		_ = w.Write([]string{
			s.File,
			strconv.Itoa(s.Width),
			strconv.Itoa(s.Height),
			strconv.FormatFloat(s.Coverage, 'f', 2, 64),
			strconv.Itoa(s.ContourPoints),
			s.Style,
			strconv.Itoa(s.Border),
			strconv.Itoa(s.LowThreshold),
			strconv.Itoa(s.HighThreshold),
			strconv.FormatBool(s.Refined),
			s.Error,
		})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// ValidateResult performs consistency checks on a Result: all derived
// images share the working bounds, masks are binary, the band does not
// overlap the mask, and coverage matches the mask.
func ValidateResult(res *Result) error {
	if res == nil {
		return errors.New("nil result")
	}
	if res.Resized == nil || res.Mask == nil || res.Sticker == nil || res.Transparent == nil || res.CombinedMask == nil {
		return errors.New("incomplete result")
	}
	want := res.Resized.Bounds()
	for name, r := range map[string]image.Rectangle{
		"mask":        res.Mask.Bounds(),
		"combined":    res.CombinedMask.Bounds(),
		"sticker":     res.Sticker.Bounds(),
		"transparent": res.Transparent.Bounds(),
	} {
		if r != want {
			return fmt.Errorf("%s bounds %v differ from working bounds %v", name, r, want)
		}
	}
	for i, v := range res.Mask.Pix {
		if v != 0 && v != 255 {
			return fmt.Errorf("mask pixel %d has non-binary value %d", i, v)
		}
		if res.Band != nil && v != 0 && res.Band.Pix[i] != 0 {
			return fmt.Errorf("border band overlaps mask at pixel %d", i)
		}
		if v != 0 && res.CombinedMask.Pix[i] == 0 {
			return fmt.Errorf("combined mask misses mask pixel %d", i)
		}
	}
	if res.Coverage < 0 || res.Coverage > 100 {
		return fmt.Errorf("coverage %.2f out of range", res.Coverage)
	}
	if c := Coverage(res.Mask); c != res.Coverage {
		return fmt.Errorf("coverage %.2f does not match mask (%.2f)", res.Coverage, c)
	}
	return nil
}
