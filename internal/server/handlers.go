package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/MeKo-Tech/sticker/internal/compose"
	"github.com/MeKo-Tech/sticker/internal/config"
	"github.com/MeKo-Tech/sticker/internal/pipeline"
	"github.com/MeKo-Tech/sticker/internal/utils"
	"github.com/MeKo-Tech/sticker/internal/version"
)

// Response formats accepted by /sticker and /ws.
const (
	formatPNG         = "png"
	formatTransparent = "transparent"
	formatMask        = "mask"
	formatJSON        = "json"
)

var supportedFormats = []string{formatPNG, formatTransparent, formatMask, formatJSON}

// healthHandler returns server health status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := HealthResponse{
		Status:  "healthy",
		Version: version.Version,
		Time:    time.Now().UTC().Format(time.RFC3339),
	}
	writeJSON(w, http.StatusOK, response)
}

// infoHandler describes the pipeline configuration and request defaults.
func (s *Server) infoHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.pipeline == nil {
		s.writeErrorResponse(w, "Sticker pipeline not initialized", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, InfoResponse{
		Pipeline: s.pipeline.Info(),
		Defaults: s.defaults,
		Formats:  supportedFormats,
	})
}

// parseParams reads sticker parameters through get, starting from
// defaults. Recognised keys: style, border, refine, sensitivity, low, high
// and padding. Border is limited to the slider range.
func parseParams(get func(string) string, defaults pipeline.Params) (pipeline.Params, error) {
	p := defaults

	if v := strings.TrimSpace(get("style")); v != "" {
		style, err := compose.ParseStyle(v)
		if err != nil {
			return p, &pipeline.ParamError{Field: "style", Value: v, Reason: `must be "normal" or "black and white"`}
		}
		p.Style = style
	}

	intParam := func(key string, dst *int) error {
		v := strings.TrimSpace(get(key))
		if v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return &pipeline.ParamError{Field: key, Value: v, Reason: "must be an integer"}
		}
		*dst = n
		return nil
	}

	if err := intParam("border", &p.BorderThickness); err != nil {
		return p, err
	}
	if p.BorderThickness < config.MinBorder || p.BorderThickness > config.MaxBorder {
		return p, &pipeline.ParamError{
			Field:  "border",
			Value:  p.BorderThickness,
			Reason: fmt.Sprintf("must be between %d and %d", config.MinBorder, config.MaxBorder),
		}
	}

	if v := strings.TrimSpace(get("refine")); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return p, &pipeline.ParamError{Field: "refine", Value: v, Reason: "must be a boolean"}
		}
		p.UseRefinement = b
	}

	sensitivity := 0
	if err := intParam("sensitivity", &sensitivity); err != nil {
		return p, err
	}
	if sensitivity != 0 {
		if sensitivity < pipeline.MinSensitivity || sensitivity > pipeline.MaxSensitivity {
			return p, &pipeline.ParamError{
				Field:  "sensitivity",
				Value:  sensitivity,
				Reason: fmt.Sprintf("must be between %d and %d", pipeline.MinSensitivity, pipeline.MaxSensitivity),
			}
		}
		p.LowThreshold, p.HighThreshold = pipeline.ThresholdsForSensitivity(sensitivity)
	}
	if err := intParam("low", &p.LowThreshold); err != nil {
		return p, err
	}
	if err := intParam("high", &p.HighThreshold); err != nil {
		return p, err
	}
	if err := intParam("padding", &p.Padding); err != nil {
		return p, err
	}

	return p, p.Validate()
}

// parseFormat normalises the requested response format. Empty means png.
func parseFormat(v string) (string, error) {
	v = strings.ToLower(strings.TrimSpace(v))
	if v == "" {
		return formatPNG, nil
	}
	for _, f := range supportedFormats {
		if v == f {
			return v, nil
		}
	}
	return "", &pipeline.ParamError{Field: "format", Value: v, Reason: "must be one of " + strings.Join(supportedFormats, ", ")}
}

// encodeImages encodes the result images as PNG. Steps are rendered only
// when requested.
func encodeImages(res *pipeline.Result, steps bool) (StickerImages, error) {
	var out StickerImages
	var err error
	if out.Sticker, err = utils.PNGBytes(res.Sticker); err != nil {
		return out, err
	}
	if out.Transparent, err = utils.PNGBytes(res.Transparent); err != nil {
		return out, err
	}
	if out.Mask, err = utils.PNGBytes(res.Mask); err != nil {
		return out, err
	}
	if steps {
		sheet, err := pipeline.RenderSteps(res)
		if err != nil {
			return out, err
		}
		if out.Steps, err = utils.PNGBytes(sheet); err != nil {
			return out, err
		}
	}
	return out, nil
}

// statusForError maps processing errors to HTTP status codes.
func statusForError(err error) int {
	var pe *pipeline.ParamError
	var ipe *utils.ImageProcessingError
	switch {
	case errors.As(err, &pe):
		return http.StatusBadRequest
	case errors.As(err, &ipe):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// errorType names an error class for clients.
func errorType(err error) string {
	var pe *pipeline.ParamError
	var ipe *utils.ImageProcessingError
	switch {
	case errors.As(err, &pe):
		return "invalid_parameter"
	case errors.As(err, &ipe):
		return "image_error"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "internal_error"
	}
}

// writeProcessingError writes err with its mapped status code.
func (s *Server) writeProcessingError(w http.ResponseWriter, err error) {
	resp := ErrorResponse{Error: err.Error(), Type: errorType(err)}
	var pe *pipeline.ParamError
	if errors.As(err, &pe) {
		resp.Field = pe.Field
	}
	writeJSON(w, statusForError(err), resp)
}

// writeErrorResponse writes a JSON error response.
func (s *Server) writeErrorResponse(w http.ResponseWriter, message string, statusCode int) {
	writeJSON(w, statusCode, ErrorResponse{Error: message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}
