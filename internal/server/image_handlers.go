package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/MeKo-Tech/sticker/internal/pipeline"
	"github.com/MeKo-Tech/sticker/internal/utils"
)

// stickerRequest is a parsed POST /sticker request.
type stickerRequest struct {
	img      image.Image
	filename string
	params   pipeline.Params
	format   string
	steps    bool
}

// stickerHandler turns an uploaded photo into a sticker.
func (s *Server) stickerHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.pipeline == nil {
		s.writeErrorResponse(w, "Sticker pipeline not initialized", http.StatusServiceUnavailable)
		return
	}

	req, ok := s.parseStickerRequest(w, r)
	if !ok {
		stickerRequestsTotal.WithLabelValues("http", "error").Inc()
		return // error already written
	}

	res, err := s.process(r.Context(), "http", req.img, req.params)
	if err != nil {
		s.writeProcessingError(w, err)
		return
	}

	s.writeStickerResponse(w, req, res)
}

// parseStickerRequest reads the multipart form. It writes the error
// response itself and reports false on failure.
func (s *Server) parseStickerRequest(w http.ResponseWriter, r *http.Request) (*stickerRequest, bool) {
	limit := s.maxUploadMB * 1024 * 1024
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	if err := r.ParseMultipartForm(limit); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || errors.Is(err, multipart.ErrMessageTooLarge) {
			s.writeErrorResponse(w, "File too large", http.StatusRequestEntityTooLarge)
		} else {
			s.writeErrorResponse(w, "Failed to parse form data", http.StatusBadRequest)
		}
		return nil, false
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		s.writeErrorResponse(w, "No image file provided", http.StatusBadRequest)
		return nil, false
	}
	defer func() { _ = file.Close() }()

	if header.Size > limit {
		s.writeErrorResponse(w, "File too large", http.StatusRequestEntityTooLarge)
		return nil, false
	}
	uploadSizeBytes.Observe(float64(header.Size))

	data, err := io.ReadAll(file)
	if err != nil {
		s.writeErrorResponse(w, "Failed to read image data", http.StatusInternalServerError)
		return nil, false
	}

	params, err := parseParams(r.FormValue, s.defaults)
	if err != nil {
		s.writeProcessingError(w, err)
		return nil, false
	}
	format, err := parseFormat(r.FormValue("format"))
	if err != nil {
		s.writeProcessingError(w, err)
		return nil, false
	}
	steps, _ := strconv.ParseBool(r.FormValue("steps"))

	img, _, err := utils.DecodeImage(bytes.NewReader(data))
	if err != nil {
		s.writeProcessingError(w, err)
		return nil, false
	}

	return &stickerRequest{img: img, filename: header.Filename, params: params, format: format, steps: steps}, true
}

// process runs the pipeline under the request timeout and records metrics.
func (s *Server) process(ctx context.Context, source string, img image.Image, params pipeline.Params) (*pipeline.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	res, err := s.pipeline.Process(ctx, img, params)
	duration := time.Since(start)

	if err != nil {
		stickerRequestsTotal.WithLabelValues(source, "error").Inc()
		slog.Warn("Sticker processing failed", "source", source, "error", err)
		return nil, err
	}

	stickerRequestsTotal.WithLabelValues(source, "success").Inc()
	stickerProcessingDuration.WithLabelValues(source).Observe(duration.Seconds())
	stickerCoverage.WithLabelValues(source).Observe(res.Coverage)
	if params.UseRefinement {
		refinementOutcomes.WithLabelValues(strconv.FormatBool(res.Refined)).Inc()
	}
	return res, nil
}

// writeStickerResponse writes res in the requested format.
func (s *Server) writeStickerResponse(w http.ResponseWriter, req *stickerRequest, res *pipeline.Result) {
	var img image.Image
	switch req.format {
	case formatJSON:
		images, err := encodeImages(res, req.steps)
		if err != nil {
			s.writeErrorResponse(w, fmt.Sprintf("encoding failed: %v", err), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, StickerResponse{
			Success: true,
			Summary: pipeline.Summarize(req.filename, res),
			Images:  images,
		})
		return
	case formatTransparent:
		img = res.Transparent
	case formatMask:
		img = res.Mask
	default:
		img = res.Sticker
	}

	data, err := utils.PNGBytes(img)
	if err != nil {
		s.writeErrorResponse(w, fmt.Sprintf("encoding failed: %v", err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("X-Sticker-Coverage", strconv.FormatFloat(res.Coverage, 'f', 2, 64))
	w.Header().Set("X-Sticker-Subject-Found", strconv.FormatBool(res.SubjectFound()))
	_, _ = w.Write(data)
}
