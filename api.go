// Copyright 2025 Antfly, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package skillex

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/antflydb/skillex/lib/document"
	"github.com/antflydb/skillex/lib/skills"
	"github.com/bytedance/sonic/decoder"
	"github.com/bytedance/sonic/encoder"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Endpoint names used in logs and metrics.
const (
	endpointCVFile      = "extract_cv_file"
	endpointCV          = "extract_cv"
	endpointOpportunity = "extract_opportunity"
)

// multipartMemory is the part of an upload parsed into memory; the rest
// spills to disk.
const multipartMemory = 8 << 20

// ExtractCVRequest is the body of POST /api/extract/cv.
type ExtractCVRequest struct {
	Text                string   `json:"text"`
	ConfidenceThreshold *float64 `json:"confidence_threshold,omitempty"`
}

// ExtractOpportunityRequest is the body of POST /api/extract/opportunity.
type ExtractOpportunityRequest struct {
	Description         string   `json:"description"`
	Requirements        string   `json:"requirements,omitempty"`
	ConfidenceThreshold *float64 `json:"confidence_threshold,omitempty"`
}

// ExtractResponse is returned by every extract endpoint.
type ExtractResponse struct {
	Skills []string `json:"skills"`
	// Candidates is only set when the request has ?debug=true.
	Candidates []skills.Reconciled `json:"candidates,omitempty"`
}

// handleApiExtractCVFile extracts skills from an uploaded PDF, DOCX or TXT.
func (n *Node) handleApiExtractCVFile(w http.ResponseWriter, r *http.Request) {
	defer func() { _ = r.Body.Close() }()

	if r.ContentLength > n.maxUploadBytes {
		http.Error(w, fmt.Sprintf("upload exceeds %d bytes", n.maxUploadBytes), http.StatusRequestEntityTooLarge)
		return
	}

	threshold, err := n.queryThreshold(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	release, ok := n.acquire(w, r)
	if !ok {
		return
	}
	defer release()

	r.Body = http.MaxBytesReader(w, r.Body, n.maxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, fmt.Sprintf("upload exceeds %d bytes", n.maxUploadBytes), http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, fmt.Sprintf("parsing multipart form: %v", err), http.StatusBadRequest)
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "file is required", http.StatusBadRequest)
		return
	}
	defer func() { _ = file.Close() }()

	format, err := document.DetectFormat(header.Filename)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	path, err := saveUpload(file, string(format))
	if err != nil {
		n.logger.Error("Saving upload failed", zap.Error(err))
		http.Error(w, "saving upload", http.StatusInternalServerError)
		return
	}
	defer func() { _ = os.Remove(path) }()

	text, err := n.documents.Extract(r.Context(), path)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, document.ErrUnsupportedFormat):
			status = http.StatusBadRequest
		case errors.Is(err, document.ErrFileTooLarge):
			status = http.StatusRequestEntityTooLarge
		case errors.Is(err, document.ErrConversionFailed):
			status = http.StatusUnprocessableEntity
		}
		n.requestLogger(r).Warn("Document extraction failed",
			zap.String("filename", header.Filename),
			zap.Error(err))
		http.Error(w, err.Error(), status)
		return
	}

	n.extract(w, r, endpointCVFile, text, threshold)
}

// handleApiExtractCV extracts skills from raw CV text.
func (n *Node) handleApiExtractCV(w http.ResponseWriter, r *http.Request) {
	defer func() { _ = r.Body.Close() }()

	var req ExtractCVRequest
	if err := decoder.NewStreamDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("decoding request: %v", err), http.StatusBadRequest)
		return
	}
	threshold, err := n.resolveThreshold(req.ConfidenceThreshold)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	text := document.Clean(req.Text)
	if text == "" {
		writeEmpty(w)
		return
	}

	release, ok := n.acquire(w, r)
	if !ok {
		return
	}
	defer release()

	n.extract(w, r, endpointCV, text, threshold)
}

// handleApiExtractOpportunity extracts skills from a job posting.
func (n *Node) handleApiExtractOpportunity(w http.ResponseWriter, r *http.Request) {
	defer func() { _ = r.Body.Close() }()

	var req ExtractOpportunityRequest
	if err := decoder.NewStreamDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("decoding request: %v", err), http.StatusBadRequest)
		return
	}
	threshold, err := n.resolveThreshold(req.ConfidenceThreshold)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	text := req.Description
	if strings.TrimSpace(req.Requirements) != "" {
		text += "\n" + req.Requirements
	}
	text = document.Clean(text)
	if text == "" {
		writeEmpty(w)
		return
	}

	release, ok := n.acquire(w, r)
	if !ok {
		return
	}
	defer release()

	n.extract(w, r, endpointOpportunity, text, threshold)
}

// extract runs the pipeline and writes the response.
func (n *Node) extract(w http.ResponseWriter, r *http.Request, endpoint, text string, threshold float64) {
	logger := n.requestLogger(r)

	if n.extractor == nil {
		http.Error(w, "skill model not loaded", http.StatusServiceUnavailable)
		return
	}

	res, err := n.extractor.ExtractSkillsDetailed(r.Context(), text, threshold)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			http.Error(w, "request cancelled", http.StatusRequestTimeout)
			return
		}
		logger.Error("Skill extraction failed", zap.String("endpoint", endpoint), zap.Error(err))
		http.Error(w, fmt.Sprintf("extracting skills: %v", err), http.StatusInternalServerError)
		return
	}

	RecordExtraction(endpoint, res)
	logger.Debug("Extracted skills",
		zap.String("endpoint", endpoint),
		zap.Int("num_segments", res.NumSegments),
		zap.Int("num_candidates", len(res.Candidates)),
		zap.Int("num_skills", len(res.Skills)),
		zap.Float64("threshold", threshold))

	resp := ExtractResponse{Skills: res.Skills}
	if resp.Skills == nil {
		resp.Skills = []string{}
	}
	if debug, _ := strconv.ParseBool(r.URL.Query().Get("debug")); debug {
		resp.Candidates = res.Candidates
	}
	writeJSON(w, http.StatusOK, resp)
}

// acquire applies backpressure via the request queue. On failure the
// response has been written and ok is false.
func (n *Node) acquire(w http.ResponseWriter, r *http.Request) (release func(), ok bool) {
	release, err := n.requestQueue.Acquire(r.Context())
	if err != nil {
		switch err {
		case ErrQueueFull:
			RecordQueueRejection()
			WriteQueueFullResponse(w, 5*time.Second)
		case ErrRequestTimeout:
			RecordQueueTimeout()
			WriteTimeoutResponse(w)
		default:
			http.Error(w, "request cancelled", http.StatusRequestTimeout)
		}
		return nil, false
	}
	UpdateQueueMetrics(n.requestQueue.Stats())
	return release, true
}

func (n *Node) queryThreshold(r *http.Request) (float64, error) {
	raw := r.URL.Query().Get("confidence_threshold")
	if raw == "" {
		return n.defaultThreshold, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid confidence_threshold %q", raw)
	}
	return n.resolveThreshold(&v)
}

// resolveThreshold returns the default for nil and rejects values outside (0, 1].
func (n *Node) resolveThreshold(v *float64) (float64, error) {
	if v == nil {
		return n.defaultThreshold, nil
	}
	if math.IsNaN(*v) || *v <= 0 || *v > 1 {
		return 0, fmt.Errorf("confidence_threshold must be in (0, 1], got %v", *v)
	}
	return *v, nil
}

// saveUpload writes an upload to a temp file that keeps the extension the
// converters dispatch on.
func saveUpload(src io.Reader, ext string) (string, error) {
	f, err := os.CreateTemp("", "skillex-upload-*"+ext)
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}
	if _, err := io.Copy(f, src); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("writing temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("closing temp file: %w", err)
	}
	return filepath.Clean(f.Name()), nil
}

// writeEmpty answers text that is blank after cleaning without touching the
// queue or the model.
func writeEmpty(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, ExtractResponse{Skills: []string{}})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = encoder.NewStreamEncoder(w).Encode(v)
}

type requestIDKey struct{}

// RequestIDHeader carries the request id; incoming values are echoed.
const RequestIDHeader = "X-Request-ID"

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

func (n *Node) requestLogger(r *http.Request) *zap.Logger {
	if id, ok := r.Context().Value(requestIDKey{}).(string); ok {
		return n.logger.With(zap.String("request_id", id))
	}
	return n.logger
}

// statusRecorder captures the status code for metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// instrument records request duration by endpoint and status.
func instrument(endpoint string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		h(rec, r)
		RecordRequestDuration(endpoint, strconv.Itoa(rec.status), time.Since(start).Seconds())
	}
}

// corsMiddleware adds permissive CORS headers for the API
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With, X-Request-ID, Accept, Origin")
		w.Header().Set("Access-Control-Max-Age", "3600")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
