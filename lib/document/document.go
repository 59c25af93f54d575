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

// Package document extracts plain text from uploaded CVs.
package document

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"code.sajari.com/docconv"
	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"
)

var (
	// ErrUnsupportedFormat is returned for file extensions other than .pdf, .docx and .txt.
	ErrUnsupportedFormat = errors.New("unsupported file type")
	// ErrConversionFailed wraps a converter failure.
	ErrConversionFailed = errors.New("document conversion failed")
	// ErrFileTooLarge is returned when the file exceeds MaxFileSize.
	ErrFileTooLarge = errors.New("file too large")
)

// DefaultMaxFileSize is the largest file Extract accepts by default.
const DefaultMaxFileSize = 20 << 20

// Format is a supported input format, identified by extension.
type Format string

const (
	FormatPDF  Format = ".pdf"
	FormatDOCX Format = ".docx"
	FormatTXT  Format = ".txt"
)

// DetectFormat returns the format for path's extension (case-insensitive).
func DetectFormat(path string) (Format, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); Format(ext) {
	case FormatPDF, FormatDOCX, FormatTXT:
		return Format(ext), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
}

// Config configures an Extractor.
type Config struct {
	// MaxFileSize in bytes (0 = DefaultMaxFileSize).
	MaxFileSize int64
	Logger      *zap.Logger
}

// Extractor converts files to cleaned text.
type Extractor struct {
	maxFileSize int64
	logger      *zap.Logger
}

// NewExtractor creates an Extractor.
func NewExtractor(cfg Config) *Extractor {
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = DefaultMaxFileSize
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Extractor{maxFileSize: cfg.MaxFileSize, logger: cfg.Logger}
}

// Extract returns the cleaned text of the file at path.
func (e *Extractor) Extract(ctx context.Context, path string) (string, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return "", err
	}

	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", filepath.Base(path), err)
	}
	if info.Size() > e.maxFileSize {
		return "", fmt.Errorf("%w: %d bytes (max %d)", ErrFileTooLarge, info.Size(), e.maxFileSize)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var raw string
	switch format {
	case FormatTXT:
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("reading %s: %w", filepath.Base(path), err)
		}
		if !utf8.Valid(data) {
			return "", fmt.Errorf("%w: %s is not valid UTF-8", ErrConversionFailed, filepath.Base(path))
		}
		raw = string(data)
	default:
		res, err := docconv.ConvertPath(path)
		if err != nil {
			e.logger.Warn("Document conversion failed",
				zap.String("format", string(format)),
				zap.Error(err))
			return "", fmt.Errorf("%w: %w", ErrConversionFailed, err)
		}
		raw = res.Body
	}

	text := Clean(raw)
	e.logger.Debug("Extracted document text",
		zap.String("format", string(format)),
		zap.Int64("bytes", info.Size()),
		zap.Int("chars", len(text)))
	return text, nil
}

var (
	newlineRuns = regexp.MustCompile(`\n+`)
	blankRuns   = regexp.MustCompile(`[ \t]+`)
	pageMarkers = regexp.MustCompile(`page \d+ of \d+`)
	bullets     = regexp.MustCompile(`[•●▪■–—]`)
)

// Clean normalizes extracted text before it reaches the model: NFKC,
// lower case, single newlines, single spaces, no "page N of M" footers
// and no bullet or dash glyphs.
func Clean(text string) string {
	text = norm.NFKC.String(text)
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ToLower(text)
	text = newlineRuns.ReplaceAllString(text, "\n")
	text = blankRuns.ReplaceAllString(text, " ")
	text = pageMarkers.ReplaceAllString(text, "")
	text = bullets.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}
