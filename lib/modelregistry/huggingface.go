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

// Package modelregistry downloads skill tagging models from HuggingFace Hub.
package modelregistry

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/gomlx/go-huggingface/hub"
	"go.uber.org/zap"
)

// RepoRef is a parsed "owner/name" HuggingFace repository id.
type RepoRef struct {
	Owner string
	Name  string
}

// FullName returns "owner/name".
func (r RepoRef) FullName() string {
	return r.Owner + "/" + r.Name
}

// DirPath returns the model directory relative to the models root.
func (r RepoRef) DirPath() string {
	return filepath.Join(r.Owner, r.Name)
}

// ParseRepoID parses "owner/name", accepting an optional "hf:" prefix.
func ParseRepoID(repoID string) (RepoRef, error) {
	s := strings.TrimPrefix(strings.TrimSpace(repoID), "hf:")
	owner, name, ok := strings.Cut(s, "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") ||
		owner == ".." || name == ".." {
		return RepoRef{}, fmt.Errorf("invalid repo id %q: want owner/name", repoID)
	}
	return RepoRef{Owner: owner, Name: name}, nil
}

// ProgressHandler is called to report download progress.
type ProgressHandler func(downloaded, total int64, filename string)

// HuggingFaceClient pulls ONNX token classification models from HuggingFace Hub.
type HuggingFaceClient struct {
	token           string
	progressHandler ProgressHandler
	logger          *zap.Logger
}

// HFClientOption configures the HuggingFace client.
type HFClientOption func(*HuggingFaceClient)

// NewHuggingFaceClient creates a new HuggingFace client.
func NewHuggingFaceClient(opts ...HFClientOption) *HuggingFaceClient {
	c := &HuggingFaceClient{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithHFToken sets the HuggingFace API token for gated models.
func WithHFToken(token string) HFClientOption {
	return func(c *HuggingFaceClient) { c.token = token }
}

// WithHFProgressHandler sets the progress handler for downloads.
func WithHFProgressHandler(h ProgressHandler) HFClientOption {
	return func(c *HuggingFaceClient) { c.progressHandler = h }
}

// WithHFLogger sets the logger.
func WithHFLogger(logger *zap.Logger) HFClientOption {
	return func(c *HuggingFaceClient) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Pull downloads the model and tokenizer files of repoID into
// destDir/owner/name and returns that directory.
// variant selects the ONNX file: "", "fp16", "q4", "q4f16" or "quantized".
func (c *HuggingFaceClient) Pull(ctx context.Context, repoID, destDir, variant string) (string, error) {
	ref, err := ParseRepoID(repoID)
	if err != nil {
		return "", err
	}
	if !IsValidVariant(variant) {
		return "", fmt.Errorf("invalid variant %q (valid: %s)", variant, strings.Join(ValidVariants()[1:], ", "))
	}

	repo := hub.New(ref.FullName())
	if c.token != "" {
		repo = repo.WithAuth(c.token)
	}

	var files []string
	for fileName, err := range repo.IterFileNames() {
		if err != nil {
			return "", fmt.Errorf("listing files: %w", err)
		}
		files = append(files, fileName)
	}

	toDownload := selectModelFiles(files, variant)
	if !slices.ContainsFunc(toDownload, func(f string) bool { return strings.HasSuffix(f, ".onnx") }) {
		return "", fmt.Errorf("no %s ONNX model found in %s", onnxBase(variant), ref.FullName())
	}

	modelDir := filepath.Join(destDir, ref.DirPath())
	if err := os.MkdirAll(modelDir, 0o755); err != nil {
		return "", fmt.Errorf("creating directory: %w", err)
	}

	for _, fileName := range toDownload {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		localPath, err := repo.DownloadFile(fileName)
		if err != nil {
			return "", fmt.Errorf("downloading %s: %w", fileName, err)
		}

		// Flatten path (e.g., "onnx/model.onnx" -> "model.onnx")
		destName := filepath.Base(fileName)
		destPath := filepath.Join(modelDir, destName)
		if c.progressHandler != nil {
			c.progressHandler(0, 0, destName)
		}
		if err := copyFile(localPath, destPath); err != nil {
			return "", fmt.Errorf("copying %s: %w", fileName, err)
		}
		if c.progressHandler != nil {
			if info, err := os.Stat(destPath); err == nil {
				c.progressHandler(info.Size(), info.Size(), destName)
			}
		}
		c.logger.Debug("Downloaded model file", zap.String("file", fileName), zap.String("dest", destPath))
	}

	c.logger.Info("Pulled model",
		zap.String("repo", ref.FullName()),
		zap.String("dir", modelDir),
		zap.Int("files", len(toDownload)))
	return modelDir, nil
}

// tokenizerFiles are copied from anywhere in the repo, first match wins.
var tokenizerFiles = []string{
	"tokenizer.json",
	"tokenizer_config.json",
	"config.json",
	"special_tokens_map.json",
	"vocab.txt",
}

func onnxBase(variant string) string {
	switch variant {
	case "fp16":
		return "model_fp16"
	case "q4":
		return "model_q4"
	case "q4f16":
		return "model_q4f16"
	case "quantized":
		return "model_quantized"
	default:
		return "model"
	}
}

// selectModelFiles picks the tokenizer/config files and the ONNX model
// (plus its external data file) for variant.
func selectModelFiles(files []string, variant string) []string {
	var result []string
	for _, tf := range tokenizerFiles {
		for _, f := range files {
			if filepath.Base(f) == tf {
				result = append(result, f)
				break
			}
		}
	}

	base := onnxBase(variant)
	for _, f := range files {
		name := filepath.Base(f)
		if name == base+".onnx" || name == base+".onnx_data" {
			result = append(result, f)
		}
	}
	return result
}

func copyFile(src, dst string) error {
	srcFile, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening source: %w", err)
	}
	defer func() { _ = srcFile.Close() }()

	dstFile, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("creating destination: %w", err)
	}
	if _, err := io.Copy(dstFile, srcFile); err != nil {
		_ = dstFile.Close()
		return fmt.Errorf("copying: %w", err)
	}
	return dstFile.Close()
}

// ValidVariants returns the list of valid ONNX variant names.
func ValidVariants() []string {
	return []string{"", "fp16", "q4", "q4f16", "quantized"}
}

// IsValidVariant checks if a variant name is valid.
func IsValidVariant(variant string) bool {
	return slices.Contains(ValidVariants(), variant)
}
