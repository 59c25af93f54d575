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

// Package skillex turns CV and job posting text into a deduplicated list of
// canonical skill names and serves that pipeline over HTTP.
package skillex

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path/filepath"
	"time"

	"github.com/antflydb/skillex/lib/chunking"
	"github.com/antflydb/skillex/lib/document"
	"github.com/antflydb/skillex/lib/esco"
	"github.com/antflydb/skillex/lib/hugot"
	"github.com/antflydb/skillex/lib/ner"
	"github.com/antflydb/skillex/lib/skills"
	"github.com/antflydb/skillex/lib/tokenizer"
	"go.uber.org/zap"
)

// Defaults applied by Config.ApplyDefaults.
const (
	DefaultApiUrl         = "http://localhost:11500"
	DefaultMaxUploadMB    = 20
	DefaultRequestTimeout = 30 * time.Second
)

// DefaultShutdownTimeout is the default time to wait for graceful shutdown
const DefaultShutdownTimeout = 30 * time.Second

// EscoConfig configures the ESCO knowledge base client.
type EscoConfig struct {
	URL      string        `json:"url,omitempty"`
	Language string        `json:"language,omitempty"`
	Limit    int           `json:"limit,omitempty"`
	Timeout  time.Duration `json:"timeout,omitempty"`
}

// Config is the service configuration, usually built from viper.
type Config struct {
	ApiUrl          string   `json:"api_url,omitempty"`
	ModelDir        string   `json:"model_dir,omitempty"`
	OnnxFilename    string   `json:"onnx_filename,omitempty"`
	BackendPriority []string `json:"backend_priority,omitempty"`
	// PoolSize is the number of model pipelines (0 = NumCPU).
	PoolSize             int        `json:"pool_size,omitempty"`
	MaxTokens            int        `json:"max_tokens,omitempty"`
	ConfidenceThreshold  float64    `json:"confidence_threshold,omitempty"`
	InferenceConcurrency int        `json:"inference_concurrency,omitempty"`
	Esco                 EscoConfig `json:"esco"`

	MaxUploadMB           int           `json:"max_upload_mb,omitempty"`
	MaxConcurrentRequests int           `json:"max_concurrent_requests,omitempty"`
	MaxQueueSize          int           `json:"max_queue_size,omitempty"`
	RequestTimeout        time.Duration `json:"request_timeout,omitempty"`
}

// ApplyDefaults fills zero values.
func (c *Config) ApplyDefaults() {
	if c.ApiUrl == "" {
		c.ApiUrl = DefaultApiUrl
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = chunking.DefaultMaxTokens
	}
	if c.ConfidenceThreshold <= 0 || c.ConfidenceThreshold > 1 {
		c.ConfidenceThreshold = skills.DefaultThreshold
	}
	if c.InferenceConcurrency <= 0 {
		c.InferenceConcurrency = 1
	}
	if c.Esco.URL == "" {
		c.Esco.URL = esco.DefaultBaseURL
	}
	if c.Esco.Language == "" {
		c.Esco.Language = esco.DefaultLanguage
	}
	if c.Esco.Limit <= 0 {
		c.Esco.Limit = esco.DefaultLimit
	}
	if c.Esco.Timeout <= 0 {
		c.Esco.Timeout = esco.DefaultTimeout
	}
	if c.MaxUploadMB <= 0 {
		c.MaxUploadMB = DefaultMaxUploadMB
	}
	if c.MaxQueueSize <= 0 {
		c.MaxQueueSize = DefaultMaxQueueSize
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
}

// Pipeline owns the loaded model, tokenizer and knowledge base client and
// exposes the skill extractor built on them. Shared read-only after
// construction.
type Pipeline struct {
	*skills.Extractor

	annotator *ner.PooledHugotAnnotator
	chunker   *chunking.Chunker
	modelName string
}

// NewPipeline loads the model from cfg.ModelDir and wires the extraction
// pipeline. cfg should have defaults applied.
func NewPipeline(cfg Config, logger *zap.Logger) (*Pipeline, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ModelDir == "" {
		return nil, errors.New("model_dir is required")
	}

	if len(cfg.BackendPriority) > 0 {
		priority, err := hugot.ParseBackendPriority(cfg.BackendPriority)
		if err != nil {
			return nil, fmt.Errorf("parsing backend priority: %w", err)
		}
		for _, t := range hugot.Unavailable(priority) {
			logger.Warn("Inference backend not available in this build",
				zap.String("backend", string(t)))
		}
		hugot.SetPriority(priority)
	}

	modelName := filepath.Base(filepath.Clean(cfg.ModelDir))
	start := time.Now()

	tok, err := tokenizer.LoadWordPieceTokenizer(cfg.ModelDir)
	if err != nil {
		return nil, fmt.Errorf("loading tokenizer: %w", err)
	}

	annotator, err := ner.NewPooledHugotAnnotator(ner.PooledHugotAnnotatorConfig{
		ModelPath:    cfg.ModelDir,
		OnnxFilename: cfg.OnnxFilename,
		PoolSize:     cfg.PoolSize,
		Logger:       logger.Named("ner"),
	})
	if err != nil {
		return nil, fmt.Errorf("loading skill tagger: %w", err)
	}

	elapsed := time.Since(start)
	RecordModelLoadDuration(modelName, elapsed.Seconds())
	logger.Info("Loaded skill model",
		zap.String("model", modelName),
		zap.String("backend", hugot.BackendName()),
		zap.Strings("labels", annotator.Labels()),
		zap.Duration("duration", elapsed))

	chunker := chunking.NewChunker(tok, chunking.Config{MaxTokens: cfg.MaxTokens}, logger.Named("chunker"))

	kb := esco.NewClient(esco.Config{
		BaseURL:  cfg.Esco.URL,
		Language: cfg.Esco.Language,
		Limit:    cfg.Esco.Limit,
		Timeout:  cfg.Esco.Timeout,
		Observer: RecordKBLookup,
		Logger:   logger.Named("esco"),
	})

	extractor := skills.NewExtractor(chunker, annotator, kb, skills.Config{
		InferenceConcurrency: cfg.InferenceConcurrency,
		Logger:               logger.Named("skills"),
	})

	return &Pipeline{
		Extractor: extractor,
		annotator: annotator,
		chunker:   chunker,
		modelName: modelName,
	}, nil
}

// ModelName is the base name of the model directory.
func (p *Pipeline) ModelName() string {
	return p.modelName
}

// Close releases the model pipelines.
func (p *Pipeline) Close() error {
	return p.annotator.Close()
}

// SkillExtractor runs the skill pipeline on cleaned text.
type SkillExtractor interface {
	ExtractSkillsDetailed(ctx context.Context, text string, threshold float64) (*skills.Result, error)
}

// DocumentExtractor converts an uploaded file to cleaned text.
type DocumentExtractor interface {
	Extract(ctx context.Context, path string) (string, error)
}

// NodeConfig configures a Node.
type NodeConfig struct {
	Extractor        SkillExtractor
	Documents        DocumentExtractor
	Queue            *RequestQueue
	DefaultThreshold float64
	MaxUploadBytes   int64
	ModelName        string
}

// Node serves the HTTP API.
type Node struct {
	logger *zap.Logger

	extractor SkillExtractor
	documents DocumentExtractor

	// Request queue for backpressure control
	requestQueue *RequestQueue

	defaultThreshold float64
	maxUploadBytes   int64
	modelName        string
}

// NewNode creates a Node. A nil Extractor serves /readyz as not ready.
func NewNode(logger *zap.Logger, cfg NodeConfig) *Node {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Queue == nil {
		cfg.Queue = NewRequestQueue(RequestQueueConfig{}, logger)
	}
	if cfg.DefaultThreshold <= 0 || cfg.DefaultThreshold > 1 {
		cfg.DefaultThreshold = skills.DefaultThreshold
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = document.DefaultMaxFileSize
	}
	if cfg.Documents == nil {
		cfg.Documents = document.NewExtractor(document.Config{
			MaxFileSize: cfg.MaxUploadBytes,
			Logger:      logger.Named("document"),
		})
	}
	return &Node{
		logger:           logger,
		extractor:        cfg.Extractor,
		documents:        cfg.Documents,
		requestQueue:     cfg.Queue,
		defaultThreshold: cfg.DefaultThreshold,
		maxUploadBytes:   cfg.MaxUploadBytes,
		modelName:        cfg.ModelName,
	}
}

// Handler returns the root handler with health and API routes.
func (n *Node) Handler() http.Handler {
	mux := http.NewServeMux()

	// Health endpoints (outside /api prefix for k8s compatibility)
	mux.HandleFunc("GET /healthz", n.handleHealthz)
	mux.HandleFunc("GET /readyz", n.handleReadyz)

	mux.HandleFunc("GET /api/version", n.handleApiVersion)
	mux.HandleFunc("POST /api/extract/cv-file", instrument(endpointCVFile, n.handleApiExtractCVFile))
	mux.HandleFunc("POST /api/extract/cv", instrument(endpointCV, n.handleApiExtractCV))
	mux.HandleFunc("POST /api/extract/opportunity", instrument(endpointOpportunity, n.handleApiExtractOpportunity))

	return corsMiddleware(requestIDMiddleware(mux))
}

// RunAsServer loads the pipeline and serves the API until ctx is done.
// If readyC is non-nil, it will be closed when the server is ready to accept requests.
func RunAsServer(ctx context.Context, zl *zap.Logger, config Config, readyC chan struct{}) error {
	zl = zl.Named("skillex")
	config.ApplyDefaults()
	zl.Info("Starting skillex node", zap.Any("config", config))

	u, err := url.Parse(config.ApiUrl)
	if err != nil {
		return fmt.Errorf("invalid API URL %q: %w", config.ApiUrl, err)
	}

	pipeline, err := NewPipeline(config, zl)
	if err != nil {
		return err
	}
	defer func() {
		if err := pipeline.Close(); err != nil {
			zl.Warn("Error closing skill pipeline", zap.Error(err))
		}
	}()

	requestQueue := NewRequestQueue(RequestQueueConfig{
		MaxConcurrentRequests: config.MaxConcurrentRequests,
		MaxQueueSize:          config.MaxQueueSize,
		RequestTimeout:        config.RequestTimeout,
	}, zl.Named("queue"))

	node := NewNode(zl, NodeConfig{
		Extractor:        pipeline,
		Queue:            requestQueue,
		DefaultThreshold: config.ConfidenceThreshold,
		MaxUploadBytes:   int64(config.MaxUploadMB) << 20,
		ModelName:        pipeline.ModelName(),
	})

	srv := &http.Server{
		Addr:        u.Host,
		Handler:     node.Handler(),
		ReadTimeout: 540 * time.Second,
	}

	// Start server in goroutine
	serverErr := make(chan error, 1)
	go func() {
		zl.Info("Skillex api server starting", zap.String("address", config.ApiUrl))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
		close(serverErr)
	}()

	// Signal readiness after server starts
	if readyC != nil {
		close(readyC)
	}

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
		zl.Info("Shutdown signal received, starting graceful shutdown...")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
	defer shutdownCancel()

	// Stop accepting new connections
	srv.SetKeepAlivesEnabled(false)

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zl.Warn("Graceful shutdown failed, forcing close",
			zap.Error(err),
			zap.Duration("timeout", DefaultShutdownTimeout))
		_ = srv.Close()
	} else {
		zl.Info("Graceful shutdown completed successfully")
	}

	zl.Info("HTTP server stopped")
	return nil
}
