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

package ner

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/antflydb/skillex/lib/hugot"
	khugot "github.com/knights-analytics/hugot"
	"github.com/knights-analytics/hugot/pipelines"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

var _ Annotator = (*PooledHugotAnnotator)(nil)

// PooledHugotAnnotatorConfig configures a PooledHugotAnnotator.
type PooledHugotAnnotatorConfig struct {
	// ModelPath is the directory holding the ONNX model and tokenizer.json.
	ModelPath string
	// OnnxFilename defaults to "model.onnx".
	OnnxFilename string
	// PoolSize is the number of pipelines (0 = runtime.NumCPU()).
	PoolSize int
	// Session is reused when set; otherwise a session is created and owned.
	Session *khugot.Session
	Logger  *zap.Logger
}

// PooledHugotAnnotator manages multiple token classification pipelines for
// concurrent annotation. Each call acquires a pipeline slot via semaphore.
type PooledHugotAnnotator struct {
	session       *khugot.Session
	sessionShared bool
	pipelines     []*pipelines.TokenClassificationPipeline
	labels        *LabelConfig
	sem           *semaphore.Weighted
	nextPipeline  atomic.Uint64
	poolSize      int
	logger        *zap.Logger

	closeMu   sync.RWMutex
	closed    bool
	closeOnce sync.Once
	closeErr  error
}

// NewPooledHugotAnnotator loads the model pool. Aggregation is disabled and no
// label is ignored so that every token, O included, reaches MergeBIO.
func NewPooledHugotAnnotator(cfg PooledHugotAnnotatorConfig) (*PooledHugotAnnotator, error) {
	if cfg.ModelPath == "" {
		return nil, errors.New("model path is required")
	}
	if cfg.OnnxFilename == "" {
		cfg.OnnxFilename = "model.onnx"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = runtime.NumCPU()
	}

	labels, err := LoadNERConfig(cfg.ModelPath)
	if err != nil {
		logger.Warn("Failed to load label config, using default labels",
			zap.String("modelPath", cfg.ModelPath),
			zap.Error(err))
		labels = &LabelConfig{Labels: DefaultLabels}
	}
	if err := ValidateBIOLabels(labels.Labels); err != nil {
		logger.Warn("Model labels do not look like BIO tags; no skills will be merged",
			zap.Strings("labels", labels.Labels))
	}

	logger.Info("Initializing pooled skill tagger",
		zap.String("modelPath", cfg.ModelPath),
		zap.String("onnxFilename", cfg.OnnxFilename),
		zap.Int("poolSize", poolSize),
		zap.Int("numLabels", len(labels.Labels)),
		zap.Strings("entityTypes", EntityTypes(labels.Labels)),
		zap.String("backend", hugot.BackendName()))

	session, err := hugot.NewSessionOrUseExisting(cfg.Session)
	if err != nil {
		return nil, fmt.Errorf("creating hugot session: %w", err)
	}
	sessionShared := cfg.Session != nil

	pool := make([]*pipelines.TokenClassificationPipeline, poolSize)
	for i := range poolSize {
		name := fmt.Sprintf("skills:%s:%s:%d", cfg.ModelPath, cfg.OnnxFilename, i)
		pipeline, err := khugot.NewPipeline(session, khugot.TokenClassificationConfig{
			ModelPath:    cfg.ModelPath,
			Name:         name,
			OnnxFilename: cfg.OnnxFilename,
		})
		if err != nil {
			if !sessionShared {
				_ = session.Destroy()
			}
			logger.Error("Failed to create pipeline", zap.Int("index", i), zap.Error(err))
			return nil, fmt.Errorf("creating token classification pipeline %d: %w", i, err)
		}
		pipeline.AggregationStrategy = "NONE"
		pipeline.IgnoreLabels = nil
		pool[i] = pipeline
		logger.Debug("Created pipeline", zap.Int("index", i), zap.String("name", name))
	}

	logger.Info("Successfully created skill tagger pipelines", zap.Int("count", poolSize))

	return &PooledHugotAnnotator{
		session:       session,
		sessionShared: sessionShared,
		pipelines:     pool,
		labels:        labels,
		sem:           semaphore.NewWeighted(int64(poolSize)),
		poolSize:      poolSize,
		logger:        logger,
	}, nil
}

// Labels returns the model's label vocabulary.
func (p *PooledHugotAnnotator) Labels() []string {
	return p.labels.Labels
}

// Annotate labels every token of text.
func (p *PooledHugotAnnotator) Annotate(ctx context.Context, text string) ([]Annotation, error) {
	p.closeMu.RLock()
	defer p.closeMu.RUnlock()
	if p.closed {
		return nil, ErrAnnotatorClosed
	}
	if text == "" {
		return nil, nil
	}

	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("acquiring pipeline slot: %w", err)
	}
	defer p.sem.Release(1)

	idx := int(p.nextPipeline.Add(1) % uint64(p.poolSize))
	pipeline := p.pipelines[idx]

	output, err := pipeline.RunPipeline([]string{text})
	if err != nil {
		p.logger.Error("Pipeline inference failed",
			zap.Int("pipelineIndex", idx),
			zap.Error(err))
		return nil, fmt.Errorf("running token classification: %w", err)
	}
	if len(output.Entities) == 0 {
		return nil, nil
	}

	anns := make([]Annotation, 0, len(output.Entities[0]))
	for _, e := range output.Entities[0] {
		anns = append(anns, Annotation{
			Text:  e.Word,
			Label: e.Entity,
			Score: e.Score,
		})
	}

	p.logger.Debug("Annotation completed",
		zap.Int("pipelineIndex", idx),
		zap.Int("num_tokens", len(anns)))

	return anns, nil
}

// Close releases resources. In-flight calls finish first; later calls
// return ErrAnnotatorClosed. Only an owned session is destroyed.
func (p *PooledHugotAnnotator) Close() error {
	p.closeOnce.Do(func() {
		p.closeMu.Lock()
		defer p.closeMu.Unlock()
		p.closed = true
		if p.session != nil && !p.sessionShared {
			p.logger.Info("Destroying Hugot session (owned by this annotator)")
			p.closeErr = p.session.Destroy()
		}
	})
	return p.closeErr
}
