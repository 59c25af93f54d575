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

// Package skills turns document text into a deduplicated list of canonical
// skill names: segment, annotate, merge, reconcile, dedupe.
package skills

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/antflydb/skillex/lib/ner"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// sampleSize bounds the candidate phrases included in debug logs.
const sampleSize = 10

// Segmenter splits one line into model-sized segments.
type Segmenter interface {
	Chunk(line string) []string
}

// Config configures an Extractor.
type Config struct {
	// InferenceConcurrency bounds parallel Annotate calls for one text
	// (0 or 1 = sequential). Output order never depends on it.
	InferenceConcurrency int
	Logger               *zap.Logger
}

// Result is the outcome of one extraction.
type Result struct {
	Skills            []string      `json:"skills"`
	Candidates        []Reconciled  `json:"candidates"`
	NumSegments       int           `json:"num_segments"`
	InferenceDuration time.Duration `json:"inference_duration"`
}

// Extractor runs the skill extraction pipeline. It holds no per-request
// state and is safe for concurrent use.
type Extractor struct {
	segmenter   Segmenter
	annotator   ner.Annotator
	reconciler  *Reconciler
	concurrency int
	logger      *zap.Logger
}

// NewExtractor wires the pipeline stages together.
func NewExtractor(segmenter Segmenter, annotator ner.Annotator, kb KnowledgeBase, cfg Config) *Extractor {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	concurrency := cfg.InferenceConcurrency
	if concurrency < 1 {
		concurrency = 1
	}
	return &Extractor{
		segmenter:   segmenter,
		annotator:   annotator,
		reconciler:  NewReconciler(kb, logger.Named("reconciler")),
		concurrency: concurrency,
		logger:      logger,
	}
}

// ExtractSkills returns the canonical skills found in text. Empty text
// yields an empty list. Errors come only from the annotator or ctx.
func (e *Extractor) ExtractSkills(ctx context.Context, text string, threshold float64) ([]string, error) {
	res, err := e.ExtractSkillsDetailed(ctx, text, threshold)
	if err != nil {
		return nil, err
	}
	return res.Skills, nil
}

// ExtractSkillsDetailed is ExtractSkills plus the per-candidate decisions.
func (e *Extractor) ExtractSkillsDetailed(ctx context.Context, text string, threshold float64) (*Result, error) {
	segments := e.segment(text)
	if len(segments) == 0 {
		return &Result{Skills: []string{}, Candidates: []Reconciled{}}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	anns, err := e.annotate(ctx, segments)
	if err != nil {
		return nil, err
	}
	inference := time.Since(start)

	candidates := ner.MergeBIO(anns)
	e.logger.Debug("Extracted candidates",
		zap.Int("num_segments", len(segments)),
		zap.Int("num_tokens", len(anns)),
		zap.Int("num_candidates", len(candidates)),
		zap.Strings("sample", samplePhrases(candidates)))

	reconciled := e.reconciler.ReconcileDetailed(ctx, candidates, threshold)
	names := make([]string, 0, len(reconciled))
	for _, rc := range reconciled {
		if rc.Decision != DecisionDropped {
			names = append(names, rc.Name)
		}
	}

	return &Result{
		Skills:            Dedupe(names),
		Candidates:        reconciled,
		NumSegments:       len(segments),
		InferenceDuration: inference,
	}, nil
}

// segment splits text into trimmed, non-blank lines and chunks each one.
func (e *Extractor) segment(text string) []string {
	var segments []string
	for line := range strings.SplitSeq(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		segments = append(segments, e.segmenter.Chunk(line)...)
	}
	return segments
}

// annotate runs the annotator over segments and concatenates the tokens in
// segment order.
func (e *Extractor) annotate(ctx context.Context, segments []string) ([]ner.Annotation, error) {
	perSegment := make([][]ner.Annotation, len(segments))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i, seg := range segments {
		g.Go(func() error {
			anns, err := e.annotator.Annotate(gctx, seg)
			if err != nil {
				return fmt.Errorf("annotating segment %d: %w", i, err)
			}
			perSegment[i] = anns
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var total int
	for _, anns := range perSegment {
		total += len(anns)
	}
	out := make([]ner.Annotation, 0, total)
	for _, anns := range perSegment {
		out = append(out, anns...)
	}
	return out, nil
}

func samplePhrases(candidates []ner.Candidate) []string {
	n := min(len(candidates), sampleSize)
	out := make([]string, n)
	for i := range n {
		out[i] = candidates[i].Phrase
	}
	return out
}
