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

package skills

import (
	"context"
	"strings"

	"github.com/antflydb/skillex/lib/esco"
	"github.com/antflydb/skillex/lib/ner"
	"go.uber.org/zap"
)

// DefaultThreshold is the confidence at or above which a candidate is kept
// without consulting the knowledge base.
const DefaultThreshold = 0.3

// KnowledgeBase resolves a phrase to a canonical skill. Implementations
// absorb their own failures: any error is reported as no match.
type KnowledgeBase interface {
	Lookup(ctx context.Context, phrase string) (esco.Skill, bool)
}

// Decision records what the reconciler did with a candidate.
type Decision string

const (
	// DecisionAccepted means the score met the threshold.
	DecisionAccepted Decision = "accepted"
	// DecisionMatched means the knowledge base supplied the name.
	DecisionMatched Decision = "matched"
	// DecisionDropped means the knowledge base had no match.
	DecisionDropped Decision = "dropped"
)

// Reconciled is one candidate with its outcome.
type Reconciled struct {
	ner.Candidate
	Decision Decision `json:"decision"`
	// Name is the emitted skill name; empty when dropped.
	Name string `json:"name,omitempty"`
	// URI is the knowledge-base concept for matched candidates.
	URI string `json:"uri,omitempty"`
}

// Reconciler applies the confidence threshold.
type Reconciler struct {
	kb     KnowledgeBase
	logger *zap.Logger
}

// NewReconciler creates a Reconciler. A nil logger disables logging.
func NewReconciler(kb KnowledgeBase, logger *zap.Logger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{kb: kb, logger: logger}
}

// Reconcile returns the skill names for candidates, in order.
func (r *Reconciler) Reconcile(ctx context.Context, candidates []ner.Candidate, threshold float64) []string {
	names := make([]string, 0, len(candidates))
	for _, rc := range r.ReconcileDetailed(ctx, candidates, threshold) {
		if rc.Decision != DecisionDropped {
			names = append(names, rc.Name)
		}
	}
	return names
}

// ReconcileDetailed is Reconcile with per-candidate decisions. Candidates
// scoring at or above threshold keep their phrase verbatim and cause no
// lookup. The rest are looked up one at a time.
func (r *Reconciler) ReconcileDetailed(ctx context.Context, candidates []ner.Candidate, threshold float64) []Reconciled {
	out := make([]Reconciled, 0, len(candidates))
	for _, c := range candidates {
		// Model scores are float32; compare at that precision so a score
		// equal to the threshold is not lost to widening.
		if float32(c.Score) >= float32(threshold) {
			out = append(out, Reconciled{Candidate: c, Decision: DecisionAccepted, Name: c.Phrase})
			continue
		}

		skill, ok := r.kb.Lookup(ctx, c.Phrase)
		if !ok || strings.TrimSpace(skill.NormalizedName) == "" {
			r.logger.Debug("Dropped low-confidence candidate",
				zap.String("phrase", c.Phrase),
				zap.Float64("score", c.Score))
			out = append(out, Reconciled{Candidate: c, Decision: DecisionDropped})
			continue
		}
		out = append(out, Reconciled{
			Candidate: c,
			Decision:  DecisionMatched,
			Name:      skill.NormalizedName,
			URI:       skill.URI,
		})
	}
	return out
}
