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
	"strings"
)

// SubwordPrefix marks a WordPiece continuation token.
const SubwordPrefix = "##"

// span is an open skill being accumulated. texts and scores are parallel:
// one slot per non-continuation token.
type span struct {
	texts  []string
	scores []float64
}

func (s *span) candidate() Candidate {
	var sum float64
	for _, v := range s.scores {
		sum += v
	}
	return Candidate{
		Phrase: strings.TrimSpace(strings.ToLower(strings.Join(s.texts, " "))),
		Score:  sum / float64(len(s.scores)),
	}
}

// MergeBIO reduces token annotations into skill candidates, in order.
//
// A continuation token ("##" prefix) is glued onto the last slot of the open
// span and its score is ADDED to that slot's score; it never starts a span and
// is dropped when no span is open. B opens a span (emitting any open one),
// I adds a slot to the open span and is ignored otherwise, and any other
// label closes the open span.
//
// Because continuation scores are summed, a word split into k pieces can
// contribute up to k to the span mean. Thresholds are tuned against this.
func MergeBIO(anns []Annotation) []Candidate {
	candidates := make([]Candidate, 0)
	var current *span

	emit := func() {
		if current != nil {
			candidates = append(candidates, current.candidate())
			current = nil
		}
	}

	for _, a := range anns {
		if piece, ok := strings.CutPrefix(a.Text, SubwordPrefix); ok {
			if current != nil {
				last := len(current.texts) - 1
				current.texts[last] += piece
				current.scores[last] += float64(a.Score)
			}
			continue
		}

		switch {
		case IsBIOBegin(a.Label):
			emit()
			current = &span{
				texts:  []string{a.Text},
				scores: []float64{float64(a.Score)},
			}
		case IsBIOInside(a.Label):
			if current != nil {
				current.texts = append(current.texts, a.Text)
				current.scores = append(current.scores, float64(a.Score))
			}
		default:
			emit()
		}
	}
	emit()

	return candidates
}
