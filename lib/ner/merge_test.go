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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeBIO(t *testing.T) {
	tests := []struct {
		name string
		anns []Annotation
		want []Candidate
	}{
		{
			name: "empty input",
			anns: nil,
			want: []Candidate{},
		},
		{
			name: "continuation score is summed into the slot",
			anns: []Annotation{
				{Text: "py", Label: "B-SKILL", Score: 0.5},
				{Text: "##thon", Label: "I-SKILL", Score: 0.25},
			},
			want: []Candidate{{Phrase: "python", Score: 0.75}},
		},
		{
			name: "inside tokens add slots and are averaged",
			anns: []Annotation{
				{Text: "machine", Label: "B-SKILL", Score: 0.5},
				{Text: "learning", Label: "I-SKILL", Score: 1},
			},
			want: []Candidate{{Phrase: "machine learning", Score: 0.75}},
		},
		{
			name: "outside closes the span",
			anns: []Annotation{
				{Text: "Java", Label: "B-SKILL", Score: 0.5},
				{Text: "and", Label: "O", Score: 1},
				{Text: "SQL", Label: "B-SKILL", Score: 0.25},
			},
			want: []Candidate{
				{Phrase: "java", Score: 0.5},
				{Phrase: "sql", Score: 0.25},
			},
		},
		{
			name: "begin after begin emits the first span",
			anns: []Annotation{
				{Text: "Go", Label: "B", Score: 0.5},
				{Text: "Rust", Label: "B", Score: 0.5},
			},
			want: []Candidate{
				{Phrase: "go", Score: 0.5},
				{Phrase: "rust", Score: 0.5},
			},
		},
		{
			name: "inside without open span is ignored",
			anns: []Annotation{
				{Text: "stray", Label: "I-SKILL", Score: 0.9},
				{Text: "Docker", Label: "B-SKILL", Score: 0.5},
			},
			want: []Candidate{{Phrase: "docker", Score: 0.5}},
		},
		{
			name: "orphan continuation is dropped",
			anns: []Annotation{
				{Text: "##ing", Label: "B-SKILL", Score: 0.9},
				{Text: "word", Label: "O", Score: 0.9},
			},
			want: []Candidate{},
		},
		{
			name: "continuation after outside does not reopen",
			anns: []Annotation{
				{Text: "Kafka", Label: "B", Score: 0.5},
				{Text: "is", Label: "O", Score: 0.9},
				{Text: "##ok", Label: "I", Score: 0.9},
			},
			want: []Candidate{{Phrase: "kafka", Score: 0.5}},
		},
		{
			name: "continuation glues onto last slot only",
			anns: []Annotation{
				{Text: "natural", Label: "B", Score: 0.5},
				{Text: "lang", Label: "I", Score: 0.25},
				{Text: "##uage", Label: "I", Score: 0.25},
			},
			want: []Candidate{{Phrase: "natural language", Score: 0.5}},
		},
		{
			name: "untyped labels behave like typed labels",
			anns: []Annotation{
				{Text: "Project", Label: "B", Score: 0.5},
				{Text: "Management", Label: "I", Score: 0.5},
				{Text: ".", Label: "O", Score: 1},
			},
			want: []Candidate{{Phrase: "project management", Score: 0.5}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MergeBIO(tt.anns)
			require.Len(t, got, len(tt.want))
			assert.NotNil(t, got)
			for i := range tt.want {
				assert.Equal(t, tt.want[i].Phrase, got[i].Phrase)
				assert.InDelta(t, tt.want[i].Score, got[i].Score, 1e-9)
			}
		})
	}
}

func TestMergeBIO_SubwordPython(t *testing.T) {
	got := MergeBIO([]Annotation{
		{Text: "py", Label: "B-SK", Score: 0.9},
		{Text: "##thon", Label: "I-SK", Score: 0.8},
	})

	require.Len(t, got, 1)
	assert.Equal(t, "python", got[0].Phrase)
	// One slot holding 0.9 + 0.8.
	assert.InDelta(t, 1.7, got[0].Score, 1e-6)
}

func TestMergeBIO_OneCandidatePerSpan(t *testing.T) {
	anns := []Annotation{
		{Text: "a", Label: "B", Score: 0.5},
		{Text: "b", Label: "I", Score: 0.5},
		{Text: "x", Label: "O", Score: 0.5},
		{Text: "c", Label: "B", Score: 0.5},
		{Text: "d", Label: "B", Score: 0.5},
		{Text: "e", Label: "I", Score: 0.5},
		{Text: "f", Label: "I", Score: 0.5},
	}

	got := MergeBIO(anns)
	phrases := make([]string, len(got))
	for i, c := range got {
		phrases[i] = c.Phrase
	}
	assert.Equal(t, []string{"a b", "c", "d e f"}, phrases)
}
