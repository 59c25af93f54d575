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

// Package ner runs BIO token classification over text and reduces the
// per-token labels into skill candidates.
package ner

import (
	"context"
	"errors"
)

// ErrAnnotatorClosed is returned when Annotate is called after Close.
var ErrAnnotatorClosed = errors.New("annotator is closed")

// Annotation is one model output token: the token text (sub-word pieces keep
// their "##" marker), its BIO label, and the model's confidence.
type Annotation struct {
	Text  string  `json:"text"`
	Label string  `json:"label"`
	Score float32 `json:"score"`
}

// Candidate is a merged skill span.
type Candidate struct {
	Phrase string  `json:"phrase"`
	Score  float64 `json:"score"`
}

// Annotator labels every token of a text segment, including O tokens, in
// text order. Implementations must be safe for concurrent use.
type Annotator interface {
	Annotate(ctx context.Context, text string) ([]Annotation, error)
	Close() error
}
