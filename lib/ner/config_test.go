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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadNERConfig_HFConfig(t *testing.T) {
	dir := t.TempDir()
	cfg := `{"id2label": {"0": "B", "1": "I", "2": "O"}, "label2id": {"B": 0, "I": 1, "O": 2}}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.json"), []byte(cfg), 0o644))

	got, err := LoadNERConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "I", "O"}, got.Labels)
	assert.Equal(t, 2, got.Label2ID["O"])
}

func TestLoadNERConfig_PrefersNERConfig(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.json"),
		[]byte(`{"id2label": {"0": "O"}}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ner_config.json"),
		[]byte(`{"labels": ["O", "B-SKILL", "I-SKILL"]}`), 0o644))

	got, err := LoadNERConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"O", "B-SKILL", "I-SKILL"}, got.Labels)
	assert.Equal(t, "B-SKILL", got.ID2Label["1"])
	assert.Equal(t, 2, got.Label2ID["I-SKILL"])
}

func TestLoadNERConfig_Missing(t *testing.T) {
	_, err := LoadNERConfig(t.TempDir())
	assert.Error(t, err)
}

func TestLoadNERConfig_NoID2Label(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.json"), []byte(`{"hidden_size": 768}`), 0o644))

	_, err := LoadNERConfig(dir)
	assert.ErrorContains(t, err, "id2label")
}

func TestValidateBIOLabels(t *testing.T) {
	assert.NoError(t, ValidateBIOLabels(DefaultLabels))
	assert.NoError(t, ValidateBIOLabels([]string{"O", "B-SKILL", "I-SKILL"}))
	assert.Error(t, ValidateBIOLabels([]string{"POSITIVE", "NEGATIVE"}))
	assert.Error(t, ValidateBIOLabels([]string{"O", "B-SKILL"}))
}

func TestLabelHelpers(t *testing.T) {
	tests := []struct {
		label   string
		begin   bool
		inside  bool
		outside bool
		typ     string
	}{
		{label: "B", begin: true},
		{label: "I", inside: true},
		{label: "O", outside: true},
		{label: "", outside: true},
		{label: "B-SKILL", begin: true, typ: "SKILL"},
		{label: "I-KNOWLEDGE", inside: true, typ: "KNOWLEDGE"},
		{label: "BACKEND", typ: "BACKEND"},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			assert.Equal(t, tt.begin, IsBIOBegin(tt.label))
			assert.Equal(t, tt.inside, IsBIOInside(tt.label))
			assert.Equal(t, tt.outside, IsBIOOutside(tt.label))
			assert.Equal(t, tt.typ, GetLabelType(tt.label))
		})
	}
}

func TestEntityTypes(t *testing.T) {
	tests := []struct {
		name   string
		labels []string
		want   []string
	}{
		{name: "untyped", labels: DefaultLabels, want: []string{}},
		{name: "single type", labels: []string{"O", "B-SKILL", "I-SKILL"}, want: []string{"SKILL"}},
		{
			name:   "sorted and deduplicated",
			labels: []string{"O", "B-TOOL", "I-TOOL", "B-SKILL", "I-SKILL"},
			want:   []string{"SKILL", "TOOL"},
		},
		{name: "plain class labels", labels: []string{"POSITIVE", "NEGATIVE"}, want: []string{"NEGATIVE", "POSITIVE"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EntityTypes(tt.labels))
		})
	}
}
