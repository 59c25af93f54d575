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
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/bytedance/sonic"
)

// DefaultLabels is the label set of the skill taggers we ship with
// (jobbert-style B/I/O without an entity type suffix).
var DefaultLabels = []string{"B", "I", "O"}

// LabelConfig holds the label vocabulary of a token classification model.
type LabelConfig struct {
	// Labels is indexed by class id (e.g., ["B", "I", "O"] or ["O", "B-SKILL", "I-SKILL"])
	Labels []string `json:"labels"`

	ID2Label map[string]string `json:"id2label"`
	Label2ID map[string]int    `json:"label2id"`
}

// LoadNERConfig loads the label configuration from the model directory.
// It first tries ner_config.json, then falls back to the HuggingFace config.json.
func LoadNERConfig(modelPath string) (*LabelConfig, error) {
	nerConfigPath := filepath.Join(modelPath, "ner_config.json")
	if _, err := os.Stat(nerConfigPath); err == nil {
		return loadLabelConfigFromFile(nerConfigPath)
	}

	configPath := filepath.Join(modelPath, "config.json")
	if _, err := os.Stat(configPath); err == nil {
		return loadHFConfig(configPath)
	}

	return nil, fmt.Errorf("no config.json or ner_config.json found in %s", modelPath)
}

func loadLabelConfigFromFile(path string) (*LabelConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading ner config: %w", err)
	}

	var config LabelConfig
	if err := sonic.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parsing ner config: %w", err)
	}

	if len(config.ID2Label) == 0 && len(config.Labels) > 0 {
		config.ID2Label = make(map[string]string, len(config.Labels))
		config.Label2ID = make(map[string]int, len(config.Labels))
		for i, label := range config.Labels {
			config.ID2Label[strconv.Itoa(i)] = label
			config.Label2ID[label] = i
		}
	}

	return &config, nil
}

func loadHFConfig(path string) (*LabelConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading HF config: %w", err)
	}

	var hfConfig struct {
		ID2Label map[string]string `json:"id2label"`
		Label2ID map[string]int    `json:"label2id"`
	}
	if err := sonic.Unmarshal(data, &hfConfig); err != nil {
		return nil, fmt.Errorf("parsing HF config: %w", err)
	}

	if len(hfConfig.ID2Label) == 0 {
		return nil, errors.New("no id2label found in config.json")
	}

	labels := make([]string, len(hfConfig.ID2Label))
	for idStr, label := range hfConfig.ID2Label {
		id, err := strconv.Atoi(idStr)
		if err != nil {
			continue
		}
		if id >= 0 && id < len(labels) {
			labels[id] = label
		}
	}

	return &LabelConfig{
		Labels:   labels,
		ID2Label: hfConfig.ID2Label,
		Label2ID: hfConfig.Label2ID,
	}, nil
}

// ValidateBIOLabels reports an error when the label set cannot drive the
// merger: it needs at least one begin label and one inside label.
func ValidateBIOLabels(labels []string) error {
	var begin, inside bool
	for _, l := range labels {
		begin = begin || IsBIOBegin(l)
		inside = inside || IsBIOInside(l)
	}
	if !begin || !inside {
		return fmt.Errorf("label set %v is not BIO tagged", labels)
	}
	return nil
}

// IsBIOBegin checks if a label opens a span ("B" or "B-<type>").
func IsBIOBegin(label string) bool {
	return label == "B" || strings.HasPrefix(label, "B-")
}

// IsBIOInside checks if a label continues a span ("I" or "I-<type>").
func IsBIOInside(label string) bool {
	return label == "I" || strings.HasPrefix(label, "I-")
}

// IsBIOOutside checks if a label is an outside token (O).
func IsBIOOutside(label string) bool {
	return label == "O" || label == ""
}

// GetLabelType extracts the entity type from a BIO label.
// Returns empty string for O labels and for untyped B/I labels.
func GetLabelType(label string) string {
	if IsBIOOutside(label) {
		return ""
	}
	if len(label) >= 2 && label[1] == '-' {
		return label[2:]
	}
	if label == "B" || label == "I" {
		return ""
	}
	return label
}

// EntityTypes lists the distinct typed entities in a label set, sorted.
// Untyped taggers (plain B/I/O) yield none.
func EntityTypes(labels []string) []string {
	types := make([]string, 0)
	for _, l := range labels {
		if t := GetLabelType(l); t != "" && !slices.Contains(types, t) {
			types = append(types, t)
		}
	}
	slices.Sort(types)
	return types
}
