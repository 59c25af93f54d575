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

// Package mcptool exposes skill extraction as a Model Context Protocol tool.
package mcptool

import (
	"context"
	"fmt"

	"github.com/antflydb/skillex/lib/document"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// SkillExtractor is satisfied by *skills.Extractor.
type SkillExtractor interface {
	ExtractSkills(ctx context.Context, text string, threshold float64) ([]string, error)
}

// ExtractSkillsInput is the input of the extract_skills tool.
type ExtractSkillsInput struct {
	Text                string  `json:"text" jsonschema:"Plain text of a CV or job description"`
	ConfidenceThreshold float64 `json:"confidence_threshold,omitempty" jsonschema:"Score at or above which a phrase is kept without an ESCO lookup (0-1, default 0.3)"`
}

// ExtractSkillsOutput is the output of the extract_skills tool.
type ExtractSkillsOutput struct {
	Skills []string `json:"skills"`
}

// MetadataExtractSkills describes the extract_skills tool.
var MetadataExtractSkills = &mcp.Tool{
	Name: "extract_skills",
	Description: "Extract a deduplicated list of skills from CV or job description text. " +
		"Low-confidence phrases are normalized against the ESCO skills taxonomy and dropped when ESCO has no match.",
	Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
}

// ExtractSkills returns the tool handler. Input text is cleaned like an
// uploaded document; blank text yields no skills without calling the
// extractor. A zero threshold in the input means defaultThreshold.
func ExtractSkills(extractor SkillExtractor, defaultThreshold float64) mcp.ToolHandlerFor[ExtractSkillsInput, ExtractSkillsOutput] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input ExtractSkillsInput) (*mcp.CallToolResult, ExtractSkillsOutput, error) {
		threshold := input.ConfidenceThreshold
		if threshold == 0 {
			threshold = defaultThreshold
		}
		if threshold < 0 || threshold > 1 {
			return nil, ExtractSkillsOutput{}, fmt.Errorf("confidence_threshold must be in (0, 1], got %v", threshold)
		}

		text := document.Clean(input.Text)
		if text == "" {
			return nil, ExtractSkillsOutput{Skills: []string{}}, nil
		}

		names, err := extractor.ExtractSkills(ctx, text, threshold)
		if err != nil {
			return nil, ExtractSkillsOutput{}, fmt.Errorf("extracting skills: %w", err)
		}
		if names == nil {
			names = []string{}
		}
		return nil, ExtractSkillsOutput{Skills: names}, nil
	}
}

// NewServer creates an MCP server with the extract_skills tool registered.
func NewServer(version string, extractor SkillExtractor, defaultThreshold float64) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "skillex",
		Version: version,
	}, nil)
	mcp.AddTool(server, MetadataExtractSkills, ExtractSkills(extractor, defaultThreshold))
	return server
}
