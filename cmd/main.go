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

// Command skillex extracts canonical skill names from CVs and job postings.
//
// Usage:
//
//	skillex run                     # Start the HTTP server
//	skillex extract cv.pdf          # Extract skills from local files
//	skillex pull <owner/name>       # Download a model from HuggingFace
//	skillex mcp                     # Serve the extract_skills MCP tool on stdio
package main

import (
	"github.com/antflydb/skillex/cmd/cmd"
)

// https://goreleaser.com/cookbooks/using-main.version/
//
// main.version: Current Git tag (the v prefix is stripped) or the name of the snapshot
var version = "dev"

func main() {
	cmd.Version = version
	cmd.Execute()
}
