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

// Package chunking splits lines that exceed the model's input window into
// token-id windows.
package chunking

import (
	"go.uber.org/zap"
)

// DefaultMaxTokens is the 512-token model window minus [CLS] and [SEP].
const DefaultMaxTokens = 510

// Tokenizer is the subset of the model tokenizer the chunker needs.
type Tokenizer interface {
	// Encode returns token ids without special tokens.
	Encode(text string) []int
	// Decode turns ids back into text, skipping special tokens.
	Decode(ids []int) string
}

// Config configures a Chunker.
type Config struct {
	// MaxTokens is the window size M (0 = DefaultMaxTokens).
	MaxTokens int
}

// Chunker splits text into segments of at most MaxTokens token ids.
// Entities straddling a window seam are split; seams are not stitched.
type Chunker struct {
	tokenizer Tokenizer
	maxTokens int
	logger    *zap.Logger
}

// NewChunker creates a Chunker. A nil logger disables logging.
func NewChunker(tokenizer Tokenizer, config Config, logger *zap.Logger) *Chunker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.MaxTokens <= 0 {
		config.MaxTokens = DefaultMaxTokens
	}
	return &Chunker{
		tokenizer: tokenizer,
		maxTokens: config.MaxTokens,
		logger:    logger,
	}
}

// MaxTokens returns the configured window size.
func (c *Chunker) MaxTokens() int {
	return c.maxTokens
}

// Chunk returns the segments for one line. A line that fits is returned
// unchanged, without an encode/decode round-trip. An empty line has no
// segments.
func (c *Chunker) Chunk(line string) []string {
	if line == "" {
		return nil
	}

	ids := c.tokenizer.Encode(line)
	if len(ids) <= c.maxTokens {
		return []string{line}
	}

	windows := Windows(ids, c.maxTokens)
	segments := make([]string, 0, len(windows))
	for i, w := range windows {
		s := c.tokenizer.Decode(w)
		if s == "" {
			c.logger.Warn("Dropping window that failed to decode",
				zap.Int("window", i),
				zap.Int("num_windows", len(windows)),
				zap.Int("window_tokens", len(w)))
			continue
		}
		segments = append(segments, s)
	}

	c.logger.Debug("Split oversized line",
		zap.Int("num_tokens", len(ids)),
		zap.Int("max_tokens", c.maxTokens),
		zap.Int("num_segments", len(segments)))

	return segments
}

// Windows partitions ids into consecutive windows of size; the last window
// may be shorter. Concatenating the windows reproduces ids.
func Windows(ids []int, size int) [][]int {
	if size <= 0 || len(ids) == 0 {
		return nil
	}
	windows := make([][]int, 0, (len(ids)+size-1)/size)
	for start := 0; start < len(ids); start += size {
		end := min(start+size, len(ids))
		windows = append(windows, ids[start:end:end])
	}
	return windows
}
