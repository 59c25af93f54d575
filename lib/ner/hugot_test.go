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

//go:build onnx && ORT

package ner

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// findModelPath searches for a skill tagging model in common locations.
func findModelPath(t *testing.T) string {
	t.Helper()

	homeDir, _ := os.UserHomeDir()
	paths := []string{
		os.Getenv("SKILLEX_MODEL_DIR"),
		filepath.Join(homeDir, ".skillex", "models", "jjzha", "jobbert_skill_extraction"),
		"../../testdata/models/skill-ner",
	}

	for _, p := range paths {
		if p == "" {
			continue
		}
		if _, err := os.Stat(filepath.Join(p, "model.onnx")); err == nil {
			t.Logf("Found model at %s", p)
			return p
		}
	}
	return ""
}

func newTestAnnotator(t *testing.T) *PooledHugotAnnotator {
	t.Helper()
	modelPath := findModelPath(t)
	if modelPath == "" {
		t.Skip("skill model not found, skipping")
	}
	a, err := NewPooledHugotAnnotator(PooledHugotAnnotatorConfig{
		ModelPath: modelPath,
		PoolSize:  2,
		Logger:    zap.NewNop(),
	})
	require.NoError(t, err)
	return a
}

func TestAnnotate_EmitsOutsideTokens(t *testing.T) {
	a := newTestAnnotator(t)
	defer a.Close()

	anns, err := a.Annotate(context.Background(), "experience with python and kubernetes")
	require.NoError(t, err)
	require.NotEmpty(t, anns)

	var sawOutside bool
	for _, ann := range anns {
		sawOutside = sawOutside || IsBIOOutside(ann.Label)
	}
	assert.True(t, sawOutside, "O tokens must not be filtered")
}

func TestCloseWhileAnnotating(t *testing.T) {
	a := newTestAnnotator(t)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = a.Annotate(context.Background(), "managed a team of data engineers")
	}()

	time.Sleep(10 * time.Millisecond)
	_ = a.Close()
	wg.Wait()
}

func TestAnnotateAfterClose(t *testing.T) {
	a := newTestAnnotator(t)
	require.NoError(t, a.Close())

	var wg sync.WaitGroup
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = a.Close()
		}()
	}
	wg.Wait()

	_, err := a.Annotate(context.Background(), "sql")
	assert.ErrorIs(t, err, ErrAnnotatorClosed)
}
