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

package skillex

import (
	"context"
	"testing"
	"time"

	"github.com/antflydb/skillex/lib/esco"
	"github.com/antflydb/skillex/lib/hugot"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestConfig_ApplyDefaults(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()

	assert.Equal(t, DefaultApiUrl, cfg.ApiUrl)
	assert.Equal(t, 510, cfg.MaxTokens)
	assert.Equal(t, 0.3, cfg.ConfidenceThreshold)
	assert.Equal(t, 1, cfg.InferenceConcurrency)
	assert.Equal(t, esco.DefaultBaseURL, cfg.Esco.URL)
	assert.Equal(t, "en", cfg.Esco.Language)
	assert.Equal(t, 5, cfg.Esco.Limit)
	assert.Equal(t, 6*time.Second, cfg.Esco.Timeout)
	assert.Equal(t, 20, cfg.MaxUploadMB)
	assert.Equal(t, DefaultMaxQueueSize, cfg.MaxQueueSize)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
}

func TestConfig_ApplyDefaultsKeepsValues(t *testing.T) {
	cfg := Config{
		ApiUrl:              "http://0.0.0.0:9000",
		MaxTokens:           128,
		ConfidenceThreshold: 0.6,
		Esco:                EscoConfig{Language: "fr", Timeout: time.Second},
	}
	cfg.ApplyDefaults()

	assert.Equal(t, "http://0.0.0.0:9000", cfg.ApiUrl)
	assert.Equal(t, 128, cfg.MaxTokens)
	assert.Equal(t, 0.6, cfg.ConfidenceThreshold)
	assert.Equal(t, "fr", cfg.Esco.Language)
	assert.Equal(t, time.Second, cfg.Esco.Timeout)
}

func TestNewPipeline_Errors(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{name: "missing model dir", cfg: Config{}, wantErr: "model_dir is required"},
		{
			name:    "unknown backend",
			cfg:     Config{ModelDir: t.TempDir(), BackendPriority: []string{"tpu"}},
			wantErr: "parsing backend priority",
		},
		{
			name:    "no tokenizer files",
			cfg:     Config{ModelDir: t.TempDir()},
			wantErr: "loading tokenizer",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewPipeline(tt.cfg, zap.NewNop())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNewPipeline_WarnsOnUnavailableBackend(t *testing.T) {
	if _, ok := hugot.GetBackend(hugot.BackendONNX); ok {
		t.Skip("onnx backend compiled in")
	}
	t.Cleanup(func() { hugot.SetPriority(nil) })

	core, logs := observer.New(zapcore.WarnLevel)
	_, err := NewPipeline(Config{
		ModelDir:        t.TempDir(),
		BackendPriority: []string{"onnx", "go"},
	}, zap.New(core))
	require.ErrorContains(t, err, "loading tokenizer")

	entries := logs.FilterMessage("Inference backend not available in this build").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "onnx", entries[0].ContextMap()["backend"])
}

func TestRunAsServer_InvalidConfig(t *testing.T) {
	err := RunAsServer(context.Background(), zap.NewNop(), Config{}, nil)
	assert.ErrorContains(t, err, "model_dir is required")
}
