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

package modelregistry

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRepoID(t *testing.T) {
	tests := []struct {
		input   string
		want    RepoRef
		wantErr bool
	}{
		{input: "jjzha/jobbert_skill_extraction", want: RepoRef{Owner: "jjzha", Name: "jobbert_skill_extraction"}},
		{input: "hf:jjzha/escoxlmr_skill_extraction", want: RepoRef{Owner: "jjzha", Name: "escoxlmr_skill_extraction"}},
		{input: " acme/model ", want: RepoRef{Owner: "acme", Name: "model"}},
		{input: "model-only", wantErr: true},
		{input: "/model", wantErr: true},
		{input: "owner/", wantErr: true},
		{input: "a/b/c", wantErr: true},
		{input: "../x", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseRepoID(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, filepath.Join(tt.want.Owner, tt.want.Name), got.DirPath())
		})
	}
}

func TestSelectModelFiles(t *testing.T) {
	files := []string{
		".gitattributes",
		"README.md",
		"config.json",
		"onnx/config.json",
		"pytorch_model.bin",
		"tokenizer.json",
		"vocab.txt",
		"onnx/model.onnx",
		"onnx/model_quantized.onnx",
		"onnx/model_fp16.onnx",
		"onnx/model_fp16.onnx_data",
	}

	assert.Equal(t,
		[]string{"tokenizer.json", "config.json", "vocab.txt", "onnx/model.onnx"},
		selectModelFiles(files, ""))
	assert.Equal(t,
		[]string{"tokenizer.json", "config.json", "vocab.txt", "onnx/model_fp16.onnx", "onnx/model_fp16.onnx_data"},
		selectModelFiles(files, "fp16"))
	assert.Equal(t,
		[]string{"tokenizer.json", "config.json", "vocab.txt", "onnx/model_quantized.onnx"},
		selectModelFiles(files, "quantized"))
}

func TestPull_RejectsBadInput(t *testing.T) {
	c := NewHuggingFaceClient()

	_, err := c.Pull(context.Background(), "not-a-repo", t.TempDir(), "")
	assert.Error(t, err)

	_, err = c.Pull(context.Background(), "owner/name", t.TempDir(), "int3")
	assert.ErrorContains(t, err, "invalid variant")
}

func TestCopyFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "dst")
	require.NoError(t, os.WriteFile(src, []byte("weights"), 0o644))

	require.NoError(t, copyFile(src, dst))
	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "weights", string(got))

	assert.Error(t, copyFile(filepath.Join(dir, "missing"), dst))
}
