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

package tokenizer

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testVocab = []string{
	"[PAD]", "[UNK]", "[CLS]", "[SEP]", "[MASK]",
	"python", "go", "##lang", "sql", "and",
}

func writeVocab(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "vocab.txt"),
		[]byte(strings.Join(testVocab, "\n")+"\n"), 0o644))
	return dir
}

func TestLoadWordPieceTokenizer_VocabFallback(t *testing.T) {
	tk, err := LoadWordPieceTokenizer(writeVocab(t))
	require.NoError(t, err)

	ids := tk.Encode("Python and golang")
	assert.Equal(t, []int{5, 9, 6, 7}, ids)

	assert.Equal(t, "python and golang", tk.Decode(ids))
}

func TestWordPieceTokenizer_DecodeRoundTrip(t *testing.T) {
	tk, err := LoadWordPieceTokenizer(writeVocab(t))
	require.NoError(t, err)

	tests := []struct {
		name string
		ids  []int
		want string
	}{
		{name: "whole words", ids: []int{8, 9, 5}, want: "sql and python"},
		{name: "subword joined", ids: []int{6, 7, 9, 8}, want: "golang and sql"},
		{name: "special tokens skipped", ids: []int{2, 5, 3}, want: "python"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decoded := tk.Decode(tt.ids)
			assert.Equal(t, tt.want, decoded)
			assert.Equal(t, tk.Decode(tk.Encode(decoded)), decoded)
		})
	}
}

func TestLoadWordPieceTokenizer_Missing(t *testing.T) {
	_, err := LoadWordPieceTokenizer(t.TempDir())
	assert.Error(t, err)
}

func TestWordPieceTokenizer_Empty(t *testing.T) {
	tk, err := LoadWordPieceTokenizer(writeVocab(t))
	require.NoError(t, err)

	assert.Nil(t, tk.Encode(""))
	assert.Equal(t, "", tk.Decode(nil))
}
