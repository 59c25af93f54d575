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

package document

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestClean(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "lowercase and trim", in: "  Senior GO Developer  ", want: "senior go developer"},
		{name: "newline runs", in: "a\n\n\nb", want: "a\nb"},
		{name: "crlf", in: "a\r\n\r\nb", want: "a\nb"},
		{name: "spaces and tabs", in: "a \t  b", want: "a b"},
		{name: "page footer", in: "skills\nPage 2 of 3\nmore", want: "skills\n\nmore"},
		{name: "bullets", in: "• python\n● sql", want: "python\n  sql"},
		{name: "dashes", in: "2019–2021 — lead", want: "2019 2021   lead"},
		{name: "nfkc", in: "ﬁnance", want: "finance"},
		{name: "empty", in: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Clean(tt.in))
		})
	}
}

func TestDetectFormat(t *testing.T) {
	for _, p := range []string{"cv.pdf", "CV.PDF", "a/b/resume.docx", "notes.txt"} {
		_, err := DetectFormat(p)
		assert.NoError(t, err, p)
	}
	for _, p := range []string{"cv.doc", "image.png", "noext"} {
		_, err := DetectFormat(p)
		assert.ErrorIs(t, err, ErrUnsupportedFormat, p)
	}
}

func TestExtractor_Text(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cv.TXT")
	require.NoError(t, os.WriteFile(path, []byte("Skills:\n\n• Python\tSQL\nPage 1 of 1\n"), 0o644))

	e := NewExtractor(Config{Logger: zap.NewNop()})
	got, err := e.Extract(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "skills:\n  python sql", got)
}

func TestExtractor_Unsupported(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cv.odt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	_, err := NewExtractor(Config{}).Extract(context.Background(), path)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestExtractor_TooLarge(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cv.txt")
	require.NoError(t, os.WriteFile(path, []byte(strings.Repeat("a", 64)), 0o644))

	_, err := NewExtractor(Config{MaxFileSize: 32}).Extract(context.Background(), path)
	assert.ErrorIs(t, err, ErrFileTooLarge)
}

func TestExtractor_InvalidUTF8(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cv.txt")
	require.NoError(t, os.WriteFile(path, []byte{0xff, 0xfe, 0x00}, 0o644))

	_, err := NewExtractor(Config{}).Extract(context.Background(), path)
	assert.ErrorIs(t, err, ErrConversionFailed)
}
