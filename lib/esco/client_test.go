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

package esco

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestClient_Lookup_Match(t *testing.T) {
	var gotQuery atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		gotQuery.Store(r.URL.Query())
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"_embedded": {"results": [
			{"title": "Python (computer programming)", "uri": "http://data.europa.eu/esco/skill/ccd0a1d9"},
			{"title": "second", "uri": "x"}
		]}}`))
	}))
	defer server.Close()

	var outcomes []Outcome
	c := NewClient(Config{
		BaseURL:  server.URL,
		Logger:   zap.NewNop(),
		Observer: func(o Outcome, _ time.Duration) { outcomes = append(outcomes, o) },
	})

	skill, ok := c.Lookup(context.Background(), "  PyThon ")
	require.True(t, ok)
	assert.Equal(t, "Python (computer programming)", skill.NormalizedName)
	assert.Equal(t, "http://data.europa.eu/esco/skill/ccd0a1d9", skill.URI)
	assert.Equal(t, []Outcome{OutcomeMatch}, outcomes)

	q := gotQuery.Load().(url.Values)
	assert.Equal(t, []string{"python"}, q["text"])
	assert.Equal(t, []string{"en"}, q["language"])
	assert.Equal(t, []string{"skill"}, q["type"])
	assert.Equal(t, []string{SkillsScheme}, q["isInScheme"])
	assert.Equal(t, []string{"5"}, q["limit"])
	assert.Equal(t, []string{"0"}, q["offset"])
	assert.Equal(t, []string{"false"}, q["full"])
}

func TestClient_Lookup_NoMatch(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		outcome Outcome
	}{
		{name: "no results", status: http.StatusOK, body: `{"_embedded": {"results": []}}`, outcome: OutcomeNoMatch},
		{name: "missing embedded", status: http.StatusOK, body: `{"total": 0}`, outcome: OutcomeNoMatch},
		{name: "empty title", status: http.StatusOK, body: `{"_embedded": {"results": [{"title": "", "uri": "x"}]}}`, outcome: OutcomeNoMatch},
		{name: "server error", status: http.StatusInternalServerError, body: `oops`, outcome: OutcomeError},
		{name: "invalid json", status: http.StatusOK, body: `{"_embedded": `, outcome: OutcomeError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			var got Outcome
			c := NewClient(Config{
				BaseURL:  server.URL,
				Observer: func(o Outcome, _ time.Duration) { got = o },
			})
			_, ok := c.Lookup(context.Background(), "cobol")
			assert.False(t, ok)
			assert.Equal(t, tt.outcome, got)
		})
	}
}

func TestClient_Lookup_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	c := NewClient(Config{BaseURL: server.URL, Timeout: 20 * time.Millisecond})

	start := time.Now()
	_, ok := c.Lookup(context.Background(), "fortran")
	assert.False(t, ok)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestClient_Lookup_EmptyPhraseSkipsCall(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer server.Close()

	c := NewClient(Config{BaseURL: server.URL})
	_, ok := c.Lookup(context.Background(), "   ")
	assert.False(t, ok)
	assert.Zero(t, calls.Load())
}
