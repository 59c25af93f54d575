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

// Package esco looks up skill phrases in the ESCO classification
// (European Skills, Competences, Qualifications and Occupations).
package esco

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic/decoder"
	"go.uber.org/zap"
)

const (
	// DefaultBaseURL is the public ESCO web service.
	DefaultBaseURL = "https://ec.europa.eu/esco/api"
	// SkillsScheme restricts search results to the skills pillar.
	SkillsScheme = "http://data.europa.eu/esco/concept-scheme/skills"

	DefaultLanguage = "en"
	DefaultLimit    = 5
	DefaultTimeout  = 6 * time.Second
)

// Skill is an ESCO skill concept.
type Skill struct {
	NormalizedName string `json:"normalized_name"`
	URI            string `json:"esco_uri"`
}

// Outcome classifies a lookup for metrics.
type Outcome string

const (
	OutcomeMatch   Outcome = "match"
	OutcomeNoMatch Outcome = "no_match"
	OutcomeError   Outcome = "error"
)

// Observer is notified after every lookup that reached the network.
type Observer func(outcome Outcome, elapsed time.Duration)

// Config configures a Client. Zero values take the package defaults.
type Config struct {
	BaseURL  string
	Language string
	Limit    int
	Timeout  time.Duration

	HTTPClient *http.Client
	Observer   Observer
	Logger     *zap.Logger
}

// Client searches ESCO. Safe for concurrent use.
type Client struct {
	searchURL string
	language  string
	limit     int
	timeout   time.Duration
	http      *http.Client
	observe   Observer
	logger    *zap.Logger
}

// NewClient creates a Client.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Language == "" {
		cfg.Language = DefaultLanguage
	}
	if cfg.Limit <= 0 {
		cfg.Limit = DefaultLimit
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	if cfg.Observer == nil {
		cfg.Observer = func(Outcome, time.Duration) {}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Client{
		searchURL: strings.TrimRight(cfg.BaseURL, "/") + "/search",
		language:  cfg.Language,
		limit:     cfg.Limit,
		timeout:   cfg.Timeout,
		http:      cfg.HTTPClient,
		observe:   cfg.Observer,
		logger:    cfg.Logger,
	}
}

type searchResponse struct {
	Embedded struct {
		Results []struct {
			Title string `json:"title"`
			URI   string `json:"uri"`
		} `json:"results"`
	} `json:"_embedded"`
}

// Lookup returns the best ESCO match for phrase. Every failure (transport,
// timeout, status, decoding) is reported as no match; there are no retries.
func (c *Client) Lookup(ctx context.Context, phrase string) (Skill, bool) {
	query := strings.ToLower(strings.TrimSpace(phrase))
	if query == "" {
		return Skill{}, false
	}

	start := time.Now()
	skill, err := c.search(ctx, query)
	elapsed := time.Since(start)
	switch {
	case err != nil:
		c.logger.Debug("ESCO lookup failed",
			zap.String("query", query),
			zap.Duration("elapsed", elapsed),
			zap.Error(err))
		c.observe(OutcomeError, elapsed)
		return Skill{}, false
	case skill.NormalizedName == "":
		c.observe(OutcomeNoMatch, elapsed)
		return Skill{}, false
	default:
		c.observe(OutcomeMatch, elapsed)
		return skill, true
	}
}

func (c *Client) search(ctx context.Context, query string) (Skill, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	params := url.Values{}
	params.Set("text", query)
	params.Set("language", c.language)
	params.Set("type", "skill")
	params.Set("isInScheme", SkillsScheme)
	params.Set("limit", strconv.Itoa(c.limit))
	params.Set("offset", "0")
	params.Set("full", "false")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.searchURL+"?"+params.Encode(), nil)
	if err != nil {
		return Skill{}, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return Skill{}, fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Skill{}, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var out searchResponse
	if err := decoder.NewStreamDecoder(resp.Body).Decode(&out); err != nil {
		return Skill{}, fmt.Errorf("decoding response: %w", err)
	}
	if len(out.Embedded.Results) == 0 {
		return Skill{}, nil
	}
	top := out.Embedded.Results[0]
	return Skill{NormalizedName: top.Title, URI: top.URI}, nil
}
