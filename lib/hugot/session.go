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

package hugot

import (
	"errors"
	"fmt"

	"github.com/knights-analytics/hugot"
	"github.com/knights-analytics/hugot/options"
)

// ErrNoBackend is returned when no registered backend is available.
var ErrNoBackend = errors.New("no inference backend available")

// NewSession creates a session on the highest-priority available backend.
func NewSession(opts ...options.WithOption) (*hugot.Session, error) {
	backend := GetDefaultBackend()
	if backend == nil {
		return nil, ErrNoBackend
	}
	session, err := backend.CreateSession(opts...)
	if err != nil {
		return nil, fmt.Errorf("creating %s session: %w", backend.Type(), err)
	}
	return session, nil
}

// NewSessionOrUseExisting returns existingSession when non-nil, otherwise a new session.
func NewSessionOrUseExisting(existingSession *hugot.Session, opts ...options.WithOption) (*hugot.Session, error) {
	if existingSession != nil {
		return existingSession, nil
	}
	return NewSession(opts...)
}

// BackendName returns the human-readable name of the backend NewSession would use.
func BackendName() string {
	b := GetDefaultBackend()
	if b == nil {
		return "No backend available"
	}
	return b.Name()
}
