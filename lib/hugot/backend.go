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

// Package hugot creates Hugot sessions for the skill tagger on whichever
// inference backend is compiled in.
//
// Backends are selected based on build tags and availability:
//   - Pure Go (goMLX): Always available, no CGO required
//   - ONNX Runtime: Fastest inference, requires -tags="onnx,ORT"
//
// Backend selection at runtime follows a configurable priority order
// (default: ONNX > Go).
package hugot

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/knights-analytics/hugot"
	"github.com/knights-analytics/hugot/options"
)

// BackendType identifies the inference backend
type BackendType string

const (
	// BackendGo is the pure Go backend (goMLX) - always available, no CGO required
	BackendGo BackendType = "go"

	// BackendONNX is the ONNX Runtime backend
	BackendONNX BackendType = "onnx"
)

// Backend represents an inference backend that can create Hugot sessions.
// Backends self-register via init() functions in their respective files.
type Backend interface {
	// Type returns the backend type identifier
	Type() BackendType

	// Name returns a human-readable name (e.g., "ONNX Runtime")
	Name() string

	// Available reports whether this backend can be used in the current environment.
	Available() bool

	// Priority returns the default priority (lower = higher priority).
	Priority() int

	// CreateSession creates a new Hugot session with the given options.
	CreateSession(opts ...options.WithOption) (*hugot.Session, error)
}

var (
	registry   = make(map[BackendType]Backend)
	registryMu sync.RWMutex

	defaultPriority = []BackendType{BackendONNX, BackendGo}
	configPriority  []BackendType
	priorityMu      sync.RWMutex
)

// RegisterBackend registers a backend. Called by backend implementations in init().
// Later registrations for the same type overwrite earlier ones.
func RegisterBackend(b Backend) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[b.Type()] = b
}

// GetBackend returns the backend for the given type, if registered.
func GetBackend(t BackendType) (Backend, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	b, ok := registry[t]
	return b, ok
}

// Unavailable returns the types in priority that are not compiled in or
// cannot run here, in order.
func Unavailable(priority []BackendType) []BackendType {
	var missing []BackendType
	for _, t := range priority {
		if b, ok := GetBackend(t); !ok || !b.Available() {
			missing = append(missing, t)
		}
	}
	return missing
}

// ListAvailable returns all available backends, configured priority first.
func ListAvailable() []Backend {
	priority := GetPriority()

	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]Backend, 0, len(registry))
	seen := make(map[BackendType]bool)
	for _, t := range priority {
		if b, ok := registry[t]; ok && b.Available() {
			result = append(result, b)
			seen[t] = true
		}
	}

	var rest []Backend
	for t, b := range registry {
		if !seen[t] && b.Available() {
			rest = append(rest, b)
		}
	}
	sort.Slice(rest, func(i, j int) bool {
		return rest[i].Priority() < rest[j].Priority()
	})

	return append(result, rest...)
}

// SetPriority sets the backend selection priority order.
// Call before creating any sessions to take effect.
func SetPriority(order []BackendType) {
	priorityMu.Lock()
	defer priorityMu.Unlock()
	configPriority = make([]BackendType, len(order))
	copy(configPriority, order)
}

// GetPriority returns the configured priority if set, otherwise the default.
func GetPriority() []BackendType {
	priorityMu.RLock()
	defer priorityMu.RUnlock()
	src := defaultPriority
	if len(configPriority) > 0 {
		src = configPriority
	}
	result := make([]BackendType, len(src))
	copy(result, src)
	return result
}

// GetDefaultBackend returns the first available backend according to priority order.
// Returns nil if no backends are available.
func GetDefaultBackend() Backend {
	available := ListAvailable()
	if len(available) == 0 {
		return nil
	}
	return available[0]
}

// ParseBackendType parses a string into BackendType.
func ParseBackendType(s string) (BackendType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "onnx", "ort":
		return BackendONNX, nil
	case "go", "pure-go", "gomlx":
		return BackendGo, nil
	default:
		return "", fmt.Errorf("unknown backend type: %q (valid: onnx, go)", s)
	}
}

// ParseBackendPriority parses a list of backend names into a priority order.
func ParseBackendPriority(priority []string) ([]BackendType, error) {
	order := make([]BackendType, 0, len(priority))
	for _, s := range priority {
		t, err := ParseBackendType(s)
		if err != nil {
			return nil, fmt.Errorf("invalid backend priority %q: %w", s, err)
		}
		order = append(order, t)
	}
	return order, nil
}
