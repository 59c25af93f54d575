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
	"errors"
	"net/http"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

var (
	// ErrQueueFull is returned when the wait queue is at capacity.
	ErrQueueFull = errors.New("request queue is full")
	// ErrRequestTimeout is returned when a request waited longer than RequestTimeout.
	ErrRequestTimeout = errors.New("request timed out waiting in queue")
)

// DefaultMaxQueueSize bounds waiting requests when none is configured.
const DefaultMaxQueueSize = 100

// RequestQueueConfig configures a RequestQueue. Zero values take defaults.
type RequestQueueConfig struct {
	// MaxConcurrentRequests is the number of requests processed at once (0 = runtime.NumCPU()).
	MaxConcurrentRequests int
	// MaxQueueSize is the number of requests allowed to wait (0 = DefaultMaxQueueSize).
	MaxQueueSize int
	// RequestTimeout bounds the time spent waiting for a slot (0 = until the request is canceled).
	RequestTimeout time.Duration
}

// QueueStats is a snapshot of queue occupancy.
type QueueStats struct {
	CurrentQueued int64 `json:"current_queued"`
	CurrentActive int64 `json:"current_active"`
	MaxConcurrent int64 `json:"max_concurrent"`
	MaxQueueSize  int64 `json:"max_queue_size"`
}

// RequestQueue applies backpressure: a fixed number of requests run, a
// bounded number wait, the rest are rejected.
type RequestQueue struct {
	sem           *semaphore.Weighted
	maxConcurrent int64
	maxQueue      int64
	timeout       time.Duration
	queued        atomic.Int64
	active        atomic.Int64
	logger        *zap.Logger
}

// NewRequestQueue creates a RequestQueue.
func NewRequestQueue(cfg RequestQueueConfig, logger *zap.Logger) *RequestQueue {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxConcurrentRequests <= 0 {
		cfg.MaxConcurrentRequests = runtime.NumCPU()
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = DefaultMaxQueueSize
	}
	logger.Info("Request queue configured",
		zap.Int("max_concurrent", cfg.MaxConcurrentRequests),
		zap.Int("max_queue_size", cfg.MaxQueueSize),
		zap.Duration("request_timeout", cfg.RequestTimeout))
	return &RequestQueue{
		sem:           semaphore.NewWeighted(int64(cfg.MaxConcurrentRequests)),
		maxConcurrent: int64(cfg.MaxConcurrentRequests),
		maxQueue:      int64(cfg.MaxQueueSize),
		timeout:       cfg.RequestTimeout,
		logger:        logger,
	}
}

// Acquire blocks until a processing slot is free and returns its release
// func, which is safe to call more than once. It fails fast with
// ErrQueueFull, or with ErrRequestTimeout once RequestTimeout elapses, or
// with ctx's error when the caller goes away.
func (q *RequestQueue) Acquire(ctx context.Context) (func(), error) {
	if q.sem.TryAcquire(1) {
		return q.started(), nil
	}

	if q.queued.Add(1) > q.maxQueue {
		q.queued.Add(-1)
		q.logger.Debug("Rejecting request, queue full", zap.Int64("max_queue_size", q.maxQueue))
		return nil, ErrQueueFull
	}

	waitCtx := ctx
	if q.timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, q.timeout)
		defer cancel()
	}

	start := time.Now()
	err := q.sem.Acquire(waitCtx, 1)
	q.queued.Add(-1)
	RecordQueueWaitTime(time.Since(start).Seconds())
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, ErrRequestTimeout
	}
	return q.started(), nil
}

func (q *RequestQueue) started() func() {
	q.active.Add(1)
	var once sync.Once
	return func() {
		once.Do(func() {
			q.active.Add(-1)
			q.sem.Release(1)
		})
	}
}

// Stats returns the current queue occupancy.
func (q *RequestQueue) Stats() QueueStats {
	return QueueStats{
		CurrentQueued: q.queued.Load(),
		CurrentActive: q.active.Load(),
		MaxConcurrent: q.maxConcurrent,
		MaxQueueSize:  q.maxQueue,
	}
}

// WriteQueueFullResponse writes a 503 with a Retry-After hint.
func WriteQueueFullResponse(w http.ResponseWriter, retryAfter time.Duration) {
	w.Header().Set("Retry-After", strconv.Itoa(max(1, int(retryAfter.Seconds()))))
	http.Error(w, ErrQueueFull.Error(), http.StatusServiceUnavailable)
}

// WriteTimeoutResponse writes a 408 for a request that never got a slot.
func WriteTimeoutResponse(w http.ResponseWriter) {
	http.Error(w, ErrRequestTimeout.Error(), http.StatusRequestTimeout)
}
