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

package cmd

import (
	"context"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/antflydb/antfly-go/libaf/healthserver"
	"github.com/antflydb/antfly-go/libaf/logging"
	"github.com/antflydb/skillex"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the skillex server",
	Long: `Start the skillex HTTP server.

Endpoints:
  POST /api/extract/cv-file      multipart "file" (.pdf, .docx, .txt)
  POST /api/extract/cv           {"text": "..."}
  POST /api/extract/opportunity  {"description": "...", "requirements": "..."}
  GET  /healthz, /readyz, /api/version

Metrics and a readiness endpoint are served on --health-port.`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().String("api-url", skillex.DefaultApiUrl, "address the API listens on")
	runCmd.Flags().Int("health-port", 4200, "health/metrics server port")
	runCmd.Flags().Int("pool-size", 0, "number of model pipelines (0 = NumCPU)")
	runCmd.Flags().Int("max-concurrent-requests", 0, "requests processed at once (0 = NumCPU)")
	runCmd.Flags().Int("max-queue-size", skillex.DefaultMaxQueueSize, "requests allowed to wait for a slot")
	mustBindPFlag("api_url", runCmd.Flags().Lookup("api-url"))
	mustBindPFlag("health_port", runCmd.Flags().Lookup("health-port"))
	mustBindPFlag("pool_size", runCmd.Flags().Lookup("pool-size"))
	mustBindPFlag("max_concurrent_requests", runCmd.Flags().Lookup("max-concurrent-requests"))
	mustBindPFlag("max_queue_size", runCmd.Flags().Lookup("max-queue-size"))
}

func runServer(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Create logger from config
	logger := logging.NewLogger(&logging.Config{
		Level: logging.Level(viper.GetString("log.level")),
		Style: logging.Style(viper.GetString("log.style")),
	})
	defer func() {
		_ = logger.Sync()
	}()

	logger.Info("Running as skillex")

	cfg := configFromViper()

	// Track readiness state
	ready := &atomic.Bool{}
	ready.Store(false)
	readyC := make(chan struct{})

	// Start health server with readiness checker
	healthserver.Start(logger, viper.GetInt("health_port"), ready.Load)

	// Wait for ready signal in background
	go func() {
		select {
		case <-readyC:
			ready.Store(true)
			logger.Info("Skillex is ready")
		case <-ctx.Done():
		}
	}()

	return skillex.RunAsServer(ctx, logger, cfg, readyC)
}
