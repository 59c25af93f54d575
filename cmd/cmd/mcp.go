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
	"fmt"
	"os/signal"
	"syscall"

	"github.com/antflydb/skillex"
	"github.com/antflydb/skillex/lib/mcptool"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the extract_skills tool over MCP stdio",
	Long: `Load the skill model and serve a Model Context Protocol server on
stdin/stdout exposing one read-only tool, extract_skills.

Logs go to stderr.`,
	RunE: runMCP,
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger, err := newCLILogger(viper.GetString("log.level"), viper.GetString("log.style"))
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	cfg := configFromViper()
	pipeline, err := skillex.NewPipeline(cfg, logger)
	if err != nil {
		return fmt.Errorf("loading pipeline: %w", err)
	}
	defer func() { _ = pipeline.Close() }()

	server := mcptool.NewServer(Version, pipeline, cfg.ConfidenceThreshold)
	logger.Info("Serving MCP over stdio", zap.String("model", pipeline.ModelName()))
	if err := server.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
		return fmt.Errorf("mcp server: %w", err)
	}
	return nil
}
