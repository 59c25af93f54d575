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

// Package cmd implements the skillex command line.
package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/antflydb/skillex"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Version is set by main from ldflags.
var Version = "dev"

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "skillex",
	Short: "Extract canonical skills from CVs and job postings",
	Long: `skillex tags skill spans in free text with a token classification model,
reconciles low-confidence spans against the ESCO skills taxonomy and returns a
deduplicated list of skill names.

Configuration is read from skillex.yaml (--config), then SKILLEX_* environment
variables (nested keys use "_", e.g. SKILLEX_ESCO_TIMEOUT), then flags.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		skillex.Version = Version
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default ./skillex.yaml or ~/.skillex/skillex.yaml)")
	pf.String("model-dir", "", "directory holding the ONNX model and tokenizer")
	pf.String("log-level", "info", "log level (debug, info, warn, error)")
	pf.String("log-style", "terminal", "log style (terminal, json, noop)")
	pf.StringSlice("backend-priority", []string{"onnx", "go"}, "inference backends in order of preference")
	pf.Float64("confidence-threshold", 0.3, "score at or above which a span is kept without an ESCO lookup")
	pf.String("esco-url", "https://ec.europa.eu/esco/api", "ESCO web service base URL")

	mustBindPFlag("model_dir", pf.Lookup("model-dir"))
	mustBindPFlag("log.level", pf.Lookup("log-level"))
	mustBindPFlag("log.style", pf.Lookup("log-style"))
	mustBindPFlag("backend_priority", pf.Lookup("backend-priority"))
	mustBindPFlag("confidence_threshold", pf.Lookup("confidence-threshold"))
	mustBindPFlag("esco.url", pf.Lookup("esco-url"))

	viper.SetDefault("api_url", skillex.DefaultApiUrl)
	viper.SetDefault("health_port", 4200)
	viper.SetDefault("pool_size", 0)
	viper.SetDefault("max_tokens", 510)
	viper.SetDefault("inference_concurrency", 1)
	viper.SetDefault("esco.language", "en")
	viper.SetDefault("esco.limit", 5)
	viper.SetDefault("esco.timeout", "6s")
	viper.SetDefault("max_upload_mb", skillex.DefaultMaxUploadMB)
	viper.SetDefault("max_concurrent_requests", 0)
	viper.SetDefault("max_queue_size", skillex.DefaultMaxQueueSize)
	viper.SetDefault("request_timeout", "30s")
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("skillex")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(filepath.Join(home, ".skillex"))
		}
	}

	viper.SetEnvPrefix("SKILLEX")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		// A missing default config file is fine; flags and env still apply.
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			fmt.Fprintf(os.Stderr, "Error reading config file: %v\n", err)
			os.Exit(1)
		}
	}
}

func mustBindPFlag(key string, flag *pflag.Flag) {
	if err := viper.BindPFlag(key, flag); err != nil {
		panic(fmt.Sprintf("binding flag %q: %v", key, err))
	}
}

// configFromViper builds the service configuration from viper.
func configFromViper() skillex.Config {
	cfg := skillex.Config{
		ApiUrl:               viper.GetString("api_url"),
		ModelDir:             viper.GetString("model_dir"),
		OnnxFilename:         viper.GetString("onnx_filename"),
		BackendPriority:      viper.GetStringSlice("backend_priority"),
		PoolSize:             viper.GetInt("pool_size"),
		MaxTokens:            viper.GetInt("max_tokens"),
		ConfidenceThreshold:  viper.GetFloat64("confidence_threshold"),
		InferenceConcurrency: viper.GetInt("inference_concurrency"),
		Esco: skillex.EscoConfig{
			URL:      viper.GetString("esco.url"),
			Language: viper.GetString("esco.language"),
			Limit:    viper.GetInt("esco.limit"),
			Timeout:  viper.GetDuration("esco.timeout"),
		},
		MaxUploadMB:           viper.GetInt("max_upload_mb"),
		MaxConcurrentRequests: viper.GetInt("max_concurrent_requests"),
		MaxQueueSize:          viper.GetInt("max_queue_size"),
		RequestTimeout:        viper.GetDuration("request_timeout"),
	}
	cfg.ApplyDefaults()
	return cfg
}
