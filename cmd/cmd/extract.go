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
	"io"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/antflydb/skillex"
	"github.com/antflydb/skillex/lib/document"
	"github.com/antflydb/skillex/lib/skills"
	"github.com/bytedance/sonic/encoder"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var extractCmd = &cobra.Command{
	Use:   "extract <file> [file...]",
	Short: "Extract skills from local documents",
	Long: `Run the skill pipeline on local .pdf, .docx or .txt files and print the
skills found in each.

Examples:
  skillex extract --model-dir ~/.skillex/models/jjzha/jobbert_skill_extraction cv.pdf

  # Show every candidate span and what happened to it
  skillex extract --verbose cv.docx

  # Machine-readable output
  skillex extract --json cv.txt`,
	Args: cobra.MinimumNArgs(1),
	RunE: runExtract,
}

func init() {
	rootCmd.AddCommand(extractCmd)

	extractCmd.Flags().BoolP("verbose", "v", false, "print candidate spans with score and decision")
	extractCmd.Flags().Bool("json", false, "print results as JSON")
}

// extractResult is one file's output in --json mode.
type extractResult struct {
	File       string              `json:"file"`
	Skills     []string            `json:"skills"`
	Candidates []skills.Reconciled `json:"candidates,omitempty"`
}

func runExtract(cmd *cobra.Command, args []string) error {
	verbose, _ := cmd.Flags().GetBool("verbose")
	asJSON, _ := cmd.Flags().GetBool("json")

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

	docs := document.NewExtractor(document.Config{
		MaxFileSize: int64(cfg.MaxUploadMB) << 20,
		Logger:      logger.Named("document"),
	})

	out := cmd.OutOrStdout()
	for _, path := range args {
		text, err := docs.Extract(ctx, path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}
		res, err := pipeline.ExtractSkillsDetailed(ctx, text, cfg.ConfidenceThreshold)
		if err != nil {
			return fmt.Errorf("extracting skills from %s: %w", path, err)
		}

		if asJSON {
			r := extractResult{File: path, Skills: res.Skills}
			if verbose {
				r.Candidates = res.Candidates
			}
			if err := encoder.NewStreamEncoder(out).Encode(r); err != nil {
				return err
			}
			continue
		}
		printResult(out, path, res, verbose)
	}
	return nil
}

func printResult(w io.Writer, path string, res *skills.Result, verbose bool) {
	_, _ = fmt.Fprintf(w, "%s (%d skills)\n", path, len(res.Skills))
	for _, s := range res.Skills {
		_, _ = fmt.Fprintf(w, "  %s\n", s)
	}
	if !verbose {
		return
	}
	_, _ = fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "  PHRASE\tSCORE\tDECISION\tNAME")
	for _, c := range res.Candidates {
		_, _ = fmt.Fprintf(tw, "  %s\t%.3f\t%s\t%s\n", c.Phrase, c.Score, c.Decision, c.Name)
	}
	_ = tw.Flush()
}

// newCLILogger logs to stderr so stdout stays clean for results and for the
// MCP stdio transport. style takes the same values as --log-style.
func newCLILogger(level, style string) (*zap.Logger, error) {
	lvl := zapcore.InfoLevel
	if level != "" {
		if err := lvl.Set(level); err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", level, err)
		}
	}

	var cfg zap.Config
	switch style {
	case "noop":
		return zap.NewNop(), nil
	case "json":
		cfg = zap.NewProductionConfig()
	case "", "terminal":
		cfg = zap.NewDevelopmentConfig()
	default:
		return nil, fmt.Errorf("invalid log style %q, valid options: terminal, json, noop", style)
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	return cfg.Build()
}
