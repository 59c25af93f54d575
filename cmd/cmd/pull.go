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
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/antflydb/skillex/lib/modelregistry"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var pullCmd = &cobra.Command{
	Use:   "pull <owner/name> [owner/name...]",
	Short: "Pull a skill tagging model from HuggingFace",
	Long: `Download the ONNX export and tokenizer files of a token classification
model from HuggingFace into <models-dir>/<owner>/<name>/.

Pass the printed directory to "skillex run --model-dir".

Variants:
  (default)  model.onnx
  fp16       model_fp16.onnx
  q4         model_q4.onnx
  q4f16      model_q4f16.onnx
  quantized  model_quantized.onnx

Examples:
  skillex pull jjzha/jobbert_skill_extraction

  # INT8 quantized export
  skillex pull --variant quantized hf:jjzha/jobbert_skill_extraction

  # Gated repo
  HF_TOKEN=hf_xxx skillex pull owner/private-skill-model`,
	Args: cobra.MinimumNArgs(1),
	RunE: runPull,
}

func init() {
	rootCmd.AddCommand(pullCmd)

	pullCmd.Flags().String("models-dir", defaultModelsDir(), "directory models are downloaded into")
	pullCmd.Flags().String("variant", "", "ONNX variant (fp16, q4, q4f16, quantized)")
	pullCmd.Flags().String("hf-token", "", "HuggingFace API token for gated models (or use HF_TOKEN env var)")
	mustBindPFlag("models_dir", pullCmd.Flags().Lookup("models-dir"))
	mustBindPFlag("hf_token", pullCmd.Flags().Lookup("hf-token"))
}

func defaultModelsDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "models"
	}
	return filepath.Join(home, ".skillex", "models")
}

func runPull(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	variant, _ := cmd.Flags().GetString("variant")
	if !modelregistry.IsValidVariant(variant) {
		return fmt.Errorf("invalid variant %q, valid options: fp16, q4, q4f16, quantized", variant)
	}

	hfToken := viper.GetString("hf_token")
	if hfToken == "" {
		hfToken = os.Getenv("HF_TOKEN")
	}

	client := modelregistry.NewHuggingFaceClient(
		modelregistry.WithHFToken(hfToken),
		modelregistry.WithHFProgressHandler(printProgress),
	)

	modelsDir := viper.GetString("models_dir")
	for _, repoID := range args {
		fmt.Printf("\n=== Pulling %s ===\n", repoID)
		dir, err := client.Pull(ctx, repoID, modelsDir, variant)
		if err != nil {
			return fmt.Errorf("failed to pull %s: %w", repoID, err)
		}
		fmt.Printf("\n✓ Model pulled successfully to %s\n", dir)
	}
	return nil
}

func printProgress(downloaded, total int64, filename string) {
	if total <= 0 {
		fmt.Printf("  %s ...", filename)
		return
	}
	fmt.Printf("\r  %s: %s\n", filename, formatBytes(total))
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGTPE"[exp])
}
