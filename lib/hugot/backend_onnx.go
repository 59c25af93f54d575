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

//go:build onnx && ORT

package hugot

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/knights-analytics/hugot"
	"github.com/knights-analytics/hugot/options"
)

func init() {
	RegisterBackend(&onnxBackend{})
}

// onnxBackend implements Backend using ONNX Runtime.
//
// Runtime Requirements:
//   - Set ONNXRUNTIME_ROOT or LD_LIBRARY_PATH so libonnxruntime can be found
//
// Build Requirements:
//   - CGO must be enabled (CGO_ENABLED=1)
type onnxBackend struct{}

func (b *onnxBackend) Type() BackendType { return BackendONNX }

func (b *onnxBackend) Name() string { return "ONNX Runtime (CPU)" }

// Available is always true; the build tags gate this file.
func (b *onnxBackend) Available() bool { return true }

func (b *onnxBackend) Priority() int { return 10 }

func (b *onnxBackend) CreateSession(opts ...options.WithOption) (*hugot.Session, error) {
	var baseOpts []options.WithOption
	if libPath := onnxLibraryPath(); libPath != "" {
		baseOpts = append(baseOpts, options.WithOnnxLibraryPath(libPath))
	}
	return hugot.NewORTSession(append(baseOpts, opts...)...)
}

// onnxLibraryPath returns the directory holding the ONNX Runtime shared
// library. ONNXRUNTIME_ROOT is checked before LD_LIBRARY_PATH.
func onnxLibraryPath() string {
	lib := "libonnxruntime.so"
	if runtime.GOOS == "darwin" {
		lib = "libonnxruntime.dylib"
	}
	exists := func(dir string) bool {
		_, err := os.Stat(filepath.Join(dir, lib))
		return err == nil
	}

	if root := os.Getenv("ONNXRUNTIME_ROOT"); root != "" {
		for _, dir := range []string{
			filepath.Join(root, runtime.GOOS+"-"+runtime.GOARCH, "lib"),
			filepath.Join(root, "lib"),
		} {
			if exists(dir) {
				return dir
			}
		}
	}

	for _, dir := range filepath.SplitList(os.Getenv("LD_LIBRARY_PATH")) {
		if dir != "" && exists(dir) {
			return dir
		}
	}
	return ""
}
