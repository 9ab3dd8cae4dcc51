package onnx

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"

	"github.com/yalue/onnxruntime_go"
)

// EnvLibraryPath overrides the ONNX Runtime shared library location.
const EnvLibraryPath = "SEVSEG_ONNXRUNTIME_LIB"

// ErrRuntimeNotFound is returned when no ONNX Runtime shared library exists.
var ErrRuntimeNotFound = errors.New("onnx runtime library not found")

func libraryName() (string, error) {
	switch runtime.GOOS {
	case "linux":
		return "libonnxruntime.so", nil
	case "darwin":
		return "libonnxruntime.dylib", nil
	case "windows":
		return "onnxruntime.dll", nil
	default:
		return "", fmt.Errorf("unsupported operating system: %s", runtime.GOOS)
	}
}

// candidatePaths lists library locations in lookup order.
func candidatePaths(useGPU bool) []string {
	var paths []string
	if p := os.Getenv(EnvLibraryPath); p != "" {
		paths = append(paths, p)
	}
	if useGPU {
		paths = append(paths, "/opt/onnxruntime/gpu/lib/libonnxruntime.so")
	}
	paths = append(paths,
		"/usr/local/lib/libonnxruntime.so",
		"/usr/lib/libonnxruntime.so",
		"/opt/onnxruntime/cpu/lib/libonnxruntime.so",
	)

	name, err := libraryName()
	if err != nil {
		return paths
	}
	if root, err := findProjectRoot(); err == nil {
		if useGPU {
			paths = append(paths, filepath.Join(root, "onnxruntime", "gpu", "lib", name))
		}
		paths = append(paths, filepath.Join(root, "onnxruntime", "lib", name))
	}
	return paths
}

// FindLibrary returns the first existing ONNX Runtime library path.
func FindLibrary(useGPU bool) (string, error) {
	for _, p := range candidatePaths(useGPU) {
		if st, err := os.Stat(p); err == nil && !st.IsDir() {
			return p, nil
		}
	}
	return "", ErrRuntimeNotFound
}

// RuntimeAvailable reports whether an ONNX Runtime library can be found.
func RuntimeAvailable(useGPU bool) bool {
	_, err := FindLibrary(useGPU)
	return err == nil
}

// Setup points onnxruntime_go at the shared library and initializes the
// environment once per process.
func Setup(useGPU bool) error {
	if onnxruntime_go.IsInitialized() {
		return nil
	}
	lib, err := FindLibrary(useGPU)
	if err != nil {
		return err
	}
	onnxruntime_go.SetSharedLibraryPath(lib)
	if err := onnxruntime_go.InitializeEnvironment(); err != nil {
		return fmt.Errorf("failed to initialize ONNX Runtime: %w", err)
	}
	slog.Debug("onnx runtime initialized", "library", lib, "gpu", useGPU)
	return nil
}

// findProjectRoot walks up from the working directory to the go.mod.
func findProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get current directory: %w", err)
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.New("could not find project root")
		}
		dir = parent
	}
}
