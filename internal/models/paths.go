// Package models locates classifier model artifacts on disk.
package models

import (
	"errors"
	"os"
	"path/filepath"
)

// Artifact names, relative to the models directory.
const (
	DigitsONNX      = "sevseg_digits.onnx"
	DigitsDense     = "sevseg_digits_dense.json"
	TessdataDirName = "tessdata"
)

// TypeDigits is the subdirectory that holds the digit classifiers.
const TypeDigits = "digits"

// Backend identifiers.
const (
	BackendONNX      = "onnx"
	BackendDense     = "dense"
	BackendTesseract = "tesseract"
)

// DefaultModelsDir is used relative to the project root.
const DefaultModelsDir = "models"

// EnvModelsDir overrides the models directory.
const EnvModelsDir = "SEVSEG_MODELS_DIR"

func findProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.New("could not find project root (go.mod not found)")
		}
		dir = parent
	}
}

// GetModelsDir resolves the models directory.
// Priority: 1. explicit modelsDir, 2. environment variable, 3. project root + default.
func GetModelsDir(modelsDir string) string {
	if modelsDir != "" {
		return modelsDir
	}
	if envDir := os.Getenv(EnvModelsDir); envDir != "" {
		return envDir
	}
	if root, err := findProjectRoot(); err == nil {
		return filepath.Join(root, DefaultModelsDir)
	}
	return DefaultModelsDir
}

// BackendPath returns the fixed artifact path of a backend. Unknown
// backends resolve to an empty string.
func BackendPath(modelsDir, backend string) string {
	base := GetModelsDir(modelsDir)
	switch backend {
	case BackendONNX:
		return filepath.Join(base, TypeDigits, DigitsONNX)
	case BackendDense:
		return filepath.Join(base, TypeDigits, DigitsDense)
	case BackendTesseract:
		return filepath.Join(base, TessdataDirName)
	}
	return ""
}

// Exists reports whether the artifact at path is present.
func Exists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}
