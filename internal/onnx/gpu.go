package onnx

import (
	"fmt"
	"log/slog"
	"strconv"

	"github.com/yalue/onnxruntime_go"
)

// GPUConfig holds CUDA execution provider settings.
type GPUConfig struct {
	UseGPU      bool   `mapstructure:"use_gpu" yaml:"use_gpu" json:"use_gpu"`
	DeviceID    int    `mapstructure:"device_id" yaml:"device_id" json:"device_id"`
	GPUMemLimit uint64 `mapstructure:"mem_limit" yaml:"mem_limit" json:"mem_limit"` // bytes, 0 = unlimited
}

// DefaultGPUConfig returns a CPU-only configuration.
func DefaultGPUConfig() GPUConfig {
	return GPUConfig{}
}

// Validate checks the GPU configuration.
func (c GPUConfig) Validate() error {
	if !c.UseGPU {
		return nil
	}
	if c.DeviceID < 0 {
		return fmt.Errorf("device ID must be non-negative, got %d", c.DeviceID)
	}
	return nil
}

// cudaSettings renders the provider options passed to ONNX Runtime.
func (c GPUConfig) cudaSettings() map[string]string {
	s := map[string]string{
		"device_id":                 strconv.Itoa(c.DeviceID),
		"arena_extend_strategy":     "kNextPowerOfTwo",
		"do_copy_in_default_stream": "1",
	}
	if c.GPUMemLimit > 0 {
		s["gpu_mem_limit"] = strconv.FormatUint(c.GPUMemLimit, 10)
	}
	return s
}

// ConfigureSessionForGPU appends the CUDA execution provider when requested.
func ConfigureSessionForGPU(opts *onnxruntime_go.SessionOptions, cfg GPUConfig) error {
	if !cfg.UseGPU {
		return nil
	}
	cudaOpts, err := onnxruntime_go.NewCUDAProviderOptions()
	if err != nil {
		return fmt.Errorf("failed to create CUDA provider options (GPU may not be available): %w", err)
	}
	defer func() {
		if err := cudaOpts.Destroy(); err != nil {
			slog.Warn("failed to destroy CUDA provider options", "error", err)
		}
	}()

	if err := cudaOpts.Update(cfg.cudaSettings()); err != nil {
		return fmt.Errorf("failed to update CUDA provider options: %w", err)
	}
	if err := opts.AppendExecutionProviderCUDA(cudaOpts); err != nil {
		return fmt.Errorf("failed to append CUDA execution provider: %w", err)
	}
	return nil
}
