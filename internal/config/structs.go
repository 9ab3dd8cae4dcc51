package config

import (
	"time"

	"github.com/MeKo-Tech/sevseg/internal/classifier"
	"github.com/MeKo-Tech/sevseg/internal/server"
)

// Config is the complete sevseg configuration. It is loaded from
// sevseg.yaml, SEVSEG_* environment variables and command-line flags.
type Config struct {
	ModelsDir string `mapstructure:"models_dir" yaml:"models_dir" json:"models_dir"`
	LogLevel  string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Verbose   bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`

	Display    DisplayConfig     `mapstructure:"display" yaml:"display" json:"display"`
	Capture    CaptureConfig     `mapstructure:"capture" yaml:"capture" json:"capture"`
	Replay     ReplayConfig      `mapstructure:"replay" yaml:"replay" json:"replay"`
	Threshold  ThresholdConfig   `mapstructure:"threshold" yaml:"threshold" json:"threshold"`
	Classifier classifier.Config `mapstructure:"classifier" yaml:"classifier" json:"classifier"`
	Store      StoreConfig       `mapstructure:"store" yaml:"store" json:"store"`
	Server     server.Config     `mapstructure:"server" yaml:"server" json:"server"`
}

// DisplayConfig describes the display under the camera.
type DisplayConfig struct {
	DigitCount int `mapstructure:"digit_count" yaml:"digit_count" json:"digit_count"`
	// Points holds the four region corners as "x,y x,y x,y x,y".
	Points     string `mapstructure:"points" yaml:"points" json:"points"`
	CropWidth  int    `mapstructure:"crop_width" yaml:"crop_width" json:"crop_width"`
	CropHeight int    `mapstructure:"crop_height" yaml:"crop_height" json:"crop_height"`
}

// CaptureConfig controls live sampling.
type CaptureConfig struct {
	// Source is a camera index, a video file, a frame directory, or
	// "watch:<dir>".
	Source          string        `mapstructure:"source" yaml:"source" json:"source"`
	Width           int           `mapstructure:"width" yaml:"width" json:"width"`
	Height          int           `mapstructure:"height" yaml:"height" json:"height"`
	Interval        time.Duration `mapstructure:"interval" yaml:"interval" json:"interval"`
	FramesPerSample int           `mapstructure:"frames_per_sample" yaml:"frames_per_sample" json:"frames_per_sample"`
	Duration        time.Duration `mapstructure:"duration" yaml:"duration" json:"duration"`
	Timeout         time.Duration `mapstructure:"timeout" yaml:"timeout" json:"timeout"`
	Settle          time.Duration `mapstructure:"settle" yaml:"settle" json:"settle"`
	SaveFrames      bool          `mapstructure:"save_frames" yaml:"save_frames" json:"save_frames"`
	FrameDir        string        `mapstructure:"frame_dir" yaml:"frame_dir" json:"frame_dir"`
}

// ReplayConfig controls replay of recordings.
type ReplayConfig struct {
	// FPS of the recording; zero asks the source.
	FPS  float64       `mapstructure:"fps" yaml:"fps" json:"fps"`
	Skip time.Duration `mapstructure:"skip" yaml:"skip" json:"skip"`
}

// ThresholdConfig controls binarization.
type ThresholdConfig struct {
	// Value is "auto" or a fixed cut-off in 0..255.
	Value         string  `mapstructure:"value" yaml:"value" json:"value"`
	Init          string  `mapstructure:"init" yaml:"init" json:"init"`
	Seed          uint64  `mapstructure:"seed" yaml:"seed" json:"seed"`
	MaxIterations int     `mapstructure:"max_iterations" yaml:"max_iterations" json:"max_iterations"`
	Epsilon       float64 `mapstructure:"epsilon" yaml:"epsilon" json:"epsilon"`
}

// StoreConfig controls result persistence.
type StoreConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	Path    string `mapstructure:"path" yaml:"path" json:"path"`
}
