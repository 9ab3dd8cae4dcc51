package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	// ConfigFileName is the base name for configuration files (without extension).
	ConfigFileName = "sevseg"

	// EnvPrefix is the prefix for environment variables.
	EnvPrefix = "SEVSEG"
)

// Loader handles loading configuration from various sources.
type Loader struct {
	v *viper.Viper
}

// NewLoader uses the global viper instance so cobra flag bindings apply.
func NewLoader() *Loader {
	return &Loader{v: viper.GetViper()}
}

// NewLoaderWithViper uses v instead of the global instance.
func NewLoaderWithViper(v *viper.Viper) *Loader {
	return &Loader{v: v}
}

// Load reads defaults, the config file (search paths, or configFile when
// set), the environment, and bound flags, then validates the result.
func (l *Loader) Load(configFile string) (*Config, error) {
	cfg, err := l.LoadWithoutValidation(configFile)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// LoadWithoutValidation is Load without the final validation.
func (l *Loader) LoadWithoutValidation(configFile string) (*Config, error) {
	l.setupEnvironmentVariables()
	l.setDefaults()

	if configFile != "" {
		if _, err := os.Stat(configFile); err != nil {
			return nil, fmt.Errorf("config file does not exist: %s", configFile)
		}
		l.v.SetConfigFile(configFile)
	} else {
		l.v.SetConfigName(ConfigFileName)
		l.v.SetConfigType("yaml")
		for _, p := range GetConfigSearchPaths() {
			l.v.AddConfigPath(p)
		}
	}

	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}
	return l.unmarshal()
}

func (l *Loader) unmarshal() (*Config, error) {
	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	return &cfg, nil
}

// Watch calls fn with the reloaded configuration whenever the config file
// changes. Invalid edits are logged and skipped.
func (l *Loader) Watch(fn func(*Config)) {
	if l.v.ConfigFileUsed() == "" {
		slog.Debug("no config file to watch")
		return
	}
	l.v.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := l.unmarshal()
		if err == nil {
			err = cfg.Validate()
		}
		if err != nil {
			slog.Warn("ignoring invalid config change", "file", e.Name, "error", err)
			return
		}
		slog.Info("config reloaded", "file", e.Name, "op", e.Op.String())
		fn(cfg)
	})
	l.v.WatchConfig()
}

// GetConfigFileUsed returns the path of the config file used.
func (l *Loader) GetConfigFileUsed() string {
	return l.v.ConfigFileUsed()
}

// GetViper returns the underlying viper instance.
func (l *Loader) GetViper() *viper.Viper {
	return l.v
}

// GetResolvedConfig returns the current resolved settings for debugging.
func (l *Loader) GetResolvedConfig() map[string]any {
	return l.v.AllSettings()
}

// setupEnvironmentVariables maps display.digit_count to SEVSEG_DISPLAY_DIGIT_COUNT.
func (l *Loader) setupEnvironmentVariables() {
	l.v.SetEnvPrefix(EnvPrefix)
	l.v.AutomaticEnv()
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
}

// setDefaults registers every key so environment variables can reach it.
func (l *Loader) setDefaults() {
	d := DefaultConfig()

	l.v.SetDefault("models_dir", d.ModelsDir)
	l.v.SetDefault("log_level", d.LogLevel)
	l.v.SetDefault("verbose", d.Verbose)

	l.v.SetDefault("display.digit_count", d.Display.DigitCount)
	l.v.SetDefault("display.points", d.Display.Points)
	l.v.SetDefault("display.crop_width", d.Display.CropWidth)
	l.v.SetDefault("display.crop_height", d.Display.CropHeight)

	l.v.SetDefault("capture.source", d.Capture.Source)
	l.v.SetDefault("capture.width", d.Capture.Width)
	l.v.SetDefault("capture.height", d.Capture.Height)
	l.v.SetDefault("capture.interval", d.Capture.Interval)
	l.v.SetDefault("capture.frames_per_sample", d.Capture.FramesPerSample)
	l.v.SetDefault("capture.duration", d.Capture.Duration)
	l.v.SetDefault("capture.timeout", d.Capture.Timeout)
	l.v.SetDefault("capture.settle", d.Capture.Settle)
	l.v.SetDefault("capture.save_frames", d.Capture.SaveFrames)
	l.v.SetDefault("capture.frame_dir", d.Capture.FrameDir)

	l.v.SetDefault("replay.fps", d.Replay.FPS)
	l.v.SetDefault("replay.skip", d.Replay.Skip)

	l.v.SetDefault("threshold.value", d.Threshold.Value)
	l.v.SetDefault("threshold.init", d.Threshold.Init)
	l.v.SetDefault("threshold.seed", d.Threshold.Seed)
	l.v.SetDefault("threshold.max_iterations", d.Threshold.MaxIterations)
	l.v.SetDefault("threshold.epsilon", d.Threshold.Epsilon)

	l.v.SetDefault("classifier.backend", d.Classifier.Backend)
	l.v.SetDefault("classifier.models_dir", "")
	l.v.SetDefault("classifier.model_path", d.Classifier.ModelPath)
	l.v.SetDefault("classifier.input_width", d.Classifier.InputWidth)
	l.v.SetDefault("classifier.input_height", d.Classifier.InputHeight)
	l.v.SetDefault("classifier.num_threads", d.Classifier.NumThreads)
	l.v.SetDefault("classifier.gpu.use_gpu", d.Classifier.GPU.UseGPU)
	l.v.SetDefault("classifier.gpu.device_id", d.Classifier.GPU.DeviceID)
	l.v.SetDefault("classifier.gpu.mem_limit", d.Classifier.GPU.GPUMemLimit)

	l.v.SetDefault("store.enabled", d.Store.Enabled)
	l.v.SetDefault("store.path", d.Store.Path)

	l.v.SetDefault("server.host", d.Server.Host)
	l.v.SetDefault("server.port", d.Server.Port)
	l.v.SetDefault("server.cors_origin", d.Server.CORSOrigin)
	l.v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)
	l.v.SetDefault("server.rate_limit.enabled", d.Server.RateLimit.Enabled)
	l.v.SetDefault("server.rate_limit.requests_per_minute", d.Server.RateLimit.RequestsPerMinute)
	l.v.SetDefault("server.rate_limit.requests_per_hour", d.Server.RateLimit.RequestsPerHour)
}

// WriteYAML writes cfg as YAML.
func WriteYAML(w io.Writer, cfg *Config) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return enc.Close()
}

// GenerateDefaultConfigFile writes the defaults to filename, refusing to
// overwrite an existing file unless force is set.
func GenerateDefaultConfigFile(filename string, force bool) error {
	if filename == "" {
		filename = ConfigFileName + ".yaml"
	}
	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if !force {
		flags |= os.O_EXCL
	}
	f, err := os.OpenFile(filename, flags, 0o644)
	if err != nil {
		return fmt.Errorf("create config file: %w", err)
	}
	defer func() { _ = f.Close() }()

	cfg := DefaultConfig()
	cfg.Classifier.ModelsDir = ""
	return WriteYAML(f, &cfg)
}

// GetConfigSearchPaths returns the paths where configuration files are searched.
func GetConfigSearchPaths() []string {
	paths := []string{"."}
	if configDir, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok {
		paths = append(paths, filepath.Join(configDir, "sevseg"))
	} else if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "sevseg"))
	}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, home)
	}
	return append(paths, "/etc/sevseg")
}
