package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/MeKo-Tech/sevseg/internal/config"
	"github.com/MeKo-Tech/sevseg/internal/version"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	// configKeyAnnotation marks a flag with the config key it overrides.
	configKeyAnnotation = "sevseg_config_key"
	// skipConfigAnnotation marks commands that run without a configuration.
	skipConfigAnnotation = "sevseg_skip_config"
)

var (
	// Global configuration loader.
	configLoader *config.Loader
	// Global configuration.
	globalConfig *config.Config
	// Configuration file path.
	cfgFile string
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "sevseg",
	Short: "Read seven-segment displays from a camera or a recording",
	Long: `sevseg reads the number shown on a seven-segment display. It crops the
display out of camera frames, binarizes it, classifies every digit and
reduces several frames per sampling interval to one reading.

Examples:
  sevseg region order "10,10 200,12 198,80 12,78"
  sevseg live --source 0 --points "10,10 200,12 198,80 12,78"
  sevseg replay recording.mp4 --fps 30 --interval 1s
  sevseg runs
  sevseg export --format csv --out readings.csv
  sevseg serve --port 8080`,
	Version:       version.Get().String(),
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		if skipConfig(cmd) {
			return nil
		}
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		setupLogging(cmd, cfg)
		return nil
	},
	RunE: func(cmd *cobra.Command, _ []string) error {
		return cmd.Help()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// GetRootCommand returns the root command for testing purposes.
func GetRootCommand() *cobra.Command {
	return rootCmd
}

func init() {
	rootCmd.SetVersionTemplate("{{.Version}}\n")

	d := config.DefaultConfig()
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "",
		"config file (default is search in ., $XDG_CONFIG_HOME/sevseg, $HOME, /etc/sevseg)")
	pf.BoolP("verbose", "v", false, "verbose output (equivalent to --log-level=debug)")
	pf.String("log-level", d.LogLevel, "log level (debug, info, warn, error)")
	pf.String("models-dir", d.ModelsDir, "directory containing classifier models (also SEVSEG_MODELS_DIR)")
	pf.String("db", d.Store.Path, "SQLite database for recorded runs")

	bindFlag(pf, "verbose", "verbose")
	bindFlag(pf, "log-level", "log_level")
	bindFlag(pf, "models-dir", "models_dir")
	bindFlag(pf, "db", "store.path")
}

// bindFlag records the config key a flag overrides. The binding happens in
// loadConfig, for the executing command only.
func bindFlag(fs *pflag.FlagSet, name, key string) {
	if err := fs.SetAnnotation(name, configKeyAnnotation, []string{key}); err != nil {
		panic(err)
	}
}

func skipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations[skipConfigAnnotation] == "true" {
			return true
		}
	}
	return false
}

// loadConfig resolves the configuration from defaults, the config file,
// SEVSEG_* variables and the flags of cmd, in increasing precedence.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	v := viper.New()
	var bindErr error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		keys := f.Annotations[configKeyAnnotation]
		if len(keys) == 0 || bindErr != nil {
			return
		}
		bindErr = v.BindPFlag(keys[0], f)
	})
	if bindErr != nil {
		return nil, fmt.Errorf("bind flags: %w", bindErr)
	}

	loader := config.NewLoaderWithViper(v)
	cfg, err := loader.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("error loading configuration: %w", err)
	}
	configLoader, globalConfig = loader, cfg
	return cfg, nil
}

func setupLogging(cmd *cobra.Command, cfg *config.Config) {
	var level slog.Level
	if cfg.Verbose {
		level = slog.LevelDebug
	} else {
		switch strings.ToLower(cfg.LogLevel) {
		case "debug":
			level = slog.LevelDebug
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		default:
			level = slog.LevelInfo
		}
	}
	logger := slog.New(slog.NewJSONHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

// GetConfig returns the configuration loaded for the executing command.
func GetConfig() *config.Config {
	if globalConfig == nil {
		d := config.DefaultConfig()
		return &d
	}
	return globalConfig
}

// GetConfigLoader returns the loader of the executing command.
func GetConfigLoader() *config.Loader {
	if configLoader == nil {
		configLoader = config.NewLoader()
	}
	return configLoader
}
