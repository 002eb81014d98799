package appconfig

import (
	"os"
	"path/filepath"

	"pkt.systems/bezel/schema"
)

// Config is the top-level application configuration.
type Config struct {
	ConfigVersion int           `mapstructure:"config_version" yaml:"config_version"`
	Window        WindowConfig  `mapstructure:"window" yaml:"window"`
	Buffers       BuffersConfig `mapstructure:"buffers" yaml:"buffers"`
	Engine        EngineConfig  `mapstructure:"engine" yaml:"engine"`
	Control       ControlConfig `mapstructure:"control" yaml:"control"`
	Logging       LoggingConfig `mapstructure:"logging" yaml:"logging"`
}

// CurrentConfigVersion marks the supported config version.
const CurrentConfigVersion = 1

// WindowConfig controls the compositor window.
type WindowConfig struct {
	Width       int     `mapstructure:"width" yaml:"width"`
	Height      int     `mapstructure:"height" yaml:"height"`
	Title       string  `mapstructure:"title" yaml:"title"`
	ScaleFactor float64 `mapstructure:"scale_factor" yaml:"scale_factor"`
	TargetFPS   int     `mapstructure:"target_fps" yaml:"target_fps"`
	HomeURL     string  `mapstructure:"home_url" yaml:"home_url"`
}

// BuffersConfig bounds frame buffer allocations.
type BuffersConfig struct {
	MaxWidth  int   `mapstructure:"max_width" yaml:"max_width"`
	MaxHeight int   `mapstructure:"max_height" yaml:"max_height"`
	MaxBytes  int64 `mapstructure:"max_bytes" yaml:"max_bytes"`
}

// EngineConfig configures the embedded browser engine.
type EngineConfig struct {
	ExecPath       string   `mapstructure:"exec_path" yaml:"exec_path"`
	UserDataDir    string   `mapstructure:"user_data_dir" yaml:"user_data_dir"`
	Headless       bool     `mapstructure:"headless" yaml:"headless"`
	ExtraArgs      []string `mapstructure:"extra_args" yaml:"extra_args"`
	FrameFormat    string   `mapstructure:"frame_format" yaml:"frame_format"`
	FrameQuality   int      `mapstructure:"frame_quality" yaml:"frame_quality"`
	StartupTimeout int      `mapstructure:"startup_timeout_seconds" yaml:"startup_timeout_seconds"`
}

// ControlConfig configures the HTTP control server.
type ControlConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Addr    string `mapstructure:"addr" yaml:"addr"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, err
	}
	return Config{
		ConfigVersion: CurrentConfigVersion,
		Window: WindowConfig{
			Width:       1280,
			Height:      800,
			Title:       "bezel",
			ScaleFactor: 1.0,
			TargetFPS:   60,
			HomeURL:     "https://example.com",
		},
		Buffers: BuffersConfig{
			MaxWidth:  schema.DefaultMaxFrameWidth,
			MaxHeight: schema.DefaultMaxFrameHeight,
			MaxBytes:  schema.DefaultMaxFrameBytes,
		},
		Engine: EngineConfig{
			ExecPath:       "",
			UserDataDir:    filepath.Join(home, ".bezel", "engine"),
			Headless:       true,
			ExtraArgs:      []string{},
			FrameFormat:    "png",
			FrameQuality:   90,
			StartupTimeout: 30,
		},
		Control: ControlConfig{
			Enabled: true,
			Addr:    "127.0.0.1:27490",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "",
		},
	}, nil
}

// DefaultConfigPath returns the standard config path.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".bezel", "config.yaml"), nil
}
