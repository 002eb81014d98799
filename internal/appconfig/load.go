package appconfig

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
	"pkt.systems/bezel/schema"
)

// Load reads configuration from the provided path. If path is empty, uses DefaultConfigPath.
func Load(path string) (Config, error) {
	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return Config{}, err
		}
		path = defaultPath
	}

	cfg, err := DefaultConfig()
	if err != nil {
		return Config{}, err
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetDefault("config_version", cfg.ConfigVersion)
	v.SetDefault("window.width", cfg.Window.Width)
	v.SetDefault("window.height", cfg.Window.Height)
	v.SetDefault("window.title", cfg.Window.Title)
	v.SetDefault("window.scale_factor", cfg.Window.ScaleFactor)
	v.SetDefault("window.target_fps", cfg.Window.TargetFPS)
	v.SetDefault("window.home_url", cfg.Window.HomeURL)
	v.SetDefault("buffers.max_width", cfg.Buffers.MaxWidth)
	v.SetDefault("buffers.max_height", cfg.Buffers.MaxHeight)
	v.SetDefault("buffers.max_bytes", cfg.Buffers.MaxBytes)
	v.SetDefault("engine.exec_path", cfg.Engine.ExecPath)
	v.SetDefault("engine.user_data_dir", cfg.Engine.UserDataDir)
	v.SetDefault("engine.headless", cfg.Engine.Headless)
	v.SetDefault("engine.extra_args", cfg.Engine.ExtraArgs)
	v.SetDefault("engine.frame_format", cfg.Engine.FrameFormat)
	v.SetDefault("engine.frame_quality", cfg.Engine.FrameQuality)
	v.SetDefault("engine.startup_timeout_seconds", cfg.Engine.StartupTimeout)
	v.SetDefault("control.enabled", cfg.Control.Enabled)
	v.SetDefault("control.addr", cfg.Control.Addr)
	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)

	// A missing config file means defaults; anything else is a real error.
	configLoaded := false
	if err := v.ReadInConfig(); err != nil {
		_, notFound := err.(viper.ConfigFileNotFoundError)
		if !notFound && !os.IsNotExist(err) {
			return Config{}, err
		}
	} else {
		configLoaded = true
	}

	if configLoaded {
		// IsSet would see the SetDefault above; only the file itself counts.
		if !v.InConfig("config_version") {
			return Config{}, fmt.Errorf("config_version is required; expected %d", CurrentConfigVersion)
		}
		if v.GetInt("config_version") != CurrentConfigVersion {
			return Config{}, fmt.Errorf("unsupported config_version %d; expected %d", v.GetInt("config_version"), CurrentConfigVersion)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	expandConfigEnv(&cfg)
	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func validate(cfg Config) error {
	if cfg.Window.Width <= 0 || cfg.Window.Height <= 0 {
		return fmt.Errorf("window.width and window.height must be positive")
	}
	if cfg.Window.ScaleFactor < schema.MinScaleFactor {
		return fmt.Errorf("window.scale_factor must be at least %v", schema.MinScaleFactor)
	}
	if cfg.Window.TargetFPS <= 0 {
		return fmt.Errorf("window.target_fps must be positive")
	}
	if cfg.Buffers.MaxWidth <= 0 || cfg.Buffers.MaxHeight <= 0 || cfg.Buffers.MaxBytes <= 0 {
		return fmt.Errorf("buffers limits must be positive")
	}
	if cfg.Window.Width > cfg.Buffers.MaxWidth || cfg.Window.Height > cfg.Buffers.MaxHeight {
		return fmt.Errorf("window size %dx%d exceeds buffers limits %dx%d",
			cfg.Window.Width, cfg.Window.Height, cfg.Buffers.MaxWidth, cfg.Buffers.MaxHeight)
	}
	switch cfg.Engine.FrameFormat {
	case "png", "jpeg":
	default:
		return fmt.Errorf("engine.frame_format must be png or jpeg, got %q", cfg.Engine.FrameFormat)
	}
	if cfg.Engine.FrameQuality < 0 || cfg.Engine.FrameQuality > 100 {
		return fmt.Errorf("engine.frame_quality must be within 0-100")
	}
	if cfg.Engine.StartupTimeout <= 0 {
		return fmt.Errorf("engine.startup_timeout_seconds must be positive")
	}
	if cfg.Control.Enabled {
		if _, _, err := net.SplitHostPort(strings.TrimSpace(cfg.Control.Addr)); err != nil {
			return fmt.Errorf("control.addr must be host:port: %v", err)
		}
	}
	return nil
}

func expandConfigEnv(cfg *Config) {
	if cfg == nil {
		return
	}
	cfg.Engine.ExecPath = expandEnv(cfg.Engine.ExecPath)
	cfg.Engine.UserDataDir = expandEnv(cfg.Engine.UserDataDir)
	cfg.Window.HomeURL = expandEnv(cfg.Window.HomeURL)
	cfg.Control.Addr = expandEnv(cfg.Control.Addr)
}

func expandEnv(value string) string {
	if value == "" {
		return value
	}
	return os.Expand(value, func(key string) string {
		if key == "" {
			return ""
		}
		if val, ok := lookupEnv(key); ok {
			return val
		}
		return "$" + key
	})
}

func lookupEnv(key string) (string, bool) {
	if val, ok := os.LookupEnv(key); ok {
		return val, true
	}
	switch key {
	case "UID":
		return fmt.Sprintf("%d", os.Getuid()), true
	case "GID":
		return fmt.Sprintf("%d", os.Getgid()), true
	}
	return "", false
}

// WriteDefault writes the default config to the target path.
func WriteDefault(path string, overwrite bool) (string, error) {
	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return "", err
		}
		path = defaultPath
	}

	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return "", fmt.Errorf("config already exists at %s", path)
		}
	}

	cfg, err := DefaultConfig()
	if err != nil {
		return "", err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return "", err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", err
	}
	return path, nil
}

// RegistryConfig converts the loaded config into the registry's limits.
func (c Config) RegistryConfig() schema.RegistryConfig {
	return schema.RegistryConfig{
		MaxFrameWidth:  c.Buffers.MaxWidth,
		MaxFrameHeight: c.Buffers.MaxHeight,
		MaxFrameBytes:  c.Buffers.MaxBytes,
		ScaleFactor:    schema.ScaleFactor(c.Window.ScaleFactor),
	}
}
