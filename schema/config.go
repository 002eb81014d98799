package schema

import "errors"

// Frame store limits. Dimensions cap at 8K-class surfaces and total storage at
// 256 MiB per buffer so a misbehaving engine size negotiation cannot trigger
// pathological allocations.
const (
	// DefaultMaxFrameWidth is the widest accepted frame buffer.
	DefaultMaxFrameWidth = 8192
	// DefaultMaxFrameHeight is the tallest accepted frame buffer.
	DefaultMaxFrameHeight = 8192
	// DefaultMaxFrameBytes caps one buffer's pixel storage.
	DefaultMaxFrameBytes = 256 << 20
)

// DefaultTabTitle is shown until the engine reports a page title.
const DefaultTabTitle = "New Tab"

// RegistryConfig defines defaults and limits for the tab registry.
type RegistryConfig struct {
	MaxFrameWidth  int
	MaxFrameHeight int
	MaxFrameBytes  int64
	ScaleFactor    ScaleFactor
	DefaultTitle   string
}

// NormalizeRegistryConfig applies defaults and validates the config.
func NormalizeRegistryConfig(cfg RegistryConfig) (RegistryConfig, error) {
	if cfg.MaxFrameWidth <= 0 {
		cfg.MaxFrameWidth = DefaultMaxFrameWidth
	}
	if cfg.MaxFrameHeight <= 0 {
		cfg.MaxFrameHeight = DefaultMaxFrameHeight
	}
	if cfg.MaxFrameBytes <= 0 {
		cfg.MaxFrameBytes = DefaultMaxFrameBytes
	}
	if cfg.ScaleFactor == 0 {
		cfg.ScaleFactor = 1.0
	}
	if cfg.ScaleFactor < MinScaleFactor {
		return RegistryConfig{}, errors.New("scale factor below minimum")
	}
	if cfg.DefaultTitle == "" {
		cfg.DefaultTitle = DefaultTabTitle
	}
	if int64(cfg.MaxFrameWidth)*4 > cfg.MaxFrameBytes {
		return RegistryConfig{}, errors.New("max frame bytes cannot hold one row")
	}
	return cfg, nil
}
