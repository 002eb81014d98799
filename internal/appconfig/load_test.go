package appconfig

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.yaml")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	def, err := DefaultConfig()
	if err != nil {
		t.Fatalf("DefaultConfig: %v", err)
	}
	if cfg.Window != def.Window || cfg.Control != def.Control {
		t.Fatalf("cfg = %+v, want defaults", cfg)
	}
}

func TestLoadOverridesAndVersionGate(t *testing.T) {
	path := writeConfig(t, `
config_version: 1
window:
  width: 1920
  height: 1080
  scale_factor: 2.0
control:
  addr: "127.0.0.1:9999"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Window.Width != 1920 || cfg.Window.Height != 1080 {
		t.Fatalf("window = %+v", cfg.Window)
	}
	if cfg.Window.ScaleFactor != 2.0 {
		t.Fatalf("scale = %v", cfg.Window.ScaleFactor)
	}
	if cfg.Control.Addr != "127.0.0.1:9999" {
		t.Fatalf("control addr = %q", cfg.Control.Addr)
	}
	// Untouched keys keep defaults.
	if cfg.Window.TargetFPS != 60 {
		t.Fatalf("target fps = %d", cfg.Window.TargetFPS)
	}
}

func TestLoadRejectsMissingOrWrongVersion(t *testing.T) {
	path := writeConfig(t, "window:\n  width: 800\n")
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "config_version") {
		t.Fatalf("err = %v, want config_version error", err)
	}
	path = writeConfig(t, "config_version: 99\n")
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "unsupported config_version") {
		t.Fatalf("err = %v, want unsupported version error", err)
	}
}

func TestLoadValidatesValues(t *testing.T) {
	cases := []struct {
		name string
		yaml string
		want string
	}{
		{"zero width", "config_version: 1\nwindow:\n  width: 0\n", "window.width"},
		{"tiny scale", "config_version: 1\nwindow:\n  scale_factor: 0.01\n", "scale_factor"},
		{"bad format", "config_version: 1\nengine:\n  frame_format: bmp\n", "frame_format"},
		{"bad addr", "config_version: 1\ncontrol:\n  addr: not-an-addr\n", "control.addr"},
		{"window over buffer cap", "config_version: 1\nwindow:\n  width: 9000\n", "exceeds"},
	}
	for _, tc := range cases {
		path := writeConfig(t, tc.yaml)
		if _, err := Load(path); err == nil || !strings.Contains(err.Error(), tc.want) {
			t.Fatalf("%s: err = %v, want %q", tc.name, err, tc.want)
		}
	}
}

func TestWriteDefaultRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")
	written, err := WriteDefault(path, false)
	if err != nil {
		t.Fatalf("WriteDefault: %v", err)
	}
	if written != path {
		t.Fatalf("written = %q, want %q", written, path)
	}
	if _, err := WriteDefault(path, false); err == nil {
		t.Fatal("second WriteDefault without overwrite should fail")
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load written default: %v", err)
	}
	if cfg.ConfigVersion != CurrentConfigVersion {
		t.Fatalf("config_version = %d", cfg.ConfigVersion)
	}
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("BEZEL_TEST_HOME", "/tmp/bezel-test")
	path := writeConfig(t, "config_version: 1\nengine:\n  user_data_dir: ${BEZEL_TEST_HOME}/engine\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Engine.UserDataDir != "/tmp/bezel-test/engine" {
		t.Fatalf("user_data_dir = %q", cfg.Engine.UserDataDir)
	}
}

func TestRegistryConfigConversion(t *testing.T) {
	cfg, err := DefaultConfig()
	if err != nil {
		t.Fatalf("DefaultConfig: %v", err)
	}
	rc := cfg.RegistryConfig()
	if rc.MaxFrameWidth != cfg.Buffers.MaxWidth || rc.MaxFrameBytes != cfg.Buffers.MaxBytes {
		t.Fatalf("registry config = %+v", rc)
	}
	if float64(rc.ScaleFactor) != cfg.Window.ScaleFactor {
		t.Fatalf("scale = %v", rc.ScaleFactor)
	}
}
