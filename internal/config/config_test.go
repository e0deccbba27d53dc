package config_test

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/oonf-go/godlep/internal/config"
)

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()

	if cfg.RemoteControl.Addr != ":8042" {
		t.Errorf("RemoteControl.Addr = %q, want %q", cfg.RemoteControl.Addr, ":8042")
	}

	if cfg.HTTPBridge.Addr != ":8080" {
		t.Errorf("HTTPBridge.Addr = %q, want %q", cfg.HTTPBridge.Addr, ":8080")
	}

	if cfg.Metrics.Addr != ":9100" {
		t.Errorf("Metrics.Addr = %q, want %q", cfg.Metrics.Addr, ":9100")
	}

	if cfg.Metrics.Path != "/metrics" {
		t.Errorf("Metrics.Path = %q, want %q", cfg.Metrics.Path, "/metrics")
	}

	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, "info")
	}

	if cfg.Log.Format != "json" {
		t.Errorf("Log.Format = %q, want %q", cfg.Log.Format, "json")
	}

	if cfg.LANImport.Enabled {
		t.Error("LANImport.Enabled = true, want false")
	}

	// Defaults must pass validation.
	if err := config.Validate(cfg); err != nil {
		t.Errorf("DefaultConfig() failed validation: %v", err)
	}
}

func TestLoadFromYAML(t *testing.T) {
	t.Parallel()

	yamlContent := `
remotecontrol:
  addr: ":9042"
httpbridge:
  addr: ":9080"
metrics:
  addr: ":9200"
  path: "/custom-metrics"
log:
  level: "debug"
  format: "text"
`

	path := writeTemp(t, yamlContent)

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load(%q) error: %v", path, err)
	}

	if cfg.RemoteControl.Addr != ":9042" {
		t.Errorf("RemoteControl.Addr = %q, want %q", cfg.RemoteControl.Addr, ":9042")
	}

	if cfg.HTTPBridge.Addr != ":9080" {
		t.Errorf("HTTPBridge.Addr = %q, want %q", cfg.HTTPBridge.Addr, ":9080")
	}

	if cfg.Metrics.Addr != ":9200" {
		t.Errorf("Metrics.Addr = %q, want %q", cfg.Metrics.Addr, ":9200")
	}

	if cfg.Metrics.Path != "/custom-metrics" {
		t.Errorf("Metrics.Path = %q, want %q", cfg.Metrics.Path, "/custom-metrics")
	}

	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, "debug")
	}

	if cfg.Log.Format != "text" {
		t.Errorf("Log.Format = %q, want %q", cfg.Log.Format, "text")
	}
}

func TestLoadMergesDefaults(t *testing.T) {
	t.Parallel()

	// Partial YAML: only override remotecontrol.addr and log.level.
	// Everything else should inherit from defaults.
	yamlContent := `
remotecontrol:
  addr: ":5555"
log:
  level: "warn"
`

	path := writeTemp(t, yamlContent)

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load(%q) error: %v", path, err)
	}

	// Overridden values.
	if cfg.RemoteControl.Addr != ":5555" {
		t.Errorf("RemoteControl.Addr = %q, want %q", cfg.RemoteControl.Addr, ":5555")
	}

	if cfg.Log.Level != "warn" {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, "warn")
	}

	// Default values should be preserved.
	if cfg.Metrics.Addr != ":9100" {
		t.Errorf("Metrics.Addr = %q, want default %q", cfg.Metrics.Addr, ":9100")
	}

	if cfg.Metrics.Path != "/metrics" {
		t.Errorf("Metrics.Path = %q, want default %q", cfg.Metrics.Path, "/metrics")
	}

	if cfg.Log.Format != "json" {
		t.Errorf("Log.Format = %q, want default %q", cfg.Log.Format, "json")
	}

	if cfg.HTTPBridge.Addr != ":8080" {
		t.Errorf("HTTPBridge.Addr = %q, want default %q", cfg.HTTPBridge.Addr, ":8080")
	}
}

func TestValidateErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		modify  func(*config.Config)
		wantErr error
	}{
		{
			name: "empty remote control addr",
			modify: func(cfg *config.Config) {
				cfg.RemoteControl.Addr = ""
			},
			wantErr: config.ErrEmptyRemoteControlAddr,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := config.DefaultConfig()
			tt.modify(cfg)

			err := config.Validate(cfg)
			if err == nil {
				t.Fatal("Validate() returned nil, want error")
			}

			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  slog.Level
	}{
		{input: "debug", want: slog.LevelDebug},
		{input: "DEBUG", want: slog.LevelDebug},
		{input: "info", want: slog.LevelInfo},
		{input: "INFO", want: slog.LevelInfo},
		{input: "warn", want: slog.LevelWarn},
		{input: "WARN", want: slog.LevelWarn},
		{input: "error", want: slog.LevelError},
		{input: "Error", want: slog.LevelError},
		{input: "unknown", want: slog.LevelInfo},
		{input: "", want: slog.LevelInfo},
		{input: "trace", want: slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()

			got := config.ParseLogLevel(tt.input)
			if got != tt.want {
				t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestLoadNonexistentFile(t *testing.T) {
	t.Parallel()

	_, err := config.Load("/nonexistent/path/config.yml")
	if err == nil {
		t.Fatal("Load() returned nil error for nonexistent file")
	}
}

// -------------------------------------------------------------------------
// Interface Config Tests
// -------------------------------------------------------------------------

func TestLoadWithInterfaces(t *testing.T) {
	t.Parallel()

	yamlContent := `
remotecontrol:
  addr: ":8042"
interfaces:
  - name: "wlan0"
    role: "radio"
    bind_addr: "10.0.0.1"
    discovery_port: 854
    tcp_port: 855
    discovery_interval: "1s"
    heartbeat_interval: "1s"
    single_session: true
  - name: "wlan1"
    role: "router"
    bind_addr: "10.0.1.1"
    peer_type: "example-router"
`

	path := writeTemp(t, yamlContent)

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load(%q) error: %v", path, err)
	}

	if len(cfg.Interfaces) != 2 {
		t.Fatalf("Interfaces count = %d, want 2", len(cfg.Interfaces))
	}

	i0 := cfg.Interfaces[0]
	if i0.Name != "wlan0" {
		t.Errorf("Interfaces[0].Name = %q, want %q", i0.Name, "wlan0")
	}
	if i0.Role != "radio" {
		t.Errorf("Interfaces[0].Role = %q, want %q", i0.Role, "radio")
	}
	if i0.DiscoveryInterval != time.Second {
		t.Errorf("Interfaces[0].DiscoveryInterval = %v, want %v", i0.DiscoveryInterval, time.Second)
	}
	if !i0.SingleSession {
		t.Error("Interfaces[0].SingleSession = false, want true")
	}

	i1 := cfg.Interfaces[1]
	if i1.PeerType != "example-router" {
		t.Errorf("Interfaces[1].PeerType = %q, want %q", i1.PeerType, "example-router")
	}

	if i0.InterfaceKey() == i1.InterfaceKey() {
		t.Error("Interfaces[0] and Interfaces[1] have the same key, expected different")
	}
}

func TestValidateInterfaceErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		modify  func(*config.Config)
		wantErr error
	}{
		{
			name: "empty interface name",
			modify: func(cfg *config.Config) {
				cfg.Interfaces = []config.InterfaceConfig{
					{Name: "", Role: "radio", BindAddr: "10.0.0.1"},
				}
			},
			wantErr: config.ErrInvalidInterfaceName,
		},
		{
			name: "invalid interface role",
			modify: func(cfg *config.Config) {
				cfg.Interfaces = []config.InterfaceConfig{
					{Name: "wlan0", Role: "bogus", BindAddr: "10.0.0.1"},
				}
			},
			wantErr: config.ErrInvalidInterfaceRole,
		},
		{
			name: "missing bind addr",
			modify: func(cfg *config.Config) {
				cfg.Interfaces = []config.InterfaceConfig{
					{Name: "wlan0", Role: "radio"},
				}
			},
			wantErr: config.ErrInvalidBindAddr,
		},
		{
			name: "duplicate interface keys",
			modify: func(cfg *config.Config) {
				cfg.Interfaces = []config.InterfaceConfig{
					{Name: "wlan0", Role: "radio", BindAddr: "10.0.0.1"},
					{Name: "wlan0", Role: "radio", BindAddr: "10.0.0.2"},
				}
			},
			wantErr: config.ErrDuplicateInterfaceKey,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := config.DefaultConfig()
			tt.modify(cfg)

			err := config.Validate(cfg)
			if err == nil {
				t.Fatal("Validate() returned nil, want error")
			}

			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateInterfaceValidRoles(t *testing.T) {
	t.Parallel()

	for _, role := range []string{"radio", "router"} {
		cfg := config.DefaultConfig()
		cfg.Interfaces = []config.InterfaceConfig{
			{Name: "wlan0", Role: role, BindAddr: "10.0.0.1"},
		}

		if err := config.Validate(cfg); err != nil {
			t.Errorf("Validate() with role %q returned error: %v", role, err)
		}
	}
}

func TestInterfaceConfigKey(t *testing.T) {
	t.Parallel()

	ic := config.InterfaceConfig{Name: "wlan0", Role: "radio"}

	want := "wlan0|radio"
	if got := ic.InterfaceKey(); got != want {
		t.Errorf("InterfaceKey() = %q, want %q", got, want)
	}
}

func TestInterfaceConfigBindAddrValue(t *testing.T) {
	t.Parallel()

	ic := config.InterfaceConfig{BindAddr: "10.0.0.1"}
	addr, err := ic.BindAddrValue()
	if err != nil {
		t.Fatalf("BindAddrValue() error: %v", err)
	}
	if addr.String() != "10.0.0.1" {
		t.Errorf("BindAddrValue() = %s, want 10.0.0.1", addr)
	}
}

func TestInterfaceConfigMulticastGroupValue(t *testing.T) {
	t.Parallel()

	ic := config.InterfaceConfig{MulticastGroup: "224.0.0.117"}
	addr, err := ic.MulticastGroupValue()
	if err != nil {
		t.Fatalf("MulticastGroupValue() error: %v", err)
	}
	if addr.String() != "224.0.0.117" {
		t.Errorf("MulticastGroupValue() = %s, want 224.0.0.117", addr)
	}
}

func TestInterfaceConfigMulticastGroupValueEmpty(t *testing.T) {
	t.Parallel()

	ic := config.InterfaceConfig{MulticastGroup: ""}
	addr, err := ic.MulticastGroupValue()
	if err != nil {
		t.Fatalf("MulticastGroupValue() error: %v", err)
	}
	if addr.IsValid() {
		t.Errorf("MulticastGroupValue() should be zero value for empty, got %s", addr)
	}
}

// -------------------------------------------------------------------------
// Environment Variable Override Tests
// -------------------------------------------------------------------------

func TestLoadEnvOverrides(t *testing.T) {
	// Environment variable tests cannot be parallel because they modify
	// process-wide state (os.Setenv).

	yamlContent := `
remotecontrol:
  addr: ":8042"
log:
  level: "info"
`
	path := writeTemp(t, yamlContent)

	// Set env overrides.
	t.Setenv("GODLEP_REMOTECONTROL_ADDR", ":9999")
	t.Setenv("GODLEP_LOG_LEVEL", "debug")

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load(%q) error: %v", path, err)
	}

	if cfg.RemoteControl.Addr != ":9999" {
		t.Errorf("RemoteControl.Addr = %q, want %q (from env)", cfg.RemoteControl.Addr, ":9999")
	}

	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want %q (from env)", cfg.Log.Level, "debug")
	}
}

func TestLoadEnvOverridesMetrics(t *testing.T) {
	yamlContent := `
remotecontrol:
  addr: ":8042"
metrics:
  addr: ":9100"
  path: "/metrics"
`
	path := writeTemp(t, yamlContent)

	t.Setenv("GODLEP_METRICS_ADDR", ":9200")
	t.Setenv("GODLEP_METRICS_PATH", "/custom")

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load(%q) error: %v", path, err)
	}

	if cfg.Metrics.Addr != ":9200" {
		t.Errorf("Metrics.Addr = %q, want %q (from env)", cfg.Metrics.Addr, ":9200")
	}

	if cfg.Metrics.Path != "/custom" {
		t.Errorf("Metrics.Path = %q, want %q (from env)", cfg.Metrics.Path, "/custom")
	}
}

// writeTemp creates a temporary YAML file and returns its path.
// The file is automatically cleaned up when the test finishes.
func writeTemp(t *testing.T, content string) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "godlep.yml")

	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write temp file: %v", err)
	}

	return path
}
