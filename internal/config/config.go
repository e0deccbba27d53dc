// Package config manages godlep daemon configuration using koanf/v2.
//
// Supports YAML files and environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/netip"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// -------------------------------------------------------------------------
// Configuration Structures
// -------------------------------------------------------------------------

// Config holds the complete godlep configuration.
type Config struct {
	RemoteControl RemoteControlConfig `koanf:"remotecontrol"`
	HTTPBridge    HTTPBridgeConfig    `koanf:"httpbridge"`
	Metrics       MetricsConfig       `koanf:"metrics"`
	Log           LogConfig           `koanf:"log"`
	L2            L2Config            `koanf:"l2"`
	LANImport     LANImportConfig     `koanf:"lanimport"`
	Interfaces    []InterfaceConfig   `koanf:"interfaces"`
}

// L2Config selects the backing store for layer-2 peer/neighbor attributes.
type L2Config struct {
	// OVSDBEndpoint, if set, switches the store from the in-memory
	// default to an OVSDB-backed one at this ovsdb-server connection
	// string (e.g., "tcp:127.0.0.1:6640").
	OVSDBEndpoint string `koanf:"ovsdb_endpoint"`
}

// RemoteControlConfig holds the telnet remote-control server configuration.
type RemoteControlConfig struct {
	// Addr is the telnet listen address (e.g., ":8042").
	Addr string `koanf:"addr"`
}

// HTTPBridgeConfig holds the HTTP-to-telnet bridge configuration.
type HTTPBridgeConfig struct {
	// Addr is the HTTP listen address for the bridge (e.g., ":8080").
	Addr string `koanf:"addr"`
}

// MetricsConfig holds the Prometheus metrics endpoint configuration.
type MetricsConfig struct {
	// Addr is the HTTP listen address for the metrics endpoint (e.g., ":9100").
	Addr string `koanf:"addr"`
	// Path is the URL path for the metrics endpoint (e.g., "/metrics").
	Path string `koanf:"path"`
}

// LogConfig holds the logging configuration.
type LogConfig struct {
	// Level is the log level: "debug", "info", "warn", "error".
	Level string `koanf:"level"`
	// Format is the log output format: "json" or "text".
	Format string `koanf:"format"`
}

// LANImportConfig holds the LAN-import plug-in's route source and filters.
type LANImportConfig struct {
	// Enabled turns the plug-in on; when false no route source is started.
	Enabled bool `koanf:"enabled"`

	// GoBGPAddr is the gRPC address of the local GoBGP speaker the route
	// source subscribes to (e.g., "127.0.0.1:50051").
	GoBGPAddr string `koanf:"gobgp_addr"`

	// Entries lists the named import filters applied to every route
	// observed from the route source. A route imports once per matching
	// entry, tagged with that entry's own Domain.
	Entries []LANImportEntryConfig `koanf:"entries"`
}

// LANImportEntryConfig describes one named LAN-import filter entry.
type LANImportEntryConfig struct {
	// Name identifies the entry for logging and remote-control output.
	Name string `koanf:"name"`

	// Domain is the fixed domain id routes matching this entry are
	// imported under.
	Domain int `koanf:"domain"`

	// AllowedPrefixes restricts matching routes to these CIDR prefixes;
	// empty means no prefix restriction beyond PrefixLength.
	AllowedPrefixes []string `koanf:"allowed_prefixes"`

	// PrefixLength restricts matching routes to an exact prefix length,
	// or -1 for any length.
	PrefixLength int `koanf:"prefix_length"`

	// IfName restricts matching routes to one outgoing interface, empty
	// for any interface.
	IfName string `koanf:"if_name"`

	// Table, Protocol, and Distance restrict matching routes to a single
	// routing table id, source protocol id, and administrative distance;
	// 0 means "any" for each.
	Table    int32 `koanf:"table"`
	Protocol int32 `koanf:"protocol"`
	Distance int32 `koanf:"distance"`
}

// InterfaceConfig describes one DLEP interface from the configuration file.
// Each entry brings up one Interface on daemon startup; a SIGHUP reload does
// not add, remove or change interfaces. koanf cannot merge per-field defaults into individual list elements, so a
// zero DiscoveryPort/DiscoveryInterval/HeartbeatInterval/MulticastGroup here is
// not resolved by Load; cmd/dlepd's wiring fills these from iface package's
// Default* constants when building an iface.Config.
type InterfaceConfig struct {
	// Name is the network interface name (e.g., "wlan0").
	Name string `koanf:"name"`

	// Role is "radio" or "router".
	Role string `koanf:"role"`

	// BindAddr is the local address the discovery socket binds to.
	BindAddr string `koanf:"bind_addr"`

	// MulticastGroup is the discovery multicast group (empty disables
	// multicast, leaving unicast-only discovery).
	MulticastGroup string `koanf:"multicast_group"`

	// DiscoveryPort is the UDP port for Peer Discovery/Peer Offer.
	DiscoveryPort uint16 `koanf:"discovery_port"`

	// TCPPort is the port a radio listens on and a router dials.
	TCPPort uint16 `koanf:"tcp_port"`

	// PeerType is the free-form string advertised in the Peer Type TLV.
	PeerType string `koanf:"peer_type"`

	// DiscoveryInterval is the interval between discovery beacons.
	DiscoveryInterval time.Duration `koanf:"discovery_interval"`

	// HeartbeatInterval is the in-session heartbeat interval.
	HeartbeatInterval time.Duration `koanf:"heartbeat_interval"`

	// SendNeighbors is parsed from send_neighbors, but nothing in the
	// daemon reads it: setting it does not cause any Destination Up.
	SendNeighbors bool `koanf:"send_neighbors"`

	// SendProxied is parsed from send_proxied, but nothing in the daemon
	// reads it: setting it has no effect.
	SendProxied bool `koanf:"send_proxied"`

	// SingleSession, if true, suppresses a second concurrent session on
	// this interface. Load sets it to true for an entry that omits the key.
	SingleSession bool `koanf:"single_session"`

	// LocalExtensionIDs restricts the extensions this interface offers or
	// accepts; empty means every extension the registry knows.
	LocalExtensionIDs []uint16 `koanf:"local_extension_ids"`
}

// InterfaceKey returns a unique identifier for the interface, used by
// validation to reject duplicate interface entries.
func (ic InterfaceConfig) InterfaceKey() string {
	return ic.Name + "|" + ic.Role
}

// BindAddrValue parses BindAddr as a netip.Addr.
func (ic InterfaceConfig) BindAddrValue() (netip.Addr, error) {
	if ic.BindAddr == "" {
		return netip.Addr{}, fmt.Errorf("interface bind_addr: %w", ErrInvalidBindAddr)
	}
	addr, err := netip.ParseAddr(ic.BindAddr)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("parse interface bind_addr %q: %w", ic.BindAddr, err)
	}
	return addr, nil
}

// MulticastGroupValue parses MulticastGroup as a netip.Addr. An empty
// MulticastGroup yields the zero netip.Addr (multicast disabled).
func (ic InterfaceConfig) MulticastGroupValue() (netip.Addr, error) {
	if ic.MulticastGroup == "" {
		return netip.Addr{}, nil
	}
	addr, err := netip.ParseAddr(ic.MulticastGroup)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("parse interface multicast_group %q: %w", ic.MulticastGroup, err)
	}
	return addr, nil
}

// -------------------------------------------------------------------------
// Defaults
// -------------------------------------------------------------------------

// DefaultConfig returns a Config populated with sensible defaults.
//
// It lists no interfaces. Per-interface defaults are applied elsewhere:
// Load sets single_session to true for an interfaces[] entry that omits it,
// so a second concurrent peer on the same interface is rejected rather than
// accepted silently, and cmd/dlepd fills a zero discovery or heartbeat
// interval with 1000ms.
func DefaultConfig() *Config {
	return &Config{
		RemoteControl: RemoteControlConfig{
			Addr: ":8042",
		},
		HTTPBridge: HTTPBridgeConfig{
			Addr: ":8080",
		},
		Metrics: MetricsConfig{
			Addr: ":9100",
			Path: "/metrics",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		LANImport: LANImportConfig{
			Enabled: false,
		},
	}
}

// -------------------------------------------------------------------------
// Loader
// -------------------------------------------------------------------------

// envPrefix is the environment variable prefix for godlep configuration.
// Variables are named GODLEP_<section>_<key>, e.g., GODLEP_METRICS_ADDR.
const envPrefix = "GODLEP_"

// Load reads configuration from a YAML file at path, overlays environment
// variable overrides (GODLEP_ prefix), and merges on top of DefaultConfig().
// Missing fields inherit defaults.
//
// Environment variable mapping:
//
//	GODLEP_REMOTECONTROL_ADDR -> remotecontrol.addr
//	GODLEP_HTTPBRIDGE_ADDR    -> httpbridge.addr
//	GODLEP_METRICS_ADDR       -> metrics.addr
//	GODLEP_METRICS_PATH       -> metrics.path
//	GODLEP_LOG_LEVEL          -> log.level
//	GODLEP_LOG_FORMAT         -> log.format
//
// Uses koanf/v2 with file + env providers and YAML parser.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	// Load defaults first.
	defaults := DefaultConfig()
	if err := loadDefaults(k, defaults); err != nil {
		return nil, fmt.Errorf("load config defaults: %w", err)
	}

	// Load YAML file on top of defaults.
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("load config from %s: %w", path, err)
	}

	// Load environment variable overrides on top of YAML.
	// GODLEP_METRICS_ADDR -> metrics.addr (strip prefix, lowercase, _ -> .).
	if err := k.Load(env.Provider(envPrefix, ".", envKeyMapper), nil); err != nil {
		return nil, fmt.Errorf("load env overrides: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// koanf cannot merge per-field defaults into list elements, so an
	// interfaces[] entry that omits single_session gets its default here.
	if raw, ok := k.Get("interfaces").([]any); ok {
		for i, item := range raw {
			entry, isMap := item.(map[string]any)
			if !isMap || i >= len(cfg.Interfaces) {
				continue
			}
			if _, set := entry["single_session"]; !set {
				cfg.Interfaces[i].SingleSession = true
			}
		}
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("validate config from %s: %w", path, err)
	}

	return cfg, nil
}

// envKeyMapper transforms GODLEP_METRICS_ADDR -> metrics.addr.
// Strips the GODLEP_ prefix, lowercases, and replaces _ with .
func envKeyMapper(s string) string {
	s = strings.TrimPrefix(s, envPrefix)
	s = strings.ToLower(s)
	return strings.ReplaceAll(s, "_", ".")
}

// loadDefaults marshals the default config into koanf as the base layer.
func loadDefaults(k *koanf.Koanf, defaults *Config) error {
	defaultMap := map[string]any{
		"remotecontrol.addr": defaults.RemoteControl.Addr,
		"httpbridge.addr":    defaults.HTTPBridge.Addr,
		"metrics.addr":        defaults.Metrics.Addr,
		"metrics.path":        defaults.Metrics.Path,
		"log.level":           defaults.Log.Level,
		"log.format":          defaults.Log.Format,
		"lanimport.enabled":  defaults.LANImport.Enabled,
	}

	for key, val := range defaultMap {
		if err := k.Set(key, val); err != nil {
			return fmt.Errorf("set default %s: %w", key, err)
		}
	}

	return nil
}

// -------------------------------------------------------------------------
// Validation
// -------------------------------------------------------------------------

// Validation errors.
var (
	// ErrEmptyRemoteControlAddr indicates the remote-control listen address is empty.
	ErrEmptyRemoteControlAddr = errors.New("remotecontrol.addr must not be empty")

	// ErrInvalidBindAddr indicates an interface has no bind_addr set.
	ErrInvalidBindAddr = errors.New("interface bind_addr is invalid")

	// ErrInvalidInterfaceRole indicates an interface has an unrecognized role.
	ErrInvalidInterfaceRole = errors.New("interface role must be radio or router")

	// ErrInvalidInterfaceName indicates an interface entry has an empty name.
	ErrInvalidInterfaceName = errors.New("interface name must not be empty")

	// ErrDuplicateInterfaceKey indicates two interfaces share the same (name, role) key.
	ErrDuplicateInterfaceKey = errors.New("duplicate interface key")
)

// Validate checks the configuration for logical errors.
// Returns the first validation error encountered.
func Validate(cfg *Config) error {
	if cfg.RemoteControl.Addr == "" {
		return ErrEmptyRemoteControlAddr
	}

	if err := validateInterfaces(cfg.Interfaces); err != nil {
		return err
	}

	return nil
}

// ValidInterfaceRoles lists the recognized interface role strings.
var ValidInterfaceRoles = map[string]bool{
	"radio":  true,
	"router": true,
}

// validateInterfaces checks each declarative interface entry for correctness.
func validateInterfaces(interfaces []InterfaceConfig) error {
	seen := make(map[string]struct{}, len(interfaces))

	for i, ic := range interfaces {
		if ic.Name == "" {
			return fmt.Errorf("interfaces[%d]: %w", i, ErrInvalidInterfaceName)
		}

		if !ValidInterfaceRoles[ic.Role] {
			return fmt.Errorf("interfaces[%d] role %q: %w", i, ic.Role, ErrInvalidInterfaceRole)
		}

		if _, err := ic.BindAddrValue(); err != nil {
			return fmt.Errorf("interfaces[%d]: %w", i, err)
		}

		if _, err := ic.MulticastGroupValue(); err != nil {
			return fmt.Errorf("interfaces[%d]: %w", i, err)
		}

		key := ic.InterfaceKey()
		if _, dup := seen[key]; dup {
			return fmt.Errorf("interfaces[%d] key %q: %w", i, key, ErrDuplicateInterfaceKey)
		}
		seen[key] = struct{}{}
	}

	return nil
}

// -------------------------------------------------------------------------
// Log Level Parsing
// -------------------------------------------------------------------------

// ParseLogLevel maps a configuration log level string to the corresponding
// slog.Level. Unknown values default to slog.LevelInfo.
//
// Recognized values: "debug", "info", "warn", "error" (case-insensitive).
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
