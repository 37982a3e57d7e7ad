// Package config loads the pinger daemon's configuration file: the
// UDP report socket addresses, the list of ping targets and their
// per-target frequency, and the retention window. Config is written
// in YAML, via gopkg.in/yaml.v3, the config format m-lab services use.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// TargetHost is one destination to ping.
type TargetHost struct {
	Address   string `yaml:"address"`
	Frequency uint32 `yaml:"frequency"`
}

// ForgetConfig is how long to retain packets in each retention state,
// per §4.6.
type ForgetConfig struct {
	InflightSecs uint64 `yaml:"inflight_secs"`
	LostSecs     uint64 `yaml:"lost_secs"`
	RecvSecs     uint64 `yaml:"recv_secs"`
}

// ServerConfig is the pinger daemon's full configuration.
type ServerConfig struct {
	UDPListenAddress string       `yaml:"udp_listen_address"`
	UDPClientAddress string       `yaml:"udp_client_address"`
	PingTargets      []TargetHost `yaml:"ping_targets"`
	KeepPackets      ForgetConfig `yaml:"keep_packets"`
	// PrecisionMult scales the scheduler's pacing precision: 1.0 for
	// low CPU usage, higher (e.g. 10.0) for tighter interval accuracy
	// at the cost of more wakeups, per §4.5.
	PrecisionMult float64 `yaml:"precision_mult"`
}

// FromString parses contents as a ServerConfig.
func FromString(contents string) (ServerConfig, error) {
	var cfg ServerConfig
	if err := yaml.Unmarshal([]byte(contents), &cfg); err != nil {
		return ServerConfig{}, fmt.Errorf("config: parse failed: %w", err)
	}
	if cfg.UDPListenAddress == "" {
		return ServerConfig{}, fmt.Errorf("config: udp_listen_address is required")
	}
	return cfg, nil
}

// FromFile reads filepath and parses it as a ServerConfig.
func FromFile(filepath string) (ServerConfig, error) {
	contents, err := os.ReadFile(filepath)
	if err != nil {
		return ServerConfig{}, fmt.Errorf("config: %w", err)
	}
	return FromString(string(contents))
}
