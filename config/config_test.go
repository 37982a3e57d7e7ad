package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/zzping/pinger/config"
)

const sampleCfg = `
udp_listen_address: "127.0.0.1:7878"
udp_client_address: "127.0.0.1:7879"
ping_targets:
  - address: "192.168.0.1"
    frequency: 10
keep_packets:
  inflight_secs: 10
  lost_secs: 10
  recv_secs: 10
precision_mult: 1.0
`

func TestFromStringValid(t *testing.T) {
	cfg, err := config.FromString(sampleCfg)
	if err != nil {
		t.Fatalf("FromString: %v", err)
	}
	if cfg.UDPListenAddress != "127.0.0.1:7878" {
		t.Errorf("UDPListenAddress = %q, want 127.0.0.1:7878", cfg.UDPListenAddress)
	}
	if cfg.UDPClientAddress != "127.0.0.1:7879" {
		t.Errorf("UDPClientAddress = %q, want 127.0.0.1:7879", cfg.UDPClientAddress)
	}
	want := []config.TargetHost{{Address: "192.168.0.1", Frequency: 10}}
	if len(cfg.PingTargets) != 1 || cfg.PingTargets[0] != want[0] {
		t.Errorf("PingTargets = %+v, want %+v", cfg.PingTargets, want)
	}
	if cfg.KeepPackets != (config.ForgetConfig{InflightSecs: 10, LostSecs: 10, RecvSecs: 10}) {
		t.Errorf("KeepPackets = %+v, want all-10s", cfg.KeepPackets)
	}
	if cfg.PrecisionMult != 1.0 {
		t.Errorf("PrecisionMult = %v, want 1.0", cfg.PrecisionMult)
	}
}

func TestFromStringEmpty(t *testing.T) {
	if _, err := config.FromString(""); err == nil {
		t.Fatalf("FromString(\"\") succeeded, want an error")
	}
}

func TestFromFileValid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "daemon_config.yaml")
	if err := os.WriteFile(path, []byte(sampleCfg), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	cfg, err := config.FromFile(path)
	if err != nil {
		t.Fatalf("FromFile: %v", err)
	}
	if cfg.UDPListenAddress != "127.0.0.1:7878" {
		t.Errorf("UDPListenAddress = %q, want 127.0.0.1:7878", cfg.UDPListenAddress)
	}
}

func TestFromFileNoFile(t *testing.T) {
	if _, err := config.FromFile(""); err == nil {
		t.Fatalf("FromFile(\"\") succeeded, want an error")
	}
}
