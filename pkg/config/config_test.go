// Copyright (C) 2026 Go binding
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "axld.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Rack.TickPeriod != 0.001 {
		t.Errorf("tick_period default = %g", cfg.Rack.TickPeriod)
	}
	if cfg.Server.Bind != ":8417" {
		t.Errorf("bind default = %q", cfg.Server.Bind)
	}
	if cfg.Server.TokenTTL != 12*time.Hour {
		t.Errorf("token_ttl default = %v", cfg.Server.TokenTTL)
	}
	if cfg.Log.Level != "info" || cfg.Log.Encoding != "console" {
		t.Errorf("log defaults = %q/%q", cfg.Log.Level, cfg.Log.Encoding)
	}
	if cfg.Server.AuthEnabled() {
		t.Error("auth enabled with empty password hash")
	}
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
rack:
  layout_file: /etc/axl/rack.json
  tick_period: 0.0005
  gateways:
    - module: 2
      address: 192.168.7.40:502
      slave_id: 1
      out_base: 16
      period: 25ms
server:
  bind: 127.0.0.1:9000
  password_hash: "$argon2id$v=19$m=65536,t=1,p=4$c2FsdA$aGFzaA"
monitor:
  dsn: postgres://axl@localhost/axl
log:
  level: debug
  encoding: json
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Rack.LayoutFile != "/etc/axl/rack.json" {
		t.Errorf("layout_file = %q", cfg.Rack.LayoutFile)
	}
	if cfg.Rack.TickPeriod != 0.0005 {
		t.Errorf("tick_period = %g", cfg.Rack.TickPeriod)
	}
	if len(cfg.Rack.Gateways) != 1 {
		t.Fatalf("gateways = %d", len(cfg.Rack.Gateways))
	}
	gw := cfg.Rack.Gateways[0]
	if gw.Module != 2 || gw.Address != "192.168.7.40:502" || gw.Period != 25*time.Millisecond {
		t.Errorf("gateway = %+v", gw)
	}
	if !cfg.Server.AuthEnabled() {
		t.Error("auth disabled with password hash set")
	}
	if cfg.Monitor.DSN == "" {
		t.Error("monitor DSN lost")
	}
	if cfg.Log.Level != "debug" || cfg.Log.Encoding != "json" {
		t.Errorf("log = %q/%q", cfg.Log.Level, cfg.Log.Encoding)
	}
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("AXL_SERVER_BIND", ":7000")
	t.Setenv("AXL_MONITOR_DSN", "postgres://env@db/axl")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Bind != ":7000" {
		t.Errorf("bind = %q, want env override", cfg.Server.Bind)
	}
	if cfg.Monitor.DSN != "postgres://env@db/axl" {
		t.Errorf("dsn = %q, want env override", cfg.Monitor.DSN)
	}
}

func TestValidation(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"zero tick", "rack:\n  tick_period: 0\n"},
		{"bad encoding", "log:\n  encoding: xml\n"},
		{"gateway without address", "rack:\n  gateways:\n    - module: 2\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tc.body)); err == nil {
				t.Fatal("want validation error")
			}
		})
	}
}

func TestMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("want error for missing file")
	}
}

func TestJWTSecret(t *testing.T) {
	s := ServerConfig{JWTSecretEnv: "AXL_TEST_SECRET"}
	if len(s.JWTSecret()) == 0 {
		t.Fatal("no fallback secret")
	}
	t.Setenv("AXL_TEST_SECRET", "sufficiently-long-operator-secret")
	if string(s.JWTSecret()) != "sufficiently-long-operator-secret" {
		t.Fatalf("secret = %q", s.JWTSecret())
	}
}

func TestBuildLogger(t *testing.T) {
	lc := LogConfig{Level: "warn", Encoding: "json"}
	log, lvl, err := lc.BuildLogger()
	if err != nil {
		t.Fatalf("BuildLogger: %v", err)
	}
	defer log.Sync()
	if lvl.String() != "warn" {
		t.Errorf("level = %s", lvl.String())
	}
	if _, _, err := (&LogConfig{Level: "loud", Encoding: "json"}).BuildLogger(); err == nil {
		t.Fatal("want error for bad level")
	}
}
