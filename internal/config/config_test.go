package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.HTTPAddr != ":8080" {
		t.Errorf("HTTPAddr = %q", cfg.HTTPAddr)
	}
	if cfg.PostgresSchema != "public" {
		t.Errorf("PostgresSchema = %q", cfg.PostgresSchema)
	}
	if cfg.GatewayReconnectSec != 3 {
		t.Errorf("GatewayReconnectSec = %d", cfg.GatewayReconnectSec)
	}
	if cfg.EventListLimit != 5000 {
		t.Errorf("EventListLimit = %d", cfg.EventListLimit)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("HTTP_ADDR", "127.0.0.1:9090")
	t.Setenv("GATEWAY_PING_SEC", "2") // below min → clamped to 5

	cfg := Load()
	if cfg.HTTPAddr != "127.0.0.1:9090" {
		t.Errorf("HTTPAddr = %q", cfg.HTTPAddr)
	}
	if cfg.GatewayPingSec != 5 {
		t.Errorf("GatewayPingSec = %d, want clamped 5", cfg.GatewayPingSec)
	}
}
