package config

import "testing"

func TestLoadProbeDefaults(t *testing.T) {
	cfg, err := LoadProbe()
	if err != nil {
		t.Fatalf("LoadProbe() error = %v", err)
	}
	if cfg.WSURL != "ws://localhost:8080/ws" {
		t.Fatalf("WSURL = %q, want ws://localhost:8080/ws", cfg.WSURL)
	}
	if cfg.Token != "GUEST_probe" || !cfg.Create {
		t.Fatalf("unexpected probe config: %+v", cfg)
	}
}

func TestLoadProbeOverrides(t *testing.T) {
	t.Setenv("WS_URL", "ws://127.0.0.1:9000/ws")
	t.Setenv("PROBE_TOKEN", "GUEST_alice")
	t.Setenv("PROBE_ROOM", "r-1")
	t.Setenv("PROBE_CREATE", "false")

	cfg, err := LoadProbe()
	if err != nil {
		t.Fatalf("LoadProbe() error = %v", err)
	}
	if cfg.WSURL != "ws://127.0.0.1:9000/ws" || cfg.RoomID != "r-1" {
		t.Fatalf("unexpected probe config: %+v", cfg)
	}
	if cfg.Create {
		t.Fatal("Create should be false")
	}
}
