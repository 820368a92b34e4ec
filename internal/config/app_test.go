package config

import "testing"

func TestLoadAppComposesConfigs(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("ACCOUNT_STORE", "none")
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := LoadApp()
	if err != nil {
		t.Fatalf("LoadApp() error = %v", err)
	}
	if cfg.Log.Level != "warn" {
		t.Fatalf("Log.Level = %q, want warn", cfg.Log.Level)
	}
	if cfg.Server.AccountStore != AccountStoreNone {
		t.Fatalf("Server.AccountStore = %q, want none", cfg.Server.AccountStore)
	}
}

func TestLoadAppPropagatesServerError(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	if _, err := LoadApp(); err == nil {
		t.Fatal("LoadApp() expected error, got nil")
	}
}
