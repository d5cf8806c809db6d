package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.CommandBind != "127.0.0.1:5556" {
		t.Fatalf("unexpected command bind: %q", cfg.CommandBind)
	}
	if cfg.StatusBind != "127.0.0.1:8356" {
		t.Fatalf("unexpected status bind: %q", cfg.StatusBind)
	}
	if cfg.EventBus != EventBusMemory {
		t.Fatalf("unexpected event bus backend: %q", cfg.EventBus)
	}
	if cfg.DBBackend != DatabaseSQLite {
		t.Fatalf("unexpected database backend: %q", cfg.DBBackend)
	}
	if cfg.InstanceID == "" {
		t.Fatal("expected a generated instance id")
	}
}

func TestLoadReadsEnvKeys(t *testing.T) {
	t.Setenv("CUEPLAY_ENV", "production")
	t.Setenv("CUEPLAY_COMMAND_BIND", "0.0.0.0:6000")
	t.Setenv("CUEPLAY_PLAYLIST_PATH", "/var/lib/cueplay/show.json")
	t.Setenv("CUEPLAY_EVENT_BUS", "redis")
	t.Setenv("CUEPLAY_INSTANCE_ID", "booth-1")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if !cfg.IsProduction() {
		t.Fatal("expected production environment")
	}
	if cfg.CommandBind != "0.0.0.0:6000" {
		t.Fatalf("unexpected command bind: %q", cfg.CommandBind)
	}
	if cfg.PlaylistPath != "/var/lib/cueplay/show.json" {
		t.Fatalf("unexpected playlist path: %q", cfg.PlaylistPath)
	}
	if cfg.EventBus != EventBusRedis {
		t.Fatalf("unexpected event bus backend: %q", cfg.EventBus)
	}
	if cfg.InstanceID != "booth-1" {
		t.Fatalf("unexpected instance id: %q", cfg.InstanceID)
	}
}

func TestLoadRejectsUnknownEventBus(t *testing.T) {
	t.Setenv("CUEPLAY_EVENT_BUS", "carrier-pigeon")
	if _, err := Load(); err == nil {
		t.Fatal("expected config load to fail for an unknown event bus backend")
	}
}

func TestLoadRejectsUnknownDatabaseBackend(t *testing.T) {
	t.Setenv("CUEPLAY_DB_BACKEND", "oracle")
	if _, err := Load(); err == nil {
		t.Fatal("expected config load to fail for an unknown database backend")
	}
}

func TestLoadEmptyDSNFallsBackToDefault(t *testing.T) {
	t.Setenv("CUEPLAY_HISTORY_ENABLED", "true")
	t.Setenv("CUEPLAY_DB_DSN", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.DBDSN != "cueplay.db" {
		t.Fatalf("unexpected DSN fallback: %q", cfg.DBDSN)
	}
}

func TestLoadRejectsNonPositiveTuning(t *testing.T) {
	t.Setenv("CUEPLAY_HALT_FADE_MS", "0")
	if _, err := Load(); err == nil {
		t.Fatal("expected config load to fail for a zero fade duration")
	}
}

func TestTuningAccessors(t *testing.T) {
	t.Setenv("CUEPLAY_NATURAL_FADE_MS", "250")
	t.Setenv("CUEPLAY_HALT_FADE_MS", "2000")
	t.Setenv("CUEPLAY_POSITION_POLL_MS", "25")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if got := cfg.NaturalFade().Milliseconds(); got != 250 {
		t.Fatalf("natural fade = %dms, want 250ms", got)
	}
	if got := cfg.HaltFade().Milliseconds(); got != 2000 {
		t.Fatalf("halt fade = %dms, want 2000ms", got)
	}
	if got := cfg.PositionPoll().Milliseconds(); got != 25 {
		t.Fatalf("position poll = %dms, want 25ms", got)
	}
}
