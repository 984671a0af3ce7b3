package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Cache.TTLSeconds != 300 {
		t.Fatalf("expected default cache TTL 300s, got %d", cfg.Cache.TTLSeconds)
	}
	if cfg.Confirm.RefreshWindowSeconds != 5 || cfg.Confirm.ImportWindowSeconds != 0 {
		t.Fatalf("unexpected confirm windows: %+v", cfg.Confirm)
	}
	if cfg.Source.ExcludedTransport != "FO TSEL" {
		t.Fatalf("unexpected excluded transport: %q", cfg.Source.ExcludedTransport)
	}
	if cfg.Sync.Hour != 8 || cfg.Sync.Minute != 0 {
		t.Fatalf("unexpected sync schedule: %+v", cfg.Sync)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("CACHE_TTL_SECONDS", "60")
	t.Setenv("CONFIRM_REFRESH_WINDOW_SECONDS", "10")
	t.Setenv("PROCESS_TIMEZONE", "UTC")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Cache.TTL() != time.Minute {
		t.Fatalf("expected 1m TTL, got %s", cfg.Cache.TTL())
	}
	if cfg.Confirm.RefreshWindow() != 10*time.Second {
		t.Fatalf("expected 10s window, got %s", cfg.Confirm.RefreshWindow())
	}
	if cfg.Source.Location() != time.UTC {
		t.Fatalf("expected UTC location")
	}
}

func TestDurationAccessorsZeroFloor(t *testing.T) {
	if (CacheConfig{TTLSeconds: -1}).TTL() != 0 {
		t.Fatalf("expected negative TTL clamped to 0")
	}
	if (ConfirmConfig{ImportWindowSeconds: 0}).ImportWindow() != 0 {
		t.Fatalf("expected zero import window")
	}
}

func TestSourceLocation_FallsBackToUTC(t *testing.T) {
	loc := SourceConfig{Timezone: "Not/AZone"}.Location()
	if loc != time.UTC {
		t.Fatalf("expected UTC fallback, got %v", loc)
	}
}
