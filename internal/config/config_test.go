package config

import (
	"os"
	"path/filepath"
	"testing"
	_ "time/tzdata"
)

func TestDefaultValidates(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "closer.yaml")
	cfg := Default()
	cfg.Account.Name = "me"
	cfg.Account.Timezone = "Europe/Berlin"
	cfg.Calendar.ICS = []ICSSourceConfig{{ID: "work", Name: "Work", URL: "https://example.com/cal.ics"}}
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if got.Account.Timezone != "Europe/Berlin" || len(got.Calendar.ICS) != 1 {
		t.Fatalf("round trip lost fields: %+v", got)
	}
}

func TestNormalizeFillsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "closer.yaml")
	if err := os.WriteFile(path, []byte("account:\n  name: me\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Schedule.HorizonDays != 7 || cfg.Schedule.WorkWindow.EndHour != 21 || cfg.Schedule.MaxSuggestions != 5 {
		t.Fatalf("defaults not filled: %+v", cfg.Schedule)
	}
}

func TestInvalidWindowRejected(t *testing.T) {
	cfg := Default()
	cfg.Schedule.WorkWindow.StartHour = 21
	cfg.Schedule.WorkWindow.EndHour = 9
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for inverted window")
	}
}

func TestBadTimezoneRejected(t *testing.T) {
	cfg := Default()
	cfg.Account.Timezone = "Nowhere/Nothing"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for unknown timezone")
	}
}

func TestLoadMissingFileErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing config")
	}
}
