package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadCreatesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	m := NewManager(path)

	s, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.Server.Port != 7878 {
		t.Errorf("default port = %d, want 7878", s.Server.Port)
	}
	if s.Backend.Kind != "xtream" {
		t.Errorf("default backend kind = %q", s.Backend.Kind)
	}
	if s.Guide.LookupConcurrency != 20 {
		t.Errorf("default lookup concurrency = %d", s.Guide.LookupConcurrency)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("defaults were not written to disk: %v", err)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "settings.json")
	m := NewManager(path)

	s := DefaultSettings()
	s.Backend.Host = "http://tv.example.com"
	s.Backend.Username = "alice"
	s.Backend.Password = "secret"
	s.Guide.NameMatchThreshold = 0.75

	if err := m.Save(s); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Backend.Host != s.Backend.Host || got.Backend.Username != "alice" {
		t.Errorf("backend settings lost: %+v", got.Backend)
	}
	if got.Guide.NameMatchThreshold != 0.75 {
		t.Errorf("threshold = %v, want 0.75", got.Guide.NameMatchThreshold)
	}
	if !got.Backend.Configured() {
		t.Error("Configured() should be true once host and username are set")
	}
}

func TestLoadFillsMissingFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	partial := `{"backend": {"host": "http://tv.example.com", "username": "alice"}}`
	if err := os.WriteFile(path, []byte(partial), 0o644); err != nil {
		t.Fatal(err)
	}

	s, err := NewManager(path).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.Server.Port != 7878 {
		t.Errorf("missing port not defaulted, got %d", s.Server.Port)
	}
	if s.Backend.TimeoutSeconds != 30 {
		t.Errorf("missing timeout not defaulted, got %d", s.Backend.TimeoutSeconds)
	}
	if s.Backend.Host != "http://tv.example.com" {
		t.Errorf("explicit value overwritten: %q", s.Backend.Host)
	}
}

func TestConfiguredRequiresHostAndUser(t *testing.T) {
	if (BackendSettings{}).Configured() {
		t.Error("empty settings must not report configured")
	}
	if (BackendSettings{Host: "http://x"}).Configured() {
		t.Error("host alone must not report configured")
	}
	if !(BackendSettings{Host: "http://x", Username: "u"}).Configured() {
		t.Error("host plus username should report configured")
	}
}
