package config

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
)

// Settings is the application configuration persisted to disk.
type Settings struct {
	Server  ServerSettings  `json:"server"`
	Backend BackendSettings `json:"backend"`
	Guide   GuideSettings   `json:"guide"`
	Log     LogSettings     `json:"log"`
}

type ServerSettings struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// BackendSettings points at the guide/recording server.
type BackendSettings struct {
	Kind           string `json:"kind"` // currently "xtream"
	Host           string `json:"host"`
	Username       string `json:"username"`
	Password       string `json:"password"`
	TimeoutSeconds int    `json:"timeoutSeconds"`
}

// Configured reports whether a backend target has been set.
func (b BackendSettings) Configured() bool {
	return b.Host != "" && b.Username != ""
}

// GuideSettings tunes the reconciliation engine.
type GuideSettings struct {
	// LookupConcurrency caps parallel per-channel identifier lookups.
	LookupConcurrency int `json:"lookupConcurrency"`
	// MaxGuidePages bounds pagination per listings fetch (0 = unlimited).
	MaxGuidePages int `json:"maxGuidePages"`
	// NameMatchThreshold is the feed coverage below which display-name
	// matching kicks in (0 = default 0.5).
	NameMatchThreshold float64 `json:"nameMatchThreshold"`
}

type LogSettings struct {
	File       string `json:"file"`
	MaxSizeMB  int    `json:"maxSizeMb"`
	MaxBackups int    `json:"maxBackups"`
	MaxAgeDays int    `json:"maxAgeDays"`
}

// DefaultSettings returns the configuration written on first run.
func DefaultSettings() Settings {
	return Settings{
		Server:  ServerSettings{Host: "0.0.0.0", Port: 7878},
		Backend: BackendSettings{Kind: "xtream", TimeoutSeconds: 30},
		Guide: GuideSettings{
			LookupConcurrency: 20,
			MaxGuidePages:     0,
		},
		Log: LogSettings{File: "", MaxSizeMB: 20, MaxBackups: 3, MaxAgeDays: 14},
	}
}

// Manager reads and writes the settings file.
type Manager struct {
	path string
}

func NewManager(configPath string) *Manager {
	return &Manager{path: configPath}
}

// EnsureDir ensures the settings file's parent directory exists.
func (m *Manager) EnsureDir() error {
	dir := filepath.Dir(m.path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

// Load reads the settings file, creating it with defaults if missing.
func (m *Manager) Load() (Settings, error) {
	if m.path == "" {
		return Settings{}, errors.New("config path not set")
	}
	if _, err := os.Stat(m.path); errors.Is(err, fs.ErrNotExist) {
		defaults := DefaultSettings()
		if err := m.Save(defaults); err != nil {
			return Settings{}, err
		}
		return defaults, nil
	}

	data, err := os.ReadFile(m.path)
	if err != nil {
		return Settings{}, err
	}
	var s Settings
	if err := json.Unmarshal(data, &s); err != nil {
		return Settings{}, err
	}
	applyDefaults(&s)
	return s, nil
}

func applyDefaults(s *Settings) {
	d := DefaultSettings()
	if s.Server.Port == 0 {
		s.Server.Port = d.Server.Port
	}
	if s.Server.Host == "" {
		s.Server.Host = d.Server.Host
	}
	if s.Backend.Kind == "" {
		s.Backend.Kind = d.Backend.Kind
	}
	if s.Backend.TimeoutSeconds <= 0 {
		s.Backend.TimeoutSeconds = d.Backend.TimeoutSeconds
	}
	if s.Guide.LookupConcurrency <= 0 {
		s.Guide.LookupConcurrency = d.Guide.LookupConcurrency
	}
	if s.Log.MaxSizeMB <= 0 {
		s.Log.MaxSizeMB = d.Log.MaxSizeMB
	}
}

// Save writes the settings atomically (temp file + rename).
func (m *Manager) Save(s Settings) error {
	if m.path == "" {
		return errors.New("config path not set")
	}
	if err := m.EnsureDir(); err != nil {
		return err
	}
	tmp := m.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, m.path)
}
