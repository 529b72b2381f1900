// Package config loads and persists the ~/.droborc file: one TOML block per
// configured app holding its credentials and remote namespace settings.
package config

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/pelletier/go-toml/v2"
	"gitlab.com/tozd/go/errors"
)

const (
	placeholderKey    = "your_app_key_here"
	placeholderSecret = "your_app_secret_here"
)

// App is the configuration block for one named app.
type App struct {
	AppKey       string `toml:"app_key"`
	AppSecret    string `toml:"app_secret"`
	AccessToken  string `toml:"access_token"`
	RefreshToken string `toml:"refresh_token"`
	Bucket       string `toml:"bucket"`
	Region       string `toml:"region,omitempty"`
	Endpoint     string `toml:"endpoint,omitempty"`
	Prefix       string `toml:"prefix,omitempty"`
}

type fileFormat struct {
	Apps map[string]App `toml:"apps"`
}

// Manager owns one config file and keeps its parsed contents.
type Manager struct {
	mu   sync.Mutex
	path string
	apps map[string]App
}

// DefaultPath returns ~/.droborc.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Errorf("locate home directory: %w", err)
	}
	return filepath.Join(home, ".droborc"), nil
}

// Load reads the config file at path. A missing file is created with a
// placeholder example app so the user has something to edit.
func Load(path string) (*Manager, error) {
	m := &Manager{path: path}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := m.writeDefault(); err != nil {
			return nil, err
		}
	}
	if err := m.Reload(); err != nil {
		return nil, err
	}
	return m, nil
}

// Reload re-reads the config file, picking up tokens refreshed by another
// process.
func (m *Manager) Reload() error {
	data, err := os.ReadFile(m.path)
	if err != nil {
		return errors.Errorf("read config %s: %w", m.path, err)
	}
	var f fileFormat
	if err := toml.Unmarshal(data, &f); err != nil {
		return errors.Errorf("parse config %s: %w", m.path, err)
	}
	m.mu.Lock()
	m.apps = f.Apps
	m.mu.Unlock()
	return nil
}

// App returns the named app's configuration, rejecting missing,
// placeholder or tokenless entries.
func (m *Manager) App(name string) (App, error) {
	m.mu.Lock()
	app, ok := m.apps[name]
	m.mu.Unlock()
	if !ok {
		return App{}, errors.Errorf("app %q not found in %s", name, m.path)
	}
	if app.AppKey == "" || app.AppSecret == "" {
		return App{}, errors.Errorf("app %q is missing app_key or app_secret", name)
	}
	if app.AppKey == placeholderKey {
		return App{}, errors.Errorf("app %q still has the placeholder app_key, configure it with real values", name)
	}
	if app.AccessToken == "" {
		return App{}, errors.Errorf("app %q has no valid access tokens", name)
	}
	return app, nil
}

// SaveTokens persists refreshed tokens for an app.
func (m *Manager) SaveTokens(name, accessToken, refreshToken string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	app, ok := m.apps[name]
	if !ok {
		return errors.Errorf("app %q not found", name)
	}
	app.AccessToken = accessToken
	if refreshToken != "" {
		app.RefreshToken = refreshToken
	}
	m.apps[name] = app
	return m.writeLocked()
}

func (m *Manager) writeDefault() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.apps = map[string]App{
		"example": {
			AppKey:    placeholderKey,
			AppSecret: placeholderSecret,
			Bucket:    "your-bucket-name",
		},
	}
	return m.writeLocked()
}

func (m *Manager) writeLocked() error {
	data, err := toml.Marshal(fileFormat{Apps: m.apps})
	if err != nil {
		return errors.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(m.path, data, 0o600); err != nil {
		return errors.Errorf("write config %s: %w", m.path, err)
	}
	return nil
}
