package config

import (
	"sync"
	"sync/atomic"
	"time"
)

// Manager holds the active configuration and swaps it on reload. It serves
// the runtime settings the nodetool runner reads on every execution.
type Manager struct {
	path    string
	current atomic.Pointer[Config]
	write   sync.Mutex

	mu        sync.Mutex
	listeners []func(*Config)
}

// NewManager wraps an already loaded configuration
func NewManager(path string, cfg *Config) *Manager {
	m := &Manager{path: path}
	m.current.Store(cfg)
	return m
}

// Current returns the active configuration. Callers must not modify it.
func (m *Manager) Current() *Config {
	return m.current.Load()
}

// RuntimeHome returns the Java installation directory
func (m *Manager) RuntimeHome() string {
	return m.Current().JavaHome
}

// BinaryDirectory returns the directory holding nodetool
func (m *Manager) BinaryDirectory() string {
	return m.Current().CassandraBinPath
}

// ExecutionTimeout returns the per-command timeout
func (m *Manager) ExecutionTimeout() time.Duration {
	return m.Current().CommandTimeout
}

// OnReload registers fn to run after each successful reload
func (m *Manager) OnReload(fn func(*Config)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

// Reload re-reads the configuration sources. On error the active
// configuration is kept. Fallback messages for invalid paths are returned.
func (m *Manager) Reload() ([]string, error) {
	m.write.Lock()
	defer m.write.Unlock()

	cfg, err := Load(m.path)
	if err != nil {
		return nil, err
	}
	changes := cfg.ApplyPathFallbacks()
	m.current.Store(cfg)
	m.notify(cfg)
	return changes, nil
}

// AddAPIKey persists key to the .env file and activates it
func (m *Manager) AddAPIKey(key string) error {
	m.write.Lock()
	defer m.write.Unlock()

	next := *m.Current()
	if err := next.SaveAPIKey(key); err != nil {
		return err
	}
	if next.JWTSecret == "" {
		next.JWTSecret = next.APIKeys[0]
	}
	m.current.Store(&next)
	m.notify(&next)
	return nil
}

func (m *Manager) notify(cfg *Config) {
	m.mu.Lock()
	listeners := append([]func(*Config){}, m.listeners...)
	m.mu.Unlock()

	for _, fn := range listeners {
		fn(cfg)
	}
}
