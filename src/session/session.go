// Package session persists the agent conversation id so consecutive batches resume the same
// agent session across relay restarts.
package session

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"devsonar/src/logger"
)

// FileName is the session file inside the state directory.
const FileName = "session-id.txt"

// DefaultDir returns ~/.devsonar.
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, ".devsonar"), nil
}

// Manager holds the current session id and mirrors it to disk.
type Manager struct {
	path   string
	logger logger.Logger

	mu sync.RWMutex
	id string
}

// NewManager creates a Manager storing its file in dir.
func NewManager(dir string, log logger.Logger) *Manager {
	if log == nil {
		log = logger.NewSilentLogger()
	}
	return &Manager{
		path:   filepath.Join(dir, FileName),
		logger: log,
	}
}

// Path returns the session file location.
func (m *Manager) Path() string {
	return m.path
}

// Load creates the state directory if needed and reads a previously saved id.
// A missing file is not an error.
func (m *Manager) Load() error {
	if err := os.MkdirAll(filepath.Dir(m.path), 0o755); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}

	data, err := os.ReadFile(m.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read session file: %w", err)
	}

	id := strings.TrimSpace(string(data))
	if id == "" {
		return nil
	}

	m.mu.Lock()
	m.id = id
	m.mu.Unlock()
	m.logger.Info("[Session] Loaded existing session: %s", id)
	return nil
}

// ID returns the current session id, or "" when none is known.
func (m *Manager) ID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.id
}

// Save records a new session id.
func (m *Manager) Save(id string) error {
	m.mu.Lock()
	m.id = id
	m.mu.Unlock()

	if err := os.WriteFile(m.path, []byte(id), 0o600); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}
	m.logger.Info("[Session] Saved session: %s", id)
	return nil
}

// Reset forgets the session id and empties the file.
func (m *Manager) Reset() error {
	m.mu.Lock()
	m.id = ""
	m.mu.Unlock()

	if _, err := os.Stat(m.path); err == nil {
		if err := os.WriteFile(m.path, nil, 0o600); err != nil {
			return fmt.Errorf("failed to reset session file: %w", err)
		}
	}
	m.logger.Info("[Session] Session reset")
	return nil
}
