package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"wandb-canvas/log"
)

const StateFileName = "panes.json"

// PaneRole identifies which managed pane a reference belongs to.
type PaneRole string

const (
	// RoleCanvas is the general-purpose pane reused across invocations.
	RoleCanvas PaneRole = "canvas"
	// RoleViewer is the pane running the terminal run viewer.
	RoleViewer PaneRole = "viewer"
)

// ReferenceStore persists one multiplexer pane id per role outside process
// memory, so a later invocation can find a pane created by an earlier one.
// A blank id means "no reference"; entries are never deleted.
type ReferenceStore interface {
	Get(role PaneRole) string
	Set(role PaneRole, id string) error
	Clear(role PaneRole) error
}

// State is the file-backed ReferenceStore shared across invocations. A single
// instance may be shared between goroutines; mu guards the in-memory fields,
// the file lock guards the file against other processes.
type State struct {
	// CanvasPane is the persisted id of the canvas pane, blank when none.
	CanvasPane string `json:"canvas_pane"`
	// ViewerPane is the persisted id of the viewer pane, blank when none.
	ViewerPane string `json:"viewer_pane"`

	mu sync.Mutex
	// dir overrides the config directory, used by tests (not serialized)
	dir string
	// lastModTime tracks when we last read the state file (not serialized)
	lastModTime time.Time
}

// DefaultState returns the default state
func DefaultState() *State {
	return &State{}
}

func (s *State) stateDir() (string, error) {
	if s.dir != "" {
		return s.dir, nil
	}
	return GetConfigDir()
}

// LoadState loads the state from disk. If it cannot be done, we return the
// default state. This function acquires a shared lock to allow concurrent
// reads.
func LoadState() *State {
	configDir, err := GetConfigDir()
	if err != nil {
		log.ErrorLog.Printf("failed to get config directory: %v", err)
		return DefaultState()
	}
	return loadStateFrom(configDir)
}

// LoadStateFrom loads the state from the given directory instead of the
// default config directory.
func LoadStateFrom(dir string) *State {
	return loadStateFrom(dir)
}

func loadStateFrom(configDir string) *State {
	statePath := filepath.Join(configDir, StateFileName)

	// Acquire shared lock for reading
	lock := NewFileLock(statePath)
	if err := lock.RLock(); err != nil {
		log.WarningLog.Printf("failed to acquire read lock: %v", err)
		// Continue without lock - better to have stale data than fail
	} else {
		defer lock.Unlock()
	}

	// Get file mod time before reading
	var modTime time.Time
	if info, err := os.Stat(statePath); err == nil {
		modTime = info.ModTime()
	}

	data, err := os.ReadFile(statePath)
	if err != nil {
		if !os.IsNotExist(err) {
			log.WarningLog.Printf("failed to get state file: %v", err)
		}
		// First run: the file is created by the first Set. Writing it here
		// would take the write lock while the read lock above is still held.
		s := DefaultState()
		s.dir = configDir
		return s
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		log.ErrorLog.Printf("failed to parse state file: %v", err)
		s := DefaultState()
		s.dir = configDir
		return s
	}

	state.dir = configDir
	state.lastModTime = modTime
	return &state
}

// save writes the state to disk under an exclusive file lock. The caller must
// hold s.mu.
func (s *State) save() error {
	configDir, err := s.stateDir()
	if err != nil {
		return fmt.Errorf("failed to get config directory: %w", err)
	}

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	statePath := filepath.Join(configDir, StateFileName)

	// Acquire exclusive lock for writing
	lock := NewFileLock(statePath)
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("failed to acquire write lock: %w", err)
	}
	defer lock.Unlock()

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	if err := os.WriteFile(statePath, data, 0644); err != nil {
		return err
	}

	// Update lastModTime after successful write
	if info, err := os.Stat(statePath); err == nil {
		s.lastModTime = info.ModTime()
	}

	return nil
}

// ReferenceStore interface implementation

// Get returns the persisted pane id for the role, refreshing from disk first
// so ids written by another invocation are visible.
func (s *State) Get(role PaneRole) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.refreshFromDisk(); err != nil {
		log.WarningLog.Printf("failed to refresh pane state: %v", err)
	}

	switch role {
	case RoleCanvas:
		return s.CanvasPane
	case RoleViewer:
		return s.ViewerPane
	}
	return ""
}

// Set persists the pane id for the role.
func (s *State) Set(role PaneRole, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch role {
	case RoleCanvas:
		s.CanvasPane = id
	case RoleViewer:
		s.ViewerPane = id
	default:
		return fmt.Errorf("unknown pane role: %s", role)
	}
	return s.save()
}

// Clear blanks the pane id for the role. The entry is kept so write
// semantics stay uniform.
func (s *State) Clear(role PaneRole) error {
	return s.Set(role, "")
}

// State sync methods

func (s *State) statePath() (string, error) {
	configDir, err := s.stateDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, StateFileName), nil
}

// needsRefresh checks if the state file has been modified since the given time.
func (s *State) needsRefresh(since time.Time) bool {
	statePath, err := s.statePath()
	if err != nil {
		return false
	}
	info, err := os.Stat(statePath)
	if err != nil {
		return false
	}
	return info.ModTime().After(since)
}

// refreshFromDisk reloads the state from disk if it has been modified.
// Returns true if the state was refreshed, false if no refresh was needed.
// The caller must hold s.mu.
func (s *State) refreshFromDisk() (bool, error) {
	if !s.needsRefresh(s.lastModTime) {
		return false, nil
	}

	statePath, err := s.statePath()
	if err != nil {
		return false, err
	}

	// Acquire shared lock for reading
	lock := NewFileLock(statePath)
	if err := lock.RLock(); err != nil {
		return false, fmt.Errorf("failed to acquire read lock: %w", err)
	}
	defer lock.Unlock()

	info, err := os.Stat(statePath)
	if err != nil {
		return false, fmt.Errorf("failed to stat state file: %w", err)
	}

	data, err := os.ReadFile(statePath)
	if err != nil {
		return false, fmt.Errorf("failed to read state file: %w", err)
	}

	var newState State
	if err := json.Unmarshal(data, &newState); err != nil {
		return false, fmt.Errorf("failed to parse state file: %w", err)
	}

	s.CanvasPane = newState.CanvasPane
	s.ViewerPane = newState.ViewerPane
	s.lastModTime = info.ModTime()

	return true, nil
}

// MemoryStore is an in-memory ReferenceStore for tests.
type MemoryStore struct {
	mu    sync.Mutex
	panes map[PaneRole]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{panes: make(map[PaneRole]string)}
}

func (m *MemoryStore) Get(role PaneRole) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.panes[role]
}

func (m *MemoryStore) Set(role PaneRole, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.panes[role] = id
	return nil
}

func (m *MemoryStore) Clear(role PaneRole) error {
	return m.Set(role, "")
}
