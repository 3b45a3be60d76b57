package pane

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"wandb-canvas/config"
	"wandb-canvas/log"
)

var (
	// ErrNoSession means the process is not inside a multiplexer session.
	// Fatal to the caller, never retried.
	ErrNoSession = errors.New("no tmux session found: run inside tmux")
	// ErrNoPane means no live pane reference exists for the role.
	ErrNoPane = errors.New("no live pane for role")
)

// interruptSettleDelay is how long a reused pane gets to return to its shell
// prompt after an interrupt before the next command is typed into it.
const interruptSettleDelay = 300 * time.Millisecond

// Manager owns the lifecycle of one role's pane: spawning, reusing,
// capturing, sending keys and killing. The persisted reference is always
// re-verified against the multiplexer before use, so a manager in a fresh
// process can pick up a pane created by an earlier invocation.
type Manager struct {
	role   config.PaneRole
	driver Driver
	store  config.ReferenceStore

	mu              sync.Mutex
	isRunning       bool
	lastCapture     string
	lastCaptureTime time.Time
}

// NewManager creates a Manager for the given role.
func NewManager(role config.PaneRole, driver Driver, store config.ReferenceStore) *Manager {
	return &Manager{
		role:   role,
		driver: driver,
		store:  store,
	}
}

// Role returns the role this manager owns.
func (m *Manager) Role() config.PaneRole {
	return m.role
}

// Spawn creates a new pane running command and persists its reference.
// If a live pane already exists for the role it is killed first, so at most
// one managed pane per role exists at any time.
func (m *Manager) Spawn(command string, percent int) (string, error) {
	if !m.driver.InSession() {
		return "", ErrNoSession
	}

	if id := m.verifyRef(); id != "" {
		if err := m.driver.Kill(id); err != nil {
			log.WarningLog.Printf("failed to kill existing %s pane %s: %v", m.role, id, err)
		}
		if err := m.store.Clear(m.role); err != nil {
			log.ErrorLog.Printf("failed to clear %s pane reference: %v", m.role, err)
		}
	}

	paneID, err := m.driver.Split(command, percent)
	if err != nil {
		m.setRunning(false)
		return "", fmt.Errorf("failed to spawn %s pane (is the viewer installed?): %w", m.role, err)
	}

	if err := m.store.Set(m.role, paneID); err != nil {
		log.ErrorLog.Printf("failed to persist %s pane reference: %v", m.role, err)
	}
	m.setRunning(true)

	log.InfoLog.Printf("spawned %s pane %s: %s", m.role, paneID, command)
	return paneID, nil
}

// ReuseOrCreate runs command in the existing pane when its reference is
// still live, interrupting whatever runs there first; otherwise it spawns a
// fresh pane. Returns true if the existing pane was reused.
func (m *Manager) ReuseOrCreate(command string, percent int) (bool, error) {
	if !m.driver.InSession() {
		return false, ErrNoSession
	}

	if id := m.verifyRef(); id != "" {
		err := m.reuse(id, command)
		if err == nil {
			m.setRunning(true)
			return true, nil
		}
		log.WarningLog.Printf("failed to reuse %s pane %s: %v", m.role, id, err)
		// Pane went away mid-reuse, fall through to a fresh spawn
		if err := m.store.Clear(m.role); err != nil {
			log.ErrorLog.Printf("failed to clear %s pane reference: %v", m.role, err)
		}
	}

	_, err := m.Spawn(command, percent)
	return false, err
}

func (m *Manager) reuse(paneID, command string) error {
	if err := m.driver.SendKeys(paneID, "C-c"); err != nil {
		return fmt.Errorf("failed to interrupt pane: %w", err)
	}
	time.Sleep(interruptSettleDelay)

	if err := m.driver.SendLiteral(paneID, command); err != nil {
		return fmt.Errorf("failed to type command: %w", err)
	}
	if err := m.driver.SendKeys(paneID, "Enter"); err != nil {
		return fmt.Errorf("failed to run command: %w", err)
	}
	return nil
}

// Capture returns the pane's current screen buffer. ErrNoPane when no
// verified reference exists; other errors are transient capture failures.
func (m *Manager) Capture() (string, error) {
	id := m.verifyRef()
	if id == "" {
		m.setRunning(false)
		return "", ErrNoPane
	}

	content, err := m.driver.Capture(id)
	if err != nil {
		return "", fmt.Errorf("capture of pane %s failed: %w", id, err)
	}

	m.mu.Lock()
	m.isRunning = true
	m.lastCapture = content
	m.lastCaptureTime = time.Now()
	m.mu.Unlock()

	return content, nil
}

// SendKeys forwards a key sequence to the pane. Returns false when no live
// reference exists or the send fails.
func (m *Manager) SendKeys(keys string) bool {
	id := m.verifyRef()
	if id == "" {
		return false
	}

	if err := m.driver.SendKeys(id, keys); err != nil {
		log.WarningLog.Printf("failed to send keys to %s pane %s: %v", m.role, id, err)
		return false
	}
	return true
}

// Kill destroys the pane and blanks the persisted reference. The reference
// is cleared even when the kill command fails, so a dead pane can never
// wedge the store. Idempotent.
func (m *Manager) Kill() bool {
	defer m.setRunning(false)

	id := m.store.Get(m.role)
	if id == "" {
		return true
	}

	if err := m.driver.Kill(id); err != nil {
		log.WarningLog.Printf("failed to kill %s pane %s: %v", m.role, id, err)
	}
	if err := m.store.Clear(m.role); err != nil {
		log.ErrorLog.Printf("failed to clear %s pane reference: %v", m.role, err)
	}
	return true
}

// IsAlive reports whether a verified live reference exists.
func (m *Manager) IsAlive() bool {
	return m.verifyRef() != ""
}

// PaneID returns the verified pane id, or empty when none.
func (m *Manager) PaneID() string {
	return m.verifyRef()
}

// Dimensions returns the live pane's size in character cells.
func (m *Manager) Dimensions() (cols, rows int, err error) {
	id := m.verifyRef()
	if id == "" {
		return 0, 0, ErrNoPane
	}
	return m.driver.Dimensions(id)
}

// LastCapture returns the most recent capture and when it was taken.
func (m *Manager) LastCapture() (string, time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastCapture, m.lastCaptureTime
}

// verifyRef reads the persisted id and checks it against the multiplexer's
// live pane table. The reference is valid only if the query succeeds and
// echoes the same id back; a dead id silently resolved to a different pane
// counts as a miss. Any miss blanks the reference so later callers do not
// repeat the failed lookup.
func (m *Manager) verifyRef() string {
	id := m.store.Get(m.role)
	if id == "" {
		return ""
	}

	got, err := m.driver.Query(id)
	if err == nil && got == id {
		return id
	}

	if err != nil {
		log.InfoLog.Printf("%s pane %s is gone: %v", m.role, id, err)
	} else {
		log.InfoLog.Printf("%s pane %s resolved to %s, clearing stale reference", m.role, id, got)
	}
	if cerr := m.store.Clear(m.role); cerr != nil {
		log.ErrorLog.Printf("failed to clear stale %s pane reference: %v", m.role, cerr)
	}
	return ""
}

func (m *Manager) setRunning(running bool) {
	m.mu.Lock()
	m.isRunning = running
	m.mu.Unlock()
}

// IsRunning returns the cached liveness flag, without querying the
// multiplexer.
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.isRunning
}
