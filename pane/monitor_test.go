package pane

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"wandb-canvas/config"

	"github.com/stretchr/testify/require"
)

type sinkRecorder struct {
	mu       sync.Mutex
	captures []string
	exits    int
}

func (s *sinkRecorder) onCapture(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.captures = append(s.captures, text)
}

func (s *sinkRecorder) onExit() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exits++
}

func (s *sinkRecorder) snapshot() ([]string, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.captures...), s.exits
}

func TestMonitorCapturesThenExitsOnce(t *testing.T) {
	driver := newFakeDriver()
	store := config.NewMemoryStore()
	manager := NewManager(config.RoleViewer, driver, store)

	paneID, err := manager.Spawn("leet", 50)
	require.NoError(t, err)

	// Text on the first three ticks, then the pane dies
	var mu sync.Mutex
	calls := 0
	driver.captureFunc = func(id string) (string, error) {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if calls <= 3 {
			return fmt.Sprintf("tick %d", calls), nil
		}
		delete(driver.panes, paneID)
		return "", errors.New("pane gone")
	}

	sink := &sinkRecorder{}
	monitor := NewMonitor(manager, 10*time.Millisecond, sink.onCapture, sink.onExit)
	monitor.Start()

	require.Eventually(t, func() bool {
		_, exits := sink.snapshot()
		return exits == 1
	}, 2*time.Second, 5*time.Millisecond)

	// Give any straggling tick a chance to misfire before asserting
	time.Sleep(50 * time.Millisecond)

	captures, exits := sink.snapshot()
	require.Equal(t, []string{"tick 1", "tick 2", "tick 3"}, captures)
	require.Equal(t, 1, exits)
	require.False(t, monitor.Active())
	require.False(t, manager.IsAlive())
}

func TestMonitorTransientCaptureErrorKeepsRunning(t *testing.T) {
	driver := newFakeDriver()
	store := config.NewMemoryStore()
	manager := NewManager(config.RoleViewer, driver, store)

	_, err := manager.Spawn("leet", 50)
	require.NoError(t, err)

	// Fail the first capture but keep the pane alive
	var mu sync.Mutex
	calls := 0
	driver.captureFunc = func(id string) (string, error) {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if calls == 1 {
			return "", errors.New("server busy")
		}
		return "recovered", nil
	}

	sink := &sinkRecorder{}
	monitor := NewMonitor(manager, 10*time.Millisecond, sink.onCapture, sink.onExit)
	monitor.Start()
	defer monitor.Stop()

	require.Eventually(t, func() bool {
		captures, _ := sink.snapshot()
		return len(captures) >= 1
	}, 2*time.Second, 5*time.Millisecond)

	captures, exits := sink.snapshot()
	require.Equal(t, "recovered", captures[0])
	require.Equal(t, 0, exits)
	require.True(t, monitor.Active())
}

func TestMonitorZeroIntervalSingleShot(t *testing.T) {
	driver := newFakeDriver()
	manager := NewManager(config.RoleViewer, driver, config.NewMemoryStore())

	_, err := manager.Spawn("leet", 50)
	require.NoError(t, err)

	sink := &sinkRecorder{}
	monitor := NewMonitor(manager, 0, sink.onCapture, sink.onExit)
	monitor.Start()

	time.Sleep(50 * time.Millisecond)

	captures, exits := sink.snapshot()
	require.Equal(t, 1, len(captures))
	require.Equal(t, 0, exits)
}

func TestMonitorStopIdempotent(t *testing.T) {
	driver := newFakeDriver()
	manager := NewManager(config.RoleViewer, driver, config.NewMemoryStore())

	_, err := manager.Spawn("leet", 50)
	require.NoError(t, err)

	monitor := NewMonitor(manager, 10*time.Millisecond, nil, nil)
	monitor.Start()

	monitor.Stop()
	monitor.Stop()
	require.False(t, monitor.Active())

	// Stop never kills the pane
	require.Zero(t, driver.killCount)
	require.True(t, manager.IsAlive())
}

func TestMonitorRestartAfterStop(t *testing.T) {
	driver := newFakeDriver()
	manager := NewManager(config.RoleViewer, driver, config.NewMemoryStore())

	_, err := manager.Spawn("leet", 50)
	require.NoError(t, err)

	sink := &sinkRecorder{}
	monitor := NewMonitor(manager, 10*time.Millisecond, sink.onCapture, sink.onExit)

	monitor.Start()
	monitor.Stop()
	monitor.Start()
	defer monitor.Stop()

	require.True(t, monitor.Active())
}
