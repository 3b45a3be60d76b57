package pane

import (
	"sync"
	"time"

	"wandb-canvas/log"
)

// Monitor polls a Manager on a fixed interval, forwarding captured text to
// a sink and detecting pane death. A transient capture failure is absorbed;
// a failure with a dead pane stops the monitor and fires the exit sink
// exactly once.
type Monitor struct {
	manager   *Manager
	interval  time.Duration
	onCapture func(text string)
	onExit    func()

	mu     sync.Mutex
	active bool
	exited bool
	stopCh chan struct{}
}

// NewMonitor creates a Monitor. An interval of 0 disables the repeating
// timer, leaving only the immediate capture on Start.
func NewMonitor(manager *Manager, interval time.Duration, onCapture func(string), onExit func()) *Monitor {
	return &Monitor{
		manager:   manager,
		interval:  interval,
		onCapture: onCapture,
		onExit:    onExit,
	}
}

// Start performs one immediate capture and, when the interval is positive,
// arms the repeating timer. No-op while already running.
func (mo *Monitor) Start() {
	mo.mu.Lock()
	if mo.active {
		mo.mu.Unlock()
		return
	}
	mo.active = true
	mo.exited = false
	mo.stopCh = make(chan struct{})
	stopCh := mo.stopCh
	mo.mu.Unlock()

	mo.tick()

	if mo.interval <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(mo.interval)
		defer ticker.Stop()
		for {
			select {
			case <-stopCh:
				return
			case <-ticker.C:
				mo.tick()
			}
		}
	}()
}

// Stop cancels the timer. Idempotent. Never kills the pane; lifecycle kill
// is a separate, caller-decided action.
func (mo *Monitor) Stop() {
	mo.mu.Lock()
	defer mo.mu.Unlock()
	mo.stopLocked()
}

func (mo *Monitor) stopLocked() {
	if !mo.active {
		return
	}
	mo.active = false
	close(mo.stopCh)
}

// Active reports whether the monitor is running.
func (mo *Monitor) Active() bool {
	mo.mu.Lock()
	defer mo.mu.Unlock()
	return mo.active
}

func (mo *Monitor) tick() {
	content, err := mo.manager.Capture()
	if err == nil {
		// A tick that raced with Stop must not deliver its result
		mo.mu.Lock()
		active := mo.active
		mo.mu.Unlock()
		if active && mo.onCapture != nil {
			mo.onCapture(content)
		}
		return
	}

	log.CaptureTrace("capture failed: %v", err)

	if mo.manager.IsAlive() {
		// Transient glitch, try again next tick
		return
	}

	mo.mu.Lock()
	fireExit := mo.active && !mo.exited
	if fireExit {
		mo.exited = true
	}
	mo.stopLocked()
	mo.mu.Unlock()

	if fireExit {
		log.InfoLog.Printf("%s pane exited, stopping capture", mo.manager.Role())
		if mo.onExit != nil {
			mo.onExit()
		}
	}
}
