// Package router interprets controller messages and drives the pane
// lifecycle manager and capture monitor in response.
package router

import (
	"context"
	"sync"
	"time"

	"wandb-canvas/config"
	"wandb-canvas/ipc"
	"wandb-canvas/log"
	"wandb-canvas/pane"
	"wandb-canvas/protocol"

	"github.com/google/uuid"
)

// Router owns the control channel for one agent run: it connects, performs
// the ready handshake, keeps the capture monitor feeding view state to the
// controller and dispatches inbound messages.
type Router struct {
	scenario string
	clientID string
	manager  *pane.Manager
	cfg      *config.Config

	mu      sync.Mutex
	client  *ipc.Client
	monitor *pane.Monitor

	done      chan struct{}
	closeOnce sync.Once
}

// New creates a Router. The scenario names the run being visualized and is
// echoed to the controller in the ready handshake.
func New(scenario string, manager *pane.Manager, cfg *config.Config) *Router {
	return &Router{
		scenario: scenario,
		clientID: uuid.NewString(),
		manager:  manager,
		cfg:      cfg,
		done:     make(chan struct{}),
	}
}

// Run connects to the controller socket, sends ready, starts the capture
// monitor and blocks until the controller sends close, the connection drops,
// or ctx is cancelled.
func (r *Router) Run(ctx context.Context, socketPath string) error {
	client, err := ipc.ConnectWithRetry(ctx, socketPath, ipc.Handlers{
		OnMessage: r.dispatch,
		OnDisconnect: func() {
			log.InfoLog.Printf("controller went away, shutting down")
			r.shutdown()
		},
		OnError: func(err error) {
			log.WarningLog.Printf("protocol error: %v", err)
		},
	})
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.client = client
	r.mu.Unlock()
	defer client.Close()

	if err := client.Send(protocol.NewReady(r.scenario, r.clientID)); err != nil {
		return err
	}

	r.startMonitor()
	defer r.stopMonitor()

	select {
	case <-ctx.Done():
		_ = client.Send(protocol.NewCancelled("agent shutting down"))
		return ctx.Err()
	case <-r.done:
		return nil
	}
}

func (r *Router) dispatch(msg *protocol.Message) {
	switch msg.Type {
	case protocol.TypeClose:
		r.stopMonitor()
		r.manager.Kill()
		r.shutdown()

	case protocol.TypeUpdate:
		if err := r.cfg.ApplyUpdate(msg.Config); err != nil {
			log.ErrorLog.Printf("rejecting config update: %v", err)
			r.send(protocol.NewError(err.Error()))
			return
		}
		// A changed capture interval takes effect on the next monitor start
		log.InfoLog.Printf("config updated by controller")

	case protocol.TypePing:
		r.send(protocol.NewPong())

	case protocol.TypeGetViewState:
		// Latest known state, without forcing a fresh capture
		r.send(protocol.NewViewState(r.buildViewState()))

	case protocol.TypeSendKeys:
		if !r.manager.SendKeys(msg.Keys) {
			r.send(protocol.NewError("no live viewer pane to send keys to"))
		}

	case protocol.TypeRefresh:
		if _, err := r.manager.Capture(); err != nil {
			log.WarningLog.Printf("refresh capture failed: %v", err)
		}
		r.send(protocol.NewViewState(r.buildViewState()))

	default:
		log.WarningLog.Printf("dropping unhandled message type %q", msg.Type)
	}
}

// startMonitor arms the capture monitor with the configured interval. Each
// successful capture is pushed to the controller as a viewState message; the
// pane dying produces a single cancelled notification.
func (r *Router) startMonitor() {
	interval := time.Duration(r.cfg.CaptureIntervalMs) * time.Millisecond

	monitor := pane.NewMonitor(r.manager, interval,
		func(string) {
			r.send(protocol.NewViewState(r.buildViewState()))
		},
		func() {
			r.send(protocol.NewCancelled("viewer pane exited"))
		},
	)

	r.mu.Lock()
	r.monitor = monitor
	r.mu.Unlock()

	monitor.Start()
}

func (r *Router) stopMonitor() {
	r.mu.Lock()
	monitor := r.monitor
	r.mu.Unlock()
	if monitor != nil {
		monitor.Stop()
	}
}

func (r *Router) send(msg *protocol.Message) {
	r.mu.Lock()
	client := r.client
	r.mu.Unlock()
	if client == nil {
		return
	}
	if err := client.Send(msg); err != nil {
		log.WarningLog.Printf("failed to send %s message: %v", msg.Type, err)
	}
}

func (r *Router) shutdown() {
	r.closeOnce.Do(func() {
		close(r.done)
	})
}
