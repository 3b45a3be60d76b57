package tmux

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"

	"wandb-canvas/log"

	"github.com/creack/pty"
	"golang.org/x/term"
)

// attachSession holds the PTY plumbing for an interactive attach.
type attachSession struct {
	ptmx     *os.File
	attachCh chan struct{}
	ctx      context.Context
	cancel   func()
	wg       *sync.WaitGroup

	mu       sync.Mutex
	detached bool
	restore  func()
}

// Attach connects the current terminal to the tmux session that owns paneID
// through a PTY. The returned channel is closed when the user detaches with
// Ctrl-Q.
func Attach(paneID string) (chan struct{}, error) {
	ptmx, err := pty.Start(exec.Command(tmuxBin, "attach-session", "-t", paneID))
	if err != nil {
		return nil, fmt.Errorf("error opening PTY: %w", err)
	}

	oldState, err := term.MakeRaw(int(os.Stdin.Fd()))
	if err != nil {
		_ = ptmx.Close()
		return nil, fmt.Errorf("error entering raw mode: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	a := &attachSession{
		ptmx:     ptmx,
		attachCh: make(chan struct{}),
		ctx:      ctx,
		cancel:   cancel,
		wg:       &sync.WaitGroup{},
		restore: func() {
			_ = term.Restore(int(os.Stdin.Fd()), oldState)
		},
	}

	// Size the PTY to the terminal before starting I/O
	if cols, rows, err := term.GetSize(int(os.Stdin.Fd())); err == nil {
		_ = a.setSize(cols, rows)
	}

	fmt.Fprintf(os.Stdout, "\033[90m--- Press Ctrl+Q to detach ---\033[0m\r\n")

	// Copy output from the PTY to stdout
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		_, _ = io.Copy(os.Stdout, a.ptmx)
		// PTY closed underneath us, e.g. the tmux client exited
		a.detach()
	}()

	// Read stdin and forward to the PTY
	go func() {
		buf := make([]byte, 32)
		for {
			nr, err := os.Stdin.Read(buf)
			if err != nil {
				if err == io.EOF {
					a.detach()
					return
				}
				continue
			}

			// Ctrl+q (ASCII 17) detaches
			if nr == 1 && buf[0] == 17 {
				a.detach()
				return
			}

			if _, err := a.ptmx.Write(buf[:nr]); err != nil {
				return
			}
		}
	}()

	a.monitorWindowSize()
	return a.attachCh, nil
}

func (a *attachSession) setSize(cols, rows int) error {
	return pty.Setsize(a.ptmx, &pty.Winsize{
		Rows: uint16(rows),
		Cols: uint16(cols),
	})
}

// detach tears the attach session down. Safe to call more than once.
func (a *attachSession) detach() {
	a.mu.Lock()
	if a.detached {
		a.mu.Unlock()
		return
	}
	a.detached = true
	a.mu.Unlock()

	a.restore()
	a.cancel()

	if err := a.ptmx.Close(); err != nil {
		log.ErrorLog.Printf("error closing PTY: %v", err)
	}

	close(a.attachCh)
}
