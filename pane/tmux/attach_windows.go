//go:build windows

package tmux

import (
	"os"
	"time"

	"wandb-canvas/log"

	"golang.org/x/term"
)

// monitorWindowSize polls for size changes on Windows, which has no SIGWINCH.
// tmux itself does not run on Windows, so this is primarily a fallback stub.
func (a *attachSession) monitorWindowSize() {
	everyN := log.NewEvery(60 * time.Second)

	doUpdate := func() {
		cols, rows, err := term.GetSize(int(os.Stdin.Fd()))
		if err != nil {
			if everyN.ShouldLog() {
				log.ErrorLog.Printf("failed to get terminal size: %v", err)
			}
		} else {
			if err := a.setSize(cols, rows); err != nil {
				if everyN.ShouldLog() {
					log.ErrorLog.Printf("failed to update window size: %v", err)
				}
			}
		}
	}
	// Set initial size
	defer doUpdate()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		ticker := time.NewTicker(500 * time.Millisecond)
		defer ticker.Stop()

		var lastCols, lastRows int
		for {
			select {
			case <-a.ctx.Done():
				return
			case <-ticker.C:
				cols, rows, err := term.GetSize(int(os.Stdin.Fd()))
				if err == nil && (cols != lastCols || rows != lastRows) {
					lastCols, lastRows = cols, rows
					doUpdate()
				}
			}
		}
	}()
}
