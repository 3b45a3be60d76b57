// Package tmux drives panes in the ambient tmux session through the tmux
// binary. Every invocation goes through a cmd.Executor so the driver can be
// exercised in tests without tmux installed.
package tmux

import (
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"strings"

	"wandb-canvas/cmd"
)

const tmuxBin = "tmux"

var ansiEscapeRegex = regexp.MustCompile(`\x1b\[[0-9;]*m`)

// StripEscapes removes SGR formatting escapes from captured text.
func StripEscapes(s string) string {
	return ansiEscapeRegex.ReplaceAllString(s, "")
}

// Driver is the production pane driver.
type Driver struct {
	cmdExec cmd.Executor
}

// NewDriver creates a Driver backed by the real tmux binary.
func NewDriver() *Driver {
	return &Driver{cmdExec: cmd.MakeExecutor()}
}

// NewDriverWithDeps creates a Driver with a provided executor for testing.
func NewDriverWithDeps(cmdExec cmd.Executor) *Driver {
	return &Driver{cmdExec: cmdExec}
}

// InSession reports whether the process runs inside a live tmux session.
func (d *Driver) InSession() bool {
	if os.Getenv("TMUX") == "" {
		return false
	}
	// TMUX can be stale after a server crash, confirm the server answers
	return d.cmdExec.Run(exec.Command(tmuxBin, "has-session")) == nil
}

// Split creates a new pane running command, sized as a percentage of the
// window, and returns its pane id. The pane is created detached so focus
// stays where the user left it.
func (d *Driver) Split(command string, percent int) (string, error) {
	if percent <= 0 || percent >= 100 {
		percent = 50
	}

	args := []string{"split-window", "-h", "-d", "-P", "-F", "#{pane_id}", "-p", strconv.Itoa(percent)}
	if command != "" {
		args = append(args, command)
	}

	output, err := d.cmdExec.Output(exec.Command(tmuxBin, args...))
	if err != nil {
		return "", fmt.Errorf("error splitting window: %w", err)
	}

	paneID := strings.TrimSpace(StripEscapes(string(output)))
	if !strings.HasPrefix(paneID, "%") {
		return "", fmt.Errorf("split-window returned no pane id: %q", paneID)
	}
	return paneID, nil
}

// Capture dumps the pane's visible screen buffer, formatting escapes
// included.
func (d *Driver) Capture(paneID string) (string, error) {
	output, err := d.cmdExec.Output(exec.Command(tmuxBin, "capture-pane", "-p", "-e", "-t", paneID))
	if err != nil {
		return "", fmt.Errorf("error capturing pane %s: %w", paneID, err)
	}
	return string(output), nil
}

// SendKeys forwards a key sequence to the pane. Named keys such as Tab,
// Enter and Up pass through tmux's key name translation.
func (d *Driver) SendKeys(paneID, keys string) error {
	return d.cmdExec.Run(exec.Command(tmuxBin, "send-keys", "-t", paneID, keys))
}

// SendLiteral sends text to the pane without key name translation.
func (d *Driver) SendLiteral(paneID, text string) error {
	return d.cmdExec.Run(exec.Command(tmuxBin, "send-keys", "-t", paneID, "-l", text))
}

// Kill destroys the pane.
func (d *Driver) Kill(paneID string) error {
	return d.cmdExec.Run(exec.Command(tmuxBin, "kill-pane", "-t", paneID))
}

// Query resolves a pane id against tmux's live pane table. tmux silently
// resolves a dead id to a different pane, so callers must compare the
// returned id against the one they asked for.
func (d *Driver) Query(paneID string) (string, error) {
	output, err := d.cmdExec.Output(exec.Command(tmuxBin, "display-message", "-p", "-t", paneID, "#{pane_id}"))
	if err != nil {
		return "", fmt.Errorf("error querying pane %s: %w", paneID, err)
	}
	return strings.TrimSpace(StripEscapes(string(output))), nil
}

// Dimensions returns the pane's current size in character cells.
func (d *Driver) Dimensions(paneID string) (cols, rows int, err error) {
	output, err := d.cmdExec.Output(exec.Command(tmuxBin, "display-message", "-p", "-t", paneID, "#{pane_width} #{pane_height}"))
	if err != nil {
		return 0, 0, fmt.Errorf("error querying pane size %s: %w", paneID, err)
	}

	fields := strings.Fields(StripEscapes(string(output)))
	if len(fields) != 2 {
		return 0, 0, fmt.Errorf("unexpected pane size output: %q", string(output))
	}
	cols, err = strconv.Atoi(fields[0])
	if err != nil {
		return 0, 0, fmt.Errorf("bad pane width %q: %w", fields[0], err)
	}
	rows, err = strconv.Atoi(fields[1])
	if err != nil {
		return 0, 0, fmt.Errorf("bad pane height %q: %w", fields[1], err)
	}
	return cols, rows, nil
}

// IsAvailable checks if tmux is installed.
func IsAvailable() bool {
	return exec.Command(tmuxBin, "-V").Run() == nil
}
