package tmux

import (
	"errors"
	"os/exec"
	"testing"

	"wandb-canvas/cmd/cmd_test"
	"wandb-canvas/log"

	"github.com/stretchr/testify/require"
)

func init() {
	log.Initialize(false)
}

func TestSplit(t *testing.T) {
	var executedCmd string
	cmdExec := cmd_test.MockCmdExec{
		RunFunc: func(cmd *exec.Cmd) error {
			return nil
		},
		OutputFunc: func(cmd *exec.Cmd) ([]byte, error) {
			executedCmd = cmd.String()
			return []byte("%5\n"), nil
		},
	}

	driver := NewDriverWithDeps(cmdExec)
	paneID, err := driver.Split("leet --dir /tmp/run", 40)
	require.NoError(t, err)
	require.Equal(t, "%5", paneID)
	require.Contains(t, executedCmd, "split-window")
	require.Contains(t, executedCmd, "#{pane_id}")
	require.Contains(t, executedCmd, "40")
	require.Contains(t, executedCmd, "leet --dir /tmp/run")
}

func TestSplitDefaultsPercent(t *testing.T) {
	var executedCmd string
	cmdExec := cmd_test.MockCmdExec{
		OutputFunc: func(cmd *exec.Cmd) ([]byte, error) {
			executedCmd = cmd.String()
			return []byte("%0\n"), nil
		},
	}

	driver := NewDriverWithDeps(cmdExec)
	_, err := driver.Split("top", 0)
	require.NoError(t, err)
	require.Contains(t, executedCmd, "50")
}

func TestSplitNoPaneID(t *testing.T) {
	tests := []struct {
		name      string
		output    string
		outputErr error
	}{
		{name: "command failed", output: "", outputErr: errors.New("no server running")},
		{name: "empty output", output: "\n", outputErr: nil},
		{name: "garbage output", output: "not-a-pane\n", outputErr: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmdExec := cmd_test.MockCmdExec{
				OutputFunc: func(cmd *exec.Cmd) ([]byte, error) {
					return []byte(tt.output), tt.outputErr
				},
			}

			driver := NewDriverWithDeps(cmdExec)
			paneID, err := driver.Split("leet", 50)
			require.Error(t, err)
			require.Equal(t, "", paneID)
		})
	}
}

func TestCapture(t *testing.T) {
	var executedCmd string
	cmdExec := cmd_test.MockCmdExec{
		OutputFunc: func(cmd *exec.Cmd) ([]byte, error) {
			executedCmd = cmd.String()
			return []byte("line1\nline2"), nil
		},
	}

	driver := NewDriverWithDeps(cmdExec)
	content, err := driver.Capture("%3")
	require.NoError(t, err)
	require.Equal(t, "line1\nline2", content)
	require.Contains(t, executedCmd, "capture-pane")
	require.Contains(t, executedCmd, "-e")
	require.Contains(t, executedCmd, "%3")
}

func TestCapturePreservesEscapes(t *testing.T) {
	colored := "\x1b[32mgreen\x1b[m line"
	cmdExec := cmd_test.MockCmdExec{
		OutputFunc: func(cmd *exec.Cmd) ([]byte, error) {
			return []byte(colored), nil
		},
	}

	driver := NewDriverWithDeps(cmdExec)
	content, err := driver.Capture("%3")
	require.NoError(t, err)
	require.Equal(t, colored, content)
}

func TestSendKeys(t *testing.T) {
	var executedCmd string
	cmdExec := cmd_test.MockCmdExec{
		RunFunc: func(cmd *exec.Cmd) error {
			executedCmd = cmd.String()
			return nil
		},
	}

	driver := NewDriverWithDeps(cmdExec)
	require.NoError(t, driver.SendKeys("%3", "Tab"))
	require.Contains(t, executedCmd, "send-keys")
	require.Contains(t, executedCmd, "%3")
	require.Contains(t, executedCmd, "Tab")
}

func TestSendLiteral(t *testing.T) {
	var executedCmd string
	cmdExec := cmd_test.MockCmdExec{
		RunFunc: func(cmd *exec.Cmd) error {
			executedCmd = cmd.String()
			return nil
		},
	}

	driver := NewDriverWithDeps(cmdExec)
	require.NoError(t, driver.SendLiteral("%3", "hello world"))
	require.Contains(t, executedCmd, "-l")
	require.Contains(t, executedCmd, "hello world")
}

func TestKill(t *testing.T) {
	var executedCmd string
	cmdExec := cmd_test.MockCmdExec{
		RunFunc: func(cmd *exec.Cmd) error {
			executedCmd = cmd.String()
			return nil
		},
	}

	driver := NewDriverWithDeps(cmdExec)
	require.NoError(t, driver.Kill("%3"))
	require.Contains(t, executedCmd, "kill-pane")
	require.Contains(t, executedCmd, "%3")
}

func TestQuery(t *testing.T) {
	tests := []struct {
		name      string
		output    string
		outputErr error
		expected  string
		expectErr bool
	}{
		{name: "pane found", output: "%3\n", expected: "%3"},
		{name: "resolved to different pane", output: "%9\n", expected: "%9"},
		{name: "query failed", output: "", outputErr: errors.New("can't find pane: %3"), expectErr: true},
		{name: "output with ANSI codes", output: "\x1b[32m%3\x1b[m\n", expected: "%3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmdExec := cmd_test.MockCmdExec{
				OutputFunc: func(cmd *exec.Cmd) ([]byte, error) {
					return []byte(tt.output), tt.outputErr
				},
			}

			driver := NewDriverWithDeps(cmdExec)
			id, err := driver.Query("%3")
			if tt.expectErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.expected, id)
		})
	}
}

func TestDimensions(t *testing.T) {
	tests := []struct {
		name      string
		output    string
		outputErr error
		cols      int
		rows      int
		expectErr bool
	}{
		{name: "normal size", output: "120 40\n", cols: 120, rows: 40},
		{name: "query failed", outputErr: errors.New("no such pane"), expectErr: true},
		{name: "malformed output", output: "wide\n", expectErr: true},
		{name: "non-numeric", output: "a b\n", expectErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmdExec := cmd_test.MockCmdExec{
				OutputFunc: func(cmd *exec.Cmd) ([]byte, error) {
					return []byte(tt.output), tt.outputErr
				},
			}

			driver := NewDriverWithDeps(cmdExec)
			cols, rows, err := driver.Dimensions("%3")
			if tt.expectErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.cols, cols)
			require.Equal(t, tt.rows, rows)
		})
	}
}

func TestInSession(t *testing.T) {
	t.Run("no TMUX env", func(t *testing.T) {
		t.Setenv("TMUX", "")
		driver := NewDriverWithDeps(cmd_test.MockCmdExec{
			RunFunc: func(cmd *exec.Cmd) error { return nil },
		})
		require.False(t, driver.InSession())
	})

	t.Run("TMUX set and server alive", func(t *testing.T) {
		t.Setenv("TMUX", "/tmp/tmux-1000/default,12345,0")
		driver := NewDriverWithDeps(cmd_test.MockCmdExec{
			RunFunc: func(cmd *exec.Cmd) error { return nil },
		})
		require.True(t, driver.InSession())
	})

	t.Run("TMUX stale", func(t *testing.T) {
		t.Setenv("TMUX", "/tmp/tmux-1000/default,12345,0")
		driver := NewDriverWithDeps(cmd_test.MockCmdExec{
			RunFunc: func(cmd *exec.Cmd) error { return errors.New("no server running") },
		})
		require.False(t, driver.InSession())
	})
}

func TestStripEscapes(t *testing.T) {
	require.Equal(t, "plain", StripEscapes("plain"))
	require.Equal(t, "green text", StripEscapes("\x1b[32;1mgreen\x1b[m text"))
}
