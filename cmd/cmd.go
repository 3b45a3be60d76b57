package cmd

import "os/exec"

// Executor runs external commands. It exists so pane operations can be
// exercised in tests without a terminal multiplexer installed.
type Executor interface {
	Run(cmd *exec.Cmd) error
	Output(cmd *exec.Cmd) ([]byte, error)
}

type execImpl struct{}

func (e execImpl) Run(cmd *exec.Cmd) error {
	return cmd.Run()
}

func (e execImpl) Output(cmd *exec.Cmd) ([]byte, error) {
	return cmd.Output()
}

// MakeExecutor returns an Executor backed by os/exec.
func MakeExecutor() Executor {
	return execImpl{}
}
