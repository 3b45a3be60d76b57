package cmd_test

import "os/exec"

// MockCmdExec is a scripted Executor for tests.
type MockCmdExec struct {
	RunFunc    func(cmd *exec.Cmd) error
	OutputFunc func(cmd *exec.Cmd) ([]byte, error)
}

func (m MockCmdExec) Run(cmd *exec.Cmd) error {
	return m.RunFunc(cmd)
}

func (m MockCmdExec) Output(cmd *exec.Cmd) ([]byte, error) {
	return m.OutputFunc(cmd)
}
