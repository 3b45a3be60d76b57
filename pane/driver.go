package pane

// Driver is the surface the lifecycle manager needs from a terminal
// multiplexer. The production implementation lives in pane/tmux; tests use
// scripted fakes.
type Driver interface {
	// InSession reports whether an ambient multiplexer session exists.
	InSession() bool
	// Split creates a pane running command and returns its id.
	Split(command string, percent int) (string, error)
	// Capture dumps the pane's visible buffer, escapes included.
	Capture(paneID string) (string, error)
	// SendKeys forwards a key sequence, with named key translation.
	SendKeys(paneID, keys string) error
	// SendLiteral sends text without key name translation.
	SendLiteral(paneID, text string) error
	// Kill destroys the pane.
	Kill(paneID string) error
	// Query resolves a pane id against the live pane table. The returned id
	// may differ from the requested one when the multiplexer substitutes a
	// neighbor for a dead pane.
	Query(paneID string) (string, error)
	// Dimensions returns the pane size in character cells.
	Dimensions(paneID string) (cols, rows int, err error)
}
