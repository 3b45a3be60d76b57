// Package protocol defines the control-channel message vocabulary between
// the canvas agent and its controller. Messages are newline-delimited JSON,
// tagged by a "type" field. Inbound and outbound vocabularies are disjoint.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Inbound message types (controller -> agent).
const (
	TypeClose        = "close"
	TypeUpdate       = "update"
	TypePing         = "ping"
	TypeGetViewState = "getViewState"
	TypeSendKeys     = "sendKeys"
	TypeRefresh      = "refresh"
)

// Outbound message types (agent -> controller).
const (
	TypeReady     = "ready"
	TypePong      = "pong"
	TypeViewState = "viewState"
	TypeCancelled = "cancelled"
	TypeError     = "error"
)

// ErrUnknownType marks a message whose type tag is not in the vocabulary.
// Such messages are logged and dropped, never fatal.
var ErrUnknownType = errors.New("unknown message type")

var knownTypes = map[string]bool{
	TypeClose:        true,
	TypeUpdate:       true,
	TypePing:         true,
	TypeGetViewState: true,
	TypeSendKeys:     true,
	TypeRefresh:      true,
	TypeReady:        true,
	TypePong:         true,
	TypeViewState:    true,
	TypeCancelled:    true,
	TypeError:        true,
}

// Dimensions is a terminal size in character cells.
type Dimensions struct {
	Cols int `json:"cols"`
	Rows int `json:"rows"`
}

// ViewState is the payload of a viewState message.
type ViewState struct {
	TerminalSnapshot   string     `json:"terminalSnapshot"`
	TerminalDimensions Dimensions `json:"terminalDimensions"`
	// LeetPaneID is the viewer's pane id, null when no pane is live.
	LeetPaneID *string  `json:"leetPaneId"`
	Errors     []string `json:"errors,omitempty"`
	// LastUpdated is an ISO-8601 timestamp of the newest capture.
	LastUpdated string `json:"lastUpdated"`
}

// Message is the tagged union carried on the wire. Fields beyond Type are
// populated per message type; unknown fields from the peer are ignored for
// forward compatibility.
type Message struct {
	Type string `json:"type"`

	// ready
	Scenario string `json:"scenario,omitempty"`
	ClientID string `json:"clientId,omitempty"`

	// update
	Config json.RawMessage `json:"config,omitempty"`

	// sendKeys
	Keys string `json:"keys,omitempty"`

	// viewState
	Data *ViewState `json:"data,omitempty"`

	// cancelled
	Reason string `json:"reason,omitempty"`

	// error
	Message string `json:"message,omitempty"`
}

// Parse decodes one frame. A syntactically valid message with an
// unrecognized type returns ErrUnknownType.
func Parse(frame []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(frame, &msg); err != nil {
		return nil, fmt.Errorf("malformed frame: %w", err)
	}
	if !knownTypes[msg.Type] {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, msg.Type)
	}
	return &msg, nil
}

// Encode serializes a message as one newline-terminated frame.
func Encode(msg *Message) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s message: %w", msg.Type, err)
	}
	return append(data, '\n'), nil
}

// Timestamp formats a time as the protocol's ISO-8601 representation.
func Timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// NewReady builds the handshake sent right after connecting.
func NewReady(scenario, clientID string) *Message {
	return &Message{Type: TypeReady, Scenario: scenario, ClientID: clientID}
}

// NewPong builds the reply to a ping.
func NewPong() *Message {
	return &Message{Type: TypePong}
}

// NewViewState wraps a ViewState payload.
func NewViewState(data *ViewState) *Message {
	return &Message{Type: TypeViewState, Data: data}
}

// NewCancelled reports that the agent is shutting down, with an optional
// reason.
func NewCancelled(reason string) *Message {
	return &Message{Type: TypeCancelled, Reason: reason}
}

// NewError reports a failure to the controller.
func NewError(message string) *Message {
	return &Message{Type: TypeError, Message: message}
}
