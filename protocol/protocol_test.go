package protocol

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRoundTripOutbound(t *testing.T) {
	paneID := "%1"
	tests := []struct {
		name string
		msg  *Message
	}{
		{name: "ready", msg: NewReady("training-run", "0b2c6a0e")},
		{name: "pong", msg: NewPong()},
		{
			name: "viewState",
			msg: NewViewState(&ViewState{
				TerminalSnapshot:   "epoch 3/10\nloss 0.42",
				TerminalDimensions: Dimensions{Cols: 120, Rows: 40},
				LeetPaneID:         &paneID,
				Errors:             []string{"capture delayed"},
				LastUpdated:        "2026-08-23T10:00:00Z",
			}),
		},
		{name: "cancelled", msg: NewCancelled("viewer pane exited")},
		{name: "cancelled without reason", msg: NewCancelled("")},
		{name: "error", msg: NewError("no tmux session found")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame, err := Encode(tt.msg)
			require.NoError(t, err)
			require.True(t, strings.HasSuffix(string(frame), "\n"))
			require.NotContains(t, strings.TrimSuffix(string(frame), "\n"), "\n")

			parsed, err := Parse(frame)
			require.NoError(t, err)
			require.Equal(t, tt.msg, parsed)
		})
	}
}

func TestViewStateNullPaneID(t *testing.T) {
	frame, err := Encode(NewViewState(&ViewState{
		TerminalSnapshot:   "",
		TerminalDimensions: Dimensions{Cols: 80, Rows: 24},
		LeetPaneID:         nil,
		LastUpdated:        Timestamp(time.Now()),
	}))
	require.NoError(t, err)
	require.Contains(t, string(frame), `"leetPaneId":null`)

	parsed, err := Parse(frame)
	require.NoError(t, err)
	require.Nil(t, parsed.Data.LeetPaneID)
}

func TestParseInbound(t *testing.T) {
	tests := []struct {
		name     string
		frame    string
		expected string
	}{
		{name: "close", frame: `{"type":"close"}`, expected: TypeClose},
		{name: "ping", frame: `{"type":"ping"}`, expected: TypePing},
		{name: "getViewState", frame: `{"type":"getViewState"}`, expected: TypeGetViewState},
		{name: "refresh", frame: `{"type":"refresh"}`, expected: TypeRefresh},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := Parse([]byte(tt.frame))
			require.NoError(t, err)
			require.Equal(t, tt.expected, msg.Type)
		})
	}
}

func TestParseSendKeys(t *testing.T) {
	msg, err := Parse([]byte(`{"type":"sendKeys","keys":"Tab"}`))
	require.NoError(t, err)
	require.Equal(t, TypeSendKeys, msg.Type)
	require.Equal(t, "Tab", msg.Keys)
}

func TestParseUpdateCarriesRawConfig(t *testing.T) {
	msg, err := Parse([]byte(`{"type":"update","config":{"capture_interval_ms":500}}`))
	require.NoError(t, err)
	require.Equal(t, TypeUpdate, msg.Type)
	require.JSONEq(t, `{"capture_interval_ms":500}`, string(msg.Config))
}

func TestParseUnknownType(t *testing.T) {
	_, err := Parse([]byte(`{"type":"reboot"}`))
	require.ErrorIs(t, err, ErrUnknownType)

	_, err = Parse([]byte(`{"keys":"Tab"}`))
	require.ErrorIs(t, err, ErrUnknownType)
}

func TestParseMalformedFrame(t *testing.T) {
	_, err := Parse([]byte(`{"type":"ping"`))
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrUnknownType)
}

func TestParseIgnoresUnknownFields(t *testing.T) {
	msg, err := Parse([]byte(`{"type":"ping","futureField":42}`))
	require.NoError(t, err)
	require.Equal(t, TypePing, msg.Type)
}

func TestTimestamp(t *testing.T) {
	ts := Timestamp(time.Date(2026, 8, 23, 12, 30, 0, 0, time.UTC))
	require.Equal(t, "2026-08-23T12:30:00Z", ts)
}
