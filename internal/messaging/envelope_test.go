package messaging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"atsassist/pkg/domain"
)

func TestParseMessage(t *testing.T) {
	msg, err := ParseMessage([]byte(`{"type":"SET_SIDEBAR_STATE","payload":{"isOpen":true}}`))
	require.NoError(t, err)
	assert.Equal(t, domain.MessageSetSidebarState, msg.Type)
	assert.JSONEq(t, `{"isOpen":true}`, string(msg.Payload))

	msg, err = ParseMessage([]byte(`{"type":"PING","payload":null}`))
	require.NoError(t, err)
	assert.Nil(t, msg.Payload)

	msg, err = ParseMessage([]byte(`{"type":"UNKNOWN_TYPE"}`))
	require.NoError(t, err)
	assert.Equal(t, domain.MessageType("UNKNOWN_TYPE"), msg.Type)
}

func TestParseMessageErrors(t *testing.T) {
	for _, raw := range []string{``, `{`, `[]`, `"PING"`, `{}`, `{"type":""}`, `{"type":7}`} {
		_, err := ParseMessage([]byte(raw))
		assert.ErrorIs(t, err, ErrInvalidMessage, raw)
	}
}

func TestNewMessage(t *testing.T) {
	msg, err := NewMessage(domain.MessagePing, nil)
	require.NoError(t, err)
	assert.Nil(t, msg.Payload)

	msg, err = NewMessage(domain.MessageSetSidebarState, map[string]bool{"isOpen": true})
	require.NoError(t, err)
	assert.JSONEq(t, `{"isOpen":true}`, string(msg.Payload))

	_, err = NewMessage(domain.MessageSetSidebarState, make(chan int))
	assert.Error(t, err)
}

func TestDecode(t *testing.T) {
	st, err := Decode[domain.SidebarState](domain.OK(map[string]any{"isOpen": true, "selectedCandidateId": "x"}))
	require.NoError(t, err)
	assert.True(t, st.IsOpen)
	assert.Equal(t, "x", *st.SelectedCandidateID)

	_, err = Decode[domain.SidebarState](domain.Fail("Unknown message type: X"))
	assert.EqualError(t, err, "Unknown message type: X")

	_, err = Decode[int](domain.OK("pong"))
	assert.Error(t, err)
}
