package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"sr-chatbot/internal/domain"
)

func TestNewRequiresDB(t *testing.T) {
	_, err := New(nil, nil)
	require.Error(t, err)
}

func TestConnectRequiresDSN(t *testing.T) {
	_, err := Connect(context.Background(), " ")
	require.ErrorContains(t, err, "dsn")
}

func TestDecodeStateFillsSender(t *testing.T) {
	rec, err := decodeState(stateRow{
		Sender:    "6012",
		StateData: []byte(`{"stage":"FOLLOW_UP","user_name":"Acme","verified":true,"pending_name_options":["a","b"]}`),
	})
	require.NoError(t, err)
	require.Equal(t, "6012", rec.Sender)
	require.Equal(t, "FOLLOW_UP", rec.Stage)
	require.True(t, rec.Verified)
	require.Equal(t, []string{"a", "b"}, rec.PendingNameOptions)

	_, err = decodeState(stateRow{Sender: "6012", StateData: []byte("{")})
	require.Error(t, err)
}

func TestToMessage(t *testing.T) {
	msg := toMessage(messageRow{ID: 42, Sender: "6012", Role: domain.RoleAssistant, Text: "hello"})
	require.Equal(t, "42", msg.SK)
	require.Equal(t, "assistant", msg.Role)
	require.Equal(t, "hello", msg.Text)
}

func TestWrapFlagsMissingTable(t *testing.T) {
	err := wrap("LoadSession", &pq.Error{Code: undefinedTable, Message: "relation does not exist"})
	require.ErrorContains(t, err, "run EnsureTable")

	base := errors.New("conn reset")
	err = wrap("SaveSession", base)
	require.ErrorIs(t, err, base)
	require.NotContains(t, err.Error(), "EnsureTable")
}
