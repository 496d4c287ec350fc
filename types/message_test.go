package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMessage_Constructors(t *testing.T) {
	at := time.UnixMilli(1_700_000_000_123)
	payload := &CredentialPayload{Value: "https://embed/x", IssuedAt: at.UnixMilli(), TTLSeconds: 60}

	tests := []struct {
		name string
		msg  Message
		kind Kind
	}{
		{"request", NewLeaderRequest("peer-a", at), KindLeaderRequest},
		{"announce", NewLeaderAnnounce("peer-a", at, payload), KindLeaderAnnounce},
		{"failed", NewLeaderFailed("peer-a", at), KindLeaderFailed},
		{"left", NewLeaderLeft("peer-a", at), KindLeaderLeft},
		{"refresh", NewRefresh("peer-a", at, nil), KindRefresh},
		{"logout", NewLogout("peer-a", at), KindLogout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.kind, tt.msg.Kind)
			require.Equal(t, "peer-a", tt.msg.SenderID)
			require.Equal(t, at, tt.msg.SentAt())
			require.NoError(t, tt.msg.Validate())
		})
	}
}

func TestMessage_Validate(t *testing.T) {
	at := time.Now()

	t.Run("unknown kind", func(t *testing.T) {
		msg := Message{Kind: Kind(99), SenderID: "peer-a"}
		require.ErrorIs(t, msg.Validate(), ErrUnknownKind)
	})

	t.Run("zero kind", func(t *testing.T) {
		msg := Message{SenderID: "peer-a"}
		require.ErrorIs(t, msg.Validate(), ErrUnknownKind)
	})

	t.Run("empty sender", func(t *testing.T) {
		require.ErrorIs(t, NewLeaderRequest("", at).Validate(), ErrInvalidMessage)
	})

	t.Run("payload on logout", func(t *testing.T) {
		msg := NewLogout("peer-a", at)
		msg.Payload = &CredentialPayload{Value: "x"}
		require.ErrorIs(t, msg.Validate(), ErrInvalidMessage)
	})

	t.Run("empty payload value", func(t *testing.T) {
		msg := NewRefresh("peer-a", at, &CredentialPayload{})
		require.ErrorIs(t, msg.Validate(), ErrInvalidMessage)
	})
}

func TestCredentialPayload_RoundTrip(t *testing.T) {
	cred := Credential{
		Value:    "https://embed/x",
		Message:  "ok",
		IssuedAt: time.UnixMilli(1_700_000_000_000),
		TTL:      45 * time.Minute,
	}

	got := NewCredentialPayload(cred).Credential()
	require.Equal(t, cred.Value, got.Value)
	require.Equal(t, cred.Message, got.Message)
	require.True(t, cred.IssuedAt.Equal(got.IssuedAt))
	require.Equal(t, cred.TTL, got.TTL)
}

func TestKind_String(t *testing.T) {
	require.Equal(t, "leader_request", KindLeaderRequest.String())
	require.Equal(t, "logout", KindLogout.String())
	require.Equal(t, "unknown", Kind(0).String())
}

func TestKind_Text(t *testing.T) {
	for k := KindLeaderRequest; k <= KindLogout; k++ {
		text, err := k.MarshalText()
		require.NoError(t, err)

		var got Kind
		require.NoError(t, got.UnmarshalText(text))
		require.Equal(t, k, got)
	}

	_, err := Kind(0).MarshalText()
	require.ErrorIs(t, err, ErrUnknownKind)

	var k Kind
	require.ErrorIs(t, k.UnmarshalText([]byte("leader")), ErrUnknownKind)
}
