package bus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/credshare/types"
)

func TestCodecByName(t *testing.T) {
	c, err := CodecByName("")
	require.NoError(t, err)
	require.Equal(t, CodecNameJSON, c.Name())

	c, err = CodecByName("msgpack")
	require.NoError(t, err)
	require.Equal(t, CodecNameMsgpack, c.Name())

	_, err = CodecByName("protobuf")
	require.ErrorIs(t, err, types.ErrUnknownCodec)
}

func TestCodecs_PreserveMessage(t *testing.T) {
	at := time.UnixMilli(1_750_000_000_000)
	msg := types.NewRefresh("peer-a", at, &types.CredentialPayload{
		Value:      "https://embed/report?sig=abc",
		Message:    "Signed URL generated",
		IssuedAt:   at.UnixMilli(),
		TTLSeconds: 3600,
	})

	for _, codec := range []Codec{JSONCodec{}, MsgpackCodec{}} {
		t.Run(codec.Name(), func(t *testing.T) {
			data, err := codec.Encode(msg)
			require.NoError(t, err)

			got, err := codec.Decode(data)
			require.NoError(t, err)
			require.Equal(t, msg, got)
		})
	}
}

func TestJSONCodec_WireShape(t *testing.T) {
	data, err := JSONCodec{}.Encode(types.NewLeaderRequest("peer-a", time.UnixMilli(5)))
	require.NoError(t, err)
	require.JSONEq(t, `{"kind":"leader_request","senderId":"peer-a","timestamp":5}`, string(data))
}

func TestCodecs_RejectInvalid(t *testing.T) {
	_, err := JSONCodec{}.Decode([]byte(`{"kind":"leader","senderId":"x"}`))
	require.ErrorIs(t, err, types.ErrUnknownKind)

	_, err = JSONCodec{}.Decode([]byte(`{"kind":"logout","senderId":""}`))
	require.ErrorIs(t, err, types.ErrInvalidMessage)

	_, err = JSONCodec{}.Decode([]byte(`not json`))
	require.ErrorIs(t, err, types.ErrInvalidMessage)

	_, err = MsgpackCodec{}.Decode([]byte{0xc1})
	require.ErrorIs(t, err, types.ErrInvalidMessage)
}
