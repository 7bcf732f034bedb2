package torrent

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandshakeRoundTrip(t *testing.T) {
	var infoHash, peerID [20]byte
	for i := range infoHash {
		infoHash[i] = byte(i + 1)
	}
	copy(peerID[:], "-PY0001-xxxxxxxxxxxx")

	encoded := CreateHandshake(infoHash, peerID)
	require.Len(t, encoded, handshakeLength)
	assert.Equal(t, byte(19), encoded[0])
	assert.Equal(t, "BitTorrent protocol", string(encoded[1:20]))
	assert.Equal(t, make([]byte, 8), encoded[20:28])

	gotHash, gotPeer, err := ParseHandshake(encoded)
	require.NoError(t, err)
	assert.Equal(t, infoHash, gotHash)
	assert.Equal(t, peerID, gotPeer)
}

func TestParseHandshakeRejectsBadProtocol(t *testing.T) {
	var infoHash, peerID [20]byte
	encoded := CreateHandshake(infoHash, peerID)
	encoded[0] = 18 // wrong pstrlen

	_, _, err := ParseHandshake(encoded)
	require.ErrorIs(t, err, ErrProtocol)
}

func TestParseHandshakeRejectsWrongLength(t *testing.T) {
	_, _, err := ParseHandshake([]byte{1, 2, 3})
	require.ErrorIs(t, err, ErrProtocol)
}

func TestCreateRequestVector(t *testing.T) {
	// spec.md §8 scenario 5
	got := CreateRequest(5, 16384, 16384)
	want := []byte{
		0x00, 0x00, 0x00, 0x0D,
		0x06,
		0x00, 0x00, 0x00, 0x05,
		0x00, 0x00, 0x40, 0x00,
		0x00, 0x00, 0x40, 0x00,
	}
	assert.Equal(t, want, got)
}

func TestMessageRoundTrips(t *testing.T) {
	tests := []struct {
		name string
		wire []byte
		id   MessageID
	}{
		{"interested", CreateInterested(), MsgInterested},
		{"choke", CreateChoke(), MsgChoke},
		{"unchoke", CreateUnchoke(), MsgUnchoke},
		{"have", CreateHave(7), MsgHave},
		{"request", CreateRequest(1, 2, 3), MsgRequest},
		{"piece", CreatePiece(1, 2, []byte("hello")), MsgPiece},
		{"cancel", CreateCancel(1, 2, 3), MsgCancel},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			msg, err := ReadMessage(bytes.NewReader(tc.wire))
			require.NoError(t, err)
			require.NotNil(t, msg)
			assert.Equal(t, tc.id, msg.ID)
		})
	}
}

func TestReadMessageKeepAlive(t *testing.T) {
	msg, err := ReadMessage(bytes.NewReader(CreateKeepAlive()))
	require.NoError(t, err)
	assert.Nil(t, msg)
}

func TestReadMessageTruncatedPayload(t *testing.T) {
	full := CreateRequest(1, 2, 3)
	truncated := full[:len(full)-2]
	_, err := ReadMessage(bytes.NewReader(truncated))
	require.Error(t, err)
}

func TestParseHaveRejectsBadLength(t *testing.T) {
	_, err := ParseHave(&Message{ID: MsgHave, Payload: []byte{1, 2, 3}})
	require.ErrorIs(t, err, ErrProtocol)
}

func TestParsePieceRoundTrip(t *testing.T) {
	block := []byte("payload-bytes")
	wire := CreatePiece(3, 64, block)

	msg, err := ReadMessage(bytes.NewReader(wire))
	require.NoError(t, err)

	index, begin, data, err := ParsePiece(msg)
	require.NoError(t, err)
	assert.Equal(t, uint32(3), index)
	assert.Equal(t, uint32(64), begin)
	assert.Equal(t, block, data)
}

func TestParsePieceRejectsShortPayload(t *testing.T) {
	_, _, _, err := ParsePiece(&Message{ID: MsgPiece, Payload: []byte{1, 2, 3}})
	require.ErrorIs(t, err, ErrProtocol)
}

func TestBitfieldRoundTrip(t *testing.T) {
	numPieces := 10
	have := []int{0, 3, 9}

	wire := CreateBitfield(have, numPieces)
	msg, err := ReadMessage(bytes.NewReader(wire))
	require.NoError(t, err)

	got, err := ParseBitfield(msg, numPieces)
	require.NoError(t, err)
	assert.Equal(t, have, got)
}

func TestParseBitfieldTooShortIsProtocolError(t *testing.T) {
	msg := &Message{ID: MsgBitfield, Payload: []byte{0x00}}
	_, err := ParseBitfield(msg, 100) // needs ceil(100/8) = 13 bytes
	require.ErrorIs(t, err, ErrProtocol)
}

func TestParseBitfieldTrailingPaddingTolerated(t *testing.T) {
	// 3 pieces need 1 byte; only bits 0 and 2 set, bit 1 and padding bits
	// (non-zero padding) must still be tolerated per spec.md §4.1.
	msg := &Message{ID: MsgBitfield, Payload: []byte{0b10100001}}
	got, err := ParseBitfield(msg, 3)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 2}, got)
}
