package torrent

import (
	"encoding/binary"
	"fmt"
	"io"
)

// protocolString is the fixed pstr of the BitTorrent peer wire protocol
// (BEP 3). Bit-exact per spec.md §4.1 / §6.
const protocolString = "BitTorrent protocol"

const handshakeLength = 1 + len(protocolString) + 8 + 20 + 20

// MessageID identifies a framed peer protocol message (spec.md §4.1).
type MessageID uint8

const (
	MsgChoke         MessageID = 0
	MsgUnchoke       MessageID = 1
	MsgInterested    MessageID = 2
	MsgNotInterested MessageID = 3
	MsgHave          MessageID = 4
	MsgBitfield      MessageID = 5
	MsgRequest       MessageID = 6
	MsgPiece         MessageID = 7
	MsgCancel        MessageID = 8
	MsgPort          MessageID = 9
)

// Message is a decoded framed peer protocol message. A nil *Message (no
// error) represents a keep-alive.
type Message struct {
	ID      MessageID
	Payload []byte
}

// CreateHandshake encodes the 68-byte handshake: pstrlen | pstr | 8 zero
// reserved bytes | info_hash | peer_id. Both arguments are [20]byte arrays,
// so their length is fixed by the type and encoding cannot fail.
func CreateHandshake(infoHash, peerID [20]byte) []byte {
	buf := make([]byte, 0, handshakeLength)
	buf = append(buf, byte(len(protocolString)))
	buf = append(buf, protocolString...)
	buf = append(buf, make([]byte, 8)...)
	buf = append(buf, infoHash[:]...)
	buf = append(buf, peerID[:]...)
	return buf
}

// ParseHandshake decodes a 68-byte handshake and returns the remote's
// (info_hash, peer_id). It returns ErrProtocol if the leading length byte
// is not 19 or the pstr does not match exactly.
func ParseHandshake(data []byte) (infoHash, peerID [20]byte, err error) {
	if len(data) != handshakeLength {
		return infoHash, peerID, fmt.Errorf("%w: handshake length %d, want %d", ErrProtocol, len(data), handshakeLength)
	}

	if data[0] != byte(len(protocolString)) {
		return infoHash, peerID, fmt.Errorf("%w: pstrlen %d, want %d", ErrProtocol, data[0], len(protocolString))
	}

	if string(data[1:1+len(protocolString)]) != protocolString {
		return infoHash, peerID, fmt.Errorf("%w: unexpected protocol string %q", ErrProtocol, data[1:1+len(protocolString)])
	}

	off := 1 + len(protocolString) + 8
	copy(infoHash[:], data[off:off+20])
	copy(peerID[:], data[off+20:off+40])

	return infoHash, peerID, nil
}

// ReadHandshake reads exactly 68 bytes from r and parses them.
func ReadHandshake(r io.Reader) (infoHash, peerID [20]byte, err error) {
	buf := make([]byte, handshakeLength)
	if _, err := io.ReadFull(r, buf); err != nil {
		return infoHash, peerID, fmt.Errorf("%w: reading handshake: %v", ErrTransport, err)
	}
	return ParseHandshake(buf)
}

func createMessage(id MessageID, payload []byte) []byte {
	length := uint32(len(payload) + 1)
	buf := make([]byte, 4+length)
	binary.BigEndian.PutUint32(buf[0:4], length)
	buf[4] = byte(id)
	copy(buf[5:], payload)
	return buf
}

// CreateKeepAlive encodes a zero-length keep-alive message.
func CreateKeepAlive() []byte {
	return make([]byte, 4)
}

// CreateInterested encodes an INTERESTED message.
func CreateInterested() []byte { return createMessage(MsgInterested, nil) }

// CreateNotInterested encodes a NOT_INTERESTED message.
func CreateNotInterested() []byte { return createMessage(MsgNotInterested, nil) }

// CreateChoke encodes a CHOKE message.
func CreateChoke() []byte { return createMessage(MsgChoke, nil) }

// CreateUnchoke encodes an UNCHOKE message.
func CreateUnchoke() []byte { return createMessage(MsgUnchoke, nil) }

// CreateHave encodes a HAVE message for the given piece index.
func CreateHave(pieceIndex uint32) []byte {
	payload := make([]byte, 4)
	binary.BigEndian.PutUint32(payload, pieceIndex)
	return createMessage(MsgHave, payload)
}

// CreateRequest encodes a REQUEST message.
func CreateRequest(index, begin, length uint32) []byte {
	payload := make([]byte, 12)
	binary.BigEndian.PutUint32(payload[0:4], index)
	binary.BigEndian.PutUint32(payload[4:8], begin)
	binary.BigEndian.PutUint32(payload[8:12], length)
	return createMessage(MsgRequest, payload)
}

// CreatePiece encodes a PIECE message.
func CreatePiece(index, begin uint32, block []byte) []byte {
	payload := make([]byte, 8+len(block))
	binary.BigEndian.PutUint32(payload[0:4], index)
	binary.BigEndian.PutUint32(payload[4:8], begin)
	copy(payload[8:], block)
	return createMessage(MsgPiece, payload)
}

// CreateCancel encodes a CANCEL message (same shape as REQUEST).
func CreateCancel(index, begin, length uint32) []byte {
	payload := make([]byte, 12)
	binary.BigEndian.PutUint32(payload[0:4], index)
	binary.BigEndian.PutUint32(payload[4:8], begin)
	binary.BigEndian.PutUint32(payload[8:12], length)
	return createMessage(MsgCancel, payload)
}

// ReadMessage reads one framed message (or a keep-alive, returned as a nil
// *Message) from r. Unknown ids are consumed and returned as-is; callers
// that don't recognize the id should ignore the payload. Malformed
// payloads for known ids are the caller's responsibility to reject via
// ParseHave/ParseRequest/ParsePiece, which return ErrProtocol.
func ReadMessage(r io.Reader) (*Message, error) {
	var lengthBuf [4]byte
	if _, err := io.ReadFull(r, lengthBuf[:]); err != nil {
		return nil, fmt.Errorf("%w: reading length prefix: %v", ErrTransport, err)
	}

	length := binary.BigEndian.Uint32(lengthBuf[:])
	if length == 0 {
		return nil, nil // keep-alive
	}

	buf := make([]byte, length)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("%w: reading payload: %v", ErrTransport, err)
	}

	return &Message{ID: MessageID(buf[0]), Payload: buf[1:]}, nil
}

// ParseHave validates and decodes a HAVE payload.
func ParseHave(msg *Message) (pieceIndex uint32, err error) {
	if msg.ID != MsgHave {
		return 0, fmt.Errorf("%w: expected HAVE, got id %d", ErrProtocol, msg.ID)
	}
	if len(msg.Payload) != 4 {
		return 0, fmt.Errorf("%w: HAVE payload length %d, want 4", ErrProtocol, len(msg.Payload))
	}
	return binary.BigEndian.Uint32(msg.Payload), nil
}

// ParseRequest validates and decodes a REQUEST (or CANCEL) payload.
func ParseRequest(msg *Message) (index, begin, length uint32, err error) {
	if msg.ID != MsgRequest && msg.ID != MsgCancel {
		return 0, 0, 0, fmt.Errorf("%w: expected REQUEST/CANCEL, got id %d", ErrProtocol, msg.ID)
	}
	if len(msg.Payload) != 12 {
		return 0, 0, 0, fmt.Errorf("%w: REQUEST payload length %d, want 12", ErrProtocol, len(msg.Payload))
	}
	index = binary.BigEndian.Uint32(msg.Payload[0:4])
	begin = binary.BigEndian.Uint32(msg.Payload[4:8])
	length = binary.BigEndian.Uint32(msg.Payload[8:12])
	return index, begin, length, nil
}

// ParsePiece validates and decodes a PIECE payload, returning the piece
// index, the begin offset within the piece, and the block bytes (which
// alias msg.Payload; ReadMessage allocates a fresh buffer per message).
func ParsePiece(msg *Message) (index, begin uint32, block []byte, err error) {
	if msg.ID != MsgPiece {
		return 0, 0, nil, fmt.Errorf("%w: expected PIECE, got id %d", ErrProtocol, msg.ID)
	}
	if len(msg.Payload) < 8 {
		return 0, 0, nil, fmt.Errorf("%w: PIECE payload length %d, want >= 8", ErrProtocol, len(msg.Payload))
	}
	index = binary.BigEndian.Uint32(msg.Payload[0:4])
	begin = binary.BigEndian.Uint32(msg.Payload[4:8])
	return index, begin, msg.Payload[8:], nil
}

// ParseBitfield validates a BITFIELD payload against the expected number
// of pieces and returns the set piece indexes. A payload shorter than
// ceil(numPieces/8) is ErrProtocol; a longer payload, or trailing bits set
// past numPieces, is tolerated per spec.md §4.1.
func ParseBitfield(msg *Message, numPieces int) ([]int, error) {
	if msg.ID != MsgBitfield {
		return nil, fmt.Errorf("%w: expected BITFIELD, got id %d", ErrProtocol, msg.ID)
	}

	want := (numPieces + 7) / 8
	if len(msg.Payload) < want {
		return nil, fmt.Errorf("%w: BITFIELD length %d, want >= %d", ErrProtocol, len(msg.Payload), want)
	}

	var have []int
	for i := 0; i < numPieces; i++ {
		byteIndex := i / 8
		bitIndex := uint(7 - i%8)
		if msg.Payload[byteIndex]>>bitIndex&1 == 1 {
			have = append(have, i)
		}
	}
	return have, nil
}

// CreateBitfield encodes a framed BITFIELD message whose payload advertises
// the given set of piece indexes out of numPieces total.
func CreateBitfield(have []int, numPieces int) []byte {
	payload := make([]byte, (numPieces+7)/8)
	for _, i := range have {
		if i < 0 || i >= numPieces {
			continue
		}
		payload[i/8] |= 1 << uint(7-i%8)
	}
	return createMessage(MsgBitfield, payload)
}
