package torrent

import "fmt"

// BlockStatus is the lifecycle state of a Block. Transitions are
// NOT_REQUESTED -> REQUESTED -> DOWNLOADED; DOWNLOADED is terminal except
// for the piece-verification recovery path in the coordinator (see
// DESIGN.md "Open Questions resolved").
type BlockStatus int

const (
	NotRequested BlockStatus = iota
	Requested
	Downloaded
)

func (s BlockStatus) String() string {
	switch s {
	case NotRequested:
		return "NOT_REQUESTED"
	case Requested:
		return "REQUESTED"
	case Downloaded:
		return "DOWNLOADED"
	default:
		return fmt.Sprintf("BlockStatus(%d)", int(s))
	}
}

// Block is the atomic unit of transfer: a sub-chunk of a piece, at most
// BlockSize bytes, identified by (PieceIndex, Offset).
type Block struct {
	PieceIndex int
	Offset     int64
	Length     int64
	Status     BlockStatus
	Data       []byte

	// requestedAt is set by the coordinator when the block moves to
	// Requested, so the producer's sweep can detect a stuck request.
	requestedAt int64
}

// BlockSize returns B = min(2^14, pieceLength), the BitTorrent-recommended
// request granularity clamped to the piece length for small torrents
// (spec.md §3, boundary scenario "L < B").
func BlockSize(pieceLength int64) int64 {
	const maxBlock = 1 << 14
	if pieceLength < maxBlock {
		return pieceLength
	}
	return maxBlock
}

// BuildBlocks partitions a torrent's payload into blocks in
// (piece_index ascending, offset ascending) order, per the algorithm in
// spec.md §4.2: for piece i, piece_bytes = min(pieceLength, totalSize -
// i*pieceLength); blocks sit at offsets 0, B, 2B, ... with length
// min(B, piece_bytes-offset).
func BuildBlocks(numPieces int, pieceLength, totalSize int64) []Block {
	blockSize := BlockSize(pieceLength)

	var blocks []Block
	for i := 0; i < numPieces; i++ {
		pieceStart := int64(i) * pieceLength
		pieceEnd := pieceStart + pieceLength
		if pieceEnd > totalSize {
			pieceEnd = totalSize
		}
		pieceBytes := pieceEnd - pieceStart

		for offset := int64(0); offset < pieceBytes; offset += blockSize {
			remaining := pieceBytes - offset
			length := blockSize
			if remaining < length {
				length = remaining
			}

			blocks = append(blocks, Block{
				PieceIndex: i,
				Offset:     offset,
				Length:     length,
				Status:     NotRequested,
			})
		}
	}

	return blocks
}
