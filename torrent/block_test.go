package torrent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlockSize(t *testing.T) {
	assert.Equal(t, int64(1<<14), BlockSize(1<<20))
	assert.Equal(t, int64(8), BlockSize(8)) // piece smaller than 2^14 clamps down
}

func TestBuildBlocksTinyLastPieceShort(t *testing.T) {
	// spec.md §8 "Tiny": piece length 8, block size clamps to 8, total 17
	// bytes across 3 pieces (8, 8, 1).
	blocks := BuildBlocks(3, 8, 17)

	require.Len(t, blocks, 3)
	assert.Equal(t, Block{PieceIndex: 0, Offset: 0, Length: 8, Status: NotRequested}, blocks[0])
	assert.Equal(t, Block{PieceIndex: 1, Offset: 0, Length: 8, Status: NotRequested}, blocks[1])
	assert.Equal(t, Block{PieceIndex: 2, Offset: 0, Length: 1, Status: NotRequested}, blocks[2])
}

func TestBuildBlocksAligned(t *testing.T) {
	// spec.md §8 "Aligned": piece length == block size (16384), 4 full
	// pieces, one block each.
	blocks := BuildBlocks(4, 16384, 65536)

	require.Len(t, blocks, 4)
	for i, b := range blocks {
		assert.Equal(t, i, b.PieceIndex)
		assert.Equal(t, int64(0), b.Offset)
		assert.Equal(t, int64(16384), b.Length)
	}
}

func TestBuildBlocksSubPiece(t *testing.T) {
	// spec.md §8 "Sub-piece": piece length 4 (block size clamps to 4),
	// total 9 bytes across pieces of length 4, 4, 1.
	blocks := BuildBlocks(3, 4, 9)

	require.Len(t, blocks, 3)
	assert.Equal(t, int64(4), blocks[0].Length)
	assert.Equal(t, int64(4), blocks[1].Length)
	assert.Equal(t, int64(1), blocks[2].Length)
}

func TestBuildBlocksMultipleBlocksPerPiece(t *testing.T) {
	// piece length 32768 with the standard 2^14 block size splits into
	// exactly two blocks per piece.
	blocks := BuildBlocks(2, 32768, 65536)

	require.Len(t, blocks, 4)
	assert.Equal(t, []Block{
		{PieceIndex: 0, Offset: 0, Length: 16384, Status: NotRequested},
		{PieceIndex: 0, Offset: 16384, Length: 16384, Status: NotRequested},
		{PieceIndex: 1, Offset: 0, Length: 16384, Status: NotRequested},
		{PieceIndex: 1, Offset: 16384, Length: 16384, Status: NotRequested},
	}, blocks)
}

func TestBlockStatusString(t *testing.T) {
	assert.Equal(t, "NOT_REQUESTED", NotRequested.String())
	assert.Equal(t, "REQUESTED", Requested.String())
	assert.Equal(t, "DOWNLOADED", Downloaded.String())
}
