package torrent

import (
	"bytes"
	"crypto/sha1"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// bencodeString/bencodeInt are tiny helpers so the fixture below is built
// from lengths computed at test time rather than hand-counted literals.
func bencodeString(s string) string {
	return fmt.Sprintf("%d:%s", len(s), s)
}

func bencodeInt(n int64) string {
	return fmt.Sprintf("i%de", n)
}

// buildSingleFileTorrent assembles the raw bytes of a minimal single-file
// .torrent, bencoded by hand so the info dictionary's exact byte span is
// known (matching how a real client would produce one).
func buildSingleFileTorrent(announce, name string, pieceLength int64, pieces [][]byte) []byte {
	var piecesConcat bytes.Buffer
	for _, p := range pieces {
		sum := sha1.Sum(p)
		piecesConcat.Write(sum[:])
	}

	var total int64
	for _, p := range pieces {
		total += int64(len(p))
	}

	info := "d" +
		bencodeString("length") + bencodeInt(total) +
		bencodeString("name") + bencodeString(name) +
		bencodeString("piece length") + bencodeInt(pieceLength) +
		bencodeString("pieces") + fmt.Sprintf("%d:", piecesConcat.Len()) +
		"e"

	var buf bytes.Buffer
	buf.WriteString("d")
	buf.WriteString(bencodeString("announce"))
	buf.WriteString(bencodeString(announce))
	buf.WriteString(bencodeString("info"))
	buf.WriteString(info[:len(info)-1]) // everything up to the raw pieces bytes and trailing "e"
	buf.Write(piecesConcat.Bytes())
	buf.WriteString("e") // close info
	buf.WriteString("e") // close root

	return buf.Bytes()
}

func TestParseFileSingleFile(t *testing.T) {
	pieces := [][]byte{
		[]byte("aaaa"),
		[]byte("bbbb"),
		[]byte("c"),
	}

	raw := buildSingleFileTorrent("http://tracker.test/announce", "movie.bin", 4, pieces)

	dir := t.TempDir()
	torrentPath := filepath.Join(dir, "fixture.torrent")
	require.NoError(t, os.WriteFile(torrentPath, raw, 0644))

	meta, err := ParseFile(torrentPath, dir)
	require.NoError(t, err)

	require.Equal(t, "movie.bin", meta.Name)
	require.Equal(t, int64(4), meta.PieceLength)
	require.Equal(t, int64(9), meta.TotalSize)
	require.Equal(t, 3, meta.NumPieces)
	require.Equal(t, []string{"http://tracker.test/announce"}, meta.AnnounceAll)
	require.Equal(t, filepath.Join(dir, "movie.bin"), meta.OutputPath)

	for i, p := range pieces {
		want := sha1.Sum(p)
		require.Equal(t, want, meta.PieceHashes[i])
	}
}

func TestParseFileRejectsMultiFile(t *testing.T) {
	raw := []byte("d" +
		bencodeString("announce") + bencodeString("http://tracker.test/") +
		bencodeString("info") + "d" +
		bencodeString("name") + bencodeString("multi") +
		bencodeString("piece length") + bencodeInt(4) +
		bencodeString("pieces") + "0:" +
		bencodeString("files") + "l" +
		"d" + bencodeString("length") + bencodeInt(1) + bencodeString("path") + "l" + bencodeString("a") + "e" + "e" +
		"e" +
		"e" +
		"e")

	dir := t.TempDir()
	torrentPath := filepath.Join(dir, "multi.torrent")
	require.NoError(t, os.WriteFile(torrentPath, raw, 0644))

	_, err := ParseFile(torrentPath, dir)
	require.Error(t, err)
}
