package torrent

import (
	"bytes"
	"crypto/sha1"
	"fmt"
	"os"
	"strconv"

	"github.com/jackpal/bencode-go"
)

// rawFile mirrors a single-file .torrent's root dictionary, adapted from
// lvbealr-BitTorrent/torrent/torrent.go's TorrentFile/TorrentInfo. Only the
// fields the core or a human debug printout need are kept; multi-file
// torrents (an `info.files` list instead of `info.length`) are rejected in
// ParseFile, per spec.md §1/§6.
type rawFile struct {
	Announce     string     `bencode:"announce"`
	AnnounceList [][]string `bencode:"announce-list"`
	Comment      string     `bencode:"comment"`
	CreatedBy    string     `bencode:"created by"`
	Info         rawInfo    `bencode:"info"`
}

type rawInfo struct {
	PieceLength int64                  `bencode:"piece length"`
	Pieces      string                 `bencode:"pieces"`
	Name        string                 `bencode:"name"`
	Length      int64                  `bencode:"length"`
	Files       []map[string]any       `bencode:"files"`
	Private     int                    `bencode:"private"`
	Custom      map[string]interface{} `bencode:"-"`
}

// TorrentMeta is the immutable input the core receives from the metainfo
// collaborator (spec.md §3/§6): info-hash, piece length, per-piece SHA-1
// digests, total payload size, and a single output path.
type TorrentMeta struct {
	InfoHash    [20]byte
	Name        string
	AnnounceURL string
	AnnounceAll []string
	PieceLength int64
	PieceHashes [][20]byte
	TotalSize   int64
	NumPieces   int
	OutputPath  string
}

// ParseFile loads and parses a .torrent file from path, rejecting
// multi-file torrents, and computing the info-hash as SHA-1 of the
// bencoded info sub-dictionary (spec.md §4.5). outputDir is joined with
// the torrent's name to produce TorrentMeta.OutputPath.
func ParseFile(path, outputDir string) (*TorrentMeta, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("metainfo: reading %q: %w", path, err)
	}

	var raw rawFile
	if err := bencode.Unmarshal(bytes.NewReader(data), &raw); err != nil {
		return nil, fmt.Errorf("metainfo: decoding %q: %w", path, err)
	}

	if len(raw.Info.Files) > 0 {
		return nil, fmt.Errorf("metainfo: %q is a multi-file torrent, not supported", path)
	}

	infoBytes, err := extractInfoBytes(data)
	if err != nil {
		return nil, fmt.Errorf("metainfo: %w", err)
	}
	infoHash := sha1.Sum(infoBytes)

	if len(raw.Info.Pieces)%20 != 0 {
		return nil, fmt.Errorf("metainfo: pieces length %d not a multiple of 20", len(raw.Info.Pieces))
	}
	numPieces := len(raw.Info.Pieces) / 20
	hashes := make([][20]byte, numPieces)
	for i := range hashes {
		copy(hashes[i][:], raw.Info.Pieces[i*20:(i+1)*20])
	}

	announceAll := []string{}
	seen := map[string]struct{}{}
	if raw.Announce != "" {
		announceAll = append(announceAll, raw.Announce)
		seen[raw.Announce] = struct{}{}
	}
	for _, tier := range raw.AnnounceList {
		for _, url := range tier {
			if url == "" {
				continue
			}
			if _, ok := seen[url]; ok {
				continue
			}
			seen[url] = struct{}{}
			announceAll = append(announceAll, url)
		}
	}

	return &TorrentMeta{
		InfoHash:    infoHash,
		Name:        raw.Info.Name,
		AnnounceURL: raw.Announce,
		AnnounceAll: announceAll,
		PieceLength: raw.Info.PieceLength,
		PieceHashes: hashes,
		TotalSize:   raw.Info.Length,
		NumPieces:   numPieces,
		OutputPath:  joinOutput(outputDir, raw.Info.Name),
	}, nil
}

func joinOutput(dir, name string) string {
	if dir == "" {
		return name
	}
	return dir + "/" + name
}

// extractInfoBytes locates the bencoded "info" dictionary's raw bytes
// within a .torrent file so its SHA-1 can be taken verbatim, independent
// of how bencode-go re-serializes the decoded struct. Ported near-verbatim
// from lvbealr-BitTorrent/torrent/parse.go's extractInfoBytes.
func extractInfoBytes(data []byte) ([]byte, error) {
	idx := bytes.Index(data, []byte("4:info"))
	if idx < 0 {
		return nil, fmt.Errorf("no \"4:info\" key found")
	}

	start := idx + len("4:info")

	depth := 0
	for i := start; i < len(data); i++ {
		switch b := data[i]; b {
		case 'd', 'l':
			depth++
		case 'e':
			depth--
			if depth == 0 {
				return data[start : i+1], nil
			}
		case 'i':
			j := i + 1
			for ; j < len(data) && data[j] != 'e'; j++ {
			}
			if j >= len(data) {
				return nil, fmt.Errorf("unterminated integer at byte %d", i)
			}
			i = j
		default:
			if b >= '0' && b <= '9' {
				j := i
				for ; j < len(data) && data[j] >= '0' && data[j] <= '9'; j++ {
				}
				if j < len(data) && data[j] == ':' {
					length, err := strconv.Atoi(string(data[i:j]))
					if err != nil {
						return nil, fmt.Errorf("invalid string length at byte %d-%d", i, j)
					}
					j++
					i = j + length - 1
				}
			}
		}
	}
	return nil, fmt.Errorf("unterminated info dictionary")
}

// DebugString renders a colorless human summary of the parsed metadata,
// the Go equivalent of original_source/torrent.go's debug_print() (color
// is applied by the caller, see main.go, via colorstring).
func (m *TorrentMeta) DebugString() string {
	return fmt.Sprintf(
		"name=%s info_hash=%x piece_length=%d num_pieces=%d total_size=%d output=%s",
		m.Name, m.InfoHash, m.PieceLength, m.NumPieces, m.TotalSize, m.OutputPath,
	)
}
