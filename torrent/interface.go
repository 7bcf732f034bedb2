package torrent

import (
	"context"
	"fmt"
	"log"
)

// --------------------------------------------------------------------------------------------- //

/*
LoadTorrent parses a .torrent file and locates its peers via the tracker
announce. It is the Go equivalent of lvbealr-BitTorrent's
SetTorrentFile+FindConnections pair, adapted to the single-file-only
TorrentMeta/PeerAddr types.

Parameters:
  - path: Path to the .torrent file on disk.
  - outputDir: Directory the downloaded file will be written into.
  - listenPort: Port advertised to the tracker (spec.md §6 default: 6881).

Returns:
  - *TorrentMeta: Parsed torrent metadata.
  - []PeerAddr: Initial peer list from the tracker.
  - error: Non-nil if parsing fails or no tracker returns any peer.
*/
func LoadTorrent(path, outputDir string, listenPort uint16) (*TorrentMeta, []PeerAddr, error) {
	meta, err := ParseFile(path, outputDir)
	if err != nil {
		return nil, nil, err
	}

	peerID := GeneratePeerID()

	peers, err := FindPeers(meta, peerID, listenPort)
	if err != nil {
		return nil, nil, err
	}

	return meta, peers, nil
}

// FindPeers announces to every tracker named in the torrent (the primary
// announce URL plus every announce-list tier), merging and deduplicating
// the peers each one returns. It succeeds as long as at least one tracker
// returns at least one peer (spec.md §4.5/§6).
func FindPeers(meta *TorrentMeta, peerID [20]byte, listenPort uint16) ([]PeerAddr, error) {
	seen := map[string]PeerAddr{}

	var lastErr error
	for _, url := range meta.AnnounceAll {
		peers, _, err := Announce(url, meta, peerID, listenPort, 0, 0)
		if err != nil {
			log.Printf("[FAIL]\ttracker %s: %v\n", url, err)
			lastErr = err
			continue
		}

		for _, p := range peers {
			seen[fmt.Sprintf("%s:%d", p.IP, p.Port)] = p
		}
	}

	if len(seen) == 0 {
		if lastErr != nil {
			return nil, fmt.Errorf("no peers received from any tracker, last error: %w", lastErr)
		}
		if len(meta.AnnounceAll) == 0 {
			return nil, fmt.Errorf("no trackers found")
		}
		return nil, fmt.Errorf("no peers received from any tracker")
	}

	result := make([]PeerAddr, 0, len(seen))
	for _, p := range seen {
		result = append(result, p)
	}
	return result, nil
}

// --------------------------------------------------------------------------------------------- //

/*
Leech runs the whole core end to end: builds a Coordinator over meta and
peers and drives it to completion, writing meta.OutputPath on success. It
is the single entrypoint the collaborator layer (main.go) calls once
LoadTorrent has produced a TorrentMeta and a PeerAddr list — the Go
equivalent of original_source/manager.py's Manager.download().

Parameters:
  - ctx: Canceling ctx aborts the download without writing a partial file.
  - meta: Parsed torrent metadata.
  - peers: Initial peer list.
  - cfg: Tunables; pass DefaultConfig() for the spec's typical values.
  - progress: Optional progress callback, called as blocks land.

Returns:
  - error: Non-nil if ctx is canceled or assembly fails with ErrInternal.
*/
func Leech(ctx context.Context, meta *TorrentMeta, peers []PeerAddr, cfg Config, progress ProgressFunc) error {
	coord := NewCoordinator(meta, peers, cfg, progress)
	return coord.Run(ctx)
}

// --------------------------------------------------------------------------------------------- //
