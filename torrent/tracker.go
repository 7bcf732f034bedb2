package torrent

import (
	"encoding/binary"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/jackpal/bencode-go"
)

// PeerAddr is an IPv4 address and TCP port, as delivered by a tracker
// (spec.md §3).
type PeerAddr struct {
	IP   string
	Port uint16
}

// trackerResponse mirrors a bencoded HTTP tracker announce response.
// Peers may arrive as a compact byte string or — not produced by the
// compact=1 request this client always sends, but tolerated on read — a
// list of {ip, port} dictionaries.
type trackerResponse struct {
	Failure  string      `bencode:"failure reason"`
	Interval int         `bencode:"interval"`
	Peers    interface{} `bencode:"peers"`
}

// Announce performs the HTTP tracker GET described in spec.md §4.5/§6: a
// compact-peer-list request carrying info_hash, peer_id, port, uploaded,
// downloaded, left and event=started. UDP trackers are an explicit
// Non-goal (spec.md §1) and are not implemented — see DESIGN.md.
func Announce(announceURL string, meta *TorrentMeta, peerID [20]byte, port uint16, downloaded, uploaded int64) ([]PeerAddr, int, error) {
	u, err := url.Parse(announceURL)
	if err != nil {
		return nil, 0, fmt.Errorf("tracker: parsing announce URL %q: %w", announceURL, err)
	}

	left := meta.TotalSize - downloaded
	if left < 0 {
		left = 0
	}

	params := url.Values{}
	params.Set("info_hash", string(meta.InfoHash[:]))
	params.Set("peer_id", string(peerID[:]))
	params.Set("port", fmt.Sprintf("%d", port))
	params.Set("uploaded", fmt.Sprintf("%d", uploaded))
	params.Set("downloaded", fmt.Sprintf("%d", downloaded))
	params.Set("left", fmt.Sprintf("%d", left))
	params.Set("compact", "1")
	params.Set("event", "started")
	u.RawQuery = params.Encode()

	client := &http.Client{Timeout: 15 * time.Second}

	req, err := http.NewRequest(http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, 0, fmt.Errorf("tracker: building request: %w", err)
	}
	req.Header.Set("User-Agent", "leech/1.0")

	log.Printf("[INFO]\ttracker: announcing to %s\n", u.Host)

	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("tracker: request to %s failed: %w", announceURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, 0, fmt.Errorf("tracker: %s returned status %d", announceURL, resp.StatusCode)
	}

	var parsed trackerResponse
	if err := bencode.Unmarshal(resp.Body, &parsed); err != nil {
		return nil, 0, fmt.Errorf("tracker: decoding response from %s: %w", announceURL, err)
	}

	if parsed.Failure != "" {
		return nil, 0, fmt.Errorf("tracker: %s reported failure: %s", announceURL, parsed.Failure)
	}

	peers, err := decodePeers(parsed.Peers)
	if err != nil {
		return nil, 0, fmt.Errorf("tracker: decoding peers from %s: %w", announceURL, err)
	}

	log.Printf("[INFO]\ttracker: %s returned %d peers, interval=%ds\n", announceURL, len(peers), parsed.Interval)

	return peers, parsed.Interval, nil
}

func decodePeers(raw interface{}) ([]PeerAddr, error) {
	switch v := raw.(type) {
	case string:
		return ParseCompactPeers([]byte(v))
	case []interface{}:
		peers := make([]PeerAddr, 0, len(v))
		for _, entry := range v {
			dict, ok := entry.(map[string]interface{})
			if !ok {
				continue
			}
			ip, _ := dict["ip"].(string)
			var port uint16
			switch p := dict["port"].(type) {
			case int64:
				port = uint16(p)
			case int:
				port = uint16(p)
			}
			peers = append(peers, PeerAddr{IP: ip, Port: port})
		}
		return peers, nil
	case nil:
		return nil, nil
	default:
		return nil, fmt.Errorf("unrecognized peers field type %T", raw)
	}
}

// ParseCompactPeers decodes the compact peer list format: 4 bytes of IPv4
// followed by 2 bytes of big-endian port, repeated (spec.md §4.5/§6).
func ParseCompactPeers(peers []byte) ([]PeerAddr, error) {
	if len(peers)%6 != 0 {
		return nil, fmt.Errorf("compact peers length %d not a multiple of 6", len(peers))
	}

	result := make([]PeerAddr, 0, len(peers)/6)
	for i := 0; i < len(peers); i += 6 {
		ip := fmt.Sprintf("%d.%d.%d.%d", peers[i], peers[i+1], peers[i+2], peers[i+3])
		port := binary.BigEndian.Uint16(peers[i+4 : i+6])
		result = append(result, PeerAddr{IP: ip, Port: port})
	}
	return result, nil
}
