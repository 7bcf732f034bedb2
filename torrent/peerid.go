package torrent

import "github.com/google/uuid"

// peerIDPrefix identifies this implementation, following the Azureus-style
// convention spec.md §6 calls for: an 8-byte prefix plus 12 bytes of
// random data, 20 bytes total.
const peerIDPrefix = "-LC0001-"

// GeneratePeerID builds a fresh 20-byte peer ID: peerIDPrefix followed by
// 12 random bytes pulled from a v4 UUID. lvbealr-BitTorrent's
// GeneratePeerID hand-rolled this with crypto/rand and a charset map; this
// reuses the teacher's otherwise-unwired google/uuid dependency for the
// same 12 random bytes instead.
func GeneratePeerID() [20]byte {
	var id [20]byte
	copy(id[:], peerIDPrefix)

	u := uuid.New()
	copy(id[len(peerIDPrefix):], u[:12])

	return id
}
