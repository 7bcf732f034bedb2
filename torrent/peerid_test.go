package torrent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGeneratePeerIDShapeAndUniqueness(t *testing.T) {
	a := GeneratePeerID()
	b := GeneratePeerID()

	assert.Equal(t, peerIDPrefix, string(a[:len(peerIDPrefix)]))
	assert.NotEqual(t, a, b, "two calls should not collide")
}
