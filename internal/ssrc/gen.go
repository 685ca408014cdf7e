package ssrc

import "math/rand"

// RandomSSRC generates a random 32-bit SSRC candidate for RtxModifier. The
// caller is responsible for resolving any collision with an SSRC already
// in use on the peer connection; in practice collisions are astronomically
// unlikely for a single local description.
func RandomSSRC() uint32 {
	return rand.Uint32()
}
