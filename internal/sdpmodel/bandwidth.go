package sdpmodel

// MungeMaxBitrateLine sets (or clears) the `b=AS:<n>` line on every media
// section of the given kind. Called when a scalable codec (VP9 K-SVC or
// full-SVC) is negotiated, with asKbps computed from the source's captured
// resolution mapped through the configured video-quality table. asKbps <= 0
// clears any existing line.
func MungeMaxBitrateLine(sd SessionDescription, kind MediaKind, asKbps int) SessionDescription {
	out := sd.Clone()
	for i := range out.Media {
		if out.Media[i].Kind != kind {
			continue
		}
		if asKbps <= 0 {
			out.Media[i].BandwidthAS = nil
			continue
		}
		v := asKbps
		out.Media[i].BandwidthAS = &v
	}
	return out
}
