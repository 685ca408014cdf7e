package sdpmodel

// AdjustP2PDirection rewrites the direction of each remote media section of
// the given kind according to local and remote source counts, per the
// table in spec.md §4.1:
//
//	localSources  remoteSources  direction
//	0             0              inactive
//	0             >0             sendonly (from peer's POV)
//	>0            0              recvonly
//	n             n              sendrecv
//	n (n>m)       m              first m m-lines sendrecv; extras recvonly
//	m             n (n>m)        first m m-lines sendrecv; extras sendonly
//
// Every media section of the given kind in sd gets a direction from this
// table, chosen by its index among the sections of that kind; the number
// of such sections need not equal either source count.
func AdjustP2PDirection(sd SessionDescription, kind MediaKind, localSources, remoteSources int) SessionDescription {
	out := sd.Clone()
	idx := 0
	for i := range out.Media {
		if out.Media[i].Kind != kind {
			continue
		}
		out.Media[i].Direction = p2pDirectionFor(localSources, remoteSources, idx)
		idx++
	}
	return out
}

func p2pDirectionFor(localSources, remoteSources, mlineIndex int) Direction {
	switch {
	case localSources == 0 && remoteSources == 0:
		return DirInactive
	case localSources == 0 && remoteSources > 0:
		return DirSendOnly
	case localSources > 0 && remoteSources == 0:
		return DirRecvOnly
	case localSources == remoteSources:
		return DirSendRecv
	case localSources > remoteSources:
		// n local (n>m remote): first m m-lines sendrecv, extras recvonly.
		if mlineIndex < remoteSources {
			return DirSendRecv
		}
		return DirRecvOnly
	default:
		// remoteSources > localSources: first m m-lines sendrecv, extras sendonly.
		if mlineIndex < localSources {
			return DirSendRecv
		}
		return DirSendOnly
	}
}
