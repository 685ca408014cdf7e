package sdpmodel

import "strings"

// MungeCodecOrder reorders the payload types of every media section of the
// given kind so the configured preferred codec list (lower-case names)
// heads the list, in the order given, followed by the remaining codecs in
// their original relative order. Reordering is stable: it never reorders
// two codecs that are both absent from preferred, or both present at the
// same preferred index.
//
// When stripHighProfileP2P is set (peer-to-peer sessions only), high
// profile H.264 and VP9 variants and ULPFEC/RED payload types are removed
// first, since asymmetric encoder/decoder level support makes them
// unreliable on a direct peer-to-peer link.
func MungeCodecOrder(sd SessionDescription, kind MediaKind, preferred []string, stripHighProfileP2P bool) SessionDescription {
	out := sd.Clone()
	prefIndex := make(map[string]int, len(preferred))
	for i, c := range preferred {
		prefIndex[strings.ToLower(c)] = i
	}

	for i := range out.Media {
		m := &out.Media[i]
		if m.Kind != kind {
			continue
		}
		pts := m.PayloadTypes
		if stripHighProfileP2P {
			pts = stripP2PIncompatible(pts)
		}
		m.PayloadTypes = reorderByPreference(pts, prefIndex)
	}
	return out
}

func stripP2PIncompatible(pts []PayloadType) []PayloadType {
	out := make([]PayloadType, 0, len(pts))
	for _, pt := range pts {
		name := pt.CodecName()
		switch name {
		case "ulpfec", "red":
			continue
		case "h264":
			if isHighProfile264(pt.Fmtp["profile-level-id"]) {
				continue
			}
		case "vp9":
			if pt.Fmtp["profile-id"] == "2" {
				continue
			}
		}
		out = append(out, pt)
	}
	return out
}

// isHighProfile264 reports whether a profile-level-id hex string encodes
// the High profile (profile_idc 0x64) as opposed to Baseline (0x42) or
// Main (0x4D).
func isHighProfile264(profileLevelID string) bool {
	if len(profileLevelID) < 2 {
		return false
	}
	return strings.EqualFold(profileLevelID[:2], "64")
}

func reorderByPreference(pts []PayloadType, prefIndex map[string]int) []PayloadType {
	out := make([]PayloadType, len(pts))
	copy(out, pts)

	rank := func(pt PayloadType) int {
		if idx, ok := prefIndex[pt.CodecName()]; ok {
			return idx
		}
		return len(prefIndex)
	}

	// stable insertion sort on rank, preserving relative order within a rank
	for i := 1; i < len(out); i++ {
		j := i
		for j > 0 && rank(out[j-1]) > rank(out[j]) {
			out[j-1], out[j] = out[j], out[j-1]
			j--
		}
	}
	return out
}
