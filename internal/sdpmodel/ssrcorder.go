package sdpmodel

// EnforceSSRCGroupOrdering reorders each media section's SSRC groups so
// that, when both appear, SIM groups precede FID groups globally, and
// within each FID group the primary SSRC (the one whose cname attribute
// appears first in SSRCAttrs) comes before its RTX SSRC.
func EnforceSSRCGroupOrdering(sd SessionDescription) SessionDescription {
	out := sd.Clone()
	for i := range out.Media {
		m := &out.Media[i]
		m.SSRCGroups = orderGroups(m.SSRCGroups)
		for gi := range m.SSRCGroups {
			if m.SSRCGroups[gi].Semantics == "FID" && len(m.SSRCGroups[gi].SSRCs) == 2 {
				m.SSRCGroups[gi].SSRCs = orderFIDPair(*m, m.SSRCGroups[gi].SSRCs)
			}
		}
	}
	return out
}

func orderGroups(groups []SSRCGroup) []SSRCGroup {
	out := make([]SSRCGroup, 0, len(groups))
	for _, g := range groups {
		if g.Semantics == "SIM" {
			out = append(out, g)
		}
	}
	for _, g := range groups {
		if g.Semantics != "SIM" {
			out = append(out, g)
		}
	}
	return out
}

// orderFIDPair puts whichever SSRC has an earlier cname attribute first.
func orderFIDPair(m MediaSection, pair []uint32) []uint32 {
	firstSeen := func(ssrc uint32) int {
		for idx, a := range m.SSRCAttrs {
			if a.SSRC == ssrc && a.Attribute == "cname" {
				return idx
			}
		}
		return len(m.SSRCAttrs)
	}
	a, b := pair[0], pair[1]
	if firstSeen(a) <= firstSeen(b) {
		return []uint32{a, b}
	}
	return []uint32{b, a}
}
