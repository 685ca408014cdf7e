package sdpmodel

// RewritePlanBToUnifiedPlan explodes every "Plan B"-style media section of
// the given kind — a single m-line carrying several sources, one per msid —
// into one m-line per source, preserving SSRC identity and group relations.
// Sections that already carry a single msid (or none) pass through
// unchanged. New sections are cloned from the original (codecs, extmaps,
// direction) with only the msid's own SSRC attributes and groups attached,
// and are given a synthetic mid derived from the original mid.
func RewritePlanBToUnifiedPlan(sd SessionDescription, kind MediaKind) SessionDescription {
	out := sd.Clone()
	var rebuilt []MediaSection

	for _, m := range out.Media {
		if m.Kind != kind {
			rebuilt = append(rebuilt, m)
			continue
		}
		msids := distinctMsids(m)
		if len(msids) <= 1 {
			rebuilt = append(rebuilt, m)
			continue
		}
		for i, msid := range msids {
			section := m.Clone()
			section.Msid = msid
			section.Mid = syntheticMid(m.Mid, i)
			section.SSRCAttrs = ssrcAttrsForMsid(m, msid)
			ssrcsInSection := ssrcSet(section.SSRCAttrs)
			section.SSRCGroups = groupsWithinSet(m.SSRCGroups, ssrcsInSection)
			rebuilt = append(rebuilt, section)
		}
	}

	out.Media = rebuilt
	return out
}

func distinctMsids(m MediaSection) []string {
	seen := map[string]bool{}
	var order []string
	for _, a := range m.SSRCAttrs {
		if a.Attribute != "msid" {
			continue
		}
		if !seen[a.Value] {
			seen[a.Value] = true
			order = append(order, a.Value)
		}
	}
	return order
}

func ssrcAttrsForMsid(m MediaSection, msid string) []SSRCAttribute {
	ssrcs := map[uint32]bool{}
	for _, a := range m.SSRCAttrs {
		if a.Attribute == "msid" && a.Value == msid {
			ssrcs[a.SSRC] = true
		}
	}
	var out []SSRCAttribute
	for _, a := range m.SSRCAttrs {
		if ssrcs[a.SSRC] {
			out = append(out, a)
		}
	}
	return out
}

func ssrcSet(attrs []SSRCAttribute) map[uint32]bool {
	out := map[uint32]bool{}
	for _, a := range attrs {
		out[a.SSRC] = true
	}
	return out
}

func groupsWithinSet(groups []SSRCGroup, set map[uint32]bool) []SSRCGroup {
	var out []SSRCGroup
	for _, g := range groups {
		all := true
		for _, s := range g.SSRCs {
			if !set[s] {
				all = false
				break
			}
		}
		if all {
			out = append(out, g)
		}
	}
	return out
}

func syntheticMid(origMid string, index int) string {
	if origMid == "" {
		origMid = "m"
	}
	return origMid + "-" + itoa(index)
}

// SynthesizeSimulcastReceive ensures layerCount recvonly media sections of
// the given kind exist for reception of a simulcast-capable source,
// appending placeholder recvonly sections cloned from the last section of
// that kind when fewer than layerCount already exist. Used on the receive
// side when simulcast reception is enabled but the SFU only signalled the
// primary layer.
func SynthesizeSimulcastReceive(sd SessionDescription, kind MediaKind, layerCount int) SessionDescription {
	out := sd.Clone()
	existing := out.MediaByKind(kind)
	if len(existing) == 0 || len(existing) >= layerCount {
		return out
	}
	template := existing[len(existing)-1]
	for i := len(existing); i < layerCount; i++ {
		layer := template.Clone()
		layer.Mid = syntheticMid(template.Mid, i)
		layer.Direction = DirRecvOnly
		layer.SSRCAttrs = nil
		layer.SSRCGroups = nil
		layer.Msid = ""
		out.Media = append(out.Media, layer)
	}
	return out
}
