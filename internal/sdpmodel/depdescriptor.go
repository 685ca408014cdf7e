package sdpmodel

// MungeDependencyDescriptor ensures the Dependency Descriptor header
// extension is present on sender media sections of the given kind when
// required (AV1, or H.264 with scalability mode enabled) and removed
// otherwise.
func MungeDependencyDescriptor(sd SessionDescription, kind MediaKind, uri string, required bool) SessionDescription {
	out := sd.Clone()
	for i := range out.Media {
		m := &out.Media[i]
		if m.Kind != kind {
			continue
		}
		_, present := m.FindExtMap(uri)
		switch {
		case required && !present:
			m.ExtMaps = append(m.ExtMaps, ExtMap{ID: nextExtMapID(m.ExtMaps), URI: uri})
		case !required && present:
			m.ExtMaps = removeExtMap(m.ExtMaps, uri)
		}
	}
	return out
}

func nextExtMapID(existing []ExtMap) int {
	max := 0
	for _, e := range existing {
		if e.ID > max {
			max = e.ID
		}
	}
	return max + 1
}

func removeExtMap(extmaps []ExtMap, uri string) []ExtMap {
	out := make([]ExtMap, 0, len(extmaps))
	for _, e := range extmaps {
		if e.URI != uri {
			out = append(out, e)
		}
	}
	return out
}
