package ssrc

import "github.com/n0remac/rtc-core/internal/sdpmodel"

// Registry reconciles persistent local SSRC identity across renegotiations
// for a single TPC. It is not shared across TPCs — each TPC owns its own
// Registry, per spec.md §5 "Shared resources".
type Registry struct {
	current map[SourceKey]Info
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{current: map[SourceKey]Info{}}
}

// Extract builds the (kind, source-index) -> Info map from a munged local
// description, per spec.md §4.1 "SSRC extraction".
func Extract(sd sdpmodel.SessionDescription) map[SourceKey]Info {
	out := map[SourceKey]Info{}
	counters := map[sdpmodel.MediaKind]int{}
	for _, m := range sd.Media {
		idx := counters[m.Kind]
		counters[m.Kind] = idx + 1

		if len(m.SSRCAttrs) == 0 {
			continue
		}
		info := Info{Msid: m.Msid, Groups: append([]sdpmodel.SSRCGroup(nil), m.SSRCGroups...)}
		info.SSRCs = primaryOrder(m)
		out[SourceKey{Kind: m.Kind, Index: idx}] = info
	}
	return out
}

// primaryOrder returns the distinct SSRCs of a media section in the order
// they were first declared via a cname attribute, which for a freshly
// munged local description is the primary-SSRC declaration order.
func primaryOrder(m sdpmodel.MediaSection) []uint32 {
	seen := map[uint32]bool{}
	var out []uint32
	for _, a := range m.SSRCAttrs {
		if a.Attribute == "cname" && !seen[a.SSRC] {
			seen[a.SSRC] = true
			out = append(out, a.SSRC)
		}
	}
	return out
}

// Reconcile replaces the registry's current snapshot with the one extracted
// from sd and returns the list of sources whose primary SSRC changed.
func (r *Registry) Reconcile(sd sdpmodel.SessionDescription) []Update {
	next := Extract(sd)

	var updates []Update
	for key, info := range next {
		prev, existed := r.current[key]
		if existed && prev.PrimarySSRC() != 0 && prev.PrimarySSRC() != info.PrimarySSRC() {
			updates = append(updates, Update{Key: key, OldPrimary: prev.PrimarySSRC(), NewPrimary: info.PrimarySSRC()})
		}
	}

	r.current = next
	return updates
}

// Lookup returns the current SSRC info for a source, if known.
func (r *Registry) Lookup(key SourceKey) (Info, bool) {
	info, ok := r.current[key]
	return info, ok
}

// All returns a copy of the full current snapshot.
func (r *Registry) All() map[SourceKey]Info {
	out := make(map[SourceKey]Info, len(r.current))
	for k, v := range r.current {
		out[k] = v
	}
	return out
}
