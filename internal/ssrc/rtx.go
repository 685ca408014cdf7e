package ssrc

import (
	"sync"

	"github.com/n0remac/rtc-core/internal/sdpmodel"
)

// RtxModifier injects FID (RTX) groups for primary video SSRCs that lack
// one, reusing a cached associated RTX SSRC across renegotiations so RTX
// identity stays stable. The cache is owned by one TPC and is not shared
// across TPCs, per spec.md §5.
type RtxModifier struct {
	mu    sync.Mutex
	cache map[uint32]uint32 // primary SSRC -> RTX SSRC
}

// NewRtxModifier returns an empty modifier.
func NewRtxModifier() *RtxModifier {
	return &RtxModifier{cache: map[uint32]uint32{}}
}

// Clear drops all cached primary->RTX associations. A subsequent Modify
// call may produce different RTX SSRCs, but every primary SSRC will still
// end up with exactly one FID group.
func (r *RtxModifier) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache = map[uint32]uint32{}
}

// Modify ensures every primary video SSRC in sd that lacks a FID group gets
// one, generating a fresh RTX SSRC via gen() only the first time a primary
// is seen (or after Clear). disableRTX short-circuits to a no-op, for the
// disable_rtx configuration option.
func (r *RtxModifier) Modify(sd sdpmodel.SessionDescription, disableRTX bool, gen func() uint32) sdpmodel.SessionDescription {
	out := sd.Clone()
	if disableRTX {
		return out
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range out.Media {
		m := &out.Media[i]
		if m.Kind != sdpmodel.KindVideo {
			continue
		}
		for _, primary := range primariesLackingFID(*m) {
			rtxSSRC, ok := r.cache[primary]
			if !ok {
				rtxSSRC = gen()
				r.cache[primary] = rtxSSRC
			}
			injectRtxPair(m, primary, rtxSSRC)
		}
	}
	return out
}

// primariesLackingFID returns the distinct primary SSRCs (those carrying a
// cname attribute) that are not already a member of any existing FID
// group, in first-seen order.
func primariesLackingFID(m sdpmodel.MediaSection) []uint32 {
	inFID := map[uint32]bool{}
	for _, g := range m.SSRCGroups {
		if g.Semantics != "FID" {
			continue
		}
		for _, s := range g.SSRCs {
			inFID[s] = true
		}
	}

	seen := map[uint32]bool{}
	var out []uint32
	for _, a := range m.SSRCAttrs {
		if a.Attribute != "cname" || seen[a.SSRC] || inFID[a.SSRC] {
			continue
		}
		seen[a.SSRC] = true
		out = append(out, a.SSRC)
	}
	return out
}

func injectRtxPair(m *sdpmodel.MediaSection, primary, rtx uint32) {
	var cname, msid string
	for _, a := range m.SSRCAttrs {
		if a.SSRC != primary {
			continue
		}
		switch a.Attribute {
		case "cname":
			cname = a.Value
		case "msid":
			msid = a.Value
		}
	}

	m.SSRCAttrs = append(m.SSRCAttrs,
		sdpmodel.SSRCAttribute{SSRC: rtx, Attribute: "cname", Value: cname},
		sdpmodel.SSRCAttribute{SSRC: rtx, Attribute: "msid", Value: msid},
	)
	m.SSRCGroups = append(m.SSRCGroups, sdpmodel.SSRCGroup{Semantics: "FID", SSRCs: []uint32{primary, rtx}})
}
