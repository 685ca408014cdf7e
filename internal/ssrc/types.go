// Package ssrc maintains the per-TPC SSRC bookkeeping described in
// spec.md §3–§4.1: the local SSRC registry (which reconciles persistent
// local SSRC identity across renegotiations) and the RTX modifier (which
// keeps generated RTX SSRCs stable across renegotiations).
package ssrc

import "github.com/n0remac/rtc-core/internal/sdpmodel"

// SourceKey identifies a local source by media kind and its index among
// media sections of that kind, matching spec.md §4.1's "(kind,
// source-index)" extraction key.
type SourceKey struct {
	Kind  sdpmodel.MediaKind
	Index int
}

// Info is the per-local-track SSRC bookkeeping described in spec.md §3.
type Info struct {
	SSRCs  []uint32
	Groups []sdpmodel.SSRCGroup
	Msid   string
}

// PrimarySSRC returns the first (and by invariant, primary) SSRC, or 0 if
// none is set.
func (i Info) PrimarySSRC() uint32 {
	if len(i.SSRCs) == 0 {
		return 0
	}
	return i.SSRCs[0]
}

// Update describes a local track whose primary SSRC changed identity
// across a renegotiation, the trigger for a local-track-ssrc-updated event.
type Update struct {
	Key        SourceKey
	OldPrimary uint32
	NewPrimary uint32
}
