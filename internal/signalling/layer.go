// Package signalling defines the contract rtc-core expects from the host
// process's XMPP/Jingle (or equivalent) signalling layer. rtc-core never
// depends on a concrete signalling transport; tpc and rtcoordinator consume
// only this interface.
package signalling

import "github.com/n0remac/rtc-core/internal/sdpmodel"

// PeerMediaInfo is the presence-derived per-source info the remote-track
// binding algorithm falls back to when a source is first seen.
type PeerMediaInfo struct {
	Muted     bool
	VideoType string // "camera" | "desktop" | "none"
}

// DefaultPeerMediaInfo is used when a source's presence info is not yet
// known, per spec.md §4.3 step 6.
func DefaultPeerMediaInfo() PeerMediaInfo {
	return PeerMediaInfo{Muted: true, VideoType: "camera"}
}

// LayerEventKind enumerates the presence/mute change notifications a Layer
// may push through Subscribe.
type LayerEventKind int

const (
	PeerMutedChanged LayerEventKind = iota
	PeerVideoTypeChanged
	SourceMutedChanged
	SourceVideoTypeChanged
)

// LayerEvent is one presence-derived change notification.
type LayerEvent struct {
	Kind       LayerEventKind
	EndpointID string
	SourceName string
	MediaKind  sdpmodel.MediaKind // set for PeerMutedChanged
	Muted      bool
	VideoType  string
}

// Layer is the consumed signalling contract: SSRC ownership, source-name
// resolution, presence-derived per-source info, and a push feed of changes
// to that presence info. A host process implements this over its own
// XMPP/Jingle (or other) signalling transport; rtc-core never depends on a
// concrete signalling transport.
type Layer interface {
	// SSRCOwner resolves an SSRC to the endpoint id that owns it.
	SSRCOwner(ssrc uint32) (endpointID string, ok bool)
	// TrackSourceName resolves an SSRC to its globally unique source name.
	TrackSourceName(ssrc uint32) (sourceName string, ok bool)
	// PeerMediaInfo returns the current presence-derived info for a source,
	// or false if nothing is known about it yet.
	PeerMediaInfo(endpointID string, kind sdpmodel.MediaKind, sourceName string) (PeerMediaInfo, bool)
	// Subscribe returns a channel of presence/mute change events. The
	// returned channel is never closed by the Layer implementation while
	// the subscription is active.
	Subscribe() <-chan LayerEvent
}
