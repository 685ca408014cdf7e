// Package sdpmodel provides a parsed, immutable-style representation of a
// session description plus pure transformation functions used by the
// munging pipeline in package tpc. It wraps github.com/pion/sdp/v3 for the
// wire format and exposes a simpler model tailored to the munging passes
// this core needs: codec reordering, SSRC group bookkeeping, direction
// adjustment, and header-extension reconciliation.
package sdpmodel

// MediaKind is the kind of a media section.
type MediaKind string

const (
	KindAudio MediaKind = "audio"
	KindVideo MediaKind = "video"
	KindApplication MediaKind = "application"
)

// Direction is the negotiated direction of a media section.
type Direction string

const (
	DirSendRecv Direction = "sendrecv"
	DirSendOnly Direction = "sendonly"
	DirRecvOnly Direction = "recvonly"
	DirInactive Direction = "inactive"
)

// PayloadType describes one payload-type line (rtpmap + fmtp + rtcp-fb) in a
// media section.
type PayloadType struct {
	Number    uint8
	Codec     string // e.g. "VP8", "H264", "opus" — case preserved from SDP
	ClockRate uint32
	Channels  uint16
	Fmtp      map[string]string
	RTCPFB    []string
}

// CodecName returns the codec name in lower case, for case-insensitive
// comparisons against configured preference lists.
func (p PayloadType) CodecName() string { return toLower(p.Codec) }

// SSRCAttribute is one `a=ssrc:<id> <attribute>:<value>` line.
type SSRCAttribute struct {
	SSRC      uint32
	Attribute string
	Value     string
}

// SSRCGroup is one `a=ssrc-group:<semantics> <ssrc>...` line.
type SSRCGroup struct {
	Semantics string // "FID", "SIM", "FEC-FR"
	SSRCs     []uint32
}

// ExtMap is one `a=extmap:<id> <uri>` line.
type ExtMap struct {
	ID  int
	URI string
}

// DependencyDescriptorURI is the RTP header extension URI carrying AV1 (and
// scalable H.264) dependency-descriptor information.
const DependencyDescriptorURI = "https://aomediacodec.github.io/av1-rtp-spec/#dependency-descriptor-rtp-header-extension"

// RawAttr is an opaque `a=<key>:<value>` (or flag) attribute this model does
// not interpret structurally (ice-ufrag, ice-pwd, candidate, fingerprint,
// setup, rtcp-mux, ...). Preserved verbatim across Parse/Serialize so
// munging passes that only touch codecs, SSRCs, direction or extmaps don't
// have to know about the rest of the SDP.
type RawAttr struct {
	Key   string
	Value string // empty for flag attributes
}

// MediaSection is one m-line plus its attributes.
type MediaSection struct {
	Kind         MediaKind
	Protocol     string // e.g. "UDP/TLS/RTP/SAVPF"
	Port         int
	Mid          string
	Direction    Direction
	PayloadTypes []PayloadType
	SSRCAttrs    []SSRCAttribute
	SSRCGroups   []SSRCGroup
	ExtMaps      []ExtMap
	Msid         string
	BandwidthAS  *int // kbps, from a `b=AS:<n>` line
	OtherAttrs   []RawAttr
}

// Clone returns a deep copy so callers can mutate the copy freely; all
// munging passes build a new MediaSection rather than mutate the input.
func (m MediaSection) Clone() MediaSection {
	out := m
	if m.BandwidthAS != nil {
		v := *m.BandwidthAS
		out.BandwidthAS = &v
	}
	out.PayloadTypes = append([]PayloadType(nil), m.PayloadTypes...)
	for i, pt := range out.PayloadTypes {
		fmtp := make(map[string]string, len(pt.Fmtp))
		for k, v := range pt.Fmtp {
			fmtp[k] = v
		}
		out.PayloadTypes[i].Fmtp = fmtp
		out.PayloadTypes[i].RTCPFB = append([]string(nil), pt.RTCPFB...)
	}
	out.SSRCAttrs = append([]SSRCAttribute(nil), m.SSRCAttrs...)
	out.SSRCGroups = make([]SSRCGroup, len(m.SSRCGroups))
	for i, g := range m.SSRCGroups {
		out.SSRCGroups[i] = SSRCGroup{Semantics: g.Semantics, SSRCs: append([]uint32(nil), g.SSRCs...)}
	}
	out.ExtMaps = append([]ExtMap(nil), m.ExtMaps...)
	out.OtherAttrs = append([]RawAttr(nil), m.OtherAttrs...)
	return out
}

// SSRCsForAttribute returns all distinct SSRCs carrying the given attribute
// name, preserving first-seen order.
func (m MediaSection) SSRCsForAttribute(attr string) []uint32 {
	seen := map[uint32]bool{}
	var out []uint32
	for _, a := range m.SSRCAttrs {
		if a.Attribute == attr && !seen[a.SSRC] {
			seen[a.SSRC] = true
			out = append(out, a.SSRC)
		}
	}
	return out
}

// HasCnameAndMsid reports whether the given SSRC carries both a cname and an
// msid attribute in this section, the precondition for it to appear in any
// SSRC group.
func (m MediaSection) HasCnameAndMsid(ssrc uint32) bool {
	var hasCname, hasMsid bool
	for _, a := range m.SSRCAttrs {
		if a.SSRC != ssrc {
			continue
		}
		switch a.Attribute {
		case "cname":
			hasCname = true
		case "msid":
			hasMsid = true
		}
	}
	return hasCname && hasMsid
}

// FindExtMap returns the extmap entry for a URI, if present.
func (m MediaSection) FindExtMap(uri string) (ExtMap, bool) {
	for _, e := range m.ExtMaps {
		if e.URI == uri {
			return e, true
		}
	}
	return ExtMap{}, false
}

// SessionDescription is the parsed, mutation-free representation of an SDP
// offer/answer. SessionLines preserves the session-level lines (v=, o=, s=,
// t=, c=, top-level a= attributes such as group:BUNDLE or ice-options)
// verbatim, in order, so Serialize round-trips everything this model
// doesn't interpret structurally.
type SessionDescription struct {
	Type         string // "offer" | "answer" | "pranswer" | "rollback"
	SessionLines []string
	Media        []MediaSection
}

// Clone returns a deep copy of the description.
func (s SessionDescription) Clone() SessionDescription {
	out := s
	out.SessionLines = append([]string(nil), s.SessionLines...)
	out.Media = make([]MediaSection, len(s.Media))
	for i, m := range s.Media {
		out.Media[i] = m.Clone()
	}
	return out
}

// MediaByKind returns the subset of media sections of the given kind, in
// order.
func (s SessionDescription) MediaByKind(kind MediaKind) []MediaSection {
	var out []MediaSection
	for _, m := range s.Media {
		if m.Kind == kind {
			out = append(out, m)
		}
	}
	return out
}

func toLower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}
