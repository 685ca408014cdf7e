package sdpmodel

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pion/sdp/v3"
)

// Parse converts a raw SDP string (as handed to setLocalDescription /
// setRemoteDescription) into the sdpmodel representation.
func Parse(sdpType, raw string) (SessionDescription, error) {
	var native sdp.SessionDescription
	if err := native.Unmarshal([]byte(raw)); err != nil {
		return SessionDescription{}, fmt.Errorf("sdpmodel: parse: %w", err)
	}

	out := SessionDescription{Type: sdpType}
	out.SessionLines = sessionLinesFromNative(&native)
	for _, md := range native.MediaDescriptions {
		out.Media = append(out.Media, parseMediaSection(md))
	}
	return out, nil
}

func sessionLinesFromNative(native *sdp.SessionDescription) []string {
	lines := []string{
		fmt.Sprintf("v=%d", native.Version),
		fmt.Sprintf("o=%s %d %d %s %s %s",
			native.Origin.Username, native.Origin.SessionID, native.Origin.SessionVersion,
			native.Origin.NetworkType, native.Origin.AddressType, native.Origin.UnicastAddress),
		fmt.Sprintf("s=%s", native.SessionName),
	}
	if native.ConnectionInformation != nil {
		ci := native.ConnectionInformation
		addr := ""
		if ci.Address != nil {
			addr = ci.Address.Address
		}
		lines = append(lines, fmt.Sprintf("c=%s %s %s", ci.NetworkType, ci.AddressType, addr))
	}
	if len(native.TimeDescriptions) == 0 {
		lines = append(lines, "t=0 0")
	}
	for _, td := range native.TimeDescriptions {
		lines = append(lines, fmt.Sprintf("t=%d %d", td.Timing.StartTime, td.Timing.StopTime))
	}
	for _, attr := range native.Attributes {
		if attr.Value == "" {
			lines = append(lines, "a="+attr.Key)
		} else {
			lines = append(lines, "a="+attr.Key+":"+attr.Value)
		}
	}
	return lines
}

func parseMediaSection(md *sdp.MediaDescription) MediaSection {
	m := MediaSection{
		Kind:      MediaKind(md.MediaName.Media),
		Protocol:  strings.Join(md.MediaName.Protos, "/"),
		Port:      md.MediaName.Port.Value,
		Direction: DirSendRecv,
	}

	payloadByNumber := map[uint8]*PayloadType{}
	order := []uint8{}
	ensurePT := func(n uint8) *PayloadType {
		if pt, ok := payloadByNumber[n]; ok {
			return pt
		}
		pt := &PayloadType{Number: n, Fmtp: map[string]string{}}
		payloadByNumber[n] = pt
		order = append(order, n)
		return pt
	}

	// Seed payload type numbers from the m-line's format list, so codecs
	// without an explicit rtpmap (static payload types) still appear.
	for _, f := range md.MediaName.Formats {
		n, err := strconv.ParseUint(f, 10, 8)
		if err != nil {
			continue
		}
		ensurePT(uint8(n))
	}

	for _, attr := range md.Attributes {
		switch attr.Key {
		case "mid":
			m.Mid = attr.Value
		case "msid":
			m.Msid = attr.Value
		case "sendrecv":
			m.Direction = DirSendRecv
		case "sendonly":
			m.Direction = DirSendOnly
		case "recvonly":
			m.Direction = DirRecvOnly
		case "inactive":
			m.Direction = DirInactive
		case "rtpmap":
			n, codec, clock, ch := parseRtpmap(attr.Value)
			pt := ensurePT(n)
			pt.Codec = codec
			pt.ClockRate = clock
			pt.Channels = ch
		case "fmtp":
			n, params := parseFmtp(attr.Value)
			pt := ensurePT(n)
			for k, v := range params {
				pt.Fmtp[k] = v
			}
		case "rtcp-fb":
			n, fb := parseRtcpFb(attr.Value)
			if n == wildcardPT {
				for _, pt := range payloadByNumber {
					pt.RTCPFB = append(pt.RTCPFB, fb)
				}
				continue
			}
			pt := ensurePT(n)
			pt.RTCPFB = append(pt.RTCPFB, fb)
		case "ssrc":
			sa, ok := parseSSRCAttr(attr.Value)
			if ok {
				m.SSRCAttrs = append(m.SSRCAttrs, sa)
			}
		case "ssrc-group":
			g, ok := parseSSRCGroup(attr.Value)
			if ok {
				m.SSRCGroups = append(m.SSRCGroups, g)
			}
		case "extmap":
			e, ok := parseExtMap(attr.Value)
			if ok {
				m.ExtMaps = append(m.ExtMaps, e)
			}
		default:
			m.OtherAttrs = append(m.OtherAttrs, RawAttr{Key: attr.Key, Value: attr.Value})
		}
	}

	for _, n := range order {
		m.PayloadTypes = append(m.PayloadTypes, *payloadByNumber[n])
	}

	for _, bw := range md.Bandwidth {
		if bw.Type == "AS" {
			v := int(bw.Bandwidth)
			m.BandwidthAS = &v
		}
	}

	return m
}

const wildcardPT = 255

func parseRtpmap(v string) (n uint8, codec string, clock uint32, channels uint16) {
	fields := strings.SplitN(v, " ", 2)
	if len(fields) != 2 {
		return 0, "", 0, 0
	}
	pn, _ := strconv.ParseUint(fields[0], 10, 8)
	parts := strings.Split(fields[1], "/")
	codec = parts[0]
	if len(parts) > 1 {
		c, _ := strconv.ParseUint(parts[1], 10, 32)
		clock = uint32(c)
	}
	if len(parts) > 2 {
		ch, _ := strconv.ParseUint(parts[2], 10, 16)
		channels = uint16(ch)
	}
	return uint8(pn), codec, clock, channels
}

func parseFmtp(v string) (n uint8, params map[string]string) {
	fields := strings.SplitN(v, " ", 2)
	params = map[string]string{}
	if len(fields) == 0 {
		return 0, params
	}
	pn, _ := strconv.ParseUint(fields[0], 10, 8)
	if len(fields) < 2 {
		return uint8(pn), params
	}
	for _, kv := range strings.Split(fields[1], ";") {
		kv = strings.TrimSpace(kv)
		if kv == "" {
			continue
		}
		parts := strings.SplitN(kv, "=", 2)
		if len(parts) == 2 {
			params[parts[0]] = parts[1]
		} else {
			params[parts[0]] = ""
		}
	}
	return uint8(pn), params
}

func parseRtcpFb(v string) (n uint8, fb string) {
	fields := strings.SplitN(v, " ", 2)
	if len(fields) != 2 {
		return 0, v
	}
	if fields[0] == "*" {
		return wildcardPT, fields[1]
	}
	pn, _ := strconv.ParseUint(fields[0], 10, 8)
	return uint8(pn), fields[1]
}

func parseSSRCAttr(v string) (SSRCAttribute, bool) {
	fields := strings.SplitN(v, " ", 2)
	if len(fields) < 1 {
		return SSRCAttribute{}, false
	}
	ssrc, err := strconv.ParseUint(fields[0], 10, 32)
	if err != nil {
		return SSRCAttribute{}, false
	}
	if len(fields) == 1 {
		return SSRCAttribute{SSRC: uint32(ssrc)}, true
	}
	kv := strings.SplitN(fields[1], ":", 2)
	attr := kv[0]
	val := ""
	if len(kv) == 2 {
		val = kv[1]
	}
	return SSRCAttribute{SSRC: uint32(ssrc), Attribute: attr, Value: val}, true
}

func parseSSRCGroup(v string) (SSRCGroup, bool) {
	fields := strings.Fields(v)
	if len(fields) < 2 {
		return SSRCGroup{}, false
	}
	g := SSRCGroup{Semantics: fields[0]}
	for _, f := range fields[1:] {
		s, err := strconv.ParseUint(f, 10, 32)
		if err != nil {
			continue
		}
		g.SSRCs = append(g.SSRCs, uint32(s))
	}
	return g, true
}

func parseExtMap(v string) (ExtMap, bool) {
	fields := strings.Fields(v)
	if len(fields) < 2 {
		return ExtMap{}, false
	}
	idStr := fields[0]
	// extmap ids may carry a "/sendonly"-style direction suffix.
	if i := strings.IndexByte(idStr, '/'); i >= 0 {
		idStr = idStr[:i]
	}
	id, err := strconv.Atoi(idStr)
	if err != nil {
		return ExtMap{}, false
	}
	return ExtMap{ID: id, URI: fields[1]}, true
}
