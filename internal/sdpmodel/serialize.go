package sdpmodel

import (
	"fmt"
	"strconv"
	"strings"
)

// Serialize renders the model back into SDP wire text. Session-level lines
// are replayed verbatim from SessionLines; each media section is rebuilt
// from its typed fields plus whatever opaque OtherAttrs it carries.
func Serialize(sd SessionDescription) (string, error) {
	var b strings.Builder
	for _, line := range sd.SessionLines {
		b.WriteString(line)
		b.WriteString("\r\n")
	}

	for _, m := range sd.Media {
		writeMediaSection(&b, m)
	}

	return b.String(), nil
}

func writeMediaSection(b *strings.Builder, m MediaSection) {
	formats := make([]string, len(m.PayloadTypes))
	for i, pt := range m.PayloadTypes {
		formats[i] = strconv.Itoa(int(pt.Number))
	}
	proto := m.Protocol
	if proto == "" {
		proto = "UDP/TLS/RTP/SAVPF"
	}
	port := m.Port
	if port == 0 {
		port = 9
	}
	fmt.Fprintf(b, "m=%s %d %s %s\r\n", m.Kind, port, proto, strings.Join(formats, " "))

	if m.BandwidthAS != nil {
		fmt.Fprintf(b, "b=AS:%d\r\n", *m.BandwidthAS)
	}

	if m.Mid != "" {
		fmt.Fprintf(b, "a=mid:%s\r\n", m.Mid)
	}
	if m.Direction != "" {
		fmt.Fprintf(b, "a=%s\r\n", m.Direction)
	}
	if m.Msid != "" {
		fmt.Fprintf(b, "a=msid:%s\r\n", m.Msid)
	}

	for _, attr := range m.OtherAttrs {
		if attr.Value == "" {
			fmt.Fprintf(b, "a=%s\r\n", attr.Key)
		} else {
			fmt.Fprintf(b, "a=%s:%s\r\n", attr.Key, attr.Value)
		}
	}

	for _, e := range m.ExtMaps {
		fmt.Fprintf(b, "a=extmap:%d %s\r\n", e.ID, e.URI)
	}

	for _, pt := range m.PayloadTypes {
		if pt.Codec == "" {
			continue
		}
		if pt.Channels > 1 {
			fmt.Fprintf(b, "a=rtpmap:%d %s/%d/%d\r\n", pt.Number, pt.Codec, pt.ClockRate, pt.Channels)
		} else {
			fmt.Fprintf(b, "a=rtpmap:%d %s/%d\r\n", pt.Number, pt.Codec, pt.ClockRate)
		}
		if len(pt.Fmtp) > 0 {
			fmt.Fprintf(b, "a=fmtp:%d %s\r\n", pt.Number, joinFmtp(pt.Fmtp))
		}
		for _, fb := range pt.RTCPFB {
			fmt.Fprintf(b, "a=rtcp-fb:%d %s\r\n", pt.Number, fb)
		}
	}

	for _, g := range m.SSRCGroups {
		parts := make([]string, len(g.SSRCs))
		for i, s := range g.SSRCs {
			parts[i] = strconv.FormatUint(uint64(s), 10)
		}
		fmt.Fprintf(b, "a=ssrc-group:%s %s\r\n", g.Semantics, strings.Join(parts, " "))
	}

	for _, a := range m.SSRCAttrs {
		if a.Attribute == "" {
			fmt.Fprintf(b, "a=ssrc:%d\r\n", a.SSRC)
		} else {
			fmt.Fprintf(b, "a=ssrc:%d %s:%s\r\n", a.SSRC, a.Attribute, a.Value)
		}
	}
}

// joinFmtp renders fmtp params deterministically (sorted keys) so output is
// stable across calls — required for the idempotence property.
func joinFmtp(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sortStrings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		if params[k] == "" {
			parts = append(parts, k)
		} else {
			parts = append(parts, k+"="+params[k])
		}
	}
	return strings.Join(parts, ";")
}

func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}
