package sdpmodel

// OpusParams controls the Opus fmtp patches applied by MungeOpusParameters,
// mirroring rtcconfig.AudioQuality without sdpmodel importing rtcconfig.
type OpusParams struct {
	Stereo              bool
	DTX                 bool
	MaxAverageBitrate   int // bits/sec, 0 = leave unset
	SuppressUseDTX      bool
}

// MungeOpusParameters patches the Opus fmtp line of every audio media
// section's Opus payload type according to p. usedtx is omitted whenever
// p.SuppressUseDTX is set, for sending sides known not to honor it.
func MungeOpusParameters(sd SessionDescription, p OpusParams) SessionDescription {
	out := sd.Clone()
	for i := range out.Media {
		if out.Media[i].Kind != KindAudio {
			continue
		}
		for j := range out.Media[i].PayloadTypes {
			pt := &out.Media[i].PayloadTypes[j]
			if pt.CodecName() != "opus" {
				continue
			}
			if p.Stereo {
				pt.Fmtp["stereo"] = "1"
				pt.Fmtp["sprop-stereo"] = "1"
			}
			if p.DTX && !p.SuppressUseDTX {
				pt.Fmtp["usedtx"] = "1"
			} else {
				delete(pt.Fmtp, "usedtx")
			}
			if p.MaxAverageBitrate > 0 {
				pt.Fmtp["maxaveragebitrate"] = itoa(p.MaxAverageBitrate)
			}
		}
	}
	return out
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
