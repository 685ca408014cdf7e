// Package codec resolves the codec preference list and Dependency
// Descriptor requirement used by the tpc munging pipeline, from the
// configuration described in spec.md §6.
package codec

import (
	"strings"

	"github.com/n0remac/rtc-core/internal/rtcconfig"
)

// Policy resolves codec preferences from configuration.
type Policy struct {
	Settings []rtcconfig.CodecSettings
}

// NewPolicy builds a Policy from the configured codec settings list.
func NewPolicy(opts rtcconfig.Options) Policy {
	return Policy{Settings: opts.CodecSettings}
}

// PreferredFor returns the lower-cased, ordered codec preference list
// configured for a media type, or nil if none was configured.
func (p Policy) PreferredFor(mt rtcconfig.MediaType) []string {
	for _, cs := range p.Settings {
		if cs.MediaType == mt {
			out := make([]string, len(cs.CodecList))
			for i, c := range cs.CodecList {
				out[i] = strings.ToLower(c)
			}
			return out
		}
	}
	return nil
}

// RequiresDependencyDescriptor reports whether the negotiated codec
// requires the Dependency Descriptor RTP header extension: AV1 always, or
// H.264 when scalability mode has been negotiated for it.
func RequiresDependencyDescriptor(codec string, scalabilityModeEnabled bool) bool {
	codec = strings.ToLower(codec)
	switch codec {
	case "av1":
		return true
	case "h264":
		return scalabilityModeEnabled
	default:
		return false
	}
}

// IsScalableCodec reports whether the codec supports SVC/K-SVC modes that
// require the AS max-bitrate bandwidth line to be computed from the
// video-quality table (spec.md §4.1 "Max-bitrate bandwidth line").
func IsScalableCodec(codec string) bool {
	switch strings.ToLower(codec) {
	case "vp9", "av1":
		return true
	default:
		return false
	}
}
