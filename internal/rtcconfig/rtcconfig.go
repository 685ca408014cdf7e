// Package rtcconfig holds the plain configuration structs consumed by tpc,
// codec, simulcast and rtcoordinator. There is no file-based loader here:
// every example in the retrieval pack configures its WebRTC stack from a
// literal struct built by the caller, and a host process is expected to do
// the same with rtcconfig.Options.
package rtcconfig

// MediaType mirrors sdpmodel.MediaKind without importing it, so rtcconfig
// stays a leaf package with no dependency on the SDP model.
type MediaType string

const (
	MediaAudio MediaType = "audio"
	MediaVideo MediaType = "video"
)

// VideoType classifies the kind of video a local source carries.
type VideoType string

const (
	VideoTypeCamera  VideoType = "camera"
	VideoTypeDesktop VideoType = "desktop"
	VideoTypeNone    VideoType = "none"
)

// CodecSettings is the ordered codec preference for one media type.
type CodecSettings struct {
	MediaType MediaType
	CodecList []string
}

// AudioQuality controls the Opus fmtp patches applied during local-SDP
// munging.
type AudioQuality struct {
	Stereo               bool
	EnableOpusDTX        bool
	OpusMaxAverageBitrate int // bits/sec, 0 = unset/default
}

// QualityLevel indexes the per-layer bitrate table.
type QualityLevel int

const (
	QualityLow QualityLevel = iota
	QualityStandard
	QualityHigh
	QualityUltra
)

// VideoQuality is the bitrate table keyed by (VideoType, QualityLevel),
// consulted by package simulcast when resolving an encoder policy.
type VideoQuality struct {
	// MinBitrateBps[videoType][level] and MaxBitrateBps[videoType][level].
	MinBitrateBps map[VideoType]map[QualityLevel]int
	MaxBitrateBps map[VideoType]map[QualityLevel]int
}

// PauseStrategy selects how TPC.SetVideoTransferActive/SetAudioTransferActive
// pause sending without renegotiation. Resolved once per process via a
// capability probe and cached; exposed here as a configuration switch per
// the Open Question in spec.md §9.
type PauseStrategy int

const (
	// PauseStrategyActiveFlag flips per-encoding RTPSender active flags.
	PauseStrategyActiveFlag PauseStrategy = iota
	// PauseStrategyDirectionFlip names pausing by transceiver direction;
	// under it TPC records the mute state only and changes no direction.
	PauseStrategyDirectionFlip
)

// InsertableStreamsRewire names whether replaceTrack re-wires an encoded
// stream processor pipeline when enable_insertable_streams is set and the
// old/new tracks use different processors. No code in this module reads
// the flag: TPC.ReplaceTrack swaps the track on the native sender and
// re-wires no processor, whichever value is set.
type InsertableStreamsRewire bool

const (
	RewireProcessorOnReplace    InsertableStreamsRewire = true
	KeepProcessorBoundToSender InsertableStreamsRewire = false
)

// Options is the concrete struct backing the configuration table in
// spec.md §6.
type Options struct {
	DisableSimulcast        bool
	DisableRTX               bool
	EnableInsertableStreams  bool
	ForceTurnRelay           bool
	StartSilent              bool
	CodecSettings            []CodecSettings
	AudioQuality             AudioQuality
	CapScreenshareBitrate    bool
	VideoQuality             VideoQuality
	MaxStats                 int
	InsertableStreamsRewire  InsertableStreamsRewire
}

// CodecListFor returns the preferred codec order configured for a media
// type, or nil if none was configured.
func (o Options) CodecListFor(mt MediaType) []string {
	for _, cs := range o.CodecSettings {
		if cs.MediaType == mt {
			return cs.CodecList
		}
	}
	return nil
}

// DefaultVideoQuality returns a conservative literal bitrate table, in the
// same spirit as the teacher's hard-coded H.264 SDPFmtpLine/RTCPFeedback
// constants: a fixed table rather than a loaded config file.
func DefaultVideoQuality() VideoQuality {
	return VideoQuality{
		MaxBitrateBps: map[VideoType]map[QualityLevel]int{
			VideoTypeCamera: {
				QualityLow:      200_000,
				QualityStandard: 500_000,
				QualityHigh:     1_500_000,
				QualityUltra:    2_500_000,
			},
			VideoTypeDesktop: {
				QualityLow:      250_000,
				QualityStandard: 600_000,
				QualityHigh:     2_000_000,
				QualityUltra:    4_000_000,
			},
		},
		MinBitrateBps: map[VideoType]map[QualityLevel]int{
			VideoTypeCamera: {
				QualityLow:      30_000,
				QualityStandard: 100_000,
				QualityHigh:     300_000,
				QualityUltra:    500_000,
			},
			VideoTypeDesktop: {
				QualityLow:      30_000,
				QualityStandard: 100_000,
				QualityHigh:     300_000,
				QualityUltra:    500_000,
			},
		},
	}
}
