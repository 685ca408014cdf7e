package tpc

import (
	"sync"

	"github.com/n0remac/rtc-core/internal/rtcconfig"
	"github.com/pion/webrtc/v4"
)

var (
	probeOnce   sync.Once
	probeResult rtcconfig.PauseStrategy
)

// DetectPauseStrategy resolves the pause strategy once per process via a
// capability probe against a scratch peer connection, then caches the
// result, per spec.md §9's Open Question on pause-without-renegotiation.
// If probing fails for any reason PauseStrategyDirectionFlip is returned.
func DetectPauseStrategy(api *webrtc.API) rtcconfig.PauseStrategy {
	probeOnce.Do(func() {
		probeResult = probePauseStrategy(api)
	})
	return probeResult
}

func probePauseStrategy(api *webrtc.API) rtcconfig.PauseStrategy {
	if api == nil {
		return rtcconfig.PauseStrategyDirectionFlip
	}

	pc, err := api.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		return rtcconfig.PauseStrategyDirectionFlip
	}
	defer pc.Close()

	track, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8},
		"probe", "probe",
	)
	if err != nil {
		return rtcconfig.PauseStrategyDirectionFlip
	}

	sender, err := pc.AddTrack(track)
	if err != nil {
		return rtcconfig.PauseStrategyDirectionFlip
	}

	params := sender.GetParameters()
	if len(params.Encodings) == 0 {
		return rtcconfig.PauseStrategyDirectionFlip
	}
	params.Encodings[0].Active = false
	if err := sender.SetParameters(params); err != nil {
		return rtcconfig.PauseStrategyDirectionFlip
	}
	return rtcconfig.PauseStrategyActiveFlag
}
