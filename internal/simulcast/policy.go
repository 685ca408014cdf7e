// Package simulcast resolves the per-simulcast-layer encoder parameter
// vector described in spec.md §4.2, given a local track, the negotiated
// codec, and the requested max receive height.
package simulcast

import (
	"github.com/n0remac/rtc-core/internal/codec"
	"github.com/n0remac/rtc-core/internal/rtcconfig"
)

// LocalTrackInfo describes the local track being encoded.
type LocalTrackInfo struct {
	VideoType      rtcconfig.VideoType
	CapturedWidth  int
	CapturedHeight int
}

// ResolveRequest carries everything other than the track needed to resolve
// an encoder policy.
type ResolveRequest struct {
	Codec                 string
	RequestedMaxHeight    int // 0 = no cap
	SimulcastEnabled      bool
	CapScreenshareBitrate bool
	VideoQuality          rtcconfig.VideoQuality
}

// EncodingParams is one simulcast/SVC layer's encoder configuration.
type EncodingParams struct {
	Active                bool
	MaxBitrateBps          int
	ScaleResolutionDownBy  float64
	ScalabilityMode        string // "" when not applicable
	DegradationPreference  string // "maintain-resolution" | "maintain-framerate"
}

const minViableHeight = 90

// EncoderPolicy resolves the encoding vector. It carries no state of its
// own; every call is a pure function of its inputs.
type EncoderPolicy struct{}

// Resolve computes the per-layer encoding vector.
func (EncoderPolicy) Resolve(track LocalTrackInfo, req ResolveRequest) ([]EncodingParams, error) {
	lowFPSDesktop := req.CapScreenshareBitrate && track.VideoType == rtcconfig.VideoTypeDesktop

	layerCount := 1
	if req.SimulcastEnabled && !lowFPSDesktop {
		layerCount = 3
	}

	degradation := "maintain-framerate"
	if lowFPSDesktop {
		degradation = "maintain-resolution"
	}

	heights := targetHeights(track.CapturedHeight, layerCount)
	out := make([]EncodingParams, layerCount)
	for i := 0; i < layerCount; i++ {
		h := heights[i]
		active := h >= minViableHeight && (req.RequestedMaxHeight <= 0 || h <= req.RequestedMaxHeight)
		scaleBy := 1.0
		if h > 0 && track.CapturedHeight > 0 {
			scaleBy = float64(track.CapturedHeight) / float64(h)
		}

		level := qualityForLayer(i, layerCount)
		maxBitrate := bitrateFor(req.VideoQuality, track.VideoType, level)

		out[i] = EncodingParams{
			Active:                active,
			MaxBitrateBps:          maxBitrate,
			ScaleResolutionDownBy:  scaleBy,
			ScalabilityMode:        scalabilityModeFor(req.Codec, i, layerCount),
			DegradationPreference:  degradation,
		}
	}
	return out, nil
}

// targetHeights returns the per-layer target height, highest layer last,
// derived from the captured height: quarter, half, full for three layers;
// just the captured height for one.
func targetHeights(capturedHeight, layerCount int) []int {
	if layerCount == 1 {
		return []int{capturedHeight}
	}
	return []int{
		ceilDiv(capturedHeight, 4),
		ceilDiv(capturedHeight, 2),
		capturedHeight,
	}
}

func ceilDiv(n, d int) int {
	if d == 0 {
		return 0
	}
	return (n + d - 1) / d
}

func qualityForLayer(index, layerCount int) rtcconfig.QualityLevel {
	if layerCount == 1 {
		return rtcconfig.QualityHigh
	}
	switch index {
	case 0:
		return rtcconfig.QualityLow
	case 1:
		return rtcconfig.QualityStandard
	default:
		return rtcconfig.QualityHigh
	}
}

func bitrateFor(vq rtcconfig.VideoQuality, vt rtcconfig.VideoType, level rtcconfig.QualityLevel) int {
	if byLevel, ok := vq.MaxBitrateBps[vt]; ok {
		if v, ok := byLevel[level]; ok {
			return v
		}
	}
	return 0
}

// scalabilityModeFor returns the codec-specific scalability mode string for
// a layer, or "" when the codec+engine combination does not support modern
// scalability mode selection. A single-layer scalable-codec encoding uses
// full SVC ("L3T3_KEY"); a multi-layer (K-SVC) encoding uses "L1T3" per
// simulcast layer.
func scalabilityModeFor(c string, index, layerCount int) string {
	if !codec.IsScalableCodec(c) {
		return ""
	}
	if layerCount == 1 {
		return "L3T3_KEY"
	}
	return "L1T3"
}
