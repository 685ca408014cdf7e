package simulcast

import (
	"testing"

	"github.com/n0remac/rtc-core/internal/rtcconfig"
	"github.com/stretchr/testify/require"
)

func TestResolveCameraThreeLayerSimulcast(t *testing.T) {
	var p EncoderPolicy
	track := LocalTrackInfo{VideoType: rtcconfig.VideoTypeCamera, CapturedHeight: 720}
	req := ResolveRequest{
		Codec:            "vp8",
		SimulcastEnabled: true,
		VideoQuality:     rtcconfig.DefaultVideoQuality(),
	}

	layers, err := p.Resolve(track, req)
	require.NoError(t, err)
	require.Len(t, layers, 3)

	for _, l := range layers {
		require.True(t, l.Active)
		require.Equal(t, "", l.ScalabilityMode)
		require.Equal(t, "maintain-framerate", l.DegradationPreference)
	}
	require.InDelta(t, 4.0, layers[0].ScaleResolutionDownBy, 0.001)
	require.InDelta(t, 2.0, layers[1].ScaleResolutionDownBy, 0.001)
	require.InDelta(t, 1.0, layers[2].ScaleResolutionDownBy, 0.001)

	require.Equal(t, 200_000, layers[0].MaxBitrateBps)
	require.Equal(t, 500_000, layers[1].MaxBitrateBps)
	require.Equal(t, 1_500_000, layers[2].MaxBitrateBps)
}

func TestResolveRequestedMaxHeightDeactivatesHigherLayers(t *testing.T) {
	var p EncoderPolicy
	track := LocalTrackInfo{VideoType: rtcconfig.VideoTypeCamera, CapturedHeight: 720}
	req := ResolveRequest{
		Codec:              "vp8",
		SimulcastEnabled:   true,
		RequestedMaxHeight: 360,
		VideoQuality:       rtcconfig.DefaultVideoQuality(),
	}

	layers, err := p.Resolve(track, req)
	require.NoError(t, err)
	require.Len(t, layers, 3)
	require.True(t, layers[0].Active)
	require.True(t, layers[1].Active)
	require.False(t, layers[2].Active, "720p layer exceeds the requested 360p cap")
}

// TestResolveLowFPSDesktopForcesSingleLayer covers the low-fps screenshare
// scenario: capping screenshare bitrate forces a single active encoding
// with maintain-resolution degradation, regardless of simulcast being
// otherwise enabled.
func TestResolveLowFPSDesktopForcesSingleLayer(t *testing.T) {
	var p EncoderPolicy
	track := LocalTrackInfo{VideoType: rtcconfig.VideoTypeDesktop, CapturedHeight: 1080}
	req := ResolveRequest{
		Codec:                 "vp8",
		SimulcastEnabled:      true,
		CapScreenshareBitrate: true,
		VideoQuality:          rtcconfig.DefaultVideoQuality(),
	}

	layers, err := p.Resolve(track, req)
	require.NoError(t, err)
	require.Len(t, layers, 1)
	require.True(t, layers[0].Active)
	require.Equal(t, "maintain-resolution", layers[0].DegradationPreference)
	require.InDelta(t, 1.0, layers[0].ScaleResolutionDownBy, 0.001)
	require.Equal(t, 2_000_000, layers[0].MaxBitrateBps, "single layer should draw from the desktop high-quality entry")
}

func TestResolveScalableCodecSingleLayerUsesFullSVCMode(t *testing.T) {
	var p EncoderPolicy
	track := LocalTrackInfo{VideoType: rtcconfig.VideoTypeCamera, CapturedHeight: 720}
	req := ResolveRequest{
		Codec:            "av1",
		SimulcastEnabled: false,
		VideoQuality:     rtcconfig.DefaultVideoQuality(),
	}

	layers, err := p.Resolve(track, req)
	require.NoError(t, err)
	require.Len(t, layers, 1)
	require.Equal(t, "L3T3_KEY", layers[0].ScalabilityMode)
}

func TestResolveScalableCodecMultiLayerUsesKSVCMode(t *testing.T) {
	var p EncoderPolicy
	track := LocalTrackInfo{VideoType: rtcconfig.VideoTypeCamera, CapturedHeight: 720}
	req := ResolveRequest{
		Codec:            "vp9",
		SimulcastEnabled: true,
		VideoQuality:     rtcconfig.DefaultVideoQuality(),
	}

	layers, err := p.Resolve(track, req)
	require.NoError(t, err)
	require.Len(t, layers, 3)
	for _, l := range layers {
		require.Equal(t, "L1T3", l.ScalabilityMode)
	}
}

func TestResolveTinyCapturedHeightDeactivatesLowestLayer(t *testing.T) {
	var p EncoderPolicy
	track := LocalTrackInfo{VideoType: rtcconfig.VideoTypeCamera, CapturedHeight: 300}
	req := ResolveRequest{
		Codec:            "vp8",
		SimulcastEnabled: true,
		VideoQuality:     rtcconfig.DefaultVideoQuality(),
	}

	layers, err := p.Resolve(track, req)
	require.NoError(t, err)
	require.Len(t, layers, 3)
	require.False(t, layers[0].Active, "quarter-height (75p) layer of a 300p source is below the viable floor")
	require.True(t, layers[1].Active)
	require.True(t, layers[2].Active)
}
