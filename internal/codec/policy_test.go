package codec

import (
	"testing"

	"github.com/n0remac/rtc-core/internal/rtcconfig"
	"github.com/stretchr/testify/require"
)

func TestPolicyPreferredForReturnsLowerCasedOrder(t *testing.T) {
	p := NewPolicy(rtcconfig.Options{
		CodecSettings: []rtcconfig.CodecSettings{
			{MediaType: rtcconfig.MediaVideo, CodecList: []string{"AV1", "VP9", "H264"}},
		},
	})
	require.Equal(t, []string{"av1", "vp9", "h264"}, p.PreferredFor(rtcconfig.MediaVideo))
}

func TestPolicyPreferredForUnconfiguredMediaTypeIsNil(t *testing.T) {
	p := NewPolicy(rtcconfig.Options{})
	require.Nil(t, p.PreferredFor(rtcconfig.MediaAudio))
}

func TestRequiresDependencyDescriptor(t *testing.T) {
	require.True(t, RequiresDependencyDescriptor("AV1", false))
	require.True(t, RequiresDependencyDescriptor("av1", true))
	require.False(t, RequiresDependencyDescriptor("h264", false))
	require.True(t, RequiresDependencyDescriptor("h264", true))
	require.False(t, RequiresDependencyDescriptor("vp8", true))
}

func TestIsScalableCodec(t *testing.T) {
	require.True(t, IsScalableCodec("VP9"))
	require.True(t, IsScalableCodec("av1"))
	require.False(t, IsScalableCodec("vp8"))
	require.False(t, IsScalableCodec("h264"))
}
