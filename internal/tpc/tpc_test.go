package tpc

import (
	"testing"

	"github.com/n0remac/rtc-core/internal/rtcconfig"
	"github.com/n0remac/rtc-core/internal/sdpmodel"
	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/require"
)

func newTestAPI(t *testing.T) *webrtc.API {
	t.Helper()
	m := &webrtc.MediaEngine{}
	require.NoError(t, m.RegisterDefaultCodecs())
	return webrtc.NewAPI(webrtc.WithMediaEngine(m))
}

func newTestTPC(t *testing.T, kind SessionKind) *TPC {
	t.Helper()
	pc, err := newTestAPI(t).NewPeerConnection(webrtc.Configuration{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = pc.Close() })

	opts := rtcconfig.Options{
		CodecSettings: []rtcconfig.CodecSettings{
			{MediaType: rtcconfig.MediaVideo, CodecList: []string{"vp8"}},
		},
		VideoQuality: rtcconfig.DefaultVideoQuality(),
	}
	return New(pc, Config{Options: opts, Kind: kind})
}

func newStaticVideoTrack(t *testing.T, id string) *webrtc.TrackLocalStaticRTP {
	t.Helper()
	track, err := webrtc.NewTrackLocalStaticRTP(webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8}, id, id)
	require.NoError(t, err)
	return track
}

func TestAddTrackRejectsDuplicateRTCID(t *testing.T) {
	tp := newTestTPC(t, SessionSFU)
	src := LocalSource{RTCID: "local-0", MediaType: rtcconfig.MediaVideo, VideoType: rtcconfig.VideoTypeCamera, Track: newStaticVideoTrack(t, "v0")}

	require.NoError(t, tp.AddTrack(src))
	err := tp.AddTrack(src)
	require.Error(t, err)
}

func TestRemoveTrackUnknownRTCIDFails(t *testing.T) {
	tp := newTestTPC(t, SessionSFU)
	require.Error(t, tp.RemoveTrack("nope"))
}

func TestAddTrackOnClosedTPCFails(t *testing.T) {
	tp := newTestTPC(t, SessionSFU)
	require.NoError(t, tp.Close())
	err := tp.AddTrack(LocalSource{RTCID: "local-0", Track: newStaticVideoTrack(t, "v0")})
	require.Error(t, err)
}

func TestReplaceTrackReportsRenegotiationOnlyForP2P(t *testing.T) {
	sfu := newTestTPC(t, SessionSFU)
	src := LocalSource{RTCID: "local-0", MediaType: rtcconfig.MediaVideo, VideoType: rtcconfig.VideoTypeCamera, Track: newStaticVideoTrack(t, "v0")}
	require.NoError(t, sfu.AddTrack(src))
	needsRenegotiation, err := sfu.ReplaceTrack("local-0", newStaticVideoTrack(t, "v1"))
	require.NoError(t, err)
	require.False(t, needsRenegotiation)

	p2p := newTestTPC(t, SessionP2P)
	require.NoError(t, p2p.AddTrack(src))
	needsRenegotiation, err = p2p.ReplaceTrack("local-0", newStaticVideoTrack(t, "v2"))
	require.NoError(t, err)
	require.True(t, needsRenegotiation)
}

func TestExtractUfragReadsFirstMediaSection(t *testing.T) {
	sd := sdpmodel.SessionDescription{
		Media: []sdpmodel.MediaSection{
			{Kind: sdpmodel.KindAudio, OtherAttrs: []sdpmodel.RawAttr{{Key: "ice-ufrag", Value: "abcd"}}},
		},
	}
	require.Equal(t, "abcd", extractUfrag(sd))
}

func TestExtractUfragEmptyWhenAbsent(t *testing.T) {
	sd := sdpmodel.SessionDescription{Media: []sdpmodel.MediaSection{{Kind: sdpmodel.KindAudio}}}
	require.Equal(t, "", extractUfrag(sd))
}

func TestReconcileUfragEmitsOnlyOnChange(t *testing.T) {
	tp := newTestTPC(t, SessionSFU)
	events, unsubscribe := tp.Subscribe()
	defer unsubscribe()

	sd := sdpmodel.SessionDescription{Media: []sdpmodel.MediaSection{
		{OtherAttrs: []sdpmodel.RawAttr{{Key: "ice-ufrag", Value: "aaaa"}}},
	}}
	tp.reconcileUfrag(sd, true)
	select {
	case ev := <-events:
		require.Equal(t, EventLocalUfragChanged, ev.Kind)
		require.Equal(t, "aaaa", ev.Ufrag)
	default:
		t.Fatal("expected a local-ufrag-changed event")
	}

	tp.reconcileUfrag(sd, true)
	select {
	case ev := <-events:
		t.Fatalf("expected no further event, got %+v", ev)
	default:
	}
}

func TestMungeLocalAppliesRTXAndCodecOrder(t *testing.T) {
	tp := newTestTPC(t, SessionSFU)
	sd := sdpmodel.SessionDescription{Media: []sdpmodel.MediaSection{{
		Kind: sdpmodel.KindVideo,
		PayloadTypes: []sdpmodel.PayloadType{
			{Number: 96, Codec: "H264"},
			{Number: 97, Codec: "VP8"},
		},
		SSRCAttrs: []sdpmodel.SSRCAttribute{
			{SSRC: 111, Attribute: "cname", Value: "c"},
			{SSRC: 111, Attribute: "msid", Value: "s t"},
		},
	}}}

	out := tp.mungeLocal(sd)
	require.Equal(t, "VP8", out.Media[0].PayloadTypes[0].Codec)
	require.Len(t, out.Media[0].SSRCGroups, 1)
	require.Equal(t, "FID", out.Media[0].SSRCGroups[0].Semantics)
}
