package stats

import (
	"context"
	"testing"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestClampUnitBounds(t *testing.T) {
	require.Equal(t, 0.0, clampUnit(-1))
	require.Equal(t, 1.0, clampUnit(2))
	require.Equal(t, 0.5, clampUnit(0.5))
}

func TestLossPercentZeroTotalIsZero(t *testing.T) {
	require.Equal(t, 0.0, lossPercent(0, 0))
}

func TestLossPercentComputesRatio(t *testing.T) {
	require.InDelta(t, 10.0, lossPercent(1, 9), 0.001)
}

func TestAudioLevelNormalizesUnnormalizedRange(t *testing.T) {
	report := webrtc.StatsReport{
		"audio-in-1": webrtc.InboundRTPStreamStats{SSRC: 42, Kind: "audio", AudioLevel: 16383.5},
	}
	source := func() (webrtc.StatsReport, error) { return report, nil }

	c := NewCollector(source, 0, zerolog.Nop())
	events, unsubscribe := c.Subscribe()
	defer unsubscribe()

	c.pollAudioLevels()
	ev := <-events
	require.Equal(t, EventAudioLevel, ev.Kind)
	require.Equal(t, uint32(42), ev.SSRC)
	require.InDelta(t, 0.5, ev.Level, 0.01)
}

func TestAudioLevelSkipsNonAudioTracks(t *testing.T) {
	report := webrtc.StatsReport{
		"video-in-1": webrtc.InboundRTPStreamStats{SSRC: 7, Kind: "video", AudioLevel: 0.9},
	}
	source := func() (webrtc.StatsReport, error) { return report, nil }

	c := NewCollector(source, 0, zerolog.Nop())
	events, unsubscribe := c.Subscribe()
	defer unsubscribe()

	c.pollAudioLevels()
	select {
	case ev := <-events:
		t.Fatalf("expected no audio-level event for a video track, got %+v", ev)
	case <-time.After(10 * time.Millisecond):
	}
}

func TestConnectionStatsComputesBitrateAcrossPolls(t *testing.T) {
	bytesReceived := uint64(1000)
	source := func() (webrtc.StatsReport, error) {
		return webrtc.StatsReport{
			"in-1": webrtc.InboundRTPStreamStats{SSRC: 1, BytesReceived: bytesReceived},
		}, nil
	}

	c := NewCollector(source, 4, zerolog.Nop())
	events, unsubscribe := c.Subscribe()
	defer unsubscribe()

	c.pollConnectionStats()
	first := <-events
	require.Equal(t, 0.0, first.Connection.BitrateBps[1], "first sample has no prior baseline")

	bytesReceived = 2000
	c.pollConnectionStats()
	second := <-events
	require.Greater(t, second.Connection.BitrateBps[1], 0.0)
}

func TestConnectionStatsClampsNonMonotonicCounters(t *testing.T) {
	bytesReceived := uint64(5000)
	source := func() (webrtc.StatsReport, error) {
		return webrtc.StatsReport{
			"in-1": webrtc.InboundRTPStreamStats{SSRC: 1, BytesReceived: bytesReceived},
		}, nil
	}

	c := NewCollector(source, 4, zerolog.Nop())
	events, unsubscribe := c.Subscribe()
	defer unsubscribe()

	c.pollConnectionStats()
	<-events

	bytesReceived = 100 // regresses
	c.pollConnectionStats()
	ev := <-events
	require.Equal(t, 0.0, ev.Connection.BitrateBps[1])
}

func TestSnapshotsRespectsMaxStatsRingSize(t *testing.T) {
	source := func() (webrtc.StatsReport, error) { return webrtc.StatsReport{}, nil }
	c := NewCollector(source, 2, zerolog.Nop())
	events, unsubscribe := c.Subscribe()
	defer unsubscribe()

	for i := 0; i < 5; i++ {
		c.pollConnectionStats()
		<-events
	}
	require.Len(t, c.Snapshots(), 2)
}

func TestStartStopTearsDownLoopsWithoutPanicking(t *testing.T) {
	source := func() (webrtc.StatsReport, error) { return webrtc.StatsReport{}, nil }
	c := NewCollector(source, 1, zerolog.Nop())
	c.audioInterval = time.Millisecond
	c.connInterval = time.Millisecond

	c.Start(context.Background())
	time.Sleep(10 * time.Millisecond)
	c.Stop()
}
