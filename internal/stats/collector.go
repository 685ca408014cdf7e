// Package stats implements the periodic peer-connection stats collector:
// an audio-level loop and a slower connection-stats loop, normalizing the
// native WebRTC stats report into the shapes spec.md §4.6 describes, with
// a bounded ring buffer of recent snapshots sized by
// rtcconfig.Options.MaxStats.
package stats

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
)

// DefaultAudioLevelInterval and DefaultConnectionStatsInterval are the
// cadences spec.md §4.6 specifies ("~200 ms" and "~2 s").
const (
	DefaultAudioLevelInterval      = 200 * time.Millisecond
	DefaultConnectionStatsInterval = 2 * time.Second
)

// Source polls the underlying peer connection for its current stats
// report. Factored out as a function type so package stats never depends
// on package tpc directly.
type Source func() (webrtc.StatsReport, error)

type counterSample struct {
	bytes uint64
	at    time.Time
}

// Collector runs the two polling loops described in spec.md §4.6 against
// one Source and emits normalized events.
type Collector struct {
	source          Source
	log             zerolog.Logger
	audioInterval   time.Duration
	connInterval    time.Duration
	maxStats        int
	bus             *bus
	mu              sync.Mutex
	ring            []Event
	prevByteSamples map[uint32]counterSample
	prevTransport   TransportCandidate
	cancel          context.CancelFunc
}

// NewCollector constructs a Collector. maxStats bounds the ring buffer of
// retained ConnectionStats events; 0 disables retention entirely (events
// are still emitted to subscribers, just not buffered).
func NewCollector(source Source, maxStats int, log zerolog.Logger) *Collector {
	return &Collector{
		source:          source,
		log:             log,
		audioInterval:   DefaultAudioLevelInterval,
		connInterval:    DefaultConnectionStatsInterval,
		maxStats:        maxStats,
		bus:             newBus(),
		prevByteSamples: map[uint32]counterSample{},
	}
}

// Subscribe returns a channel of emitted events and an unsubscribe
// function.
func (c *Collector) Subscribe() (<-chan Event, func()) {
	return c.bus.Subscribe()
}

// Start spawns the two polling loops. Stop (or cancelling ctx) tears both
// down.
func (c *Collector) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.cancel = cancel
	c.mu.Unlock()

	go c.loop(ctx, c.audioInterval, c.pollAudioLevels)
	go c.loop(ctx, c.connInterval, c.pollConnectionStats)
}

// Stop cancels both polling loops.
func (c *Collector) Stop() {
	c.mu.Lock()
	cancel := c.cancel
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Snapshots returns the buffered connection-stats events retained within
// the MaxStats-sized ring.
func (c *Collector) Snapshots() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Event, len(c.ring))
	copy(out, c.ring)
	return out
}

func (c *Collector) loop(ctx context.Context, interval time.Duration, poll func()) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			poll()
		}
	}
}

func (c *Collector) pollAudioLevels() {
	report, err := c.source()
	if err != nil {
		c.log.Debug().Err(err).Msg("stats: poll audio levels failed")
		return
	}
	now := time.Now()
	for _, s := range report {
		in, ok := s.(webrtc.InboundRTPStreamStats)
		if !ok || in.Kind != "audio" {
			continue
		}
		level := in.AudioLevel
		if level > 1 {
			// Some stacks report the unnormalized int16 range.
			level = level / 32767
		}
		c.bus.emit(Event{
			Kind:    EventAudioLevel,
			At:      now,
			SSRC:    uint32(in.SSRC),
			Level:   clampUnit(level),
			IsLocal: false,
		})
	}
}

func (c *Collector) pollConnectionStats() {
	report, err := c.source()
	if err != nil {
		c.log.Debug().Err(err).Msg("stats: poll connection stats failed")
		return
	}
	now := time.Now()

	cs := ConnectionStats{
		BitrateBps:  map[uint32]float64{},
		Resolutions: map[uint32]Resolution{},
	}

	var lost, received, remoteLost, remoteReceived uint64

	c.mu.Lock()
	for _, s := range report {
		switch v := s.(type) {
		case webrtc.InboundRTPStreamStats:
			ssrc := uint32(v.SSRC)
			cs.BitrateBps[ssrc] = c.bitrateFor(ssrc, v.BytesReceived, now)
			if v.FrameWidth > 0 && v.FrameHeight > 0 {
				cs.Resolutions[ssrc] = Resolution{Width: v.FrameWidth, Height: v.FrameHeight}
			}
			lost += clampNonNegative64(int64(v.PacketsLost))
			received += uint64(v.PacketsReceived)

		case webrtc.RemoteInboundRTPStreamStats:
			remoteLost += clampNonNegative64(int64(v.PacketsLost))

		case webrtc.OutboundRTPStreamStats:
			remoteReceived += uint64(v.PacketsSent)

		case webrtc.TransportStats:
			cs.Bandwidth.DownloadKbps = bytesToKbps(v.BytesReceived, c.connInterval)
			cs.Bandwidth.UploadKbps = bytesToKbps(v.BytesSent, c.connInterval)

		case webrtc.ICECandidatePairStats:
			if v.State == webrtc.StatsICECandidatePairStateSucceeded {
				cs.Transport = c.resolveCandidatePair(report, v)
			}
		}
	}
	c.mu.Unlock()

	cs.PacketLoss.DownloadPercent = lossPercent(lost, received)
	cs.PacketLoss.UploadPercent = lossPercent(remoteLost, remoteReceived)
	if cs.Transport == (TransportCandidate{}) {
		cs.Transport = c.prevTransport
	} else {
		c.prevTransport = cs.Transport
	}

	ev := Event{Kind: EventConnectionStats, At: now, Connection: cs}
	c.retain(ev)
	c.bus.emit(ev)
}

func (c *Collector) resolveCandidatePair(report webrtc.StatsReport, pair webrtc.ICECandidatePairStats) TransportCandidate {
	local, _ := report[pair.LocalCandidateID].(webrtc.ICECandidateStats)
	remote, _ := report[pair.RemoteCandidateID].(webrtc.ICECandidateStats)
	return TransportCandidate{
		LocalAddr:  candidateAddr(local),
		RemoteAddr: candidateAddr(remote),
		Type:       string(local.CandidateType),
	}
}

func candidateAddr(c webrtc.ICECandidateStats) string {
	if c.IP == "" {
		return ""
	}
	return c.IP + ":" + strconv.Itoa(int(c.Port))
}

// bitrateFor computes bytes*8/dt against the previous sample for ssrc,
// clamping to ≥0 to defend against the occasional non-monotonic counter,
// per spec.md §4.6.
func (c *Collector) bitrateFor(ssrc uint32, bytes uint64, now time.Time) float64 {
	prev, ok := c.prevByteSamples[ssrc]
	c.prevByteSamples[ssrc] = counterSample{bytes: bytes, at: now}
	if !ok {
		return 0
	}
	dt := now.Sub(prev.at).Seconds()
	if dt <= 0 {
		return 0
	}
	delta := int64(bytes) - int64(prev.bytes)
	if delta < 0 {
		delta = 0
	}
	return float64(delta) * 8 / dt
}

func (c *Collector) retain(ev Event) {
	if c.maxStats <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ring = append(c.ring, ev)
	if len(c.ring) > c.maxStats {
		c.ring = c.ring[len(c.ring)-c.maxStats:]
	}
}

func bytesToKbps(bytes uint64, dt time.Duration) float64 {
	if dt <= 0 {
		return 0
	}
	return float64(bytes) * 8 / 1000 / dt.Seconds()
}

func lossPercent(lost, received uint64) float64 {
	total := lost + received
	if total == 0 {
		return 0
	}
	return float64(lost) / float64(total) * 100
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func clampNonNegative64(v int64) uint64 {
	if v < 0 {
		return 0
	}
	return uint64(v)
}
