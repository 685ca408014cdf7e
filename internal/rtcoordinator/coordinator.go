// Package rtcoordinator implements the RTC coordinator: the registry of
// TPC instances, the owned bridge channel, the local-track catalog, and
// the cached last-N/receiver-video-constraints/forwarded-sources state
// distributed over that channel, per spec.md §4.5.
package rtcoordinator

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/n0remac/rtc-core/internal/bridge"
	"github.com/n0remac/rtc-core/internal/rtcconfig"
	"github.com/n0remac/rtc-core/internal/signalling"
	"github.com/n0remac/rtc-core/internal/tpc"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
)

// PeerConnectionOptions configures a single create_peer_connection call.
// The native API (MediaEngine/interceptor registry) is built once by the
// host process and supplied here, mirroring the teacher's single
// process-wide newSFUAPI().
type PeerConnectionOptions struct {
	API        *webrtc.API
	ICEServers []webrtc.ICEServer
	Options    rtcconfig.Options
	Kind       tpc.SessionKind
	Signalling signalling.Layer
}

// bridgeChannel is the subset of *bridge.Channel the coordinator depends
// on, factored out so tests can drive the cache-replay-on-open and
// forwarded-sources logic without a live WebSocket or data channel.
type bridgeChannel interface {
	Subscribe() (<-chan bridge.Event, func())
	State() bridge.State
	Send(msg any) error
	Close() error
}

// Coordinator owns the TPC registry, the bridge channel, and the
// lastN/receiver-constraints/forwarded-sources caches, per spec.md §4.5.
type Coordinator struct {
	log zerolog.Logger

	mu     sync.Mutex
	nextID int
	tpcs   map[int]*tpc.TPC

	channel            bridgeChannel
	channelUnsubscribe func()
	replayedOnOpen     bool

	lastN            int
	lastNSet         bool
	constraints      *bridge.ReceiverVideoConstraints
	forwardedSources []string
	forwardedInit    bool

	bus *bus
}

// New constructs an empty Coordinator.
func New(log zerolog.Logger) *Coordinator {
	return &Coordinator{
		log:  log,
		tpcs: map[int]*tpc.TPC{},
		bus:  newBus(),
	}
}

// Subscribe returns a channel of coordinator-level events and an
// unsubscribe function.
func (c *Coordinator) Subscribe() (<-chan Event, func()) {
	return c.bus.Subscribe()
}

// CreatePeerConnection allocates a monotonically-increasing id, constructs
// the native peer connection with the configuration spec.md §4.5/§6
// requires, and wraps it in a TPC.
func (c *Coordinator) CreatePeerConnection(opts PeerConnectionOptions) (int, *tpc.TPC, error) {
	cfg := webrtc.Configuration{
		ICEServers:   opts.ICEServers,
		BundlePolicy: webrtc.BundlePolicyMaxBundle,
	}
	if opts.Options.ForceTurnRelay {
		cfg.ICETransportPolicy = webrtc.ICETransportPolicyRelay
	}

	// EnableInsertableStreams is a SettingEngine-time construction flag in
	// pion (WithSettingEngine(se) where se.SetInsertableStreams(true) was
	// called before opts.API was built); by the time a PeerConnectionOptions
	// reaches here the host process has already baked that choice into
	// opts.API, so there is nothing left to toggle at this call site.

	pc, err := opts.API.NewPeerConnection(cfg)
	if err != nil {
		return 0, nil, fmt.Errorf("rtcoordinator: create_peer_connection: %w", err)
	}

	pauseStrategy := tpc.DetectPauseStrategy(opts.API)
	t := tpc.New(pc, tpc.Config{
		Options:       opts.Options,
		Kind:          opts.Kind,
		Signalling:    opts.Signalling,
		Logger:        c.log,
		PauseStrategy: pauseStrategy,
	})

	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.tpcs[id] = t
	c.mu.Unlock()
	return id, t, nil
}

// TPC looks up a previously created TPC by id.
func (c *Coordinator) TPC(id int) (*tpc.TPC, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.tpcs[id]
	return t, ok
}

// RemovePeerConnection closes and forgets a TPC by id. Closing an already
// removed id is a no-op success, matching TPC.Close's idempotence.
func (c *Coordinator) RemovePeerConnection(id int) error {
	c.mu.Lock()
	t, ok := c.tpcs[id]
	delete(c.tpcs, id)
	c.mu.Unlock()
	if !ok {
		return nil
	}
	return t.Close()
}

// InitializeBridgeChannel adopts a Channel built by the host process
// (either NewWebSocketChannel or NewDataChannelChannel) and wires the
// cache-replay-on-open behavior from spec.md §4.5: "On first open, replays
// the cached receiver constraints and lastN value."
func (c *Coordinator) InitializeBridgeChannel(ch bridgeChannel) {
	c.mu.Lock()
	if c.channelUnsubscribe != nil {
		c.channelUnsubscribe()
	}
	c.channel = ch
	c.replayedOnOpen = false
	events, unsubscribe := ch.Subscribe()
	c.channelUnsubscribe = unsubscribe
	c.mu.Unlock()

	go func() {
		for ev := range events {
			c.onChannelEvent(ev)
		}
	}()
}

func (c *Coordinator) onChannelEvent(ev bridge.Event) {
	switch ev.Kind {
	case bridge.EventStateChanged:
		if ev.State == bridge.StateOpen {
			c.replayOnce()
		}
	case bridge.EventForwardedSourcesChanged:
		c.applyForwardedSources(ev.Sources)
	case bridge.EventDataChannelClosed:
		c.bus.emit(Event{Kind: EventDataChannelClosed, Code: ev.Code, Reason: ev.Reason})
	}
}

// replayOnce resends the cached lastN and receiver-video-constraints on
// the first open of the channel adopted by InitializeBridgeChannel; later
// open transitions of the same channel do not resend them.
func (c *Coordinator) replayOnce() {
	c.mu.Lock()
	if c.replayedOnOpen {
		c.mu.Unlock()
		return
	}
	c.replayedOnOpen = true
	ch := c.channel
	lastN, lastNSet := c.lastN, c.lastNSet
	constraints := c.constraints
	c.mu.Unlock()

	if ch == nil {
		return
	}
	if lastNSet {
		if err := ch.Send(bridge.LastNChangedEvent{ColibriClass: "LastNChangedEvent", LastN: lastN}); err != nil {
			c.log.Debug().Err(err).Msg("rtcoordinator: replay lastN failed")
		}
	}
	if constraints != nil {
		if err := ch.Send(*constraints); err != nil {
			c.log.Debug().Err(err).Msg("rtcoordinator: replay receiver video constraints failed")
		}
	}
}

// SetLastN caches and, if the channel is open, sends the new lastN value.
// No-op if unchanged, per spec.md §4.5.
func (c *Coordinator) SetLastN(n int) error {
	c.mu.Lock()
	if c.lastNSet && c.lastN == n {
		c.mu.Unlock()
		return nil
	}
	c.lastN = n
	c.lastNSet = true
	ch := c.channel
	c.mu.Unlock()

	c.bus.emit(Event{Kind: EventLastNChanged, LastN: n})

	if ch == nil || ch.State() != bridge.StateOpen {
		return nil
	}
	return ch.Send(bridge.LastNChangedEvent{ColibriClass: "LastNChangedEvent", LastN: n})
}

// SetReceiverVideoConstraints caches and, if the channel is open, sends
// the new constraints. No-op if structurally unchanged.
func (c *Coordinator) SetReceiverVideoConstraints(rvc bridge.ReceiverVideoConstraints) error {
	rvc.ColibriClass = "ReceiverVideoConstraints"

	c.mu.Lock()
	if c.constraints != nil && sameConstraints(*c.constraints, rvc) {
		c.mu.Unlock()
		return nil
	}
	c.constraints = &rvc
	ch := c.channel
	c.mu.Unlock()

	if ch == nil || ch.State() != bridge.StateOpen {
		return nil
	}
	return ch.Send(rvc)
}

func sameConstraints(a, b bridge.ReceiverVideoConstraints) bool {
	ab, err1 := json.Marshal(a)
	bb, err2 := json.Marshal(b)
	if err1 != nil || err2 != nil {
		return false
	}
	return string(ab) == string(bb)
}

// SendSourceVideoType fire-and-forgets a SourceVideoTypeMessage when the
// channel is open.
func (c *Coordinator) SendSourceVideoType(sourceName, videoType string) error {
	ch := c.currentChannel()
	if ch == nil || ch.State() != bridge.StateOpen {
		return nil
	}
	return ch.Send(bridge.SourceVideoTypeMessage{
		ColibriClass: "SourceVideoTypeMessage",
		SourceName:   sourceName,
		VideoType:    videoType,
	})
}

// SendEndpointStats fire-and-forgets an EndpointStats payload when the
// channel is open.
func (c *Coordinator) SendEndpointStats(payload json.RawMessage) error {
	ch := c.currentChannel()
	if ch == nil || ch.State() != bridge.StateOpen {
		return nil
	}
	return ch.Send(bridge.EndpointStats{ColibriClass: "EndpointStats", Payload: payload})
}

func (c *Coordinator) currentChannel() bridgeChannel {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.channel
}

// IsInForwardedSources reports whether sourceName is currently forwarded.
// Conservative default: true when the list is uninitialized, so that
// track creation does not block before the first ForwardedSources frame
// arrives, per spec.md §4.5.
func (c *Coordinator) IsInForwardedSources(sourceName string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.forwardedInit {
		return true
	}
	for _, s := range c.forwardedSources {
		if s == sourceName {
			return true
		}
	}
	return false
}

// applyForwardedSources computes the leaving/entering diff against the
// previously cached set and emits forwarded-sources-changed, per spec.md
// §3 and the testable property in §8.
func (c *Coordinator) applyForwardedSources(next []string) {
	c.mu.Lock()
	prev := c.forwardedSources
	c.forwardedSources = append([]string(nil), next...)
	c.forwardedInit = true
	c.mu.Unlock()

	leaving := diff(prev, next)
	entering := diff(next, prev)
	c.bus.emit(Event{Kind: EventForwardedSourcesChanged, Leaving: leaving, Entering: entering, At: time.Now()})
}

// diff returns the elements of a not present in b, preserving a's order.
func diff(a, b []string) []string {
	set := make(map[string]struct{}, len(b))
	for _, s := range b {
		set[s] = struct{}{}
	}
	var out []string
	for _, s := range a {
		if _, ok := set[s]; !ok {
			out = append(out, s)
		}
	}
	return out
}

// CloseBridgeChannel tears down the owned channel, if any.
func (c *Coordinator) CloseBridgeChannel() error {
	c.mu.Lock()
	ch := c.channel
	unsubscribe := c.channelUnsubscribe
	c.channel = nil
	c.channelUnsubscribe = nil
	c.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	if ch == nil {
		return nil
	}
	return ch.Close()
}

// Destroy closes the bridge channel and every registered TPC.
func (c *Coordinator) Destroy() error {
	if err := c.CloseBridgeChannel(); err != nil {
		c.log.Debug().Err(err).Msg("rtcoordinator: close bridge channel on destroy")
	}

	c.mu.Lock()
	tpcs := make([]*tpc.TPC, 0, len(c.tpcs))
	for _, t := range c.tpcs {
		tpcs = append(tpcs, t)
	}
	c.tpcs = map[int]*tpc.TPC{}
	c.mu.Unlock()

	var firstErr error
	for _, t := range tpcs {
		if err := t.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
