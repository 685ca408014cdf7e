package rtcoordinator

import (
	"sync"
	"testing"
	"time"

	"github.com/n0remac/rtc-core/internal/bridge"
	"github.com/n0remac/rtc-core/internal/rtcerrors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// fakeChannel implements bridgeChannel without a live transport, so the
// coordinator's cache-replay-on-open and forwarded-sources logic can be
// driven directly from a test.
type fakeChannel struct {
	mu     sync.Mutex
	state  bridge.State
	sent   []any
	bus    []chan bridge.Event
	closed bool
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{state: bridge.StateNull}
}

func (f *fakeChannel) Subscribe() (<-chan bridge.Event, func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan bridge.Event, 16)
	f.bus = append(f.bus, ch)
	return ch, func() {}
}

func (f *fakeChannel) State() bridge.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeChannel) Send(msg any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != bridge.StateOpen {
		return rtcerrors.ErrChannelNotOpen
	}
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeChannel) Close() error {
	f.setState(bridge.StateClosed)
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

func (f *fakeChannel) setState(s bridge.State) {
	f.mu.Lock()
	f.state = s
	subs := append([]chan bridge.Event(nil), f.bus...)
	f.mu.Unlock()
	for _, ch := range subs {
		select {
		case ch <- bridge.Event{Kind: bridge.EventStateChanged, State: s}:
		default:
		}
	}
}

func (f *fakeChannel) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func newTestCoordinator() *Coordinator {
	return New(zerolog.Nop())
}

func TestIsInForwardedSourcesDefaultsTrueBeforeFirstUpdate(t *testing.T) {
	c := newTestCoordinator()
	require.True(t, c.IsInForwardedSources("alice-v0"))
}

func TestIsInForwardedSourcesReflectsLatestSet(t *testing.T) {
	c := newTestCoordinator()
	c.applyForwardedSources([]string{"alice-v0", "bob-v0"})
	require.True(t, c.IsInForwardedSources("alice-v0"))
	require.False(t, c.IsInForwardedSources("carol-v0"))
}

func TestForwardedSourcesDiffEmitsLeavingThenEntering(t *testing.T) {
	c := newTestCoordinator()
	events, unsubscribe := c.Subscribe()
	defer unsubscribe()

	c.applyForwardedSources([]string{"a", "b", "c"})
	<-events // initial diff from the empty set: all entering, irrelevant here

	c.applyForwardedSources([]string{"b", "c", "d", "e"})
	ev := <-events
	require.Equal(t, EventForwardedSourcesChanged, ev.Kind)
	require.Equal(t, []string{"a"}, ev.Leaving)
	require.Equal(t, []string{"d", "e"}, ev.Entering)
	require.WithinDuration(t, time.Now(), ev.At, time.Second)
}

func TestSetLastNNoopWhenUnchanged(t *testing.T) {
	c := newTestCoordinator()
	events, unsubscribe := c.Subscribe()
	defer unsubscribe()

	require.NoError(t, c.SetLastN(3))
	<-events // first set always emits

	require.NoError(t, c.SetLastN(3))
	select {
	case ev := <-events:
		t.Fatalf("expected no event for an unchanged lastN, got %+v", ev)
	case <-time.After(10 * time.Millisecond):
	}
}

func TestSetReceiverVideoConstraintsNoopWhenStructurallyUnchanged(t *testing.T) {
	c := newTestCoordinator()
	rvc := bridge.ReceiverVideoConstraints{LastN: 2, ConstraintsBySource: map[string]int{"alice-v0": 180}}

	require.NoError(t, c.SetReceiverVideoConstraints(rvc))
	first := *c.constraints

	require.NoError(t, c.SetReceiverVideoConstraints(rvc))
	require.Equal(t, first, *c.constraints)
}

func TestCacheReplayOnOpenSendsLastNAndConstraintsExactlyOnce(t *testing.T) {
	c := newTestCoordinator()
	require.NoError(t, c.SetLastN(3))
	require.NoError(t, c.SetReceiverVideoConstraints(bridge.ReceiverVideoConstraints{LastN: 3}))

	fc := newFakeChannel()
	c.InitializeBridgeChannel(fc)

	fc.setState(bridge.StateOpen)
	require.Eventually(t, func() bool { return fc.sentCount() == 2 }, time.Second, time.Millisecond)

	fc.setState(bridge.StateClosing)
	fc.setState(bridge.StateOpen)
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, 2, fc.sentCount(), "cached values must not be resent on a second open")
}

func TestDestroyClosesOwnedChannel(t *testing.T) {
	c := newTestCoordinator()
	fc := newFakeChannel()
	c.InitializeBridgeChannel(fc)

	require.NoError(t, c.Destroy())
	require.True(t, fc.closed)
}

func TestDataChannelClosedEventIsForwarded(t *testing.T) {
	c := newTestCoordinator()
	fc := newFakeChannel()
	c.InitializeBridgeChannel(fc)

	events, unsubscribe := c.Subscribe()
	defer unsubscribe()

	fc.mu.Lock()
	subs := append([]chan bridge.Event(nil), fc.bus...)
	fc.mu.Unlock()
	for _, ch := range subs {
		ch <- bridge.Event{Kind: bridge.EventDataChannelClosed, Code: 1001, Reason: "retries exhausted"}
	}

	ev := <-events
	require.Equal(t, EventDataChannelClosed, ev.Kind)
	require.Equal(t, 1001, ev.Code)
}
